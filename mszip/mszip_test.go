// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mszip

import (
	"bytes"
	"testing"
)

func TestSingleFrameRoundTrip(t *testing.T) {
	plain := []byte("Hello, World!")
	enc := NewEncoder()
	frame, err := enc.EncodeFrame(plain)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if !bytes.HasPrefix(frame, []byte("CK")) {
		t.Fatalf("frame missing CK signature: %x", frame[:2])
	}
	dec := NewDecoder()
	got, err := dec.DecodeFrame(frame, len(plain))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("DecodeFrame = %q, want %q", got, plain)
	}
}

func TestMultiFrameHistoryCarriesAcrossBlocks(t *testing.T) {
	frame1 := bytes.Repeat([]byte("AB"), 16384) // 32768 bytes
	frame2 := bytes.Repeat([]byte("AB"), 16384)

	enc := NewEncoder()
	c1, err := enc.EncodeFrame(frame1)
	if err != nil {
		t.Fatalf("EncodeFrame 1: %v", err)
	}
	c2, err := enc.EncodeFrame(frame2)
	if err != nil {
		t.Fatalf("EncodeFrame 2: %v", err)
	}

	dec := NewDecoder()
	got1, err := dec.DecodeFrame(c1, len(frame1))
	if err != nil {
		t.Fatalf("DecodeFrame 1: %v", err)
	}
	if !bytes.Equal(got1, frame1) {
		t.Errorf("frame 1 mismatch")
	}
	got2, err := dec.DecodeFrame(c2, len(frame2))
	if err != nil {
		t.Fatalf("DecodeFrame 2: %v", err)
	}
	if !bytes.Equal(got2, frame2) {
		t.Errorf("frame 2 mismatch")
	}
}

func TestInvalidSignature(t *testing.T) {
	dec := NewDecoder()
	_, err := dec.DecodeFrame([]byte{0x00, 0x00, 0x01}, 1)
	if err == nil {
		t.Fatal("expected error for bad signature, got nil")
	}
}

func TestRoundTripCorpus(t *testing.T) {
	corpus := map[string][]byte{
		"empty":          {},
		"1byte":          {0x7A},
		"64KiB-cycle":    cycleBytes(65536),
		"100KiB-repeat":  bytes.Repeat([]byte("ABC"), 34000),
		"english-sample": []byte(englishSample),
	}
	for name, data := range corpus {
		enc := NewEncoder()
		dec := NewDecoder()
		var out []byte
		for off := 0; off < len(data) || (off == 0 && len(data) == 0); off += FrameSize {
			end := off + FrameSize
			if end > len(data) {
				end = len(data)
			}
			chunk := data[off:end]
			frame, err := enc.EncodeFrame(chunk)
			if err != nil {
				t.Fatalf("%s: EncodeFrame: %v", name, err)
			}
			got, err := dec.DecodeFrame(frame, len(chunk))
			if err != nil {
				t.Fatalf("%s: DecodeFrame: %v", name, err)
			}
			out = append(out, got...)
			if len(data) == 0 {
				break
			}
		}
		if !bytes.Equal(out, data) {
			t.Errorf("%s: round trip mismatch: got %d bytes, want %d", name, len(out), len(data))
		}
	}
}

func cycleBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

const englishSample = `The quick brown fox jumps over the lazy dog. Pack my box with
five dozen liquor jugs. The five boxing wizards jump quickly. How vexingly
quick daft zebras jump!`
