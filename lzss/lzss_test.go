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

package lzss

import (
	"bytes"
	"testing"
)

func TestExpandRoundTrip(t *testing.T) {
	input := []byte("AAAAAAAA")
	enc := Encode(input, EXPAND)
	if len(enc) == 0 {
		t.Fatal("Encode produced no output")
	}
	// A run of 8 identical bytes must compress to at least one match
	// (control byte + 2-byte match is shorter than 8 literal bytes).
	if len(enc) >= len(input)+1 {
		t.Errorf("Encode(%q) = %d bytes, expected at least one match to be used", input, len(enc))
	}
	dec, err := Decode(bytes.NewReader(enc), EXPAND, len(input))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(dec, input) {
		t.Errorf("Decode(Encode(%q)) = %q", input, dec)
	}
}

func TestMSHELPInvertsControlByte(t *testing.T) {
	// Eight literal bytes, EXPAND-style: control byte 0xFF (all literal).
	payload := []byte{'h', 'e', 'l', 'l', 'o', '!', '!', '!'}
	expandStream := append([]byte{0xFF}, payload...)
	mshelpStream := append([]byte{0x00}, payload...)

	gotExpand, err := Decode(bytes.NewReader(expandStream), EXPAND, len(payload))
	if err != nil {
		t.Fatalf("Decode(EXPAND): %v", err)
	}
	gotMSHelp, err := Decode(bytes.NewReader(mshelpStream), MSHELP, len(payload))
	if err != nil {
		t.Fatalf("Decode(MSHELP): %v", err)
	}
	if !bytes.Equal(gotExpand, gotMSHelp) {
		t.Errorf("EXPAND(0xFF) = %q, MSHELP(0x00) = %q; want equal", gotExpand, gotMSHelp)
	}
	if !bytes.Equal(gotExpand, payload) {
		t.Errorf("decoded = %q, want %q", gotExpand, payload)
	}
}

func TestRoundTripCorpus(t *testing.T) {
	corpus := map[string][]byte{
		"empty":       {},
		"1byte":       {0x42},
		"mixed":       []byte("the quick brown fox the quick brown fox jumps"),
		"repeat-ABC":  bytes.Repeat([]byte("ABC"), 200),
		"binary-like": bytes.Repeat([]byte{0x00, 0xFF, 0x10, 0x20}, 100),
	}
	for name, data := range corpus {
		for _, mode := range []Mode{EXPAND, MSHELP, QBASIC} {
			enc := Encode(data, mode)
			dec, err := Decode(bytes.NewReader(enc), mode, len(data))
			if err != nil {
				t.Fatalf("%s/%d: Decode: %v", name, mode, err)
			}
			if !bytes.Equal(dec, data) {
				t.Errorf("%s/%d: round trip mismatch: got %d bytes, want %d bytes", name, mode, len(dec), len(data))
			}
		}
	}
}
