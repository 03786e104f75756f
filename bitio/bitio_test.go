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

package bitio

import (
	"bytes"
	"testing"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	widths := []uint{1, 3, 8, 13, 16, 20, 32, 5}
	values := []uint32{1, 5, 0xAB, 0x1FFF, 0xBEEF, 0xFFFFF, 0xDEADBEEF, 17}
	for i := range widths {
		if err := w.WriteBits(values[i], widths[i]); err != nil {
			t.Fatalf("WriteBits: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewReader(&buf)
	for i := range widths {
		got := r.ReadBits(widths[i])
		mask := uint32(1)<<widths[i] - 1
		if widths[i] == 32 {
			mask = 0xFFFFFFFF
		}
		want := values[i] & mask
		if got != want {
			t.Errorf("value %d: ReadBits(%d) = %#x, want %#x", i, widths[i], got, want)
		}
	}
}

func TestReaderZeroPadsAtEOF(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xFF}))
	if got := r.ReadBits(8); got != 0xFF {
		t.Fatalf("first byte = %#x, want 0xFF", got)
	}
	if got := r.ReadBits(16); got != 0 {
		t.Fatalf("past-EOF bits = %#x, want 0", got)
	}
}

func TestByteAlign(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteBits(0x5, 3)
	w.ByteAlign()
	w.WriteBits(0xAB, 8)
	w.Flush()

	r := NewReader(&buf)
	r.ReadBits(3)
	r.ByteAlign()
	if got := r.ReadBits(8); got != 0xAB {
		t.Errorf("after align, ReadBits(8) = %#x, want 0xAB", got)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0b10110010}))
	p1 := r.PeekBits(4)
	p2 := r.PeekBits(4)
	if p1 != p2 {
		t.Errorf("peek not idempotent: %#x != %#x", p1, p2)
	}
	if got := r.ReadBits(4); got != p1 {
		t.Errorf("ReadBits after Peek = %#x, want %#x", got, p1)
	}
}

func TestReadUint16And32LE(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	r := NewReader(bytes.NewReader(data))
	if got := r.ReadUint16LE(); got != 0x0201 {
		t.Errorf("ReadUint16LE = %#x, want 0x0201", got)
	}
	r2 := NewReader(bytes.NewReader(data))
	if got := r2.ReadUint32LE(); got != 0x04030201 {
		t.Errorf("ReadUint32LE = %#x, want 0x04030201", got)
	}
}

func TestMSBReaderWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewMSBWriter(&buf)
	widths := []uint{1, 3, 8, 13, 16, 5}
	values := []uint16{1, 5, 0xAB, 0x1FFF, 0xBEEF, 17}
	for i := range widths {
		if err := w.WriteBits(values[i], widths[i]); err != nil {
			t.Fatalf("WriteBits: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewMSBReader(&buf)
	for i := range widths {
		got := r.ReadBits(widths[i])
		mask := uint16(1)<<widths[i] - 1
		want := values[i] & mask
		if got != want {
			t.Errorf("value %d: ReadBits(%d) = %#x, want %#x", i, widths[i], got, want)
		}
	}
}

func TestMSBByteAlign(t *testing.T) {
	var buf bytes.Buffer
	w := NewMSBWriter(&buf)
	w.WriteBits(0x3, 3)
	w.ByteAlign()
	w.WriteBits(0xBEEF, 16)
	w.Flush()

	r := NewMSBReader(&buf)
	r.ReadBits(3)
	r.ByteAlign()
	if got := r.ReadBits(16); got != 0xBEEF {
		t.Errorf("after align, ReadBits(16) = %#x, want 0xBEEF", got)
	}
}
