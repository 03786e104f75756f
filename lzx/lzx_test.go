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

package lzx

import (
	"bytes"
	"testing"
)

// lcg is a tiny deterministic pseudo-random byte generator so test corpora
// are reproducible without depending on math/rand's algorithm.
func lcg(n int, seed uint32) []byte {
	out := make([]byte, n)
	s := seed
	for i := range out {
		s = s*1664525 + 1013904223
		out[i] = byte(s >> 24)
	}
	return out
}

func roundTripFrames(t *testing.T, windowBits int, frames [][]byte, useE8 bool, filesize uint32) {
	t.Helper()
	enc := NewEncoder(windowBits, useE8, filesize)
	dec := NewDecoder(windowBits)
	for i, plain := range frames {
		compressed, err := enc.EncodeFrame(plain)
		if err != nil {
			t.Fatalf("frame %d: EncodeFrame: %v", i, err)
		}
		got, err := dec.DecodeFrame(compressed, len(plain))
		if err != nil {
			t.Fatalf("frame %d: DecodeFrame: %v", i, err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("frame %d: round trip mismatch: got %d bytes, want %d", i, len(got), len(plain))
		}
	}
}

func TestEmptyFrame(t *testing.T) {
	roundTripFrames(t, MinWindowBits, [][]byte{{}}, false, 0)
}

func TestSingleByteFrame(t *testing.T) {
	roundTripFrames(t, MinWindowBits, [][]byte{{0x42}}, false, 0)
}

func TestPseudoRandom8KRoundTrip(t *testing.T) {
	data := lcg(8*1024, 12345)
	roundTripFrames(t, MinWindowBits, [][]byte{data}, false, 0)
}

func TestRepeatingPatternRoundTrip(t *testing.T) {
	var data []byte
	for len(data) < 64*1024 {
		data = append(data, 'A', 'B', 'C')
	}
	roundTripFrames(t, MinWindowBits, [][]byte{data}, false, 0)
}

func TestMultiFrameCarriesStateAcrossBlocks(t *testing.T) {
	frame1 := lcg(frameSize, 7)
	frame2 := bytes.Repeat([]byte("recent-offset-cache-exercise "), 1200)[:frameSize]
	frame3 := lcg(100, 99)
	roundTripFrames(t, MinWindowBits, [][]byte{frame1, frame2, frame3}, false, 0)
}

func TestEnglishTextRoundTrip(t *testing.T) {
	sample := []byte(`The quick brown fox jumps over the lazy dog. ` +
		`Pack my box with five dozen liquor jugs. ` +
		`How vexingly quick daft zebras jump!`)
	var data []byte
	for len(data) < 40*1024 {
		data = append(data, sample...)
	}
	roundTripFrames(t, MinWindowBits, [][]byte{data}, false, 0)
}

func TestE8TranslationRoundTrip(t *testing.T) {
	filesize := uint32(4096)
	data := make([]byte, filesize)
	for i := range data {
		data[i] = byte(i * 7)
	}
	// Plant a handful of plausible CALL instructions: opcode 0xE8 followed by
	// a small, in-range absolute-looking operand, the common case this pass
	// targets.
	plant := func(pos int, target uint32) {
		data[pos] = 0xE8
		data[pos+1] = byte(target)
		data[pos+2] = byte(target >> 8)
		data[pos+3] = byte(target >> 16)
		data[pos+4] = byte(target >> 24)
	}
	plant(10, 200)
	plant(500, 3000)
	plant(1000, 50)

	roundTripFrames(t, MinWindowBits, [][]byte{data}, true, filesize)
}

func TestE8RewriteIsInvertibleForPlantedCalls(t *testing.T) {
	filesize := uint32(2048)
	buf := make([]byte, 600)
	for i := range buf {
		buf[i] = byte(i)
	}
	buf[50] = 0xE8
	buf[51], buf[52], buf[53], buf[54] = 100, 0, 0, 0 // abs=100, in range

	transformed := e8Transform(buf, 0, filesize)
	back := e8Untransform(transformed, 0, filesize)
	if !bytes.Equal(back, buf) {
		t.Fatalf("e8 round trip mismatch:\n got %v\nwant %v", back, buf)
	}
}

func TestMainTreeSizeMatchesWindowSlots(t *testing.T) {
	for bits, slots := range numPositionSlots {
		want := numChars + slots*8
		if got := mainTreeSize(bits); got != want {
			t.Errorf("mainTreeSize(%d) = %d, want %d", bits, got, want)
		}
	}
}

// Reusing R1 or R2 must swap only that register with R0, leaving the third
// recent-offset register untouched (§4.6). A three-way rotation instead of
// a two-element swap is wrong even though an encoder/decoder pair sharing
// the same wrong transform still round-trips.
func TestRecentOffsetReuseSwapsOnlyTwoRegisters(t *testing.T) {
	d := &Decoder{r0: 100, r1: 200, r2: 300}

	if got, err := d.readOffset(nil, 1, nil); err != nil || got != 200 {
		t.Fatalf("reuse R1: got (%d, %v), want (200, nil)", got, err)
	}
	if d.r0 != 200 || d.r1 != 100 || d.r2 != 300 {
		t.Fatalf("after reuse R1: r0=%d r1=%d r2=%d, want 200,100,300", d.r0, d.r1, d.r2)
	}

	if got, err := d.readOffset(nil, 2, nil); err != nil || got != 300 {
		t.Fatalf("reuse R2: got (%d, %v), want (300, nil)", got, err)
	}
	if d.r0 != 300 || d.r1 != 100 || d.r2 != 200 {
		t.Fatalf("after reuse R2: r0=%d r1=%d r2=%d, want 300,100,200 (R1 must stay untouched)", d.r0, d.r1, d.r2)
	}

	if got, err := d.readOffset(nil, 1, nil); err != nil || got != 100 {
		t.Fatalf("reuse R1 again: got (%d, %v), want (100, nil)", got, err)
	}
	if d.r0 != 100 || d.r1 != 300 || d.r2 != 200 {
		t.Fatalf("after second reuse R1: r0=%d r1=%d r2=%d, want 100,300,200", d.r0, d.r1, d.r2)
	}
}

// advanceCache is the encoder's analogue of readOffset's recent-offset
// bookkeeping and must agree with it exactly.
func TestAdvanceCacheMatchesDecoderSemantics(t *testing.T) {
	r0, r1, r2 := uint32(100), uint32(200), uint32(300)

	r0, r1, r2 = advanceCache(1, 0, r0, r1, r2)
	if r0 != 200 || r1 != 100 || r2 != 300 {
		t.Fatalf("reuse R1: r0=%d r1=%d r2=%d, want 200,100,300", r0, r1, r2)
	}

	r0, r1, r2 = advanceCache(2, 0, r0, r1, r2)
	if r0 != 300 || r1 != 100 || r2 != 200 {
		t.Fatalf("reuse R2: r0=%d r1=%d r2=%d, want 300,100,200 (R1 must stay untouched)", r0, r1, r2)
	}

	r0, r1, r2 = advanceCache(1, 0, r0, r1, r2)
	if r0 != 100 || r1 != 300 || r2 != 200 {
		t.Fatalf("reuse R1 again: r0=%d r1=%d r2=%d, want 100,300,200", r0, r1, r2)
	}
}
