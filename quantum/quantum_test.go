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

package quantum

import (
	"bytes"
	"testing"
)

// lcg generates n deterministic pseudo-random bytes from seed, avoiding any
// dependency on math/rand's specific algorithm.
func lcg(n int, seed uint32) []byte {
	out := make([]byte, n)
	x := seed
	for i := range out {
		x = x*1664525 + 1013904223
		out[i] = byte(x >> 24)
	}
	return out
}

func roundTripFrames(t *testing.T, windowBits int, frames [][]byte) {
	t.Helper()
	enc := NewEncoder(windowBits)
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
			t.Fatalf("frame %d: round trip mismatch: got %d bytes, want %d bytes", i, len(got), len(plain))
		}
	}
}

func TestEmptyFrame(t *testing.T) {
	roundTripFrames(t, 15, [][]byte{{}})
}

func TestSingleByteFrame(t *testing.T) {
	roundTripFrames(t, 15, [][]byte{{0x42}})
}

func TestPseudoRandom8KRoundTrip(t *testing.T) {
	roundTripFrames(t, 15, [][]byte{lcg(8192, 7)})
}

func TestRepeatingPatternRoundTrip(t *testing.T) {
	pattern := []byte("ABC")
	var buf bytes.Buffer
	for buf.Len() < 65536 {
		buf.Write(pattern)
	}
	roundTripFrames(t, 16, [][]byte{buf.Bytes()[:65536]})
}

func TestABCRepeat100K(t *testing.T) {
	pattern := []byte("ABC")
	var buf bytes.Buffer
	for buf.Len() < 100000 {
		buf.Write(pattern)
	}
	data := buf.Bytes()[:100000]

	var frames [][]byte
	for len(data) > 0 {
		n := frameSize
		if n > len(data) {
			n = len(data)
		}
		frames = append(frames, data[:n])
		data = data[n:]
	}
	roundTripFrames(t, 16, frames)
}

func TestMultiFrameCarriesStateAcrossBlocks(t *testing.T) {
	frames := [][]byte{
		lcg(5000, 11),
		bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 100),
		lcg(777, 22),
	}
	roundTripFrames(t, 15, frames)
}

func TestEnglishTextRoundTrip(t *testing.T) {
	text := bytes.Repeat([]byte(
		"In a hole in the ground there lived a hobbit. Not a nasty, dirty, "+
			"wet hole, filled with the ends of worms and an oozy smell. "), 200)
	roundTripFrames(t, 15, [][]byte{text})
}

func TestMinWindowBitsRoundTrip(t *testing.T) {
	roundTripFrames(t, MinWindowBits, [][]byte{lcg(2048, 3)})
}

// TestModelStability exercises the arithmetic-coder stability property: a
// model's frequencies stay positive, sorted descending with stable ties,
// and the summed total stays within bounds no matter how many symbols pass
// through it.
func TestModelStability(t *testing.T) {
	m := newModel(16)
	for i := 0; i < 10000; i++ {
		sym := uint16(i % 16)
		idx, _, ok := m.find(sym)
		if !ok {
			t.Fatalf("symbol %d missing from model", sym)
		}
		m.update(idx)

		var sum uint32
		for j, f := range m.freq {
			if f == 0 {
				t.Fatalf("iteration %d: symbol %d has zero frequency", i, m.syms[j])
			}
			if j > 0 && m.freq[j] > m.freq[j-1] {
				t.Fatalf("iteration %d: frequencies not sorted descending at index %d", i, j)
			}
			sum += f
		}
		if sum != m.total {
			t.Fatalf("iteration %d: total %d does not match summed frequencies %d", i, m.total, sum)
		}
		if m.total > maxTotalFreq {
			t.Fatalf("iteration %d: total %d exceeds maxTotalFreq", i, m.total)
		}
	}
}

func TestLengthSymbolRoundTrip(t *testing.T) {
	for length := minMatchLen; length <= maxRepresentableLength; length++ {
		sym, extraBits, extraVal := lengthSymbol(length)
		if int(sym) >= len(lengthBase) {
			t.Fatalf("length %d: symbol %d out of range", length, sym)
		}
		got := int(lengthBase[sym]) + int(extraVal)
		if got != length {
			t.Fatalf("length %d: reconstructed %d (sym=%d extraBits=%d extraVal=%d)", length, got, sym, extraBits, extraVal)
		}
	}
}
