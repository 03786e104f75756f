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
	"fmt"

	"github.com/google/go-msarchive/bitio"
	"github.com/google/go-msarchive/huffman"
)

const pretreeCodeLenBits = 4

// readPretree reads a literal 20-symbol, 4-bit-per-length pretree and
// builds its decode table.
func readPretree(r *bitio.Reader) (*huffman.Table, error) {
	lens := make([]uint8, pretreeElements)
	for i := range lens {
		lens[i] = uint8(r.ReadBits(pretreeCodeLenBits))
	}
	return huffman.New(lens)
}

// writePretree builds a pretree from delta frequencies and writes its
// 4-bit code lengths literally, returning an encoder for it.
func writePretree(w *bitio.Writer, lens []uint8) (*huffman.Encoder, error) {
	for _, l := range lens {
		if err := w.WriteBits(uint32(l), pretreeCodeLenBits); err != nil {
			return nil, err
		}
	}
	return huffman.NewEncoder(lens)
}

// readLengths reads numElements delta-coded lengths (mod 17) against prev,
// using the run-length codes 17/18/19 LZX's pretree protocol defines.
func readLengths(r *bitio.Reader, prev []uint8, numElements int) ([]uint8, error) {
	pretree, err := readPretree(r)
	if err != nil {
		return nil, fmt.Errorf("lzx: reading pretree: %w", err)
	}
	lens := make([]uint8, numElements)
	i := 0
	for i < numElements {
		z, err := pretree.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("lzx: decoding length at %d: %w", i, err)
		}
		switch z {
		case 17:
			run := 4 + int(r.ReadBits(4))
			for k := 0; k < run && i < numElements; k++ {
				lens[i] = 0
				i++
			}
		case 18:
			run := 20 + int(r.ReadBits(5))
			for k := 0; k < run && i < numElements; k++ {
				lens[i] = 0
				i++
			}
		case 19:
			run := 4 + int(r.ReadBits(1))
			y, err := pretree.Decode(r)
			if err != nil {
				return nil, fmt.Errorf("lzx: decoding run value at %d: %w", i, err)
			}
			old := uint8(0)
			if i < len(prev) {
				old = prev[i]
			}
			val := mod17Delta(old, uint8(y))
			for k := 0; k < run && i < numElements; k++ {
				lens[i] = val
				i++
			}
		default:
			old := uint8(0)
			if i < len(prev) {
				old = prev[i]
			}
			lens[i] = mod17Delta(old, uint8(z))
			i++
		}
	}
	return lens, nil
}

func mod17Delta(old, z uint8) uint8 {
	v := int(old) - int(z)
	v %= 17
	if v < 0 {
		v += 17
	}
	return uint8(v)
}

// writeLengths encodes new against prev using per-symbol deltas mod 17,
// one literal pretree code per symbol; the run-length codes 17/18/19 are
// never emitted (valid on the wire, just not maximally compact).
func writeLengths(w *bitio.Writer, prev, new []uint8) error {
	deltas := make([]uint8, len(new))
	freqs := make([]uint32, pretreeElements)
	for i, l := range new {
		old := uint8(0)
		if i < len(prev) {
			old = prev[i]
		}
		d := (int(old) - int(l) + 17*100) % 17
		deltas[i] = uint8(d)
		freqs[d]++
	}
	pretreeLens := huffman.BuildLengths(freqs, 15)
	enc, err := writePretree(w, pretreeLens)
	if err != nil {
		return err
	}
	for _, d := range deltas {
		if err := enc.Encode(w, int(d)); err != nil {
			return err
		}
	}
	return nil
}
