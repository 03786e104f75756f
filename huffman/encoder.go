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

package huffman

import "fmt"

// BitWriter is the minimal interface Encoder needs.
type BitWriter interface {
	WriteBits(value uint32, n uint) error
}

// Encoder assigns canonical codes to a code-length vector and writes
// symbols as LSB-first bit-reversed codes, the mirror image of Table's
// lookup construction.
type Encoder struct {
	lengths []uint8
	codes   []uint16
}

// NewEncoder builds an Encoder from the same code-length vector Table.New
// accepts.
func NewEncoder(lengths []uint8) (*Encoder, error) {
	var maxLen uint8
	blCount := make([]int, MaxBits+1)
	for _, l := range lengths {
		if l == 0 {
			continue
		}
		if int(l) > MaxBits {
			return nil, fmt.Errorf("huffman: code length %d exceeds maximum %d", l, MaxBits)
		}
		blCount[l]++
		if l > maxLen {
			maxLen = l
		}
	}
	codes := make([]uint16, len(lengths))
	if maxLen == 0 {
		return &Encoder{lengths: lengths, codes: codes}, nil
	}

	code := 0
	nextCode := make([]int, maxLen+1)
	for bits := uint8(1); bits <= maxLen; bits++ {
		code = (code + blCount[bits-1]) << 1
		nextCode[bits] = code
	}
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		codes[sym] = uint16(nextCode[l])
		nextCode[l]++
	}
	return &Encoder{lengths: append([]uint8(nil), lengths...), codes: codes}, nil
}

// Encode writes the canonical code for symbol sym to w, LSB-first (i.e.
// bit-reversed relative to the canonical MSB-first assignment), matching
// Table.Decode's expectations.
func (e *Encoder) Encode(w BitWriter, sym int) error {
	l := e.lengths[sym]
	if l == 0 {
		return fmt.Errorf("huffman: symbol %d has no assigned code", sym)
	}
	rev := reverseBits(e.codes[sym], l)
	return w.WriteBits(uint32(rev), uint(l))
}

// Len returns the code length assigned to sym.
func (e *Encoder) Len(sym int) uint8 {
	return e.lengths[sym]
}
