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

import "io"

// MSBReader is the MSB-first bit reader Quantum frames use. It refills its
// 32-bit accumulator in 16-bit little-endian words; bits are always
// consumed from the top (most significant end) of the accumulator, so a
// word's high bit is the first bit that comes out of it.
type MSBReader struct {
	r        io.Reader
	acc      uint32
	nbit     uint // number of valid bits, held left-justified in acc
	consumed uint // total bits consumed so far, for word alignment
	eof      bool
}

// NewMSBReader returns a Quantum-style MSB-first Reader over r.
func NewMSBReader(r io.Reader) *MSBReader {
	return &MSBReader{r: r}
}

func (r *MSBReader) nextWord() uint32 {
	if r.eof {
		return 0
	}
	var b [2]byte
	n, _ := io.ReadFull(r.r, b[:])
	switch n {
	case 2:
		return uint32(b[0]) | uint32(b[1])<<8
	case 1:
		r.eof = true
		return uint32(b[0])
	default:
		r.eof = true
		return 0
	}
}

func (r *MSBReader) refill() {
	for r.nbit <= 16 {
		word := r.nextWord()
		r.acc |= word << (16 - r.nbit)
		r.nbit += 16
	}
}

// ReadBits reads and consumes the next n bits (1 <= n <= 16) from the top
// of the accumulator.
func (r *MSBReader) ReadBits(n uint) uint16 {
	v := r.PeekBits(n)
	r.SkipBits(n)
	return v
}

// PeekBits returns the next n bits (1 <= n <= 16) without consuming them.
func (r *MSBReader) PeekBits(n uint) uint16 {
	if n == 0 {
		return 0
	}
	r.refill()
	return uint16(r.acc >> (32 - n))
}

// SkipBits discards n already-available bits.
func (r *MSBReader) SkipBits(n uint) {
	if n == 0 {
		return
	}
	r.refill()
	r.acc <<= n
	r.nbit -= n
	r.consumed += n
}

// ByteAlign rounds up to the next 16-bit word boundary, which is the unit
// Quantum's bit reader refills in.
func (r *MSBReader) ByteAlign() {
	frac := r.consumed % 16
	if frac != 0 {
		r.SkipBits(16 - frac)
	}
}

// LoadCode16 reads the next 16 MSB-first bits, exactly as ReadBits(16)
// does; used once, at frame start, to load Quantum's initial
// arithmetic-coder code register.
func (r *MSBReader) LoadCode16() uint16 {
	return r.ReadBits(16)
}
