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

// Package huffman builds canonical Huffman decode tables from code-length
// vectors, the shared primitive LZX's three trees (and, in principle, a
// from-scratch DEFLATE table) are built on.
package huffman

import (
	"errors"
	"fmt"
)

// MaxBits is the longest code length this package supports. LZX trees never
// exceed 16; DEFLATE trees never exceed 15.
const MaxBits = 16

// Table is a canonical Huffman decode table: a direct lookup indexed by the
// next MaxLen() bits of the stream, built from a vector of per-symbol code
// lengths (0 meaning "symbol unused").
type Table struct {
	lengths []uint8
	// lookup[bits] gives (symbol, length) for every possible maxLen-wide
	// bit pattern whose prefix matches a valid code.
	lookup []entry
	maxLen uint8
}

type entry struct {
	symbol int32
	length uint8
}

// ErrOverSubscribed is returned when a code-length vector does not form a
// valid (non-oversubscribed) canonical Huffman code.
var ErrOverSubscribed = errors.New("huffman: code lengths are over-subscribed")

// New builds a canonical Huffman Table from lengths, where lengths[i] is
// the bit length of symbol i's code (0 = symbol not present). This is the
// standard RFC 1951 §3.2.2 construction: codes of equal length are
// consecutive integers assigned in order of increasing symbol value, and
// codes are packed from shortest to longest length.
func New(lengths []uint8) (*Table, error) {
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
	if maxLen == 0 {
		return &Table{lengths: lengths, lookup: make([]entry, 1<<MaxBits), maxLen: 0}, nil
	}

	code := 0
	nextCode := make([]int, maxLen+1)
	for bits := uint8(1); bits <= maxLen; bits++ {
		code = (code + blCount[bits-1]) << 1
		nextCode[bits] = code
	}

	lookupSize := 1 << maxLen
	lookup := make([]entry, lookupSize)
	for i := range lookup {
		lookup[i] = entry{symbol: -1}
	}

	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		c := nextCode[l]
		nextCode[l]++
		if c >= (1 << l) {
			return nil, ErrOverSubscribed
		}
		// Canonical codes are assigned MSB-first; our bitstreams deliver
		// bits LSB-first, so the lookup table is indexed by the
		// bit-reversed code, replicated across the unused high bits.
		rev := reverseBits(uint16(c), l)
		step := uint16(1) << l
		for idx := rev; int(idx) < lookupSize; idx += step {
			lookup[idx] = entry{symbol: int32(sym), length: l}
		}
	}

	return &Table{lengths: append([]uint8(nil), lengths...), lookup: lookup, maxLen: maxLen}, nil
}

func reverseBits(v uint16, n uint8) uint16 {
	var r uint16
	for i := uint8(0); i < n; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}

// MaxLen returns the longest code length present in the table (0 if the
// table is empty).
func (t *Table) MaxLen() uint8 {
	return t.maxLen
}

// BitReader is the minimal interface Decode needs: peeking and consuming
// LSB-first bits. bitio.Reader satisfies it.
type BitReader interface {
	PeekBits(n uint) uint32
	SkipBits(n uint)
}

// Decode reads one symbol from r using the table and returns it. It
// returns an error if the peeked bits don't match any
// assigned code (over-long code at logical EOF, or a corrupt stream).
func (t *Table) Decode(r BitReader) (int32, error) {
	if t.maxLen == 0 {
		return 0, errors.New("huffman: decode from an empty table")
	}
	idx := r.PeekBits(uint(t.maxLen))
	e := t.lookup[idx]
	if e.symbol < 0 {
		return 0, errors.New("huffman: invalid code")
	}
	r.SkipBits(uint(e.length))
	return e.symbol, nil
}

// FixedDeflateLiteralLengths returns the fixed (block-type-1) DEFLATE
// literal/length code-length vector defined by RFC 1951 §3.2.6: 288
// symbols, lengths 8/9/7/8 across the four sub-ranges.
func FixedDeflateLiteralLengths() []uint8 {
	lens := make([]uint8, 288)
	for i := 0; i < 144; i++ {
		lens[i] = 8
	}
	for i := 144; i < 256; i++ {
		lens[i] = 9
	}
	for i := 256; i < 280; i++ {
		lens[i] = 7
	}
	for i := 280; i < 288; i++ {
		lens[i] = 8
	}
	return lens
}

// FixedDeflateDistanceLengths returns the fixed DEFLATE distance code-length
// vector: 30 symbols, all 5 bits.
func FixedDeflateDistanceLengths() []uint8 {
	lens := make([]uint8, 30)
	for i := range lens {
		lens[i] = 5
	}
	return lens
}
