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

// Package lzss implements the MS-DOS-era LZSS variant used by EXPAND.EXE,
// the Windows help compiler, and QBasic's compressed help files: a 4 KB
// circular dictionary LZ77 coder with one control bit per operation. See
// the package's three Mode constants for the dialect differences.
package lzss

import (
	"errors"
	"io"
)

// windowSize is the fixed 4 KB circular dictionary size every dialect
// shares.
const windowSize = 4096

// Mode selects one of the three historical LZSS dialects. They differ only
// in the dictionary's initial write cursor and whether control bytes are
// bit-inverted.
type Mode int

const (
	// EXPAND is the dialect used by Microsoft's EXPAND.EXE / old-style CAB
	// LZSS. Initial write position is window-16; control bytes are used
	// as-is.
	EXPAND Mode = iota
	// MSHELP is used by old Windows .HLP-family compressors. Same initial
	// write position as EXPAND, but control bytes are bit-inverted.
	MSHELP
	// QBASIC is used by QBasic's compressed help files. Initial write
	// position is window-18; control bytes are used as-is.
	QBASIC
)

func (m Mode) initialPos() int {
	switch m {
	case QBASIC:
		return windowSize - 18
	default:
		return windowSize - 16
	}
}

func (m Mode) controlXOR() byte {
	if m == MSHELP {
		return 0xFF
	}
	return 0x00
}

const (
	minMatch = 3
	maxMatch = 18
)

// Decode decompresses r's LZSS stream, appending up to n bytes (or until
// r is exhausted, if n < 0) to the returned byte slice.
func Decode(r io.ByteReader, mode Mode, n int) ([]byte, error) {
	dict := make([]byte, windowSize)
	for i := range dict {
		dict[i] = 0x20
	}
	pos := mode.initialPos()
	xor := mode.controlXOR()

	var out []byte
	emit := func(b byte) {
		out = append(out, b)
		dict[pos] = b
		pos = (pos + 1) % windowSize
	}

	for n < 0 || len(out) < n {
		ctrl, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				break
			}
			return out, err
		}
		ctrl ^= xor
		for bit := 0; bit < 8; bit++ {
			if n >= 0 && len(out) >= n {
				break
			}
			if ctrl&(1<<uint(bit)) != 0 {
				b, err := r.ReadByte()
				if err != nil {
					if err == io.EOF {
						return out, nil
					}
					return out, err
				}
				emit(b)
				continue
			}
			b0, err := r.ReadByte()
			if err != nil {
				if err == io.EOF {
					return out, nil
				}
				return out, err
			}
			b1, err := r.ReadByte()
			if err != nil {
				if err == io.EOF {
					return out, errors.New("lzss: truncated match pair")
				}
				return out, err
			}
			offset := int(b0) | (int(b1&0xF0) << 4)
			length := int(b1&0x0F) + minMatch
			for i := 0; i < length; i++ {
				if n >= 0 && len(out) >= n {
					break
				}
				emit(dict[offset])
				offset = (offset + 1) % windowSize
			}
		}
	}
	return out, nil
}

// Encode compresses src into the LZSS dialect selected by mode.
func Encode(src []byte, mode Mode) []byte {
	dict := make([]byte, windowSize)
	for i := range dict {
		dict[i] = 0x20
	}
	pos := mode.initialPos()
	xor := mode.controlXOR()

	var out []byte
	var ctrlByte byte
	var ctrlBits int
	var pending []byte

	flush := func() {
		if ctrlBits == 0 {
			return
		}
		out = append(out, ctrlByte^xor)
		out = append(out, pending...)
		ctrlByte = 0
		ctrlBits = 0
		pending = nil
	}

	writeLiteral := func(b byte) {
		ctrlByte |= 1 << uint(ctrlBits)
		pending = append(pending, b)
		ctrlBits++
		dict[pos] = b
		pos = (pos + 1) % windowSize
		if ctrlBits == 8 {
			flush()
		}
	}

	writeMatch := func(offset, length int) {
		b0 := byte(offset & 0xFF)
		b1 := byte(((offset>>4)&0xF0) | (length - minMatch))
		pending = append(pending, b0, b1)
		// The control bit for a match stays 0, so only the bit count
		// advances; ctrlByte itself is untouched.
		ctrlBits++
		if ctrlBits == 8 {
			flush()
		}
	}

	i := 0
	for i < len(src) {
		bestLen, bestOff := findMatch(dict, pos, src, i)
		if bestLen >= minMatch {
			writeMatch(bestOff, bestLen)
			for k := 0; k < bestLen; k++ {
				dict[pos] = src[i+k]
				pos = (pos + 1) % windowSize
			}
			i += bestLen
		} else {
			writeLiteral(src[i])
			i++
		}
	}
	flush()
	return out
}

// findMatch searches the entire dictionary for the longest match (3..18
// bytes) against src starting at i, using dict as the window, with curPos
// marking the dictionary's current write cursor (purely informational;
// the search covers the whole window regardless).
func findMatch(dict []byte, curPos int, src []byte, i int) (length, offset int) {
	bestLen := 0
	bestOff := 0
	remaining := len(src) - i
	if remaining < minMatch {
		return 0, 0
	}
	limit := maxMatch
	if remaining < limit {
		limit = remaining
	}
	for off := 0; off < windowSize; off++ {
		l := 0
		for l < limit && dict[(off+l)%windowSize] == src[i+l] {
			l++
		}
		if l > bestLen {
			bestLen = l
			bestOff = off
		}
	}
	return bestLen, bestOff
}
