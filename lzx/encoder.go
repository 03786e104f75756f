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
	"fmt"

	"github.com/google/go-msarchive/bitio"
	"github.com/google/go-msarchive/huffman"
)

const hashMatchMin = 3

// Encoder mirrors Decoder: persistent window history, recent-offset cache
// and per-tree previous code lengths, carried across every frame of one
// folder. Every frame is emitted as a single verbatim block;
// aligned-offset and uncompressed blocks are never produced.
type Encoder struct {
	windowBits int
	windowSize uint32

	r0, r1, r2 uint32

	prevMainLens []uint8
	prevLenLens  []uint8

	history []byte
	hash    map[uint32]int

	e8         bool
	e8Filesize uint32
	headerDone bool
	totalIn    int64
}

// NewEncoder returns an Encoder for one folder. When useE8 is true the x86
// CALL-offset translation pass runs ahead of matching, and filesize bounds
// its predicate exactly as it will for the decoder.
func NewEncoder(windowBits int, useE8 bool, filesize uint32) *Encoder {
	return &Encoder{
		windowBits:   windowBits,
		windowSize:   1 << uint(windowBits),
		r0:           1,
		r1:           1,
		r2:           1,
		prevMainLens: make([]uint8, mainTreeSize(windowBits)),
		prevLenLens:  make([]uint8, lenTreeElements),
		hash:         make(map[uint32]int),
		e8:           useE8,
		e8Filesize:   filesize,
	}
}

// EncodeFrame compresses one frame (up to 32768 bytes) of plaintext,
// returning the LZX bitstream for it.
func (e *Encoder) EncodeFrame(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)

	if !e.headerDone {
		e.headerDone = true
		if e.e8 {
			if err := w.WriteBits(1, 1); err != nil {
				return nil, err
			}
			if err := w.WriteBits(uint32(e.e8Filesize), 16); err != nil {
				return nil, err
			}
			if err := w.WriteBits(uint32(e.e8Filesize>>16), 16); err != nil {
				return nil, err
			}
		} else if err := w.WriteBits(0, 1); err != nil {
			return nil, err
		}
	}

	transformed := plain
	if e.e8 {
		transformed = e8Transform(plain, e.totalIn, e.e8Filesize)
	}
	e.totalIn += int64(len(plain))

	tokens, mainFreqs, lenFreqs := e.tokenize(transformed)

	if err := w.WriteBits(uint32(blockVerbatim), 3); err != nil {
		return nil, err
	}
	size := uint32(len(transformed))
	if err := w.WriteBits(size>>8, 16); err != nil {
		return nil, err
	}
	if err := w.WriteBits(size&0xff, 8); err != nil {
		return nil, err
	}

	mainLens := huffman.BuildLengths(mainFreqs, huffman.MaxBits)
	lenLens := huffman.BuildLengths(lenFreqs, huffman.MaxBits)

	if err := writeLengths(w, e.prevMainLens[:numChars], mainLens[:numChars]); err != nil {
		return nil, fmt.Errorf("lzx: writing main literal lengths: %w", err)
	}
	if err := writeLengths(w, e.prevMainLens[numChars:], mainLens[numChars:]); err != nil {
		return nil, fmt.Errorf("lzx: writing main slot lengths: %w", err)
	}
	if err := writeLengths(w, e.prevLenLens, lenLens); err != nil {
		return nil, fmt.Errorf("lzx: writing length tree lengths: %w", err)
	}
	e.prevMainLens = mainLens
	e.prevLenLens = lenLens

	mainEnc, err := huffman.NewEncoder(mainLens)
	if err != nil {
		return nil, fmt.Errorf("lzx: main encoder: %w", err)
	}
	lenEnc, err := huffman.NewEncoder(lenLens)
	if err != nil {
		return nil, fmt.Errorf("lzx: length encoder: %w", err)
	}

	for _, t := range tokens {
		if t.isLiteral {
			if err := mainEnc.Encode(w, int(t.literal)); err != nil {
				return nil, err
			}
			continue
		}
		header := t.length - minMatchLen
		if header > numPrimaryLens {
			header = numPrimaryLens
		}
		mainSym := numChars + t.slot*8 + header
		if err := mainEnc.Encode(w, mainSym); err != nil {
			return nil, err
		}
		if header == numPrimaryLens {
			lsym := t.length - minMatchLen - numPrimaryLens
			if err := lenEnc.Encode(w, lsym); err != nil {
				return nil, err
			}
		}
		if t.slot >= 3 {
			if err := w.WriteBits(t.footer, uint(extraBits[t.slot])); err != nil {
				return nil, err
			}
		}
	}

	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type token struct {
	isLiteral bool
	literal   byte
	length    int
	slot      int
	footer    uint32
}

// tokenize greedily LZ-parses data (already E8-transformed) against the
// cumulative history, using a single-candidate 3-byte hash chain for match
// finding: fast enough for folder-sized inputs without the O(n*window)
// blowup of a brute-force scan.
func (e *Encoder) tokenize(data []byte) ([]token, []uint32, []uint32) {
	base := len(e.history)
	full := append(e.history, data...)

	mainFreqs := make([]uint32, mainTreeSize(e.windowBits))
	lenFreqs := make([]uint32, lenTreeElements)
	var tokens []token

	i := base
	for i < len(full) {
		length, offset := 0, uint32(0)
		if i+hashMatchMin <= len(full) {
			h := hash3(full[i:])
			if cand, ok := e.hash[h]; ok {
				d := uint32(i - cand)
				if d >= 1 && d < e.windowSize {
					length = matchLen(full, cand, i)
					offset = d
				}
			}
		}

		var slot int
		var footer uint32
		ok := false
		if length >= hashMatchMin {
			slot, footer, ok = e.resolveOffset(offset)
		}

		if ok {
			e.insertHashes(full, i, length)
			i += length
			e.r0, e.r1, e.r2 = advanceCache(slot, offset, e.r0, e.r1, e.r2)

			header := length - minMatchLen
			if header >= numPrimaryLens {
				header = numPrimaryLens
				lenFreqs[length-minMatchLen-numPrimaryLens]++
			}
			mainFreqs[numChars+slot*8+header]++
			tokens = append(tokens, token{length: length, slot: slot, footer: footer})
		} else {
			if i+hashMatchMin <= len(full) {
				e.hash[hash3(full[i:])] = i
			}
			mainFreqs[full[i]]++
			tokens = append(tokens, token{isLiteral: true, literal: full[i]})
			i++
		}
	}

	e.history = full
	return tokens, mainFreqs, lenFreqs
}

func (e *Encoder) insertHashes(full []byte, start, length int) {
	end := start + length
	for p := start; p < end && p+hashMatchMin <= len(full); p++ {
		e.hash[hash3(full[p:])] = p
	}
}

func hash3(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func matchLen(full []byte, cand, cur int) int {
	n := 0
	for cur+n < len(full) && n < maxMatchLen && full[cand+n] == full[cur+n] {
		n++
	}
	return n
}

// resolveOffset maps a raw byte offset to a position slot, preferring a
// recent-offset cache hit. Offsets of 1 or 2 that are not already cached
// have no representable slot (slots 0-2 are reserved for the cache), so
// those calls report ok=false and the caller must fall back to a literal.
func (e *Encoder) resolveOffset(offset uint32) (slot int, footer uint32, ok bool) {
	switch offset {
	case e.r0:
		return 0, 0, true
	case e.r1:
		return 1, 0, true
	case e.r2:
		return 2, 0, true
	}
	if offset < 3 {
		return 0, 0, false
	}
	numSlots := numPositionSlots[e.windowBits]
	for s := numSlots - 1; s >= 3; s-- {
		if offset >= positionBase[s] {
			return s, offset - positionBase[s], true
		}
	}
	return 0, 0, false
}

func advanceCache(slot int, newOffset, r0, r1, r2 uint32) (uint32, uint32, uint32) {
	switch slot {
	case 0:
		return r0, r1, r2
	case 1:
		return r1, r0, r2
	case 2:
		return r2, r1, r0
	default:
		return newOffset, r0, r1
	}
}
