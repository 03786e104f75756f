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

	"github.com/google/go-msarchive/bitio"
)

const matchMin = minMatchLen

// Encoder mirrors Decoder: same persistent models and window-size bound,
// carried across every frame of one folder. Matching works the same way as
// lzx's encoder, a single-candidate 3-byte hash lookup into the cumulative
// plaintext history.
type Encoder struct {
	windowBits int
	windowSize int

	litModels [numLiteralModels]*model
	selector  *model
	posModels [3]*model
	lenModel  *model

	prevByte byte

	history []byte
	hash    map[uint32]int

	headerDone bool
}

// NewEncoder returns an Encoder for one folder compressed at the given
// window size in bits (10..21).
func NewEncoder(windowBits int) *Encoder {
	e := &Encoder{
		windowBits: windowBits,
		windowSize: 1 << uint(windowBits),
		selector:   newModel(selectorSymbols),
		lenModel:   newModel(len(lengthBase)),
		hash:       make(map[uint32]int),
	}
	for i := range e.litModels {
		e.litModels[i] = newModel(literalSymbols)
	}
	for i := range e.posModels {
		e.posModels[i] = newModel(posModelSize(windowBits, i))
	}
	return e
}

// EncodeFrame compresses one frame (up to 32768 bytes) of plaintext into a
// single arithmetic-coded bitstream.
func (e *Encoder) EncodeFrame(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := bitio.NewMSBWriter(&buf)

	if !e.headerDone {
		e.headerDone = true
		if err := w.WriteBits(0, 1); err != nil {
			return nil, err
		}
	}

	ac := newArithEncoder(w)
	base := len(e.history)
	full := append(e.history, plain...)

	i := base
	for i < len(full) {
		length, offset := 0, 0
		if i+matchMin <= len(full) {
			h := hash3(full[i:])
			if cand, ok := e.hash[h]; ok {
				d := i - cand
				if d >= 1 && d <= e.windowSize {
					length = matchLen(full, cand, i)
					offset = d
				}
			}
		}

		var slot, category int
		var extraVal uint32
		ok := false
		if length >= matchMin {
			slot, category, extraVal, ok = e.resolveMatch(offset)
		}

		if ok {
			e.insertHashes(full, i, length)

			selSym := uint16(numLiteralModels + category)
			if err := e.selector.encode(ac, selSym); err != nil {
				return nil, err
			}

			header, lenExtraBits, lenExtraVal := lengthSymbol(length)
			if err := e.lenModel.encode(ac, header); err != nil {
				return nil, err
			}
			if lenExtraBits > 0 {
				if err := ac.encodeBits(lenExtraVal, uint(lenExtraBits)); err != nil {
					return nil, err
				}
			}

			if err := e.posModels[category].encode(ac, uint16(slot)); err != nil {
				return nil, err
			}
			if extra := posSlotExtra[slot]; extra > 0 {
				if err := ac.encodeBits(extraVal, uint(extra)); err != nil {
					return nil, err
				}
			}

			e.prevByte = full[i+length-1]
			i += length
			continue
		}

		if i+matchMin <= len(full) {
			e.hash[hash3(full[i:])] = i
		}
		ctx := (e.prevByte >> 6) & 3
		if err := e.selector.encode(ac, uint16(ctx)); err != nil {
			return nil, err
		}
		if err := e.litModels[ctx].encode(ac, uint16(full[i])); err != nil {
			return nil, err
		}
		e.prevByte = full[i]
		i++
	}

	if err := ac.finish(); err != nil {
		return nil, err
	}
	if err := w.ByteAlign(); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	e.history = full
	return buf.Bytes(), nil
}

func (e *Encoder) insertHashes(full []byte, start, length int) {
	end := start + length
	for p := start; p < end && p+matchMin <= len(full); p++ {
		e.hash[hash3(full[p:])] = p
	}
}

func hash3(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func matchLen(full []byte, cand, cur int) int {
	n := 0
	for cur+n < len(full) && n < maxRepresentableLength && full[cand+n] == full[cur+n] {
		n++
	}
	return n
}

// lengthSymbol maps a match length to the length model's symbol plus any
// raw extra-bit value lengthBase/lengthExtra demand.
func lengthSymbol(length int) (sym uint16, extraBits uint8, extraVal uint32) {
	for s := len(lengthBase) - 1; s >= 0; s-- {
		if uint32(length) >= lengthBase[s] {
			extraBits = lengthExtra[s]
			extraVal = uint32(length) - lengthBase[s]
			if extraBits == 0 || extraVal < (uint32(1)<<extraBits) {
				return uint16(s), extraBits, extraVal
			}
		}
	}
	return 0, lengthExtra[0], uint32(length) - lengthBase[0]
}

// resolveMatch maps a raw byte offset to a (slot, category, extra) triple,
// choosing the smallest-capacity position model that can represent the
// slot. It reports ok=false when the offset exceeds what
// any of the three models can carry (caller falls back to a literal).
func (e *Encoder) resolveMatch(offset int) (slot, category int, extraVal uint32, ok bool) {
	v := uint32(offset - 1)
	s := 0
	for i := len(posSlotBase) - 1; i >= 0; i-- {
		if v >= posSlotBase[i] {
			s = i
			break
		}
	}
	extraVal = v - posSlotBase[s]
	if extra := posSlotExtra[s]; extra > 0 && extraVal >= (uint32(1)<<extra) {
		return 0, 0, 0, false
	}
	for cat := 0; cat < 3; cat++ {
		if s < posModelSize(e.windowBits, cat) {
			return s, cat, extraVal, true
		}
	}
	return 0, 0, 0, false
}
