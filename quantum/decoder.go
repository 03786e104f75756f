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
	"fmt"

	"github.com/google/go-msarchive/bitio"
)

// ErrInvalidStream reports a Quantum bitstream that decodes to a
// self-contradictory state (a length or position symbol outside its table,
// or a match that reaches before the start of the window).
type ErrInvalidStream struct {
	Reason string
}

func (e *ErrInvalidStream) Error() string {
	return fmt.Sprintf("quantum: invalid stream: %s", e.Reason)
}

// Decoder holds the state Quantum carries across every frame of one folder:
// the match window, the four context-selected literal models, the selector
// model, the three match-offset models and the shared length model, plus the
// previous output byte used to pick a literal model. Only the arithmetic
// coder's own registers reset every frame; everything here persists.
type Decoder struct {
	windowBits int
	win        *window

	litModels [numLiteralModels]*model
	selector  *model
	posModels [3]*model
	lenModel  *model

	prevByte   byte
	headerRead bool
}

// NewDecoder returns a Decoder for a folder compressed with the given window
// size in bits (10..21).
func NewDecoder(windowBits int) *Decoder {
	d := &Decoder{
		windowBits: windowBits,
		win:        newWindow(windowBits),
		selector:   newModel(selectorSymbols),
		lenModel:   newModel(len(lengthBase)),
	}
	for i := range d.litModels {
		d.litModels[i] = newModel(literalSymbols)
	}
	for i := range d.posModels {
		d.posModels[i] = newModel(posModelSize(windowBits, i))
	}
	return d
}

// DecodeFrame decodes one frame's worth (uncompSize bytes, at most 32768) of
// plaintext from compressed, a single arithmetic-coded bitstream.
func (d *Decoder) DecodeFrame(compressed []byte, uncompSize int) ([]byte, error) {
	r := bitio.NewMSBReader(bytes.NewReader(compressed))

	if !d.headerRead {
		d.headerRead = true
		r.ReadBits(1) // reserved; §4.7 assigns it no meaning here
	}

	ac := newArithDecoder(r)
	out := make([]byte, 0, uncompSize)

	for len(out) < uncompSize {
		sel, err := d.selector.decode(ac)
		if err != nil {
			return nil, err
		}

		if sel < numLiteralModels {
			ctx := (d.prevByte >> 6) & 3
			sym, err := d.litModels[ctx].decode(ac)
			if err != nil {
				return nil, err
			}
			b := byte(sym)
			d.win.put(b)
			out = append(out, b)
			d.prevByte = b
			continue
		}

		category := int(sel) - numLiteralModels
		lsym, err := d.lenModel.decode(ac)
		if err != nil {
			return nil, err
		}
		if int(lsym) >= len(lengthBase) {
			return nil, &ErrInvalidStream{Reason: "length symbol out of range"}
		}
		length := int(lengthBase[lsym])
		if extra := lengthExtra[lsym]; extra > 0 {
			bits, err := ac.decodeBits(uint(extra))
			if err != nil {
				return nil, err
			}
			length += int(bits)
		}

		slotSym, err := d.posModels[category].decode(ac)
		if err != nil {
			return nil, err
		}
		if int(slotSym) >= len(posSlotBase) {
			return nil, &ErrInvalidStream{Reason: "position slot out of range"}
		}
		offsetExtra := uint32(0)
		if extra := posSlotExtra[slotSym]; extra > 0 {
			bits, err := ac.decodeBits(uint(extra))
			if err != nil {
				return nil, err
			}
			offsetExtra = bits
		}
		offset := int(posSlotBase[slotSym]) + int(offsetExtra) + 1

		if offset <= 0 || offset > d.win.size {
			return nil, &ErrInvalidStream{Reason: "match offset exceeds available window"}
		}
		if len(out)+length > uncompSize {
			length = uncompSize - len(out)
		}
		matched := d.win.copyMatch(offset, length)
		out = append(out, matched...)
		if length > 0 {
			d.prevByte = matched[len(matched)-1]
		}
	}

	return out, nil
}
