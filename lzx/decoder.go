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

// Package lzx implements the LZX compression codec: a 15-to-21-bit sliding
// window LZ77 scheme with three canonical Huffman trees (main, length and
// aligned-offset), a three-entry recent-match-offset cache, and an optional
// x86 CALL-offset translation pass. The encoder emits one block per CAB data
// frame (32768 uncompressed bytes, save for a final short frame); the
// decoder accepts any number of blocks within a frame.
package lzx

import (
	"bytes"
	"fmt"

	"github.com/google/go-msarchive/bitio"
	"github.com/google/go-msarchive/huffman"
)

// ErrInvalidStream reports malformed LZX block structure.
type ErrInvalidStream struct {
	Reason string
}

func (e *ErrInvalidStream) Error() string { return "lzx: invalid stream: " + e.Reason }

// Decoder holds the state that must persist across an entire folder's worth
// of frames: the sliding window, the three recent match offsets, and the
// previous block's tree code lengths (the delta base for the next block's
// pretree-coded lengths).
type Decoder struct {
	windowBits int
	win        *window

	r0, r1, r2 uint32

	prevMainLens []uint8
	prevLenLens  []uint8

	e8HeaderRead bool
	e8           bool
	e8Filesize   uint32
	totalOut     int64
}

// NewDecoder returns a Decoder for a folder using the given LZX window size
// (15..21 bits per §5).
func NewDecoder(windowBits int) *Decoder {
	return &Decoder{
		windowBits:   windowBits,
		win:          newWindow(windowBits),
		r0:           1,
		r1:           1,
		r2:           1,
		prevMainLens: make([]uint8, mainTreeSize(windowBits)),
		prevLenLens:  make([]uint8, lenTreeElements),
	}
}

// DecodeFrame decodes one CFDATA frame's worth of LZX-compressed bytes,
// carrying window and tree state forward from the previous call.
// uncompSize bounds how many bytes this frame must produce.
func (d *Decoder) DecodeFrame(compressed []byte, uncompSize int) ([]byte, error) {
	r := bitio.NewReader(bytes.NewReader(compressed))

	if !d.e8HeaderRead {
		d.e8HeaderRead = true
		if r.ReadBits(1) != 0 {
			d.e8 = true
			d.e8Filesize = r.ReadBits(16) | r.ReadBits(16)<<16
		}
	}

	out := make([]byte, 0, uncompSize)
	for len(out) < uncompSize {
		chunk, err := d.decodeBlock(r, uncompSize-len(out))
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return nil, &ErrInvalidStream{Reason: "block produced no bytes"}
		}
		out = append(out, chunk...)
	}

	if d.e8 {
		out = e8Untransform(out, d.totalOut, d.e8Filesize)
	}
	d.totalOut += int64(len(out))
	return out, nil
}

func (d *Decoder) decodeBlock(r *bitio.Reader, maxBytes int) ([]byte, error) {
	bt := blockType(r.ReadBits(3))
	blockSize := int(r.ReadBits(16)<<8 | r.ReadBits(8))
	if blockSize > maxBytes {
		blockSize = maxBytes
	}

	switch bt {
	case blockUncompEntry:
		return d.decodeUncompressed(r, blockSize)
	case blockVerbatim:
		return d.decodeCompressed(r, blockSize, false)
	case blockAligned:
		return d.decodeCompressed(r, blockSize, true)
	default:
		return nil, &ErrInvalidStream{Reason: fmt.Sprintf("unknown block type %d", bt)}
	}
}

func (d *Decoder) decodeUncompressed(r *bitio.Reader, blockSize int) ([]byte, error) {
	r.ByteAlign()
	d.r0 = r.ReadUint32LE()
	d.r1 = r.ReadUint32LE()
	d.r2 = r.ReadUint32LE()

	out := make([]byte, blockSize)
	for i := range out {
		out[i] = byte(r.ReadBits(8))
		d.win.put(out[i])
	}
	if blockSize%2 != 0 {
		r.ReadBits(8) // padding byte to keep the stream word-aligned
	}
	return out, nil
}

func (d *Decoder) decodeCompressed(r *bitio.Reader, blockSize int, aligned bool) ([]byte, error) {
	var alignedTree *huffman.Table
	if aligned {
		lens := make([]uint8, alignedElements)
		for i := range lens {
			lens[i] = uint8(r.ReadBits(3))
		}
		var err error
		alignedTree, err = huffman.New(lens)
		if err != nil {
			return nil, fmt.Errorf("lzx: aligned tree: %w", err)
		}
	}

	mainLens, err := d.readMainTree(r)
	if err != nil {
		return nil, err
	}
	mainTree, err := huffman.New(mainLens)
	if err != nil {
		return nil, fmt.Errorf("lzx: main tree: %w", err)
	}
	d.prevMainLens = mainLens

	lenLens, err := readLengths(r, d.prevLenLens, lenTreeElements)
	if err != nil {
		return nil, fmt.Errorf("lzx: length tree: %w", err)
	}
	lengthTree, err := huffman.New(lenLens)
	if err != nil {
		return nil, fmt.Errorf("lzx: length tree table: %w", err)
	}
	d.prevLenLens = lenLens

	out := make([]byte, 0, blockSize)
	for len(out) < blockSize {
		sym, err := mainTree.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("lzx: main symbol: %w", err)
		}
		if sym < numChars {
			b := byte(sym)
			d.win.put(b)
			out = append(out, b)
			continue
		}

		matchSym := int(sym) - numChars
		slot := matchSym / 8
		header := matchSym % 8

		length := minMatchLen + header
		if header == numPrimaryLens {
			lsym, err := lengthTree.Decode(r)
			if err != nil {
				return nil, fmt.Errorf("lzx: length symbol: %w", err)
			}
			length = minMatchLen + numPrimaryLens + int(lsym)
		}

		offset, err := d.readOffset(r, slot, alignedTree)
		if err != nil {
			return nil, err
		}
		if offset <= 0 || offset > d.win.size {
			return nil, &ErrInvalidStream{Reason: "match offset exceeds available window"}
		}

		remaining := blockSize - len(out)
		if length > remaining {
			length = remaining
		}
		out = append(out, d.win.copyMatch(offset, length)...)
	}
	return out, nil
}

func (d *Decoder) readMainTree(r *bitio.Reader) ([]uint8, error) {
	size := mainTreeSize(d.windowBits)
	prevLit := d.prevMainLens[:numChars]
	lit, err := readLengths(r, prevLit, numChars)
	if err != nil {
		return nil, fmt.Errorf("lzx: main literal lengths: %w", err)
	}
	prevSlot := d.prevMainLens[numChars:]
	slot, err := readLengths(r, prevSlot, size-numChars)
	if err != nil {
		return nil, fmt.Errorf("lzx: main slot lengths: %w", err)
	}
	return append(lit, slot...), nil
}

func (d *Decoder) readOffset(r *bitio.Reader, slot int, alignedTree *huffman.Table) (int, error) {
	switch slot {
	case 0:
		return int(d.r0), nil
	case 1:
		d.r1, d.r0 = d.r0, d.r1
		return int(d.r0), nil
	case 2:
		d.r0, d.r2 = d.r2, d.r0
		return int(d.r0), nil
	}

	footer := extraBits[slot]
	var value uint32
	if alignedTree != nil && footer >= 3 {
		hi := r.ReadBits(uint(footer) - 3)
		lo, err := alignedTree.Decode(r)
		if err != nil {
			return 0, fmt.Errorf("lzx: aligned offset symbol: %w", err)
		}
		value = positionBase[slot] + (hi << 3) + uint32(lo)
	} else {
		value = positionBase[slot] + r.ReadBits(uint(footer))
	}

	d.r2, d.r1, d.r0 = d.r1, d.r0, value
	return int(value), nil
}
