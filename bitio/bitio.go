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

// Package bitio provides the two bitstream disciplines the MS-family
// compression codecs need: an LSB-first reader/writer (used by MSZIP and
// LZX) and an MSB-first, 16-bit-word-refilling reader/writer (used by
// Quantum).
package bitio

import "io"

// maxBits is the largest bit count any single read_bits/write_bits call may
// request, per the BitIO contract.
const maxBits = 32

// Reader is an LSB-first bit reader over an underlying byte stream. The
// first byte's bit 0 is the first bit read. Reads past logical EOF return
// zero-valued bits instead of failing, so a caller can drain a DEFLATE-style
// stream through its final partial byte without special-casing EOF.
type Reader struct {
	r    io.Reader
	acc  uint64
	nbit uint
	eof  bool
	buf  [1]byte
}

// NewReader returns an LSB-first Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) fill(need uint) {
	for r.nbit < need && r.nbit+8 <= 64 {
		if r.eof {
			r.acc |= 0 // zero-padding; nothing to OR in
			r.nbit += 8
			continue
		}
		n, err := r.r.Read(r.buf[:])
		if n == 0 {
			r.eof = true
			if err != nil && err != io.EOF {
				// Non-EOF read errors still degrade to zero-padding per the
				// BitIO contract (§4.1): only the block reader distinguishes
				// truncation from legitimate end-of-stream.
			}
			continue
		}
		r.acc |= uint64(r.buf[0]) << r.nbit
		r.nbit += 8
	}
}

// ReadBits reads the next n bits (1 <= n <= 32) and consumes them.
func (r *Reader) ReadBits(n uint) uint32 {
	v := r.PeekBits(n)
	r.SkipBits(n)
	return v
}

// PeekBits returns the next n bits (1 <= n <= 32) without consuming them.
func (r *Reader) PeekBits(n uint) uint32 {
	if n == 0 {
		return 0
	}
	if n > maxBits {
		n = maxBits
	}
	r.fill(n)
	mask := uint64(1)<<n - 1
	return uint32(r.acc & mask)
}

// SkipBits discards n already-buffered-or-fetched bits.
func (r *Reader) SkipBits(n uint) {
	if n > maxBits {
		n = maxBits
	}
	r.fill(n)
	r.acc >>= n
	r.nbit -= n
}

// ByteAlign discards the 0-7 fractional bits remaining before the next byte
// boundary.
func (r *Reader) ByteAlign() {
	frac := r.nbit % 8
	if frac != 0 {
		r.SkipBits(frac)
	}
}

// ReadUint16LE byte-aligns, then reads a little-endian uint16 as two 8-bit
// reads through the bit accumulator, which holds bytes in stream order.
func (r *Reader) ReadUint16LE() uint16 {
	r.ByteAlign()
	lo := r.ReadBits(8)
	hi := r.ReadBits(8)
	return uint16(lo) | uint16(hi)<<8
}

// ReadUint32LE byte-aligns, then reads a little-endian uint32.
func (r *Reader) ReadUint32LE() uint32 {
	r.ByteAlign()
	b0 := r.ReadBits(8)
	b1 := r.ReadBits(8)
	b2 := r.ReadBits(8)
	b3 := r.ReadBits(8)
	return b0 | b1<<8 | b2<<16 | b3<<24
}

// AtEOF reports whether the reader has observed end-of-stream on the
// underlying source and has no buffered bits left to serve.
func (r *Reader) AtEOF() bool {
	return r.eof && r.nbit == 0
}

// Writer is an LSB-first bit writer mirroring Reader.
type Writer struct {
	w    io.Writer
	acc  uint64
	nbit uint
}

// NewWriter returns an LSB-first Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteBits writes the low n bits (1 <= n <= 32) of value, LSB first.
func (w *Writer) WriteBits(value uint32, n uint) error {
	if n == 0 {
		return nil
	}
	if n > maxBits {
		n = maxBits
	}
	mask := uint64(1)<<n - 1
	w.acc |= (uint64(value) & mask) << w.nbit
	w.nbit += n
	return w.drain()
}

func (w *Writer) drain() error {
	for w.nbit >= 8 {
		b := byte(w.acc)
		if _, err := w.w.Write([]byte{b}); err != nil {
			return err
		}
		w.acc >>= 8
		w.nbit -= 8
	}
	return nil
}

// ByteAlign flushes 0-7 zero bits to reach the next byte boundary.
func (w *Writer) ByteAlign() error {
	frac := w.nbit % 8
	if frac != 0 {
		return w.WriteBits(0, 8-frac)
	}
	return nil
}

// WriteRawByte writes a single byte directly; the caller must have
// byte-aligned first.
func (w *Writer) WriteRawByte(b byte) error {
	if w.nbit != 0 {
		panic("bitio: WriteRawByte called without byte alignment")
	}
	_, err := w.w.Write([]byte{b})
	return err
}

// Flush pads any remaining fractional byte with zero bits and writes it.
func (w *Writer) Flush() error {
	return w.ByteAlign()
}
