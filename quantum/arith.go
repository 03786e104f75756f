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

import "github.com/google/go-msarchive/bitio"

// topValue is the ceiling of the 16-bit H/L registers §4.7 describes; the
// classic Witten-Neal-Cleary arithmetic coder built around it here resets
// H/L/C fresh at each frame boundary, matching this codebase's "one CAB
// frame is one self-contained codec unit" convention (see DESIGN.md).
const topValue = 0xFFFF
const firstQuarter = (topValue + 1) / 4
const half = 2 * firstQuarter
const thirdQuarter = 3 * firstQuarter

// arithEncoder is the write side of the 16-bit arithmetic coder.
type arithEncoder struct {
	low, high uint32
	pending   int
	w         *bitio.MSBWriter
}

func newArithEncoder(w *bitio.MSBWriter) *arithEncoder {
	return &arithEncoder{low: 0, high: topValue, w: w}
}

// encode narrows [low, high] to the sub-range [cumFreq, cumFreq+freq) of
// totFreq, emitting bits as the range converges.
func (e *arithEncoder) encode(cumFreq, freq, totFreq uint32) error {
	r := e.high - e.low + 1
	e.high = e.low + (r*(cumFreq+freq))/totFreq - 1
	e.low = e.low + (r*cumFreq)/totFreq

	for {
		switch {
		case e.high < half:
			if err := e.emit(0); err != nil {
				return err
			}
		case e.low >= half:
			if err := e.emit(1); err != nil {
				return err
			}
			e.low -= half
			e.high -= half
		case e.low >= firstQuarter && e.high < thirdQuarter:
			e.pending++
			e.low -= firstQuarter
			e.high -= firstQuarter
		default:
			return nil
		}
		e.low <<= 1
		e.high = (e.high << 1) | 1
	}
}

func (e *arithEncoder) emit(bit uint16) error {
	if err := e.w.WriteBits(bit, 1); err != nil {
		return err
	}
	opposite := uint16(1) - bit
	for ; e.pending > 0; e.pending-- {
		if err := e.w.WriteBits(opposite, 1); err != nil {
			return err
		}
	}
	return nil
}

// encodeBits writes an nbits-wide raw value through the coder as a uniform
// model (frequency 1 out of 1<<nbits), used for length/offset extra bits
// that don't warrant their own adaptive table. Values wider than 8 bits are
// sent as their high bits followed by their low 8 bits, so no uniform total
// exceeds the 16-bit range.
func (e *arithEncoder) encodeBits(value uint32, nbits uint) error {
	if nbits == 0 {
		return nil
	}
	if nbits > 8 {
		if err := e.encodeBits(value>>8, nbits-8); err != nil {
			return err
		}
		return e.encodeBits(value&0xFF, 8)
	}
	return e.encode(value, 1, uint32(1)<<nbits)
}

// finish flushes the final disambiguating bits at the end of a frame.
func (e *arithEncoder) finish() error {
	e.pending++
	if e.low < firstQuarter {
		return e.emit(0)
	}
	return e.emit(1)
}

// arithDecoder is the read side.
type arithDecoder struct {
	low, high, code uint32
	r               *bitio.MSBReader
}

func newArithDecoder(r *bitio.MSBReader) *arithDecoder {
	return &arithDecoder{low: 0, high: topValue, code: uint32(r.LoadCode16()), r: r}
}

// getFreq recovers the cumulative-frequency value the next encode(...) call
// must be given to decode correctly.
func (d *arithDecoder) getFreq(totFreq uint32) uint32 {
	r := d.high - d.low + 1
	v := ((d.code-d.low+1)*totFreq - 1) / r
	if v >= totFreq {
		v = totFreq - 1
	}
	return v
}

// decodeBits is encodeBits' inverse.
func (d *arithDecoder) decodeBits(nbits uint) (uint32, error) {
	if nbits == 0 {
		return 0, nil
	}
	if nbits > 8 {
		hi, err := d.decodeBits(nbits - 8)
		if err != nil {
			return 0, err
		}
		lo, err := d.decodeBits(8)
		return hi<<8 | lo, err
	}
	totFreq := uint32(1) << nbits
	v := d.getFreq(totFreq)
	if err := d.decode(v, 1, totFreq); err != nil {
		return 0, err
	}
	return v, nil
}

func (d *arithDecoder) decode(cumFreq, freq, totFreq uint32) error {
	r := d.high - d.low + 1
	d.high = d.low + (r*(cumFreq+freq))/totFreq - 1
	d.low = d.low + (r*cumFreq)/totFreq

	for {
		switch {
		case d.high < half:
		case d.low >= half:
			d.code -= half
			d.low -= half
			d.high -= half
		case d.low >= firstQuarter && d.high < thirdQuarter:
			d.code -= firstQuarter
			d.low -= firstQuarter
			d.high -= firstQuarter
		default:
			return nil
		}
		d.low <<= 1
		d.high = (d.high << 1) | 1
		d.code = (d.code << 1) | uint32(d.r.ReadBits(1))
	}
}
