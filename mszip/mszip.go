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

// Package mszip implements the MSZIP codec: RFC 1951 DEFLATE framed into
// independent 32 KB blocks, each prefixed with a 2-byte "CK" signature. The
// DEFLATE layer itself is delegated to klauspost/compress/flate; this
// package supplies the CAB-specific framing, the per-frame dictionary
// carried across blocks, and the CK signature check.
package mszip

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// FrameSize is the fixed uncompressed size of every MSZIP frame except
// possibly the last.
const FrameSize = 32768

// MaxCompressedSlack is the format convention's extra headroom: a frame's
// compressed size may exceed FrameSize by up to this many bytes (room for
// a stored-block header in the worst case).
const MaxCompressedSlack = 12

var signature = [2]byte{'C', 'K'}

// Decoder decodes a sequence of MSZIP frames, carrying the dictionary
// (the previous frame's decompressed bytes) across frame boundaries as the
// format requires.
type Decoder struct {
	history []byte
}

// NewDecoder returns a Decoder ready to decode the first frame of a folder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// DecodeFrame decompresses one CK-framed block (compressed, including its
// 2-byte signature) into exactly uncompSize bytes.
func (d *Decoder) DecodeFrame(compressed []byte, uncompSize int) ([]byte, error) {
	if len(compressed) < 2 {
		return nil, fmt.Errorf("mszip: frame too short for CK signature (%d bytes)", len(compressed))
	}
	if compressed[0] != signature[0] || compressed[1] != signature[1] {
		return nil, fmt.Errorf("mszip: invalid frame signature %q", compressed[:2])
	}

	var fr io.ReadCloser
	if len(d.history) == 0 {
		fr = flate.NewReader(bytes.NewReader(compressed[2:]))
	} else {
		fr = flate.NewReaderDict(bytes.NewReader(compressed[2:]), d.history)
	}
	defer fr.Close()

	out := make([]byte, uncompSize)
	if _, err := io.ReadFull(fr, out); err != nil {
		return nil, fmt.Errorf("mszip: decompressing frame: %w", err)
	}

	d.history = lastDictBytes(out, d.history)
	return out, nil
}

// lastDictBytes keeps at most FrameSize bytes of decompression history: one
// full frame's worth, which is all DEFLATE's 32 KB window can reference.
func lastDictBytes(frame []byte, prevHistory []byte) []byte {
	if len(frame) >= FrameSize {
		return frame[len(frame)-FrameSize:]
	}
	// A short final frame still extends the dictionary rather than
	// replacing it outright, so a subsequent (chained) folder continuation
	// sees the full trailing window.
	combined := append(append([]byte(nil), prevHistory...), frame...)
	if len(combined) > FrameSize {
		combined = combined[len(combined)-FrameSize:]
	}
	return combined
}

// Encoder encodes a sequence of MSZIP frames. CAB uses one block per frame
// with an independent dictionary reset at each boundary (§4.3), so the
// encoder does not need to carry state across frames; each call to
// EncodeFrame is self-contained.
type Encoder struct{}

// NewEncoder returns a fresh Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeFrame compresses up to FrameSize bytes of plain into one CK-framed
// MSZIP block.
func (e *Encoder) EncodeFrame(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(signature[:])
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("mszip: creating deflate writer: %w", err)
	}
	if _, err := fw.Write(plain); err != nil {
		return nil, fmt.Errorf("mszip: writing frame: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("mszip: closing frame: %w", err)
	}
	return buf.Bytes(), nil
}
