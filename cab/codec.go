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

package cab

import (
	"fmt"

	"github.com/google/go-msarchive/lzx"
	"github.com/google/go-msarchive/mszip"
	"github.com/google/go-msarchive/quantum"
)

// frameDecoder is the capability §9 asks every codec to expose to the
// extractor: decompress one CAB data block given its declared uncompressed
// size. Each of mszip.Decoder, lzx.Decoder and quantum.Decoder already
// implements this signature; noneDecoder adapts the store method to it.
type frameDecoder interface {
	DecodeFrame(compressed []byte, uncompSize int) ([]byte, error)
}

// frameEncoder is frameDecoder's write-side counterpart, used by the
// writer.
type frameEncoder interface {
	EncodeFrame(plain []byte) ([]byte, error)
}

// newFrameDecoder returns the decoder for folder's compression method,
// freshly constructed so its internal state (dictionary, recent-offset
// cache, arithmetic coder, model statistics) starts clean for this
// extraction pass.
func newFrameDecoder(folder *Folder) (frameDecoder, error) {
	switch folder.Compress {
	case CompressNone:
		return noneCodec{}, nil
	case CompressMSZIP:
		return mszip.NewDecoder(), nil
	case CompressLZX:
		return lzx.NewDecoder(folder.WindowBits), nil
	case CompressQuantum:
		return quantum.NewDecoder(folder.WindowBits), nil
	default:
		return nil, errUnsupported(folder.owner.Name, "compression method %v", folder.Compress)
	}
}

// newFrameEncoder mirrors newFrameDecoder for the write path. useE8 and
// filesize only matter for LZX; quantum and mszip ignore them.
func newFrameEncoder(comp Compression, windowBits int, useE8 bool, filesize uint32) (frameEncoder, error) {
	switch comp {
	case CompressNone:
		return noneCodec{}, nil
	case CompressMSZIP:
		return mszip.NewEncoder(), nil
	case CompressLZX:
		return lzx.NewEncoder(windowBits, useE8, filesize), nil
	case CompressQuantum:
		return quantum.NewEncoder(windowBits), nil
	default:
		return nil, errUnsupported("", "compression method %v", comp)
	}
}

// noneCodec implements the store method: compressed bytes equal
// uncompressed bytes exactly.
type noneCodec struct{}

func (noneCodec) DecodeFrame(compressed []byte, uncompSize int) ([]byte, error) {
	if len(compressed) != uncompSize {
		return nil, fmt.Errorf("store block: compressed size %d does not equal uncompressed size %d", len(compressed), uncompSize)
	}
	return compressed, nil
}

func (noneCodec) EncodeFrame(plain []byte) ([]byte, error) {
	return plain, nil
}
