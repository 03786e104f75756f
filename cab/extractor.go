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
	"io"
)

// ExtractOptions configures an Extractor, replacing the source's
// module-level salvage flag.
type ExtractOptions struct {
	// Salvage relaxes checksum and size-bound enforcement in the block
	// reader, matching ParseOptions.Salvage's intent for the data path.
	Salvage bool
}

// Extractor pulls individual files' decompressed bytes out of a Cabinet,
// maintaining the folder/codec/position state §4.10 requires across calls
// so that LZX and Quantum's cross-block dictionary and statistics survive
// from one file to the next within a folder.
type Extractor struct {
	opts ExtractOptions

	folder  *Folder
	reader  *BlockReader
	decoder frameDecoder

	pos     uint32 // current decompressed-byte position within the folder
	pending []byte // undelivered tail of the most recently decoded frame
}

// NewExtractor returns an Extractor with no folder bound yet; the first
// call to ExtractFile allocates one.
func NewExtractor(opts ExtractOptions) *Extractor {
	return &Extractor{opts: opts}
}

// ExtractFile writes file's decompressed bytes to sink, per §4.10's
// per-file extraction contract: reusing the current folder's codec and
// position when possible, discarding intervening bytes when file's offset
// is ahead of the current position, and rebuilding from scratch when the
// folder changes or position has to move backward.
func (e *Extractor) ExtractFile(file *File, sink io.Writer) error {
	folder := file.Folder()
	if folder == nil {
		return errFormat("", -1, "file %q has no resolved folder", file.Name)
	}

	if e.folder != folder || uint32(file.FolderOffset) < e.pos || e.decoder == nil {
		if err := e.resetTo(folder); err != nil {
			return err
		}
	}

	if gap := int64(file.FolderOffset) - int64(e.pos); gap > 0 {
		if err := e.decompress(gap, io.Discard); err != nil {
			return err
		}
	}

	return e.decompress(int64(file.UncompressedSize), sink)
}

// Close releases the Extractor's current block reader, if any.
func (e *Extractor) Close() error {
	if e.reader != nil {
		return e.reader.Close()
	}
	return nil
}

func (e *Extractor) resetTo(folder *Folder) error {
	if e.reader != nil {
		if err := e.reader.Close(); err != nil {
			return err
		}
	}
	reader, err := NewBlockReader(folder, e.opts)
	if err != nil {
		return err
	}
	decoder, err := newFrameDecoder(folder)
	if err != nil {
		return err
	}
	e.folder = folder
	e.reader = reader
	e.decoder = decoder
	e.pos = 0
	e.pending = nil
	return nil
}

// decompress writes exactly n decompressed bytes to sink, pulling and
// decoding as many more CFDATA frames as needed, then advances the
// folder-relative position.
func (e *Extractor) decompress(n int64, sink io.Writer) error {
	for n > 0 {
		if len(e.pending) == 0 {
			compressed, uncompSize, err := e.reader.NextFrame()
			if err != nil {
				if err == io.EOF {
					return errTruncated(e.folder.owner.Name, -1, "folder exhausted with %d bytes still requested", n)
				}
				return err
			}
			decoded, err := e.decoder.DecodeFrame(compressed, uncompSize)
			if err != nil {
				return errDecompress(e.folder.owner.Name, "decoding block: %v", err)
			}
			e.pending = decoded
		}

		take := int64(len(e.pending))
		if take > n {
			take = n
		}
		if _, err := sink.Write(e.pending[:take]); err != nil {
			return err
		}
		e.pending = e.pending[take:]
		e.pos += uint32(take)
		n -= take
	}
	return nil
}
