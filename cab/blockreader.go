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
	"encoding/binary"
	"fmt"
	"io"
)

// inputMax bounds a CFDATA block's compressed_size: §3 invariant 6's
// largest codec-specific slack (LZX) over the 32768-byte frame.
const inputMax = frameSize + 6144

type rawDataHeader struct {
	Checksum   uint32
	CompSize   uint16
	UncompSize uint16
}

// BlockReader streams one folder's CFDATA blocks, each returned as a single
// assembled compressed-payload frame ready for a codec's DecodeFrame. It is
// created once per extraction pass and reused across every file in the
// folder (§4.10); construction opens the first cabinet in the folder's
// FolderData chain and seeks to the chain head's offset.
type BlockReader struct {
	folder *Folder
	opts   ExtractOptions

	cur     *FolderData
	curFile baseReader
	ownsCur bool

	blockIndex uint16
	numBlocks  uint16
}

// NewBlockReader returns a BlockReader positioned at the start of folder's
// decompressed stream.
func NewBlockReader(folder *Folder, opts ExtractOptions) (*BlockReader, error) {
	br := &BlockReader{
		folder:    folder,
		opts:      opts,
		cur:       folder.Data,
		numBlocks: folder.NumBlocks,
	}
	if err := br.openCurrent(); err != nil {
		return nil, err
	}
	return br, nil
}

func (br *BlockReader) openCurrent() error {
	if br.cur == nil {
		return errFormat(br.folder.owner.Name, -1, "folder data chain exhausted before declared block count")
	}
	c := br.cur.Cabinet
	if c.r != nil {
		br.curFile = c.r
		br.ownsCur = false
	} else {
		f, err := OpenFile(c.Name)
		if err != nil {
			return errTruncated(c.Name, br.cur.Offset, "opening chained cabinet: %w", err)
		}
		br.curFile = f
		br.ownsCur = true
	}
	if _, err := br.curFile.Seek(br.cur.Offset, io.SeekStart); err != nil {
		return errTruncated(c.Name, br.cur.Offset, "seeking to folder data: %w", err)
	}
	return nil
}

// Close releases the BlockReader's currently open cabinet handle, if this
// reader opened it itself (chained cabinets opened by name); a handle the
// caller already owned via Parse is left open for the caller to manage.
func (br *BlockReader) Close() error {
	if br.ownsCur && br.curFile != nil {
		return br.curFile.Close()
	}
	return nil
}

// NextFrame reads and assembles the next logical compressed block: a
// single CFDATA entry, or — when a block's uncompressed_size is 0 — the
// concatenation of every CFDATA entry up to and including the first one
// that declares a non-zero uncompressed_size, following the FolderData
// chain into subsequent cabinets as needed (§4.8 step 5). It reports io.EOF
// once the folder's declared block count is exhausted.
func (br *BlockReader) NextFrame() (compressed []byte, uncompSize int, err error) {
	if br.blockIndex >= br.numBlocks {
		return nil, 0, io.EOF
	}

	var assembled []byte
	for {
		name := br.cur.Cabinet.Name

		var hdr rawDataHeader
		if err := binary.Read(br.curFile, binary.LittleEndian, &hdr); err != nil {
			return nil, 0, errTruncated(name, -1, "reading CFDATA header: %w", err)
		}
		if reserve := br.cur.Cabinet.DataReserve; reserve > 0 {
			if _, err := br.curFile.Seek(int64(reserve), io.SeekCurrent); err != nil {
				return nil, 0, errTruncated(name, -1, "skipping data reserve: %w", err)
			}
		}
		if !br.opts.Salvage && hdr.CompSize > inputMax {
			return nil, 0, errFormat(name, -1, "CFDATA compressed size %d exceeds maximum %d", hdr.CompSize, inputMax)
		}

		payload := make([]byte, hdr.CompSize)
		if _, err := io.ReadFull(br.curFile, payload); err != nil {
			return nil, 0, errTruncated(name, -1, "reading CFDATA payload: %w", err)
		}

		if hdr.Checksum != 0 {
			if got := cfDataChecksum(payload, hdr.CompSize, hdr.UncompSize); got != hdr.Checksum {
				if !br.opts.Salvage {
					return nil, 0, errChecksum(name, -1, got, hdr.Checksum)
				}
				owner := br.cur.Cabinet
				owner.Warnings = append(owner.Warnings, fmt.Sprintf("%s: CFDATA checksum mismatch: got %#08x, want %#08x", name, got, hdr.Checksum))
			}
		}

		assembled = append(assembled, payload...)
		br.blockIndex++

		if hdr.UncompSize != 0 {
			return assembled, int(hdr.UncompSize), nil
		}

		if br.cur.Next == nil {
			return nil, 0, errFormat(name, -1, "block declares zero-length continuation but no further cabinet is linked")
		}
		if err := br.Close(); err != nil {
			return nil, 0, err
		}
		br.cur = br.cur.Next
		if err := br.openCurrent(); err != nil {
			return nil, 0, err
		}
	}
}
