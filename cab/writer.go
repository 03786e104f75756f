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
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/renameio"
)

// Entry is one file to be packed into a cabinet by Write.
type Entry struct {
	Name    string
	Data    []byte
	Attribs Attributes
	ModTime time.Time // zero value encodes as the MS-DOS epoch
}

// WriteOptions configures Write.
type WriteOptions struct {
	// Compress selects the single compression method applied to every
	// folder Write produces. All of a cabinet's entries are packed into
	// one folder, matching §4.3's single-folder construction path.
	Compress Compression
	// WindowBits sizes the LZX/Quantum dictionary; ignored for store and
	// MSZIP.
	WindowBits int
	// UseE8 enables LZX's x86 CALL-translation filter.
	UseE8 bool
	SetID uint16
}

// Write packs entries into a new cabinet at path, publishing it atomically
// (via a temp file renamed into place) so a reader never observes a
// partially written cabinet, per §5's transaction discipline.
func Write(path string, entries []Entry, opts WriteOptions) (err error) {
	body, err := buildCabinet(entries, opts)
	if err != nil {
		return err
	}
	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("cab: creating temp file for %s: %w", path, err)
	}
	defer t.Cleanup()

	if _, err := t.Write(body); err != nil {
		return fmt.Errorf("cab: writing %s: %w", path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("cab: publishing %s: %w", path, err)
	}
	return nil
}

// buildCabinet renders the complete cabinet byte stream: header, the single
// folder entry, the file table, then the data blocks, with every offset
// computed up front the way §4.3 lays it out (header, then folders, then
// files, then data — no entry references a later section's length before
// that section's layout is fixed).
func buildCabinet(entries []Entry, opts WriteOptions) ([]byte, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("cab: cannot write a cabinet with no files")
	}

	enc, err := newFrameEncoder(opts.Compress, opts.WindowBits, opts.UseE8, totalSize(entries))
	if err != nil {
		return nil, err
	}

	blocks, offsets, folderSize, err := packBlocks(entries, enc)
	if err != nil {
		return nil, err
	}

	filesOffset := headerSize + folderEntrySize
	var fileTable bytes.Buffer
	for i, e := range entries {
		date, tm := encodeDOSTime(e.ModTime)
		rf := rawFile{
			UncompressedSize: uint32(len(e.Data)),
			FolderOffset:     offsets[i],
			FolderIndex:      0,
			Date:             date,
			Time:             tm,
			Attribs:          uint16(e.Attribs),
		}
		if err := binary.Write(&fileTable, binary.LittleEndian, &rf); err != nil {
			return nil, err
		}
		fileTable.WriteString(e.Name)
		fileTable.WriteByte(0)
	}

	dataOffset := filesOffset + fileTable.Len()
	cabinetSize := dataOffset + blocks.Len()

	var out bytes.Buffer
	hdr := rawHeader{
		Signature:    [4]byte{'M', 'S', 'C', 'F'},
		CabinetSize:  uint32(cabinetSize),
		FilesOffset:  uint32(filesOffset),
		VersionMinor: 3,
		VersionMajor: 1,
		NumFolders:   1,
		NumFiles:     uint16(len(entries)),
		SetID:        opts.SetID,
	}
	if err := binary.Write(&out, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}

	compType, err := encodeCompType(opts.Compress, opts.WindowBits)
	if err != nil {
		return nil, err
	}
	rfolder := rawFolder{
		DataOffset: uint32(dataOffset),
		NumBlocks:  uint16(folderSize),
		CompType:   compType,
	}
	if err := binary.Write(&out, binary.LittleEndian, &rfolder); err != nil {
		return nil, err
	}

	out.Write(fileTable.Bytes())
	out.Write(blocks.Bytes())

	return out.Bytes(), nil
}

const folderEntrySize = 8

func totalSize(entries []Entry) uint32 {
	var n uint32
	for _, e := range entries {
		n += uint32(len(e.Data))
	}
	return n
}

// packBlocks concatenates every entry's bytes into one logical stream, cuts
// it into frameSize-byte frames (the last one possibly shorter), encodes
// each with enc, and writes out the CFDATA headers and payloads. It returns
// each entry's folder-relative decompressed offset and the number of
// blocks written.
func packBlocks(entries []Entry, enc frameEncoder) (blocks bytes.Buffer, offsets []uint32, numBlocks int, err error) {
	var stream []byte
	offsets = make([]uint32, len(entries))
	for i, e := range entries {
		offsets[i] = uint32(len(stream))
		stream = append(stream, e.Data...)
	}

	for first := true; first || len(stream) > 0; first = false {
		n := frameSize
		if n > len(stream) {
			n = len(stream)
		}
		plain := stream[:n]
		stream = stream[n:]

		compressed, err := enc.EncodeFrame(plain)
		if err != nil {
			return blocks, nil, 0, errDecompress("", "encoding block: %v", err)
		}
		if len(compressed) > inputMax {
			return blocks, nil, 0, errFormat("", -1, "encoded block of %d bytes exceeds the %d maximum", len(compressed), inputMax)
		}

		hdr := rawDataHeader{
			CompSize:   uint16(len(compressed)),
			UncompSize: uint16(n),
		}
		hdr.Checksum = cfDataChecksum(compressed, hdr.CompSize, hdr.UncompSize)

		if err := binary.Write(&blocks, binary.LittleEndian, &hdr); err != nil {
			return blocks, nil, 0, err
		}
		blocks.Write(compressed)
		numBlocks++
	}

	return blocks, offsets, numBlocks, nil
}

// encodeCompType packs a compression method and window-bits pair back into
// the CFFOLDER compression_type field that decodeCompType parses.
func encodeCompType(c Compression, windowBits int) (uint16, error) {
	var method uint16
	switch c {
	case CompressNone:
		method = 0
	case CompressMSZIP:
		method = 1
	case CompressQuantum:
		method = 2
	case CompressLZX:
		method = 3
	default:
		return 0, fmt.Errorf("cab: cannot encode unknown compression method %v", c)
	}
	return method | uint16(windowBits)<<8, nil
}

// encodeDOSTime converts t into the DOS date/time bit layout §6 defines;
// the zero time.Time encodes as the 1980-01-01 00:00:00 epoch, the earliest
// date the format can represent.
func encodeDOSTime(t time.Time) (date, tm uint16) {
	if t.IsZero() {
		t = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	year := t.Year()
	if year < 1980 {
		year = 1980
	}
	date = uint16(year-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tm = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, tm
}
