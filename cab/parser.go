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
	"io"
)

// ParseOptions configures Parse, replacing the source's module-level
// salvage/quiet flags with an explicit value threaded through the call.
type ParseOptions struct {
	// BaseOffset is where the CFHEADER starts within r; non-zero when the
	// cabinet is embedded in a larger stream (see Search).
	BaseOffset int64
	// Salvage, when true, recovers as much of a damaged cabinet as
	// possible: per-file parse failures skip that file instead of
	// aborting, and §3 invariant 5 (offset+length within declared blocks)
	// is not enforced.
	Salvage bool
	// Quiet suppresses the version-mismatch warning Parse would otherwise
	// append to Cabinet.Warnings (§4.2); Parse never logs itself (§10.3),
	// so this only matters to a caller that inspects Warnings afterward.
	Quiet bool
}

const headerSize = 36

const (
	flagHasPrev uint16 = 1 << iota
	flagHasNext
	flagReservePresent
)

type rawHeader struct {
	Signature    [4]byte
	Reserved1    uint32
	CabinetSize  uint32
	Reserved2    uint32
	FilesOffset  uint32
	Reserved3    uint32
	VersionMinor uint8
	VersionMajor uint8
	NumFolders   uint16
	NumFiles     uint16
	Flags        uint16
	SetID        uint16
	CabinetIndex uint16
}

type rawFolder struct {
	DataOffset uint32
	NumBlocks  uint16
	CompType   uint16
}

type rawFile struct {
	UncompressedSize uint32
	FolderOffset     uint32
	FolderIndex      uint16
	Date             uint16
	Time             uint16
	Attribs          uint16
}

// Parse reads one cabinet from r starting at opts.BaseOffset, per §4.2.
func Parse(r baseReader, name string, opts ParseOptions) (*Cabinet, error) {
	if _, err := r.Seek(opts.BaseOffset, io.SeekStart); err != nil {
		return nil, errTruncated(name, opts.BaseOffset, "seeking to base offset: %w", err)
	}

	var hdr rawHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, errTruncated(name, opts.BaseOffset, "reading CFHEADER: %w", err)
	}
	if !bytes.Equal(hdr.Signature[:], []byte("MSCF")) {
		return nil, errFormat(name, opts.BaseOffset, "bad signature %q", hdr.Signature[:])
	}
	if hdr.NumFolders == 0 {
		return nil, errFormat(name, opts.BaseOffset, "cabinet declares zero folders")
	}
	if hdr.NumFiles == 0 {
		return nil, errFormat(name, opts.BaseOffset, "cabinet declares zero files")
	}

	c := &Cabinet{
		Name:       name,
		BaseOffset: opts.BaseOffset,
		Length:     int64(hdr.CabinetSize),
		SetID:      hdr.SetID,
		Index:      hdr.CabinetIndex,
		HasPrev:    hdr.Flags&flagHasPrev != 0,
		HasNext:    hdr.Flags&flagHasNext != 0,
		r:          r,
	}

	if (hdr.VersionMajor != 1 || hdr.VersionMinor != 3) && !opts.Quiet {
		c.Warnings = append(c.Warnings, fmt.Sprintf("cabinet version %d.%d, expected 1.3", hdr.VersionMajor, hdr.VersionMinor))
	}

	if hdr.Flags&flagReservePresent != 0 {
		var ext struct {
			HeaderReserve uint16
			FolderReserve uint8
			DataReserve   uint8
		}
		if err := binary.Read(r, binary.LittleEndian, &ext); err != nil {
			return nil, errTruncated(name, -1, "reading reserve extension: %w", err)
		}
		c.DataReserve = ext.DataReserve
		if ext.HeaderReserve > 0 {
			if _, err := r.Seek(int64(ext.HeaderReserve), io.SeekCurrent); err != nil {
				return nil, errTruncated(name, -1, "skipping header reserve: %w", err)
			}
		}
		c.folderReserve = ext.FolderReserve
	}

	if c.HasPrev {
		var err error
		if c.PrevName, err = readCString(r); err != nil {
			return nil, errTruncated(name, -1, "reading prev cabinet name: %w", err)
		}
		if c.PrevInfo, err = readCString(r); err != nil {
			return nil, errTruncated(name, -1, "reading prev cabinet info: %w", err)
		}
	}
	if c.HasNext {
		var err error
		if c.NextName, err = readCString(r); err != nil {
			return nil, errTruncated(name, -1, "reading next cabinet name: %w", err)
		}
		if c.NextInfo, err = readCString(r); err != nil {
			return nil, errTruncated(name, -1, "reading next cabinet info: %w", err)
		}
	}

	for i := uint16(0); i < hdr.NumFolders; i++ {
		var rf rawFolder
		if err := binary.Read(r, binary.LittleEndian, &rf); err != nil {
			return nil, errTruncated(name, -1, "reading folder %d: %w", i, err)
		}
		if c.folderReserve > 0 {
			if _, err := r.Seek(int64(c.folderReserve), io.SeekCurrent); err != nil {
				return nil, errTruncated(name, -1, "skipping folder %d reserve: %w", i, err)
			}
		}
		comp, windowBits, err := decodeCompType(rf.CompType)
		if err != nil {
			return nil, &Error{Kind: KindUnsupported, Path: name, Offset: -1, Err: err}
		}
		folder := &Folder{
			Compress:   comp,
			WindowBits: windowBits,
			NumBlocks:  rf.NumBlocks,
			owner:      c,
			Data: &FolderData{
				Cabinet: c,
				// DataOffset is relative to this cabinet's own start, which
				// is opts.BaseOffset bytes into r for an embedded cabinet.
				Offset: opts.BaseOffset + int64(rf.DataOffset),
			},
		}
		c.Folders = append(c.Folders, folder)
	}

	if _, err := r.Seek(opts.BaseOffset+int64(hdr.FilesOffset), io.SeekStart); err != nil {
		return nil, errTruncated(name, int64(hdr.FilesOffset), "seeking to CFFILE section: %w", err)
	}

	var lastOffset = map[uint16]uint32{}
	for i := uint16(0); i < hdr.NumFiles; i++ {
		var rfile rawFile
		if err := binary.Read(r, binary.LittleEndian, &rfile); err != nil {
			if opts.Salvage {
				break
			}
			return nil, errTruncated(name, -1, "reading file %d: %w", i, err)
		}
		fname, err := readCString(r)
		if err != nil {
			if opts.Salvage {
				break
			}
			return nil, errTruncated(name, -1, "reading filename for file %d: %w", i, err)
		}
		if fname == "" {
			if opts.Salvage {
				continue
			}
			return nil, errFormat(name, -1, "file %d has empty filename", i)
		}

		folder, folderIdx, err := c.resolveFolderIndex(rfile.FolderIndex)
		if err != nil {
			if opts.Salvage {
				continue
			}
			return nil, errFormat(name, -1, "file %d: %w", i, err)
		}

		if prev, ok := lastOffset[folderIdx]; ok && rfile.FolderOffset < prev {
			if !opts.Salvage {
				return nil, errFormat(name, -1, "file %d: folder offset %d decreases from previous %d", i, rfile.FolderOffset, prev)
			}
		}
		lastOffset[folderIdx] = rfile.FolderOffset

		f := &File{
			Name:             fname,
			UncompressedSize: rfile.UncompressedSize,
			FolderOffset:     rfile.FolderOffset,
			FolderIndex:      rfile.FolderIndex,
			Date:             rfile.Date,
			Time:             rfile.Time,
			Attribs:          Attributes(rfile.Attribs),
			folder:           folder,
		}
		c.Files = append(c.Files, f)

		if !opts.Salvage && uint64(f.FolderOffset)+uint64(f.UncompressedSize) > uint64(folder.NumBlocks)*frameSize {
			return nil, errFormat(name, -1, "file %q exceeds folder %d's declared block count", f.Name, folderIdx)
		}
	}

	return c, nil
}

// resolveFolderIndex maps a raw CFFILE folder_index (including the three
// continuation sentinels) to a concrete *Folder and a normalized index, per
// §3's rule: sentinels resolve to the cabinet's first or last folder.
func (c *Cabinet) resolveFolderIndex(idx uint16) (*Folder, uint16, error) {
	switch idx {
	case folderContinuedFromPrev, folderContinuedBoth:
		if len(c.Folders) == 0 {
			return nil, 0, fmt.Errorf("continuation sentinel %#x but cabinet has no folders", idx)
		}
		return c.Folders[0], 0, nil
	case folderContinuedToNext:
		if len(c.Folders) == 0 {
			return nil, 0, fmt.Errorf("continuation sentinel %#x but cabinet has no folders", idx)
		}
		last := uint16(len(c.Folders) - 1)
		return c.Folders[last], last, nil
	default:
		if int(idx) >= len(c.Folders) {
			return nil, 0, fmt.Errorf("folder index %d out of range (%d folders)", idx, len(c.Folders))
		}
		return c.Folders[idx], idx, nil
	}
}

func decodeCompType(raw uint16) (Compression, int, error) {
	method := raw & 0x0F
	windowBits := int((raw >> 8) & 0x1F)
	switch method {
	case 0:
		return CompressNone, 0, nil
	case 1:
		return CompressMSZIP, 0, nil
	case 2:
		return CompressQuantum, windowBits, nil
	case 3:
		return CompressLZX, windowBits, nil
	default:
		return 0, 0, fmt.Errorf("unsupported compression method %d", method)
	}
}

// readCString reads a null-terminated string one byte at a time, so it
// never over-consumes from r the way wrapping it in a fresh bufio.Reader
// would (the buffer fill would silently swallow bytes belonging to
// whatever comes next in the stream).
func readCString(r io.Reader) (string, error) {
	var buf []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, b[0])
	}
}
