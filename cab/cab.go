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

// Package cab implements a parser, writer, extractor and searcher for the
// Microsoft Cabinet file format (MS-CAB), including multi-cabinet folder
// chaining and all four of its data-block compression methods (store,
// MSZIP, LZX, Quantum).
//
// Normative reference: [MS-CAB].
//
// [MS-CAB]: http://download.microsoft.com/download/4/d/a/4da14f27-b4ef-4170-a6e6-5b1ef85b1baa/[ms-cab].pdf
package cab

import "time"

// Compression identifies a folder's data-block compression method.
type Compression int

const (
	CompressNone Compression = iota
	CompressMSZIP
	CompressQuantum
	CompressLZX
)

func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressMSZIP:
		return "mszip"
	case CompressQuantum:
		return "quantum"
	case CompressLZX:
		return "lzx"
	default:
		return "unknown"
	}
}

// Attribute bits for a File, per §6's CFFILE attribs field.
const (
	AttribReadOnly Attributes = 1 << iota
	AttribHidden
	AttribSystem
	_
	_
	AttribArchive
	AttribExec
	AttribUTF8Name
)

// Attributes is a bitmask of the File attribute flags above.
type Attributes uint16

// Folder-index sentinels a File's FolderIndex may hold instead of a real
// index into the owning Cabinet's Folders slice.
const (
	folderContinuedFromPrev = 0xFFFD
	folderContinuedToNext   = 0xFFFE
	folderContinuedBoth     = 0xFFFF
)

// Cabinet is a parsed or constructed MS-CAB container.
type Cabinet struct {
	Name       string // filename the byte source was loaded from, if known
	BaseOffset int64  // non-zero if this cabinet is embedded in a larger stream
	Length     int64  // total declared length (CFHEADER's cabinet_size)

	SetID  uint16
	Index  uint16 // this cabinet's index within its set
	HasPrev bool
	HasNext bool
	PrevName, PrevInfo string
	NextName, NextInfo string

	DataReserve   uint8 // per-CFDATA-block reserved byte count
	folderReserve uint8 // per-CFFOLDER-entry reserved byte count, parse-time only

	Folders []*Folder
	Files   []*File

	// Prev and Next link this cabinet to its siblings in a merged set, set
	// only after a successful Append.
	Prev, Next *Cabinet

	// Warnings collects non-fatal conditions noticed while parsing or
	// extracting this cabinet: a version other than 1.3 (§4.2), or a
	// CFDATA checksum mismatch recovered from in salvage mode (§7). Parse
	// and the extraction path append to it instead of logging or
	// aborting.
	Warnings []string

	r baseReader // the underlying byte source, kept open for lazy folder reads
}

// Folder describes one CFFOLDER entry: a compression method and the ordered
// chain of on-disk data-block ranges ("FolderData") backing its decompressed
// stream.
type Folder struct {
	Compress   Compression
	WindowBits int // meaningful only for LZX/Quantum

	NumBlocks uint16 // declared CFDATA block count (may grow across a merge)

	Data *FolderData // head of the (cabinet, offset) chain

	// MergePrev/MergeNext point at the neighboring folder this folder was
	// spliced to by Append, nil otherwise.
	MergePrev, MergeNext *Folder

	owner *Cabinet
}

// FolderData is one link in a folder's chain of contiguous on-disk CFDATA
// runs: which cabinet holds the bytes, and the file offset of the first
// CFDATA header in that run.
type FolderData struct {
	Cabinet *Cabinet
	Offset  int64
	Next    *FolderData
}

// File describes one CFFILE entry: a name, its place in the owning folder's
// decompressed byte stream, and DOS-style metadata.
type File struct {
	Name string

	UncompressedSize uint32
	FolderOffset     uint32 // offset within the folder's decompressed stream
	FolderIndex      uint16 // index into Cabinet.Folders, or a sentinel above

	Date, Time uint16
	Attribs    Attributes

	folder *Folder
}

// Folder returns the File's owning Folder, resolved during parsing (the
// three continuation sentinels are resolved to the first or last folder of
// the cabinet, per §3).
func (f *File) Folder() *Folder { return f.folder }

// ModTime decodes the DOS-style Date/Time fields into a UTC time.Time, per
// §6's bit layout.
func (f *File) ModTime() time.Time {
	year := int(f.Date>>9) + 1980
	month := time.Month((f.Date >> 5) & 0xF)
	day := int(f.Date & 0x1F)
	hour := int(f.Time >> 11)
	min := int((f.Time >> 5) & 0x3F)
	sec := int(f.Time&0x1F) * 2
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

// IsUTF8Name reports whether Name should be interpreted as UTF-8 rather
// than code page 1252.
func (f *File) IsUTF8Name() bool { return f.Attribs&AttribUTF8Name != 0 }

const (
	// frameSize is the fixed uncompressed block size every codec frames to
	// (except possibly a folder's last block).
	frameSize = 32768
)
