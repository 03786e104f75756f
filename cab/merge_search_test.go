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
	"math/rand"
	"testing"
)

// buildStoreCabinet writes a minimal single-folder, store-method cabinet
// by hand (rather than through Write, which only ever emits the
// continuation-free case), so tests can set folder_index sentinels and
// straddling-file offsets that Write has no reason to ever produce.
type rawCabinetSpec struct {
	setID, index       uint16
	hasPrev, hasNext   bool
	files              []rawFileSpec
	blockUncompSize    uint16 // 0 means "no real block data", used for the merge test's right half
	blockPayload       []byte
}

type rawFileSpec struct {
	name         string
	uncompSize   uint32
	folderOffset uint32
	folderIndex  uint16
}

func buildStoreCabinet(spec rawCabinetSpec) []byte {
	var fileTable bytes.Buffer
	for _, fs := range spec.files {
		rf := rawFile{
			UncompressedSize: fs.uncompSize,
			FolderOffset:     fs.folderOffset,
			FolderIndex:      fs.folderIndex,
		}
		binary.Write(&fileTable, binary.LittleEndian, &rf)
		fileTable.WriteString(fs.name)
		fileTable.WriteByte(0)
	}

	var dataBlock bytes.Buffer
	hdr := rawDataHeader{
		CompSize:   uint16(len(spec.blockPayload)),
		UncompSize: spec.blockUncompSize,
	}
	hdr.Checksum = cfDataChecksum(spec.blockPayload, hdr.CompSize, hdr.UncompSize)
	binary.Write(&dataBlock, binary.LittleEndian, &hdr)
	dataBlock.Write(spec.blockPayload)

	var flags uint16
	var names bytes.Buffer
	if spec.hasPrev {
		flags |= flagHasPrev
		names.WriteString("prev.cab\x00prev disk\x00")
	}
	if spec.hasNext {
		flags |= flagHasNext
		names.WriteString("next.cab\x00next disk\x00")
	}

	filesOffset := headerSize + names.Len() + folderEntrySize
	dataOffset := filesOffset + fileTable.Len()
	cabinetSize := dataOffset + dataBlock.Len()

	var out bytes.Buffer
	h := rawHeader{
		Signature:    [4]byte{'M', 'S', 'C', 'F'},
		CabinetSize:  uint32(cabinetSize),
		FilesOffset:  uint32(filesOffset),
		VersionMinor: 3,
		VersionMajor: 1,
		NumFolders:   1,
		NumFiles:     uint16(len(spec.files)),
		Flags:        flags,
		SetID:        spec.setID,
		CabinetIndex: spec.index,
	}
	binary.Write(&out, binary.LittleEndian, &h)
	out.Write(names.Bytes())

	f := rawFolder{DataOffset: uint32(dataOffset), NumBlocks: 1, CompType: 0}
	binary.Write(&out, binary.LittleEndian, &f)

	out.Write(fileTable.Bytes())
	out.Write(dataBlock.Bytes())

	return out.Bytes()
}

// Scenario 5: multi-cabinet folder merge. The straddling file occupies the
// tail of left's single 32768-byte block (offset 12768, length 20000,
// ending exactly on the block boundary); right's folder contributes a
// zero-uncompressed-size placeholder block that the merge's shared-boundary
// accounting absorbs without the reader ever needing to touch it.
func TestMultiCabinetFolderMerge(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	fullBlock := make([]byte, 32768)
	rnd.Read(fullBlock)
	want := append([]byte(nil), fullBlock[12768:32768]...)

	leftBytes := buildStoreCabinet(rawCabinetSpec{
		setID: 7, index: 0, hasNext: true,
		files: []rawFileSpec{
			{name: "straddler.bin", uncompSize: 20000, folderOffset: 12768, folderIndex: folderContinuedToNext},
		},
		blockUncompSize: 32768,
		blockPayload:    fullBlock,
	})
	rightBytes := buildStoreCabinet(rawCabinetSpec{
		setID: 7, index: 1, hasPrev: true,
		files: []rawFileSpec{
			{name: "straddler.bin", uncompSize: 20000, folderOffset: 12768, folderIndex: folderContinuedFromPrev},
		},
		blockUncompSize: 0,
		blockPayload:    nil,
	})

	left, err := Parse(OpenReader(bytes.NewReader(leftBytes)), "left.cab", ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(left): %v", err)
	}
	right, err := Parse(OpenReader(bytes.NewReader(rightBytes)), "right.cab", ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(right): %v", err)
	}

	if err := Append(left, right); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if right.Prev != left || left.Next != right {
		t.Fatalf("sibling links not set: left.Next=%v right.Prev=%v", left.Next, right.Prev)
	}
	if len(right.Files) != 0 {
		t.Fatalf("right cabinet still lists %d files after merge, want 0 (duplicate removed)", len(right.Files))
	}

	f := findFile(left, "straddler.bin")
	if f == nil {
		t.Fatalf("straddler.bin missing from left cabinet after merge")
	}

	ex := NewExtractor(ExtractOptions{})
	defer ex.Close()
	got := extractToBytes(t, ex, f)
	if len(got) != 20000 {
		t.Fatalf("extracted %d bytes, want 20000", len(got))
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("extracted bytes do not match the source block's tail")
	}
}

// Scenario 6: embedded cabinet search.
func TestEmbeddedCabinetSearch(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))

	entries := []Entry{{Name: "needle.txt", Data: bytes.Repeat([]byte("needle"), 1000)}}
	var cabBuf bytes.Buffer
	body, err := buildCabinet(entries, WriteOptions{Compress: CompressNone})
	if err != nil {
		t.Fatalf("buildCabinet: %v", err)
	}
	cabBuf.Write(body)

	prefix := make([]byte, 50000)
	rnd.Read(prefix)
	suffix := make([]byte, 30000)
	rnd.Read(suffix)

	var stream bytes.Buffer
	stream.Write(prefix)
	stream.Write(cabBuf.Bytes())
	stream.Write(suffix)

	found, err := Search(OpenReader(bytes.NewReader(stream.Bytes())), int64(stream.Len()), SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("Search found %d cabinets, want 1", len(found))
	}

	c := found[0]
	if c.BaseOffset != int64(len(prefix)) {
		t.Errorf("BaseOffset = %d, want %d", c.BaseOffset, len(prefix))
	}
	if len(c.Files) != 1 || c.Files[0].Name != "needle.txt" {
		t.Fatalf("unexpected file list: %+v", c.Files)
	}

	ex := NewExtractor(ExtractOptions{})
	defer ex.Close()
	got := extractToBytes(t, ex, c.Files[0])
	if !bytes.Equal(got, entries[0].Data) {
		t.Fatalf("extracted embedded cabinet's file content did not match")
	}
}
