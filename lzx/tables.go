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

package lzx

// positionBase and extraBits are the standard LZX position-slot tables: the
// base offset and footer-bit count for each of the (up to) 50 position
// slots a match offset can resolve to.
var positionBase = [51]uint32{
	0, 1, 2, 3, 4, 6, 8, 12, 16, 24,
	32, 48, 64, 96, 128, 192, 256, 384, 512, 768,
	1024, 1536, 2048, 3072, 4096, 6144, 8192, 12288, 16384, 24576,
	32768, 49152, 65536, 98304, 131072, 196608, 262144, 393216, 524288, 655360,
	786432, 917504, 1048576, 1179648, 1310720, 1441792, 1572864, 1703936, 1835008, 1966080,
	2097152,
}

var extraBits = [51]uint8{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	14, 14, 15, 15, 16, 16, 17, 17, 17, 17,
	17, 17, 17, 17, 17, 17, 17, 17, 17, 17,
}

// numPositionSlots maps a folder's window_bits (15..21) to the number of
// position slots its main tree's match-symbol range covers.
var numPositionSlots = map[int]int{
	15: 30,
	16: 32,
	17: 34,
	18: 36,
	19: 38,
	20: 42,
	21: 50,
}

// MinWindowBits and MaxWindowBits bound the per-folder window size LZX
// supports.
const (
	MinWindowBits = 15
	MaxWindowBits = 21
)

const (
	numChars        = 256 // literal symbols 0..255 in the main tree
	numPrimaryLens  = 7   // length headers 0..6 map directly to lengths 2..8
	lenTreeElements = 249 // length tree symbols, extending lengths beyond 8
	pretreeElements = 20
	alignedElements = 8

	minMatchLen = 2
	maxMatchLen = minMatchLen + numPrimaryLens + lenTreeElements - 1 // 2 + 7 + 249 - 1 = 257

	frameSize = 32768
)

// blockType enumerates the three LZX block kinds.
type blockType uint8

const (
	blockVerbatim    blockType = 1
	blockAligned     blockType = 2
	blockUncompEntry blockType = 3
)

func mainTreeSize(windowBits int) int {
	return numChars + numPositionSlots[windowBits]*8
}
