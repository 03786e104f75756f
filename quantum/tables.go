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

// Package quantum implements the Quantum compression codec: arithmetic
// coding driven by nine adaptive frequency models over a 10-to-21-bit
// sliding window, framed at 32768-byte boundaries like MSZIP and LZX.
package quantum

// MinWindowBits and MaxWindowBits bound Quantum's per-folder window size.
const (
	MinWindowBits = 10
	MaxWindowBits = 21
)

const frameSize = 32768

const numLiteralModels = 4

// literalSymbols is the alphabet size of each of the four context-selected
// literal models. §4.7 describes these as 64-symbol tables; reconstructing
// an arbitrary output byte from a 4-way context selection plus a 64-symbol
// decode loses 2 bits of information with no compensating channel, so this
// implementation models the full byte value per context instead. See
// DESIGN.md's Open Question decision for the reasoning.
const literalSymbols = 256

const selectorSymbols = 7 // 4 literal categories + short/medium/long match

const minMatchLen = 3

// posSlotBase/posSlotExtra are the position-slot base-offset and extra-bit
// tables Quantum's three match-offset models (short/medium/long) share,
// truncated per model to {24, 36, 42} entries. They follow the same
// doubling-extra-bits construction as LZX's slot table (see lzx/tables.go);
// the source's literal constants aren't reproduced here (the distilled spec
// doesn't carry them), so this is our own consistent table, not a
// byte-for-byte port. See DESIGN.md.
var posSlotBase = [42]uint32{
	0, 1, 2, 3, 4, 6, 8, 12, 16, 24,
	32, 48, 64, 96, 128, 192, 256, 384, 512, 768,
	1024, 1536, 2048, 3072, 4096, 6144, 8192, 12288, 16384, 24576,
	32768, 49152, 65536, 98304, 131072, 196608, 262144, 393216, 524288, 655360,
	786432, 917504,
}

var posSlotExtra = [42]uint8{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	14, 14, 15, 15, 16, 16, 17, 17, 17, 17,
	17, 17,
}

// posModelSize returns how many of the shared slot table's entries each of
// the three match-offset models (index 0=short, 1=medium, 2=long) actually
// uses for a given window size, per §4.7's "min(window_bits*2, {24,36,42})".
func posModelSize(windowBits, category int) int {
	caps := [3]int{24, 36, 42}
	size := windowBits * 2
	if size > caps[category] {
		size = caps[category]
	}
	if size > len(posSlotBase) {
		size = len(posSlotBase)
	}
	return size
}

// lengthBase/lengthExtra give the 27-entry length-extension table: the
// length model's symbol 0..26 selects a base length plus a count of raw
// extra bits, mirroring LZX's length-tree idea but with Quantum's own
// (likewise invented, see above) group sizes.
var lengthBase [27]uint32
var lengthExtra [27]uint8

// maxRepresentableLength is the longest match the length table can encode;
// the encoder clamps match lengths to this bound.
var maxRepresentableLength int

func init() {
	groups := []struct {
		bits  uint8
		count int
	}{
		{0, 7}, {1, 4}, {2, 4}, {3, 4}, {4, 4}, {5, 2}, {6, 1}, {7, 1},
	}
	b := uint32(minMatchLen)
	idx := 0
	for _, g := range groups {
		for c := 0; c < g.count; c++ {
			lengthBase[idx] = b
			lengthExtra[idx] = g.bits
			b += 1 << g.bits
			idx++
		}
	}
	last := len(lengthBase) - 1
	maxRepresentableLength = int(lengthBase[last]) + (1<<lengthExtra[last] - 1)
}
