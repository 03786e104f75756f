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

// checksum folds data into 4-byte little-endian groups XORed together,
// starting from seed, with libmspack's historical tail convention for the
// final 1-3 bytes. Pass 0 to checksum a block's compressed payload alone;
// pass the data checksum to additionally fold in the CFDATA header fields.
func checksum(data []byte, seed uint32) uint32 {
	c := seed
	n := len(data)
	full := n - n%4
	for i := 0; i < full; i += 4 {
		c ^= uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
	}
	tail := data[full:]
	switch len(tail) {
	case 3:
		c ^= uint32(tail[0])<<16 | uint32(tail[1])<<8 | uint32(tail[2])
	case 2:
		c ^= uint32(tail[0])<<8 | uint32(tail[1])
	case 1:
		c ^= uint32(tail[0])
	}
	return c
}

// cfDataChecksum computes the stored CFDATA checksum field: the compressed
// payload's checksum XORed with the checksum of the 4-byte
// compressed_size‖uncompressed_size header fields, per §6.
func cfDataChecksum(payload []byte, compSize, uncompSize uint16) uint32 {
	header := []byte{
		byte(compSize), byte(compSize >> 8),
		byte(uncompSize), byte(uncompSize >> 8),
	}
	dataSum := checksum(payload, 0)
	return checksum(header, dataSum)
}
