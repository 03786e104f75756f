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

// e8MinFilesize is the smallest filesize for which call-offset translation
// is even meaningful (a 5-byte CALL instruction needs 10 bytes of margin
// per §6's predicate).
const e8MinFilesize = 10

// e8Transform rewrites x86 CALL (0xE8) relative offsets to absolute ones,
// for the byte range [base, base+len(buf)) of a stream whose total size is
// filesize. It returns a new slice; buf is never mutated.
func e8Transform(buf []byte, base int64, filesize uint32) []byte {
	return e8Rewrite(buf, base, filesize, true)
}

// e8Untransform reverses e8Transform.
func e8Untransform(buf []byte, base int64, filesize uint32) []byte {
	return e8Rewrite(buf, base, filesize, false)
}

func e8Rewrite(buf []byte, base int64, filesize uint32, encode bool) []byte {
	if filesize < e8MinFilesize {
		return append([]byte(nil), buf...)
	}
	out := append([]byte(nil), buf...)
	limit := int64(filesize) - e8MinFilesize
	for i := 0; i < len(out); i++ {
		p := base + int64(i)
		if p > limit {
			break
		}
		if out[i] != 0xE8 {
			continue
		}
		if i+5 > len(out) {
			break
		}
		cur := int32(uint32(out[i+1]) | uint32(out[i+2])<<8 | uint32(out[i+3])<<16 | uint32(out[i+4])<<24)

		if encode {
			// Plain data holds an absolute-looking operand already; only
			// rewrite it to p-relative form when it falls in range, so the
			// decoder's inverse test (computed on its own stored value)
			// lands on exactly the positions this pass touched.
			abs := int64(cur)
			if abs < 0 || abs >= int64(filesize) {
				continue
			}
			writeLE32(out[i+1:i+5], uint32(abs-p))
		} else {
			abs := int64(cur) + p
			if abs < 0 || abs >= int64(filesize) {
				continue
			}
			writeLE32(out[i+1:i+5], uint32(abs))
		}
		i += 4
	}
	return out
}

func writeLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
