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
	"io"
)

// searchBufSize is the default chunk size Search reads the stream in.
const searchBufSize = 32768

// SearchOptions configures Search.
type SearchOptions struct {
	// BufSize overrides the chunk size candidates are scanned in; zero
	// selects searchBufSize.
	BufSize int
	// Salvage is forwarded to every Parse call the search makes, and also
	// relaxes the offset+length sanity check a candidate signature match
	// must pass before Search attempts to parse it.
	Salvage bool
}

// Search scans r for embedded cabinets the way extrac32's libmspack-derived
// heuristic does (§4.9): a four-state byte-at-a-time scan for the "MSCF"
// signature, a cheap plausibility check on the header immediately
// following a match, and — only if that passes — a full Parse. A failed
// Parse resumes the scan four bytes past the signature that triggered it,
// so one false-positive "MSCF" does not block a later, real one.
func Search(r baseReader, streamLen int64, opts SearchOptions) ([]*Cabinet, error) {
	bufSize := opts.BufSize
	if bufSize <= 0 {
		bufSize = searchBufSize
	}

	var found []*Cabinet
	var state int // count of "MSCF" bytes matched so far, 0..4
	var pos int64

	buf := make([]byte, bufSize)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errTruncated("", 0, "seeking to start of search stream: %w", err)
	}

	for {
		n, rerr := r.Read(buf)
		chunkEnd := pos + int64(n)
		for i := 0; i < n; i++ {
			if buf[i] == "MSCF"[state] {
				state++
			} else if buf[i] == "MSCF"[0] {
				state = 1
			} else {
				state = 0
			}
			if state != 4 {
				continue
			}
			state = 0
			candidateOffset := pos + int64(i) - 3
			cab, ok := tryCandidate(r, candidateOffset, streamLen, opts)
			// tryCandidate seeks r around while probing; restore the
			// sequential read position before resuming the byte scan.
			if _, err := r.Seek(chunkEnd, io.SeekStart); err != nil {
				return found, errTruncated("", chunkEnd, "restoring scan position: %w", err)
			}
			if ok {
				found = append(found, cab)
			}
		}
		pos += int64(n)
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return found, errTruncated("", pos, "reading search stream: %w", rerr)
		}
		if n == 0 {
			break
		}
	}

	return found, nil
}

// tryCandidate reads just enough of the header at offset to apply §4.9's
// plausibility predicate before committing to a full Parse. It leaves r's
// read position wherever the probe stopped; Search seeks back afterwards.
func tryCandidate(r baseReader, offset, streamLen int64, opts SearchOptions) (*Cabinet, bool) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, false
	}
	var hdr rawHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, false
	}
	if hdr.NumFolders == 0 || hdr.NumFiles == 0 {
		return nil, false
	}
	if int64(hdr.FilesOffset) >= int64(hdr.CabinetSize) {
		return nil, false
	}
	if offset+int64(hdr.FilesOffset) >= streamLen+32 {
		return nil, false
	}
	if !opts.Salvage && offset+int64(hdr.CabinetSize) > streamLen+32 {
		return nil, false
	}

	cab, err := Parse(r, "", ParseOptions{BaseOffset: offset, Salvage: opts.Salvage, Quiet: true})
	if err != nil {
		return nil, false
	}
	return cab, true
}
