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
	"io"
	"os"
)

// baseReader is what the parser, block reader and searcher need from a
// cabinet's byte source: seekable, readable, and closable once the
// extraction pass that opened it is done. *os.File and a wrapped
// bytes.Reader both satisfy it (see OpenFile/OpenReader below).
type baseReader interface {
	io.ReadSeeker
	io.Closer
}

// nopCloser adapts an io.ReadSeeker with no meaningful Close (e.g. an
// in-memory buffer) to baseReader.
type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

// OpenFile opens name on disk and returns a Cabinet's byte source, the form
// the extractor and searcher expect when working from a path rather than an
// already-open handle.
func OpenFile(name string) (baseReader, error) {
	return os.Open(name)
}

// OpenReader wraps an already-open seekable byte source (for example an
// in-memory buffer, or a slice of a larger embedding stream) as a
// baseReader with a no-op Close.
func OpenReader(r io.ReadSeeker) baseReader {
	return nopCloser{r}
}
