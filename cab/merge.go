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

import "fmt"

const maxFolderBlocks = 65535

// Append links right after left as siblings in one cabinet set and, when
// the two cabinets share a folder split across the boundary (left's last
// folder ends in a file marked continued-to-next, right's first folder
// starts with the matching continued-from-prev file), merges that folder
// into one continuous FolderData chain, per §4.10's folder-chain merging
// rules.
func Append(left, right *Cabinet) error {
	if left.SetID != right.SetID {
		return fmt.Errorf("cab: cannot append cabinet from set %d onto set %d", right.SetID, left.SetID)
	}
	if right.Index != left.Index+1 {
		return fmt.Errorf("cab: cannot append cabinet index %d directly after index %d", right.Index, left.Index)
	}

	leftStraddler := findFileBySentinel(left.Files, folderContinuedToNext)
	rightStraddler := findFileBySentinel(right.Files, folderContinuedFromPrev)

	if leftStraddler != nil && rightStraddler != nil {
		if err := mergeFolders(leftStraddler, rightStraddler); err != nil {
			return err
		}
	}

	left.Next = right
	right.Prev = left
	return nil
}

func findFileBySentinel(files []*File, sentinel uint16) *File {
	for _, f := range files {
		if f.FolderIndex == sentinel {
			return f
		}
	}
	return nil
}

// mergeFolders splices rightFile's folder onto the tail of leftFile's
// folder, checking the preconditions §4.10 names: same compression method,
// a combined block count that still fits the 16-bit CFFOLDER field, and
// matching (offset, length) identity between the two halves of the
// straddling file.
func mergeFolders(leftFile, rightFile *File) error {
	left, right := leftFile.folder, rightFile.folder

	if left.Compress != right.Compress || left.WindowBits != right.WindowBits {
		return fmt.Errorf("cab: cannot merge folders with different compression methods")
	}
	if leftFile.Name != rightFile.Name || leftFile.FolderOffset != rightFile.FolderOffset || leftFile.UncompressedSize != rightFile.UncompressedSize {
		return fmt.Errorf("cab: straddling file identity mismatch: %q@%d+%d vs %q@%d+%d",
			leftFile.Name, leftFile.FolderOffset, leftFile.UncompressedSize,
			rightFile.Name, rightFile.FolderOffset, rightFile.UncompressedSize)
	}
	combined := int(left.NumBlocks) + int(right.NumBlocks) - 1
	if combined > maxFolderBlocks {
		return fmt.Errorf("cab: merged folder would need %d blocks, exceeding the %d maximum", combined, maxFolderBlocks)
	}

	tail := left.Data
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = right.Data
	left.NumBlocks = uint16(combined)

	left.MergeNext = right
	right.MergePrev = left

	rightOwner := right.owner
	for i, f := range rightOwner.Files {
		if f == rightFile {
			rightOwner.Files = append(rightOwner.Files[:i:i], rightOwner.Files[i+1:]...)
			break
		}
	}
	for _, f := range rightOwner.Files {
		if f.folder == right {
			f.folder = left
		}
	}
	for i, fo := range rightOwner.Folders {
		if fo == right {
			rightOwner.Folders[i] = left
		}
	}

	return nil
}
