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

package huffman

import "container/heap"

// BuildLengths derives a canonical-Huffman-ready code-length vector from
// symbol frequencies using the standard greedy tree-merge algorithm
// (symbols with zero frequency get length 0, i.e. unused). If the greedy
// tree would need a code longer than maxLen, every symbol that actually
// occurs falls back to a flat length sized to fit the used-symbol count
// (always valid since the number of LZX tree symbols is tiny next
// to 2^maxLen).
func BuildLengths(freqs []uint32, maxLen uint8) []uint8 {
	lens := make([]uint8, len(freqs))

	type used struct {
		sym  int
		freq uint32
	}
	var items []used
	for sym, f := range freqs {
		if f > 0 {
			items = append(items, used{sym, f})
		}
	}
	switch len(items) {
	case 0:
		return lens
	case 1:
		lens[items[0].sym] = 1
		return lens
	}

	pq := make(nodeHeap, 0, len(items))
	heap.Init(&pq)
	for _, it := range items {
		heap.Push(&pq, &node{freq: it.freq, sym: it.sym, leaf: true})
	}
	for pq.Len() > 1 {
		a := heap.Pop(&pq).(*node)
		b := heap.Pop(&pq).(*node)
		heap.Push(&pq, &node{freq: a.freq + b.freq, left: a, right: b})
	}
	root := heap.Pop(&pq).(*node)

	overLimit := false
	var walk func(n *node, depth uint8)
	walk = func(n *node, depth uint8) {
		if n.leaf {
			lens[n.sym] = depth
			if depth > maxLen {
				overLimit = true
			}
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(root, 0)

	if !overLimit {
		return lens
	}

	// Flat fallback: every used symbol gets the same length, wide enough
	// to give each one a distinct code.
	flat := uint8(1)
	for (1 << flat) < len(items) {
		flat++
	}
	if flat > maxLen {
		flat = maxLen
	}
	for i := range lens {
		lens[i] = 0
	}
	for _, it := range items {
		lens[it.sym] = flat
	}
	return lens
}

type node struct {
	freq        uint32
	sym         int
	leaf        bool
	left, right *node
}

type nodeHeap []*node

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].freq < h[j].freq }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*node)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
