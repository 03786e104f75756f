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

package quantum

import "fmt"

// maxTotalFreq bounds a model's summed frequency so arithEncoder/arithDecoder
// (16-bit range) never overflow; §4.7's "total threshold" for rescaling.
const maxTotalFreq = 1 << 13

const freqIncrement = 8

// model is one of Quantum's nine adaptive frequency tables: an ordered
// vector of (symbol, frequency) pairs, kept sorted by descending frequency
// (ties broken by insertion order), rescaled by half (floor 1) whenever the
// total crosses maxTotalFreq.
type model struct {
	syms  []uint16
	freq  []uint32
	total uint32
}

// newModel builds a model over numSyms symbols (0..numSyms-1), each starting
// with frequency 1 in symbol order.
func newModel(numSyms int) *model {
	m := &model{
		syms: make([]uint16, numSyms),
		freq: make([]uint32, numSyms),
	}
	for i := range m.syms {
		m.syms[i] = uint16(i)
		m.freq[i] = 1
	}
	m.total = uint32(numSyms)
	return m
}

// encode writes symbol sym through enc, then adapts.
func (m *model) encode(enc *arithEncoder, sym uint16) error {
	idx, cum, ok := m.find(sym)
	if !ok {
		return fmt.Errorf("quantum: symbol %d not in model", sym)
	}
	if err := enc.encode(cum, m.freq[idx], m.total); err != nil {
		return err
	}
	m.update(idx)
	return nil
}

// decode reads one symbol through dec, then adapts.
func (m *model) decode(dec *arithDecoder) (uint16, error) {
	target := dec.getFreq(m.total)
	var cum uint32
	for idx, f := range m.freq {
		if target < cum+f {
			sym := m.syms[idx]
			if err := dec.decode(cum, f, m.total); err != nil {
				return 0, err
			}
			m.update(idx)
			return sym, nil
		}
		cum += f
	}
	return 0, fmt.Errorf("quantum: decode target %d exceeds model total %d", target, m.total)
}

func (m *model) find(sym uint16) (idx int, cum uint32, ok bool) {
	for i, s := range m.syms {
		if s == sym {
			return i, cum, true
		}
		cum += m.freq[i]
	}
	return 0, 0, false
}

func (m *model) update(idx int) {
	m.freq[idx] += freqIncrement
	m.total += freqIncrement
	if m.total > maxTotalFreq {
		m.total = 0
		for i := range m.freq {
			m.freq[i] = (m.freq[i] + 1) / 2
			m.total += m.freq[i]
		}
	}
	for idx > 0 && m.freq[idx] > m.freq[idx-1] {
		m.syms[idx], m.syms[idx-1] = m.syms[idx-1], m.syms[idx]
		m.freq[idx], m.freq[idx-1] = m.freq[idx-1], m.freq[idx]
		idx--
	}
}
