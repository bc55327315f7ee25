// Copyright 2020 The Monogon Project Authors.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logtree

import "sync"

// journalRetention bounds how many entries are kept per origin, discarding
// the oldest once exceeded. Each origin gets its own independent quota —
// one chatty origin cannot starve another's retained history.
const journalRetention = 8192

// journal is the in-memory, per-origin bounded log store backing LogTree.
// It holds no reference to any particular actor or Scope; LogTree is the
// seam that ties journal entries to the supervisor tree.
type journal struct {
	mu       sync.Mutex
	byOrigin map[DN][]*entry
}

func newJournal() *journal {
	return &journal{byOrigin: make(map[DN][]*entry)}
}

func (j *journal) append(e *entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := append(j.byOrigin[e.origin], e)
	if len(entries) > journalRetention {
		drop := len(entries) - journalRetention
		entries = entries[drop:]
	}
	j.byOrigin[e.origin] = entries
}

// getEntries returns a copy of the retained entries for the exact origin
// dn, oldest first.
func (j *journal) getEntries(dn DN) []*entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	src := j.byOrigin[dn]
	out := make([]*entry, len(src))
	copy(out, src)
	return out
}

// scanEntries returns every retained entry across every origin matching f.
func (j *journal) scanEntries(f filter) []*entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*entry
	for _, entries := range j.byOrigin {
		for _, e := range entries {
			if f(e) {
				out = append(out, e)
			}
		}
	}
	return out
}
