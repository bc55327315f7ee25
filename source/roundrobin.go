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

package source

import "sync/atomic"

// roundRobin fans out across a fixed set of sources, rotating the start
// position on every call so that no single source can starve the others —
// the fairness that the left-biased Combine does not provide.
type roundRobin struct {
	sources []Source
	cursor  atomic.Uint32
	done    []atomic.Bool
}

// RoundRobin returns a fair Source over sources: each TryRecv call starts
// scanning from the position one past where the previous call last found
// something. It is fused: once every underlying source reports Done, every
// subsequent TryRecv also reports Done. An empty list of sources yields
// Empty{}.
func RoundRobin(sources ...Source) Source {
	if len(sources) == 0 {
		return Empty{}
	}
	return &roundRobin{sources: sources, done: make([]atomic.Bool, len(sources))}
}

func (r *roundRobin) TryRecv() (any, State) {
	n := len(r.sources)
	start := int(r.cursor.Load()) % n

	anyPending := false
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if r.done[idx].Load() {
			continue
		}
		v, st := r.sources[idx].TryRecv()
		switch st {
		case Ready:
			r.cursor.Store(uint32((idx + 1) % n))
			return v, Ready
		case Done:
			r.done[idx].Store(true)
		default:
			anyPending = true
		}
	}

	if !anyPending && r.allDone() {
		return nil, Done
	}
	return nil, Pending
}

func (r *roundRobin) allDone() bool {
	for i := range r.done {
		if !r.done[i].Load() {
			return false
		}
	}
	return true
}
