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

package dump

import "sync"

// numShards is the number of lock-striped queues the Dumper fans writers
// out across. Chosen to match the original implementation's fixed shard
// count.
const numShards = 16

// shardMaxLen is the per-shard backpressure ceiling. Once a shard holds
// this many items, further dump() calls against it are dropped silently
// rather than blocking the writer or growing without bound.
const shardMaxLen = 300_000

// shard is one lock-striped queue of pending DumpItems.
type shard struct {
	mu    sync.Mutex
	items []DumpItem
}

// push appends item to the shard unless it is already at capacity. Returns
// false if the item was dropped.
func (s *shard) push(item DumpItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) >= shardMaxLen {
		return false
	}
	s.items = append(s.items, item)
	return true
}

// swap atomically replaces the shard's queue with an empty one and returns
// whatever was in it, preserving writer order within the returned slice.
func (s *shard) swap() []DumpItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil
	}
	out := s.items
	s.items = nil
	return out
}
