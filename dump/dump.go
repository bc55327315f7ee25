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

import (
	"context"
	"sync/atomic"

	"source.monogon.dev/actor/metrics"
	"source.monogon.dev/actor/scope"
)

// nextShardNo is the process-wide cursor handed out to whichever Scope (or
// bare goroutine, for calls made outside any Scope) asks for a shard
// assignment next. This is the Go analogue of the original's
// thread_local!-cached NEXT_SHARD_NO.fetch_add: Go has no stable
// goroutine-to-OS-thread affinity to key off, so the assignment is cached
// per Scope instead (see scope.DumperShard) rather than per OS thread. The
// cache-once-per-Scope behavior still gives each long-lived actor a stable
// shard for its whole lifetime, which is what the original's per-thread
// caching is actually for: bounding lock contention, not identity.
var nextShardNo atomic.Uint64

func assignShard() int {
	return int(nextShardNo.Add(1)-1) % numShards
}

// PerGroup holds the state a single owning group (Supervisor) needs for its
// own dump stream: a sequence-number generator private to that group, and
// the enabled/disabled flags gating whether dump() does any work at all.
type PerGroup struct {
	sequenceNo atomic.Uint64
	isPossible bool
	isDisabled atomic.Bool
}

// NewPerGroup creates per-group dump state. isPossible mirrors the
// original's compile-time "is dumping even wired up for this group"
// capability flag; here it is simply decided by the caller at group
// construction time (e.g. the supervisor package, when building a
// Supervisor).
func NewPerGroup(isPossible bool) *PerGroup {
	return &PerGroup{isPossible: isPossible}
}

// SetDisabled flips the runtime kill switch for this group's dump stream,
// intended to be driven from live configuration.
func (g *PerGroup) SetDisabled(disabled bool) {
	g.isDisabled.Store(disabled)
}

// IsEnabled reports whether dumping is both possible and not currently
// disabled for this group.
func (g *PerGroup) IsEnabled() bool {
	return g.isPossible && !g.isDisabled.Load()
}

func (g *PerGroup) nextSequence() uint64 {
	return g.sequenceNo.Add(1)
}

// Dumper is the process-wide sink every group's dump calls funnel into. A
// single Dumper is meant to be shared by every Supervisor in a process; each
// group supplies its own *PerGroup for sequencing and enable/disable state.
type Dumper struct {
	shards [numShards]shard
}

// New creates an empty Dumper.
func New() *Dumper {
	return &Dumper{}
}

// Dump records one message under the group described by g, reading the
// current Scope out of ctx for its metadata and trace id. If ctx carries no
// Scope, the item is still recorded (with a zero-value Meta/trace id)
// rather than dropped, since dump() is deliberately tolerant of being called
// from ad-hoc, non-actor code.
func (d *Dumper) Dump(ctx context.Context, g *PerGroup, direction Direction, class, name, protocol string, kind MessageKind, message any) {
	if !g.IsEnabled() {
		return
	}

	meta, _ := scope.TryMeta(ctx)
	traceID, _ := scope.TryTraceID(ctx)

	item := newItem(meta, g.nextSequence(), traceID, direction, class, name, protocol, kind, message)

	shardNo, ok := scope.DumperShard(ctx, assignShard)
	if !ok {
		shardNo = assignShard()
	}
	if !d.shards[shardNo].push(item) {
		metrics.DumpItemsDropped.WithLabelValues(class).Inc()
		return
	}
	metrics.DumpItemsRecorded.WithLabelValues(class).Inc()
}

// Drain returns a fresh iterator over everything currently queued across
// all shards. Each Drain starts its round-robin scan at shard 0; no cursor
// is carried over from an earlier Drain.
func (d *Dumper) Drain() *Drain {
	return &Drain{dumper: d}
}

// Drain scans the Dumper's shards round-robin, swapping each non-empty
// shard's queue out wholesale and yielding it in order before moving on to
// the next shard. One full revolution that finds every shard empty ends the
// iteration.
type Drain struct {
	dumper  *Dumper
	shardNo int
	queue   []DumpItem
}

// Next returns the next queued item and true, or a zero DumpItem and false
// once the Drain has made one full empty revolution of all shards.
func (it *Drain) Next() (DumpItem, bool) {
	if len(it.queue) > 0 {
		item := it.queue[0]
		it.queue = it.queue[1:]
		return item, true
	}

	it.refill()
	if len(it.queue) == 0 {
		return DumpItem{}, false
	}
	item := it.queue[0]
	it.queue = it.queue[1:]
	return item, true
}

func (it *Drain) refill() {
	start := it.shardNo
	next := start
	for {
		it.queue = it.dumper.shards[next].swap()
		next = (next + 1) % numShards
		if len(it.queue) != 0 || next == start {
			break
		}
	}
	it.shardNo = next
}
