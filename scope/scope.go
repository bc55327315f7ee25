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

// Package scope carries the per-actor-task state — address, metadata, and
// the current trace id — that log and dump sites read. The original design
// makes this implicit, goroutine/task-local state; Go has no supported way
// to read "the state associated with whatever goroutine is currently
// running" without it being threaded through explicitly, so this rendition
// carries Scope through context.Context, the idiomatic Go analogue, and
// exposes accessors that take a ctx the way source.monogon.dev's own
// supervisor.Logger(ctx) pattern does.
package scope

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"source.monogon.dev/actor/addr"
)

// NewTraceID mints a fresh wire-format trace id for a new unit of work
// (e.g. an inbound request with no trace id of its own yet), derived from a
// random UUID's low 64 bits so that trace ids minted concurrently across
// many nodes don't collide without needing a coordinated counter.
func NewTraceID() uint64 {
	id := uuid.New()
	var v uint64
	for _, b := range id[8:16] {
		v = v<<8 | uint64(b)
	}
	return v
}

// Meta is the effectively-immutable part of a Scope: who the actor is, for
// humans and for the dump pipeline.
type Meta struct {
	// Group is the owning Supervisor's name.
	Group string
	// Key is the routing key this actor was spawned for, formatted for
	// display (the Supervisor is generic over K; Meta only needs its
	// string form).
	Key string
}

func (m *Meta) String() string {
	if m.Key == "" {
		return m.Group
	}
	return fmt.Sprintf("%s.%s", m.Group, m.Key)
}

// Scope is the per-actor-task state. A Scope is created once per spawned
// actor (or, for driver/non-actor code that still wants to dump/log, once
// per ad-hoc unit of work) and lives for that task's entire lifetime.
type Scope struct {
	addr    addr.Addr
	meta    *Meta
	traceID atomic.Uint64

	// shard caches this Scope's assigned Dumper shard (see the dump
	// package); -1 (set by New) means "not yet assigned", any other value is
	// the shard index itself.
	shard atomic.Int32
}

// New creates a Scope bound to addr/meta, with no trace id set (zero
// value).
func New(a addr.Addr, meta *Meta) *Scope {
	s := &Scope{addr: a, meta: meta}
	s.shard.Store(-1)
	return s
}

// Addr returns the Scope's actor address.
func (s *Scope) Addr() addr.Addr { return s.addr }

// Meta returns the Scope's object metadata.
func (s *Scope) Meta() *Meta { return s.meta }

// TraceID returns the current trace id, as a plain uint64 wire value.
func (s *Scope) TraceID() uint64 { return s.traceID.Load() }

// SetTraceID replaces the current trace id. Cheap and safe to call for
// every inbound message.
func (s *Scope) SetTraceID(id uint64) { s.traceID.Store(id) }

// dumperShard returns this Scope's cached Dumper shard index and whether one
// has been assigned yet.
func (s *Scope) dumperShard() (int, bool) {
	v := s.shard.Load()
	if v < 0 {
		return 0, false
	}
	return int(v), true
}

func (s *Scope) setDumperShard(shard int) {
	s.shard.CompareAndSwap(-1, int32(shard))
}

type ctxKey struct{}

// Within runs f with s installed in ctx, returning f's result. This is the
// Go rendition of the original's async Scope::within(f).
func Within[T any](ctx context.Context, s *Scope, f func(context.Context) T) T {
	return f(context.WithValue(ctx, ctxKey{}, s))
}

// SyncWithin runs f with s installed in a background-derived context,
// returning f's result. This is the rendition of Scope::sync_within(f) for
// non-context synchronous call sites (e.g. a Router implementation that
// wants to dump/log without being handed a ctx).
func SyncWithin[T any](s *Scope, f func(context.Context) T) T {
	return Within(context.Background(), s, f)
}

func from(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Scope)
	return s, ok
}

// TryMeta returns the enclosing Scope's metadata, or false if ctx carries no
// Scope.
func TryMeta(ctx context.Context) (*Meta, bool) {
	s, ok := from(ctx)
	if !ok {
		return nil, false
	}
	return s.Meta(), true
}

// MetaOf returns the enclosing Scope's metadata. It panics if ctx carries no
// Scope — a programming error, exactly as the original's non-try accessors
// document.
func MetaOf(ctx context.Context) *Meta {
	m, ok := TryMeta(ctx)
	if !ok {
		panic("scope: Meta called outside any Scope")
	}
	return m
}

// TryAddr returns the enclosing Scope's address, or false if ctx carries no
// Scope.
func TryAddr(ctx context.Context) (addr.Addr, bool) {
	s, ok := from(ctx)
	if !ok {
		return addr.NULL, false
	}
	return s.Addr(), true
}

// AddrOf returns the enclosing Scope's address. Panics outside any Scope.
func AddrOf(ctx context.Context) addr.Addr {
	a, ok := TryAddr(ctx)
	if !ok {
		panic("scope: Addr called outside any Scope")
	}
	return a
}

// TryTraceID returns the enclosing Scope's current trace id, or false if
// ctx carries no Scope.
func TryTraceID(ctx context.Context) (uint64, bool) {
	s, ok := from(ctx)
	if !ok {
		return 0, false
	}
	return s.TraceID(), true
}

// TraceID returns the enclosing Scope's current trace id. Panics outside
// any Scope.
func TraceID(ctx context.Context) uint64 {
	id, ok := TryTraceID(ctx)
	if !ok {
		panic("scope: TraceID called outside any Scope")
	}
	return id
}

// SetTraceID replaces the enclosing Scope's trace id. Panics outside any
// Scope.
func SetTraceID(ctx context.Context, id uint64) {
	s, ok := from(ctx)
	if !ok {
		panic("scope: SetTraceID called outside any Scope")
	}
	s.SetTraceID(id)
}

// DumperShard returns the enclosing Scope's cached Dumper shard index,
// assigning one via assign() on first use and caching it for the Scope's
// remaining lifetime. Returns false if ctx carries no Scope at all (the
// dump package falls back to an uncached per-call assignment in that case).
func DumperShard(ctx context.Context, assign func() int) (int, bool) {
	s, ok := from(ctx)
	if !ok {
		return 0, false
	}
	if shard, ok := s.dumperShard(); ok {
		return shard, true
	}
	shard := assign()
	s.setDumperShard(shard)
	shard, _ = s.dumperShard()
	return shard, true
}
