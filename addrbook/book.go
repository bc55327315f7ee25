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

// Package addrbook implements the AddressBook: the process-local registry
// mapping Addr to live Object values (actors, group stubs, remote proxies).
package addrbook

import (
	"context"
	"sync/atomic"

	"source.monogon.dev/actor/addr"
	"source.monogon.dev/actor/scope"
)

// Book is a process-local AddressBook. One Book exists per actor-system
// instance (a process normally runs exactly one).
type Book struct {
	launch addr.NodeLaunchId
	local  *slab
	remote atomic.Pointer[remoteSnapshot]
}

// New creates an empty Book. launch should be randomized once per process
// start (see addr.NodeLaunchId) and held fixed for the process's lifetime.
func New(launch addr.NodeLaunchId) *Book {
	b := &Book{launch: launch, local: newSlab(0)}
	b.remote.Store(newRemoteSnapshot())
	return b
}

// Launch returns this Book's launch id, needed by callers that mint
// addresses directly (e.g. tests constructing an Addr by hand).
func (b *Book) Launch() addr.NodeLaunchId { return b.launch }

// VacantEntry is a reserved, not-yet-occupied slab slot. Splitting
// reservation from insertion lets a caller mint an actor's final Addr (to
// pass into its own constructor, for self-referential mailboxes) before the
// Object exists.
type VacantEntry struct {
	book  *Book
	index uint32
	entry *slotEntry
	addr  addr.Addr
}

// Addr returns the address this entry will be inserted under.
func (v *VacantEntry) Addr() addr.Addr { return v.addr }

// Insert occupies the reserved slot with obj, which must report v.Addr()
// from its Addr() method.
func (v *VacantEntry) Insert(obj Object) {
	v.book.local.insert(v.index, v.entry, obj, v.addr)
}

// Abandon releases the reservation without ever inserting an Object,
// returning the slot to the freelist untouched. Used when actor
// construction fails after the Addr was minted but before Insert.
func (v *VacantEntry) Abandon() {
	v.book.local.abandon(v.index)
}

// Reserve allocates a fresh slot for group and returns a VacantEntry. It
// returns ErrSlabExhausted if the Book was constructed with a bounded
// capacity that has been reached.
func (b *Book) Reserve(group addr.GroupNo) (*VacantEntry, error) {
	index, entry, ok := b.local.reserve()
	if !ok {
		return nil, ErrSlabExhausted
	}
	gen := uint16(entry.generation.Load())
	key := addr.SlotKey{Index: index, Generation: gen}
	a := addr.New(key, group, b.launch)
	return &VacantEntry{book: b, index: index, entry: entry, addr: a}, nil
}

// Get resolves addr to its Object. It implements the three-step resolution
// rule: NULL always misses; a remote-flagged addr is translated through the
// caller's current Scope via the remote map; everything else is resolved
// against the local slab, with the returned Object's own Addr() compared
// against the requested address as the authoritative validator (the slab's
// generation match is necessary but, across a crash/restart, not
// sufficient — see addr.New's launch-salting doc comment).
func (b *Book) Get(ctx context.Context, a addr.Addr) (Object, bool) {
	if a.IsNull() {
		return nil, false
	}
	if a.IsRemote() {
		localActor, ok := scope.TryAddr(ctx)
		if !ok {
			return nil, false
		}
		proxyAddr, ok := b.lookupRemote(localActor, a)
		if !ok {
			return nil, false
		}
		a = proxyAddr
	}
	return b.getLocal(a)
}

// GetLocal resolves a known-local address directly, bypassing the
// remote-map translation step. Useful for driver code (e.g. a Supervisor
// resolving one of its own children) that already knows it is not dealing
// with a remote-flagged Addr.
func (b *Book) GetLocal(a addr.Addr) (Object, bool) {
	if a.IsNull() || a.IsRemote() {
		return nil, false
	}
	return b.getLocal(a)
}

func (b *Book) getLocal(a addr.Addr) (Object, bool) {
	key := a.SlotKey(b.launch)
	so, ok := b.local.get(key.Index, key.Generation)
	if !ok {
		return nil, false
	}
	if so.addr != a {
		return nil, false
	}
	return so.object, true
}

// ObjectHandle is a reference-counted handle returned by GetOwned. Unlike
// the Object reference Get returns, which is only valid for the instant of
// the call (a concurrent Remove can recycle the slot immediately after), a
// handle keeps its slot out of the freelist until Release is called,
// letting a caller hold onto an Object across a yield point safely.
type ObjectHandle struct {
	book  *Book
	index uint32
	addr  addr.Addr
	obj   Object
}

// Addr returns the address this handle was resolved from.
func (h *ObjectHandle) Addr() addr.Addr { return h.addr }

// Object returns the held Object. Valid until Release.
func (h *ObjectHandle) Object() Object { return h.obj }

// Release drops this handle's hold on its slot. Call exactly once; Go
// cannot enforce move-only semantics the way the original's handle type
// does, so a double Release would under-count and let the slot free early
// while a sibling handle is still live.
func (h *ObjectHandle) Release() {
	h.book.local.release(h.index)
}

// GetOwned resolves a the same way Get does, but returns a reference-counted
// ObjectHandle instead of a bare Object: the slot is kept alive
// (immune to Remove's freelist reuse) until the handle's Release is called.
func (b *Book) GetOwned(ctx context.Context, a addr.Addr) (*ObjectHandle, bool) {
	if a.IsNull() {
		return nil, false
	}
	if a.IsRemote() {
		localActor, ok := scope.TryAddr(ctx)
		if !ok {
			return nil, false
		}
		proxyAddr, ok := b.lookupRemote(localActor, a)
		if !ok {
			return nil, false
		}
		a = proxyAddr
	}
	return b.getOwnedLocal(a)
}

// GetOwnedLocal is the GetOwned analogue of GetLocal: it resolves a
// known-local address directly, bypassing remote-map translation.
func (b *Book) GetOwnedLocal(a addr.Addr) (*ObjectHandle, bool) {
	if a.IsNull() || a.IsRemote() {
		return nil, false
	}
	return b.getOwnedLocal(a)
}

func (b *Book) getOwnedLocal(a addr.Addr) (*ObjectHandle, bool) {
	key := a.SlotKey(b.launch)
	so, ok := b.local.retain(key.Index, key.Generation)
	if !ok {
		return nil, false
	}
	if so.addr != a {
		b.local.release(key.Index)
		return nil, false
	}
	return &ObjectHandle{book: b, index: key.Index, addr: a, obj: so.object}, true
}

// Remove deletes whatever is stored at a, provided its stored Object
// reports the same Addr (preventing a stale caller from removing a slot
// that has already been recycled for a newer actor).
func (b *Book) Remove(a addr.Addr) bool {
	if a.IsNull() || a.IsRemote() {
		return false
	}
	key := a.SlotKey(b.launch)
	so, ok := b.local.get(key.Index, key.Generation)
	if !ok || so.addr != a {
		return false
	}
	return b.local.remove(key.Index, key.Generation)
}

// RegisterRemote publishes a proxy for (remoteNode, remoteGroup) reachable
// through networkActorAddr, as seen by actors in localGroup. See
// lookupRemote for the corresponding resolution rule.
func (b *Book) RegisterRemote(networkActorAddr addr.Addr, localGroup addr.GroupNo, remoteNode addr.NodeNo, remoteGroup addr.GroupNo, proxyAddr addr.Addr) {
	b.registerRemote(networkActorAddr, localGroup, remoteNode, remoteGroup, proxyAddr)
}

// DeregisterRemote withdraws a previously registered proxy. It is a no-op
// if proxyAddr no longer matches what is currently registered.
func (b *Book) DeregisterRemote(networkActorAddr addr.Addr, localGroup addr.GroupNo, remoteNode addr.NodeNo, remoteGroup addr.GroupNo, proxyAddr addr.Addr) {
	b.deregisterRemote(networkActorAddr, localGroup, remoteNode, remoteGroup, proxyAddr)
}

// LookupRemote exposes the remote-map resolution rule directly, for callers
// (e.g. the remote package's proxy dialer) that need the translated proxy
// Addr without going through Get's ctx-Scope plumbing.
func (b *Book) LookupRemote(localActor addr.Addr, target addr.Addr) (addr.Addr, bool) {
	return b.lookupRemote(localActor, target)
}
