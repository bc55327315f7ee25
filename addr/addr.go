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

// Package addr defines Addr, the 64-bit opaque identifier actors are known
// by, and the small fixed-width types that make up its logical regions.
package addr

import (
	"fmt"

	"github.com/google/uuid"
)

// Addr is a 64-bit opaque actor address. It packs, from the most to the
// least significant bit:
//
//	1 bit   remote flag
//	15 bits group number
//	32 bits slot index
//	16 bits salted generation (slab generation XOR'd with the minting book's
//	        launch id, see Salt)
//
// NULL (the zero value) never resolves to an object.
type Addr uint64

const (
	remoteBitShift = 63
	groupShift     = 48
	groupBits      = 15
	groupMask      = (uint64(1) << groupBits) - 1
	indexShift     = 16
	indexBits      = 32
	indexMask      = (uint64(1) << indexBits) - 1
	genBits        = 16
	genMask        = (uint64(1) << genBits) - 1
)

// NULL is the distinguished address that must never resolve to a live
// object.
const NULL Addr = 0

// GroupNo identifies an actor group within a node.
type GroupNo uint16

// NodeNo identifies a node (process) within a cluster.
type NodeNo uint16

// NodeLaunchId is a per-process-lifetime salt, randomized at process start,
// mixed into minted addresses so that two incarnations of the same node
// never mint colliding addresses.
type NodeLaunchId uint16

// RandomLaunchId mints a NodeLaunchId for a freshly starting process. It is
// built from a random UUID rather than, say, a process start timestamp, so
// that two nodes started within the same clock tick (common under a test
// harness spinning up several in a row) still get independent salts.
func RandomLaunchId() NodeLaunchId {
	id := uuid.New()
	return NodeLaunchId(id[0])<<8 | NodeLaunchId(id[1])
}

// SlotKey is the (index, generation) pair the local slab uses to identify a
// slot, before launch-id salting.
type SlotKey struct {
	Index      uint32
	Generation uint16
}

// New builds a local (non-remote) Addr from a slot key, a group number and
// the minting book's launch id. The generation is salted with the launch id
// so that addresses minted by a crashed-and-restarted process are unlikely
// to collide with addresses minted by the process that replaced it; the
// AddressBook's self-addr check (see addrbook.Book.Get) makes this
// deterministic rather than merely probabilistic.
func New(key SlotKey, group GroupNo, launch NodeLaunchId) Addr {
	salted := uint64(key.Generation^uint16(launch)) & genMask
	v := uint64(group)&groupMask<<groupShift |
		uint64(key.Index)&indexMask<<indexShift |
		salted
	return Addr(v)
}

// NewRemote builds a remote Addr: one whose slot belongs to another
// process's AddressBook. Remote addresses carry the same group/slot-key
// encoding so that they can be distinguished from local ones purely by the
// remote bit, but are never looked up directly in the local slab — they are
// first translated through the remote map (see addrbook).
func NewRemote(key SlotKey, group GroupNo, launch NodeLaunchId) Addr {
	return New(key, group, launch) | (1 << remoteBitShift)
}

// NewRemoteTarget builds a purely symbolic remote Addr identifying
// (node, group) on another process, with no meaningful slot key. Such
// addresses are never resolved against a local slab directly; they are only
// ever used as the routing key fed to the remote map (see
// addrbook.Book.lookupRemote), which translates them into a local proxy
// Addr. The target node is packed into the upper 16 bits of the slot-index
// region, a layout choice documented as resolving an ambiguity the
// distilled spec left open (see the Open Question decisions in DESIGN.md).
func NewRemoteTarget(node NodeNo, group GroupNo) Addr {
	v := uint64(group)&groupMask<<groupShift | uint64(node)<<(indexShift+16)
	return Addr(v) | (1 << remoteBitShift)
}

// RemoteNode extracts the target node number packed by NewRemoteTarget. It
// is only meaningful for addresses built that way; ordinary remote actor
// addresses minted by NewRemote do not carry a node number in this field.
func (a Addr) RemoteNode() NodeNo {
	return NodeNo((uint64(a) >> (indexShift + 16)) & 0xffff)
}

// IsNull reports whether this is the distinguished NULL address.
func (a Addr) IsNull() bool { return a == NULL }

// IsRemote reports whether the remote flag bit is set.
func (a Addr) IsRemote() bool { return a&(1<<remoteBitShift) != 0 }

// Group extracts the group number region.
func (a Addr) Group() GroupNo { return GroupNo((uint64(a) >> groupShift) & groupMask) }

// SlotKey reverses the launch-id salting applied at minting time, returning
// the (index, generation) pair the local slab was asked to store this
// address under. The caller must supply the launch id of the book doing the
// lookup: if it differs from the minting book's launch id, the returned
// generation will (almost always) not match what the slab has stored for
// that index, causing the lookup to miss rather than return stale data.
func (a Addr) SlotKey(launch NodeLaunchId) SlotKey {
	index := uint32((uint64(a) >> indexShift) & indexMask)
	salted := uint16(uint64(a) & genMask)
	return SlotKey{Index: index, Generation: salted ^ uint16(launch)}
}

// withoutRemote clears the remote bit, used when comparing a remote Addr's
// group/slot-key payload against a local rendering of the same bits.
func (a Addr) withoutRemote() Addr { return a &^ (1 << remoteBitShift) }

func (a Addr) String() string {
	if a.IsNull() {
		return "addr:NULL"
	}
	kind := "local"
	if a.IsRemote() {
		kind = "remote"
	}
	return fmt.Sprintf("addr:%s:g%d:%#x", kind, a.Group(), uint64(a))
}
