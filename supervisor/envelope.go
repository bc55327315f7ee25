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

package supervisor

import (
	"sync/atomic"

	"source.monogon.dev/actor/addrbook"
)

// Envelope is implemented by message payloads that cannot simply be handed
// to every recipient unchanged when a Multicast/Broadcast delivers the
// same logical message to more than one actor — typically a payload
// carrying a single-shot reply channel a request/response caller expects
// exactly one response on. Submit/doHandle still accept a bare `any`
// envelope everywhere: a payload that doesn't implement Envelope is
// delivered identically to every recipient, as if Duplicate always
// trivially succeeded.
type Envelope interface {
	// Duplicate returns the copy of this envelope to hand to one more
	// recipient, or ok=false if duplication is no longer possible (e.g. a
	// single-shot reply token was already handed out to an earlier
	// recipient). book is available for implementations that need to mint
	// addresses of their own (e.g. a per-recipient reply proxy).
	Duplicate(book *addrbook.Book) (any, bool)
}

// duplicateFor returns the envelope to actually deliver to the next
// recipient of a Multicast/Broadcast: payloads implementing Envelope are
// asked to duplicate themselves; everything else is delivered unchanged.
func duplicateFor(book *addrbook.Book, envelope any) (any, bool) {
	d, ok := envelope.(Envelope)
	if !ok {
		return envelope, true
	}
	return d.Duplicate(book)
}

// SingleReply wraps a message together with a reply channel that only one
// recipient of a Multicast/Broadcast delivery may receive: the first
// Duplicate call hands out the real envelope, every subsequent call
// reports duplication as impossible, rather than letting two actors race
// to write the same channel.
type SingleReply struct {
	Message any
	Reply   chan any

	claimed atomic.Bool
}

// Duplicate implements Envelope.
func (e *SingleReply) Duplicate(*addrbook.Book) (any, bool) {
	if e.claimed.CompareAndSwap(false, true) {
		return e, true
	}
	return nil, false
}
