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
	"sync"

	"source.monogon.dev/actor/addrbook"
)

// chanMailbox is the default addrbook.Mailbox implementation: a bounded
// buffered channel with a non-blocking TrySend, closed exactly once on
// actor exit.
type chanMailbox struct {
	ch        chan any
	closeOnce sync.Once
}

func newChanMailbox(capacity int) *chanMailbox {
	return &chanMailbox{ch: make(chan any, capacity)}
}

// TrySend never blocks. Sending on a closed Go channel panics even inside a
// select, so a closed mailbox is detected by recovering from that panic
// rather than by probing state beforehand (which could race a concurrent
// close).
func (m *chanMailbox) TrySend(envelope any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &addrbook.TrySendError{Kind: addrbook.TrySendClosed, Envelope: envelope}
		}
	}()
	select {
	case m.ch <- envelope:
		return nil
	default:
		return &addrbook.TrySendError{Kind: addrbook.TrySendFull, Envelope: envelope}
	}
}

func (m *chanMailbox) close() {
	m.closeOnce.Do(func() { close(m.ch) })
}

func (m *chanMailbox) recvChan() <-chan any { return m.ch }
