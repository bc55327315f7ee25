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

// Package source provides the cooperative, non-blocking polling contract
// actors drive to receive envelopes, and the combinators used to compose
// several of them into one.
//
// The original design poses this as a future: poll_recv(cx) ->
// Pending | Ready(None) | Ready(Some(envelope)), driven by an async runtime
// that parks the task and re-polls once a registered Waker fires. Go has no
// portable equivalent of a Waker (goroutines block on channels instead of
// being polled), so this rendition keeps the three-state outcome but drops
// the waker plumbing: TryRecv is a plain non-blocking poll, and the caller
// (an actor's own run loop, see the supervisor package) is expected to
// select across real channels or retry on a timer rather than being woken.
package source

// State is the outcome of a non-blocking poll.
type State int

const (
	// Pending means no envelope is available right now, but the source may
	// produce one later.
	Pending State = iota
	// Ready means an envelope was returned alongside this state.
	Ready
	// Done means this source is permanently drained. Implementations must
	// be fused: once Done is returned, every subsequent TryRecv must also
	// return Done.
	Done
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Source is the one-method polling contract. Implementations must be
// fused (see Done).
type Source interface {
	TryRecv() (envelope any, state State)
}

// Empty is the fused, always-drained Source — the Go analogue of the
// original's impl Source for ().
type Empty struct{}

func (Empty) TryRecv() (any, State) { return nil, Done }

// Func adapts a plain function into a Source, for sources with no state
// beyond a closure (e.g. wrapping a channel read).
type Func func() (any, State)

func (f Func) TryRecv() (any, State) { return f() }

// FromChannel builds a fused Source out of a channel: a non-blocking
// receive that reports Ready while values are available and Done once the
// channel is closed and drained.
func FromChannel(ch <-chan any) Source {
	return Func(func() (any, State) {
		select {
		case v, ok := <-ch:
			if !ok {
				return nil, Done
			}
			return v, Ready
		default:
			return nil, Pending
		}
	})
}
