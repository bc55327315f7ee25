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

import "time"

// Backoff computes the delay before a restarted actor's replacement is
// spawned. The original hardcodes a flat 5 second delay with a TODO to
// make it pluggable; this rendition makes it pluggable up front and keeps
// FixedBackoff(5 * time.Second) as the default so existing behavior is
// unchanged unless a caller opts into something else.
type Backoff interface {
	// Next returns how long to wait before the attempt'th restart (attempt
	// is 1 on an actor's very first restart).
	Next(attempt int) time.Duration
	// Reset is called once an actor has run cleanly for long enough to be
	// considered healthy again (see Supervisor's healthy-period handling),
	// so that a one-time burst of failures years into a long-running
	// actor's life doesn't leave it permanently backed off at its worst
	// attempt count. FixedBackoff has no state to reset; ExponentialBackoff
	// is likewise a pure function of the attempt number the Supervisor
	// passes in, so both treat it as a no-op — the actual reset is the
	// Supervisor restarting its own attempt counter from 1 (see runActor).
	Reset()
}

// FixedBackoff always waits the same duration.
type FixedBackoff time.Duration

func (f FixedBackoff) Next(attempt int) time.Duration { return time.Duration(f) }

// Reset is a no-op: FixedBackoff carries no per-actor state.
func (f FixedBackoff) Reset() {}

// ExponentialBackoff doubles Base on every attempt, capped at Max.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

func (e ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := e.Base
	for i := 1; i < attempt && d < e.Max; i++ {
		d *= 2
	}
	if d > e.Max {
		d = e.Max
	}
	return d
}

// Reset is a no-op: ExponentialBackoff computes Next purely from the
// attempt number the Supervisor passes it, so there is nothing to reset
// here either — resetting that attempt count is the Supervisor's job.
func (e ExponentialBackoff) Reset() {}

// DefaultBackoff matches the original's hardcoded restart delay.
var DefaultBackoff Backoff = FixedBackoff(5 * time.Second)
