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

import "testing"

// queueSource is a test double driven by a plain slice of queued values,
// fused once exhausted.
type queueSource struct {
	values []any
	i      int
	done   bool
}

func (q *queueSource) TryRecv() (any, State) {
	if q.done {
		return nil, Done
	}
	if q.i >= len(q.values) {
		return nil, Pending
	}
	v := q.values[q.i]
	q.i++
	return v, Ready
}

func (q *queueSource) finish() { q.done = true }

func TestCombineLeftBias(t *testing.T) {
	left := &queueSource{values: []any{"l1"}}
	right := &queueSource{values: []any{"r1"}}
	c := Combine(left, right)

	v, st := c.TryRecv()
	if st != Ready || v != "l1" {
		t.Fatalf("expected left to win, got %v/%v", v, st)
	}
}

func TestCombinePendingStillPollsRightButReturnsPendingOnMiss(t *testing.T) {
	left := &queueSource{} // always Pending until finished
	right := &queueSource{}
	c := Combine(left, right)

	_, st := c.TryRecv()
	if st != Pending {
		t.Fatalf("expected Pending, got %v", st)
	}
}

func TestCombineRightWinsWhenLeftPending(t *testing.T) {
	left := &queueSource{}
	right := &queueSource{values: []any{"r1"}}
	c := Combine(left, right)

	v, st := c.TryRecv()
	if st != Ready || v != "r1" {
		t.Fatalf("expected right's value on left-pending, got %v/%v", v, st)
	}
}

func TestCombineLeftDoneDropsThroughToRight(t *testing.T) {
	left := &queueSource{}
	left.finish()
	right := &queueSource{values: []any{"r1"}}
	c := Combine(left, right)

	v, st := c.TryRecv()
	if st != Ready || v != "r1" {
		t.Fatalf("expected drop-through to right, got %v/%v", v, st)
	}
}

func TestCombineAllPrefersEarliestSource(t *testing.T) {
	a := &queueSource{values: []any{"a"}}
	b := &queueSource{values: []any{"b"}}
	c := &queueSource{values: []any{"c"}}
	s := CombineAll(a, b, c)

	v, st := s.TryRecv()
	if st != Ready || v != "a" {
		t.Fatalf("expected a to win, got %v/%v", v, st)
	}
}

func TestRoundRobinRotatesFairly(t *testing.T) {
	a := &queueSource{values: []any{"a1", "a2"}}
	b := &queueSource{values: []any{"b1"}}
	rr := RoundRobin(a, b)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		v, st := rr.TryRecv()
		if st != Ready {
			t.Fatalf("expected Ready at iteration %d, got %v", i, st)
		}
		seen[v.(string)] = true
	}
	for _, want := range []string{"a1", "a2", "b1"} {
		if !seen[want] {
			t.Fatalf("expected to have seen %q, saw %v", want, seen)
		}
	}
}

func TestRoundRobinFusesOnceAllDone(t *testing.T) {
	a := &queueSource{}
	a.finish()
	b := &queueSource{}
	b.finish()
	rr := RoundRobin(a, b)

	_, st := rr.TryRecv()
	if st != Done {
		t.Fatalf("expected Done once all sources drained, got %v", st)
	}
	_, st = rr.TryRecv()
	if st != Done {
		t.Fatalf("expected Done to stay fused, got %v", st)
	}
}
