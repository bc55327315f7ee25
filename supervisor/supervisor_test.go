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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"source.monogon.dev/actor/addr"
	"source.monogon.dev/actor/addrbook"
	"source.monogon.dev/actor/source"
)

// K is this test file's routing key type.
type K = string

// rcCommand drives a remote-controlled test actor, the same idea as the
// teacher's "rc" runnable used throughout its own supervisor tests.
type rcCommand int

const (
	rcBecomeHealthy rcCommand = iota
	rcDie
	rcPanic
)

// rcMsg is both the envelope submitted to the Supervisor and the payload
// the actor receives: its Key field is all testRouter needs to route it.
type rcMsg struct {
	Key   K
	cmd   rcCommand
	errCh chan error
}

type testRouter struct {
	updates chan any
}

func (r *testRouter) Route(envelope any) Outcome[K] {
	if m, ok := envelope.(rcMsg); ok {
		return Unicast(m.Key)
	}
	return DefaultOutcome[K]()
}

func (r *testRouter) Update(cfg string) {
	if r.updates != nil {
		select {
		case r.updates <- cfg:
		default:
		}
	}
}

func rcExec(ctx context.Context, key K, cfg string) error {
	inbox := Inbox(ctx)
	for {
		v, st := inbox.TryRecv()
		switch st {
		case source.Done:
			return nil
		case source.Pending:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
			continue
		}

		m, ok := v.(rcMsg)
		if !ok {
			continue
		}
		switch m.cmd {
		case rcBecomeHealthy:
			if m.errCh != nil {
				m.errCh <- nil
			}
		case rcDie:
			return errors.New("rc: told to die")
		case rcPanic:
			panic("rc: told to panic")
		}
	}
}

func newTestSupervisor(t *testing.T) *Supervisor[K, string] {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	book := addrbook.New(addr.NodeLaunchId(1))
	router := &testRouter{}
	sv := New[K, string](ctx, book, addr.GroupNo(1), "test", router, rcExec, "cfg-v1",
		WithBackoff[K, string](FixedBackoff(10*time.Millisecond)),
	)
	t.Cleanup(cancel)
	return sv
}

func TestUnicastSpawnsOnDemand(t *testing.T) {
	sv := newTestSupervisor(t)

	report := sv.Submit(rcMsg{Key: "alice", cmd: rcBecomeHealthy})
	if !report.Done() {
		t.Fatalf("expected Done, got %+v", report)
	}

	sv.mu.RLock()
	_, ok := sv.objects["alice"]
	sv.mu.RUnlock()
	if !ok {
		t.Fatal("expected actor to have been spawned for key 'alice'")
	}
}

func TestFailureTriggersRestart(t *testing.T) {
	sv := newTestSupervisor(t)

	sv.Submit(rcMsg{Key: "bob", cmd: rcBecomeHealthy})
	sv.mu.RLock()
	first := sv.objects["bob"]
	sv.mu.RUnlock()

	sv.Submit(rcMsg{Key: "bob", cmd: rcDie})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sv.mu.RLock()
		cur, ok := sv.objects["bob"]
		sv.mu.RUnlock()
		if ok && cur.Addr() != first.Addr() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected actor to be respawned with a new address after failure")
}

func TestPanicTriggersRestart(t *testing.T) {
	sv := newTestSupervisor(t)

	sv.Submit(rcMsg{Key: "carol", cmd: rcBecomeHealthy})
	sv.mu.RLock()
	first := sv.objects["carol"]
	sv.mu.RUnlock()

	sv.Submit(rcMsg{Key: "carol", cmd: rcPanic})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sv.mu.RLock()
		cur, ok := sv.objects["carol"]
		sv.mu.RUnlock()
		if ok && cur.Addr() != first.Addr() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected actor to be respawned with a new address after panic")
}

func TestBroadcastSkipsMissingKeys(t *testing.T) {
	sv := newTestSupervisor(t)
	sv.Submit(rcMsg{Key: "dave", cmd: rcBecomeHealthy})

	report := sv.doHandle("broadcast-payload", Broadcast[K]())
	if !report.Done() {
		t.Fatalf("expected Done, got %+v", report)
	}

	sv.mu.RLock()
	n := len(sv.objects)
	sv.mu.RUnlock()
	if n != 1 {
		t.Fatalf("expected Broadcast to spawn no actor beyond 'dave', have %d actors", n)
	}
}

func TestMulticastSpawnsEachMissingKey(t *testing.T) {
	sv := newTestSupervisor(t)

	report := sv.doHandle("multi-payload", Multicast[K]("erin", "frank"))
	if !report.Done() {
		t.Fatalf("expected Done, got %+v", report)
	}

	sv.mu.RLock()
	_, okE := sv.objects["erin"]
	_, okF := sv.objects["frank"]
	sv.mu.RUnlock()
	if !okE || !okF {
		t.Fatal("expected both multicast keys to have been spawned")
	}
}

func TestConcurrentSpawnDedupedBySingleflight(t *testing.T) {
	sv := newTestSupervisor(t)

	var wg sync.WaitGroup
	addrs := make([]addr.Addr, 32)
	for i := range addrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := sv.spawnOrGet("shared")
			addrs[i] = a.Addr()
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(addrs); i++ {
		if addrs[i] != addrs[0] {
			t.Fatalf("expected every concurrent spawnOrGet to return the same actor, got %s and %s", addrs[0], addrs[i])
		}
	}
}

func TestValidateConfigRejectsBadPayload(t *testing.T) {
	sv := newTestSupervisor(t)
	reply := make(chan any, 1)
	sv.Submit(ValidateConfig[string]{Raw: 42, Reply: reply})

	select {
	case v := <-reply:
		rej, ok := v.(ConfigRejected)
		if !ok {
			t.Fatalf("expected a ConfigRejected reply for a non-string payload, got %#v", v)
		}
		if rej.Reason == nil {
			t.Fatal("expected ConfigRejected.Reason to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ValidateConfig reply")
	}
}

func TestUpdateConfigCommitsAndCallsRouterUpdate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	book := addrbook.New(addr.NodeLaunchId(2))
	updates := make(chan any, 1)
	router := &testRouter{updates: updates}
	sv := New[K, string](ctx, book, addr.GroupNo(1), "test", router, rcExec, "cfg-v1")

	reply := make(chan any, 1)
	sv.Submit(UpdateConfig[string]{Raw: "cfg-v2", Reply: reply})

	v := <-reply
	if _, ok := v.(ConfigUpdated); !ok {
		t.Fatalf("expected a ConfigUpdated reply on success, got %#v", v)
	}
	if got := sv.currentConfig(); got != "cfg-v2" {
		t.Fatalf("expected committed config cfg-v2, got %q", got)
	}
	select {
	case got := <-updates:
		if got != "cfg-v2" {
			t.Fatalf("expected router.Update to see cfg-v2, got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for router.Update")
	}
}

func TestExponentialBackoffDoublesUntilCap(t *testing.T) {
	b := ExponentialBackoff{Base: 10 * time.Millisecond, Max: 100 * time.Millisecond}
	got := []time.Duration{b.Next(1), b.Next(2), b.Next(3), b.Next(4), b.Next(10)}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond, 100 * time.Millisecond}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attempt %d: got %v want %v", i+1, got[i], want[i])
		}
	}
}

func TestActorStatusBecomesRunningAfterStart(t *testing.T) {
	sv := newTestSupervisor(t)
	sv.Submit(rcMsg{Key: "grace", cmd: rcBecomeHealthy})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		sv.mu.RLock()
		a, ok := sv.objects["grace"]
		sv.mu.RUnlock()
		if ok && a.Status() == addrbook.StatusRunning {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected actor status to become Running once its Exec body started")
}

func TestBackoffResetsAfterHealthyPeriod(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	book := addrbook.New(addr.NodeLaunchId(3))
	router := &testRouter{}
	sv := New[K, string](ctx, book, addr.GroupNo(1), "test", router, rcExec, "cfg-v1",
		WithBackoff[K, string](FixedBackoff(time.Millisecond)),
		WithHealthyAfter[K, string](20*time.Millisecond),
	)
	t.Cleanup(cancel)

	sv.Submit(rcMsg{Key: "heidi", cmd: rcBecomeHealthy})
	sv.mu.RLock()
	first := sv.objects["heidi"]
	sv.mu.RUnlock()

	// Let the actor run past the healthy threshold before failing it, so
	// its next restart counts as attempt 1 again rather than continuing to
	// climb.
	time.Sleep(40 * time.Millisecond)
	sv.Submit(rcMsg{Key: "heidi", cmd: rcDie})

	var second *addrbook.Actor
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sv.mu.RLock()
		cur, ok := sv.objects["heidi"]
		sv.mu.RUnlock()
		if ok && cur.Addr() != first.Addr() {
			second = cur
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if second == nil {
		t.Fatal("expected actor to be respawned with a new address after its first failure")
	}

	// Fail it again immediately (well within healthyAfter this time) and
	// confirm a replacement with a new address appears once more — if
	// attempt tracking had kept climbing from some earlier burst instead of
	// resetting, this would still pass, so the real assertion is just that
	// the reset path doesn't wedge restart delivery; the attempt counter
	// itself is exercised directly via ExponentialBackoff.Next above.
	sv.Submit(rcMsg{Key: "heidi", cmd: rcDie})
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sv.mu.RLock()
		cur, ok := sv.objects["heidi"]
		sv.mu.RUnlock()
		if ok && cur.Addr() != second.Addr() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected actor to keep being restarted after repeated quick failures")
}

func TestMulticastSkipsRecipientsWhenSingleReplyAlreadyClaimed(t *testing.T) {
	sv := newTestSupervisor(t)

	reply := make(chan any, 1)
	env := &SingleReply{Message: "payload", Reply: reply}
	// Claim it up front, simulating a duplication that already happened
	// for some earlier recipient outside this delivery.
	if _, ok := env.Duplicate(sv.book); !ok {
		t.Fatal("expected first Duplicate to succeed")
	}

	report := sv.doHandle(env, Multicast[K]("ivan", "judy"))
	if _, ok := report.Closed(); !ok {
		t.Fatalf("expected Closed once duplication is impossible for every recipient, got %+v", report)
	}
}

func TestBroadcastStopsEarlyOnDuplicationFailure(t *testing.T) {
	sv := newTestSupervisor(t)
	sv.Submit(rcMsg{Key: "kevin", cmd: rcBecomeHealthy})
	sv.Submit(rcMsg{Key: "laura", cmd: rcBecomeHealthy})

	env := &SingleReply{Message: "payload", Reply: make(chan any, 1)}
	if _, ok := env.Duplicate(sv.book); !ok {
		t.Fatal("expected first Duplicate to succeed")
	}

	report := sv.doHandle(env, Broadcast[K]())
	if !report.Done() {
		t.Fatalf("expected Broadcast to stop early with Done once duplication fails, got %+v", report)
	}
}

func TestSingleReplyDuplicateOnlyOnce(t *testing.T) {
	b := addrbook.New(addr.NodeLaunchId(1))
	env := &SingleReply{Message: "hello", Reply: make(chan any, 1)}

	first, ok := env.Duplicate(b)
	if !ok || first != env {
		t.Fatal("expected first Duplicate to succeed and return the same envelope")
	}
	if _, ok := env.Duplicate(b); ok {
		t.Fatal("expected second Duplicate to report duplication as impossible")
	}
}
