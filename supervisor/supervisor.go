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

// Package supervisor owns a group's keyed actor population: it spawns
// actors on demand, restarts them on failure or panic, and routes inbound
// envelopes to them through a pluggable Router.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"source.monogon.dev/actor/addr"
	"source.monogon.dev/actor/addrbook"
	"source.monogon.dev/actor/logtree"
	"source.monogon.dev/actor/metrics"
	"source.monogon.dev/actor/scope"
	"source.monogon.dev/actor/source"
)

// Exec instantiates one actor's run body for key under config.
type Exec[K comparable, C any] func(ctx context.Context, key K, config C) error

// actorBlocked is the internal self-notification an actor's runner sends
// when its body has failed (returned an error or panicked); the Submit
// dispatch loop transitions the actor's recorded status to Restarting. A
// clean exit sends nothing.
type actorBlocked[K comparable] struct{ Key K }

// actorRestarted is the internal self-notification sent once an actor's
// backoff delay has elapsed, asking the Supervisor to spawn its
// replacement.
type actorRestarted[K comparable] struct {
	Key         K
	NextAttempt int
}

// ValidateConfig asks every listening actor to accept or reject a
// candidate config without committing it. Raw is decoded through the
// Supervisor's ConfigDecoder; Reply, if non-nil, receives nil on success or
// a ConfigRejected on decode failure.
type ValidateConfig[C any] struct {
	Raw   any
	Reply chan any
}

// UpdateConfig commits a new config: on successful decode it replaces the
// stored config, calls the Router's Update hook, and is then routed like
// ValidateConfig. Reply, if non-nil, receives a ConfigUpdated on success or
// a ConfigRejected on decode failure.
type UpdateConfig[C any] struct {
	Raw   any
	Reply chan any
}

// ValidateConfigMsg is what downstream actors actually receive once a
// ValidateConfig's payload has been decoded.
type ValidateConfigMsg[C any] struct{ Config C }

// UpdateConfigMsg is what downstream actors actually receive once an
// UpdateConfig's payload has been decoded and committed.
type UpdateConfigMsg[C any] struct{ Config C }

type panicError struct{ value any }

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// Supervisor owns a keyed population of actors of type K, configured by C.
type Supervisor[K comparable, C any] struct {
	name    string
	book    *addrbook.Book
	group   addr.GroupNo
	self    addr.Addr
	router  Router[K, C]
	exec    Exec[K, C]
	decoder ConfigDecoder[C]
	backoff Backoff
	tree    *logtree.LogTree
	dn      logtree.DN
	log     logtree.LeveledLogger

	mailboxSize  int
	healthyAfter time.Duration

	mu      sync.RWMutex
	objects map[K]*addrbook.Actor

	configMu sync.RWMutex
	config   *C

	spawnGroup singleflight.Group

	ctx context.Context
	wg  sync.WaitGroup
}

// Option configures optional Supervisor behavior at construction time.
type Option[K comparable, C any] func(*Supervisor[K, C])

// WithBackoff overrides DefaultBackoff.
func WithBackoff[K comparable, C any](b Backoff) Option[K, C] {
	return func(s *Supervisor[K, C]) { s.backoff = b }
}

// WithConfigDecoder overrides DefaultConfigDecoder[C]().
func WithConfigDecoder[K comparable, C any](d ConfigDecoder[C]) Option[K, C] {
	return func(s *Supervisor[K, C]) { s.decoder = d }
}

// WithMailboxSize overrides the default per-actor mailbox capacity.
func WithMailboxSize[K comparable, C any](n int) Option[K, C] {
	return func(s *Supervisor[K, C]) { s.mailboxSize = n }
}

// WithHealthyAfter overrides defaultHealthyAfter: an actor that has run for
// at least d since it last started is considered to have recovered, so its
// next failure resets its restart-attempt counter back to 1 (and calls the
// configured Backoff's Reset) instead of continuing to back off as if it
// were still in the same failure burst.
func WithHealthyAfter[K comparable, C any](d time.Duration) Option[K, C] {
	return func(s *Supervisor[K, C]) { s.healthyAfter = d }
}

// WithExistingLogtree attaches sv to an already-created LogTree instead of
// a freshly allocated one, mirroring the teacher's test-harness option of
// the same name.
func WithExistingLogtree[K comparable, C any](lt *logtree.LogTree) Option[K, C] {
	return func(s *Supervisor[K, C]) { s.tree = lt }
}

const defaultMailboxSize = 64

// defaultHealthyAfter is how long an actor must run before a subsequent
// failure is treated as the start of a fresh failure burst rather than a
// continuation of whatever burst preceded its last restart.
const defaultHealthyAfter = 30 * time.Second

// New creates a Supervisor and registers its own control address in book.
// initialConfig seeds the control block: spawning an actor before any
// config has been stored is a programming error in the original design, so
// New requires one up front rather than leaving it nil-able.
func New[K comparable, C any](ctx context.Context, book *addrbook.Book, group addr.GroupNo, name string, router Router[K, C], exec Exec[K, C], initialConfig C, opts ...Option[K, C]) *Supervisor[K, C] {
	s := &Supervisor[K, C]{
		name:         name,
		book:         book,
		group:        group,
		router:       router,
		exec:         exec,
		decoder:      DefaultConfigDecoder[C](),
		backoff:      DefaultBackoff,
		dn:           logtree.DN(name),
		mailboxSize:  defaultMailboxSize,
		healthyAfter: defaultHealthyAfter,
		objects:      make(map[K]*addrbook.Actor),
		config:       &initialConfig,
		ctx:          ctx,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tree == nil {
		s.tree = logtree.New()
	}
	s.log = s.tree.MustLeveledFor(s.dn)

	entry, err := book.Reserve(group)
	if err != nil {
		// Group-level control addresses are reserved once at startup; a
		// slab that is already exhausted at that point is a configuration
		// error the caller must fix (bound capacity too low), not
		// something a running supervisor can recover from.
		panic(fmt.Sprintf("supervisor: reserving control address for %q: %v", name, err))
	}
	entry.Insert(addrbook.NewGroupStub(entry.Addr(), name))
	s.self = entry.Addr()

	return s
}

// Addr returns the Supervisor's own control address.
func (s *Supervisor[K, C]) Addr() addr.Addr { return s.self }

// Logtree returns the LogTree backing this Supervisor's own and its
// actors' logs.
func (s *Supervisor[K, C]) Logtree() *logtree.LogTree { return s.tree }

func (s *Supervisor[K, C]) currentConfig() C {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return *s.config
}

// Submit delivers one envelope to this group, exactly as if it had arrived
// from the outside, and reports the outcome. Actor runners also call this
// internally to self-report blocking and to request a restarted
// replacement once their backoff delay has elapsed.
func (s *Supervisor[K, C]) Submit(envelope any) RouteReport {
	switch e := envelope.(type) {
	case actorBlocked[K]:
		s.mu.Lock()
		a, ok := s.objects[e.Key]
		s.mu.Unlock()
		if !ok {
			s.log.Errorf("blocking removed actor %v", e.Key)
			return RouteReport{kind: reportDone}
		}
		a.SetStatus(addrbook.StatusRestarting)
		return RouteReport{kind: reportDone}

	case actorRestarted[K]:
		replacement := s.spawn(e.Key, e.NextAttempt)
		s.mu.Lock()
		old, hadOld := s.objects[e.Key]
		s.objects[e.Key] = replacement
		s.mu.Unlock()
		// Release the failed actor's slot so the book and the keyed map
		// stay in step.
		if hadOld && old != replacement {
			s.book.Remove(old.Addr())
		}
		return RouteReport{kind: reportDone}

	case ValidateConfig[C]:
		cfg, err := s.decoder.Decode(e.Raw)
		if err != nil {
			if e.Reply != nil {
				e.Reply <- ConfigRejected{Reason: err}
			}
			return RouteReport{kind: reportDone}
		}
		outcome := s.router.Route(envelope).Or(Broadcast[K]())
		if e.Reply != nil {
			e.Reply <- nil
		}
		return s.doHandle(ValidateConfigMsg[C]{Config: cfg}, outcome)

	case UpdateConfig[C]:
		cfg, err := s.decoder.Decode(e.Raw)
		if err != nil {
			if e.Reply != nil {
				e.Reply <- ConfigRejected{Reason: err}
			}
			return RouteReport{kind: reportDone}
		}
		s.configMu.Lock()
		s.config = &cfg
		s.configMu.Unlock()
		s.router.Update(cfg)
		outcome := s.router.Route(envelope).Or(Broadcast[K]())
		if e.Reply != nil {
			e.Reply <- ConfigUpdated{}
		}
		report := s.doHandle(UpdateConfigMsg[C]{Config: cfg}, outcome)
		// ConfigUpdated is a fire-and-forget broadcast side effect of a
		// successful update, independent of however UpdateConfigMsg[C]
		// itself was routed above (a Router may not even route it to
		// every actor, e.g. under a Unicast outcome).
		s.doBroadcast(ConfigUpdated{})
		return report

	default:
		outcome := s.router.Route(envelope)
		return s.doHandle(envelope, outcome)
	}
}

func (s *Supervisor[K, C]) doHandle(envelope any, outcome Outcome[K]) RouteReport {
	switch outcome.kind {
	case outcomeUnicast:
		key := outcome.keys[0]
		a := s.spawnOrGet(key)
		return reportFromTrySend(a.Addr(), a.TrySend(envelope))
	case outcomeMulticast:
		return s.doMulticast(envelope, outcome.keys)
	case outcomeBroadcast:
		return s.doBroadcast(envelope)
	default: // discard, default (not escalated by the caller)
		return RouteReport{kind: reportDone}
	}
}

func (s *Supervisor[K, C]) doMulticast(envelope any, keys []K) RouteReport {
	var waiters []Waiter
	someone := false
	for _, key := range keys {
		dup, ok := duplicateFor(s.book, envelope)
		if !ok {
			// Multicast is "more insistent" than Broadcast: a recipient
			// whose envelope can no longer be duplicated (e.g. a
			// single-shot reply token already claimed by an earlier
			// recipient) is skipped, but delivery keeps going to the rest.
			continue
		}
		a := s.spawnOrGet(key)
		report := reportFromTrySend(a.Addr(), a.TrySend(dup))
		switch report.kind {
		case reportDone:
			someone = true
		case reportWait:
			waiters = append(waiters, report.waiter)
		case reportClosed:
			// Closed targets are simply skipped; Multicast is "more
			// insistent" than Broadcast and keeps going.
		}
	}
	if len(waiters) == 0 {
		if someone {
			return RouteReport{kind: reportDone}
		}
		return RouteReport{kind: reportClosed, envelope: envelope}
	}
	return RouteReport{kind: reportWaitAll, someone: someone, waiters: waiters}
}

func (s *Supervisor[K, C]) doBroadcast(envelope any) RouteReport {
	var waiters []Waiter
	someone := false
	for _, a := range s.existingActors() {
		dup, ok := duplicateFor(s.book, envelope)
		if !ok {
			// Broadcast is less insistent than Multicast: once the
			// envelope can no longer be duplicated for the next
			// recipient, stop early rather than deliver a partial
			// broadcast under inconsistent envelopes.
			return RouteReport{kind: reportDone}
		}
		report := reportFromTrySend(a.Addr(), a.TrySend(dup))
		switch report.kind {
		case reportDone:
			someone = true
		case reportWait:
			waiters = append(waiters, report.waiter)
		case reportClosed:
		}
	}
	if len(waiters) == 0 {
		if someone {
			return RouteReport{kind: reportDone}
		}
		return RouteReport{kind: reportClosed, envelope: envelope}
	}
	return RouteReport{kind: reportWaitAll, someone: someone, waiters: waiters}
}

func reportFromTrySend(a addr.Addr, err error) RouteReport {
	if err == nil {
		return RouteReport{kind: reportDone}
	}
	var tse *addrbook.TrySendError
	if errors.As(err, &tse) {
		switch tse.Kind {
		case addrbook.TrySendFull:
			return RouteReport{kind: reportWait, waiter: Waiter{Addr: a, Envelope: tse.Envelope}}
		case addrbook.TrySendClosed:
			return RouteReport{kind: reportClosed, envelope: tse.Envelope}
		}
	}
	return RouteReport{kind: reportDone}
}

func (s *Supervisor[K, C]) existingActors() []*addrbook.Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*addrbook.Actor, 0, len(s.objects))
	for _, a := range s.objects {
		out = append(out, a)
	}
	return out
}

// spawnOrGet returns the existing actor for key, spawning a fresh one if
// absent. A singleflight.Group keyed by key's string form guards against a
// concurrent miss double-spawning.
func (s *Supervisor[K, C]) spawnOrGet(key K) *addrbook.Actor {
	s.mu.RLock()
	if a, ok := s.objects[key]; ok {
		s.mu.RUnlock()
		return a
	}
	s.mu.RUnlock()

	keyStr := fmt.Sprint(key)
	v, err, _ := s.spawnGroup.Do(keyStr, func() (any, error) {
		s.mu.RLock()
		if a, ok := s.objects[key]; ok {
			s.mu.RUnlock()
			return a, nil
		}
		s.mu.RUnlock()

		a := s.spawn(key, 1)
		s.mu.Lock()
		s.objects[key] = a
		s.mu.Unlock()
		return a, nil
	})
	if err != nil {
		// spawn itself never returns an error today; this branch exists so
		// that a future fallible spawn path has somewhere sane to surface
		// through, rather than a bare panic(err) here.
		panic(fmt.Sprintf("supervisor: spawning %v: %v", key, err))
	}
	return v.(*addrbook.Actor)
}

func (s *Supervisor[K, C]) dnFor(key K) logtree.DN {
	return s.dn.Child(fmt.Sprint(key))
}

func (s *Supervisor[K, C]) spawn(key K, attempt int) *addrbook.Actor {
	entry, err := s.book.Reserve(s.group)
	if err != nil {
		s.log.Errorf("reserving address for %v: %v", key, err)
		return addrbook.NewActor(addr.NULL, newChanMailbox(0))
	}
	mailbox := newChanMailbox(s.mailboxSize)
	actor := addrbook.NewActor(entry.Addr(), mailbox)
	entry.Insert(actor)

	cfg := s.currentConfig()

	s.wg.Add(1)
	go s.runActor(key, actor, cfg, mailbox, attempt)

	return actor
}

type inboxCtxKey struct{}

// Inbox returns the calling actor's own mailbox as a Source, for use
// inside the function passed as that actor's Exec.
func Inbox(ctx context.Context) source.Source {
	src, ok := ctx.Value(inboxCtxKey{}).(source.Source)
	if !ok {
		panic("supervisor: Inbox called outside any actor context")
	}
	return src
}

type loggerCtxKey struct{}

// Logger returns the calling actor's own LeveledLogger, bound to its DN in
// the owning Supervisor's LogTree.
func Logger(ctx context.Context) logtree.LeveledLogger {
	l, ok := ctx.Value(loggerCtxKey{}).(logtree.LeveledLogger)
	if !ok {
		panic("supervisor: Logger called outside any actor context")
	}
	return l
}

func (s *Supervisor[K, C]) runActor(key K, actor *addrbook.Actor, cfg C, mailbox *chanMailbox, attempt int) {
	defer s.wg.Done()

	a := actor.Addr()
	dn := s.dnFor(key)
	log := s.tree.MustLeveledFor(dn)
	sc := scope.New(a, &scope.Meta{Group: s.name, Key: fmt.Sprint(key)})

	ctx := context.WithValue(s.ctx, loggerCtxKey{}, log)
	ctx = context.WithValue(ctx, inboxCtxKey{}, source.FromChannel(mailbox.recvChan()))

	log.Infof("started")
	actor.SetStatus(addrbook.StatusRunning)
	started := time.Now()

	err := scope.Within(ctx, sc, func(ctx context.Context) error {
		return s.runWithRecover(ctx, key, cfg)
	})

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if err == nil {
			log.Infof("finished")
		} else {
			log.Infof("finished (context canceled): %v", err)
		}
		actor.SetStatus(addrbook.StatusTerminated)
		s.mu.Lock()
		delete(s.objects, key)
		s.mu.Unlock()
		s.book.Remove(a)
		mailbox.close()
		return
	}

	var pe panicError
	if errors.As(err, &pe) {
		log.Errorf("panicked: %v", pe.value)
		metrics.ActorPanics.WithLabelValues(s.name).Inc()
	} else {
		log.Errorf("failed: %v", err)
	}
	metrics.ActorRestarts.WithLabelValues(s.name).Inc()

	mailbox.close()
	s.Submit(actorBlocked[K]{Key: key})

	// An actor that ran cleanly for at least healthyAfter is treated as
	// recovered: its next restart starts a fresh failure burst rather than
	// continuing whatever burst led to its last restart, so a transient
	// blip years into a long healthy run doesn't leave it backed off at
	// its worst-ever attempt count forever.
	if time.Since(started) >= s.healthyAfter {
		s.backoff.Reset()
		attempt = 1
	}

	delay := s.backoff.Next(attempt)
	time.Sleep(delay)

	s.Submit(actorRestarted[K]{Key: key, NextAttempt: attempt + 1})
}

func (s *Supervisor[K, C]) runWithRecover(ctx context.Context, key K, cfg C) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return s.exec(ctx, key, cfg)
}

// Wait blocks until every currently-running actor in this group has
// exited. Intended for test harnesses (see the teacher's TestHarness
// idiom); production callers normally just cancel the Supervisor's ctx and
// let the process exit.
func (s *Supervisor[K, C]) Wait() { s.wg.Wait() }
