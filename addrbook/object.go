package addrbook

import (
	"fmt"
	"sync/atomic"

	"source.monogon.dev/actor/addr"
)

// Status is an actor's lifecycle state, as tracked by its Supervisor.
type Status int32

const (
	StatusInitializing Status = iota
	StatusRunning
	StatusRestarting
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusRunning:
		return "running"
	case StatusRestarting:
		return "restarting"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// TrySendErrorKind distinguishes why a non-blocking send failed.
type TrySendErrorKind int

const (
	TrySendFull TrySendErrorKind = iota
	TrySendClosed
)

// TrySendError is returned by Mailbox.TrySend; it carries the envelope back
// so the caller can requeue or report it, mirroring the original
// TrySendError::Full(envelope)/Closed(envelope) variants.
type TrySendError struct {
	Kind     TrySendErrorKind
	Envelope any
}

func (e *TrySendError) Error() string {
	switch e.Kind {
	case TrySendFull:
		return "addrbook: mailbox full"
	case TrySendClosed:
		return "addrbook: mailbox closed"
	default:
		return "addrbook: try-send failed"
	}
}

// Mailbox is the external, non-blocking delivery contract a concrete
// mailbox implementation (out of scope for this core — see spec §1) must
// satisfy.
type Mailbox interface {
	TrySend(envelope any) error
}

// Object is the value stored at an AddressBook slot. Exactly one of Actor,
// GroupStub or RemoteProxy is behind any given Object value.
type Object interface {
	// Addr returns the address this Object believes it was registered
	// under. The AddressBook compares this against the queried Addr on
	// every lookup (see Book.Get) since the slab alone cannot validate the
	// group/launch-id bits.
	Addr() addr.Addr
	// Mailbox returns the object's mailbox handle and whether it has one.
	// Only the Actor variant carries one.
	Mailbox() (Mailbox, bool)
	fmt.Stringer
}

// Actor is the Object variant backing a live, addressable actor.
type Actor struct {
	addr    addr.Addr
	mailbox Mailbox
	status  atomic.Int32
}

// NewActor wraps a mailbox into an Actor Object, initially Initializing.
func NewActor(a addr.Addr, mailbox Mailbox) *Actor {
	act := &Actor{addr: a, mailbox: mailbox}
	act.status.Store(int32(StatusInitializing))
	return act
}

func (a *Actor) Addr() addr.Addr         { return a.addr }
func (a *Actor) Mailbox() (Mailbox, bool) { return a.mailbox, true }
func (a *Actor) Status() Status          { return Status(a.status.Load()) }
func (a *Actor) SetStatus(s Status)      { a.status.Store(int32(s)) }
func (a *Actor) String() string {
	return fmt.Sprintf("actor(%s, %s)", a.addr, a.Status())
}

// TrySend is a convenience forwarding to the underlying mailbox.
func (a *Actor) TrySend(envelope any) error {
	return a.mailbox.TrySend(envelope)
}

// GroupStub addresses a Supervisor (or other group-level collaborator)
// itself, rather than one of the actors it owns. It has no mailbox: a
// Supervisor's own internal control traffic is delivered directly, not
// through the generic Mailbox contract (see supervisor.Supervisor).
type GroupStub struct {
	addr addr.Addr
	name string
}

func NewGroupStub(a addr.Addr, name string) *GroupStub {
	return &GroupStub{addr: a, name: name}
}

func (g *GroupStub) Addr() addr.Addr          { return g.addr }
func (g *GroupStub) Mailbox() (Mailbox, bool) { return nil, false }
func (g *GroupStub) String() string           { return fmt.Sprintf("group-stub(%s, %q)", g.addr, g.name) }

// RemoteProxy addresses an actor living in another process's AddressBook.
// Delivery to a RemoteProxy is the job of whatever network-transport
// collaborator registered it (see the remote package's thin gRPC seam);
// this core only stores the bookkeeping needed to resolve to it.
type RemoteProxy struct {
	addr        addr.Addr
	targetNode  addr.NodeNo
	targetGroup addr.GroupNo
	mailbox     Mailbox // may be nil if no forwarder is wired up yet
}

func NewRemoteProxy(a addr.Addr, node addr.NodeNo, group addr.GroupNo, mailbox Mailbox) *RemoteProxy {
	return &RemoteProxy{addr: a, targetNode: node, targetGroup: group, mailbox: mailbox}
}

func (r *RemoteProxy) Addr() addr.Addr { return r.addr }
func (r *RemoteProxy) Mailbox() (Mailbox, bool) {
	if r.mailbox == nil {
		return nil, false
	}
	return r.mailbox, true
}
func (r *RemoteProxy) String() string {
	return fmt.Sprintf("remote-proxy(%s -> node:%d/group:%d)", r.addr, r.targetNode, r.targetGroup)
}
