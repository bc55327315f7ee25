package addrbook

import (
	"source.monogon.dev/actor/addr"
)

// remoteKey packs (localGroup, remoteNode, remoteGroup) into a single
// comparable map key, the same bit arrangement the original implementation
// uses for its FxHashMap key.
type remoteKey uint64

func packRemoteKey(localGroup addr.GroupNo, remoteNode addr.NodeNo, remoteGroup addr.GroupNo) remoteKey {
	return remoteKey(uint64(localGroup))<<32 | remoteKey(uint64(remoteNode))<<16 | remoteKey(uint64(remoteGroup))
}

// remoteSnapshot is an immutable view of the remote map. Readers always see
// one complete snapshot; writers read-copy-update via Book.remote.
type remoteSnapshot struct {
	byGroup    map[remoteKey]addr.Addr
	byNetAddr  map[addr.Addr]addr.Addr // network_actor_addr -> proxy_addr, fallback
}

func newRemoteSnapshot() *remoteSnapshot {
	return &remoteSnapshot{
		byGroup:   make(map[remoteKey]addr.Addr),
		byNetAddr: make(map[addr.Addr]addr.Addr),
	}
}

func (s *remoteSnapshot) clone() *remoteSnapshot {
	c := newRemoteSnapshot()
	for k, v := range s.byGroup {
		c.byGroup[k] = v
	}
	for k, v := range s.byNetAddr {
		c.byNetAddr[k] = v
	}
	return c
}

// registerRemote performs a clone-mutate-CAS read-copy-update of the remote
// map, looping on contention. This is the Go analogue of arc_swap's `rcu`
// combinator.
func (b *Book) registerRemote(networkActorAddr addr.Addr, localGroup addr.GroupNo, remoteNode addr.NodeNo, remoteGroup addr.GroupNo, proxyAddr addr.Addr) {
	key := packRemoteKey(localGroup, remoteNode, remoteGroup)
	for {
		old := b.remote.Load()
		next := old.clone()
		next.byGroup[key] = proxyAddr
		next.byNetAddr[networkActorAddr] = proxyAddr
		if b.remote.CompareAndSwap(old, next) {
			return
		}
	}
}

// deregisterRemote removes an entry only if its currently-registered proxy
// matches the one supplied, guarding against a late deregister racing a
// newer register for the same key.
func (b *Book) deregisterRemote(networkActorAddr addr.Addr, localGroup addr.GroupNo, remoteNode addr.NodeNo, remoteGroup addr.GroupNo, proxyAddr addr.Addr) {
	key := packRemoteKey(localGroup, remoteNode, remoteGroup)
	for {
		old := b.remote.Load()
		if old.byGroup[key] != proxyAddr {
			return
		}
		next := old.clone()
		delete(next.byGroup, key)
		delete(next.byNetAddr, networkActorAddr)
		if b.remote.CompareAndSwap(old, next) {
			return
		}
	}
}

// lookupRemote implements the remote-map get rule described in spec §4.1:
// key on (local actor's own group, remote address's node/group), falling
// back to a lookup by the local actor's own address (intended for catch-all
// network proxies). The fallback applies unconditionally, even when no
// network proxy has ever been registered — see SPEC_FULL.md §9 for why this
// divergence-prone behavior is preserved rather than "fixed".
func (b *Book) lookupRemote(localActor addr.Addr, target addr.Addr) (addr.Addr, bool) {
	snap := b.remote.Load()
	key := packRemoteKey(localActor.Group(), target.RemoteNode(), target.Group())
	if v, ok := snap.byGroup[key]; ok {
		return v, true
	}
	v, ok := snap.byNetAddr[localActor]
	return v, ok
}
