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

package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"

	"source.monogon.dev/actor/addr"
	"source.monogon.dev/actor/addrbook"
	"source.monogon.dev/actor/metrics"
)

// sendTimeout bounds how long a single outbound delivery may block; a
// RemoteProxy's mailbox is otherwise meant to look non-blocking to its
// caller, so this keeps a stalled node from wedging a Supervisor's routing
// goroutine indefinitely.
const sendTimeout = 5 * time.Second

// Dialer resolves a node number to a live gRPC connection. Production
// callers back this by a cluster membership/discovery component (out of
// scope here); tests back it with a bufconn dialer.
type Dialer interface {
	Dial(ctx context.Context, node addr.NodeNo) (grpc.ClientConnInterface, error)
}

// Forwarder hands out addrbook.Mailbox implementations that deliver to a
// remote node over gRPC, caching one Client per node.
type Forwarder struct {
	dialer Dialer

	mu      sync.Mutex
	clients map[addr.NodeNo]*Client
}

// NewForwarder builds a Forwarder that dials through d.
func NewForwarder(d Dialer) *Forwarder {
	return &Forwarder{dialer: d, clients: make(map[addr.NodeNo]*Client)}
}

func (f *Forwarder) clientFor(ctx context.Context, node addr.NodeNo) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[node]; ok {
		return c, nil
	}
	cc, err := f.dialer.Dial(ctx, node)
	if err != nil {
		return nil, err
	}
	c := NewClient(cc)
	f.clients[node] = c
	return c, nil
}

// Mailbox returns an addrbook.Mailbox that forwards TrySend calls to
// targetAddr on node. It is meant to back an addrbook.RemoteProxy's
// underlying mailbox.
func (f *Forwarder) Mailbox(node addr.NodeNo, targetAddr addr.Addr) addrbook.Mailbox {
	return &remoteMailbox{f: f, node: node, targetAddr: targetAddr}
}

type remoteMailbox struct {
	f          *Forwarder
	node       addr.NodeNo
	targetAddr addr.Addr
}

// TrySend implements addrbook.Mailbox. Unlike a local mailbox's true
// non-blocking enqueue, this performs a bounded, blocking RPC: the seam
// between two AddressBooks has no local queue of its own to enqueue into
// without one first blocking on the network.
func (m *remoteMailbox) TrySend(envelope any) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	name, payload, err := encodeEnvelope(envelope)
	if err != nil {
		return err
	}

	client, err := m.f.clientFor(ctx, m.node)
	if err != nil {
		metrics.RemoteSendFailures.WithLabelValues(fmt.Sprint(m.node)).Inc()
		return fmt.Errorf("remote: dialing node %d: %w", m.node, err)
	}

	resp, err := client.Send(ctx, &SendRequest{
		TargetAddr:  uint64(m.targetAddr),
		MessageName: name,
		Payload:     payload,
	})
	if err != nil {
		metrics.RemoteSendFailures.WithLabelValues(fmt.Sprint(m.node)).Inc()
		return fmt.Errorf("remote: sending to node %d: %w", m.node, err)
	}
	if !resp.Delivered {
		return &addrbook.TrySendError{Kind: addrbook.TrySendClosed, Envelope: envelope}
	}
	return nil
}
