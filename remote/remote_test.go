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
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"source.monogon.dev/actor/addr"
	"source.monogon.dev/actor/addrbook"
	"source.monogon.dev/actor/dump"
	"source.monogon.dev/actor/scope"
)

// pingMsg is a trivial remote.Message used to exercise the seam end to end.
type pingMsg struct {
	Text string
}

func (pingMsg) RemoteName() string { return "remote_test.ping" }

func init() {
	Register(pingMsg{})
}

// bufDialer is a Dialer backed by a single in-memory bufconn listener,
// mirroring the teacher's own fakeLeader test harness: one node, reached via
// grpc.WithContextDialer(lis.Dial) instead of a real socket.
type bufDialer struct {
	lis *bufconn.Listener
}

func (d *bufDialer) Dial(ctx context.Context, node addr.NodeNo) (grpc.ClientConnInterface, error) {
	return grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return d.lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
}

func startBookServer(t *testing.T, book *addrbook.Book) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterServer(srv, NewBookServer(book))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)
	return lis
}

func startBookServerWithDumper(t *testing.T, book *addrbook.Book, dumper *dump.Dumper) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterServer(srv, NewBookServerWithDumper(book, dumper))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)
	return lis
}

type recordingMailbox struct {
	received chan any
}

func (m *recordingMailbox) TrySend(envelope any) error {
	m.received <- envelope
	return nil
}

func TestForwarderDeliversAcrossBufconn(t *testing.T) {
	book := addrbook.New(addr.NodeLaunchId(1))
	lis := startBookServer(t, book)

	vacant, err := book.Reserve(addr.GroupNo(1))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	mailbox := &recordingMailbox{received: make(chan any, 1)}
	targetAddr := vacant.Addr()
	vacant.Insert(addrbook.NewActor(targetAddr, mailbox))

	forwarder := NewForwarder(&bufDialer{lis: lis})
	proxyMailbox := forwarder.Mailbox(addr.NodeNo(7), targetAddr)

	if err := proxyMailbox.TrySend(pingMsg{Text: "hello"}); err != nil {
		t.Fatalf("TrySend: %v", err)
	}

	select {
	case got := <-mailbox.received:
		msg, ok := got.(pingMsg)
		if !ok {
			t.Fatalf("expected pingMsg, got %T", got)
		}
		if msg.Text != "hello" {
			t.Fatalf("expected Text 'hello', got %q", msg.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remote delivery")
	}
}

func TestForwarderReportsMissingTarget(t *testing.T) {
	book := addrbook.New(addr.NodeLaunchId(2))
	lis := startBookServer(t, book)

	forwarder := NewForwarder(&bufDialer{lis: lis})
	proxyMailbox := forwarder.Mailbox(addr.NodeNo(1), addr.Addr(0xdeadbeef))

	err := proxyMailbox.TrySend(pingMsg{Text: "lost"})
	if err == nil {
		t.Fatal("expected an error sending to a nonexistent remote address")
	}
}

func TestEncodeDecodeEnvelopeRoundTrip(t *testing.T) {
	name, payload, err := encodeEnvelope(pingMsg{Text: "round-trip"})
	if err != nil {
		t.Fatalf("encodeEnvelope: %v", err)
	}
	if name != "remote_test.ping" {
		t.Fatalf("expected name remote_test.ping, got %q", name)
	}
	got, err := decodeEnvelope(name, payload)
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	msg, ok := got.(pingMsg)
	if !ok {
		t.Fatalf("expected pingMsg, got %T", got)
	}
	if msg.Text != "round-trip" {
		t.Fatalf("expected Text round-trip, got %q", msg.Text)
	}
}

func TestDrainStreamsQueuedItems(t *testing.T) {
	book := addrbook.New(addr.NodeLaunchId(3))
	dumper := dump.New()
	group := dump.NewPerGroup(true)
	s := scope.New(addr.NULL, &scope.Meta{Group: "g", Key: "k"})
	scope.SyncWithin(s, func(ctx context.Context) struct{} {
		dumper.Dump(ctx, group, dump.DirectionOut, "class", "evt", "proto", dump.MessageKindRegular, "payload")
		return struct{}{}
	})

	lis := startBookServerWithDumper(t, book, dumper)
	cc, err := (&bufDialer{lis: lis}).Dial(context.Background(), addr.NodeNo(1))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client := NewClient(cc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := client.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}

	item, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if item.Name != "evt" || item.Group != "g" || item.Key != "k" {
		t.Fatalf("unexpected drained item: %+v", item)
	}

	if _, err := stream.Recv(); err == nil {
		t.Fatal("expected the stream to end after one item")
	}
}
