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
	"encoding/json"

	"google.golang.org/grpc"

	"source.monogon.dev/actor/dump"
)

const drainMethod = "/" + serviceName + "/Drain"

// DrainRequest starts a Drain stream. It carries no parameters: a Drain
// always scans every shard of the node's Dumper, the same way dump.Drain
// does locally.
type DrainRequest struct{}

// DrainItem is the wire rendition of a dump.DumpItem: Message is carried as
// raw JSON rather than the original any-typed value, since a remote viewer
// has no registry entry for arbitrary dumped payload types and only needs to
// display them.
type DrainItem struct {
	Group             string
	Key               string
	Sequence          uint64
	TimestampUnixNano int64
	TraceID           uint64
	Direction         string
	Class             string
	Name              string
	Protocol          string
	Kind              string
	Message           json.RawMessage
}

func toDrainItem(item dump.DumpItem) DrainItem {
	out := DrainItem{
		Sequence:  item.Sequence,
		TraceID:   item.TraceID,
		Direction: item.Direction.String(),
		Class:     item.Class,
		Name:      item.Name,
		Protocol:  item.Protocol,
	}
	if item.Meta != nil {
		out.Group, out.Key = item.Meta.Group, item.Meta.Key
	}
	if item.Timestamp != nil {
		out.TimestampUnixNano = item.Timestamp.AsTime().UnixNano()
	}
	switch item.Kind {
	case dump.MessageKindRequest:
		out.Kind = "request"
	case dump.MessageKindResponse:
		out.Kind = "response"
	default:
		out.Kind = "regular"
	}
	if raw, err := json.Marshal(item.Message); err == nil {
		out.Message = raw
	}
	return out
}

// DrainServer is implemented by whatever server-side stream a Drain handler
// is given to send items back to the client on.
type DrainServer interface {
	Send(*DrainItem) error
	grpc.ServerStream
}

type drainServerStream struct {
	grpc.ServerStream
}

func (x *drainServerStream) Send(m *DrainItem) error {
	return x.ServerStream.SendMsg(m)
}

func drainHandler(srv any, stream grpc.ServerStream) error {
	in := new(DrainRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DrainService).Drain(in, &drainServerStream{stream})
}

// DrainService is implemented by a Server that also exposes its node's
// Dumper over the remote seam. Server implementations that have no Dumper to
// expose (e.g. a book-only proxy node) need not implement it.
type DrainService interface {
	Drain(req *DrainRequest, stream DrainServer) error
}

var drainStreamDesc = grpc.StreamDesc{
	StreamName:    "Drain",
	Handler:       drainHandler,
	ServerStreams: true,
}

// DrainClient is the client-side handle returned by Client.Drain.
type DrainClient interface {
	Recv() (*DrainItem, error)
	grpc.ClientStream
}

type drainClientStream struct {
	grpc.ClientStream
}

func (x *drainClientStream) Recv() (*DrainItem, error) {
	m := new(DrainItem)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Drain opens a streaming call draining the remote node's Dumper, the
// network-facing counterpart of dump.Dumper.Drain.
func (c *Client) Drain(ctx context.Context) (DrainClient, error) {
	opts := []grpc.CallOption{grpc.CallContentSubtype(codecName)}
	stream, err := c.cc.NewStream(ctx, &drainStreamDesc, drainMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &drainClientStream{stream}
	if err := x.ClientStream.SendMsg(&DrainRequest{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
