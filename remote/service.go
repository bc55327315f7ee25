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

	"google.golang.org/grpc"
)

const serviceName = "source.monogon.dev.actor.remote.RemoteBook"
const sendMethod = "/" + serviceName + "/Send"

// Server is the seam a caller implements to accept inbound remote
// deliveries on behalf of a local addrbook.Book. See BookServer for the
// concrete implementation wired to a Book.
type Server interface {
	Send(ctx context.Context, req *SendRequest) (*SendResponse, error)
}

func sendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Send(ctx, req.(*SendRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is built by hand rather than by protoc-gen-go-grpc, since
// Server's request/response types are plain structs carried over the custom
// json codec rather than generated proto.Message types.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Send",
			Handler:    sendHandler,
		},
	},
	Streams:  []grpc.StreamDesc{drainStreamDesc},
	Metadata: "remote.proto",
}

// RegisterServer attaches srv to s under the RemoteBook service.
func RegisterServer(s *grpc.Server, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}

// Client calls a remote node's RemoteBook service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection (e.g. from grpc.Dial, or a
// bufconn-backed dial in tests) as a RemoteBook client.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Send delivers req to the node at the other end of c's connection.
func (c *Client) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	out := new(SendResponse)
	opts := []grpc.CallOption{grpc.CallContentSubtype(codecName)}
	if err := c.cc.Invoke(ctx, sendMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
