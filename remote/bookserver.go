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

	"source.monogon.dev/actor/addr"
	"source.monogon.dev/actor/addrbook"
	"source.monogon.dev/actor/dump"
)

// BookServer implements Server against a local addrbook.Book, delivering
// incoming envelopes straight into the target object's mailbox. If dumper
// is non-nil, it also implements DrainService against it.
type BookServer struct {
	book   *addrbook.Book
	dumper *dump.Dumper
}

// NewBookServer builds a Server backed by book, with no Dumper exposed over
// Drain.
func NewBookServer(book *addrbook.Book) *BookServer {
	return &BookServer{book: book}
}

// NewBookServerWithDumper builds a Server that also exposes dumper's
// contents over the Drain RPC.
func NewBookServerWithDumper(book *addrbook.Book, dumper *dump.Dumper) *BookServer {
	return &BookServer{book: book, dumper: dumper}
}

// Drain implements DrainService by running a single local dump.Drain pass
// to completion and streaming each item out as it is produced.
func (s *BookServer) Drain(req *DrainRequest, stream DrainServer) error {
	if s.dumper == nil {
		return nil
	}
	drain := s.dumper.Drain()
	for {
		item, ok := drain.Next()
		if !ok {
			return nil
		}
		wireItem := toDrainItem(item)
		if err := stream.Send(&wireItem); err != nil {
			return err
		}
	}
}

func (s *BookServer) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	envelope, err := decodeEnvelope(req.MessageName, req.Payload)
	if err != nil {
		return &SendResponse{Delivered: false, Error: err.Error()}, nil
	}

	obj, ok := s.book.GetLocal(addr.Addr(req.TargetAddr))
	if !ok {
		return &SendResponse{Delivered: false, Error: "remote: target address not found"}, nil
	}
	mailbox, ok := obj.Mailbox()
	if !ok {
		return &SendResponse{Delivered: false, Error: "remote: target has no mailbox"}, nil
	}
	if err := mailbox.TrySend(envelope); err != nil {
		return &SendResponse{Delivered: false, Error: err.Error()}, nil
	}
	return &SendResponse{Delivered: true}, nil
}
