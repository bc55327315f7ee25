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

// Package remote implements the thin network seam between AddressBooks on
// different nodes: a gRPC service carrying opaque, JSON-coded envelopes
// between a RemoteProxy on one node's book and the real actor's mailbox on
// another's.
//
// This intentionally does not generate .pb.go bindings: the runtime's
// envelope types are whatever concrete Go types callers route through their
// own Supervisor, unknown to this package ahead of time, so messages are
// carried as a (name, JSON payload) pair and reconstructed through a small
// per-process type registry instead of a fixed protobuf schema. See the
// "remote package and the protobuf/gRPC decision" section of DESIGN.md for
// why.
package remote

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Message is implemented by any envelope type that can cross the remote
// seam. RemoteName mirrors the Message::NAME trait constant the original
// implementation attaches to every dumpable/routable message (see
// dump.DumpItem.Name): a stable, human-readable identifier independent of
// the Go type name.
type Message interface {
	RemoteName() string
}

var registry sync.Map // string -> reflect.Type

// Register associates a message name with the concrete Go type of zero, so
// that a SendRequest carrying that name can be decoded back into it on the
// receiving node. Callers register every Message type they intend to route
// remotely, typically from an init() alongside their Supervisor setup.
// zero's RemoteName method must have a value receiver: the registry always
// reconstructs messages as values, never pointers.
func Register(zero Message) {
	registry.Store(zero.RemoteName(), reflect.TypeOf(zero))
}

func encodeEnvelope(envelope any) (name string, payload []byte, err error) {
	m, ok := envelope.(Message)
	if !ok {
		return "", nil, fmt.Errorf("remote: %T does not implement remote.Message", envelope)
	}
	payload, err = json.Marshal(envelope)
	if err != nil {
		return "", nil, fmt.Errorf("remote: marshaling %s: %w", m.RemoteName(), err)
	}
	return m.RemoteName(), payload, nil
}

func decodeEnvelope(name string, payload []byte) (any, error) {
	v, ok := registry.Load(name)
	if !ok {
		return nil, fmt.Errorf("remote: no message registered under name %q", name)
	}
	typ := v.(reflect.Type)
	ptr := reflect.New(typ)
	if err := json.Unmarshal(payload, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("remote: decoding %q: %w", name, err)
	}
	return ptr.Elem().Interface(), nil
}
