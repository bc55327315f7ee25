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
)

// Probe is a no-op message any process using this package can decode
// without prior registration by the caller: it is registered by this
// package's own init(). A well-behaved Exec loop silently drops unknown
// message types it receives, so a "delivered" Send response for a Probe
// means the target address currently resolves to something with a live
// mailbox, regardless of whether that actor does anything with it.
type Probe struct{}

// RemoteName implements Message.
func (Probe) RemoteName() string { return "source.monogon.dev.actor.remote.probe" }

func init() {
	Register(Probe{})
}

// SendMessage is a convenience wrapping Send around encodeEnvelope, for
// callers that have a concrete Message value rather than an
// already-serialized name/payload pair.
func (c *Client) SendMessage(ctx context.Context, target addr.Addr, envelope Message) (*SendResponse, error) {
	name, payload, err := encodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, &SendRequest{TargetAddr: uint64(target), MessageName: name, Payload: payload})
}
