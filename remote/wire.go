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

// SendRequest is the one RPC message this seam needs: deliver an envelope
// to an address on the receiving node.
type SendRequest struct {
	// TargetAddr is the destination addr.Addr, as its raw uint64 encoding.
	TargetAddr uint64
	// MessageName is the envelope's remote.Message name, used to look the
	// concrete type up in the receiving node's registry.
	MessageName string
	// Payload is the JSON encoding of the envelope.
	Payload []byte
}

// SendResponse reports whether delivery succeeded. A false Delivered with a
// populated Error distinguishes "target unknown" or "decode failed" from a
// transport-level RPC failure, which instead surfaces as a non-nil error
// from the Send call itself.
type SendResponse struct {
	Delivered bool
	Error     string
}
