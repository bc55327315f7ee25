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

// Package dump implements the Dumper: a process-wide, lock-striped sink
// for traffic-dump records, plus the Drain consumer that scans it in
// roughly-FIFO order.
package dump

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"source.monogon.dev/actor/scope"
)

// Direction is the facing of a dumped message relative to the actor that
// dumped it.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

func (d Direction) String() string {
	if d == DirectionOut {
		return "out"
	}
	return "in"
}

// MessageKind distinguishes a plain message from a request/response pair.
type MessageKind int

const (
	MessageKindRegular MessageKind = iota
	MessageKindRequest
	MessageKindResponse
)

// DumpItem is one dumped record. Timestamp is kept as a *timestamppb.Timestamp
// (a pre-built protobuf well-known type) rather than a bare time.Time. The
// remote Drain RPC, which cmd/actorctl reads, does not send DumpItem itself:
// it converts each item to a JSON DrainItem carrying the timestamp as Unix
// nanoseconds.
type DumpItem struct {
	Meta      *scope.Meta
	Sequence  uint64
	Timestamp *timestamppb.Timestamp
	TraceID   uint64
	Direction Direction
	Class     string
	Name      string
	Protocol  string
	Kind      MessageKind
	Message   any
}

func newItem(meta *scope.Meta, seq uint64, traceID uint64, direction Direction, class, name, protocol string, kind MessageKind, message any) DumpItem {
	return DumpItem{
		Meta:      meta,
		Sequence:  seq,
		Timestamp: timestamppb.New(time.Now()),
		TraceID:   traceID,
		Direction: direction,
		Class:     class,
		Name:      name,
		Protocol:  protocol,
		Kind:      kind,
		Message:   message,
	}
}
