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

// Package metrics holds the process-wide Prometheus collectors shared by
// the supervisor, dump and remote packages. Centralizing them here (rather
// than each package defining and registering its own) keeps the namespace
// and label conventions consistent, the way the teacher's own per-subsystem
// metrics.go files do within a single collector registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "actor"

var (
	// DumpItemsDropped counts DumpItems discarded because their shard was
	// already at its backpressure ceiling.
	DumpItemsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dump",
		Name:      "items_dropped_total",
		Help:      "Total number of dump items dropped because their shard queue was full",
	}, []string{"class"})

	// DumpItemsRecorded counts DumpItems successfully queued.
	DumpItemsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dump",
		Name:      "items_recorded_total",
		Help:      "Total number of dump items successfully queued",
	}, []string{"class"})

	// ActorRestarts counts actor restarts per owning Supervisor group.
	ActorRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "actor_restarts_total",
		Help:      "Total number of actor restarts, per owning group",
	}, []string{"group"})

	// ActorPanics counts actor restarts specifically triggered by a panic,
	// rather than a returned error.
	ActorPanics = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "actor_panics_total",
		Help:      "Total number of actor restarts triggered by a recovered panic, per owning group",
	}, []string{"group"})

	// RemoteSendFailures counts failed outbound deliveries attempted through
	// the remote gRPC seam.
	RemoteSendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "remote",
		Name:      "send_failures_total",
		Help:      "Total number of failed outbound remote deliveries, per target node",
	}, []string{"node"})
)

func init() {
	prometheus.MustRegister(DumpItemsDropped, DumpItemsRecorded, ActorRestarts, ActorPanics, RemoteSendFailures)
}
