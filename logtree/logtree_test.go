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

package logtree

import "testing"

func TestLeveledLoggerJournalsUnderDN(t *testing.T) {
	lt := New()
	log := lt.MustLeveledFor("root.child")
	log.Infof("hello %d", 1)
	log.Warning("uh oh")

	entries := lt.Entries("root.child")
	if len(entries) != 2 {
		t.Fatalf("wanted 2 entries, got %d", len(entries))
	}
	if entries[0].Message() != "hello 1" {
		t.Fatalf("unexpected first message: %q", entries[0].Message())
	}
	if entries[1].Severity() != WARNING {
		t.Fatalf("expected WARNING severity, got %s", entries[1].Severity())
	}
}

func TestSubtreeAggregatesDescendants(t *testing.T) {
	lt := New()
	lt.MustLeveledFor("root").Info("at root")
	lt.MustLeveledFor("root.a").Info("at a")
	lt.MustLeveledFor("root.a.b").Info("at a.b")
	lt.MustLeveledFor("other").Info("unrelated")

	sub := lt.Subtree("root")
	if len(sub) != 3 {
		t.Fatalf("wanted 3 entries under root, got %d", len(sub))
	}
}

func TestVerbosityGatesVLogs(t *testing.T) {
	lt := New()
	log := lt.MustLeveledFor("root")

	if log.V(2).Enabled() {
		t.Fatal("expected V(2) disabled by default")
	}
	lt.SetVerbosity("root", 3)
	if !log.V(2).Enabled() {
		t.Fatal("expected V(2) enabled after SetVerbosity(3)")
	}
	if log.V(4).Enabled() {
		t.Fatal("expected V(4) still disabled")
	}
}
