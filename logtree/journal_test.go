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

import (
	"fmt"
	"testing"
)

func testPayload(message string) *LeveledPayload {
	return &LeveledPayload{severity: INFO, message: message}
}

func appendAt(j *journal, dn DN, message string) {
	j.append(&entry{origin: dn, leveled: testPayload(message)})
}

func TestJournalRetention(t *testing.T) {
	j := newJournal()
	worker := DN("root").Child("workers").Child("fetcher")

	for i := 0; i < 9000; i++ {
		appendAt(j, worker, fmt.Sprintf("fetch %d", i))
	}

	entries := j.getEntries(worker)
	if want, got := 8192, len(entries); want != got {
		t.Fatalf("wanted %d entries, got %d", want, got)
	}
	for i, e := range entries {
		want := fmt.Sprintf("fetch %d", (9000-8192)+i)
		if got := e.leveled.message; want != got {
			t.Fatalf("wanted entry %q, got %q", want, got)
		}
	}
}

func TestJournalQuota(t *testing.T) {
	j := newJournal()
	chatty := DN("root").Child("workers").Child("chatty")
	solemn := DN("root").Child("workers").Child("solemn")

	for i := 0; i < 9000; i++ {
		appendAt(j, chatty, fmt.Sprintf("chatty %d", i))
		if i%10 == 0 {
			appendAt(j, solemn, fmt.Sprintf("solemn %d", i))
		}
	}

	entries := j.getEntries(chatty)
	if want, got := 8192, len(entries); want != got {
		t.Fatalf("wanted %d chatty entries, got %d", want, got)
	}
	entries = j.getEntries(solemn)
	if want, got := 900, len(entries); want != got {
		t.Fatalf("wanted %d solemn entries, got %d", want, got)
	}
	entries = j.getEntries(DN("root").Child("workers").Child("absent"))
	if want, got := 0, len(entries); want != got {
		t.Fatalf("wanted %d absent entries, got %d", want, got)
	}

	entries = j.scanEntries(filterAll())
	if want, got := 8192+900, len(entries); want != got {
		t.Fatalf("wanted %d total entries, got %d", want, got)
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		seen[e.leveled.message] = true
	}
	for i := 0; i < 900; i++ {
		want := fmt.Sprintf("solemn %d", i*10)
		if !seen[want] {
			t.Fatalf("could not find entry %q in journal", want)
		}
	}
	for i := 0; i < 8192; i++ {
		want := fmt.Sprintf("chatty %d", i+(9000-8192))
		if !seen[want] {
			t.Fatalf("could not find entry %q in journal", want)
		}
	}
}

func TestJournalSubtree(t *testing.T) {
	j := newJournal()

	root := DN("root")
	supervisors := root.Child("supervisors")
	db := supervisors.Child("db")
	dbConn := db.Child("conn")
	dbPool := db.Child("pool")
	net := root.Child("net")
	netRx := net.Child("rx")
	netTx := net.Child("tx")

	appendAt(j, root, "root")
	appendAt(j, supervisors, "supervisors")
	appendAt(j, db, "db")
	appendAt(j, dbConn, "db.conn")
	appendAt(j, dbPool, "db.pool")
	appendAt(j, netRx, "net.rx")
	appendAt(j, netTx, "net.tx")

	expect := func(f filter, msgs ...string) string {
		res := j.scanEntries(f)
		set := make(map[string]bool)
		for _, e := range res {
			set[e.leveled.message] = true
		}
		for _, want := range msgs {
			if !set[want] {
				return fmt.Sprintf("missing entry %q", want)
			}
		}
		return ""
	}

	if res := expect(filterAll(), "root", "supervisors", "db", "db.conn", "db.pool", "net.rx", "net.tx"); res != "" {
		t.Fatalf("All: %s", res)
	}
	if res := expect(filterSubtree(db), "db", "db.conn", "db.pool"); res != "" {
		t.Fatalf("Subtree(db): %s", res)
	}
	if res := expect(filterSubtree(dbConn), "db.conn"); res != "" {
		t.Fatalf("Subtree(db.conn): %s", res)
	}
	if res := expect(filterSubtree(net), "net.rx", "net.tx"); res != "" {
		t.Fatalf("Subtree(net): %s", res)
	}

	// A sibling subtree must never leak entries from another branch of the
	// same parent.
	res := j.scanEntries(filterSubtree(dbConn))
	for _, e := range res {
		if e.origin == dbPool {
			t.Fatalf("Subtree(db.conn) leaked sibling entry from %s", dbPool)
		}
	}

	if !db.Contains(dbConn) || !root.Contains(netTx) {
		t.Fatal("expected DN.Contains to hold for nested descendants built via Child")
	}
	if dbConn.Parent() != db {
		t.Fatalf("expected %s.Parent() == %s, got %s", dbConn, db, dbConn.Parent())
	}
}
