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

// Package logtree implements a hierarchical, bounded, per-origin log
// journal: every actor logs under a dotted name (its DN, derived from its
// Supervisor group path) and can be drained either by exact origin or by
// subtree, the way metropolis' supervisor-integrated logtree works.
package logtree

import "strings"

// DN (distinguished name) is a dot-separated hierarchical log origin, e.g.
// "root.workers.fetcher". The empty DN names the tree root.
type DN string

// Path splits the DN into its components.
func (d DN) Path() []string {
	if d == "" {
		return nil
	}
	return strings.Split(string(d), ".")
}

// Parent returns the DN one level up, or "" if d is already the root or a
// single-component DN.
func (d DN) Parent() DN {
	parts := d.Path()
	if len(parts) <= 1 {
		return ""
	}
	return DN(strings.Join(parts[:len(parts)-1], "."))
}

// Child builds the DN of a named child of d.
func (d DN) Child(name string) DN {
	if d == "" {
		return DN(name)
	}
	return DN(string(d) + "." + name)
}

// Contains reports whether other is d itself or a descendant of d in the
// dotted namespace.
func (d DN) Contains(other DN) bool {
	if d == "" {
		return true
	}
	if other == d {
		return true
	}
	return strings.HasPrefix(string(other), string(d)+".")
}
