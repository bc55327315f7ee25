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

// filter selects entries when scanning across all origins.
type filter func(e *entry) bool

// filterAll matches every entry.
func filterAll() filter {
	return func(e *entry) bool { return true }
}

// filterSubtree matches dn itself and any of its descendants.
func filterSubtree(dn DN) filter {
	return func(e *entry) bool { return dn.Contains(e.origin) }
}

// filterSeverity matches entries at or above min.
func filterSeverity(min Severity) filter {
	return func(e *entry) bool { return e.leveled.severity.AtLeast(min) }
}

// filterAnd combines filters with logical AND.
func filterAnd(fs ...filter) filter {
	return func(e *entry) bool {
		for _, f := range fs {
			if !f(e) {
				return false
			}
		}
		return true
	}
}
