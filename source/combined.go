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

package source

// combined composes two sources, biased towards left.
type combined struct {
	left, right Source
}

// Combine returns a Source polling left first on every call: a left Ready
// wins outright; a left Done drops through to right and returns right's
// result as-is (left, being fused, keeps answering Done on later calls,
// matching the original's "left drop-through"); a left Pending still polls
// right, returning right's envelope if it is Ready and Pending otherwise.
func Combine(left, right Source) Source {
	return &combined{left: left, right: right}
}

func (c *combined) TryRecv() (any, State) {
	lv, ls := c.left.TryRecv()
	switch ls {
	case Ready:
		return lv, Ready
	case Done:
		return c.right.TryRecv()
	default: // Pending
		rv, rs := c.right.TryRecv()
		if rs == Ready {
			return rv, Ready
		}
		return nil, Pending
	}
}

// CombineAll folds Combine over a variadic list of sources, left to right —
// the first source is always polled first and wins ties. An empty list
// yields Empty{}.
func CombineAll(sources ...Source) Source {
	if len(sources) == 0 {
		return Empty{}
	}
	out := sources[len(sources)-1]
	for i := len(sources) - 2; i >= 0; i-- {
		out = Combine(sources[i], out)
	}
	return out
}
