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
	"time"
)

// LeveledPayload is the structured payload of a single leveled log line.
type LeveledPayload struct {
	severity  Severity
	message   string
	timestamp time.Time
	file      string
	line      int
}

func (p *LeveledPayload) Severity() Severity   { return p.severity }
func (p *LeveledPayload) Message() string      { return p.message }
func (p *LeveledPayload) Timestamp() time.Time { return p.timestamp }

func (p *LeveledPayload) String() string {
	return fmt.Sprintf("%s%s %s:%d] %s", p.severity, p.timestamp.Format("0102 15:04:05.000000"), p.file, p.line, p.message)
}

// entry is one journaled log line, tagged with the DN it was logged under.
type entry struct {
	origin  DN
	leveled *LeveledPayload
}
