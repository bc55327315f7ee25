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

import "go.uber.org/zap/zapcore"

// LeveledLogger is a generic interface for glog-style logging. There are
// four hardcoded log severities, in increasing order: INFO, WARNING, ERROR,
// FATAL. Logging at a certain severity also reaches consumers watching any
// lower severity.
type LeveledLogger interface {
	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warning(args ...interface{})
	Warningf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	// V returns a VerboseLeveledLogger at the given verbosity level.
	V(level VerbosityLevel) VerboseLeveledLogger

	// WithAddedStackDepth returns the same LeveledLogger adjusted to skip an
	// additional number of call frames when attributing a log's call site.
	WithAddedStackDepth(depth int) LeveledLogger
}

// VerbosityLevel is a verbosity level for V-logs, settable per-origin.
type VerbosityLevel int32

// VerboseLeveledLogger gates Info/Infof calls behind a verbosity check.
type VerboseLeveledLogger interface {
	Enabled() bool
	Info(args ...interface{})
	Infof(format string, args ...interface{})
}

// Severity is one of the four hardcoded log severities.
type Severity string

const (
	INFO    Severity = "I"
	WARNING Severity = "W"
	ERROR   Severity = "E"
	FATAL   Severity = "F"
)

var severityAtLeast = map[Severity][]Severity{
	INFO:    {INFO, WARNING, ERROR, FATAL},
	WARNING: {WARNING, ERROR, FATAL},
	ERROR:   {ERROR, FATAL},
	FATAL:   {FATAL},
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	for _, el := range severityAtLeast[other] {
		if el == s {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	switch s {
	case INFO, WARNING, ERROR, FATAL:
		return true
	default:
		return false
	}
}

// ToZapLevel maps a Severity onto the nearest zapcore.Level, for handing
// entries to zap-backed output.
func (s Severity) ToZapLevel() zapcore.Level {
	switch s {
	case INFO:
		return zapcore.InfoLevel
	case WARNING:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// SeverityFromZapLevel is ToZapLevel's inverse: it maps a zapcore.Level
// back onto the nearest Severity.
func SeverityFromZapLevel(l zapcore.Level) Severity {
	switch {
	case l < zapcore.WarnLevel:
		return INFO
	case l < zapcore.ErrorLevel:
		return WARNING
	case l < zapcore.FatalLevel:
		return ERROR
	default:
		return FATAL
	}
}
