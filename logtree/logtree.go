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
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// LogTree is the hierarchical log store an actor runtime's supervisor
// installs once per process. Every actor logs under its own DN (derived
// from its Supervisor group path); callers can then retrieve or stream
// either a single origin's retained log or an entire subtree's.
type LogTree struct {
	journal *journal

	mu         sync.Mutex
	verbosity  map[DN]VerbosityLevel
	sinks      []func(DN, *LeveledPayload)
	zapBackend *zap.Logger
}

// New creates an empty LogTree, backed by a production zap logger used only
// as the default stderr sink (see PipeAllToStderr).
func New() *LogTree {
	backend, err := zap.NewProduction()
	if err != nil {
		backend = zap.NewNop()
	}
	return &LogTree{
		journal:    newJournal(),
		verbosity:  make(map[DN]VerbosityLevel),
		zapBackend: backend,
	}
}

// MustLeveledFor returns a LeveledLogger bound to dn. Calling any of its
// methods journals the resulting entry and fans it out to every registered
// sink.
func (t *LogTree) MustLeveledFor(dn DN) LeveledLogger {
	return &leveledLogger{tree: t, dn: dn}
}

// SetVerbosity sets dn's V-log verbosity threshold.
func (t *LogTree) SetVerbosity(dn DN, level VerbosityLevel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.verbosity[dn] = level
}

func (t *LogTree) verbosityFor(dn DN) VerbosityLevel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.verbosity[dn]
}

// Entries returns the retained log lines for dn exactly (not its subtree).
func (t *LogTree) Entries(dn DN) []*LeveledPayload {
	raw := t.journal.getEntries(dn)
	out := make([]*LeveledPayload, len(raw))
	for i, e := range raw {
		out[i] = e.leveled
	}
	return out
}

// Subtree returns the retained log lines for dn and every descendant DN.
func (t *LogTree) Subtree(dn DN) []*LeveledPayload {
	raw := t.journal.scanEntries(filterSubtree(dn))
	out := make([]*LeveledPayload, len(raw))
	for i, e := range raw {
		out[i] = e.leveled
	}
	return out
}

// addSink registers f to be called synchronously with every newly appended
// entry, in addition to journaling it. Used by PipeAllToStderr.
func (t *LogTree) addSink(f func(DN, *LeveledPayload)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, f)
}

func (t *LogTree) publish(dn DN, p *LeveledPayload) {
	t.journal.append(&entry{origin: dn, leveled: p})

	t.mu.Lock()
	sinks := append([]func(DN, *LeveledPayload){}, t.sinks...)
	t.mu.Unlock()
	for _, s := range sinks {
		s(dn, p)
	}
}

// PipeAllToStderr streams every entry logged anywhere in the tree to
// stderr via zap. The sink stays registered on lt after t finishes; no
// cleanup removes it. Mirrors the teacher's test-harness convenience of the
// same name.
func PipeAllToStderr(t testing.TB, lt *LogTree) {
	t.Helper()
	lt.addSink(func(dn DN, p *LeveledPayload) {
		switch p.severity {
		case WARNING:
			lt.zapBackend.Sugar().Warnf("[%s] %s", dn, p.message)
		case ERROR, FATAL:
			lt.zapBackend.Sugar().Errorf("[%s] %s", dn, p.message)
		default:
			lt.zapBackend.Sugar().Infof("[%s] %s", dn, p.message)
		}
	})
}

// leveledLogger is the concrete LeveledLogger bound to a single DN.
type leveledLogger struct {
	tree       *LogTree
	dn         DN
	stackDepth int
}

func (l *leveledLogger) WithAddedStackDepth(depth int) LeveledLogger {
	return &leveledLogger{tree: l.tree, dn: l.dn, stackDepth: l.stackDepth + depth}
}

func (l *leveledLogger) log(sev Severity, msg string) {
	msg = strings.TrimSuffix(msg, "\n")
	file, line := l.caller()
	l.tree.publish(l.dn, &LeveledPayload{
		severity:  sev,
		message:   msg,
		timestamp: time.Now(),
		file:      file,
		line:      line,
	})
	if sev == FATAL {
		panic(fmt.Sprintf("FATAL [%s] %s", l.dn, msg))
	}
}

func (l *leveledLogger) caller() (string, int) {
	_, file, line, ok := runtime.Caller(3 + l.stackDepth)
	if !ok {
		return "???", 0
	}
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		file = file[idx+1:]
	}
	return file, line
}

func (l *leveledLogger) Info(args ...interface{})  { l.log(INFO, fmt.Sprint(args...)) }
func (l *leveledLogger) Warning(args ...interface{}) { l.log(WARNING, fmt.Sprint(args...)) }
func (l *leveledLogger) Error(args ...interface{})  { l.log(ERROR, fmt.Sprint(args...)) }
func (l *leveledLogger) Fatal(args ...interface{})  { l.log(FATAL, fmt.Sprint(args...)) }

func (l *leveledLogger) Infof(format string, args ...interface{}) { l.log(INFO, fmt.Sprintf(format, args...)) }
func (l *leveledLogger) Warningf(format string, args ...interface{}) {
	l.log(WARNING, fmt.Sprintf(format, args...))
}
func (l *leveledLogger) Errorf(format string, args ...interface{}) { l.log(ERROR, fmt.Sprintf(format, args...)) }
func (l *leveledLogger) Fatalf(format string, args ...interface{}) { l.log(FATAL, fmt.Sprintf(format, args...)) }

func (l *leveledLogger) V(level VerbosityLevel) VerboseLeveledLogger {
	return &verboseLeveledLogger{leveled: l, enabled: l.tree.verbosityFor(l.dn) >= level}
}

type verboseLeveledLogger struct {
	leveled *leveledLogger
	enabled bool
}

func (v *verboseLeveledLogger) Enabled() bool { return v.enabled }
func (v *verboseLeveledLogger) Info(args ...interface{}) {
	if v.enabled {
		v.leveled.Info(args...)
	}
}
func (v *verboseLeveledLogger) Infof(format string, args ...interface{}) {
	if v.enabled {
		v.leveled.Infof(format, args...)
	}
}
