// Copyright 2026 The ESP Authors
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

// Package logging provides the structured logger used across the transport,
// evaluator lifecycle, and package resolver. It wraps charmbracelet/log so
// that a single global logger can be swapped for a buffered one in tests.
package logging

import (
	"bytes"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger wraps a charmbracelet/log logger with a test-capturing buffer and
// an injectable fatal hook so Fatal can be exercised without exiting tests.
type Logger struct {
	*log.Logger
	buffer  *bytes.Buffer
	fatalFn func(int)
}

var (
	logger *Logger
	once   sync.Once

	// ExitFn is injectable so tests can observe Fatal without exiting.
	ExitFn = os.Exit
	Stderr = os.Stderr
)

// CreateLogger initializes the process-global logger exactly once. Setting
// DEBUG=1 in the environment enables caller reporting and debug level,
// mirroring how the CLI toggles verbosity.
func CreateLogger() {
	once.Do(func() {
		base := log.New(Stderr)
		if os.Getenv("DEBUG") == "1" {
			base = log.NewWithOptions(Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				Prefix:          "esp",
			})
			base.SetLevel(log.DebugLevel)
		} else {
			base.SetLevel(log.InfoLevel)
		}
		logger = &Logger{Logger: base, fatalFn: ExitFn}
	})
}

// NewTestLogger returns a logger that writes to an in-memory buffer instead
// of stderr, so tests can assert on emitted log lines.
func NewTestLogger() *Logger {
	buf := new(bytes.Buffer)
	base := log.New(buf)
	base.SetLevel(log.DebugLevel)
	base.SetFormatter(log.TextFormatter)
	return &Logger{Logger: base, buffer: buf, fatalFn: ExitFn}
}

// NewTestSafeLogger is like NewTestLogger but Fatal does not call os.Exit,
// for tests that need to exercise a fatal code path safely.
func NewTestSafeLogger() *Logger {
	l := NewTestLogger()
	l.fatalFn = func(int) {}
	return l
}

// GetOutput returns everything captured so far by a test logger's buffer.
func (l *Logger) GetOutput() string {
	if l.buffer == nil {
		return ""
	}
	return l.buffer.String()
}

// With returns a child logger carrying additional key/value context.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...), buffer: l.buffer, fatalFn: l.fatalFn}
}

// Fatal logs at error level then invokes the fatal hook (os.Exit by default).
func (l *Logger) Fatal(msg interface{}, keyvals ...interface{}) {
	l.Error(msg, keyvals...)
	if l.fatalFn != nil {
		l.fatalFn(1)
	}
}

// BaseLogger exposes the underlying charmbracelet/log logger.
func (l *Logger) BaseLogger() *log.Logger {
	if l == nil || l.Logger == nil {
		panic("logging: logger not initialized")
	}
	return l.Logger
}

func ensureInitialized() {
	if logger == nil {
		CreateLogger()
	}
}

// GetLogger returns the process-global logger, creating it on first use.
func GetLogger() *Logger {
	ensureInitialized()
	return logger
}

// SetGlobal installs l as the process-global logger, for tests.
func SetGlobal(l *Logger) {
	logger = l
}

// ResetForTest clears the global logger and its sync.Once guard.
func ResetForTest() {
	logger = nil
	once = sync.Once{}
}

// Debug logs at debug level on the global logger.
func Debug(msg interface{}, keyvals ...interface{}) {
	ensureInitialized()
	logger.Debug(msg, keyvals...)
}

// Info logs at info level on the global logger.
func Info(msg interface{}, keyvals ...interface{}) {
	ensureInitialized()
	logger.Info(msg, keyvals...)
}

// Warn logs at warn level on the global logger.
func Warn(msg interface{}, keyvals ...interface{}) {
	ensureInitialized()
	logger.Warn(msg, keyvals...)
}

// Error logs at error level on the global logger.
func Error(msg interface{}, keyvals ...interface{}) {
	ensureInitialized()
	logger.Error(msg, keyvals...)
}

// Fatal logs at error level on the global logger then exits the process.
func Fatal(msg interface{}, keyvals ...interface{}) {
	ensureInitialized()
	logger.Fatal(msg, keyvals...)
}
