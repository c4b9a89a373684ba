// Copyright 2025 The Rivaas Authors
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

package logship

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// SinkSpy is a [Sink] that records the events it handles. It can be told
// to fail or panic to exercise failure isolation.
//
// Thread-safe: Safe to use concurrently by multiple goroutines.
type SinkSpy struct {
	mu       sync.Mutex
	events   []Event
	err      error
	flushErr error
	panicV   any
	closed   int
	flushed  int
}

// NewSinkSpy returns an empty spy.
func NewSinkSpy() *SinkSpy {
	return &SinkSpy{}
}

// FailWith makes subsequent Handle calls return err after recording.
func (s *SinkSpy) FailWith(err error) *SinkSpy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// PanicWith makes subsequent Handle calls panic with v after recording.
func (s *SinkSpy) PanicWith(v any) *SinkSpy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicV = v
	return s
}

// Handle implements [Sink].
func (s *SinkSpy) Handle(_ context.Context, e Event) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	err, p := s.err, s.panicV
	s.mu.Unlock()

	if p != nil {
		panic(p)
	}
	return err
}

// FailFlushWith makes every subsequent Flush return err.
func (s *SinkSpy) FailFlushWith(err error) *SinkSpy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushErr = err
	return s
}

// Flush implements [Flusher].
func (s *SinkSpy) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed++
	return s.flushErr
}

// Close implements [Sink].
func (s *SinkSpy) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Events returns a copy of the recorded events.
func (s *SinkSpy) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Count returns the number of recorded events.
func (s *SinkSpy) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Closed returns how many times Close was called.
func (s *SinkSpy) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Flushed returns how many times Flush was called.
func (s *SinkSpy) Flushed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed
}

// Reset clears recorded events.
func (s *SinkSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// DiagnosticsRecorder collects diagnostics for assertions.
//
// Example:
//
//	rec := &logship.DiagnosticsRecorder{}
//	logger := logship.MustNew(logship.WithDiagnostics(rec.Func()), ...)
type DiagnosticsRecorder struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Func returns the [DiagnosticsFunc] feeding the recorder.
func (r *DiagnosticsRecorder) Func() DiagnosticsFunc {
	return func(d Diagnostic) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.diags = append(r.diags, d)
	}
}

// All returns a copy of the recorded diagnostics.
func (r *DiagnosticsRecorder) All() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Diagnostic(nil), r.diags...)
}

// Len returns the number of recorded diagnostics.
func (r *DiagnosticsRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.diags)
}

// MockCollector is an in-memory [Collector].
//
// Thread-safe: Safe to use concurrently by multiple goroutines.
type MockCollector struct {
	mu     sync.Mutex
	groups []*LogGroup
	err    error
	closed bool
}

// FailWith makes subsequent Store calls fail with err.
func (c *MockCollector) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Store implements [Collector].
func (c *MockCollector) Store(_ context.Context, g *LogGroup) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.groups = append(c.groups, g)
	return nil
}

// Close implements [Collector].
func (c *MockCollector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Groups returns the stored log groups.
func (c *MockCollector) Groups() []*LogGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*LogGroup(nil), c.groups...)
}

// Records returns every stored record in order.
func (c *MockCollector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Record
	for _, g := range c.groups {
		out = append(out, g.Records...)
	}
	return out
}

// MockWriter is an io.Writer that records all writes for test assertions.
//
// Thread-safe: Safe to use concurrently by multiple goroutines.
type MockWriter struct {
	mu         sync.Mutex
	writes     [][]byte
	writeError error
	bytesTotal int
}

// NewFailingWriter returns a MockWriter whose writes fail with err.
func NewFailingWriter(err error) *MockWriter {
	return &MockWriter{writeError: err}
}

// Write implements io.Writer.
func (mw *MockWriter) Write(p []byte) (n int, err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeError != nil {
		return 0, mw.writeError
	}
	mw.writes = append(mw.writes, append([]byte(nil), p...))
	mw.bytesTotal += len(p)
	return len(p), nil
}

// WriteCount returns the number of write calls.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return len(mw.writes)
}

// BytesWritten returns total bytes written.
func (mw *MockWriter) BytesWritten() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.bytesTotal
}

// LastWrite returns the most recent write.
func (mw *MockWriter) LastWrite() []byte {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if len(mw.writes) == 0 {
		return nil
	}
	return mw.writes[len(mw.writes)-1]
}

// Reset clears all recorded writes.
func (mw *MockWriter) Reset() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writes = nil
	mw.bytesTotal = 0
}

// TestHelper provides utilities for testing code that logs through logship.
type TestHelper struct {
	Logger      *Logger
	Spy         *SinkSpy
	Diagnostics *DiagnosticsRecorder
}

// NewTestHelper creates a debug-level [Logger] whose only sink is a
// [SinkSpy]. Additional options are applied after the defaults. The
// logger is shut down when the test ends.
func NewTestHelper(t *testing.T, opts ...Option) *TestHelper {
	t.Helper()

	spy := NewSinkSpy()
	rec := &DiagnosticsRecorder{}
	defaultOpts := []Option{
		WithSink("spy", spy),
		WithLevel(LevelDebug),
		WithDiagnostics(rec.Func()),
		WithRuntime(RuntimeServer),
	}
	logger, err := New(append(defaultOpts, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Shutdown(context.Background()) })

	return &TestHelper{Logger: logger, Spy: spy, Diagnostics: rec}
}

// LastEvent returns the most recent event, failing the test if none.
func (th *TestHelper) LastEvent(t *testing.T) Event {
	t.Helper()
	events := th.Spy.Events()
	require.NotEmpty(t, events, "no events recorded")
	return events[len(events)-1]
}

// ContainsMessage checks if any event has the given message.
func (th *TestHelper) ContainsMessage(msg string) bool {
	for _, e := range th.Spy.Events() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// CountLevel returns the number of events at level.
func (th *TestHelper) CountLevel(level Level) int {
	n := 0
	for _, e := range th.Spy.Events() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// AssertEvent checks that the last event matches level, message and the
// given metadata entries.
func (th *TestHelper) AssertEvent(t *testing.T, level Level, msg string, meta map[string]any) {
	t.Helper()
	e := th.LastEvent(t)
	require.Equal(t, level, e.Level, "level mismatch")
	require.Equal(t, msg, e.Message, "message mismatch")
	for k, want := range meta {
		got, ok := e.Metadata[k]
		require.True(t, ok, "missing metadata %q", k)
		require.Equal(t, want, got, "metadata %q mismatch", k)
	}
}
