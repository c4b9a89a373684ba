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
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Diagnostic reports one sink failure. Diagnostics are the only way to
// observe transport problems: they never propagate to a log call.
type Diagnostic struct {
	Time time.Time
	Sink string
	Kind Kind
	Op   string
	// Err wraps one of ErrConfiguration, ErrTransport, ErrSerialization or
	// ErrUnsupportedRuntime.
	Err error
	// Dropped is the number of events lost by this failure, if known.
	Dropped int
}

// DiagnosticsFunc receives sink failures. It must not block and must not
// log through the logger that produced the diagnostic.
type DiagnosticsFunc func(Diagnostic)

// StderrDiagnostics returns the default diagnostics channel: one warning
// line per failure written to os.Stderr.
func StderrDiagnostics() DiagnosticsFunc {
	return WriterDiagnostics(os.Stderr)
}

// WriterDiagnostics writes one text warning line per failure to w.
func WriterDiagnostics(w io.Writer) DiagnosticsFunc {
	warn := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return func(d Diagnostic) {
		warn.LogAttrs(context.Background(), slog.LevelWarn, "logship: sink failure",
			slog.String("sink", d.Sink),
			slog.String("kind", string(d.Kind)),
			slog.String("op", d.Op),
			slog.Int("dropped", d.Dropped),
			slog.Any("error", d.Err),
		)
	}
}

// DiscardDiagnostics drops every diagnostic.
func DiscardDiagnostics() DiagnosticsFunc {
	return func(Diagnostic) {}
}

// reporter stamps diagnostics with sink identity and feeds metrics.
type reporter struct {
	name    string
	kind    Kind
	diag    DiagnosticsFunc
	metrics *metrics

	warnOnce sync.Once
}

func (r *reporter) report(op string, err error, dropped int) {
	if r == nil || err == nil {
		return
	}
	if r.metrics != nil {
		r.metrics.failure(r.name, op)
		if dropped > 0 {
			r.metrics.dropped(r.name, reasonOf(err), dropped)
		}
	}
	if r.diag == nil {
		return
	}
	r.diag(Diagnostic{
		Time:    time.Now(),
		Sink:    r.name,
		Kind:    r.kind,
		Op:      op,
		Err:     err,
		Dropped: dropped,
	})
}

// warnOnceConfig emits a configuration warning at most once per sink.
func (r *reporter) warnOnceConfig(err error) {
	if r == nil {
		return
	}
	r.warnOnce.Do(func() {
		r.report("configure", err, 0)
	})
}

// batchOptions wires a Batcher's callbacks to r. Send failures are
// reported once per attempt; lost events only count as drops, except
// overflow which also produces a diagnostic.
func (r *reporter) batchOptions(opts BatchOptions) BatchOptions {
	opts.OnFlush = func(_ int, err error) {
		if r.metrics != nil {
			r.metrics.flushed(r.name, err == nil)
		}
		if err != nil {
			r.report("flush", err, 0)
		}
	}
	opts.OnDrop = func(n int, err error) {
		if errors.Is(err, ErrQueueOverflow) {
			r.report("enqueue", &SinkError{Sink: r.name, Kind: r.kind, Op: "enqueue", Err: err}, n)
			return
		}
		if r.metrics != nil {
			r.metrics.dropped(r.name, reasonOf(err), n)
		}
	}
	opts.OnQueue = func(n int) {
		if r.metrics != nil {
			r.metrics.queue(r.name, n)
		}
	}
	return opts
}
