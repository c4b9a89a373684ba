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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Route binds a sink to its name, kind and optional level override.
type Route struct {
	Name string
	Kind Kind
	// Level overrides the dispatcher level for this sink when non-nil.
	Level *Level
	Sink  Sink
}

// DispatcherOptions configures a [Dispatcher].
type DispatcherOptions struct {
	// Level is the default minimum level of routes without an override.
	Level   Level
	Runtime Runtime
	// Diagnostics receives sink failures; nil discards them.
	Diagnostics DiagnosticsFunc
	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time
	// PackIDs generates correlation ids; a fresh generator is used if nil.
	PackIDs *PackIDGenerator
}

type route struct {
	Route
	rep *reporter
}

// Dispatcher fans each event out to its routes, in configuration order,
// applying every route's level filter.
//
// Dispatch never returns an error and never panics because of a sink:
// failures and panics are caught per route, reported as diagnostics, and
// the remaining routes still receive the event. Dispatch is serialized, so
// each sink sees events in dispatch order with non-decreasing timestamps.
//
// Thread-safe: Safe to use concurrently by multiple goroutines.
type Dispatcher struct {
	routes  []route
	runtime Runtime
	packs   *PackIDGenerator
	now     func() time.Time
	metrics *metrics
	level   atomic.Int32

	mu     sync.Mutex
	last   time.Time
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// NewDispatcher returns a Dispatcher over routes.
//
// Parameters:
//   - routes: Sinks in dispatch order, each with an optional level override
//   - opts: Default level, runtime, diagnostics, clock and pack id source
//
// Most callers get a Dispatcher from [New] through [Logger.Dispatcher].
// Building one directly suits code that owns its sinks and does not need
// the slog front-end. Metrics are created but not registered.
//
// Example:
//
//	d := logship.NewDispatcher([]logship.Route{
//	    {Name: "audit", Kind: logship.KindCustom, Sink: auditSink},
//	}, logship.DispatcherOptions{Level: logship.LevelInfo, Runtime: logship.RuntimeServer})
//	defer d.Close(context.Background())
//
//	d.Dispatch(ctx, logship.Event{Level: logship.LevelWarn, Message: "quota low"})
func NewDispatcher(routes []Route, opts DispatcherOptions) *Dispatcher {
	return newDispatcher(routes, opts, newMetrics())
}

func newDispatcher(routes []Route, opts DispatcherOptions, m *metrics) *Dispatcher {
	if opts.Runtime == "" {
		opts.Runtime = DetectRuntime()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.PackIDs == nil {
		opts.PackIDs = NewPackIDGenerator()
	}
	d := &Dispatcher{
		runtime: opts.Runtime,
		packs:   opts.PackIDs,
		now:     opts.Clock,
		metrics: m,
	}
	d.level.Store(int32(opts.Level))
	for _, r := range routes {
		d.routes = append(d.routes, route{
			Route: r,
			rep:   &reporter{name: r.Name, kind: r.Kind, diag: opts.Diagnostics, metrics: m},
		})
	}
	return d
}

// Level returns the default minimum level.
func (d *Dispatcher) Level() Level {
	return Level(d.level.Load())
}

// SetLevel changes the default minimum level. Routes with an override
// are unaffected.
func (d *Dispatcher) SetLevel(l Level) {
	d.level.Store(int32(l))
}

// Enabled reports whether at least one route would accept an event at l.
func (d *Dispatcher) Enabled(l Level) bool {
	l = d.demote(l)
	def := d.Level()
	for i := range d.routes {
		if ShouldEmit(l, d.routes[i].effectiveLevel(def)) {
			return true
		}
	}
	return false
}

func (r *route) effectiveLevel(def Level) Level {
	if r.Level != nil {
		return *r.Level
	}
	return def
}

// demote maps fatal to error outside the server runtime.
func (d *Dispatcher) demote(l Level) Level {
	if l == LevelFatal && d.runtime.IsBrowser() {
		return LevelError
	}
	return l
}

// Dispatch stamps e with the dispatch time and a pack id, then hands it
// to every route whose level filter passes. Events dispatched after Close
// are discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	now := d.now().Truncate(time.Millisecond)
	if now.Before(d.last) {
		now = d.last
	}
	d.last = now
	e.Time = now
	e.Level = d.demote(e.Level)
	if e.PackID == "" {
		if v, ok := e.Metadata[metaPackID]; ok && v != nil {
			e.PackID = fmt.Sprint(v)
		} else {
			e.PackID = d.packs.Next()
		}
	}

	def := d.Level()
	for i := range d.routes {
		r := &d.routes[i]
		if !ShouldEmit(e.Level, r.effectiveLevel(def)) {
			continue
		}
		d.metrics.dispatched(r.Name, e.Level)
		d.handle(ctx, r, e)
	}
}

// handle runs one sink with panic and error isolation.
func (d *Dispatcher) handle(ctx context.Context, r *route, e Event) {
	defer func() {
		if p := recover(); p != nil {
			r.rep.report("handle", newSinkError(r.Name, r.Kind, "handle", ErrTransport,
				fmt.Errorf("panic: %v", p)), 1)
		}
	}()
	if err := r.Sink.Handle(ctx, e); err != nil {
		var se *SinkError
		if !errors.As(err, &se) {
			sentinel := ErrTransport
			if errors.Is(err, ErrSerialization) {
				sentinel = ErrSerialization
			}
			err = &SinkError{Sink: r.Name, Kind: r.Kind, Op: "handle", Err: wrapOnce(sentinel, err)}
		}
		r.rep.report("handle", err, 1)
	}
}

// Flush flushes every buffering sink concurrently and returns the first
// failure. Failures are also reported as diagnostics. Every sink flushes
// under ctx, so one failing sink does not cut the others short.
func (d *Dispatcher) Flush(ctx context.Context) error {
	var g errgroup.Group
	for i := range d.routes {
		r := &d.routes[i]
		f, ok := r.Sink.(Flusher)
		if !ok {
			continue
		}
		g.Go(func() error {
			return isolate(r, "flush", func() error { return f.Flush(ctx) })
		})
	}
	return g.Wait()
}

// Close stops accepting events and closes every sink, draining buffered
// events. Errors from all sinks are aggregated. Close is idempotent.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		var result *multierror.Error
		for i := range d.routes {
			r := &d.routes[i]
			if err := isolate(r, "close", func() error { return r.Sink.Close(ctx) }); err != nil {
				result = multierror.Append(result, err)
			}
		}
		d.closeErr = result.ErrorOrNil()
	})
	return d.closeErr
}

// wrapOnce wraps err with sentinel unless it already matches it.
func wrapOnce(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// isolate runs fn for route r, converting a panic into an error.
func isolate(r *route, op string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = newSinkError(r.Name, r.Kind, op, ErrTransport, fmt.Errorf("panic: %v", p))
			r.rep.report(op, err, 0)
		}
	}()
	return fn()
}

// Routes returns the configured routes in dispatch order.
func (d *Dispatcher) Routes() []Route {
	out := make([]Route, len(d.routes))
	for i, r := range d.routes {
		out[i] = r.Route
	}
	return out
}
