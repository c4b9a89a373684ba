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
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// Package-level cached context reused across log calls.
var bgCtx = context.Background()

// SamplingConfig thins debug, info and warn calls before they reach the
// dispatcher. The first Initial calls pass, then one of every Thereafter.
// The count restarts every Tick. Error and fatal calls always pass.
type SamplingConfig struct {
	Initial    int
	Thereafter int // 0 keeps everything after Initial
	Tick       time.Duration
}

// Logger ships log calls to the configured sinks.
//
// It owns one [Dispatcher] and exposes it through an [slog.Logger], so
// structured attributes, groups and context work as with any slog
// handler. Log calls never fail or panic because of a sink.
//
// Thread-safety: All public methods are safe for concurrent use.
type Logger struct {
	level       Level
	runtime     Runtime
	sinkConfigs []SinkConfig
	routes      []Route

	// Service information (immutable after initialization)
	serviceName    string
	serviceVersion string
	environment    string

	diag        DiagnosticsFunc
	registerer  prometheus.Registerer
	stdout      io.Writer
	stderr      io.Writer
	fs          afero.Fs
	httpClient  *http.Client
	storage     Storage
	clock       func() time.Time
	slsFactory  func(SLSOptions) (Collector, error)
	esFactory   func(ElasticsearchOptions) (Collector, error)
	replaceAttr ReplaceAttrFunc

	// Sampling
	samplingConfig *SamplingConfig
	sampleCounter  atomic.Int64
	sampleTicker   *time.Ticker
	sampleStop     chan struct{}

	registerGlobal bool
	optErrs        *multierror.Error

	dispatcher     *Dispatcher
	metrics        *metrics
	slogger        atomic.Pointer[slog.Logger]
	isShuttingDown atomic.Bool
	shutdownOnce   sync.Once
	shutdownErr    error
}

// Option is a functional option for configuring the logger.
type Option func(*Logger)

func defaultLogger() *Logger {
	return &Logger{
		level:  LevelInfo,
		stdout: os.Stdout,
		stderr: os.Stderr,
		slsFactory: func(o SLSOptions) (Collector, error) {
			return NewSLSCollector(o)
		},
		esFactory: func(o ElasticsearchOptions) (Collector, error) {
			return NewElasticsearchCollector(o)
		},
	}
}

// New creates a Logger. Without sinks it writes to stdout.
//
// By default, this function does NOT set the global slog default logger.
// Use [WithGlobalLogger] to register it.
//
// Options are applied in order, so an option after [WithConfig] overrides
// the value the file set. Sinks that cannot run in the selected runtime,
// and cloud collectors without credentials, are built inert and reported
// once through diagnostics rather than failing New.
//
// Example:
//
//	cfg, err := logship.LoadConfig("sinks.yaml")
//	if err != nil {
//	    return err
//	}
//	logger, err := logship.New(logship.WithConfig(cfg), logship.WithServiceName("checkout"))
//	if err != nil {
//	    return err
//	}
//	defer logger.Shutdown(context.Background())
func New(opts ...Option) (*Logger, error) {
	l := defaultLogger()
	for _, opt := range opts {
		opt(l)
	}

	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := l.initialize(); err != nil {
		return nil, err
	}
	return l, nil
}

// MustNew creates a new Logger or panics on error.
func MustNew(opts ...Option) *Logger {
	l, err := New(opts...)
	if err != nil {
		panic("logship initialization failed: " + err.Error())
	}
	return l
}

// NewFromConfig creates a Logger from cfg. Options given after cfg
// override its values.
func NewFromConfig(cfg *Config, opts ...Option) (*Logger, error) {
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}

// Validate checks if the configuration is valid.
func (l *Logger) Validate() error {
	if err := l.optErrs.ErrorOrNil(); err != nil {
		return err
	}
	if l.stdout == nil || l.stderr == nil {
		return errors.New("output writer cannot be nil")
	}
	if !l.level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, int8(l.level))
	}
	if l.samplingConfig != nil {
		if l.samplingConfig.Initial < 0 || l.samplingConfig.Thereafter < 0 {
			return errors.New("sampling config values must be non-negative")
		}
	}
	for _, r := range l.routes {
		if r.Sink == nil {
			return fmt.Errorf("sink %q is nil", r.Name)
		}
	}
	cfg := Config{Sinks: l.sinkConfigs}
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.sinkConfigs = cfg.Sinks
	return nil
}

// initialize builds the sinks, the dispatcher and the slog front-end.
func (l *Logger) initialize() error {
	if l.runtime == "" {
		l.runtime = DetectRuntime()
	}
	if l.diag == nil {
		l.diag = WriterDiagnostics(l.stderr)
	}
	if len(l.sinkConfigs) == 0 && len(l.routes) == 0 {
		l.sinkConfigs = []SinkConfig{{Type: KindStdout, Name: string(KindStdout)}}
	}

	l.metrics = newMetrics()
	if l.registerer != nil {
		if err := l.metrics.register(l.registerer); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	env := &sinkEnv{
		runtime:    l.runtime,
		diag:       l.diag,
		metrics:    l.metrics,
		host:       resolveHostInfo(l.environment, l.serviceVersion),
		stdout:     l.stdout,
		stderr:     l.stderr,
		console:    defaultConsole(l.stdout, l.stderr),
		fs:         l.fs,
		httpClient: l.httpClient,
		storage:    l.storage,
		slsFactory: l.slsFactory,
		esFactory:  l.esFactory,
	}

	routes := make([]Route, 0, len(l.sinkConfigs)+len(l.routes))
	for _, sc := range l.sinkConfigs {
		sink, err := buildSink(sc.Name, sc, env)
		if err != nil {
			closeRoutes(routes)
			return fmt.Errorf("failed to build sink %q: %w", sc.Name, err)
		}
		r := Route{Name: sc.Name, Kind: sc.Type, Sink: sink}
		if sc.Level != "" {
			lvl, err := ParseLevel(sc.Level)
			if err != nil {
				closeRoutes(append(routes, r))
				return err
			}
			r.Level = &lvl
		}
		routes = append(routes, r)
	}
	routes = append(routes, l.routes...)

	l.dispatcher = newDispatcher(routes, DispatcherOptions{
		Level:       l.level,
		Runtime:     l.runtime,
		Diagnostics: l.diag,
		Clock:       l.clock,
	}, l.metrics)

	logger := slog.New(NewHandler(l.dispatcher, l.replaceAttr))
	var attrs []any
	if l.serviceName != "" {
		attrs = append(attrs, "service", l.serviceName)
	}
	if l.serviceVersion != "" {
		attrs = append(attrs, "version", l.serviceVersion)
	}
	if l.environment != "" {
		attrs = append(attrs, "env", l.environment)
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	l.slogger.Store(logger)
	if l.registerGlobal {
		slog.SetDefault(logger)
	}

	if l.samplingConfig != nil && l.samplingConfig.Tick > 0 {
		l.sampleStop = make(chan struct{})
		l.sampleTicker = time.NewTicker(l.samplingConfig.Tick)
		go l.resetSampleCount()
	}
	return nil
}

func closeRoutes(routes []Route) {
	for _, r := range routes {
		_ = r.Sink.Close(bgCtx)
	}
}

func (l *Logger) resetSampleCount() {
	for {
		select {
		case <-l.sampleTicker.C:
			l.sampleCounter.Store(0)
		case <-l.sampleStop:
			return
		}
	}
}

// sampled reports whether a call at level survives sampling.
func (l *Logger) sampled(level Level) bool {
	cfg := l.samplingConfig
	if cfg == nil || level >= LevelError {
		return true
	}
	n := l.sampleCounter.Add(1) - int64(cfg.Initial)
	if n <= 0 || cfg.Thereafter == 0 {
		return true
	}
	return n%int64(cfg.Thereafter) == 0
}

// Logger returns the underlying [slog.Logger].
// This method is safe for concurrent access.
func (l *Logger) Logger() *slog.Logger {
	return l.slogger.Load()
}

// Handler returns the slog handler feeding the dispatcher.
func (l *Logger) Handler() slog.Handler {
	return l.Logger().Handler()
}

// Dispatcher returns the logger's dispatcher.
func (l *Logger) Dispatcher() *Dispatcher {
	return l.dispatcher
}

// With returns a [slog.Logger] with additional attributes.
func (l *Logger) With(args ...any) *slog.Logger {
	return l.Logger().With(args...)
}

// WithGroup returns a [slog.Logger] with a group name.
func (l *Logger) WithGroup(name string) *slog.Logger {
	return l.Logger().WithGroup(name)
}

// log handles the shutdown check, level check and sampling shared by
// every entry point.
func (l *Logger) log(ctx context.Context, level Level, msg string, args ...any) {
	if l.isShuttingDown.Load() {
		return
	}
	logger := l.Logger()
	if !logger.Enabled(ctx, level.Slog()) {
		return
	}
	if !l.sampled(level) {
		return
	}
	logger.Log(ctx, level.Slog(), msg, args...)
}

// Log logs msg at level with ctx, which supplies trace correlation.
func (l *Logger) Log(ctx context.Context, level Level, msg string, args ...any) {
	l.log(ctx, level, msg, args...)
}

// Debug logs a debug message with structured attributes.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(bgCtx, LevelDebug, msg, args...)
}

// Info logs an informational message with structured attributes.
func (l *Logger) Info(msg string, args ...any) {
	l.log(bgCtx, LevelInfo, msg, args...)
}

// Warn logs a warning message with structured attributes.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(bgCtx, LevelWarn, msg, args...)
}

// Error logs an error message with structured attributes.
// Errors bypass sampling and are always logged.
func (l *Logger) Error(msg string, args ...any) {
	l.log(bgCtx, LevelError, msg, args...)
}

// Fatal logs a fatal message. It does not exit the process; in the
// browser runtime the event is shipped at error level.
func (l *Logger) Fatal(msg string, args ...any) {
	l.log(bgCtx, LevelFatal, msg, args...)
}

// Flush sends everything buffered by network sinks.
func (l *Logger) Flush(ctx context.Context) error {
	return l.dispatcher.Flush(ctx)
}

// Shutdown stops accepting log calls and closes every sink, delivering
// buffered events. It is idempotent.
func (l *Logger) Shutdown(ctx context.Context) error {
	l.shutdownOnce.Do(func() {
		l.isShuttingDown.Store(true)
		if l.sampleTicker != nil {
			l.sampleTicker.Stop()
			close(l.sampleStop)
		}
		l.shutdownErr = l.dispatcher.Close(ctx)
	})
	return l.shutdownErr
}

// SetLevel changes the minimum level of sinks without their own level.
func (l *Logger) SetLevel(level Level) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, int8(level))
	}
	if l.isShuttingDown.Load() {
		return ErrLoggerShutdown
	}
	l.dispatcher.SetLevel(level)
	return nil
}

// Level returns the current minimum log level.
func (l *Logger) Level() Level {
	return l.dispatcher.Level()
}

// Runtime returns the runtime sinks were built for.
func (l *Logger) Runtime() Runtime {
	return l.runtime
}

// ServiceName returns the service name.
func (l *Logger) ServiceName() string {
	return l.serviceName
}

// ServiceVersion returns the service version.
func (l *Logger) ServiceVersion() string {
	return l.serviceVersion
}

// Environment returns the environment.
func (l *Logger) Environment() string {
	return l.environment
}

// IsEnabled returns true if logging is enabled and not shutting down.
func (l *Logger) IsEnabled() bool {
	return !l.isShuttingDown.Load()
}

// Metrics returns the logger's Prometheus collectors.
func (l *Logger) Metrics() []prometheus.Collector {
	return l.metrics.collectors()
}

// DebugInfo returns diagnostic information about the logger.
func (l *Logger) DebugInfo() map[string]any {
	sinks := make([]map[string]any, 0, len(l.dispatcher.routes))
	for _, r := range l.dispatcher.routes {
		s := map[string]any{
			"name":  r.Name,
			"kind":  string(r.Kind),
			"level": "",
		}
		if r.Level != nil {
			s["level"] = r.Level.String()
		}
		if inert, ok := r.Sink.(*inertSink); ok {
			s["inert"] = inert.Cause().Error()
		}
		sinks = append(sinks, s)
	}

	info := map[string]any{
		"level":           l.Level().String(),
		"runtime":         string(l.runtime),
		"service_name":    l.serviceName,
		"service_version": l.serviceVersion,
		"environment":     l.environment,
		"is_shutdown":     l.isShuttingDown.Load(),
		"sinks":           sinks,
	}
	if l.samplingConfig != nil {
		info["sampling"] = map[string]any{
			"initial":    l.samplingConfig.Initial,
			"thereafter": l.samplingConfig.Thereafter,
			"tick":       l.samplingConfig.Tick.String(),
			"counter":    l.sampleCounter.Load(),
		}
	}
	return info
}
