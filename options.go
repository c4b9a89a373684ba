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
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// WithConfig applies a declarative configuration. Options after it
// override the values it sets.
func WithConfig(cfg *Config) Option {
	return func(l *Logger) {
		if cfg == nil {
			return
		}
		if cfg.Level != "" {
			lvl, err := ParseLevel(cfg.Level)
			if err != nil {
				l.optErrs = multierror.Append(l.optErrs, &ConfigError{Index: -1, Field: "level", Op: "apply", Err: err})
			} else {
				l.level = lvl
			}
		}
		if cfg.Runtime != "" {
			rt, err := ParseRuntime(cfg.Runtime)
			if err != nil {
				l.optErrs = multierror.Append(l.optErrs, &ConfigError{Index: -1, Field: "runtime", Op: "apply", Err: err})
			} else {
				l.runtime = rt
			}
		}
		if cfg.Service != "" {
			l.serviceName = cfg.Service
		}
		if cfg.Version != "" {
			l.serviceVersion = cfg.Version
		}
		if cfg.Environment != "" {
			l.environment = cfg.Environment
		}
		l.sinkConfigs = append(l.sinkConfigs, cfg.Sinks...)
	}
}

// WithSinks appends configured sinks.
func WithSinks(sinks ...SinkConfig) Option {
	return func(l *Logger) {
		l.sinkConfigs = append(l.sinkConfigs, sinks...)
	}
}

// WithSink appends a caller-built sink. It is dispatched to after the
// configured sinks, with the logger level unless level is given.
func WithSink(name string, s Sink, level ...Level) Option {
	return func(l *Logger) {
		r := Route{Name: name, Kind: KindCustom, Sink: s}
		if len(level) > 0 {
			lvl := level[0]
			r.Level = &lvl
		}
		l.routes = append(l.routes, r)
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) Option {
	return func(l *Logger) { l.level = level }
}

// WithDebugLevel enables debug logging.
func WithDebugLevel() Option {
	return WithLevel(LevelDebug)
}

// WithRuntime sets the runtime sinks are built for. Kinds the runtime
// cannot host become inert.
func WithRuntime(r Runtime) Option {
	return func(l *Logger) { l.runtime = r }
}

// WithDiagnostics sets the receiver of sink failures. The default writes
// one warning line per failure to the error output.
func WithDiagnostics(fn DiagnosticsFunc) Option {
	return func(l *Logger) { l.diag = fn }
}

// WithOutput sets the writer used by stdout sinks for every level, and by
// the default diagnostics.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) {
		l.stdout = w
		l.stderr = w
	}
}

// WithStreams sets separate writers for log/info and warn/error output.
func WithStreams(out, errOut io.Writer) Option {
	return func(l *Logger) {
		l.stdout = out
		l.stderr = errOut
	}
}

// WithServiceName sets the service name.
// When set, the service name is automatically added to all log entries.
func WithServiceName(name string) Option {
	return func(l *Logger) { l.serviceName = name }
}

// WithServiceVersion sets the service version. It is added to all log
// entries and used for the version field instead of APP_VERSION.
func WithServiceVersion(version string) Option {
	return func(l *Logger) { l.serviceVersion = version }
}

// WithEnvironment sets the environment. It is added to all log entries
// and used for the env field instead of APP_ENV.
func WithEnvironment(env string) Option {
	return func(l *Logger) { l.environment = env }
}

// WithReplaceAttr sets a custom attribute replacer function. It runs
// after the built-in redaction of sensitive keys.
// Return an empty [slog.Attr] to drop the attribute.
func WithReplaceAttr(fn ReplaceAttrFunc) Option {
	return func(l *Logger) { l.replaceAttr = fn }
}

// WithSampling enables log sampling to reduce volume in high-traffic scenarios.
// See [SamplingConfig] for configuration options.
func WithSampling(cfg SamplingConfig) Option {
	return func(l *Logger) { l.samplingConfig = &cfg }
}

// WithGlobalLogger registers this logger as the global slog default logger.
func WithGlobalLogger() Option {
	return func(l *Logger) { l.registerGlobal = true }
}

// WithMetricsRegisterer registers the logger's collectors with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(l *Logger) { l.registerer = reg }
}

// WithHTTPClient sets the client used by HTTP sinks.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Logger) { l.httpClient = c }
}

// WithFs sets the filesystem used by file sinks without rotation.
func WithFs(fs afero.Fs) Option {
	return func(l *Logger) { l.fs = fs }
}

// WithStorage sets the storage used by localstorage sinks.
func WithStorage(s Storage) Option {
	return func(l *Logger) { l.storage = s }
}

// WithClock sets the time source of event timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.clock = now }
}

// WithSLSCollectorFactory replaces how sls sinks create their collector.
func WithSLSCollectorFactory(fn func(SLSOptions) (Collector, error)) Option {
	return func(l *Logger) { l.slsFactory = fn }
}

// WithElasticsearchCollectorFactory replaces how elasticsearch sinks
// create their collector.
func WithElasticsearchCollectorFactory(fn func(ElasticsearchOptions) (Collector, error)) Option {
	return func(l *Logger) { l.esFactory = fn }
}
