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
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/afero"
)

// Kind is the type discriminator of a configured sink.
type Kind string

const (
	KindStdout        Kind = "stdout"
	KindFile          Kind = "file"
	KindHTTP          Kind = "http"
	KindLocalStorage  Kind = "localstorage"
	KindSLS           Kind = "sls"
	KindElasticsearch Kind = "elasticsearch"

	// KindCustom marks caller-built sinks added with [WithSink]. It is not
	// accepted in configuration.
	KindCustom Kind = "custom"
)

// Kinds lists every supported sink kind.
var Kinds = []Kind{KindStdout, KindFile, KindHTTP, KindLocalStorage, KindSLS, KindElasticsearch}

// Valid reports whether k is a supported sink kind.
func (k Kind) Valid() bool {
	switch k {
	case KindStdout, KindFile, KindHTTP, KindLocalStorage, KindSLS, KindElasticsearch:
		return true
	}
	return false
}

// ParseKind parses a sink type. "console" is accepted for stdout.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "console" {
		return KindStdout, nil
	}
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSinkType, s)
	}
	return k, nil
}

// Sink is one log destination.
//
// Handle is called by the [Dispatcher] for every event that passed the
// sink's level filter, one call at a time and in dispatch order. It must
// not block on the network; buffered sinks enqueue and return. A returned
// error or a panic is caught by the Dispatcher and reported as a
// diagnostic; it never reaches the log call.
//
// Close releases the sink's resources and delivers anything still buffered.
// It is idempotent.
type Sink interface {
	Handle(ctx context.Context, e Event) error
	Close(ctx context.Context) error
}

// Flusher is implemented by sinks that buffer events.
type Flusher interface {
	Flush(ctx context.Context) error
}

// sinkEnv carries the capabilities sinks are built from. It is assembled
// once per [Logger] from its options.
type sinkEnv struct {
	runtime    Runtime
	diag       DiagnosticsFunc
	metrics    *metrics
	host       hostInfo
	stdout     io.Writer
	stderr     io.Writer
	console    consoleBackend
	fs         afero.Fs
	httpClient *http.Client
	storage    Storage

	slsFactory func(SLSOptions) (Collector, error)
	esFactory  func(ElasticsearchOptions) (Collector, error)
}

func (env *sinkEnv) reporter(name string, kind Kind) *reporter {
	return &reporter{name: name, kind: kind, diag: env.diag, metrics: env.metrics}
}

// buildSink constructs the adapter for one validated configuration entry.
// Kinds that cannot run in env.runtime, and cloud collectors missing
// credentials, come back as inert sinks after one warning.
func buildSink(name string, sc SinkConfig, env *sinkEnv) (Sink, error) {
	rep := env.reporter(name, sc.Type)
	if !env.runtime.Supports(sc.Type) {
		return newInertSink(rep, fmt.Errorf("%w: %s sink in %s runtime", ErrUnsupportedRuntime, sc.Type, env.runtime)), nil
	}

	fields, err := sc.fieldList()
	if err != nil {
		return nil, err
	}
	enr := enricher{fields: fields, host: env.host}

	switch sc.Type {
	case KindStdout:
		opts, err := decodeOptions(sc.Config, defaultConsoleOptions())
		if err != nil {
			return nil, err
		}
		return newConsoleSink(opts, env, enr), nil

	case KindFile:
		opts, err := decodeOptions(sc.Config, defaultFileOptions())
		if err != nil {
			return nil, err
		}
		return newFileSink(opts, env.fs, enr, rep), nil

	case KindHTTP:
		opts, err := decodeOptions(sc.Config, defaultHTTPOptions())
		if err != nil {
			return nil, err
		}
		return newHTTPSink(opts, env.httpClient, enr, rep), nil

	case KindLocalStorage:
		opts, err := decodeOptions(sc.Config, defaultLocalStorageOptions())
		if err != nil {
			return nil, err
		}
		return newLocalStorageSink(opts, env.storage, enr, rep), nil

	case KindSLS:
		opts, err := decodeOptions(sc.Config, defaultSLSOptions())
		if err != nil {
			return nil, err
		}
		if missing := opts.missing(); len(missing) > 0 {
			return newInertSink(rep, fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))), nil
		}
		col, err := env.slsFactory(opts)
		if err != nil {
			return newInertSink(rep, fmt.Errorf("%w: %w", ErrConfiguration, err)), nil
		}
		return newCloudSink(col, opts.cloudOptions(), withDefaultFields(fields), env.host, rep), nil

	case KindElasticsearch:
		opts, err := decodeOptions(sc.Config, defaultElasticsearchOptions())
		if err != nil {
			return nil, err
		}
		if len(opts.Addresses) == 0 {
			return newInertSink(rep, fmt.Errorf("%w: missing addresses", ErrConfiguration)), nil
		}
		col, err := env.esFactory(opts)
		if err != nil {
			return newInertSink(rep, fmt.Errorf("%w: %w", ErrConfiguration, err)), nil
		}
		return newCloudSink(col, opts.cloudOptions(), withDefaultFields(fields), env.host, rep), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSinkType, sc.Type)
}

// withDefaultFields returns fields, or every field when none is configured.
func withDefaultFields(fields []Field) []Field {
	if len(fields) == 0 {
		return allFields
	}
	return fields
}

// inertSink accepts events and discards them. It stands in for a sink that
// is misconfigured or not available in the current runtime.
type inertSink struct {
	rep   *reporter
	cause error
}

func newInertSink(rep *reporter, cause error) *inertSink {
	s := &inertSink{rep: rep, cause: cause}
	rep.warnOnceConfig(&SinkError{Sink: rep.name, Kind: rep.kind, Op: "configure", Err: cause})
	return s
}

func (s *inertSink) Handle(context.Context, Event) error { return nil }

func (s *inertSink) Close(context.Context) error { return nil }

// Cause returns the reason the sink is inert.
func (s *inertSink) Cause() error { return s.cause }
