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
	"errors"
	"fmt"
)

// Sentinel errors. Sink failures never reach a log call site; they are only
// observable through [DiagnosticsFunc], where they can be matched with
// [errors.Is].
var (
	// ErrConfiguration marks a sink whose required settings are missing.
	// Such a sink is inert for its whole lifetime.
	ErrConfiguration = errors.New("sink misconfigured")

	// ErrTransport marks a network or file I/O failure at send time,
	// including panics recovered from a sink.
	ErrTransport = errors.New("transport failure")

	// ErrSerialization marks an event whose metadata could not be encoded.
	// The event is dropped from the failing sink only.
	ErrSerialization = errors.New("event not serializable")

	// ErrUnknownSinkType is returned by configuration validation for a
	// type discriminator outside the supported set.
	ErrUnknownSinkType = errors.New("unknown sink type")

	// ErrUnsupportedRuntime marks a sink kind that cannot run in the
	// configured runtime (e.g. a file sink in the browser).
	ErrUnsupportedRuntime = errors.New("sink not supported in runtime")

	// ErrQueueOverflow marks events discarded because a best-effort queue
	// exceeded its high-water mark. The oldest events are dropped first.
	ErrQueueOverflow = errors.New("queue over high-water mark")

	// ErrSinkClosed is returned by a sink that has been closed.
	ErrSinkClosed = errors.New("sink closed")

	// ErrInvalidLevel indicates a level name or value outside debug..fatal.
	ErrInvalidLevel = errors.New("invalid log level")

	// ErrLoggerShutdown indicates the logger has been shut down via
	// [Logger.Shutdown].
	ErrLoggerShutdown = errors.New("logger is shut down")
)

// SinkError describes a failure inside one sink.
type SinkError struct {
	Sink string // configured sink name
	Kind Kind
	Op   string // "handle", "flush", "write", "close", "configure"
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s (%s) %s: %v", e.Sink, e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SinkError) Unwrap() error {
	return e.Err
}

// ConfigError describes an invalid entry in a [Config].
// Index is the position of the sink in Config.Sinks, or -1 for top-level
// fields.
type ConfigError struct {
	Index int
	Field string
	Op    string
	Err   error
}

func (e *ConfigError) Error() string {
	where := "config"
	if e.Index >= 0 {
		where = fmt.Sprintf("sinks[%d]", e.Index)
	}
	if e.Field != "" {
		return fmt.Sprintf("config error in %s.%s during %s: %v", where, e.Field, e.Op, e.Err)
	}
	return fmt.Sprintf("config error in %s during %s: %v", where, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func newSinkError(name string, kind Kind, op string, sentinel, cause error) *SinkError {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &SinkError{Sink: name, Kind: kind, Op: op, Err: err}
}
