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

// Package zapship adapts a [logship.Dispatcher] to zap, so code written
// against *zap.Logger ships through the same sinks.
//
//	logger := logship.MustNew(logship.WithConfig(cfg))
//	z := zapship.NewLogger(logger)
//	z.Info("started", zap.Int("port", 8080))
package zapship

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rivaas.dev/logship"
)

// Core is a [zapcore.Core] that dispatches every entry as a logship event.
// Fields become event metadata; a named logger adds a "logger" entry.
type Core struct {
	d      *logship.Dispatcher
	fields []zapcore.Field
}

// NewCore returns a Core feeding d.
func NewCore(d *logship.Dispatcher) *Core {
	return &Core{d: d}
}

// NewLogger returns a zap logger over l's dispatcher.
//
// Parameters:
//   - l: The logship logger whose sinks receive the entries
//   - opts: Regular zap options such as zap.AddCaller or zap.Fields
//
// Level checks use the dispatcher, so zap drops an entry only when no sink
// would accept it. Call Sync before exit to flush buffering sinks; it never
// reports transport failures, which go to diagnostics.
//
// Example:
//
//	z := zapship.NewLogger(logger, zap.Fields(zap.String("component", "billing")))
//	defer z.Sync()
//	z.Warn("retrying charge", zap.Int("attempt", 2))
func NewLogger(l *logship.Logger, opts ...zap.Option) *zap.Logger {
	return zap.New(NewCore(l.Dispatcher()), opts...)
}

// Enabled implements [zapcore.LevelEnabler].
func (c *Core) Enabled(l zapcore.Level) bool {
	return c.d.Enabled(FromZapLevel(l))
}

// With implements [zapcore.Core].
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &Core{d: c.d, fields: merged}
}

// Check implements [zapcore.Core].
func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements [zapcore.Core]. It never fails.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	if ent.LoggerName != "" {
		enc.Fields["logger"] = ent.LoggerName
	}
	if ent.Stack != "" {
		enc.Fields["stack"] = ent.Stack
	}

	var meta map[string]any
	if len(enc.Fields) > 0 {
		meta = enc.Fields
	}
	c.d.Dispatch(context.Background(), logship.Event{
		Level:    FromZapLevel(ent.Level),
		Message:  ent.Message,
		Metadata: meta,
	})
	return nil
}

// Sync flushes buffering sinks. It always returns nil; flush failures
// reach the dispatcher's diagnostics instead.
func (c *Core) Sync() error {
	_ = c.d.Flush(context.Background())
	return nil
}

// FromZapLevel converts a zap level to the closest logship level.
// DPanic and Panic map to error, so only zap's Fatal ships as fatal.
func FromZapLevel(l zapcore.Level) logship.Level {
	switch {
	case l >= zapcore.FatalLevel:
		return logship.LevelFatal
	case l >= zapcore.ErrorLevel:
		return logship.LevelError
	case l == zapcore.WarnLevel:
		return logship.LevelWarn
	case l == zapcore.InfoLevel:
		return logship.LevelInfo
	default:
		return logship.LevelDebug
	}
}
