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

// Package logrusship provides a logrus hook that forwards entries to a
// [logship.Dispatcher].
package logrusship

import (
	"context"

	"github.com/sirupsen/logrus"

	"rivaas.dev/logship"
)

// Hook forwards logrus entries to a dispatcher. Entry fields become event
// metadata; error values are stored as their message.
type Hook struct {
	d *logship.Dispatcher
}

// NewHook returns a Hook feeding d.
func NewHook(d *logship.Dispatcher) *Hook {
	return &Hook{d: d}
}

// Install adds a hook over l's dispatcher to target. When discard is true
// target's own output is silenced so entries are only shipped.
func Install(target *logrus.Logger, l *logship.Logger, discard bool) *Hook {
	h := NewHook(l.Dispatcher())
	target.AddHook(h)
	if discard {
		target.SetOutput(discardWriter{})
	}
	return h
}

// Levels implements [logrus.Hook]. Filtering happens per sink.
func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements [logrus.Hook]. It never fails.
func (h *Hook) Fire(e *logrus.Entry) error {
	level := FromLogrusLevel(e.Level)
	if !h.d.Enabled(level) {
		return nil
	}

	var meta map[string]any
	if len(e.Data) > 0 {
		meta = make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			meta[k] = v
		}
	}

	ctx := e.Context
	if ctx == nil {
		ctx = context.Background()
	}
	h.d.Dispatch(ctx, logship.Event{Level: level, Message: e.Message, Metadata: meta})
	return nil
}

// FromLogrusLevel converts a logrus level. Trace maps to debug and panic
// to fatal.
func FromLogrusLevel(l logrus.Level) logship.Level {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel:
		return logship.LevelFatal
	case logrus.ErrorLevel:
		return logship.LevelError
	case logrus.WarnLevel:
		return logship.LevelWarn
	case logrus.InfoLevel:
		return logship.LevelInfo
	default:
		return logship.LevelDebug
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
