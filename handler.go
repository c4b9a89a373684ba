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
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Semantic convention field names for trace correlation.
const (
	fieldTraceID = "trace_id"
	fieldSpanID  = "span_id"
)

const redacted = "***REDACTED***"

// ReplaceAttrFunc rewrites or drops (by returning the zero Attr) an
// attribute before it becomes event metadata.
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// Handler is an [slog.Handler] that turns every record into one [Event]
// and dispatches it. Attributes become metadata with later keys winning,
// and groups become nested maps. Sensitive keys are redacted, and the
// trace and span ids of a valid OpenTelemetry span in the context are
// added as trace_id and span_id.
//
// Handle always returns nil: sink failures are reported through
// diagnostics only.
type Handler struct {
	d       *Dispatcher
	replace ReplaceAttrFunc
	attrs   []slog.Attr // pre-bound, already wrapped in their groups
	groups  []string
}

// NewHandler returns a Handler dispatching to d. replace may be nil.
func NewHandler(d *Dispatcher, replace ReplaceAttrFunc) *Handler {
	return &Handler{d: d, replace: replace}
}

// Enabled reports whether any sink accepts records at level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.d.Enabled(LevelFromSlog(level))
}

// Handle converts r into an Event and dispatches it.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	meta := make(map[string]any, len(h.attrs)+r.NumAttrs()+2)
	for _, a := range h.attrs {
		h.addAttr(meta, nil, a)
	}

	target := meta
	for _, g := range h.groups {
		sub, ok := target[g].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			target[g] = sub
		}
		target = sub
	}
	r.Attrs(func(a slog.Attr) bool {
		h.addAttr(target, h.groups, a)
		return true
	})
	pruneEmpty(meta, h.groups)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		meta[fieldTraceID] = sc.TraceID().String()
		meta[fieldSpanID] = sc.SpanID().String()
	}
	if len(meta) == 0 {
		meta = nil
	}

	h.d.Dispatch(ctx, Event{
		Level:    LevelFromSlog(r.Level),
		Message:  r.Message,
		Metadata: meta,
	})
	return nil
}

// WithAttrs returns a new handler with additional attributes.
// Implements [slog.Handler.WithAttrs].
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	wrapped := attrs
	for i := len(h.groups) - 1; i >= 0; i-- {
		wrapped = []slog.Attr{{Key: h.groups[i], Value: slog.GroupValue(wrapped...)}}
	}
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(wrapped))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, wrapped...)
	return &Handler{d: h.d, replace: h.replace, attrs: newAttrs, groups: h.groups}
}

// WithGroup returns a new handler with a group name.
// Implements [slog.Handler.WithGroup].
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups[len(h.groups)] = name
	return &Handler{d: h.d, replace: h.replace, attrs: h.attrs, groups: newGroups}
}

// addAttr stores a in m, descending into groups. Existing nested maps are
// merged rather than replaced.
func (h *Handler) addAttr(m map[string]any, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() != slog.KindGroup {
		a = h.sanitize(groups, a)
	}
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		ga := a.Value.Group()
		if len(ga) == 0 {
			return
		}
		if a.Key == "" {
			for _, sub := range ga {
				h.addAttr(m, groups, sub)
			}
			return
		}
		sub, ok := m[a.Key].(map[string]any)
		if !ok {
			sub = make(map[string]any, len(ga))
		}
		inner := append(groups[:len(groups):len(groups)], a.Key)
		for _, g := range ga {
			h.addAttr(sub, inner, g)
		}
		if len(sub) > 0 {
			m[a.Key] = sub
		}
		return
	}
	m[a.Key] = attrValue(a.Value)
}

// sanitize redacts sensitive keys, then applies the user replacer.
func (h *Handler) sanitize(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case "password", "token", "secret", "api_key", "authorization":
		a = slog.String(a.Key, redacted)
	}
	if h.replace != nil {
		a = h.replace(groups, a)
	}
	return a
}

// attrValue converts a resolved value to a JSON-friendly Go value.
func attrValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	}
	switch x := v.Any().(type) {
	case error:
		return x.Error()
	default:
		return x
	}
}

// pruneEmpty removes the open group maps when the record added nothing.
func pruneEmpty(m map[string]any, groups []string) {
	if len(groups) == 0 {
		return
	}
	sub, ok := m[groups[0]].(map[string]any)
	if !ok {
		return
	}
	pruneEmpty(sub, groups[1:])
	if len(sub) == 0 {
		delete(m, groups[0])
	}
}
