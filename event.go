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
	"encoding/json"
	"time"
)

// Metadata key under which a caller may supply its own correlation id.
const metaPackID = "pack_id"

// timestampLayout is ISO-8601 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Event is one emitted log call. It is created once per call and shared by
// every sink it is dispatched to; sinks must treat Metadata as read-only.
type Event struct {
	Level    Level
	Message  string
	Metadata map[string]any
	// Time is assigned by the Dispatcher, not at the call site.
	Time time.Time
	// PackID groups a burst of related events. It is taken from the
	// "pack_id" metadata key when present and generated otherwise.
	PackID string
}

// Timestamp returns Time formatted as ISO-8601 in UTC with milliseconds.
func (e Event) Timestamp() string {
	return e.Time.UTC().Format(timestampLayout)
}

// wireEvent is the JSON shape shipped to HTTP endpoints and browser storage.
type wireEvent struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// encodeWire serializes e as a wire entry. It fails with ErrSerialization
// when the metadata holds values encoding/json cannot represent.
func encodeWire(e Event) (json.RawMessage, error) {
	b, err := json.Marshal(wireEvent{
		Level:     e.Level.String(),
		Message:   e.Message,
		Data:      e.Metadata,
		Timestamp: e.Timestamp(),
	})
	if err != nil {
		return nil, &serializationError{err: err}
	}
	return b, nil
}

type serializationError struct{ err error }

func (e *serializationError) Error() string { return ErrSerialization.Error() + ": " + e.err.Error() }
func (e *serializationError) Unwrap() []error {
	return []error{ErrSerialization, e.err}
}
