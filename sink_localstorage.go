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
	"encoding/json"
	"sync"
)

// localStorageSink keeps the most recent MaxEntries wire-encoded events as
// a JSON array under one storage key. Older entries are dropped first.
type localStorageSink struct {
	opts    LocalStorageOptions
	storage Storage
	enr     enricher
	rep     *reporter

	mu sync.Mutex
}

func newLocalStorageSink(opts LocalStorageOptions, storage Storage, enr enricher, rep *reporter) *localStorageSink {
	if storage == nil {
		storage = defaultStorage()
	}
	return &localStorageSink{opts: opts, storage: storage, enr: enr, rep: rep}
}

func (s *localStorageSink) Handle(_ context.Context, e Event) error {
	e.Metadata = s.enr.metadata(e)
	entry, err := encodeWire(e)
	if err != nil {
		return newSinkError(s.rep.name, KindLocalStorage, "encode", ErrSerialization, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	entries = append(entries, entry)
	if over := len(entries) - s.opts.MaxEntries; s.opts.MaxEntries > 0 && over > 0 {
		entries = entries[over:]
		if s.rep.metrics != nil {
			s.rep.metrics.dropped(s.rep.name, reasonOverflow, over)
		}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return newSinkError(s.rep.name, KindLocalStorage, "write", ErrSerialization, err)
	}
	if err := s.storage.SetItem(s.opts.Key, string(data)); err != nil {
		return newSinkError(s.rep.name, KindLocalStorage, "write", ErrTransport, err)
	}
	return nil
}

// load returns the stored entries. A missing or corrupt value starts a
// fresh list.
func (s *localStorageSink) load() []json.RawMessage {
	raw, ok, err := s.storage.GetItem(s.opts.Key)
	if err != nil || !ok || raw == "" {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	return entries
}

// Entries returns the stored entries, oldest first.
func (s *localStorageSink) Entries() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *localStorageSink) Close(context.Context) error { return nil }
