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
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"
)

// packIDTag is the log group tag carrying the correlation id.
const packIDTag = "__pack_id__"

// Content is one key/value pair of a [Record] or a [LogGroup] tag.
type Content struct {
	Key   string
	Value string
}

// Record is one pre-formatted entry in a [LogGroup].
type Record struct {
	Time     time.Time
	Contents []Content
}

// Get returns the value stored under key.
func (r Record) Get(key string) (string, bool) {
	for _, c := range r.Contents {
		if c.Key == key {
			return c.Value, true
		}
	}
	return "", false
}

// LogGroup is the unit written to a [Collector]: one flushed batch of
// records sharing topic, source and tags.
type LogGroup struct {
	Topic   string
	Source  string
	Tags    []Content
	Records []Record
}

// PackID returns the group's correlation tag, if any.
func (g *LogGroup) PackID() string {
	for _, t := range g.Tags {
		if t.Key == packIDTag {
			return t.Value
		}
	}
	return ""
}

// Collector is a remote log store's batch write API.
type Collector interface {
	Store(ctx context.Context, group *LogGroup) error
	Close() error
}

// cloudOptions is the backend-neutral part of the collector sink options.
type cloudOptions struct {
	AppName         string
	Topic           string
	Source          string
	BufferSize      int
	FlushInterval   time.Duration
	MaxEntries      int
	MaxMessageBytes int
	Timeout         time.Duration
}

// cloudEntry holds the records built from one event.
type cloudEntry struct {
	packID  string
	records []Record
}

// cloudSink formats every event into one or more records, tags them with
// host metadata and ships them through a [Collector] in batches. Records
// are built in Handle so an unserializable event is dropped on its own.
// Failed writes are not retried beyond what the collector itself does.
type cloudSink struct {
	col   Collector
	opts  cloudOptions
	enr   enricher
	rep   *reporter
	batch *Batcher[cloudEntry]

	closeOnce sync.Once
	closeErr  error
}

func newCloudSink(col Collector, opts cloudOptions, fields []Field, host hostInfo, rep *reporter) *cloudSink {
	if opts.Source == "" {
		opts.Source = host.IP
	}
	s := &cloudSink{
		col:  col,
		opts: opts,
		enr:  enricher{fields: fields, host: host},
		rep:  rep,
	}
	s.batch = NewBatcher(s.send, rep.batchOptions(BatchOptions{
		Size:        opts.BufferSize,
		Interval:    opts.FlushInterval,
		HighWater:   opts.MaxEntries,
		SendTimeout: opts.Timeout,
	}))
	return s
}

func (s *cloudSink) Handle(_ context.Context, e Event) error {
	records, err := s.records(e)
	if err != nil {
		return newSinkError(s.rep.name, s.rep.kind, "encode", ErrSerialization, err)
	}
	if err := s.batch.Enqueue(cloudEntry{packID: e.PackID, records: records}); err != nil {
		return newSinkError(s.rep.name, s.rep.kind, "enqueue", err, nil)
	}
	return nil
}

// records builds the event's records. Messages longer than
// MaxMessageBytes are split on rune boundaries into consecutive records
// sharing every other content, marked "chunk" = "i/n".
func (s *cloudSink) records(e Event) ([]Record, error) {
	base := make([]Content, 0, 8+len(e.Metadata))
	base = append(base,
		Content{Key: "level", Value: e.Level.String()},
		Content{Key: "timestamp", Value: e.Timestamp()},
	)
	if s.opts.AppName != "" {
		base = append(base, Content{Key: "app", Value: s.opts.AppName})
	}
	if _, ok := e.Metadata[metaPackID]; !ok && e.PackID != "" {
		base = append(base, Content{Key: metaPackID, Value: e.PackID})
	}
	s.enr.apply(e, func(k, v string) {
		if _, ok := e.Metadata[k]; ok {
			return
		}
		base = append(base, Content{Key: k, Value: v})
	})

	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v, err := contentValue(e.Metadata[k])
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		base = append(base, Content{Key: k, Value: v})
	}

	chunks := splitMessage(e.Message, s.opts.MaxMessageBytes)
	out := make([]Record, len(chunks))
	for i, chunk := range chunks {
		contents := make([]Content, 0, len(base)+2)
		contents = append(contents, Content{Key: "message", Value: chunk})
		if len(chunks) > 1 {
			contents = append(contents, Content{Key: "chunk", Value: strconv.Itoa(i+1) + "/" + strconv.Itoa(len(chunks))})
		}
		contents = append(contents, base...)
		out[i] = Record{Time: e.Time, Contents: contents}
	}
	return out, nil
}

// contentValue renders a metadata value as a record string.
func contentValue(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case error:
		return v.Error(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// splitMessage cuts msg into pieces of at most limit bytes without
// splitting a UTF-8 sequence. limit <= 0 disables splitting.
func splitMessage(msg string, limit int) []string {
	if limit <= 0 || len(msg) <= limit {
		return []string{msg}
	}
	var out []string
	for len(msg) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		if cut == 0 {
			_, size := utf8.DecodeRuneInString(msg)
			cut = size
		}
		out = append(out, msg[:cut])
		msg = msg[cut:]
	}
	if msg != "" {
		out = append(out, msg)
	}
	return out
}

// send stores the batch as one log group. The group is tagged with the
// pack id of its first event; every record also carries its own.
func (s *cloudSink) send(ctx context.Context, entries []cloudEntry) error {
	if len(entries) == 0 {
		return nil
	}
	group := &LogGroup{Topic: s.opts.Topic, Source: s.opts.Source}
	if id := entries[0].packID; id != "" {
		group.Tags = []Content{{Key: packIDTag, Value: id}}
	}
	for _, e := range entries {
		group.Records = append(group.Records, e.records...)
	}
	if err := s.col.Store(ctx, group); err != nil {
		return newSinkError(s.rep.name, s.rep.kind, "flush", ErrTransport, err)
	}
	return nil
}

// Flush sends everything queued.
func (s *cloudSink) Flush(ctx context.Context) error {
	return s.batch.Flush(ctx)
}

// Close drains the queue and closes the collector.
func (s *cloudSink) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.batch.Close(ctx)
		if err := s.col.Close(); err != nil && s.closeErr == nil {
			s.closeErr = newSinkError(s.rep.name, s.rep.kind, "close", ErrTransport, err)
		}
	})
	return s.closeErr
}
