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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// httpPayload is the request body posted to the beacon endpoint.
type httpPayload struct {
	Logs []json.RawMessage `json:"logs"`
}

// httpSink buffers wire-encoded events and posts them as
//
//	{"logs": [{"level", "message", "data", "timestamp"}, ...]}
//
// Events are encoded in Handle, so an unserializable event is dropped
// before it reaches the queue and never poisons a batch.
type httpSink struct {
	opts   HTTPOptions
	client *http.Client
	enr    enricher
	rep    *reporter
	batch  *Batcher[json.RawMessage]
}

func newHTTPSink(opts HTTPOptions, client *http.Client, enr enricher, rep *reporter) *httpSink {
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	s := &httpSink{opts: opts, client: client, enr: enr, rep: rep}
	s.batch = NewBatcher(s.send, rep.batchOptions(BatchOptions{
		Size:        opts.BufferSize,
		Interval:    opts.FlushInterval,
		HighWater:   opts.MaxEntries,
		SendTimeout: opts.Timeout,
		Retry:       opts.Retry,
	}))
	return s
}

func (s *httpSink) Handle(_ context.Context, e Event) error {
	e.Metadata = s.enr.metadata(e)
	entry, err := encodeWire(e)
	if err != nil {
		return newSinkError(s.rep.name, KindHTTP, "encode", ErrSerialization, err)
	}
	if err := s.batch.Enqueue(entry); err != nil {
		return newSinkError(s.rep.name, KindHTTP, "enqueue", err, nil)
	}
	return nil
}

func (s *httpSink) send(ctx context.Context, entries []json.RawMessage) error {
	body, err := json.Marshal(httpPayload{Logs: entries})
	if err != nil {
		return newSinkError(s.rep.name, KindHTTP, "flush", ErrSerialization, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return newSinkError(s.rep.name, KindHTTP, "flush", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return newSinkError(s.rep.name, KindHTTP, "flush", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newSinkError(s.rep.name, KindHTTP, "flush", ErrTransport,
			fmt.Errorf("unexpected status %s", resp.Status))
	}
	return nil
}

// Flush sends everything queued.
func (s *httpSink) Flush(ctx context.Context) error {
	return s.batch.Flush(ctx)
}

// Close stops the flush timer and sends what is left.
func (s *httpSink) Close(ctx context.Context) error {
	return s.batch.Close(ctx)
}
