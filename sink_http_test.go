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

//go:build !integration

package logship

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// beaconServer records every payload posted to it.
type beaconServer struct {
	*httptest.Server

	mu       sync.Mutex
	payloads [][]wireEvent
	headers  []http.Header
	failures atomic.Int32 // upcoming requests answered with 503
}

func newBeaconServer(t *testing.T) *beaconServer {
	t.Helper()
	bs := &beaconServer{}
	bs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bs.failures.Add(-1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body struct {
			Logs []wireEvent `json:"logs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		bs.mu.Lock()
		bs.payloads = append(bs.payloads, body.Logs)
		bs.headers = append(bs.headers, r.Header.Clone())
		bs.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(bs.Close)
	return bs
}

func (bs *beaconServer) received() [][]wireEvent {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return append([][]wireEvent(nil), bs.payloads...)
}

func httpSinkFor(t *testing.T, bs *beaconServer, rec *DiagnosticsRecorder, cfg map[string]any) Sink {
	t.Helper()
	env, _ := testEnv(rec)
	env.httpClient = bs.Client()
	cfg["endpoint"] = bs.URL + "/ingest"
	sink, err := buildSink("beacon", SinkConfig{Type: KindHTTP, Config: cfg}, env)
	require.NoError(t, err)
	return sink
}

func TestHTTPSink_FlushesWhenBufferFills(t *testing.T) {
	t.Parallel()

	bs := newBeaconServer(t)
	sink := httpSinkFor(t, bs, &DiagnosticsRecorder{}, map[string]any{
		"bufferSize":    2,
		"flushInterval": "1h",
	})

	ctx := context.Background()
	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, sink.Handle(ctx, Event{Level: LevelInfo, Message: msg, Time: testTime}))
	}

	require.Eventually(t, func() bool { return len(bs.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	first := bs.received()[0]
	require.Len(t, first, 2)
	assert.Equal(t, "one", first[0].Message)
	assert.Equal(t, "two", first[1].Message)
	assert.Equal(t, "2024-05-01T12:30:45.123Z", first[0].Timestamp)

	require.NoError(t, sink.Close(ctx))
	got := bs.received()
	require.Len(t, got, 2)
	require.Len(t, got[1], 1)
	assert.Equal(t, "three", got[1][0].Message)
}

func TestHTTPSink_TimerFlush(t *testing.T) {
	t.Parallel()

	bs := newBeaconServer(t)
	sink := httpSinkFor(t, bs, &DiagnosticsRecorder{}, map[string]any{
		"bufferSize":    100,
		"flushInterval": 20, // milliseconds
	})
	t.Cleanup(func() { _ = sink.Close(context.Background()) })

	require.NoError(t, sink.Handle(context.Background(), Event{Level: LevelWarn, Message: "tick"}))
	require.Eventually(t, func() bool { return len(bs.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHTTPSink_HeadersAndPayload(t *testing.T) {
	t.Parallel()

	bs := newBeaconServer(t)
	sink := httpSinkFor(t, bs, &DiagnosticsRecorder{}, map[string]any{
		"headers": map[string]any{"X-Api-Key": "k-123"},
	})

	require.NoError(t, sink.Handle(context.Background(), Event{
		Level: LevelError, Message: "checkout failed", Time: testTime,
		Metadata: map[string]any{"order": "A-9"},
	}))
	require.NoError(t, sink.Close(context.Background()))

	bs.mu.Lock()
	defer bs.mu.Unlock()
	require.Len(t, bs.headers, 1)
	assert.Equal(t, "k-123", bs.headers[0].Get("X-Api-Key"))
	assert.Equal(t, "application/json", bs.headers[0].Get("Content-Type"))
	assert.Equal(t, wireEvent{
		Level:     "error",
		Message:   "checkout failed",
		Data:      map[string]any{"order": "A-9"},
		Timestamp: "2024-05-01T12:30:45.123Z",
	}, bs.payloads[0][0])
}

func TestHTTPSink_RetriesFailedBatchOnce(t *testing.T) {
	t.Parallel()

	bs := newBeaconServer(t)
	bs.failures.Store(1)
	rec := &DiagnosticsRecorder{}
	sink := httpSinkFor(t, bs, rec, map[string]any{"bufferSize": 100, "flushInterval": -1})
	flusher := sink.(Flusher)

	ctx := context.Background()
	require.NoError(t, sink.Handle(ctx, Event{Level: LevelError, Message: "first"}))
	require.Error(t, flusher.Flush(ctx))
	assert.Empty(t, bs.received())

	require.NoError(t, sink.Handle(ctx, Event{Level: LevelError, Message: "second"}))
	require.NoError(t, flusher.Flush(ctx))
	require.NoError(t, sink.Close(ctx))

	got := bs.received()
	require.Len(t, got, 1)
	require.Len(t, got[0], 2)
	assert.Equal(t, "first", got[0][0].Message)
	assert.Equal(t, "second", got[0][1].Message)

	diags := rec.All()
	require.Len(t, diags, 1)
	assert.Equal(t, "flush", diags[0].Op)
	require.ErrorIs(t, diags[0].Err, ErrTransport)
}

func TestHTTPSink_UnreachableEndpointNeverSurfaces(t *testing.T) {
	t.Parallel()

	rec := &DiagnosticsRecorder{}
	env, _ := testEnv(rec)
	sink, err := buildSink("beacon", SinkConfig{Type: KindHTTP, Config: map[string]any{
		"endpoint":   "http://127.0.0.1:1/ingest",
		"bufferSize": 1,
		"timeout":    "200ms",
	}}, env)
	require.NoError(t, err)

	require.NoError(t, sink.Handle(context.Background(), Event{Level: LevelInfo, Message: "lost"}))
	require.Eventually(t, func() bool { return rec.Len() > 0 }, 2*time.Second, 10*time.Millisecond)
	_ = sink.Close(context.Background())

	for _, d := range rec.All() {
		require.ErrorIs(t, d.Err, ErrTransport)
	}
}

func TestHTTPSink_SerializationFailureDropsOnlyThatEvent(t *testing.T) {
	t.Parallel()

	bs := newBeaconServer(t)
	sink := httpSinkFor(t, bs, &DiagnosticsRecorder{}, map[string]any{})

	ctx := context.Background()
	err := sink.Handle(ctx, Event{Level: LevelInfo, Message: "bad", Metadata: map[string]any{"f": func() {}}})
	require.ErrorIs(t, err, ErrSerialization)
	require.NoError(t, sink.Handle(ctx, Event{Level: LevelInfo, Message: "good"}))
	require.NoError(t, sink.Close(ctx))

	got := bs.received()
	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	assert.Equal(t, "good", got[0][0].Message)
}
