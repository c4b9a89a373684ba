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
	"log/slog"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldEmit(t *testing.T) {
	t.Parallel()

	levels := []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal}
	for _, min := range levels {
		for _, event := range levels {
			assert.Equal(t, event >= min, ShouldEmit(event, min),
				"event=%s min=%s", event, min)
		}
	}

	assert.True(t, ShouldEmit(LevelError, LevelWarn))
	assert.False(t, ShouldEmit(LevelInfo, LevelWarn))
	assert.True(t, ShouldEmit(LevelDebug, LevelDebug))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: LevelDebug},
		{in: "TRACE", want: LevelDebug},
		{in: " info ", want: LevelInfo},
		{in: "warning", want: LevelWarn},
		{in: "Error", want: LevelError},
		{in: "fatal", want: LevelFatal},
		{in: "verbose", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_TextRoundTrip(t *testing.T) {
	t.Parallel()

	var l Level
	require.NoError(t, l.UnmarshalText([]byte("warn")))
	assert.Equal(t, LevelWarn, l)

	b, err := l.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "warn", string(b))

	_, err = Level(42).MarshalText()
	require.ErrorIs(t, err, ErrInvalidLevel)
	assert.Equal(t, "level(42)", Level(42).String())
	assert.Equal(t, "ERROR", LevelError.Upper())
}

func TestLevel_SlogMapping(t *testing.T) {
	t.Parallel()

	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal} {
		assert.Equal(t, l, LevelFromSlog(l.Slog()), l.String())
	}
	assert.Equal(t, LevelInfo, LevelFromSlog(slog.LevelInfo+2))
	assert.Equal(t, LevelDebug, LevelFromSlog(slog.LevelDebug-4))
}

func TestPackIDGenerator(t *testing.T) {
	t.Parallel()

	g := NewPackIDGenerator()
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{16}$`), g.Prefix())

	assert.Equal(t, g.Prefix()+"-1", g.Next())
	assert.Equal(t, g.Prefix()+"-2", g.Next())

	other := NewPackIDGenerator()
	assert.NotEqual(t, g.Prefix(), other.Prefix())
}

func TestPackIDGenerator_Concurrent(t *testing.T) {
	t.Parallel()

	g := NewPackIDGenerator()
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for iter := 0; iter < 8; iter++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for iter := 0; iter < 100; iter++ {
				id := g.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}

func TestRuntime_Supports(t *testing.T) {
	t.Parallel()

	assert.True(t, RuntimeServer.Supports(KindFile))
	assert.True(t, RuntimeServer.Supports(KindSLS))
	assert.False(t, RuntimeServer.Supports(KindLocalStorage))
	assert.True(t, RuntimeBrowser.Supports(KindLocalStorage))
	assert.True(t, RuntimeBrowser.Supports(KindHTTP))
	assert.False(t, RuntimeBrowser.Supports(KindFile))
	assert.False(t, RuntimeBrowser.Supports(KindElasticsearch))
	assert.False(t, RuntimeServer.Supports(KindCustom))

	rt, err := ParseRuntime("Browser")
	require.NoError(t, err)
	assert.Equal(t, RuntimeBrowser, rt)
	_, err = ParseRuntime("edge")
	require.Error(t, err)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, err := ParseKind("console")
	require.NoError(t, err)
	assert.Equal(t, KindStdout, k)

	k, err = ParseKind("SLS")
	require.NoError(t, err)
	assert.Equal(t, KindSLS, k)

	_, err = ParseKind("kafka")
	require.ErrorIs(t, err, ErrUnknownSinkType)
	_, err = ParseKind("custom")
	require.ErrorIs(t, err, ErrUnknownSinkType)
}
