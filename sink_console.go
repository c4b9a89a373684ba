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
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorWhite  = "\033[97m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// consoleMethod names the console function an event is written with.
type consoleMethod string

const (
	consoleLog   consoleMethod = "log"
	consoleInfo  consoleMethod = "info"
	consoleWarn  consoleMethod = "warn"
	consoleError consoleMethod = "error"
)

// methodFor maps a level onto a console method.
func methodFor(l Level) consoleMethod {
	switch l {
	case LevelDebug:
		return consoleLog
	case LevelInfo:
		return consoleInfo
	case LevelWarn:
		return consoleWarn
	default:
		return consoleError
	}
}

// consoleBackend writes one formatted line with the given method.
// The browser build talks to the page console; every other build writes
// to process streams.
type consoleBackend interface {
	write(m consoleMethod, line string)
}

// streamConsole sends log and info to out, warn and error to errOut.
type streamConsole struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

func newStreamConsole(out, errOut io.Writer) *streamConsole {
	return &streamConsole{out: out, errOut: errOut}
}

func (c *streamConsole) write(m consoleMethod, line string) {
	w := c.out
	if m == consoleWarn || m == consoleError {
		w = c.errOut
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(w, line+"\n")
}

// consoleBuilderPool provides reusable [strings.Builder] instances
// for formatting console lines.
var consoleBuilderPool = sync.Pool{
	New: func() any {
		return &strings.Builder{}
	},
}

// consoleSink writes human-readable lines, or wire JSON when configured.
type consoleSink struct {
	opts    ConsoleOptions
	backend consoleBackend
	enr     enricher
}

func newConsoleSink(opts ConsoleOptions, env *sinkEnv, enr enricher) *consoleSink {
	backend := env.console
	if backend == nil {
		backend = newStreamConsole(env.stdout, env.stderr)
	}
	return &consoleSink{opts: opts, backend: backend, enr: enr}
}

func (s *consoleSink) Handle(_ context.Context, e Event) error {
	meta := s.enr.metadata(e)
	if s.opts.JSON {
		e.Metadata = meta
		line, err := encodeWire(e)
		if err != nil {
			return err
		}
		s.backend.write(methodFor(e.Level), string(line))
		return nil
	}
	s.backend.write(methodFor(e.Level), s.format(e, meta))
	return nil
}

func (s *consoleSink) Close(context.Context) error { return nil }

// format renders "15:04:05.000 LEVEL message key=value ...", with colors
// when enabled. Keys are sorted so output is stable.
func (s *consoleSink) format(e Event, meta map[string]any) string {
	b := consoleBuilderPool.Get().(*strings.Builder)
	b.Reset()
	defer consoleBuilderPool.Put(b)

	s.paint(b, colorDim, e.Time.Format("15:04:05.000"))
	b.WriteString(" ")
	s.paint(b, levelColor(e.Level)+colorBold, fmt.Sprintf("%-5s", e.Level.Upper()))
	b.WriteString(" ")
	s.paint(b, colorWhite, e.Message)

	if len(meta) > 0 {
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			b.WriteString(" ")
			b.WriteString(k)
			b.WriteString("=")
			appendValue(b, meta[k])
		}
	}
	return b.String()
}

func (s *consoleSink) paint(b *strings.Builder, color, text string) {
	if !s.opts.Color {
		b.WriteString(text)
		return
	}
	b.WriteString(color)
	b.WriteString(text)
	b.WriteString(colorReset)
}

// levelColor returns the ANSI color code for a level.
func levelColor(l Level) string {
	switch {
	case l >= LevelError:
		return colorRed
	case l >= LevelWarn:
		return colorYellow
	case l >= LevelInfo:
		return colorGreen
	default:
		return colorBlue
	}
}

// appendValue formats a metadata value.
//
// fmt.Sprint is used as a catch-all for types without specialized formatting.
func appendValue(b *strings.Builder, v any) {
	switch v := v.(type) {
	case string:
		b.WriteString(v)
	case int:
		b.WriteString(strconv.Itoa(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(v, 10))
	case bool:
		b.WriteString(strconv.FormatBool(v))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	case time.Duration:
		b.WriteString(v.String())
	case time.Time:
		b.WriteString(v.Format(time.RFC3339))
	case error:
		b.WriteString(v.Error())
	case nil:
		b.WriteString("<nil>")
	default:
		b.WriteString(fmt.Sprint(v))
	}
}
