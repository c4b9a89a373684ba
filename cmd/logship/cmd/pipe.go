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


package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"rivaas.dev/logship"
)

const (
	maxLineSize     = 1 << 20
	shutdownTimeout = 10 * time.Second
)

func (c *command) initPipeCmd() {
	cmd := &cobra.Command{
		Use:   "pipe",
		Short: "Ship lines read from standard input",
		Long: `Reads standard input line by line and dispatches every line as one event.
JSON object lines are decoded: "level" sets the level, "msg" or "message"
the text, and the remaining keys become metadata. Buffering sinks are
flushed when input ends or on SIGINT and SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lineLevel, err := logship.ParseLevel(c.config.GetString(optionNameLineLevel))
			if err != nil {
				return fmt.Errorf("%s: %w", optionNameLineLevel, err)
			}
			logger, err := c.newLogger(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			_, pipeErr := pipe(ctx, cmd.InOrStdin(), logger.Dispatcher(), lineLevel)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := logger.Shutdown(shutdownCtx); err != nil && pipeErr == nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return pipeErr
		},
	}
	cmd.Flags().String(optionNameLineLevel, "info", "level of lines that do not carry one")
	c.root.AddCommand(cmd)
}

// pipe dispatches the lines of r until it ends or ctx is done and returns
// the number of events dispatched.
func pipe(ctx context.Context, r io.Reader, d *logship.Dispatcher, lineLevel logship.Level) (int, error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scan:
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				break scan
			}
		}
		errc <- sc.Err()
		close(lines)
	}()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, nil
		case line, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil {
					return n, fmt.Errorf("read input: %w", err)
				}
				return n, nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			d.Dispatch(ctx, parseLine(line, lineLevel))
			n++
		}
	}
}

// parseLine turns one input line into an event. Lines that are not JSON
// objects are shipped verbatim at lineLevel.
func parseLine(line string, lineLevel logship.Level) logship.Event {
	e := logship.Event{Level: lineLevel, Message: line}
	if !strings.HasPrefix(strings.TrimSpace(line), "{") {
		return e
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return e
	}

	if raw, ok := fields["level"]; ok {
		if lvl, err := logship.ParseLevel(cast.ToString(raw)); err == nil {
			e.Level = lvl
			delete(fields, "level")
		}
	}
	found := false
	for _, key := range []string{"msg", "message"} {
		if s, ok := fields[key].(string); ok {
			e.Message = s
			delete(fields, key)
			found = true
			break
		}
	}
	if found && len(fields) > 0 {
		e.Metadata = fields
	}
	return e
}
