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

package cmd_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/logship"
	"rivaas.dev/logship/cmd/logship/cmd"
)

// run executes the command with args and stdin, returning the combined
// output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	err := cmd.NewCommand(
		cmd.WithArgs(args...),
		cmd.WithInput(strings.NewReader(stdin)),
		cmd.WithOutput(&out),
		cmd.WithErrorOutput(&out),
	).Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := cmd.NewCommand(
		cmd.WithArgs("version"),
		cmd.WithOutput(&out),
		cmd.WithVersion("1.4.2"),
	).Execute()
	require.NoError(t, err)
	assert.Equal(t, "1.4.2\n", out.String())
}

func TestValidateCmd(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "sinks.yaml", `
runtime: browser
sinks:
  - type: stdout
  - type: file
    level: warn
    config: {dir: /var/log/app, filename: app.log}
`)

	out, err := run(t, "", "validate", "--config", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "stdout")
	assert.Contains(t, lines[1], "info (inherited)")
	assert.Contains(t, lines[1], "active")
	assert.Contains(t, lines[2], "warn")
	assert.Contains(t, lines[2], "inert on browser")
	assert.Equal(t, "configuration is valid: 2 sinks, level info, runtime browser", lines[3])
}

func TestValidateCmd_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   func(t *testing.T) []string
		target error
	}{
		{
			name:   "no config file",
			args:   func(*testing.T) []string { return []string{"validate"} },
			target: cmd.ErrNoConfig,
		},
		{
			name: "unknown sink type",
			args: func(t *testing.T) []string {
				return []string{"validate", "--config", writeConfig(t, "bad.yaml", "sinks:\n  - type: pigeon\n")}
			},
			target: logship.ErrUnknownSinkType,
		},
		{
			name: "invalid level flag",
			args: func(t *testing.T) []string {
				return []string{"validate", "--level", "loud", "--config", writeConfig(t, "ok.toml", "[[sinks]]\ntype = \"stdout\"\n")}
			},
			target: logship.ErrInvalidLevel,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := run(t, "", tt.args(t)...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestValidateCmd_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "validate", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	var cfgErr *logship.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "load", cfgErr.Op)
}

func TestPipeCmd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, "sinks.yaml", `
runtime: server
sinks:
  - type: stdout
  - type: file
    level: error
    config: {dir: `+dir+`, filename: piped.log}
`)

	stdin := "plain line\n\n" +
		`{"level":"error","msg":"db down","host":"db-1"}` + "\n" +
		`{"message":"cache cold"}` + "\n"

	out, err := run(t, stdin, "pipe", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "plain line")
	assert.Contains(t, out, "db down")
	assert.Contains(t, out, "host=db-1")
	assert.Contains(t, out, "cache cold")

	data, err := os.ReadFile(filepath.Join(dir, "piped.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[ERROR] db down")
	assert.Contains(t, lines[0], `"host":"db-1"`)
}

func TestPipeCmd_LineLevel(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "sinks.json", `{"level": "warn", "runtime": "server", "sinks": [{"type": "stdout"}]}`)

	out, err := run(t, "quiet\n", "pipe", "--config", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "quiet")

	out, err = run(t, "loud\n", "pipe", "--config", path, "--line-level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "loud")
}

//nolint:paralleltest // Uses t.Setenv
func TestPipeCmd_LevelFromEnvironment(t *testing.T) {
	t.Setenv("LOGSHIP_LEVEL", "error")
	t.Setenv("LOGSHIP_RUNTIME", "server")

	out, err := run(t, "routine\n"+`{"level":"error","msg":"broken"}`+"\n", "pipe")
	require.NoError(t, err)
	assert.NotContains(t, out, "routine")
	assert.Contains(t, out, "broken")
}

func TestPipeCmd_InvalidLineLevel(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "pipe", "--line-level", "loud")
	require.Error(t, err)
	assert.ErrorIs(t, err, logship.ErrInvalidLevel)
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want logship.Event
	}{
		{
			name: "plain text",
			line: "hello",
			want: logship.Event{Level: logship.LevelInfo, Message: "hello"},
		},
		{
			name: "json with level and metadata",
			line: `{"level":"WARNING","msg":"slow","ms":830}`,
			want: logship.Event{Level: logship.LevelWarn, Message: "slow", Metadata: map[string]any{"ms": float64(830)}},
		},
		{
			name: "message key",
			line: `{"message":"ready"}`,
			want: logship.Event{Level: logship.LevelInfo, Message: "ready"},
		},
		{
			name: "unknown level stays as metadata",
			line: `{"level":"loud","msg":"x"}`,
			want: logship.Event{Level: logship.LevelInfo, Message: "x", Metadata: map[string]any{"level": "loud"}},
		},
		{
			name: "json without message is shipped verbatim",
			line: `{"ms":1}`,
			want: logship.Event{Level: logship.LevelInfo, Message: `{"ms":1}`},
		},
		{
			name: "broken json",
			line: `{"msg":`,
			want: logship.Event{Level: logship.LevelInfo, Message: `{"msg":`},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, cmd.ParseLine(tt.line, logship.LevelInfo))
		})
	}
}
