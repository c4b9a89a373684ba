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
	"fmt"
	"log/slog"
	"strings"
)

// Level is the severity of an [Event]. Levels are totally ordered and the
// zero value is [LevelDebug], the most permissive minimum.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelFatal is only produced in the server runtime.
	LevelFatal
)

// slogLevelFatal is the slog level used to carry fatal records through
// an [slog.Logger].
const slogLevelFatal = slog.LevelError + 4

var levelNames = [...]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelFatal: "fatal",
}

// String returns the lower-case level name.
func (l Level) String() string {
	if l < LevelDebug || l > LevelFatal {
		return fmt.Sprintf("level(%d)", int8(l))
	}
	return levelNames[l]
}

// Upper returns the upper-case level name used by line-oriented sinks.
func (l Level) Upper() string {
	return strings.ToUpper(l.String())
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= LevelDebug && l <= LevelFatal
}

// Slog returns the equivalent [slog.Level].
func (l Level) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slogLevelFatal
	}
}

// LevelFromSlog maps an [slog.Level] onto the closest Level at or below it.
func LevelFromSlog(l slog.Level) Level {
	switch {
	case l >= slogLevelFatal:
		return LevelFatal
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarn
	case l >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// ParseLevel parses a level name. "trace" is accepted as an alias of debug
// and "warning" as an alias of warn.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return LevelDebug, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// MarshalText implements [encoding.TextMarshaler].
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, int8(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ShouldEmit reports whether an event at level event passes a sink whose
// minimum level is min.
func ShouldEmit(event, min Level) bool {
	return event >= min
}
