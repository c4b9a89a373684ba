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
	"runtime"
	"strings"
	"time"
)

const maxStackFrames = 10

// LogError ships err at error level under the "error" key, followed by
// extra key/value pairs.
//
//	if err := repo.Save(order); err != nil {
//		logger.LogError(err, "order not saved", "order_id", order.ID)
//	}
func (l *Logger) LogError(err error, msg string, extra ...any) {
	l.log(bgCtx, LevelError, msg, withError(err, extra)...)
}

// LogDuration ships an info event with the time elapsed since start, as
// duration_ms and as a duration string.
func (l *Logger) LogDuration(msg string, start time.Time, extra ...any) {
	d := time.Since(start)
	args := make([]any, 0, 4+len(extra))
	args = append(args, "duration_ms", d.Milliseconds(), "duration", d.String())
	l.log(bgCtx, LevelInfo, msg, append(args, extra...)...)
}

// ErrorWithStack is [Logger.LogError] with an optional "stack" entry
// holding the caller's stack.
func (l *Logger) ErrorWithStack(msg string, err error, includeStack bool, extra ...any) {
	args := withError(err, extra)
	if includeStack {
		args = append(args, "stack", callerStack(3))
	}
	l.log(bgCtx, LevelError, msg, args...)
}

func withError(err error, extra []any) []any {
	args := make([]any, 0, 2+len(extra))
	if err != nil {
		args = append(args, "error", err.Error())
	}
	return append(args, extra...)
}

// callerStack formats up to maxStackFrames frames, skipping the first skip
// (runtime.Callers counts itself as 0).
func callerStack(skip int) string {
	pcs := make([]uintptr, maxStackFrames)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(skip, pcs)])

	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			return b.String()
		}
	}
}
