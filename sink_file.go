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
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"
)

// fileSink appends one line per event to Dir/Filename:
//
//	<timestamp> [<LEVEL>] <message> <json-metadata-if-any>
//
// The directory is created on first write. With MaxSize set the file is
// rotated by lumberjack on the OS filesystem; otherwise it is opened in
// append mode on the configured [afero.Fs].
//
// Thread-safe: Safe to use concurrently by multiple goroutines.
type fileSink struct {
	opts FileOptions
	fs   afero.Fs
	enr  enricher
	rep  *reporter

	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

func newFileSink(opts FileOptions, fs afero.Fs, enr enricher, rep *reporter) *fileSink {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &fileSink{opts: opts, fs: fs, enr: enr, rep: rep}
}

// Path returns the file the sink appends to.
func (s *fileSink) Path() string {
	return filepath.Join(s.opts.Dir, s.opts.Filename)
}

func (s *fileSink) Handle(_ context.Context, e Event) error {
	line, err := s.formatLine(e)
	if err != nil {
		return newSinkError(s.rep.name, KindFile, "format", ErrSerialization, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newSinkError(s.rep.name, KindFile, "write", ErrSinkClosed, nil)
	}
	if s.w == nil {
		w, err := s.open()
		if err != nil {
			return newSinkError(s.rep.name, KindFile, "open", ErrTransport, err)
		}
		s.w = w
	}
	if _, err := io.WriteString(s.w, line); err != nil {
		// Reopen on the next event; the failed line is not retried.
		_ = s.w.Close()
		s.w = nil
		return newSinkError(s.rep.name, KindFile, "write", ErrTransport, err)
	}
	return nil
}

func (s *fileSink) open() (io.WriteCloser, error) {
	if s.opts.MaxSize > 0 {
		return &lumberjack.Logger{
			Filename:   s.Path(),
			MaxSize:    s.opts.MaxSize,
			MaxBackups: s.opts.MaxFiles,
			MaxAge:     s.opts.MaxAge,
			Compress:   s.opts.Compress,
			LocalTime:  true,
		}, nil
	}
	if err := s.fs.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return nil, err
	}
	return s.fs.OpenFile(s.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func (s *fileSink) formatLine(e Event) (string, error) {
	var b strings.Builder
	b.WriteString(e.Timestamp())
	b.WriteString(" [")
	b.WriteString(e.Level.Upper())
	b.WriteString("] ")
	b.WriteString(e.Message)
	if meta := s.enr.metadata(e); len(meta) > 0 {
		data, err := json.Marshal(meta)
		if err != nil {
			return "", err
		}
		b.WriteByte(' ')
		b.Write(data)
	}
	b.WriteByte('\n')
	return b.String(), nil
}

func (s *fileSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.w = nil
	if err != nil {
		return newSinkError(s.rep.name, KindFile, "close", ErrTransport, err)
	}
	return nil
}
