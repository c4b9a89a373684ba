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

import "io"

type (
	Command = command
	Option  = option
)

var (
	NewCommand  = newCommand
	ParseLine   = parseLine
	ErrNoConfig = errNoConfig
)

func WithArgs(a ...string) Option {
	return func(c *Command) {
		c.root.SetArgs(a)
	}
}

func WithInput(r io.Reader) Option {
	return func(c *Command) {
		c.root.SetIn(r)
	}
}

func WithOutput(w io.Writer) Option {
	return func(c *Command) {
		c.root.SetOut(w)
	}
}

func WithErrorOutput(w io.Writer) Option {
	return func(c *Command) {
		c.root.SetErr(w)
	}
}

func WithVersion(v string) Option {
	return func(c *Command) {
		c.version = v
	}
}
