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

//go:build js

package logship

import (
	"io"
	"syscall/js"
)

// pageConsole writes to the page's console object.
type pageConsole struct {
	console js.Value
}

func (c pageConsole) write(m consoleMethod, line string) {
	c.console.Call(string(m), line)
}

// defaultConsole returns the page console when one exists.
func defaultConsole(out, errOut io.Writer) consoleBackend {
	console := js.Global().Get("console")
	if console.IsUndefined() || console.IsNull() {
		return newStreamConsole(out, errOut)
	}
	return pageConsole{console: console}
}
