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
)

// Runtime describes where the logger runs. It is provided by the host
// application (see [WithRuntime]) and gates which sink kinds can be built.
type Runtime string

const (
	// RuntimeServer is a regular process with a filesystem and network.
	RuntimeServer Runtime = "server"
	// RuntimeBrowser is a js/wasm build running inside a web page.
	RuntimeBrowser Runtime = "browser"
)

// DetectRuntime returns RuntimeBrowser for js builds and RuntimeServer
// otherwise. It is the default when no runtime is injected.
func DetectRuntime() Runtime {
	if runtime.GOOS == "js" {
		return RuntimeBrowser
	}
	return RuntimeServer
}

// IsBrowser reports whether r is the browser runtime.
func (r Runtime) IsBrowser() bool {
	return r == RuntimeBrowser
}

// Supports reports whether a sink of kind k can be constructed in r.
func (r Runtime) Supports(k Kind) bool {
	switch k {
	case KindStdout, KindHTTP:
		return true
	case KindLocalStorage:
		return r == RuntimeBrowser
	case KindFile, KindSLS, KindElasticsearch:
		return r == RuntimeServer
	}
	return false
}

// ParseRuntime parses "server" or "browser".
func ParseRuntime(s string) (Runtime, error) {
	switch Runtime(strings.ToLower(strings.TrimSpace(s))) {
	case RuntimeServer:
		return RuntimeServer, nil
	case RuntimeBrowser:
		return RuntimeBrowser, nil
	case "":
		return DetectRuntime(), nil
	}
	return "", fmt.Errorf("unknown runtime %q", s)
}
