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
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// PackIDGenerator produces correlation tokens of the form
// "<PREFIX>-<HEXCOUNTER>". The prefix is random per generator and the
// counter increases monotonically, so ids from one generator sort in
// emission order and never collide with another process.
//
// Each [Dispatcher] owns its own generator; there is no package-level state.
type PackIDGenerator struct {
	prefix  string
	counter atomic.Uint64
}

// NewPackIDGenerator returns a generator with a fresh random prefix.
func NewPackIDGenerator() *PackIDGenerator {
	id := uuid.New()
	return &PackIDGenerator{
		prefix: strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:16]),
	}
}

// Prefix returns the generator's random prefix.
func (g *PackIDGenerator) Prefix() string {
	return g.prefix
}

// Next returns the next id. Safe for concurrent use.
func (g *PackIDGenerator) Next() string {
	n := g.counter.Add(1)
	return g.prefix + "-" + strings.ToUpper(strconv.FormatUint(n, 16))
}
