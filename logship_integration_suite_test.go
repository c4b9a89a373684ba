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

//go:build integration

package logship_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// TestLogshipIntegration is the entry point for the logship integration test suite.
//
// Integration tests drive complete loggers against real files and HTTP
// endpoints.
//
//nolint:paralleltest // Integration test suite
func TestLogshipIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logship Integration Suite")
}
