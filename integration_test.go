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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"rivaas.dev/logship"
)

// collectingServer stores the "logs" array of every POST it receives.
type collectingServer struct {
	*httptest.Server
	mu       sync.Mutex
	payloads [][]map[string]any
}

func newCollectingServer() *collectingServer {
	cs := &collectingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Logs []map[string]any `json:"logs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		cs.mu.Lock()
		cs.payloads = append(cs.payloads, body.Logs)
		cs.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	DeferCleanup(cs.Close)
	return cs
}

func (cs *collectingServer) batchSizes() []int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	sizes := make([]int, len(cs.payloads))
	for i, p := range cs.payloads {
		sizes[i] = len(p)
	}
	return sizes
}

var _ = Describe("Logship Integration", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Level filtering across sinks", func() {
		It("writes only events at or above the logger level to the file", func() {
			dir := GinkgoT().TempDir()
			var stdout bytes.Buffer

			logger, err := logship.New(
				logship.WithRuntime(logship.RuntimeServer),
				logship.WithLevel(logship.LevelWarn),
				logship.WithOutput(&stdout),
				logship.WithSinks(
					logship.SinkConfig{Type: logship.KindStdout},
					logship.SinkConfig{Type: logship.KindFile, Config: map[string]any{"dir": dir, "filename": "a.log"}},
				),
			)
			Expect(err).NotTo(HaveOccurred())

			logger.Info("just info")
			logger.Error("real problem", "request_id", "r-17", "attempt", 3)
			Expect(logger.Shutdown(ctx)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(dir, "a.log"))
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			Expect(lines).To(HaveLen(1))
			Expect(lines[0]).To(ContainSubstring("[ERROR] real problem"))
			Expect(stdout.String()).NotTo(ContainSubstring("just info"))

			By("round-tripping the metadata through the JSON suffix")
			idx := strings.Index(lines[0], "{")
			Expect(idx).To(BeNumerically(">", 0))
			var meta map[string]any
			Expect(json.Unmarshal([]byte(lines[0][idx:]), &meta)).To(Succeed())
			Expect(meta).To(Equal(map[string]any{"request_id": "r-17", "attempt": float64(3)}))
		})
	})

	Describe("HTTP batching", func() {
		It("flushes a full buffer immediately and the rest on shutdown", func() {
			cs := newCollectingServer()
			logger := logship.MustNew(
				logship.WithRuntime(logship.RuntimeServer),
				logship.WithSinks(logship.SinkConfig{Type: logship.KindHTTP, Config: map[string]any{
					"endpoint":      cs.URL,
					"bufferSize":    2,
					"flushInterval": "1h",
				}}),
			)

			logger.Info("a")
			logger.Info("b")
			logger.Info("c")

			Eventually(cs.batchSizes).WithTimeout(2 * time.Second).Should(Equal([]int{2}))
			Consistently(cs.batchSizes).WithTimeout(100 * time.Millisecond).Should(Equal([]int{2}))

			Expect(logger.Shutdown(ctx)).To(Succeed())
			Expect(cs.batchSizes()).To(Equal([]int{2, 1}))
		})

		It("sends a partial buffer when the timer fires", func() {
			cs := newCollectingServer()
			logger := logship.MustNew(
				logship.WithRuntime(logship.RuntimeServer),
				logship.WithSinks(logship.SinkConfig{Type: logship.KindHTTP, Config: map[string]any{
					"endpoint":      cs.URL,
					"bufferSize":    5,
					"flushInterval": "50ms",
				}}),
			)
			DeferCleanup(func() { _ = logger.Shutdown(context.Background()) })

			for iter := 0; iter < 4; iter++ {
				logger.Warn("partial")
			}
			Eventually(cs.batchSizes).WithTimeout(2 * time.Second).Should(Equal([]int{4}))
		})
	})

	Describe("Cloud collector without credentials", func() {
		It("never creates a client and reports once", func() {
			rec := &logship.DiagnosticsRecorder{}
			created := false

			logger := logship.MustNew(
				logship.WithRuntime(logship.RuntimeServer),
				logship.WithDiagnostics(rec.Func()),
				logship.WithSLSCollectorFactory(func(logship.SLSOptions) (logship.Collector, error) {
					created = true
					return &logship.MockCollector{}, nil
				}),
				logship.WithSinks(logship.SinkConfig{Type: logship.KindSLS, Config: map[string]any{
					"endpoint":        "cn-hangzhou.log.aliyuncs.com",
					"project":         "shop",
					"logstore":        "orders",
					"accessKeySecret": "s",
				}}),
			)

			for iter := 0; iter < 5; iter++ {
				logger.Error("dropped silently")
			}
			Expect(logger.Shutdown(ctx)).To(Succeed())

			Expect(created).To(BeFalse())
			Expect(rec.Len()).To(Equal(1))
			Expect(errors.Is(rec.All()[0].Err, logship.ErrConfiguration)).To(BeTrue())
		})
	})

	Describe("Cloud collector with credentials", func() {
		It("stores enriched records tagged with a pack id", func() {
			col := &logship.MockCollector{}
			logger := logship.MustNew(
				logship.WithRuntime(logship.RuntimeServer),
				logship.WithEnvironment("prod"),
				logship.WithServiceVersion("3.0.0"),
				logship.WithSLSCollectorFactory(func(logship.SLSOptions) (logship.Collector, error) {
					return col, nil
				}),
				logship.WithSinks(logship.SinkConfig{Type: logship.KindSLS, Config: map[string]any{
					"endpoint":        "cn-hangzhou.log.aliyuncs.com",
					"project":         "shop",
					"logstore":        "orders",
					"accessKeyId":     "id",
					"accessKeySecret": "s",
				}}),
			)

			logger.Info("order placed", "module", "orders")
			Expect(logger.Shutdown(ctx)).To(Succeed())

			records := col.Records()
			Expect(records).To(HaveLen(1))
			for key, want := range map[string]string{
				"message":  "order placed",
				"env":      "prod",
				"version":  "3.0.0",
				"category": "orders",
			} {
				got, ok := records[0].Get(key)
				Expect(ok).To(BeTrue(), key)
				Expect(got).To(Equal(want), key)
			}
			Expect(col.Groups()[0].PackID()).NotTo(BeEmpty())
		})
	})

	Describe("Failure isolation", func() {
		It("keeps delivering to healthy sinks when another one panics", func() {
			healthy := logship.NewSinkSpy()
			rec := &logship.DiagnosticsRecorder{}
			logger := logship.MustNew(
				logship.WithRuntime(logship.RuntimeServer),
				logship.WithDiagnostics(rec.Func()),
				logship.WithSink("panicky", logship.NewSinkSpy().PanicWith("boom")),
				logship.WithSink("healthy", healthy),
			)
			DeferCleanup(func() { _ = logger.Shutdown(context.Background()) })

			Expect(func() { logger.Error("survives") }).NotTo(Panic())
			Expect(healthy.Count()).To(Equal(1))
			Expect(rec.Len()).To(Equal(1))
		})

		It("swallows an unreachable HTTP endpoint", func() {
			rec := &logship.DiagnosticsRecorder{}
			logger := logship.MustNew(
				logship.WithRuntime(logship.RuntimeServer),
				logship.WithDiagnostics(rec.Func()),
				logship.WithSinks(logship.SinkConfig{Type: logship.KindHTTP, Config: map[string]any{
					"endpoint":   "http://127.0.0.1:1/logs",
					"bufferSize": 1,
					"timeout":    "200ms",
				}}),
			)

			Expect(func() { logger.Info("lost") }).NotTo(Panic())
			Eventually(rec.Len).WithTimeout(2 * time.Second).Should(BeNumerically(">=", 1))
			Expect(func() { _ = logger.Shutdown(ctx) }).NotTo(Panic())
		})
	})

	Describe("Browser runtime", func() {
		It("keeps events in storage and demotes fatal", func() {
			store := logship.NewMemoryStorage()
			logger := logship.MustNew(
				logship.WithRuntime(logship.RuntimeBrowser),
				logship.WithStorage(store),
				logship.WithDiagnostics(logship.DiscardDiagnostics()),
				logship.WithSinks(
					logship.SinkConfig{Type: logship.KindLocalStorage},
					logship.SinkConfig{Type: logship.KindFile, Config: map[string]any{"dir": "/x", "filename": "f"}},
				),
			)

			logger.Fatal("tab crashed")
			Expect(logger.Shutdown(ctx)).To(Succeed())

			raw, ok, err := store.GetItem("logship")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			var entries []map[string]any
			Expect(json.Unmarshal([]byte(raw), &entries)).To(Succeed())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0]["level"]).To(Equal("error"))
		})
	})
})
