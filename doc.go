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

// Package logship ships structured log calls to several destinations at
// once: the console, files, an HTTP beacon endpoint, browser storage and
// cloud log collectors (Alibaba Cloud Log Service, Elasticsearch).
//
// Every log call becomes one [Event]. A [Dispatcher] fans it out to the
// configured sinks in order, each behind its own minimum level. Network
// sinks buffer events in a [Batcher] and send them when the batch is full
// or a timer fires. A failing sink never affects the others and never
// reaches the caller: failures are reported through a [DiagnosticsFunc]
// and Prometheus counters.
//
// # Basic Usage
//
//	logger := logship.MustNew(
//	    logship.WithServiceName("checkout"),
//	    logship.WithSinks(
//	        logship.SinkConfig{Type: logship.KindStdout},
//	        logship.SinkConfig{
//	            Type:  logship.KindFile,
//	            Level: "warn",
//	            Config: map[string]any{"dir": "/var/log/checkout", "filename": "app.log"},
//	        },
//	    ),
//	)
//	defer logger.Shutdown(context.Background())
//	logger.Info("order placed", "order_id", id)
//
// # Configuration Files
//
// The same setup can be declared in YAML, TOML or JSON:
//
//	level: info
//	sinks:
//	  - type: stdout
//	  - type: http
//	    config:
//	      endpoint: https://logs.example.com/ingest
//	      bufferSize: 20
//	      flushInterval: 2s
//	  - type: sls
//	    config:
//	      endpoint: cn-hangzhou.log.aliyuncs.com
//	      project: shop
//	      logstore: checkout
//	      accessKeyId: ${SLS_ACCESS_KEY_ID}
//	      accessKeySecret: ${SLS_ACCESS_KEY_SECRET}
//
//	cfg, err := logship.LoadConfig("logging.yaml")
//	logger, err := logship.NewFromConfig(cfg)
//
// A cloud collector without credentials is inert: it accepts events,
// ships nothing and reports one configuration diagnostic.
//
// # Runtimes
//
// The host states where it runs with [WithRuntime]. File and collector
// sinks only run on a server, localstorage only in a browser (js/wasm).
// A sink that cannot run in the chosen runtime is inert. Fatal events are
// shipped as errors in the browser; [Logger.Fatal] never exits.
//
// # Log Sampling
//
//	logger := logship.MustNew(
//	    logship.WithSampling(logship.SamplingConfig{
//	        Initial:    100,
//	        Thereafter: 100,
//	        Tick:       time.Minute,
//	    }),
//	)
//
// Note: Errors (level >= error) always bypass sampling.
//
// # Other Front-ends
//
// Packages zapship and logrusship feed zap and logrus loggers into the
// same dispatcher.
package logship
