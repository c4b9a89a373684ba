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
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"rivaas.dev/logship"
)

const esImage = "docker.elastic.co/elasticsearch/elasticsearch:8.10.2"

// ElasticsearchSinkTestSuite ships events to a real Elasticsearch node.
type ElasticsearchSinkTestSuite struct {
	suite.Suite
	container testcontainers.Container
	address   string
	client    *elasticsearch.Client
}

// SetupSuite starts a single-node cluster with security disabled.
func (s *ElasticsearchSinkTestSuite) SetupSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        esImage,
		ExposedPorts: []string{"9200/tcp"},
		Env: map[string]string{
			"discovery.type":         "single-node",
			"xpack.security.enabled": "false",
			"ES_JAVA_OPTS":           "-Xms512m -Xmx512m",
		},
		WaitingFor: wait.ForHTTP("/").WithPort("9200/tcp").WithStartupTimeout(3 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)
	s.container = container

	s.address, err = container.Endpoint(ctx, "http")
	s.Require().NoError(err)

	s.client, err = elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{s.address}})
	s.Require().NoError(err)
}

// TearDownSuite stops the container.
func (s *ElasticsearchSinkTestSuite) TearDownSuite() {
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

// TestElasticsearchSinkTestSuite runs the test suite
func TestElasticsearchSinkTestSuite(t *testing.T) {
	suite.Run(t, new(ElasticsearchSinkTestSuite))
}

func (s *ElasticsearchSinkTestSuite) TestShipsBatchOnShutdown() {
	logger, err := logship.New(
		logship.WithRuntime(logship.RuntimeServer),
		logship.WithDiagnostics(logship.DiscardDiagnostics()),
		logship.WithSinks(logship.SinkConfig{
			Type: logship.KindElasticsearch,
			Config: map[string]any{
				"addresses": []string{s.address},
				"index":     "logship-it",
				"appName":   "it",
			},
		}),
	)
	s.Require().NoError(err)

	logger.Info("first", "order", "A-1")
	logger.Error("second")
	s.Require().NoError(logger.Shutdown(context.Background()))

	hits := s.search("logship-it")
	s.Require().Len(hits, 2)
	messages := []string{hits[0]["message"].(string), hits[1]["message"].(string)}
	s.ElementsMatch([]string{"first", "second"}, messages)
	for _, h := range hits {
		s.Equal("it", h["app"])
		s.NotEmpty(h["pack_id"])
		s.NotEmpty(h["@timestamp"])
	}
}

// search refreshes index and returns every document source.
func (s *ElasticsearchSinkTestSuite) search(index string) []map[string]any {
	ctx := context.Background()
	res, err := s.client.Indices.Refresh(s.client.Indices.Refresh.WithIndex(index))
	s.Require().NoError(err)
	res.Body.Close()

	res, err = s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(strings.NewReader(`{"query":{"match_all":{}}}`)),
	)
	s.Require().NoError(err)
	defer res.Body.Close()
	s.Require().False(res.IsError(), res.String())

	var body struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	s.Require().NoError(json.NewDecoder(res.Body).Decode(&body))

	out := make([]map[string]any, 0, len(body.Hits.Hits))
	for _, h := range body.Hits.Hits {
		out = append(out, h.Source)
	}
	return out
}
