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
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchCollector indexes log groups with the bulk API, one
// document per record.
type ElasticsearchCollector struct {
	es    *elasticsearch.Client
	index string
}

// NewElasticsearchCollector creates a client for opts.Addresses.
func NewElasticsearchCollector(opts ElasticsearchOptions) (*ElasticsearchCollector, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
		APIKey:    opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return NewElasticsearchCollectorWithClient(es, opts.Index), nil
}

// NewElasticsearchCollectorWithClient returns a collector using es.
func NewElasticsearchCollectorWithClient(es *elasticsearch.Client, index string) *ElasticsearchCollector {
	return &ElasticsearchCollector{es: es, index: index}
}

var bulkIndexAction = []byte(`{"index":{}}` + "\n")

// Store writes every record of group as one document. Topic, source and
// tags are copied into each document.
func (c *ElasticsearchCollector) Store(ctx context.Context, group *LogGroup) error {
	var buf bytes.Buffer
	for _, r := range group.Records {
		doc := make(map[string]any, len(r.Contents)+len(group.Tags)+3)
		doc["@timestamp"] = r.Time.UTC().Format(timestampLayout)
		if group.Topic != "" {
			doc["topic"] = group.Topic
		}
		if group.Source != "" {
			doc["source"] = group.Source
		}
		for _, t := range group.Tags {
			doc[t.Key] = t.Value
		}
		for _, kv := range r.Contents {
			doc[kv.Key] = kv.Value
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("error marshaling document to bulk index: %w", err)
		}
		buf.Write(bulkIndexAction)
		buf.Write(data)
		buf.WriteByte('\n')
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithIndex(c.index),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk index in Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var body struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if body.Errors {
		return fmt.Errorf("bulk index reported item errors")
	}
	return nil
}

// Close is a no-op; the client holds no resources that need releasing.
func (c *ElasticsearchCollector) Close() error {
	return nil
}
