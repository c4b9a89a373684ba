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

	sls "github.com/aliyun/aliyun-log-go-sdk"
	"github.com/gogo/protobuf/proto"
)

// SLSPutter is the subset of the SLS client the collector uses.
type SLSPutter interface {
	PutLogs(project, logstore string, lg *sls.LogGroup) error
	Close() error
}

// SLSCollector writes log groups to an Alibaba Cloud Log Service logstore.
type SLSCollector struct {
	client   SLSPutter
	project  string
	logstore string
}

// NewSLSCollector returns a collector backed by the SLS SDK client.
func NewSLSCollector(opts SLSOptions) (*SLSCollector, error) {
	client := sls.CreateNormalInterface(opts.Endpoint, opts.AccessKeyID, opts.AccessKeySecret, "")
	return NewSLSCollectorWithClient(client, opts.Project, opts.Logstore), nil
}

// NewSLSCollectorWithClient returns a collector using an existing client.
func NewSLSCollectorWithClient(client SLSPutter, project, logstore string) *SLSCollector {
	return &SLSCollector{client: client, project: project, logstore: logstore}
}

// Store converts group to the SDK's protobuf form and puts it. The SDK
// call is not context-aware; ctx is only checked before the call.
func (c *SLSCollector) Store(ctx context.Context, group *LogGroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.client.PutLogs(c.project, c.logstore, toSLSLogGroup(group))
}

func (c *SLSCollector) Close() error {
	return c.client.Close()
}

func toSLSLogGroup(group *LogGroup) *sls.LogGroup {
	lg := &sls.LogGroup{
		Topic:  proto.String(group.Topic),
		Source: proto.String(group.Source),
		Logs:   make([]*sls.Log, 0, len(group.Records)),
	}
	for _, t := range group.Tags {
		lg.LogTags = append(lg.LogTags, &sls.LogTag{
			Key:   proto.String(t.Key),
			Value: proto.String(t.Value),
		})
	}
	for _, r := range group.Records {
		log := &sls.Log{
			Time:     proto.Uint32(uint32(r.Time.Unix())),
			Contents: make([]*sls.LogContent, 0, len(r.Contents)),
		}
		for _, c := range r.Contents {
			log.Contents = append(log.Contents, &sls.LogContent{
				Key:   proto.String(c.Key),
				Value: proto.String(c.Value),
			})
		}
		lg.Logs = append(lg.Logs, log)
	}
	return lg
}
