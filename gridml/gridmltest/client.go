// Copyright 2025 The GridML Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gridmltest contains GridML client test helpers.
package gridmltest

import (
	"context"

	"github.com/gridml/gridml-go/gridml"
)

// Client is a mock of gridml.Client that just calls the provided callback.
type Client struct {
	CallMock func(ctx context.Context, op string, in map[string]any) (map[string]any, error)

	// Calls records every operation name invoked, in order.
	Calls []string
}

func (c *Client) Call(ctx context.Context, op string, in map[string]any) (map[string]any, error) {
	c.Calls = append(c.Calls, op)
	return c.CallMock(ctx, op, in)
}

// LogsClient is a mock of gridml.LogsClient that just calls the provided
// callbacks.
type LogsClient struct {
	DescribeLogStreamsMock func(ctx context.Context, group, namePrefix, nextToken string) (*gridml.LogStreamPage, error)
	GetLogEventsMock       func(ctx context.Context, group, stream, forwardToken string, startFromHead bool) (*gridml.LogEventsPage, error)

	// DescribeCalls counts DescribeLogStreams invocations.
	DescribeCalls int
}

func (c *LogsClient) DescribeLogStreams(ctx context.Context, group, namePrefix, nextToken string) (*gridml.LogStreamPage, error) {
	c.DescribeCalls++
	return c.DescribeLogStreamsMock(ctx, group, namePrefix, nextToken)
}

func (c *LogsClient) GetLogEvents(ctx context.Context, group, stream, forwardToken string, startFromHead bool) (*gridml.LogEventsPage, error) {
	return c.GetLogEventsMock(ctx, group, stream, forwardToken, startFromHead)
}
