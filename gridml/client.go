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

package gridml

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/retry"
	"go.chromium.org/luci/common/retry/transient"
)

// Client is the control-plane collaborator: named remote operations
// (Create*/Describe*/List*/Update*/Delete*) invoked with keyword-style
// arguments and returning wire-shaped records.
//
// Implementations own the retry policy for transient failures; callers of
// Call observe either a successful response or a final error.
type Client interface {
	Call(ctx context.Context, op string, in map[string]any) (map[string]any, error)
}

// LogStreamPage is one page of a log stream listing.
type LogStreamPage struct {
	StreamNames []string
	NextToken   string
}

// LogEventsPage is one forward read of a single log stream.
type LogEventsPage struct {
	Events           []LogEvent
	NextForwardToken string
}

// LogsClient is the log backend collaborator.
//
// DescribeLogStreams fails with a codes.NotFound status error while the log
// group does not exist yet; the owning job may simply not have started
// emitting logs.
type LogsClient interface {
	DescribeLogStreams(ctx context.Context, group, namePrefix, nextToken string) (*LogStreamPage, error)
	GetLogEvents(ctx context.Context, group, stream, forwardToken string, startFromHead bool) (*LogEventsPage, error)
}

// Options configures a Handle.
type Options struct {
	// Service is the base URL of the control plane, e.g.
	// "https://api.gridml.example.com".
	Service string

	// LogsService is the base URL of the log backend. Defaults to Service.
	LogsService string

	// UserAgent is sent with every request.
	UserAgent string

	// Client is the http.Client to use. Defaults to http.DefaultClient.
	Client *http.Client

	// Retry produces the retry iterator applied to transient transport
	// failures. Defaults to retry.Default.
	Retry retry.Factory
}

// DefaultUserAgent is used when Options.UserAgent is unset.
const DefaultUserAgent = "gridml-go"

// Handle binds the control-plane and log-backend clients together. It is the
// composition root for typed resources: construct one per logical session
// and pass it by reference. There is deliberately no package-level default.
type Handle struct {
	raw  Client
	logs LogsClient
}

// New constructs a Handle speaking the production JSON-over-HTTP protocol.
func New(opts Options) (*Handle, error) {
	if opts.Service == "" {
		return nil, validationErr("a service URL is required")
	}
	if opts.LogsService == "" {
		opts.LogsService = opts.Service
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Retry == nil {
		opts.Retry = retry.Default
	}
	ctl := &jsonClient{
		endpoint:  strings.TrimSuffix(opts.Service, "/"),
		target:    "GridML",
		client:    opts.Client,
		userAgent: opts.UserAgent,
		retry:     opts.Retry,
	}
	logs := &jsonClient{
		endpoint:  strings.TrimSuffix(opts.LogsService, "/"),
		target:    "GridLogs",
		client:    opts.Client,
		userAgent: opts.UserAgent,
		retry:     opts.Retry,
	}
	return &Handle{raw: ctl, logs: &logsClient{raw: logs}}, nil
}

// NewFromClients constructs a Handle around existing collaborator
// implementations. Used by tests and by callers that bring their own
// transport.
func NewFromClients(raw Client, logs LogsClient) *Handle {
	return &Handle{raw: raw, logs: logs}
}

// Raw returns the underlying control-plane client.
func (h *Handle) Raw() Client { return h.raw }

// Logs returns the underlying log-backend client.
func (h *Handle) Logs() LogsClient { return h.logs }

// TailLogs returns a reader merging events from every log stream in the
// given group whose name starts with namePrefix. expectedStreams caps how
// many streams are tailed (one per worker node, typically); <= 0 means no
// cap.
func (h *Handle) TailLogs(group, namePrefix string, expectedStreams int) *MultiStreamLogReader {
	return NewMultiStreamLogReader(h.logs, group, namePrefix, expectedStreams)
}

// jsonClient implements Client over the GridML JSON protocol: every
// operation is a POST to the service root with the operation named in the
// X-Grid-Target header.
type jsonClient struct {
	endpoint  string
	target    string
	client    *http.Client
	userAgent string
	retry     retry.Factory
}

func (c *jsonClient) Call(ctx context.Context, op string, in map[string]any) (map[string]any, error) {
	if op == "" {
		return nil, validationErr("an operation name is required")
	}
	if in == nil {
		in = map[string]any{}
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Fmt("marshaling %s request: %w", op, err)
	}

	var out map[string]any
	err = retry.Retry(ctx, transient.Only(c.retry), func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Grid-Target", c.target+"."+op)
		req.Header.Set("X-Grid-Invocation-Id", uuid.New().String())

		resp, err := c.client.Do(req)
		if err != nil {
			// Connection-level failures are worth another attempt.
			return transient.Tag.Apply(err)
		}
		defer func() { _ = resp.Body.Close() }()
		blob, err := io.ReadAll(resp.Body)
		if err != nil {
			return transient.Tag.Apply(errors.Fmt("reading %s response: %w", op, err))
		}
		if resp.StatusCode != http.StatusOK {
			return decodeAPIError(resp.StatusCode, blob)
		}
		out = nil
		if len(blob) > 0 {
			if err := json.Unmarshal(blob, &out); err != nil {
				return errors.Fmt("unmarshaling %s response: %w", op, err)
			}
		}
		return nil
	}, retry.LogCallback(ctx, op))
	if err != nil {
		return nil, err
	}
	logging.Debugf(ctx, "%s.%s: OK", c.target, op)
	return out, nil
}

// wireError is the error document returned by both backends.
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wireCodes maps service error codes to their canonical gRPC codes.
var wireCodes = map[string]codes.Code{
	"ValidationException":       codes.InvalidArgument,
	"ResourceNotFound":          codes.NotFound,
	"ResourceNotFoundException": codes.NotFound,
	"ResourceInUse":             codes.FailedPrecondition,
	"ConflictException":         codes.Aborted,
	"ResourceLimitExceeded":     codes.ResourceExhausted,
	"ThrottlingException":       codes.ResourceExhausted,
	"AccessDeniedException":     codes.PermissionDenied,
	"InternalFailure":           codes.Internal,
	"ServiceUnavailable":        codes.Unavailable,
}

func decodeAPIError(httpStatus int, blob []byte) error {
	var we wireError
	_ = json.Unmarshal(blob, &we)

	code := codes.Unknown
	if c, ok := wireCodes[we.Code]; ok {
		code = c
	} else if httpStatus >= 500 {
		code = codes.Internal
	}
	msg := we.Message
	if msg == "" {
		msg = http.StatusText(httpStatus)
	}
	err := status.Error(code, msg)
	if isTransientCode(code, we.Code) {
		err = transient.Tag.Apply(err)
	}
	return err
}

func isTransientCode(code codes.Code, wireCode string) bool {
	switch code {
	case codes.Internal, codes.Unknown, codes.Unavailable:
		return true
	case codes.ResourceExhausted:
		// Throttling recovers by itself; a hard resource limit does not.
		return wireCode == "ThrottlingException"
	default:
		return false
	}
}

// logsClient adapts the raw JSON protocol to the typed LogsClient surface.
// The log backend names wire fields in lowerCamelCase; TransformKeys
// normalizes them before decoding.
type logsClient struct {
	raw Client
}

func (c *logsClient) DescribeLogStreams(ctx context.Context, group, namePrefix, nextToken string) (*LogStreamPage, error) {
	if group == "" {
		return nil, validationErr("a log group name is required")
	}
	in := map[string]any{"logGroupName": group}
	if namePrefix != "" {
		in["logStreamNamePrefix"] = namePrefix
	}
	if nextToken != "" {
		in["nextToken"] = nextToken
	}
	resp, err := c.raw.Call(ctx, "DescribeLogStreams", in)
	if err != nil {
		return nil, err
	}
	var result struct {
		LogStreams []struct {
			LogStreamName string `mapstructure:"log_stream_name"`
		} `mapstructure:"log_streams"`
		NextToken string `mapstructure:"next_token"`
	}
	if err := decodeShape(TransformKeys(resp), &result); err != nil {
		return nil, err
	}
	page := &LogStreamPage{NextToken: result.NextToken}
	for _, s := range result.LogStreams {
		page.StreamNames = append(page.StreamNames, s.LogStreamName)
	}
	return page, nil
}

func (c *logsClient) GetLogEvents(ctx context.Context, group, stream, forwardToken string, startFromHead bool) (*LogEventsPage, error) {
	if group == "" || stream == "" {
		return nil, validationErr("log group and stream names are required")
	}
	in := map[string]any{
		"logGroupName":  group,
		"logStreamName": stream,
	}
	if forwardToken != "" {
		in["nextToken"] = forwardToken
	} else if startFromHead {
		in["startFromHead"] = true
	}
	resp, err := c.raw.Call(ctx, "GetLogEvents", in)
	if err != nil {
		return nil, err
	}
	var result struct {
		Events           []LogEvent `mapstructure:"events"`
		NextForwardToken string     `mapstructure:"next_forward_token"`
	}
	if err := decodeShape(TransformKeys(resp), &result); err != nil {
		return nil, err
	}
	return &LogEventsPage{Events: result.Events, NextForwardToken: result.NextForwardToken}, nil
}
