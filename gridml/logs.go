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
	"context"
	"io"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.chromium.org/luci/common/logging"
)

// LogEvent is a single log line from one stream. Timestamps are
// milliseconds since the Unix epoch, as reported by the log backend.
// Within a stream, events arrive in non-decreasing (Timestamp,
// IngestionTime) order; across streams no ordering is guaranteed.
type LogEvent struct {
	StreamName    string `mapstructure:"-"`
	Timestamp     int64  `mapstructure:"timestamp"`
	IngestionTime int64  `mapstructure:"ingestion_time"`
	Message       string `mapstructure:"message"`
}

// Time returns the event timestamp as a time.Time.
func (ev LogEvent) Time() time.Time {
	return time.UnixMilli(ev.Timestamp)
}

// LogStreamCursor reads one named log stream forward, yielding only events
// that became visible since its previous fetch. Deduplication is purely
// forward-token based: the cursor never inspects event contents.
//
// Next returns io.EOF once the cursor has caught up with the stream. The
// cursor stays usable: the stream may grow, and a later Next picks up from
// the retained forward token. Not safe for concurrent use.
type LogStreamCursor struct {
	logs   LogsClient
	group  string
	stream string

	token string // forward token; empty only before the first fetch
	buf   []LogEvent
	idx   int
}

// NewLogStreamCursor returns a cursor positioned at the head of the stream.
func NewLogStreamCursor(logs LogsClient, group, stream string) *LogStreamCursor {
	return &LogStreamCursor{logs: logs, group: group, stream: stream}
}

// StreamName returns the name of the stream this cursor reads.
func (c *LogStreamCursor) StreamName() string { return c.stream }

// Next returns the next newly visible event, or io.EOF when the cursor has
// caught up with the stream for now.
func (c *LogStreamCursor) Next(ctx context.Context) (LogEvent, error) {
	followed := false
	for {
		if c.idx < len(c.buf) {
			ev := c.buf[c.idx]
			c.idx++
			return ev, nil
		}

		// First fetch reads from the head; afterwards the most recent
		// forward token is supplied back verbatim.
		page, err := c.logs.GetLogEvents(ctx, c.group, c.stream, c.token, c.token == "")
		if err != nil {
			return LogEvent{}, err
		}

		if len(page.Events) == 0 {
			// Zero new events with an unchanged token means we are caught
			// up; don't spin further within this pass. An advanced token is
			// followed at most once per call, in case the backend skipped
			// an expired page; it is retained either way so the next pass
			// resumes from it.
			advanced := page.NextForwardToken != "" && page.NextForwardToken != c.token
			if advanced {
				c.token = page.NextForwardToken
			}
			if !advanced || followed {
				return LogEvent{}, io.EOF
			}
			followed = true
			continue
		}

		c.buf = c.buf[:0]
		for _, ev := range page.Events {
			ev.StreamName = c.stream
			c.buf = append(c.buf, ev)
		}
		c.idx = 0
		c.token = page.NextForwardToken
	}
}

// MultiStreamLogReader merges events from every log stream in a group whose
// name shares a prefix, typically one job-level prefix with per-worker
// suffixes. Streams are discovered lazily since they only appear once the
// owning job starts emitting logs.
//
// Each pass over Next drains the currently available events of every owned
// cursor in sequence (all of stream 1, then stream 2, ...) and ends with
// io.EOF once every cursor is caught up. Re-invoke it on the following tick
// to surface whatever arrived in between. Within a stream event order is
// preserved; across streams it is not. Not safe for concurrent use.
type MultiStreamLogReader struct {
	logs     LogsClient
	group    string
	prefix   string
	expected int

	cursors []*LogStreamCursor
	pos     int
}

// NewMultiStreamLogReader returns a reader for all streams in group whose
// names start with namePrefix. expectedStreams, if > 0, caps how many
// streams are tailed.
func NewMultiStreamLogReader(logs LogsClient, group, namePrefix string, expectedStreams int) *MultiStreamLogReader {
	return &MultiStreamLogReader{logs: logs, group: group, prefix: namePrefix, expected: expectedStreams}
}

// Ready reports whether at least one matching stream exists.
//
// A positive result is cached: once streams have been discovered they are
// never re-listed. A NotFound from the listing call means the log group has
// not been created yet and yields (false, nil) rather than an error; any
// other error propagates.
func (r *MultiStreamLogReader) Ready(ctx context.Context) (bool, error) {
	if len(r.cursors) > 0 {
		return true, nil
	}

	page, err := r.logs.DescribeLogStreams(ctx, r.group, r.prefix, "")
	if err != nil {
		if status.Code(err) == codes.NotFound {
			logging.Debugf(ctx, "log group %q does not exist yet", r.group)
			return false, nil
		}
		return false, err
	}

	names := page.StreamNames
	if r.expected > 0 && len(names) > r.expected {
		names = names[:r.expected]
	}
	for _, name := range names {
		r.cursors = append(r.cursors, NewLogStreamCursor(r.logs, r.group, name))
	}
	return len(r.cursors) > 0, nil
}

// Next returns the next available event, or io.EOF once every owned stream
// is caught up for this pass.
func (r *MultiStreamLogReader) Next(ctx context.Context) (LogEvent, error) {
	for r.pos < len(r.cursors) {
		ev, err := r.cursors[r.pos].Next(ctx)
		switch {
		case err == io.EOF:
			r.pos++
		case err != nil:
			return LogEvent{}, err
		default:
			return ev, nil
		}
	}
	r.pos = 0
	return LogEvent{}, io.EOF
}

// StreamNames returns the names of the streams discovered so far.
func (r *MultiStreamLogReader) StreamNames() []string {
	names := make([]string, len(r.cursors))
	for i, c := range r.cursors {
		names[i] = c.StreamName()
	}
	return names
}
