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

package gridml_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"

	"github.com/gridml/gridml-go/gridml"
	"github.com/gridml/gridml-go/gridml/gridmltest"
)

// eventsBackend replays a scripted sequence of pages per stream. Once a
// stream's script runs out it keeps reporting "caught up": no events and an
// unchanged forward token.
type eventsBackend struct {
	pages map[string][]*gridml.LogEventsPage
	next  map[string]int
}

func newEventsBackend(pages map[string][]*gridml.LogEventsPage) *eventsBackend {
	return &eventsBackend{pages: pages, next: map[string]int{}}
}

func (b *eventsBackend) get(stream, token string) *gridml.LogEventsPage {
	script := b.pages[stream]
	i := b.next[stream]
	if i >= len(script) {
		return &gridml.LogEventsPage{NextForwardToken: token}
	}
	b.next[stream] = i + 1
	return script[i]
}

func (b *eventsBackend) client(streams ...string) *gridmltest.LogsClient {
	return &gridmltest.LogsClient{
		DescribeLogStreamsMock: func(ctx context.Context, group, namePrefix, nextToken string) (*gridml.LogStreamPage, error) {
			return &gridml.LogStreamPage{StreamNames: streams}, nil
		},
		GetLogEventsMock: func(ctx context.Context, group, stream, forwardToken string, startFromHead bool) (*gridml.LogEventsPage, error) {
			return b.get(stream, forwardToken), nil
		},
	}
}

func drainEvents(ctx context.Context, t *ftt.Test, r *gridml.MultiStreamLogReader) []string {
	var out []string
	for {
		ev, err := r.Next(ctx)
		if err == io.EOF {
			return out
		}
		assert.Loosely(t, err, should.BeNil)
		out = append(out, ev.StreamName+": "+ev.Message)
	}
}

func TestLogStreamCursor(t *testing.T) {
	t.Parallel()

	ftt.Run("LogStreamCursor", t, func(t *ftt.Test) {
		ctx := context.Background()

		t.Run("reads from the head and stamps the stream name", func(t *ftt.Test) {
			backend := newEventsBackend(map[string][]*gridml.LogEventsPage{
				"job-1/node-0": {
					{Events: []gridml.LogEvent{{Timestamp: 1000, Message: "starting up"}}, NextForwardToken: "f1"},
				},
			})
			var heads []bool
			logs := backend.client("job-1/node-0")
			inner := logs.GetLogEventsMock
			logs.GetLogEventsMock = func(ctx context.Context, group, stream, forwardToken string, startFromHead bool) (*gridml.LogEventsPage, error) {
				heads = append(heads, startFromHead)
				return inner(ctx, group, stream, forwardToken, startFromHead)
			}

			c := gridml.NewLogStreamCursor(logs, "/gridml/TrainingJobs", "job-1/node-0")
			ev, err := c.Next(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, ev.StreamName, should.Equal("job-1/node-0"))
			assert.Loosely(t, ev.Message, should.Equal("starting up"))
			assert.Loosely(t, ev.Time().UnixMilli(), should.Equal(1000))

			_, err = c.Next(ctx)
			assert.Loosely(t, err, should.Equal(io.EOF))

			// Only the very first fetch starts from the head.
			assert.Loosely(t, heads, should.Match([]bool{true, false}))
		})

		t.Run("stays usable after catching up", func(t *ftt.Test) {
			backend := newEventsBackend(map[string][]*gridml.LogEventsPage{
				"s": {
					{Events: []gridml.LogEvent{{Message: "one"}}, NextForwardToken: "f1"},
					{NextForwardToken: "f1"}, // caught up
					{Events: []gridml.LogEvent{{Message: "two"}}, NextForwardToken: "f2"},
				},
			})
			c := gridml.NewLogStreamCursor(backend.client("s"), "g", "s")

			ev, err := c.Next(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, ev.Message, should.Equal("one"))
			_, err = c.Next(ctx)
			assert.Loosely(t, err, should.Equal(io.EOF))

			// The stream grew in the meantime; the cursor picks up from
			// its retained token.
			ev, err = c.Next(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, ev.Message, should.Equal("two"))
		})

		t.Run("follows an advanced token on an empty page", func(t *ftt.Test) {
			backend := newEventsBackend(map[string][]*gridml.LogEventsPage{
				"s": {
					{NextForwardToken: "skipped-ahead"},
					{Events: []gridml.LogEvent{{Message: "here"}}, NextForwardToken: "f2"},
				},
			})
			c := gridml.NewLogStreamCursor(backend.client("s"), "g", "s")

			ev, err := c.Next(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, ev.Message, should.Equal("here"))
		})

		t.Run("empty pages with advancing tokens end the pass", func(t *ftt.Test) {
			backend := newEventsBackend(map[string][]*gridml.LogEventsPage{
				"s": {
					{NextForwardToken: "t1"},
					{NextForwardToken: "t2"},
					{Events: []gridml.LogEvent{{Message: "later"}}, NextForwardToken: "t3"},
				},
			})
			fetches := 0
			logs := backend.client("s")
			inner := logs.GetLogEventsMock
			logs.GetLogEventsMock = func(ctx context.Context, group, stream, forwardToken string, startFromHead bool) (*gridml.LogEventsPage, error) {
				fetches++
				return inner(ctx, group, stream, forwardToken, startFromHead)
			}
			c := gridml.NewLogStreamCursor(logs, "g", "s")

			// A backend that keeps advancing tokens on empty pages must not
			// pin the caller inside a single Next call: one follow, then the
			// pass ends.
			_, err := c.Next(ctx)
			assert.Loosely(t, err, should.Equal(io.EOF))
			assert.Loosely(t, fetches, should.Equal(2))

			// The newest token was retained, so the next pass resumes where
			// the chase stopped instead of refetching from the head.
			ev, err := c.Next(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, ev.Message, should.Equal("later"))
			assert.Loosely(t, fetches, should.Equal(3))
		})

		t.Run("fetch errors propagate", func(t *ftt.Test) {
			boom := errors.New("log backend exploded")
			logs := &gridmltest.LogsClient{
				GetLogEventsMock: func(ctx context.Context, group, stream, forwardToken string, startFromHead bool) (*gridml.LogEventsPage, error) {
					return nil, boom
				},
			}
			c := gridml.NewLogStreamCursor(logs, "g", "s")
			_, err := c.Next(ctx)
			assert.Loosely(t, err, should.Equal(boom))
		})
	})
}

func TestMultiStreamLogReader(t *testing.T) {
	t.Parallel()

	ftt.Run("MultiStreamLogReader", t, func(t *ftt.Test) {
		ctx := context.Background()

		t.Run("Ready", func(t *ftt.Test) {
			t.Run("missing log group is not an error", func(t *ftt.Test) {
				logs := &gridmltest.LogsClient{
					DescribeLogStreamsMock: func(ctx context.Context, group, namePrefix, nextToken string) (*gridml.LogStreamPage, error) {
						return nil, status.Error(codes.NotFound, "log group does not exist")
					},
				}
				r := gridml.NewMultiStreamLogReader(logs, "g", "job-1/", 0)
				ready, err := r.Ready(ctx)
				assert.Loosely(t, err, should.BeNil)
				assert.Loosely(t, ready, should.BeFalse)
			})

			t.Run("no matching streams yet", func(t *ftt.Test) {
				logs := &gridmltest.LogsClient{
					DescribeLogStreamsMock: func(ctx context.Context, group, namePrefix, nextToken string) (*gridml.LogStreamPage, error) {
						return &gridml.LogStreamPage{}, nil
					},
				}
				r := gridml.NewMultiStreamLogReader(logs, "g", "job-1/", 0)
				ready, err := r.Ready(ctx)
				assert.Loosely(t, err, should.BeNil)
				assert.Loosely(t, ready, should.BeFalse)

				// Not cached: the streams may appear later.
				ready, err = r.Ready(ctx)
				assert.Loosely(t, err, should.BeNil)
				assert.Loosely(t, ready, should.BeFalse)
				assert.Loosely(t, logs.DescribeCalls, should.Equal(2))
			})

			t.Run("discovery happens once", func(t *ftt.Test) {
				backend := newEventsBackend(nil)
				logs := backend.client("job-1/node-0")
				r := gridml.NewMultiStreamLogReader(logs, "g", "job-1/", 0)

				for range 3 {
					ready, err := r.Ready(ctx)
					assert.Loosely(t, err, should.BeNil)
					assert.Loosely(t, ready, should.BeTrue)
				}
				assert.Loosely(t, logs.DescribeCalls, should.Equal(1))
			})

			t.Run("caps discovered streams at the expected count", func(t *ftt.Test) {
				backend := newEventsBackend(nil)
				logs := backend.client("job-1/node-0", "job-1/node-1", "job-1/node-2")
				r := gridml.NewMultiStreamLogReader(logs, "g", "job-1/", 2)

				ready, err := r.Ready(ctx)
				assert.Loosely(t, err, should.BeNil)
				assert.Loosely(t, ready, should.BeTrue)
				assert.Loosely(t, r.StreamNames(), should.Match([]string{"job-1/node-0", "job-1/node-1"}))
			})

			t.Run("other errors propagate", func(t *ftt.Test) {
				logs := &gridmltest.LogsClient{
					DescribeLogStreamsMock: func(ctx context.Context, group, namePrefix, nextToken string) (*gridml.LogStreamPage, error) {
						return nil, status.Error(codes.PermissionDenied, "nope")
					},
				}
				r := gridml.NewMultiStreamLogReader(logs, "g", "job-1/", 0)
				_, err := r.Ready(ctx)
				assert.Loosely(t, status.Code(err), should.Equal(codes.PermissionDenied))
			})
		})

		t.Run("drains every stream per pass", func(t *ftt.Test) {
			backend := newEventsBackend(map[string][]*gridml.LogEventsPage{
				"job-1/node-0": {
					{Events: []gridml.LogEvent{{Message: "a1"}, {Message: "a2"}}, NextForwardToken: "a-f1"},
					{NextForwardToken: "a-f1"},
					{Events: []gridml.LogEvent{{Message: "a3"}}, NextForwardToken: "a-f2"},
				},
				"job-1/node-1": {
					{Events: []gridml.LogEvent{{Message: "b1"}}, NextForwardToken: "b-f1"},
				},
			})
			logs := backend.client("job-1/node-0", "job-1/node-1")
			r := gridml.NewMultiStreamLogReader(logs, "g", "job-1/", 0)

			ready, err := r.Ready(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, ready, should.BeTrue)

			// First pass surfaces everything visible right now, stream by
			// stream, in stream order.
			assert.Loosely(t, drainEvents(ctx, t, r), should.Match([]string{
				"job-1/node-0: a1",
				"job-1/node-0: a2",
				"job-1/node-1: b1",
			}))

			// Second pass surfaces only what arrived since.
			assert.Loosely(t, drainEvents(ctx, t, r), should.Match([]string{
				"job-1/node-0: a3",
			}))

			// Nothing new; the pass ends immediately.
			assert.Loosely(t, drainEvents(ctx, t, r), should.BeEmpty)
		})

		t.Run("cursor errors propagate", func(t *ftt.Test) {
			boom := errors.New("read failed")
			logs := &gridmltest.LogsClient{
				DescribeLogStreamsMock: func(ctx context.Context, group, namePrefix, nextToken string) (*gridml.LogStreamPage, error) {
					return &gridml.LogStreamPage{StreamNames: []string{"s"}}, nil
				},
				GetLogEventsMock: func(ctx context.Context, group, stream, forwardToken string, startFromHead bool) (*gridml.LogEventsPage, error) {
					return nil, boom
				},
			}
			r := gridml.NewMultiStreamLogReader(logs, "g", "", 0)
			ready, err := r.Ready(ctx)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, ready, should.BeTrue)

			_, err = r.Next(ctx)
			assert.Loosely(t, err, should.Equal(boom))
		})
	})
}
