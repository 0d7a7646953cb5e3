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
	"strings"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/logging"
)

// DefaultPollInterval is used when WaitConfig.PollInterval is unset.
const DefaultPollInterval = 5 * time.Second

// Pollable is a resource handle the waiter can poll: it can re-fetch its
// own state and report the status (and failure reason) it last observed.
type Pollable interface {
	Refreshable

	// StatusInfo returns the resource's current status and, when the status
	// is a failure, the human-readable failure reason.
	StatusInfo() (status, failureReason string)
}

// WaitConfig parameterizes a wait on one resource type.
type WaitConfig struct {
	// ResourceType names the resource in errors, e.g. "TrainingJob".
	ResourceType string

	// Success is the set of terminal statuses the wait succeeds on.
	Success stringset.Set

	// Failure is the set of terminal statuses the wait fails on.
	Failure stringset.Set

	// PollInterval is the fixed sleep between polls. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// Timeout bounds the total wait. <= 0 polls indefinitely.
	Timeout time.Duration
}

// LogSink receives log events surfaced during a wait.
type LogSink func(LogEvent)

// Wait polls res via Refresh until its status lands in cfg.Success.
//
// It returns a *FailedStatusError if the status lands in cfg.Failure, a
// *TimeoutExceededError if cfg.Timeout elapses first, or the refresh error
// if a poll fails. A resource that is already terminal returns immediately,
// without sleeping. The transition rule is evaluated exactly once per poll;
// cancellation is only observed between polls.
func Wait(ctx context.Context, res Pollable, cfg WaitConfig) error {
	return wait(ctx, res, cfg, nil, nil)
}

// WaitWithLogs behaves like Wait and additionally pumps reader once per poll
// tick, passing every newly available log event to sink. Events observed on
// the terminal poll are flushed before the wait returns, so the tail of the
// job's output is not lost.
func WaitWithLogs(ctx context.Context, res Pollable, cfg WaitConfig, reader *MultiStreamLogReader, sink LogSink) error {
	if reader == nil {
		return validationErr("a log reader is required")
	}
	if sink == nil {
		sink = func(ev LogEvent) { logging.Infof(ctx, "[%s] %s", ev.StreamName, ev.Message) }
	}
	return wait(ctx, res, cfg, reader, sink)
}

func wait(ctx context.Context, res Pollable, cfg WaitConfig, reader *MultiStreamLogReader, sink LogSink) error {
	if cfg.Success.Len() == 0 {
		return validationErr("a non-empty terminal success status set is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	start := clock.Now(ctx)
	for {
		if err := res.Refresh(ctx); err != nil {
			return err
		}
		status, reason := res.StatusInfo()

		if reader != nil {
			if err := pumpLogs(ctx, reader, sink); err != nil {
				return err
			}
		}

		switch {
		case cfg.Success.Has(status):
			logging.Debugf(ctx, "%s reached %q after %s", cfg.ResourceType, status, clock.Now(ctx).Sub(start))
			return nil
		case cfg.Failure.Has(status):
			return &FailedStatusError{ResourceType: cfg.ResourceType, Status: status, Reason: reason}
		case cfg.Timeout > 0 && clock.Now(ctx).Sub(start) >= cfg.Timeout:
			return &TimeoutExceededError{ResourceType: cfg.ResourceType, Status: status}
		}

		logging.Debugf(ctx, "%s is %q, polling again in %s", cfg.ResourceType, status, cfg.PollInterval)
		if tr := clock.Sleep(ctx, cfg.PollInterval); tr.Incomplete() {
			return tr.Err
		}
	}
}

// WaitForStatus polls res until it reports exactly the given status.
//
// Unlike Wait it has no failure set: any status containing "failed"
// (case-insensitively) that is not the target raises a *FailedStatusError,
// since the resource will never leave it.
func WaitForStatus(ctx context.Context, res Pollable, target string, cfg WaitConfig) error {
	if target == "" {
		return validationErr("a target status is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	start := clock.Now(ctx)
	for {
		if err := res.Refresh(ctx); err != nil {
			return err
		}
		status, reason := res.StatusInfo()

		switch {
		case status == target:
			return nil
		case strings.Contains(strings.ToLower(status), "failed"):
			return &FailedStatusError{ResourceType: cfg.ResourceType, Status: status, Reason: reason}
		case cfg.Timeout > 0 && clock.Now(ctx).Sub(start) >= cfg.Timeout:
			return &TimeoutExceededError{ResourceType: cfg.ResourceType, Status: status}
		}

		if tr := clock.Sleep(ctx, cfg.PollInterval); tr.Incomplete() {
			return tr.Err
		}
	}
}

// pumpLogs surfaces every event that became visible since the previous tick.
// A reader whose log group does not exist yet is simply skipped.
func pumpLogs(ctx context.Context, reader *MultiStreamLogReader, sink LogSink) error {
	ready, err := reader.Ready(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}
	for {
		ev, err := reader.Next(ctx)
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}
		sink(ev)
	}
}
