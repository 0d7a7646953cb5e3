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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/errors"

	"github.com/gridml/gridml-go/gridml"
)

func cmdWait() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "wait -kind <training-job|endpoint> [-poll <duration>] [-timeout <duration>] [-logs] <name>",
		ShortDesc: "waits for a resource to reach a terminal status",
		LongDesc: "Polls the named resource until it reaches a terminal status. " +
			"With -logs, training job output is streamed to stdout while waiting. " +
			"A zero -timeout waits indefinitely.",
		CommandRun: func() subcommands.CommandRun {
			r := &waitRun{}
			r.registerBaseFlags()
			r.Flags.StringVar(&r.kind, "kind", "", "Resource kind to wait on.")
			r.Flags.DurationVar(&r.poll, "poll", gridml.DefaultPollInterval, "Interval between polls.")
			r.Flags.DurationVar(&r.timeout, "timeout", 0, "Total wait budget. 0 waits indefinitely.")
			r.Flags.BoolVar(&r.logs, "logs", false, "Stream training job logs while waiting.")
			return r
		},
	}
}

type waitRun struct {
	commandBase
	kind    string
	poll    time.Duration
	timeout time.Duration
	logs    bool
}

func (r *waitRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx, cancel := context.WithCancel(cli.GetContext(a, r, env))
	defer cancel()

	if len(args) != 1 {
		return r.done(ctx, errors.New("expecting exactly one argument: the resource name"))
	}
	h, _, err := r.handle()
	if err != nil {
		return r.done(ctx, err)
	}
	return r.done(ctx, r.wait(ctx, h, args[0]))
}

func (r *waitRun) wait(ctx context.Context, h *gridml.Handle, name string) error {
	switch r.kind {
	case "training-job":
		job, err := h.GetTrainingJob(ctx, name)
		if err != nil {
			return err
		}
		if r.logs {
			err = job.WaitWithLogs(ctx, r.poll, r.timeout, func(ev gridml.LogEvent) {
				fmt.Printf("%s [%s] %s\n", ev.Time().Format(time.RFC3339), ev.StreamName, ev.Message)
			})
		} else {
			err = job.Wait(ctx, r.poll, r.timeout)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s is %s\n", job.TrainingJobName, job.TrainingJobStatus)
		return nil
	case "endpoint":
		if r.logs {
			return errors.New("-logs applies to training jobs only")
		}
		ep, err := h.GetEndpoint(ctx, name)
		if err != nil {
			return err
		}
		if err := ep.Wait(ctx, r.poll, r.timeout); err != nil {
			return err
		}
		fmt.Printf("%s is %s\n", ep.EndpointName, ep.EndpointStatus)
		return nil
	case "":
		return errors.New("-kind is required")
	default:
		return errors.Fmt("cannot wait on resource kind %q", r.kind)
	}
}
