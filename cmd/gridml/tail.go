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
	"io"
	"time"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/gridml/gridml-go/gridml"
)

func cmdTail() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "tail [-group <log group>] [-prefix <stream prefix>] [-follow] [-interval <duration>]",
		ShortDesc: "tails log streams",
		LongDesc: "Prints the events of every log stream in the group matching the prefix. " +
			"With -follow, keeps polling for new events until interrupted.",
		CommandRun: func() subcommands.CommandRun {
			r := &tailRun{}
			r.registerBaseFlags()
			r.Flags.StringVar(&r.group, "group", "", "Log group. Defaults to `log_group` from the config file.")
			r.Flags.StringVar(&r.prefix, "prefix", "", "Stream name prefix to match.")
			r.Flags.BoolVar(&r.follow, "follow", false, "Keep polling for new events.")
			r.Flags.DurationVar(&r.interval, "interval", gridml.DefaultPollInterval, "Polling interval with -follow.")
			return r
		},
	}
}

type tailRun struct {
	commandBase
	group    string
	prefix   string
	follow   bool
	interval time.Duration
}

func (r *tailRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx, cancel := context.WithCancel(cli.GetContext(a, r, env))
	defer cancel()

	h, cfg, err := r.handle()
	if err != nil {
		return r.done(ctx, err)
	}
	group := r.group
	if group == "" {
		group = cfg.LogGroup
	}
	if group == "" {
		return r.done(ctx, errors.New("a log group is required: pass -group or set `log_group` in ~/.gridml.yaml"))
	}
	return r.done(ctx, r.tail(ctx, h.TailLogs(group, r.prefix, 0)))
}

func (r *tailRun) tail(ctx context.Context, reader *gridml.MultiStreamLogReader) error {
	for {
		ready, err := reader.Ready(ctx)
		if err != nil {
			return err
		}
		if ready {
			if err := r.drain(ctx, reader); err != nil {
				return err
			}
		} else {
			logging.Infof(ctx, "no matching log streams yet")
		}

		if !r.follow {
			return nil
		}
		if tr := clock.Sleep(ctx, r.interval); tr.Incomplete() {
			return tr.Err
		}
	}
}

func (r *tailRun) drain(ctx context.Context, reader *gridml.MultiStreamLogReader) error {
	for {
		ev, err := reader.Next(ctx)
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}
		fmt.Printf("%s [%s] %s\n", ev.Time().Format(time.RFC3339), ev.StreamName, ev.Message)
	}
}
