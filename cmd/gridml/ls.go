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
	"os"
	"text/tabwriter"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/errors"

	"github.com/gridml/gridml-go/gridml"
)

func cmdLs() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "ls -kind <training-job|endpoint|model|model-name> [-n <limit>]",
		ShortDesc: "lists resources",
		LongDesc:  "Lists resources of the given kind, in service order.",
		CommandRun: func() subcommands.CommandRun {
			r := &lsRun{}
			r.registerBaseFlags()
			r.Flags.StringVar(&r.kind, "kind", "", "Resource kind to list.")
			r.Flags.IntVar(&r.limit, "n", 0, "Limit the number of rows printed. 0 is unlimited.")
			return r
		},
	}
}

type lsRun struct {
	commandBase
	kind  string
	limit int
}

func (r *lsRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, r, env)
	h, _, err := r.handle()
	if err != nil {
		return r.done(ctx, err)
	}
	return r.done(ctx, r.list(ctx, h))
}

func (r *lsRun) list(ctx context.Context, h *gridml.Handle) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	switch r.kind {
	case "training-job":
		return each(ctx, h.ListTrainingJobs(nil), r.limit, func(j *gridml.TrainingJob) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", j.TrainingJobName, j.TrainingJobStatus, j.TrainingJobArn)
		})
	case "endpoint":
		return each(ctx, h.ListEndpoints(nil), r.limit, func(e *gridml.Endpoint) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.EndpointName, e.EndpointStatus, e.EndpointConfigName)
		})
	case "model":
		return each(ctx, h.ListModels(nil), r.limit, func(m *gridml.Model) {
			fmt.Fprintf(w, "%s\t%s\n", m.ModelName, m.ModelArn)
		})
	case "model-name":
		return each(ctx, h.ListModelNames(nil), r.limit, func(name string) {
			fmt.Fprintf(w, "%s\n", name)
		})
	case "":
		return errors.New("-kind is required")
	default:
		return errors.Fmt("unknown resource kind %q", r.kind)
	}
}

// each drains an iterator through print, stopping early at limit (if > 0).
func each[T any](ctx context.Context, it *gridml.ResourceIterator[T], limit int, print func(T)) error {
	for n := 0; limit <= 0 || n < limit; n++ {
		elem, err := it.Next(ctx)
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}
		print(elem)
	}
	return nil
}
