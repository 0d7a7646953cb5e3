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
	"reflect"

	"go.chromium.org/luci/common/errors"
)

// Refreshable is implemented by resources that can re-fetch their own full
// detail. ResourceIterator refreshes every such resource before yielding it,
// so callers always observe the complete record rather than the partial list
// projection.
type Refreshable interface {
	Refresh(ctx context.Context) error
}

// ListCall describes a paginated list operation.
type ListCall struct {
	// Op is the remote operation name, e.g. "ListTrainingJobs".
	Op string

	// Args are fixed call arguments sent with every page fetch, keyed by
	// their wire names.
	Args map[string]any

	// SummariesKey is the response key under which summary records are
	// nested, e.g. "TrainingJobSummaries".
	SummariesKey string

	// KeyMapping optionally renames snake_case summary keys after the wire
	// name transform, for list operations whose summary fields differ from
	// the resource's own field names.
	KeyMapping map[string]string
}

// SummaryFunc constructs a resource from a transformed summary record.
type SummaryFunc[T any] func(init map[string]any) (T, error)

// ResourceIterator is a lazy, single-pass cursor over a paginated list
// operation. It is finite (bounded by however many pages the service
// reports), not restartable, and not safe for concurrent use.
//
// Next returns io.EOF once the sequence ends; the iterator stays ended from
// then on. Fetch errors propagate unmodified: retry policy belongs to the
// transport, not to this layer.
type ResourceIterator[T any] struct {
	client      Client
	call        ListCall
	fromSummary SummaryFunc[T]

	buf     []map[string]any
	idx     int
	token   string
	started bool
	done    bool
}

// NewResourceIterator builds an iterator over the given list call.
//
// fromSummary receives each summary record with its keys already transformed
// to snake_case (and KeyMapping applied) and constructs the typed resource.
// It may be nil when T is a primitive (string, number, bool), in which case
// the sole value of each raw summary record is yielded directly.
func NewResourceIterator[T any](client Client, call ListCall, fromSummary SummaryFunc[T]) *ResourceIterator[T] {
	return &ResourceIterator[T]{client: client, call: call, fromSummary: fromSummary}
}

// Next advances the cursor and returns the next resource, or io.EOF when the
// sequence has ended.
func (it *ResourceIterator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if it.done {
		return zero, io.EOF
	}
	if it.call.Op == "" || it.call.SummariesKey == "" {
		return zero, validationErr("a list operation and summaries key are required")
	}

	for {
		// Drain the current page first.
		if it.idx < len(it.buf) {
			summary := it.buf[it.idx]
			it.idx++

			obj, err := it.construct(summary)
			if err != nil {
				return zero, err
			}
			if r, ok := any(obj).(Refreshable); ok {
				if err := r.Refresh(ctx); err != nil {
					return zero, err
				}
			}
			return obj, nil
		}

		// An absent continuation token after a fetch means no further pages.
		if it.started && it.token == "" {
			it.done = true
			return zero, io.EOF
		}

		if err := it.fetchPage(ctx); err != nil {
			return zero, err
		}

		// A page that comes back empty ends the sequence without another
		// fetch attempt.
		if len(it.buf) == 0 {
			it.done = true
			return zero, io.EOF
		}
	}
}

func (it *ResourceIterator[T]) fetchPage(ctx context.Context) error {
	args := make(map[string]any, len(it.call.Args)+1)
	for k, v := range it.call.Args {
		args[k] = v
	}
	if it.token != "" {
		// The token is opaque; supply it back verbatim.
		args["NextToken"] = it.token
	}

	resp, err := it.client.Call(ctx, it.call.Op, args)
	if err != nil {
		return err
	}

	it.buf = it.buf[:0]
	if raw, ok := resp[it.call.SummariesKey].([]any); ok {
		for _, elem := range raw {
			if record, ok := elem.(map[string]any); ok {
				it.buf = append(it.buf, record)
			}
		}
	}
	it.token, _ = resp["NextToken"].(string)
	it.idx = 0
	it.started = true
	return nil
}

func (it *ResourceIterator[T]) construct(summary map[string]any) (T, error) {
	var zero T
	if it.fromSummary == nil {
		return scalarFromSummary[T](summary)
	}
	init := applyKeyMapping(TransformKeys(summary), it.call.KeyMapping)
	obj, err := it.fromSummary(init)
	if err != nil {
		return zero, errors.Fmt("constructing resource from %s summary: %w", it.call.SummariesKey, err)
	}
	return obj, nil
}

// scalarFromSummary extracts the single value of a one-field summary record
// for iterators over primitive types.
func scalarFromSummary[T any](summary map[string]any) (T, error) {
	var zero T
	if len(summary) != 1 {
		return zero, errors.Fmt("expected a single-field summary record for a scalar iterator, got %d fields", len(summary))
	}
	for _, v := range summary {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		// JSON numbers decode as float64; convert between numeric kinds
		// when the target type allows it.
		rv := reflect.ValueOf(v)
		rt := reflect.TypeOf(&zero).Elem()
		if rv.IsValid() && isNumeric(rv.Kind()) && isNumeric(rt.Kind()) && rv.Type().ConvertibleTo(rt) {
			return rv.Convert(rt).Interface().(T), nil
		}
		return zero, errors.Fmt("summary value of type %T is not assignable to the iterator's element type", v)
	}
	return zero, nil // unreachable
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
