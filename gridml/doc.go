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

// Package gridml is a client for the GridML control plane.
//
// The control plane is an eventually-consistent remote API that manages
// named ML resources (training jobs, models, endpoints) and exposes their
// logs through a stream-oriented log backend. The package provides the
// runtime pieces that the generated resource bindings are built on:
//
//   - ResourceIterator: a lazy, single-pass cursor over a paginated list
//     operation, producing fully-typed resources.
//   - Wait and friends: status polling until a resource reaches a terminal
//     state, with an optional live log tail.
//   - LogStreamCursor and MultiStreamLogReader: forward-token based tailing
//     of one or many log streams belonging to a running job.
//
// All remote calls are synchronous and go through an explicitly constructed
// Handle; nothing in this package keeps process-global state. Individual
// iterators, waiters and log readers own private cursor state and are not
// safe for concurrent use; drive each from a single goroutine.
//
// Time is always read through go.chromium.org/luci/common/clock so that
// polling behavior is testable with a test clock.
package gridml
