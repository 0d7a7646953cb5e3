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
	"errors"
	"fmt"
)

// ValidationError indicates malformed caller input. It is raised locally,
// before any remote call, and is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validating user input: %s", e.Message)
}

func validationErr(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// FailedStatusError is returned by the waiter when the resource reaches a
// terminal failure status. It carries the status observed on the final poll
// and the failure reason reported by the service, if any.
type FailedStatusError struct {
	ResourceType string
	Status       string
	Reason       string
}

func (e *FailedStatusError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "(unknown)"
	}
	return fmt.Sprintf("unexpected failed state while waiting for %s: final resource state %q, failure reason: %s",
		e.ResourceType, e.Status, reason)
}

// TimeoutExceededError is returned by the waiter when the caller-supplied
// timeout elapses while the resource is still in a non-terminal status.
// The wait may be retried with a larger budget.
type TimeoutExceededError struct {
	ResourceType string
	Status       string
}

func (e *TimeoutExceededError) Error() string {
	return fmt.Sprintf("timeout exceeded while waiting for %s: final resource state %q, increase the timeout and try again",
		e.ResourceType, e.Status)
}

// IsWaiterError reports whether err is a terminal waiter condition, i.e.
// either a *FailedStatusError or a *TimeoutExceededError.
func IsWaiterError(err error) bool {
	var failed *FailedStatusError
	var timeout *TimeoutExceededError
	return errors.As(err, &failed) || errors.As(err, &timeout)
}
