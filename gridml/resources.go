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
	"time"

	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/logging"
)

// This file is the hand-written counterpart of the schema-generated
// resource bindings: a representative slice of the control plane's resource
// types, each with explicit, statically-typed fields. The full generated
// set follows exactly the same patterns.

// TrainingJobsLogGroup is the log group training jobs write to; each worker
// node owns one stream named "<job name>/<node suffix>".
const TrainingJobsLogGroup = "/gridml/TrainingJobs"

// TrainingJob statuses.
const (
	TrainingJobStatusPending    = "Pending"
	TrainingJobStatusInProgress = "InProgress"
	TrainingJobStatusStopping   = "Stopping"
	TrainingJobStatusCompleted  = "Completed"
	TrainingJobStatusStopped    = "Stopped"
	TrainingJobStatusFailed     = "Failed"
)

var (
	trainingJobSuccess = stringset.NewFromSlice(TrainingJobStatusCompleted, TrainingJobStatusStopped)
	trainingJobFailure = stringset.NewFromSlice(TrainingJobStatusFailed)
)

// ResourceConfig describes the compute a training job runs on.
type ResourceConfig struct {
	InstanceType   string `mapstructure:"instance_type"`
	InstanceCount  int    `mapstructure:"instance_count"`
	VolumeSizeInGB int    `mapstructure:"volume_size_in_gb"`
}

// TrainingJob is a remote model-training run.
type TrainingJob struct {
	h *Handle

	TrainingJobName   string         `mapstructure:"training_job_name"`
	TrainingJobArn    string         `mapstructure:"training_job_arn"`
	TrainingJobStatus string         `mapstructure:"training_job_status"`
	FailureReason     string         `mapstructure:"failure_reason"`
	ResourceConfig    ResourceConfig `mapstructure:"resource_config"`
	CreationTime      int64          `mapstructure:"creation_time"`
	TrainingEndTime   int64          `mapstructure:"training_end_time"`
	LastModifiedTime  int64          `mapstructure:"last_modified_time"`
}

// CreateTrainingJob submits a new training job and returns its handle.
//
// The create call is fire-and-acknowledge: the returned job reflects one
// describe call made right after, and completion is observed via Wait.
// args carries the remaining operation input, keyed by wire names.
func (h *Handle) CreateTrainingJob(ctx context.Context, name string, args map[string]any) (*TrainingJob, error) {
	if name == "" {
		return nil, validationErr("a training job name is required")
	}
	in := map[string]any{"TrainingJobName": name}
	for k, v := range args {
		in[k] = v
	}
	logging.Debugf(ctx, "creating training job %q", name)
	if _, err := h.raw.Call(ctx, "CreateTrainingJob", in); err != nil {
		return nil, err
	}
	return h.GetTrainingJob(ctx, name)
}

// GetTrainingJob describes an existing training job.
func (h *Handle) GetTrainingJob(ctx context.Context, name string) (*TrainingJob, error) {
	if name == "" {
		return nil, validationErr("a training job name is required")
	}
	j := &TrainingJob{h: h, TrainingJobName: name}
	if err := j.Refresh(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

// ListTrainingJobs returns an iterator over all training jobs matching the
// given wire-keyed filters (may be nil).
func (h *Handle) ListTrainingJobs(filters map[string]any) *ResourceIterator[*TrainingJob] {
	call := ListCall{
		Op:           "ListTrainingJobs",
		Args:         filters,
		SummariesKey: "TrainingJobSummaries",
	}
	return NewResourceIterator(h.raw, call, func(init map[string]any) (*TrainingJob, error) {
		j := &TrainingJob{h: h}
		return j, decodeShape(init, j)
	})
}

// Refresh re-fetches the job's full detail, replacing the local state
// wholesale so fields the service stopped reporting do not go stale.
func (j *TrainingJob) Refresh(ctx context.Context) error {
	resp, err := j.h.raw.Call(ctx, "DescribeTrainingJob", map[string]any{
		"TrainingJobName": j.TrainingJobName,
	})
	if err != nil {
		return err
	}
	fresh := TrainingJob{h: j.h, TrainingJobName: j.TrainingJobName}
	if err := decodeShape(TransformKeys(resp), &fresh); err != nil {
		return err
	}
	*j = fresh
	return nil
}

// StatusInfo implements Pollable.
func (j *TrainingJob) StatusInfo() (string, string) {
	return j.TrainingJobStatus, j.FailureReason
}

// Stop asks the control plane to stop the job. The job transitions through
// Stopping to Stopped; observe that via Wait.
func (j *TrainingJob) Stop(ctx context.Context) error {
	_, err := j.h.raw.Call(ctx, "StopTrainingJob", map[string]any{
		"TrainingJobName": j.TrainingJobName,
	})
	return err
}

// Delete removes the job's record remotely. Jobs still running must be
// stopped first; the control plane rejects deleting an active job.
func (j *TrainingJob) Delete(ctx context.Context) error {
	_, err := j.h.raw.Call(ctx, "DeleteTrainingJob", map[string]any{
		"TrainingJobName": j.TrainingJobName,
	})
	return err
}

// Wait polls until the job completes or stops. It returns a
// *FailedStatusError if the job fails and a *TimeoutExceededError if
// timeout (> 0) elapses first.
func (j *TrainingJob) Wait(ctx context.Context, pollInterval, timeout time.Duration) error {
	return Wait(ctx, j, j.waitConfig(pollInterval, timeout))
}

// WaitWithLogs is Wait with a live tail of the job's log streams: each
// newly visible event is handed to sink (defaulting to the context logger)
// once per poll tick.
func (j *TrainingJob) WaitWithLogs(ctx context.Context, pollInterval, timeout time.Duration, sink LogSink) error {
	reader := j.h.TailLogs(TrainingJobsLogGroup, j.TrainingJobName+"/", j.ResourceConfig.InstanceCount)
	return WaitWithLogs(ctx, j, j.waitConfig(pollInterval, timeout), reader, sink)
}

func (j *TrainingJob) waitConfig(pollInterval, timeout time.Duration) WaitConfig {
	return WaitConfig{
		ResourceType: "TrainingJob",
		Success:      trainingJobSuccess,
		Failure:      trainingJobFailure,
		PollInterval: pollInterval,
		Timeout:      timeout,
	}
}

// Endpoint statuses.
const (
	EndpointStatusCreating     = "Creating"
	EndpointStatusUpdating     = "Updating"
	EndpointStatusInService    = "InService"
	EndpointStatusDeleting     = "Deleting"
	EndpointStatusOutOfService = "OutOfService"
	EndpointStatusFailed       = "Failed"
)

var (
	endpointSuccess = stringset.NewFromSlice(EndpointStatusInService)
	endpointFailure = stringset.NewFromSlice(EndpointStatusFailed, EndpointStatusOutOfService)
)

// Endpoint is a deployed real-time inference endpoint.
type Endpoint struct {
	h *Handle

	EndpointName       string `mapstructure:"endpoint_name"`
	EndpointArn        string `mapstructure:"endpoint_arn"`
	EndpointConfigName string `mapstructure:"endpoint_config_name"`
	EndpointStatus     string `mapstructure:"endpoint_status"`
	FailureReason      string `mapstructure:"failure_reason"`
	CreationTime       int64  `mapstructure:"creation_time"`
	LastModifiedTime   int64  `mapstructure:"last_modified_time"`
}

// CreateEndpoint deploys an endpoint from an endpoint config and returns
// its handle. Use Wait to observe it reaching InService.
func (h *Handle) CreateEndpoint(ctx context.Context, name, configName string) (*Endpoint, error) {
	if name == "" || configName == "" {
		return nil, validationErr("endpoint and endpoint config names are required")
	}
	_, err := h.raw.Call(ctx, "CreateEndpoint", map[string]any{
		"EndpointName":       name,
		"EndpointConfigName": configName,
	})
	if err != nil {
		return nil, err
	}
	return h.GetEndpoint(ctx, name)
}

// GetEndpoint describes an existing endpoint.
func (h *Handle) GetEndpoint(ctx context.Context, name string) (*Endpoint, error) {
	if name == "" {
		return nil, validationErr("an endpoint name is required")
	}
	e := &Endpoint{h: h, EndpointName: name}
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEndpoints returns an iterator over all endpoints matching the given
// wire-keyed filters (may be nil).
func (h *Handle) ListEndpoints(filters map[string]any) *ResourceIterator[*Endpoint] {
	call := ListCall{
		Op:           "ListEndpoints",
		Args:         filters,
		SummariesKey: "Endpoints",
	}
	return NewResourceIterator(h.raw, call, func(init map[string]any) (*Endpoint, error) {
		e := &Endpoint{h: h}
		return e, decodeShape(init, e)
	})
}

// Refresh re-fetches the endpoint's full detail, replacing the local state
// wholesale.
func (e *Endpoint) Refresh(ctx context.Context) error {
	resp, err := e.h.raw.Call(ctx, "DescribeEndpoint", map[string]any{
		"EndpointName": e.EndpointName,
	})
	if err != nil {
		return err
	}
	fresh := Endpoint{h: e.h, EndpointName: e.EndpointName}
	if err := decodeShape(TransformKeys(resp), &fresh); err != nil {
		return err
	}
	*e = fresh
	return nil
}

// StatusInfo implements Pollable.
func (e *Endpoint) StatusInfo() (string, string) {
	return e.EndpointStatus, e.FailureReason
}

// Update points the endpoint at a new endpoint config and refreshes the
// local state. The rollout completes asynchronously; use Wait.
func (e *Endpoint) Update(ctx context.Context, configName string) error {
	if configName == "" {
		return validationErr("an endpoint config name is required")
	}
	_, err := e.h.raw.Call(ctx, "UpdateEndpoint", map[string]any{
		"EndpointName":       e.EndpointName,
		"EndpointConfigName": configName,
	})
	if err != nil {
		return err
	}
	return e.Refresh(ctx)
}

// Delete tears the endpoint down remotely. The local handle is left as-is;
// discard it after a successful delete.
func (e *Endpoint) Delete(ctx context.Context) error {
	_, err := e.h.raw.Call(ctx, "DeleteEndpoint", map[string]any{
		"EndpointName": e.EndpointName,
	})
	return err
}

// Wait polls until the endpoint is InService.
func (e *Endpoint) Wait(ctx context.Context, pollInterval, timeout time.Duration) error {
	return Wait(ctx, e, WaitConfig{
		ResourceType: "Endpoint",
		Success:      endpointSuccess,
		Failure:      endpointFailure,
		PollInterval: pollInterval,
		Timeout:      timeout,
	})
}

// Model is a packaged, deployable model artifact. Models have no lifecycle
// status: they exist until deleted.
type Model struct {
	h *Handle

	ModelName    string `mapstructure:"model_name"`
	ModelArn     string `mapstructure:"model_arn"`
	CreationTime int64  `mapstructure:"creation_time"`
}

// GetModel describes an existing model.
func (h *Handle) GetModel(ctx context.Context, name string) (*Model, error) {
	if name == "" {
		return nil, validationErr("a model name is required")
	}
	m := &Model{h: h, ModelName: name}
	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// ListModels returns an iterator over all models matching the given
// wire-keyed filters (may be nil).
func (h *Handle) ListModels(filters map[string]any) *ResourceIterator[*Model] {
	call := ListCall{
		Op:           "ListModels",
		Args:         filters,
		SummariesKey: "Models",
	}
	return NewResourceIterator(h.raw, call, func(init map[string]any) (*Model, error) {
		m := &Model{h: h}
		return m, decodeShape(init, m)
	})
}

// ListModelNames returns an iterator over bare model names, exercising the
// primitive-element iterator path.
func (h *Handle) ListModelNames(filters map[string]any) *ResourceIterator[string] {
	call := ListCall{
		Op:           "ListModelNames",
		Args:         filters,
		SummariesKey: "ModelNames",
	}
	return NewResourceIterator[string](h.raw, call, nil)
}

// Refresh re-fetches the model's full detail, replacing the local state
// wholesale.
func (m *Model) Refresh(ctx context.Context) error {
	resp, err := m.h.raw.Call(ctx, "DescribeModel", map[string]any{
		"ModelName": m.ModelName,
	})
	if err != nil {
		return err
	}
	fresh := Model{h: m.h, ModelName: m.ModelName}
	if err := decodeShape(TransformKeys(resp), &fresh); err != nil {
		return err
	}
	*m = fresh
	return nil
}

// Delete removes the model remotely.
func (m *Model) Delete(ctx context.Context) error {
	_, err := m.h.raw.Call(ctx, "DeleteModel", map[string]any{
		"ModelName": m.ModelName,
	})
	return err
}
