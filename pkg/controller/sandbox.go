// Copyright 2023 Meta Platforms, Inc. and affiliates.
//
// Redistribution and use in source and binary forms, with or without modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and the following disclaimer in the documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or promote products derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/sampleflow/pkg/failure"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox/poller"
	"github.com/immune-gmbh/sampleflow/pkg/storage"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
	"github.com/immune-gmbh/sampleflow/pkg/types"
)

// SubmitRequest is a request to analyze a stored sample in a sandbox.
type SubmitRequest struct {
	SampleID int64
	Sandbox  string

	// EnvironmentID defaults to the default environment of the sandbox.
	EnvironmentID sandbox.EnvironmentID

	// WithChildren uploads the archive members of the sample together
	// with the sample.
	WithChildren bool

	// Wait polls the submission until it terminates and stores a
	// "dynamic" report if it succeeded.
	Wait bool
}

// DynamicReport is the payload of a "dynamic" report.
type DynamicReport struct {
	Sandbox       string                `json:"sandbox"`
	EnvironmentID sandbox.EnvironmentID `json:"environment_id"`
	SubmissionID  sandbox.SubmissionID  `json:"submission_id"`
	State         sandbox.State         `json:"state"`
	Summary       json.RawMessage       `json:"summary,omitempty"`
}

// SandboxJob is a submission to a sandbox made through the Controller.
type SandboxJob struct {
	ID            types.JobID
	SampleID      int64
	Sandbox       string
	EnvironmentID sandbox.EnvironmentID
	SubmissionID  sandbox.SubmissionID

	done       chan struct{}
	locker     sync.Mutex
	state      sandbox.State
	report     *models.Report
	err        error
	finishedAt time.Time
}

func newSandboxJob(req SubmitRequest, env sandbox.EnvironmentID, id sandbox.SubmissionID) *SandboxJob {
	return &SandboxJob{
		ID:            types.NewJobID(),
		SampleID:      req.SampleID,
		Sandbox:       req.Sandbox,
		EnvironmentID: env,
		SubmissionID:  id,
		done:          make(chan struct{}),
		state:         sandbox.State{Code: sandbox.StateUnknown},
	}
}

// Done is closed when the job is finished. It is never closed for
// jobs submitted without SubmitRequest.Wait.
func (job *SandboxJob) Done() <-chan struct{} {
	return job.done
}

// Wait blocks until the job is finished or ctx is done. Returns the
// stored "dynamic" report (nil if the analysis failed) and the error
// of the job.
func (job *SandboxJob) Wait(ctx context.Context) (*models.Report, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-job.done:
	}
	job.locker.Lock()
	defer job.locker.Unlock()
	return job.report, job.err
}

// State returns the last observed state of the submission.
func (job *SandboxJob) State() sandbox.State {
	job.locker.Lock()
	defer job.locker.Unlock()
	return job.state
}

func (job *SandboxJob) setState(state sandbox.State) {
	job.locker.Lock()
	defer job.locker.Unlock()
	job.state = state
}

// FinishedAt returns when the Controller stopped tracking the job. Jobs
// submitted without SubmitRequest.Wait are finished right after the
// submission.
func (job *SandboxJob) FinishedAt() (time.Time, bool) {
	job.locker.Lock()
	defer job.locker.Unlock()
	return job.finishedAt, !job.finishedAt.IsZero()
}

func (job *SandboxJob) finish(report *models.Report, err error) {
	job.locker.Lock()
	job.report, job.err = report, err
	job.finishedAt = time.Now()
	job.locker.Unlock()
	close(job.done)
}

// Sandbox returns the client of the configured sandbox.
func (ctrl *Controller) Sandbox(name string) (sandbox.Client, error) {
	client, ok := ctrl.Sandboxes[name]
	if !ok {
		return nil, ErrUnknownSandbox{Name: name}
	}
	return client, nil
}

// SandboxNames returns the names of the configured sandboxes, sorted.
func (ctrl *Controller) SandboxNames() []string {
	result := make([]string, 0, len(ctrl.Sandboxes))
	for name := range ctrl.Sandboxes {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// SandboxEnvironments returns the environments of the sandbox. The list
// is cached until the next cache purge.
func (ctrl *Controller) SandboxEnvironments(ctx context.Context, name string) ([]sandbox.Environment, error) {
	client, err := ctrl.Sandbox(name)
	if err != nil {
		return nil, err
	}
	if cached, ok := ctrl.EnvironmentCache.Get(name); ok {
		return cached.([]sandbox.Environment), nil
	}

	envs, err := client.ListEnvironments(ctx)
	if err != nil {
		return nil, err
	}
	ctrl.EnvironmentCache.Add(name, envs)
	return envs, nil
}

// SubmitToSandbox uploads the sample to the sandbox. With req.Wait the
// submission is polled in the background and the returned job finishes
// when the analysis terminates.
func (ctrl *Controller) SubmitToSandbox(ctx context.Context, req SubmitRequest) (*SandboxJob, error) {
	ctx = beltctx.WithField(ctx, "sample_id", req.SampleID)
	ctx = beltctx.WithField(ctx, "sandbox", req.Sandbox)
	span, ctx := tracer.StartChildSpanFromCtx(ctx, "SubmitToSandbox")
	defer span.Finish()

	client, err := ctrl.Sandbox(req.Sandbox)
	if err != nil {
		return nil, err
	}
	env, err := ctrl.environment(req.Sandbox, req.EnvironmentID)
	if err != nil {
		return nil, err
	}

	data, sample, err := ctrl.Storage.Get(ctx, req.SampleID)
	if err != nil {
		return nil, ErrReadSample{SampleID: req.SampleID, Err: err}
	}
	submitReq := sandbox.SubmitRequest{
		Sample: sandbox.File{
			Name:   sample.Filename,
			SHA256: sample.SHA256,
			Data:   data,
		},
		EnvironmentID: env,
	}
	if req.WithChildren {
		children, err := ctrl.Storage.Children(ctx, sample.ID)
		if err != nil {
			return nil, ErrReadSample{SampleID: req.SampleID, Err: err}
		}
		for _, child := range children {
			childData, err := ctrl.Storage.GetSampleBytes(ctx, child.SHA256)
			if err != nil {
				return nil, ErrReadSample{SampleID: child.ID, Err: err}
			}
			submitReq.Children = append(submitReq.Children, sandbox.File{
				Name:   child.Filename,
				SHA256: child.SHA256,
				Data:   childData,
			})
		}
	}

	submissionID, err := client.Submit(ctx, submitReq)
	if err != nil {
		return nil, err
	}
	logger.FromCtx(ctx).Debugf("sample %d submitted as '%s' to environment '%s'", sample.ID, submissionID, env)

	return ctrl.startJob(ctx, client, req, env, submissionID)
}

// URLSubmitRequest is a request to analyze a URL in a sandbox.
type URLSubmitRequest struct {
	URL      string
	Sandbox  string
	Uploader string

	// EnvironmentID defaults to the default environment of the sandbox.
	EnvironmentID sandbox.EnvironmentID

	// Wait polls the submission until it terminates and stores a
	// "dynamic" report if it succeeded.
	Wait bool
}

// SubmitURL submits a URL for analysis. The URL is stored as a sample
// (content and filename are the normalized URL), so that the reports
// of the analysis are attached to it.
func (ctrl *Controller) SubmitURL(ctx context.Context, req URLSubmitRequest) (*models.Sample, *SandboxJob, error) {
	ctx = beltctx.WithField(ctx, "sandbox", req.Sandbox)
	span, ctx := tracer.StartChildSpanFromCtx(ctx, "SubmitURL")
	defer span.Finish()

	client, err := ctrl.Sandbox(req.Sandbox)
	if err != nil {
		return nil, nil, err
	}
	urlSubmitter, ok := client.(sandbox.URLSubmitter)
	if !ok {
		return nil, nil, ErrURLUnsupported{Sandbox: req.Sandbox}
	}
	env, err := ctrl.environment(req.Sandbox, req.EnvironmentID)
	if err != nil {
		return nil, nil, err
	}
	targetURL, err := sandbox.NormalizeURL(req.URL)
	if err != nil {
		return nil, nil, failure.New(failure.KindIngest, req.URL, err)
	}

	sample, err := ctrl.Storage.InsertSample(ctx, []byte(targetURL), storage.SampleInput{
		Filename: targetURL,
		Uploader: req.Uploader,
	})
	if err != nil {
		return nil, nil, err
	}
	submissionID, err := urlSubmitter.SubmitURL(ctx, targetURL, env)
	if err != nil {
		return sample, nil, err
	}
	logger.FromCtx(ctx).Debugf("URL sample %d submitted as '%s' to environment '%s'", sample.ID, submissionID, env)

	job, err := ctrl.startJob(ctx, client, SubmitRequest{
		SampleID: sample.ID,
		Sandbox:  req.Sandbox,
		Wait:     req.Wait,
	}, env, submissionID)
	return sample, job, err
}

func (ctrl *Controller) environment(name string, env sandbox.EnvironmentID) (sandbox.EnvironmentID, error) {
	if env == "" {
		env = ctrl.DefaultEnvironments[name]
	}
	if env == "" {
		return "", ErrNoEnvironment{Sandbox: name}
	}
	return env, nil
}

// startJob registers the job of a completed submission and, with
// req.Wait, starts polling it.
func (ctrl *Controller) startJob(
	ctx context.Context,
	client sandbox.Client,
	req SubmitRequest,
	env sandbox.EnvironmentID,
	submissionID sandbox.SubmissionID,
) (*SandboxJob, error) {
	job := newSandboxJob(req, env, submissionID)
	if !req.Wait {
		job.finishedAt = time.Now()
	}
	ctrl.jobsLocker.Lock()
	ctrl.jobs[job.ID] = job
	ctrl.jobsLocker.Unlock()

	if !req.Wait {
		return job, nil
	}

	// The polling outlives the request, so it is bound to the controller
	// context, but keeps the logger of the request.
	pollCtx := beltctx.WithBelt(ctrl.Context, beltctx.Belt(ctx))
	if err := ctrl.launchAsync(pollCtx, func(ctx context.Context) {
		job.finish(ctrl.awaitSandboxJob(ctx, client, job))
	}); err != nil {
		return nil, err
	}
	return job, nil
}

func (ctrl *Controller) awaitSandboxJob(
	ctx context.Context,
	client sandbox.Client,
	job *SandboxJob,
) (*models.Report, error) {
	opts := ctrl.PollerOptions
	opts.OnState = job.setState
	state, err := poller.Poll(ctx, client, job.SubmissionID, job.EnvironmentID, opts)
	if err != nil {
		return nil, err
	}
	job.setState(state)
	if state.Code != sandbox.StateSuccess {
		return nil, fmt.Errorf("the analysis of submission '%s' ended in state '%s': %s", job.SubmissionID, state.RawState, state.Error)
	}

	summary, err := client.FetchResult(ctx, job.SubmissionID, job.EnvironmentID, sandbox.ArtifactJSON)
	if err != nil {
		return nil, err
	}
	dynamicReport := DynamicReport{
		Sandbox:       job.Sandbox,
		EnvironmentID: job.EnvironmentID,
		SubmissionID:  job.SubmissionID,
		State:         state,
	}
	if json.Valid(summary) {
		dynamicReport.Summary = summary
	} else {
		logger.FromCtx(ctx).Warnf("the summary of submission '%s' is not a valid JSON, skipping it", job.SubmissionID)
	}

	payload, err := json.Marshal(dynamicReport)
	if err != nil {
		return nil, ErrSaveReport{SampleID: job.SampleID, Err: err}
	}
	report, err := ctrl.Storage.AppendReport(ctx, job.SampleID, models.ReportTypeDynamic, string(payload))
	if err != nil {
		return nil, ErrSaveReport{SampleID: job.SampleID, Err: err}
	}
	return report, nil
}

// Job returns a sandbox job submitted through this Controller.
func (ctrl *Controller) Job(id types.JobID) (*SandboxJob, error) {
	ctrl.jobsLocker.Lock()
	defer ctrl.jobsLocker.Unlock()
	job, ok := ctrl.jobs[id]
	if !ok {
		return nil, ErrUnknownJob{JobID: id.String()}
	}
	return job, nil
}

// SandboxState fetches the current state of a submission.
func (ctrl *Controller) SandboxState(
	ctx context.Context,
	name string,
	id sandbox.SubmissionID,
	env sandbox.EnvironmentID,
) (sandbox.State, error) {
	client, err := ctrl.Sandbox(name)
	if err != nil {
		return sandbox.State{}, err
	}
	if env == "" {
		env = ctrl.DefaultEnvironments[name]
	}
	return client.PollState(ctx, id, env)
}

// FetchSandboxArtifact downloads an analysis artifact of a submission.
// Compressed artifacts are returned decompressed.
func (ctrl *Controller) FetchSandboxArtifact(
	ctx context.Context,
	name string,
	id sandbox.SubmissionID,
	env sandbox.EnvironmentID,
	artifactType sandbox.ArtifactType,
) ([]byte, error) {
	client, err := ctrl.Sandbox(name)
	if err != nil {
		return nil, err
	}
	if env == "" {
		env = ctrl.DefaultEnvironments[name]
	}
	return client.FetchResult(ctx, id, env, artifactType)
}
