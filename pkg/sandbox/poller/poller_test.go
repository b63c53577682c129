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

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox"
)

type scriptedClient struct {
	locker sync.Mutex
	script []any
	polls  int
}

func (c *scriptedClient) Backend() string { return "scripted" }

func (c *scriptedClient) Submit(ctx context.Context, req sandbox.SubmitRequest) (sandbox.SubmissionID, error) {
	return sandbox.SubmissionID(req.Sample.SHA256), nil
}

func (c *scriptedClient) PollState(ctx context.Context, id sandbox.SubmissionID, env sandbox.EnvironmentID) (sandbox.State, error) {
	c.locker.Lock()
	defer c.locker.Unlock()
	step := c.script[c.polls]
	if c.polls < len(c.script)-1 {
		c.polls++
	}
	switch step := step.(type) {
	case error:
		return sandbox.State{}, step
	case string:
		code := sandbox.StateUnknown
		for _, known := range []sandbox.StateCode{sandbox.StateInQueue, sandbox.StateInProgress, sandbox.StateSuccess, sandbox.StateError} {
			if string(known) == step {
				code = known
			}
		}
		return sandbox.State{Code: code, RawState: step}, nil
	}
	panic("unexpected step")
}

func (c *scriptedClient) FetchResult(ctx context.Context, id sandbox.SubmissionID, env sandbox.EnvironmentID, artifactType sandbox.ArtifactType) ([]byte, error) {
	return nil, nil
}

func (c *scriptedClient) ListEnvironments(ctx context.Context) ([]sandbox.Environment, error) {
	return nil, nil
}

func fastOptions() Options {
	return Options{
		Interval:    time.Millisecond,
		MaxInterval: 4 * time.Millisecond,
		MaxAttempts: 10,
		Timeout:     5 * time.Second,
	}
}

func TestPollUntilSuccess(t *testing.T) {
	c := &scriptedClient{script: []any{"IN_QUEUE", "IN_PROGRESS", "SUCCESS"}}
	var seen []string
	opts := fastOptions()
	opts.OnState = func(state sandbox.State) {
		seen = append(seen, state.RawState)
	}

	state, err := Poll(context.Background(), c, "id", "100", opts)
	require.NoError(t, err)
	require.Equal(t, sandbox.StateSuccess, state.Code)
	require.Equal(t, []string{"IN_QUEUE", "IN_PROGRESS", "SUCCESS"}, seen)
}

func TestPollLiteralSuccessOnly(t *testing.T) {
	c := &scriptedClient{script: []any{"IN_QUEUE", "success", "Success"}}
	_, err := Poll(context.Background(), c, "id", "100", fastOptions())
	require.ErrorAs(t, err, &ErrMaxAttempts{})

	var maxErr ErrMaxAttempts
	require.True(t, errors.As(err, &maxErr))
	require.Equal(t, 10, maxErr.Attempts)
	require.Equal(t, sandbox.StateUnknown, maxErr.LastState.Code)
	require.Equal(t, "Success", maxErr.LastState.RawState)
}

func TestPollErrorState(t *testing.T) {
	c := &scriptedClient{script: []any{"IN_PROGRESS", "ERROR"}}
	state, err := Poll(context.Background(), c, "id", "100", fastOptions())
	require.NoError(t, err)
	require.Equal(t, sandbox.StateError, state.Code)
}

func TestPollRetriesTransportErrors(t *testing.T) {
	transportErr := failure.New(failure.KindSandboxTransport, "scripted", errors.New("connection reset"))
	c := &scriptedClient{script: []any{transportErr, "IN_PROGRESS", transportErr, "SUCCESS"}}
	state, err := Poll(context.Background(), c, "id", "100", fastOptions())
	require.NoError(t, err)
	require.Equal(t, sandbox.StateSuccess, state.Code)
}

func TestPollStopsOnLogicalError(t *testing.T) {
	logicalErr := failure.New(failure.KindSandboxLogical, "scripted", sandbox.ErrResponse{Code: -1, Message: "no public key"})
	c := &scriptedClient{script: []any{"IN_QUEUE", logicalErr, "SUCCESS"}}
	state, err := Poll(context.Background(), c, "id", "100", fastOptions())
	require.True(t, failure.IsKind(err, failure.KindSandboxLogical))
	require.Equal(t, "IN_QUEUE", state.RawState)
	require.Equal(t, 2, c.polls)
}

func TestPollTimeout(t *testing.T) {
	c := &scriptedClient{script: []any{"IN_PROGRESS"}}
	opts := fastOptions()
	opts.MaxAttempts = 0
	opts.Timeout = 30 * time.Millisecond

	start := time.Now()
	state, err := Poll(context.Background(), c, "id", "100", opts)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, "IN_PROGRESS", state.RawState)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.DefaultConfig().Poller)
	require.Equal(t, 10*time.Second, opts.Interval)
	require.Equal(t, 2*time.Minute, opts.MaxInterval)
	require.Equal(t, 120, opts.MaxAttempts)
	require.Equal(t, 2*time.Hour, opts.Timeout)
	require.Equal(t, float64(2), opts.Multiplier)
}
