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
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/pkg/field"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox"
)

// Options are the tunables of Poll.
type Options struct {
	// Interval is the delay before the second poll.
	Interval time.Duration

	// MaxInterval caps the delay between polls.
	MaxInterval time.Duration

	// Multiplier is the growth factor of the delay. Values below 1 mean 2.
	Multiplier float64

	// MaxAttempts is the maximal amount of polls. Zero means unlimited.
	MaxAttempts int

	// Timeout bounds the whole polling. Zero means no bound except the
	// one of the context.
	Timeout time.Duration

	// OnState is called with every observed state.
	OnState func(sandbox.State)
}

// OptionsFromConfig converts the [poller] configuration section.
func OptionsFromConfig(cfg config.PollerConfig) Options {
	return Options{
		Interval:    cfg.Interval.Std(),
		MaxInterval: cfg.MaxInterval.Std(),
		Multiplier:  2,
		MaxAttempts: cfg.MaxAttempts,
		Timeout:     cfg.Timeout.Std(),
	}
}

// ErrMaxAttempts implements "error", for the description see Error.
type ErrMaxAttempts struct {
	Attempts  int
	LastState sandbox.State
	LastErr   error
}

func (err ErrMaxAttempts) Error() string {
	if err.LastErr != nil {
		return fmt.Sprintf("submission has not finished after %d polls, last error: %v", err.Attempts, err.LastErr)
	}
	return fmt.Sprintf("submission has not finished after %d polls, last state: '%s'", err.Attempts, err.LastState.RawState)
}

func (err ErrMaxAttempts) Unwrap() error {
	return err.LastErr
}

func canRetry(err error) bool {
	var retrier interface {
		CanRetry() bool
	}
	return errors.As(err, &retrier) && retrier.CanRetry()
}

// Poll polls the state of the submission until it reaches a terminal state
// (SUCCESS or ERROR) and returns it. Retryable errors consume an attempt,
// any other error is returned immediately.
func Poll(
	ctx context.Context,
	client sandbox.Client,
	id sandbox.SubmissionID,
	env sandbox.EnvironmentID,
	opts Options,
) (sandbox.State, error) {
	ctx = beltctx.WithFields(
		ctx,
		field.Map[string]{
			"sandbox":      client.Backend(),
			"submissionID": string(id),
			"environment":  string(env),
		},
	)
	log := logger.FromCtx(ctx)

	if opts.Timeout > 0 {
		var cancelFn context.CancelFunc
		ctx, cancelFn = context.WithTimeout(ctx, opts.Timeout)
		defer cancelFn()
	}
	multiplier := opts.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}

	var (
		delay     = opts.Interval
		lastState sandbox.State
		lastErr   error
	)
	for attempt := 1; ; attempt++ {
		state, err := client.PollState(ctx, id, env)
		switch {
		case err == nil:
			lastState, lastErr = state, nil
			log.Debugf("poll #%d: state '%s' (%s)", attempt, state.RawState, state.Code)
			if opts.OnState != nil {
				opts.OnState(state)
			}
			if state.Code.IsTerminal() {
				return state, nil
			}
		case ctx.Err() != nil:
			return lastState, ctx.Err()
		case canRetry(err):
			lastErr = err
			log.Warnf("poll #%d failed: %v", attempt, err)
		default:
			return lastState, err
		}

		if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
			return lastState, ErrMaxAttempts{Attempts: attempt, LastState: lastState, LastErr: lastErr}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastState, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
		if opts.MaxInterval > 0 && delay > opts.MaxInterval {
			delay = opts.MaxInterval
		}
	}
}
