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

package helpers

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/fatih/color"

	"github.com/immune-gmbh/sampleflow/pkg/commands"
	"github.com/immune-gmbh/sampleflow/pkg/controller"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

// WithController builds the pipeline, calls fn and closes the pipeline.
func WithController(
	ctx context.Context,
	cfg commands.Config,
	fn func(ctrl *controller.Controller) error,
) error {
	ctrl, err := cfg.NewController(ctx)
	if err != nil {
		return fmt.Errorf("unable to initialize the pipeline: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.FromCtx(ctx).Errorf("unable to close the pipeline: %v", err)
		}
	}()
	return fn(ctrl)
}

// ResolveSamples returns the samples given their IDs or hex digests.
func ResolveSamples(ctx context.Context, ctrl *controller.Controller, identifiers []string) ([]*models.Sample, error) {
	if len(identifiers) == 0 {
		return nil, commands.ErrArgs{Err: fmt.Errorf("no sample is given")}
	}
	result := make([]*models.Sample, 0, len(identifiers))
	for _, identifier := range identifiers {
		sample, err := ctrl.GetSample(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("unable to find sample '%s': %w", identifier, err)
		}
		result = append(result, sample)
	}
	return result, nil
}

// EnableColors returns true if stdout is a terminal and NO_COLOR is not set.
func EnableColors() bool {
	return !color.NoColor
}
