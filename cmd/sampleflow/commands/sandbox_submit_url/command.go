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

package sandbox_submit_url

import (
	"context"
	"fmt"
	"os"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/pflag"

	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/format"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/helpers"
	"github.com/immune-gmbh/sampleflow/pkg/commands"
	"github.com/immune-gmbh/sampleflow/pkg/controller"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

// Command is the implementation of `commands.Command`.
type Command struct {
	environment *string
	uploader    *string
	wait        *bool
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return "<sandbox> <url> [<url>...]"
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "submit URLs to a sandbox"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	cmd.environment = flag.String("environment", "", "the analysis environment (defaults to default_environment of the sandbox)")
	cmd.uploader = flag.String("uploader", "", "the name of the submitter (defaults to storage.uploader of the config)")
	cmd.wait = flag.Bool("wait", false, "wait for the analyses and store their summaries as dynamic reports")
}

type submission struct {
	JobID         string                `json:"job_id"`
	Sample        *models.Sample        `json:"sample"`
	EnvironmentID sandbox.EnvironmentID `json:"environment_id"`
	SubmissionID  sandbox.SubmissionID  `json:"submission_id"`
	State         *sandbox.State        `json:"state,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) < 2 {
		return commands.ErrArgs{Err: fmt.Errorf("expected a sandbox and at least one URL, but received %d arguments", len(args))}
	}
	sandboxName := args[0]
	uploader := *cmd.uploader
	if uploader == "" {
		uploader = cfg.Config.Storage.Uploader
	}

	return helpers.WithController(ctx, cfg, func(ctrl *controller.Controller) error {
		var (
			jobs   []*controller.SandboxJob
			result []submission
		)
		for _, targetURL := range args[1:] {
			sample, job, err := ctrl.SubmitURL(ctx, controller.URLSubmitRequest{
				URL:           targetURL,
				Sandbox:       sandboxName,
				Uploader:      uploader,
				EnvironmentID: sandbox.EnvironmentID(*cmd.environment),
				Wait:          *cmd.wait,
			})
			if err != nil {
				return fmt.Errorf("unable to submit '%s' to '%s': %w", targetURL, sandboxName, err)
			}
			logger.FromCtx(ctx).Infof("submitted URL sample %d as '%s'", sample.ID, job.SubmissionID)
			jobs = append(jobs, job)
			result = append(result, submission{
				JobID:         job.ID.String(),
				Sample:        sample,
				EnvironmentID: job.EnvironmentID,
				SubmissionID:  job.SubmissionID,
			})
		}

		var failed int
		if *cmd.wait {
			for idx, job := range jobs {
				_, err := job.Wait(ctx)
				state := job.State()
				result[idx].State = &state
				if err != nil {
					failed++
					result[idx].Error = err.Error()
				}
			}
		}
		if !cfg.IsQuiet {
			if err := format.Print(os.Stdout, cfg.Format, result); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d analyses failed", failed, len(jobs))
		}
		return nil
	})
}
