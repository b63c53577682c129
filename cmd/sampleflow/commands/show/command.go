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

package show

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/format"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/helpers"
	"github.com/immune-gmbh/sampleflow/pkg/commands"
	"github.com/immune-gmbh/sampleflow/pkg/controller"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

// Command is the implementation of `commands.Command`.
type Command struct {
	withReports *bool
	parse       *bool
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return "<sample>"
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "show the metadata, the children and the reports of a sample"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	cmd.withReports = flag.Bool("reports", true, "include the reports")
	cmd.parse = flag.Bool("parse", false, "include JSON reports as structured values")
}

type details struct {
	Sample   *models.Sample      `json:"sample"`
	Children []*models.Sample    `json:"children,omitempty"`
	Reports  []models.ReportView `json:"reports,omitempty"`
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) != 1 {
		return commands.ErrArgs{Err: fmt.Errorf("expected exactly one sample, but received %d", len(args))}
	}

	return helpers.WithController(ctx, cfg, func(ctrl *controller.Controller) error {
		sample, err := ctrl.GetSample(ctx, args[0])
		if err != nil {
			return fmt.Errorf("unable to find sample '%s': %w", args[0], err)
		}
		result := details{Sample: sample}

		result.Children, err = ctrl.Storage.Children(ctx, sample.ID)
		if err != nil {
			return fmt.Errorf("unable to list children of sample %d: %w", sample.ID, err)
		}

		if *cmd.withReports {
			reports, err := ctrl.Storage.ReportsForSample(ctx, sample.ID)
			if err != nil {
				return fmt.Errorf("unable to list reports of sample %d: %w", sample.ID, err)
			}
			for _, report := range reports {
				result.Reports = append(result.Reports, report.View(*cmd.parse))
			}
		}

		return format.Print(os.Stdout, cfg.Format, result)
	})
}
