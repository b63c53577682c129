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

package reports

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
	reportType *string
	latest     *bool
	parse      *bool
	limit      *uint
	offset     *uint
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return "[<sample>]"
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "list the reports of a sample, or all the reports of a type"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	cmd.reportType = flag.String("type", "", "report type: static, antivirus, dynamic or vulnerability")
	cmd.latest = flag.Bool("latest", false, "only the latest report of the type (requires a sample and --type)")
	cmd.parse = flag.Bool("parse", false, "include JSON reports as structured values")
	cmd.limit = flag.Uint("limit", 50, "page size of a listing by type")
	cmd.offset = flag.Uint("offset", 0, "page offset of a listing by type")
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) > 1 {
		return commands.ErrArgs{Err: fmt.Errorf("error: too many arguments")}
	}
	var reportType models.ReportType
	if *cmd.reportType != "" {
		var err error
		reportType, err = models.ParseReportType(*cmd.reportType)
		if err != nil {
			return commands.ErrArgs{Err: err}
		}
	}
	if len(args) == 0 && reportType == "" {
		return commands.ErrArgs{Err: fmt.Errorf("either a sample or --type is required")}
	}
	if *cmd.latest && (len(args) == 0 || reportType == "") {
		return commands.ErrArgs{Err: fmt.Errorf("--latest requires a sample and --type")}
	}

	return helpers.WithController(ctx, cfg, func(ctrl *controller.Controller) error {
		reports, err := cmd.fetch(ctx, ctrl, args, reportType)
		if err != nil {
			return err
		}
		return format.PrintReports(os.Stdout, cfg.Format, reports, *cmd.parse)
	})
}

func (cmd Command) fetch(
	ctx context.Context,
	ctrl *controller.Controller,
	args []string,
	reportType models.ReportType,
) ([]*models.Report, error) {
	if len(args) == 0 {
		reports, err := ctrl.Storage.ReportsByType(ctx, reportType, *cmd.limit, *cmd.offset)
		if err != nil {
			return nil, fmt.Errorf("unable to list %s reports: %w", reportType, err)
		}
		return reports, nil
	}

	sample, err := ctrl.GetSample(ctx, args[0])
	if err != nil {
		return nil, fmt.Errorf("unable to find sample '%s': %w", args[0], err)
	}
	if *cmd.latest {
		report, err := ctrl.Storage.LatestReport(ctx, sample.ID, reportType)
		if err != nil {
			return nil, err
		}
		return []*models.Report{report}, nil
	}

	all, err := ctrl.Storage.ReportsForSample(ctx, sample.ID)
	if err != nil {
		return nil, fmt.Errorf("unable to list reports of sample %d: %w", sample.ID, err)
	}
	if reportType == "" {
		return all, nil
	}
	var result []*models.Report
	for _, report := range all {
		if report.Type == reportType {
			result = append(result, report)
		}
	}
	return result, nil
}
