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

package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/format"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/helpers"
	"github.com/immune-gmbh/sampleflow/pkg/commands"
	"github.com/immune-gmbh/sampleflow/pkg/controller"
	"github.com/immune-gmbh/sampleflow/pkg/storage"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

// Command is the implementation of `commands.Command`.
type Command struct {
	uploader *string
	filename *string
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return "<file|-> [<file>...]"
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "store samples and expand the archives among them"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	cmd.uploader = flag.String("uploader", "", "the name of the submitter (defaults to storage.uploader of the config)")
	cmd.filename = flag.String("filename", "", "override the stored file name (only with a single file; required for '-', which reads stdin)")
}

type ingested struct {
	Sample   *models.Sample   `json:"sample"`
	Children []*models.Sample `json:"children,omitempty"`
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) == 0 {
		return commands.ErrArgs{Err: fmt.Errorf("no file is given")}
	}
	if *cmd.filename != "" && len(args) > 1 {
		return commands.ErrArgs{Err: fmt.Errorf("--filename is supported only with a single file")}
	}
	for _, path := range args {
		if path == "-" && (len(args) > 1 || *cmd.filename == "") {
			return commands.ErrArgs{Err: fmt.Errorf("'-' requires --filename and no other files")}
		}
	}
	uploader := *cmd.uploader
	if uploader == "" {
		uploader = cfg.Config.Storage.Uploader
	}

	return helpers.WithController(ctx, cfg, func(ctrl *controller.Controller) error {
		var result []ingested
		for _, path := range args {
			in := storage.SampleInput{
				Filename: *cmd.filename,
				Uploader: uploader,
			}
			var (
				sample   *models.Sample
				children []*models.Sample
				err      error
			)
			if path == "-" {
				sample, children, err = ctrl.IngestReader(ctx, os.Stdin, in)
			} else {
				sample, children, err = ctrl.IngestFile(ctx, path, in)
			}
			if err != nil {
				return fmt.Errorf("unable to ingest '%s': %w", path, err)
			}
			result = append(result, ingested{Sample: sample, Children: children})
		}
		if cfg.IsQuiet {
			return nil
		}
		if cfg.Format == format.FormatText {
			for _, item := range result {
				format.PrintSamples(os.Stdout, append([]*models.Sample{item.Sample}, item.Children...))
			}
			return nil
		}
		return format.Print(os.Stdout, cfg.Format, result)
	})
}
