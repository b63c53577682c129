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

package search

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
)

// Command is the implementation of `commands.Command`.
type Command struct {
	md5            *string
	sha1           *string
	sha256         *string
	sha512         *string
	uploader       *string
	mimeType       *string
	filenamePrefix *string
	parentID       *int64
	deleted        *bool
	limit          *uint
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return ""
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "search for samples"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	cmd.md5 = flag.String("md5", "", "")
	cmd.sha1 = flag.String("sha1", "", "")
	cmd.sha256 = flag.String("sha256", "", "")
	cmd.sha512 = flag.String("sha512", "", "")
	cmd.uploader = flag.String("uploader", "", "")
	cmd.mimeType = flag.String("mime-type", "", "")
	cmd.filenamePrefix = flag.String("filename-prefix", "", "")
	cmd.parentID = flag.Int64("parent", 0, "the ID of the archive the samples were extracted from")
	cmd.deleted = flag.Bool("deleted", false, "search among deleted samples")
	cmd.limit = flag.Uint("limit", 100, "the maximal amount of results, zero means no limit")
}

func optString(s *string) *string {
	if *s == "" {
		return nil
	}
	return s
}

func (cmd Command) filter() storage.FindSampleFilter {
	filter := storage.FindSampleFilter{
		MD5:            optString(cmd.md5),
		SHA1:           optString(cmd.sha1),
		SHA256:         optString(cmd.sha256),
		SHA512:         optString(cmd.sha512),
		Uploader:       optString(cmd.uploader),
		MimeType:       optString(cmd.mimeType),
		FilenamePrefix: optString(cmd.filenamePrefix),
	}
	if *cmd.parentID != 0 {
		filter.ParentID = cmd.parentID
	}
	if *cmd.deleted {
		filter.Deleted = cmd.deleted
	}
	return filter
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("error: too many arguments")}
	}
	filter := cmd.filter()
	if filter.IsEmpty() {
		return commands.ErrArgs{Err: fmt.Errorf("at least one filter is required")}
	}

	return helpers.WithController(ctx, cfg, func(ctrl *controller.Controller) error {
		samples, err := ctrl.Storage.FindSamples(ctx, filter, *cmd.limit)
		if err != nil {
			return fmt.Errorf("unable to perform a search: %w", err)
		}
		if cfg.Format == format.FormatText {
			format.PrintSamples(os.Stdout, samples)
			return nil
		}
		return format.Print(os.Stdout, cfg.Format, samples)
	})
}
