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

package sandbox_fetch

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/helpers"
	"github.com/immune-gmbh/sampleflow/pkg/commands"
	"github.com/immune-gmbh/sampleflow/pkg/controller"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox"
)

// Command is the implementation of `commands.Command`.
type Command struct {
	environment  *string
	artifactType *string
	output       *string
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return "<sandbox> <submission>"
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "download an analysis artifact of a sandbox submission"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	var types []string
	for _, t := range sandbox.AllArtifactTypes() {
		types = append(types, string(t))
	}
	cmd.environment = flag.String("environment", "", "the analysis environment (defaults to default_environment of the sandbox)")
	cmd.artifactType = flag.String("type", string(sandbox.ArtifactJSON), "artifact type: "+strings.Join(types, ", "))
	cmd.output = flag.StringP("output", "o", "", "write the artifact to the file instead of stdout")
}

func (cmd Command) parseArtifactType() (sandbox.ArtifactType, error) {
	for _, t := range sandbox.AllArtifactTypes() {
		if strings.EqualFold(string(t), *cmd.artifactType) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown artifact type '%s'", *cmd.artifactType)
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) != 2 {
		return commands.ErrArgs{Err: fmt.Errorf("expected a sandbox and a submission, but received %d arguments", len(args))}
	}
	artifactType, err := cmd.parseArtifactType()
	if err != nil {
		return commands.ErrArgs{Err: err}
	}

	return helpers.WithController(ctx, cfg, func(ctrl *controller.Controller) error {
		data, err := ctrl.FetchSandboxArtifact(
			ctx,
			args[0],
			sandbox.SubmissionID(args[1]),
			sandbox.EnvironmentID(*cmd.environment),
			artifactType,
		)
		if err != nil {
			return fmt.Errorf("unable to fetch the %s artifact of '%s': %w", artifactType, args[1], err)
		}
		if *cmd.output == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(*cmd.output, data, 0640); err != nil {
			return fmt.Errorf("unable to write '%s': %w", *cmd.output, err)
		}
		return nil
	})
}
