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

package list_engines

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/format"
	"github.com/immune-gmbh/sampleflow/pkg/commands"
	"github.com/immune-gmbh/sampleflow/pkg/engines"
	"github.com/immune-gmbh/sampleflow/pkg/scanner"
)

// Command is the implementation of `commands.Command`.
type Command struct {
	check *bool
}

// Usage prints the syntax of arguments for this command
func (cmd Command) Usage() string {
	return ""
}

// Description explains what this verb commands to do
func (cmd Command) Description() string {
	return "list the supported engine kinds and the configured roster"
}

// SetupFlagSet is called to allow the command implementation
// to setup which option flags it has.
func (cmd *Command) SetupFlagSet(flag *pflag.FlagSet) {
	cmd.check = flag.Bool("check", false, "build every engine of the roster to validate the configuration")
}

type engineEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type listing struct {
	Kinds  []string      `json:"kinds"`
	Roster []engineEntry `json:"roster"`
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd Command) Execute(ctx context.Context, cfg commands.Config, args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("error: too many arguments")}
	}

	registry, err := engines.NewRegistryWithKnownEngines()
	if err != nil {
		return err
	}
	if *cmd.check {
		if _, err := scanner.New(ctx, registry, cfg.Config.Engines, scanner.Options{}); err != nil {
			return fmt.Errorf("invalid engine roster: %w", err)
		}
	}

	result := listing{Kinds: registry.Kinds(), Roster: []engineEntry{}}
	for _, engine := range cfg.Config.Engines {
		result.Roster = append(result.Roster, engineEntry{Name: engine.Name, Kind: engine.Kind})
	}
	if cfg.Format == format.FormatText {
		fmt.Printf("kinds:")
		for _, kind := range result.Kinds {
			fmt.Printf(" %s", kind)
		}
		fmt.Printf("\n")
		for _, engine := range result.Roster {
			fmt.Printf("%s\t%s\n", engine.Name, engine.Kind)
		}
		return nil
	}
	return format.Print(os.Stdout, cfg.Format, result)
}
