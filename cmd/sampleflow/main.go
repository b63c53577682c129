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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-sql-driver/mysql"
	"github.com/spf13/pflag"

	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/delete_sample"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/ingest"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/list_engines"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/reports"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/sandbox_envs"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/sandbox_fetch"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/sandbox_state"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/sandbox_submit"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/sandbox_submit_url"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/scan"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/search"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/show"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/similar"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/commands/static"
	"github.com/immune-gmbh/sampleflow/cmd/sampleflow/format"
	"github.com/immune-gmbh/sampleflow/pkg/commands"
	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/observability"
	"github.com/immune-gmbh/sampleflow/pkg/storage"
)

var (
	knownCommands = map[string]commands.Command{
		"delete":             &delete_sample.Command{},
		"engines":            &list_engines.Command{},
		"ingest":             &ingest.Command{},
		"reports":            &reports.Command{},
		"sandbox-envs":       &sandbox_envs.Command{},
		"sandbox-fetch":      &sandbox_fetch.Command{},
		"sandbox-state":      &sandbox_state.Command{},
		"sandbox-submit":     &sandbox_submit.Command{},
		"sandbox-submit-url": &sandbox_submit_url.Command{},
		"scan":               &scan.Command{},
		"search":             &search.Command{},
		"show":               &show.Command{},
		"similar":            &similar.Command{},
		"static":             &static.Command{},
	}
	exitCode = 0
)

func usage(flagSet *pflag.FlagSet) {
	flagSet.Usage()
	exitCode = 2 // the standard Go's exit-code on invalid flags
}

type flags struct {
	configPath     *string
	isQuiet        *bool
	format         *string
	loggingLevel   logger.Level
	tracePrefix    *string
	rdbmsDriver    *string
	rdbmsDSN       *string
	blobStorageURL *string
}

func setupFlag() (*pflag.FlagSet, *flags) {
	var f flags

	flagSet := pflag.NewFlagSet("sampleflow", pflag.ExitOnError)
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "syntax: sampleflow [options] <command> [command options] {arguments}\n")
		_, _ = fmt.Fprintf(os.Stderr, "\nPossible commands:\n")

		// sort commands
		var commandList []string
		for commandName := range knownCommands {
			commandList = append(commandList, commandName)
		}
		sort.Strings(commandList)

		// display commands
		for _, commandName := range commandList {
			command := knownCommands[commandName]
			_, _ = fmt.Fprintf(os.Stderr, "    sampleflow %-40s %s\n",
				fmt.Sprintf("%s %s", commandName, command.Usage()), command.Description())
		}
		_, _ = fmt.Fprintf(os.Stderr, "\nOptions:\n")

		// display options
		flagSet.PrintDefaults()
	}

	f.loggingLevel = logger.LevelWarning // the default value
	flagSet.Var(&f.loggingLevel, "log-level", "logging level (overrides log.level of the config)")
	f.configPath = flagSet.StringP("config", "c", "", "path to the TOML configuration file; built-in defaults are used if empty")
	f.isQuiet = flagSet.BoolP("quiet", "q", false, "suppress stdout")
	f.format = flagSet.String("format", format.FormatText, "output format: "+strings.Join(format.Formats(), ", "))
	f.tracePrefix = flagSet.String("trace-prefix", "", "prepend traceID with this value; it is useful to understand which automation was responsible for this run")
	f.rdbmsDriver = flagSet.String("rdbms-driver", "", "overrides storage.rdbms_driver: sqlite3 or mysql")
	f.rdbmsDSN = flagSet.String("rdbms-dsn", "", "overrides storage.rdbms_dsn")
	f.blobStorageURL = flagSet.String("blob-storage-url", "", "overrides storage.blob_storage_url: fs://<dir> or s3://<bucket>/<prefix>")
	return flagSet, &f
}

// defaultMySQLDSN builds the DSN from the environment.
func defaultMySQLDSN() string {
	dbAddr := os.Getenv("DBHOST")
	if dbAddr == "" {
		dbAddr = "127.0.0.1:3306"
	}
	return (&mysql.Config{
		User:                 os.Getenv("DBUSER"),
		Passwd:               os.Getenv("DBPASS"),
		Net:                  "tcp",
		Addr:                 dbAddr,
		DBName:               "sampleflow",
		ParseTime:            true,
		AllowNativePasswords: true,
	}).FormatDSN()
}

func loadConfig(flagSet *pflag.FlagSet, f *flags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *f.configPath != "" {
		var err error
		cfg, err = config.Load(*f.configPath)
		if err != nil {
			return nil, err
		}
	}

	if flagSet.Changed("rdbms-driver") {
		cfg.Storage.RDBMSDriver = *f.rdbmsDriver
		if !flagSet.Changed("rdbms-dsn") && cfg.Storage.RDBMSDriver == storage.DriverMySQL {
			cfg.Storage.RDBMSDSN = defaultMySQLDSN()
		}
	}
	if flagSet.Changed("rdbms-dsn") {
		cfg.Storage.RDBMSDSN = *f.rdbmsDSN
	}
	if flagSet.Changed("blob-storage-url") {
		cfg.Storage.BlobStorageURL = *f.blobStorageURL
	}
	if !flagSet.Changed("log-level") && cfg.Log.Level != "" {
		if err := f.loggingLevel.Set(cfg.Log.Level); err != nil {
			return nil, fmt.Errorf("invalid log.level '%s': %w", cfg.Log.Level, err)
		}
	}
	if !flagSet.Changed("trace-prefix") {
		*f.tracePrefix = cfg.Log.TracePrefix
	}
	return cfg, nil
}

func main() {
	ctx, endFunc := context.WithCancel(context.Background())
	defer func() {
		// We want both: custom exitcode (which could be set only via `os.Exit`)
		// and working `defer`-s. So we have to put os.Exit into a defer.

		// Though we do not want to avoid printing panics, so:
		if event := errmon.ObserveRecoverCtx(ctx, recover()); event != nil {
			endFunc()
			beltctx.Flush(ctx)
			panic(event.PanicValue)
		}

		logger.FromCtx(ctx).Debugf("exitcode is %d", exitCode)
		endFunc()
		beltctx.Flush(ctx)
		os.Exit(exitCode)
	}()

	// Parse arguments

	flagSet, flags := setupFlag()
	_ = flagSet.Parse(os.Args[1:])

	if flagSet.NArg() < 1 {
		_, _ = fmt.Fprintf(os.Stderr, "error: no command specified\n\n")
		usage(flagSet)
		return
	}

	cfg, err := loadConfig(flagSet, flags)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		exitCode = 2
		return
	}

	// Initialize everything
	ctx = observability.WithBelt(
		ctx,
		flags.loggingLevel,
		*flags.tracePrefix,
		true,
	)

	commandName := flagSet.Arg(0)
	args := flagSet.Args()[1:]

	span, ctx := tracer.StartChildSpanFromCtx(ctx, commandName)
	defer span.Finish()

	logger.FromCtx(ctx).Debugf("cmd: '%s'; args: %v", commandName, args)

	// Execute the command

	command := knownCommands[commandName]
	if command == nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: unknown command '%s'\n\n", commandName)
		usage(flagSet)
		return
	}

	flagSet = pflag.NewFlagSet(commandName, pflag.ExitOnError)
	flagSet.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "syntax: sampleflow %s [options] %s\n\nOptions:\n",
			commandName, command.Usage())
		flagSet.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\n")
	}

	command.SetupFlagSet(flagSet)
	_ = flagSet.Parse(args)
	err = command.Execute(ctx, commands.Config{
		IsQuiet: *flags.isQuiet,
		Format:  *flags.format,
		Config:  cfg,
	}, flagSet.Args())

	// Process the error
	if err == nil {
		return
	}

	isSilentError := false
	exitCode = 3
	nestedErr := err
setExitCodeLoop:
	for nestedErr != nil {
		switch nestedErr := nestedErr.(type) {
		case commands.ErrArgs:
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", nestedErr)
			usage(flagSet)
			return
		case commands.SilentError:
			isSilentError = true
		case commands.ExitCoder:
			exitCode = nestedErr.ExitCode()
			break setExitCodeLoop
		}
		nestedErr = errors.Unwrap(nestedErr)
	}
	if isSilentError {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
	var descriptioner commands.Descriptioner
	if errors.As(err, &descriptioner) {
		_, _ = fmt.Fprintf(os.Stderr, "\n%s\n", descriptioner.Description())
	}
}
