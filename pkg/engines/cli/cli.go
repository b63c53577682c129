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

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/shlex"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
)

// PathPlaceholder in the arguments template is replaced with the scanned
// path. Without a placeholder the path is appended as the last argument.
const PathPlaceholder = "{path}"

// Engine runs a command-line scanner and parses its output with a
// regular expression.
type Engine struct {
	name       string
	binary     string
	args       []string
	regex      *regexp.Regexp
	keyGroup   int
	valueGroup int
	timeout    time.Duration
}

// New returns a command-line Engine. Unset regex and groups are taken from
// the preset of the engine kind.
func New(cfg config.Engine) (*Engine, error) {
	preset, hasPreset := Presets[cfg.Kind]
	if !hasPreset && cfg.Kind != KindGeneric {
		return nil, fmt.Errorf("no command-line preset for kind '%s'", cfg.Kind)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("path to the engine binary is not set")
	}

	regex := cfg.Regex
	if regex == "" {
		regex = preset.Regex
	}
	if regex == "" {
		return nil, fmt.Errorf("regex is not set")
	}
	re, err := regexp.Compile("(?im)" + regex)
	if err != nil {
		return nil, fmt.Errorf("unable to compile regex '%s': %w", regex, err)
	}

	args, err := shlex.Split(cfg.Args)
	if err != nil {
		return nil, fmt.Errorf("unable to parse args '%s': %w", cfg.Args, err)
	}

	e := &Engine{
		name:       cfg.Name,
		binary:     cfg.Path,
		args:       args,
		regex:      re,
		keyGroup:   firstNonZero(cfg.KeyGroup, preset.KeyGroup, 1),
		valueGroup: firstNonZero(cfg.ValueGroup, preset.ValueGroup, 2),
		timeout:    cfg.Timeout.Std(),
	}
	if idx := re.SubexpIndex("key"); idx > 0 {
		e.keyGroup = idx
	}
	if idx := re.SubexpIndex("value"); idx > 0 {
		e.valueGroup = idx
	}
	for _, group := range []int{e.keyGroup, e.valueGroup} {
		if group < 1 || group > re.NumSubexp() {
			return nil, fmt.Errorf("group %d is out of range, regex '%s' has %d groups", group, regex, re.NumSubexp())
		}
	}
	return e, nil
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

// ID implements engines.Engine.
func (e *Engine) ID() string {
	return e.name
}

// Command returns the argv used to scan the path.
func (e *Engine) Command(path string) []string {
	argv := make([]string, 0, len(e.args)+2)
	argv = append(argv, e.binary)
	substituted := false
	for _, arg := range e.args {
		if strings.Contains(arg, PathPlaceholder) {
			arg = strings.ReplaceAll(arg, PathPlaceholder, path)
			substituted = true
		}
		argv = append(argv, arg)
	}
	if !substituted {
		argv = append(argv, path)
	}
	return argv
}

// Parse extracts findings from the engine output.
func (e *Engine) Parse(stdout string) map[string]string {
	result := map[string]string{}
	for _, m := range e.regex.FindAllStringSubmatch(stdout, -1) {
		key := strings.TrimSpace(m[e.keyGroup])
		value := strings.TrimSpace(m[e.valueGroup])
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	return result
}

// Scan implements engines.Engine.
func (e *Engine) Scan(ctx context.Context, path string) (map[string]string, error) {
	if e.timeout > 0 {
		var cancelFn context.CancelFunc
		ctx, cancelFn = context.WithTimeout(ctx, e.timeout)
		defer cancelFn()
	}

	argv := e.Command(path)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, failure.New(failure.KindEngine, e.name, fmt.Errorf("scan of '%s' is interrupted: %w", path, ctxErr))
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		// many engines signal a detection through the exit code
		logger.FromCtx(ctx).Errorf("engine '%s' exited with code %d: %s", e.name, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
	default:
		return nil, failure.New(failure.KindEngine, e.name, fmt.Errorf("unable to execute '%s': %w", argv[0], err))
	}

	out := strings.TrimSpace(stdout.String())
	findings := e.Parse(out)
	if err != nil && len(findings) == 0 && out == "" {
		return nil, failure.New(failure.KindEngine, e.name, fmt.Errorf("no output: %w", err))
	}
	return findings, nil
}
