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

package staticanalysis

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gabriel-vasile/mimetype"

	"github.com/immune-gmbh/sampleflow/pkg/archive"
	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/digest"
)

// Magic is the content type of a sample.
type Magic struct {
	MimeType  string   `json:"mimetype"`
	Extension string   `json:"extension,omitempty"`
	Parents   []string `json:"parents,omitempty"`
}

// TrIDMatch is a single file type guess of TrID.
type TrIDMatch struct {
	Percent     string `json:"percent"`
	Extension   string `json:"extension"`
	Description string `json:"description"`
}

// Report is the result of the static analysis of a sample.
type Report struct {
	Magic     Magic          `json:"magic"`
	Size      int64          `json:"size"`
	Digests   digest.Digests `json:"digests"`
	Hex       string         `json:"hex"`
	IsArchive bool           `json:"is_archive"`

	Exif json.RawMessage `json:"exif,omitempty"`
	TrID []TrIDMatch     `json:"trID,omitempty"`
}

// Analyzer produces static analysis reports.
type Analyzer struct {
	Config    config.StaticConfig
	SkipMIMEs []string
}

// New returns a new Analyzer.
func New(cfg config.StaticConfig) *Analyzer {
	return &Analyzer{
		Config:    cfg,
		SkipMIMEs: archive.DefaultSkipMIMEs,
	}
}

func describe(data []byte) Magic {
	mtype := mimetype.Detect(data)
	magic := Magic{
		MimeType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	for parent := mtype.Parent(); parent != nil; parent = parent.Parent() {
		magic.Parents = append(magic.Parents, parent.String())
	}
	return magic
}

// Analyze returns the static analysis report of the content. The external
// tools (if configured) are run on the file at path, an empty path skips
// them. A failing external tool is logged and its section is left out.
func (a *Analyzer) Analyze(ctx context.Context, data []byte, path string) (*Report, error) {
	span, ctx := tracer.StartChildSpanFromCtx(ctx, "StaticAnalysis")
	defer span.Finish()
	log := logger.FromCtx(ctx)

	hexDumpSize := a.Config.HexDumpSize
	if hexDumpSize <= 0 || hexDumpSize > len(data) {
		hexDumpSize = len(data)
	}

	report := &Report{
		Magic:     describe(data),
		Size:      int64(len(data)),
		Digests:   digest.Compute(data),
		Hex:       hex.Dump(data[:hexDumpSize]),
		IsArchive: archive.IsContainer(data, a.SkipMIMEs),
	}
	if path == "" {
		return report, nil
	}

	if a.Config.ExifToolPath != "" {
		stdout, err := a.runTool(ctx, a.Config.ExifToolPath, "-a", "-j", path)
		switch {
		case err != nil:
			log.Warnf("exiftool failed: %v", err)
		case !json.Valid(bytes.TrimSpace(stdout)):
			log.Warnf("exiftool returned an invalid JSON")
		default:
			report.Exif = json.RawMessage(bytes.TrimSpace(stdout))
		}
	}
	if a.Config.TrIDPath != "" {
		stdout, err := a.runTool(ctx, a.Config.TrIDPath, path)
		if err != nil {
			log.Warnf("trid failed: %v", err)
		} else {
			report.TrID = ParseTrID(string(stdout))
		}
	}
	return report, nil
}

func (a *Analyzer) runTool(ctx context.Context, binary string, args ...string) ([]byte, error) {
	if timeout := a.Config.ToolTimeout.Std(); timeout > 0 {
		var cancelFn context.CancelFunc
		ctx, cancelFn = context.WithTimeout(ctx, timeout)
		defer cancelFn()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && stdout.Len() > 0 {
		// exiftool exits with 1 on unknown file types, but still reports
		logger.FromCtx(ctx).Debugf("'%s' exited with %d: %s", binary, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		return stdout.Bytes(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to run '%s': %w (stderr: %s)", binary, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

var tridLineRegexp = regexp.MustCompile(`(?m)^\s*(\S+%) \(([A-Za-z0-9\./_-]+)\) (.+?)\s*$`)

// ParseTrID parses the output of TrID, for example:
//
//	49.1% (.EXE) Win32 Executable MS Visual C++ (generic) (31206/45/13)
func ParseTrID(stdout string) []TrIDMatch {
	var result []TrIDMatch
	for _, match := range tridLineRegexp.FindAllStringSubmatch(stdout, -1) {
		result = append(result, TrIDMatch{
			Percent:     match[1],
			Extension:   match[2],
			Description: match[3],
		})
	}
	return result
}
