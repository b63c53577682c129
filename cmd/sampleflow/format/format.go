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

package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"

	"github.com/immune-gmbh/sampleflow/pkg/scanner"
	"github.com/immune-gmbh/sampleflow/pkg/storage"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

const (
	FormatJSON = "json"
	FormatSpew = "spew"
	FormatText = "text"
)

// Formats returns the supported output formats.
func Formats() []string {
	return []string{FormatJSON, FormatSpew, FormatText}
}

// Print writes v in the given format. "text" falls back to indented JSON
// for values without a human-readable rendition.
func Print(w io.Writer, format string, v any) error {
	switch format {
	case FormatSpew:
		_, err := io.WriteString(w, (&spew.ConfigState{Indent: "  ", DisablePointerAddresses: true}).Sdump(v))
		return err
	case FormatJSON, FormatText:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("unable to serialize the output: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
	return fmt.Errorf("unknown output format '%s'", format)
}

func fprintfWithColor(w io.Writer, enableColors bool, colorAttr color.Attribute, format string, args ...any) {
	if !enableColors {
		fmt.Fprintf(w, format, args...)
		return
	}
	color.New(colorAttr).Fprintf(w, format, args...)
}

// PrintVerdicts prints per-engine verdicts, detections in red and clean
// engines in green.
func PrintVerdicts(w io.Writer, enableColors bool, engineNames []string, results scanner.Results) {
	for _, engineName := range engineNames {
		findings, ok := results[engineName]
		if !ok {
			fprintfWithColor(w, enableColors, color.FgYellow, "%-16s FAILED\n", engineName)
			continue
		}
		if len(findings) == 0 {
			fprintfWithColor(w, enableColors, color.FgGreen, "%-16s clean\n", engineName)
			continue
		}
		paths := make([]string, 0, len(findings))
		for path := range findings {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fprintfWithColor(w, enableColors, color.FgRed, "%-16s %s: %s\n", engineName, path, findings[path])
		}
	}
}

// PrintSamples prints one line per sample.
func PrintSamples(w io.Writer, samples []*models.Sample) {
	for _, sample := range samples {
		parent := "-"
		if sample.ParentID != nil {
			parent = fmt.Sprint(*sample.ParentID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\tparent:%s\n",
			sample.ID, sample.SHA256, sample.MimeType, sample.Size, sample.Filename, parent)
	}
}

// PrintSimilar prints one line per similar sample, with its score.
func PrintSimilar(w io.Writer, samples []storage.SimilarSample) {
	for _, sample := range samples {
		fmt.Fprintf(w, "%3d\t%d\t%s\t%s\n", sample.Score, sample.ID, sample.SHA256, sample.Filename)
	}
}

// PrintReports prints the reports as views.
func PrintReports(w io.Writer, format string, reports []*models.Report, parse bool) error {
	views := make([]models.ReportView, 0, len(reports))
	for _, report := range reports {
		views = append(views, report.View(parse))
	}
	return Print(w, format, views)
}
