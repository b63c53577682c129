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

package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/sampleflow/pkg/scanner"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

// ScanResult is the outcome of ScanSample.
type ScanResult struct {
	Report  *models.Report
	Results scanner.Results

	// EngineErr aggregates failures of single engines, which are excluded
	// from Results.
	EngineErr error
}

// ScanSample scans the sample with every configured engine and stores
// the verdicts as an "antivirus" report. A failure of a single engine only
// excludes the engine from the report.
func (ctrl *Controller) ScanSample(ctx context.Context, sampleID int64) (*ScanResult, error) {
	ctx = beltctx.WithField(ctx, "sample_id", sampleID)
	span, ctx := tracer.StartChildSpanFromCtx(ctx, "ScanSample")
	defer span.Finish()
	log := logger.FromCtx(ctx)

	sample, err := ctrl.Storage.GetSample(ctx, sampleID)
	if err != nil {
		return nil, ErrReadSample{SampleID: sampleID, Err: err}
	}

	path, cleanup, err := ctrl.Storage.SamplePath(ctx, sample.SHA256)
	if err != nil {
		return nil, ErrReadSample{SampleID: sampleID, Err: err}
	}
	defer cleanup()

	results, engineErr := ctrl.Scanner.ScanAllDetailed(ctx, path)
	if engineErr != nil {
		log.Warnf("some engines failed to scan sample %d: %v", sampleID, engineErr)
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return nil, ErrSaveReport{SampleID: sampleID, Err: fmt.Errorf("unable to serialize verdicts: %w", err)}
	}
	report, err := ctrl.Storage.AppendReport(ctx, sampleID, models.ReportTypeAntivirus, string(payload))
	if err != nil {
		return nil, ErrSaveReport{SampleID: sampleID, Err: err}
	}

	return &ScanResult{
		Report:    report,
		Results:   results,
		EngineErr: engineErr,
	}, nil
}

// StaticAnalysis produces and stores a "static" report of the sample.
func (ctrl *Controller) StaticAnalysis(ctx context.Context, sampleID int64) (*models.Report, error) {
	ctx = beltctx.WithField(ctx, "sample_id", sampleID)
	span, ctx := tracer.StartChildSpanFromCtx(ctx, "StaticAnalysis")
	defer span.Finish()

	data, sample, err := ctrl.Storage.Get(ctx, sampleID)
	if err != nil {
		return nil, ErrReadSample{SampleID: sampleID, Err: err}
	}

	path, cleanup, err := ctrl.Storage.SamplePath(ctx, sample.SHA256)
	if err != nil {
		logger.FromCtx(ctx).Warnf("no local path for sample %d, external tools are skipped: %v", sampleID, err)
		path, cleanup = "", func() {}
	}
	defer cleanup()

	staticReport, err := ctrl.StaticAnalyzer.Analyze(ctx, data, path)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(staticReport)
	if err != nil {
		return nil, ErrSaveReport{SampleID: sampleID, Err: err}
	}
	report, err := ctrl.Storage.AppendReport(ctx, sampleID, models.ReportTypeStatic, string(payload))
	if err != nil {
		return nil, ErrSaveReport{SampleID: sampleID, Err: err}
	}
	return report, nil
}
