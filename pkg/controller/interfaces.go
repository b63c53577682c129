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

	"github.com/immune-gmbh/sampleflow/pkg/archive"
	"github.com/immune-gmbh/sampleflow/pkg/scanner"
	"github.com/immune-gmbh/sampleflow/pkg/staticanalysis"
	"github.com/immune-gmbh/sampleflow/pkg/storage"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

// Storage is the sample and report store used by the Controller.
type Storage interface {
	InsertSample(ctx context.Context, data []byte, in storage.SampleInput) (*models.Sample, error)
	GetSample(ctx context.Context, id int64) (*models.Sample, error)
	Get(ctx context.Context, id int64) ([]byte, *models.Sample, error)
	GetSampleBytes(ctx context.Context, sha256 string) ([]byte, error)
	SamplePath(ctx context.Context, sha256 string) (string, func(), error)
	FindSampleByHash(ctx context.Context, identifier string) (*models.Sample, error)
	FindSamples(ctx context.Context, filter storage.FindSampleFilter, limit uint) ([]*models.Sample, error)
	SimilarSamples(ctx context.Context, ctph string, threshold int, limit uint) ([]storage.SimilarSample, error)
	Children(ctx context.Context, parentID int64) ([]*models.Sample, error)
	DeleteSample(ctx context.Context, id int64) error

	AppendReport(ctx context.Context, sampleID int64, reportType models.ReportType, report string) (*models.Report, error)
	LatestReport(ctx context.Context, sampleID int64, reportType models.ReportType) (*models.Report, error)
	ReportsForSample(ctx context.Context, sampleID int64) ([]*models.Report, error)
	ReportsByType(ctx context.Context, reportType models.ReportType, limit, offset uint) ([]*models.Report, error)

	Close() error
}

var _ Storage = (*storage.Storage)(nil)

// Expander expands container samples into child samples.
type Expander interface {
	Expand(ctx context.Context, sample *models.Sample) ([]*models.Sample, error)
}

var _ Expander = (*archive.Expander)(nil)

// Scanner scans a file with all the configured antivirus engines.
type Scanner interface {
	Engines() []string
	ScanAllDetailed(ctx context.Context, path string) (scanner.Results, error)
}

var _ Scanner = (*scanner.Scanner)(nil)

// StaticAnalyzer produces static analysis reports.
type StaticAnalyzer interface {
	Analyze(ctx context.Context, data []byte, path string) (*staticanalysis.Report, error)
}

var _ StaticAnalyzer = (*staticanalysis.Analyzer)(nil)
