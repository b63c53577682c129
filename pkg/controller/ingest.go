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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/sampleflow/pkg/digest"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
	"github.com/immune-gmbh/sampleflow/pkg/storage"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

// Ingest stores the sample and, if it is a container, expands it into
// child samples. The children are returned only after the expansion has
// completed. Expansion failures of single members do not fail the ingest.
func (ctrl *Controller) Ingest(
	ctx context.Context,
	data []byte,
	in storage.SampleInput,
) (*models.Sample, []*models.Sample, error) {
	ctx = beltctx.WithField(ctx, "filename", in.Filename)
	span, ctx := tracer.StartChildSpanFromCtx(ctx, "Ingest")
	defer span.Finish()
	log := logger.FromCtx(ctx)

	sample, err := ctrl.Storage.InsertSample(ctx, data, in)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("stored sample %d (sha256:%s)", sample.ID, sample.SHA256)

	if ctrl.Expander == nil {
		return sample, nil, nil
	}
	children, err := ctrl.Expander.Expand(ctx, sample)
	if err != nil {
		// the sample itself is stored, report the expansion failure only
		log.Errorf("unable to expand sample %d: %v", sample.ID, err)
		return sample, nil, nil
	}
	if len(children) > 0 {
		log.Debugf("sample %d expanded into %d children", sample.ID, len(children))
	}
	return sample, children, nil
}

// IngestReader is the same as Ingest, but reads the content from r. The
// content is read and hashed in a single pass. A read failure is an
// ingest failure and nothing is stored.
func (ctrl *Controller) IngestReader(
	ctx context.Context,
	r io.Reader,
	in storage.SampleInput,
) (*models.Sample, []*models.Sample, error) {
	data, digests, err := digest.ComputeReader(r, in.Filename)
	if err != nil {
		return nil, nil, err
	}
	in.Digests = &digests
	return ctrl.Ingest(ctx, data, in)
}

// IngestFile is the same as IngestReader, but reads the content from a local
// file. An empty filename defaults to the base name of the path.
func (ctrl *Controller) IngestFile(
	ctx context.Context,
	path string,
	in storage.SampleInput,
) (*models.Sample, []*models.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, failure.New(failure.KindIngest, path, fmt.Errorf("unable to open the file: %w", err))
	}
	defer f.Close()
	if in.Filename == "" {
		in.Filename = filepath.Base(path)
	}
	return ctrl.IngestReader(ctx, f, in)
}

// GetSample returns the sample given its numeric ID or a hex digest
// (md5, sha1, sha256 or sha512).
func (ctrl *Controller) GetSample(ctx context.Context, identifier string) (*models.Sample, error) {
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return ctrl.Storage.GetSample(ctx, id)
	}
	return ctrl.Storage.FindSampleByHash(ctx, identifier)
}

// SimilarSamples returns the samples which CTPH is similar to the CTPH of
// the given sample, the sample itself excluded.
func (ctrl *Controller) SimilarSamples(
	ctx context.Context,
	sampleID int64,
	threshold int,
	limit uint,
) ([]storage.SimilarSample, error) {
	sample, err := ctrl.Storage.GetSample(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	if sample.CTPH == "" {
		return nil, nil
	}
	queryLimit := limit
	if queryLimit > 0 {
		// the sample itself is among the results
		queryLimit++
	}
	similar, err := ctrl.Storage.SimilarSamples(ctx, sample.CTPH, threshold, queryLimit)
	if err != nil {
		return nil, err
	}
	result := similar[:0]
	for _, s := range similar {
		if s.ID == sample.ID {
			continue
		}
		result = append(result, s)
	}
	if limit > 0 && uint(len(result)) > limit {
		result = result[:limit]
	}
	return result, nil
}
