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

package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"

	"github.com/immune-gmbh/sampleflow/pkg/failure"
	"github.com/immune-gmbh/sampleflow/pkg/storage"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

const (
	DefaultPassword        = "infected"
	DefaultMaxDepth        = 3
	DefaultMaxMembers      = 1024
	DefaultMaxTotalSize    = 256 << 20
	DefaultSevenZipPath    = "7z"
	DefaultSevenZipTimeout = time.Minute
)

// Options are the limits and the settings of an Expander.
type Options struct {
	// Password is used for encrypted members.
	Password string

	// MaxDepth is the maximal nesting level of expanded containers,
	// the top-level container has depth 1.
	MaxDepth int

	// MaxMembers is the maximal amount of members extracted from a single container.
	MaxMembers int

	// MaxTotalSize is the maximal amount of decompressed bytes of a
	// top-level expansion (including nested containers).
	MaxTotalSize int64

	// SevenZipPath is the external extractor used for compression methods
	// which are not supported in-process. Empty disables the fallback.
	SevenZipPath    string
	SevenZipTimeout time.Duration

	SkipMIMEs []string
}

// DefaultOptions returns the default Options.
func DefaultOptions() Options {
	return Options{
		Password:        DefaultPassword,
		MaxDepth:        DefaultMaxDepth,
		MaxMembers:      DefaultMaxMembers,
		MaxTotalSize:    DefaultMaxTotalSize,
		SevenZipPath:    DefaultSevenZipPath,
		SevenZipTimeout: DefaultSevenZipTimeout,
		SkipMIMEs:       DefaultSkipMIMEs,
	}
}

// SampleStorage is the subset of storage.Storage used by an Expander.
type SampleStorage interface {
	GetSampleBytes(ctx context.Context, sha256 string) ([]byte, error)
	InsertSample(ctx context.Context, data []byte, in storage.SampleInput) (*models.Sample, error)
}

// Expander extracts members of container samples and stores them as
// child samples.
type Expander struct {
	Storage SampleStorage
	Options Options
}

// New returns a new instance of Expander.
func New(stor SampleStorage, opts Options) *Expander {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxMembers <= 0 {
		opts.MaxMembers = DefaultMaxMembers
	}
	if opts.MaxTotalSize <= 0 {
		opts.MaxTotalSize = DefaultMaxTotalSize
	}
	return &Expander{
		Storage: stor,
		Options: opts,
	}
}

// Expand extracts the members of the sample if it is a container and
// stores them as its children. Nested containers are expanded as well
// (up to Options.MaxDepth). Returns all the stored children, including
// the nested ones.
//
// Members which cannot be extracted are logged and skipped. An error is
// returned only if the sample content itself cannot be read.
func (e *Expander) Expand(ctx context.Context, sample *models.Sample) ([]*models.Sample, error) {
	ctx = beltctx.WithField(ctx, "sample_id", sample.ID)
	span, ctx := tracer.StartChildSpanFromCtx(ctx, "Expand")
	defer span.Finish()

	data, err := e.Storage.GetSampleBytes(ctx, sample.SHA256)
	if err != nil {
		return nil, failure.New(failure.KindExpansion, sample.Filename, fmt.Errorf("unable to read the container: %w", err))
	}

	b := &budget{remaining: e.Options.MaxTotalSize}
	return e.expand(ctx, sample, data, 1, b), nil
}

func (e *Expander) expand(ctx context.Context, sample *models.Sample, data []byte, depth int, b *budget) []*models.Sample {
	log := logger.FromCtx(ctx)
	if !IsContainer(data, e.Options.SkipMIMEs) {
		log.Debugf("sample %d (%s) is not a container", sample.ID, Sniff(data))
		return nil
	}
	if depth > e.Options.MaxDepth {
		log.Warnf("%v", failure.New(failure.KindExpansion, sample.Filename, ErrLimitExceeded{Limit: "MaxDepth", Value: int64(e.Options.MaxDepth)}))
		return nil
	}

	members, failures, err := e.extract(ctx, data, b)
	if err != nil {
		log.Warnf("%v", failure.New(failure.KindExpansion, sample.Filename, err))
		return nil
	}
	if len(failures) > 0 {
		log.Warnf("skipping %d members of sample %d: %v", len(failures), sample.ID, multierror.Append(nil, failures...))
	}

	var children []*models.Sample
	for _, member := range members {
		child, err := e.Storage.InsertSample(ctx, member.Data, storage.SampleInput{
			Filename: member.Name,
			Uploader: sample.Uploader,
			ParentID: &sample.ID,
		})
		if err != nil {
			log.Errorf("unable to store member '%s' of sample %d: %v", member.Name, sample.ID, err)
			continue
		}
		log.Debugf("stored member '%s' of sample %d as sample %d", member.Name, sample.ID, child.ID)
		children = append(children, child)
		children = append(children, e.expand(ctx, child, member.Data, depth+1, b)...)
	}
	return children
}
