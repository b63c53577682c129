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

package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/engines"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
)

// Results maps an engine name to the findings of that engine. Engines
// which failed are absent.
type Results map[string]engines.Findings

// Options are the tunables of Scanner.
type Options struct {
	// Concurrency is the maximal amount of engines scanning at the same time.
	// Zero means all at once.
	Concurrency int

	// EngineTimeout bounds a single engine scan. Zero means no bound except
	// the one of the context.
	EngineTimeout time.Duration
}

// Scanner runs a sample through the whole engine roster.
type Scanner struct {
	engines []engines.Engine
	sem     *semaphore.Weighted
	options Options
}

// New builds the engines of the roster. The roster is validated here, so
// that a misconfigured engine is reported at startup and not at scan time.
func New(
	ctx context.Context,
	registry *engines.Registry,
	roster []config.Engine,
	opts Options,
) (*Scanner, error) {
	log := logger.FromCtx(ctx)

	s := &Scanner{
		options: opts,
	}
	names := map[string]struct{}{}
	for _, cfg := range roster {
		if _, ok := names[cfg.Name]; ok {
			return nil, ErrDuplicateEngine{Name: cfg.Name}
		}
		names[cfg.Name] = struct{}{}

		engine, err := registry.New(cfg)
		if err != nil {
			return nil, err
		}
		log.Debugf("engine '%s' of kind '%s' is ready", cfg.Name, cfg.Kind)
		s.engines = append(s.engines, engine)
	}

	concurrency := int64(opts.Concurrency)
	if concurrency <= 0 {
		concurrency = int64(len(s.engines)) + 1
	}
	s.sem = semaphore.NewWeighted(concurrency)
	return s, nil
}

// Engines returns the names of the engines, in roster order.
func (s *Scanner) Engines() []string {
	result := make([]string, 0, len(s.engines))
	for _, engine := range s.engines {
		result = append(result, engine.ID())
	}
	return result
}

// ScanAll scans the file at path with every engine. A failing engine
// is logged and left out of the result, ScanAll itself never fails.
func (s *Scanner) ScanAll(ctx context.Context, path string) Results {
	results, _ := s.ScanAllDetailed(ctx, path)
	return results
}

// ScanAllDetailed is the same as ScanAll, but also returns the failures
// of the engines which are left out of the result.
func (s *Scanner) ScanAllDetailed(ctx context.Context, path string) (Results, error) {
	span, ctx := tracer.StartChildSpanFromCtx(ctx, "ScanAll")
	defer span.Finish()

	var (
		wg          sync.WaitGroup
		resultMutex sync.Mutex
		results     = Results{}
		mErr        *multierror.Error
	)
	for _, engine := range s.engines {
		wg.Add(1)
		go func(engine engines.Engine) {
			defer wg.Done()
			ctx := beltctx.WithField(ctx, "engine", engine.ID())
			log := logger.FromCtx(ctx)

			findings, err := s.scanOne(ctx, engine, path)
			resultMutex.Lock()
			defer resultMutex.Unlock()
			if err != nil {
				log.Warnf("engine failed: %v", err)
				mErr = multierror.Append(mErr, err)
				return
			}
			log.Debugf("engine reported %d findings", len(findings))
			results[engine.ID()] = findings
		}(engine)
	}
	wg.Wait()

	return results, mErr.ErrorOrNil()
}

func (s *Scanner) scanOne(ctx context.Context, engine engines.Engine, path string) (findings engines.Findings, err error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, failure.New(failure.KindEngine, engine.ID(), err)
	}
	defer s.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			errmon.ObserveRecoverCtx(ctx, r)
			findings, err = nil, failure.New(failure.KindEngine, engine.ID(), fmt.Errorf("panic: %v", r))
		}
	}()

	if s.options.EngineTimeout > 0 {
		var cancelFn context.CancelFunc
		ctx, cancelFn = context.WithTimeout(ctx, s.options.EngineTimeout)
		defer cancelFn()
	}

	findings, err = engine.Scan(ctx, path)
	if err != nil {
		if failure.IsKind(err, failure.KindEngine) {
			return nil, err
		}
		return nil, failure.New(failure.KindEngine, engine.ID(), err)
	}
	if findings == nil {
		findings = engines.Findings{}
	}
	return findings, nil
}
