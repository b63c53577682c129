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
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"

	"github.com/immune-gmbh/sampleflow/pkg/archive"
	"github.com/immune-gmbh/sampleflow/pkg/blobstorage"
	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/engines"
	"github.com/immune-gmbh/sampleflow/pkg/objcache"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox/backends"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox/poller"
	"github.com/immune-gmbh/sampleflow/pkg/scanner"
	"github.com/immune-gmbh/sampleflow/pkg/staticanalysis"
	"github.com/immune-gmbh/sampleflow/pkg/storage"
	"github.com/immune-gmbh/sampleflow/pkg/types"
)

const (
	defaultEnvironmentCacheSize  = 64
	defaultEnvironmentCachePurge = time.Hour
	defaultJobRetention          = time.Hour
)

type noCopy sync.Locker

// Controller implements the high-level logic of the sample analysis
// pipeline: ingestion with archive expansion, antivirus scanning, static
// analysis and sandbox submissions.
type Controller struct {
	noCopy noCopy

	Context        context.Context
	ContextCancel  context.CancelFunc
	Storage        Storage
	Expander       Expander
	Scanner        Scanner
	StaticAnalyzer StaticAnalyzer
	Sandboxes      map[string]sandbox.Client
	PollerOptions  poller.Options

	// DefaultEnvironments are used for submissions without an explicit
	// environment, by sandbox name.
	DefaultEnvironments map[string]sandbox.EnvironmentID

	EnvironmentCache *lru.TwoQueueCache

	onClose []func()

	// JobRetention is how long a finished sandbox job stays available
	// through Job.
	JobRetention time.Duration

	jobsLocker sync.Mutex
	jobs       map[types.JobID]*SandboxJob

	activeGoroutinesWG sync.WaitGroup
}

// New returns an instance of Controller.
func New(
	ctx context.Context,
	stor Storage,
	expander Expander,
	scanner Scanner,
	staticAnalyzer StaticAnalyzer,
	sandboxes map[string]sandbox.Client,
	pollerOptions poller.Options,
	environmentCachePurgeInterval time.Duration,
) (*Controller, error) {
	ctx = beltctx.WithField(ctx, "module", "controller")

	environmentCache, err := lru.New2Q(defaultEnvironmentCacheSize)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the environment cache: %w", err)
	}
	if sandboxes == nil {
		sandboxes = map[string]sandbox.Client{}
	}
	if environmentCachePurgeInterval <= 0 {
		environmentCachePurgeInterval = defaultEnvironmentCachePurge
	}

	ctrl := &Controller{
		Storage:             stor,
		Expander:            expander,
		Scanner:             scanner,
		StaticAnalyzer:      staticAnalyzer,
		Sandboxes:           sandboxes,
		PollerOptions:       pollerOptions,
		DefaultEnvironments: map[string]sandbox.EnvironmentID{},
		EnvironmentCache:    environmentCache,
		JobRetention:        defaultJobRetention,
		jobs:                map[types.JobID]*SandboxJob{},
	}
	ctrl.Context, ctrl.ContextCancel = context.WithCancel(ctx)

	if err := ctrl.launchAsync(ctrl.Context, func(ctx context.Context) {
		ctrl.updateCacheLoop(ctx, environmentCachePurgeInterval)
	}); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// NewFromConfig builds all the components of the pipeline from the
// configuration and returns a Controller using them.
func NewFromConfig(ctx context.Context, cfg *config.Config) (_ *Controller, _err error) {
	log := logger.FromCtx(ctx)

	blobStorage, err := blobstorage.New(cfg.Storage.BlobStorageURL)
	if err != nil {
		return nil, ErrInitStorage{Err: err}
	}

	var (
		cache     storage.Cache
		blobCache *objcache.BlobCache
	)
	if cfg.Storage.CacheSize > 0 {
		blobCache, err = objcache.New(cfg.Storage.CacheSize)
		if err != nil {
			log.Errorf("unable to initialize storage cache: %v", err)
		} else {
			cache = blobCache
		}
	}

	stor, err := storage.New(
		cfg.Storage.RDBMSDriver,
		cfg.Storage.RDBMSDSN,
		blobStorage,
		cache,
		log.WithField("module", "storage"),
	)
	if err != nil {
		_ = blobStorage.Close()
		return nil, ErrInitStorage{Err: err}
	}
	defer func() {
		if _err != nil {
			_ = stor.Close()
		}
	}()
	if err := stor.Migrate(); err != nil {
		return nil, ErrInitStorage{Err: err}
	}

	expander := archive.New(stor, archive.Options{
		Password:        cfg.Archive.Password,
		MaxDepth:        cfg.Archive.MaxDepth,
		MaxMembers:      cfg.Archive.MaxMembers,
		MaxTotalSize:    cfg.Archive.MaxTotalSize,
		SevenZipPath:    cfg.Archive.SevenZipPath,
		SevenZipTimeout: cfg.Archive.ToolTimeout.Std(),
		SkipMIMEs:       archive.DefaultSkipMIMEs,
	})

	registry, err := engines.NewRegistryWithKnownEngines()
	if err != nil {
		return nil, ErrInitScanner{Err: err}
	}
	avScanner, err := scanner.New(ctx, registry, cfg.Engines, scanner.Options{
		Concurrency:   cfg.Scanner.Concurrency,
		EngineTimeout: cfg.Scanner.EngineTimeout.Std(),
	})
	if err != nil {
		return nil, ErrInitScanner{Err: err}
	}

	sandboxes, err := backends.NewAll(cfg.Sandbox)
	if err != nil {
		return nil, ErrInitSandbox{Err: err}
	}

	ctrl, err := New(
		ctx,
		stor,
		expander,
		avScanner,
		staticanalysis.New(cfg.Static),
		sandboxes,
		poller.OptionsFromConfig(cfg.Poller),
		defaultEnvironmentCachePurge,
	)
	if err != nil {
		return nil, err
	}
	if blobCache != nil {
		ctrl.onClose = append(ctrl.onClose, blobCache.Close)
	}
	for name, sandboxCfg := range cfg.Sandbox {
		if sandboxCfg.DefaultEnvironment != "" {
			ctrl.DefaultEnvironments[name] = sandbox.EnvironmentID(sandboxCfg.DefaultEnvironment)
		}
	}
	return ctrl, nil
}

func (ctrl *Controller) updateCacheLoop(
	ctx context.Context,
	purgeInterval time.Duration,
) {
	purgeTicker := time.NewTicker(purgeInterval)
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-purgeTicker.C:
			ctrl.purgeCache()
		}
	}
}

func (ctrl *Controller) purgeCache() {
	logger.FromCtx(ctrl.Context).Debugf("purge controller environment cache")
	ctrl.EnvironmentCache.Purge()
	ctrl.purgeJobs(time.Now())
}

// purgeJobs forgets the jobs finished more than JobRetention before now.
func (ctrl *Controller) purgeJobs(now time.Time) {
	ctrl.jobsLocker.Lock()
	defer ctrl.jobsLocker.Unlock()
	for id, job := range ctrl.jobs {
		finishedAt, ok := job.FinishedAt()
		if ok && now.Sub(finishedAt) > ctrl.JobRetention {
			delete(ctrl.jobs, id)
		}
	}
}

// Close stops the Controller and blocks until all goroutines from launchAsync
// rejoin.
//
// Invariants:
//  1. Close will wait for goroutines to rejoin before invalidating any state
//  2. After Close has been called, launchAsync will fail with context.Canceled
//  3. Goroutines MUST NOT call Close
//  4. Goroutines MUST return promptly when their context is cancelled
func (ctrl *Controller) Close() error {
	ctrl.ContextCancel()
	ctrl.activeGoroutinesWG.Wait()

	var result *multierror.Error
	if ctrl.Storage != nil {
		if err := ctrl.Storage.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, fn := range ctrl.onClose {
		fn()
	}
	return result.ErrorOrNil()
}

// launchAsync starts the given function in the background. The context passed
// to the function will be cancelled with the call to ctrl.Close(). If the
// controller has already received a call to Close, then this function will
// return the cancellation error (in this case most likely context.Canceled).
//
// Goroutines launched this way MUST NOT call Controller.Close, because it would
// DEADLOCK. See Close for other invariants.
func (ctrl *Controller) launchAsync(ctx context.Context, f func(ctx context.Context)) error {
	// Need to do this first to prevent another thread entering Close() between
	// the `if` and the `go` from returning.
	ctrl.activeGoroutinesWG.Add(1)
	if ctx.Err() != nil {
		ctrl.activeGoroutinesWG.Done()
		return ctx.Err()
	}

	go func() {
		defer ctrl.activeGoroutinesWG.Done()
		f(ctx)
	}()

	return nil
}
