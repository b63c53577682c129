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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/engines"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
)

type fakeEngine struct {
	name    string
	mode    string
	running *int32
	maxSeen *int32
}

func (e *fakeEngine) ID() string { return e.name }

func (e *fakeEngine) Scan(ctx context.Context, path string) (engines.Findings, error) {
	if e.running != nil {
		cur := atomic.AddInt32(e.running, 1)
		defer atomic.AddInt32(e.running, -1)
		for {
			seen := atomic.LoadInt32(e.maxSeen)
			if cur <= seen || atomic.CompareAndSwapInt32(e.maxSeen, seen, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	switch e.mode {
	case "fail":
		return nil, errors.New("connection refused")
	case "panic":
		panic("engine bug")
	case "hang":
		<-ctx.Done()
		return nil, ctx.Err()
	case "clean":
		return nil, nil
	}
	return engines.Findings{"Win32/Agent": "infected"}, nil
}

func testCtx() context.Context {
	return logger.CtxWithLogger(context.Background(), xlogrus.Default().WithLevel(logger.LevelDebug))
}

func newTestRegistry(t *testing.T, running, maxSeen *int32) *engines.Registry {
	r := engines.NewRegistry()
	require.NoError(t, r.Add("fake", func(cfg config.Engine) (engines.Engine, error) {
		return &fakeEngine{name: cfg.Name, mode: cfg.Args, running: running, maxSeen: maxSeen}, nil
	}))
	return r
}

func TestScanAllOneFailing(t *testing.T) {
	ctx := testCtx()
	roster := []config.Engine{
		{Name: "a", Kind: "fake", Args: "found"},
		{Name: "b", Kind: "fake", Args: "fail"},
		{Name: "c", Kind: "fake", Args: "clean"},
		{Name: "d", Kind: "fake", Args: "panic"},
	}
	s, err := New(ctx, newTestRegistry(t, nil, nil), roster, Options{Concurrency: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, s.Engines())

	results, err := s.ScanAllDetailed(ctx, "/tmp/sample")
	require.Error(t, err)
	require.Equal(t, Results{
		"a": engines.Findings{"Win32/Agent": "infected"},
		"c": engines.Findings{},
	}, results)
	require.Equal(t, failure.KindEngine, failure.KindOf(err))

	require.Equal(t, results, s.ScanAll(ctx, "/tmp/sample"))
}

func TestScanAllNoEngines(t *testing.T) {
	ctx := testCtx()
	s, err := New(ctx, newTestRegistry(t, nil, nil), nil, Options{})
	require.NoError(t, err)

	results := s.ScanAll(ctx, "/tmp/sample")
	require.NotNil(t, results)
	require.Empty(t, results)
}

func TestScanAllEngineTimeout(t *testing.T) {
	ctx := testCtx()
	roster := []config.Engine{
		{Name: "slow", Kind: "fake", Args: "hang"},
		{Name: "fast", Kind: "fake", Args: "found"},
	}
	s, err := New(ctx, newTestRegistry(t, nil, nil), roster, Options{EngineTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	results := s.ScanAll(ctx, "/tmp/sample")
	require.Len(t, results, 1)
	require.Contains(t, results, "fast")
}

func TestScanAllConcurrencyBound(t *testing.T) {
	ctx := testCtx()
	var running, maxSeen int32
	var roster []config.Engine
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		roster = append(roster, config.Engine{Name: name, Kind: "fake", Args: "found"})
	}
	s, err := New(ctx, newTestRegistry(t, &running, &maxSeen), roster, Options{Concurrency: 2})
	require.NoError(t, err)

	require.Len(t, s.ScanAll(ctx, "/tmp/sample"), 6)
	require.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
}

func TestNewInvalidRoster(t *testing.T) {
	ctx := testCtx()
	r := newTestRegistry(t, nil, nil)

	_, err := New(ctx, r, []config.Engine{{Name: "x", Kind: "unknown"}}, Options{})
	require.ErrorAs(t, err, &engines.ErrUnknownKind{})

	_, err = New(ctx, r, []config.Engine{{Name: "x", Kind: "fake"}, {Name: "x", Kind: "fake"}}, Options{})
	require.ErrorAs(t, err, &ErrDuplicateEngine{})
}
