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

package engines

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/config"
)

type staticEngine struct {
	name string
}

func (e staticEngine) ID() string { return e.name }

func (e staticEngine) Scan(ctx context.Context, path string) (Findings, error) {
	return Findings{path: "static"}, nil
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistryWithKnownEngines()
	require.NoError(t, err)
	require.Equal(t, []string{"clamd", "cli", "drweb", "eset", "fprot", "fsecure", "savapi", "savapi-cli"}, r.Kinds())

	e, err := r.New(config.Engine{Name: "eset-main", Kind: "eset", Path: "/opt/eset/scan"})
	require.NoError(t, err)
	require.Equal(t, "eset-main", e.ID())

	e, err = r.New(config.Engine{Name: "clamav", Kind: "clamd"})
	require.NoError(t, err)
	require.Equal(t, "clamav", e.ID())

	_, err = r.New(config.Engine{Name: "ESET", Kind: "ESET"})
	require.ErrorAs(t, err, &ErrUnknownKind{})

	_, err = r.New(config.Engine{Name: "eset", Kind: "eset"})
	require.ErrorAs(t, err, &ErrInit{})

	require.NoError(t, r.Add("static", func(cfg config.Engine) (Engine, error) {
		return staticEngine{name: cfg.Name}, nil
	}))
	require.Error(t, r.Add("static", func(cfg config.Engine) (Engine, error) { return nil, nil }))
	require.Error(t, r.Add("", func(cfg config.Engine) (Engine, error) { return nil, nil }))
	require.Error(t, r.Add("nil", nil))

	e, err = r.New(config.Engine{Name: "s", Kind: "static"})
	require.NoError(t, err)
	findings, err := e.Scan(context.Background(), "/tmp/x")
	require.NoError(t, err)
	require.Equal(t, Findings{"/tmp/x": "static"}, findings)
}
