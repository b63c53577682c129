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

package backends

import (
	"fmt"
	"sort"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox/fireeye"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox/vxstream"
)

// Factory represents a factory method for new sandbox clients
type Factory func(cfg config.SandboxConfig) (sandbox.Client, error)

var factories = map[string]Factory{
	vxstream.Kind: func(cfg config.SandboxConfig) (sandbox.Client, error) {
		return vxstream.New(cfg)
	},
	fireeye.Kind: func(cfg config.SandboxConfig) (sandbox.Client, error) {
		return fireeye.New(cfg)
	},
}

// ErrUnknownKind implements "error", for the description see Error.
type ErrUnknownKind struct {
	Name string
	Kind string
}

func (err ErrUnknownKind) Error() string {
	return fmt.Sprintf("sandbox '%s' has unknown kind '%s'", err.Name, err.Kind)
}

// Kinds returns a sorted list of the known sandbox kinds
func Kinds() []string {
	result := make([]string, 0, len(factories))
	for kind := range factories {
		result = append(result, kind)
	}
	sort.Strings(result)
	return result
}

// New returns a client of the sandbox configured in section name.
func New(name string, cfg config.SandboxConfig) (sandbox.Client, error) {
	factory := factories[cfg.Kind]
	if factory == nil {
		return nil, ErrUnknownKind{Name: name, Kind: cfg.Kind}
	}
	client, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize sandbox '%s': %w", name, err)
	}
	return client, nil
}

// NewAll returns clients of all the configured sandboxes, by section name.
func NewAll(cfgs map[string]config.SandboxConfig) (map[string]sandbox.Client, error) {
	result := make(map[string]sandbox.Client, len(cfgs))
	for name, cfg := range cfgs {
		client, err := New(name, cfg)
		if err != nil {
			return nil, err
		}
		result[name] = client
	}
	return result, nil
}
