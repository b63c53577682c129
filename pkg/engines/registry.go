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
	"fmt"
	"sort"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/engines/clamd"
	"github.com/immune-gmbh/sampleflow/pkg/engines/cli"
	"github.com/immune-gmbh/sampleflow/pkg/engines/savapi"
)

// Factory represents a factory method for new engines
type Factory func(cfg config.Engine) (Engine, error)

// Registry is the closed set of known engine kinds
type Registry struct {
	factories map[string]Factory
}

// Add registers provided engine kind
func (r *Registry) Add(kind string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("factory should not be nil")
	}
	if len(kind) == 0 {
		return fmt.Errorf("empty engine kind")
	}
	if _, found := r.factories[kind]; found {
		return fmt.Errorf("engine kind '%s' is already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

// New returns a new instance of the engine described by the configuration
// section. Returns ErrUnknownKind if the kind is not registered.
func (r *Registry) New(cfg config.Engine) (Engine, error) {
	factory := r.factories[cfg.Kind]
	if factory == nil {
		return nil, ErrUnknownKind{Name: cfg.Name, Kind: cfg.Kind}
	}
	engine, err := factory(cfg)
	if err != nil {
		return nil, ErrInit{Name: cfg.Name, Err: err}
	}
	return engine, nil
}

// Kinds returns a sorted list of all registered kinds
func (r *Registry) Kinds() []string {
	result := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		result = append(result, kind)
	}
	sort.Strings(result)
	return result
}

// NewRegistry creates a new Registry instance
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func adapt[T Engine](factory func(cfg config.Engine) (T, error)) Factory {
	return func(cfg config.Engine) (Engine, error) {
		engine, err := factory(cfg)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

// NewRegistryWithKnownEngines creates a new Registry instance and registers all engines from the engines subpackages
func NewRegistryWithKnownEngines() (*Registry, error) {
	r := NewRegistry()
	if err := r.Add(cli.KindGeneric, adapt(cli.New)); err != nil {
		return nil, err
	}
	for kind := range cli.Presets {
		if err := r.Add(kind, adapt(cli.New)); err != nil {
			return nil, err
		}
	}
	if err := r.Add(clamd.Kind, adapt(clamd.New)); err != nil {
		return nil, err
	}
	if err := r.Add(savapi.Kind, adapt(savapi.New)); err != nil {
		return nil, err
	}
	return r, nil
}
