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
	"fmt"
)

// Findings maps an object reported by an engine (a threat name or an
// infected file) to the engine's free-text verdict.
type Findings = map[string]string

// Engine is an adapter to a single antivirus engine.
//
// Every call of Scan returns a new Findings value, an Engine keeps no
// state between scans and is safe for concurrent use.
type Engine interface {
	// ID returns the name of the engine (as configured).
	ID() string

	// Scan scans the file at the path, which must be readable by the engine.
	Scan(ctx context.Context, path string) (Findings, error)
}

// ErrUnknownKind implements "error", for the description see Error.
type ErrUnknownKind struct {
	Name string
	Kind string
}

func (err ErrUnknownKind) Error() string {
	return fmt.Sprintf("engine '%s' has unknown kind '%s'", err.Name, err.Kind)
}

// ErrInit implements "error", for the description see Error.
type ErrInit struct {
	Name string
	Err  error
}

func (err ErrInit) Error() string {
	return fmt.Sprintf("unable to initialize engine '%s': %v", err.Name, err.Err)
}

func (err ErrInit) Unwrap() error {
	return err.Err
}
