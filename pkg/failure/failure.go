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

package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure by the stage that produced it and by
// how the failure propagates.
type Kind int

const (
	// KindUndefined is the zero value, it is never assigned intentionally.
	KindUndefined = Kind(iota)

	// KindIngest is an unreadable upload. It is fatal to the submission
	// and nothing is persisted.
	KindIngest

	// KindExpansion is a corrupt or undecryptable archive member. The member
	// is skipped, its siblings are still extracted.
	KindExpansion

	// KindEngine is a single antivirus engine failure (missing binary, refused
	// connection, malformed output). The engine is dropped from the merged result.
	KindEngine

	// KindSandboxTransport is an HTTP-level failure talking to a sandbox. It
	// propagates to the caller and is retryable.
	KindSandboxTransport

	// KindSandboxLogical is an error reported by a sandbox inside an otherwise
	// successful HTTP response.
	KindSandboxLogical
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "<undefined>"
	case KindIngest:
		return "IngestFailure"
	case KindExpansion:
		return "ExpansionFailure"
	case KindEngine:
		return "EngineFailure"
	case KindSandboxTransport:
		return "SandboxTransportFailure"
	case KindSandboxLogical:
		return "SandboxLogicalFailure"
	}
	return fmt.Sprintf("<unknown_kind_%d>", int(k))
}

// Error is a classified pipeline failure. Subject is the identity of the
// failing item (engine name, archive member, sandbox backend, filename).
type Error struct {
	Kind    Kind
	Subject string
	Err     error
}

// New returns a new Error.
func New(kind Kind, subject string, err error) Error {
	return Error{Kind: kind, Subject: subject, Err: err}
}

func (err Error) Error() string {
	if err.Subject == "" {
		return fmt.Sprintf("%s: %v", err.Kind, err.Err)
	}
	return fmt.Sprintf("%s (%s): %v", err.Kind, err.Subject, err.Err)
}

func (err Error) Unwrap() error {
	return err.Err
}

// CanRetry reports if repeating the same operation may succeed.
func (err Error) CanRetry() bool {
	return err.Kind == KindSandboxTransport
}

// KindOf returns the Kind of the first Error found in the chain of err,
// or KindUndefined.
func KindOf(err error) Kind {
	var f Error
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUndefined
}

// IsKind returns true if err is (or wraps) an Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
