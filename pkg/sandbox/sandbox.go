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

package sandbox

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// SubmissionID is the identifier of a submission given by the remote
// sandbox (usually the SHA256 of the submitted sample).
type SubmissionID string

// EnvironmentID identifies an analysis environment (operating system,
// profile) of a sandbox.
type EnvironmentID string

// StateCode is the normalized state of a submission.
type StateCode string

const (
	StateInQueue    = StateCode("IN_QUEUE")
	StateInProgress = StateCode("IN_PROGRESS")
	StateSuccess    = StateCode("SUCCESS")
	StateError      = StateCode("ERROR")
	StateUnknown    = StateCode("UNKNOWN")
)

// IsTerminal returns true if no further state change is expected.
func (c StateCode) IsTerminal() bool {
	return c == StateSuccess || c == StateError
}

// State is the state of a submission as reported by the sandbox. The state
// is never stored locally, it is fetched on every poll.
type State struct {
	Code StateCode `json:"code"`

	// RawState is the state exactly as reported by the remote side.
	RawState string `json:"raw_state"`

	// Error is the error message reported together with StateError.
	Error string `json:"error,omitempty"`
}

// ArtifactType is the format of a downloadable analysis result.
type ArtifactType string

const (
	ArtifactJSON = ArtifactType("json")
	ArtifactHTML = ArtifactType("html")
	ArtifactXML  = ArtifactType("xml")
	ArtifactBin  = ArtifactType("bin")
	ArtifactPCAP = ArtifactType("pcap")
)

// AllArtifactTypes returns every known ArtifactType.
func AllArtifactTypes() []ArtifactType {
	return []ArtifactType{ArtifactJSON, ArtifactHTML, ArtifactXML, ArtifactBin, ArtifactPCAP}
}

// IsCompressed returns true if the sandbox serves the artifact gzipped.
func (t ArtifactType) IsCompressed() bool {
	switch t {
	case ArtifactHTML, ArtifactXML, ArtifactBin, ArtifactPCAP:
		return true
	}
	return false
}

// Environment is an analysis environment offered by a sandbox.
type Environment struct {
	ID   EnvironmentID `json:"id"`
	Name string        `json:"name"`
}

// File is a file to be submitted.
type File struct {
	Name   string
	SHA256 string
	Data   []byte
}

// SubmitRequest is a request to analyze Sample in the environment.
// Children are uploaded together with the sample (archive members of
// the sample).
type SubmitRequest struct {
	Sample        File
	EnvironmentID EnvironmentID
	Children      []File
}

// Client is a client to a remote dynamic analysis service.
//
// A transport failure is returned as failure.KindSandboxTransport, an
// error reported by the service within a successful HTTP response is
// returned as failure.KindSandboxLogical.
type Client interface {
	// Backend returns the kind of the sandbox ("vxstream", "fireeye").
	Backend() string

	// Submit uploads the sample for analysis.
	Submit(ctx context.Context, req SubmitRequest) (SubmissionID, error)

	// PollState fetches the current state of the submission.
	PollState(ctx context.Context, id SubmissionID, env EnvironmentID) (State, error)

	// FetchResult downloads an analysis artifact. Compressed artifacts
	// are returned decompressed.
	FetchResult(ctx context.Context, id SubmissionID, env EnvironmentID, artifactType ArtifactType) ([]byte, error)

	// ListEnvironments returns the available environments sorted by ID.
	ListEnvironments(ctx context.Context) ([]Environment, error)
}

// URLSubmitter is implemented by the clients which can analyze a URL
// instead of an uploaded file.
type URLSubmitter interface {
	SubmitURL(ctx context.Context, targetURL string, env EnvironmentID) (SubmissionID, error)
}

// NormalizeURL returns the absolute form of a URL to analyze. A URL
// without a scheme is assumed to be "http://".
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL '%s': %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL '%s': no host", raw)
	}
	return u.String(), nil
}

// SortEnvironments sorts the environments by ID, numeric IDs in numeric
// order and before the rest.
func SortEnvironments(envs []Environment) {
	sort.SliceStable(envs, func(i, j int) bool {
		a, errA := strconv.ParseInt(string(envs[i].ID), 10, 64)
		b, errB := strconv.ParseInt(string(envs[j].ID), 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return envs[i].ID < envs[j].ID
	})
}
