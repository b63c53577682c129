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
	"fmt"
)

// ErrInitStorage implements "error", for the description see Error.
type ErrInitStorage struct {
	Err error
}

func (err ErrInitStorage) Error() string {
	return fmt.Sprintf("unable to initialize sample storage: %v", err.Err)
}

func (err ErrInitStorage) Unwrap() error {
	return err.Err
}

// ErrInitScanner implements "error", for the description see Error.
type ErrInitScanner struct {
	Err error
}

func (err ErrInitScanner) Error() string {
	return fmt.Sprintf("unable to initialize the engine roster: %v", err.Err)
}

func (err ErrInitScanner) Unwrap() error {
	return err.Err
}

// ErrInitSandbox implements "error", for the description see Error.
type ErrInitSandbox struct {
	Err error
}

func (err ErrInitSandbox) Error() string {
	return fmt.Sprintf("unable to initialize sandbox clients: %v", err.Err)
}

func (err ErrInitSandbox) Unwrap() error {
	return err.Err
}

// ErrUnknownSandbox implements "error", for the description see Error.
type ErrUnknownSandbox struct {
	Name string
}

func (err ErrUnknownSandbox) Error() string {
	return fmt.Sprintf("sandbox '%s' is not configured", err.Name)
}

// Description explains how to resolve the error.
func (err ErrUnknownSandbox) Description() string {
	return fmt.Sprintf("Add a [sandbox.%s] section with at least base_url to the configuration file.", err.Name)
}

// ErrNoEnvironment implements "error", for the description see Error.
type ErrNoEnvironment struct {
	Sandbox string
}

func (err ErrNoEnvironment) Error() string {
	return fmt.Sprintf("no environment is given for sandbox '%s' and no default_environment is configured", err.Sandbox)
}

// Description explains how to resolve the error.
func (err ErrNoEnvironment) Description() string {
	return fmt.Sprintf("Pass --environment (see 'sampleflow sandbox-envs %s') or set default_environment in [sandbox.%s].", err.Sandbox, err.Sandbox)
}

// ErrURLUnsupported implements "error", for the description see Error.
type ErrURLUnsupported struct {
	Sandbox string
}

func (err ErrURLUnsupported) Error() string {
	return fmt.Sprintf("sandbox '%s' does not support URL analysis", err.Sandbox)
}

// ErrUnknownJob implements "error", for the description see Error.
type ErrUnknownJob struct {
	JobID string
}

func (err ErrUnknownJob) Error() string {
	return fmt.Sprintf("unknown sandbox job '%s'", err.JobID)
}

// ErrReadSample implements "error", for the description see Error.
type ErrReadSample struct {
	SampleID int64
	Err      error
}

func (err ErrReadSample) Error() string {
	return fmt.Sprintf("unable to read sample %d: %v", err.SampleID, err.Err)
}

func (err ErrReadSample) Unwrap() error {
	return err.Err
}

// ErrSaveReport implements "error", for the description see Error.
type ErrSaveReport struct {
	SampleID int64
	Err      error
}

func (err ErrSaveReport) Error() string {
	return fmt.Sprintf("unable to save the report of sample %d: %v", err.SampleID, err.Err)
}

func (err ErrSaveReport) Unwrap() error {
	return err.Err
}
