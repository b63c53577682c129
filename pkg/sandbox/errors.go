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
	"fmt"
)

// ErrHTTPMakeRequest implements "error", for the description see Error.
type ErrHTTPMakeRequest struct {
	Err error
	URL string
}

func (err ErrHTTPMakeRequest) Error() string {
	return fmt.Sprintf("unable to make a HTTP request to '%s': %v", err.URL, err.Err)
}

func (err ErrHTTPMakeRequest) Unwrap() error {
	return err.Err
}

// ErrHTTPRequest implements "error", for the description see Error.
type ErrHTTPRequest struct {
	Err    error
	Method string
	URL    string
}

func (err ErrHTTPRequest) Error() string {
	return fmt.Sprintf("unable to %s a HTTP resource '%s': %v", err.Method, err.URL, err.Err)
}

func (err ErrHTTPRequest) Unwrap() error {
	return err.Err
}

// ErrHTTPStatus implements "error", for the description see Error.
type ErrHTTPStatus struct {
	StatusCode int
	URL        string
}

func (err ErrHTTPStatus) Error() string {
	return fmt.Sprintf("invalid status code %d from '%s'", err.StatusCode, err.URL)
}

// ErrHTTPBody implements "error", for the description see Error.
type ErrHTTPBody struct {
	Err error
	URL string
}

func (err ErrHTTPBody) Error() string {
	return fmt.Sprintf("unable to read body of HTTP resource '%s': %v", err.URL, err.Err)
}

func (err ErrHTTPBody) Unwrap() error {
	return err.Err
}

// ErrResponse is an error reported by the sandbox inside a response with a
// successful HTTP status.
type ErrResponse struct {
	Code    int64
	Message string
}

func (err ErrResponse) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("sandbox responded with code %d", err.Code)
	}
	return fmt.Sprintf("sandbox responded with code %d: %s", err.Code, err.Message)
}

// ErrMalformedResponse implements "error", for the description see Error.
type ErrMalformedResponse struct {
	Reason string
	Body   []byte
}

func (err ErrMalformedResponse) Error() string {
	body := err.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("malformed sandbox response (%s): %q", err.Reason, body)
}
