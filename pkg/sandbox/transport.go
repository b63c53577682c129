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
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/experimental/tracer"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/tidwall/gjson"

	"github.com/immune-gmbh/sampleflow/pkg/failure"
	"github.com/immune-gmbh/sampleflow/pkg/httputils/clienthelpers"
)

// Transport is the HTTP plumbing shared by the sandbox backends.
type Transport struct {
	Backend   string
	BaseURL   *url.URL
	Client    *http.Client
	UserAgent string
}

// NewTransport returns a Transport for the API rooted at baseURL.
func NewTransport(backend, baseURL string, timeout time.Duration, insecureSkipVerify bool) (*Transport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse base URL '%s': %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme '%s' in base URL '%s'", u.Scheme, baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	httpTransport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		httpTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Transport{
		Backend: backend,
		BaseURL: u,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: httpTransport,
		},
	}, nil
}

// Request is a single API call.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	Body        io.Reader
	ContentType string
	BasicAuth   *[2]string
}

// Response is a completed API call with a successful HTTP status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// URL returns the absolute URL of the API path.
func (t *Transport) URL(path string, query url.Values) string {
	u := t.BaseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do executes the request. A failure to reach the service, a non-2xx
// status or an unreadable body are returned as failure.KindSandboxTransport.
func (t *Transport) Do(ctx context.Context, r Request) (*Response, error) {
	span, ctx := tracer.StartChildSpanFromCtx(ctx, t.Backend+"."+r.Method+"."+r.Path)
	defer span.Finish()
	log := logger.FromCtx(ctx)

	reqURL := t.URL(r.Path, r.Query)
	req, err := http.NewRequestWithContext(ctx, r.Method, reqURL, r.Body)
	if err != nil {
		return nil, failure.New(failure.KindSandboxTransport, t.Backend, ErrHTTPMakeRequest{Err: err, URL: reqURL})
	}
	for key, values := range r.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	if r.BasicAuth != nil {
		req.SetBasicAuth(r.BasicAuth[0], r.BasicAuth[1])
	}
	clienthelpers.SetHeaders(ctx, req)

	log.Debugf("%s %s", r.Method, reqURL)
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, failure.New(failure.KindSandboxTransport, t.Backend, ErrHTTPRequest{Err: err, Method: r.Method, URL: reqURL})
	}
	defer resp.Body.Close()
	log.Debugf("status code: %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, failure.New(failure.KindSandboxTransport, t.Backend, ErrHTTPStatus{StatusCode: resp.StatusCode, URL: reqURL})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.New(failure.KindSandboxTransport, t.Backend, ErrHTTPBody{Err: err, URL: reqURL})
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// CheckResponseCode inspects the JSON envelope `{"response_code": N,
// "response": {...}}` used by the sandbox APIs. A non-zero code is
// returned as failure.KindSandboxLogical with the embedded error message.
func CheckResponseCode(backend string, body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, failure.New(failure.KindSandboxLogical, backend, ErrMalformedResponse{Reason: "not a JSON", Body: body})
	}
	parsed := gjson.ParseBytes(body)
	code := parsed.Get("response_code")
	if !code.Exists() {
		return gjson.Result{}, failure.New(failure.KindSandboxLogical, backend, ErrMalformedResponse{Reason: "no response_code", Body: body})
	}
	if code.Int() != 0 {
		return gjson.Result{}, failure.New(failure.KindSandboxLogical, backend, ErrResponse{
			Code:    code.Int(),
			Message: ErrorMessage(parsed.Get("response")),
		})
	}
	return parsed.Get("response"), nil
}

// ErrorMessage extracts a human-readable error message from a response
// object, which may be a plain string or an object with an error field.
func ErrorMessage(response gjson.Result) string {
	if response.Type == gjson.String {
		return response.String()
	}
	for _, path := range []string{"error", "message", "errorMessage"} {
		if msg := response.Get(path); msg.Exists() {
			return msg.String()
		}
	}
	return ""
}

// MultipartForm builds a multipart/form-data body of the fields and files.
// The sample is uploaded as "file", every child under its SHA256.
func MultipartForm(fields [][2]string, sample File, children []File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range fields {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("unable to write field '%s': %w", field[0], err)
		}
	}

	writeFile := func(fieldName string, file File) error {
		part, err := w.CreateFormFile(fieldName, file.Name)
		if err != nil {
			return fmt.Errorf("unable to create form file '%s': %w", fieldName, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return fmt.Errorf("unable to write form file '%s': %w", fieldName, err)
		}
		return nil
	}
	if err := writeFile("file", sample); err != nil {
		return nil, "", err
	}
	for _, child := range children {
		if err := writeFile(child.SHA256, child); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("unable to finalize the multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// Gunzip decompresses a gzip payload. Data which is not gzipped is
// returned as is.
func Gunzip(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to open the gzip stream: %w", err)
	}
	defer r.Close()
	result, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to decompress: %w", err)
	}
	return result, nil
}
