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

package vxstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/tidwall/gjson"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox"
)

// Kind is the backend name of VxStream Sandbox.
const Kind = "vxstream"

const userAgent = "VxStream Sandbox API Client"

// Client is a client to the VxStream Sandbox REST API.
type Client struct {
	transport *sandbox.Transport
	apiKey    string
	apiSecret string
}

var _ sandbox.Client = (*Client)(nil)

// New returns a new VxStream Sandbox client.
func New(cfg config.SandboxConfig) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("api_key and api_secret are required")
	}
	transport, err := sandbox.NewTransport(Kind, cfg.BaseURL, cfg.Timeout.Std(), cfg.InsecureSkipVerify)
	if err != nil {
		return nil, err
	}
	transport.UserAgent = userAgent
	return &Client{
		transport: transport,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
	}, nil
}

// Backend implements sandbox.Client.
func (c *Client) Backend() string {
	return Kind
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*sandbox.Response, error) {
	return c.transport.Do(ctx, sandbox.Request{
		Method:    http.MethodGet,
		Path:      path,
		Query:     query,
		Header:    http.Header{"Accept": {"application/json"}},
		BasicAuth: &[2]string{c.apiKey, c.apiSecret},
	})
}

// Submit implements sandbox.Client.
func (c *Client) Submit(ctx context.Context, req sandbox.SubmitRequest) (sandbox.SubmissionID, error) {
	ctx = beltctx.WithField(ctx, "sandbox", Kind)
	log := logger.FromCtx(ctx)

	body, contentType, err := sandbox.MultipartForm([][2]string{
		{"apikey", c.apiKey},
		{"secret", c.apiSecret},
		{"environmentId", string(req.EnvironmentID)},
	}, req.Sample, req.Children)
	if err != nil {
		return "", failure.New(failure.KindSandboxTransport, Kind, err)
	}

	resp, err := c.transport.Do(ctx, sandbox.Request{
		Method:      http.MethodPost,
		Path:        "submit",
		Header:      http.Header{"Accept": {"application/json"}},
		Body:        body,
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	response, err := sandbox.CheckResponseCode(Kind, resp.Body)
	if err != nil {
		return "", err
	}

	id := response.Get("sha256").String()
	if id == "" {
		id = req.Sample.SHA256
	}
	log.Debugf("submitted '%s' (%d children) to environment %s as %s", req.Sample.Name, len(req.Children), req.EnvironmentID, id)
	return sandbox.SubmissionID(id), nil
}

var _ sandbox.URLSubmitter = (*Client)(nil)

// SubmitURL implements sandbox.URLSubmitter.
func (c *Client) SubmitURL(ctx context.Context, targetURL string, env sandbox.EnvironmentID) (sandbox.SubmissionID, error) {
	ctx = beltctx.WithField(ctx, "sandbox", Kind)
	form := url.Values{
		"apikey":        {c.apiKey},
		"secret":        {c.apiSecret},
		"environmentId": {string(env)},
		"analyzeurl":    {targetURL},
	}
	resp, err := c.transport.Do(ctx, sandbox.Request{
		Method:      http.MethodPost,
		Path:        "submiturl",
		Header:      http.Header{"Accept": {"application/json"}},
		Body:        strings.NewReader(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return "", err
	}
	response, err := sandbox.CheckResponseCode(Kind, resp.Body)
	if err != nil {
		return "", err
	}

	id := response.Get("sha256").String()
	if id == "" {
		return "", failure.New(failure.KindSandboxLogical, Kind, sandbox.ErrMalformedResponse{Reason: "no sha256", Body: resp.Body})
	}
	logger.FromCtx(ctx).Debugf("submitted URL '%s' to environment %s as %s", targetURL, env, id)
	return sandbox.SubmissionID(id), nil
}

func parseState(raw string) sandbox.StateCode {
	switch raw {
	case "IN_QUEUE":
		return sandbox.StateInQueue
	case "IN_PROGRESS":
		return sandbox.StateInProgress
	case "SUCCESS":
		return sandbox.StateSuccess
	case "ERROR":
		return sandbox.StateError
	}
	return sandbox.StateUnknown
}

// PollState implements sandbox.Client.
func (c *Client) PollState(ctx context.Context, id sandbox.SubmissionID, env sandbox.EnvironmentID) (sandbox.State, error) {
	resp, err := c.get(ctx, "state/"+string(id), url.Values{"environmentId": {string(env)}})
	if err != nil {
		return sandbox.State{}, err
	}
	response, err := sandbox.CheckResponseCode(Kind, resp.Body)
	if err != nil {
		return sandbox.State{}, err
	}

	raw := response.Get("state").String()
	state := sandbox.State{
		Code:     parseState(raw),
		RawState: raw,
	}
	if state.Code == sandbox.StateError {
		state.Error = sandbox.ErrorMessage(response)
	}
	return state, nil
}

// FetchResult implements sandbox.Client.
func (c *Client) FetchResult(
	ctx context.Context,
	id sandbox.SubmissionID,
	env sandbox.EnvironmentID,
	artifactType sandbox.ArtifactType,
) ([]byte, error) {
	query := url.Values{
		"type":          {string(artifactType)},
		"environmentId": {string(env)},
	}
	if artifactType == sandbox.ArtifactJSON {
		resp, err := c.get(ctx, "summary/"+string(id), query)
		if err != nil {
			return nil, err
		}
		if _, err := sandbox.CheckResponseCode(Kind, resp.Body); err != nil {
			return nil, err
		}
		return resp.Body, nil
	}

	resp, err := c.get(ctx, "result/"+string(id), query)
	if err != nil {
		return nil, err
	}
	result, err := sandbox.Gunzip(resp.Body)
	if err != nil {
		return nil, failure.New(failure.KindSandboxLogical, Kind, err)
	}
	return result, nil
}

// ListEnvironments implements sandbox.Client.
func (c *Client) ListEnvironments(ctx context.Context) ([]sandbox.Environment, error) {
	resp, err := c.get(ctx, "state", nil)
	if err != nil {
		return nil, err
	}
	response, err := sandbox.CheckResponseCode(Kind, resp.Body)
	if err != nil {
		return nil, err
	}

	var result []sandbox.Environment
	response.Get("environmentList").ForEach(func(key, value gjson.Result) bool {
		result = append(result, sandbox.Environment{
			ID:   sandbox.EnvironmentID(key.String()),
			Name: value.String(),
		})
		return true
	})
	sandbox.SortEnvironments(result)
	return result, nil
}
