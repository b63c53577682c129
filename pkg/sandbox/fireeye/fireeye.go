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

package fireeye

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox"
)

// Kind is the backend name of FireEye AX.
const Kind = "fireeye"

// analysisTimeout is the analysis duration requested per submission, in seconds.
const analysisTimeout = "200"

// HTTPHeaderToken is the header carrying the API session token.
const HTTPHeaderToken = "X-FeApi-Token"

// Client is a client to the FireEye AX REST API. The session token is
// obtained on first use and renewed when the appliance rejects it.
type Client struct {
	transport *sandbox.Transport
	username  string
	password  string

	tokenLocker sync.Mutex
	token       string
}

var _ sandbox.Client = (*Client)(nil)

// New returns a new FireEye client.
func New(cfg config.SandboxConfig) (*Client, error) {
	if cfg.Username == "" {
		return nil, fmt.Errorf("username is required")
	}
	transport, err := sandbox.NewTransport(Kind, cfg.BaseURL, cfg.Timeout.Std(), cfg.InsecureSkipVerify)
	if err != nil {
		return nil, err
	}
	return &Client{
		transport: transport,
		username:  cfg.Username,
		password:  cfg.Password,
	}, nil
}

// Backend implements sandbox.Client.
func (c *Client) Backend() string {
	return Kind
}

func (c *Client) login(ctx context.Context) (string, error) {
	c.tokenLocker.Lock()
	defer c.tokenLocker.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	logger.FromCtx(ctx).Debugf("logging in to %s as '%s'", Kind, c.username)
	resp, err := c.transport.Do(ctx, sandbox.Request{
		Method:    http.MethodPost,
		Path:      "auth/login",
		BasicAuth: &[2]string{c.username, c.password},
	})
	if err != nil {
		return "", err
	}
	token := resp.Header.Get(HTTPHeaderToken)
	if token == "" {
		return "", failure.New(failure.KindSandboxLogical, Kind, ErrNoToken{})
	}
	c.token = token
	return token, nil
}

func (c *Client) resetToken(token string) {
	c.tokenLocker.Lock()
	defer c.tokenLocker.Unlock()
	if c.token == token {
		c.token = ""
	}
}

// do executes an authenticated request, logging in again once if the
// token has expired. newBody is called for every attempt.
func (c *Client) do(ctx context.Context, r sandbox.Request, newBody func() (sandbox.Request, error)) (*sandbox.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.login(ctx)
		if err != nil {
			return nil, err
		}
		if newBody != nil {
			r, err = newBody()
			if err != nil {
				return nil, failure.New(failure.KindSandboxTransport, Kind, err)
			}
		}
		r.Header = http.Header{
			HTTPHeaderToken: {token},
			"Accept":        {"application/json"},
		}

		resp, err := c.transport.Do(ctx, r)
		var statusErr sandbox.ErrHTTPStatus
		if attempt == 0 && errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
			c.resetToken(token)
			continue
		}
		return resp, err
	}
}

// Submit implements sandbox.Client.
func (c *Client) Submit(ctx context.Context, req sandbox.SubmitRequest) (sandbox.SubmissionID, error) {
	ctx = beltctx.WithField(ctx, "sandbox", Kind)
	log := logger.FromCtx(ctx)

	resp, err := c.do(ctx, sandbox.Request{}, func() (sandbox.Request, error) {
		// Live analysis (analysistype 1) runs without prefetch; the
		// sandbox analysis type would require prefetch=1.
		body, contentType, err := sandbox.MultipartForm([][2]string{
			{"profiles", string(req.EnvironmentID)},
			{"application", "0"},
			{"force", "0"},
			{"priority", "0"},
			{"analysistype", "1"},
			{"prefetch", "0"},
			{"timeout", analysisTimeout},
		}, req.Sample, req.Children)
		if err != nil {
			return sandbox.Request{}, err
		}
		return sandbox.Request{
			Method:      http.MethodPost,
			Path:        "submissions",
			Body:        body,
			ContentType: contentType,
		}, nil
	})
	if err != nil {
		return "", err
	}
	response, err := sandbox.CheckResponseCode(Kind, resp.Body)
	if err != nil {
		return "", err
	}
	if response.Get("state").String() == "Error" {
		return "", failure.New(failure.KindSandboxLogical, Kind, sandbox.ErrResponse{Message: sandbox.ErrorMessage(response)})
	}

	id := response.Get("id").String()
	if id == "" {
		id = response.Get("sha256").String()
	}
	if id == "" {
		id = req.Sample.SHA256
	}
	log.Debugf("submitted '%s' (%d children) to profile %s as %s", req.Sample.Name, len(req.Children), req.EnvironmentID, id)
	return sandbox.SubmissionID(id), nil
}

var _ sandbox.URLSubmitter = (*Client)(nil)

type urlSubmission struct {
	URLs         []string `json:"urls"`
	Profiles     []string `json:"profiles"`
	Application  string   `json:"application"`
	Force        string   `json:"force"`
	Priority     string   `json:"priority"`
	AnalysisType string   `json:"analysistype"`
	Prefetch     string   `json:"prefetch"`
	Timeout      string   `json:"timeout"`
}

// SubmitURL implements sandbox.URLSubmitter.
func (c *Client) SubmitURL(ctx context.Context, targetURL string, env sandbox.EnvironmentID) (sandbox.SubmissionID, error) {
	ctx = beltctx.WithField(ctx, "sandbox", Kind)
	body, err := json.Marshal(urlSubmission{
		URLs:         []string{targetURL},
		Profiles:     []string{string(env)},
		Application:  "0",
		Force:        "0",
		Priority:     "0",
		AnalysisType: "1",
		Prefetch:     "0",
		Timeout:      analysisTimeout,
	})
	if err != nil {
		return "", failure.New(failure.KindSandboxTransport, Kind, err)
	}

	resp, err := c.do(ctx, sandbox.Request{}, func() (sandbox.Request, error) {
		return sandbox.Request{
			Method:      http.MethodPost,
			Path:        "submissions/url",
			Body:        bytes.NewReader(body),
			ContentType: "application/json",
		}, nil
	})
	if err != nil {
		return "", err
	}
	response, err := sandbox.CheckResponseCode(Kind, resp.Body)
	if err != nil {
		return "", err
	}
	if response.Get("state").String() == "Error" {
		return "", failure.New(failure.KindSandboxLogical, Kind, sandbox.ErrResponse{Message: sandbox.ErrorMessage(response)})
	}

	id := response.Get("id").String()
	if id == "" {
		id = response.Get("sha256").String()
	}
	if id == "" {
		return "", failure.New(failure.KindSandboxLogical, Kind, sandbox.ErrMalformedResponse{Reason: "no submission id", Body: resp.Body})
	}
	logger.FromCtx(ctx).Debugf("submitted URL '%s' to profile %s as %s", targetURL, env, id)
	return sandbox.SubmissionID(id), nil
}

func parseState(raw string) sandbox.StateCode {
	switch raw {
	case "Submitted":
		return sandbox.StateInQueue
	case "In Progress":
		return sandbox.StateInProgress
	case "Done":
		return sandbox.StateSuccess
	case "Error":
		return sandbox.StateError
	}
	return sandbox.StateUnknown
}

// PollState implements sandbox.Client.
func (c *Client) PollState(ctx context.Context, id sandbox.SubmissionID, env sandbox.EnvironmentID) (sandbox.State, error) {
	resp, err := c.do(ctx, sandbox.Request{
		Method: http.MethodGet,
		Path:   "submissions/status/" + string(id),
		Query:  url.Values{"environmentId": {string(env)}},
	}, nil)
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
	resp, err := c.do(ctx, sandbox.Request{
		Method: http.MethodGet,
		Path:   "submissions/results/" + string(id),
		Query: url.Values{
			"type":          {string(artifactType)},
			"environmentId": {string(env)},
		},
	}, nil)
	if err != nil {
		return nil, err
	}
	if !artifactType.IsCompressed() {
		return resp.Body, nil
	}
	result, err := sandbox.Gunzip(resp.Body)
	if err != nil {
		return nil, failure.New(failure.KindSandboxLogical, Kind, err)
	}
	return result, nil
}

type applianceConfig struct {
	Sensors []struct {
		Profiles []struct {
			ID   string `xml:"id,attr"`
			Name string `xml:"name,attr"`
		} `xml:"profiles>profile"`
	} `xml:"sensors>sensor"`
}

// ListEnvironments implements sandbox.Client. The environments are the
// analysis profiles of all sensors of the appliance.
func (c *Client) ListEnvironments(ctx context.Context) ([]sandbox.Environment, error) {
	resp, err := c.do(ctx, sandbox.Request{
		Method: http.MethodGet,
		Path:   "config",
	}, nil)
	if err != nil {
		return nil, err
	}

	var cfg applianceConfig
	if err := xml.Unmarshal(resp.Body, &cfg); err != nil {
		return nil, failure.New(failure.KindSandboxLogical, Kind, sandbox.ErrMalformedResponse{Reason: err.Error(), Body: resp.Body})
	}

	seen := map[string]struct{}{}
	var result []sandbox.Environment
	for _, sensor := range cfg.Sensors {
		for _, profile := range sensor.Profiles {
			if _, ok := seen[profile.ID]; ok {
				continue
			}
			seen[profile.ID] = struct{}{}
			result = append(result, sandbox.Environment{
				ID:   sandbox.EnvironmentID(profile.ID),
				Name: profile.Name,
			})
		}
	}
	sandbox.SortEnvironments(result)
	return result, nil
}
