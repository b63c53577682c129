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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
	"github.com/immune-gmbh/sampleflow/pkg/sandbox"
)

const applianceConfigXML = `<?xml version="1.0" encoding="UTF-8"?>
<config>
  <sensors>
    <sensor address="10.0.0.1">
      <profiles>
        <profile id="win7-sp1" name="Windows 7 SP1"/>
        <profile id="winxp-sp3" name="Windows XP SP3"/>
      </profiles>
    </sensor>
    <sensor address="10.0.0.2">
      <profiles>
        <profile id="win7-sp1" name="Windows 7 SP1"/>
        <profile id="win10x64" name="Windows 10 x64"/>
      </profiles>
    </sensor>
  </sensors>
</config>`

type fakeAppliance struct {
	locker sync.Mutex
	logins int
	tokens map[string]bool
	states []string
	polls  int
	form   url.Values
	urls   []string
}

func (f *fakeAppliance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.locker.Lock()
	defer f.locker.Unlock()

	if r.URL.Path == "/wsapis/v1.2.0/auth/login" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "analyst" || pass != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.logins++
		token := fmt.Sprintf("token-%d", f.logins)
		f.tokens[token] = true
		w.Header().Set(HTTPHeaderToken, token)
		return
	}
	if !f.tokens[r.Header.Get(HTTPHeaderToken)] {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/wsapis/v1.2.0/submissions":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.form = r.MultipartForm.Value
		if r.FormValue("profiles") == "" {
			fmt.Fprint(w, `{"response_code":0,"response":{"state":"Error","error":"no profile"}}`)
			return
		}
		fmt.Fprint(w, `{"response_code":0,"response":{"id":"1234","state":"Submitted"}}`)
	case "/wsapis/v1.2.0/submissions/url":
		var submission struct {
			URLs     []string `json:"urls"`
			Profiles []string `json:"profiles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.urls = submission.URLs
		if len(submission.Profiles) != 1 || submission.Profiles[0] == "" {
			fmt.Fprint(w, `{"response_code":0,"response":{"state":"Error","error":"no profile"}}`)
			return
		}
		fmt.Fprint(w, `{"response_code":0,"response":{"id":"1234","state":"Submitted"}}`)
	case "/wsapis/v1.2.0/submissions/status/1234":
		state := f.states[f.polls]
		if f.polls < len(f.states)-1 {
			f.polls++
		}
		fmt.Fprintf(w, `{"response_code":0,"response":{"state":"%s"}}`, state)
	case "/wsapis/v1.2.0/submissions/results/1234":
		fmt.Fprintf(w, `{"alerts":[{"type":"%s"}]}`, r.URL.Query().Get("type"))
	case "/wsapis/v1.2.0/config":
		fmt.Fprint(w, applianceConfigXML)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeAppliance) *Client {
	if fake.tokens == nil {
		fake.tokens = map[string]bool{}
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New(config.SandboxConfig{
		BaseURL:  srv.URL + "/wsapis/v1.2.0",
		Username: "analyst",
		Password: "pw",
	})
	require.NoError(t, err)
	return c
}

func TestStateSequence(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAppliance{states: []string{"Submitted", "In Progress", "DONE", "Done"}}
	c := newTestClient(t, fake)

	var codes []sandbox.StateCode
	var raws []string
	for i := 0; i < 4; i++ {
		state, err := c.PollState(ctx, "1234", "win7-sp1")
		require.NoError(t, err)
		codes = append(codes, state.Code)
		raws = append(raws, state.RawState)
	}
	require.Equal(t, []sandbox.StateCode{sandbox.StateInQueue, sandbox.StateInProgress, sandbox.StateUnknown, sandbox.StateSuccess}, codes)
	require.Equal(t, []string{"Submitted", "In Progress", "DONE", "Done"}, raws)
	require.Equal(t, 1, fake.logins)
}

func TestTokenRenewal(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAppliance{states: []string{"Done"}}
	c := newTestClient(t, fake)

	_, err := c.PollState(ctx, "1234", "win7-sp1")
	require.NoError(t, err)

	fake.locker.Lock()
	fake.tokens = map[string]bool{}
	fake.locker.Unlock()

	state, err := c.PollState(ctx, "1234", "win7-sp1")
	require.NoError(t, err)
	require.Equal(t, sandbox.StateSuccess, state.Code)
	require.Equal(t, 2, fake.logins)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAppliance{}
	c := newTestClient(t, fake)

	id, err := c.Submit(ctx, sandbox.SubmitRequest{
		Sample:        sandbox.File{Name: "sample.exe", SHA256: "aa", Data: []byte("MZ")},
		EnvironmentID: "win7-sp1",
	})
	require.NoError(t, err)
	require.Equal(t, sandbox.SubmissionID("1234"), id)
	require.Equal(t, url.Values{
		"profiles":     {"win7-sp1"},
		"application":  {"0"},
		"force":        {"0"},
		"priority":     {"0"},
		"analysistype": {"1"},
		"prefetch":     {"0"},
		"timeout":      {"200"},
	}, fake.form)

	_, err = c.Submit(ctx, sandbox.SubmitRequest{
		Sample: sandbox.File{Name: "sample.exe", SHA256: "aa", Data: []byte("MZ")},
	})
	require.True(t, failure.IsKind(err, failure.KindSandboxLogical), err)
	require.Contains(t, err.Error(), "no profile")
}

func TestSubmitURL(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAppliance{}
	c := newTestClient(t, fake)

	id, err := c.SubmitURL(ctx, "http://cert.europa.eu", "win7-sp1")
	require.NoError(t, err)
	require.Equal(t, sandbox.SubmissionID("1234"), id)
	require.Equal(t, []string{"http://cert.europa.eu"}, fake.urls)

	_, err = c.SubmitURL(ctx, "http://cert.europa.eu", "")
	require.True(t, failure.IsKind(err, failure.KindSandboxLogical), err)
}

func TestLoginFailure(t *testing.T) {
	fake := &fakeAppliance{tokens: map[string]bool{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c, err := New(config.SandboxConfig{BaseURL: srv.URL + "/wsapis/v1.2.0", Username: "analyst", Password: "wrong"})
	require.NoError(t, err)

	_, err = c.ListEnvironments(context.Background())
	require.True(t, failure.IsKind(err, failure.KindSandboxTransport), err)
}

func TestListEnvironments(t *testing.T) {
	c := newTestClient(t, &fakeAppliance{})
	envs, err := c.ListEnvironments(context.Background())
	require.NoError(t, err)
	require.Equal(t, []sandbox.Environment{
		{ID: "win10x64", Name: "Windows 10 x64"},
		{ID: "win7-sp1", Name: "Windows 7 SP1"},
		{ID: "winxp-sp3", Name: "Windows XP SP3"},
	}, envs)
}

func TestFetchResult(t *testing.T) {
	c := newTestClient(t, &fakeAppliance{})
	result, err := c.FetchResult(context.Background(), "1234", "win7-sp1", sandbox.ArtifactJSON)
	require.NoError(t, err)
	require.JSONEq(t, `{"alerts":[{"type":"json"}]}`, string(result))

	result, err = c.FetchResult(context.Background(), "1234", "win7-sp1", sandbox.ArtifactXML)
	require.NoError(t, err)
	require.JSONEq(t, `{"alerts":[{"type":"xml"}]}`, string(result))
}
