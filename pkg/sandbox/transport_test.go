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
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/failure"
)

func TestTransportStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ok":
			require.Equal(t, "1", r.URL.Query().Get("environmentId"))
			_, _ = w.Write([]byte(`{"response_code":0,"response":{"state":"SUCCESS"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	tr, err := NewTransport("test", srv.URL+"/api", 0, false)
	require.NoError(t, err)

	resp, err := tr.Do(context.Background(), Request{Method: http.MethodGet, Path: "ok", Query: map[string][]string{"environmentId": {"1"}}})
	require.NoError(t, err)
	response, err := CheckResponseCode("test", resp.Body)
	require.NoError(t, err)
	require.Equal(t, "SUCCESS", response.Get("state").String())

	_, err = tr.Do(context.Background(), Request{Method: http.MethodGet, Path: "broken"})
	require.Error(t, err)
	require.True(t, failure.IsKind(err, failure.KindSandboxTransport))
	require.ErrorAs(t, err, &ErrHTTPStatus{})

	srv.Close()
	_, err = tr.Do(context.Background(), Request{Method: http.MethodGet, Path: "ok"})
	require.True(t, failure.IsKind(err, failure.KindSandboxTransport))
}

func TestCheckResponseCode(t *testing.T) {
	_, err := CheckResponseCode("test", []byte(`{"response_code":-1,"response":{"error":"no public key"}}`))
	require.True(t, failure.IsKind(err, failure.KindSandboxLogical))
	require.Contains(t, err.Error(), "no public key")

	_, err = CheckResponseCode("test", []byte(`{"response_code":1,"response":"Quota exceeded"}`))
	require.Contains(t, err.Error(), "Quota exceeded")

	_, err = CheckResponseCode("test", []byte(`<html></html>`))
	require.True(t, failure.IsKind(err, failure.KindSandboxLogical))

	_, err = CheckResponseCode("test", []byte(`{"state":"x"}`))
	require.ErrorAs(t, err, &ErrMalformedResponse{})
}

func TestGunzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte("<html>report</html>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out, err := Gunzip(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "<html>report</html>", string(out))

	out, err = Gunzip([]byte("plain"))
	require.NoError(t, err)
	require.Equal(t, "plain", string(out))

	_, err = Gunzip([]byte{0x1f, 0x8b, 0x00})
	require.Error(t, err)
}

func TestMultipartForm(t *testing.T) {
	body, contentType, err := MultipartForm(
		[][2]string{{"environmentId", "100"}},
		File{Name: "sample.zip", SHA256: "aa", Data: []byte("PK")},
		[]File{{Name: "a.exe", SHA256: "bb", Data: []byte("MZ")}},
	)
	require.NoError(t, err)

	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	r := multipart.NewReader(body, params["boundary"])

	got := map[string]string{}
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		got[part.FormName()] = string(data)
	}
	require.Equal(t, map[string]string{"environmentId": "100", "file": "PK", "bb": "MZ"}, got)
}
