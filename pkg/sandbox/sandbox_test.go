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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	for raw, expected := range map[string]string{
		"cert.europa.eu":               "http://cert.europa.eu",
		" https://example.org/a?b=c ":  "https://example.org/a?b=c",
		"http://10.0.0.1:8080/payload": "http://10.0.0.1:8080/payload",
	} {
		normalized, err := NormalizeURL(raw)
		require.NoError(t, err, raw)
		require.Equal(t, expected, normalized)
	}

	for _, raw := range []string{"", "http://", "http://bad host/%zz"} {
		_, err := NormalizeURL(raw)
		require.Error(t, err, raw)
	}
}

func TestSortEnvironments(t *testing.T) {
	envs := []Environment{{ID: "linux"}, {ID: "100"}, {ID: "6"}}
	SortEnvironments(envs)
	require.Equal(t, []Environment{{ID: "6"}, {ID: "100"}, {ID: "linux"}}, envs)
}
