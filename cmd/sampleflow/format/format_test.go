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

package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/engines"
	"github.com/immune-gmbh/sampleflow/pkg/scanner"
)

func TestPrintVerdicts(t *testing.T) {
	var buf bytes.Buffer
	PrintVerdicts(&buf, false, []string{"clam", "eset", "broken"}, scanner.Results{
		"clam": engines.Findings{},
		"eset": engines.Findings{"/tmp/x/b.exe": "Win32/Agent", "/tmp/x/a.exe": "Win32/Trojan"},
	})
	require.Equal(t,
		"clam             clean\n"+
			"eset             /tmp/x/a.exe: Win32/Trojan\n"+
			"eset             /tmp/x/b.exe: Win32/Agent\n"+
			"broken           FAILED\n",
		buf.String())
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatJSON, map[string]int{"a": 1}))
	require.JSONEq(t, `{"a":1}`, buf.String())

	buf.Reset()
	require.NoError(t, Print(&buf, FormatSpew, map[string]int{"a": 1}))
	require.Contains(t, buf.String(), `"a": (int) 1`)

	require.Error(t, Print(&buf, "xml", nil))
}
