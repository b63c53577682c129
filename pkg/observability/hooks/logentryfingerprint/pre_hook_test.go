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

package logentryfingerprint

import (
	"testing"

	"github.com/facebookincubator/go-belt/pkg/field"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	hook := PreHook{}

	a := hook.ProcessInputf(nil, logger.LevelWarning, "engine %s failed: %v", "clamav", "refused")
	b := hook.ProcessInputf(nil, logger.LevelWarning, "engine %s failed: %v", "eset", "timeout")
	require.Equal(t, a.ExtraFields, b.ExtraFields)

	c := hook.ProcessInputf(nil, logger.LevelError, "engine %s failed: %v", "clamav", "refused")
	require.NotEqual(t, a.ExtraFields, c.ExtraFields)

	d := hook.ProcessInput(nil, logger.LevelInfo, nil, 1, "x")
	e := hook.ProcessInput(nil, logger.LevelInfo, nil, 2, "y")
	require.Equal(t, d.ExtraFields, e.ExtraFields)

	value := Fingerprint(logger.LevelInfo, "msg", field.Map[string]{"k": "v"}, nil)
	require.Len(t, string(value), fingerprintSize*2)
	require.Equal(t, value, Fingerprint(logger.LevelInfo, "msg", field.Map[string]{"k": "other"}, nil))
}
