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

package objcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/objhash"
)

func TestBlobCache(t *testing.T) {
	ctx := context.Background()
	c, err := New(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	key := objhash.MustBuild("GetSampleBytes", "deadbeef")
	require.Nil(t, c.Get(ctx, key))

	c.Set(ctx, key, []byte("MZ"), 2)
	c.Wait()
	require.Equal(t, []byte("MZ"), c.Get(ctx, key))

	other := objhash.MustBuild("GetSampleBytes", "cafebabe")
	c.Set(ctx, other, "not a blob", 10)
	c.Wait()
	require.Nil(t, c.Get(ctx, other))
}
