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

package blobstorage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func keyOf(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func TestFS(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	stor, err := New("fs://" + root)
	require.NoError(t, err)
	defer stor.Close()

	blob := []byte("MZ\x90\x00unit-test")
	key := keyOf(blob)

	has, err := stor.Has(ctx, key)
	require.NoError(t, err)
	require.False(t, has)

	_, err = stor.Get(ctx, key)
	require.True(t, errors.Is(err, ErrNotFound), err)

	require.NoError(t, stor.Replace(ctx, key, blob))
	has, err = stor.Has(ctx, key)
	require.NoError(t, err)
	require.True(t, has)

	got, err := stor.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, blob, got)

	// flat namespace, the file is named by the key
	onDisk, err := os.ReadFile(filepath.Join(root, key))
	require.NoError(t, err)
	require.Equal(t, blob, onDisk)

	require.NoError(t, stor.Delete(ctx, key))
	has, err = stor.Has(ctx, key)
	require.NoError(t, err)
	require.False(t, has)
}

func TestFSConcurrentReplace(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	stor, err := NewFS(root)
	require.NoError(t, err)

	blob := make([]byte, 1<<20)
	for idx := range blob {
		blob[idx] = byte(idx)
	}
	key := keyOf(blob)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, stor.Replace(ctx, key, blob))
		}()
	}
	wg.Wait()

	got, err := stor.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, blob, got)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFSInvalidKey(t *testing.T) {
	stor, err := NewFS(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../etc/passwd", "ABCD", keyOf([]byte("x"))[:40]} {
		_, err := stor.Path(key)
		require.Error(t, err, key)
		require.Error(t, stor.Replace(context.Background(), key, []byte("x")), key)
	}
}

func TestNewUnknownScheme(t *testing.T) {
	_, err := New("ftp://example.org/samples")
	require.Error(t, err)
}
