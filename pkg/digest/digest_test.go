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

package digest

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/failure"
)

func TestComputeKnownValues(t *testing.T) {
	d := Compute([]byte("abc"))
	require.Equal(t, "900150983cd24fb0d6963f7d28e17f72", d.MD5)
	require.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", d.SHA1)
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", d.SHA256)
	require.Len(t, d.SHA512, 128)
}

func TestComputeDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, size := range []int{0, 1, 2, 4095, 4096, 65536} {
		payload := make([]byte, size)
		rng.Read(payload)

		a := Compute(payload)
		b := Compute(append([]byte{}, payload...))
		require.Equal(t, a, b, "size %d", size)
	}

	require.NotEqual(t, Compute([]byte("a")).SHA256, Compute([]byte("b")).SHA256)
}

func TestComputeReader(t *testing.T) {
	b, d, err := ComputeReader(bytes.NewReader([]byte("MZ")), "stub.exe")
	require.NoError(t, err)
	require.Equal(t, []byte("MZ"), b)
	require.Equal(t, Compute([]byte("MZ")), d)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestComputeReaderIngestFailure(t *testing.T) {
	_, _, err := ComputeReader(brokenReader{}, "upload.bin")
	require.Error(t, err)
	require.Equal(t, failure.KindIngest, failure.KindOf(err))
}

func TestHashKind(t *testing.T) {
	d := Compute([]byte("kind"))
	for identifier, expected := range map[string]Kind{
		d.MD5:    KindMD5,
		d.SHA1:   KindSHA1,
		d.SHA256: KindSHA256,
		d.SHA512: KindSHA512,
	} {
		kind, ok := HashKind(identifier)
		require.True(t, ok)
		require.Equal(t, expected, kind)
	}

	for _, bad := range []string{"", "xyz", "../../etc/passwd", d.SHA256[:63], d.SHA256 + "00"} {
		_, ok := HashKind(bad)
		require.False(t, ok, bad)
	}
}
