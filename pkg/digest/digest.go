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
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/glaslos/ssdeep"

	"github.com/immune-gmbh/sampleflow/pkg/failure"
)

// Digests is the identity tuple of a sample.
//
// SHA256 is the content key. CTPH is a similarity-preserving fuzzy hash and
// must never be used for identity or deduplication.
type Digests struct {
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
	SHA512 string `json:"sha512"`
	CTPH   string `json:"ctph"`
}

// Compute returns the Digests of b.
func Compute(b []byte) Digests {
	hMD5, hSHA1, hSHA256, hSHA512 := md5.New(), sha1.New(), sha256.New(), sha512.New()
	// hash.Hash.Write never returns an error
	_, _ = io.Copy(io.MultiWriter(hMD5, hSHA1, hSHA256, hSHA512), bytes.NewReader(b))

	return Digests{
		MD5:    hex.EncodeToString(hMD5.Sum(nil)),
		SHA1:   hex.EncodeToString(hSHA1.Sum(nil)),
		SHA256: hex.EncodeToString(hSHA256.Sum(nil)),
		SHA512: hex.EncodeToString(hSHA512.Sum(nil)),
		CTPH:   FuzzyHash(b),
	}
}

// ComputeReader reads r once and returns its content together with the Digests.
//
// A read failure is reported as an ingest failure.
func ComputeReader(r io.Reader, name string) ([]byte, Digests, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, Digests{}, failure.New(failure.KindIngest, name, fmt.Errorf("unable to read the sample: %w", err))
	}
	return b, Compute(b), nil
}

// FuzzyHash returns the CTPH (ssdeep) of b, or an empty string if b is
// too small to produce a meaningful hash.
func FuzzyHash(b []byte) string {
	h, err := ssdeep.FuzzyBytes(b)
	if err != nil {
		return ""
	}
	return h
}

// Similarity returns the similarity score (0..100) of two CTPH values.
func Similarity(a, b string) (int, error) {
	if a == "" || b == "" {
		return 0, nil
	}
	return ssdeep.Distance(a, b)
}
