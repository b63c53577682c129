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
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/immune-gmbh/sampleflow/pkg/digest"
)

// ErrNotFound is returned by Get when there is no blob with the given key.
var ErrNotFound = errors.New("blob not found")

// BlobStorage is a content-addressed storage of sample blobs. Keys are
// lower-case hex SHA-256 digests of the content.
type BlobStorage interface {
	io.Closer
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Replace(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
}

// Pather is implemented by storages which keep blobs as local files.
type Pather interface {
	Path(key string) (string, error)
}

// New returns a BlobStorage given its URL:
//
//	fs:///srv/sampleflow/samples
//	s3://bucket/prefix?region=eu-west-1&endpoint=minio:9000&disable_ssl=true
func New(urlString string) (BlobStorage, error) {
	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse URL '%s': %w", urlString, err)
	}
	switch parsedURL.Scheme {
	case "fs":
		rootDir := parsedURL.Path
		return newFS(rootDir)
	case "s3":
		return newS3(parsedURL)
	default:
		return nil, fmt.Errorf("unknown scheme '%s'", parsedURL.Scheme)
	}
}

// ErrInvalidKey implements "error", for the description see Error.
type ErrInvalidKey struct {
	Key string
}

func (err ErrInvalidKey) Error() string {
	return fmt.Sprintf("invalid blob key '%s': expected a hex SHA-256 digest", err.Key)
}

// ErrTransient implements "error", for the description see Error.
type ErrTransient struct {
	Err error
}

func (err ErrTransient) Error() string {
	return fmt.Sprintf("transient blob storage failure: %v", err.Err)
}

func (err ErrTransient) Unwrap() error {
	return err.Err
}

// CanRetry implements the interface used by the storage retry loop.
func (err ErrTransient) CanRetry() bool {
	return true
}

func checkKey(key string) error {
	if kind, ok := digest.HashKind(key); !ok || kind != digest.KindSHA256 || key != digest.Normalize(key) {
		return ErrInvalidKey{Key: key}
	}
	return nil
}
