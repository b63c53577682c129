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

package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/immune-gmbh/sampleflow/pkg/objhash"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

// Get returns the sample bytes and the metadata by the sample ID
// (basically combines GetSample and GetSampleBytes).
func (stor *Storage) Get(ctx context.Context, id int64) ([]byte, *models.Sample, error) {
	sample, err := stor.GetSample(ctx, id)
	if err != nil {
		return nil, nil, ErrGetMeta{Err: err}
	}

	data, err := stor.GetSampleBytes(ctx, sample.SHA256)
	if err != nil {
		return nil, nil, ErrGetData{Err: err}
	}

	return data, sample, nil
}

// GetSampleBytes returns the sample content given its SHA256.
func (stor *Storage) GetSampleBytes(ctx context.Context, sha256 string) (data []byte, err error) {
	type getSampleBytesResult struct {
		data []byte
		err  error
	}
	cacheKey, cacheKeyErr := objhash.Build("GetSampleBytes", sha256)
	if cacheKeyErr == nil {
		unlocker := stor.CacheLockMap.Lock(cacheKey)
		defer unlocker.Unlock()

		if result, ok := unlocker.UserData.(getSampleBytesResult); ok {
			return result.data, result.err
		}
		defer func() {
			unlocker.UserData = getSampleBytesResult{
				data: data,
				err:  err,
			}
		}()

		// The storage is content-addressed, thus a cached value is always coherent.
		cachedValue, ok := stor.Cache.Get(ctx, cacheKey).([]byte)
		if ok {
			return cachedValue, nil
		}
	}

	err = stor.retryLoop(ctx, func() (err error) {
		data, err = stor.BlobStorage.Get(ctx, sha256)
		return
	})
	if err != nil {
		return nil, ErrDownload{Err: err}
	}
	if cacheKeyErr == nil {
		stor.Cache.Set(ctx, cacheKey, data, uint64(len(data)))
	}
	return data, nil
}

// SamplePath returns a local filesystem path to the sample content, which
// is needed by external scanners. If the BlobStorage keeps no local files,
// the content is written to a temporary file. The returned function must
// be called when the path is no longer needed.
func (stor *Storage) SamplePath(ctx context.Context, sha256 string) (string, func(), error) {
	if pather, ok := stor.BlobStorage.(interface{ Path(key string) (string, error) }); ok {
		p, err := pather.Path(sha256)
		if err != nil {
			return "", nil, ErrGetData{Err: err}
		}
		if _, err := os.Stat(p); err != nil {
			return "", nil, ErrDownload{Err: err}
		}
		return p, func() {}, nil
	}

	data, err := stor.GetSampleBytes(ctx, sha256)
	if err != nil {
		return "", nil, err
	}
	f, err := os.CreateTemp("", "sample-"+sha256+"-*")
	if err != nil {
		return "", nil, ErrGetData{Err: fmt.Errorf("unable to create a temporary file: %w", err)}
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, ErrGetData{Err: fmt.Errorf("unable to write '%s': %w", f.Name(), err)}
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, ErrGetData{Err: fmt.Errorf("unable to close '%s': %w", f.Name(), err)}
	}
	return f.Name(), cleanup, nil
}
