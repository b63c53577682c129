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
	"io/fs"
	"os"
	"path/filepath"
)

// FS keeps blobs as files named by their key in a flat directory.
type FS struct {
	RootDir string
}

var (
	_ BlobStorage = (*FS)(nil)
	_ Pather      = (*FS)(nil)
)

func newFS(rootDir string) (*FS, error) {
	err := os.MkdirAll(rootDir, 0750)
	if err != nil {
		return nil, fmt.Errorf("unable to create the rootdir '%s': %w", rootDir, err)
	}
	return &FS{
		RootDir: rootDir,
	}, nil
}

// NewFS returns a filesystem BlobStorage rooted at rootDir.
func NewFS(rootDir string) (*FS, error) {
	return newFS(rootDir)
}

func (s *FS) Has(ctx context.Context, key string) (bool, error) {
	objPath, err := s.Path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(objPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *FS) Get(ctx context.Context, key string) ([]byte, error) {
	objPath, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(objPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return b, err
}

// Replace writes the blob to a temporary file in the same directory and
// renames it over the final path, so concurrent writers of the same content
// never expose a truncated file.
func (s *FS) Replace(ctx context.Context, key string, blob []byte) (retErr error) {
	objPath, err := s.Path(key)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(s.RootDir, ".tmp-"+key+"-*")
	if err != nil {
		return fmt.Errorf("unable to create a temporary file: %w", err)
	}
	tmpPath := f.Name()
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(blob); err != nil {
		_ = f.Close()
		return fmt.Errorf("unable to write '%s': %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("unable to sync '%s': %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to close '%s': %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0640); err != nil {
		return fmt.Errorf("unable to chmod '%s': %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, objPath); err != nil {
		return fmt.Errorf("unable to rename '%s' to '%s': %w", tmpPath, objPath, err)
	}
	return nil
}

func (s *FS) Delete(ctx context.Context, key string) error {
	objPath, err := s.Path(key)
	if err != nil {
		return err
	}
	return os.Remove(objPath)
}

// Path returns the location of the blob on the local filesystem.
func (s *FS) Path(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.RootDir, key), nil
}

func (s *FS) Close() error {
	return nil
}
