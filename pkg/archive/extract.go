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

package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/ulikunitz/xz"
	"github.com/yeka/zip"

	"github.com/immune-gmbh/sampleflow/pkg/failure"
)

const (
	// methodXZ is the zip compression method id of XZ.
	methodXZ = 95
)

func init() {
	zip.RegisterDecompressor(methodXZ, func(r io.Reader) io.ReadCloser {
		xzReader, err := xz.ReaderConfig{SingleStream: true}.NewReader(r)
		if err != nil {
			return io.NopCloser(errReader{err: err})
		}
		return io.NopCloser(xzReader)
	})
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

// Member is a file extracted from a container.
type Member struct {
	Name string
	Data []byte
}

// ErrLimitExceeded implements "error", for the description see Error.
type ErrLimitExceeded struct {
	Limit string
	Value int64
}

func (err ErrLimitExceeded) Error() string {
	return fmt.Sprintf("limit '%s' (%d) exceeded", err.Limit, err.Value)
}

// budget is the amount of decompressed bytes still allowed.
type budget struct {
	remaining int64
}

// cappedBuffer fails writes which exceed the budget.
type cappedBuffer struct {
	buf    bytes.Buffer
	budget *budget
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if int64(len(p)) > b.budget.remaining {
		return 0, ErrLimitExceeded{Limit: "MaxTotalSize", Value: int64(b.buf.Len() + len(p))}
	}
	b.budget.remaining -= int64(len(p))
	return b.buf.Write(p)
}

func (b *cappedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

// extract returns the members of a zip container. Members which cannot be
// extracted are returned as failure.Error-s of kind KindExpansion, they do
// not prevent extraction of other members.
func (e *Expander) extract(ctx context.Context, data []byte, b *budget) ([]Member, []error, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open the container: %w", err)
	}

	var (
		members  []Member
		failures []error
		onDisk   *tempContainer
	)
	defer func() {
		if onDisk != nil {
			onDisk.Close()
		}
	}()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if len(members) >= e.Options.MaxMembers {
			failures = append(failures, failure.New(failure.KindExpansion, f.Name, ErrLimitExceeded{Limit: "MaxMembers", Value: int64(e.Options.MaxMembers)}))
			break
		}
		if b.remaining <= 0 {
			failures = append(failures, failure.New(failure.KindExpansion, f.Name, ErrLimitExceeded{Limit: "MaxTotalSize", Value: e.Options.MaxTotalSize}))
			break
		}

		memberData, err := e.readMember(f, b)
		if errors.Is(err, zip.ErrAlgorithm) {
			logger.FromCtx(ctx).Debugf("member '%s' uses compression method %d, falling back to %s", f.Name, f.Method, e.Options.SevenZipPath)
			if onDisk == nil {
				onDisk, err = newTempContainer(data)
			}
			if onDisk != nil {
				memberData, err = e.readMemberExternal(ctx, onDisk.Path, f.Name, b)
			}
		}
		if err != nil {
			failures = append(failures, failure.New(failure.KindExpansion, f.Name, err))
			continue
		}
		members = append(members, Member{Name: f.Name, Data: memberData})
	}
	return members, failures, nil
}

func (e *Expander) readMember(f *zip.File, b *budget) ([]byte, error) {
	if f.IsEncrypted() {
		f.SetPassword(e.Options.Password)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf := &cappedBuffer{budget: b}
	if _, err := io.Copy(buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readMemberExternal extracts a member with the external 7-Zip tool.
func (e *Expander) readMemberExternal(ctx context.Context, containerPath, name string, b *budget) ([]byte, error) {
	if e.Options.SevenZipPath == "" {
		return nil, fmt.Errorf("unsupported compression method and no external extractor is configured")
	}
	if strings.HasPrefix(name, "-") {
		return nil, fmt.Errorf("refusing to pass member name '%s' to the external extractor", name)
	}
	if e.Options.SevenZipTimeout > 0 {
		var cancelFn context.CancelFunc
		ctx, cancelFn = context.WithTimeout(ctx, e.Options.SevenZipTimeout)
		defer cancelFn()
	}

	cmd := exec.CommandContext(ctx, e.Options.SevenZipPath, "e", "-so", "-p"+e.Options.Password, containerPath, name)
	stdout := &cappedBuffer{budget: b}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("external extractor: %w", ctx.Err())
		}
		return nil, fmt.Errorf("external extractor failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// tempContainer is a copy of the container on the local filesystem, which
// is required by the external extractor.
type tempContainer struct {
	Path string
}

func newTempContainer(data []byte) (*tempContainer, error) {
	f, err := os.CreateTemp("", "container-*.zip")
	if err != nil {
		return nil, fmt.Errorf("unable to create a temporary file: %w", err)
	}
	_, err = f.Write(data)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("unable to write '%s': %w", f.Name(), err)
	}
	return &tempContainer{Path: f.Name()}, nil
}

func (c *tempContainer) Close() {
	_ = os.Remove(c.Path)
}
