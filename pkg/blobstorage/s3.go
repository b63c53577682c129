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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3 keeps blobs as objects `<Prefix>/<key>` in an S3-compatible bucket.
type S3 struct {
	Client *s3.S3
	Bucket string
	Prefix string
}

var _ BlobStorage = (*S3)(nil)

func newS3(u *url.URL) (*S3, error) {
	bucket := u.Host
	if bucket == "" {
		return nil, fmt.Errorf("no bucket in URL '%s'", u.Redacted())
	}
	query := u.Query()

	cfg := &aws.Config{}
	if region := query.Get("region"); region != "" {
		cfg.Region = aws.String(region)
	}
	if endpoint := query.Get("endpoint"); endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if v := query.Get("disable_ssl"); v != "" {
		disableSSL, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("unable to parse disable_ssl value '%s': %w", v, err)
		}
		cfg.DisableSSL = aws.Bool(disableSSL)
	}
	if u.User != nil {
		secret, _ := u.User.Password()
		cfg.Credentials = credentials.NewStaticCredentials(u.User.Username(), secret, "")
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize an AWS session: %w", err)
	}

	return &S3{
		Client: s3.New(sess),
		Bucket: bucket,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

func (s *S3) objectKey(key string) (*string, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if s.Prefix == "" {
		return aws.String(key), nil
	}
	return aws.String(path.Join(s.Prefix, key)), nil
}

func isS3NotFound(err error) bool {
	var awsErr awserr.Error
	if !errors.As(err, &awsErr) {
		return false
	}
	switch awsErr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}

// wrapS3Error marks throttling and server-side failures as retriable.
func wrapS3Error(err error) error {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && (reqErr.StatusCode() >= 500 || reqErr.StatusCode() == 429) {
		return ErrTransient{Err: err}
	}
	return err
}

func (s *S3) Has(ctx context.Context, key string) (bool, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return false, err
	}
	_, err = s.Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    objKey,
	})
	switch {
	case err == nil:
		return true, nil
	case isS3NotFound(err):
		return false, nil
	default:
		return false, wrapS3Error(err)
	}
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    objKey,
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, wrapS3Error(err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Replace uploads the blob. Object PUT is atomic on S3, readers see either
// the old or the new object.
func (s *S3) Replace(ctx context.Context, key string, blob []byte) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    objKey,
		Body:   bytes.NewReader(blob),
	})
	return wrapS3Error(err)
}

func (s *S3) Delete(ctx context.Context, key string) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    objKey,
	})
	return wrapS3Error(err)
}

func (s *S3) Close() error {
	return nil
}
