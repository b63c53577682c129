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

package models

import (
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/immune-gmbh/sampleflow/pkg/digest"
)

// Sample is a single submission of a sample. The same content may be
// submitted multiple times, each submission gets its own row while the
// content itself is stored once (keyed by SHA256).
type Sample struct {
	ID       int64     `db:"id,pk" json:"id"`
	Created  time.Time `db:"created" json:"created"`
	Filename string    `db:"filename" json:"filename"`
	Uploader string    `db:"uploader" json:"uploader,omitempty"`

	// ParentID is set for samples extracted from an archive sample.
	ParentID *int64 `db:"parent_id" json:"parent_id,omitempty"`

	MD5    string `db:"md5" json:"md5"`
	SHA1   string `db:"sha1" json:"sha1"`
	SHA256 string `db:"sha256" json:"sha256"`
	SHA512 string `db:"sha512" json:"sha512"`
	CTPH   string `db:"ctph" json:"ctph,omitempty"`

	Size     int64  `db:"size" json:"size"`
	MimeType string `db:"mime_type" json:"mime_type,omitempty"`
	Deleted  bool   `db:"deleted" json:"-"`
}

// NewSample returns the metadata of a new submission of the given content.
func NewSample(data []byte, filename, uploader string, parentID *int64) Sample {
	return NewSampleWithDigests(data, digest.Compute(data), filename, uploader, parentID)
}

// NewSampleWithDigests is the same as NewSample, but reuses already computed digests.
func NewSampleWithDigests(data []byte, d digest.Digests, filename, uploader string, parentID *int64) Sample {
	return Sample{
		Created:  time.Now().UTC(),
		Filename: filename,
		Uploader: uploader,
		ParentID: parentID,
		MD5:      d.MD5,
		SHA1:     d.SHA1,
		SHA256:   d.SHA256,
		SHA512:   d.SHA512,
		CTPH:     d.CTPH,
		Size:     int64(len(data)),
		MimeType: mimetype.Detect(data).String(),
	}
}

// Digests returns the digests stored in the row.
func (s Sample) Digests() digest.Digests {
	return digest.Digests{
		MD5:    s.MD5,
		SHA1:   s.SHA1,
		SHA256: s.SHA256,
		SHA512: s.SHA512,
		CTPH:   s.CTPH,
	}
}

// BlobStorageKey returns the key of the content in the BlobStorage.
func (s Sample) BlobStorageKey() string {
	return s.SHA256
}
