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

package objhash

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/xaionaro-go/unsafetools"
	"lukechampine.com/blake3"
)

const blake3Size = 64 // 512 bits

// Builder is the handler which converts a set of variables to a ObjHash.
type Builder struct {
	Blake3 *blake3.Hasher
	SHA512 hash.Hash
}

// NewBuilder returns a new instance of Builder.
func NewBuilder() *Builder {
	return &Builder{
		Blake3: blake3.New(blake3Size, nil),
		SHA512: sha512.New(),
	}
}

// kind tags separate values of different types, so ("1", 1) and (1, "1")
// produce different hashes.
type kind uint8

const (
	kindBytes = kind(iota + 1)
	kindString
	kindInt
	kindUint
	kindBool
	kindNil
)

func extend(h hash.Hash, in []byte) error {
	oldHash := h.Sum(nil)
	_, err := h.Write(oldHash)
	if err != nil {
		return fmt.Errorf("unable to extend %T (step 0): %w", h, err)
	}
	_, err = h.Write(in)
	if err != nil {
		return fmt.Errorf("unable to extend %T (step 1): %w", h, err)
	}

	return nil
}

func (b *Builder) extendBytes(k kind, in []byte) error {
	tagged := make([]byte, 0, len(in)+1)
	tagged = append(tagged, byte(k))
	tagged = append(tagged, in...)
	if err := extend(b.Blake3, tagged); err != nil {
		return fmt.Errorf("unable to extend Blake3: %w", err)
	}
	if err := extend(b.SHA512, tagged); err != nil {
		return fmt.Errorf("unable to extend SHA512: %w", err)
	}
	return nil
}

func (b *Builder) extendUint64(k kind, u uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], u)
	return b.extendBytes(k, buf[:])
}

// Build just calls Write and Result.
func (b *Builder) Build(args ...any) (ObjHash, error) {
	if err := b.Write(args...); err != nil {
		return ObjHash{}, err
	}

	return b.Result(), nil
}

// Reset resets the set of variables.
func (b *Builder) Reset() {
	b.Blake3.Reset()
	b.SHA512.Reset()
}

// Result returns a cache key for a current set of variables.
func (b *Builder) Result() ObjHash {
	var result ObjHash
	copy(result[:], b.Blake3.Sum(nil))
	copy(result[blake3Size:], b.SHA512.Sum(nil))
	return result
}

// Write adds variables. Only scalar values, strings and byte slices are supported.
func (b *Builder) Write(args ...any) error {
	for idx, arg := range args {
		var err error
		switch v := arg.(type) {
		case nil:
			err = b.extendBytes(kindNil, nil)
		case []byte:
			err = b.extendBytes(kindBytes, v)
		case string:
			err = b.extendBytes(kindString, unsafetools.CastStringToBytes(v))
		case fmt.Stringer:
			err = b.extendBytes(kindString, unsafetools.CastStringToBytes(v.String()))
		case bool:
			var u uint64
			if v {
				u = 1
			}
			err = b.extendUint64(kindBool, u)
		case int:
			err = b.extendUint64(kindInt, uint64(v))
		case int32:
			err = b.extendUint64(kindInt, uint64(v))
		case int64:
			err = b.extendUint64(kindInt, uint64(v))
		case uint:
			err = b.extendUint64(kindUint, uint64(v))
		case uint32:
			err = b.extendUint64(kindUint, uint64(v))
		case uint64:
			err = b.extendUint64(kindUint, v)
		default:
			err = fmt.Errorf("unsupported type %T", arg)
		}
		if err != nil {
			return fmt.Errorf("unable to append argument #%d: %w", idx, err)
		}
	}

	return nil
}
