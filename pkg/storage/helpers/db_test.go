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

package helpers

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type row struct {
	ID       int64  `db:"id,pk"`
	Filename string `db:"filename"`
	MimeType string
	Created  time.Time `db:"created"`
	Ignored  string    `db:"-"`
	Engine   struct {
		Name string `db:"name"`
	} `db:"engine"`
	private int
}

func ptr[T any](a T) *T {
	return &a
}

func TestGetDBColumnName(t *testing.T) {
	column, err := GetDBColumnName(reflect.TypeOf(row{}), "ID")
	require.NoError(t, err)
	require.Equal(t, "id", column)

	column, err = GetDBColumnName(reflect.TypeOf(row{}), "MimeType")
	require.NoError(t, err)
	require.Equal(t, "mime_type", column)

	_, err = GetDBColumnName(reflect.TypeOf(row{}), "BlahBlah")
	require.Error(t, err)
}

func TestGetValuesAndColumns(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &row{ID: 42, Filename: "stub.exe", MimeType: "application/x-msdownload", Created: created}
	r.Engine.Name = "eset"

	values, columns, err := GetValuesAndColumns(r, func(fieldName string, value any) bool {
		return fieldName == "ID"
	})
	require.NoError(t, err)
	require.Equal(t, []string{"filename", "mime_type", "created", "engine_name"}, columns)
	require.Equal(t, []any{ptr("stub.exe"), ptr("application/x-msdownload"), ptr(created), ptr("eset")}, values)

	columns, err = Columns((*row)(nil))
	require.NoError(t, err)
	require.Equal(t, []string{"id", "filename", "mime_type", "created", "engine_name"}, columns)

	_, _, err = GetValuesAndColumns(42, nil)
	require.Error(t, err)
}
