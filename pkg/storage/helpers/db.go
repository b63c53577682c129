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
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/stoewer/go-strcase"
)

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

func columnNameFromFieldName(fieldName string) string {
	return strcase.SnakeCase(fieldName)
}

// GetDBColumnName returns column name from the "db" tag of the field.
//
// Tag options (like in `db:"id,pk"`) are ignored. If there is no tag, then
// the snake-cased field name is used.
func GetDBColumnName(t reflect.Type, fieldName string) (string, error) {
	f, ok := t.FieldByName(fieldName)
	if !ok {
		return "", fmt.Errorf("field '%s' is not found", fieldName)
	}
	value, found := f.Tag.Lookup("db")
	if !found {
		return columnNameFromFieldName(fieldName), nil
	}
	name, _, _ := strings.Cut(value, ",")
	return name, nil
}

// Columns returns the SQL columns of a row structure.
func Columns(obj any) ([]string, error) {
	_, columns, err := GetValuesAndColumns(obj, nil)
	return columns, err
}

// GetValuesAndColumns returns pointers to the values of the exported fields
// of a row structure and the SQL columns they are stored in. Nested
// structures are flattened with the "<column>_" prefix.
//
// Fields for which shouldSkip returns true are not included.
func GetValuesAndColumns(obj any, shouldSkip func(fieldName string, value any) bool) ([]any, []string, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Pointer && !v.Elem().IsValid() {
		// typed-nil, using a zero value to get at least the columns
		v = reflect.New(v.Type().Elem())
	}
	v = reflect.Indirect(v)
	if v.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("expected a structure, but received %T", obj)
	}
	return getValuesAndColumns("", v, shouldSkip)
}

func isSQLValue(v reflect.Value, t reflect.Type) bool {
	switch v.Interface().(type) {
	case sql.NullBool, sql.NullByte, sql.NullFloat64, sql.NullInt16, sql.NullInt32, sql.NullInt64, sql.NullString, sql.NullTime, time.Time:
		return true
	}
	return t.Implements(valuerType) || reflect.PointerTo(t).Implements(valuerType)
}

func getValuesAndColumns(prefix string, e reflect.Value, shouldSkip func(fieldName string, value any) bool) ([]any, []string, error) {
	t := e.Type()

	var columns []string
	var values []any
	for i := 0; i < e.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if shouldSkip != nil && shouldSkip(f.Name, e.Field(i).Interface()) {
			continue
		}

		columnName, err := GetDBColumnName(t, f.Name)
		if err != nil {
			return nil, nil, err
		}
		if columnName == "-" {
			continue
		}

		v := e.Field(i)
		if !isSQLValue(v, f.Type) && v.Kind() == reflect.Struct {
			childPrefix := prefix
			if !f.Anonymous {
				childPrefix += columnName + "_"
			}
			childValues, childColumns, err := getValuesAndColumns(childPrefix, v, shouldSkip)
			if err != nil {
				return nil, nil, fmt.Errorf("unable to process field '%s': %w", f.Name, err)
			}
			values = append(values, childValues...)
			columns = append(columns, childColumns...)
			continue
		}

		columns = append(columns, prefix+columnName)
		if v.CanAddr() {
			v = v.Addr()
		}
		values = append(values, v.Interface())
	}

	return values, columns, nil
}
