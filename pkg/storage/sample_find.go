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
	"reflect"
	"strings"

	"github.com/immune-gmbh/sampleflow/pkg/digest"
	"github.com/immune-gmbh/sampleflow/pkg/storage/helpers"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

// FindSampleFilter is a set of values to look for (concatenated through "AND"-s).
//
// If a field has a nil-value then it is not included to filter conditions.
type FindSampleFilter struct {
	// Here we include only indexed columns, see also migrations/

	// == exact values ==

	ID       *int64
	ParentID *int64
	MD5      *string
	SHA1     *string
	SHA256   *string
	SHA512   *string
	Uploader *string
	MimeType *string

	// Deleted selects soft-deleted samples if set to true. If nil then
	// only not-deleted samples are selected.
	Deleted *bool

	// == non-exact values ==

	FilenamePrefix *string
}

// IsEmpty returns true if no filters are set
func (f FindSampleFilter) IsEmpty() bool {
	return reflect.ValueOf(f).IsZero()
}

// compileSampleWhereConds constructs a WHERE string for Query() using selected filters.
//
// For example:
//
//	FindSampleFilter{SHA256: &[]string{"ab..."}[0], FilenamePrefix: &[]string{"mal"}[0]}
//
// will result into:
//
//	("`sha256` = ? AND `filename` LIKE ? ESCAPE '!' AND `deleted` = ?", []any{"ab...", "mal%", false})
//
// See also unit-test: TestCompileSampleWhereConds
func compileSampleWhereConds(filters FindSampleFilter) (string, []any) {
	var whereConds []string
	var whereArgs []any

	if filters.Deleted == nil {
		filters.Deleted = &[]bool{false}[0]
	}

	sampleStruct := reflect.ValueOf(&models.Sample{}).Elem()
	filtersStruct := reflect.ValueOf(&filters).Elem()
	for i := 0; i < filtersStruct.NumField(); i++ {
		filterField := filtersStruct.Field(i)
		if filterField.IsZero() {
			continue
		}
		filterStructField := filtersStruct.Type().Field(i)
		isPrefix := strings.HasSuffix(filterStructField.Name, "Prefix")
		fieldName := strings.TrimSuffix(filterStructField.Name, "Prefix")
		sqlColumnName, err := helpers.GetDBColumnName(sampleStruct.Type(), fieldName)
		if err != nil {
			panic(fmt.Sprintf("should not happened: %v", err))
		}
		value := reflect.Indirect(filterField).Interface()
		switch {
		case isPrefix:
			whereConds = append(whereConds, "`"+sqlColumnName+"` LIKE ? ESCAPE '"+likeEscape+"'")
			value = escapeLike(value.(string)) + "%"
		default:
			whereConds = append(whereConds, fmt.Sprintf("`%s` = ?", sqlColumnName))
		}
		whereArgs = append(whereArgs, value)
	}
	return strings.Join(whereConds, " AND "), whereArgs
}

// likeEscape is the LIKE escape character. A backslash would need
// different quoting in MySQL and SQLite string literals.
const likeEscape = "!"

func escapeLike(s string) string {
	return strings.NewReplacer(
		likeEscape, likeEscape+likeEscape,
		"%", likeEscape+"%",
		"_", likeEscape+"_",
	).Replace(s)
}

func sampleColumns() string {
	columns, err := helpers.Columns((*models.Sample)(nil))
	if err != nil {
		panic(err)
	}
	return constructColumns("", columns)
}

// FindSamples returns samples matching the filter, the most recent
// submission first. A zero limit means no limit.
func (stor *Storage) FindSamples(ctx context.Context, filter FindSampleFilter, limit uint) ([]*models.Sample, error) {
	if filter.IsEmpty() {
		return nil, ErrEmptyFilters{}
	}
	whereConds, whereArgs := compileSampleWhereConds(filter)

	query := fmt.Sprintf("SELECT %s FROM `samples` WHERE %s ORDER BY `created` DESC, `id` DESC",
		sampleColumns(),
		whereConds,
	)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var samples []*models.Sample
	err := stor.DB.SelectContext(ctx, &samples, query, whereArgs...)
	stor.Logger.Debugf("query: '%s' with args %v result: err:%v", query, whereArgs, err)
	if err != nil {
		return nil, ErrSelect{Err: err}
	}
	return samples, nil
}

// FindSampleOne returns the most recent sample matching the filter.
func (stor *Storage) FindSampleOne(ctx context.Context, filter FindSampleFilter) (*models.Sample, error) {
	samples, err := stor.FindSamples(ctx, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		whereConds, whereArgs := compileSampleWhereConds(filter)
		return nil, ErrNotFound{Query: fmt.Sprintf("%s %v", whereConds, whereArgs)}
	}
	return samples[0], nil
}

// GetSample returns a not-deleted sample by its ID.
func (stor *Storage) GetSample(ctx context.Context, id int64) (*models.Sample, error) {
	return stor.FindSampleOne(ctx, FindSampleFilter{ID: &id})
}

// FindSampleByHash returns a sample given its MD5, SHA1, SHA256 or SHA512
// hex digest. The kind of digest is derived from its length.
//
// If the same content was submitted multiple times, the most recent
// submission is returned (and among submissions with the same time the
// one with the highest ID).
func (stor *Storage) FindSampleByHash(ctx context.Context, identifier string) (*models.Sample, error) {
	identifier = digest.Normalize(identifier)
	kind, ok := digest.HashKind(identifier)
	if !ok {
		return nil, ErrInvalidIdentifier{Identifier: identifier}
	}

	var filter FindSampleFilter
	switch kind {
	case digest.KindMD5:
		filter.MD5 = &identifier
	case digest.KindSHA1:
		filter.SHA1 = &identifier
	case digest.KindSHA256:
		filter.SHA256 = &identifier
	case digest.KindSHA512:
		filter.SHA512 = &identifier
	}
	return stor.FindSampleOne(ctx, filter)
}

// Children returns samples extracted from the given one.
func (stor *Storage) Children(ctx context.Context, parentID int64) ([]*models.Sample, error) {
	return stor.FindSamples(ctx, FindSampleFilter{ParentID: &parentID}, 0)
}

// DeleteSample marks the sample as deleted. The content is kept, since
// it is shared with other submissions of the same content.
func (stor *Storage) DeleteSample(ctx context.Context, id int64) error {
	result, err := stor.DB.ExecContext(ctx, "UPDATE `samples` SET `deleted` = ? WHERE `id` = ? AND `deleted` = ?", true, id, false)
	if err != nil {
		return ErrUnableToUpdate{Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return ErrUnableToUpdate{Err: err}
	}
	if affected == 0 {
		return ErrNotFound{Query: fmt.Sprintf("sample %d", id)}
	}
	return nil
}
