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
	"errors"
	"fmt"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-sql-driver/mysql"

	"github.com/immune-gmbh/sampleflow/pkg/digest"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
	"github.com/immune-gmbh/sampleflow/pkg/storage/helpers"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

const (
	insertTriesLimit = 60
)

// SampleInput is the submission-specific metadata of a sample.
type SampleInput struct {
	Filename string
	Uploader string
	ParentID *int64

	// Digests are the already computed digests of the content, if any.
	Digests *digest.Digests
}

func asMySQLError(err error, errNo uint16) *mysql.MySQLError {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == errNo {
		return mysqlErr
	}
	return nil
}

// InsertSample stores the sample bytes (once per content) and always
// creates a new metadata row for this submission.
func (stor *Storage) InsertSample(ctx context.Context, data []byte, in SampleInput) (*models.Sample, error) {
	digests := in.Digests
	if digests == nil {
		digests = &[]digest.Digests{digest.Compute(data)}[0]
	}
	sample := models.NewSampleWithDigests(data, *digests, in.Filename, in.Uploader, in.ParentID)

	// The blob is written before the row, so a row never points
	// to missing content.
	if err := stor.putBlob(ctx, sample.BlobStorageKey(), data); err != nil {
		return nil, failure.New(failure.KindIngest, in.Filename, err)
	}

	id, err := stor.insertRow(ctx, "samples", &sample, sample.SHA256, func(fieldName string, value any) bool {
		return fieldName == "ID"
	})
	if err != nil {
		return nil, failure.New(failure.KindIngest, in.Filename, err)
	}
	sample.ID = id

	logger.FromCtx(ctx).Debugf("inserted sample %d (sha256:%s, filename:'%s')", sample.ID, sample.SHA256, sample.Filename)
	return &sample, nil
}

// putBlob uploads the content only if it is not stored yet. Concurrent
// puts of the same content within this process are serialized.
func (stor *Storage) putBlob(ctx context.Context, key string, data []byte) error {
	unlocker := stor.BlobLockMap.Lock(key)
	defer unlocker.Unlock()

	var has bool
	err := stor.retryLoop(ctx, func() (err error) {
		has, err = stor.BlobStorage.Has(ctx, key)
		return
	})
	if err != nil {
		return ErrUnableToUpload{Key: key, Err: fmt.Errorf("unable to check if the blob exists: %w", err)}
	}
	if has {
		logger.FromCtx(ctx).Debugf("blob %s is already stored", key)
		return nil
	}

	err = stor.retryLoop(ctx, func() error {
		return stor.BlobStorage.Replace(ctx, key, data)
	})
	if err != nil {
		return ErrUnableToUpload{Key: key, Err: err}
	}
	return nil
}

// insertRow inserts the structure as a row of the table and returns the
// auto-incremented ID.
func (stor *Storage) insertRow(
	ctx context.Context,
	table string,
	row any,
	insertedValue string,
	shouldSkip func(fieldName string, value any) bool,
) (id int64, err error) {
	values, columns, err := helpers.GetValuesAndColumns(row, shouldSkip)
	if err != nil {
		return 0, ErrUnableToInsert{insertedValue: insertedValue, Err: fmt.Errorf("unable to parse the row: %w", err)}
	}
	query := "INSERT INTO `" + table + "` (" + constructColumns("", columns) + ") VALUES (" + constructPlaceholders(len(columns)) + ")"

	for tryCount := uint(1); ; tryCount++ {
		id, err = stor.tryInsertRow(ctx, query, values)
		if err == nil {
			return id, nil
		}

		if asMySQLError(err, 1205) == nil {
			// Is not an MySQL error "1205" (see below), so it just an error we cannot remediate:
			return 0, ErrUnableToInsert{insertedValue: insertedValue, Err: err}
		}
		// "ERROR 1205 (HY000): Lock wait timeout exceeded; try restarting transaction"
		// so we just retry the transaction (as the error message says).
		if tryCount >= stor.insertTriesLimit {
			stor.Logger.Errorf("reached the limit of tries to insert into '%s' (%s), error: %v", table, insertedValue, err)
			return 0, ErrUnableToInsert{insertedValue: insertedValue, Err: err}
		}
		stor.Logger.Warnf("insert timeout (%v), retrying the transaction...", err)
	}
}

func (stor *Storage) tryInsertRow(ctx context.Context, query string, values []any) (int64, error) {
	tx, err := stor.startTransaction(ctx)
	if err != nil {
		return 0, fmt.Errorf("unable to start a transaction: %w", err)
	}
	defer stor.rollback(tx)

	result, err := tx.ExecContext(ctx, query, values...)
	if err != nil {
		return 0, fmt.Errorf("unable to insert the row: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("unable to get the ID of the inserted row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("unable to commit the transaction: %w", err)
	}
	return id, nil
}

func constructPlaceholders(cnt int) string {
	if cnt == 0 {
		return ""
	}
	return strings.Repeat("?, ", cnt-1) + "?"
}

func constructColumns(tableName string, columns []string) string {
	fullNames := make([]string, 0, len(columns))
	for _, column := range columns {
		if strings.Contains(column, "`") {
			panic(fmt.Sprintf("column <%s> contains a grave symbol", column))
		}
		var fullName string
		if tableName == "" {
			fullName = fmt.Sprintf("`%s`", column)
		} else {
			fullName = fmt.Sprintf("`%s`.`%s`", tableName, column)
		}
		fullNames = append(fullNames, fullName)
	}
	return strings.Join(fullNames, ",")
}
