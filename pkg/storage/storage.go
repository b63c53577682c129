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
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/dummy"
	"github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/immune-gmbh/sampleflow/pkg/lockmap"
	"github.com/immune-gmbh/sampleflow/pkg/objhash"
)

// BlobStorage is the content-addressed storage of sample bytes.
type BlobStorage interface {
	io.Closer
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Replace(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
}

// Storage is the implementation of the sample storage (which handles
// both: metadata and reports in an RDBMS and the sample bytes in a BlobStorage).
type Storage struct {
	DB                       *sqlx.DB
	Driver                   string
	BlobStorage              BlobStorage
	Cache                    Cache
	CacheLockMap             *lockmap.LockMap[objhash.ObjHash]
	BlobLockMap              *lockmap.LockMap[string]
	Logger                   logger.Logger
	RetryDefaultInitialDelay time.Duration
	RetryTimeout             time.Duration

	dsn              string
	insertTriesLimit uint
}

const (
	defaultRetryDefaultInitialDelay = time.Second
	defaultRetryTimeout             = 10 * time.Minute
)

// Cache is used to avoid repeating queries to the backends
type Cache interface {
	// Get returns an object, given its cache key.
	//
	// Returns an untyped nil if there is no such entry in the cache.
	Get(ctx context.Context, objectKey objhash.ObjHash) any

	// Set tries to set an object with its cache key. It is up to implementation
	// to decide whether to actually store the object.
	//
	// objectSize is only notifies the implementation (of Cache) about how
	// much memory the object consumes (rough estimation).
	Set(ctx context.Context, objectKey objhash.ObjHash, object any, objectSize uint64)
}

// New returns an instance of Storage.
//
// rdbmsDriver is either "mysql" or "sqlite3". A MySQL DSN must have "parseTime=true".
func New(
	rdbmsDriver string,
	rdbmsDSN string,
	blobStorage BlobStorage,
	cache Cache,
	log logger.Logger,
) (*Storage, error) {
	switch rdbmsDriver {
	case DriverMySQL, DriverSQLite3:
	default:
		return nil, ErrUnsupportedDriver{Driver: rdbmsDriver}
	}
	if log == nil {
		log = dummy.New()
	}
	if cache == nil {
		cache = dummyCache{}
	}
	stor := &Storage{
		Driver:                   rdbmsDriver,
		Logger:                   log,
		BlobStorage:              blobStorage,
		Cache:                    cache,
		CacheLockMap:             lockmap.NewLockMap[objhash.ObjHash](),
		BlobLockMap:              lockmap.NewLockMap[string](),
		RetryDefaultInitialDelay: defaultRetryDefaultInitialDelay,
		RetryTimeout:             defaultRetryTimeout,
		dsn:                      rdbmsDSN,
		insertTriesLimit:         insertTriesLimit,
	}

	db, err := sql.Open(rdbmsDriver, rdbmsDSN)
	if err != nil {
		return nil, ErrInitDB{Err: err, Driver: rdbmsDriver}
	}
	if rdbmsDriver == DriverSQLite3 {
		// SQLite allows a single writer anyway
		db.SetMaxOpenConns(1)
	}

	err = db.Ping()
	if err != nil {
		_ = db.Close()
		return nil, ErrPing{Err: err}
	}

	stor.DB = sqlx.NewDb(db, rdbmsDriver)
	return stor, nil
}

func (stor *Storage) startTransaction(
	ctx context.Context,
) (*sqlx.Tx, error) {
	var opts *sql.TxOptions
	if stor.Driver == DriverMySQL {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return stor.DB.BeginTxx(ctx, opts)
}

func (stor *Storage) rollback(tx *sqlx.Tx) {
	errRollback := tx.Rollback()
	if errRollback == nil || errors.Is(errRollback, sql.ErrTxDone) {
		return
	}
	if errors.Is(errRollback, mysql.ErrInvalidConn) {
		// Lost connection, therefore the transaction will be reset
		// automatically.
		return
	}
	// To do not leave a transaction which could hang other workers we panic,
	// it with disconnect from the DB and force-release the transaction.
	panic(fmt.Errorf("unable to rollback the transaction and do not how to remediate: %w", errRollback))
}

// Close stops the instance of the Storage.
func (stor *Storage) Close() error {
	return multierror.Append((error)(nil),
		stor.DB.Close(),
		stor.BlobStorage.Close(),
	).ErrorOrNil()
}

func (stor *Storage) retryLoop(ctx context.Context, fn func() error) error {
	timeout := time.NewTimer(stor.RetryTimeout)
	defer timeout.Stop()

	delay := stor.RetryDefaultInitialDelay
	timedOut := false

	for {
		err := fn()
		if err == nil {
			return nil
		}
		stor.Logger.Debugf("err == %T:%v", err, err)

		if timedOut {
			stor.Logger.Debugf("timed out")
			return err
		}
		select {
		case <-timeout.C:
			stor.Logger.Debugf("timed out")
			return err
		case <-ctx.Done():
			return err
		default:
		}

		canRetryErr, ok := err.(interface {
			CanRetry() bool
		})
		if !ok || !canRetryErr.CanRetry() {
			stor.Logger.Debugf("is not a retriable error")
			return err
		}

		stor.Logger.Debugf("delay is: %v", delay)
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return err
		case <-timeout.C:
			// It might be we waited a long time in this `select`, was it for
			// nothing? No: we will make one last try before exit.
			timedOut = true
		}
		stor.Logger.Debugf("retry")
	}
}
