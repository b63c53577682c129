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
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hashicorp/go-multierror"
)

const (
	DriverMySQL   = "mysql"
	DriverSQLite3 = "sqlite3"
)

//go:embed migrations
var migrations embed.FS

// Migrate brings the database schema to the latest version.
//
// Migrations run on a dedicated connection which is closed afterwards,
// thus an in-memory SQLite database cannot be migrated.
func (stor *Storage) Migrate() (err error) {
	sourceDriver, err := iofs.New(migrations, "migrations/"+stor.Driver)
	if err != nil {
		return ErrMigrate{Err: fmt.Errorf("unable to open the migrations of %s: %w", stor.Driver, err)}
	}

	db, err := sql.Open(stor.Driver, stor.dsn)
	if err != nil {
		return ErrMigrate{Err: err}
	}

	var dbDriver database.Driver
	switch stor.Driver {
	case DriverMySQL:
		dbDriver, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	case DriverSQLite3:
		dbDriver, err = migratesqlite3.WithInstance(db, &migratesqlite3.Config{})
	default:
		err = ErrUnsupportedDriver{Driver: stor.Driver}
	}
	if err != nil {
		_ = db.Close()
		return ErrMigrate{Err: err}
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, stor.Driver, dbDriver)
	if err != nil {
		_ = dbDriver.Close()
		return ErrMigrate{Err: err}
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		closeErr := multierror.Append((error)(nil), sourceErr, dbErr).ErrorOrNil()
		if err == nil && closeErr != nil {
			err = ErrMigrate{Err: closeErr}
		}
	}()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		stor.Logger.Debugf("the schema is up to date")
		return nil
	case err != nil:
		return ErrMigrate{Err: err}
	}
	version, dirty, _ := m.Version()
	stor.Logger.Infof("the schema is migrated to version %d (dirty: %v)", version, dirty)
	return nil
}
