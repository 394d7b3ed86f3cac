package database

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

// Migrate applies every pending migration found under dir in migrations.
// It returns the schema version after the run; an up-to-date schema is not
// an error.
func Migrate(db *sqlx.DB, migrations fs.FS, dir string) (uint, error) {
	source, err := iofs.New(migrations, dir)
	if err != nil {
		return 0, fmt.Errorf("iofs.New() > %w", err)
	}

	driver, err := migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	if err != nil {
		return 0, fmt.Errorf("mysql.WithInstance() > %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return 0, fmt.Errorf("migrate.NewWithInstance() > %w", err)
	}
	// m.Close would also close db, which the caller owns.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("m.Up() > %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("m.Version() > %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
