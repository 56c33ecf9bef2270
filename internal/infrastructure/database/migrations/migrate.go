// Package migrations embeds the schema and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed *.sql
var files embed.FS

// Runner applies the embedded migrations to one database
type Runner struct {
	db *sql.DB
	m  *migrate.Migrate
}

// NewRunner opens databaseURL with lib/pq and prepares a migrator
func NewRunner(databaseURL string) (*Runner, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	src, err := iofs.New(files, ".")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return &Runner{db: db, m: m}, nil
}

// Up applies all pending migrations, or at most steps when steps > 0
func (r *Runner) Up(steps int) error {
	var err error
	if steps > 0 {
		err = r.m.Steps(steps)
	} else {
		err = r.m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back steps migrations, or all of them when steps <= 0
func (r *Runner) Down(steps int) error {
	var err error
	if steps > 0 {
		err = r.m.Steps(-steps)
	} else {
		err = r.m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version reports the applied version and whether the last run left it dirty
func (r *Runner) Version() (uint, bool, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

// Apply runs every pending migration against databaseURL
func Apply(databaseURL string) error {
	r, err := NewRunner(databaseURL)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Up(0)
}
