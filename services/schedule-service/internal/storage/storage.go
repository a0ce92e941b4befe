// Package storage persists services, slots, appointments and their reservations. Postgres is
// the production backend; Memory serves dev mode and tests with the same semantics.
package storage

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/workhours/libs/db"
)

var (
	// ErrConflict means a slot is already claimed, vanished, or a unique value is taken.
	ErrConflict = errors.New("storage conflict")
	ErrNotFound = errors.New("not found")
)

// DayResult reports what replacing one date's slots did.
type DayResult struct {
	Deleted  int `json:"deleted"`
	Inserted int `json:"inserted"`
	// Skipped counts slots that already existed, typically because they are booked.
	Skipped int `json:"skipped"`
}

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *db.Pool) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return errors.Join(errors.New("migration "+name+" failed"), err)
		}
	}
	return nil
}

// IsConflict reports unique, foreign key and exclusion violations.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "23505", "23503", "23P01":
		return true
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound)
}
