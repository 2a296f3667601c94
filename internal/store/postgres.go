package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// PostgresStore checks credentials against a Postgres database using the
// returner's connection settings. Each call opens a fresh connection and
// closes it before returning; connections are a finite master resource
// and are never cached here.
type PostgresStore struct {
	opts *Options
}

// NewPostgres returns a PostgresStore over opts.
func NewPostgres(opts *Options) *PostgresStore {
	return &PostgresStore{opts: opts}
}

func (s *PostgresStore) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		s.opts.Host, s.opts.Port, s.opts.User, s.opts.Password, s.opts.Database)
}

// Check runs the credential lookup. A nil *Flags means no matching row.
func (s *PostgresStore) Check(ctx context.Context, username, password string) (*Flags, error) {
	logrus.WithField("subsystem", "store").Debug("opening postgres connection")

	conn, err := pgx.Connect(ctx, s.dsn())
	if err != nil {
		return nil, &MasterError{Backend: "postgres", Cause: err}
	}
	defer func() {
		_ = conn.Close(ctx)
	}()

	query := fmt.Sprintf(checkQuery, "$1", "$2")

	var flags Flags
	err = conn.QueryRow(ctx, query, username, password).Scan(&flags.Active, &flags.Superuser)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &MasterError{Backend: "postgres", Cause: err}
	}

	return &flags, nil
}
