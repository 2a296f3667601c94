package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/PaulChristophel/agartha/internal/config"
)

const waitInterval = 5 * time.Second

// WaitForTable blocks until the named table exists in the cache database,
// polling on a fixed interval. The wait is deliberately unbounded: this is
// a startup dependency, and the only exit short of success is cancelling
// ctx. Connection failures during the wait are logged and retried.
func WaitForTable(ctx context.Context, opts config.Options, table string) error {
	o, err := cacheOptions(opts)
	if err != nil {
		return err
	}

	for {
		exists, err := tableExists(ctx, o, table)
		if err != nil {
			logrus.WithField("table", table).WithError(err).Warning("database connection error while waiting for table")
		} else if exists {
			logrus.WithField("table", table).Info("table exists")
			return nil
		} else {
			logrus.WithField("table", table).Info("table does not exist yet, waiting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitInterval):
		}
	}
}

// cacheOptions reads the cache.pgjsonb.* connection settings used by the
// wait loop.
func cacheOptions(opts config.Options) (*Options, error) {
	o, err := PostgresOptions(opts)
	if err != nil {
		return nil, err
	}
	apply(o, opts, "cache.pgjsonb.", "password")
	return o, nil
}

func tableExists(ctx context.Context, o *Options, table string) (bool, error) {
	s := NewPostgres(o)
	conn, err := pgx.Connect(ctx, s.dsn())
	if err != nil {
		return false, err
	}
	defer func() {
		_ = conn.Close(ctx)
	}()

	var exists bool
	err = conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name=$1);",
		table,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
