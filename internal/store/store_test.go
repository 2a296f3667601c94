package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulChristophel/agartha/internal/config"
)

func TestNewSelectsBackend(t *testing.T) {
	t.Run("mysql keys select mysql", func(t *testing.T) {
		s, err := New(config.Options{"mysql.host": "db.example.com"})
		require.NoError(t, err)
		assert.IsType(t, &MySQLStore{}, s)
	})

	t.Run("defaults to postgres", func(t *testing.T) {
		s, err := New(config.Options{"returner.pgupsert.host": "db.example.com"})
		require.NoError(t, err)
		assert.IsType(t, &PostgresStore{}, s)
	})

	t.Run("empty options default to postgres", func(t *testing.T) {
		s, err := New(config.Options{})
		require.NoError(t, err)
		assert.IsType(t, &PostgresStore{}, s)
	})
}

func TestPostgresOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o, err := PostgresOptions(config.Options{})
		require.NoError(t, err)
		assert.Equal(t, &Options{
			Host:     "salt",
			User:     "salt",
			Password: "salt",
			Database: "salt",
			Port:     5432,
		}, o)
	})

	t.Run("host options override", func(t *testing.T) {
		o, err := PostgresOptions(config.Options{
			"returner.pgupsert.host":   "db.example.com",
			"returner.pgupsert.user":   "master",
			"returner.pgupsert.passwd": "hunter2",
			"returner.pgupsert.db":     "saltdb",
			"returner.pgupsert.port":   "6432",
		})
		require.NoError(t, err)
		assert.Equal(t, &Options{
			Host:     "db.example.com",
			User:     "master",
			Password: "hunter2",
			Database: "saltdb",
			Port:     6432,
		}, o)
	})

	t.Run("literal none reads as empty", func(t *testing.T) {
		o, err := PostgresOptions(config.Options{
			"returner.pgupsert.passwd": "None",
		})
		require.NoError(t, err)
		assert.Empty(t, o.Password)
	})
}

func TestMySQLOptions(t *testing.T) {
	o, err := MySQLOptions(config.Options{
		"mysql.host":     "db.example.com",
		"mysql.pass":     "hunter2",
		"mysql.db":       "saltdb",
		"mysql.port":     3307,
		"mysql.ssl_ca":   "/etc/mysql/ca.pem",
		"mysql.ssl_cert": "none",
	})
	require.NoError(t, err)

	assert.Equal(t, "db.example.com", o.Host)
	assert.Equal(t, "salt", o.User, "unset keys keep defaults")
	assert.Equal(t, "hunter2", o.Password)
	assert.Equal(t, "saltdb", o.Database)
	assert.Equal(t, 3307, o.Port)
	assert.Equal(t, "/etc/mysql/ca.pem", o.SSLCA)
	assert.Empty(t, o.SSLCert)
}

func TestPostgresDSN(t *testing.T) {
	s := NewPostgres(&Options{
		Host:     "db.example.com",
		Port:     5432,
		User:     "salt",
		Password: "hunter2",
		Database: "saltdb",
	})
	assert.Equal(t, "host=db.example.com port=5432 user=salt password=hunter2 dbname=saltdb", s.dsn())
}

func TestMySQLDSN(t *testing.T) {
	t.Run("without tls material", func(t *testing.T) {
		s := NewMySQL(&Options{
			Host:     "db.example.com",
			Port:     3306,
			User:     "salt",
			Password: "hunter2",
			Database: "saltdb",
		})
		dsn, err := s.dsn()
		require.NoError(t, err)
		assert.Contains(t, dsn, "tcp(db.example.com:3306)")
		assert.Contains(t, dsn, "/saltdb")
		assert.NotContains(t, dsn, "tls=")
	})

	t.Run("missing ca file fails", func(t *testing.T) {
		s := NewMySQL(&Options{
			Host:     "db.example.com",
			Port:     3306,
			SSLCA:    "/nonexistent/ca.pem",
			Database: "saltdb",
		})
		_, err := s.dsn()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ssl_ca")
	})
}

func TestCheckQueryShape(t *testing.T) {
	// The password comparison must happen inside the database.
	assert.Contains(t, checkQuery, "crypt(%s, c.token)")
	assert.Contains(t, checkQuery, "a.is_active")
	assert.Equal(t, 2, strings.Count(checkQuery, "%s"))
}

func TestMasterError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &MasterError{Backend: "postgres", Cause: cause}

	assert.Contains(t, err.Error(), "postgres returner could not connect")
	assert.ErrorIs(t, err, cause)

	var merr *MasterError
	assert.ErrorAs(t, err, &merr)
}

func TestCacheOptions(t *testing.T) {
	o, err := cacheOptions(config.Options{
		"cache.pgjsonb.host":     "cache.example.com",
		"cache.pgjsonb.password": "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "cache.example.com", o.Host)
	assert.Equal(t, "hunter2", o.Password)
	assert.Equal(t, 5432, o.Port)
}

func TestCoerceInt(t *testing.T) {
	tests := []struct {
		in     any
		want   int
		wantOK bool
	}{
		{6432, 6432, true},
		{"6432", 6432, true},
		{" 6432 ", 6432, true},
		{float64(6432), 6432, true},
		{"not-a-port", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := coerceInt(tt.in)
		assert.Equal(t, tt.wantOK, ok)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}
