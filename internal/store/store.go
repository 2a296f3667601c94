// Package store implements the relational credential check behind agartha
// authentication: one parameterized lookup joining the user-settings table
// to the auth-user table, comparing a salted hash of the supplied password
// against the stored token.
//
// Two backends exist behind one interface, selected by configuration:
// Postgres (returner.pgupsert.* options) and MySQL (mysql.* options).
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/creasty/defaults"

	"github.com/PaulChristophel/agartha/internal/config"
)

// Flags are the account flags returned by a successful credential lookup.
type Flags struct {
	Active    bool
	Superuser bool
}

// Store verifies a username/password pair against the relational store.
// A nil *Flags with a nil error means no matching row: wrong password or
// unknown user, a normal outcome.
type Store interface {
	Check(ctx context.Context, username, password string) (*Flags, error)
}

// MasterError marks an operational fault reaching the credential store.
// It is distinct from an authentication failure: inability to reach the
// store must never read as "wrong password".
type MasterError struct {
	Backend string
	Cause   error
}

func (e *MasterError) Error() string {
	return fmt.Sprintf("%s returner could not connect to database: %v", e.Backend, e.Cause)
}

func (e *MasterError) Unwrap() error {
	return e.Cause
}

// Options are the database connection settings, layered from the host
// configuration over built-in defaults.
type Options struct {
	Host     string `default:"salt"`
	User     string `default:"salt"`
	Password string `default:"salt"`
	Database string `default:"salt"`
	Port     int
	SSLCA    string
	SSLCert  string
	SSLKey   string
}

// New selects the credential-store backend from the host options: any
// mysql.* key selects MySQL, otherwise Postgres with the returner's
// connection settings.
func New(opts config.Options) (Store, error) {
	for key := range opts {
		if strings.HasPrefix(key, "mysql.") {
			o, err := MySQLOptions(opts)
			if err != nil {
				return nil, err
			}
			return NewMySQL(o), nil
		}
	}
	o, err := PostgresOptions(opts)
	if err != nil {
		return nil, err
	}
	return NewPostgres(o), nil
}

// PostgresOptions builds connection options from the returner.pgupsert.*
// keys.
func PostgresOptions(opts config.Options) (*Options, error) {
	o := &Options{}
	if err := defaults.Set(o); err != nil {
		return nil, err
	}
	o.Port = 5432

	apply(o, opts, "returner.pgupsert.", "passwd")
	return o, nil
}

// MySQLOptions builds connection options from the mysql.* keys, including
// the optional client TLS material.
func MySQLOptions(opts config.Options) (*Options, error) {
	o := &Options{}
	if err := defaults.Set(o); err != nil {
		return nil, err
	}
	o.Port = 3306

	apply(o, opts, "mysql.", "pass")
	if v, ok := opts["mysql.ssl_ca"]; ok {
		o.SSLCA = cleanString(v)
	}
	if v, ok := opts["mysql.ssl_cert"]; ok {
		o.SSLCert = cleanString(v)
	}
	if v, ok := opts["mysql.ssl_key"]; ok {
		o.SSLKey = cleanString(v)
	}
	return o, nil
}

// apply copies host-supplied connection settings over the defaults.
// passwordKey differs between backends ("pass" for MySQL, "passwd" for the
// Postgres returner).
func apply(o *Options, opts config.Options, prefix, passwordKey string) {
	if v, ok := opts[prefix+"host"]; ok {
		o.Host = cleanString(v)
	}
	if v, ok := opts[prefix+"user"]; ok {
		o.User = cleanString(v)
	}
	if v, ok := opts[prefix+passwordKey]; ok {
		o.Password = cleanString(v)
	}
	if v, ok := opts[prefix+"db"]; ok {
		o.Database = cleanString(v)
	}
	if v, ok := opts[prefix+"port"]; ok {
		if port, ok := coerceInt(v); ok {
			o.Port = port
		}
	}
}

// cleanString renders a yaml-sourced scalar as a string, mapping the
// literal "none" to empty.
func cleanString(v any) string {
	s := fmt.Sprintf("%v", v)
	if strings.EqualFold(s, "none") || v == nil {
		return ""
	}
	return s
}

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// checkQuery is shared by both backends; placeholder style is adjusted per
// driver. The token comparison happens in the database so the cleartext
// password never lands in a result set.
const checkQuery = `
	SELECT a.is_active, a.is_superuser
	FROM user_settings c
	INNER JOIN auth_user a ON c.user_id = a.id
	WHERE a.username = %s AND a.is_active
	AND c.token = crypt(%s, c.token);
`
