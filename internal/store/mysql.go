package store

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

const mysqlTLSConfigName = "agartha"

// MySQLStore checks credentials against a MySQL database. Like the
// Postgres variant it opens and closes a connection per call.
type MySQLStore struct {
	opts *Options
}

// NewMySQL returns a MySQLStore over opts.
func NewMySQL(opts *Options) *MySQLStore {
	return &MySQLStore{opts: opts}
}

func (s *MySQLStore) dsn() (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = s.opts.User
	cfg.Passwd = s.opts.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	cfg.DBName = s.opts.Database

	// Empty TLS material connects without TLS, mirroring the empty
	// ssl-options behavior of the classic client.
	if s.opts.SSLCA != "" || s.opts.SSLCert != "" || s.opts.SSLKey != "" {
		if err := registerTLS(s.opts); err != nil {
			return "", err
		}
		cfg.TLSConfig = mysqlTLSConfigName
	}

	return cfg.FormatDSN(), nil
}

// registerTLS loads the configured CA and client key pair and registers
// them with the driver under a fixed config name.
func registerTLS(opts *Options) error {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if opts.SSLCA != "" {
		pem, err := os.ReadFile(opts.SSLCA)
		if err != nil {
			return fmt.Errorf("reading mysql ssl_ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return fmt.Errorf("mysql ssl_ca %s holds no usable certificates", opts.SSLCA)
		}
		tlsConfig.RootCAs = pool
	}

	if opts.SSLCert != "" && opts.SSLKey != "" {
		pair, err := tls.LoadX509KeyPair(opts.SSLCert, opts.SSLKey)
		if err != nil {
			return fmt.Errorf("loading mysql client key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{pair}
	}

	return mysql.RegisterTLSConfig(mysqlTLSConfigName, tlsConfig)
}

// Check runs the credential lookup. A nil *Flags means no matching row.
func (s *MySQLStore) Check(ctx context.Context, username, password string) (*Flags, error) {
	logrus.WithField("subsystem", "store").Debug("opening mysql connection")

	dsn, err := s.dsn()
	if err != nil {
		return nil, &MasterError{Backend: "mysql", Cause: err}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, &MasterError{Backend: "mysql", Cause: err}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, &MasterError{Backend: "mysql", Cause: err}
	}

	query := fmt.Sprintf(checkQuery, "?", "?")

	var flags Flags
	err = db.QueryRowContext(ctx, query, username, password).Scan(&flags.Active, &flags.Superuser)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &MasterError{Backend: "mysql", Cause: err}
	}

	return &flags, nil
}
