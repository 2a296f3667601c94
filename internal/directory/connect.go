package directory

import (
	"crypto/tls"

	"github.com/sirupsen/logrus"

	"github.com/PaulChristophel/agartha/internal/config"
)

// Connect establishes a single directory session from the per-call
// configuration snapshot: chooses the transport, optionally downgrades
// certificate verification, and performs an anonymous, simple or GSSAPI
// bind. Configuration inconsistencies fail before any network attempt.
func Connect(cfg *config.DirectoryConfig, dialer Dialer) (*Handle, error) {
	if cfg.StartTLS && cfg.TLS {
		return nil, config.NewError("cannot bind with both starttls and tls enabled, please enable only one of the protocols")
	}

	if !cfg.Anonymous && !cfg.GSSAPI && cfg.BindPassword == "" {
		return nil, config.NewError("LDAP bind password is not set: password cannot be empty if auth.ldap.anonymous is False")
	}

	uri := cfg.Address()

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	if cfg.NoVerify {
		// Explicit, auditable trust downgrade requested via
		// auth.ldap.no_verify. Not a default.
		tlsConfig.InsecureSkipVerify = true
		logrus.WithFields(logrus.Fields{
			"subsystem": "directory",
			"uri":       uri,
		}).Warn("certificate verification disabled for directory connection")
	}

	if dialer == nil {
		dialer = DefaultDialer
	}

	conn, err := dialer.Dial(uri, tlsConfig)
	if err != nil {
		return nil, newError("connect", uri, cfg.BindDN, err)
	}

	h := newHandle(conn, uri, cfg.BindDN)

	if cfg.Anonymous {
		// Unauthenticated directory access: the handle is returned with no
		// bind attempted.
		logrus.WithFields(h.logFields()).Debug("using anonymous directory access")
		return h, nil
	}

	if cfg.StartTLS {
		if err := conn.StartTLS(tlsConfig); err != nil {
			h.Close()
			return nil, newError("starttls", uri, cfg.BindDN, err)
		}
	}

	if cfg.GSSAPI {
		if err := gssapiBind(conn, cfg); err != nil {
			h.Close()
			return nil, newError("gssapi bind", uri, cfg.BindDN, err)
		}
		logrus.WithFields(h.logFields()).Debug("directory GSSAPI bind succeeded")
		return h, nil
	}

	if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
		h.Close()
		return nil, newError("bind", uri, cfg.BindDN, err)
	}

	logrus.WithFields(h.logFields()).Debug("directory simple bind succeeded")
	return h, nil
}
