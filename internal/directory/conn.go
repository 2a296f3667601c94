// Package directory implements the LDAP side of agartha external auth:
// establishing directory sessions, bind/search user authentication, group
// membership resolution across the generic, Active Directory and FreeIPA
// schemas, and expansion of ldap(...) references in access-control lists.
package directory

import (
	"crypto/tls"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Conn is the subset of *ldap.Conn used by this package. Other
// implementations exist only in tests.
type Conn interface {
	Bind(username, password string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzID string) error
	StartTLS(config *tls.Config) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

var _ Conn = (*ldap.Conn)(nil)

// Dialer opens a raw directory connection to a URI. The production dialer
// uses ldap.DialURL; tests substitute fakes.
type Dialer interface {
	Dial(uri string, tlsConfig *tls.Config) (Conn, error)
}

// DialerFunc adapts a func to the Dialer interface.
type DialerFunc func(uri string, tlsConfig *tls.Config) (Conn, error)

func (f DialerFunc) Dial(uri string, tlsConfig *tls.Config) (Conn, error) {
	return f(uri, tlsConfig)
}

// DefaultDialer dials with ldap.DialURL, applying the TLS configuration to
// ldaps URIs and keeping it available for a later STARTTLS negotiation.
var DefaultDialer Dialer = DialerFunc(func(uri string, tlsConfig *tls.Config) (Conn, error) {
	return ldap.DialURL(uri, ldap.DialWithTLSConfig(tlsConfig))
})

// Handle is one live directory session. It is owned exclusively by the
// operation that created it and must be closed on every exit path; it is
// never shared across calls.
type Handle struct {
	conn   Conn
	uri    string
	bindDN string
	id     string // correlation id for log lines
}

// Search runs a directory search on the handle's session, wrapping
// failures with connection diagnostics.
func (h *Handle) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	res, err := h.conn.Search(req)
	if err != nil {
		return nil, newError("search", h.uri, h.bindDN, err)
	}
	return res, nil
}

// Close releases the underlying session. Safe to call on a nil handle.
func (h *Handle) Close() {
	if h == nil {
		return
	}
	if err := h.conn.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"subsystem":  "directory",
			"connection": h.id,
			"error":      err.Error(),
		}).Debug("error closing directory connection")
	}
}

func (h *Handle) logFields() logrus.Fields {
	return logrus.Fields{
		"subsystem":  "directory",
		"connection": h.id,
		"uri":        h.uri,
		"binddn":     h.bindDN,
	}
}

func newHandle(conn Conn, uri, bindDN string) *Handle {
	return &Handle{
		conn:   conn,
		uri:    uri,
		bindDN: bindDN,
		id:     uuid.NewString(),
	}
}
