package agartha

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/PaulChristophel/agartha/internal/config"
	"github.com/PaulChristophel/agartha/internal/directory"
	"github.com/PaulChristophel/agartha/internal/store"
)

// Options is the flat dotted-key configuration mapping supplied by the
// host runtime on every call.
type Options = config.Options

// ACL and ACLEntry are re-exported for hosts invoking ProcessACL.
type (
	ACL      = directory.ACL
	ACLEntry = directory.ACLEntry
)

// Backend binds the credential store and directory dialer used by the
// entry points. The zero value uses the production implementations; tests
// substitute fakes.
type Backend struct {
	// Dialer opens directory connections. Nil means ldap.DialURL.
	Dialer directory.Dialer

	// NewStore builds the credential store from the host options. Nil
	// means backend selection via store.New.
	NewStore func(Options) (store.Store, error)
}

var defaultBackend = &Backend{}

func (b *Backend) newStore(opts Options) (store.Store, error) {
	if b.NewStore != nil {
		return b.NewStore(opts)
	}
	return store.New(opts)
}

// Auth authenticates username/password against the user store. Inactive
// accounts are rejected; superusers skip directory authorization entirely;
// everyone else must additionally pass the LDAP bind/search check.
//
// The returned error is an operational fault (store unreachable or
// misconfigured), never "wrong password": failed authentication is a
// normal (false, nil) outcome.
func (b *Backend) Auth(ctx context.Context, opts Options, username, password string) (bool, error) {
	logrus.WithField("username", username).Info("authenticating user")

	if password == "" {
		return false, nil
	}

	st, err := b.newStore(opts)
	if err != nil {
		return false, err
	}

	flags, err := st.Check(ctx, username, password)
	if err != nil {
		return false, err
	}

	if flags != nil {
		logrus.Debug("agartha authentication successful")
		if !flags.Active {
			logrus.Debug("user failed is_active check")
			return false, nil
		}
		if flags.Superuser {
			logrus.Debug("user is_active and is_superuser, skipping ldap authorization")
			return true, nil
		}
	}

	logrus.Debug("attempting ldap authorization")
	return directory.NewAuthenticator(b.Dialer).ResolveUser(nil, opts, username), nil
}

// GroupOption carries the optional parameters of a group-resolution call.
type GroupOption func(*groupParams)

type groupParams struct {
	password string
	jobID    string
}

// WithPassword supplies the user's password for per-user binds and the
// first-call credential re-check.
func WithPassword(password string) GroupOption {
	return func(p *groupParams) {
		p.password = password
	}
}

// WithJobID marks the first group-resolution call for a job, which
// triggers the credential re-check in generic schema mode.
func WithJobID(jobID string) GroupOption {
	return func(p *groupParams) {
		p.jobID = jobID
	}
}

// Groups resolves the groups username belongs to. The result is ordered,
// may be empty, and may contain repeats. Directory failures resolve to an
// empty list with a logged message; only configuration faults surface as
// errors.
func (b *Backend) Groups(opts Options, username string, gopts ...GroupOption) ([]string, error) {
	var p groupParams
	for _, opt := range gopts {
		opt(&p)
	}
	return directory.NewResolver(b.Dialer).Groups(nil, opts, username, p.password, p.jobID)
}

// ProcessACL expands ldap(...) OU references in acl into one entry per
// concrete identity found via directory search. Lists without OU
// references are returned unchanged, with no directory round-trip.
func (b *Backend) ProcessACL(opts Options, acl ACL) (ACL, error) {
	return directory.NewExpander(b.Dialer).Expand(nil, opts, acl)
}

// Auth authenticates against the production backend.
func Auth(ctx context.Context, opts Options, username, password string) (bool, error) {
	return defaultBackend.Auth(ctx, opts, username, password)
}

// Groups resolves group membership against the production backend.
func Groups(opts Options, username string, gopts ...GroupOption) ([]string, error) {
	return defaultBackend.Groups(opts, username, gopts...)
}

// ProcessACL expands OU references against the production backend.
func ProcessACL(opts Options, acl ACL) (ACL, error) {
	return defaultBackend.ProcessACL(opts, acl)
}
