package directory

import (
	"github.com/go-ldap/ldap/v3"
	"github.com/sirupsen/logrus"

	"github.com/PaulChristophel/agartha/internal/config"
	"github.com/PaulChristophel/agartha/internal/template"
)

// Authenticator performs bind/search authentication against the configured
// directory. It holds no session state; every call builds a fresh
// configuration snapshot and connection.
type Authenticator struct {
	dialer Dialer
}

// NewAuthenticator returns an Authenticator using dialer, or the
// production dialer when nil.
func NewAuthenticator(dialer Dialer) *Authenticator {
	if dialer == nil {
		dialer = DefaultDialer
	}
	return &Authenticator{dialer: dialer}
}

// BindForSearch establishes a service-account session for directory
// lookups. It only attempts a bind when both a bind DN and bind password
// are configured (or a GSSAPI service bind is enabled); otherwise it
// returns a nil handle and the caller falls back to a per-user bind.
func (a *Authenticator) BindForSearch(override, opts config.Options, anonymous bool) (*Handle, error) {
	cfg, err := config.Directory(override, opts)
	if err != nil {
		return nil, err
	}
	cfg.Anonymous = anonymous

	if anonymous {
		return nil, nil
	}
	if !cfg.GSSAPI && (cfg.BindDN == "" || cfg.BindPassword == "") {
		return nil, nil
	}

	return Connect(cfg, a.dialer)
}

// AuthenticateUser renders the bind-DN and search-filter templates for
// username, connects, and verifies that the rendered filter matches
// exactly one directory identity.
//
// When no bind DN/password pair is configured, a successful connection is
// itself treated as authenticated: callers using that mode must layer
// actual credential verification elsewhere. This is a documented trust
// boundary of the bind/search surface.
func (a *Authenticator) AuthenticateUser(override, opts config.Options, username string, anonymous bool) (bool, error) {
	cfg, err := config.Directory(override, opts)
	if err != nil {
		return false, err
	}
	cfg.Anonymous = anonymous

	if cfg.BindDN != "" {
		// The binddn can be composited, e.g. {{ username }}@domain.com or
		// cn={{ username }},ou=users,dc=company,dc=tld, so render it first.
		rendered, err := template.Render(cfg.BindDN, username)
		if err != nil {
			return false, err
		}
		cfg.BindDN = ldap.EscapeFilter(rendered)
	}

	if cfg.Filter != "" {
		rendered, err := template.Render(cfg.Filter, ldap.EscapeFilter(username))
		if err != nil {
			return false, err
		}
		cfg.Filter = rendered
	}

	h, err := Connect(cfg, a.dialer)
	if err != nil {
		return false, err
	}
	defer h.Close()

	if cfg.BindDN == "" || cfg.BindPassword == "" {
		return true, nil
	}

	logrus.WithFields(logrus.Fields{
		"subsystem": "directory",
		"filter":    cfg.Filter,
		"basedn":    cfg.BaseDN,
		"scope":     cfg.Scope.String(),
	}).Debug("running LDAP user dn search")

	res, err := h.Search(ldap.NewSearchRequest(
		cfg.BaseDN,
		cfg.Scope.LDAP(),
		ldap.NeverDerefAliases,
		0, 0, false,
		cfg.Filter,
		nil,
		nil,
	))
	if err != nil {
		return false, err
	}

	return userSearchVerdict(res, username), nil
}

// userSearchVerdict applies the result policy for the user DN search.
// Directories that chase referrals can return extra result rows with no
// identity attached; those are tolerated as long as only one real identity
// remains. More than one distinct identity means the configured filter is
// not narrow enough, which is treated as a deny rather than a hard error.
func userSearchVerdict(res *ldap.SearchResult, username string) bool {
	total := len(res.Entries) + len(res.Referrals)
	if total == 0 {
		logrus.WithField("username", username).Warning("unable to find user")
		return false
	}
	if total == 1 {
		return true
	}

	identified := 0
	for _, entry := range res.Entries {
		if entry.DN != "" {
			identified++
		}
	}
	switch {
	case identified > 1:
		logrus.WithField("username", username).Error("LDAP lookup found multiple results for user")
		return false
	case identified == 0:
		logrus.WithField("username", username).Error("LDAP lookup unable to find CN matching user")
		return false
	default:
		return true
	}
}

// ResolveUser orchestrates service-account and per-user authentication for
// one username. It returns false and logs on every failure path; directory
// failures never escalate beyond this boundary.
func (a *Authenticator) ResolveUser(override, opts config.Options, username string) bool {
	bindDN, err := config.String("binddn", false, override, opts)
	if err != nil {
		logrus.WithError(err).Error("LDAP authentication failed")
		return false
	}
	bindPW, err := config.String("bindpw", false, override, opts)
	if err != nil {
		logrus.WithError(err).Error("LDAP authentication failed")
		return false
	}
	anonymous, err := config.Bool("anonymous", false, override, opts)
	if err != nil {
		logrus.WithError(err).Error("LDAP authentication failed")
		return false
	}
	membershipOnly, err := config.Bool("auth_by_group_membership_only", false, override, opts)
	if err != nil {
		logrus.WithError(err).Error("LDAP authentication failed")
		return false
	}

	bound := false
	if bindDN != "" && bindPW != "" {
		// Service credentials are configured: verify we get a valid search
		// bind before authenticating the user with it.
		searchBind, err := a.BindForSearch(override, opts, anonymous)
		if err != nil {
			logrus.WithError(err).Error("LDAP search bind failed")
			return false
		}
		// The handle only proves the service bind; close it before the
		// per-user authentication opens its own session.
		searchBind.Close()
		if searchBind != nil && username != "" {
			bound, err = a.AuthenticateUser(override, opts, username, membershipOnly && anonymous)
			if err != nil {
				logrus.WithError(err).Error("LDAP authentication failed")
				return false
			}
		}
	} else {
		var err error
		bound, err = a.AuthenticateUser(override, opts, username, membershipOnly && anonymous)
		if err != nil {
			logrus.WithError(err).Error("LDAP authentication failed")
			return false
		}
	}

	if bound {
		logrus.WithField("username", username).Debug("LDAP authentication successful")
		return true
	}

	logrus.WithField("username", username).Error("LDAP bind authentication failed")
	return false
}

// bindUser establishes a session bound as the user: the bind-DN template
// is rendered with the username and the supplied password is used for the
// simple bind. Used by the group resolver for credential re-verification.
func (a *Authenticator) bindUser(override, opts config.Options, username, password string, anonymous bool) (*Handle, error) {
	cfg, err := config.Directory(override, opts)
	if err != nil {
		return nil, err
	}
	cfg.Anonymous = anonymous
	cfg.GSSAPI = false

	if cfg.BindDN != "" {
		rendered, err := template.Render(cfg.BindDN, username)
		if err != nil {
			return nil, err
		}
		cfg.BindDN = rendered
	}
	if !anonymous {
		cfg.BindPassword = password
	}

	return Connect(cfg, a.dialer)
}
