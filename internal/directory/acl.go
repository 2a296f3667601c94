package directory

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/sirupsen/logrus"

	"github.com/PaulChristophel/agartha/internal/config"
)

// ouMarker prefixes ACL identities that are symbolic OU references, e.g.
// "ldap(OU=webservers,dc=int,dc=bigcompany,dc=com)".
const ouMarker = "ldap("

// ACLEntry maps one identity token (minion, user, or OU reference) to its
// permission matchers. Matchers are opaque strings passed through
// unmodified. Entries distilled from bare identity tokens carry nil
// Matchers.
type ACLEntry struct {
	Identity string
	Matchers []string
}

// ACL is an ordered external-auth access-control list.
type ACL []ACLEntry

// IsOURef reports whether the entry is a matcher-carrying OU reference.
// Bare identity tokens are never expanded, even when they start with the
// marker.
func (e ACLEntry) IsOURef() bool {
	return e.Matchers != nil && strings.HasPrefix(e.Identity, ouMarker)
}

// searchBase extracts the directory search base enclosed by the marker.
func (e ACLEntry) searchBase() string {
	return strings.TrimSuffix(strings.TrimPrefix(e.Identity, ouMarker), ")")
}

// Expander expands OU references in an external-auth ACL into one entry
// per concrete identity found via directory search.
type Expander struct {
	dialer Dialer
	auth   *Authenticator
}

// NewExpander returns an Expander using dialer, or the production dialer
// when nil.
func NewExpander(dialer Dialer) *Expander {
	if dialer == nil {
		dialer = DefaultDialer
	}
	return &Expander{
		dialer: dialer,
		auth:   NewAuthenticator(dialer),
	}
}

// Expand replaces every OU-reference entry with one entry per computer
// object found under the referenced base, lowercased and with the first
// matching configured domain suffix stripped. When the list holds no OU
// references it is returned unchanged and no directory connection is made.
//
// A "no such object" result for one OU reference counts as zero matches
// for that OU, and so does any other search failure on that reference,
// after logging; malformed directory entries are skipped individually.
func (x *Expander) Expand(override, opts config.Options, acl ACL) (ACL, error) {
	hasRefs := false
	for _, entry := range acl {
		if entry.IsOURef() {
			hasRefs = true
			break
		}
	}
	if !hasRefs {
		return acl, nil
	}

	cfg, err := config.Directory(override, opts)
	if err != nil {
		return acl, err
	}

	h, err := x.auth.BindForSearch(override, opts, false)
	if err != nil {
		return acl, err
	}
	if h == nil {
		return acl, config.NewError("expanding ldap(...) ACL entries requires auth.ldap.binddn and auth.ldap.bindpw")
	}
	defer h.Close()

	tree := make(ACL, 0, len(acl))
	for _, entry := range acl {
		if !entry.IsOURef() {
			tree = append(tree, entry)
			continue
		}
		tree = append(tree, x.expandOU(h, cfg, entry)...)
	}

	logrus.WithFields(logrus.Fields{
		"subsystem": "directory",
		"entries":   len(tree),
	}).Trace("expanded acl tree")
	return tree, nil
}

// expandOU searches one referenced OU for computer objects and emits one
// ACL entry per resolved minion id, carrying the original matchers.
func (x *Expander) expandOU(h *Handle, cfg *config.DirectoryConfig, entry ACLEntry) ACL {
	res, err := h.Search(ldap.NewSearchRequest(
		entry.searchBase(),
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		"(objectClass=computer)",
		[]string{"cn"},
		nil,
	))
	if err != nil {
		if !IsNoSuchObject(err) {
			logrus.WithFields(logrus.Fields{
				"subsystem": "directory",
				"base":      entry.searchBase(),
			}).WithError(err).Error("LDAP search for ACL expansion failed")
		}
		return nil
	}

	expanded := make(ACL, 0, len(res.Entries))
	for _, match := range res.Entries {
		cn := match.GetAttributeValue("cn")
		if cn == "" {
			// Entry shape did not match what we expect from the directory;
			// skip it rather than aborting the whole expansion.
			continue
		}
		minionID := strings.ToLower(cn)
		// Some directory trees only list machine FQDNs; the configured
		// stripdomains reduce those to plain minion ids. First configured
		// match in list order wins.
		for _, domain := range cfg.StripDomains {
			if strings.HasSuffix(minionID, domain) {
				minionID = minionID[:len(minionID)-len(domain)]
				break
			}
		}
		expanded = append(expanded, ACLEntry{Identity: minionID, Matchers: entry.Matchers})
	}
	return expanded
}
