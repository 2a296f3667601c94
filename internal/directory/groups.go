package directory

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/sirupsen/logrus"

	"github.com/PaulChristophel/agartha/internal/config"
	"github.com/PaulChristophel/agartha/internal/template"
)

// Resolver resolves the groups a user belongs to, dispatching on the
// configured directory schema.
type Resolver struct {
	dialer Dialer
	auth   *Authenticator
}

// NewResolver returns a Resolver using dialer, or the production dialer
// when nil.
func NewResolver(dialer Dialer) *Resolver {
	if dialer == nil {
		dialer = DefaultDialer
	}
	return &Resolver{
		dialer: dialer,
		auth:   NewAuthenticator(dialer),
	}
}

// Groups returns the ordered group names attributed to username. The
// result may be empty and may contain repeats; callers must tolerate both.
// Directory failures yield an empty result plus a logged message, never a
// hard error. jobID marks the first call for a job, which triggers the
// credential re-check in generic mode.
func (r *Resolver) Groups(override, opts config.Options, username, password, jobID string) ([]string, error) {
	cfg, err := config.Directory(override, opts)
	if err != nil {
		return nil, err
	}

	groupList := []string{}

	var h *Handle
	if cfg.BindDN != "" && cfg.BindPassword != "" {
		// Service credentials are configured; use them instead of the
		// user's for the membership search.
		h, err = r.auth.BindForSearch(override, opts, cfg.Anonymous)
	} else {
		h, err = r.auth.bindUser(override, opts, username, password,
			cfg.AuthByGroupMembershipOnly && cfg.Anonymous)
	}
	if err != nil || h == nil {
		logrus.WithFields(logrus.Fields{
			"subsystem": "directory",
			"username":  username,
		}).WithError(err).Error("LDAP bind to determine group membership failed")
		return groupList, nil
	}
	defer h.Close()

	logrus.WithField("username", username).Debug("LDAP bind to determine group membership succeeded")

	switch cfg.Mode {
	case config.SchemaActiveDirectory:
		groupList = r.activeDirectoryGroups(h, cfg, username)
	case config.SchemaFreeIPA:
		groupList = r.freeIPAGroups(h, cfg, username)
		// Group enumeration with a service bind does not prove the supplied
		// credentials; re-verify and discard everything on mismatch.
		if !r.auth.ResolveUser(override, opts, username) {
			logrus.Error("LDAP username and password do not match")
			return []string{}, nil
		}
	default:
		groupList = r.genericGroups(h, cfg, username)
		if jobID != "" {
			// Only test user auth on the first call for a job; the job
			// identifier is only present on the first payload.
			if !r.verifyUser(override, opts, cfg, username, password) {
				logrus.Error("LDAP username and password do not match")
				return []string{}, nil
			}
		}
	}

	return groupList, nil
}

// activeDirectoryGroups locates the user's distinguished name by account
// attribute, then collects the cn of every group object holding that DN in
// its member attribute. Directory hiccups yield an empty result, logged.
func (r *Resolver) activeDirectoryGroups(h *Handle, cfg *config.DirectoryConfig, username string) []string {
	groupList := []string{}

	userDNSearch := fmt.Sprintf("(&(%s=%s)(objectClass=%s))",
		cfg.AccountAttribute, ldap.EscapeFilter(username), cfg.PersonType)
	userRes, err := h.Search(ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		userDNSearch,
		[]string{"distinguishedName"},
		nil,
	))
	if err != nil {
		logrus.WithError(err).Error("exception thrown while looking up user DN in AD")
		return groupList
	}
	if len(userRes.Entries) == 0 {
		logrus.WithField("username", username).Error("could not get distinguished name for user")
		return groupList
	}

	dn := ldap.EscapeFilter(userRes.Entries[0].DN)
	groupSearch := fmt.Sprintf("(&(member=%s)(objectClass=%s))", dn, cfg.GroupClass)
	logrus.WithField("filter", groupSearch).Debug("running LDAP group membership search")

	groupRes, err := h.Search(ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		groupSearch,
		[]string{cfg.AccountAttribute, "cn"},
		nil,
	))
	if err != nil {
		logrus.WithError(err).Error("exception thrown while retrieving group membership in AD")
		return groupList
	}

	for _, entry := range groupRes.Entries {
		if cn := entry.GetAttributeValue("cn"); cn != "" {
			groupList = append(groupList, cn)
		}
	}

	logrus.WithFields(logrus.Fields{
		"username": username,
		"groups":   groupList,
	}).Debug("resolved group membership")
	return groupList
}

// freeIPAGroups renders the group filter with the escaped username and
// records the first RDN of every matching entry whose account or group
// attribute carries the username.
func (r *Resolver) freeIPAGroups(h *Handle, cfg *config.DirectoryConfig, username string) []string {
	groupList := []string{}

	searchString, err := template.Render(cfg.GroupFilter, ldap.EscapeFilter(username))
	if err != nil {
		logrus.WithError(err).Error("malformed auth.ldap.group_filter template")
		return groupList
	}

	res, err := h.Search(ldap.NewSearchRequest(
		cfg.GroupBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		searchString,
		[]string{cfg.AccountAttribute, cfg.GroupAttribute, "cn"},
		nil,
	))
	if err != nil {
		logrus.WithError(err).Error("exception thrown while retrieving group membership in FreeIPA")
		return groupList
	}

	for _, entry := range res.Entries {
		members := append(
			entry.GetAttributeValues(cfg.AccountAttribute),
			entry.GetAttributeValues(cfg.GroupAttribute)...)
		for _, member := range members {
			if username == firstRDNValue(member) {
				groupList = append(groupList, firstRDNValue(entry.DN))
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"username": username,
		"groups":   groupList,
	}).Debug("resolved group membership")
	return groupList
}

// genericGroups searches a computed base (optionally scoped under the
// configured group OU) and collects group names in two passes: the cn of
// entries listing the username in the account attribute, and the first RDN
// of each group attribute value on entries whose own RDN is the username.
// Both passes run over one result set; whether the second layout is still
// in use depends on the directory, so neither pass is dropped.
func (r *Resolver) genericGroups(h *Handle, cfg *config.DirectoryConfig, username string) []string {
	groupList := []string{}

	searchBase := cfg.BaseDN
	if cfg.GroupOU != "" {
		searchBase = fmt.Sprintf("ou=%s,%s", cfg.GroupOU, cfg.BaseDN)
	}
	searchString := fmt.Sprintf("(&(%s=%s)(objectClass=%s))",
		cfg.AccountAttribute, ldap.EscapeFilter(username), cfg.GroupClass)

	res, err := h.Search(ldap.NewSearchRequest(
		searchBase,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		searchString,
		[]string{cfg.AccountAttribute, "cn", cfg.GroupAttribute},
		nil,
	))
	if err != nil {
		logrus.WithError(err).Error("exception thrown while retrieving group membership")
		return groupList
	}

	for _, entry := range res.Entries {
		for _, member := range entry.GetAttributeValues(cfg.AccountAttribute) {
			if member == username {
				if cn := entry.GetAttributeValue("cn"); cn != "" {
					groupList = append(groupList, cn)
				}
				break
			}
		}
	}
	for _, entry := range res.Entries {
		if username == firstRDNValue(entry.DN) {
			for _, group := range entry.GetAttributeValues(cfg.GroupAttribute) {
				groupList = append(groupList, firstRDNValue(group))
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"username": username,
		"groups":   groupList,
	}).Debug("resolved group membership")
	return groupList
}

// verifyUser checks the supplied credentials. With static service
// credentials a per-user bind would present the user's password on the
// service DN, so the search-based check runs instead; a user-templated
// bind DN is verified by binding as the user.
func (r *Resolver) verifyUser(override, opts config.Options, cfg *config.DirectoryConfig, username, password string) bool {
	if cfg.BindDN != "" && cfg.BindPassword != "" {
		return r.auth.ResolveUser(override, opts, username)
	}

	verifier, err := r.auth.bindUser(override, opts, username, password,
		cfg.AuthByGroupMembershipOnly && cfg.Anonymous)
	if err != nil || verifier == nil {
		return false
	}
	verifier.Close()
	return true
}

// firstRDNValue extracts the value of the leftmost RDN component of a DN,
// e.g. "uid=paul,cn=users,dc=example,dc=com" yields "paul".
func firstRDNValue(dn string) string {
	rdn := strings.SplitN(dn, ",", 2)[0]
	parts := strings.Split(rdn, "=")
	return parts[len(parts)-1]
}
