package config

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// Scope is the directory search scope as configured by the host: an
// integer enum matching the LDAP wire values.
type Scope int

const (
	ScopeBase Scope = iota
	ScopeOneLevel
	ScopeSubtree
)

func (s Scope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeOneLevel:
		return "onelevel"
	case ScopeSubtree:
		return "subtree"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// LDAP returns the go-ldap scope constant for s.
func (s Scope) LDAP() int {
	switch s {
	case ScopeBase:
		return ldap.ScopeBaseObject
	case ScopeOneLevel:
		return ldap.ScopeSingleLevel
	default:
		return ldap.ScopeWholeSubtree
	}
}

// SchemaMode selects which directory layout convention governs the
// group-membership search strategy.
type SchemaMode int

const (
	SchemaGeneric SchemaMode = iota
	SchemaActiveDirectory
	SchemaFreeIPA
)

func (m SchemaMode) String() string {
	switch m {
	case SchemaActiveDirectory:
		return "activedirectory"
	case SchemaFreeIPA:
		return "freeipa"
	default:
		return "generic"
	}
}

// DirectoryConfig is a per-call snapshot of the directory connection and
// search parameters. It is rebuilt from the layered options on every call
// and owned exclusively by that call, which may adjust the bind fields
// before connecting; snapshots are never shared across calls.
type DirectoryConfig struct {
	URI      string
	Server   string
	Port     string
	StartTLS bool
	TLS      bool
	NoVerify bool

	Anonymous    bool
	BindDN       string
	BindPassword string

	// GSSAPI selects a SASL/GSSAPI service bind instead of a simple bind.
	GSSAPI         bool
	KerberosRealm  string
	KerberosKeytab string
	KerberosCCache string
	KerberosConfig string
	KerberosSPN    string

	Filter           string // user search filter template
	BaseDN           string
	Scope            Scope
	AccountAttribute string
	GroupAttribute   string
	GroupClass       string
	GroupOU          string
	PersonType       string

	Mode SchemaMode

	// FreeIPA group search parameters; mandatory only in FreeIPA mode.
	GroupBaseDN string
	GroupFilter string

	AuthByGroupMembershipOnly bool
	StripDomains              []string
}

// Directory builds the per-call directory configuration snapshot from the
// layered options. STARTTLS/TLS exclusivity is validated here so that
// misconfiguration surfaces before any network attempt.
func Directory(override, opts Options) (*DirectoryConfig, error) {
	cfg := &DirectoryConfig{}

	var err error
	resolveString := func(dst *string, key string, mandatory bool) {
		if err != nil {
			return
		}
		*dst, err = String(key, mandatory, override, opts)
	}
	resolveBool := func(dst *bool, key string, mandatory bool) {
		if err != nil {
			return
		}
		*dst, err = Bool(key, mandatory, override, opts)
	}

	resolveString(&cfg.URI, "uri", true)
	resolveString(&cfg.Server, "server", true)
	resolveString(&cfg.Port, "port", true)
	resolveBool(&cfg.StartTLS, "starttls", true)
	resolveBool(&cfg.TLS, "tls", true)
	resolveBool(&cfg.NoVerify, "no_verify", true)
	resolveBool(&cfg.Anonymous, "anonymous", true)
	resolveBool(&cfg.GSSAPI, "gssapi", false)
	resolveString(&cfg.BindDN, "binddn", false)
	resolveString(&cfg.BindPassword, "bindpw", false)
	resolveString(&cfg.Filter, "filter", false)
	resolveString(&cfg.BaseDN, "basedn", true)
	resolveString(&cfg.AccountAttribute, "accountattributename", true)
	resolveString(&cfg.GroupAttribute, "groupattribute", true)
	resolveString(&cfg.GroupClass, "groupclass", false)
	resolveString(&cfg.GroupOU, "groupou", false)
	resolveString(&cfg.PersonType, "persontype", true)
	resolveBool(&cfg.AuthByGroupMembershipOnly, "auth_by_group_membership_only", false)
	resolveString(&cfg.KerberosRealm, "kerberos_realm", false)
	resolveString(&cfg.KerberosKeytab, "kerberos_keytab", false)
	resolveString(&cfg.KerberosCCache, "kerberos_ccache", false)
	resolveString(&cfg.KerberosConfig, "kerberos_config", false)
	resolveString(&cfg.KerberosSPN, "kerberos_spn", false)
	if err != nil {
		return nil, err
	}

	scope, err := Int("scope", true, override, opts)
	if err != nil {
		return nil, err
	}
	if scope < int(ScopeBase) || scope > int(ScopeSubtree) {
		return nil, &Error{
			Key:     Prefix + "scope",
			Message: fmt.Sprintf("%sscope must be 0 (base), 1 (onelevel) or 2 (subtree), got %d", Prefix, scope),
		}
	}
	cfg.Scope = Scope(scope)

	// Branch order matches the original plugin: activedirectory wins when
	// both schema flags are set.
	ad, err := Bool("activedirectory", true, override, opts)
	if err != nil {
		return nil, err
	}
	ipa, err := Bool("freeipa", false, override, opts)
	if err != nil {
		return nil, err
	}
	switch {
	case ad:
		cfg.Mode = SchemaActiveDirectory
	case ipa:
		cfg.Mode = SchemaFreeIPA
	default:
		cfg.Mode = SchemaGeneric
	}

	// group_basedn and group_filter have no defaults, so they are mandatory
	// exactly when the FreeIPA strategy needs them.
	cfg.GroupBaseDN, err = String("group_basedn", cfg.Mode == SchemaFreeIPA, override, opts)
	if err != nil {
		return nil, err
	}
	cfg.GroupFilter, err = String("group_filter", cfg.Mode == SchemaFreeIPA, override, opts)
	if err != nil {
		return nil, err
	}

	cfg.StripDomains, err = StringSlice("minion_stripdomains", false, override, opts)
	if err != nil {
		return nil, err
	}

	if cfg.StartTLS && cfg.TLS {
		return nil, NewError("cannot bind with both starttls and tls enabled, please enable only one of the protocols")
	}

	return cfg, nil
}

// Address returns the effective connection URI, deriving it from scheme,
// server and port when no explicit URI is configured.
func (c *DirectoryConfig) Address() string {
	if c.URI != "" {
		return c.URI
	}
	scheme := "ldap"
	if c.TLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%s", scheme, c.Server, c.Port)
}
