package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory classifies directory failures for logging and policy
// decisions.
type ErrorCategory string

const (
	CategoryConnection     ErrorCategory = "connection"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryNotFound       ErrorCategory = "not_found"
	CategorySearch         ErrorCategory = "search"
	CategoryUnknown        ErrorCategory = "unknown"
)

// Error wraps a directory connection, bind or search failure with the
// target URI and bind DN for diagnostics. The bind password is never
// recorded. The raw underlying error is preserved as the cause.
type Error struct {
	Operation string
	Category  ErrorCategory
	URI       string
	BindDN    string
	Cause     error
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("directory %s failed", e.Operation)}
	if e.URI != "" {
		parts = append(parts, "server "+e.URI)
	}
	if e.BindDN != "" {
		parts = append(parts, "as "+e.BindDN)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(operation, uri, bindDN string, cause error) *Error {
	return &Error{
		Operation: operation,
		Category:  categorize(cause),
		URI:       uri,
		BindDN:    bindDN,
		Cause:     cause,
	}
}

// categorize maps an underlying error onto an ErrorCategory, preferring
// LDAP result codes when the cause is a protocol-level failure.
func categorize(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		switch lerr.ResultCode {
		case ldap.LDAPResultInvalidCredentials,
			ldap.LDAPResultInappropriateAuthentication,
			ldap.LDAPResultStrongAuthRequired:
			return CategoryAuthentication
		case ldap.LDAPResultNoSuchObject,
			ldap.LDAPResultNoSuchAttribute:
			return CategoryNotFound
		case ldap.LDAPResultServerDown,
			ldap.LDAPResultUnavailable,
			ldap.LDAPResultBusy,
			ldap.LDAPResultConnectError,
			ldap.LDAPResultProtocolError:
			return CategoryConnection
		case ldap.LDAPResultFilterError,
			ldap.LDAPResultTimeLimitExceeded,
			ldap.LDAPResultSizeLimitExceeded:
			return CategorySearch
		default:
			return CategoryUnknown
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "connection reset"):
		return CategoryConnection
	case strings.Contains(msg, "credentials"),
		strings.Contains(msg, "authentication"):
		return CategoryAuthentication
	default:
		return CategoryUnknown
	}
}

// IsNoSuchObject reports whether err is an LDAP "no such object" result,
// which the ACL expander treats as zero matches rather than a failure.
func IsNoSuchObject(err error) bool {
	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		return lerr.ResultCode == ldap.LDAPResultNoSuchObject
	}
	return false
}

// IsInvalidCredentials reports whether err is an LDAP invalid-credentials
// result.
func IsInvalidCredentials(err error) bool {
	var lerr *ldap.Error
	if errors.As(err, &lerr) {
		return lerr.ResultCode == ldap.LDAPResultInvalidCredentials
	}
	return false
}
