// Package config resolves master-configuration options for the agartha
// external-auth backends.
//
// Options are supplied by the host runtime as a flat mapping of dotted keys
// ("auth.ldap.basedn", "mysql.host", ...). Lookups fall back from an
// explicit per-call override mapping, to the host-supplied options, to a
// built-in default table. Missing mandatory keys fail with *Error.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Prefix is the configuration namespace for directory options.
const Prefix = "auth.ldap."

// Options is the flat dotted-key configuration mapping supplied by the host
// runtime. It is read-only from this package's point of view.
type Options map[string]any

// Error indicates a missing mandatory option or an inconsistent
// combination of options. It is fatal to the current call and never
// converted into an authentication-failure result.
type Error struct {
	Key     string // fully qualified option key, when one is at fault
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a configuration error that is not tied to a single key,
// such as conflicting transport flags.
func NewError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

func missingKey(key string) *Error {
	return &Error{
		Key:     Prefix + key,
		Message: fmt.Sprintf("missing %s%s in master config", Prefix, key),
	}
}

// defaults mirrors the built-in option table of the original master
// plugin. Keys are relative to Prefix.
var defaults = Options{
	"basedn":               "",
	"uri":                  "",
	"server":               "localhost",
	"port":                 "389",
	"starttls":             false,
	"tls":                  false,
	"no_verify":            false,
	"anonymous":            false,
	"gssapi":               false,
	"scope":                2,
	"groupou":              "Groups",
	"accountattributename": "memberUid",
	"groupattribute":       "memberOf",
	"persontype":           "person",
	"groupclass":           "posixGroup",
	"activedirectory":      false,
	"freeipa":              false,
	"minion_stripdomains":  []string{},
}

// Resolve looks up an auth.ldap option by its short key. The override
// mapping wins over the host options, which win over the default table.
// A missing mandatory key yields *Error; a missing optional key yields
// (nil, false, nil).
func Resolve(key string, mandatory bool, override, opts Options) (any, bool, error) {
	full := Prefix + key
	if override != nil {
		if v, ok := override[full]; ok {
			return v, true, nil
		}
	}
	if v, ok := opts[full]; ok {
		return v, true, nil
	}
	if v, ok := defaults[key]; ok {
		return v, true, nil
	}
	if mandatory {
		return nil, false, missingKey(key)
	}
	return nil, false, nil
}

// String resolves an option and coerces it to a string. Scalars other than
// strings are rendered with their natural formatting, since yaml-sourced
// options arrive untyped.
func String(key string, mandatory bool, override, opts Options) (string, error) {
	v, ok, err := Resolve(key, mandatory, override, opts)
	if err != nil || !ok {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

// Bool resolves an option and coerces it to a bool. Unparseable values
// resolve to false rather than failing, matching the forgiving handling of
// the original option table.
func Bool(key string, mandatory bool, override, opts Options) (bool, error) {
	v, ok, err := Resolve(key, mandatory, override, opts)
	if err != nil || !ok {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, perr := strconv.ParseBool(strings.ToLower(t))
		if perr != nil {
			return false, nil
		}
		return b, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	default:
		return false, nil
	}
}

// Int resolves an option and coerces it to an int.
func Int(key string, mandatory bool, override, opts Options) (int, error) {
	v, ok, err := Resolve(key, mandatory, override, opts)
	if err != nil || !ok {
		return 0, err
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		n, perr := strconv.Atoi(strings.TrimSpace(t))
		if perr != nil {
			return 0, &Error{
				Key:     Prefix + key,
				Message: fmt.Sprintf("%s%s is not an integer: %q", Prefix, key, t),
			}
		}
		return n, nil
	default:
		return 0, &Error{
			Key:     Prefix + key,
			Message: fmt.Sprintf("%s%s is not an integer", Prefix, key),
		}
	}
}

// StringSlice resolves an option holding a list of strings, such as
// minion_stripdomains. Scalar values are treated as single-element lists.
func StringSlice(key string, mandatory bool, override, opts Options) ([]string, error) {
	v, ok, err := Resolve(key, mandatory, override, opts)
	if err != nil || !ok {
		return nil, err
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out, nil
	case string:
		if t == "" {
			return nil, nil
		}
		return []string{t}, nil
	case nil:
		return nil, nil
	default:
		return nil, &Error{
			Key:     Prefix + key,
			Message: fmt.Sprintf("%s%s is not a list", Prefix, key),
		}
	}
}
