// Package template renders the bind-DN and search-filter templates from the
// master config, substituting a username at the single substitution point.
//
// Escaping is the caller's responsibility: any untrusted value destined for
// an LDAP filter or DN must pass through ldap.EscapeFilter before it
// reaches Render.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// Error indicates a malformed substitution template. It is fatal to the
// current call, since it signals misconfiguration rather than a bad login.
type Error struct {
	Template string
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("malformed template %q: %v", e.Template, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Master configs written for the original plugin use jinja-style
// "{{ username }}" placeholders. Normalize those to Go template syntax so
// both spellings render.
var legacyPlaceholder = regexp.MustCompile(`\{\{\s*username\s*\}\}`)

type params struct {
	Username string
}

// Render substitutes username into tmpl. Both "{{ username }}" and
// "{{ .Username }}" placeholders are recognized; a template without a
// placeholder renders unchanged.
func Render(tmpl, username string) (string, error) {
	normalized := legacyPlaceholder.ReplaceAllString(tmpl, "{{ .Username }}")

	t, err := template.New("param").Option("missingkey=error").Parse(normalized)
	if err != nil {
		return "", &Error{Template: tmpl, Cause: err}
	}

	var out strings.Builder
	if err := t.Execute(&out, params{Username: username}); err != nil {
		return "", &Error{Template: tmpl, Cause: err}
	}

	return out.String(), nil
}
