package template

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		tmpl     string
		username string
		want     string
		wantErr  bool
	}{
		{
			name:     "jinja style placeholder",
			tmpl:     "uid={{ username }},ou=People,dc=example,dc=com",
			username: "jdoe",
			want:     "uid=jdoe,ou=People,dc=example,dc=com",
		},
		{
			name:     "placeholder without spaces",
			tmpl:     "uid={{username}},dc=example,dc=com",
			username: "jdoe",
			want:     "uid=jdoe,dc=example,dc=com",
		},
		{
			name:     "go template placeholder",
			tmpl:     "(&(objectClass=person)(uid={{ .Username }}))",
			username: "jdoe",
			want:     "(&(objectClass=person)(uid=jdoe))",
		},
		{
			name:     "no placeholder renders unchanged",
			tmpl:     "cn=service,dc=example,dc=com",
			username: "jdoe",
			want:     "cn=service,dc=example,dc=com",
		},
		{
			name:     "repeated placeholder",
			tmpl:     "(|(uid={{ username }})(cn={{ username }}))",
			username: "jdoe",
			want:     "(|(uid=jdoe)(cn=jdoe))",
		},
		{
			name:    "malformed template fails",
			tmpl:    "uid={{ username",
			wantErr: true,
		},
		{
			name:    "unknown field fails",
			tmpl:    "uid={{ .Password }}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.username)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("Render(%q) expected error, got %q", tt.tmpl, got)
				}
				var terr *Error
				if !errors.As(err, &terr) {
					t.Fatalf("Render(%q) error is %T, want *Error", tt.tmpl, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Render(%q) unexpected error: %v", tt.tmpl, err)
			}
			if got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestRenderEscapedUsername(t *testing.T) {
	// Callers escape before rendering; the escaped form must survive template
	// substitution untouched.
	escaped := ldap.EscapeFilter(`jdoe)(objectClass=*`)
	got, err := Render("(&(objectClass=person)(uid={{ username }}))", escaped)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	want := `(&(objectClass=person)(uid=jdoe\29\28objectClass=\2a))`
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}
