package config

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	opts := Options{
		"auth.ldap.server": "ldap.example.com",
	}
	override := Options{
		"auth.ldap.server": "override.example.com",
	}

	tests := []struct {
		name      string
		key       string
		mandatory bool
		override  Options
		want      any
		wantOK    bool
		wantErr   bool
	}{
		{
			name:   "override wins over opts and defaults",
			key:    "server",
			want:   "override.example.com",
			wantOK: true,
			override: override,
		},
		{
			name:   "opts win over defaults",
			key:    "server",
			want:   "ldap.example.com",
			wantOK: true,
		},
		{
			name:   "defaults fill missing keys",
			key:    "groupou",
			want:   "Groups",
			wantOK: true,
		},
		{
			name:      "missing mandatory key fails",
			key:       "group_basedn",
			mandatory: true,
			wantErr:   true,
		},
		{
			name:   "missing optional key yields absent",
			key:    "group_basedn",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok, err := Resolve(tt.key, tt.mandatory, tt.override, opts)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("Resolve(%q) expected error, got %v", tt.key, v)
				}
				var cerr *Error
				if !errors.As(err, &cerr) {
					t.Fatalf("Resolve(%q) error is %T, want *Error", tt.key, err)
				}
				if cerr.Key != Prefix+tt.key {
					t.Errorf("error key = %q, want %q", cerr.Key, Prefix+tt.key)
				}
				return
			}

			if err != nil {
				t.Fatalf("Resolve(%q) unexpected error: %v", tt.key, err)
			}
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.key, ok, tt.wantOK)
			}
			if tt.wantOK && v != tt.want {
				t.Errorf("Resolve(%q) = %v, want %v", tt.key, v, tt.want)
			}
		})
	}
}

func TestTypedGetters(t *testing.T) {
	opts := Options{
		"auth.ldap.port":                "636",
		"auth.ldap.starttls":            "true",
		"auth.ldap.scope":               "1",
		"auth.ldap.minion_stripdomains": []any{".example.com", ".corp"},
	}

	port, err := String("port", true, nil, opts)
	if err != nil || port != "636" {
		t.Errorf("String(port) = %q, %v", port, err)
	}

	starttls, err := Bool("starttls", true, nil, opts)
	if err != nil || !starttls {
		t.Errorf("Bool(starttls) = %v, %v", starttls, err)
	}

	// Unparseable booleans resolve to false rather than failing.
	garbage, err := Bool("starttls", true, Options{"auth.ldap.starttls": "sideways"}, opts)
	if err != nil || garbage {
		t.Errorf("Bool(garbage) = %v, %v", garbage, err)
	}

	scope, err := Int("scope", true, nil, opts)
	if err != nil || scope != 1 {
		t.Errorf("Int(scope) = %d, %v", scope, err)
	}

	if _, err := Int("scope", true, Options{"auth.ldap.scope": "many"}, opts); err == nil {
		t.Error("Int with non-numeric value expected error")
	}

	domains, err := StringSlice("minion_stripdomains", false, nil, opts)
	if err != nil {
		t.Fatalf("StringSlice error: %v", err)
	}
	if len(domains) != 2 || domains[0] != ".example.com" || domains[1] != ".corp" {
		t.Errorf("StringSlice = %v", domains)
	}

	single, err := StringSlice("minion_stripdomains", false, Options{"auth.ldap.minion_stripdomains": ".solo"}, opts)
	if err != nil || len(single) != 1 || single[0] != ".solo" {
		t.Errorf("scalar StringSlice = %v, %v", single, err)
	}
}

func TestDirectoryDefaults(t *testing.T) {
	cfg, err := Directory(nil, Options{})
	if err != nil {
		t.Fatalf("Directory() error: %v", err)
	}

	if cfg.Server != "localhost" || cfg.Port != "389" {
		t.Errorf("server/port = %s/%s", cfg.Server, cfg.Port)
	}
	if cfg.Scope != ScopeSubtree {
		t.Errorf("scope = %v, want subtree", cfg.Scope)
	}
	if cfg.Mode != SchemaGeneric {
		t.Errorf("mode = %v, want generic", cfg.Mode)
	}
	if cfg.AccountAttribute != "memberUid" || cfg.GroupAttribute != "memberOf" {
		t.Errorf("attributes = %s/%s", cfg.AccountAttribute, cfg.GroupAttribute)
	}
	if cfg.Address() != "ldap://localhost:389" {
		t.Errorf("Address() = %s", cfg.Address())
	}
}

func TestDirectorySchemaPrecedence(t *testing.T) {
	// Branch order matches the original plugin: activedirectory wins when
	// both schema flags are set.
	cfg, err := Directory(nil, Options{
		"auth.ldap.activedirectory": true,
		"auth.ldap.freeipa":         true,
	})
	if err != nil {
		t.Fatalf("Directory() error: %v", err)
	}
	if cfg.Mode != SchemaActiveDirectory {
		t.Errorf("mode = %v, want activedirectory", cfg.Mode)
	}
}

func TestDirectoryFreeIPARequiresGroupSearch(t *testing.T) {
	_, err := Directory(nil, Options{"auth.ldap.freeipa": true})
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if cerr.Key != "auth.ldap.group_basedn" {
		t.Errorf("error key = %q", cerr.Key)
	}
}

func TestDirectoryConflictingTransports(t *testing.T) {
	_, err := Directory(nil, Options{
		"auth.ldap.starttls": true,
		"auth.ldap.tls":      true,
	})
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *Error for starttls+tls, got %v", err)
	}
}

func TestDirectoryScopeRange(t *testing.T) {
	if _, err := Directory(nil, Options{"auth.ldap.scope": 5}); err == nil {
		t.Error("scope 5 expected error")
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  DirectoryConfig
		want string
	}{
		{
			name: "explicit uri wins",
			cfg:  DirectoryConfig{URI: "ldaps://dc1.example.com:3269", TLS: true},
			want: "ldaps://dc1.example.com:3269",
		},
		{
			name: "tls derives ldaps",
			cfg:  DirectoryConfig{Server: "dc1.example.com", Port: "636", TLS: true},
			want: "ldaps://dc1.example.com:636",
		},
		{
			name: "plain derives ldap",
			cfg:  DirectoryConfig{Server: "dc1.example.com", Port: "389"},
			want: "ldap://dc1.example.com:389",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Address(); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}
