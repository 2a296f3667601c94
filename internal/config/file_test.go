package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master")
	content := `
auth.ldap.server: ldap.example.com
auth.ldap.port: "389"
auth.ldap.basedn: dc=example,dc=com
auth.ldap.anonymous: false
auth.ldap.minion_stripdomains:
  - .example.com
returner.pgupsert.host: db.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	opts, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ldap.example.com", opts["auth.ldap.server"])
	assert.Equal(t, "389", opts["auth.ldap.port"])
	assert.Equal(t, false, opts["auth.ldap.anonymous"])
	assert.Equal(t, "db.example.com", opts["returner.pgupsert.host"])

	domains, err := StringSlice("minion_stripdomains", false, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{".example.com"}, domains)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master")
	require.NoError(t, os.WriteFile(path, []byte("auth.ldap.server: [unclosed"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}
