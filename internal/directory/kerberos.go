package directory

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"

	"github.com/PaulChristophel/agartha/internal/config"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// gssapiBind performs a SASL/GSSAPI service bind on conn using the
// Kerberos settings from the directory configuration.
func gssapiBind(conn Conn, cfg *config.DirectoryConfig) error {
	client, err := newGSSAPIClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn, err := servicePrincipal(cfg)
	if err != nil {
		return err
	}

	return conn.GSSAPIBind(client, spn, "")
}

// newGSSAPIClient builds a GSSAPI client from the configured credentials.
// Priority order: credential cache, keytab, bind password.
func newGSSAPIClient(cfg *config.DirectoryConfig) (*gssapi.Client, error) {
	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = defaultKrb5Conf
	}
	if !fileExists(krb5conf) {
		return nil, config.NewError("kerberos configuration file not found at %s; set auth.ldap.kerberos_config to a valid krb5.conf", krb5conf)
	}

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		return gssapi.NewClientWithKeytab(cfg.BindDN, cfg.KerberosRealm, cfg.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.BindDN != "" && cfg.BindPassword != "" {
		return gssapi.NewClientWithPassword(cfg.BindDN, cfg.KerberosRealm, cfg.BindPassword, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, config.NewError("no suitable credentials found for GSSAPI bind: configure auth.ldap.kerberos_ccache, auth.ldap.kerberos_keytab, or binddn and bindpw")
}

// servicePrincipal constructs the LDAP service principal name for the
// target server. auth.ldap.kerberos_spn overrides the derived value.
func servicePrincipal(cfg *config.DirectoryConfig) (string, error) {
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}

	hostname := cfg.Server
	if hostname == "" {
		return "", config.NewError("auth.ldap.server is required to derive the GSSAPI service principal")
	}
	// SPNs never carry a port.
	if colon := strings.Index(hostname, ":"); colon != -1 {
		hostname = hostname[:colon]
	}

	return fmt.Sprintf("ldap/%s", hostname), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
