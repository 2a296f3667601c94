package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a master-style yaml configuration file into a flat
// Options mapping. Master configs keep the dotted keys literal
// ("auth.ldap.basedn: ..."), so no key flattening is performed.
func LoadFile(path string) (Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	opts := Options{}
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&opts); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return opts, nil
}
