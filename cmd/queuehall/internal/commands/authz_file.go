package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// authzFile is the on-disk shape of the authorization file. It lets
// operators manage owner and admin-role lists without long flag values.
type authzFile struct {
	Owners     []string `yaml:"owners"`
	AdminRoles []string `yaml:"admin_roles"`
}

func loadAuthzFile(path string) (*authzFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read authz file: %w", err)
	}

	var cfg authzFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse authz file: %w", err)
	}

	return &cfg, nil
}
