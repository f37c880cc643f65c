package providers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrlokans/patron/internal/entities"
)

type credentialsFile struct {
	Credentials []bundledCredentialsDocument `yaml:"credentials"`
}

type bundledCredentialsDocument struct {
	Provider string `yaml:"provider"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BundledCredentials are credentials shipped with the application for specific providers,
// attached to automatically created accounts.
type BundledCredentials struct {
	byProvider map[string]entities.Credentials
}

// NewBundledCredentials wraps a provider ID to credentials map.
func NewBundledCredentials(byProvider map[string]entities.Credentials) *BundledCredentials {
	if byProvider == nil {
		byProvider = map[string]entities.Credentials{}
	}
	return &BundledCredentials{byProvider: byProvider}
}

// LoadBundledCredentials reads bundled credentials from a YAML file. An empty path yields none.
func LoadBundledCredentials(path string) (*BundledCredentials, error) {
	if path == "" {
		return NewBundledCredentials(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundled credentials: %w", err)
	}

	var doc credentialsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse bundled credentials: %w", err)
	}

	byProvider := make(map[string]entities.Credentials, len(doc.Credentials))
	for _, c := range doc.Credentials {
		if c.Provider == "" {
			return nil, fmt.Errorf("bundled credentials entry without provider")
		}
		byProvider[c.Provider] = entities.NewCredentials(c.Username, c.Password)
	}
	return NewBundledCredentials(byProvider), nil
}

// CredentialsFor returns the bundled credentials for a provider, if any.
func (b *BundledCredentials) CredentialsFor(providerID string) (entities.Credentials, bool) {
	c, ok := b.byProvider[providerID]
	return c, ok
}
