package credentials

import "sort"

// Credentials is the contents of credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential is the stored secret of one embedding provider.
type ProviderCredential struct {
	APIKey string `toml:"api_key"`
}

func newCredentials() *Credentials {
	return &Credentials{
		Version:   currentVersion,
		Providers: make(map[string]ProviderCredential),
	}
}

// Key returns the stored API key of provider, or "" when none is stored.
func (c *Credentials) Key(provider string) string {
	return c.Providers[provider].APIKey
}

// Names lists the providers with a stored credential, sorted.
func (c *Credentials) Names() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
