package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var knownProviders = map[string]bool{
	"github": true,
	"gitlab": true,
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must be http or https, got %q", u.Scheme)
	}

	if !knownProviders[strings.ToLower(c.OAuth.Provider)] {
		return fmt.Errorf("unknown oauth.provider %q", c.OAuth.Provider)
	}
	if c.OAuth.ListenAddr == "" {
		return fmt.Errorf("oauth.listen_addr cannot be empty")
	}
	if _, _, err := net.SplitHostPort(c.OAuth.ListenAddr); err != nil {
		return fmt.Errorf("invalid oauth.listen_addr %q: %w", c.OAuth.ListenAddr, err)
	}

	if c.Storage.StatePath == "" {
		return fmt.Errorf("storage.state_path cannot be empty")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}
	return nil
}
