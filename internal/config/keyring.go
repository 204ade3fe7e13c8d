package config

import (
	"errors"
	"log/slog"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name holding API keys. Entries
// are keyed by provider endpoint (or provider kind when no endpoint is set).
const KeyringService = "binlogqa"

// KeyringUser returns the keyring account for the configured provider.
func (p ProviderConfig) KeyringUser() string {
	if p.Endpoint != "" {
		return p.Endpoint
	}
	return p.Kind
}

// StoreAPIKey saves key in the OS keyring for the provider.
func StoreAPIKey(p ProviderConfig, key string) error {
	return keyring.Set(KeyringService, p.KeyringUser(), key)
}

// DeleteAPIKey removes the provider's key from the OS keyring.
func DeleteAPIKey(p ProviderConfig) error {
	err := keyring.Delete(KeyringService, p.KeyringUser())
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func (c *Config) resolveKeyringKey() {
	if c.Provider.APIKey != "" {
		return
	}
	key, err := keyring.Get(KeyringService, c.Provider.KeyringUser())
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("keyring lookup failed", "error", err)
		}
		return
	}
	c.Provider.APIKey = key
}
