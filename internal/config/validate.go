package config

import (
	"fmt"
	"slices"
	"strings"
)

// MissingSettingsError names the required settings that are absent.
type MissingSettingsError struct {
	Settings []string
}

func (e *MissingSettingsError) Error() string {
	return "missing required settings: " + strings.Join(e.Settings, ", ")
}

var validKinds = []string{"azure", "openai", "dashscope"}

// Validate checks that everything needed to contact the services is set.
// Azure needs all four named settings; openai and dashscope derive the
// endpoint (and, for dashscope, the models) from defaults.
func (c *Config) Validate() error {
	p := c.Provider
	if !slices.Contains(validKinds, p.Kind) {
		return fmt.Errorf("unknown provider kind %q (use one of %s)", p.Kind, strings.Join(validKinds, ", "))
	}

	var missing []string
	if p.Kind == "azure" && p.Endpoint == "" {
		missing = append(missing, EnvEndpoint)
	}
	if p.APIKey == "" {
		missing = append(missing, EnvAPIKey)
	}
	if p.Kind != "dashscope" {
		if p.ChatModel == "" {
			missing = append(missing, EnvChatModel)
		}
		if p.EmbeddingModel == "" {
			missing = append(missing, EnvEmbeddingModel)
		}
	}
	if len(missing) > 0 {
		return &MissingSettingsError{Settings: missing}
	}

	// "block" is accepted and runs as "warn": the guard never rejects input.
	switch c.Ask.InjectionAction {
	case "log", "warn", "off", "block":
	default:
		return fmt.Errorf("invalid ask.injection_action %q (use log, warn or off)", c.Ask.InjectionAction)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	return nil
}
