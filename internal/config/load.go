package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvEndpoint       = "AZURE_OPENAI_ENDPOINT"
	EnvAPIKey         = "AZURE_OPENAI_API_KEY"
	EnvChatModel      = "AZURE_OPENAI_MODEL"
	EnvEmbeddingModel = "AZURE_OPENAI_EMBEDDINGS_MODEL"
	EnvProvider       = "BINLOGQA_PROVIDER"
	EnvBinlog         = "BINLOGQA_BINLOG"
	EnvStore          = "BINLOGQA_STORE"
	EnvTopK           = "BINLOGQA_TOP_K"
)

// Load reads the config file at path, applies environment overrides and
// falls back to the keyring for the API key. A missing file is not an
// error. Load does not validate; call Validate before contacting services.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(ExpandHome(path))
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyDefaults()
	cfg.ApplyEnvOverrides()
	cfg.resolveKeyringKey()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json5.Unmarshal(data, cfg)
	}
}

// ApplyEnvOverrides copies non-empty environment values over the file values.
func (c *Config) ApplyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	envStr(EnvEndpoint, &c.Provider.Endpoint)
	envStr(EnvAPIKey, &c.Provider.APIKey)
	envStr(EnvChatModel, &c.Provider.ChatModel)
	envStr(EnvEmbeddingModel, &c.Provider.EmbeddingModel)
	envStr(EnvProvider, &c.Provider.Kind)
	envStr(EnvBinlog, &c.Index.Binlog)
	envStr(EnvStore, &c.Index.Store)

	if v := os.Getenv(EnvTopK); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ask.TopK = n
		}
	}
}

// Save writes cfg as indented JSON (a valid JSON5 file). The API key is
// never written; onboard stores it in the keyring instead.
func Save(path string, cfg *Config) error {
	cp := *cfg
	cp.Provider.APIKey = ""

	path = ExpandHome(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(&cp)
	default:
		data, err = json.MarshalIndent(&cp, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
