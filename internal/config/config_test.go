package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/zalando/go-keyring"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvEndpoint, EnvAPIKey, EnvChatModel, EnvEmbeddingModel, EnvProvider, EnvBinlog, EnvStore, EnvTopK} {
		t.Setenv(k, "")
	}
	keyring.MockInit()
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Index.BatchSize != 50 || cfg.Index.MaxTokens != 8191 || cfg.Ask.TopK != 10 {
		t.Errorf("defaults not applied: %+v", cfg.Index)
	}
	if cfg.Index.Store != "buildlink-ranks.txt" || cfg.Provider.Kind != "azure" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_JSON5(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json5")
	os.WriteFile(path, []byte(`{
		// comments are allowed
		provider: {kind: "openai", chat_model: "gpt-4o", embedding_model: "text-embedding-3-small"},
		index: {batch_size: 16, store: "ranks.txt",},
	}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Kind != "openai" || cfg.Provider.ChatModel != "gpt-4o" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Index.BatchSize != 16 || cfg.Index.Store != "ranks.txt" {
		t.Errorf("index = %+v", cfg.Index)
	}
	if cfg.Index.MaxTokens != 8191 {
		t.Errorf("max_tokens default lost: %d", cfg.Index.MaxTokens)
	}
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("provider:\n  endpoint: https://example.openai.azure.com\nask:\n  top_k: 3\n"), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Endpoint != "https://example.openai.azure.com" || cfg.Ask.TopK != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json5")
	os.WriteFile(path, []byte("{not valid"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEndpoint, "https://env.openai.azure.com")
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvChatModel, "gpt-35")
	t.Setenv(EnvEmbeddingModel, "ada")
	t.Setenv(EnvStore, "/tmp/store.txt")
	t.Setenv(EnvTopK, "4")

	path := filepath.Join(t.TempDir(), "config.json5")
	os.WriteFile(path, []byte(`{provider: {endpoint: "https://file.example", chat_model: "file-model"}}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Provider
	if p.Endpoint != "https://env.openai.azure.com" || p.APIKey != "env-key" || p.ChatModel != "gpt-35" || p.EmbeddingModel != "ada" {
		t.Errorf("provider = %+v", p)
	}
	if cfg.Index.Store != "/tmp/store.txt" || cfg.Ask.TopK != 4 {
		t.Errorf("cfg = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_KeyringFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEndpoint, "https://kr.openai.azure.com")

	p := ProviderConfig{Endpoint: "https://kr.openai.azure.com"}
	if err := StoreAPIKey(p, "from-keyring"); err != nil {
		t.Fatalf("StoreAPIKey: %v", err)
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "none.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.APIKey != "from-keyring" {
		t.Errorf("api key = %q, want from-keyring", cfg.Provider.APIKey)
	}

	t.Setenv(EnvAPIKey, "from-env")
	cfg, _ = Load(filepath.Join(t.TempDir(), "none.json5"))
	if cfg.Provider.APIKey != "from-env" {
		t.Errorf("env should win over keyring, got %q", cfg.Provider.APIKey)
	}

	if err := DeleteAPIKey(p); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if err := DeleteAPIKey(p); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestValidate_MissingSettings(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()

	var mse *MissingSettingsError
	if !errors.As(err, &mse) {
		t.Fatalf("err = %v, want *MissingSettingsError", err)
	}
	for _, want := range []string{EnvEndpoint, EnvAPIKey, EnvChatModel, EnvEmbeddingModel} {
		if !slices.Contains(mse.Settings, want) {
			t.Errorf("missing %s in %v", want, mse.Settings)
		}
	}
}

func TestValidate_ProviderKinds(t *testing.T) {
	cfg := Default()
	cfg.Provider.Kind = "dashscope"
	cfg.Provider.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("dashscope with key only: %v", err)
	}

	cfg.Provider.Kind = "openai"
	var mse *MissingSettingsError
	if err := cfg.Validate(); !errors.As(err, &mse) || len(mse.Settings) != 2 {
		t.Errorf("openai without models: %v", err)
	}

	cfg.Provider.Kind = "bedrock"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestValidate_InjectionAndTelemetry(t *testing.T) {
	cfg := Default()
	cfg.Provider = ProviderConfig{Kind: "dashscope", APIKey: "k"}

	cfg.Ask.InjectionAction = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown action")
	}
	cfg.Ask.InjectionAction = "block"
	if err := cfg.Validate(); err != nil {
		t.Errorf("block action should be accepted: %v", err)
	}
	cfg.Ask.InjectionAction = "off"

	cfg.Telemetry.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for telemetry without endpoint")
	}
	cfg.Telemetry.Endpoint = "localhost:4317"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSave_OmitsAPIKey(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.json5")

	cfg := Default()
	cfg.Provider.Endpoint = "https://saved.example"
	cfg.Provider.APIKey = "secret"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg.Provider.APIKey != "secret" {
		t.Error("Save modified the caller's config")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Provider.Endpoint != "https://saved.example" {
		t.Errorf("endpoint = %q", loaded.Provider.Endpoint)
	}
	if loaded.Provider.APIKey != "" {
		t.Errorf("api key persisted: %q", loaded.Provider.APIKey)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandHome("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("ExpandHome = %q", got)
	}
}
