// Package config loads binlogqa settings from a JSON5 or YAML file, the
// environment and the OS keyring.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Provider  ProviderConfig  `json:"provider" yaml:"provider"`
	Index     IndexConfig     `json:"index" yaml:"index"`
	Ask       AskConfig       `json:"ask" yaml:"ask"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// ProviderConfig selects the embedding and chat service.
type ProviderConfig struct {
	Kind              string `json:"kind" yaml:"kind"`         // azure (default), openai, dashscope
	Endpoint          string `json:"endpoint" yaml:"endpoint"` // Azure resource URL or API base
	APIKey            string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	ChatModel         string `json:"chat_model" yaml:"chat_model"`           // deployment name on Azure
	EmbeddingModel    string `json:"embedding_model" yaml:"embedding_model"` // deployment name on Azure
	APIVersion        string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	TimeoutSec        int    `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
	RequestsPerMinute int    `json:"requests_per_minute,omitempty" yaml:"requests_per_minute,omitempty"`
}

// Timeout returns the per-request timeout.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

// IndexConfig drives store generation.
type IndexConfig struct {
	Binlog    string `json:"binlog" yaml:"binlog"` // decoded build log (JSON lines, optionally gzip)
	Store     string `json:"store" yaml:"store"`   // embedding store file
	BatchSize int    `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Encoding  string `json:"encoding,omitempty" yaml:"encoding,omitempty"`     // tiktoken encoding; empty = from embedding model
	CachePath string `json:"cache_path,omitempty" yaml:"cache_path,omitempty"` // sqlite embedding cache; empty = none
}

// AskConfig drives the question loop.
type AskConfig struct {
	TopK            int      `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	SystemPrompt    string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens       int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	InjectionAction string   `json:"injection_action,omitempty" yaml:"injection_action,omitempty"` // log, warn, off
	QueryCacheSize  int      `json:"query_cache_size,omitempty" yaml:"query_cache_size,omitempty"`
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"` // host:port
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"` // grpc (default), http
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Kind:       "azure",
			APIVersion: "2024-02-01",
			TimeoutSec: 60,
		},
		Index: IndexConfig{
			Binlog:    "buildlink-pack.binlog.jsonl",
			Store:     "buildlink-ranks.txt",
			BatchSize: 50,
			MaxTokens: 8191,
		},
		Ask: AskConfig{
			TopK:            10,
			InjectionAction: "warn",
			QueryCacheSize:  256,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "binlogqa",
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Provider.Kind == "" {
		c.Provider.Kind = d.Provider.Kind
	}
	if c.Provider.APIVersion == "" {
		c.Provider.APIVersion = d.Provider.APIVersion
	}
	if c.Provider.TimeoutSec <= 0 {
		c.Provider.TimeoutSec = d.Provider.TimeoutSec
	}
	if c.Index.Binlog == "" {
		c.Index.Binlog = d.Index.Binlog
	}
	if c.Index.Store == "" {
		c.Index.Store = d.Index.Store
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = d.Index.BatchSize
	}
	if c.Index.MaxTokens <= 0 {
		c.Index.MaxTokens = d.Index.MaxTokens
	}
	if c.Ask.TopK <= 0 {
		c.Ask.TopK = d.Ask.TopK
	}
	if c.Ask.InjectionAction == "" {
		c.Ask.InjectionAction = d.Ask.InjectionAction
	}
	if c.Ask.QueryCacheSize <= 0 {
		c.Ask.QueryCacheSize = d.Ask.QueryCacheSize
	}
	if c.Telemetry.Protocol == "" {
		c.Telemetry.Protocol = d.Telemetry.Protocol
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
