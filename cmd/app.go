package cmd

import (
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/binlogqa/internal/config"
	"github.com/nextlevelbuilder/binlogqa/internal/memory"
	"github.com/nextlevelbuilder/binlogqa/internal/providers"
)

// app holds the collaborators shared by the index and ask phases.
type app struct {
	cfg      *config.Config
	provider *providers.OpenAIProvider
	embedder *memory.CachedEmbedder
	cache    *memory.EmbeddingCache // nil when index.cache_path is unset
	store    *memory.FileStore
}

func newApp(cfg *config.Config) (*app, error) {
	p, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		provider: p,
		store:    memory.NewFileStore(cfg.Index.Store),
	}

	if cfg.Index.CachePath != "" {
		a.cache, err = memory.OpenEmbeddingCache(cfg.Index.CachePath)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
	}

	a.embedder, err = memory.NewCachedEmbedder(p, a.cache, cfg.Ask.QueryCacheSize)
	if err != nil {
		a.Close()
		return nil, err
	}

	if limit := providers.MaxEmbeddingBatch(cfg.Provider.Kind); limit > 0 && cfg.Index.BatchSize > limit {
		slog.Warn("batch size above provider limit, clamping",
			"provider", cfg.Provider.Kind, "batch_size", cfg.Index.BatchSize, "limit", limit)
		cfg.Index.BatchSize = limit
	}
	return a, nil
}

func newProvider(cfg *config.Config) (*providers.OpenAIProvider, error) {
	pc := cfg.Provider
	return providers.New(pc.Kind, providers.OpenAIConfig{
		APIKey:            pc.APIKey,
		APIBase:           pc.Endpoint,
		ChatModel:         pc.ChatModel,
		EmbeddingModel:    pc.EmbeddingModel,
		APIVersion:        pc.APIVersion,
		Timeout:           pc.Timeout(),
		RequestsPerMinute: pc.RequestsPerMinute,
	})
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("close embedding cache", "error", err)
		}
		a.cache = nil
	}
}
