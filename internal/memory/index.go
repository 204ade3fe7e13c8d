package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/binlogqa/internal/providers"
	"github.com/nextlevelbuilder/binlogqa/internal/tokenizer"
)

// IndexerConfig tunes a generation run.
type IndexerConfig struct {
	BatchSize int // lines per embeddings call (default 50)
	MaxTokens int // per-line token ceiling (default 8191)
	RunID     string
}

// IndexResult summarizes a generation run.
type IndexResult struct {
	RunID    string
	Skipped  bool // the store already existed
	Stats    Stats
	Duration time.Duration
}

// OpenFunc opens the line source for a run. It is only called when the
// store has to be generated. A source implementing io.Closer is closed
// when the run ends.
type OpenFunc func() (LineSource, error)

// Indexer embeds projected lines and appends them to a FileStore.
type Indexer struct {
	store    *FileStore
	embedder providers.EmbeddingProvider
	tok      tokenizer.Truncator
	cfg      IndexerConfig
}

// NewIndexer wires an indexer.
func NewIndexer(store *FileStore, embedder providers.EmbeddingProvider, tok tokenizer.Truncator, cfg IndexerConfig) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Indexer{store: store, embedder: embedder, tok: tok, cfg: cfg}
}

// Generate fills the store from the source returned by open. If the store
// file already exists the run is a no-op and open is never called. A failed embeddings call aborts the run; records from
// earlier batches stay in the file.
func (ix *Indexer) Generate(ctx context.Context, open OpenFunc) (*IndexResult, error) {
	res := &IndexResult{RunID: ix.cfg.RunID}
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	start := time.Now()

	exists, err := ix.store.Exists()
	if err != nil {
		return nil, err
	}
	if exists {
		res.Skipped = true
		slog.Info("index.skip", "run", res.RunID, "store", ix.store.Path(), "reason", "store exists")
		return res, nil
	}

	src, err := open()
	if err != nil {
		return nil, err
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	slog.Info("index.start", "run", res.RunID, "store", ix.store.Path(),
		"provider", ix.embedder.Name(), "model", ix.embedder.Model(),
		"batch_size", ix.cfg.BatchSize, "max_tokens", ix.cfg.MaxTokens)

	batcher := NewBatcher(src, ix.tok, ix.cfg.BatchSize, ix.cfg.MaxTokens, &res.Stats)
	for {
		batch, ok := batcher.Next()
		if !ok {
			break
		}

		if len(batch.Texts) > 0 {
			vectors, err := ix.embedder.Embed(ctx, batch.Texts)
			if err != nil {
				ix.diagnose(ctx, res.RunID, batch.Texts, err)
				return res, fmt.Errorf("embed batch %d: %w", res.Stats.Batches, err)
			}
			if len(vectors) != len(batch.Texts) {
				return res, fmt.Errorf("embed batch %d: got %d vectors for %d inputs",
					res.Stats.Batches, len(vectors), len(batch.Texts))
			}

			recs := make([]Record, len(batch.Texts))
			for i, text := range batch.Texts {
				if len(vectors[i]) == 0 {
					return res, fmt.Errorf("embed batch %d: input %d: %w",
						res.Stats.Batches, i+1, ErrEmptyVector)
				}
				recs[i] = Record{Vector: vectors[i], Text: text}
			}
			if err := ix.store.Append(recs); err != nil {
				return res, err
			}
			res.Stats.Embedded += len(recs)
		}

		slog.Info("index.batch", "run", res.RunID, "batch", res.Stats.Batches,
			"total", res.Stats.Total, "truncated", res.Stats.Truncated)
	}

	if err := batcher.Err(); err != nil {
		return res, fmt.Errorf("read events: %w", err)
	}

	res.Duration = time.Since(start)
	slog.Info("index.done", "run", res.RunID, "total", res.Stats.Total,
		"truncated", res.Stats.Truncated, "dropped", res.Stats.Dropped,
		"embedded", res.Stats.Embedded, "duration", res.Duration)
	return res, nil
}

// diagnose resubmits a failed batch one text at a time and logs the first
// input the service rejects. It never retries the batch itself.
func (ix *Indexer) diagnose(ctx context.Context, runID string, texts []string, batchErr error) {
	for i, text := range texts {
		if ctx.Err() != nil {
			return
		}
		if _, err := ix.embedder.Embed(ctx, []string{text}); err != nil {
			attrs := []any{"run", runID, "position", i, "input", text, "error", err}
			if c, ok := ix.tok.(tokenizer.Counter); ok {
				attrs = append(attrs, "tokens", c.Count(text))
			}
			slog.Error("index.bad_input", attrs...)
			return
		}
	}
	slog.Error("index.batch_failed", "run", runID, "size", len(texts), "error", batchErr)
}
