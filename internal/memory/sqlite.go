package memory

import (
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// EmbeddingCache persists embeddings keyed by content hash, provider and
// model, so regenerating a store for an unchanged log skips the service.
type EmbeddingCache struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenEmbeddingCache opens (or creates) the cache database at dbPath.
func OpenEmbeddingCache(dbPath string) (*EmbeddingCache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	c := &EmbeddingCache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Debug("embedding cache opened", "path", dbPath)
	return c, nil
}

func (c *EmbeddingCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			hash TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			embedding TEXT NOT NULL,
			dims INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			PRIMARY KEY (hash, provider, model)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

// Get returns a cached embedding. A decode failure is treated as a miss.
func (c *EmbeddingCache) Get(contentHash, provider, model string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var embJSON string
	err := c.db.QueryRow("SELECT embedding FROM embedding_cache WHERE hash = ? AND provider = ? AND model = ?",
		contentHash, provider, model).Scan(&embJSON)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Debug("embedding cache read failed", "error", err)
		}
		return nil, false
	}

	var emb []float32
	if err := json.Unmarshal([]byte(embJSON), &emb); err != nil {
		return nil, false
	}
	return emb, true
}

// Put stores an embedding, replacing any previous entry.
func (c *EmbeddingCache) Put(contentHash, provider, model string, embedding []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	embJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	_, err = c.db.Exec(`INSERT OR REPLACE INTO embedding_cache (hash, provider, model, embedding, dims, updated_at)
		VALUES (?, ?, ?, ?, ?, strftime('%s','now'))`,
		contentHash, provider, model, string(embJSON), len(embedding))
	return err
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var count int
	c.db.QueryRow("SELECT COUNT(*) FROM embedding_cache").Scan(&count)
	return count
}

// Close closes the database.
func (c *EmbeddingCache) Close() error {
	return c.db.Close()
}

// ContentHash returns the truncated SHA256 hash of text content.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h[:16])
}
