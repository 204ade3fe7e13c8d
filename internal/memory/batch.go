package memory

import (
	"strings"

	"github.com/nextlevelbuilder/binlogqa/internal/tokenizer"
)

// Generation defaults.
const (
	DefaultBatchSize = 50
	DefaultMaxTokens = 8191
)

// LineSource is a single-pass sequence of text lines, scanner style.
// *binlog.Projector satisfies it.
type LineSource interface {
	Scan() bool
	Text() string
	Err() error
}

// Stats are the running counters of one generation run.
type Stats struct {
	Total     int // lines read from the source
	Truncated int // lines shortened by the token ceiling
	Dropped   int // lines empty or blank after truncation
	Embedded  int // records appended to the store
	Batches   int
}

// Batch is one group of source lines. Inputs and Truncated are parallel;
// Texts holds the truncated lines that survived, in order, escaped for
// the store.
type Batch struct {
	Inputs    []string
	Truncated []string
	Texts     []string
}

// Batcher groups a LineSource into fixed-size batches and truncates each
// line to the token ceiling.
type Batcher struct {
	src       LineSource
	tok       tokenizer.Truncator
	size      int
	maxTokens int
	stats     *Stats
	done      bool
}

// NewBatcher creates a batcher. Counters are accumulated into stats, which
// the caller owns for the duration of the run.
func NewBatcher(src LineSource, tok tokenizer.Truncator, size, maxTokens int, stats *Stats) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if stats == nil {
		stats = &Stats{}
	}
	return &Batcher{src: src, tok: tok, size: size, maxTokens: maxTokens, stats: stats}
}

// Next returns the next batch, or false once the source is exhausted.
// The final batch may be shorter than the configured size.
func (b *Batcher) Next() (Batch, bool) {
	if b.done {
		return Batch{}, false
	}

	inputs := make([]string, 0, b.size)
	for len(inputs) < b.size && b.src.Scan() {
		inputs = append(inputs, b.src.Text())
	}
	if len(inputs) < b.size {
		b.done = true
	}
	if len(inputs) == 0 {
		return Batch{}, false
	}

	batch := Batch{
		Inputs:    inputs,
		Truncated: make([]string, len(inputs)),
		Texts:     make([]string, 0, len(inputs)),
	}
	for i, in := range inputs {
		out := b.tok.Truncate(in, b.maxTokens)
		batch.Truncated[i] = out
		if out != in {
			b.stats.Truncated++
		}
		if strings.TrimSpace(out) == "" {
			b.stats.Dropped++
			continue
		}
		batch.Texts = append(batch.Texts, EscapeText(out))
	}

	b.stats.Total += len(inputs)
	b.stats.Batches++
	return batch, true
}

// Err returns the source error, if any, once Next has returned false.
func (b *Batcher) Err() error { return b.src.Err() }
