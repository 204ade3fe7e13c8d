// Package tokenizer counts and truncates text by model tokens.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE used by the ada-002 and text-embedding-3 models.
const DefaultEncoding = "cl100k_base"

// Truncator shortens text to at most maxTokens tokens.
type Truncator interface {
	Truncate(text string, maxTokens int) string
}

// Counter reports the token length of text.
type Counter interface {
	Count(text string) int
}

// Tiktoken is a Truncator backed by an OpenAI BPE encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// New loads the named encoding ("" means DefaultEncoding). The encoding
// file is fetched and cached by tiktoken-go on first use.
func New(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %q: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// ForModel loads the encoding registered for an OpenAI model name.
func ForModel(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("tokenizer for model %q: %w", model, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Load picks the encoding for an index run. An explicit encoding wins;
// otherwise the encoding registered for model is used, and models tiktoken
// does not know (non-OpenAI deployments) fall back to DefaultEncoding. The
// returned name is the encoding actually loaded, or the model it was
// derived from.
func Load(encoding, model string) (*Tiktoken, string, error) {
	if encoding != "" {
		t, err := New(encoding)
		return t, encoding, err
	}
	if model != "" {
		if t, err := ForModel(model); err == nil {
			return t, "model:" + model, nil
		}
	}
	t, err := New(DefaultEncoding)
	return t, DefaultEncoding, err
}

// Count returns the number of tokens in text. Special-token markers are
// counted as ordinary text.
func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Truncate returns text unchanged when it fits, otherwise the decoded first
// maxTokens tokens. A token boundary can split a multi-byte rune; the
// broken tail is dropped.
func (t *Tiktoken) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return strings.ToValidUTF8(t.enc.Decode(tokens[:maxTokens]), "")
}
