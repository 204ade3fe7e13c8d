package cmd

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/binlogqa/internal/binlog"
	"github.com/nextlevelbuilder/binlogqa/internal/memory"
	"github.com/nextlevelbuilder/binlogqa/internal/providers"
)

// describeServiceError turns a phase error into a one-line hint for the
// terminal. The full error is logged separately.
func describeServiceError(err error) string {
	var httpErr *providers.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == 401 || httpErr.Status == 403:
			return "⚠️ Authentication error. Check AZURE_OPENAI_API_KEY (or run: binlogqa onboard)."
		case httpErr.Status == 404:
			return "⚠️ Model or deployment not found. Check AZURE_OPENAI_MODEL and AZURE_OPENAI_EMBEDDINGS_MODEL."
		case httpErr.Status == 429:
			return "⚠️ API rate limit reached. Lower provider.requests_per_minute or try again later."
		case httpErr.Status >= 500:
			return "⚠️ The AI service is temporarily unavailable. Please try again in a moment."
		}
	}

	var decErr *binlog.DecodeError
	if errors.As(err, &decErr) {
		return "⚠️ The build log could not be decoded. Re-export it and try again."
	}

	var fmtErr *memory.FormatError
	if errors.As(err, &fmtErr) || errors.Is(err, memory.ErrDimensionMismatch) {
		return "⚠️ The embedding store is damaged or built with another model. Regenerate it: binlogqa index --force"
	}

	lower := strings.ToLower(err.Error())

	if isContextOverflowError(lower) {
		return "⚠️ Context overflow. Lower ask.top_k or index.max_tokens."
	}

	if errors.Is(err, context.DeadlineExceeded) || containsAny(lower, "timeout", "timed out", "deadline exceeded") {
		return "⚠️ Request timed out. Please try again."
	}

	if containsAny(lower, "no such file", "cannot find the file") {
		return "⚠️ File not found. Check index.binlog / index.store (or --binlog / --store)."
	}

	slog.Debug("unclassified error", "error", err)
	return "⚠️ Something went wrong. Run with --verbose for details."
}

// isContextOverflowError checks for context window/size overflow patterns.
func isContextOverflowError(lower string) bool {
	return containsAny(lower,
		"context_length_exceeded",
		"context length exceeded",
		"maximum context length",
		"prompt is too long",
		"request_too_large",
	)
}

// containsAny returns true if s contains any of the given substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
