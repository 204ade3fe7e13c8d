package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/binlogqa/internal/providers"
)

// providerVerifyError holds the result of a provider connectivity probe.
type providerVerifyError struct {
	fatal   bool   // true = bad credentials or deployment
	message string // human-readable description
}

func (e *providerVerifyError) Error() string { return e.message }

// verifyProvider embeds a single short text to prove the endpoint, key and
// embedding deployment work together.
//   - 401/403 → invalid API key (fatal)
//   - 404     → unknown deployment or model (fatal)
//   - 5xx     → transient server error (warning)
//   - network → transient (warning)
func verifyProvider(ctx context.Context, p providers.EmbeddingProvider) *providerVerifyError {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	vectors, err := p.Embed(ctx, []string{"binlogqa connectivity check"})
	if err == nil {
		if len(vectors) != 1 || len(vectors[0]) == 0 {
			return &providerVerifyError{fatal: true, message: fmt.Sprintf("%s returned an empty embedding", p.Name())}
		}
		return nil
	}

	var httpErr *providers.HTTPError
	if !errors.As(err, &httpErr) {
		return &providerVerifyError{fatal: false, message: fmt.Sprintf("connectivity check failed (transient): %v", err)}
	}

	switch {
	case httpErr.Status == 401 || httpErr.Status == 403:
		return &providerVerifyError{fatal: true, message: fmt.Sprintf("%s returned %d: invalid API key", p.Name(), httpErr.Status)}
	case httpErr.Status == 404:
		return &providerVerifyError{fatal: true, message: fmt.Sprintf("%s returned 404: embedding model %q not found", p.Name(), p.Model())}
	case httpErr.Status >= 500:
		return &providerVerifyError{fatal: false, message: fmt.Sprintf("%s returned %d (transient)", p.Name(), httpErr.Status)}
	default:
		return &providerVerifyError{fatal: false, message: fmt.Sprintf("%s returned %d (unexpected)", p.Name(), httpErr.Status)}
	}
}
