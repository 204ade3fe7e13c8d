package providers

import "fmt"

// Provider kinds accepted by New.
const (
	KindAzure     = "azure"
	KindOpenAI    = "openai"
	KindDashScope = "dashscope"
)

// Kinds lists the supported provider kinds.
func Kinds() []string {
	return []string{KindAzure, KindOpenAI, KindDashScope}
}

// New builds the provider for kind. The returned value serves both chat
// and embeddings.
func New(kind string, cfg OpenAIConfig) (*OpenAIProvider, error) {
	switch kind {
	case KindAzure, "":
		cfg.Name = KindAzure
		cfg.Azure = true
		if cfg.APIBase == "" {
			return nil, fmt.Errorf("azure provider requires an endpoint")
		}
		return NewOpenAIProvider(cfg), nil
	case KindOpenAI:
		cfg.Name = KindOpenAI
		cfg.Azure = false
		return NewOpenAIProvider(cfg), nil
	case KindDashScope:
		return NewDashScopeProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind %q (use one of %v)", kind, Kinds())
	}
}

// MaxEmbeddingBatch returns the largest batch the service accepts, or 0
// when it has no documented limit.
func MaxEmbeddingBatch(kind string) int {
	if kind == KindDashScope {
		return DashScopeMaxEmbeddingBatch
	}
	return 0
}
