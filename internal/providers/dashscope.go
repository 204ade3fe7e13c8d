package providers

const (
	dashscopeDefaultBase           = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
	dashscopeDefaultModel          = "qwen3-max"
	dashscopeDefaultEmbeddingModel = "text-embedding-v3"

	// DashScope compatible mode accepts at most 10 inputs per embeddings call.
	DashScopeMaxEmbeddingBatch = 10
)

// NewDashScopeProvider configures an OpenAIProvider for DashScope's
// OpenAI-compatible endpoint, filling in its defaults.
func NewDashScopeProvider(cfg OpenAIConfig) *OpenAIProvider {
	cfg.Name = "dashscope"
	cfg.Azure = false
	if cfg.APIBase == "" {
		cfg.APIBase = dashscopeDefaultBase
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = dashscopeDefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = dashscopeDefaultEmbeddingModel
	}
	return NewOpenAIProvider(cfg)
}
