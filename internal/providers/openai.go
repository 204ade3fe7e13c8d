package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	openaiDefaultBase      = "https://api.openai.com/v1"
	azureDefaultAPIVersion = "2024-02-01"
	defaultRequestTimeout  = 60 * time.Second
	maxErrorBodyBytes      = 4096
	tracerName             = "github.com/nextlevelbuilder/binlogqa/internal/providers"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	Name           string // provider label for logs and traces
	APIKey         string
	APIBase        string // endpoint; for Azure the resource URL
	ChatModel      string // model name, or deployment name on Azure
	EmbeddingModel string
	Azure          bool
	APIVersion     string // Azure only
	Timeout        time.Duration

	// RequestsPerMinute throttles calls client-side. 0 disables throttling.
	RequestsPerMinute int
}

// OpenAIProvider implements ChatProvider and EmbeddingProvider over the
// OpenAI REST API. With Azure set it uses deployment-scoped URLs and the
// api-key header instead of a bearer token.
type OpenAIProvider struct {
	name           string
	apiKey         string
	apiBase        string
	chatModel      string
	embeddingModel string
	azure          bool
	apiVersion     string
	client         *http.Client
	limiter        *rate.Limiter
	tracer         trace.Tracer
}

// NewOpenAIProvider creates a provider from cfg.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	p := &OpenAIProvider{
		name:           cfg.Name,
		apiKey:         cfg.APIKey,
		apiBase:        strings.TrimRight(cfg.APIBase, "/"),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		azure:          cfg.Azure,
		apiVersion:     cfg.APIVersion,
		tracer:         otel.Tracer(tracerName),
	}
	if p.name == "" {
		p.name = "openai"
	}
	if p.apiBase == "" && !p.azure {
		p.apiBase = openaiDefaultBase
	}
	if p.azure && p.apiVersion == "" {
		p.apiVersion = azureDefaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	p.client = &http.Client{Timeout: timeout}
	if cfg.RequestsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return p.name }

// Model returns the embedding model.
func (p *OpenAIProvider) Model() string { return p.embeddingModel }

// ChatModel returns the completion model.
func (p *OpenAIProvider) ChatModel() string { return p.chatModel }

type embeddingRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage *Usage `json:"usage,omitempty"`
}

// Embed sends texts as one batch.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := p.tracer.Start(ctx, "embeddings",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.system", p.name),
			attribute.String("gen_ai.request.model", p.embeddingModel),
			attribute.Int("binlogqa.batch_size", len(texts)),
		),
	)
	defer span.End()

	body := embeddingRequest{Input: texts}
	if !p.azure {
		body.Model = p.embeddingModel
	}

	var resp embeddingResponse
	if err := p.post(ctx, p.endpoint(p.embeddingModel, "embeddings"), body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		err := fmt.Errorf("%s embeddings: got %d vectors for %d inputs", p.name, len(resp.Data), len(texts))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sort.SliceStable(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}

	if resp.Usage != nil {
		span.SetAttributes(attribute.Int("gen_ai.usage.input_tokens", resp.Usage.PromptTokens))
	}
	return vectors, nil
}

type chatCompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// Chat requests the next assistant message for req.Messages.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.chatModel
	}

	ctx, span := p.tracer.Start(ctx, "chat.completions",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.system", p.name),
			attribute.String("gen_ai.request.model", model),
			attribute.Int("binlogqa.messages", len(req.Messages)),
		),
	)
	defer span.End()

	body := chatCompletionRequest{
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if !p.azure {
		body.Model = model
	}

	var resp chatCompletionResponse
	if err := p.post(ctx, p.endpoint(model, "chat/completions"), body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%s chat: response has no choices", p.name)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := &ChatResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: resp.Choices[0].FinishReason,
		Usage:        resp.Usage,
	}
	span.SetAttributes(attribute.String("gen_ai.response.finish_reason", out.FinishReason))
	if out.Usage != nil {
		span.SetAttributes(
			attribute.Int("gen_ai.usage.input_tokens", out.Usage.PromptTokens),
			attribute.Int("gen_ai.usage.output_tokens", out.Usage.CompletionTokens),
		)
	}
	return out, nil
}

// endpoint builds the URL for an operation ("embeddings", "chat/completions").
func (p *OpenAIProvider) endpoint(model, op string) string {
	if !p.azure {
		return p.apiBase + "/" + op
	}
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		p.apiBase, url.PathEscape(model), op, url.QueryEscape(p.apiVersion))
}

func (p *OpenAIProvider) post(ctx context.Context, endpoint string, body, out any) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s rate limit wait: %w", p.name, err)
		}
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.azure {
		req.Header.Set("api-key", p.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	slog.Debug("provider.request", "provider", p.name, "url", endpoint, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &HTTPError{Provider: p.name, Status: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", p.name, err)
	}
	return nil
}
