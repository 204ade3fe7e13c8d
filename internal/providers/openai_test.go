package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProvider_EmbedAzure(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	var gotBody embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("api-version")
		gotKey = r.Header.Get("api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		// Out of order on purpose: the client must sort by index.
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}],"usage":{"prompt_tokens":4,"total_tokens":4}}`))
	}))
	defer srv.Close()

	p, err := New(KindAzure, OpenAIConfig{APIBase: srv.URL, APIKey: "secret", EmbeddingModel: "emb-deploy"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if gotPath != "/openai/deployments/emb-deploy/embeddings" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != azureDefaultAPIVersion {
		t.Errorf("api-version = %q", gotQuery)
	}
	if gotKey != "secret" {
		t.Errorf("api-key header = %q", gotKey)
	}
	if gotBody.Model != "" || len(gotBody.Input) != 2 {
		t.Errorf("body = %+v", gotBody)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors = %v", vecs)
	}
}

func TestOpenAIProvider_ChatOpenAI(t *testing.T) {
	var gotAuth string
	var gotBody chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"The build failed in Csc."},"finish_reason":"stop"}],"usage":{"prompt_tokens":20,"completion_tokens":7,"total_tokens":27}}`))
	}))
	defer srv.Close()

	p, _ := New(KindOpenAI, OpenAIConfig{APIBase: srv.URL, APIKey: "sk-test", ChatModel: "gpt-4o"})
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "why?"},
	}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o" || len(gotBody.Messages) != 2 {
		t.Errorf("body = %+v", gotBody)
	}
	if resp.Content != "The build failed in Csc." || resp.FinishReason != "stop" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.CompletionTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestOpenAIProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"input too long"}}`))
	}))
	defer srv.Close()

	p, _ := New(KindOpenAI, OpenAIConfig{APIBase: srv.URL, EmbeddingModel: "m"})
	_, err := p.Embed(context.Background(), []string{"x"})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want HTTPError", err)
	}
	if httpErr.Status != http.StatusBadRequest || !strings.Contains(httpErr.Body, "input too long") {
		t.Errorf("HTTPError = %+v", httpErr)
	}
}

func TestOpenAIProvider_VectorCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	p, _ := New(KindOpenAI, OpenAIConfig{APIBase: srv.URL})
	if _, err := p.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error when the service returns fewer vectors than inputs")
	}
}

func TestNew_Kinds(t *testing.T) {
	if _, err := New(KindAzure, OpenAIConfig{}); err == nil {
		t.Error("azure without endpoint should fail")
	}
	if _, err := New("bedrock", OpenAIConfig{}); err == nil {
		t.Error("unknown kind should fail")
	}
	p, err := New(KindDashScope, OpenAIConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("dashscope: %v", err)
	}
	if p.Name() != "dashscope" || p.Model() != dashscopeDefaultEmbeddingModel || p.ChatModel() != dashscopeDefaultModel {
		t.Errorf("dashscope defaults: name=%s model=%s chat=%s", p.Name(), p.Model(), p.ChatModel())
	}
	if MaxEmbeddingBatch(KindDashScope) != DashScopeMaxEmbeddingBatch || MaxEmbeddingBatch(KindAzure) != 0 {
		t.Error("MaxEmbeddingBatch mismatch")
	}
}
