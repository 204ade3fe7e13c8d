package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/binlogqa/internal/memory"
	"github.com/nextlevelbuilder/binlogqa/internal/providers"
)

// DefaultSystemPrompt frames the model as a build log reviewer.
const DefaultSystemPrompt = "You are an AI assistant with expertise in reviewing MSBuild logs to determine build issues and to answer questions related to provided build log entries.\n" +
	"You are answering concisely and accurately,"

// ContextPreamble starts every injected context message.
const ContextPreamble = "Here's some additional information: "

// AnswerStyle renders answers on the terminal.
var AnswerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

// LoopConfig wires a Loop.
type LoopConfig struct {
	ID              string
	Chat            providers.ChatProvider
	Embedder        providers.EmbeddingProvider // wrap in memory.CachedEmbedder to reuse repeated questions
	Model           string                      // chat model; empty = provider default
	Records         []memory.Record             // loaded store
	TopK            int
	SystemPrompt    string
	Temperature     *float64
	MaxTokens       int
	InputGuard      *InputGuard // nil = default guard (unless action is "off")
	InjectionAction string      // "log", "warn" (default), "off"
}

// Loop answers questions about a build log. It owns its History and the
// loaded records and is not safe for concurrent use.
type Loop struct {
	id              string
	chat            providers.ChatProvider
	embedder        providers.EmbeddingProvider
	model           string
	records         []memory.Record
	topK            int
	temperature     *float64
	maxTokens       int
	history         *History
	inputGuard      *InputGuard
	injectionAction string
}

// NewLoop creates a Loop with defaults applied.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()[:8]
	}
	if cfg.TopK <= 0 {
		cfg.TopK = memory.DefaultTopK
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	action := normalizeInjectionAction(cfg.InjectionAction)
	guard := cfg.InputGuard
	if action == InjectionOff {
		guard = nil
	} else if guard == nil {
		guard = NewInputGuard()
	}

	return &Loop{
		id:              cfg.ID,
		chat:            cfg.Chat,
		embedder:        cfg.Embedder,
		model:           cfg.Model,
		records:         cfg.Records,
		topK:            cfg.TopK,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		history:         NewHistory(cfg.SystemPrompt),
		inputGuard:      guard,
		injectionAction: action,
	}
}

// ID returns the session identifier used in log lines.
func (l *Loop) ID() string { return l.id }

// History exposes the conversation.
func (l *Loop) History() *History { return l.history }

// Ask runs one question cycle: embed the question, retrieve the closest
// records, inject them as an ephemeral user message, append the question,
// ask the model, record the answer and drop the injected context. On
// error the history is restored to its state before the call.
func (l *Loop) Ask(ctx context.Context, question string) (string, error) {
	baseline := l.history.Len()
	start := time.Now()

	texts, err := l.retrieve(ctx, question)
	if err != nil {
		return "", err
	}

	l.inputGuard.Inspect(l.injectionAction, "question", question)

	injected := false
	if msg := BuildContextMessage(texts); msg != "" {
		l.inputGuard.Inspect(l.injectionAction, "context", msg)
		injected = l.history.AppendEphemeral(providers.RoleUser, msg)
	}
	l.history.Append(providers.RoleUser, question)

	resp, err := l.chat.Chat(ctx, providers.ChatRequest{
		Model:       l.model,
		Messages:    l.history.Messages(),
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	})
	if err != nil {
		l.history.Truncate(baseline)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	l.history.Append(providers.RoleAssistant, resp.Content)

	if injected {
		l.history.DropEphemeral()
	}

	attrs := []any{"session", l.id, "context", len(texts), "history", l.history.Len(), "duration", time.Since(start)}
	if resp.Usage != nil {
		attrs = append(attrs, "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	}
	slog.Debug("query.answer", attrs...)
	return resp.Content, nil
}

func (l *Loop) retrieve(ctx context.Context, question string) ([]string, error) {
	if len(l.records) == 0 {
		slog.Debug("query.context", "session", l.id, "records", 0)
		return nil, nil
	}

	vectors, err := l.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed question: got %d vectors", len(vectors))
	}

	results, err := memory.Rank(vectors[0], l.records, l.topK)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		slog.Debug("query.context", "session", l.id, "records", len(results),
			"top_score", results[0].Score)
	}
	return memory.Texts(results), nil
}

// BuildContextMessage joins retrieved texts under ContextPreamble, each on
// its own line. No texts yields "".
func BuildContextMessage(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(ContextPreamble)
	for _, t := range texts {
		b.WriteByte('\n')
		b.WriteString(t)
		b.WriteByte('\n')
	}
	return b.String()
}

// Run reads questions from in until EOF or ctx is done, writing each answer
// to out. prompt receives the "Question: " prompt (nil = none). Blank
// lines are ignored. A failed cycle ends the loop with its error.
func (l *Loop) Run(ctx context.Context, in io.Reader, out, prompt io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	slog.Info("query.start", "session", l.id, "records", len(l.records), "top_k", l.topK)
	for {
		if prompt != nil {
			fmt.Fprint(prompt, "Question: ")
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case q, ok := <-lines:
			if !ok {
				return nil
			}
			line = q
		}

		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}

		answer, err := l.Ask(ctx, question)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, AnswerStyle.Render(answer))
		fmt.Fprintln(out)
	}
}
