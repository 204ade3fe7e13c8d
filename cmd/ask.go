package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/binlogqa/internal/agent"
	"github.com/nextlevelbuilder/binlogqa/internal/memory"
	"github.com/nextlevelbuilder/binlogqa/internal/tracing/otelexport"
)

func askCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask questions about the indexed build log",
		Long: `Answer questions using the embedding store as context. Each question is
embedded, the closest log lines are added to the conversation for that one
answer, and only the question and answer are kept.

Examples:
  binlogqa ask                                  # Interactive loop
  binlogqa ask -m "Why did CoreCompile fail?"   # One question`,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustLoadValidConfig()

			ctx, stop := signalContext()
			defer stop()
			shutdown := initTelemetry(ctx, cfg)
			defer shutdown()

			a, err := newApp(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			defer a.Close()

			if err := runAsk(ctx, a, message); err != nil {
				slog.Error("ask failed", "error", err)
				fmt.Fprintln(os.Stderr, describeServiceError(err))
				a.Close()
				shutdown()
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "one question (omit for interactive mode)")
	return cmd
}

// runAsk is the question phase. With message set it answers once and
// returns; otherwise it reads questions from stdin until EOF or Ctrl+C.
func runAsk(ctx context.Context, a *app, message string) error {
	recs, err := loadRecords(a.store)
	if err != nil {
		return err
	}

	sessionID := uuid.New()
	ctx, span := otelexport.StartRun(ctx, "ask", sessionID,
		attribute.Int("binlogqa.records", len(recs)),
	)
	defer span.End()

	loop := agent.NewLoop(agent.LoopConfig{
		ID:              sessionID.String(),
		Chat:            a.provider,
		Embedder:        a.embedder,
		Model:           a.provider.ChatModel(),
		Records:         recs,
		TopK:            a.cfg.Ask.TopK,
		SystemPrompt:    a.cfg.Ask.SystemPrompt,
		Temperature:     a.cfg.Ask.Temperature,
		MaxTokens:       a.cfg.Ask.MaxTokens,
		InjectionAction: a.cfg.Ask.InjectionAction,
	})

	if message != "" {
		answer, err := loop.Ask(ctx, message)
		if err != nil {
			return err
		}
		fmt.Println(agent.AnswerStyle.Render(answer))
		return nil
	}

	fmt.Fprintf(os.Stderr, "\nbinlogqa interactive (model: %s, %d records)\n", a.provider.ChatModel(), len(recs))
	fmt.Fprintf(os.Stderr, "Press Ctrl+C or Ctrl+D to quit\n\n")
	return loop.Run(ctx, os.Stdin, os.Stdout, os.Stderr)
}

// loadRecords reads the store. A missing store is not an error: questions
// are then answered without retrieved context.
func loadRecords(store *memory.FileStore) ([]memory.Record, error) {
	recs, err := store.Load()
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("store not found, answering without log context", "store", store.Path())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	slog.Info("store loaded", "store", store.Path(), "records", len(recs))
	return recs, nil
}
