package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextlevelbuilder/binlogqa/internal/binlog"
	"github.com/nextlevelbuilder/binlogqa/internal/memory"
	"github.com/nextlevelbuilder/binlogqa/internal/tokenizer"
	"github.com/nextlevelbuilder/binlogqa/internal/tracing/otelexport"
)

func indexCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Generate the embedding store from the build log",
		Long: `Project every build event to a text line, embed the lines in batches and
append them to the store file. Does nothing when the store already exists
unless --force is given.`,
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

			res, err := runIndex(ctx, a, force)
			if err != nil {
				slog.Error("index failed", "error", err)
				fmt.Fprintln(os.Stderr, describeServiceError(err))
				a.Close()
				shutdown()
				os.Exit(1)
			}
			printIndexResult(a, res)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "remove an existing store and regenerate it")
	return cmd
}

// runIndex is the generation phase.
func runIndex(ctx context.Context, a *app, force bool) (*memory.IndexResult, error) {
	if force {
		if err := a.store.Remove(); err != nil {
			return nil, err
		}
		slog.Info("index.force", "store", a.store.Path())
	}

	runID := uuid.New()
	ctx, span := otelexport.StartRun(ctx, "index", runID,
		attribute.String("binlogqa.store", a.store.Path()),
		attribute.String("binlogqa.binlog", a.cfg.Index.Binlog),
	)
	defer span.End()

	tok := &truncatorRef{}
	ix := memory.NewIndexer(a.store, a.embedder, tok, memory.IndexerConfig{
		BatchSize: a.cfg.Index.BatchSize,
		MaxTokens: a.cfg.Index.MaxTokens,
		RunID:     runID.String(),
	})

	res, err := ix.Generate(ctx, func() (memory.LineSource, error) {
		t, enc, err := tokenizer.Load(a.cfg.Index.Encoding, a.provider.Model())
		if err != nil {
			return nil, err
		}
		slog.Debug("index.tokenizer", "encoding", enc)
		tok.Tiktoken = t

		r, err := binlog.OpenReader(a.cfg.Index.Binlog)
		if err != nil {
			return nil, err
		}
		return binlog.NewProjector(r, nil), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(
		attribute.Bool("binlogqa.skipped", res.Skipped),
		attribute.Int("binlogqa.total", res.Stats.Total),
		attribute.Int("binlogqa.truncated", res.Stats.Truncated),
	)
	return res, nil
}

// truncatorRef is filled in when the source is opened, so a skipped run
// never loads BPE data.
type truncatorRef struct {
	*tokenizer.Tiktoken
}

func printIndexResult(a *app, res *memory.IndexResult) {
	if res.Skipped {
		fmt.Printf("Store %s already exists, nothing to do (use --force to regenerate).\n", a.store.Path())
		return
	}
	fmt.Printf("Indexed %d lines into %s (%d embedded, %d truncated, %d dropped) in %s\n",
		res.Stats.Total, a.store.Path(), res.Stats.Embedded, res.Stats.Truncated, res.Stats.Dropped,
		res.Duration.Round(1e6))
}
