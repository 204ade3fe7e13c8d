package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/binlogqa/internal/config"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	cfgFile    string
	binlogFlag string
	storeFlag  string
	verbose    bool
)

const defaultConfigPath = "~/.binlogqa/config.json5"

// Execute runs the root command.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "binlogqa",
		Short: "Ask questions about a build log",
		Long: `binlogqa turns a decoded build log into an embedding store and answers
questions about it with retrieved log lines as context.

Without a subcommand it generates the store (skipped when the store file
already exists) and then starts the interactive question loop.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(verbose)
		},
		Run: func(cmd *cobra.Command, args []string) {
			runDefault()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $BINLOGQA_CONFIG or "+defaultConfigPath+")")
	pf.StringVar(&binlogFlag, "binlog", "", "decoded build log (JSON lines, optionally gzip)")
	pf.StringVar(&storeFlag, "store", "", "embedding store file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(indexCmd())
	cmd.AddCommand(askCmd())
	cmd.AddCommand(doctorCmd())
	cmd.AddCommand(onboardCmd())
	return cmd
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return config.ExpandHome(cfgFile)
	}
	if v := os.Getenv("BINLOGQA_CONFIG"); v != "" {
		return config.ExpandHome(v)
	}
	return config.ExpandHome(defaultConfigPath)
}

// loadConfig loads the config and applies command-line path overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if binlogFlag != "" {
		cfg.Index.Binlog = binlogFlag
	}
	if storeFlag != "" {
		cfg.Index.Store = storeFlag
	}
	cfg.Index.Binlog = config.ExpandHome(cfg.Index.Binlog)
	cfg.Index.Store = config.ExpandHome(cfg.Index.Store)
	cfg.Index.CachePath = config.ExpandHome(cfg.Index.CachePath)
	return cfg, nil
}

// mustLoadValidConfig exits when configuration is unusable. Nothing has
// run yet at this point.
func mustLoadValidConfig() *config.Config {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %s\n", err)
		fmt.Fprintln(os.Stderr, "Set the environment variables above or run: binlogqa onboard")
		os.Exit(1)
	}
	return cfg
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runDefault runs both phases. A generation failure is logged and the
// question loop still starts; a failure inside the loop ends the process.
func runDefault() {
	cfg := mustLoadValidConfig()

	ctx, stop := signalContext()
	defer stop()

	shutdown := initTelemetry(ctx, cfg)
	defer shutdown()

	a, err := newApp(cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if _, err := runIndex(ctx, a, false); err != nil {
		slog.Error("index phase failed", "error", err)
		fmt.Fprintln(os.Stderr, describeServiceError(err))
	}
	if ctx.Err() != nil {
		return
	}

	if err := runAsk(ctx, a, ""); err != nil {
		slog.Error("ask phase failed", "error", err)
		fmt.Fprintln(os.Stderr, describeServiceError(err))
		a.Close()
		shutdown()
		os.Exit(1)
	}
}
