package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/binlogqa/internal/memory"
	"github.com/nextlevelbuilder/binlogqa/internal/tokenizer"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func doctorCmd() *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, build log and store health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(verify)
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "send one embeddings request to check credentials")
	return cmd
}

func runDoctor(verify bool) {
	fmt.Println("binlogqa doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(warnStyle.Render(" (NOT FOUND, using defaults + environment)"))
	} else {
		fmt.Println(okStyle.Render(" (OK)"))
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	// Provider
	fmt.Println()
	fmt.Println("  Provider:")
	p := cfg.Provider
	fmt.Printf("    %-16s %s\n", "Kind:", p.Kind)
	fmt.Printf("    %-16s %s\n", "Endpoint:", orNotSet(p.Endpoint))
	fmt.Printf("    %-16s %s\n", "API key:", maskKey(p.APIKey))
	fmt.Printf("    %-16s %s\n", "Chat model:", orNotSet(p.ChatModel))
	fmt.Printf("    %-16s %s\n", "Embedding model:", orNotSet(p.EmbeddingModel))
	if err := cfg.Validate(); err != nil {
		fmt.Printf("    %s\n", badStyle.Render(err.Error()))
	} else {
		fmt.Printf("    %s\n", okStyle.Render("configuration complete"))
	}

	// Files
	fmt.Println()
	fmt.Println("  Files:")
	checkFile("Build log:", cfg.Index.Binlog)
	checkStore(cfg.Index.Store)
	if cfg.Index.CachePath != "" {
		checkCache(cfg.Index.CachePath)
	}

	// Tokenizer
	fmt.Println()
	if _, enc, err := tokenizer.Load(cfg.Index.Encoding, cfg.Provider.EmbeddingModel); err != nil {
		fmt.Printf("  Tokenizer: %s", enc)
		fmt.Println(badStyle.Render(" (" + err.Error() + ")"))
	} else {
		fmt.Printf("  Tokenizer: %s", enc)
		fmt.Println(okStyle.Render(" (OK)"))
	}

	// Telemetry
	fmt.Printf("  Telemetry: ")
	switch {
	case !cfg.Telemetry.Enabled:
		fmt.Println("disabled")
	case !telemetryCompiled:
		fmt.Println(warnStyle.Render("enabled, but built without -tags otel"))
	default:
		fmt.Printf("%s (%s)\n", cfg.Telemetry.Endpoint, cfg.Telemetry.Protocol)
	}

	if verify {
		fmt.Println()
		fmt.Print("  Connectivity: ")
		prov, err := newProvider(cfg)
		if err != nil {
			fmt.Println(badStyle.Render(err.Error()))
		} else if verr := verifyProvider(context.Background(), prov); verr == nil {
			fmt.Println(okStyle.Render("OK"))
		} else if verr.fatal {
			fmt.Println(badStyle.Render("FAILED: " + verr.message))
		} else {
			fmt.Println(warnStyle.Render("WARNING: " + verr.message))
		}
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkFile(label, path string) {
	fmt.Printf("    %-16s %s", label, path)
	if st, err := os.Stat(path); err != nil {
		fmt.Println(warnStyle.Render(" (NOT FOUND)"))
	} else {
		fmt.Println(okStyle.Render(fmt.Sprintf(" (%d bytes)", st.Size())))
	}
}

func checkStore(path string) {
	fmt.Printf("    %-16s %s", "Store:", path)
	store := memory.NewFileStore(path)
	if exists, _ := store.Exists(); !exists {
		fmt.Println(warnStyle.Render(" (NOT FOUND, will be generated)"))
		return
	}
	recs, err := store.Load()
	if err != nil {
		fmt.Println(badStyle.Render(" (" + err.Error() + ")"))
		return
	}
	dims := 0
	if len(recs) > 0 {
		dims = len(recs[0].Vector)
	}
	fmt.Println(okStyle.Render(fmt.Sprintf(" (%d records, %d dimensions)", len(recs), dims)))
}

func checkCache(path string) {
	fmt.Printf("    %-16s %s", "Cache:", path)
	if _, err := os.Stat(path); err != nil {
		fmt.Println(warnStyle.Render(" (NOT FOUND)"))
		return
	}
	c, err := memory.OpenEmbeddingCache(path)
	if err != nil {
		fmt.Println(badStyle.Render(" (" + err.Error() + ")"))
		return
	}
	defer c.Close()
	fmt.Println(okStyle.Render(fmt.Sprintf(" (%d embeddings)", c.Len())))
}

// maskKey shows only the ends of a key.
func maskKey(key string) string {
	switch {
	case key == "":
		return "(not configured)"
	case len(key) <= 8:
		return strings.Repeat("*", len(key))
	default:
		return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
	}
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
