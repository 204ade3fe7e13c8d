package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/binlogqa/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup wizard: provider, models, build log and store paths",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

type providerInfo struct {
	label          string
	endpointHint   string
	chatHint       string
	embeddingsHint string
}

var providerMap = map[string]providerInfo{
	"azure":     {"Azure OpenAI", "https://<resource>.openai.azure.com", "gpt-4o (deployment name)", "text-embedding-ada-002 (deployment name)"},
	"openai":    {"OpenAI", "https://api.openai.com/v1", "gpt-4o", "text-embedding-3-small"},
	"dashscope": {"DashScope", "https://dashscope-intl.aliyuncs.com/compatible-mode/v1", "qwen3-max", "text-embedding-v3"},
}

func runOnboard() {
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║          binlogqa — Setup Wizard             ║")
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()

	cfgPath := resolveConfigPath()

	// Check existing config
	var cfg *config.Config
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Found existing config at %s\n", cfgPath)
		useExisting, err := promptConfirm("Use existing config as base?", true)
		if err != nil {
			fmt.Println("Cancelled.")
			return
		}
		if useExisting {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				fmt.Printf("Warning: could not load existing config: %v\n", err)
				cfg = config.Default()
			} else {
				cfg = loaded
			}
		} else {
			cfg = config.Default()
		}
	} else {
		cfg = config.Default()
	}

	// ── Step 1: Provider ──
	providerOptions := []SelectOption[string]{
		{"Azure OpenAI (deployments)", "azure"},
		{"OpenAI", "openai"},
		{"DashScope    (OpenAI-compatible mode)", "dashscope"},
	}
	defaultIdx := 0
	for i, o := range providerOptions {
		if o.Value == cfg.Provider.Kind {
			defaultIdx = i
		}
	}

	kind, err := promptSelect("Step 1 · AI Provider", providerOptions, defaultIdx)
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	info := providerMap[kind]
	cfg.Provider.Kind = kind

	endpointDesc := "Leave empty for the default endpoint"
	if kind == "azure" {
		endpointDesc = "Required: your Azure OpenAI resource URL"
	}
	if cfg.Provider.Endpoint, err = promptString(info.label+" Endpoint", endpointDesc+" ("+info.endpointHint+")", cfg.Provider.Endpoint); err != nil {
		fmt.Println("Cancelled.")
		return
	}

	apiKey, err := promptPassword(info.label+" API Key", "Stored in the OS keyring when possible, never in the config file")
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	if apiKey == "" {
		apiKey = cfg.Provider.APIKey
	}

	// ── Step 2: Models ──
	if cfg.Provider.ChatModel, err = promptString("Step 2 · Chat Model", info.chatHint, cfg.Provider.ChatModel); err != nil {
		fmt.Println("Cancelled.")
		return
	}
	if cfg.Provider.EmbeddingModel, err = promptString("Embeddings Model", info.embeddingsHint, cfg.Provider.EmbeddingModel); err != nil {
		fmt.Println("Cancelled.")
		return
	}

	// ── Step 3: Files ──
	if cfg.Index.Binlog, err = promptString("Step 3 · Build Log", "Decoded build log (JSON lines, .gz accepted)", cfg.Index.Binlog); err != nil {
		fmt.Println("Cancelled.")
		return
	}
	if cfg.Index.Store, err = promptString("Embedding Store", "Generated on first run, reused afterwards", cfg.Index.Store); err != nil {
		fmt.Println("Cancelled.")
		return
	}
	useCache, err := promptConfirm("Keep a sqlite embedding cache (speeds up regenerating the store)?", cfg.Index.CachePath != "")
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	if useCache && cfg.Index.CachePath == "" {
		cfg.Index.CachePath = "~/.binlogqa/embeddings.db"
	} else if !useCache {
		cfg.Index.CachePath = ""
	}

	// ── Save ──
	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config saved to %s (no secrets)\n", cfgPath)

	keySaved := false
	if apiKey != "" {
		if err := config.StoreAPIKey(cfg.Provider, apiKey); err != nil {
			fmt.Printf("Could not store the API key in the OS keyring: %v\n", err)
			fmt.Printf("Export it instead:  export %s=...\n", config.EnvAPIKey)
		} else {
			keySaved = true
			fmt.Printf("API key stored in the OS keyring (service %q)\n", config.KeyringService)
		}
	}

	// ── Verify ──
	cfg.Provider.APIKey = apiKey
	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nConfiguration incomplete: %v\n", err)
	} else if verifyNow, _ := promptConfirm("Verify the credentials now?", true); verifyNow {
		if prov, err := newProvider(cfg); err != nil {
			fmt.Printf("  Provider error: %v\n", err)
		} else if verr := verifyProvider(context.Background(), prov); verr != nil {
			fmt.Printf("  %s\n", verr.message)
		} else {
			fmt.Println("  Credentials OK")
		}
	}

	// Summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║           Setup Complete!                    ║")
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Provider:   %s\n", info.label)
	fmt.Printf("  Chat:       %s\n", orNotSet(cfg.Provider.ChatModel))
	fmt.Printf("  Embeddings: %s\n", orNotSet(cfg.Provider.EmbeddingModel))
	fmt.Printf("  Build log:  %s\n", cfg.Index.Binlog)
	fmt.Printf("  Store:      %s\n", cfg.Index.Store)
	fmt.Printf("  Key:        %s\n", map[bool]string{true: "OS keyring", false: "environment"}[keySaved])
	fmt.Println()
	fmt.Println("Run `binlogqa` to index the build log and start asking questions.")
}
