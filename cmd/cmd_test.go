package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/binlogqa/internal/binlog"
	"github.com/nextlevelbuilder/binlogqa/internal/config"
	"github.com/nextlevelbuilder/binlogqa/internal/memory"
	"github.com/nextlevelbuilder/binlogqa/internal/providers"
	"github.com/zalando/go-keyring"
)

func TestDescribeServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", fmt.Errorf("embed batch 1: %w", &providers.HTTPError{Provider: "azure", Status: 401}), "Authentication"},
		{"not found", &providers.HTTPError{Status: 404}, "not found"},
		{"rate limit", &providers.HTTPError{Status: 429}, "rate limit"},
		{"server", &providers.HTTPError{Status: 503}, "temporarily unavailable"},
		{"decode", fmt.Errorf("read events: %w", &binlog.DecodeError{Line: 3, Err: errors.New("bad")}), "could not be decoded"},
		{"store", &memory.FormatError{Record: 1, Line: 1, Err: errors.New("x")}, "index --force"},
		{"dims", fmt.Errorf("rank: %w", memory.ErrDimensionMismatch), "index --force"},
		{"overflow", errors.New("This model's maximum context length is 8192 tokens"), "Context overflow"},
		{"timeout", context.DeadlineExceeded, "timed out"},
		{"missing file", fmt.Errorf("open: %w", fs.ErrNotExist), "Something went wrong"},
		{"missing path", errors.New("open x.jsonl: no such file or directory"), "File not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeServiceError(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("describeServiceError = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

type probeEmbedder struct {
	err  error
	dims int
}

func (p probeEmbedder) Name() string  { return "probe" }
func (p probeEmbedder) Model() string { return "probe-embed" }

func (p probeEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	return [][]float32{make([]float32, p.dims)}, nil
}

func TestVerifyProvider(t *testing.T) {
	ctx := context.Background()

	if verr := verifyProvider(ctx, probeEmbedder{dims: 3}); verr != nil {
		t.Errorf("healthy provider: %v", verr)
	}

	tests := []struct {
		name  string
		p     probeEmbedder
		fatal bool
	}{
		{"empty vector", probeEmbedder{dims: 0}, true},
		{"bad key", probeEmbedder{err: &providers.HTTPError{Status: 401}}, true},
		{"bad deployment", probeEmbedder{err: &providers.HTTPError{Status: 404}}, true},
		{"server error", probeEmbedder{err: &providers.HTTPError{Status: 500}}, false},
		{"network", probeEmbedder{err: errors.New("dial tcp: connection refused")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := verifyProvider(ctx, tt.p)
			if verr == nil {
				t.Fatal("expected error")
			}
			if verr.fatal != tt.fatal {
				t.Errorf("fatal = %v, want %v (%s)", verr.fatal, tt.fatal, verr.message)
			}
		})
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey(""); got != "(not configured)" {
		t.Errorf("empty = %q", got)
	}
	if got := maskKey("short"); got != "*****" {
		t.Errorf("short = %q", got)
	}
	if got := maskKey("abcd1234efgh"); got != "abcd****efgh" {
		t.Errorf("long = %q", got)
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	keyring.MockInit()
	for _, k := range []string{config.EnvBinlog, config.EnvStore} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	os.WriteFile(path, []byte(`{index: {binlog: "from-file.jsonl", store: "from-file.txt"}}`), 0o644)

	oldCfg, oldBinlog, oldStore := cfgFile, binlogFlag, storeFlag
	t.Cleanup(func() { cfgFile, binlogFlag, storeFlag = oldCfg, oldBinlog, oldStore })

	cfgFile = path
	binlogFlag = ""
	storeFlag = filepath.Join(dir, "flag.txt")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Index.Binlog != "from-file.jsonl" {
		t.Errorf("binlog = %q", cfg.Index.Binlog)
	}
	if cfg.Index.Store != storeFlag {
		t.Errorf("store = %q, want %q", cfg.Index.Store, storeFlag)
	}
}

func TestLoadRecords_MissingStore(t *testing.T) {
	recs, err := loadRecords(memory.NewFileStore(filepath.Join(t.TempDir(), "none.txt")))
	if err != nil {
		t.Fatalf("loadRecords: %v", err)
	}
	if recs != nil {
		t.Errorf("recs = %v, want nil", recs)
	}
}
