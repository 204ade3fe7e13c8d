package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestIndexer(t *testing.T, emb *fakeEmbedder, batch int) (*Indexer, *FileStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "ranks.txt"))
	return NewIndexer(store, emb, wordTruncator{}, IndexerConfig{BatchSize: batch, MaxTokens: 100}), store
}

func TestIndexer_Generate(t *testing.T) {
	emb := &fakeEmbedder{}
	ix, store := newTestIndexer(t, emb, 2)

	lines := []string{"Warning: one", "Error: two", "Message three"}
	res, err := ix.Generate(context.Background(), sourceOf(&lineSource{lines: lines}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Skipped {
		t.Fatal("first run should not skip")
	}
	if res.Stats.Total != 3 || res.Stats.Embedded != 3 || res.Stats.Batches != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if len(emb.calls) != 2 || len(emb.calls[0]) != 2 || len(emb.calls[1]) != 1 {
		t.Errorf("calls = %v", emb.calls)
	}

	recs, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
	for i, r := range recs {
		if r.Text != lines[i] {
			t.Errorf("record %d text = %q, want %q", i, r.Text, lines[i])
		}
		if r.Vector[0] != float32(len(lines[i])) {
			t.Errorf("record %d vector = %v", i, r.Vector)
		}
	}
}

func TestIndexer_SecondRunSkips(t *testing.T) {
	emb := &fakeEmbedder{}
	ix, store := newTestIndexer(t, emb, 50)

	if _, err := ix.Generate(context.Background(), sourceOf(&lineSource{lines: []string{"a", "b"}})); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	before, _ := os.ReadFile(store.Path())
	calls := len(emb.calls)

	opened := false
	res, err := ix.Generate(context.Background(), func() (LineSource, error) {
		opened = true
		return &lineSource{lines: []string{"c"}}, nil
	})
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !res.Skipped {
		t.Error("second run should skip")
	}
	if opened {
		t.Error("source opened on skipped run")
	}
	if len(emb.calls) != calls {
		t.Errorf("embedder called on skipped run: %d calls", len(emb.calls)-calls)
	}
	after, _ := os.ReadFile(store.Path())
	if string(before) != string(after) {
		t.Error("store changed on skipped run")
	}
}

func TestIndexer_EmptySourceCreatesNoStore(t *testing.T) {
	emb := &fakeEmbedder{}
	ix, store := newTestIndexer(t, emb, 50)

	res, err := ix.Generate(context.Background(), sourceOf(&lineSource{}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Stats.Total != 0 || len(emb.calls) != 0 {
		t.Errorf("stats = %+v, calls = %d", res.Stats, len(emb.calls))
	}
	if exists, _ := store.Exists(); exists {
		t.Error("store should not be created for an empty log")
	}
}

func TestIndexer_BatchFailureDiagnoses(t *testing.T) {
	emb := &fakeEmbedder{reject: "poison"}
	ix, store := newTestIndexer(t, emb, 2)

	lines := []string{"fine one", "fine two", "ok", "poison pill"}
	res, err := ix.Generate(context.Background(), sourceOf(&lineSource{lines: lines}))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "input rejected") {
		t.Errorf("err = %v, want wrapped batch error", err)
	}
	if res.Stats.Embedded != 2 {
		t.Errorf("embedded = %d, want 2", res.Stats.Embedded)
	}

	// batch 1, failed batch 2, then per-item resubmission of "ok" and "poison pill"
	if len(emb.calls) != 4 {
		t.Fatalf("calls = %v", emb.calls)
	}
	if len(emb.calls[2]) != 1 || emb.calls[3][0] != "poison pill" {
		t.Errorf("diagnostic calls = %v", emb.calls[2:])
	}

	// records from the first batch stay on disk
	recs, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("records = %d, want 2", len(recs))
	}
}

func TestIndexer_OpenError(t *testing.T) {
	ix, store := newTestIndexer(t, &fakeEmbedder{}, 50)

	_, err := ix.Generate(context.Background(), func() (LineSource, error) {
		return nil, errors.New("no such log")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if exists, _ := store.Exists(); exists {
		t.Error("store created despite open failure")
	}
}

func TestIndexer_SourceErrorAfterBatches(t *testing.T) {
	ix, _ := newTestIndexer(t, &fakeEmbedder{}, 1)

	src := &lineSource{lines: []string{"a"}, err: errors.New("decode line 2")}
	res, err := ix.Generate(context.Background(), sourceOf(src))
	if err == nil || !strings.Contains(err.Error(), "decode line 2") {
		t.Fatalf("err = %v", err)
	}
	if res.Stats.Embedded != 1 {
		t.Errorf("embedded = %d, want 1", res.Stats.Embedded)
	}
}

func TestIndexer_SeparatorLineStoresAndLoads(t *testing.T) {
	emb := &fakeEmbedder{}
	ix, store := newTestIndexer(t, emb, 50)

	lines := []string{"Build summary:\n" + Separator + "\nDone", "next"}
	if _, err := ix.Generate(context.Background(), sourceOf(&lineSource{lines: lines})); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	recs, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 2 || recs[1].Text != "next" {
		t.Fatalf("records = %+v", recs)
	}
	if recs[0].Text != emb.calls[0][0] {
		t.Errorf("stored text %q differs from embedded text %q", recs[0].Text, emb.calls[0][0])
	}
}

func TestIndexer_RejectsEmptyVectors(t *testing.T) {
	emb := &fakeEmbedder{empty: true}
	ix, store := newTestIndexer(t, emb, 50)

	_, err := ix.Generate(context.Background(), sourceOf(&lineSource{lines: []string{"a", "b"}}))
	if !errors.Is(err, ErrEmptyVector) {
		t.Fatalf("err = %v, want ErrEmptyVector", err)
	}
	if exists, _ := store.Exists(); exists {
		t.Error("store written despite empty vectors")
	}
}
