package memory

import (
	"context"
	"errors"
	"strings"
)

// wordTruncator counts whitespace-separated words as tokens.
type wordTruncator struct{}

func (wordTruncator) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text
	}
	return strings.Join(words[:maxTokens], " ")
}

func (wordTruncator) Count(text string) int { return len(strings.Fields(text)) }

// lineSource replays fixed lines.
type lineSource struct {
	lines []string
	pos   int
	err   error
}

func (s *lineSource) Scan() bool {
	if s.pos >= len(s.lines) {
		return false
	}
	s.pos++
	return true
}

func (s *lineSource) Text() string { return s.lines[s.pos-1] }
func (s *lineSource) Err() error   { return s.err }

// fakeEmbedder returns [len(text), 1] for every text and records calls.
type fakeEmbedder struct {
	calls  [][]string
	reject string // texts containing this fail
	empty  bool   // return zero-length vectors
}

func (f *fakeEmbedder) Name() string  { return "fake" }
func (f *fakeEmbedder) Model() string { return "fake-embed" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.reject != "" && strings.Contains(t, f.reject) {
			return nil, errors.New("input rejected")
		}
		if f.empty {
			out[i] = []float32{}
			continue
		}
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func sourceOf(src LineSource) OpenFunc {
	return func() (LineSource, error) { return src, nil }
}
