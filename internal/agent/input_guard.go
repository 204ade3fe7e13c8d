// Package agent runs the question/answer loop over an embedding store.
//
// InputGuard scans questions and retrieved log lines for prompt injection
// patterns before they reach the model. Retrieved lines come from build
// output and are as untrusted as the question. The action is configured
// via ask.injection_action:
//   - "log":  info-level logging
//   - "warn": warning-level logging (default)
//   - "off":  disable scanning entirely
//
// The guard never rejects input; "block" runs as "warn".
package agent

import (
	"log/slog"
	"regexp"
	"strings"
)

// Injection actions.
const (
	InjectionLog  = "log"
	InjectionWarn = "warn"
	InjectionOff  = "off"
)

// guardPattern pairs a human-readable name with a compiled regex.
type guardPattern struct {
	name    string
	pattern *regexp.Regexp
}

// InputGuard scans text for known prompt injection patterns.
type InputGuard struct {
	patterns []guardPattern
}

// NewInputGuard creates an InputGuard with the default pattern set.
func NewInputGuard() *InputGuard {
	return &InputGuard{
		patterns: defaultGuardPatterns(),
	}
}

// Scan checks text against all patterns and returns the names of the ones
// that matched (empty = clean).
func (g *InputGuard) Scan(text string) []string {
	if text == "" {
		return nil
	}
	var matches []string
	for _, gp := range g.patterns {
		if gp.pattern.MatchString(text) {
			matches = append(matches, gp.name)
		}
	}
	return matches
}

// Inspect scans text from source ("question" or "context") and logs any
// matches at the level implied by action. It returns the matches.
func (g *InputGuard) Inspect(action, source, text string) []string {
	if g == nil || action == InjectionOff {
		return nil
	}
	matches := g.Scan(text)
	if len(matches) == 0 {
		return nil
	}
	attrs := []any{"source", source, "patterns", strings.Join(matches, ","), "preview", preview(text, 120)}
	if action == InjectionLog {
		slog.Info("guard.injection_detected", attrs...)
	} else {
		slog.Warn("guard.injection_detected", attrs...)
	}
	return matches
}

func defaultGuardPatterns() []guardPattern {
	return []guardPattern{
		{
			name:    "ignore_instructions",
			pattern: regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|preceding)\s+(instructions?|rules?|prompts?|directives?|guidelines?)`),
		},
		{
			name:    "role_override",
			pattern: regexp.MustCompile(`(?i)(you are now|from now on you are|pretend you are|act as if you are|imagine you are)\s+`),
		},
		{
			name:    "system_tags",
			pattern: regexp.MustCompile(`(?i)</?system>|\[SYSTEM\]|\[INST\]|<<SYS>>|<\|im_start\|>system`),
		},
		{
			name:    "instruction_injection",
			pattern: regexp.MustCompile(`(?i)(new instructions?:|override:|system prompt:|<\|system\|>)`),
		},
		{
			name:    "null_bytes",
			pattern: regexp.MustCompile(`\x00`),
		},
		{
			name:    "delimiter_escape",
			pattern: regexp.MustCompile(`(?i)(end of system|begin user input|</?(instructions?|rules|prompt)>)`),
		},
	}
}

// PatternNames returns the names of all configured patterns.
func (g *InputGuard) PatternNames() []string {
	names := make([]string, len(g.patterns))
	for i, gp := range g.patterns {
		names[i] = gp.name
	}
	return names
}

// normalizeInjectionAction maps "block" and unknown values to the default.
func normalizeInjectionAction(action string) string {
	switch action {
	case InjectionLog, InjectionWarn, InjectionOff:
		return action
	default:
		return InjectionWarn
	}
}

func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
