package agent

import "github.com/nextlevelbuilder/binlogqa/internal/providers"

type historyEntry struct {
	msg       providers.Message
	ephemeral bool
}

// History is the ordered conversation. Index 0 is always the single system
// message. Ephemeral entries live until DropEphemeral compacts them out, so
// removal never depends on positions recorded earlier.
type History struct {
	entries []historyEntry
}

// NewHistory starts a conversation with the given system prompt.
func NewHistory(systemPrompt string) *History {
	return &History{entries: []historyEntry{{
		msg: providers.Message{Role: providers.RoleSystem, Content: systemPrompt},
	}}}
}

// Append adds a permanent message. System messages are rejected so the
// system prompt is never duplicated.
func (h *History) Append(role, content string) bool {
	if role == providers.RoleSystem {
		return false
	}
	h.entries = append(h.entries, historyEntry{msg: providers.Message{Role: role, Content: content}})
	return true
}

// AppendEphemeral adds a message that is removed by the next DropEphemeral.
func (h *History) AppendEphemeral(role, content string) bool {
	if role == providers.RoleSystem {
		return false
	}
	h.entries = append(h.entries, historyEntry{
		msg:       providers.Message{Role: role, Content: content},
		ephemeral: true,
	})
	return true
}

// DropEphemeral removes every ephemeral message, keeping the order of the
// rest, and returns how many were removed.
func (h *History) DropEphemeral() int {
	kept := h.entries[:0]
	for _, e := range h.entries {
		if !e.ephemeral {
			kept = append(kept, e)
		}
	}
	n := len(h.entries) - len(kept)
	clear(h.entries[len(kept):])
	h.entries = kept
	return n
}

// Truncate drops everything after the first n messages. The system message
// always survives.
func (h *History) Truncate(n int) {
	n = max(n, 1)
	if n >= len(h.entries) {
		return
	}
	clear(h.entries[n:])
	h.entries = h.entries[:n]
}

// Messages returns a copy of the conversation in order.
func (h *History) Messages() []providers.Message {
	out := make([]providers.Message, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.msg
	}
	return out
}

// Len returns the number of messages, ephemeral ones included.
func (h *History) Len() int { return len(h.entries) }

// System returns the system prompt.
func (h *History) System() string { return h.entries[0].msg.Content }
