// Package correlate recovers tool-call identifiers for wire formats that do
// not carry them natively. The Gemini request shape exposes function
// responses by tool name and call order only; the authoritative identifiers
// exist solely in the host's own session transcript. This package rebuilds a
// per-session lookup table keyed by tool name and per-name occurrence index
// from that transcript.
//
// Recovery is position-based and inherently best-effort: any reordering or
// dropped call between the transcript and the outgoing request silently
// breaks the mapping. That gap is accepted; callers fall back to synthetic
// per-request identifiers rather than attempting speculative repair.
package correlate

import (
	"fmt"
	"strings"
)

// PartKindTool marks a transcript part that records a tool invocation.
const PartKindTool = "tool"

// Part is one element of a transcript message. Tool parts carry the
// authoritative call identifier and tool name.
type Part struct {
	Kind   string `json:"kind"`
	CallID string `json:"callID,omitempty"`
	Tool   string `json:"tool,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Message is one entry of a session's authoritative transcript, in
// conversation order.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts,omitempty"`
}

// Table maps "{toolName}:{occurrenceIndex}" to a real tool-call identifier.
// Tool names and identifiers are case-folded. A Table is immutable once
// built; rebuilds replace the whole table because transcript truncation or
// compaction can shift every index.
type Table struct {
	ids map[string]string
}

func tableKey(toolName string, occurrence int) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(toolName), occurrence)
}

// Build walks a transcript in order and assigns each tool invocation its
// zero-based rank among calls sharing the same tool name.
func Build(transcript []Message) *Table {
	ids := make(map[string]string)
	seen := make(map[string]int)
	for _, msg := range transcript {
		for _, part := range msg.Parts {
			if part.Kind != PartKindTool || part.CallID == "" {
				continue
			}
			name := strings.ToLower(part.Tool)
			ids[tableKey(name, seen[name])] = strings.ToLower(part.CallID)
			seen[name]++
		}
	}
	return &Table{ids: ids}
}

// Resolve returns the identifier recorded for the occurrence-th call of
// toolName. It implements the resolver contract consumed by the Gemini
// format descriptor.
func (t *Table) Resolve(toolName string, occurrence int) (string, bool) {
	if t == nil {
		return "", false
	}
	id, ok := t.ids[tableKey(toolName, occurrence)]
	return id, ok
}

// Len returns the number of correlated calls.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}
