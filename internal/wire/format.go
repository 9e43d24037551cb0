// Package wire recognizes and edits the JSON request shapes of the supported
// chat-completion providers. It normalizes four structurally different request
// formats into one extraction and mutation contract so that callers can read
// conversation turns and tool-execution results, and rewrite them, without
// knowing which provider the request targets.
//
// All operations work directly on raw JSON bytes using gjson path reads and
// sjson path writes; request bodies are never unmarshaled into typed structs,
// which keeps unrelated fields byte-for-byte intact across mutations.
package wire

import (
	"github.com/tidwall/gjson"
)

// Format identifies one of the supported provider request shapes.
type Format string

const (
	// FormatOpenAIResponses is the OpenAI Responses API shape (top-level "input" array).
	FormatOpenAIResponses Format = "openai-responses"
	// FormatBedrock is the AWS Bedrock Converse shape ("system" array plus "inferenceConfig").
	FormatBedrock Format = "bedrock"
	// FormatOpenAIChat is the OpenAI Chat Completions shape (top-level "messages" array).
	// It also covers Anthropic-compatible bodies, which share the same top-level layout.
	FormatOpenAIChat Format = "openai-chat"
	// FormatGemini is the Gemini / Vertex generateContent shape (top-level "contents" array).
	FormatGemini Format = "gemini"
)

// String returns the format name.
func (f Format) String() string {
	return string(f)
}

// ToolOutput is a normalized tool-execution result extracted from a turn.
// ID is the cross-format correlation key and is always lower-cased; for
// formats with a native identifier it is taken verbatim, for Gemini it is
// recovered through an IDResolver or synthesized.
type ToolOutput struct {
	ID       string `json:"id"`
	ToolName string `json:"toolName,omitempty"`
	Content  string `json:"content,omitempty"`
}

// IDResolver recovers a real tool-call identifier from a tool name and the
// zero-based occurrence index of that name within the conversation. It is
// consulted read-only by the Gemini descriptor, whose wire format carries no
// native identifiers.
type IDResolver interface {
	Resolve(toolName string, occurrence int) (string, bool)
}

// Descriptor is the capability bundle implemented by each format variant.
// Implementations are stateless; every method is a pure function over the
// supplied body or turn array.
type Descriptor interface {
	// Format returns the variant identifier.
	Format() Format

	// Detect reports whether body has this format's shape. It inspects
	// top-level keys only and never traverses deeply.
	Detect(body []byte) bool

	// Turns locates the conversation array ("messages", "contents" or
	// "input"). ok is false when a detected body is missing its array,
	// which callers treat as malformed-but-known and pass through.
	Turns(body []byte) (turns gjson.Result, ok bool)

	// TurnsPath returns the gjson/sjson path of the conversation array.
	TurnsPath() string

	// ExtractToolOutputs returns the tool outputs embedded in turns, in
	// conversation order. resolver may be nil; it is only consulted by
	// the Gemini variant.
	ExtractToolOutputs(turns gjson.Result, resolver IDResolver) []ToolOutput

	// HasToolOutputs reports whether turns contains at least one tool
	// output, without performing a full extraction.
	HasToolOutputs(turns gjson.Result) bool

	// LogFields returns format-specific metadata for structured logging.
	// It never fails and never mutates.
	LogFields(turns gjson.Result, url string) map[string]any
}

// contentText flattens a message content value into plain text. It accepts
// the string form as well as the array-of-parts form used by every format,
// concatenating the text-bearing parts in order.
func contentText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if !content.IsArray() {
		return ""
	}
	out := ""
	content.ForEach(func(_, part gjson.Result) bool {
		if txt := part.Get("text"); txt.Exists() {
			out += txt.String()
		}
		return true
	})
	return out
}
