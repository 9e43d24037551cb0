package wire

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Mutation utilities. All three are built on the descriptor contract and
// dispatch over the closed format set; they return a new body slice and
// never mutate their input, so callers keep the original bytes for
// comparison or rollback.

// ReplaceToolOutput rewrites the content of the tool output whose identifier
// matches id (case-insensitive) and reports whether any replacement
// occurred. A missing id is not an error.
//
// Format notes: for Chat both native "tool" turns and Anthropic-style
// "tool_result" parts inside user turns are handled in the same pass. For
// Gemini the per-name occurrence walk from extraction is re-run against the
// supplied body, so the body must be in the same state extraction saw and
// resolver must be the same resolver extraction used. For Bedrock the
// toolResult content is collapsed to a single text block, discarding any
// prior multi-block content.
func ReplaceToolOutput(d Descriptor, body []byte, id, content string, resolver IDResolver) ([]byte, bool) {
	turns, ok := d.Turns(body)
	if !ok {
		return body, false
	}
	want := strings.ToLower(id)

	switch d.Format() {
	case FormatOpenAIResponses:
		return replaceResponsesOutput(body, turns, want, content)
	case FormatBedrock:
		return replaceBedrockOutput(body, turns, want, content)
	case FormatOpenAIChat:
		return replaceChatOutput(body, turns, want, content)
	case FormatGemini:
		return replaceGeminiOutput(body, turns, want, content, resolver)
	}
	return body, false
}

func replaceResponsesOutput(body []byte, turns gjson.Result, want, content string) ([]byte, bool) {
	replaced := false
	turns.ForEach(func(key, item gjson.Result) bool {
		if item.Get("type").String() != "function_call_output" {
			return true
		}
		if strings.ToLower(item.Get("call_id").String()) != want {
			return true
		}
		body, _ = sjson.SetBytes(body, fmt.Sprintf("input.%d.output", key.Int()), content)
		replaced = true
		return true
	})
	return body, replaced
}

func replaceChatOutput(body []byte, turns gjson.Result, want, content string) ([]byte, bool) {
	replaced := false
	turns.ForEach(func(turnKey, turn gjson.Result) bool {
		switch turn.Get("role").String() {
		case "tool":
			if strings.ToLower(turn.Get("tool_call_id").String()) != want {
				return true
			}
			body, _ = sjson.SetBytes(body, fmt.Sprintf("messages.%d.content", turnKey.Int()), content)
			replaced = true
		case "user":
			turnContent := turn.Get("content")
			if !turnContent.IsArray() {
				return true
			}
			turnContent.ForEach(func(partKey, part gjson.Result) bool {
				if part.Get("type").String() != "tool_result" {
					return true
				}
				if strings.ToLower(part.Get("tool_use_id").String()) != want {
					return true
				}
				body, _ = sjson.SetBytes(body, fmt.Sprintf("messages.%d.content.%d.content", turnKey.Int(), partKey.Int()), content)
				replaced = true
				return true
			})
		}
		return true
	})
	return body, replaced
}

func replaceBedrockOutput(body []byte, turns gjson.Result, want, content string) ([]byte, bool) {
	replaced := false
	turns.ForEach(func(turnKey, turn gjson.Result) bool {
		if turn.Get("role").String() != "user" {
			return true
		}
		turn.Get("content").ForEach(func(blockKey, block gjson.Result) bool {
			result := block.Get("toolResult")
			if !result.Exists() {
				return true
			}
			if strings.ToLower(result.Get("toolUseId").String()) != want {
				return true
			}
			blockJSON, _ := sjson.Set(`[{}]`, "0.text", content)
			path := fmt.Sprintf("messages.%d.content.%d.toolResult.content", turnKey.Int(), blockKey.Int())
			body, _ = sjson.SetRawBytes(body, path, []byte(blockJSON))
			replaced = true
			return true
		})
		return true
	})
	return body, replaced
}

func replaceGeminiOutput(body []byte, turns gjson.Result, want, content string, resolver IDResolver) ([]byte, bool) {
	replaced := false
	walkFunctionResponses(turns, func(turnIdx, partIdx int, toolName string, occurrence int, _ gjson.Result) bool {
		if resolveGeminiID(resolver, toolName, occurrence) != want {
			return true
		}
		responseJSON, _ := sjson.Set(`{}`, "output", content)
		path := fmt.Sprintf("contents.%d.parts.%d.functionResponse.response", turnIdx, partIdx)
		body, _ = sjson.SetRawBytes(body, path, []byte(responseJSON))
		replaced = true
		return true
	})
	return body, replaced
}

// InjectIntoLastUserTurn appends text to the newest user turn, scanning the
// conversation array from the end. It handles both string and array content
// representations and returns false when no user turn exists.
func InjectIntoLastUserTurn(d Descriptor, body []byte, text string) ([]byte, bool) {
	turns, ok := d.Turns(body)
	if !ok {
		return body, false
	}
	items := turns.Array()
	for i := len(items) - 1; i >= 0; i-- {
		if !isUserTurn(d.Format(), items[i]) {
			continue
		}
		return injectIntoTurn(d, body, i, items[i], text)
	}
	return body, false
}

// isUserTurn is the format-specific user predicate. Responses input items
// only count when they are message items with the user role; every other
// format goes by role alone.
func isUserTurn(f Format, turn gjson.Result) bool {
	if f == FormatOpenAIResponses {
		return turn.Get("type").String() == "message" && turn.Get("role").String() == "user"
	}
	return turn.Get("role").String() == "user"
}

func injectIntoTurn(d Descriptor, body []byte, idx int, turn gjson.Result, text string) ([]byte, bool) {
	contentKey := "content"
	if d.Format() == FormatGemini {
		contentKey = "parts"
	}
	path := fmt.Sprintf("%s.%d.%s", d.TurnsPath(), idx, contentKey)
	content := turn.Get(contentKey)

	if content.IsArray() {
		part, _ := sjson.Set(textPartTemplate(d.Format()), "text", text)
		out, err := sjson.SetRawBytes(body, path+".-1", []byte(part))
		if err != nil {
			return body, false
		}
		return out, true
	}

	// String content, or missing content treated as empty string.
	existing := content.String()
	combined := text
	if existing != "" {
		combined = existing + "\n\n" + text
	}
	out, err := sjson.SetBytes(body, path, combined)
	if err != nil {
		return body, false
	}
	return out, true
}

// textPartTemplate returns the minimal text part object for a format's
// array-content representation, with the "text" field left to be filled in.
func textPartTemplate(f Format) string {
	switch f {
	case FormatOpenAIResponses:
		return `{"type":"input_text","text":""}`
	case FormatOpenAIChat:
		return `{"type":"text","text":""}`
	default:
		// Bedrock content blocks and Gemini parts carry bare text fields.
		return `{"text":""}`
	}
}

// AppendUserTurn appends a minimal well-formed user turn carrying text to
// the conversation array. Bedrock and Chat share a turn representation;
// Responses and Gemini each have their own minimal shape.
func AppendUserTurn(d Descriptor, body []byte, text string) ([]byte, bool) {
	if _, ok := d.Turns(body); !ok {
		return body, false
	}
	var template string
	switch d.Format() {
	case FormatOpenAIResponses:
		template = `{"type":"message","role":"user","content":[{"type":"input_text","text":""}]}`
	case FormatGemini:
		template = `{"role":"user","parts":[{"text":""}]}`
	default:
		template = `{"role":"user","content":[{"type":"text","text":""}]}`
	}
	textPath := "content.0.text"
	if d.Format() == FormatGemini {
		textPath = "parts.0.text"
	}
	turn, _ := sjson.Set(template, textPath, text)
	out, err := sjson.SetRawBytes(body, d.TurnsPath()+".-1", []byte(turn))
	if err != nil {
		return body, false
	}
	return out, true
}
