package wire

import (
	"strings"

	"github.com/tidwall/gjson"
)

// openAIChatDescriptor handles the OpenAI Chat Completions shape. The same
// top-level layout is used by Anthropic-compatible endpoints, so this single
// variant extracts both native "tool" role turns (keyed by tool_call_id) and
// Anthropic-style "tool_result" content parts inside "user" turns (keyed by
// tool_use_id).
type openAIChatDescriptor struct{}

func (openAIChatDescriptor) Format() Format { return FormatOpenAIChat }

func (openAIChatDescriptor) TurnsPath() string { return "messages" }

func (openAIChatDescriptor) Detect(body []byte) bool {
	return gjson.GetBytes(body, "messages").IsArray()
}

func (openAIChatDescriptor) Turns(body []byte) (gjson.Result, bool) {
	turns := gjson.GetBytes(body, "messages")
	return turns, turns.IsArray()
}

func (openAIChatDescriptor) ExtractToolOutputs(turns gjson.Result, _ IDResolver) []ToolOutput {
	var outputs []ToolOutput
	turns.ForEach(func(_, turn gjson.Result) bool {
		switch turn.Get("role").String() {
		case "tool":
			id := turn.Get("tool_call_id").String()
			if id == "" {
				return true
			}
			outputs = append(outputs, ToolOutput{
				ID:       strings.ToLower(id),
				ToolName: turn.Get("name").String(),
				Content:  contentText(turn.Get("content")),
			})
		case "user":
			content := turn.Get("content")
			if !content.IsArray() {
				return true
			}
			content.ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() != "tool_result" {
					return true
				}
				id := part.Get("tool_use_id").String()
				if id == "" {
					return true
				}
				outputs = append(outputs, ToolOutput{
					ID:      strings.ToLower(id),
					Content: contentText(part.Get("content")),
				})
				return true
			})
		}
		return true
	})
	return outputs
}

func (openAIChatDescriptor) HasToolOutputs(turns gjson.Result) bool {
	found := false
	turns.ForEach(func(_, turn gjson.Result) bool {
		switch turn.Get("role").String() {
		case "tool":
			found = true
		case "user":
			content := turn.Get("content")
			if !content.IsArray() {
				return true
			}
			content.ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "tool_result" {
					found = true
				}
				return !found
			})
		}
		return !found
	})
	return found
}

func (d openAIChatDescriptor) LogFields(turns gjson.Result, url string) map[string]any {
	return map[string]any{
		"format":      string(FormatOpenAIChat),
		"url":         url,
		"turns":       len(turns.Array()),
		"has_outputs": d.HasToolOutputs(turns),
	}
}
