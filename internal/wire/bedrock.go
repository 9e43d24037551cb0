package wire

import (
	"strings"

	"github.com/tidwall/gjson"
)

// bedrockDescriptor handles the AWS Bedrock Converse shape. Its detection
// predicate is deliberately compound: "messages" alone would collide with the
// Chat format, so a body only counts as Bedrock when the "system" array and
// "inferenceConfig" are also present. Tool outputs live in user-turn content
// blocks under "toolResult", keyed by toolUseId.
type bedrockDescriptor struct{}

func (bedrockDescriptor) Format() Format { return FormatBedrock }

func (bedrockDescriptor) TurnsPath() string { return "messages" }

func (bedrockDescriptor) Detect(body []byte) bool {
	return gjson.GetBytes(body, "system").IsArray() &&
		gjson.GetBytes(body, "inferenceConfig").Exists() &&
		gjson.GetBytes(body, "messages").IsArray()
}

func (bedrockDescriptor) Turns(body []byte) (gjson.Result, bool) {
	turns := gjson.GetBytes(body, "messages")
	return turns, turns.IsArray()
}

func (bedrockDescriptor) ExtractToolOutputs(turns gjson.Result, _ IDResolver) []ToolOutput {
	var outputs []ToolOutput
	turns.ForEach(func(_, turn gjson.Result) bool {
		if turn.Get("role").String() != "user" {
			return true
		}
		turn.Get("content").ForEach(func(_, block gjson.Result) bool {
			result := block.Get("toolResult")
			if !result.Exists() {
				return true
			}
			id := result.Get("toolUseId").String()
			if id == "" {
				return true
			}
			outputs = append(outputs, ToolOutput{
				ID:      strings.ToLower(id),
				Content: contentText(result.Get("content")),
			})
			return true
		})
		return true
	})
	return outputs
}

func (bedrockDescriptor) HasToolOutputs(turns gjson.Result) bool {
	found := false
	turns.ForEach(func(_, turn gjson.Result) bool {
		if turn.Get("role").String() != "user" {
			return true
		}
		turn.Get("content").ForEach(func(_, block gjson.Result) bool {
			if block.Get("toolResult").Exists() {
				found = true
			}
			return !found
		})
		return !found
	})
	return found
}

func (d bedrockDescriptor) LogFields(turns gjson.Result, url string) map[string]any {
	return map[string]any{
		"format":      string(FormatBedrock),
		"url":         url,
		"turns":       len(turns.Array()),
		"has_outputs": d.HasToolOutputs(turns),
	}
}
