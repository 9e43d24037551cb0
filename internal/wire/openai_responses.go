package wire

import (
	"strings"

	"github.com/tidwall/gjson"
)

// openAIResponsesDescriptor handles the OpenAI Responses API shape. Tool
// outputs are "function_call_output" items in the top-level "input" array,
// correlated by call_id. The matching "function_call" items carry the tool
// name, so extraction resolves names by pairing call ids across the array.
type openAIResponsesDescriptor struct{}

func (openAIResponsesDescriptor) Format() Format { return FormatOpenAIResponses }

func (openAIResponsesDescriptor) TurnsPath() string { return "input" }

func (openAIResponsesDescriptor) Detect(body []byte) bool {
	return gjson.GetBytes(body, "input").IsArray()
}

func (openAIResponsesDescriptor) Turns(body []byte) (gjson.Result, bool) {
	turns := gjson.GetBytes(body, "input")
	return turns, turns.IsArray()
}

func (openAIResponsesDescriptor) ExtractToolOutputs(turns gjson.Result, _ IDResolver) []ToolOutput {
	// First pass collects tool names from function_call items so outputs can
	// report the name alongside the recovered content.
	names := make(map[string]string)
	turns.ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() == "function_call" {
			if callID := item.Get("call_id").String(); callID != "" {
				names[strings.ToLower(callID)] = item.Get("name").String()
			}
		}
		return true
	})

	var outputs []ToolOutput
	turns.ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() != "function_call_output" {
			return true
		}
		callID := item.Get("call_id").String()
		if callID == "" {
			return true
		}
		id := strings.ToLower(callID)
		outputs = append(outputs, ToolOutput{
			ID:       id,
			ToolName: names[id],
			Content:  contentText(item.Get("output")),
		})
		return true
	})
	return outputs
}

func (openAIResponsesDescriptor) HasToolOutputs(turns gjson.Result) bool {
	found := false
	turns.ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() == "function_call_output" {
			found = true
		}
		return !found
	})
	return found
}

func (d openAIResponsesDescriptor) LogFields(turns gjson.Result, url string) map[string]any {
	return map[string]any{
		"format":      string(FormatOpenAIResponses),
		"url":         url,
		"turns":       len(turns.Array()),
		"has_outputs": d.HasToolOutputs(turns),
	}
}
