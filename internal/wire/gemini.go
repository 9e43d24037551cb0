package wire

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// geminiDescriptor handles the Gemini / Vertex generateContent shape. The
// wire format carries function responses with a tool name only, in call
// order, and no identifier; extraction recovers identifiers through the
// supplied IDResolver by counting per-name occurrences over the current
// body. Recovery is position-based and therefore best-effort: it is correct
// only while call order and per-name multiplicity in the resolver's source
// match the function-response parts of this request.
type geminiDescriptor struct{}

func (geminiDescriptor) Format() Format { return FormatGemini }

func (geminiDescriptor) TurnsPath() string { return "contents" }

func (geminiDescriptor) Detect(body []byte) bool {
	return gjson.GetBytes(body, "contents").IsArray()
}

func (geminiDescriptor) Turns(body []byte) (gjson.Result, bool) {
	turns := gjson.GetBytes(body, "contents")
	return turns, turns.IsArray()
}

// SyntheticGeminiID builds the fallback identifier used when no resolver is
// available or the resolver has no entry for a call. It is stable within one
// request body only, never across requests.
func SyntheticGeminiID(toolName string, occurrence int) string {
	return fmt.Sprintf("gemini-%s-%d", strings.ToLower(toolName), occurrence)
}

// resolveGeminiID maps one function-response occurrence to an identifier,
// falling back to the synthetic form.
func resolveGeminiID(resolver IDResolver, toolName string, occurrence int) string {
	if resolver != nil {
		if id, ok := resolver.Resolve(toolName, occurrence); ok {
			return strings.ToLower(id)
		}
	}
	return SyntheticGeminiID(toolName, occurrence)
}

// walkFunctionResponses visits every functionResponse part in conversation
// order, maintaining the per-tool-name occurrence counters that both
// extraction and mutation rely on. Returning false from fn stops the walk.
func walkFunctionResponses(turns gjson.Result, fn func(turnIdx, partIdx int, toolName string, occurrence int, response gjson.Result) bool) {
	seen := make(map[string]int)
	stop := false
	turns.ForEach(func(turnKey, turn gjson.Result) bool {
		turn.Get("parts").ForEach(func(partKey, part gjson.Result) bool {
			fr := part.Get("functionResponse")
			if !fr.Exists() {
				return true
			}
			name := fr.Get("name").String()
			key := strings.ToLower(name)
			occurrence := seen[key]
			seen[key] = occurrence + 1
			if !fn(int(turnKey.Int()), int(partKey.Int()), name, occurrence, fr.Get("response")) {
				stop = true
			}
			return !stop
		})
		return !stop
	})
}

func (geminiDescriptor) ExtractToolOutputs(turns gjson.Result, resolver IDResolver) []ToolOutput {
	var outputs []ToolOutput
	walkFunctionResponses(turns, func(_, _ int, toolName string, occurrence int, response gjson.Result) bool {
		outputs = append(outputs, ToolOutput{
			ID:       resolveGeminiID(resolver, toolName, occurrence),
			ToolName: toolName,
			Content:  functionResponseText(response),
		})
		return true
	})
	return outputs
}

// functionResponseText flattens a functionResponse.response object into
// text, preferring the conventional "output" and "result" fields over the
// raw object.
func functionResponseText(response gjson.Result) string {
	if !response.Exists() {
		return ""
	}
	if out := response.Get("output"); out.Exists() {
		return out.String()
	}
	if res := response.Get("result"); res.Exists() {
		return res.String()
	}
	return response.Raw
}

func (geminiDescriptor) HasToolOutputs(turns gjson.Result) bool {
	found := false
	walkFunctionResponses(turns, func(_, _ int, _ string, _ int, _ gjson.Result) bool {
		found = true
		return false
	})
	return found
}

func (d geminiDescriptor) LogFields(turns gjson.Result, url string) map[string]any {
	return map[string]any{
		"format":      string(FormatGemini),
		"url":         url,
		"turns":       len(turns.Array()),
		"has_outputs": d.HasToolOutputs(turns),
	}
}
