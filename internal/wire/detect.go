package wire

import (
	"github.com/tidwall/gjson"
)

// descriptors holds the four variants in detection priority order. The order
// is a correctness contract, not an optimization: Bedrock and Chat both carry
// a top-level "messages" array, so Bedrock's compound predicate must run
// before Chat's or every Bedrock request would be classified as Chat.
var descriptors = [...]Descriptor{
	openAIResponsesDescriptor{},
	bedrockDescriptor{},
	openAIChatDescriptor{},
	geminiDescriptor{},
}

// Detect returns the first descriptor whose shape predicate matches body.
// ok is false when no supported format matches, which is an expected
// steady-state case rather than an error.
func Detect(body []byte) (Descriptor, bool) {
	if len(body) == 0 || !gjson.ParseBytes(body).IsObject() {
		return nil, false
	}
	for _, d := range descriptors {
		if d.Detect(body) {
			return d, true
		}
	}
	return nil, false
}

// ByFormat returns the descriptor for a known format identifier.
func ByFormat(f Format) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Format() == f {
			return d, true
		}
	}
	return nil, false
}
