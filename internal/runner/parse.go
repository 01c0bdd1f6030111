package runner

import (
	"encoding/json"
	"strings"
)

type choiceAnswer struct {
	Choice             string `json:"choice"`
	Reason             string `json:"reason"`
	AdditionalThoughts string `json:"additional_thoughts"`
	Refused            bool   `json:"refused"`
}

// parseChoice pulls the structured answer out of raw model text. Models
// wrap the JSON in prose or code fences often enough that we just take
// everything between the first '{' and the last '}'. Returns ok=false when
// no usable object is present; callers turn that into a refusal record.
func parseChoice(text string) (choiceAnswer, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return choiceAnswer{}, false
	}

	var answer choiceAnswer
	if err := json.Unmarshal([]byte(text[start:end+1]), &answer); err != nil {
		return choiceAnswer{}, false
	}
	if answer.Choice == "" && answer.Reason == "" && !answer.Refused {
		return choiceAnswer{}, false
	}
	return answer, true
}
