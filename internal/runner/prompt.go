package runner

import (
	"fmt"
	"strings"

	"quizbench/internal/quizdef"
)

// renderPrompt builds the single user message for one question. The model
// is asked to answer with the same JSON shape parseChoice expects.
func renderPrompt(quizTitle string, num, total int, question quizdef.Question) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are taking the quiz %q.\n\n", quizTitle)
	fmt.Fprintf(&b, "Question %d of %d: %s\n\n", num, total, question.Text)
	b.WriteString("Options:\n")
	for _, option := range question.Options {
		fmt.Fprintf(&b, "%s. %s\n", option.ID, option.Text)
	}
	b.WriteString("\nAnswer with a single JSON object and nothing else, using this exact shape:\n")
	b.WriteString(`{"choice": "<option id>", "reason": "<one or two sentences>", "additional_thoughts": "", "refused": false}`)
	b.WriteString("\nIf you cannot or will not answer, set \"choice\" to \"\" and \"refused\" to true.\n")

	return b.String()
}
