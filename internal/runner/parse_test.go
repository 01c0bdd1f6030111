package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChoicePlainObject(t *testing.T) {
	answer, ok := parseChoice(`{"choice": "B", "reason": "it fits", "additional_thoughts": "", "refused": false}`)
	require.True(t, ok)
	assert.Equal(t, "B", answer.Choice)
	assert.Equal(t, "it fits", answer.Reason)
	assert.False(t, answer.Refused)
}

func TestParseChoiceWrappedInProse(t *testing.T) {
	text := "Sure! Here is my answer:\n```json\n{\"choice\": \"A\", \"reason\": \"first option\"}\n```\nLet me know if you need more."
	answer, ok := parseChoice(text)
	require.True(t, ok)
	assert.Equal(t, "A", answer.Choice)
}

func TestParseChoiceRefusal(t *testing.T) {
	answer, ok := parseChoice(`{"choice": "", "reason": "", "refused": true}`)
	require.True(t, ok)
	assert.True(t, answer.Refused)
	assert.Empty(t, answer.Choice)
}

func TestParseChoiceUnusable(t *testing.T) {
	cases := map[string]string{
		"no braces":      "I pick option A.",
		"broken json":    `{"choice": "A", "reason": `,
		"empty object":   `{}`,
		"reversed brace": `} not json {`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := parseChoice(text)
			assert.False(t, ok)
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	quiz := sampleQuiz("quiz-a")
	prompt := renderPrompt(quiz.Title, 2, 5, quiz.Questions[0])

	assert.Contains(t, prompt, `"Sample Quiz"`)
	assert.Contains(t, prompt, "Question 2 of 5:")
	assert.Contains(t, prompt, "A. First")
	assert.Contains(t, prompt, "B. Second")
	assert.Contains(t, prompt, `"choice"`)
	assert.Contains(t, prompt, `"refused"`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 150))
	long := ""
	for i := 0; i < 40; i++ {
		long += "abcde"
	}
	assert.Len(t, truncate(long, 150), 150)
}
