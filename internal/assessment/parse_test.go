package assessment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestionsExtractsArray(t *testing.T) {
	raw := "Sure! Here is your assessment:\n```json\n" +
		`[{"id": 1, "question": "What is Go?", "options": ["A language", "A game", "A car", "A tree"], "correctAnswer": "A language", "explanation": "It is.", "reference": "intro"},` +
		`{"id": 1, "question": "  Who made it?  ", "options": ["Google"], "correctAnswer": "Google"}]` +
		"\n```\nHope that helps."

	qs, err := ParseQuestions(raw, Options{Type: TypeMCQ})
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "1", qs[0].ID)
	assert.Equal(t, TypeMCQ, qs[0].Type)
	assert.Len(t, qs[0].Options, 4)
	assert.Equal(t, "Who made it?", qs[1].Question)
	assert.Equal(t, "q2", qs[1].ID, "duplicate ids are renumbered")
}

func TestParseQuestionsWrappedObject(t *testing.T) {
	raw := `{"questions": [{"question": "Is the sky blue?", "correctAnswer": true}]}`
	qs, err := ParseQuestions(raw, Options{Type: TypeTrueFalse})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "True", qs[0].CorrectAnswer)
	assert.Equal(t, []string{"True", "False"}, qs[0].Options)
	assert.Equal(t, "q1", qs[0].ID)
}

func TestParseQuestionsMixKeepsTypes(t *testing.T) {
	raw := `[{"type":"mcq","question":"a","options":["x","y"]},{"type":"LONG_ANSWER","question":"b"},{"question":"c"}]`
	qs, err := ParseQuestions(raw, Options{Type: TypeMix})
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Equal(t, TypeMCQ, qs[0].Type)
	assert.Equal(t, TypeLongAnswer, qs[1].Type)
	assert.Equal(t, TypeMCQ, qs[2].Type)
}

func TestParseQuestionsRejects(t *testing.T) {
	cases := map[string]string{
		"no json":        "I cannot help with that.",
		"empty array":    "[]",
		"missing field":  `[{"id":"1","options":["a"]}]`,
		"wrong type":     `[{"question": 42}]`,
		"blank question": `[{"question": ""}]`,
		"not objects":    `["a", "b"]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseQuestions(raw, Options{Type: TypeMCQ})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	sys, user := BuildPrompt("  the material  ", Options{NumberOfQuestions: 7, Difficulty: DifficultyHard, Type: TypeShortAnswer})
	assert.Contains(t, sys, "JSON array")
	assert.Contains(t, user, "Write 7 questions of type SHORT_ANSWER")
	assert.Contains(t, user, "Difficulty: hard")
	assert.True(t, strings.HasSuffix(user, "Material:\nthe material"))

	_, mix := BuildPrompt("x", Options{NumberOfQuestions: 3, Difficulty: DifficultyEasy, Type: TypeMix})
	assert.Contains(t, mix, "Write 15 questions in total")
	assert.Contains(t, mix, "5 of type LONG_ANSWER")

	long := strings.Repeat("é", maxPromptChars+10)
	_, user = BuildPrompt(long, Options{NumberOfQuestions: 1, Type: TypeMCQ, Difficulty: DifficultyEasy})
	assert.Equal(t, maxPromptChars, strings.Count(user, "é"))
}
