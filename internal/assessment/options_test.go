package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsNormalizeDefaults(t *testing.T) {
	o := Options{}.Normalize()
	assert.Equal(t, DefaultQuestionCount, o.NumberOfQuestions)
	assert.Equal(t, DifficultyMedium, o.Difficulty)
	assert.Equal(t, TypeMCQ, o.Type)
	require.NoError(t, o.Validate())

	o = Options{NumberOfQuestions: 3, Difficulty: " HARD ", Type: "short_answer"}.Normalize()
	assert.Equal(t, DifficultyHard, o.Difficulty)
	assert.Equal(t, TypeShortAnswer, o.Type)
	require.NoError(t, o.Validate())
}

func TestOptionsValidate(t *testing.T) {
	cases := []Options{
		{NumberOfQuestions: -1, Difficulty: DifficultyEasy, Type: TypeMCQ},
		{NumberOfQuestions: MaxQuestionCount + 1, Difficulty: DifficultyEasy, Type: TypeMCQ},
		{NumberOfQuestions: 5, Difficulty: "extreme", Type: TypeMCQ},
		{NumberOfQuestions: 5, Difficulty: DifficultyEasy, Type: "ESSAY"},
	}
	for _, o := range cases {
		err := o.Normalize().Validate()
		assert.ErrorIs(t, err, ErrInvalidOptions, "%+v", o)
	}
}

func TestExpectedCountAndParseCount(t *testing.T) {
	assert.Equal(t, 15, Options{Type: TypeMix, NumberOfQuestions: 2}.ExpectedCount())
	assert.Equal(t, 2, Options{Type: TypeTrueFalse, NumberOfQuestions: 2}.ExpectedCount())

	n, err := ParseCount(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	n, err = ParseCount("")
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = ParseCount("ten")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestTitleAndDescription(t *testing.T) {
	cases := []struct {
		src  SourceInfo
		want string
	}{
		{SourceInfo{VideoID: "dQw4w9WgXcQ", FileName: "x.pdf"}, "YouTube Assessment (dQw4w9Wg)"},
		{SourceInfo{VideoID: "abc"}, "YouTube Assessment (abc)"},
		{SourceInfo{FileName: "lecture.notes.pdf", DocumentType: "PDF"}, "Assessment: lecture"},
		{SourceInfo{FileName: ".hidden", DocumentType: "PPTX"}, "PPTX Assessment"},
		{SourceInfo{}, "Generated Assessment"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Title(tc.src))
	}
	assert.Equal(t, "TF assessment with 4 questions at easy difficulty.",
		Description(Options{Type: TypeTrueFalse, Difficulty: DifficultyEasy}, 4))
}
