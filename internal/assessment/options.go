package assessment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

type QuestionType string

const (
	TypeMCQ         QuestionType = "MCQ"
	TypeTrueFalse   QuestionType = "TF"
	TypeShortAnswer QuestionType = "SHORT_ANSWER"
	TypeLongAnswer  QuestionType = "LONG_ANSWER"
	TypeMix         QuestionType = "MIX"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

const (
	DefaultQuestionCount = 5
	MaxQuestionCount     = 50
	// mixPerType questions of each of MCQ, short and long answer.
	mixPerType = 5
)

// Options are the generation knobs accepted on every assessment route.
type Options struct {
	NumberOfQuestions int          `json:"numberOfQuestions" validate:"gte=1,lte=50"`
	Difficulty        Difficulty   `json:"difficulty" validate:"oneof=easy medium hard"`
	Type              QuestionType `json:"type" validate:"oneof=MCQ TF SHORT_ANSWER LONG_ANSWER MIX"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize fills defaults and upper/lower-cases the enum fields.
func (o Options) Normalize() Options {
	if o.NumberOfQuestions == 0 {
		o.NumberOfQuestions = DefaultQuestionCount
	}
	o.Difficulty = Difficulty(strings.ToLower(strings.TrimSpace(string(o.Difficulty))))
	if o.Difficulty == "" {
		o.Difficulty = DifficultyMedium
	}
	o.Type = QuestionType(strings.ToUpper(strings.TrimSpace(string(o.Type))))
	if o.Type == "" {
		o.Type = TypeMCQ
	}
	return o
}

func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidOptions, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// ExpectedCount is the number of questions the prompt asks for.
func (o Options) ExpectedCount() int {
	if o.Type == TypeMix {
		return mixPerType * 3
	}
	return o.NumberOfQuestions
}

// ParseCount accepts the loosely typed numberOfQuestions form value.
func ParseCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: numberOfQuestions must be an integer", ErrInvalidOptions)
	}
	return n, nil
}
