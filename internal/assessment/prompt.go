package assessment

import (
	"fmt"
	"strings"
)

const systemPrompt = `You write assessments for learners from source material they provide.
Every question must be answerable from the material alone.
Reply with a JSON array of question objects and nothing else.`

// maxPromptChars bounds how much extracted text is sent to the model.
const maxPromptChars = 120_000

// BuildPrompt returns the system and user messages for one generation call.
func BuildPrompt(content string, opts Options) (string, string) {
	content = strings.TrimSpace(content)
	if len([]rune(content)) > maxPromptChars {
		content = string([]rune(content)[:maxPromptChars])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Difficulty: %s\n", opts.Difficulty)
	if opts.Type == TypeMix {
		fmt.Fprintf(&b, "Write %d questions in total:\n", opts.ExpectedCount())
		fmt.Fprintf(&b, "- %d of type MCQ. %s\n", mixPerType, instructionsFor(TypeMCQ))
		fmt.Fprintf(&b, "- %d of type SHORT_ANSWER. %s\n", mixPerType, instructionsFor(TypeShortAnswer))
		fmt.Fprintf(&b, "- %d of type LONG_ANSWER. %s\n", mixPerType, instructionsFor(TypeLongAnswer))
	} else {
		fmt.Fprintf(&b, "Write %d questions of type %s. %s\n", opts.NumberOfQuestions, opts.Type, instructionsFor(opts.Type))
	}
	b.WriteString("\nEach object has these fields:\n")
	b.WriteString(`  "id": a short unique string` + "\n")
	b.WriteString(`  "type": one of MCQ, TF, SHORT_ANSWER, LONG_ANSWER` + "\n")
	b.WriteString(`  "question": the question text` + "\n")
	b.WriteString(`  "options": answer choices (MCQ and TF only, otherwise omit)` + "\n")
	b.WriteString(`  "correctAnswer": the correct option text or a model answer` + "\n")
	b.WriteString(`  "explanation": why the answer is correct` + "\n")
	b.WriteString(`  "reference": the part of the material the question tests` + "\n")
	b.WriteString("\nCover different parts of the material.\n\nMaterial:\n")
	b.WriteString(content)
	return systemPrompt, b.String()
}

func instructionsFor(t QuestionType) string {
	switch t {
	case TypeMCQ:
		return "Give exactly 4 options with one correct answer."
	case TypeTrueFalse:
		return `Options are exactly ["True", "False"] and correctAnswer is one of them.`
	case TypeShortAnswer:
		return "Answers take one or two sentences."
	case TypeLongAnswer:
		return "Answers take a paragraph of three to five sentences covering the key points."
	default:
		return ""
	}
}
