package assessment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type,omitempty"`
	Question      string       `json:"question"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	Reference     string       `json:"reference,omitempty"`
}

const questionsSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["question"],
    "properties": {
      "id": {"type": ["string", "integer"]},
      "type": {"type": "string"},
      "question": {"type": "string", "minLength": 1},
      "options": {"type": "array", "items": {"type": ["string", "number", "boolean"]}},
      "correctAnswer": {"type": ["string", "number", "boolean", "null"]},
      "explanation": {"type": ["string", "null"]},
      "reference": {"type": ["string", "null"]}
    }
  }
}`

var compiledSchema = mustSchema(questionsSchema)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("assessment: bad question schema: %v", err))
	}
	return schema
}

// ParseQuestions pulls the question array out of raw model output. The array
// may be wrapped in prose or a code fence, or sit under a "questions" or
// "assessment" key.
func ParseQuestions(raw string, opts Options) ([]Question, error) {
	arr, err := questionArray(raw)
	if err != nil {
		return nil, err
	}

	res, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(arr))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
			if len(msgs) == 3 {
				break
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedOutput, strings.Join(msgs, "; "))
	}

	var items []map[string]any
	if err := json.Unmarshal(arr, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	out := make([]Question, 0, len(items))
	seen := map[string]bool{}
	for i, it := range items {
		q := Question{
			ID:            scalar(it["id"]),
			Type:          QuestionType(strings.ToUpper(scalar(it["type"]))),
			Question:      strings.TrimSpace(scalar(it["question"])),
			CorrectAnswer: strings.TrimSpace(scalar(it["correctAnswer"])),
			Explanation:   strings.TrimSpace(scalar(it["explanation"])),
			Reference:     strings.TrimSpace(scalar(it["reference"])),
		}
		if q.Question == "" {
			continue
		}
		if opts.Type != TypeMix || q.Type == "" {
			q.Type = opts.Type
			if q.Type == TypeMix {
				q.Type = TypeMCQ
			}
		}
		if list, ok := it["options"].([]any); ok {
			for _, o := range list {
				if s := strings.TrimSpace(scalar(o)); s != "" {
					q.Options = append(q.Options, s)
				}
			}
		}
		if q.Type == TypeTrueFalse && len(q.Options) == 0 {
			q.Options = []string{"True", "False"}
		}
		if q.ID == "" || seen[q.ID] {
			q.ID = "q" + strconv.Itoa(i+1)
		}
		seen[q.ID] = true
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrMalformedOutput)
	}
	return out, nil
}

func questionArray(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]"); start >= 0 && end > start {
		candidate := []byte(raw[start : end+1])
		if json.Valid(candidate) {
			return candidate, nil
		}
	}

	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err == nil {
			for _, k := range []string{"questions", "assessment"} {
				if v, ok := obj[k]; ok {
					return v, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: no JSON array in model output", ErrMalformedOutput)
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
