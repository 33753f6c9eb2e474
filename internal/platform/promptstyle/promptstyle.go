package promptstyle

import "strings"

const marker = "ASSESSGEN_PROMPT_STYLE_V1"

// ApplySystem prepends the shared guidance block to a system prompt. Prompts
// that already carry the block are returned unchanged.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" {
		return base
	}
	if strings.Contains(base, marker) {
		return base
	}
	mode = strings.ToLower(strings.TrimSpace(mode))

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou write assessment questions for learners.")
	b.WriteString("\nUse only the supplied source material; do not invent facts.")
	b.WriteString("\nEvery question must be answerable from the source material.")
	switch mode {
	case "json":
		b.WriteString("\nReturn only a JSON array that matches the requested shape, with no commentary or code fences.")
	default:
		b.WriteString("\nBe concise.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return strings.TrimSpace(b.String())
}
