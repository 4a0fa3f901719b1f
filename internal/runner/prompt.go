// Package runner holds the job runners the scheduler dispatches to, one per
// job kind.
package runner

import (
	"fmt"
	"strings"

	"github.com/Shenoy37/Voice-to-Text-sub002/internal/job"
)

const processingPrompt = `You transform transcribed voice notes. Follow the user's instructions exactly.
Reply with the transformed text only: no preamble, no commentary, no markdown fences.`

const summaryPrompt = `You summarise transcribed voice notes. Keep names, dates, numbers and action items.
Reply with the summary only.`

func buildProcessingInput(p job.ProcessingParams) string {
	var sb strings.Builder
	sb.WriteString("Instructions:\n")
	sb.WriteString(strings.TrimSpace(p.Instructions))
	sb.WriteString("\n\nNote:\n")
	sb.WriteString(p.Text)
	return sb.String()
}

func buildSummaryInput(p job.SummarizationParams) string {
	limit := "Be brief."
	if p.MaxWords > 0 {
		limit = fmt.Sprintf("Use at most %d words.", p.MaxWords)
	}
	return fmt.Sprintf("Summarise this note. %s\n\n%s", limit, p.Text)
}

// stripCodeFences removes markdown code fences that LLMs sometimes add despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence (```json, ```, etc.)
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if strings.HasSuffix(s, "```") {
			s = s[:len(s)-3]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
