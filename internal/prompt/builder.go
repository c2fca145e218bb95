package prompt

import (
	"strings"

	"github.com/taipm/evalrouter/internal/llm"
)

// BuildSingleAxis fills t's placeholders and returns the 2-message sequence
// the spec requires: user message first carrying the applicant text, then
// the filled system message. additionalInstructions may be empty.
func BuildSingleAxis(t SingleAxisTemplate, applicantText, criteria, rankingKeyword, additionalInstructions string) []llm.Message {
	if rankingKeyword == "" {
		rankingKeyword = t.DefaultRankingWord
	}

	system := t.SystemMessage
	system = strings.ReplaceAll(system, "{criteria_string}", criteria)
	system = strings.ReplaceAll(system, "{ranking_keyword}", rankingKeyword)
	system = strings.ReplaceAll(system, "{additional_instructions}", additionalInstructions)

	return []llm.Message{
		llm.User(applicantText),
		llm.System(system),
	}
}

// BuildMultiAxis fills t's placeholders and returns the 2-message sequence
// with the system message first, which matters because vendor B's adapter
// moves the system-role messages into a top-level field.
func BuildMultiAxis(t MultiAxisTemplate, applicantText, criteria, additionalInstructions string) []llm.Message {
	var system strings.Builder
	system.WriteString(strings.ReplaceAll(t.SystemIntro, "{criteria_string}", criteria))

	for _, axis := range t.Axes {
		system.WriteString("\n\n")
		system.WriteString(strings.ReplaceAll(axis.PromptSection, "{ranking_keyword}", axis.RankingKeyword))
	}

	system.WriteString("\n\n")
	system.WriteString(strings.ReplaceAll(t.SystemOutro, "{additional_instructions}", additionalInstructions))

	return []llm.Message{
		llm.System(system.String()),
		llm.User(applicantText),
	}
}

const defaultCriteria = "Evaluate the applicant holistically against each axis below, using only the information provided."

// ResolveCriteria returns caller-supplied criteria, or a sensible default
// when the caller left it blank, per spec's template-selection rule for
// the evaluation endpoint.
func ResolveCriteria(criteria string) string {
	if strings.TrimSpace(criteria) == "" {
		return defaultCriteria
	}
	return criteria
}
