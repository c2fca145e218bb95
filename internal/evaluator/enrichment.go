package evaluator

import (
	"fmt"
	"strings"

	"github.com/taipm/evalrouter/internal/plugins"
)

// formatEnrichment renders the structured enrichment payload into the
// human-readable block described in spec.md §4.10 step 2: names, top 3
// experiences, top 3 education entries, up to 15 skills, languages with
// proficiency, tagged with a "### CANDIDATE PROFILE INFORMATION" heading.
func formatEnrichment(enrichment interface{}) string {
	var b strings.Builder
	b.WriteString("### CANDIDATE PROFILE INFORMATION\n")

	switch v := enrichment.(type) {
	case enrichedData:
		if combined, ok := v.Data.(combinedData); ok {
			if combined.LinkedIn != nil {
				writeLinkedIn(&b, combined.LinkedIn)
			}
			if combined.PDF != nil {
				writeResume(&b, combined.PDF)
			}
		}
	case string:
		writeLinkedIn(&b, v)
	case map[string]interface{}:
		writeResume(&b, v)
	}

	return b.String()
}

func writeLinkedIn(b *strings.Builder, data interface{}) {
	if text, ok := data.(string); ok {
		b.WriteString("\nLinkedIn profile data:\n")
		b.WriteString(text)
		b.WriteString("\n")
	}
}

func writeResume(b *strings.Builder, data interface{}) {
	raw, ok := data.(map[string]interface{})
	if !ok {
		return
	}
	resume, ok := raw["parsed_resume"].(plugins.ResumeData)
	if !ok {
		return
	}

	if resume.PersonalInfo.Name != "" {
		fmt.Fprintf(b, "\nName: %s\n", resume.PersonalInfo.Name)
	}

	if len(resume.Experience) > 0 {
		b.WriteString("\nExperience:\n")
		for _, exp := range resume.Experience[:min(3, len(resume.Experience))] {
			fmt.Fprintf(b, "- %s at %s (%s)\n", exp.Title, exp.Company, exp.Period)
		}
	}

	if len(resume.Education) > 0 {
		b.WriteString("\nEducation:\n")
		for _, edu := range resume.Education[:min(3, len(resume.Education))] {
			fmt.Fprintf(b, "- %s, %s (%s)\n", edu.Degree, edu.Institution, edu.Period)
		}
	}

	if len(resume.Skills) > 0 {
		b.WriteString("\nSkills: ")
		b.WriteString(strings.Join(resume.Skills[:min(15, len(resume.Skills))], ", "))
		b.WriteString("\n")
	}

	if len(resume.Languages) > 0 {
		b.WriteString("\nLanguages:\n")
		for _, lang := range resume.Languages {
			fmt.Fprintf(b, "- %s (%s)\n", lang.Language, lang.Proficiency)
		}
	}
}

// formatEnrichmentLog renders the list of enrichment failures collected
// during the enrichment phase, or nothing if every source succeeded or
// enrichment was disabled.
func formatEnrichmentLog(log []string) string {
	if len(log) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n### ENRICHMENT LOG:\n")
	for _, entry := range log {
		b.WriteString("- ")
		b.WriteString(entry)
		b.WriteString("\n")
	}
	return b.String()
}
