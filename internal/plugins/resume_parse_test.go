package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleResumeText = `Jane Doe
jane.doe@example.com
(415) 555-0100
San Francisco, CA

EDUCATION
Stanford University
Bachelor of Science in Computer Science
2014 - 2018

EXPERIENCE
Acme Corp
Senior Software Engineer
2019 - Present
- Led a team of 4 engineers building the payments platform
- Reduced checkout latency by 30 % across all regions

SKILLS
Go, Python, Distributed Systems, Kubernetes

LANGUAGES
English: Native
Spanish: Conversational
`

func TestParseResumeTextExtractsPersonalInfo(t *testing.T) {
	data := parseResumeText(sampleResumeText)

	assert.Equal(t, "Jane Doe", data.PersonalInfo.Name)
	assert.Equal(t, "jane.doe@example.com", data.PersonalInfo.Email)
	assert.NotEmpty(t, data.PersonalInfo.Phone)
}

func TestParseResumeTextExtractsEducation(t *testing.T) {
	data := parseResumeText(sampleResumeText)

	assert.Len(t, data.Education, 1)
	assert.Equal(t, "Stanford University", data.Education[0].Institution)
	assert.Contains(t, data.Education[0].Period, "2014")
}

func TestParseResumeTextExtractsExperience(t *testing.T) {
	data := parseResumeText(sampleResumeText)

	assert.Len(t, data.Experience, 1)
	assert.Equal(t, "Acme Corp", data.Experience[0].Company)
	assert.NotEmpty(t, data.Experience[0].Responsibilities)
}

func TestParseResumeTextExtractsSkills(t *testing.T) {
	data := parseResumeText(sampleResumeText)
	assert.NotEmpty(t, data.Skills)
}

func TestParseResumeTextExtractsLanguages(t *testing.T) {
	data := parseResumeText(sampleResumeText)

	assert.Len(t, data.Languages, 2)
	assert.Equal(t, "English", data.Languages[0].Language)
	assert.Equal(t, "Native", data.Languages[0].Proficiency)
}

func TestNeedsLLMFallbackFalseWhenComplete(t *testing.T) {
	data := parseResumeText(sampleResumeText)
	assert.False(t, needsLLMFallback(data))
}

func TestNeedsLLMFallbackTrueWhenSectionsMissing(t *testing.T) {
	assert.True(t, needsLLMFallback(ResumeData{}))
}

func TestExtractJSONCandidateFromFencedBlock(t *testing.T) {
	raw := "Here you go:\n```json\n{\"personal_info\": {\"name\": \"Jane\"}}\n```\nThanks."
	got := extractJSONCandidate(raw)
	assert.JSONEq(t, `{"personal_info": {"name": "Jane"}}`, got)
}

func TestExtractJSONCandidateFromBraceMatching(t *testing.T) {
	raw := "{\"a\": {\"b\": 1}} trailing text"
	got := extractJSONCandidate(raw)
	assert.JSONEq(t, `{"a": {"b": 1}}`, got)
}

func TestParseLLMResponseRejectsSparseContent(t *testing.T) {
	_, err := parseLLMResponse(`{"personal_info": {"name": "A"}}`, "")
	assert.Error(t, err)
}

func TestParseLLMResponseAcceptsSufficientContent(t *testing.T) {
	raw := `{
		"personal_info": {"name": "Jane Doe", "email": "jane@example.com"},
		"education": [{"institution": "Stanford University", "degree": "BS Computer Science"}],
		"experience": [{"company": "Acme Corp", "title": "Engineer", "responsibilities": ["Built payment systems"]}],
		"skills": ["Go", "Python"]
	}`

	data, err := parseLLMResponse(raw, "")
	assert.NoError(t, err)
	assert.Equal(t, "Jane Doe", data.PersonalInfo.Name)
}

func TestNormalizeStringRepairsSpacingAcute(t *testing.T) {
	assert.Equal(t, "café", normalizeString("café"))
	assert.Equal(t, "café", normalizeString("caf´e"))
}

func TestFixPercentUnitsReattachesSymbol(t *testing.T) {
	assert.Equal(t, "Reduced latency by 30%", fixPercentUnits("Reduced latency by 30 %"))
	assert.Equal(t, "Grew revenue 15%", fixPercentUnits("Grew revenue 15 percent"))
}

func TestSplitLanguageEntryVariants(t *testing.T) {
	assert.Equal(t, Language{Language: "English", Proficiency: "Native"}, splitLanguageEntry("English: Native"))
	assert.Equal(t, Language{Language: "Spanish", Proficiency: "Fluent"}, splitLanguageEntry("Spanish - Fluent"))
	assert.Equal(t, Language{Language: "French", Proficiency: "Basic"}, splitLanguageEntry("French (Basic)"))
	assert.Equal(t, Language{Language: "German"}, splitLanguageEntry("German"))
}
