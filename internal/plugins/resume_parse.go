package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/llm"
	"github.com/taipm/evalrouter/internal/plugin"
)

func init() {
	plugin.RegisterPluginConstructor("pdf_resume_parser", func() plugin.Plugin { return NewResumeParsePlugin() })
}

const defaultFastModel = "claude-3-5-haiku-20241022"

// PersonalInfo, Education, Experience, Project and Language mirror the
// fields a resume yields under either extraction path.
type PersonalInfo struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

type Education struct {
	Institution string `json:"institution,omitempty"`
	Degree      string `json:"degree,omitempty"`
	Period      string `json:"period,omitempty"`
	Details     string `json:"details,omitempty"`
}

type Experience struct {
	Company          string   `json:"company,omitempty"`
	Title            string   `json:"title,omitempty"`
	Period           string   `json:"period,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
}

type Project struct {
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	URL          string   `json:"url,omitempty"`
}

type Language struct {
	Language    string `json:"language,omitempty"`
	Proficiency string `json:"proficiency,omitempty"`
}

// ResumeData is the structured result of parsing a resume, regardless of
// which extraction path produced it.
type ResumeData struct {
	PersonalInfo PersonalInfo `json:"personal_info"`
	Education    []Education  `json:"education"`
	Experience   []Experience `json:"experience"`
	Skills       []string     `json:"skills"`
	Projects     []Project    `json:"projects"`
	Languages    []Language   `json:"languages"`
}

// ResumeParsePlugin downloads a PDF resume, extracts its text, and parses it
// into ResumeData via a direct-extraction heuristic pass with an LLM
// fallback when that pass leaves key sections empty.
type ResumeParsePlugin struct {
	httpClient *http.Client
	factory    *llm.Factory
	apiKey     string
	baseModel  string
	fastModel  string
}

func NewResumeParsePlugin() *ResumeParsePlugin {
	return &ResumeParsePlugin{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		factory:    llm.NewFactory(),
		baseModel:  "claude-3-5-sonnet-20241022",
		fastModel:  defaultFastModel,
	}
}

func (p *ResumeParsePlugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        "pdf_resume_parser",
		Version:     "1.0.0",
		Description: "Extracts text and structured data from PDF resumes",
		Author:      "core",
		Capabilities: []string{
			"pdf_parsing", "resume_parsing", "document_extraction",
		},
		RequiredParameters: map[string]string{
			"pdf_url": "URL to the PDF resume to parse",
		},
		OptionalParameters: map[string]string{
			"use_llm_fallback": "whether to use LLM fallback if direct extraction is incomplete (default: true)",
			"llm_provider":     "LLM provider to use for fallback (default: anthropic)",
			"llm_model":        "LLM model to use for fallback",
		},
	}
}

func (p *ResumeParsePlugin) Initialize(ctx context.Context, cfg map[string]interface{}) error {
	if v, ok := cfg["anthropic_api_key"].(string); ok && v != "" {
		p.apiKey = v
	}
	if v, ok := cfg["llm_model"].(string); ok && v != "" {
		p.baseModel = v
	}
	if v, ok := cfg["fast_model"].(string); ok && v != "" {
		p.fastModel = v
	}
	return nil
}

func (p *ResumeParsePlugin) ValidateRequest(req *plugin.Request) error {
	return plugin.ValidateRequired(req, map[string]string{"pdf_url": "URL to the PDF resume to parse"})
}

func (p *ResumeParsePlugin) Execute(ctx context.Context, req *plugin.Request) (*plugin.Response, error) {
	pdfURL, _ := req.Parameters["pdf_url"].(string)
	if pdfURL == "" {
		return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusError, Error: "missing required parameter: pdf_url"}, nil
	}

	useLLMFallback := true
	if v, ok := req.Parameters["use_llm_fallback"].(bool); ok {
		useLLMFallback = v
	}
	llmProvider, _ := req.Parameters["llm_provider"].(string)
	if llmProvider == "" {
		llmProvider = "anthropic"
	}
	llmModel, _ := req.Parameters["llm_model"].(string)
	if llmModel == "" {
		llmModel = p.baseModel
	}

	content, err := p.downloadPDF(ctx, pdfURL)
	if err != nil {
		return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusError, Error: err.Error()}, nil
	}

	text, err := extractTextFromPDF(content)
	if err != nil {
		return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusError, Error: err.Error()}, nil
	}

	resumeData := parseResumeText(text)
	usedFallback := false

	if needsLLMFallback(resumeData) {
		if useLLMFallback {
			adapter, err := p.factory.Get(llmProvider, p.apiKey, "", 90*time.Second)
			if err != nil {
				return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusError, Error: err.Error()}, nil
			}
			llmData, err := parseWithLLM(ctx, adapter, text, llmModel)
			if err != nil {
				return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusError, Error: err.Error()}, nil
			}
			resumeData = llmData
			usedFallback = true
		}
	}

	return &plugin.Response{
		RequestID: req.RequestID,
		Status:    plugin.StatusSuccess,
		Data: map[string]interface{}{
			"parsed_resume": resumeData,
			"text_length":   len(text),
			"source_url":    pdfURL,
		},
		Metadata: map[string]interface{}{
			"plugin":            "pdf_resume_parser",
			"version":           "1.0.0",
			"used_llm_fallback": usedFallback,
		},
	}, nil
}

func (p *ResumeParsePlugin) Shutdown(ctx context.Context) error { return nil }

// downloadPDF fetches pdfURL and sanity-checks the result looks like a PDF,
// by content type, URL suffix, or the leading "%PDF-" magic bytes.
func (p *ResumeParsePlugin) downloadPDF(ctx context.Context, pdfURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, apierrors.Validation("pdf_url", pdfURL, "could not build request: "+err.Error())
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (compatible; evalrouter-resume-fetch/1.0)")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to download PDF from %s: %w", pdfURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to download PDF from %s: status %d", pdfURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	isPDF := strings.Contains(strings.ToLower(contentType), "application/pdf") ||
		strings.HasSuffix(strings.ToLower(pdfURL), ".pdf") ||
		(len(body) >= 5 && bytes.Contains(body[:min(len(body), 16)], []byte("%PDF-")))

	if !isPDF {
		return nil, fmt.Errorf("content at %s does not look like a PDF (content-type %q)", pdfURL, contentType)
	}

	return body, nil
}

// extractTextFromPDF reads every page's plain text via ledongthuc/pdf and
// collapses the usual PDF-extraction noise: runs of blank lines, runs of
// spaces, and non-printable characters.
func extractTextFromPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to extract text from PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return cleanExtractedText(b.String()), nil
}

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(` {2,}`)
)

func cleanExtractedText(text string) string {
	text = multiNewlinePattern.ReplaceAllString(text, "\n\n")
	text = multiSpacePattern.ReplaceAllString(text, " ")

	var b strings.Builder
	for _, r := range text {
		if unicode.IsPrint(r) || r == '\n' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

var sectionNames = []string{"education", "experience", "skills", "projects", "languages", "employment", "work", "technical skills", "location", "address"}

// extractSection returns the slice of text between a section heading and
// whichever other known heading follows it.
func extractSection(text, sectionName string) string {
	headingPattern := regexp.MustCompile(`(?i)(?:^|\n)\s*(` + regexp.QuoteMeta(sectionName) + `)\s*:?\s*(?:\n|$)`)
	match := headingPattern.FindStringIndex(text)
	if match == nil {
		return ""
	}
	start := match[1]
	end := len(text)

	for _, next := range sectionNames {
		if strings.EqualFold(next, sectionName) {
			continue
		}
		nextPattern := regexp.MustCompile(`(?i)(?:^|\n)\s*(` + regexp.QuoteMeta(next) + `)\s*:?\s*(?:\n|$)`)
		if loc := nextPattern.FindStringIndex(text[start:]); loc != nil {
			candidate := start + loc[0]
			if candidate < end {
				end = candidate
			}
		}
	}

	return strings.TrimSpace(text[start:end])
}

func splitIntoEntries(sectionText string) []string {
	sectionText = regexp.MustCompile(`(?i)^.*?:`).ReplaceAllString(sectionText, "")

	// splitBefore starts a new entry at every line after the first that matches starts.
	splitBefore := func(starts *regexp.Regexp) []string {
		lines := strings.Split(sectionText, "\n")
		parts := []string{lines[0]}
		for _, line := range lines[1:] {
			if starts.MatchString(line) {
				parts = append(parts, line)
			} else {
				parts[len(parts)-1] += "\n" + line
			}
		}
		return parts
	}

	entries := regexp.MustCompile(`\n\s*\n`).Split(sectionText, -1)
	if len(entries) <= 1 {
		entries = splitBefore(regexp.MustCompile(`\b(?:19|20)\d{2}\b`))
	}
	if len(entries) <= 1 {
		entries = splitBefore(regexp.MustCompile(`^[•\-*]`))
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if trimmed := strings.TrimSpace(e); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var (
	emailPattern    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern    = regexp.MustCompile(`\b(?:\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	locationPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z\s]+,\s+[A-Z]{2}\b`)
	datePattern     = regexp.MustCompile(`(?i)(?:19|20)\d{2}\s*(?:-|–|to)\s*(?:(?:19|20)\d{2}|present|current|now)`)
	bulletPattern   = regexp.MustCompile(`(?s)[•\-*]\s*(.*?)(?:[•\-*]|\n\n|\z)`)
	sentencePattern = regexp.MustCompile(`(?:[.!?])\s+`)
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	techPattern     = regexp.MustCompile(`(?is)(?:Technologies|Tech Stack|Tools|Built with):\s*(.*?)(?:\n\n|\z)`)
)

// parseResumeText runs the heuristic direct-extraction pass that the LLM
// fallback only kicks in to cover gaps for.
func parseResumeText(text string) ResumeData {
	return ResumeData{
		PersonalInfo: extractPersonalInfo(text),
		Education:    extractEducation(text),
		Experience:   extractExperience(text),
		Skills:       extractSkills(text),
		Projects:     extractProjects(text),
		Languages:    extractLanguages(text),
	}
}

func extractPersonalInfo(text string) PersonalInfo {
	var info PersonalInfo

	lines := strings.Split(text, "\n")
	for _, line := range lines[:min(len(lines), 5)] {
		lower := strings.ToLower(line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.ContainsAny(lower, "@") || strings.Contains(lower, "http") || strings.Contains(lower, ".com") ||
			strings.Contains(lower, "resume") || strings.Contains(lower, "cv") {
			continue
		}
		info.Name = strings.TrimSpace(line)
		break
	}

	if m := emailPattern.FindString(text); m != "" {
		info.Email = m
	}
	if m := phonePattern.FindString(text); m != "" {
		info.Phone = m
	}

	if section := firstNonEmpty(extractSection(text, "location"), extractSection(text, "address")); section != "" {
		info.Location = section
	} else {
		header := strings.Join(lines[:min(len(lines), 10)], "\n")
		if m := locationPattern.FindString(header); m != "" {
			info.Location = m
		}
	}

	return info
}

var degreePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Bachelor|Master|Ph\.?D\.?|B\.S\.|M\.S\.|M\.B\.A\.|B\.A\.|M\.A\.|B\.Tech|M\.Tech)[\s.]+(?:of|in|on)?[\s.]+[A-Za-z\s]+`),
	regexp.MustCompile(`(?i)(?:BS|MS|BA|MA|MBA|PhD)[\s.]+(?:in|on)?[\s.]+[A-Za-z\s]+`),
}

func extractEducation(text string) []Education {
	section := extractSection(text, "education")
	if section == "" {
		return nil
	}

	var out []Education
	for _, entry := range splitIntoEntries(section) {
		if len(strings.TrimSpace(entry)) < 10 {
			continue
		}
		lines := strings.Split(entry, "\n")
		edu := Education{Institution: strings.TrimSpace(lines[0])}

		for _, pattern := range degreePatterns {
			if m := pattern.FindString(entry); m != "" {
				edu.Degree = strings.TrimSpace(m)
				break
			}
		}
		if edu.Degree == "" && len(lines) > 1 {
			edu.Degree = strings.TrimSpace(lines[1])
		}
		if m := datePattern.FindString(entry); m != "" {
			edu.Period = strings.TrimSpace(m)
		}
		if len(lines) > 2 {
			var details []string
			for _, line := range lines[2:] {
				trimmed := strings.TrimSpace(line)
				if trimmed != "" && !(edu.Period != "" && strings.Contains(line, edu.Period)) {
					details = append(details, trimmed)
				}
			}
			if len(details) > 0 {
				edu.Details = strings.Join(details, " ")
			}
		}
		out = append(out, edu)
	}
	return out
}

var titlePattern = regexp.MustCompile(`(?i)(?:Senior|Junior|Lead|Principal|Staff|Chief|Director|Manager|Engineer|Developer|Analyst|Consultant|Intern|Associate)\s+[A-Za-z\s]+`)

func extractExperience(text string) []Experience {
	section := firstNonEmpty(extractSection(text, "experience"), extractSection(text, "employment"), extractSection(text, "work"))
	if section == "" {
		return nil
	}

	var out []Experience
	for _, entry := range splitIntoEntries(section) {
		if len(strings.TrimSpace(entry)) < 10 {
			continue
		}
		lines := strings.Split(entry, "\n")
		exp := Experience{Company: strings.TrimSpace(lines[0])}

		if m := titlePattern.FindString(entry); m != "" {
			exp.Title = strings.TrimSpace(m)
		} else if len(lines) > 1 {
			exp.Title = strings.TrimSpace(lines[1])
		}
		if m := datePattern.FindString(entry); m != "" {
			exp.Period = strings.TrimSpace(m)
		}

		var responsibilities []string
		for _, m := range bulletPattern.FindAllStringSubmatch(entry, -1) {
			if clean := strings.TrimSpace(m[1]); clean != "" {
				responsibilities = append(responsibilities, clean)
			}
		}
		if len(responsibilities) == 0 {
			main := entry
			if exp.Title != "" {
				main = strings.Replace(main, exp.Title, "", 1)
			}
			if exp.Period != "" {
				main = strings.Replace(main, exp.Period, "", 1)
			}
			if exp.Company != "" {
				main = strings.Replace(main, exp.Company, "", 1)
			}
			for _, sentence := range sentencePattern.Split(main, -1) {
				clean := strings.TrimSpace(sentence)
				if len(clean) > 20 {
					responsibilities = append(responsibilities, clean)
				}
			}
		}
		exp.Responsibilities = responsibilities
		out = append(out, exp)
	}
	return out
}

func extractSkills(text string) []string {
	section := firstNonEmpty(extractSection(text, "skills"), extractSection(text, "technical skills"))
	if section == "" {
		return nil
	}

	var skills []string
	for _, m := range bulletPattern.FindAllStringSubmatch(section, -1) {
		if clean := strings.TrimSpace(m[1]); clean != "" {
			skills = append(skills, clean)
		}
	}
	if len(skills) == 0 {
		stripped := regexp.MustCompile(`(?i)^.*?:`).ReplaceAllString(section, "")
		for _, s := range strings.Split(stripped, ",") {
			if clean := strings.TrimSpace(s); clean != "" {
				skills = append(skills, clean)
			}
		}
	}
	if len(skills) == 0 {
		for _, line := range strings.Split(section, "\n") {
			clean := strings.TrimSpace(line)
			if clean != "" && !regexp.MustCompile(`(?i)^skills|^technical\s+skills`).MatchString(clean) {
				skills = append(skills, clean)
			}
		}
	}
	return skills
}

func extractProjects(text string) []Project {
	section := extractSection(text, "projects")
	if section == "" {
		return nil
	}

	var out []Project
	for _, entry := range splitIntoEntries(section) {
		if len(strings.TrimSpace(entry)) < 10 {
			continue
		}
		lines := strings.Split(entry, "\n")
		proj := Project{Name: strings.TrimSpace(lines[0])}

		if m := urlPattern.FindString(entry); m != "" {
			proj.URL = strings.TrimSpace(m)
		}
		if len(lines) > 1 {
			var desc []string
			for _, line := range lines[1:] {
				trimmed := strings.TrimSpace(line)
				if trimmed != "" && !(proj.URL != "" && strings.Contains(line, proj.URL)) {
					desc = append(desc, trimmed)
				}
			}
			if len(desc) > 0 {
				proj.Description = strings.Join(desc, " ")
			}
		}
		if m := techPattern.FindStringSubmatch(entry); len(m) > 1 {
			for _, t := range strings.Split(m[1], ",") {
				if clean := strings.TrimSpace(t); clean != "" {
					proj.Technologies = append(proj.Technologies, clean)
				}
			}
		}
		out = append(out, proj)
	}
	return out
}

func extractLanguages(text string) []Language {
	section := extractSection(text, "languages")
	if section == "" {
		return nil
	}

	var out []Language
	for _, m := range bulletPattern.FindAllStringSubmatch(section, -1) {
		clean := strings.TrimSpace(m[1])
		if clean == "" {
			continue
		}
		out = append(out, splitLanguageEntry(clean))
	}
	if len(out) == 0 {
		for _, line := range strings.Split(section, "\n") {
			clean := strings.TrimSpace(line)
			if clean == "" || regexp.MustCompile(`(?i)^languages`).MatchString(clean) {
				continue
			}
			out = append(out, splitLanguageEntry(clean))
		}
	}
	return out
}

func splitLanguageEntry(entry string) Language {
	if idx := strings.Index(entry, ":"); idx != -1 {
		return Language{Language: strings.TrimSpace(entry[:idx]), Proficiency: strings.TrimSpace(entry[idx+1:])}
	}
	if idx := strings.Index(entry, "-"); idx != -1 {
		return Language{Language: strings.TrimSpace(entry[:idx]), Proficiency: strings.TrimSpace(entry[idx+1:])}
	}
	if m := regexp.MustCompile(`(.*?)\s*\((.*?)\)`).FindStringSubmatch(entry); len(m) == 3 {
		return Language{Language: strings.TrimSpace(m[1]), Proficiency: strings.TrimSpace(m[2])}
	}
	return Language{Language: entry}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// needsLLMFallback mirrors the direct-extraction quality gate: any missing
// core section, or an experience entry missing a title or responsibilities,
// triggers a full LLM-only re-parse rather than a partial merge.
func needsLLMFallback(data ResumeData) bool {
	if data.PersonalInfo.Name == "" {
		return true
	}
	if len(data.Education) == 0 {
		return true
	}
	if len(data.Experience) == 0 {
		return true
	}
	if len(data.Skills) == 0 {
		return true
	}
	for _, exp := range data.Experience {
		if exp.Title == "" || len(exp.Responsibilities) == 0 {
			return true
		}
	}
	return false
}

const resumeJSONSchemaPrompt = `You are an expert resume parser. Extract structured information from the resume text below and return ONLY a JSON object matching this exact schema, with no markdown fences and no commentary:

{
  "personal_info": {"name": "", "email": "", "phone": "", "location": ""},
  "education": [{"institution": "", "degree": "", "period": "", "details": ""}],
  "experience": [{"company": "", "title": "", "period": "", "responsibilities": [""]}],
  "skills": [""],
  "projects": [{"name": "", "description": "", "technologies": [""], "url": ""}],
  "languages": [{"language": "", "proficiency": ""}]
}

Use empty strings or empty arrays for anything not present in the resume. Do not invent information.

Resume text:
`

// parseWithLLM sends the raw resume text to the adapter with a strict JSON
// schema prompt, forcing a leading "{" via assistant prefill where the
// adapter supports it, then decodes and normalizes the response.
func parseWithLLM(ctx context.Context, adapter llm.Adapter, text, model string) (ResumeData, error) {
	req := &llm.CompletionRequest{
		Model:            model,
		Messages:         []llm.Message{llm.User(resumeJSONSchemaPrompt + text)},
		Temperature:      0,
		MaxTokens:        4096,
		AssistantPrefill: "{",
	}

	resp, err := adapter.Complete(ctx, req)
	if err != nil {
		return ResumeData{}, fmt.Errorf("LLM resume parsing failed: %w", err)
	}

	raw := resp.Content
	if req.AssistantPrefill != "" && !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		raw = req.AssistantPrefill + raw
	}

	data, err := parseLLMResponse(raw, text)
	if err != nil {
		return ResumeData{}, err
	}

	normalizeResumeData(&data)
	return data, nil
}

// parseLLMResponse extracts a JSON object from the model's raw text, via a
// fenced code block if present, otherwise by locating the outermost matched
// braces, then checks the result actually carries enough content to be
// useful rather than a near-empty stub.
func parseLLMResponse(raw, sourceText string) (ResumeData, error) {
	candidate := extractJSONCandidate(raw)
	if candidate == "" {
		return ResumeData{}, fmt.Errorf("LLM response did not contain a JSON object")
	}

	var data ResumeData
	if err := json.Unmarshal([]byte(candidate), &data); err != nil {
		return ResumeData{}, fmt.Errorf("failed to parse LLM JSON response: %w", err)
	}

	if !isSufficientResumeData(data) {
		return ResumeData{}, fmt.Errorf("LLM response did not contain enough resume content")
	}

	return data, nil
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

func extractJSONCandidate(raw string) string {
	if m := fencedJSONPattern.FindStringSubmatch(raw); len(m) > 1 {
		return m[1]
	}

	start := strings.Index(raw, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}

func isSufficientResumeData(data ResumeData) bool {
	nonEmptyFields := 0
	totalLength := len(data.PersonalInfo.Name) + len(data.PersonalInfo.Email) + len(data.PersonalInfo.Phone) + len(data.PersonalInfo.Location)

	if data.PersonalInfo.Name != "" {
		nonEmptyFields++
	}
	if len(data.Education) > 0 {
		nonEmptyFields++
	}
	if len(data.Experience) > 0 {
		nonEmptyFields++
	}
	if len(data.Skills) > 0 {
		nonEmptyFields++
	}
	if len(data.Projects) > 0 {
		nonEmptyFields++
	}
	if len(data.Languages) > 0 {
		nonEmptyFields++
	}

	for _, edu := range data.Education {
		totalLength += len(edu.Institution) + len(edu.Degree) + len(edu.Details)
	}
	for _, exp := range data.Experience {
		totalLength += len(exp.Company) + len(exp.Title)
		for _, r := range exp.Responsibilities {
			totalLength += len(r)
		}
	}
	for _, s := range data.Skills {
		totalLength += len(s)
	}

	if totalLength < 100 || nonEmptyFields < 3 {
		return false
	}
	return true
}

// spacingAcuteRepairs maps a spacing-acute-accent character followed by its
// base vowel (a common PDF-extraction artifact for accented Latin text)
// back to the precomposed accented character, for both cases.
var spacingAcuteRepairs = map[string]string{
	"´a": "á", "´e": "é", "´i": "í", "´o": "ó", "´u": "ú",
	"´A": "Á", "´E": "É", "´I": "Í", "´O": "Ó", "´U": "Ú",
}

func normalizeString(s string) string {
	s = norm.NFC.String(s)
	for broken, fixed := range spacingAcuteRepairs {
		s = strings.ReplaceAll(s, broken, fixed)
	}
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// normalizeResumeData walks every string field produced by the LLM pass and
// applies Unicode and spacing repairs.
func normalizeResumeData(data *ResumeData) {
	data.PersonalInfo.Name = normalizeString(data.PersonalInfo.Name)
	data.PersonalInfo.Email = normalizeString(data.PersonalInfo.Email)
	data.PersonalInfo.Phone = normalizeString(data.PersonalInfo.Phone)
	data.PersonalInfo.Location = normalizeString(data.PersonalInfo.Location)

	for i := range data.Education {
		data.Education[i].Institution = normalizeString(data.Education[i].Institution)
		data.Education[i].Degree = normalizeString(data.Education[i].Degree)
		data.Education[i].Period = normalizeString(data.Education[i].Period)
		data.Education[i].Details = normalizeString(data.Education[i].Details)
	}

	for i := range data.Experience {
		data.Experience[i].Company = normalizeString(data.Experience[i].Company)
		data.Experience[i].Title = normalizeString(data.Experience[i].Title)
		data.Experience[i].Period = normalizeString(data.Experience[i].Period)
		for j, resp := range data.Experience[i].Responsibilities {
			data.Experience[i].Responsibilities[j] = fixPercentUnits(normalizeString(resp))
		}
	}

	for i := range data.Skills {
		data.Skills[i] = normalizeString(data.Skills[i])
	}

	for i := range data.Projects {
		data.Projects[i].Name = normalizeString(data.Projects[i].Name)
		data.Projects[i].Description = normalizeString(data.Projects[i].Description)
		data.Projects[i].URL = normalizeString(data.Projects[i].URL)
		for j, tech := range data.Projects[i].Technologies {
			data.Projects[i].Technologies[j] = normalizeString(tech)
		}
	}

	for i := range data.Languages {
		data.Languages[i].Language = normalizeString(data.Languages[i].Language)
		data.Languages[i].Proficiency = normalizeString(data.Languages[i].Proficiency)
	}
}

var numberThenPercentGap = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s+(percent|pct)\b`)

// fixPercentUnits conservatively reattaches a "%" symbol that PDF text
// extraction sometimes separates from its preceding number (e.g. "30 %" or
// "30 percent" that should read "30%").
func fixPercentUnits(s string) string {
	s = regexp.MustCompile(`(\d+(?:\.\d+)?)\s+%`).ReplaceAllString(s, "$1%")
	return numberThenPercentGap.ReplaceAllStringFunc(s, func(m string) string {
		sub := numberThenPercentGap.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		if _, err := strconv.ParseFloat(sub[1], 64); err != nil {
			return m
		}
		return sub[1] + "%"
	})
}
