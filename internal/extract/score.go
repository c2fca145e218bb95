// Package extract implements the score extractor (C9): locating a per-axis
// integer score in free-form LLM text via a cascade of patterns from the
// strictest to the most permissive, stopping at the first valid match.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AxisKeyword pairs an axis's human name with its ranking keyword, the
// shape the prompt system (C8) hands this package.
type AxisKeyword struct {
	AxisName       string
	RankingKeyword string
}

// Score is one axis's extracted result: either a valid 1-5 integer, or
// absent when every tier of the cascade failed to find one.
type Score struct {
	AxisName string
	Value    *int
}

// ExtractAll runs the cascade for every axis in order and returns one Score
// per axis, preserving axis order.
func ExtractAll(text string, axes []AxisKeyword) []Score {
	scores := make([]Score, 0, len(axes))
	for _, axis := range axes {
		scores = append(scores, Score{AxisName: axis.AxisName, Value: extractOne(text, axis)})
	}
	return scores
}

// ExtractSingle runs the cascade for exactly one ranking keyword, the mode
// the single-axis evaluation path uses.
func ExtractSingle(text, axisName, rankingKeyword string) *int {
	return extractOne(text, AxisKeyword{AxisName: axisName, RankingKeyword: rankingKeyword})
}

// validScore reports whether n is an integer in the inclusive [1,5] range
// the spec requires; larger or smaller numbers are discarded.
func validScore(raw string) (int, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 5 {
		return 0, false
	}
	return n, true
}

// patternStage is one tier of the cascade: it receives the raw keyword and
// axis name, quotes them for regex use itself, and returns a compiled
// pattern whose first capture group is the candidate digit(s).
type patternStage func(keyword, axisUpper, axisName string) *regexp.Regexp

// cascade lists tiers 1-7 in the exact order spec.md §4.9 specifies; tier 8,
// the paragraph fallback, is paragraphFallback, tried after all of them.
// Each stage is tried against the full text; the first stage producing a
// regex match whose captured digits pass validScore wins.
var cascade = []patternStage{
	// 1. <KEYWORD> followed by any non-digit characters then a digit in [1,5], case-sensitive exact.
	func(keyword, _, _ string) *regexp.Regexp {
		return regexp.MustCompile(regexp.QuoteMeta(keyword) + `\D*?([1-5])`)
	},
	// 2. Explicit <KEYWORD> = N / : N / - N / ... N/5, flexible whitespace.
	func(keyword, _, _ string) *regexp.Regexp {
		return regexp.MustCompile(regexp.QuoteMeta(keyword) + `\s*(?:=|:|-)\s*([1-5])|` + regexp.QuoteMeta(keyword) + `.*?([1-5])\s*/\s*5`)
	},
	// 3. Upper-case axis name with or without _RATING suffix, equals or colon separator.
	func(_, axisUpper, _ string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(axisUpper) + `(?:_RATING)?\s*(?:=|:)\s*([1-5])`)
	},
	// 4. FINAL_RANKING for <axis name> patterns (carry-over from single-axis mode).
	func(_, _, axisName string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)FINAL_RANKING\s+for\s+` + regexp.QuoteMeta(axisName) + `\D*?([1-5])`)
	},
	// 5. Axis name followed by =/: / Rating =/Rating: then digit, permissive case.
	func(_, _, axisName string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(axisName) + `\s*(?:=|:|Rating\s*=|Rating\s*:)\s*([1-5])`)
	},
	// 6. Section-header patterns: markdown headers, bold, or "<axis> assessment/evaluation", digit anywhere in section.
	func(_, _, axisName string) *regexp.Regexp {
		return regexp.MustCompile(`(?is)(?:#{2,3}\s*` + regexp.QuoteMeta(axisName) + `|\*\*` + regexp.QuoteMeta(axisName) + `\*\*|` +
			regexp.QuoteMeta(axisName) + `\s+(?:assessment|evaluation))\D{0,400}?([1-5])`)
	},
	// 7. Limited-context fallback: axis name within 500 chars of "score"/"rating" then a digit, or N/5.
	func(_, _, axisName string) *regexp.Regexp {
		return regexp.MustCompile(`(?is)` + regexp.QuoteMeta(axisName) + `[\s\S]{0,500}?(?:score|rating)[\s\S]{0,50}?([1-5])|` +
			regexp.QuoteMeta(axisName) + `[\s\S]{0,500}?([1-5])\s*/\s*5`)
	},
}

func extractOne(text string, axis AxisKeyword) *int {
	axisUpper := strings.ToUpper(strings.ReplaceAll(axis.AxisName, " ", "_"))

	for _, stage := range cascade {
		pattern := stage(axis.RankingKeyword, axisUpper, axis.AxisName)
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		for _, group := range match[1:] {
			if group == "" {
				continue
			}
			if n, ok := validScore(group); ok {
				return &n
			}
		}
	}

	if n, ok := paragraphFallback(text, axis.AxisName); ok {
		return &n
	}

	return nil
}

var blankLinePattern = regexp.MustCompile(`\n\s*\n`)
var bareDigitPattern = regexp.MustCompile(`[1-5]`)

// paragraphFallback is tier 8: split on blank lines, take the first
// paragraph mentioning the axis name (case-insensitive), and extract its
// first bare digit in [1,5].
func paragraphFallback(text, axisName string) (int, bool) {
	lowerAxis := strings.ToLower(axisName)
	for _, paragraph := range blankLinePattern.Split(text, -1) {
		if !strings.Contains(strings.ToLower(paragraph), lowerAxis) {
			continue
		}
		if m := bareDigitPattern.FindString(paragraph); m != "" {
			n, err := strconv.Atoi(m)
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// FormatScoresBlock renders the "[MULTI_AXIS_SCORES]" diagnostic section
// the orchestrator (C10) appends to the response text.
func FormatScoresBlock(scores []Score) string {
	var b strings.Builder
	b.WriteString("[MULTI_AXIS_SCORES]\n")
	for _, s := range scores {
		if s.Value != nil {
			fmt.Fprintf(&b, "%s: %d\n", s.AxisName, *s.Value)
		} else {
			fmt.Fprintf(&b, "%s: null\n", s.AxisName)
		}
	}
	return b.String()
}
