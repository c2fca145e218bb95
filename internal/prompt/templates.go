// Package prompt implements the prompt system (C8): single-axis and
// multi-axis (SPAR) template types loaded from YAML fixtures, and the
// builders that turn a filled template into a provider-ready message
// sequence.
package prompt

// SingleAxisTemplate is the one-score-per-call template shape.
type SingleAxisTemplate struct {
	ID                 string `yaml:"id"`
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	SystemMessage      string `yaml:"system_message"`
	DefaultRankingWord string `yaml:"default_ranking_keyword"`
}

// AxisTemplate is one scored dimension within a MultiAxisTemplate.
type AxisTemplate struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	RankingKeyword string `yaml:"ranking_keyword"`
	PromptSection  string `yaml:"prompt_section"`
}

// MultiAxisTemplate is the SPAR-style seven(+)-axis template shape.
type MultiAxisTemplate struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	SystemIntro string         `yaml:"system_intro"`
	SystemOutro string         `yaml:"system_outro"`
	Axes        []AxisTemplate `yaml:"axes"`
}

// FirstAxisSingleAxis projects a MultiAxisTemplate's first axis into a
// standalone SingleAxisTemplate, per spec's rule that disabling multi-axis
// derives a single-axis template from the SPAR template rather than
// requiring a second, separately-authored template.
func (t MultiAxisTemplate) FirstAxisSingleAxis() SingleAxisTemplate {
	if len(t.Axes) == 0 {
		return SingleAxisTemplate{}
	}
	axis := t.Axes[0]
	return SingleAxisTemplate{
		ID:                 t.ID + "-single",
		Name:               axis.Name,
		Description:        axis.Description,
		SystemMessage:      t.SystemIntro + "\n\n" + axis.PromptSection + "\n\n" + t.SystemOutro,
		DefaultRankingWord: axis.RankingKeyword,
	}
}

// RankingKeywords returns an ordered axis-name -> ranking-keyword map, the
// input shape the score extractor (C9) consumes.
func (t MultiAxisTemplate) RankingKeywords() []AxisKeyword {
	keywords := make([]AxisKeyword, 0, len(t.Axes))
	for _, axis := range t.Axes {
		keywords = append(keywords, AxisKeyword{AxisName: axis.Name, RankingKeyword: axis.RankingKeyword})
	}
	return keywords
}

// AxisKeyword pairs an axis's human name with its ranking keyword.
type AxisKeyword struct {
	AxisName       string
	RankingKeyword string
}
