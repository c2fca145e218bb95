package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SPARTemplateID is the id the evaluation endpoint forces when multi-axis
// scoring is enabled, regardless of the caller's requested template id.
const SPARTemplateID = "spar"

// Registry holds every template loaded from a directory of YAML fixtures.
type Registry struct {
	multiAxis  map[string]MultiAxisTemplate
	singleAxis map[string]SingleAxisTemplate
}

// NewRegistry loads every *.yaml/*.yml file in dir. A file is treated as a
// multi-axis template when it has an "axes" key, single-axis otherwise.
func NewRegistry(dir string) (*Registry, error) {
	reg := &Registry{
		multiAxis:  make(map[string]MultiAxisTemplate),
		singleAxis: make(map[string]SingleAxisTemplate),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("prompt: failed to read template directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		if err := reg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if len(reg.multiAxis) == 0 {
		return nil, fmt.Errorf("prompt: no multi-axis templates found in %s", dir)
	}
	if _, ok := reg.multiAxis[SPARTemplateID]; !ok {
		return nil, fmt.Errorf("prompt: no template with id %q found in %s", SPARTemplateID, dir)
	}

	return reg, nil
}

func (reg *Registry) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("prompt: failed to read %s: %w", path, err)
	}

	var probe struct {
		ID   string         `yaml:"id"`
		Axes []AxisTemplate `yaml:"axes"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("prompt: failed to parse %s: %w", path, err)
	}

	if len(probe.Axes) > 0 {
		var tmpl MultiAxisTemplate
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return fmt.Errorf("prompt: failed to parse multi-axis template %s: %w", path, err)
		}
		if err := tmpl.Validate(); err != nil {
			return fmt.Errorf("prompt: invalid multi-axis template %s: %w", path, err)
		}
		reg.multiAxis[tmpl.ID] = tmpl
		return nil
	}

	var tmpl SingleAxisTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return fmt.Errorf("prompt: failed to parse single-axis template %s: %w", path, err)
	}
	reg.singleAxis[tmpl.ID] = tmpl
	return nil
}

// MultiAxis returns the multi-axis template for id.
func (reg *Registry) MultiAxis(id string) (MultiAxisTemplate, bool) {
	t, ok := reg.multiAxis[id]
	return t, ok
}

// SingleAxis returns the single-axis template for id.
func (reg *Registry) SingleAxis(id string) (SingleAxisTemplate, bool) {
	t, ok := reg.singleAxis[id]
	return t, ok
}

// SPAR returns the shipped seven-axis template the evaluation endpoint
// forces when multi-axis scoring is requested.
func (reg *Registry) SPAR() MultiAxisTemplate {
	return reg.multiAxis[SPARTemplateID]
}

// Validate enforces the invariants from spec.md §3: at least one axis, and
// ranking keywords unique within the template.
func (t MultiAxisTemplate) Validate() error {
	if len(t.Axes) == 0 {
		return fmt.Errorf("template %q has no axes", t.ID)
	}
	seen := make(map[string]bool, len(t.Axes))
	for _, axis := range t.Axes {
		if seen[axis.RankingKeyword] {
			return fmt.Errorf("template %q has duplicate ranking keyword %q", t.ID, axis.RankingKeyword)
		}
		seen[axis.RankingKeyword] = true
	}
	return nil
}
