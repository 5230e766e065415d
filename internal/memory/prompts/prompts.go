// Package prompts holds the LLM prompts used by the memory engine. Defaults
// are embedded; a YAML file can override either of them.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default/*.md
var defaultFS embed.FS

// Set is a parsed pair of prompts.
type Set struct {
	factExtraction *template.Template
	updateMemory   *template.Template
}

// override is the PROMPTS_FILE layout.
type override struct {
	FactExtraction string `yaml:"fact_extraction"`
	UpdateMemory   string `yaml:"update_memory"`
}

// Load returns the embedded prompts with any non-empty entry of the YAML
// file at path applied on top. An empty path means defaults only.
func Load(path string) (*Set, error) {
	fact, err := defaultFS.ReadFile("default/fact_extraction.md")
	if err != nil {
		return nil, err
	}
	update, err := defaultFS.ReadFile("default/update_memory.md")
	if err != nil {
		return nil, err
	}
	factSrc, updateSrc := string(fact), string(update)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompts file: %w", err)
		}
		var o override
		if err := yaml.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
		}
		if strings.TrimSpace(o.FactExtraction) != "" {
			factSrc = o.FactExtraction
		}
		if strings.TrimSpace(o.UpdateMemory) != "" {
			updateSrc = o.UpdateMemory
		}
	}

	s := &Set{}
	if s.factExtraction, err = template.New("fact_extraction").Option("missingkey=error").Parse(factSrc); err != nil {
		return nil, fmt.Errorf("fact_extraction prompt: %w", err)
	}
	if s.updateMemory, err = template.New("update_memory").Option("missingkey=error").Parse(updateSrc); err != nil {
		return nil, fmt.Errorf("update_memory prompt: %w", err)
	}
	return s, nil
}

// FactExtraction renders the system prompt for fact extraction.
func (s *Set) FactExtraction(now time.Time) (string, error) {
	return render(s.factExtraction, map[string]any{"Today": now.Format("2006-01-02")})
}

// UpdateMemory renders the update-decision prompt. oldMemory and newFacts are
// JSON documents.
func (s *Set) UpdateMemory(oldMemory, newFacts string) (string, error) {
	return render(s.updateMemory, map[string]any{"OldMemory": oldMemory, "NewFacts": newFacts})
}

func render(t *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
