package mcp

import (
	"log/slog"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/ragmcp/configs"
	"github.com/Aman-CERP/ragmcp/internal/errors"
)

// briefTokenBudget caps a tier-1 brief. Over-budget briefs log a
// warning at startup and are served anyway.
const briefTokenBudget = 50

// ToolBrief is the tier-1 manifest entry for one tool.
type ToolBrief struct {
	Name     string   `yaml:"name" json:"name"`
	Brief    string   `yaml:"brief" json:"brief"`
	Category string   `yaml:"category" json:"category"`
	UseCases []string `yaml:"use_cases" json:"use_cases"`
}

// ToolSchema is the tier-2 entry: the full input schema plus worked
// example invocations.
type ToolSchema struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema map[string]any   `json:"input_schema"`
	Examples    []map[string]any `json:"examples"`
}

type briefsDoc struct {
	Tools []ToolBrief `yaml:"tools"`
}

// Manifest serves the three-tier tool disclosure: briefs, schemas,
// execution. Briefs load from the embedded configs/briefs.yaml.
type Manifest struct {
	briefs  []ToolBrief
	schemas map[string]ToolSchema
}

// NewManifest parses the embedded briefs and validates them against
// the registered schemas.
func NewManifest(logger *slog.Logger) (*Manifest, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc briefsDoc
	if err := yaml.Unmarshal(configs.ToolBriefs, &doc); err != nil {
		return nil, errors.Config("parse embedded tool briefs: %s", err)
	}
	if len(doc.Tools) == 0 {
		return nil, errors.Config("embedded tool briefs are empty")
	}

	for _, b := range doc.Tools {
		if tokens := estimateTokens(b.Brief); tokens > briefTokenBudget {
			logger.Warn("tool brief over budget",
				"tool", b.Name, "tokens", tokens, "budget", briefTokenBudget)
		}
		if len(b.UseCases) < 2 || len(b.UseCases) > 3 {
			logger.Warn("tool brief should list 2..3 use cases",
				"tool", b.Name, "use_cases", len(b.UseCases))
		}
		if _, known := toolSchemas[b.Name]; !known {
			logger.Warn("brief for unregistered tool", "tool", b.Name)
		}
	}

	return &Manifest{briefs: doc.Tools, schemas: toolSchemas}, nil
}

// Briefs returns the tier-1 entries in declaration order.
func (m *Manifest) Briefs() []ToolBrief {
	return m.briefs
}

// Schema returns the tier-2 entry for one tool.
func (m *Manifest) Schema(name string) (ToolSchema, bool) {
	s, ok := m.schemas[name]
	return s, ok
}

// KnownNames lists every registered tool, sorted.
func (m *Manifest) KnownNames() []string {
	names := make([]string, 0, len(m.schemas))
	for name := range m.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// estimateTokens approximates the token count as len/4.
func estimateTokens(s string) int {
	return len(s) / 4
}
