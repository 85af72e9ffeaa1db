// Package semantics holds the hand-curated knowledge base mapping business
// vocabulary to SQL fragments, join paths, JSONB access patterns, and data
// confidence. The layer is static and versioned with the codebase; it is
// not tenant-specific.
package semantics

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
	"gopkg.in/yaml.v3"

	"github.com/arcadia-ai/dataagent/pkg/models"
)

//go:embed layer.yaml
var layerYAML []byte

// DomainInfo describes one business domain's tables and scoring keywords.
type DomainInfo struct {
	Tables       []string `yaml:"tables"`
	PrimaryTable string   `yaml:"primary_table"`
	Keywords     []string `yaml:"keywords"`
}

// Term maps business phrases to a SQL condition fragment on a table.
type Term struct {
	Phrases []string `yaml:"phrases"`
	Table   string   `yaml:"table"`
	SQL     string   `yaml:"sql"`
}

// Metric maps a named aggregate alias to a SQL expression.
type Metric struct {
	Name       string   `yaml:"name"`
	Aliases    []string `yaml:"aliases"`
	Expression string   `yaml:"expression"`
	Table      string   `yaml:"table"`
}

// Edge is a directed join-path edge with literal JOIN SQL. Absence of a
// reverse edge means no implicit reverse join path exists.
type Edge struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	JoinSQL string `yaml:"join_sql"`
}

// JSONBPattern documents access into a jsonb column.
type JSONBPattern struct {
	Table   string   `yaml:"table"`
	Column  string   `yaml:"column"`
	Pattern string   `yaml:"pattern"`
	Keys    []string `yaml:"keys"`
}

// Fallback describes a null-fallback path: when the primary column is null,
// the fallback column is reachable via a lateral join.
type Fallback struct {
	Table          string `yaml:"table"`
	PrimaryColumn  string `yaml:"primary_column"`
	FallbackColumn string `yaml:"fallback_column"`
	LateralJoin    string `yaml:"lateral_join"`
	Coalesce       string `yaml:"coalesce"`
}

// ConfidenceEntry classifies a table (or specific fields of it) as
// verified, ai_inferred, or computed.
type ConfidenceEntry struct {
	Table  string                 `yaml:"table"`
	Fields []string               `yaml:"fields"`
	Level  models.ConfidenceLevel `yaml:"level"`
}

// Layer is the loaded semantic knowledge base.
type Layer struct {
	Domains       map[models.Domain]DomainInfo `yaml:"domains"`
	Terms         []Term                       `yaml:"terms"`
	Metrics       []Metric                     `yaml:"metrics"`
	Relationships []Edge                       `yaml:"relationships"`
	JSONBPatterns []JSONBPattern               `yaml:"jsonb_patterns"`
	Fallbacks     []Fallback                   `yaml:"fallbacks"`
	Confidence    []ConfidenceEntry            `yaml:"confidence"`

	graph *JoinGraph
}

// Load parses a semantic layer from YAML and builds its join graph.
func Load(data []byte) (*Layer, error) {
	var layer Layer
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("parse semantic layer: %w", err)
	}

	layer.graph = NewJoinGraph()
	for _, e := range layer.Relationships {
		layer.graph.AddEdge(e)
	}

	return &layer, nil
}

var (
	defaultLayer     *Layer
	defaultLayerOnce sync.Once
)

// Default returns the layer embedded in the binary. The embedded YAML is
// validated by tests, so a parse failure here is a build defect.
func Default() *Layer {
	defaultLayerOnce.Do(func() {
		layer, err := Load(layerYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded semantic layer invalid: %v", err))
		}
		defaultLayer = layer
	})
	return defaultLayer
}

// Graph returns the directed relationship graph.
func (l *Layer) Graph() *JoinGraph {
	return l.graph
}

// TermMatch is a business term found in question text.
type TermMatch struct {
	Phrase string
	Table  string
	SQL    string
}

// MatchTerms finds curated business terms contained in the question.
// Matching is case-insensitive and singular/plural-insensitive: a question
// about "repeat customer" matches the "repeat customers" phrase.
func (l *Layer) MatchTerms(question string) []TermMatch {
	q := strings.ToLower(question)

	var matches []TermMatch
	for _, term := range l.Terms {
		for _, phrase := range term.Phrases {
			if containsPhrase(q, phrase) {
				matches = append(matches, TermMatch{Phrase: phrase, Table: term.Table, SQL: term.SQL})
				break
			}
		}
	}
	return matches
}

// containsPhrase checks substring containment for the phrase and its
// singular/plural variants.
func containsPhrase(question, phrase string) bool {
	p := strings.ToLower(phrase)
	if strings.Contains(question, p) {
		return true
	}
	if s := inflection.Singular(p); s != p && strings.Contains(question, s) {
		return true
	}
	if pl := inflection.Plural(p); pl != p && strings.Contains(question, pl) {
		return true
	}
	return false
}

// MetricFor resolves a metric by name or alias.
func (l *Layer) MetricFor(name string) (*Metric, bool) {
	lower := strings.ToLower(name)
	for i := range l.Metrics {
		m := &l.Metrics[i]
		if strings.ToLower(m.Name) == lower {
			return m, true
		}
		for _, alias := range m.Aliases {
			if strings.ToLower(alias) == lower {
				return m, true
			}
		}
	}
	return nil, false
}

// MatchMetrics finds metrics referenced in the question text.
func (l *Layer) MatchMetrics(question string) []Metric {
	q := strings.ToLower(question)
	var out []Metric
	for _, m := range l.Metrics {
		names := append([]string{m.Name}, m.Aliases...)
		for _, n := range names {
			if containsPhrase(q, n) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// JSONBPatternFor returns the documented access pattern for a jsonb column.
func (l *Layer) JSONBPatternFor(table, column string) (*JSONBPattern, bool) {
	for i := range l.JSONBPatterns {
		p := &l.JSONBPatterns[i]
		if p.Table == table && p.Column == column {
			return p, true
		}
	}
	return nil, false
}

// JSONBPatternsForTable returns all documented jsonb patterns on a table.
func (l *Layer) JSONBPatternsForTable(table string) []JSONBPattern {
	var out []JSONBPattern
	for _, p := range l.JSONBPatterns {
		if p.Table == table {
			out = append(out, p)
		}
	}
	return out
}

// FallbackFor returns the null-fallback path for a column, if curated.
func (l *Layer) FallbackFor(table, column string) (*Fallback, bool) {
	for i := range l.Fallbacks {
		f := &l.Fallbacks[i]
		if f.Table == table && f.PrimaryColumn == column {
			return f, true
		}
	}
	return nil, false
}

// ConfidenceFor classifies a field's data source. Tables absent from the
// registry are verified: observed or imported data is the default.
func (l *Layer) ConfidenceFor(table, field string) models.ConfidenceLevel {
	for _, entry := range l.Confidence {
		if entry.Table != table {
			continue
		}
		if len(entry.Fields) == 0 {
			return entry.Level
		}
		for _, f := range entry.Fields {
			if f == field {
				return entry.Level
			}
		}
	}
	return models.ConfidenceVerified
}

// DomainFor returns the domain owning a table.
func (l *Layer) DomainFor(table string) models.Domain {
	for domain, info := range l.Domains {
		for _, t := range info.Tables {
			if t == table {
				return domain
			}
		}
	}
	return models.DomainUnknown
}

// ScoreDomains scores each domain by keyword and term hits in the question.
// The Planner uses these scores for domain selection and ambiguity
// detection.
func (l *Layer) ScoreDomains(question string) map[models.Domain]int {
	q := strings.ToLower(question)
	scores := make(map[models.Domain]int)

	for domain, info := range l.Domains {
		score := 0
		for _, kw := range info.Keywords {
			if containsPhrase(q, kw) {
				score++
			}
		}
		scores[domain] = score
	}

	// Terms add weight to the domain owning their table.
	for _, match := range l.MatchTerms(question) {
		d := l.DomainFor(match.Table)
		if d != models.DomainUnknown {
			scores[d]++
		}
	}

	return scores
}
