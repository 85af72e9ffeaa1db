package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/llm"
	"github.com/arcadia-ai/dataagent/pkg/models"
	"github.com/arcadia-ai/dataagent/pkg/prompts"
	"github.com/arcadia-ai/dataagent/pkg/semantics"
)

// defaultJoinKey is assumed when the model omits a sub-query join key.
const defaultJoinKey = "id"

// arrayColumnNames flags JSONB columns that typically hold arrays needing
// separate expansion. Name-based heuristic; sampled keys don't reveal
// whether the top-level value is an array.
var arrayColumnNames = []string{"line_items", "tags", "items", "events", "attributes"}

// decomposeDecision is the model's JSON verdict.
type decomposeDecision struct {
	Decompose      bool   `json:"decompose"`
	StitchKey      string `json:"stitch_key"`
	StitchStrategy string `json:"stitch_strategy"`
	SubQueries     []struct {
		ID        string   `json:"id"`
		Intent    string   `json:"intent"`
		Tables    []string `json:"tables"`
		DependsOn []string `json:"depends_on"`
		JoinKey   string   `json:"join_key"`
	} `json:"sub_queries"`
}

// Decomposer decides whether a plan needs multiple dependent sub-queries.
type Decomposer struct {
	client llm.LLMClient
	layer  *semantics.Layer
	logger *zap.Logger
}

// NewDecomposer creates a decomposer using the fast model tier.
func NewDecomposer(client llm.LLMClient, layer *semantics.Layer, logger *zap.Logger) *Decomposer {
	return &Decomposer{
		client: client,
		layer:  layer,
		logger: logger.Named("decomposer"),
	}
}

// Decompose attaches a DecomposedPlan to the plan when the question needs
// multiple dependent queries, and leaves it nil for a single query.
// Deterministic guards run before any model call: ambiguous plans and
// single-table questions without array-shaped JSONB columns never
// decompose. Any model failure degrades to single-query mode.
func (d *Decomposer) Decompose(ctx context.Context, plan *models.QueryPlan, schemaMap *models.SchemaMap) {
	if plan.NeedsClarification() {
		return
	}
	if len(plan.TablesNeeded) <= 1 && !d.hasArrayColumn(plan.TablesNeeded, schemaMap) {
		return
	}

	prompt := prompts.BuildDecomposePrompt(plan.Intent, d.tableSummaries(plan, schemaMap), d.joinEdges(plan))
	raw, err := generateWithRetry(ctx, d.client, prompt, prompts.DecomposeSystemMessage)
	if err != nil {
		d.logger.Warn("decomposition call failed, running as single query", zap.Error(err))
		return
	}

	decision, err := llm.ParseJSONResponse[decomposeDecision](raw)
	if err != nil {
		d.logger.Warn("unparseable decomposition response, running as single query", zap.Error(err))
		return
	}
	if !decision.Decompose {
		return
	}

	decomposed, err := d.validate(&decision)
	if err != nil {
		d.logger.Warn("invalid decomposition, running as single query", zap.Error(err))
		return
	}
	if decomposed == nil {
		return
	}

	plan.Decomposed = decomposed
	d.logger.Debug("plan decomposed",
		zap.Int("sub_queries", len(decomposed.SubQueries)),
		zap.String("strategy", string(decomposed.StitchStrategy)),
		zap.String("stitch_key", decomposed.StitchKey))
}

// validate enforces the structural rules: at most MaxSubQueries, a
// dependency-free anchor first, dependencies referencing earlier IDs only,
// and non-empty join keys. Fewer than two sub-queries collapses back to a
// single query.
func (d *Decomposer) validate(decision *decomposeDecision) (*models.DecomposedPlan, error) {
	if len(decision.SubQueries) < 2 {
		return nil, nil
	}
	if len(decision.SubQueries) > models.MaxSubQueries {
		decision.SubQueries = decision.SubQueries[:models.MaxSubQueries]
	}

	seen := make(map[string]bool, len(decision.SubQueries))
	subs := make([]models.SubQuery, 0, len(decision.SubQueries))
	for i, sq := range decision.SubQueries {
		if sq.ID == "" {
			sq.ID = fmt.Sprintf("q%d", i+1)
		}
		if seen[sq.ID] {
			return nil, fmt.Errorf("duplicate sub-query id %q", sq.ID)
		}
		if i == 0 && len(sq.DependsOn) > 0 {
			return nil, fmt.Errorf("anchor sub-query %q has dependencies", sq.ID)
		}
		for _, dep := range sq.DependsOn {
			if !seen[dep] {
				return nil, fmt.Errorf("sub-query %q depends on unknown or later %q", sq.ID, dep)
			}
		}
		joinKey := strings.TrimSpace(sq.JoinKey)
		if joinKey == "" {
			joinKey = defaultJoinKey
		}
		seen[sq.ID] = true
		subs = append(subs, models.SubQuery{
			ID:           sq.ID,
			Intent:       sq.Intent,
			Domain:       d.subQueryDomain(sq.Tables),
			TablesNeeded: sq.Tables,
			DependsOn:    sq.DependsOn,
			JoinKey:      joinKey,
		})
	}

	stitchKey := strings.TrimSpace(decision.StitchKey)
	if stitchKey == "" {
		stitchKey = subs[0].JoinKey
	}

	return &models.DecomposedPlan{
		SubQueries:     subs,
		StitchKey:      stitchKey,
		StitchStrategy: models.ParseStitchStrategy(decision.StitchStrategy),
	}, nil
}

func (d *Decomposer) subQueryDomain(tables []string) models.Domain {
	for _, t := range tables {
		if dom := d.layer.DomainFor(t); dom != models.DomainUnknown {
			return dom
		}
	}
	return models.DomainUnknown
}

// hasArrayColumn reports whether any candidate table carries a JSONB column
// whose name suggests array content.
func (d *Decomposer) hasArrayColumn(tables []string, schemaMap *models.SchemaMap) bool {
	if schemaMap == nil {
		return false
	}
	for _, name := range tables {
		table, ok := schemaMap.Table(name)
		if !ok {
			continue
		}
		for _, col := range table.Columns {
			if col.DataType != "jsonb" {
				continue
			}
			for _, arrayName := range arrayColumnNames {
				if strings.Contains(col.Name, arrayName) {
					return true
				}
			}
		}
	}
	return false
}

func (d *Decomposer) tableSummaries(plan *models.QueryPlan, schemaMap *models.SchemaMap) []prompts.TableSummary {
	summaries := make([]prompts.TableSummary, 0, len(plan.TablesNeeded))
	for _, name := range plan.TablesNeeded {
		summary := prompts.TableSummary{Name: name}
		if schemaMap != nil {
			if table, ok := schemaMap.Table(name); ok {
				summary.Description = describeColumns(table)
			}
		}
		for _, p := range d.layer.JSONBPatternsForTable(name) {
			summary.JSONBHints = append(summary.JSONBHints, fmt.Sprintf("%s: %s", p.Column, p.Pattern))
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

func (d *Decomposer) joinEdges(plan *models.QueryPlan) []string {
	var edges []string
	graph := d.layer.Graph()
	for i, from := range plan.TablesNeeded {
		for j, to := range plan.TablesNeeded {
			if i == j {
				continue
			}
			if edge, ok := graph.DirectEdge(from, to); ok {
				edges = append(edges, edge.JoinSQL)
			}
		}
	}
	return edges
}

func describeColumns(table *models.TableSchema) string {
	parts := make([]string, 0, len(table.Columns))
	for _, c := range table.Columns {
		parts = append(parts, c.Name+" "+c.DataType)
	}
	return strings.Join(parts, ", ")
}
