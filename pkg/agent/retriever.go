package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arcadia-ai/dataagent/pkg/history"
	"github.com/arcadia-ai/dataagent/pkg/models"
	"github.com/arcadia-ai/dataagent/pkg/prompts"
	"github.com/arcadia-ai/dataagent/pkg/search"
	"github.com/arcadia-ai/dataagent/pkg/semantics"
)

const (
	// maxSchemaChunks bounds how many schema chunks feed the prompt.
	maxSchemaChunks = 8
	// maxSimilarQueries bounds how many prior verified queries are shown.
	maxSimilarQueries = 3
	// summaryTurns is how many recent turns the session summary covers.
	summaryTurns = 3
)

// Retriever assembles generation context for a plan: relevant schema
// chunks, join paths, curated term and metric fragments, JSONB access
// patterns, verified similar queries, and a conversation summary.
type Retriever struct {
	searcher search.Searcher
	layer    *semantics.Layer
	history  history.Store
	logger   *zap.Logger
}

// NewRetriever creates a retriever over the tenant search index, semantic
// layer, and query history.
func NewRetriever(searcher search.Searcher, layer *semantics.Layer, hist history.Store, logger *zap.Logger) *Retriever {
	return &Retriever{
		searcher: searcher,
		layer:    layer,
		history:  hist,
		logger:   logger.Named("retriever"),
	}
}

// Retrieve runs the four context lookups concurrently and merges them into
// a GenerationContext. Individual lookup failures degrade to missing
// context rather than failing the pipeline; only context cancellation
// aborts.
func (r *Retriever) Retrieve(ctx context.Context, tenantID uuid.UUID, plan *models.QueryPlan, session *models.DataAgentSession) (*prompts.GenerationContext, error) {
	gc := &prompts.GenerationContext{
		ResolvedValues: plan.ResolvedReferences,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		chunks, err := r.searcher.HybridSearch(gctx, plan.Intent, search.Options{
			Limit:        maxSchemaChunks,
			SourceFilter: search.SourceSchema,
		})
		if err != nil {
			r.logger.Warn("schema search failed", zap.Error(err))
			return nil
		}
		mu.Lock()
		gc.SchemaText = mergeChunks(chunks, plan.TablesNeeded)
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		paths := r.joinPaths(plan.TablesNeeded)
		mu.Lock()
		gc.JoinPaths = paths
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		terms, metrics, jsonb := r.semanticFragments(plan)
		mu.Lock()
		gc.TermConditions = terms
		gc.MetricHints = metrics
		gc.JSONBHints = jsonb
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		similar := r.similarQueries(tenantID, plan.Intent)
		mu.Lock()
		gc.SimilarQueries = similar
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gc.SessionSummary = summarizeSession(session)
	return gc, nil
}

// mergeChunks groups search hits by table, keeping plan-required tables
// first so truncation never drops them.
func mergeChunks(chunks []search.Chunk, required []string) string {
	byTable := make(map[string][]string)
	var order []string
	seen := make(map[string]bool)

	for _, t := range required {
		if !seen[t] {
			seen[t] = true
			order = append(order, t)
		}
	}
	for _, c := range chunks {
		if !seen[c.Document] {
			seen[c.Document] = true
			order = append(order, c.Document)
		}
		byTable[c.Document] = append(byTable[c.Document], c.Content)
	}

	var b strings.Builder
	for _, t := range order {
		parts := byTable[t]
		if len(parts) == 0 {
			continue
		}
		b.WriteString(strings.Join(parts, "\n"))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// joinPaths collects multi-hop join SQL between each ordered pair of plan
// tables. The graph is directed: no path means no edge is emitted, never a
// guessed reverse join.
func (r *Retriever) joinPaths(tables []string) []string {
	graph := r.layer.Graph()
	var paths []string
	seen := make(map[string]bool)

	for _, from := range tables {
		for _, to := range tables {
			if from == to {
				continue
			}
			edges := graph.JoinPath(from, to)
			for _, e := range edges {
				if !seen[e.JoinSQL] {
					seen[e.JoinSQL] = true
					paths = append(paths, e.JoinSQL)
				}
			}
		}
	}
	return paths
}

func (r *Retriever) semanticFragments(plan *models.QueryPlan) (terms, metrics, jsonb []string) {
	for _, m := range r.layer.MatchTerms(plan.Intent) {
		terms = append(terms, fmt.Sprintf("%q on %s: %s", m.Phrase, m.Table, m.SQL))
	}
	for _, m := range r.layer.MatchMetrics(plan.Intent) {
		metrics = append(metrics, fmt.Sprintf("%s = %s (table %s)", m.Name, m.Expression, m.Table))
	}
	for _, t := range plan.TablesNeeded {
		for _, p := range r.layer.JSONBPatternsForTable(t) {
			jsonb = append(jsonb, fmt.Sprintf("%s.%s: %s", p.Table, p.Column, p.Pattern))
		}
		for _, c := range tableJSONBFallbacks(r.layer, t) {
			jsonb = append(jsonb, c)
		}
	}
	return terms, metrics, jsonb
}

// tableJSONBFallbacks surfaces curated null-fallback paths for a table.
func tableJSONBFallbacks(layer *semantics.Layer, table string) []string {
	var out []string
	for _, f := range layer.Fallbacks {
		if f.Table == table {
			out = append(out, fmt.Sprintf("when %s.%s is null use %s via: %s",
				f.Table, f.PrimaryColumn, f.Coalesce, f.LateralJoin))
		}
	}
	return out
}

func (r *Retriever) similarQueries(tenantID uuid.UUID, question string) []string {
	matches := r.history.Similar(tenantID, question, maxSimilarQueries)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, fmt.Sprintf("-- %s\n%s", m.Question, m.SQL))
	}
	return out
}

// summarizeSession renders the recent turns as compact context lines.
func summarizeSession(session *models.DataAgentSession) string {
	if session == nil || len(session.Queries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, turn := range session.RecentTurns(summaryTurns) {
		fmt.Fprintf(&b, "Q: %s\n", turn.Question)
		if turn.Summary != "" {
			fmt.Fprintf(&b, "A: %s\n", turn.Summary)
		}
	}
	if len(session.ActiveEntityIDs) > 0 {
		fmt.Fprintf(&b, "Active entity IDs: %s\n", strings.Join(session.ActiveEntityIDs, ", "))
	}
	return strings.TrimSpace(b.String())
}
