package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/executor"
	"github.com/arcadia-ai/dataagent/pkg/history"
	"github.com/arcadia-ai/dataagent/pkg/models"
	"github.com/arcadia-ai/dataagent/pkg/prompts"
	"github.com/arcadia-ai/dataagent/pkg/schema"
	"github.com/arcadia-ai/dataagent/pkg/search"
	"github.com/arcadia-ai/dataagent/pkg/semantics"
	"github.com/arcadia-ai/dataagent/pkg/session"
)

const (
	// maxHarvestValues caps how many values flow from one sub-query into
	// the next, and how many result values a turn records for reference
	// resolution.
	maxHarvestValues = 50

	// summaryLimit truncates the turn summary stored on the session.
	summaryLimit = 240
)

// failureMessage is the user-visible apology for internal pipeline errors.
// Raw errors never reach the user as the message.
const failureMessage = "I wasn't able to answer that question. Could you try rephrasing it?"

// Service is the analysis orchestrator: one Analyze call runs the full
// plan, decompose, retrieve, generate, execute, stitch, present pipeline
// for a question.
type Service struct {
	introspector schema.Introspector
	index        *search.Index
	sessions     session.Store
	history      history.Store
	layer        *semantics.Layer

	planner    *Planner
	decomposer *Decomposer
	generator  *Generator
	corrector  *executor.Corrector
	stitcher   *Stitcher
	presenter  *Presenter

	mu          sync.Mutex
	lastIndexed map[uuid.UUID]time.Time

	logger *zap.Logger
}

// ServiceDeps bundles the constructor dependencies.
type ServiceDeps struct {
	Introspector schema.Introspector
	Index        *search.Index
	Sessions     session.Store
	History      history.Store
	Layer        *semantics.Layer
	Planner      *Planner
	Decomposer   *Decomposer
	Generator    *Generator
	Corrector    *executor.Corrector
	Stitcher     *Stitcher
	Presenter    *Presenter
	Logger       *zap.Logger
}

// NewService assembles the pipeline.
func NewService(deps ServiceDeps) *Service {
	return &Service{
		introspector: deps.Introspector,
		index:        deps.Index,
		sessions:     deps.Sessions,
		history:      deps.History,
		layer:        deps.Layer,
		planner:      deps.Planner,
		decomposer:   deps.Decomposer,
		generator:    deps.Generator,
		corrector:    deps.Corrector,
		stitcher:     deps.Stitcher,
		presenter:    deps.Presenter,
		lastIndexed:  make(map[uuid.UUID]time.Time),
		logger:       deps.Logger.Named("agent"),
	}
}

// Analyze answers one question within a conversation. Session state is
// only mutated after a successful turn: clarifications and failures leave
// the conversation exactly as it was.
func (s *Service) Analyze(ctx context.Context, question, sessionID string, tenantID uuid.UUID) (*models.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	sess := s.sessions.Get(tenantID, sessionID)

	schemaMap, err := s.introspector.GetSchemaMap(ctx, tenantID)
	if err != nil {
		s.logger.Error("schema introspection failed", zap.Error(err))
		return models.FailureResult(failureMessage, err), nil
	}
	s.ensureIndexed(ctx, tenantID, schemaMap)

	plan := s.planner.Plan(question, sess, schemaMap)
	if plan.NeedsClarification() {
		return models.ClarificationResult(plan.ClarifyText, plan.Clarification), nil
	}

	s.decomposer.Decompose(ctx, plan, schemaMap)

	retriever := NewRetriever(&search.TenantSearcher{Index: s.index, TenantID: tenantID}, s.layer, s.history, s.logger)
	gc, err := retriever.Retrieve(ctx, tenantID, plan, sess)
	if err != nil {
		return nil, err
	}

	var result *models.QueryResult
	if plan.Decomposed != nil {
		result = s.runDecomposed(ctx, plan, gc, tenantID)
	} else {
		result = s.runSingle(ctx, plan, gc, tenantID)
	}

	if result.Success {
		s.presenter.Present(plan, result)
		s.recordTurn(sess, question, plan, result)
		s.history.Record(tenantID, history.Entry{
			Question:  question,
			SQL:       result.SQL,
			Tables:    plan.TablesNeeded,
			Timestamp: time.Now(),
		})
	}

	s.logger.Info("question analyzed",
		zap.String("session_id", sessionID),
		zap.String("turn_type", string(plan.TurnType)),
		zap.Bool("decomposed", plan.Decomposed != nil),
		zap.Bool("success", result.Success),
		zap.Int("rows", result.RowCount),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// runSingle executes the single-query path with the row-count contract
// retry.
func (s *Service) runSingle(ctx context.Context, plan *models.QueryPlan, gc *prompts.GenerationContext, tenantID uuid.UUID) *models.QueryResult {
	stmt, err := s.generator.Generate(ctx, plan, gc, tenantID)
	if err != nil {
		s.logger.Warn("generation failed", zap.Error(err))
		return models.FailureResult(failureMessage, err)
	}

	execResult, finalSQL, err := s.corrector.Execute(ctx, stmt, tenantID)
	if err != nil {
		s.logger.Warn("execution failed after correction", zap.Error(err))
		return models.FailureResult(failureMessage, err)
	}

	// One retry with a raised LIMIT when the question asked for more rows
	// than the statement's LIMIT allowed. A second shortfall is the real
	// answer and is accepted.
	if raised, ok := s.presenter.RowContractRetry(plan, finalSQL, execResult.RowCount); ok {
		if retried, retriedSQL, retryErr := s.corrector.Execute(ctx, raised, tenantID); retryErr == nil {
			execResult = retried
			finalSQL = retriedSQL
		}
	}

	return &models.QueryResult{
		Success:       true,
		SQL:           finalSQL,
		Rows:          execResult.Rows,
		RowCount:      execResult.RowCount,
		ExecutionTime: execResult.Elapsed,
	}
}

// runDecomposed executes sub-queries in dependency order, feeding each
// dependent sub-query the join-key values its upstream results produced,
// then stitches the outcomes. An anchor failure fails the turn; a
// dependent failure is recorded and stitching continues without it.
func (s *Service) runDecomposed(ctx context.Context, plan *models.QueryPlan, gc *prompts.GenerationContext, tenantID uuid.UUID) *models.QueryResult {
	decomposed := plan.Decomposed
	outcomes := make([]SubOutcome, 0, len(decomposed.SubQueries))
	byID := make(map[string]*SubOutcome, len(decomposed.SubQueries))

	for i := range decomposed.SubQueries {
		sub := &decomposed.SubQueries[i]
		outcome := SubOutcome{Sub: sub}

		subCtx := *gc
		subCtx.ResolvedValues = s.upstreamValues(sub, byID)
		if i == 0 {
			subCtx.ResolvedValues = mergeValueMaps(subCtx.ResolvedValues, plan.ResolvedReferences)
		}

		depFailed := false
		for _, dep := range sub.DependsOn {
			if o, ok := byID[dep]; !ok || o.Err != nil {
				depFailed = true
				break
			}
		}

		switch {
		case depFailed:
			outcome.Err = ErrNoSubResults
		default:
			stmt, err := s.generator.GenerateSub(ctx, sub, &subCtx, tenantID)
			if err != nil {
				outcome.Err = err
				break
			}
			execResult, finalSQL, err := s.corrector.Execute(ctx, stmt, tenantID)
			outcome.SQL = finalSQL
			if err != nil {
				outcome.Err = err
				break
			}
			outcome.Rows = execResult.Rows
			outcome.RowCount = execResult.RowCount
			outcome.Elapsed = execResult.Elapsed
		}

		// The row-count contract applies to the anchor, whose rows carry
		// the quantity the question asked for.
		if i == 0 && outcome.Err == nil {
			if raised, ok := s.presenter.RowContractRetry(plan, outcome.SQL, outcome.RowCount); ok {
				if retried, retriedSQL, retryErr := s.corrector.Execute(ctx, raised, tenantID); retryErr == nil {
					outcome.SQL = retriedSQL
					outcome.Rows = retried.Rows
					outcome.RowCount = retried.RowCount
					outcome.Elapsed = retried.Elapsed
				}
			}
		}

		if outcome.Err != nil {
			s.logger.Warn("sub-query failed",
				zap.String("sub_query", sub.ID),
				zap.Error(outcome.Err))
		}

		outcomes = append(outcomes, outcome)
		byID[sub.ID] = &outcomes[len(outcomes)-1]

		// Without anchor rows the dependent sub-queries have nothing to
		// join against.
		if i == 0 && outcome.Err != nil {
			return models.FailureResult(failureMessage, outcome.Err)
		}
	}

	result, err := s.stitcher.Stitch(decomposed, outcomes)
	if err != nil {
		return models.FailureResult(failureMessage, err)
	}
	return result
}

// upstreamValues harvests the join-key values a dependent sub-query needs
// from its upstream outcomes.
func (s *Service) upstreamValues(sub *models.SubQuery, byID map[string]*SubOutcome) map[string][]string {
	if len(sub.DependsOn) == 0 {
		return nil
	}
	values := make(map[string][]string)
	for _, dep := range sub.DependsOn {
		o, ok := byID[dep]
		if !ok || o.Err != nil {
			continue
		}
		harvested := harvestColumn(o.Rows, o.Sub.JoinKey)
		if len(harvested) > 0 {
			values[sub.JoinKey] = appendUnique(values[sub.JoinKey], harvested, maxHarvestValues)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// recordTurn appends the completed turn to the session and persists it.
func (s *Service) recordTurn(sess *models.DataAgentSession, question string, plan *models.QueryPlan, result *models.QueryResult) {
	turn := models.QueryTurn{
		Question:     question,
		SQL:          result.SQL,
		Tables:       plan.TablesNeeded,
		Domain:       plan.Domain,
		EntityIDs:    harvestEntityIDs(result.Rows),
		ResultValues: harvestResultValues(result.Rows),
		Summary:      truncate(result.Narrative, summaryLimit),
		Timestamp:    time.Now(),
	}
	sess.RecordTurn(turn)
	s.sessions.Put(sess)
}

// ensureIndexed refreshes the tenant's search chunks when the schema
// snapshot is newer than the last indexing pass. Indexing runs in the
// background and never blocks the turn: until it completes, retrieval
// degrades to keyword search over stale or absent chunks. A failed pass is
// unmarked so the next turn retries it.
func (s *Service) ensureIndexed(ctx context.Context, tenantID uuid.UUID, schemaMap *models.SchemaMap) {
	s.mu.Lock()
	last, ok := s.lastIndexed[tenantID]
	stale := !ok || schemaMap.IndexedAt.After(last)
	if stale {
		s.lastIndexed[tenantID] = schemaMap.IndexedAt
	}
	s.mu.Unlock()

	if !stale {
		return
	}

	indexCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.index.IndexSchema(indexCtx, tenantID, schemaMap); err != nil {
			s.logger.Warn("schema indexing failed", zap.Error(err))
			s.mu.Lock()
			delete(s.lastIndexed, tenantID)
			s.mu.Unlock()
		}
	}()
}

// harvestEntityIDs picks the values of the first identifier-looking column.
func harvestEntityIDs(rows []models.Row) []string {
	if len(rows) == 0 {
		return nil
	}
	var idColumn string
	for _, f := range rows[0] {
		if f.Name == "id" || strings.HasSuffix(f.Name, "_id") {
			idColumn = f.Name
			break
		}
	}
	if idColumn == "" {
		return nil
	}
	return harvestColumn(rows, idColumn)
}

// harvestResultValues extracts named value lists per scalar column so a
// later turn can resolve "those zip codes" against them.
func harvestResultValues(rows []models.Row) map[string][]string {
	if len(rows) == 0 {
		return nil
	}
	values := make(map[string][]string)
	for _, f := range rows[0] {
		if f.Value.Kind == models.KindObject || f.Value.Kind == models.KindArray {
			continue
		}
		col := harvestColumn(rows, f.Name)
		if len(col) > 0 {
			values[f.Name] = col
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func harvestColumn(rows []models.Row, column string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, row := range rows {
		v, ok := row.Get(column)
		if !ok || v.Kind == models.KindNull {
			continue
		}
		text := v.Text()
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
		if len(out) >= maxHarvestValues {
			break
		}
	}
	return out
}

func appendUnique(dst, src []string, limit int) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range src {
		if len(dst) >= limit {
			break
		}
		if !seen[v] {
			seen[v] = true
			dst = append(dst, v)
		}
	}
	return dst
}

func mergeValueMaps(a, b map[string][]string) map[string][]string {
	if len(b) == 0 {
		return a
	}
	if a == nil {
		a = make(map[string][]string)
	}
	for k, v := range b {
		if _, ok := a[k]; !ok {
			a[k] = v
		}
	}
	return a
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
