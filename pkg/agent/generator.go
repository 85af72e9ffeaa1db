package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/llm"
	"github.com/arcadia-ai/dataagent/pkg/models"
	"github.com/arcadia-ai/dataagent/pkg/prompts"
	"github.com/arcadia-ai/dataagent/pkg/retry"
	"github.com/arcadia-ai/dataagent/pkg/sql"
)

// complexityKeywords route a question to the default model tier regardless
// of table count.
var complexityKeywords = []string{"join", "across", "compare", "correlate", "versus", " vs "}

// ErrEmptyGeneration is returned when the model produced no SQL at all.
var ErrEmptyGeneration = errors.New("model returned no sql")

// ErrNeedsClarification is returned when a plan that should have
// short-circuited to a clarification reaches generation anyway.
var ErrNeedsClarification = errors.New("plan needs clarification before generation")

// Generator turns a plan plus retrieval context into validated, tenant-safe
// SQL. Every statement leaving the generator has passed shape validation,
// carries the tenant filter, and carries a LIMIT.
type Generator struct {
	defaultClient llm.LLMClient
	fastClient    llm.LLMClient
	tenantColumn  string
	rowLimit      int
	logger        *zap.Logger
}

// NewGenerator creates a generator with a two-tier model setup.
func NewGenerator(defaultClient, fastClient llm.LLMClient, tenantColumn string, rowLimit int, logger *zap.Logger) *Generator {
	if tenantColumn == "" {
		tenantColumn = sql.DefaultTenantColumn
	}
	if rowLimit <= 0 {
		rowLimit = sql.DefaultRowLimit
	}
	return &Generator{
		defaultClient: defaultClient,
		fastClient:    fastClient,
		tenantColumn:  tenantColumn,
		rowLimit:      rowLimit,
		logger:        logger.Named("generator"),
	}
}

// Generate produces SQL for the plan. Refinement turns edit the prior SQL;
// everything else generates fresh. Resolved reference values are screened
// for injection before entering any prompt.
func (g *Generator) Generate(ctx context.Context, plan *models.QueryPlan, gc *prompts.GenerationContext, tenantID uuid.UUID) (string, error) {
	if plan.NeedsClarification() {
		return "", ErrNeedsClarification
	}

	gc.TenantColumn = g.tenantColumn
	gc.TenantID = tenantID.String()
	gc.DefaultRowLimit = g.rowLimit

	if len(gc.ResolvedValues) > 0 {
		clean, findings := sql.ScreenReferenceValues(gc.ResolvedValues)
		for _, f := range findings {
			g.logger.Warn("dropped reference value with injection fingerprint",
				zap.String("reference", f.Reference),
				zap.String("fingerprint", f.Fingerprint))
		}
		gc.ResolvedValues = clean
	}

	var prompt string
	if plan.TurnType == models.TurnRefinement && plan.PriorSQL != "" {
		prompt = prompts.BuildEditPrompt(plan.PriorSQL, plan.EditInstruction, gc)
	} else {
		prompt = prompts.BuildSQLPrompt(plan.Intent, gc)
	}

	client := g.route(plan, gc)
	raw, err := generateWithRetry(ctx, client, prompt, prompts.SQLSystemMessage)
	if err != nil {
		return "", err
	}

	return g.enforce(raw, tenantID)
}

// GenerateSub produces SQL for one sub-query of a decomposed plan. Entity
// IDs harvested from upstream sub-queries arrive as resolved values.
func (g *Generator) GenerateSub(ctx context.Context, sub *models.SubQuery, gc *prompts.GenerationContext, tenantID uuid.UUID) (string, error) {
	plan := &models.QueryPlan{
		Intent:             sub.Intent,
		TurnType:           models.TurnNew,
		Domain:             sub.Domain,
		TablesNeeded:       sub.TablesNeeded,
		ResolvedReferences: gc.ResolvedValues,
	}
	return g.Generate(ctx, plan, gc, tenantID)
}

// RepairSQL regenerates a failed statement from its database error. It
// satisfies the executor's Regenerator boundary; the repaired statement
// passes through the same enforcement chain as a fresh one.
func (g *Generator) RepairSQL(ctx context.Context, badSQL, dbError string, tenantID uuid.UUID) (string, error) {
	prompt := prompts.BuildRepairPrompt(badSQL, dbError, g.tenantColumn, tenantID.String())
	raw, err := generateWithRetry(ctx, g.defaultClient, prompt, prompts.SQLSystemMessage)
	if err != nil {
		return "", err
	}
	return g.enforce(raw, tenantID)
}

// enforce runs the mandatory post-generation chain: extract the SQL from
// the response, validate its read-only shape, guarantee the tenant filter,
// and guarantee a LIMIT. Order matters: the tenant filter must be present
// before the LIMIT check so injection lands ahead of trailing clauses.
func (g *Generator) enforce(response string, tenantID uuid.UUID) (string, error) {
	stmt := strings.TrimSpace(llm.ExtractCode(response))
	if stmt == "" {
		return "", ErrEmptyGeneration
	}

	stmt, err := sql.ValidateShape(stmt)
	if err != nil {
		return "", err
	}

	stmt = sql.EnsureTenantFilter(stmt, g.tenantColumn, tenantID.String())
	stmt = sql.EnsureLimit(stmt, g.rowLimit)
	return stmt, nil
}

// route selects the model tier. Refinement turns edit existing SQL and
// always use the fast tier. Multi-table questions, questions with
// complexity keywords, and questions carrying resolved reference values go
// to the default model; simple single-table lookups use the fast tier.
func (g *Generator) route(plan *models.QueryPlan, gc *prompts.GenerationContext) llm.LLMClient {
	if g.fastClient == nil {
		return g.defaultClient
	}
	if plan.TurnType == models.TurnRefinement && plan.PriorSQL != "" {
		return g.fastClient
	}
	if len(plan.TablesNeeded) > 2 || len(gc.ResolvedValues) > 0 {
		return g.defaultClient
	}
	q := strings.ToLower(plan.Intent)
	for _, kw := range complexityKeywords {
		if strings.Contains(q, kw) {
			return g.defaultClient
		}
	}
	g.logger.Debug("routing to fast model", zap.String("intent", plan.Intent))
	return g.fastClient
}

// generateWithRetry calls the model with backoff on transient failures so
// a rate limit or connection blip does not fail the turn. Permanent errors
// (auth, missing model) return immediately.
func generateWithRetry(ctx context.Context, client llm.LLMClient, prompt, system string) (string, error) {
	var out string
	err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		resp, err := client.GenerateResponse(ctx, prompt, system, 0.0)
		if err != nil {
			return llm.ClassifyError(err)
		}
		out = resp
		return nil
	})
	return out, err
}
