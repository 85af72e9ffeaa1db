package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/history"
	"github.com/arcadia-ai/dataagent/pkg/models"
	"github.com/arcadia-ai/dataagent/pkg/search"
	"github.com/arcadia-ai/dataagent/pkg/semantics"
)

type stubSearcher struct {
	chunks []search.Chunk
	err    error
}

func (s *stubSearcher) HybridSearch(ctx context.Context, query string, opts search.Options) ([]search.Chunk, error) {
	return s.chunks, s.err
}

func TestRetrieve_AssemblesContext(t *testing.T) {
	tenantID := uuid.New()
	searcher := &stubSearcher{chunks: []search.Chunk{
		{Source: search.SourceSchema, Document: "orders", Content: "Table orders: id, total_amount, created_at"},
		{Source: search.SourceSchema, Document: "customers", Content: "Table customers: id, name"},
	}}
	hist := history.NewMemoryStore()
	hist.Record(tenantID, history.Entry{
		Question:  "revenue from recent orders",
		SQL:       "SELECT SUM(total_amount) FROM orders",
		Timestamp: time.Now(),
	})

	r := NewRetriever(searcher, semantics.Default(), hist, zap.NewNop())
	plan := &models.QueryPlan{
		Intent:       "revenue from recent orders by customer",
		TablesNeeded: []string{"orders", "customers"},
	}

	gc, err := r.Retrieve(context.Background(), tenantID, plan, nil)

	require.NoError(t, err)
	assert.Contains(t, gc.SchemaText, "Table orders")
	assert.Contains(t, gc.SchemaText, "Table customers")
	assert.NotEmpty(t, gc.JoinPaths, "customers->orders has a curated join path")
	assert.NotEmpty(t, gc.TermConditions, "recent orders is a curated term")
	assert.NotEmpty(t, gc.MetricHints, "revenue is a curated metric")
	require.NotEmpty(t, gc.SimilarQueries)
	assert.Contains(t, gc.SimilarQueries[0], "SUM(total_amount)")
}

func TestRetrieve_SearchFailureDegrades(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("index unavailable")}
	r := NewRetriever(searcher, semantics.Default(), history.NewMemoryStore(), zap.NewNop())

	plan := &models.QueryPlan{Intent: "recent orders", TablesNeeded: []string{"orders"}}
	gc, err := r.Retrieve(context.Background(), uuid.New(), plan, nil)

	require.NoError(t, err)
	assert.Empty(t, gc.SchemaText)
}

func TestRetrieve_SessionSummary(t *testing.T) {
	searcher := &stubSearcher{}
	r := NewRetriever(searcher, semantics.Default(), history.NewMemoryStore(), zap.NewNop())

	sess := &models.DataAgentSession{SessionID: "s1"}
	sess.RecordTurn(models.QueryTurn{
		Question:  "who are my top customers",
		SQL:       "SELECT 1",
		Domain:    models.DomainCRM,
		EntityIDs: []string{"c1"},
		Summary:   "1. Ada (900)",
		Timestamp: time.Now(),
	})

	plan := &models.QueryPlan{Intent: "what did they buy"}
	gc, err := r.Retrieve(context.Background(), uuid.New(), plan, sess)

	require.NoError(t, err)
	assert.Contains(t, gc.SessionSummary, "who are my top customers")
	assert.Contains(t, gc.SessionSummary, "1. Ada (900)")
	assert.Contains(t, gc.SessionSummary, "c1")
}

func TestRetrieve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetriever(&stubSearcher{}, semantics.Default(), history.NewMemoryStore(), zap.NewNop())
	plan := &models.QueryPlan{Intent: "recent orders"}

	_, err := r.Retrieve(ctx, uuid.New(), plan, nil)
	assert.Error(t, err)
}
