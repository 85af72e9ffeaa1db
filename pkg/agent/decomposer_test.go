package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/llm"
	"github.com/arcadia-ai/dataagent/pkg/models"
	"github.com/arcadia-ai/dataagent/pkg/semantics"
)

func newTestDecomposer(client llm.LLMClient) *Decomposer {
	return NewDecomposer(client, semantics.Default(), zap.NewNop())
}

func jsonClient(response string) *llm.MockLLMClient {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return response, nil
	}
	return mock
}

func TestDecompose_SingleTableSkipsModel(t *testing.T) {
	client := llm.NewMockLLMClient()
	d := newTestDecomposer(client)

	plan := &models.QueryPlan{Intent: "recent orders", TablesNeeded: []string{"orders"}}
	d.Decompose(context.Background(), plan, nil)

	assert.Nil(t, plan.Decomposed)
	assert.Zero(t, client.GenerateResponseCalls)
}

func TestDecompose_SingleTableWithArrayColumnConsultsModel(t *testing.T) {
	client := jsonClient(`{"decompose": false}`)
	d := newTestDecomposer(client)

	schemaMap := &models.SchemaMap{
		Tables: map[string]*models.TableSchema{
			"orders": {
				Name:   "orders",
				Domain: models.DomainEcommerce,
				Columns: []models.Column{
					{Name: "id", DataType: "uuid"},
					{Name: "line_items", DataType: "jsonb"},
				},
			},
		},
	}

	plan := &models.QueryPlan{Intent: "units sold per product", TablesNeeded: []string{"orders"}}
	d.Decompose(context.Background(), plan, schemaMap)

	assert.Nil(t, plan.Decomposed)
	assert.Equal(t, 1, client.GenerateResponseCalls)
}

func TestDecompose_AmbiguousPlanNeverDecomposes(t *testing.T) {
	client := llm.NewMockLLMClient()
	d := newTestDecomposer(client)

	plan := &models.QueryPlan{Ambiguous: true, TablesNeeded: []string{"a", "b"}}
	d.Decompose(context.Background(), plan, nil)

	assert.Nil(t, plan.Decomposed)
	assert.Zero(t, client.GenerateResponseCalls)
}

func TestDecompose_ValidPlan(t *testing.T) {
	client := jsonClient(`{
		"decompose": true,
		"stitch_key": "customer_id",
		"stitch_strategy": "nested",
		"sub_queries": [
			{"id": "q1", "intent": "top customers", "tables": ["customers"], "join_key": "id"},
			{"id": "q2", "intent": "their orders", "tables": ["orders"], "depends_on": ["q1"], "join_key": "customer_id"}
		]
	}`)
	d := newTestDecomposer(client)

	plan := &models.QueryPlan{Intent: "top customers and their orders", TablesNeeded: []string{"customers", "orders"}}
	d.Decompose(context.Background(), plan, nil)

	require.NotNil(t, plan.Decomposed)
	assert.Equal(t, models.StitchNested, plan.Decomposed.StitchStrategy)
	assert.Equal(t, "customer_id", plan.Decomposed.StitchKey)
	require.Len(t, plan.Decomposed.SubQueries, 2)
	assert.Equal(t, models.DomainCRM, plan.Decomposed.SubQueries[0].Domain)
	assert.Equal(t, models.DomainEcommerce, plan.Decomposed.SubQueries[1].Domain)
	require.NotNil(t, plan.Decomposed.Anchor())
	assert.Equal(t, "q1", plan.Decomposed.Anchor().ID)
}

func TestDecompose_CapsSubQueries(t *testing.T) {
	client := jsonClient(`{
		"decompose": true,
		"stitch_key": "id",
		"stitch_strategy": "merge_columns",
		"sub_queries": [
			{"id": "q1", "intent": "a", "tables": ["customers"], "join_key": "id"},
			{"id": "q2", "intent": "b", "tables": ["orders"], "depends_on": ["q1"], "join_key": "id"},
			{"id": "q3", "intent": "c", "tables": ["campaigns"], "depends_on": ["q1"], "join_key": "id"},
			{"id": "q4", "intent": "d", "tables": ["segments"], "depends_on": ["q1"], "join_key": "id"},
			{"id": "q5", "intent": "e", "tables": ["identities"], "depends_on": ["q1"], "join_key": "id"}
		]
	}`)
	d := newTestDecomposer(client)

	plan := &models.QueryPlan{Intent: "everything about my customers", TablesNeeded: []string{"customers", "orders"}}
	d.Decompose(context.Background(), plan, nil)

	require.NotNil(t, plan.Decomposed)
	assert.Len(t, plan.Decomposed.SubQueries, models.MaxSubQueries)
}

func TestDecompose_InvalidPlansDegradeToSingleQuery(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"anchor with dependencies", `{
			"decompose": true, "stitch_key": "id", "stitch_strategy": "merge_columns",
			"sub_queries": [
				{"id": "q1", "intent": "a", "tables": ["customers"], "depends_on": ["q2"], "join_key": "id"},
				{"id": "q2", "intent": "b", "tables": ["orders"], "join_key": "id"}
			]
		}`},
		{"forward dependency", `{
			"decompose": true, "stitch_key": "id", "stitch_strategy": "merge_columns",
			"sub_queries": [
				{"id": "q1", "intent": "a", "tables": ["customers"], "join_key": "id"},
				{"id": "q2", "intent": "b", "tables": ["orders"], "depends_on": ["q3"], "join_key": "id"},
				{"id": "q3", "intent": "c", "tables": ["orders"], "join_key": "id"}
			]
		}`},
		{"duplicate ids", `{
			"decompose": true, "stitch_key": "id", "stitch_strategy": "merge_columns",
			"sub_queries": [
				{"id": "q1", "intent": "a", "tables": ["customers"], "join_key": "id"},
				{"id": "q1", "intent": "b", "tables": ["orders"], "join_key": "id"}
			]
		}`},
		{"single sub-query collapses", `{
			"decompose": true, "stitch_key": "id", "stitch_strategy": "merge_columns",
			"sub_queries": [{"id": "q1", "intent": "a", "tables": ["customers"], "join_key": "id"}]
		}`},
		{"not json", `the question needs two queries`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecomposer(jsonClient(tt.response))
			plan := &models.QueryPlan{Intent: "x", TablesNeeded: []string{"customers", "orders"}}
			d.Decompose(context.Background(), plan, nil)
			assert.Nil(t, plan.Decomposed)
		})
	}
}

func TestDecompose_ModelErrorDegrades(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return "", errors.New("model unavailable")
	}
	d := newTestDecomposer(client)

	plan := &models.QueryPlan{Intent: "x", TablesNeeded: []string{"customers", "orders"}}
	d.Decompose(context.Background(), plan, nil)

	assert.Nil(t, plan.Decomposed)
}

func TestDecompose_DefaultsJoinKeyAndStrategy(t *testing.T) {
	client := jsonClient(`{
		"decompose": true,
		"sub_queries": [
			{"id": "q1", "intent": "a", "tables": ["customers"]},
			{"id": "q2", "intent": "b", "tables": ["orders"], "depends_on": ["q1"]}
		]
	}`)
	d := newTestDecomposer(client)

	plan := &models.QueryPlan{Intent: "x", TablesNeeded: []string{"customers", "orders"}}
	d.Decompose(context.Background(), plan, nil)

	require.NotNil(t, plan.Decomposed)
	assert.Equal(t, models.StitchMergeColumns, plan.Decomposed.StitchStrategy)
	for _, sq := range plan.Decomposed.SubQueries {
		assert.Equal(t, defaultJoinKey, sq.JoinKey)
	}
	assert.Equal(t, defaultJoinKey, plan.Decomposed.StitchKey)
}
