package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
	"github.com/arcadia-ai/dataagent/pkg/semantics"
)

func newTestPresenter(t *testing.T) *Presenter {
	t.Helper()
	return NewPresenter(semantics.Default(), zap.NewNop())
}

func successResult(rows ...models.Row) *models.QueryResult {
	return &models.QueryResult{Success: true, Rows: rows, RowCount: len(rows)}
}

func TestRowContractRetry(t *testing.T) {
	p := newTestPresenter(t)

	tests := []struct {
		name     string
		expected int
		sql      string
		rowCount int
		retries  bool
	}{
		{"limit caps the answer", 200, "SELECT * FROM orders LIMIT 100", 100, true},
		{"no expectation", 0, "SELECT * FROM orders LIMIT 100", 10, false},
		{"expectation met", 20, "SELECT * FROM orders LIMIT 100", 20, false},
		{"limit already high enough", 50, "SELECT * FROM orders LIMIT 100", 30, false},
		{"no limit present", 50, "SELECT * FROM orders", 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &models.QueryPlan{ExpectedRowCount: tt.expected}
			raised, ok := p.RowContractRetry(plan, tt.sql, tt.rowCount)
			assert.Equal(t, tt.retries, ok)
			if ok {
				assert.Contains(t, raised, fmt.Sprintf("LIMIT %d", tt.expected))
			}
		})
	}
}

func TestPresent_SingleRowIsDetail(t *testing.T) {
	p := newTestPresenter(t)
	plan := &models.QueryPlan{Intent: "tell me about this customer"}
	result := successResult(row("name", "Ada", "email", "ada@example.com"))

	p.Present(plan, result)

	require.NotNil(t, result.Visualization)
	assert.Equal(t, models.PresentationDetail, result.Visualization.Type)
	assert.Contains(t, result.Narrative, "Ada")
}

func TestPresent_HintWinsOverShape(t *testing.T) {
	p := newTestPresenter(t)
	plan := &models.QueryPlan{Intent: "orders as a table", PresentationHint: models.PresentationTable}
	result := successResult(
		row("product", "A", "revenue", 10.0),
		row("product", "B", "revenue", 20.0),
		row("product", "C", "revenue", 30.0),
	)

	p.Present(plan, result)

	assert.Equal(t, models.PresentationTable, result.Visualization.Type)
}

func TestPresent_DateSeriesIsLineChart(t *testing.T) {
	p := newTestPresenter(t)
	plan := &models.QueryPlan{Intent: "revenue per month"}
	result := successResult(
		row("month", "2026-01", "revenue", 100.0),
		row("month", "2026-02", "revenue", 200.0),
		row("month", "2026-03", "revenue", 300.0),
	)

	p.Present(plan, result)

	require.Equal(t, models.PresentationLineChart, result.Visualization.Type)
	require.NotNil(t, result.Visualization.XAxis)
	assert.Equal(t, "month", result.Visualization.XAxis.Column)
	require.NotNil(t, result.Visualization.YAxis)
	assert.Equal(t, "revenue", result.Visualization.YAxis.Column)
}

func TestPresent_RankingIsBarChartWithRankedList(t *testing.T) {
	p := newTestPresenter(t)
	plan := &models.QueryPlan{Intent: "top products by revenue", ExpectedRowCount: 3}
	result := successResult(
		row("product", "A", "revenue", 30.0),
		row("product", "B", "revenue", 20.0),
		row("product", "C", "revenue", 10.0),
	)

	p.Present(plan, result)

	assert.Equal(t, models.PresentationBarChart, result.Visualization.Type)
	assert.Equal(t, models.TemplateRankedList, result.Visualization.Template)
	assert.Contains(t, result.Narrative, "1. A")
}

func TestPresent_ManyRowsIsTable(t *testing.T) {
	p := newTestPresenter(t)
	plan := &models.QueryPlan{Intent: "list all customers"}

	var rows []models.Row
	for i := 0; i < 30; i++ {
		rows = append(rows, row("name", fmt.Sprintf("customer %d", i), "ltv", float64(i)))
	}
	result := successResult(rows...)

	p.Present(plan, result)

	assert.Equal(t, models.PresentationTable, result.Visualization.Type)
}

func TestPresent_DeterministicForSameShape(t *testing.T) {
	p := newTestPresenter(t)

	build := func() *models.QueryResult {
		return successResult(
			row("product", "A", "revenue", 30.0),
			row("product", "B", "revenue", 20.0),
		)
	}
	plan := &models.QueryPlan{Intent: "top products by revenue"}

	first := build()
	second := build()
	p.Present(plan, first)
	p.Present(plan, second)

	assert.Equal(t, first.Visualization, second.Visualization)
	assert.Equal(t, first.Narrative, second.Narrative)
}

func TestPresent_ConfidenceFootnotes(t *testing.T) {
	p := newTestPresenter(t)
	plan := &models.QueryPlan{
		Intent:       "lifetime value of top customers",
		TablesNeeded: []string{"customers"},
	}
	result := successResult(
		row("name", "Ada", "lifetime_value", 900.0),
		row("name", "Grace", "lifetime_value", 700.0),
	)

	p.Present(plan, result)

	require.NotEmpty(t, result.Confidence)
	found := false
	for _, note := range result.Confidence {
		if note.Field == "lifetime_value" {
			found = true
			assert.Equal(t, models.ConfidenceComputed, note.Level)
		}
	}
	assert.True(t, found, "expected a computed footnote for lifetime_value")
}

func TestPresent_EmptyResultGetsMessage(t *testing.T) {
	p := newTestPresenter(t)
	result := successResult()

	p.Present(&models.QueryPlan{Intent: "anything"}, result)

	assert.Nil(t, result.Visualization)
	assert.NotEmpty(t, result.Message)
}
