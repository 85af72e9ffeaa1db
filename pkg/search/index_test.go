package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
)

func testSchemaMap() *models.SchemaMap {
	return &models.SchemaMap{
		Tables: map[string]*models.TableSchema{
			"orders": {
				Name:   "orders",
				Domain: models.DomainEcommerce,
				Columns: []models.Column{
					{Name: "id", DataType: "uuid"},
					{Name: "total_amount", DataType: "numeric"},
					{Name: "created_at", DataType: "timestamptz"},
				},
				Relationships: []models.ForeignKey{
					{SourceColumn: "customer_id", TargetTable: "customers", TargetColumn: "id"},
				},
			},
			"customers": {
				Name:   "customers",
				Domain: models.DomainCRM,
				Columns: []models.Column{
					{Name: "id", DataType: "uuid"},
					{Name: "email", DataType: "text"},
				},
			},
			"order_embeddings": {
				Name:   "order_embeddings",
				Domain: models.DomainInternal,
				Columns: []models.Column{
					{Name: "vector", DataType: "vector"},
				},
			},
		},
		IndexedAt: time.Now(),
	}
}

func newKeywordIndex(t *testing.T, tenantID uuid.UUID) *Index {
	t.Helper()
	idx := NewIndex(nil, "", zap.NewNop())
	if err := idx.IndexSchema(context.Background(), tenantID, testSchemaMap()); err != nil {
		t.Fatalf("IndexSchema: %v", err)
	}
	return idx
}

func TestHybridSearch_KeywordFallback(t *testing.T) {
	tenantID := uuid.New()
	idx := newKeywordIndex(t, tenantID)

	chunks, err := idx.HybridSearch(context.Background(), tenantID, "orders total_amount", Options{Limit: 3})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected keyword matches without an embedding client")
	}
	if chunks[0].Document != "orders" {
		t.Errorf("top chunk = %q, want orders", chunks[0].Document)
	}
	if chunks[0].Score <= 0 {
		t.Errorf("score = %f, want > 0", chunks[0].Score)
	}
}

func TestIndexSchema_SkipsInternalTables(t *testing.T) {
	tenantID := uuid.New()
	idx := newKeywordIndex(t, tenantID)

	chunks, err := idx.HybridSearch(context.Background(), tenantID, "vector order_embeddings", Options{Limit: 10})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	for _, c := range chunks {
		if c.Document == "order_embeddings" {
			t.Fatal("internal table reached the index")
		}
	}
}

func TestHybridSearch_EmptyIndexIsNotAnError(t *testing.T) {
	idx := NewIndex(nil, "", zap.NewNop())

	chunks, err := idx.HybridSearch(context.Background(), uuid.New(), "anything", Options{})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestHybridSearch_TenantIsolation(t *testing.T) {
	tenantA := uuid.New()
	idx := newKeywordIndex(t, tenantA)

	chunks, err := idx.HybridSearch(context.Background(), uuid.New(), "orders", Options{})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatal("another tenant must not see indexed chunks")
	}
}

func TestHybridSearch_SourceFilter(t *testing.T) {
	tenantID := uuid.New()
	idx := newKeywordIndex(t, tenantID)

	chunks, err := idx.HybridSearch(context.Background(), tenantID, "orders", Options{SourceFilter: "history"})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatal("source filter should exclude schema chunks")
	}
}

func TestHybridSearch_RespectsLimit(t *testing.T) {
	tenantID := uuid.New()
	idx := newKeywordIndex(t, tenantID)

	chunks, err := idx.HybridSearch(context.Background(), tenantID, "orders customers id", Options{Limit: 1})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(chunks) > 1 {
		t.Fatalf("got %d chunks, want at most 1", len(chunks))
	}
}

func TestTenantSearcher_BindsTenant(t *testing.T) {
	tenantID := uuid.New()
	idx := newKeywordIndex(t, tenantID)

	s := &TenantSearcher{Index: idx, TenantID: tenantID}
	chunks, err := s.HybridSearch(context.Background(), "orders", Options{Limit: 2})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("bound searcher returned no chunks")
	}
}
