// Package search provides the embedding-backed lookup used for schema
// context retrieval. The index lives in process and is rebuilt from schema
// snapshots; embedding failures degrade to keyword scoring so retrieval
// never blocks the pipeline.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/llm"
	"github.com/arcadia-ai/dataagent/pkg/models"
)

// SourceSchema marks chunks built from schema descriptions. The Retriever
// filters to this source for generation context.
const SourceSchema = "schema"

// Chunk is one indexed piece of content.
type Chunk struct {
	Source   string  // source kind, e.g. "schema"
	Document string  // source document, e.g. table name
	Content  string  // text shown to the generator
	Score    float64 // combined relevance score, set on search results
	vector   []float32
}

// Options controls a hybrid search.
type Options struct {
	Limit        int
	SourceFilter string
}

// Searcher is the hybrid-search boundary consumed by the Retriever.
type Searcher interface {
	HybridSearch(ctx context.Context, query string, opts Options) ([]Chunk, error)
}

// Index is an in-memory per-tenant chunk index.
type Index struct {
	mu       sync.RWMutex
	chunks   map[uuid.UUID][]Chunk
	client   llm.LLMClient
	embModel string
	logger   *zap.Logger
}

// NewIndex creates an index. client may be nil, in which case scoring is
// keyword-only.
func NewIndex(client llm.LLMClient, embModel string, logger *zap.Logger) *Index {
	return &Index{
		chunks:   make(map[uuid.UUID][]Chunk),
		client:   client,
		embModel: embModel,
		logger:   logger.Named("search"),
	}
}

// IndexSchema rebuilds the tenant's schema chunks from a snapshot. Only
// user-facing tables are indexed; internal infrastructure never reaches
// generation context. Embedding failures are logged and leave the chunks
// keyword-searchable.
func (idx *Index) IndexSchema(ctx context.Context, tenantID uuid.UUID, schemaMap *models.SchemaMap) error {
	tables := schemaMap.UserFacingTables()
	chunks := make([]Chunk, 0, len(tables))
	texts := make([]string, 0, len(tables))

	for _, t := range tables {
		content := describeForIndex(t)
		chunks = append(chunks, Chunk{
			Source:   SourceSchema,
			Document: t.Name,
			Content:  content,
		})
		texts = append(texts, content)
	}

	if idx.client != nil && len(texts) > 0 {
		vectors, err := idx.client.CreateEmbeddings(ctx, texts, idx.embModel)
		if err != nil {
			idx.logger.Warn("schema embedding failed, falling back to keyword scoring", zap.Error(err))
		} else if len(vectors) == len(chunks) {
			for i := range chunks {
				chunks[i].vector = vectors[i]
			}
		}
	}

	idx.mu.Lock()
	idx.chunks[tenantID] = chunks
	idx.mu.Unlock()

	idx.logger.Debug("schema indexed",
		zap.String("tenant", tenantID.String()),
		zap.Int("chunks", len(chunks)))
	return nil
}

// HybridSearch ranks chunks by a blend of cosine similarity (when vectors
// are available) and keyword overlap. It returns an empty slice, never an
// error, when nothing is indexed: absence of context is a degraded state,
// not a failure.
func (idx *Index) HybridSearch(ctx context.Context, tenantID uuid.UUID, query string, opts Options) ([]Chunk, error) {
	idx.mu.RLock()
	chunks := idx.chunks[tenantID]
	idx.mu.RUnlock()

	if len(chunks) == 0 {
		return nil, nil
	}

	if opts.Limit <= 0 {
		opts.Limit = 5
	}

	var queryVec []float32
	if idx.client != nil {
		vec, err := idx.client.CreateEmbedding(ctx, query, idx.embModel)
		if err != nil {
			idx.logger.Debug("query embedding failed", zap.Error(err))
		} else {
			queryVec = vec
		}
	}

	queryWords := keywordSet(query)

	scored := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if opts.SourceFilter != "" && c.Source != opts.SourceFilter {
			continue
		}

		score := keywordScore(queryWords, c.Content)
		if queryVec != nil && c.vector != nil {
			score = 0.7*cosine(queryVec, c.vector) + 0.3*score
		}

		if score <= 0 {
			continue
		}
		c.Score = score
		scored = append(scored, c)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}
	return scored, nil
}

// TenantSearcher binds an index to one tenant, satisfying Searcher.
type TenantSearcher struct {
	Index    *Index
	TenantID uuid.UUID
}

// HybridSearch implements Searcher.
func (s *TenantSearcher) HybridSearch(ctx context.Context, query string, opts Options) ([]Chunk, error) {
	return s.Index.HybridSearch(ctx, s.TenantID, query, opts)
}

func describeForIndex(t *models.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table %s (domain: %s)\n", t.Name, t.Domain)
	for _, col := range t.Columns {
		nullable := "not null"
		if col.Nullable {
			nullable = "nullable"
		}
		fmt.Fprintf(&b, "  %s %s %s", col.Name, col.DataType, nullable)
		if len(col.JSONBKeys) > 0 {
			fmt.Fprintf(&b, " keys: %s", strings.Join(col.JSONBKeys, ", "))
		}
		b.WriteByte('\n')
	}
	for _, fk := range t.Relationships {
		fmt.Fprintf(&b, "  fk %s -> %s.%s\n", fk.SourceColumn, fk.TargetTable, fk.TargetColumn)
	}
	return b.String()
}

func keywordSet(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,?!'\"()")
		if len(w) > 3 {
			set[w] = true
		}
	}
	return set
}

func keywordScore(queryWords map[string]bool, content string) float64 {
	if len(queryWords) == 0 {
		return 0
	}
	contentLower := strings.ToLower(content)
	hits := 0
	for w := range queryWords {
		if strings.Contains(contentLower, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryWords))
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
