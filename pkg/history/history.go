// Package history keeps verified question/SQL pairs per tenant so the
// Retriever can surface similar past queries as generation context.
package history

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MinSimilarity filters out weakly related history entries.
const MinSimilarity = 0.3

// maxEntriesPerTenant bounds history growth; oldest entries are evicted.
const maxEntriesPerTenant = 200

// Entry is one verified query with its question.
type Entry struct {
	Question  string
	SQL       string
	Tables    []string
	Timestamp time.Time
}

// Match is a history entry with its similarity to the current question.
type Match struct {
	Entry
	Similarity float64
}

// Store records verified queries and finds similar ones.
type Store interface {
	Record(tenantID uuid.UUID, entry Entry)
	Similar(tenantID uuid.UUID, question string, limit int) []Match
}

// MemoryStore is the in-process history store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]Entry
}

// NewMemoryStore creates an empty history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uuid.UUID][]Entry)}
}

// Record implements Store.
func (s *MemoryStore) Record(tenantID uuid.UUID, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.entries[tenantID], entry)
	if len(list) > maxEntriesPerTenant {
		list = list[len(list)-maxEntriesPerTenant:]
	}
	s.entries[tenantID] = list
}

// Similar implements Store. Entries are ranked by shared-keyword overlap:
// words longer than 3 characters, shared-word count over the question's
// vocabulary size. This stands in for vector search over history, which is
// not available here; entries below MinSimilarity are dropped.
func (s *MemoryStore) Similar(tenantID uuid.UUID, question string, limit int) []Match {
	if limit <= 0 {
		limit = 3
	}

	queryWords := vocabulary(question)
	if len(queryWords) == 0 {
		return nil
	}

	s.mu.RLock()
	entries := s.entries[tenantID]
	s.mu.RUnlock()

	var matches []Match
	for _, e := range entries {
		entryWords := vocabulary(e.Question)
		shared := 0
		for w := range queryWords {
			if entryWords[w] {
				shared++
			}
		}
		sim := float64(shared) / float64(len(queryWords))
		if sim >= MinSimilarity {
			matches = append(matches, Match{Entry: e, Similarity: sim})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func vocabulary(text string) map[string]bool {
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
