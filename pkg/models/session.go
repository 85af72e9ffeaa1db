package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxSessionTurns bounds how many query turns a session retains; the
// oldest turn is evicted when the cap is exceeded.
const MaxSessionTurns = 10

// QueryTurn is an immutable record of one completed question/answer turn.
type QueryTurn struct {
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	Tables    []string  `json:"tables"`
	Domain    Domain    `json:"domain"`
	EntityIDs []string  `json:"entity_ids,omitempty"`
	// ResultValues holds named value lists extracted from the result,
	// e.g. zip -> ["10001","10002"], for "those zip codes" references.
	ResultValues map[string][]string `json:"result_values,omitempty"`
	Summary      string              `json:"summary,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

// DataAgentSession is the per-(org, conversation) conversational state.
// Mutated only by the orchestrator after a turn completes successfully.
type DataAgentSession struct {
	OrgID            uuid.UUID   `json:"org_id"`
	SessionID        string      `json:"session_id"`
	CurrentDomain    Domain      `json:"current_domain"`
	ActiveEntityType string      `json:"active_entity_type,omitempty"`
	ActiveEntityIDs  []string    `json:"active_entity_ids,omitempty"`
	Queries          []QueryTurn `json:"queries"`
	LastActivity     time.Time   `json:"last_activity"`
}

// LastTurn returns the most recent turn, or nil for a fresh session.
func (s *DataAgentSession) LastTurn() *QueryTurn {
	if len(s.Queries) == 0 {
		return nil
	}
	return &s.Queries[len(s.Queries)-1]
}

// RecentTurns returns up to n most recent turns, oldest first.
func (s *DataAgentSession) RecentTurns(n int) []QueryTurn {
	if n <= 0 || len(s.Queries) == 0 {
		return nil
	}
	if len(s.Queries) <= n {
		return s.Queries
	}
	return s.Queries[len(s.Queries)-n:]
}

// RecordTurn appends a completed turn, evicting the oldest past the cap,
// and refreshes the active entity state.
func (s *DataAgentSession) RecordTurn(turn QueryTurn) {
	s.Queries = append(s.Queries, turn)
	if len(s.Queries) > MaxSessionTurns {
		s.Queries = s.Queries[len(s.Queries)-MaxSessionTurns:]
	}
	if turn.Domain != "" && turn.Domain != DomainUnknown {
		s.CurrentDomain = turn.Domain
	}
	if len(turn.EntityIDs) > 0 {
		s.ActiveEntityIDs = turn.EntityIDs
	}
	s.LastActivity = turn.Timestamp
}
