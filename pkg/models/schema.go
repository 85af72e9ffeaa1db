package models

import (
	"time"
)

// Domain classifies which business area a table belongs to.
type Domain string

const (
	DomainEcommerce  Domain = "ecommerce"
	DomainCRM        Domain = "crm"
	DomainCampaigns  Domain = "campaigns"
	DomainBehavioral Domain = "behavioral"
	DomainIdentity   Domain = "identity"
	DomainInternal   Domain = "internal"
	DomainUnknown    Domain = "unknown"
)

// ValidDomains contains all user-facing domain values. DomainInternal is
// deliberately excluded: internal tables never appear in schema descriptions
// or decomposition candidate sets.
var ValidDomains = []Domain{
	DomainEcommerce,
	DomainCRM,
	DomainCampaigns,
	DomainBehavioral,
	DomainIdentity,
}

// IsUserFacing reports whether tables in this domain may be shown to the
// LLM or the user.
func (d Domain) IsUserFacing() bool {
	return d != DomainInternal && d != ""
}

// Column describes one column of a tenant table.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
	// JSONBKeys holds sampled top-level keys for jsonb columns, empty otherwise.
	JSONBKeys []string `json:"jsonb_keys,omitempty"`
}

// ForeignKey describes a foreign key edge from this table to another.
type ForeignKey struct {
	SourceColumn string `json:"source_column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`
}

// TableSchema is the introspected shape of a single table.
type TableSchema struct {
	Name          string       `json:"name"`
	Columns       []Column     `json:"columns"`
	Relationships []ForeignKey `json:"relationships,omitempty"`
	Domain        Domain       `json:"domain"`
	Description   string       `json:"description,omitempty"`
}

// Column returns the named column, if present.
func (t *TableSchema) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether the table has the named column.
func (t *TableSchema) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// SchemaMap is a snapshot of all tenant-visible tables.
type SchemaMap struct {
	Tables    map[string]*TableSchema `json:"tables"`
	IndexedAt time.Time               `json:"indexed_at"`
}

// Table returns the named table, if present.
func (m *SchemaMap) Table(name string) (*TableSchema, bool) {
	t, ok := m.Tables[name]
	return t, ok
}

// UserFacingTables returns tables outside the internal domain, which are the
// only tables eligible for schema descriptions and decomposition.
func (m *SchemaMap) UserFacingTables() []*TableSchema {
	var out []*TableSchema
	for _, t := range m.Tables {
		if t.Domain.IsUserFacing() {
			out = append(out, t)
		}
	}
	return out
}

// Age returns how old the snapshot is relative to now.
func (m *SchemaMap) Age(now time.Time) time.Duration {
	return now.Sub(m.IndexedAt)
}
