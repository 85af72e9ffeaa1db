package schema

import (
	"testing"

	"github.com/arcadia-ai/dataagent/pkg/models"
)

func TestClassifyDomain(t *testing.T) {
	tests := []struct {
		table string
		want  models.Domain
	}{
		{"orders", models.DomainEcommerce},
		{"order_items", models.DomainEcommerce},
		{"products", models.DomainEcommerce},
		{"refunds", models.DomainEcommerce},
		{"customers", models.DomainCRM},
		{"contacts", models.DomainCRM},
		{"leads", models.DomainCRM},
		{"campaigns", models.DomainCampaigns},
		{"newsletter_sends", models.DomainCampaigns},
		{"segments", models.DomainBehavioral},
		{"profiles", models.DomainBehavioral},
		{"page_events", models.DomainBehavioral},
		{"identities", models.DomainIdentity},
		{"somewhere_else", models.DomainUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyDomain(tt.table); got != tt.want {
			t.Errorf("ClassifyDomain(%q) = %q, want %q", tt.table, got, tt.want)
		}
	}
}

// Internal patterns are checked before business patterns: a table like
// order_embeddings must stay internal even though it mentions orders.
func TestClassifyDomain_InternalWins(t *testing.T) {
	internal := []string{
		"order_embeddings",
		"customer_vectors",
		"audit_log",
		"graph_edges",
		"schema_migrations",
		"campaign_jobs",
	}
	for _, table := range internal {
		if got := ClassifyDomain(table); got != models.DomainInternal {
			t.Errorf("ClassifyDomain(%q) = %q, want internal", table, got)
		}
	}
}

func TestClassifyDomain_CaseInsensitive(t *testing.T) {
	if got := ClassifyDomain("Orders"); got != models.DomainEcommerce {
		t.Errorf("ClassifyDomain(Orders) = %q, want ecommerce", got)
	}
}
