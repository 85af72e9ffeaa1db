package schema

import (
	"strings"

	"github.com/arcadia-ai/dataagent/pkg/models"
)

// domainPattern maps a table-name substring to the owning domain. First
// match wins, so internal infrastructure patterns come first: those tables
// must never reach user-facing schema descriptions.
type domainPattern struct {
	substr string
	domain models.Domain
}

var domainPatterns = []domainPattern{
	// Internal infrastructure
	{"embedding", models.DomainInternal},
	{"vector", models.DomainInternal},
	{"audit", models.DomainInternal},
	{"graph_", models.DomainInternal},
	{"_migrations", models.DomainInternal},
	{"schema_", models.DomainInternal},
	{"_jobs", models.DomainInternal},

	// Ecommerce
	{"order_item", models.DomainEcommerce},
	{"order", models.DomainEcommerce},
	{"product", models.DomainEcommerce},
	{"cart", models.DomainEcommerce},
	{"checkout", models.DomainEcommerce},
	{"refund", models.DomainEcommerce},

	// Campaigns
	{"campaign", models.DomainCampaigns},
	{"newsletter", models.DomainCampaigns},
	{"send", models.DomainCampaigns},

	// Behavioral
	{"segment", models.DomainBehavioral},
	{"profile", models.DomainBehavioral},
	{"event", models.DomainBehavioral},

	// Identity
	{"identity", models.DomainIdentity},
	{"identities", models.DomainIdentity},

	// CRM
	{"customer", models.DomainCRM},
	{"contact", models.DomainCRM},
	{"note", models.DomainCRM},
	{"task", models.DomainCRM},
	{"lead", models.DomainCRM},
}

// ClassifyDomain assigns a table to a business domain by name pattern.
func ClassifyDomain(tableName string) models.Domain {
	lower := strings.ToLower(tableName)
	for _, p := range domainPatterns {
		if strings.Contains(lower, p.substr) {
			return p.domain
		}
	}
	return models.DomainUnknown
}
