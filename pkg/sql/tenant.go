package sql

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTenantColumn is the isolation column every tenant table carries.
const DefaultTenantColumn = "org_id"

// clauseBoundaryPattern locates the first trailing clause a synthesized
// WHERE must be placed before.
var clauseBoundaryPattern = regexp.MustCompile(`(?i)\b(GROUP\s+BY|ORDER\s+BY|HAVING|LIMIT|OFFSET)\b`)

// wherePattern locates the first WHERE keyword.
var wherePattern = regexp.MustCompile(`(?i)\bWHERE\b`)

// EnsureTenantFilter deterministically guarantees the statement is scoped to
// the tenant. The LLM is instructed to include the filter, but this repair
// runs regardless of what it produced:
//
//  1. SQL already contains the tenant's literal value: returned unchanged.
//  2. SQL mentions the isolation column with a different or parameterized
//     value: that condition is rewritten in place to the correct literal.
//  3. Column absent entirely: a filter is injected into an existing WHERE,
//     or a new WHERE is synthesized before GROUP BY/ORDER BY/HAVING/LIMIT,
//     or appended at the very end as a last resort.
func EnsureTenantFilter(sqlQuery, column, tenantID string) string {
	if column == "" {
		column = DefaultTenantColumn
	}

	if strings.Contains(sqlQuery, tenantID) {
		return sqlQuery
	}

	// Rewrite an existing filter condition on the isolation column, keeping
	// any table qualifier. Matches quoted literals, parameters ($1, ?, :id),
	// and bare tokens. A qualified column reference on the right side is a
	// join equality, not a filter, and must stay intact.
	condPattern := regexp.MustCompile(
		`(?i)((?:[a-zA-Z_][\w]*\.)?` + regexp.QuoteMeta(column) + `)\s*=\s*('[^']*'|\$\d+|\?|:[\w]+|[\w\-]+(?:\.[\w]+)*)`)
	rewritten := false
	out := condPattern.ReplaceAllStringFunc(sqlQuery, func(match string) string {
		sub := condPattern.FindStringSubmatch(match)
		rhs := sub[2]
		if !strings.HasPrefix(rhs, "'") && strings.Contains(rhs, ".") {
			return match
		}
		rewritten = true
		return fmt.Sprintf("%s = '%s'", sub[1], tenantID)
	})
	if rewritten {
		return out
	}

	filter := fmt.Sprintf("%s = '%s'", column, tenantID)

	// Inject into an existing WHERE clause.
	if loc := wherePattern.FindStringIndex(sqlQuery); loc != nil {
		return sqlQuery[:loc[1]] + " " + filter + " AND" + sqlQuery[loc[1]:]
	}

	// Synthesize a WHERE before the first trailing clause.
	if loc := clauseBoundaryPattern.FindStringIndex(sqlQuery); loc != nil {
		return sqlQuery[:loc[0]] + "WHERE " + filter + " " + sqlQuery[loc[0]:]
	}

	// Last resort: append at the very end.
	return strings.TrimRight(sqlQuery, " \t\n\r") + " WHERE " + filter
}

// ContainsTenantLiteral reports whether the statement carries the tenant's
// literal value; used by tests and audit logging.
func ContainsTenantLiteral(sqlQuery, tenantID string) bool {
	return strings.Contains(sqlQuery, tenantID)
}
