// Package prompts builds the LLM prompts used by the pipeline. Prompt text
// is instruction only; all safety invariants are enforced in code after the
// response comes back.
package prompts

import (
	"fmt"
	"strings"
)

// SQLSystemMessage is the system prompt for SQL generation.
const SQLSystemMessage = `You are a PostgreSQL analyst. You write a single read-only SELECT statement.
Rules:
- Output only SQL, in a fenced code block.
- Never write INSERT, UPDATE, DELETE, DDL, or multiple statements.
- Always include the tenant filter shown in the prompt.
- Always include a LIMIT clause.`

// GenerationContext is the assembled retrieval context for one generation.
type GenerationContext struct {
	SchemaText      string
	JoinPaths       []string
	TermConditions  []string
	MetricHints     []string
	JSONBHints      []string
	SimilarQueries  []string
	SessionSummary  string
	ResolvedValues  map[string][]string
	TenantColumn    string
	TenantID        string
	DefaultRowLimit int
}

// BuildSQLPrompt creates the fresh-generation prompt.
func BuildSQLPrompt(intent string, ctx *GenerationContext) string {
	var b strings.Builder

	b.WriteString("# Task\n\n")
	fmt.Fprintf(&b, "Write one PostgreSQL SELECT statement answering: %s\n\n", intent)

	fmt.Fprintf(&b, "Every table is tenant-scoped: include `%s = '%s'` in the WHERE clause.\n", ctx.TenantColumn, ctx.TenantID)
	fmt.Fprintf(&b, "Include a LIMIT (default %d) unless the question asks for a specific count.\n\n", ctx.DefaultRowLimit)

	if ctx.SchemaText != "" {
		b.WriteString("## Schema\n\n")
		b.WriteString(ctx.SchemaText)
		b.WriteString("\n")
	}

	if len(ctx.JoinPaths) > 0 {
		b.WriteString("## Join paths\n\n")
		for _, jp := range ctx.JoinPaths {
			fmt.Fprintf(&b, "- %s\n", jp)
		}
		b.WriteString("\n")
	}

	if len(ctx.TermConditions) > 0 {
		b.WriteString("## Business term conditions\n\n")
		for _, tc := range ctx.TermConditions {
			fmt.Fprintf(&b, "- %s\n", tc)
		}
		b.WriteString("\n")
	}

	if len(ctx.MetricHints) > 0 {
		b.WriteString("## Metric expressions\n\n")
		for _, m := range ctx.MetricHints {
			fmt.Fprintf(&b, "- %s\n", m)
		}
		b.WriteString("\n")
	}

	if len(ctx.JSONBHints) > 0 {
		b.WriteString("## JSONB access patterns\n\n")
		for _, j := range ctx.JSONBHints {
			fmt.Fprintf(&b, "- %s\n", j)
		}
		b.WriteString("\n")
	}

	if len(ctx.ResolvedValues) > 0 {
		b.WriteString("## Values from the previous turn\n\n")
		b.WriteString("The question refers to these concrete values; filter on them directly:\n")
		for name, values := range ctx.ResolvedValues {
			fmt.Fprintf(&b, "- %s: %s\n", name, quoteList(values))
		}
		b.WriteString("\n")
	}

	if len(ctx.SimilarQueries) > 0 {
		b.WriteString("## Similar verified queries\n\n")
		for _, q := range ctx.SimilarQueries {
			fmt.Fprintf(&b, "%s\n\n", q)
		}
	}

	if ctx.SessionSummary != "" {
		b.WriteString("## Conversation so far\n\n")
		b.WriteString(ctx.SessionSummary)
		b.WriteString("\n")
	}

	b.WriteString("Return only the SQL in a ```sql code block.\n")
	return b.String()
}

// BuildEditPrompt creates the edit-existing-SQL prompt used on refinement
// turns. The model is told to preserve everything the instruction does not
// touch.
func BuildEditPrompt(priorSQL, instruction string, ctx *GenerationContext) string {
	var b strings.Builder

	b.WriteString("# Task\n\n")
	b.WriteString("Edit the SQL below. Change only what the instruction requires; preserve existing JOINs, WHERE conditions, and GROUP BY clauses.\n\n")

	fmt.Fprintf(&b, "## Instruction\n\n%s\n\n", instruction)
	fmt.Fprintf(&b, "## Current SQL\n\n```sql\n%s\n```\n\n", priorSQL)

	fmt.Fprintf(&b, "Keep the tenant filter `%s = '%s'` intact.\n", ctx.TenantColumn, ctx.TenantID)

	if ctx.SchemaText != "" {
		b.WriteString("\n## Schema\n\n")
		b.WriteString(ctx.SchemaText)
		b.WriteString("\n")
	}

	b.WriteString("Return only the edited SQL in a ```sql code block.\n")
	return b.String()
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("'%s'", v)
	}
	return strings.Join(quoted, ", ")
}
