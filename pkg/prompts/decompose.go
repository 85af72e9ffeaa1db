package prompts

import (
	"fmt"
	"strings"
)

// DecomposeSystemMessage is the system prompt for the decomposition decision.
const DecomposeSystemMessage = `You decide whether a business-data question needs one SQL query or several dependent sub-queries.
Prefer a single query whenever a JOIN can answer the question. Decompose only when intermediate entity IDs must feed a second query, or when JSONB arrays must be expanded separately.
Respond with JSON only.`

// TableSummary describes one candidate table for the decomposition prompt.
type TableSummary struct {
	Name        string
	Description string
	JSONBHints  []string
}

// BuildDecomposePrompt creates the decomposition-decision prompt over the
// non-internal candidate tables.
func BuildDecomposePrompt(question string, tables []TableSummary, joinEdges []string) string {
	var b strings.Builder

	b.WriteString("# Question\n\n")
	b.WriteString(question)
	b.WriteString("\n\n## Available tables\n\n")

	for _, t := range tables {
		fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
		for _, j := range t.JSONBHints {
			fmt.Fprintf(&b, "- jsonb: %s\n", j)
		}
		b.WriteString("\n")
	}

	if len(joinEdges) > 0 {
		b.WriteString("## Known join paths\n\n")
		for _, e := range joinEdges {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	b.WriteString(`## Response format

Single query:
{"decompose": false}

Multiple sub-queries (maximum 4, first one must have no dependencies):
{
  "decompose": true,
  "stitch_key": "customer_id",
  "stitch_strategy": "merge_columns | nested | append_rows",
  "sub_queries": [
    {"id": "q1", "intent": "...", "tables": ["customers"], "join_key": "id"},
    {"id": "q2", "intent": "...", "tables": ["orders"], "depends_on": ["q1"], "join_key": "customer_id"}
  ]
}

Return JSON only.
`)
	return b.String()
}
