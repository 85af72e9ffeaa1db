package prompts

import (
	"fmt"
	"strings"
)

// BuildRepairPrompt creates the prompt used to regenerate a statement that
// failed at the database, carrying the error text back to the model.
func BuildRepairPrompt(badSQL, dbError, tenantColumn, tenantID string) string {
	var b strings.Builder

	b.WriteString("# Task\n\n")
	b.WriteString("The SQL below failed against PostgreSQL. Fix it so it runs, preserving the original question's intent.\n\n")

	fmt.Fprintf(&b, "## Failed SQL\n\n```sql\n%s\n```\n\n", badSQL)
	fmt.Fprintf(&b, "## Database error\n\n%s\n\n", dbError)

	fmt.Fprintf(&b, "Keep the tenant filter `%s = '%s'` and the LIMIT clause.\n", tenantColumn, tenantID)
	b.WriteString("Return only the corrected SQL in a ```sql code block.\n")
	return b.String()
}
