package sql

import (
	"fmt"
	"regexp"
	"strings"
)

// ShapeError wraps all shape-validation failures. A statement that fails
// shape validation must never reach execution.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unsafe SQL rejected: %s", e.Reason)
}

// forbiddenKeywords are mutating/DDL/admin keywords that disqualify a
// statement anywhere they appear as a whole word.
var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"truncate", "grant", "revoke", "execute", "copy",
}

var forbiddenPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)

// ValidateShape rejects anything that is not a single read-only statement:
// it must start with SELECT or WITH, contain no forbidden keyword as a whole
// word, and contain no second statement. Returns the normalized SQL on
// success.
func ValidateShape(sqlQuery string) (string, error) {
	result := ValidateAndNormalize(sqlQuery)
	if result.Error != nil {
		return "", &ShapeError{Reason: result.Error.Error()}
	}

	normalized := result.NormalizedSQL
	if normalized == "" {
		return "", &ShapeError{Reason: "empty statement"}
	}

	upper := strings.ToUpper(strings.TrimSpace(normalized))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "", &ShapeError{Reason: "statement must start with SELECT or WITH"}
	}

	if m := forbiddenPattern.FindString(normalized); m != "" {
		return "", &ShapeError{Reason: fmt.Sprintf("forbidden keyword %q", strings.ToUpper(m))}
	}

	return normalized, nil
}
