package sql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultRowLimit caps result size when the generated SQL omits a LIMIT.
const DefaultRowLimit = 100

var limitPattern = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\b`)

// EnsureLimit guarantees a LIMIT clause is present, appending the default
// cap when absent.
func EnsureLimit(sqlQuery string, defaultLimit int) string {
	if defaultLimit <= 0 {
		defaultLimit = DefaultRowLimit
	}
	if limitPattern.MatchString(sqlQuery) {
		return sqlQuery
	}
	return strings.TrimRight(sqlQuery, " \t\n\r") + fmt.Sprintf(" LIMIT %d", defaultLimit)
}

// LimitValue extracts the last LIMIT value in the statement, which for a
// multi-clause query is the outermost limit. The second return is false if
// no LIMIT is present.
func LimitValue(sqlQuery string) (int, bool) {
	matches := limitPattern.FindAllStringSubmatch(sqlQuery, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// RaiseLimit rewrites every LIMIT clause lower than n up to n. Used by the
// row-count contract retry to repair an under-sized LIMIT in place.
func RaiseLimit(sqlQuery string, n int) string {
	return limitPattern.ReplaceAllStringFunc(sqlQuery, func(m string) string {
		sub := limitPattern.FindStringSubmatch(m)
		cur, err := strconv.Atoi(sub[1])
		if err != nil || cur >= n {
			return m
		}
		return fmt.Sprintf("LIMIT %d", n)
	})
}
