package agent

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
)

// SubQueryIDColumn tags each row of an append_rows result with its source
// sub-query.
const SubQueryIDColumn = "sub_query_id"

// ErrNoSubResults is returned when every sub-query of a decomposed plan
// failed.
var ErrNoSubResults = errors.New("all sub-queries failed")

// SubOutcome is one sub-query's execution outcome handed to the stitcher.
type SubOutcome struct {
	Sub      *models.SubQuery
	SQL      string
	Rows     []models.Row
	RowCount int
	Elapsed  time.Duration
	Err      error
}

// Stitcher merges the outcomes of a decomposed plan into one result set.
type Stitcher struct {
	logger *zap.Logger
}

// NewStitcher creates a stitcher.
func NewStitcher(logger *zap.Logger) *Stitcher {
	return &Stitcher{logger: logger.Named("stitcher")}
}

// Stitch combines sub-query outcomes per the plan's strategy. Failed
// sub-queries are recorded in SubResults and excluded from the merge; when
// every sub-query failed the turn fails as a whole. A single successful
// outcome passes through unchanged.
func (s *Stitcher) Stitch(plan *models.DecomposedPlan, outcomes []SubOutcome) (*models.QueryResult, error) {
	if len(outcomes) == 0 {
		return nil, ErrNoSubResults
	}

	result := &models.QueryResult{
		Success:   true,
		StitchKey: plan.StitchKey,
	}

	var succeeded []SubOutcome
	for _, o := range outcomes {
		sr := models.SubResult{
			SubQueryID: o.Sub.ID,
			SQL:        o.SQL,
			RowCount:   o.RowCount,
			Success:    o.Err == nil,
		}
		if o.Err != nil {
			sr.Error = o.Err.Error()
		} else {
			succeeded = append(succeeded, o)
		}
		result.SubResults = append(result.SubResults, sr)
		result.ExecutionTime += o.Elapsed
	}

	if len(succeeded) == 0 {
		return nil, ErrNoSubResults
	}

	// One surviving result set needs no merging; its rows pass through
	// untouched.
	if len(succeeded) == 1 {
		only := succeeded[0]
		result.SQL = only.SQL
		result.Rows = only.Rows
		result.RowCount = only.RowCount
		return result, nil
	}

	switch plan.StitchStrategy {
	case models.StitchNested:
		result.Rows = s.stitchNested(succeeded)
	case models.StitchAppendRows:
		result.Rows = s.stitchAppendRows(succeeded)
	default:
		result.Rows = s.stitchMergeColumns(succeeded)
	}

	result.RowCount = len(result.Rows)
	result.SQL = combinedSQL(succeeded)

	s.logger.Debug("sub-results stitched",
		zap.String("strategy", string(plan.StitchStrategy)),
		zap.Int("sub_queries", len(outcomes)),
		zap.Int("rows", result.RowCount))

	return result, nil
}

// stitchMergeColumns widens each anchor row with columns from matching
// dependent rows. On column-name collisions the anchor's value wins, and
// anchor rows with no match stay as they are: no null padding.
func (s *Stitcher) stitchMergeColumns(succeeded []SubOutcome) []models.Row {
	anchor := succeeded[0]
	merged := make([]models.Row, len(anchor.Rows))

	for i, row := range anchor.Rows {
		out := row.Clone()
		key, ok := row.Get(anchor.Sub.JoinKey)
		if ok {
			for _, dep := range succeeded[1:] {
				match, found := findByKey(dep.Rows, dep.Sub.JoinKey, key)
				if !found {
					continue
				}
				for _, f := range match {
					if f.Name == dep.Sub.JoinKey || out.Has(f.Name) {
						continue
					}
					out = out.Set(f.Name, f.Value)
				}
			}
		}
		merged[i] = out
	}
	return merged
}

// stitchNested attaches each dependent sub-query's matching rows to the
// anchor row as a labeled array, with the join key stripped from nested
// rows. A row with no matches gets an empty array, never an absent field.
func (s *Stitcher) stitchNested(succeeded []SubOutcome) []models.Row {
	anchor := succeeded[0]
	nested := make([]models.Row, len(anchor.Rows))

	for i, row := range anchor.Rows {
		out := row.Clone()
		key, hasKey := row.Get(anchor.Sub.JoinKey)
		for _, dep := range succeeded[1:] {
			label := nestLabel(dep.Sub)
			values := []models.Value{}
			if hasKey {
				for _, depRow := range dep.Rows {
					if depKey, ok := depRow.Get(dep.Sub.JoinKey); ok && sameKey(key, depKey) {
						values = append(values, models.Object(depRow.Without(dep.Sub.JoinKey)))
					}
				}
			}
			out = out.Set(label, models.Array(values))
		}
		nested[i] = out
	}
	return nested
}

// stitchAppendRows concatenates every sub-query's rows, tagging each with
// its source sub-query ID.
func (s *Stitcher) stitchAppendRows(succeeded []SubOutcome) []models.Row {
	var rows []models.Row
	for _, o := range succeeded {
		for _, row := range o.Rows {
			rows = append(rows, row.Clone().Set(SubQueryIDColumn, models.String(o.Sub.ID)))
		}
	}
	return rows
}

func findByKey(rows []models.Row, keyColumn string, key models.Value) (models.Row, bool) {
	for _, row := range rows {
		if v, ok := row.Get(keyColumn); ok && sameKey(key, v) {
			return row, true
		}
	}
	return nil, false
}

// sameKey compares join-key values textually so a numeric ID matches its
// string rendering across sub-queries.
func sameKey(a, b models.Value) bool {
	if a.Kind == models.KindNull || b.Kind == models.KindNull {
		return false
	}
	return a.Text() == b.Text()
}

// nestLabel is the field name for a nested array. Sub-query IDs are unique
// within a plan, so two sub-queries over the same table never collide on
// the stitched row.
func nestLabel(sub *models.SubQuery) string {
	return sub.ID
}

func combinedSQL(succeeded []SubOutcome) string {
	parts := make([]string, 0, len(succeeded))
	for _, o := range succeeded {
		parts = append(parts, fmt.Sprintf("-- %s\n%s", o.Sub.ID, o.SQL))
	}
	return strings.Join(parts, "\n\n")
}
