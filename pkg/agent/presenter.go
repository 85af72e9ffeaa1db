package agent

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
	"github.com/arcadia-ai/dataagent/pkg/semantics"
	"github.com/arcadia-ai/dataagent/pkg/sql"
)

// chartRowCeiling is the row count above which results render as a table
// rather than a bar chart.
const chartRowCeiling = 15

// narrativeItems caps how many rows the narrative enumerates.
const narrativeItems = 5

var rankingPattern = regexp.MustCompile(`(?i)\b(top|best|most|highest|largest|biggest|worst|lowest)\b`)

var dateColumnPattern = regexp.MustCompile(`(?i)(_at|_date|^date$|month|week|day|quarter|year)$`)

// columnRole classifies a result column for presentation decisions.
type columnRole int

const (
	roleLabel columnRole = iota
	roleNumeric
	roleDate
	roleOther
)

// columnProfile is the per-column classification over a result set.
type columnProfile struct {
	Name string
	Role columnRole
}

// Presenter classifies results into presentation types deterministically
// and builds the narrative, chart spec, and confidence footnotes. Same
// result shape, same output: no model calls here.
type Presenter struct {
	layer  *semantics.Layer
	logger *zap.Logger
}

// NewPresenter creates a presenter over the semantic layer's confidence
// registry.
func NewPresenter(layer *semantics.Layer, logger *zap.Logger) *Presenter {
	return &Presenter{
		layer:  layer,
		logger: logger.Named("presenter"),
	}
}

// RowContractRetry checks the expected-row-count contract: when the plan
// expected more rows than arrived and the statement's LIMIT is what's
// capping them, it returns the statement with the LIMIT raised. The caller
// re-executes at most once; a second shortfall is accepted as the real
// answer.
func (p *Presenter) RowContractRetry(plan *models.QueryPlan, executedSQL string, rowCount int) (string, bool) {
	if plan.ExpectedRowCount <= 0 || rowCount >= plan.ExpectedRowCount {
		return "", false
	}
	limit, ok := sql.LimitValue(executedSQL)
	if !ok || limit >= plan.ExpectedRowCount {
		return "", false
	}
	raised := sql.RaiseLimit(executedSQL, plan.ExpectedRowCount)
	p.logger.Debug("row-count contract retry",
		zap.Int("expected", plan.ExpectedRowCount),
		zap.Int("got", rowCount),
		zap.Int("old_limit", limit))
	return raised, true
}

// Present fills in the result's visualization spec, narrative, and
// confidence footnotes.
func (p *Presenter) Present(plan *models.QueryPlan, result *models.QueryResult) {
	if !result.Success || len(result.Rows) == 0 {
		if result.Success && result.Message == "" {
			result.Message = "No matching data was found."
		}
		return
	}

	profiles := profileColumns(result.Rows)
	ptype := p.classify(plan, result.Rows, profiles)
	spec := &models.VisualizationSpec{
		Type:     ptype,
		Template: p.template(plan, ptype, result.Rows, profiles),
	}
	p.bindAxes(spec, profiles)

	result.Visualization = spec
	result.Narrative = p.narrative(plan, ptype, result.Rows, profiles)
	result.Confidence = p.confidenceNotes(plan, profiles)
}

// classify applies the deterministic presentation tree. An explicit hint
// from the question always wins over the shape-based rules, except that a
// single row is always a detail view.
func (p *Presenter) classify(plan *models.QueryPlan, rows []models.Row, profiles []columnProfile) models.PresentationType {
	if len(rows) == 1 {
		return models.PresentationDetail
	}
	if plan.PresentationHint != "" {
		return plan.PresentationHint
	}

	hasDate := hasRole(profiles, roleDate)
	hasNumeric := hasRole(profiles, roleNumeric)
	hasLabel := hasRole(profiles, roleLabel)

	switch {
	case hasDate && hasNumeric && len(rows) >= 3:
		return models.PresentationLineChart
	case hasLabel && len(rows) <= chartRowCeiling && rankingPattern.MatchString(plan.Intent):
		return models.PresentationBarChart
	case len(rows) > chartRowCeiling:
		return models.PresentationTable
	case hasLabel && hasNumeric:
		return models.PresentationBarChart
	default:
		return models.PresentationTable
	}
}

// template runs the second classification pass, picking an output template
// for the rendering layer.
func (p *Presenter) template(plan *models.QueryPlan, ptype models.PresentationType, rows []models.Row, profiles []columnProfile) models.OutputTemplate {
	numericCount := countRole(profiles, roleNumeric)

	switch {
	case ptype == models.PresentationDetail && numericCount >= 3:
		return models.TemplateMetricCards
	case ptype == models.PresentationDetail:
		return models.TemplateEntityProfile
	case rankingPattern.MatchString(plan.Intent) && hasRole(profiles, roleLabel):
		return models.TemplateRankedList
	case ptype == models.PresentationTable && len(rows) <= 5 && numericCount >= 2:
		return models.TemplateComparisonTable
	default:
		return ""
	}
}

// bindAxes picks chart axes and label/value columns from the profiles.
func (p *Presenter) bindAxes(spec *models.VisualizationSpec, profiles []columnProfile) {
	switch spec.Type {
	case models.PresentationLineChart:
		if name, ok := firstRole(profiles, roleDate); ok {
			spec.XAxis = &models.AxisSpec{Column: name}
		}
		if name, ok := firstRole(profiles, roleNumeric); ok {
			spec.YAxis = &models.AxisSpec{Column: name}
		}
	case models.PresentationBarChart:
		if name, ok := firstRole(profiles, roleLabel); ok {
			spec.LabelColumn = name
			spec.XAxis = &models.AxisSpec{Column: name}
		}
		if name, ok := firstRole(profiles, roleNumeric); ok {
			spec.YAxis = &models.AxisSpec{Column: name}
		}
	}
	for _, prof := range profiles {
		if prof.Role == roleNumeric {
			spec.ValueColumns = append(spec.ValueColumns, prof.Name)
		}
	}
	if spec.LabelColumn == "" {
		if name, ok := firstRole(profiles, roleLabel); ok {
			spec.LabelColumn = name
		}
	}
}

// narrative renders a short plain-language summary of the result.
func (p *Presenter) narrative(plan *models.QueryPlan, ptype models.PresentationType, rows []models.Row, profiles []columnProfile) string {
	label, hasLabel := firstRole(profiles, roleLabel)
	numeric, hasNumeric := firstRole(profiles, roleNumeric)

	if ptype == models.PresentationDetail {
		return keyValueNarrative(rows[0])
	}

	if hasLabel && hasNumeric && rankingPattern.MatchString(plan.Intent) {
		var b strings.Builder
		n := len(rows)
		if n > narrativeItems {
			n = narrativeItems
		}
		for i := 0; i < n; i++ {
			lv, _ := rows[i].Get(label)
			nv, _ := rows[i].Get(numeric)
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, lv.Text(), nv.Text())
		}
		if len(rows) > narrativeItems {
			fmt.Fprintf(&b, "…and %d more.\n", len(rows)-narrativeItems)
		}
		return strings.TrimSpace(b.String())
	}

	return fmt.Sprintf("%d rows returned.", len(rows))
}

// keyValueNarrative renders a single row as "name: value" lines in column
// order.
func keyValueNarrative(row models.Row) string {
	var b strings.Builder
	for _, f := range row {
		if f.Value.Kind == models.KindObject || f.Value.Kind == models.KindArray {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value.Text())
	}
	return strings.TrimSpace(b.String())
}

// confidenceNotes attaches footnotes for columns whose source table the
// confidence registry marks as inferred or computed. Verified is the
// default and carries no note.
func (p *Presenter) confidenceNotes(plan *models.QueryPlan, profiles []columnProfile) []models.ConfidenceNote {
	var notes []models.ConfidenceNote
	for _, prof := range profiles {
		for _, table := range plan.TablesNeeded {
			level := p.layer.ConfidenceFor(table, prof.Name)
			if level == models.ConfidenceVerified {
				continue
			}
			notes = append(notes, models.ConfidenceNote{
				Field: prof.Name,
				Level: level,
				Table: table,
			})
			break
		}
	}
	return notes
}

// profileColumns classifies each column by name and by value kind across
// the first row. Column order follows the row.
func profileColumns(rows []models.Row) []columnProfile {
	if len(rows) == 0 {
		return nil
	}
	first := rows[0]
	profiles := make([]columnProfile, 0, len(first))
	for _, f := range first {
		profiles = append(profiles, columnProfile{
			Name: f.Name,
			Role: classifyColumn(f.Name, f.Value),
		})
	}
	return profiles
}

func classifyColumn(name string, v models.Value) columnRole {
	if dateColumnPattern.MatchString(name) {
		return roleDate
	}
	switch v.Kind {
	case models.KindNumber:
		return roleNumeric
	case models.KindString:
		if looksLikeDate(v.Str) {
			return roleDate
		}
		return roleLabel
	case models.KindBool:
		return roleLabel
	default:
		return roleOther
	}
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}(-\d{2})?([T ]|$)`)

func looksLikeDate(s string) bool {
	return datePattern.MatchString(s)
}

func hasRole(profiles []columnProfile, role columnRole) bool {
	_, ok := firstRole(profiles, role)
	return ok
}

func countRole(profiles []columnProfile, role columnRole) int {
	n := 0
	for _, p := range profiles {
		if p.Role == role {
			n++
		}
	}
	return n
}

func firstRole(profiles []columnProfile, role columnRole) (string, bool) {
	for _, p := range profiles {
		if p.Role == role {
			return p.Name, true
		}
	}
	return "", false
}
