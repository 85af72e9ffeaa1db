package models

// TurnType classifies how a question relates to the conversation so far.
type TurnType string

const (
	TurnNew        TurnType = "new"
	TurnFollowUp   TurnType = "follow_up"
	TurnPivot      TurnType = "pivot"
	TurnRefinement TurnType = "refinement"
)

// PresentationType is the deterministic classification of how results
// should be rendered.
type PresentationType string

const (
	PresentationDetail    PresentationType = "detail"
	PresentationTable     PresentationType = "table"
	PresentationBarChart  PresentationType = "bar_chart"
	PresentationLineChart PresentationType = "line_chart"
)

// OutputTemplate is a more specific layout that can override the generic
// chart/table choice.
type OutputTemplate string

const (
	TemplateRankedList      OutputTemplate = "ranked_list"
	TemplateComparisonTable OutputTemplate = "comparison_table"
	TemplateMetricCards     OutputTemplate = "metric_cards"
	TemplateEntityProfile   OutputTemplate = "entity_profile"
)

// Clarification is a structured request for the user to disambiguate.
// It is a normal response, never an error.
type Clarification struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// QueryPlan is the Planner's output for one turn.
type QueryPlan struct {
	TurnType      TurnType `json:"turn_type"`
	Intent        string   `json:"intent"`
	Domain        Domain   `json:"domain"`
	Ambiguous     bool     `json:"ambiguous"`
	ClarifyText   string   `json:"clarify_text,omitempty"`
	Clarification *Clarification `json:"clarification,omitempty"`

	TablesNeeded []string `json:"tables_needed"`

	// ResolvedReferences maps a symbolic reference in the question
	// ("their", "those zip codes") to the concrete values it resolved to.
	ResolvedReferences map[string][]string `json:"resolved_references,omitempty"`

	// ExpectedRowCount is parsed from quantifiers like "top 5"; zero means
	// no expectation. The Presenter verifies this against actual results.
	ExpectedRowCount int `json:"expected_row_count,omitempty"`

	PresentationHint PresentationType `json:"presentation_hint,omitempty"`
	TemplateHint     OutputTemplate   `json:"template_hint,omitempty"`

	// PriorSQL and EditInstruction drive edit-existing-SQL generation on
	// refinement turns.
	PriorSQL        string `json:"prior_sql,omitempty"`
	EditInstruction string `json:"edit_instruction,omitempty"`

	Decomposed *DecomposedPlan `json:"decomposed,omitempty"`
}

// NeedsClarification reports whether the plan must short-circuit to a
// clarification response instead of generation.
func (p *QueryPlan) NeedsClarification() bool {
	return p.Ambiguous || p.Clarification != nil
}

// StitchStrategy selects how multi-sub-query results are merged.
type StitchStrategy string

const (
	StitchMergeColumns StitchStrategy = "merge_columns"
	StitchNested       StitchStrategy = "nested"
	StitchAppendRows   StitchStrategy = "append_rows"
)

// ParseStitchStrategy returns the strategy for s, defaulting to
// merge_columns for anything unrecognized.
func ParseStitchStrategy(s string) StitchStrategy {
	switch StitchStrategy(s) {
	case StitchMergeColumns, StitchNested, StitchAppendRows:
		return StitchStrategy(s)
	default:
		return StitchMergeColumns
	}
}

// MaxSubQueries caps how many sub-queries a decomposed plan may carry.
const MaxSubQueries = 4

// SubQuery is one unit of a decomposed plan.
type SubQuery struct {
	ID           string   `json:"id"`
	Intent       string   `json:"intent"`
	Domain       Domain   `json:"domain,omitempty"`
	TablesNeeded []string `json:"tables_needed"`
	// DependsOn references other sub-query IDs whose results must be
	// available before this one runs.
	DependsOn []string `json:"depends_on,omitempty"`
	// JoinKey is the column used to match this sub-query's rows against the
	// anchor's rows during stitching. Always non-empty on a valid plan.
	JoinKey string `json:"join_key"`
}

// DecomposedPlan is a dependency-ordered multi-query plan.
type DecomposedPlan struct {
	SubQueries     []SubQuery     `json:"sub_queries"`
	StitchKey      string         `json:"stitch_key"`
	StitchStrategy StitchStrategy `json:"stitch_strategy"`
}

// Anchor returns the dependency-free first sub-query.
func (d *DecomposedPlan) Anchor() *SubQuery {
	if len(d.SubQueries) == 0 {
		return nil
	}
	return &d.SubQueries[0]
}
