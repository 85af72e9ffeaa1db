package models

import "time"

// ConfidenceLevel classifies how a table or field's data was produced.
type ConfidenceLevel string

const (
	ConfidenceVerified   ConfidenceLevel = "verified"
	ConfidenceAIInferred ConfidenceLevel = "ai_inferred"
	ConfidenceComputed   ConfidenceLevel = "computed"
)

// ConfidenceNote annotates a result field whose source data is derived
// rather than directly observed.
type ConfidenceNote struct {
	Field string          `json:"field"`
	Level ConfidenceLevel `json:"level"`
	Table string          `json:"table,omitempty"`
}

// AxisSpec describes one chart axis.
type AxisSpec struct {
	Column string `json:"column"`
	Label  string `json:"label,omitempty"`
}

// VisualizationSpec tells the rendering layer how to draw the result.
type VisualizationSpec struct {
	Type     PresentationType `json:"type"`
	Template OutputTemplate   `json:"template,omitempty"`
	XAxis    *AxisSpec        `json:"x_axis,omitempty"`
	YAxis    *AxisSpec        `json:"y_axis,omitempty"`
	// LabelColumn and ValueColumns drive bar charts and ranked lists.
	LabelColumn  string   `json:"label_column,omitempty"`
	ValueColumns []string `json:"value_columns,omitempty"`
	Title        string   `json:"title,omitempty"`
}

// SubResult records one sub-query's outcome inside a stitched result,
// kept for audit and debugging.
type SubResult struct {
	SubQueryID string `json:"sub_query_id"`
	SQL        string `json:"sql,omitempty"`
	RowCount   int    `json:"row_count"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// QueryResult is the pipeline's final output for one turn.
type QueryResult struct {
	Success       bool          `json:"success"`
	SQL           string        `json:"sql,omitempty"`
	Rows          []Row         `json:"rows,omitempty"`
	RowCount      int           `json:"row_count"`
	ExecutionTime time.Duration `json:"execution_time_ms"`
	Message       string        `json:"message,omitempty"`
	Error         string        `json:"error,omitempty"`

	NeedsClarification bool           `json:"needs_clarification,omitempty"`
	Clarification      *Clarification `json:"clarification,omitempty"`

	Visualization *VisualizationSpec `json:"visualization,omitempty"`
	Narrative     string             `json:"narrative,omitempty"`
	Confidence    []ConfidenceNote   `json:"confidence,omitempty"`

	SubResults []SubResult `json:"sub_results,omitempty"`
	StitchKey  string      `json:"stitch_key,omitempty"`
}

// FailureResult builds a user-visible failure with a plain-language message.
// The raw error is carried separately and never shown as the message.
func FailureResult(message string, err error) *QueryResult {
	r := &QueryResult{Success: false, Message: message}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// ClarificationResult builds a non-data response asking the user to
// disambiguate.
func ClarificationResult(text string, c *Clarification) *QueryResult {
	return &QueryResult{
		Success:            true,
		NeedsClarification: true,
		Message:            text,
		Clarification:      c,
	}
}
