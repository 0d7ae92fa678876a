package nutrition

import (
	"fmt"
	"math"
)

// Validation codes reported by the per-mode schema.
const (
	CodeMissing   = "missing"
	CodeWrongType = "wrong_type"
	CodeEmpty     = "empty"
	CodeBadEnum   = "bad_enum"
)

// FieldIssue is a single validation finding for one field.
type FieldIssue struct {
	Field   string
	Code    string
	Message string
}

func (i FieldIssue) String() string {
	return fmt.Sprintf("%s: %s (%s)", i.Field, i.Message, i.Code)
}

// Report is the structured outcome of validating a decoded model response.
// Errors fail the parse; Warnings degrade individual fields but keep the
// result usable.
type Report struct {
	Errors   []FieldIssue
	Warnings []FieldIssue
}

func (r *Report) addError(field, code, msg string) {
	r.Errors = append(r.Errors, FieldIssue{Field: field, Code: code, Message: msg})
}

func (r *Report) addWarning(field, code, msg string) {
	r.Warnings = append(r.Warnings, FieldIssue{Field: field, Code: code, Message: msg})
}

// Valid reports whether the response passed all required checks.
func (r *Report) Valid() bool {
	return len(r.Errors) == 0
}

// schema validates a decoded response object for one analysis mode.
// Both modes share the same machinery; the mode only switches which field
// set is required.
type schema struct {
	mode Mode
}

// validate checks the decoded object against the mode's contract.
//
// Core fields (both modes, error level): healthScore integer, analysis
// string, pros/cons/recommendations lists.
//
// Photo mode (error level): caloriesEstimate non-empty string and
// calorieEstimationType a known enum value. The ingredientsBreakdown
// contents are checked element-wise at extraction time, not here, because a
// bad breakdown degrades instead of failing the parse.
//
// Text mode (warning level): the sustainability block must be present and
// well-typed; absence degrades to zero/empty downstream.
func (s schema) validate(obj map[string]any) *Report {
	report := &Report{}

	s.requireInteger(report, obj, "healthScore")
	s.requireString(report, obj, "analysis")
	s.requireList(report, obj, "pros", false)
	s.requireList(report, obj, "cons", false)
	s.requireList(report, obj, "recommendations", false)

	switch s.mode {
	case ModePhoto:
		s.validatePhoto(report, obj)
	default:
		s.validateText(report, obj)
	}

	return report
}

func (s schema) validatePhoto(report *Report, obj map[string]any) {
	v, ok := obj["caloriesEstimate"]
	if !ok {
		report.addError("caloriesEstimate", CodeMissing, "required in photo mode")
	} else if str, isStr := v.(string); !isStr {
		report.addError("caloriesEstimate", CodeWrongType, "must be a string")
	} else if str == "" {
		report.addError("caloriesEstimate", CodeEmpty, "must be non-empty")
	}

	v, ok = obj["calorieEstimationType"]
	if !ok {
		report.addError("calorieEstimationType", CodeMissing, "required in photo mode")
		return
	}
	str, isStr := v.(string)
	if !isStr || !ValidEstimationType(CalorieEstimationType(str)) {
		report.addError("calorieEstimationType", CodeBadEnum,
			fmt.Sprintf("must be one of %s, %s, %s", EstimationBreakdown, EstimationPer100g, EstimationPerServing))
	}
}

func (s schema) validateText(report *Report, obj map[string]any) {
	s.warnInteger(report, obj, "sustainabilityScore")
	s.warnString(report, obj, "sustainabilityAnalysis")
	s.warnList(report, obj, "sustainabilityPros")
	s.warnList(report, obj, "sustainabilityCons")
	s.warnList(report, obj, "sustainabilityRecommendations")
}

func (s schema) requireInteger(report *Report, obj map[string]any, field string) {
	v, ok := obj[field]
	if !ok {
		report.addError(field, CodeMissing, "required")
		return
	}
	if !isInteger(v) {
		report.addError(field, CodeWrongType, "must be an integer")
	}
}

func (s schema) requireString(report *Report, obj map[string]any, field string) {
	v, ok := obj[field]
	if !ok {
		report.addError(field, CodeMissing, "required")
		return
	}
	if _, isStr := v.(string); !isStr {
		report.addError(field, CodeWrongType, "must be a string")
	}
}

func (s schema) requireList(report *Report, obj map[string]any, field string, nonEmpty bool) {
	v, ok := obj[field]
	if !ok {
		report.addError(field, CodeMissing, "required")
		return
	}
	list, isList := v.([]any)
	if !isList {
		report.addError(field, CodeWrongType, "must be a list")
		return
	}
	if nonEmpty && len(list) == 0 {
		report.addError(field, CodeEmpty, "must be non-empty")
	}
}

func (s schema) warnInteger(report *Report, obj map[string]any, field string) {
	v, ok := obj[field]
	if !ok {
		report.addWarning(field, CodeMissing, "expected in text mode")
		return
	}
	if !isInteger(v) {
		report.addWarning(field, CodeWrongType, "must be an integer")
	}
}

func (s schema) warnString(report *Report, obj map[string]any, field string) {
	v, ok := obj[field]
	if !ok {
		report.addWarning(field, CodeMissing, "expected in text mode")
		return
	}
	if _, isStr := v.(string); !isStr {
		report.addWarning(field, CodeWrongType, "must be a string")
	}
}

func (s schema) warnList(report *Report, obj map[string]any, field string) {
	v, ok := obj[field]
	if !ok {
		report.addWarning(field, CodeMissing, "expected in text mode")
		return
	}
	if _, isList := v.([]any); !isList {
		report.addWarning(field, CodeWrongType, "must be a list")
	}
}

// isInteger reports whether a decoded JSON value is an integral number.
// encoding/json decodes all numbers to float64.
func isInteger(v any) bool {
	f, ok := v.(float64)
	if !ok {
		return false
	}
	return f == math.Trunc(f) && !math.IsInf(f, 0) && !math.IsNaN(f)
}
