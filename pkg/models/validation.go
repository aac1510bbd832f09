package models

import "time"

// Layer identifies one validation phase.
type Layer string

const (
	LayerStructure     Layer = "structure"
	LayerBusiness      Layer = "business"
	LayerCompatibility Layer = "compatibility"
	LayerQuality       Layer = "quality"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Complexity classifies the size of a workflow definition.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ValidationError is a single issue produced by a validator. Values are
// immutable once produced.
type ValidationError struct {
	Layer      Layer    `json:"layer"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	NodeID     string   `json:"node_id,omitempty"`
	Path       string   `json:"path,omitempty"`
	Severity   Severity `json:"severity"`
	Fixable    bool     `json:"fixable"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Blocking reports whether the issue prevents downstream validation layers
// from running.
func (e ValidationError) Blocking() bool {
	return e.Severity == SeverityCritical || e.Severity == SeverityHigh
}

// StageResult captures the outcome of one quality validation stage.
type StageResult struct {
	Stage    string        `json:"stage"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
}

// ValidationResult aggregates the issues found by one or more validators.
// Score, Confidence, Complexity and Stages are populated only by the quality
// validator.
type ValidationResult struct {
	Valid       bool              `json:"valid"`
	Errors      []ValidationError `json:"errors"`
	Warnings    []ValidationError `json:"warnings"`
	Suggestions []ValidationError `json:"suggestions"`
	Score       int               `json:"score,omitempty"`
	Confidence  int               `json:"confidence,omitempty"`
	Complexity  Complexity        `json:"complexity,omitempty"`
	Stages      []StageResult     `json:"stages,omitempty"`
}

// NewValidationResult returns an empty, valid result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:       true,
		Errors:      []ValidationError{},
		Warnings:    []ValidationError{},
		Suggestions: []ValidationError{},
	}
}

// Add routes an issue into the errors, warnings or suggestions bucket based on
// its severity and clears Valid when the issue is blocking.
func (r *ValidationResult) Add(issue ValidationError) {
	switch issue.Severity {
	case SeverityCritical, SeverityHigh:
		r.Errors = append(r.Errors, issue)
		r.Valid = false
	case SeverityMedium:
		r.Warnings = append(r.Warnings, issue)
	case SeverityLow:
		r.Suggestions = append(r.Suggestions, issue)
	}
}

// HasBlocking reports whether any collected error blocks downstream layers.
func (r *ValidationResult) HasBlocking() bool {
	for _, issue := range r.Errors {
		if issue.Blocking() {
			return true
		}
	}

	return false
}

// FixableErrors returns the subset of errors flagged as auto-fixable.
func (r *ValidationResult) FixableErrors() []ValidationError {
	fixable := make([]ValidationError, 0)

	for _, issue := range r.Errors {
		if issue.Fixable {
			fixable = append(fixable, issue)
		}
	}

	return fixable
}

// AutoFixResult records one repair applied by the auto-fixer.
type AutoFixResult struct {
	Code        string   `json:"code"`
	NodeIDs     []string `json:"node_ids,omitempty"`
	Description string   `json:"description"`
}
