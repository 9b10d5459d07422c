package core

// validation.go provides the schema context rule validators run against.
//
// Validation happens against the transitive schema of the rule: the dataset
// schema plus every column produced by rules with a lower order, minus the
// columns those rules dropped. A rule may read what earlier rules wrote and
// may not write over an existing column.

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string `json:"field"`           // Draft field name
	Value   string `json:"value,omitempty"` // The invalid value
	Message string `json:"message"`         // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationResult contains the result of validating a rule.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Add records an error and marks the result invalid.
func (r *ValidationResult) Add(field, value, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
}

// SubmitError is returned by a submit that did not pass validation.
// It unwraps to ErrValidationFailed, or to ErrDuplicateMappingField when the
// join conditions could not be serialized.
type SubmitError struct {
	Errors []ValidationError
	cause  error
}

func (e *SubmitError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		parts[i] = ve.Error()
	}
	return fmt.Sprintf("%v: %s", e.cause, strings.Join(parts, "; "))
}

func (e *SubmitError) Unwrap() error {
	return e.cause
}

// SchemaContext is what a validator may look at besides the rule itself.
type SchemaContext struct {
	// Fields is the transitive field set visible at the rule's order.
	Fields map[string]struct{}

	// MappingTable is the resolved mapping table schema, nil when none is
	// resolved or the rule is not a mapping rule.
	MappingTable *Schema

	JoinConditions []JoinCondition
	Conformance    []ConformanceRule
	IsEdit         bool
}

// Has reports whether path is visible in the transitive schema.
func (sc SchemaContext) Has(path string) bool {
	_, ok := sc.Fields[path]
	return ok
}

// FieldNames returns the visible paths sorted.
func (sc SchemaContext) FieldNames() []string {
	out := make([]string, 0, len(sc.Fields))
	for p := range sc.Fields {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// TransitiveFields computes the fields visible to a rule at order.
func TransitiveFields(schema Schema, rules []ConformanceRule, order int) map[string]struct{} {
	fields := make(map[string]struct{})
	for _, p := range schema.Paths() {
		fields[p] = struct{}{}
	}

	earlier := make([]ConformanceRule, 0, len(rules))
	for _, r := range rules {
		if r.Order < order {
			earlier = append(earlier, r)
		}
	}
	sort.SliceStable(earlier, func(i, j int) bool { return earlier[i].Order < earlier[j].Order })

	for _, r := range earlier {
		if r.OutputColumn == "" {
			continue
		}
		if r.Type == DropRuleType {
			delete(fields, r.OutputColumn)
			continue
		}
		fields[r.OutputColumn] = struct{}{}
	}
	return fields
}

// NewSchemaContext builds the context for validating rule in a list.
func NewSchemaContext(schema Schema, rules []ConformanceRule, order int) SchemaContext {
	return SchemaContext{
		Fields:      TransitiveFields(schema, rules, order),
		Conformance: rules,
	}
}

// RequireValue records a "required field is empty" error when value is blank.
// Returns false when the value is missing.
func RequireValue(res *ValidationResult, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		res.Add(field, "", "required field is empty")
		return false
	}
	return true
}

// RequireExisting checks that a column exists in the transitive schema.
func RequireExisting(res *ValidationResult, sc SchemaContext, field, column string) {
	if !RequireValue(res, field, column) {
		return
	}
	if !sc.Has(column) {
		res.Add(field, column, "column not found in schema")
	}
}

// RequireNew checks that an output column does not shadow an existing one.
func RequireNew(res *ValidationResult, sc SchemaContext, field, column string) {
	if !RequireValue(res, field, column) {
		return
	}
	if sc.Has(column) {
		res.Add(field, column, "column already exists in schema")
	}
}

// RequireOneOf checks that value is one of allowed.
func RequireOneOf(res *ValidationResult, field, value string, allowed []string) {
	if !RequireValue(res, field, value) {
		return
	}
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return
		}
	}
	res.Add(field, value, fmt.Sprintf("invalid enum value, must be one of: %s", strings.Join(allowed, ", ")))
}
