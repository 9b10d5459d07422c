package core

import (
	"fmt"
	"sync"
)

// ValidateFunc checks a rule against the schema it will run on.
type ValidateFunc func(rule ConformanceRule, sc SchemaContext) ValidationResult

// RuleTypeDescriptor describes one conformance rule type.
type RuleTypeDescriptor struct {
	RuleType string   // Wire discriminator: "CastingConformanceRule"
	Label    string   // Display name: "Casting"
	Fields   []string // Payload fields shown by the form

	// HasSchemaFieldSelector is true when the form lets the user pick a
	// dataset or mapping table field from a schema tree.
	HasSchemaFieldSelector bool

	// FieldTarget is where a schema-field pick lands for this type.
	FieldTarget FieldTarget

	Validate ValidateFunc
}

// Registry holds rule type descriptors in registration order.
// It is read-only once initialization is done.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byType map[string]RuleTypeDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]RuleTypeDescriptor)}
}

// Register adds a descriptor to the registry.
// Panics if the rule type is already registered.
func (r *Registry) Register(d RuleTypeDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byType[d.RuleType]; exists {
		panic(fmt.Sprintf("rule type already registered: %s", d.RuleType))
	}
	if d.FieldTarget == "" {
		d.FieldTarget = TargetInputColumn
	}
	if d.Validate == nil {
		d.Validate = func(ConformanceRule, SchemaContext) ValidationResult {
			return ValidationResult{Valid: true}
		}
	}

	r.byType[d.RuleType] = d
	r.order = append(r.order, d.RuleType)
}

// DescriptorFor returns the descriptor for a rule type.
func (r *Registry) DescriptorFor(ruleType string) (RuleTypeDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byType[ruleType]
	if !ok {
		return RuleTypeDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownRuleType, ruleType)
	}
	return d, nil
}

// All returns every descriptor in registration order.
func (r *Registry) All() []RuleTypeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RuleTypeDescriptor, len(r.order))
	for i, t := range r.order {
		out[i] = r.byType[t]
	}
	return out
}

// Default returns the first registered descriptor.
func (r *Registry) Default() (RuleTypeDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return RuleTypeDescriptor{}, fmt.Errorf("%w: registry is empty", ErrUnknownRuleType)
	}
	return r.byType[r.order[0]], nil
}

// HasSchemaFieldSelector reports whether the rule type's form has a schema
// field selector. Unknown types report false.
func (r *Registry) HasSchemaFieldSelector(ruleType string) bool {
	d, err := r.DescriptorFor(ruleType)
	return err == nil && d.HasSchemaFieldSelector
}

// Len returns the number of registered rule types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry the rules package
// populates at init time.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a descriptor to the default registry.
func Register(d RuleTypeDescriptor) {
	defaultRegistry.Register(d)
}

// DescriptorFor looks a rule type up in the default registry.
func DescriptorFor(ruleType string) (RuleTypeDescriptor, error) {
	return defaultRegistry.DescriptorFor(ruleType)
}

// All returns the default registry's descriptors in registration order.
func All() []RuleTypeDescriptor {
	return defaultRegistry.All()
}
