// Package core provides the business logic for editing dataset conformance rules.
//
// This package is the heart of the console, containing all domain logic
// independent of any UI or transport layer. It can be used by web handlers,
// CLI tools, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Rule Type Registry: Registered at init time, each rule type has a field
//     list, a validator and a fixed schema-field routing target.
//   - Mapping Table Resolver: Fetches mapping table versions and schemas from
//     the data access collaborators.
//   - Join Condition Set: The editable (dataset field, mapping table field)
//     pairs of a MappingConformanceRule.
//   - Session: The add/edit workflow for a single rule on a dataset version.
//   - Conformance List: The ordered rules of a dataset version, the only
//     thing a session ever mutates.
//
// # Rule Type Registry
//
// Rule types are registered using [Registry.Register]. The rules subpackage
// registers the built-in types with the default registry:
//
//	core.Register(core.RuleTypeDescriptor{
//	    RuleType:    "UppercaseConformanceRule",
//	    Fields:      []string{"inputColumn", "outputColumn"},
//	    FieldTarget: core.TargetInputColumn,
//	    Validate:    validateUppercase,
//	})
//
// The first registered type is the default for new rules.
//
// # Session Lifecycle
//
//	Closed -> Opening -> Editing -> Validating -> Editing
//	                             -> Validating -> Committing -> Closed
//
// Every mapping table lookup captures a request token. Results that arrive
// after the token moved on (cancel, a newer selection, a type switch) are
// discarded and reported as [ErrStaleResolution].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - RULE001-RULE003: Rule type errors
//   - MT001-MT002: Mapping table errors
//   - SCH001: Schema errors
//   - JC001-JC002: Join condition errors
//   - SES001-SES005: Session errors
//   - VAL001-VAL004: Validation errors
//   - DB001-DB004: Storage errors
package core
