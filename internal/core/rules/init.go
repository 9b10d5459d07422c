// Package rules registers every conformance rule type with the core registry.
// Import this package to ensure all rule types are registered.
package rules

import "github.com/JonMunkholm/menas/internal/core"

// Rule type identifiers, in registration order. The first one is the
// default type of a new rule.
const (
	Casting          = "CastingConformanceRule"
	Concatenation    = "ConcatenationConformanceRule"
	Drop             = core.DropRuleType
	Literal          = "LiteralConformanceRule"
	Mapping          = core.MappingRuleType
	Negation         = "NegationConformanceRule"
	SingleColumn     = "SingleColumnConformanceRule"
	SparkSessionConf = "SparkSessionConfConformanceRule"
	Uppercase        = "UppercaseConformanceRule"
)

func init() {
	Register(core.DefaultRegistry())
}

// Register adds every rule type to r. Tests use it to fill a private
// registry.
func Register(r *core.Registry) {
	registerCasting(r)
	registerConcatenation(r)
	registerDrop(r)
	registerLiteral(r)
	registerMapping(r)
	registerNegation(r)
	registerSingleColumn(r)
	registerSparkSessionConf(r)
	registerUppercase(r)
}
