package rules

import "github.com/JonMunkholm/menas/internal/core"

// Rules that read one existing column and write a new one.

func registerCasting(r *core.Registry) {
	r.Register(core.RuleTypeDescriptor{
		RuleType:               Casting,
		Label:                  "Casting",
		Fields:                 []string{"inputColumn", "outputColumn", "outputDataType"},
		HasSchemaFieldSelector: true,
		FieldTarget:            core.TargetInputColumn,
		Validate: func(rule core.ConformanceRule, sc core.SchemaContext) core.ValidationResult {
			res := validateSingleInput(rule, sc)
			core.RequireOneOf(&res, "outputDataType", rule.OutputDataType, core.DataTypes)
			return res
		},
	})
}

func registerNegation(r *core.Registry) {
	r.Register(core.RuleTypeDescriptor{
		RuleType:               Negation,
		Label:                  "Negation",
		Fields:                 []string{"inputColumn", "outputColumn"},
		HasSchemaFieldSelector: true,
		FieldTarget:            core.TargetInputColumn,
		Validate:               validateSingleInput,
	})
}

func registerSingleColumn(r *core.Registry) {
	r.Register(core.RuleTypeDescriptor{
		RuleType:               SingleColumn,
		Label:                  "Single Column",
		Fields:                 []string{"inputColumn", "inputColumnAlias", "outputColumn"},
		HasSchemaFieldSelector: true,
		FieldTarget:            core.TargetInputColumn,
		Validate: func(rule core.ConformanceRule, sc core.SchemaContext) core.ValidationResult {
			res := validateSingleInput(rule, sc)
			core.RequireValue(&res, "inputColumnAlias", rule.InputColumnAlias)
			return res
		},
	})
}

func registerUppercase(r *core.Registry) {
	r.Register(core.RuleTypeDescriptor{
		RuleType:               Uppercase,
		Label:                  "Uppercase",
		Fields:                 []string{"inputColumn", "outputColumn"},
		HasSchemaFieldSelector: true,
		FieldTarget:            core.TargetInputColumn,
		Validate:               validateSingleInput,
	})
}

// The dropped column is picked from the schema, so it lands in outputColumn.
func registerDrop(r *core.Registry) {
	r.Register(core.RuleTypeDescriptor{
		RuleType:               Drop,
		Label:                  "Drop",
		Fields:                 []string{"outputColumn"},
		HasSchemaFieldSelector: true,
		FieldTarget:            core.TargetOutputColumn,
		Validate: func(rule core.ConformanceRule, sc core.SchemaContext) core.ValidationResult {
			res := core.ValidationResult{Valid: true}
			core.RequireExisting(&res, sc, "outputColumn", rule.OutputColumn)
			return res
		},
	})
}

func validateSingleInput(rule core.ConformanceRule, sc core.SchemaContext) core.ValidationResult {
	res := core.ValidationResult{Valid: true}
	core.RequireExisting(&res, sc, "inputColumn", rule.InputColumn)
	core.RequireNew(&res, sc, "outputColumn", rule.OutputColumn)
	return res
}
