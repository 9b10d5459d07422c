package rules

import (
	"strconv"

	"github.com/JonMunkholm/menas/internal/core"
)

// minConcatColumns is the smallest useful concatenation.
const minConcatColumns = 2

func registerConcatenation(r *core.Registry) {
	r.Register(core.RuleTypeDescriptor{
		RuleType: Concatenation,
		Label:    "Concatenation",
		Fields:   []string{"inputColumns", "outputColumn"},
		Validate: func(rule core.ConformanceRule, sc core.SchemaContext) core.ValidationResult {
			res := core.ValidationResult{Valid: true}
			if len(rule.InputColumns) < minConcatColumns {
				res.Add("inputColumns", strconv.Itoa(len(rule.InputColumns)), "required field needs at least 2 columns")
			}
			for i, col := range rule.InputColumns {
				core.RequireExisting(&res, sc, "inputColumns["+strconv.Itoa(i)+"]", col)
			}
			core.RequireNew(&res, sc, "outputColumn", rule.OutputColumn)
			return res
		},
	})
}

func registerLiteral(r *core.Registry) {
	r.Register(core.RuleTypeDescriptor{
		RuleType: Literal,
		Label:    "Literal",
		Fields:   []string{"outputColumn", "value"},
		Validate: func(rule core.ConformanceRule, sc core.SchemaContext) core.ValidationResult {
			res := core.ValidationResult{Valid: true}
			core.RequireNew(&res, sc, "outputColumn", rule.OutputColumn)
			core.RequireValue(&res, "value", rule.Value)
			return res
		},
	})
}

func registerSparkSessionConf(r *core.Registry) {
	r.Register(core.RuleTypeDescriptor{
		RuleType: SparkSessionConf,
		Label:    "Spark Session Configuration",
		Fields:   []string{"sparkConfKey", "outputColumn"},
		Validate: func(rule core.ConformanceRule, sc core.SchemaContext) core.ValidationResult {
			res := core.ValidationResult{Valid: true}
			core.RequireNew(&res, sc, "outputColumn", rule.OutputColumn)
			core.RequireValue(&res, "sparkConfKey", rule.SparkConfKey)
			return res
		},
	})
}
