package rules

import (
	"strconv"

	"github.com/JonMunkholm/menas/internal/core"
)

// A mapping rule joins the dataset with a mapping table and copies
// targetAttribute of the matching mapping table row into outputColumn.
// Join conditions are validated from the session's editable set, not from
// the rule's attributeMappings, which are only written on commit.
func registerMapping(r *core.Registry) {
	r.Register(core.RuleTypeDescriptor{
		RuleType: Mapping,
		Label:    "Mapping",
		Fields: []string{
			"mappingTable", "mappingTableVersion", "joinConditions",
			"targetAttribute", "outputColumn",
		},
		HasSchemaFieldSelector: true,
		FieldTarget:            core.TargetTargetAttribute,
		Validate:               validateMapping,
	})
}

func validateMapping(rule core.ConformanceRule, sc core.SchemaContext) core.ValidationResult {
	res := core.ValidationResult{Valid: true}

	core.RequireValue(&res, "mappingTable", rule.MappingTable)
	if rule.MappingTableVersion <= 0 {
		res.Add("mappingTableVersion", strconv.Itoa(rule.MappingTableVersion), "required field is empty")
	}

	if len(sc.JoinConditions) == 0 {
		res.Add("joinConditions", "", "required field needs at least one join condition")
	}
	for i, jc := range sc.JoinConditions {
		prefix := "joinConditions[" + strconv.Itoa(i) + "]."
		core.RequireExisting(&res, sc, prefix+"datasetField", jc.DatasetField)
		if core.RequireValue(&res, prefix+"mappingTableField", jc.MappingTableField) &&
			sc.MappingTable != nil && !sc.MappingTable.HasPath(jc.MappingTableField) {
			res.Add(prefix+"mappingTableField", jc.MappingTableField, "column not found in mapping table schema")
		}
	}

	if core.RequireValue(&res, "targetAttribute", rule.TargetAttribute) &&
		sc.MappingTable != nil && !sc.MappingTable.HasPath(rule.TargetAttribute) {
		res.Add("targetAttribute", rule.TargetAttribute, "column not found in mapping table schema")
	}

	core.RequireNew(&res, sc, "outputColumn", rule.OutputColumn)
	return res
}
