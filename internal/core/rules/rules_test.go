package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/menas/internal/core"
)

func registry(t *testing.T) *core.Registry {
	t.Helper()
	r := core.NewRegistry()
	Register(r)
	return r
}

func TestRegisterOrder(t *testing.T) {
	r := registry(t)

	var types []string
	for _, d := range r.All() {
		types = append(types, d.RuleType)
	}
	assert.Equal(t, []string{
		Casting, Concatenation, Drop, Literal, Mapping,
		Negation, SingleColumn, SparkSessionConf, Uppercase,
	}, types)

	def, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, Casting, def.RuleType)
}

func TestDefaultRegistryIsPopulated(t *testing.T) {
	assert.Equal(t, 9, core.DefaultRegistry().Len())
	d, err := core.DescriptorFor(Mapping)
	require.NoError(t, err)
	assert.Equal(t, "Mapping", d.Label)
}

func TestFieldTargets(t *testing.T) {
	r := registry(t)

	tests := []struct {
		ruleType string
		selector bool
		target   core.FieldTarget
	}{
		{Mapping, true, core.TargetTargetAttribute},
		{Drop, true, core.TargetOutputColumn},
		{Casting, true, core.TargetInputColumn},
		{Negation, true, core.TargetInputColumn},
		{SingleColumn, true, core.TargetInputColumn},
		{Uppercase, true, core.TargetInputColumn},
		{Concatenation, false, core.TargetInputColumn},
		{Literal, false, core.TargetInputColumn},
		{SparkSessionConf, false, core.TargetInputColumn},
	}

	for _, tt := range tests {
		t.Run(tt.ruleType, func(t *testing.T) {
			d, err := r.DescriptorFor(tt.ruleType)
			require.NoError(t, err)
			assert.Equal(t, tt.selector, d.HasSchemaFieldSelector)
			assert.Equal(t, tt.target, d.FieldTarget)
		})
	}
}

var schema = core.Schema{
	Name:    "people",
	Version: 1,
	Fields: []core.SchemaField{
		{Name: "id", Type: "long"},
		{Name: "name", Type: "string"},
		{Name: "country", Type: "string"},
	},
}

var mappingSchema = core.Schema{
	Name:    "countries",
	Version: 1,
	Fields: []core.SchemaField{
		{Name: "code", Type: "string"},
		{Name: "label", Type: "string"},
	},
}

func TestValidate(t *testing.T) {
	r := registry(t)
	joins := []core.JoinCondition{{DatasetField: "country", MappingTableField: "code"}}

	tests := []struct {
		name       string
		rule       core.ConformanceRule
		joins      []core.JoinCondition
		wantFields []string
	}{
		{
			name: "casting valid",
			rule: core.ConformanceRule{Type: Casting, InputColumn: "id", OutputColumn: "id_str", OutputDataType: "string"},
		},
		{
			name:       "casting bad type and existing output",
			rule:       core.ConformanceRule{Type: Casting, InputColumn: "id", OutputColumn: "name", OutputDataType: "text"},
			wantFields: []string{"outputColumn", "outputDataType"},
		},
		{
			name:       "casting missing everything",
			rule:       core.ConformanceRule{Type: Casting},
			wantFields: []string{"inputColumn", "outputColumn", "outputDataType"},
		},
		{
			name: "concatenation valid",
			rule: core.ConformanceRule{Type: Concatenation, InputColumns: []string{"id", "name"}, OutputColumn: "key"},
		},
		{
			name:       "concatenation needs two existing columns",
			rule:       core.ConformanceRule{Type: Concatenation, InputColumns: []string{"nope"}, OutputColumn: "key"},
			wantFields: []string{"inputColumns", "inputColumns[0]"},
		},
		{
			name: "drop existing column",
			rule: core.ConformanceRule{Type: Drop, OutputColumn: "country"},
		},
		{
			name:       "drop unknown column",
			rule:       core.ConformanceRule{Type: Drop, OutputColumn: "zip"},
			wantFields: []string{"outputColumn"},
		},
		{
			name: "literal valid",
			rule: core.ConformanceRule{Type: Literal, OutputColumn: "source", Value: "crm"},
		},
		{
			name:       "literal without value",
			rule:       core.ConformanceRule{Type: Literal, OutputColumn: "source"},
			wantFields: []string{"value"},
		},
		{
			name:  "mapping valid",
			rule:  core.ConformanceRule{Type: Mapping, MappingTable: "countries", MappingTableVersion: 1, TargetAttribute: "label", OutputColumn: "country_label"},
			joins: joins,
		},
		{
			name:       "mapping without joins or table",
			rule:       core.ConformanceRule{Type: Mapping, TargetAttribute: "label", OutputColumn: "country_label"},
			wantFields: []string{"mappingTable", "mappingTableVersion", "joinConditions"},
		},
		{
			name:       "mapping fields outside mapping schema",
			rule:       core.ConformanceRule{Type: Mapping, MappingTable: "countries", MappingTableVersion: 1, TargetAttribute: "iso", OutputColumn: "country_label"},
			joins:      []core.JoinCondition{{DatasetField: "zip", MappingTableField: "postal"}},
			wantFields: []string{"joinConditions[0].datasetField", "joinConditions[0].mappingTableField", "targetAttribute"},
		},
		{
			name: "negation valid",
			rule: core.ConformanceRule{Type: Negation, InputColumn: "id", OutputColumn: "neg_id"},
		},
		{
			name:       "single column needs alias",
			rule:       core.ConformanceRule{Type: SingleColumn, InputColumn: "id", OutputColumn: "wrapped"},
			wantFields: []string{"inputColumnAlias"},
		},
		{
			name:       "spark conf needs key",
			rule:       core.ConformanceRule{Type: SparkSessionConf, OutputColumn: "app"},
			wantFields: []string{"sparkConfKey"},
		},
		{
			name:       "uppercase reads existing column",
			rule:       core.ConformanceRule{Type: Uppercase, InputColumn: "surname", OutputColumn: "surname_upper"},
			wantFields: []string{"inputColumn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := r.DescriptorFor(tt.rule.Type)
			require.NoError(t, err)

			sc := core.NewSchemaContext(schema, nil, 0)
			sc.JoinConditions = tt.joins
			if tt.rule.Type == Mapping {
				mt := mappingSchema
				sc.MappingTable = &mt
			}

			res := d.Validate(tt.rule, sc)
			var fields []string
			for _, e := range res.Errors {
				fields = append(fields, e.Field)
			}
			if len(tt.wantFields) == 0 {
				assert.True(t, res.Valid, "unexpected errors: %v", res.Errors)
				return
			}
			assert.False(t, res.Valid)
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestMappingWithoutResolvedSchema(t *testing.T) {
	d, err := registry(t).DescriptorFor(Mapping)
	require.NoError(t, err)

	sc := core.NewSchemaContext(schema, nil, 0)
	sc.JoinConditions = []core.JoinCondition{{DatasetField: "country", MappingTableField: "anything"}}
	rule := core.ConformanceRule{Type: Mapping, MappingTable: "countries", MappingTableVersion: 2, TargetAttribute: "whatever", OutputColumn: "out"}

	assert.True(t, d.Validate(rule, sc).Valid, "mapping table fields are only checked once resolved")
}
