package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var peopleSchema = Schema{
	Name:    "people",
	Version: 1,
	Fields: []SchemaField{
		{Name: "id", Type: "long"},
		{Name: "name", Type: "string"},
		{Name: "address", Type: "struct", Children: []SchemaField{
			{Name: "city", Type: "string"},
		}},
	},
}

func TestSchemaPaths(t *testing.T) {
	assert.Equal(t, []string{"id", "name", "address", "address.city"}, peopleSchema.Paths())
	assert.True(t, peopleSchema.HasPath("address.city"))
	assert.False(t, peopleSchema.HasPath("address.zip"))
	assert.False(t, peopleSchema.HasPath("id.city"))
}

func TestTransitiveFields(t *testing.T) {
	rules := []ConformanceRule{
		{Type: "UppercaseConformanceRule", Order: 0, InputColumn: "name", OutputColumn: "name_upper"},
		{Type: DropRuleType, Order: 1, OutputColumn: "id"},
		{Type: "LiteralConformanceRule", Order: 2, OutputColumn: "source", Value: "crm"},
	}

	tests := []struct {
		name    string
		order   int
		want    []string
		missing []string
	}{
		{name: "first rule sees the schema", order: 0, want: []string{"id", "name", "address.city"}, missing: []string{"name_upper"}},
		{name: "outputs of earlier rules", order: 1, want: []string{"id", "name_upper"}},
		{name: "dropped columns disappear", order: 2, want: []string{"name_upper"}, missing: []string{"id", "source"}},
		{name: "appended rule sees everything", order: 3, want: []string{"source", "name_upper"}, missing: []string{"id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := NewSchemaContext(peopleSchema, rules, tt.order)
			for _, f := range tt.want {
				assert.True(t, sc.Has(f), "expected %s", f)
			}
			for _, f := range tt.missing {
				assert.False(t, sc.Has(f), "unexpected %s", f)
			}
		})
	}
}

func TestRequireHelpers(t *testing.T) {
	sc := NewSchemaContext(peopleSchema, nil, 0)

	t.Run("value", func(t *testing.T) {
		res := ValidationResult{Valid: true}
		assert.False(t, RequireValue(&res, "value", "  "))
		assert.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "value: required field is empty", res.Errors[0].Error())
	})

	t.Run("existing", func(t *testing.T) {
		res := ValidationResult{Valid: true}
		RequireExisting(&res, sc, "inputColumn", "address.city")
		assert.True(t, res.Valid)
		RequireExisting(&res, sc, "inputColumn", "zip")
		assert.False(t, res.Valid)
		assert.Equal(t, "column not found in schema", res.Errors[0].Message)
	})

	t.Run("new", func(t *testing.T) {
		res := ValidationResult{Valid: true}
		RequireNew(&res, sc, "outputColumn", "id")
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "id", res.Errors[0].Value)
	})

	t.Run("one of", func(t *testing.T) {
		res := ValidationResult{Valid: true}
		RequireOneOf(&res, "outputDataType", "STRING", DataTypes)
		assert.True(t, res.Valid)
		RequireOneOf(&res, "outputDataType", "varchar", DataTypes)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Errors[0].Message, "invalid enum value")
	})
}

func TestSubmitError(t *testing.T) {
	err := &SubmitError{
		Errors: []ValidationError{{Field: "outputColumn", Message: "required field is empty"}},
		cause:  ErrValidationFailed,
	}
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Equal(t, "rule validation failed: outputColumn: required field is empty", err.Error())
}

func TestExportFilename(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{mime: "application/json", want: "people-v3.json"},
		{mime: "application/json; charset=utf-8", want: "people-v3.json"},
		{mime: "application/octet-stream", want: "people-v3.cob"},
		{mime: "text/plain", want: "people-v3"},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, ExportFilename("people", 3, tt.mime))
		})
	}
}
