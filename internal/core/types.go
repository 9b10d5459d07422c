// Package core provides the business logic for editing dataset conformance rules.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"encoding/json"
	"strings"
	"time"
)

// Rule type identifiers the session treats specially.
const (
	MappingRuleType = "MappingConformanceRule"
	DropRuleType    = "DropConformanceRule"
)

// FieldTarget names the draft field a schema-field pick is written into.
type FieldTarget string

const (
	TargetInputColumn     FieldTarget = "inputColumn"
	TargetOutputColumn    FieldTarget = "outputColumn"
	TargetTargetAttribute FieldTarget = "targetAttribute"
)

// ConformanceRule is one transformation applied to a dataset. Type selects
// which of the payload fields are meaningful; the others stay zero.
type ConformanceRule struct {
	Type              string `json:"_t"`
	Order             int    `json:"order"`
	OutputColumn      string `json:"outputColumn,omitempty"`
	ControlCheckpoint bool   `json:"controlCheckpoint"`

	// Single input rules (Casting, Negation, SingleColumn, Uppercase)
	InputColumn      string `json:"inputColumn,omitempty"`
	InputColumnAlias string `json:"inputColumnAlias,omitempty"`
	OutputDataType   string `json:"outputDataType,omitempty"`

	// Concatenation
	InputColumns []string `json:"inputColumns,omitempty"`

	// Literal
	Value string `json:"value,omitempty"`

	// SparkSessionConf
	SparkConfKey string `json:"sparkConfKey,omitempty"`

	// Mapping
	MappingTable        string            `json:"mappingTable,omitempty"`
	MappingTableVersion int               `json:"mappingTableVersion,omitempty"`
	AttributeMappings   map[string]string `json:"attributeMappings,omitempty"`
	TargetAttribute     string            `json:"targetAttribute,omitempty"`

	// JoinConditions is the legacy persisted form of attribute mappings.
	// It is read for compatibility and removed on every commit.
	JoinConditions json.RawMessage `json:"joinConditions,omitempty"`
}

// Clone returns a deep copy of the rule.
func (r ConformanceRule) Clone() ConformanceRule {
	c := r
	if r.InputColumns != nil {
		c.InputColumns = append([]string(nil), r.InputColumns...)
	}
	if r.AttributeMappings != nil {
		c.AttributeMappings = make(map[string]string, len(r.AttributeMappings))
		for k, v := range r.AttributeMappings {
			c.AttributeMappings[k] = v
		}
	}
	if r.JoinConditions != nil {
		c.JoinConditions = append(json.RawMessage(nil), r.JoinConditions...)
	}
	return c
}

// Field returns the value of a routable field.
func (r ConformanceRule) Field(target FieldTarget) string {
	switch target {
	case TargetInputColumn:
		return r.InputColumn
	case TargetOutputColumn:
		return r.OutputColumn
	case TargetTargetAttribute:
		return r.TargetAttribute
	default:
		return ""
	}
}

// SetField writes a routable field. Unknown targets are ignored.
func (r *ConformanceRule) SetField(target FieldTarget, value string) {
	switch target {
	case TargetInputColumn:
		r.InputColumn = value
	case TargetOutputColumn:
		r.OutputColumn = value
	case TargetTargetAttribute:
		r.TargetAttribute = value
	}
}

// Draft is the rule being edited plus the dialog-only fields that are never
// persisted.
type Draft struct {
	Title  string          `json:"title"`
	IsEdit bool            `json:"isEdit"`
	Rule   ConformanceRule `json:"rule"`
}

// SchemaRef identifies a schema version.
type SchemaRef struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// SchemaField is a single column of a schema. Struct columns carry children.
type SchemaField struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Nullable bool          `json:"nullable"`
	Children []SchemaField `json:"children,omitempty"`
}

// Schema is a versioned dataset or mapping table schema.
type Schema struct {
	Name    string        `json:"name"`
	Version int           `json:"version"`
	Fields  []SchemaField `json:"fields"`
}

// Ref returns the schema's identity.
func (s Schema) Ref() SchemaRef {
	return SchemaRef{Name: s.Name, Version: s.Version}
}

// Paths returns every field path in depth-first order. Nested fields are
// joined with a dot: "address.city".
func (s Schema) Paths() []string {
	var out []string
	var walk func(prefix string, fields []SchemaField)
	walk = func(prefix string, fields []SchemaField) {
		for _, f := range fields {
			p := f.Name
			if prefix != "" {
				p = prefix + "." + f.Name
			}
			out = append(out, p)
			walk(p, f.Children)
		}
	}
	walk("", s.Fields)
	return out
}

// HasPath reports whether path names a field of the schema.
func (s Schema) HasPath(path string) bool {
	fields := s.Fields
	parts := strings.Split(path, ".")
	for i, part := range parts {
		var found *SchemaField
		for j := range fields {
			if fields[j].Name == part {
				found = &fields[j]
				break
			}
		}
		if found == nil {
			return false
		}
		if i == len(parts)-1 {
			return true
		}
		fields = found.Children
	}
	return false
}

// Dataset is one version of a dataset together with its conformance rules.
type Dataset struct {
	Name          string            `json:"name"`
	Version       int               `json:"version"`
	Description   string            `json:"description,omitempty"`
	HDFSPath      string            `json:"hdfsPath,omitempty"`
	SchemaName    string            `json:"schemaName"`
	SchemaVersion int               `json:"schemaVersion"`
	Conformance   []ConformanceRule `json:"conformance"`
	LastUpdated   time.Time         `json:"lastUpdated"`
}

// SchemaRef returns the dataset's schema identity.
func (d Dataset) SchemaRef() SchemaRef {
	return SchemaRef{Name: d.SchemaName, Version: d.SchemaVersion}
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	c := d
	if d.Conformance != nil {
		c.Conformance = make([]ConformanceRule, len(d.Conformance))
		for i, r := range d.Conformance {
			c.Conformance[i] = r.Clone()
		}
	}
	return c
}

// DatasetSummary is a dataset entry in master lists.
type DatasetSummary struct {
	Name          string `json:"name"`
	LatestVersion int    `json:"latestVersion"`
}

// MappingTable is one version of a mapping table definition.
type MappingTable struct {
	Name          string `json:"name"`
	Version       int    `json:"version"`
	Description   string `json:"description,omitempty"`
	HDFSPath      string `json:"hdfsPath,omitempty"`
	SchemaName    string `json:"schemaName"`
	SchemaVersion int    `json:"schemaVersion"`
}

// MappingTableSummary is a mapping table entry in the selector list.
type MappingTableSummary struct {
	Name          string `json:"name"`
	LatestVersion int    `json:"latestVersion"`
}

// MappingTableRef is a resolved mapping table version and its schema.
type MappingTableRef struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Schema  Schema `json:"schema"`
}

// Resolution is the result of resolving a mapping table version for a dataset.
type Resolution struct {
	MappingTable  MappingTableRef `json:"mappingTable"`
	DatasetFields Schema          `json:"datasetFields"`
}

// DataTypes lists the output types a CastingConformanceRule may produce.
var DataTypes = []string{
	"boolean",
	"byte",
	"short",
	"integer",
	"long",
	"float",
	"double",
	"decimal(38,18)",
	"string",
	"date",
	"timestamp",
	"binary",
}
