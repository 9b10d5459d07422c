package store

import (
	"time"

	"github.com/JonMunkholm/menas/internal/core"
)

// Fixture is a set of metadata loaded into a store at startup.
type Fixture struct {
	Schemas       []core.Schema
	SchemaFiles   map[core.SchemaRef]core.SchemaFile
	MappingTables []core.MappingTable
	Datasets      []core.Dataset
}

// Load puts every fixture entry into the store.
func (m *Memory) Load(f Fixture) {
	for _, s := range f.Schemas {
		m.PutSchema(s)
	}
	for ref, file := range f.SchemaFiles {
		m.PutSchemaFile(ref.Name, ref.Version, file)
	}
	for _, mt := range f.MappingTables {
		m.PutMappingTable(mt)
	}
	for _, ds := range f.Datasets {
		m.PutDataset(ds)
	}
}

// DemoFixture returns a small, self-consistent set of datasets, schemas and
// mapping tables for local development.
func DemoFixture() Fixture {
	people := core.Schema{
		Name:    "people",
		Version: 1,
		Fields: []core.SchemaField{
			{Name: "id", Type: "long"},
			{Name: "first_name", Type: "string", Nullable: true},
			{Name: "last_name", Type: "string", Nullable: true},
			{Name: "country_code", Type: "string", Nullable: true},
			{Name: "birth_date", Type: "string", Nullable: true},
			{Name: "address", Type: "struct", Nullable: true, Children: []core.SchemaField{
				{Name: "city", Type: "string", Nullable: true},
				{Name: "zip", Type: "string", Nullable: true},
			}},
		},
	}
	countries := core.Schema{
		Name:    "country_codes",
		Version: 1,
		Fields: []core.SchemaField{
			{Name: "code", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "region", Type: "string", Nullable: true},
		},
	}
	countriesV2 := countries
	countriesV2.Version = 2
	countriesV2.Fields = append(append([]core.SchemaField(nil), countries.Fields...),
		core.SchemaField{Name: "iso3", Type: "string", Nullable: true})

	return Fixture{
		Schemas: []core.Schema{people, countries, countriesV2},
		SchemaFiles: map[core.SchemaRef]core.SchemaFile{
			people.Ref(): {
				MimeType: "application/json",
				Content:  []byte(`{"type":"struct","fields":[{"name":"id","type":"long","nullable":false,"metadata":{}}]}`),
			},
		},
		MappingTables: []core.MappingTable{
			{Name: "country_names", Version: 1, HDFSPath: "/ref/country_names/v1", SchemaName: "country_codes", SchemaVersion: 1},
			{Name: "country_names", Version: 2, HDFSPath: "/ref/country_names/v2", SchemaName: "country_codes", SchemaVersion: 2},
		},
		Datasets: []core.Dataset{
			{
				Name:          "people",
				Version:       1,
				Description:   "Customer master data",
				HDFSPath:      "/raw/people",
				SchemaName:    "people",
				SchemaVersion: 1,
				Conformance: []core.ConformanceRule{
					{Type: "UppercaseConformanceRule", Order: 0, InputColumn: "last_name", OutputColumn: "last_name_upper"},
				},
				LastUpdated: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
			},
		},
	}
}
