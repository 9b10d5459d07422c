// Package store provides the dataset, schema and mapping table data access
// implementations: an in-memory store for development and tests, and a
// PostgreSQL store for deployments.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/menas/internal/core"
)

var (
	_ core.DatasetStore    = (*Memory)(nil)
	_ core.DatasetReader   = (*Memory)(nil)
	_ core.MappingTableDAO = (*Memory)(nil)
	_ core.SchemaDAO       = (*Memory)(nil)
	_ core.DatasetStore    = (*Postgres)(nil)
	_ core.DatasetReader   = (*Postgres)(nil)
	_ core.MappingTableDAO = (*Postgres)(nil)
	_ core.SchemaDAO       = (*Postgres)(nil)
)

type versionKey struct {
	name    string
	version int
}

// Memory keeps everything in maps guarded by a single lock.
type Memory struct {
	mu       sync.RWMutex
	datasets map[versionKey]core.Dataset
	schemas  map[versionKey]core.Schema
	files    map[versionKey]core.SchemaFile
	tables   map[versionKey]core.MappingTable
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		datasets: make(map[versionKey]core.Dataset),
		schemas:  make(map[versionKey]core.Schema),
		files:    make(map[versionKey]core.SchemaFile),
		tables:   make(map[versionKey]core.MappingTable),
	}
}

// PutDataset stores or replaces a dataset version.
func (m *Memory) PutDataset(ds core.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[versionKey{ds.Name, ds.Version}] = ds.Clone()
}

// PutSchema stores or replaces a schema version.
func (m *Memory) PutSchema(s core.Schema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[versionKey{s.Name, s.Version}] = s
}

// PutSchemaFile attaches the uploaded file of a schema version.
func (m *Memory) PutSchemaFile(name string, version int, f core.SchemaFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[versionKey{name, version}] = core.SchemaFile{
		MimeType: f.MimeType,
		Content:  append([]byte(nil), f.Content...),
	}
}

// PutMappingTable stores or replaces a mapping table version.
func (m *Memory) PutMappingTable(mt core.MappingTable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[versionKey{mt.Name, mt.Version}] = mt
}

// Update replaces the conformance list of an existing dataset version.
func (m *Memory) Update(_ context.Context, ds core.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := versionKey{ds.Name, ds.Version}
	if _, ok := m.datasets[key]; !ok {
		return fmt.Errorf("%w: %s v%d", core.ErrDatasetNotFound, ds.Name, ds.Version)
	}
	m.datasets[key] = ds.Clone()
	return nil
}

// GetDataset returns a dataset version.
func (m *Memory) GetDataset(_ context.Context, name string, version int) (core.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ds, ok := m.datasets[versionKey{name, version}]
	if !ok {
		return core.Dataset{}, fmt.Errorf("%w: %s v%d", core.ErrDatasetNotFound, name, version)
	}
	return ds.Clone(), nil
}

// GetLatestDataset returns the highest version of a dataset.
func (m *Memory) GetLatestDataset(ctx context.Context, name string) (core.Dataset, error) {
	m.mu.RLock()
	latest := latestVersion(keysOf(m.datasets), name)
	m.mu.RUnlock()
	if latest == 0 {
		return core.Dataset{}, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, name)
	}
	return m.GetDataset(ctx, name, latest)
}

// ListDatasets returns every dataset name with its latest version.
func (m *Memory) ListDatasets(_ context.Context) ([]core.DatasetSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.DatasetSummary
	for name, v := range latestByName(keysOf(m.datasets)) {
		out = append(out, core.DatasetSummary{Name: name, LatestVersion: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetSchema returns a schema version.
func (m *Memory) GetSchema(_ context.Context, name string, version int) (core.Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schemas[versionKey{name, version}]
	if !ok {
		return core.Schema{}, fmt.Errorf("%w: %s v%d", core.ErrSchemaNotFound, name, version)
	}
	return s, nil
}

// ListSchemas returns every schema name with its latest version.
func (m *Memory) ListSchemas(_ context.Context) ([]core.SchemaSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.SchemaSummary
	for name, v := range latestByName(keysOf(m.schemas)) {
		out = append(out, core.SchemaSummary{Name: name, LatestVersion: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetSchemaFile returns the uploaded file of a schema version.
func (m *Memory) GetSchemaFile(_ context.Context, name string, version int) (core.SchemaFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.schemas[versionKey{name, version}]; !ok {
		return core.SchemaFile{}, fmt.Errorf("%w: %s v%d", core.ErrSchemaNotFound, name, version)
	}
	f, ok := m.files[versionKey{name, version}]
	if !ok {
		return core.SchemaFile{}, fmt.Errorf("%w: %s v%d", core.ErrNoSchemaFile, name, version)
	}
	return f, nil
}

// ListMappingTables returns every mapping table with its latest version.
func (m *Memory) ListMappingTables(_ context.Context) ([]core.MappingTableSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.MappingTableSummary
	for name, v := range latestByName(keysOf(m.tables)) {
		out = append(out, core.MappingTableSummary{Name: name, LatestVersion: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetAllVersions returns every version of a mapping table, oldest first.
func (m *Memory) GetAllVersions(_ context.Context, name string) ([]core.MappingTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.MappingTable
	for k, mt := range m.tables {
		if k.name == name {
			out = append(out, mt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// GetByNameAndVersion returns a mapping table version.
func (m *Memory) GetByNameAndVersion(_ context.Context, name string, version int) (core.MappingTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mt, ok := m.tables[versionKey{name, version}]
	if !ok {
		return core.MappingTable{}, fmt.Errorf("%w: %s v%d", core.ErrMappingTableNotFound, name, version)
	}
	return mt, nil
}

func keysOf[V any](m map[versionKey]V) []versionKey {
	out := make([]versionKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func latestByName(keys []versionKey) map[string]int {
	out := make(map[string]int)
	for _, k := range keys {
		if k.version > out[k.name] {
			out[k.name] = k.version
		}
	}
	return out
}

func latestVersion(keys []versionKey, name string) int {
	return latestByName(keys)[name]
}
