package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/menas/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the subset of pgxpool.Pool and pgx.Tx the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores metadata in PostgreSQL. Conformance lists and schema
// fields are kept as JSONB.
type Postgres struct {
	db DBTX
}

// NewPostgres creates a store over a pool or transaction.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Load upserts every fixture entry.
func (p *Postgres) Load(ctx context.Context, f Fixture) error {
	for _, s := range f.Schemas {
		fields, err := json.Marshal(s.Fields)
		if err != nil {
			return fmt.Errorf("encode schema %s v%d: %w", s.Name, s.Version, err)
		}
		var mime *string
		var content []byte
		if file, ok := f.SchemaFiles[s.Ref()]; ok {
			mime, content = &file.MimeType, file.Content
		}
		_, err = p.db.Exec(ctx, `
			INSERT INTO schemas (name, version, fields, file_mime, file_content)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (name, version) DO UPDATE
			SET fields = EXCLUDED.fields, file_mime = EXCLUDED.file_mime, file_content = EXCLUDED.file_content`,
			s.Name, s.Version, fields, mime, content)
		if err != nil {
			return fmt.Errorf("load schema %s v%d: %w", s.Name, s.Version, err)
		}
	}

	for _, mt := range f.MappingTables {
		_, err := p.db.Exec(ctx, `
			INSERT INTO mapping_tables (name, version, description, hdfs_path, schema_name, schema_version)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (name, version) DO UPDATE
			SET description = EXCLUDED.description, hdfs_path = EXCLUDED.hdfs_path,
			    schema_name = EXCLUDED.schema_name, schema_version = EXCLUDED.schema_version`,
			mt.Name, mt.Version, mt.Description, mt.HDFSPath, mt.SchemaName, mt.SchemaVersion)
		if err != nil {
			return fmt.Errorf("load mapping table %s v%d: %w", mt.Name, mt.Version, err)
		}
	}

	for _, ds := range f.Datasets {
		conformance, err := encodeConformance(ds.Conformance)
		if err != nil {
			return err
		}
		_, err = p.db.Exec(ctx, `
			INSERT INTO datasets (name, version, description, hdfs_path, schema_name, schema_version, conformance, last_updated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (name, version) DO NOTHING`,
			ds.Name, ds.Version, ds.Description, ds.HDFSPath, ds.SchemaName, ds.SchemaVersion, conformance, ds.LastUpdated)
		if err != nil {
			return fmt.Errorf("load dataset %s v%d: %w", ds.Name, ds.Version, err)
		}
	}
	return nil
}

// Update replaces the conformance list of an existing dataset version.
func (p *Postgres) Update(ctx context.Context, ds core.Dataset) error {
	conformance, err := encodeConformance(ds.Conformance)
	if err != nil {
		return err
	}
	tag, err := p.db.Exec(ctx,
		`UPDATE datasets SET conformance = $3, last_updated = $4 WHERE name = $1 AND version = $2`,
		ds.Name, ds.Version, conformance, ds.LastUpdated)
	if err != nil {
		return fmt.Errorf("update dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s v%d", core.ErrDatasetNotFound, ds.Name, ds.Version)
	}
	return nil
}

const datasetColumns = `name, version, description, hdfs_path, schema_name, schema_version, conformance, last_updated`

// GetDataset returns a dataset version.
func (p *Postgres) GetDataset(ctx context.Context, name string, version int) (core.Dataset, error) {
	row := p.db.QueryRow(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE name = $1 AND version = $2`, name, version)
	ds, err := scanDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Dataset{}, fmt.Errorf("%w: %s v%d", core.ErrDatasetNotFound, name, version)
	}
	return ds, err
}

// GetLatestDataset returns the highest version of a dataset.
func (p *Postgres) GetLatestDataset(ctx context.Context, name string) (core.Dataset, error) {
	row := p.db.QueryRow(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE name = $1 ORDER BY version DESC LIMIT 1`, name)
	ds, err := scanDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Dataset{}, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, name)
	}
	return ds, err
}

// ListDatasets returns every dataset name with its latest version.
func (p *Postgres) ListDatasets(ctx context.Context) ([]core.DatasetSummary, error) {
	rows, err := p.db.Query(ctx, `SELECT name, MAX(version) FROM datasets GROUP BY name ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.DatasetSummary, error) {
		var s core.DatasetSummary
		err := row.Scan(&s.Name, &s.LatestVersion)
		return s, err
	})
}

// GetSchema returns a schema version.
func (p *Postgres) GetSchema(ctx context.Context, name string, version int) (core.Schema, error) {
	var raw []byte
	err := p.db.QueryRow(ctx,
		`SELECT fields FROM schemas WHERE name = $1 AND version = $2`, name, version).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Schema{}, fmt.Errorf("%w: %s v%d", core.ErrSchemaNotFound, name, version)
	}
	if err != nil {
		return core.Schema{}, fmt.Errorf("get schema: %w", err)
	}

	s := core.Schema{Name: name, Version: version}
	if err := json.Unmarshal(raw, &s.Fields); err != nil {
		return core.Schema{}, fmt.Errorf("decode schema %s v%d: %w", name, version, err)
	}
	return s, nil
}

// ListSchemas returns every schema name with its latest version.
func (p *Postgres) ListSchemas(ctx context.Context) ([]core.SchemaSummary, error) {
	rows, err := p.db.Query(ctx, `SELECT name, MAX(version) FROM schemas GROUP BY name ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.SchemaSummary, error) {
		var s core.SchemaSummary
		err := row.Scan(&s.Name, &s.LatestVersion)
		return s, err
	})
}

// GetSchemaFile returns the uploaded file of a schema version.
func (p *Postgres) GetSchemaFile(ctx context.Context, name string, version int) (core.SchemaFile, error) {
	var mime *string
	var content []byte
	err := p.db.QueryRow(ctx,
		`SELECT file_mime, file_content FROM schemas WHERE name = $1 AND version = $2`, name, version).Scan(&mime, &content)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.SchemaFile{}, fmt.Errorf("%w: %s v%d", core.ErrSchemaNotFound, name, version)
	}
	if err != nil {
		return core.SchemaFile{}, fmt.Errorf("get schema file: %w", err)
	}
	if mime == nil || content == nil {
		return core.SchemaFile{}, fmt.Errorf("%w: %s v%d", core.ErrNoSchemaFile, name, version)
	}
	return core.SchemaFile{MimeType: *mime, Content: content}, nil
}

// ListMappingTables returns every mapping table with its latest version.
func (p *Postgres) ListMappingTables(ctx context.Context) ([]core.MappingTableSummary, error) {
	rows, err := p.db.Query(ctx, `SELECT name, MAX(version) FROM mapping_tables GROUP BY name ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list mapping tables: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.MappingTableSummary, error) {
		var s core.MappingTableSummary
		err := row.Scan(&s.Name, &s.LatestVersion)
		return s, err
	})
}

const mappingTableColumns = `name, version, description, hdfs_path, schema_name, schema_version`

// GetAllVersions returns every version of a mapping table, oldest first.
func (p *Postgres) GetAllVersions(ctx context.Context, name string) ([]core.MappingTable, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+mappingTableColumns+` FROM mapping_tables WHERE name = $1 ORDER BY version`, name)
	if err != nil {
		return nil, fmt.Errorf("get mapping table versions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.MappingTable, error) {
		return scanMappingTable(row)
	})
}

// GetByNameAndVersion returns a mapping table version.
func (p *Postgres) GetByNameAndVersion(ctx context.Context, name string, version int) (core.MappingTable, error) {
	row := p.db.QueryRow(ctx,
		`SELECT `+mappingTableColumns+` FROM mapping_tables WHERE name = $1 AND version = $2`, name, version)
	mt, err := scanMappingTable(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.MappingTable{}, fmt.Errorf("%w: %s v%d", core.ErrMappingTableNotFound, name, version)
	}
	if err != nil {
		return core.MappingTable{}, fmt.Errorf("get mapping table: %w", err)
	}
	return mt, nil
}

func scanDataset(row pgx.Row) (core.Dataset, error) {
	var ds core.Dataset
	var raw []byte
	if err := row.Scan(&ds.Name, &ds.Version, &ds.Description, &ds.HDFSPath,
		&ds.SchemaName, &ds.SchemaVersion, &raw, &ds.LastUpdated); err != nil {
		return core.Dataset{}, err
	}
	if err := json.Unmarshal(raw, &ds.Conformance); err != nil {
		return core.Dataset{}, fmt.Errorf("decode conformance of %s v%d: %w", ds.Name, ds.Version, err)
	}
	return ds, nil
}

func scanMappingTable(row pgx.Row) (core.MappingTable, error) {
	var mt core.MappingTable
	err := row.Scan(&mt.Name, &mt.Version, &mt.Description, &mt.HDFSPath, &mt.SchemaName, &mt.SchemaVersion)
	return mt, err
}

func encodeConformance(rules []core.ConformanceRule) ([]byte, error) {
	if rules == nil {
		rules = []core.ConformanceRule{}
	}
	b, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("encode conformance: %w", err)
	}
	return b, nil
}
