package core

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/JonMunkholm/menas/internal/core"

// Resolver fetches mapping table versions and the schemas a mapping rule is
// edited against. It does not cache; sessions keep their own cache.
type Resolver struct {
	tables  MappingTableDAO
	schemas SchemaDAO
	tracer  trace.Tracer
}

// NewResolver creates a resolver over the given data access collaborators.
func NewResolver(tables MappingTableDAO, schemas SchemaDAO) *Resolver {
	return &Resolver{
		tables:  tables,
		schemas: schemas,
		tracer:  otel.Tracer(tracerName),
	}
}

// ListMappingTables returns the mapping tables available for selection.
func (r *Resolver) ListMappingTables(ctx context.Context) ([]MappingTableSummary, error) {
	return r.tables.ListMappingTables(ctx)
}

// ListVersions returns the versions of a mapping table sorted ascending.
func (r *Resolver) ListVersions(ctx context.Context, mappingTableID string) ([]int, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.ListVersions",
		trace.WithAttributes(attribute.String("mapping_table", mappingTableID)))
	defer span.End()

	all, err := r.tables.GetAllVersions(ctx, mappingTableID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMappingTableNotFound, mappingTableID)
	}

	versions := make([]int, len(all))
	for i, mt := range all {
		versions[i] = mt.Version
	}
	sort.Ints(versions)
	return versions, nil
}

// Resolve fetches a mapping table version, its schema and the dataset schema
// the join conditions are matched against. The two schemas are fetched
// concurrently.
func (r *Resolver) Resolve(ctx context.Context, mappingTableID string, version int, dataset SchemaRef) (Resolution, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.Resolve", trace.WithAttributes(
		attribute.String("mapping_table", mappingTableID),
		attribute.Int("mapping_table_version", version),
		attribute.String("dataset_schema", dataset.Name),
	))
	defer span.End()

	res, err := r.resolve(ctx, mappingTableID, version, dataset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, mappingTableID string, version int, dataset SchemaRef) (Resolution, error) {
	mt, err := r.tables.GetByNameAndVersion(ctx, mappingTableID, version)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve mapping table %s v%d: %w", mappingTableID, version, err)
	}

	var mtSchema, dsSchema Schema
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := r.schemas.GetSchema(gctx, mt.SchemaName, mt.SchemaVersion)
		if err != nil {
			return fmt.Errorf("mapping table schema %s v%d: %w", mt.SchemaName, mt.SchemaVersion, err)
		}
		mtSchema = s
		return nil
	})
	g.Go(func() error {
		s, err := r.schemas.GetSchema(gctx, dataset.Name, dataset.Version)
		if err != nil {
			return fmt.Errorf("dataset schema %s v%d: %w", dataset.Name, dataset.Version, err)
		}
		dsSchema = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return Resolution{}, err
	}

	return Resolution{
		MappingTable: MappingTableRef{
			ID:      mt.Name,
			Version: mt.Version,
			Schema:  mtSchema,
		},
		DatasetFields: dsSchema,
	}, nil
}
