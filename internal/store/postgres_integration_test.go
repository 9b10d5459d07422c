//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/JonMunkholm/menas/internal/core"
)

func newPostgres(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("menas"),
		tcpostgres.WithUsername("menas"),
		tcpostgres.WithPassword("menas"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	p := NewPostgres(pool)
	require.NoError(t, p.Migrate(ctx))
	require.NoError(t, p.Load(ctx, DemoFixture()))
	return p
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	p := newPostgres(t)

	t.Run("migrate is idempotent", func(t *testing.T) {
		require.NoError(t, p.Migrate(ctx))
	})

	t.Run("dataset round trip", func(t *testing.T) {
		ds, err := p.GetDataset(ctx, "people", 1)
		require.NoError(t, err)
		require.Len(t, ds.Conformance, 1)
		assert.Equal(t, "UppercaseConformanceRule", ds.Conformance[0].Type)

		ds.Conformance = append(ds.Conformance, core.ConformanceRule{
			Type:                "MappingConformanceRule",
			Order:               1,
			MappingTable:        "country_names",
			MappingTableVersion: 2,
			AttributeMappings:   map[string]string{"code": "country_code"},
			TargetAttribute:     "name",
			OutputColumn:        "country_name",
		})
		require.NoError(t, p.Update(ctx, ds))

		got, err := p.GetDataset(ctx, "people", 1)
		require.NoError(t, err)
		require.Len(t, got.Conformance, 2)
		assert.Equal(t, map[string]string{"code": "country_code"}, got.Conformance[1].AttributeMappings)

		latest, err := p.GetLatestDataset(ctx, "people")
		require.NoError(t, err)
		assert.Equal(t, 1, latest.Version)
	})

	t.Run("update of unknown dataset", func(t *testing.T) {
		err := p.Update(ctx, core.Dataset{Name: "people", Version: 42})
		assert.ErrorIs(t, err, core.ErrDatasetNotFound)
	})

	t.Run("mapping tables", func(t *testing.T) {
		list, err := p.ListMappingTables(ctx)
		require.NoError(t, err)
		assert.Equal(t, []core.MappingTableSummary{{Name: "country_names", LatestVersion: 2}}, list)

		all, err := p.GetAllVersions(ctx, "country_names")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, 1, all[0].Version)

		_, err = p.GetByNameAndVersion(ctx, "country_names", 5)
		assert.ErrorIs(t, err, core.ErrMappingTableNotFound)
	})

	t.Run("schemas and files", func(t *testing.T) {
		s, err := p.GetSchema(ctx, "people", 1)
		require.NoError(t, err)
		assert.True(t, s.HasPath("address.zip"))

		_, err = p.GetSchema(ctx, "people", 3)
		assert.ErrorIs(t, err, core.ErrSchemaNotFound)

		f, err := p.GetSchemaFile(ctx, "people", 1)
		require.NoError(t, err)
		assert.Equal(t, "application/json", f.MimeType)

		_, err = p.GetSchemaFile(ctx, "country_codes", 1)
		assert.ErrorIs(t, err, core.ErrNoSchemaFile)

		list, err := p.ListSchemas(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}
