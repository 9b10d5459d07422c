package core

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks DatasetStore,MappingTableSource,Notifier

import (
	"context"
	"time"
)

// DatasetStore persists dataset versions. Update replaces the stored
// conformance list of the dataset version.
type DatasetStore interface {
	Update(ctx context.Context, ds Dataset) error
}

// DatasetReader loads dataset versions.
type DatasetReader interface {
	GetDataset(ctx context.Context, name string, version int) (Dataset, error)
	ListDatasets(ctx context.Context) ([]DatasetSummary, error)
}

// MappingTableDAO is the mapping table data access collaborator.
type MappingTableDAO interface {
	ListMappingTables(ctx context.Context) ([]MappingTableSummary, error)
	GetAllVersions(ctx context.Context, name string) ([]MappingTable, error)
	GetByNameAndVersion(ctx context.Context, name string, version int) (MappingTable, error)
}

// SchemaDAO is the schema data access collaborator.
type SchemaDAO interface {
	GetSchema(ctx context.Context, name string, version int) (Schema, error)
}

// MappingTableSource is what a session needs from the resolver.
type MappingTableSource interface {
	ListMappingTables(ctx context.Context) ([]MappingTableSummary, error)
	ListVersions(ctx context.Context, mappingTableID string) ([]int, error)
	Resolve(ctx context.Context, mappingTableID string, version int, dataset SchemaRef) (Resolution, error)
}

// ConformanceUpdated announces a committed conformance list.
type ConformanceUpdated struct {
	ID             string            `json:"id"`
	Dataset        string            `json:"dataset"`
	DatasetVersion int               `json:"datasetVersion"`
	RuleType       string            `json:"ruleType"`
	Order          int               `json:"order"`
	IsEdit         bool              `json:"isEdit"`
	Conformance    []ConformanceRule `json:"conformance"`
	OccurredAt     time.Time         `json:"occurredAt"`
}

// Notifier delivers conformance updates to subscribers.
type Notifier interface {
	ConformanceUpdated(ctx context.Context, evt ConformanceUpdated) error
}

// Recorder receives session metrics. The metrics package implements it.
type Recorder interface {
	SessionOpened(ruleType string, isEdit bool)
	SubmitRejected(ruleType string)
	RuleCommitted(ruleType string, isEdit bool)
	ResolveObserved(start time.Time, err error)
	StaleDiscarded()
}

type nopNotifier struct{}

func (nopNotifier) ConformanceUpdated(context.Context, ConformanceUpdated) error { return nil }

type nopRecorder struct{}

func (nopRecorder) SessionOpened(string, bool)       {}
func (nopRecorder) SubmitRejected(string)            {}
func (nopRecorder) RuleCommitted(string, bool)       {}
func (nopRecorder) ResolveObserved(time.Time, error) {}
func (nopRecorder) StaleDiscarded()                  {}
