package core

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ConformanceList is the ordered rule list owned by one dataset version.
// Readers always see either the list before a commit or the list after it.
type ConformanceList struct {
	commitMu sync.Mutex // serializes commits

	mu      sync.RWMutex
	dataset Dataset
}

// NewConformanceList wraps a loaded dataset version.
func NewConformanceList(ds Dataset) *ConformanceList {
	return &ConformanceList{dataset: ds.Clone()}
}

// Dataset returns a copy of the dataset version including its rules.
func (l *ConformanceList) Dataset() Dataset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dataset.Clone()
}

// Rules returns a copy of the rules in order.
func (l *ConformanceList) Rules() []ConformanceRule {
	return l.Dataset().Conformance
}

// Len returns the number of rules.
func (l *ConformanceList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.dataset.Conformance)
}

// At returns the rule at order.
func (l *ConformanceList) At(order int) (ConformanceRule, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if order < 0 || order >= len(l.dataset.Conformance) {
		return ConformanceRule{}, false
	}
	return l.dataset.Conformance[order].Clone(), true
}

// Commit writes rule into the list and persists the result.
//
// A nil base adds rule at the end of the list, whatever order the draft
// carried. A non-nil base edits the rule at rule.Order and fails with
// ErrRuleChanged when that position no longer holds base. The list is only
// replaced once the store accepted the new version; the committed rule is
// returned with its final order.
func (l *ConformanceList) Commit(ctx context.Context, store DatasetStore, rule ConformanceRule, base *ConformanceRule) (Dataset, ConformanceRule, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "conformance.Commit", trace.WithAttributes(
		attribute.String("rule_type", rule.Type),
		attribute.Bool("is_edit", base != nil),
	))
	defer span.End()

	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	next := l.Dataset()
	rules, rule, err := placeRule(next.Conformance, rule, base)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Dataset{}, ConformanceRule{}, err
	}
	span.SetAttributes(attribute.Int("order", rule.Order))
	next.Conformance = rules
	next.LastUpdated = time.Now().UTC()

	if err := store.Update(ctx, next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Dataset{}, ConformanceRule{}, fmt.Errorf("update dataset %s v%d: %w", next.Name, next.Version, err)
	}

	l.mu.Lock()
	l.dataset = next
	l.mu.Unlock()

	return next.Clone(), rule.Clone(), nil
}

// Reload replaces the list with the version held by reader. It waits for a
// commit in flight so a reload never hides that commit.
func (l *ConformanceList) Reload(ctx context.Context, reader DatasetReader) error {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	cur := l.Dataset()
	ds, err := reader.GetDataset(ctx, cur.Name, cur.Version)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.dataset = ds.Clone()
	l.mu.Unlock()
	return nil
}

// placeRule returns a new rule slice with rule written into it, and the rule
// as placed.
func placeRule(rules []ConformanceRule, rule ConformanceRule, base *ConformanceRule) ([]ConformanceRule, ConformanceRule, error) {
	if base == nil {
		rule.Order = len(rules)
		out := make([]ConformanceRule, 0, len(rules)+1)
		out = append(out, rules...)
		return append(out, rule), rule, nil
	}

	if rule.Order < 0 || rule.Order >= len(rules) {
		return nil, rule, fmt.Errorf("%w: edit at %d (len %d)", ErrOrderOutOfRange, rule.Order, len(rules))
	}
	if !reflect.DeepEqual(rules[rule.Order], *base) {
		return nil, rule, fmt.Errorf("%w: order %d", ErrRuleChanged, rule.Order)
	}
	out := make([]ConformanceRule, len(rules))
	copy(out, rules)
	out[rule.Order] = rule
	return out, rule, nil
}

// DatasetLists keeps one ConformanceList per dataset version so every
// session editing the same version commits into the same list.
type DatasetLists struct {
	reader DatasetReader

	mu    sync.Mutex
	lists map[datasetKey]*ConformanceList
}

type datasetKey struct {
	name    string
	version int
}

// NewDatasetLists creates a list cache over reader.
func NewDatasetLists(reader DatasetReader) *DatasetLists {
	return &DatasetLists{
		reader: reader,
		lists:  make(map[datasetKey]*ConformanceList),
	}
}

// Get returns the live list of a dataset version, loading it on first use.
func (d *DatasetLists) Get(ctx context.Context, name string, version int) (*ConformanceList, error) {
	key := datasetKey{name: name, version: version}

	d.mu.Lock()
	if l, ok := d.lists[key]; ok {
		d.mu.Unlock()
		return l, nil
	}
	d.mu.Unlock()

	ds, err := d.reader.GetDataset(ctx, name, version)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.lists[key]; ok {
		return l, nil
	}
	l := NewConformanceList(ds)
	d.lists[key] = l
	return l, nil
}

// Load returns the list of a dataset version reloaded from the store, so a
// session starts from what other console instances committed.
func (d *DatasetLists) Load(ctx context.Context, name string, version int) (*ConformanceList, error) {
	d.mu.Lock()
	l, ok := d.lists[datasetKey{name: name, version: version}]
	d.mu.Unlock()
	if !ok {
		return d.Get(ctx, name, version)
	}
	if err := l.Reload(ctx, d.reader); err != nil {
		return nil, err
	}
	return l, nil
}
