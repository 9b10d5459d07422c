package core

// session.go implements the add/edit workflow for one conformance rule.
//
// A Session is driven by a rendering layer through a narrow method API and
// owns its draft exclusively. Mapping table lookups are done without holding
// the session lock; each lookup captures the current request token and its
// result is applied only if the token is still current when it returns.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dialog titles.
const (
	AddTitle  = "Add Conformance Rule"
	EditTitle = "Edit Conformance Rule"
)

// State is the lifecycle state of a session.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateEditing
	StateValidating
	StateCommitting
)

var stateNames = [...]string{"closed", "opening", "editing", "validating", "committing"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// SessionDeps are the collaborators of a session. Only Tables and Store are
// required.
type SessionDeps struct {
	Registry *Registry
	Tables   MappingTableSource
	Store    DatasetStore
	Notifier Notifier
	Recorder Recorder
	Logger   *slog.Logger
}

// OpenParams carries everything a session needs from the caller at open time.
type OpenParams struct {
	List     *ConformanceList
	Schema   Schema           // dataset schema the rules run on
	Existing *ConformanceRule // nil when adding
}

// DraftPatch is a partial edit of the draft's free-text fields. Nil fields
// are left unchanged.
type DraftPatch struct {
	OutputColumn      *string `json:"outputColumn,omitempty"`
	InputColumn       *string `json:"inputColumn,omitempty"`
	InputColumnAlias  *string `json:"inputColumnAlias,omitempty"`
	OutputDataType    *string `json:"outputDataType,omitempty"`
	Value             *string `json:"value,omitempty"`
	SparkConfKey      *string `json:"sparkConfKey,omitempty"`
	TargetAttribute   *string `json:"targetAttribute,omitempty"`
	ControlCheckpoint *bool   `json:"controlCheckpoint,omitempty"`
}

// Snapshot is a read-only view of a session for rendering.
type Snapshot struct {
	ID                     string                `json:"id"`
	State                  State                 `json:"state"`
	Draft                  Draft                 `json:"draft"`
	JoinConditions         []JoinCondition       `json:"joinConditions"`
	MappingTables          []MappingTableSummary `json:"mappingTables,omitempty"`
	MappingTableVersions   []int                 `json:"mappingTableVersions,omitempty"`
	MappingTableSchema     *Schema               `json:"mappingTableSchema,omitempty"`
	JoinContext            *Resolution           `json:"joinContext,omitempty"`
	DatasetSchema          Schema                `json:"datasetSchema"`
	Errors                 []ValidationError     `json:"errors,omitempty"`
	ResolveError           string                `json:"resolveError,omitempty"`
	HasSchemaFieldSelector bool                  `json:"hasSchemaFieldSelector"`
	FieldTarget            FieldTarget           `json:"fieldTarget,omitempty"`
	SelectedField          string                `json:"selectedField,omitempty"`
}

type mappingKey struct {
	id      string
	version int
}

// Session is the conformance rule edit session.
type Session struct {
	id        string
	registry  *Registry
	tables    MappingTableSource
	store     DatasetStore
	notifier  Notifier
	recorder  Recorder
	logger    *slog.Logger
	createdAt time.Time

	mu         sync.Mutex
	state      State
	token      uint64
	lastActive time.Time

	list          *ConformanceList
	base          *ConformanceRule // rule being edited, as opened
	schema        Schema
	draft         Draft
	joins         *JoinConditionSet
	mappingTables []MappingTableSummary
	versions      []int
	mappingSchema *Schema
	resolution    *Resolution
	cache         map[mappingKey]Resolution
	errors        []ValidationError
	resolveErr    error
}

// NewSession creates a closed session.
func NewSession(id string, deps SessionDeps) *Session {
	if deps.Registry == nil {
		deps.Registry = DefaultRegistry()
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	now := time.Now()
	return &Session{
		id:         id,
		registry:   deps.Registry,
		tables:     deps.Tables,
		store:      deps.Store,
		notifier:   deps.Notifier,
		recorder:   deps.Recorder,
		logger:     deps.Logger.With("session_id", id),
		createdAt:  now,
		lastActive: now,
		joins:      &JoinConditionSet{},
		cache:      make(map[mappingKey]Resolution),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open starts editing existing, or a new rule when existing is nil.
//
// A mapping rule triggers mapping table resolution before the session
// reaches Editing. Resolution failures still leave the session Editing, with
// an empty join condition set, and are returned to the caller.
func (s *Session) Open(ctx context.Context, p OpenParams) error {
	if p.List == nil {
		return fmt.Errorf("open session: %w", ErrDatasetNotFound)
	}

	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return ErrSessionAlreadyOpen
	}
	s.reset()
	tok := s.nextToken()
	s.state = StateOpening
	s.list = p.List
	s.schema = p.Schema

	if p.Existing != nil {
		base := p.Existing.Clone()
		s.base = &base
		s.draft = Draft{Title: EditTitle, IsEdit: true, Rule: p.Existing.Clone()}
	} else {
		def, err := s.registry.Default()
		if err != nil {
			s.reset()
			s.mu.Unlock()
			return err
		}
		s.draft = Draft{
			Title: AddTitle,
			Rule:  ConformanceRule{Type: def.RuleType, Order: p.List.Len()},
		}
	}
	ruleType, isEdit := s.draft.Rule.Type, s.draft.IsEdit
	ds := p.List.Dataset()

	if _, err := s.registry.DescriptorFor(ruleType); err != nil {
		s.state = StateEditing
		s.resolveErr = err
		s.mu.Unlock()
		s.logger.Warn("opened rule of unknown type", "rule_type", ruleType, "dataset", ds.Name)
		return err
	}

	if ruleType != MappingRuleType {
		s.state = StateEditing
		s.mu.Unlock()
		s.recorder.SessionOpened(ruleType, isEdit)
		s.logger.Debug("session opened", "dataset", ds.Name, "dataset_version", ds.Version, "rule_type", ruleType, "is_edit", isEdit)
		return nil
	}

	if isEdit {
		s.joins = FromAttributeMapping(s.draft.Rule.AttributeMappings)
	}
	s.mu.Unlock()

	err := s.loadMappingDefaults(ctx, tok, !isEdit)

	s.mu.Lock()
	if tok != s.token {
		s.mu.Unlock()
		return ErrStaleResolution
	}
	s.state = StateEditing
	s.mu.Unlock()

	s.recorder.SessionOpened(ruleType, isEdit)
	if err != nil {
		s.logger.Warn("mapping table resolution failed", "dataset", ds.Name, "error", err)
		return err
	}
	s.logger.Debug("session opened", "dataset", ds.Name, "dataset_version", ds.Version, "rule_type", ruleType, "is_edit", isEdit)
	return nil
}

// SelectRuleType switches the draft to another rule type. Only the title,
// edit flag, order and type survive; every type specific field is dropped.
// Existing rules cannot change type.
func (s *Session) SelectRuleType(ctx context.Context, ruleType string) error {
	s.mu.Lock()
	if err := s.requireEditing(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.draft.IsEdit {
		s.mu.Unlock()
		return ErrRuleTypeLocked
	}
	if _, err := s.registry.DescriptorFor(ruleType); err != nil {
		s.mu.Unlock()
		return err
	}

	tok := s.nextToken()
	s.draft.Rule = ConformanceRule{Type: ruleType, Order: s.draft.Rule.Order}
	s.clearMappingState()
	s.mappingTables = nil
	s.errors = nil
	s.mu.Unlock()

	if ruleType != MappingRuleType {
		return nil
	}
	return s.loadMappingDefaults(ctx, tok, true)
}

// SelectMappingTable picks a mapping table, clears the join conditions and
// target attribute, and selects the table's highest version.
func (s *Session) SelectMappingTable(ctx context.Context, mappingTableID string) error {
	s.mu.Lock()
	if err := s.requireEditing(); err != nil {
		s.mu.Unlock()
		return err
	}
	tok := s.nextToken()
	s.draft.Rule.MappingTable = mappingTableID
	s.draft.Rule.MappingTableVersion = 0
	s.clearMappingState()
	s.mu.Unlock()

	versions, err := s.tables.ListVersions(ctx, mappingTableID)
	if err == nil && len(versions) == 0 {
		err = fmt.Errorf("%w: %s has no versions", ErrMappingTableNotFound, mappingTableID)
	}
	var latest int
	err = s.complete(tok, err, func() {
		latest = versions[len(versions)-1]
		s.versions = versions
		s.draft.Rule.MappingTableVersion = latest
	})
	if err != nil {
		return err
	}
	return s.resolveVersion(ctx, tok, mappingTableID, latest)
}

// SelectMappingTableVersion picks an explicit mapping table version.
func (s *Session) SelectMappingTableVersion(ctx context.Context, mappingTableID string, version int) error {
	s.mu.Lock()
	if err := s.requireEditing(); err != nil {
		s.mu.Unlock()
		return err
	}
	tok := s.nextToken()
	versions := s.versions
	if s.draft.Rule.MappingTable != mappingTableID {
		versions = nil
	}
	s.draft.Rule.MappingTable = mappingTableID
	s.draft.Rule.MappingTableVersion = version
	s.clearMappingState()
	s.versions = versions
	s.mu.Unlock()

	return s.resolveVersion(ctx, tok, mappingTableID, version)
}

// AddJoinCondition appends a join condition to the draft.
func (s *Session) AddJoinCondition(datasetField, mappingTableField string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	s.joins.Add(datasetField, mappingTableField)
	return nil
}

// RemoveJoinConditionAt removes the join condition at index.
func (s *Session) RemoveJoinConditionAt(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	return s.joins.RemoveAt(index)
}

// ReplaceJoinConditionAt overwrites the join condition at index.
func (s *Session) ReplaceJoinConditionAt(index int, datasetField, mappingTableField string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	return s.joins.ReplaceAt(index, datasetField, mappingTableField)
}

// AddConcatColumn appends an input column of a concatenation rule.
func (s *Session) AddConcatColumn(column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	s.draft.Rule.InputColumns = append(s.draft.Rule.InputColumns, column)
	return nil
}

// RemoveConcatColumnAt removes the concatenation input column at index.
func (s *Session) RemoveConcatColumnAt(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	cols := s.draft.Rule.InputColumns
	if index < 0 || index >= len(cols) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(cols))
	}
	next := make([]string, 0, len(cols)-1)
	next = append(next, cols[:index]...)
	s.draft.Rule.InputColumns = append(next, cols[index+1:]...)
	return nil
}

// ReplaceConcatColumnAt overwrites the concatenation input column at index.
func (s *Session) ReplaceConcatColumnAt(index int, column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	cols := s.draft.Rule.InputColumns
	if index < 0 || index >= len(cols) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(cols))
	}
	cols[index] = column
	return nil
}

// SelectSchemaField writes a picked schema field into the field the active
// rule type routes picks to: targetAttribute for mapping rules, outputColumn
// for drop rules and inputColumn for everything else.
func (s *Session) SelectSchemaField(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	d, err := s.registry.DescriptorFor(s.draft.Rule.Type)
	if err != nil {
		return err
	}
	if !d.HasSchemaFieldSelector {
		return fmt.Errorf("%w: %s", ErrNoSchemaField, d.RuleType)
	}
	s.draft.Rule.SetField(d.FieldTarget, path)
	return nil
}

// Edit applies a patch to the draft's free-text fields.
func (s *Session) Edit(p DraftPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireEditing(); err != nil {
		return err
	}
	r := &s.draft.Rule
	setString(&r.OutputColumn, p.OutputColumn)
	setString(&r.InputColumn, p.InputColumn)
	setString(&r.InputColumnAlias, p.InputColumnAlias)
	setString(&r.OutputDataType, p.OutputDataType)
	setString(&r.Value, p.Value)
	setString(&r.SparkConfKey, p.SparkConfKey)
	setString(&r.TargetAttribute, p.TargetAttribute)
	if p.ControlCheckpoint != nil {
		r.ControlCheckpoint = *p.ControlCheckpoint
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Submit validates the draft and commits it into the conformance list.
//
// A draft that fails validation keeps the session Editing and returns a
// *SubmitError. Mapping rules have their join conditions folded into
// attributeMappings; a duplicate mapping table field blocks the commit with
// an error wrapping ErrDuplicateMappingField. New rules are appended to the
// list as it is at commit time and the returned rule carries that order.
// A store failure, or an edited rule that changed since Open, keeps the
// session Editing with the list unchanged.
func (s *Session) Submit(ctx context.Context) (ConformanceRule, error) {
	s.mu.Lock()
	switch s.state {
	case StateEditing:
	case StateCommitting:
		s.mu.Unlock()
		return ConformanceRule{}, ErrCommitInProgress
	default:
		s.mu.Unlock()
		return ConformanceRule{}, ErrSessionNotEditing
	}
	s.touch()
	s.state = StateValidating

	d, err := s.registry.DescriptorFor(s.draft.Rule.Type)
	if err != nil {
		s.state = StateEditing
		s.mu.Unlock()
		return ConformanceRule{}, err
	}

	rule := s.draft.Rule.Clone()
	current := s.list.Rules()
	if !s.draft.IsEdit {
		rule.Order = len(current)
	}
	sc := NewSchemaContext(s.schema, current, rule.Order)
	sc.IsEdit = s.draft.IsEdit
	sc.JoinConditions = s.joins.All()
	if rule.Type == MappingRuleType && s.mappingSchema != nil {
		mt := *s.mappingSchema
		sc.MappingTable = &mt
	}

	if res := d.Validate(rule, sc); !res.Valid {
		s.errors = res.Errors
		s.state = StateEditing
		s.mu.Unlock()
		s.recorder.SubmitRejected(rule.Type)
		s.logger.Info("rule rejected", "rule_type", rule.Type, "errors", len(res.Errors))
		return ConformanceRule{}, &SubmitError{Errors: res.Errors, cause: ErrValidationFailed}
	}

	s.state = StateCommitting
	if rule.Type == MappingRuleType {
		attrs, err := s.joins.ToAttributeMapping()
		if err != nil {
			ve := ValidationError{Field: "joinConditions", Message: err.Error()}
			s.errors = []ValidationError{ve}
			s.state = StateEditing
			s.mu.Unlock()
			s.recorder.SubmitRejected(rule.Type)
			return ConformanceRule{}, &SubmitError{Errors: []ValidationError{ve}, cause: err}
		}
		rule.AttributeMappings = attrs
		rule.JoinConditions = nil
	}
	s.errors = nil
	list, base, isEdit := s.list, s.base, s.draft.IsEdit
	s.mu.Unlock()

	ds, committed, err := list.Commit(ctx, s.store, rule, base)

	s.mu.Lock()
	if err != nil {
		s.state = StateEditing
		s.mu.Unlock()
		if errors.Is(err, ErrRuleChanged) {
			s.logger.Warn("edited rule changed concurrently", "rule_type", rule.Type, "order", rule.Order)
		} else {
			s.logger.Error("commit failed", "rule_type", rule.Type, "order", rule.Order, "error", err)
		}
		return ConformanceRule{}, err
	}
	s.nextToken()
	s.reset()
	s.mu.Unlock()
	rule = committed

	s.recorder.RuleCommitted(rule.Type, isEdit)
	s.logger.Info("rule committed", "rule_type", rule.Type, "order", rule.Order, "is_edit", isEdit)

	evt := ConformanceUpdated{
		ID:             uuid.NewString(),
		Dataset:        ds.Name,
		DatasetVersion: ds.Version,
		RuleType:       rule.Type,
		Order:          rule.Order,
		IsEdit:         isEdit,
		Conformance:    ds.Conformance,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.notifier.ConformanceUpdated(ctx, evt); err != nil {
		s.logger.Warn("conformance update notification failed", "error", err)
	}
	return rule, nil
}

// Cancel discards the draft. In-flight resolutions become stale. Cancelling
// a closed session is a no-op; a commit in flight cannot be cancelled.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return nil
	case StateCommitting:
		return ErrCommitInProgress
	}
	s.nextToken()
	s.reset()
	s.logger.Debug("session cancelled")
	return nil
}

// Snapshot returns the current state for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:             s.id,
		State:          s.state,
		Draft:          Draft{Title: s.draft.Title, IsEdit: s.draft.IsEdit, Rule: s.draft.Rule.Clone()},
		JoinConditions: s.joins.All(),
		DatasetSchema:  s.schema,
		Errors:         append([]ValidationError(nil), s.errors...),
	}
	if len(s.mappingTables) > 0 {
		snap.MappingTables = append([]MappingTableSummary(nil), s.mappingTables...)
	}
	if len(s.versions) > 0 {
		snap.MappingTableVersions = append([]int(nil), s.versions...)
	}
	if s.mappingSchema != nil {
		mt := *s.mappingSchema
		snap.MappingTableSchema = &mt
	}
	if s.resolution != nil {
		res := *s.resolution
		snap.JoinContext = &res
	}
	if s.resolveErr != nil {
		snap.ResolveError = s.resolveErr.Error()
	}
	if d, err := s.registry.DescriptorFor(s.draft.Rule.Type); err == nil && d.HasSchemaFieldSelector {
		snap.HasSchemaFieldSelector = true
		snap.FieldTarget = d.FieldTarget
		snap.SelectedField = s.draft.Rule.Field(d.FieldTarget)
	}
	return snap
}

// loadMappingDefaults fills the mapping table selector and resolves the
// draft's mapping table. When adding, the first available table and its
// latest version become the draft's selection.
func (s *Session) loadMappingDefaults(ctx context.Context, tok uint64, adding bool) error {
	tables, err := s.tables.ListMappingTables(ctx)
	if adding && err == nil && len(tables) == 0 {
		err = fmt.Errorf("%w: no mapping tables available", ErrMappingTableNotFound)
	}
	var id string
	var version int
	err = s.complete(tok, err, func() {
		s.mappingTables = tables
		if adding {
			s.draft.Rule.MappingTable = tables[0].Name
			s.draft.Rule.MappingTableVersion = tables[0].LatestVersion
		}
		id, version = s.draft.Rule.MappingTable, s.draft.Rule.MappingTableVersion
	})
	if err != nil {
		return err
	}

	versions, err := s.tables.ListVersions(ctx, id)
	if err = s.complete(tok, err, func() { s.versions = versions }); err != nil {
		return err
	}
	return s.resolveVersion(ctx, tok, id, version)
}

// resolveVersion resolves a mapping table version, using the session cache.
func (s *Session) resolveVersion(ctx context.Context, tok uint64, id string, version int) error {
	key := mappingKey{id: id, version: version}

	s.mu.Lock()
	if tok != s.token {
		s.mu.Unlock()
		s.recorder.StaleDiscarded()
		return ErrStaleResolution
	}
	res, hit := s.cache[key]
	dataset := s.list.Dataset().SchemaRef()
	s.mu.Unlock()

	var err error
	if !hit {
		start := time.Now()
		res, err = s.tables.Resolve(ctx, id, version, dataset)
		s.recorder.ResolveObserved(start, err)
	}

	return s.complete(tok, err, func() {
		s.cache[key] = res
		s.resolution = &res
		if s.draft.Rule.Type == MappingRuleType {
			mt := res.MappingTable.Schema
			s.mappingSchema = &mt
		}
	})
}

// complete applies the result of an asynchronous lookup if tok is still
// current. Failures are recorded on the session and empty the join set.
func (s *Session) complete(tok uint64, err error, apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tok != s.token {
		s.recorder.StaleDiscarded()
		s.logger.Debug("discarding stale resolution", "token", tok, "current", s.token)
		return ErrStaleResolution
	}
	if err != nil {
		s.resolveErr = err
		s.joins.Reset()
		s.mappingSchema = nil
		s.resolution = nil
		return err
	}
	if apply != nil {
		apply()
	}
	return nil
}

func (s *Session) requireEditing() error {
	if s.state != StateEditing {
		return fmt.Errorf("%w (state %s)", ErrSessionNotEditing, s.state)
	}
	s.touch()
	return nil
}

func (s *Session) clearMappingState() {
	s.draft.Rule.TargetAttribute = ""
	s.joins.Reset()
	s.versions = nil
	s.mappingSchema = nil
	s.resolution = nil
	s.resolveErr = nil
}

func (s *Session) nextToken() uint64 {
	s.token++
	return s.token
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

// reset returns the session to Closed with no draft. Callers hold mu.
func (s *Session) reset() {
	s.state = StateClosed
	s.list = nil
	s.base = nil
	s.schema = Schema{}
	s.draft = Draft{}
	s.joins = &JoinConditionSet{}
	s.mappingTables = nil
	s.versions = nil
	s.mappingSchema = nil
	s.resolution = nil
	s.cache = make(map[mappingKey]Resolution)
	s.errors = nil
	s.resolveErr = nil
	s.touch()
}

// idleSince reports when the session was last used.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
