package core

import (
	"fmt"
	"sort"
)

// JoinCondition pairs a dataset field with the mapping table field it joins on.
type JoinCondition struct {
	DatasetField      string `json:"datasetField"`
	MappingTableField string `json:"mappingTableField"`
}

// JoinConditionSet is the ordered, editable list of join conditions of a
// MappingConformanceRule. Duplicates are allowed while editing and rejected
// when the set is serialized.
type JoinConditionSet struct {
	items []JoinCondition
}

// FromAttributeMapping builds a set from a persisted attribute mapping
// (mapping table field -> dataset field). The persisted form is unordered;
// entries are sorted by mapping table field so the result is stable.
func FromAttributeMapping(m map[string]string) *JoinConditionSet {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := &JoinConditionSet{items: make([]JoinCondition, 0, len(keys))}
	for _, k := range keys {
		s.items = append(s.items, JoinCondition{MappingTableField: k, DatasetField: m[k]})
	}
	return s
}

// Add appends a join condition.
func (s *JoinConditionSet) Add(datasetField, mappingTableField string) {
	s.items = append(s.items, JoinCondition{DatasetField: datasetField, MappingTableField: mappingTableField})
}

// RemoveAt removes the condition at index.
func (s *JoinConditionSet) RemoveAt(index int) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.items))
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	return nil
}

// ReplaceAt overwrites the condition at index.
func (s *JoinConditionSet) ReplaceAt(index int, datasetField, mappingTableField string) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.items))
	}
	s.items[index] = JoinCondition{DatasetField: datasetField, MappingTableField: mappingTableField}
	return nil
}

// Reset empties the set.
func (s *JoinConditionSet) Reset() {
	s.items = nil
}

// Len returns the number of conditions.
func (s *JoinConditionSet) Len() int {
	return len(s.items)
}

// All returns a copy of the conditions in order.
func (s *JoinConditionSet) All() []JoinCondition {
	out := make([]JoinCondition, len(s.items))
	copy(out, s.items)
	return out
}

// ToAttributeMapping serializes the set into its committed form
// (mapping table field -> dataset field).
func (s *JoinConditionSet) ToAttributeMapping() (map[string]string, error) {
	m := make(map[string]string, len(s.items))
	for _, jc := range s.items {
		if _, dup := m[jc.MappingTableField]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateMappingField, jc.MappingTableField)
		}
		m[jc.MappingTableField] = jc.DatasetField
	}
	return m, nil
}
