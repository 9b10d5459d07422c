package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinConditionSetIndexing(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		wantErr bool
	}{
		{name: "first", index: 0},
		{name: "last", index: 1},
		{name: "negative", index: -1, wantErr: true},
		{name: "past end", index: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run("remove "+tt.name, func(t *testing.T) {
			s := &JoinConditionSet{}
			s.Add("a", "x")
			s.Add("b", "y")

			err := s.RemoveAt(tt.index)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIndexOutOfRange)
				assert.Equal(t, 2, s.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, s.Len())
		})

		t.Run("replace "+tt.name, func(t *testing.T) {
			s := &JoinConditionSet{}
			s.Add("a", "x")
			s.Add("b", "y")

			err := s.ReplaceAt(tt.index, "c", "z")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIndexOutOfRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, JoinCondition{DatasetField: "c", MappingTableField: "z"}, s.All()[tt.index])
		})
	}
}

func TestJoinConditionSetRemoveKeepsOrder(t *testing.T) {
	s := &JoinConditionSet{}
	s.Add("a", "x")
	s.Add("b", "y")
	s.Add("c", "z")

	require.NoError(t, s.RemoveAt(1))
	assert.Equal(t, []JoinCondition{
		{DatasetField: "a", MappingTableField: "x"},
		{DatasetField: "c", MappingTableField: "z"},
	}, s.All())
}

func TestAttributeMappingRoundTrip(t *testing.T) {
	tests := []map[string]string{
		{},
		{"code": "country_code"},
		{"code": "country_code", "region": "address.region", "name": "country_code"},
	}

	for _, m := range tests {
		got, err := FromAttributeMapping(m).ToAttributeMapping()
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestFromAttributeMappingIsSorted(t *testing.T) {
	s := FromAttributeMapping(map[string]string{"b": "2", "a": "1", "c": "3"})
	assert.Equal(t, []JoinCondition{
		{DatasetField: "1", MappingTableField: "a"},
		{DatasetField: "2", MappingTableField: "b"},
		{DatasetField: "3", MappingTableField: "c"},
	}, s.All())
}

func TestToAttributeMappingRejectsDuplicates(t *testing.T) {
	s := &JoinConditionSet{}
	s.Add("country_code", "code")
	s.Add("last_name", "code")

	_, err := s.ToAttributeMapping()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateMappingField))
	assert.Contains(t, err.Error(), `"code"`)
}

func TestAllReturnsCopy(t *testing.T) {
	s := &JoinConditionSet{}
	s.Add("a", "x")
	all := s.All()
	all[0].DatasetField = "changed"
	assert.Equal(t, "a", s.All()[0].DatasetField)
}
