package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/JonMunkholm/menas/internal/core"
	"github.com/JonMunkholm/menas/internal/core/mocks"
	"github.com/JonMunkholm/menas/internal/store"
)

func threeRules() core.Dataset {
	return core.Dataset{
		Name: "people", Version: 1, SchemaName: "people", SchemaVersion: 1,
		Conformance: []core.ConformanceRule{
			{Type: "A", Order: 0, OutputColumn: "a"},
			{Type: "B", Order: 1, OutputColumn: "b"},
			{Type: "C", Order: 2, OutputColumn: "c"},
		},
	}
}

func TestConformanceListCommit(t *testing.T) {
	ruleB := threeRules().Conformance[1]

	tests := []struct {
		name      string
		rule      core.ConformanceRule
		base      *core.ConformanceRule
		wantTypes []string
		wantOrder int
		wantErr   error
	}{
		{name: "append", rule: core.ConformanceRule{Type: "D", Order: 3}, wantTypes: []string{"A", "B", "C", "D"}, wantOrder: 3},
		{name: "add ignores stale order", rule: core.ConformanceRule{Type: "D", Order: 1}, wantTypes: []string{"A", "B", "C", "D"}, wantOrder: 3},
		{name: "edit overwrites", rule: core.ConformanceRule{Type: "D", Order: 1}, base: &ruleB, wantTypes: []string{"A", "D", "C"}, wantOrder: 1},
		{name: "edit past end", rule: core.ConformanceRule{Type: "D", Order: 3}, base: &ruleB, wantErr: core.ErrOrderOutOfRange},
		{name: "edit of changed rule", rule: core.ConformanceRule{Type: "D", Order: 2}, base: &ruleB, wantErr: core.ErrRuleChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			mem.PutDataset(threeRules())
			list := core.NewConformanceList(threeRules())

			ds, committed, err := list.Commit(context.Background(), mem, tt.rule, tt.base)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, threeRules().Conformance, list.Rules())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrder, committed.Order)

			var types []string
			for i, r := range list.Rules() {
				types = append(types, r.Type)
				assert.Equal(t, i, r.Order, "orders stay dense")
			}
			assert.Equal(t, tt.wantTypes, types)
			assert.False(t, ds.LastUpdated.IsZero())

			stored, err := mem.GetDataset(context.Background(), "people", 1)
			require.NoError(t, err)
			assert.Equal(t, list.Rules(), stored.Conformance)
		})
	}
}

func TestConformanceListCommitStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mocks.NewMockDatasetStore(ctrl)
	st.EXPECT().Update(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	list := core.NewConformanceList(threeRules())
	_, _, err := list.Commit(context.Background(), st, core.ConformanceRule{Type: "D"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update dataset people v1")
	assert.Equal(t, 3, list.Len())
}

func TestConformanceListConcurrentCommits(t *testing.T) {
	mem := store.NewMemory()
	mem.PutDataset(threeRules())
	list := core.NewConformanceList(threeRules())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := fmt.Sprintf("x%d", i)
			_, committed, err := list.Commit(context.Background(), mem, core.ConformanceRule{Type: "X", Order: 3, OutputColumn: out}, nil)
			if assert.NoError(t, err) {
				r, ok := list.At(committed.Order)
				assert.True(t, ok)
				assert.Equal(t, out, r.OutputColumn, "a committed rule keeps its position")
			}
		}(i)
	}
	wg.Wait()

	rules := list.Rules()
	require.Len(t, rules, 13)
	assert.Equal(t, threeRules().Conformance, rules[:3])
	for i, r := range rules {
		assert.Equal(t, i, r.Order)
	}
}

func TestDatasetLists(t *testing.T) {
	mem := store.NewMemory()
	mem.Load(store.DemoFixture())
	lists := core.NewDatasetLists(mem)
	ctx := context.Background()

	a, err := lists.Get(ctx, "people", 1)
	require.NoError(t, err)
	b, err := lists.Get(ctx, "people", 1)
	require.NoError(t, err)
	assert.Same(t, a, b, "sessions share one list per dataset version")

	_, err = lists.Get(ctx, "people", 9)
	assert.ErrorIs(t, err, core.ErrDatasetNotFound)

	ds, _ := mem.GetDataset(ctx, "people", 1)
	ds.Conformance = nil
	mem.PutDataset(ds)
	assert.NotZero(t, a.Len(), "a cached list is not reread by Get")

	c, err := lists.Load(ctx, "people", 1)
	require.NoError(t, err)
	assert.Same(t, a, c)
	assert.Equal(t, 0, a.Len(), "Load rereads the stored version")

	_, err = lists.Load(ctx, "people", 2)
	assert.ErrorIs(t, err, core.ErrDatasetNotFound)
}
