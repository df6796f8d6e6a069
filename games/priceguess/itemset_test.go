package priceguess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

type memPersister struct {
	defs    map[int64]SetDefinition
	saveErr error
}

func newMemPersister() *memPersister {
	return &memPersister{defs: make(map[int64]SetDefinition)}
}

func (m *memPersister) LoadSets(context.Context) ([]SetDefinition, error) {
	out := make([]SetDefinition, 0, len(m.defs))
	for _, def := range m.defs {
		out = append(out, def)
	}
	return out, nil
}

func (m *memPersister) SaveSet(_ context.Context, def SetDefinition) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.defs[def.ID] = def
	return nil
}

func (m *memPersister) DeleteSet(_ context.Context, id int64) error {
	delete(m.defs, id)
	return nil
}

func newTestStore(p Persister) *Store {
	st := NewStore(p)
	st.newID = sequentialIDs("item-")
	st.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return st
}

func kitchenDef() SetDefinition {
	return SetDefinition{
		Name:      "Kitchen",
		PitchLine: "Things you cook with",
		Items: []ItemDefinition{
			{Name: "Kettle", Description: "Boils water", Image: "/uploads/kettle.png", Difficulty: "medium", Price: "100"},
			{Name: "Toaster", Description: "Two slots", Difficulty: "Hard", Price: "39.99"},
		},
	}
}

func TestBuild_Valid(t *testing.T) {
	t.Parallel()

	set, err := Build(kitchenDef(), sequentialIDs("id-"))
	require.NoError(t, err)

	require.Equal(t, 2, set.Len())
	assert.Equal(t, "Kitchen", set.Name)
	assert.Equal(t, Item{
		ID:          "id-1",
		Name:        "Kettle",
		Description: "Boils water",
		Image:       "/uploads/kettle.png",
		Difficulty:  Medium,
		Price:       100,
	}, set.Item(0))
	assert.Equal(t, Hard, set.Item(1).Difficulty)
	assert.Equal(t, 39.99, set.Item(1).Price)
}

func TestBuild_PriceFromJSONNumberOrString(t *testing.T) {
	t.Parallel()

	var def SetDefinition
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Mixed",
		"items": [
			{"name": "A", "difficulty": "easy", "price": 12.5},
			{"name": "B", "difficulty": "cruel", "price": "7"}
		]
	}`), &def))

	set, err := Build(def, sequentialIDs("id-"))
	require.NoError(t, err)
	assert.Equal(t, 12.5, set.Item(0).Price)
	assert.Equal(t, 7.0, set.Item(1).Price)
}

func TestBuild_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc   string
		mutate func(*SetDefinition)
	}{
		{"empty set name", func(d *SetDefinition) { d.Name = "  " }},
		{"no items", func(d *SetDefinition) { d.Items = nil }},
		{"empty item name", func(d *SetDefinition) { d.Items[1].Name = "" }},
		{"missing price", func(d *SetDefinition) { d.Items[1].Price = "" }},
		{"zero price", func(d *SetDefinition) { d.Items[1].Price = "0" }},
		{"negative price", func(d *SetDefinition) { d.Items[0].Price = "-3" }},
		{"unparseable price", func(d *SetDefinition) { d.Items[0].Price = "cheap" }},
		{"unknown difficulty", func(d *SetDefinition) { d.Items[1].Difficulty = "impossible" }},
		{"duplicate item id", func(d *SetDefinition) { d.Items[0].ID = "x"; d.Items[1].ID = "x" }},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			def := kitchenDef()
			def.Items = append([]ItemDefinition(nil), def.Items...)
			tc.mutate(&def)

			set, err := Build(def, sequentialIDs("id-"))
			assert.Nil(t, set)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestStore_LoadIsAtomic(t *testing.T) {
	t.Parallel()

	st := newTestStore(nil)

	bad := kitchenDef()
	bad.Items = append([]ItemDefinition(nil), bad.Items...)
	bad.Items[1].Price = "free"

	_, err := st.Load(bad)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "item 1")
	assert.Empty(t, st.List())
}

func TestStore_LoadAssignsIDsAndReplaces(t *testing.T) {
	t.Parallel()

	st := newTestStore(nil)

	first, err := st.Load(kitchenDef())
	require.NoError(t, err)
	second, err := st.Load(kitchenDef())
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	replacement := kitchenDef()
	replacement.ID = 1
	replacement.Name = "Garage"
	replacement.Items = replacement.Items[:1]
	_, err = st.Load(replacement)
	require.NoError(t, err)

	got, err := st.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Garage", got.Name)
	assert.Equal(t, 1, got.Len())

	assert.Equal(t, []SetSummary{
		{ID: 1, Name: "Garage", PitchLine: "Things you cook with", ItemCount: 1},
		{ID: 2, Name: "Kitchen", PitchLine: "Things you cook with", ItemCount: 2},
	}, st.List())
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	_, err := newTestStore(nil).Get(9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SavePersists(t *testing.T) {
	t.Parallel()

	p := newMemPersister()
	st := newTestStore(p)

	set, err := st.Save(context.Background(), kitchenDef())
	require.NoError(t, err)

	require.Contains(t, p.defs, set.ID)
	stored := p.defs[set.ID]
	assert.Equal(t, "Kitchen", stored.Name)
	assert.Equal(t, "item-1", stored.Items[0].ID)
	assert.Equal(t, "medium", stored.Items[0].Difficulty)
	assert.Equal(t, "39.99", stored.Items[1].Price.String())
}

func TestStore_SaveUnknownIDFails(t *testing.T) {
	t.Parallel()

	p := newMemPersister()
	st := newTestStore(p)

	def := kitchenDef()
	def.ID = 7

	_, err := st.Save(context.Background(), def)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, p.defs)

	results := st.Import(context.Background(), []SetDefinition{def})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, int64(7), results[0].Set.ID)
	assert.False(t, results[0].Replaced)
	assert.Contains(t, p.defs, int64(7))
}

func named(id int64, name string) SetDefinition {
	def := kitchenDef()
	def.ID = id
	def.Name = name
	return def
}

func TestStore_ImportKeepsEverySet(t *testing.T) {
	t.Parallel()

	p := newMemPersister()
	st := newTestStore(p)

	results := st.Import(context.Background(), []SetDefinition{
		named(0, "First"),
		named(1, "Second"),
		named(1, "Repeat"),
		named(0, "Third"),
	})
	require.Len(t, results, 4)

	got := make(map[string]int64)
	for _, res := range results {
		require.NoError(t, res.Err)
		assert.False(t, res.Replaced, res.Set.Name)
		got[res.Set.Name] = res.Set.ID
	}

	assert.Equal(t, map[string]int64{"First": 2, "Second": 1, "Repeat": 3, "Third": 4}, got)
	assert.Len(t, st.List(), 4)
	assert.Len(t, p.defs, 4)
	assert.Equal(t, int64(0), results[0].SourceID)
	assert.Equal(t, int64(1), results[2].SourceID)
}

func TestStore_ImportSkipsReservedIDs(t *testing.T) {
	t.Parallel()

	st := newTestStore(nil)

	results := st.Import(context.Background(), []SetDefinition{
		named(0, "Unnumbered"),
		named(1, "One"),
		named(2, "Two"),
	})

	require.NoError(t, results[0].Err)
	assert.Equal(t, int64(3), results[0].Set.ID)
	assert.Equal(t, []int64{3, 1, 2}, []int64{results[0].Set.ID, results[1].Set.ID, results[2].Set.ID})
}

func TestStore_ImportReportsReplacedAndInvalid(t *testing.T) {
	t.Parallel()

	p := newMemPersister()
	st := newTestStore(p)

	existing, err := st.Save(context.Background(), kitchenDef())
	require.NoError(t, err)

	broken := named(5, "Broken")
	broken.Items = nil

	results := st.Import(context.Background(), []SetDefinition{
		named(existing.ID, "Updated"),
		broken,
		named(-2, "Negative"),
	})
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.True(t, results[0].Replaced)

	assert.ErrorIs(t, results[1].Err, ErrValidation)
	assert.False(t, results[1].Replaced)
	assert.ErrorIs(t, results[2].Err, ErrValidation)

	got, err := st.Get(existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Name)
	assert.Len(t, st.List(), 1)
	assert.NotContains(t, p.defs, int64(5))
}

func TestSetDefinition_Timestamps(t *testing.T) {
	t.Parallel()

	decode := func(created string) (SetDefinition, error) {
		var def SetDefinition
		err := json.Unmarshal([]byte(`{"id":2,"name":"Gadgets","items":[],"created_at":`+created+`}`), &def)
		return def, err
	}

	def, err := decode(`"2024-05-01T10:00:00.123456"`)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC), def.CreatedAt)
	assert.Equal(t, int64(2), def.ID)
	assert.Equal(t, "Gadgets", def.Name)
	assert.True(t, def.UpdatedAt.IsZero())

	def, err = decode(`"2024-05-01T10:00:00"`)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), def.CreatedAt)

	def, err = decode(`"2024-05-01T12:00:00+02:00"`)
	require.NoError(t, err)
	assert.True(t, def.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	def, err = decode(`null`)
	require.NoError(t, err)
	assert.True(t, def.CreatedAt.IsZero())

	_, err = decode(`"last tuesday"`)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStore_SavePersistFailureKeepsMemory(t *testing.T) {
	t.Parallel()

	p := newMemPersister()
	p.saveErr = errors.New("disk full")
	st := newTestStore(p)

	_, err := st.Save(context.Background(), kitchenDef())
	require.Error(t, err)
	assert.Empty(t, st.List())
}

func TestStore_RestoreSkipsInvalid(t *testing.T) {
	t.Parallel()

	p := newMemPersister()
	good := kitchenDef()
	good.ID = 3
	bad := kitchenDef()
	bad.ID = 4
	bad.Items = []ItemDefinition{{Name: "Broken", Difficulty: "easy", Price: "-1"}}
	p.defs[3] = good
	p.defs[4] = bad

	st := newTestStore(p)

	loaded, skipped, err := st.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0], ErrValidation)

	_, err = st.Get(3)
	assert.NoError(t, err)
	_, err = st.Get(4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	p := newMemPersister()
	st := newTestStore(p)

	set, err := st.Save(context.Background(), kitchenDef())
	require.NoError(t, err)

	require.NoError(t, st.Delete(context.Background(), set.ID))
	assert.Empty(t, p.defs)
	assert.ErrorIs(t, st.Delete(context.Background(), set.ID), ErrNotFound)
}

func TestItemSet_ItemsIsACopy(t *testing.T) {
	t.Parallel()

	set, err := Build(kitchenDef(), sequentialIDs("id-"))
	require.NoError(t, err)

	items := set.Items()
	items[0].Price = 1

	assert.Equal(t, 100.0, set.Item(0).Price)
}
