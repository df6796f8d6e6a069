package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/pricebox/games/priceguess"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func kitchen(id int64) priceguess.SetDefinition {
	return priceguess.SetDefinition{
		ID:        id,
		Name:      "Kitchen",
		PitchLine: "Things you cook with",
		Items: []priceguess.ItemDefinition{
			{ID: "kettle", Name: "Kettle", Description: "Boils water", Difficulty: "medium", Price: "49.99"},
			{ID: "toaster", Name: "Toaster", Difficulty: "hard", Price: "30"},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSet(ctx, kitchen(2)))
	require.NoError(t, store.SaveSet(ctx, kitchen(1)))

	defs, err := store.LoadSets(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, int64(1), defs[0].ID)
	assert.Equal(t, int64(2), defs[1].ID)

	got := defs[0]
	assert.Equal(t, "Kitchen", got.Name)
	assert.Equal(t, "Things you cook with", got.PitchLine)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "kettle", got.Items[0].ID)
	assert.Equal(t, "49.99", got.Items[0].Price.String())
	assert.True(t, got.CreatedAt.Equal(kitchen(1).CreatedAt))
	assert.True(t, got.UpdatedAt.Equal(kitchen(1).UpdatedAt))
}

func TestStore_SaveUpserts(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSet(ctx, kitchen(1)))

	changed := kitchen(1)
	changed.Name = "Cookware"
	changed.Items = changed.Items[:1]
	changed.CreatedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	changed.UpdatedAt = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSet(ctx, changed))

	defs, err := store.LoadSets(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	assert.Equal(t, "Cookware", defs[0].Name)
	assert.Len(t, defs[0].Items, 1)
	assert.True(t, defs[0].CreatedAt.Equal(kitchen(1).CreatedAt), "created_at is kept on update")
	assert.True(t, defs[0].UpdatedAt.Equal(changed.UpdatedAt))
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSet(ctx, kitchen(1)))
	require.NoError(t, store.DeleteSet(ctx, 1))
	require.NoError(t, store.DeleteSet(ctx, 1))

	defs, err := store.LoadSets(ctx)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestStore_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveSet(ctx, kitchen(7)))
	require.NoError(t, store.Close())

	store, err = New(path)
	require.NoError(t, err)
	defer store.Close()

	defs, err := store.LoadSets(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, int64(7), defs[0].ID)
}

func TestStore_BacksItemSetStore(t *testing.T) {
	t.Parallel()

	db := newTestStore(t)
	ctx := context.Background()

	sets := priceguess.NewStore(db)
	created, err := sets.Save(ctx, kitchen(0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	restored := priceguess.NewStore(db)
	n, skipped, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, 1, n)

	set, err := restored.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", set.Name)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, 49.99, set.Item(0).Price)
	assert.Equal(t, priceguess.Hard, set.Item(1).Difficulty)

	require.NoError(t, sets.Delete(ctx, created.ID))

	defs, err := db.LoadSets(ctx)
	require.NoError(t, err)
	assert.Empty(t, defs)
}
