package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"allergen-guard/internal/core/allergy"
	"allergen-guard/internal/core/related"
	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	common.InitNopLogger()
	db, err := Open(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestRelatedStore_ReplaceAndSearch(t *testing.T) {
	ctx := context.Background()
	store := NewRelatedStore(openTestDB(t))

	require.NoError(t, store.Insert(ctx, []related.Food{
		{UserID: "u1", Allergen: "milk", ProductName: "Chocolate Milk", IngredientsText: "milk, cocoa"},
		{UserID: "u1", Allergen: "milk", ProductName: "Cheese 50%"},
		{UserID: "u1", Allergen: "peanut", ProductName: "Peanut Chocolate Bar"},
		{UserID: "u1", Allergen: "tree nuts", ProductName: "tree_nuts mix"},
		{UserID: "u1", Allergen: "tree nuts", ProductName: "treeXnuts bar"},
	}))

	n, err := store.Count(ctx, "u1", "milk")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := store.SearchByName(ctx, "u1", "CHOCOLATE", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Chocolate Milk", rows[0].ProductName)

	rows, err = store.SearchByName(ctx, "u1", "50%", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cheese 50%", rows[0].ProductName)

	rows, err = store.SearchByName(ctx, "u1", "Tree_Nuts", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "tree_nuts mix", rows[0].ProductName)

	mem := related.NewMemoryStore()
	require.NoError(t, mem.Insert(ctx, []related.Food{
		{UserID: "u1", Allergen: "tree nuts", ProductName: "tree_nuts mix"},
		{UserID: "u1", Allergen: "tree nuts", ProductName: "treeXnuts bar"},
	}))
	memRows, err := mem.SearchByName(ctx, "u1", "Tree_Nuts", 10)
	require.NoError(t, err)
	require.Len(t, memRows, 1)
	assert.Equal(t, rows[0].ProductName, memRows[0].ProductName)

	require.NoError(t, store.DeleteFor(ctx, "u1", "milk"))
	rows, err = store.List(ctx, "u1", "milk")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = store.List(ctx, "u1", "peanut")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRelatedStore_WorksWithTokens(t *testing.T) {
	ctx := context.Background()
	store := NewRelatedStore(openTestDB(t))
	require.NoError(t, store.Insert(ctx, []related.Food{
		{UserID: "u1", Allergen: "peanut", ProductName: "Satay", IngredientsText: "groundnut oil; chili"},
	}))

	tokens, err := related.Tokens(ctx, store, "u1", []string{"peanut", "egg"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"peanut": {"satay", "groundnut oil", "chili"}}, tokens)
}

func TestAllergyStore_CRUD(t *testing.T) {
	ctx := context.Background()
	svc := allergy.NewService(NewAllergyStore(openTestDB(t)), nil)

	first, err := svc.Add(ctx, "u1", "Milk")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = svc.Add(ctx, "u1", "peanut")
	require.NoError(t, err)

	keys, err := svc.Keys(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"milk", "peanut"}, keys)

	require.NoError(t, svc.Delete(ctx, "u1", first.ID))
	err = svc.Delete(ctx, "u1", first.ID)
	assert.True(t, common.IsCode(err, common.ErrCodeNotFound))

	rows, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "peanut", rows[0].Allergen)
}
