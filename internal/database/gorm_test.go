package database_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/config"
	"lora-studio-backend/internal/database"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/store"
)

func openSQLiteTables(t *testing.T) *store.Tables {
	t.Helper()
	cfg := config.Defaults()
	cfg.StoreDriver = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "test.db")

	tables, closeFn, err := database.OpenTables(context.Background(), &cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	return tables
}

func TestGormTableCRUD(t *testing.T) {
	ctx := context.Background()
	models := openSQLiteTables(t).Models

	created, err := models.Create(ctx, store.Document{
		"id":         "m1",
		"userId":     "u1",
		"name":       "Portrait",
		"imageCount": 0,
		"trainingConfig": map[string]any{
			"steps": 1000,
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created["createdAt"])

	_, err = models.Create(ctx, store.Document{"id": "m1"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := models.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Portrait", got["name"])
	assert.Equal(t, float64(1000), got["trainingConfig"].(map[string]any)["steps"])

	updated, err := models.Update(ctx, "m1", store.Document{"name": "Renamed", "createdAt": "bogus"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated["name"])
	assert.Equal(t, created["createdAt"], updated["createdAt"])

	_, err = models.Update(ctx, "missing", store.Document{"name": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, models.Delete(ctx, "m1"))
	assert.ErrorIs(t, models.Delete(ctx, "m1"), store.ErrNotFound)

	gone, err := models.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestGormTableIndexAndScan(t *testing.T) {
	ctx := context.Background()
	tables := openSQLiteTables(t)

	for _, doc := range []store.Document{
		{"id": "i1", "userId": "u1", "modelId": "m1"},
		{"id": "i2", "userId": "u1", "modelId": "m2"},
		{"id": "i3", "userId": "u2", "modelId": "m1"},
	} {
		_, err := tables.TrainingImages.Create(ctx, doc)
		require.NoError(t, err)
	}
	// Same id in another logical table must not collide.
	_, err := tables.GeneratedImages.Create(ctx, store.Document{"id": "i1", "userId": "u1", "modelId": "m1"})
	require.NoError(t, err)

	byModel, err := tables.TrainingImages.QueryByIndex(ctx, store.IndexModelID, "m1")
	require.NoError(t, err)
	assert.Len(t, byModel, 2)

	byUser, err := tables.TrainingImages.QueryByIndex(ctx, store.IndexUserID, "u1")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	scanned, err := tables.TrainingImages.Scan(ctx, func(doc store.Document) bool {
		return doc.String("userId") == "u2"
	})
	require.NoError(t, err)
	require.Len(t, scanned, 1)
	assert.Equal(t, "i3", scanned[0]["id"])
}

func TestGormTableIncrement(t *testing.T) {
	ctx := context.Background()
	models := openSQLiteTables(t).Models
	_, err := models.Create(ctx, store.Document{"id": "m1", "imageCount": 0})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := models.Increment(ctx, "m1", "imageCount", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, err := models.Increment(ctx, "m1", "imageCount", -3)
	require.NoError(t, err)
	assert.Equal(t, 7, doc.Int("imageCount"))

	_, err = models.Increment(ctx, "missing", "imageCount", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	names, err := database.Migrations()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create_documents.sql", "002_document_indexes.sql"}, names)
}
