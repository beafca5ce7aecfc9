package sync

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/favsync/internal/entities"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Repository) {
	dbPath := filepath.Join(t.TempDir(), "sync.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.SyncProgress{})
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return db, NewRepository(db)
}

func TestRepository_StartSync(t *testing.T) {
	_, repo := setupTestDB(t)

	err := repo.StartSync("favorites:u1")
	require.NoError(t, err)

	progress, err := repo.GetSyncProgress()
	require.NoError(t, err)
	assert.Equal(t, entities.SyncTypeReconcile, progress.SyncType)
	assert.Equal(t, entities.SyncStatusRunning, progress.Status)
	assert.Equal(t, "favorites:u1", progress.Scope)
	assert.Nil(t, progress.CompletedAt)
}

func TestRepository_StartSync_Reset(t *testing.T) {
	_, repo := setupTestDB(t)

	require.NoError(t, repo.StartSync("favorites:u1"))
	require.NoError(t, repo.CompleteSync(entities.SyncStatusFailed, 0, "boom"))

	require.NoError(t, repo.StartSync("favorites:u2"))

	progress, err := repo.GetSyncProgress()
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusRunning, progress.Status)
	assert.Equal(t, "favorites:u2", progress.Scope)
	assert.Empty(t, progress.Error)
	assert.Nil(t, progress.CompletedAt)
}

func TestRepository_CompleteSync(t *testing.T) {
	_, repo := setupTestDB(t)

	require.NoError(t, repo.StartSync("favorites:u1"))
	require.NoError(t, repo.CompleteSync(entities.SyncStatusCompleted, 3, ""))

	progress, err := repo.GetSyncProgress()
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusCompleted, progress.Status)
	assert.Equal(t, 3, progress.TotalItems)
	assert.NotNil(t, progress.CompletedAt)
}

func TestRepository_CompleteSync_Failed(t *testing.T) {
	_, repo := setupTestDB(t)

	require.NoError(t, repo.StartSync("favorites:u1"))
	require.NoError(t, repo.CompleteSync(entities.SyncStatusFailed, 0, "remote unreachable"))

	progress, err := repo.GetSyncProgress()
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusFailed, progress.Status)
	assert.Equal(t, "remote unreachable", progress.Error)
}

func TestRepository_IsSyncRunning(t *testing.T) {
	_, repo := setupTestDB(t)

	running, err := repo.IsSyncRunning()
	require.NoError(t, err)
	assert.False(t, running)

	require.NoError(t, repo.StartSync("favorites:u1"))

	running, err = repo.IsSyncRunning()
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, repo.CompleteSync(entities.SyncStatusCompleted, 0, ""))

	running, err = repo.IsSyncRunning()
	require.NoError(t, err)
	assert.False(t, running)
}

func TestRepository_IsSyncRunning_Stale(t *testing.T) {
	db, repo := setupTestDB(t)

	require.NoError(t, repo.StartSync("favorites:u1"))

	staleTime := time.Now().Add(-15 * time.Minute)
	require.NoError(t, db.Model(&entities.SyncProgress{}).
		Where("sync_type = ?", entities.SyncTypeReconcile).
		UpdateColumn("updated_at", staleTime).Error)

	running, err := repo.IsSyncRunning()
	require.NoError(t, err)
	assert.False(t, running)

	progress, err := repo.GetSyncProgress()
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusFailed, progress.Status)
	assert.Equal(t, "sync was interrupted", progress.Error)
}
