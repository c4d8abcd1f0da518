package storage_test

import (
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/util/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
	"time"
)

func openBoltStore(t *testing.T) *storage.BoltStore {
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "status.db"))
	require.Nil(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreStatus(t *testing.T) {
	store := openBoltStore(t)
	status, err := store.GetStatus("d1")
	require.Nil(t, err)
	assert.True(t, status.IsEmpty())
	assert.Equal(t, "d1", status.DepositId)

	require.Nil(t, store.UpdateStatus("d1", constants.FieldPackagingType, constants.PackagingBagIt))
	require.Nil(t, store.UpdateStatus("d1", constants.FieldState, constants.StateFailed))
	require.Nil(t, store.UpdateStatus("d1", constants.FieldErrorMessage, "bad"))
	require.Nil(t, store.UpdateStatus("d1", constants.FieldState, constants.StateValidating))

	status, err = store.GetStatus("d1")
	require.Nil(t, err)
	assert.Equal(t, constants.PackagingBagIt, status.PackagingType())
	assert.Equal(t, constants.StateValidating, status.State())
	assert.Equal(t, "bad", status.ErrorMessage())

	require.Nil(t, store.ClearStatusFields("d1", constants.FieldErrorMessage, "noSuchField"))
	status, err = store.GetStatus("d1")
	require.Nil(t, err)
	assert.Equal(t, "", status.ErrorMessage())
	assert.Equal(t, constants.PackagingBagIt, status.PackagingType())
}

func TestBoltStoreCompletionLog(t *testing.T) {
	store := openBoltStore(t)
	tokens, err := store.CompletedJobTypes("d1")
	require.Nil(t, err)
	assert.Empty(t, tokens)

	require.Nil(t, store.JobSucceeded("d1", constants.JobNormalizeBagIt))
	require.Nil(t, store.JobSucceeded("d1", constants.JobVirusScan))
	require.Nil(t, store.JobSucceeded("d1", constants.JobNormalizeBagIt))
	assert.NotNil(t, store.JobSucceeded("d1", constants.JobValidationBatch))
	assert.NotNil(t, store.JobSucceeded("d1", constants.JobNone))

	tokens, err = store.CompletedJobTypes("d1")
	require.Nil(t, err)
	assert.Equal(t, []string{"NormalizeBagIt", "VirusScan"}, tokens)

	tokens, err = store.CompletedJobTypes("d2")
	require.Nil(t, err)
	assert.Empty(t, tokens)
}

func TestBoltStoreExpiry(t *testing.T) {
	store := openBoltStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	require.Nil(t, store.UpdateStatus("d1", constants.FieldState, constants.StateComplete))
	require.Nil(t, store.JobSucceeded("d1", constants.JobCleanup))
	require.Nil(t, store.UpdateStatus("d2", constants.FieldState, constants.StateComplete))
	require.Nil(t, store.ExpireStatus("d1", time.Hour))
	require.Nil(t, store.ExpireStatus("d2", 2*time.Hour))

	// Still readable until the TTL runs out.
	now = now.Add(59 * time.Minute)
	status, err := store.GetStatus("d1")
	require.Nil(t, err)
	assert.Equal(t, constants.StateComplete, status.State())

	now = now.Add(2 * time.Minute)
	status, err = store.GetStatus("d1")
	require.Nil(t, err)
	assert.True(t, status.IsEmpty())
	tokens, err := store.CompletedJobTypes("d1")
	require.Nil(t, err)
	assert.Empty(t, tokens)

	now = now.Add(2 * time.Hour)
	purged, err := store.PurgeExpired()
	require.Nil(t, err)
	assert.Equal(t, 1, purged)
	status, err = store.GetStatus("d2")
	require.Nil(t, err)
	assert.True(t, status.IsEmpty())
	purged, err = store.PurgeExpired()
	require.Nil(t, err)
	assert.Equal(t, 0, purged)
}

func TestBoltStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.db")
	store, err := storage.NewBoltStore(path)
	require.Nil(t, err)
	require.Nil(t, store.UpdateStatus("d1", constants.FieldFileName, "bag.tar"))
	require.Nil(t, store.JobSucceeded("d1", constants.JobUnpackDeposit))
	require.Nil(t, store.Close())

	store, err = storage.NewBoltStore(path)
	require.Nil(t, err)
	defer store.Close()
	assert.Equal(t, path, store.FilePath())
	status, err := store.GetStatus("d1")
	require.Nil(t, err)
	assert.Equal(t, "bag.tar", status.FileName())
	tokens, err := store.CompletedJobTypes("d1")
	require.Nil(t, err)
	assert.Equal(t, []string{"UnpackDeposit"}, tokens)
}
