package storage_test

import (
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/util/storage"
	"github.com/APTrust/deposit/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"testing"
	"time"
)

func TestNewPostgresStore_EmptyDSN(t *testing.T) {
	_, err := storage.NewPostgresStore("")
	assert.NotNil(t, err)
}

// Runs only when DEPOSIT_TEST_POSTGRES_DSN points at a database we
// may create tables in.
func TestPostgresStoreLive(t *testing.T) {
	dsn := os.Getenv("DEPOSIT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DEPOSIT_TEST_POSTGRES_DSN not set")
	}
	store, err := storage.NewPostgresStore(dsn)
	require.Nil(t, err)
	defer store.Close()

	depositId := testutil.MakeDepositId()
	require.Nil(t, store.UpdateStatus(depositId, constants.FieldState, constants.StateFailed))
	require.Nil(t, store.UpdateStatus(depositId, constants.FieldErrorMessage, "bad"))
	require.Nil(t, store.UpdateStatus(depositId, constants.FieldState, constants.StateValidating))
	require.Nil(t, store.ClearStatusFields(depositId, constants.FieldErrorMessage))
	status, err := store.GetStatus(depositId)
	require.Nil(t, err)
	assert.Equal(t, constants.StateValidating, status.State())
	assert.Equal(t, "", status.ErrorMessage())

	require.Nil(t, store.JobSucceeded(depositId, constants.JobNormalizeBagIt))
	require.Nil(t, store.JobSucceeded(depositId, constants.JobVirusScan))
	require.Nil(t, store.JobSucceeded(depositId, constants.JobNormalizeBagIt))
	tokens, err := store.CompletedJobTypes(depositId)
	require.Nil(t, err)
	assert.Equal(t, []string{"NormalizeBagIt", "VirusScan"}, tokens)

	require.Nil(t, store.ExpireStatus(depositId, -time.Second))
	status, err = store.GetStatus(depositId)
	require.Nil(t, err)
	assert.True(t, status.IsEmpty())
	purged, err := store.PurgeExpired()
	require.Nil(t, err)
	assert.True(t, purged >= 1)
}
