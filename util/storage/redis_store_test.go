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

func TestRedisStoreKeys(t *testing.T) {
	store := storage.NewRedisStore(nil, "")
	assert.Equal(t, "deposit:status:d1", store.StatusKey("d1"))
	assert.Equal(t, "deposit:completed:d1", store.CompletedKey("d1"))

	store = storage.NewRedisStore(nil, "test")
	assert.Equal(t, "test:status:d1", store.StatusKey("d1"))
}

// Runs only when DEPOSIT_TEST_REDIS points at a redis server we may
// write to, e.g. "localhost:6379".
func TestRedisStoreLive(t *testing.T) {
	address := os.Getenv("DEPOSIT_TEST_REDIS")
	if address == "" {
		t.Skip("DEPOSIT_TEST_REDIS not set")
	}
	client, err := storage.NewRedisClient(address, os.Getenv("REDIS_PASSWORD"), 0)
	require.Nil(t, err)
	store := storage.NewRedisStore(client, "deposit_test")
	defer store.Close()

	depositId := testutil.MakeDepositId()
	require.Nil(t, store.UpdateStatus(depositId, constants.FieldState, constants.StateFailed))
	require.Nil(t, store.UpdateStatus(depositId, constants.FieldErrorMessage, "bad"))
	require.Nil(t, store.ClearStatusFields(depositId, constants.FieldErrorMessage))
	status, err := store.GetStatus(depositId)
	require.Nil(t, err)
	assert.Equal(t, constants.StateFailed, status.State())
	assert.Equal(t, "", status.ErrorMessage())

	require.Nil(t, store.JobSucceeded(depositId, constants.JobNormalizeBagIt))
	require.Nil(t, store.JobSucceeded(depositId, constants.JobVirusScan))
	require.Nil(t, store.JobSucceeded(depositId, constants.JobNormalizeBagIt))
	tokens, err := store.CompletedJobTypes(depositId)
	require.Nil(t, err)
	assert.Equal(t, []string{"NormalizeBagIt", "VirusScan"}, tokens)

	require.Nil(t, store.ExpireStatus(depositId, time.Second))
	time.Sleep(1500 * time.Millisecond)
	status, err = store.GetStatus(depositId)
	require.Nil(t, err)
	assert.True(t, status.IsEmpty())
}
