package dispatch_test

import (
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/dispatch"
	"github.com/APTrust/deposit/util/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalDispatcher(t *testing.T) {
	dispatcher := dispatch.NewLocalDispatcher(2, logger.DiscardLogger("dispatch_test"))
	defer dispatcher.Close()

	var calls int32
	dispatcher.Register(constants.JobVirusScan, func(depositId string, jobType constants.JobType) error {
		atomic.AddInt32(&calls, 1)
		if depositId == "infected" {
			return fmt.Errorf("eicar found")
		}
		return nil
	})
	dispatcher.Register(constants.JobFixityCheck, func(depositId string, jobType constants.JobType) error {
		panic("checksum library exploded")
	})

	clean, err := dispatcher.Dispatch("clean", constants.JobVirusScan)
	require.Nil(t, err)
	infected, err := dispatcher.Dispatch("infected", constants.JobVirusScan)
	require.Nil(t, err)
	panicky, err := dispatcher.Dispatch("clean", constants.JobFixityCheck)
	require.Nil(t, err)

	outcomes := dispatch.JoinAll(5*time.Second, []*dispatch.Handle{clean, infected, panicky})
	assert.True(t, outcomes[0].Succeeded)
	assert.False(t, outcomes[1].Succeeded)
	assert.Equal(t, "eicar found", outcomes[1].Error)
	assert.False(t, outcomes[2].Succeeded)
	assert.Contains(t, outcomes[2].Error, "checksum library exploded")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestLocalDispatcher_Unregistered(t *testing.T) {
	dispatcher := dispatch.NewLocalDispatcher(1, logger.DiscardLogger("dispatch_test"))
	defer dispatcher.Close()
	_, err := dispatcher.Dispatch("d1", constants.JobTransferBinaries)
	assert.NotNil(t, err)
	_, err = dispatcher.Dispatch("d1", constants.JobValidationBatch)
	assert.NotNil(t, err)
}

func TestLocalDispatcher_Closed(t *testing.T) {
	dispatcher := dispatch.NewLocalDispatcher(1, logger.DiscardLogger("dispatch_test"))
	dispatcher.Register(constants.JobCleanup, func(string, constants.JobType) error { return nil })
	dispatcher.Close()
	dispatcher.Close()
	_, err := dispatcher.Dispatch("d1", constants.JobCleanup)
	assert.NotNil(t, err)
}
