package models_test

import (
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/stretchr/testify/assert"
	"sync"
	"testing"
)

func TestInFlightJobsClaim(t *testing.T) {
	jobs := models.NewInFlightJobs()
	assert.True(t, jobs.Claim("d1", constants.JobVirusScan))
	assert.False(t, jobs.Claim("d1", constants.JobFixityCheck))
	assert.Equal(t, constants.JobVirusScan, jobs.Get("d1"))
	assert.Equal(t, constants.JobNone, jobs.Get("d2"))

	jobs.Release("d1")
	assert.Equal(t, 0, jobs.Len())
	assert.True(t, jobs.Claim("d1", constants.JobFixityCheck))
}

func TestInFlightJobsConcurrentClaims(t *testing.T) {
	jobs := models.NewInFlightJobs()
	var wg sync.WaitGroup
	var mutex sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if jobs.Claim("same-deposit", constants.JobCleanup) {
				mutex.Lock()
				wins++
				mutex.Unlock()
			}
		}()
	}
	for i := 0; i < 10; i++ {
		jobs.Claim(fmt.Sprintf("deposit-%02d", i), constants.JobVirusScan)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	ids := jobs.DepositIds()
	assert.Equal(t, 11, len(ids))
	assert.Equal(t, "deposit-00", ids[0])
	assert.Equal(t, "same-deposit", ids[10])
}

func TestInFlightJobsReleaseJob(t *testing.T) {
	jobs := models.NewInFlightJobs()
	assert.False(t, jobs.ReleaseJob("d1", constants.JobVirusScan))
	jobs.Claim("d1", constants.JobFixityCheck)
	assert.False(t, jobs.ReleaseJob("d1", constants.JobVirusScan))
	assert.Equal(t, constants.JobFixityCheck, jobs.Get("d1"))
	assert.True(t, jobs.ReleaseJob("d1", constants.JobFixityCheck))
	assert.Equal(t, constants.JobNone, jobs.Get("d1"))
}
