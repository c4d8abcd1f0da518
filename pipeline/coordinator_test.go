package pipeline_test

import (
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/dispatch"
	"github.com/APTrust/deposit/pipeline"
	"github.com/APTrust/deposit/util/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

// scriptedDispatcher completes each job with the outcome scripted
// for its job type. Job types scripted as "hang" never complete, and
// job types scripted as "refuse" can't be dispatched.
type scriptedDispatcher struct {
	sync.Mutex
	script     map[constants.JobType]string
	dispatched []constants.JobType
}

func (dispatcher *scriptedDispatcher) Dispatch(depositId string, jobType constants.JobType) (*dispatch.Handle, error) {
	dispatcher.Lock()
	defer dispatcher.Unlock()
	action := dispatcher.script[jobType]
	if action == "refuse" {
		return nil, fmt.Errorf("no runner for %s", jobType)
	}
	dispatcher.dispatched = append(dispatcher.dispatched, jobType)
	handle := dispatch.NewHandle(depositId, jobType)
	switch action {
	case "hang":
	case "":
		go handle.Complete(true, "")
	default:
		go handle.Complete(false, action)
	}
	return handle, nil
}

func newCoordinator(dispatcher pipeline.Dispatcher, timeout time.Duration) *pipeline.ValidationCoordinator {
	return pipeline.NewValidationCoordinator(dispatcher, timeout,
		logger.DiscardLogger("pipeline_test"), nil)
}

func TestCoordinator_AllPass(t *testing.T) {
	dispatcher := &scriptedDispatcher{}
	result := newCoordinator(dispatcher, 5*time.Second).Run("d1", constants.ValidationJobs)
	assert.True(t, result.Succeeded)
	assert.Empty(t, result.Failures)
	assert.Equal(t, 4, len(result.Outcomes))
	assert.Equal(t, constants.ValidationJobs, dispatcher.dispatched)
	assert.Equal(t, "", result.Reason())
}

func TestCoordinator_ThreeOfFour(t *testing.T) {
	dispatcher := &scriptedDispatcher{script: map[constants.JobType]string{
		constants.JobValidateDescription: "MODS record is invalid",
	}}
	result := newCoordinator(dispatcher, 5*time.Second).Run("d1", constants.ValidationJobs)
	assert.False(t, result.Succeeded)
	require.Equal(t, 1, len(result.Failures))
	assert.Equal(t, constants.JobValidateDescription, result.Failures[0].JobType)
	assert.Equal(t, "MODS record is invalid", result.Failures[0].Reason)
	assert.Equal(t, "Validation failed: ValidateDescription", result.Reason())
	assert.Equal(t, "ValidateDescription: MODS record is invalid", result.Detail())

	// Every member was dispatched, even though one failed.
	assert.Equal(t, 4, len(dispatcher.dispatched))
}

func TestCoordinator_Timeout(t *testing.T) {
	dispatcher := &scriptedDispatcher{script: map[constants.JobType]string{
		constants.JobValidateFileAvailability: "hang",
	}}
	start := time.Now()
	result := newCoordinator(dispatcher, 100*time.Millisecond).Run("d1", constants.ValidationJobs)
	assert.True(t, time.Since(start) < 5*time.Second)
	assert.False(t, result.Succeeded)
	require.Equal(t, 1, len(result.Failures))
	assert.True(t, result.Failures[0].TimedOut)
	assert.Equal(t, []constants.JobType{constants.JobValidateFileAvailability}, result.FailedJobTypes())
}

func TestCoordinator_DispatchError(t *testing.T) {
	dispatcher := &scriptedDispatcher{script: map[constants.JobType]string{
		constants.JobValidateDestination:  "refuse",
		constants.JobValidateContentModel: "Work cannot contain a folder",
	}}
	result := newCoordinator(dispatcher, 5*time.Second).Run("d1", constants.ValidationJobs)
	assert.False(t, result.Succeeded)
	assert.Equal(t, []constants.JobType{
		constants.JobValidateDestination,
		constants.JobValidateContentModel,
	}, result.FailedJobTypes())
	assert.Equal(t, 3, len(dispatcher.dispatched))
	assert.Contains(t, result.Detail(), "Could not dispatch")
}

func TestCoordinator_ResubmitDispatchesEverything(t *testing.T) {
	dispatcher := &scriptedDispatcher{script: map[constants.JobType]string{
		constants.JobValidateDescription: "bad",
	}}
	coordinator := newCoordinator(dispatcher, 5*time.Second)
	assert.False(t, coordinator.Run("d1", constants.ValidationJobs).Succeeded)

	dispatcher.script = nil
	assert.True(t, coordinator.Run("d1", constants.ValidationJobs).Succeeded)
	assert.Equal(t, 8, len(dispatcher.dispatched))
}
