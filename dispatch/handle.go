// Package dispatch runs pipeline jobs, either in this process or on
// remote job runners reached through NSQ, and reports their outcomes
// through handles.
package dispatch

import (
	"github.com/APTrust/deposit/constants"
	"github.com/google/uuid"
	"sync"
	"time"
)

// Outcome is the result of one dispatched job.
type Outcome struct {
	HandleId   string
	DepositId  string
	JobType    constants.JobType
	Succeeded  bool
	Error      string
	TimedOut   bool
	FinishedAt time.Time
}

// Handle tracks one dispatched job. It is completed exactly once,
// by whoever reports first. Later reports are ignored.
type Handle struct {
	Id           string
	DepositId    string
	JobType      constants.JobType
	DispatchedAt time.Time

	done      chan struct{}
	once      sync.Once
	outcome   Outcome
	onAbandon func()
}

func NewHandle(depositId string, jobType constants.JobType) *Handle {
	return &Handle{
		Id:           uuid.New().String(),
		DepositId:    depositId,
		JobType:      jobType,
		DispatchedAt: time.Now().UTC(),
		done:         make(chan struct{}),
	}
}

// Complete records the job's outcome. It returns false if the handle
// was already complete.
func (handle *Handle) Complete(succeeded bool, errorMessage string) bool {
	completed := false
	handle.once.Do(func() {
		handle.outcome = Outcome{
			HandleId:   handle.Id,
			DepositId:  handle.DepositId,
			JobType:    handle.JobType,
			Succeeded:  succeeded,
			Error:      errorMessage,
			FinishedAt: time.Now().UTC(),
		}
		close(handle.done)
		completed = true
	})
	return completed
}

// Done returns a channel that is closed when the handle completes.
func (handle *Handle) Done() <-chan struct{} {
	return handle.done
}

// Outcome returns the job's outcome, and false if it hasn't
// completed yet.
func (handle *Handle) Outcome() (Outcome, bool) {
	select {
	case <-handle.done:
		return handle.outcome, true
	default:
		return Outcome{}, false
	}
}

func (handle *Handle) timedOut() Outcome {
	return Outcome{
		HandleId:   handle.Id,
		DepositId:  handle.DepositId,
		JobType:    handle.JobType,
		Error:      "Timed out waiting for job to finish",
		TimedOut:   true,
		FinishedAt: time.Now().UTC(),
	}
}

// abandon tells the dispatcher that nobody waits on the handle any
// more.
func (handle *Handle) abandon() {
	if handle.onAbandon != nil {
		handle.onAbandon()
	}
}

// Wait blocks until the handle completes or timeout passes. A job
// that doesn't finish in time gets a failed outcome with TimedOut
// set. The job itself keeps running. Its eventual result is treated
// as unclaimed.
func (handle *Handle) Wait(timeout time.Duration) Outcome {
	return JoinAll(timeout, []*Handle{handle})[0]
}

// JoinAll waits for all handles under a single deadline and returns
// their outcomes in the same order as handles. Handles that time out
// are abandoned.
func JoinAll(timeout time.Duration, handles []*Handle) []Outcome {
	outcomes := make([]Outcome, len(handles))
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	expired := false
	for i, handle := range handles {
		if !expired {
			select {
			case <-handle.Done():
			case <-timer.C:
				expired = true
			}
		}
		if outcome, ok := handle.Outcome(); ok {
			outcomes[i] = outcome
		} else {
			outcomes[i] = handle.timedOut()
			handle.abandon()
		}
	}
	return outcomes
}

// AllSucceeded returns true if every outcome succeeded. An empty
// list succeeds.
func AllSucceeded(outcomes []Outcome) bool {
	for _, outcome := range outcomes {
		if !outcome.Succeeded {
			return false
		}
	}
	return true
}
