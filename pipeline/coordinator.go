package pipeline

import (
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/dispatch"
	"github.com/op/go-logging"
	"strings"
	"time"
)

// ValidatorFailure says why one member of a validation batch failed.
type ValidatorFailure struct {
	JobType  constants.JobType
	Reason   string
	TimedOut bool
}

// BatchResult is the outcome of one validation batch.
type BatchResult struct {
	DepositId  string
	Succeeded  bool
	Outcomes   []dispatch.Outcome
	Failures   []ValidatorFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// FailedJobTypes returns the validators that failed, in batch order.
func (result *BatchResult) FailedJobTypes() []constants.JobType {
	failed := make([]constants.JobType, len(result.Failures))
	for i, failure := range result.Failures {
		failed[i] = failure.JobType
	}
	return failed
}

// Reason returns a one-line description of the failure, suitable for
// the deposit's errorMessage field.
func (result *BatchResult) Reason() string {
	if result.Succeeded {
		return ""
	}
	names := make([]string, len(result.Failures))
	for i, failure := range result.Failures {
		names[i] = failure.JobType.String()
	}
	return fmt.Sprintf("Validation failed: %s", strings.Join(names, ", "))
}

// Detail lists each failed validator and its reason, one per line.
func (result *BatchResult) Detail() string {
	lines := make([]string, len(result.Failures))
	for i, failure := range result.Failures {
		lines[i] = fmt.Sprintf("%s: %s", failure.JobType, failure.Reason)
	}
	return strings.Join(lines, "\n")
}

// ValidationCoordinator runs the independent validators of a
// deposit at the same time and reduces their outcomes to pass or
// fail. Run blocks its caller for up to the timeout.
type ValidationCoordinator struct {
	dispatcher Dispatcher
	timeout    time.Duration
	logger     *logging.Logger
	observer   Observer
}

func NewValidationCoordinator(dispatcher Dispatcher, timeout time.Duration, logger *logging.Logger, observer Observer) *ValidationCoordinator {
	if observer == nil {
		observer = NopObserver{}
	}
	return &ValidationCoordinator{
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     logger,
		observer:   observer,
	}
}

// Run dispatches every job in jobTypes and waits for all of them.
// The batch succeeds only if every job succeeds before the timeout.
// A job that can't be dispatched fails the batch, but the others
// are still dispatched and waited for, so the result names every
// validator that failed.
func (coordinator *ValidationCoordinator) Run(depositId string, jobTypes []constants.JobType) *BatchResult {
	result := &BatchResult{
		DepositId: depositId,
		Outcomes:  make([]dispatch.Outcome, 0, len(jobTypes)),
		Failures:  make([]ValidatorFailure, 0),
		StartedAt: time.Now().UTC(),
	}
	handles := make([]*dispatch.Handle, 0, len(jobTypes))
	for _, jobType := range jobTypes {
		handle, err := coordinator.dispatcher.Dispatch(depositId, jobType)
		if err != nil {
			coordinator.logger.Errorf("[%s] Could not dispatch %s: %v", depositId, jobType, err)
			result.Failures = append(result.Failures, ValidatorFailure{
				JobType: jobType,
				Reason:  fmt.Sprintf("Could not dispatch: %v", err),
			})
			continue
		}
		coordinator.observer.JobDispatched(depositId, jobType)
		handles = append(handles, handle)
	}
	coordinator.logger.Infof("[%s] Waiting up to %s for %d validators",
		depositId, coordinator.timeout, len(handles))

	outcomes := dispatch.JoinAll(coordinator.timeout, handles)
	for i, outcome := range outcomes {
		result.Outcomes = append(result.Outcomes, outcome)
		coordinator.observer.JobFinished(depositId, outcome.JobType, outcome.Succeeded,
			outcome.FinishedAt.Sub(handles[i].DispatchedAt))
		if outcome.Succeeded {
			continue
		}
		result.Failures = append(result.Failures, ValidatorFailure{
			JobType:  outcome.JobType,
			Reason:   outcome.Error,
			TimedOut: outcome.TimedOut,
		})
	}
	result.FinishedAt = time.Now().UTC()
	result.Succeeded = len(result.Failures) == 0 && len(handles) == len(jobTypes)
	coordinator.observer.BatchFinished(depositId, result.Succeeded, result.FinishedAt.Sub(result.StartedAt))
	if result.Succeeded {
		coordinator.logger.Infof("[%s] All %d validators passed", depositId, len(jobTypes))
	} else {
		coordinator.logger.Warningf("[%s] %s", depositId, result.Reason())
	}
	return result
}
