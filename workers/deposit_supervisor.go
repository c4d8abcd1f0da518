package workers

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/context"
	"github.com/APTrust/deposit/dispatch"
	"github.com/APTrust/deposit/models"
	"github.com/APTrust/deposit/pipeline"
	"github.com/nsqio/go-nsq"
	"strings"
	"time"
)

// DepositSupervisor reads deposit ids from the deposit_advance topic
// and moves each deposit one step through the pipeline: it asks the
// planner for the next job, then dispatches that job, runs the
// validation batch, or cleans up.
type DepositSupervisor struct {
	// Context contains basic information required to run,
	// including the status store and the dispatcher.
	Context *context.Context

	// Notifier emits advance, complete and failed events. It's
	// Context.NSQClient unless a test replaces it.
	Notifier pipeline.Notifier

	// AdvanceChannel is for the go routines that decide and start
	// the next step of each deposit.
	AdvanceChannel chan *models.AdvanceState

	// PostProcessChannel is for the go routines that finish or
	// requeue the NSQ message.
	PostProcessChannel chan *models.AdvanceState

	// InFlight holds the single job each deposit is waiting on.
	// The validation batch and cleanup hold it while they run.
	InFlight *models.InFlightJobs

	jobTimeout        time.Duration
	heartbeatInterval time.Duration
}

func NewDepositSupervisor(_context *context.Context) *DepositSupervisor {
	jobTimeout, _ := _context.Config.GetJobTimeout()
	supervisor := &DepositSupervisor{
		Context:           _context,
		Notifier:          _context.NSQClient,
		InFlight:          models.NewInFlightJobs(),
		jobTimeout:        jobTimeout,
		heartbeatInterval: _context.Config.SupervisorWorker.GetHeartbeatInterval(),
	}
	if _context.NSQDispatcher != nil {
		_context.NSQDispatcher.OnUnclaimed = supervisor.RecordUnclaimedResult
	}

	// Set up buffered channels
	workers := _context.Config.SupervisorWorker.Workers
	if workers < 1 {
		workers = 1
	}
	supervisor.AdvanceChannel = make(chan *models.AdvanceState, workers*10)
	supervisor.PostProcessChannel = make(chan *models.AdvanceState, workers*10)
	// Set up a limited number of go routines
	for i := 0; i < workers; i++ {
		go supervisor.advance()
		go supervisor.postProcess()
	}
	return supervisor
}

// This is the callback that NSQ workers use to handle messages from NSQ.
// The message body is a deposit id.
func (supervisor *DepositSupervisor) HandleMessage(message *nsq.Message) error {
	message.DisableAutoResponse()
	depositId := strings.TrimSpace(string(message.Body))
	if depositId == "" {
		supervisor.Context.MessageLog.Errorf("Ignoring advance message %s with empty body",
			string(message.ID[:]))
		message.Finish()
		return nil
	}
	supervisor.AdvanceChannel <- models.NewAdvanceState(depositId, message)
	return nil
}

func (supervisor *DepositSupervisor) advance() {
	for state := range supervisor.AdvanceChannel {
		supervisor.Advance(state)
		supervisor.PostProcessChannel <- state
	}
}

func (supervisor *DepositSupervisor) postProcess() {
	for state := range supervisor.PostProcessChannel {
		if state.Summary.HasErrors() && state.Summary.Retry {
			supervisor.Context.MessageLog.Warningf("[%s] Requeuing advance: %s",
				state.DepositId, state.Summary.AllErrorsAsString())
			state.NSQMessage.Requeue(1 * time.Minute)
		} else {
			state.NSQMessage.Finish()
		}
	}
}

// Advance moves one deposit one step forward. Errors that a retry
// might fix, like an unreachable status store, are left in
// state.Summary with Retry set. Everything else is recorded on the
// deposit itself.
func (supervisor *DepositSupervisor) Advance(state *models.AdvanceState) {
	state.Summary.Start()
	defer state.Summary.Finish()
	log := supervisor.Context.MessageLog
	store := supervisor.Context.Store
	depositId := state.DepositId
	supervisor.Context.Stats.DepositAdvanced(depositId)

	status, err := store.GetStatus(depositId)
	if err != nil {
		state.Summary.AddError("Cannot read status: %v", err)
		return
	}
	state.Status = status
	if status.IsEmpty() {
		log.Warningf("[%s] No status for this deposit. It may have expired.", depositId)
		return
	}
	if status.IsTerminal() {
		log.Infof("[%s] Deposit is %s. Nothing to do.", depositId, status.State())
		return
	}
	if running := supervisor.InFlight.Get(depositId); running != constants.JobNone {
		log.Infof("[%s] %s is still running. Not dispatching again.", depositId, running)
		return
	}
	completed, err := store.CompletedJobTypes(depositId)
	if err != nil {
		state.Summary.AddError("Cannot read completion log: %v", err)
		return
	}

	jobType, done, err := supervisor.Context.Planner.NextJob(status, completed)
	if err != nil {
		fatal := pipeline.AsFatal(err)
		if fatal == nil {
			fatal = pipeline.NewFatalError("Cannot plan next job", "%v", err)
		}
		state.Summary.AddFatalError("%v", fatal)
		supervisor.fail(depositId, status.State(), constants.JobNone, fatal.Reason, fatal.Detail)
		return
	}
	if done {
		state.Done = true
		supervisor.complete(depositId)
		return
	}
	state.JobType = jobType
	supervisor.setState(state, constants.StateFor(jobType))

	switch jobType {
	case constants.JobValidationBatch:
		supervisor.runValidationBatch(state)
	case constants.JobCleanup:
		supervisor.runCleanup(state)
	default:
		supervisor.dispatchJob(state)
	}
}

func (supervisor *DepositSupervisor) setState(state *models.AdvanceState, depositState string) {
	store := supervisor.Context.Store
	if state.Status.Get(constants.FieldStartTime) == "" {
		now := time.Now().UTC().Format(constants.TimestampFormat)
		if err := store.UpdateStatus(state.DepositId, constants.FieldStartTime, now); err != nil {
			supervisor.Context.MessageLog.Warningf("[%s] Cannot set start time: %v", state.DepositId, err)
		}
	}
	if state.Status.State() == depositState {
		return
	}
	if err := store.UpdateStatus(state.DepositId, constants.FieldState, depositState); err != nil {
		supervisor.Context.MessageLog.Warningf("[%s] Cannot set state %s: %v",
			state.DepositId, depositState, err)
		return
	}
	state.Status.Set(constants.FieldState, depositState)
}

// runValidationBatch blocks until every validator reports or the
// validation timeout expires. It touches the NSQ message meanwhile,
// so nsqd doesn't hand the deposit to another supervisor. nsqd
// caps the total time a message can be held at its
// --max-msg-timeout, so a longer batch sees the message redelivered.
// The in-flight claim keeps that redelivery from starting a second
// batch.
func (supervisor *DepositSupervisor) runValidationBatch(state *models.AdvanceState) {
	depositId := state.DepositId
	if !supervisor.InFlight.Claim(depositId, constants.JobValidationBatch) {
		supervisor.Context.MessageLog.Infof("[%s] %s is already running", depositId, supervisor.InFlight.Get(depositId))
		return
	}
	stopTouching := make(chan struct{})
	go func() {
		ticker := time.NewTicker(supervisor.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				state.Touch()
			case <-stopTouching:
				return
			}
		}
	}()
	result := supervisor.Context.Coordinator.Run(depositId, constants.ValidationJobs)
	close(stopTouching)

	if !result.Succeeded {
		supervisor.InFlight.ReleaseJob(depositId, constants.JobValidationBatch)
		supervisor.fail(depositId, constants.StateValidating, constants.JobValidationBatch,
			result.Reason(), result.Detail())
		return
	}
	for _, jobType := range constants.ValidationJobs {
		if err := supervisor.Context.Store.JobSucceeded(depositId, jobType); err != nil {
			// The batch will run again on the retry.
			supervisor.InFlight.ReleaseJob(depositId, constants.JobValidationBatch)
			state.Summary.AddError("Cannot record %s: %v", jobType, err)
			return
		}
	}
	supervisor.InFlight.ReleaseJob(depositId, constants.JobValidationBatch)
	supervisor.notifyAdvance(depositId, constants.StateValidating, constants.JobValidationBatch)
}

// runCleanup runs in the supervisor's own process, since it needs
// the storage source configuration.
func (supervisor *DepositSupervisor) runCleanup(state *models.AdvanceState) {
	depositId := state.DepositId
	if !supervisor.InFlight.Claim(depositId, constants.JobCleanup) {
		supervisor.Context.MessageLog.Infof("[%s] %s is already running", depositId, supervisor.InFlight.Get(depositId))
		return
	}
	defer supervisor.InFlight.ReleaseJob(depositId, constants.JobCleanup)
	result, err := supervisor.Context.Cleanup.Cleanup(depositId)
	supervisor.logJson(result)
	if err != nil {
		reason := "Cleanup failed"
		detail := err.Error()
		if fatal := pipeline.AsFatal(err); fatal != nil {
			reason = fatal.Reason
			detail = fatal.Detail
		}
		supervisor.fail(depositId, constants.StateCleaningUp, constants.JobCleanup, reason, detail)
		return
	}
	if err := supervisor.Context.Store.JobSucceeded(depositId, constants.JobCleanup); err != nil {
		state.Summary.AddError("Cannot record %s: %v", constants.JobCleanup, err)
		return
	}
	state.Done = true
	supervisor.complete(depositId)
}

// dispatchJob starts one job without waiting for it. A go routine
// waits on the handle and records the outcome.
func (supervisor *DepositSupervisor) dispatchJob(state *models.AdvanceState) {
	depositId := state.DepositId
	jobType := state.JobType
	if !supervisor.InFlight.Claim(depositId, jobType) {
		supervisor.Context.MessageLog.Infof("[%s] %s is already running", depositId, supervisor.InFlight.Get(depositId))
		return
	}
	handle, err := supervisor.Context.Dispatcher.Dispatch(depositId, jobType)
	if err != nil {
		supervisor.InFlight.Release(depositId)
		supervisor.fail(depositId, state.Status.State(), jobType,
			fmt.Sprintf("Could not dispatch %s", jobType), err.Error())
		return
	}
	supervisor.Context.Stats.JobDispatched(depositId, jobType)
	supervisor.Context.MessageLog.Infof("[%s] Dispatched %s as %s", depositId, jobType, handle.Id)
	go supervisor.await(handle)
}

func (supervisor *DepositSupervisor) await(handle *dispatch.Handle) {
	outcome := handle.Wait(supervisor.jobTimeout)
	supervisor.Context.Stats.JobFinished(handle.DepositId, handle.JobType, outcome.Succeeded,
		outcome.FinishedAt.Sub(handle.DispatchedAt))
	errorMessage := outcome.Error
	if outcome.TimedOut {
		errorMessage = fmt.Sprintf("No result after %s", supervisor.jobTimeout)
	}
	supervisor.RecordOutcome(handle.DepositId, handle.JobType, outcome.Succeeded, errorMessage)
}

// RecordOutcome records the result of a single job. Success goes in
// the completion log and triggers the next advance. Failure fails
// the deposit. Results for deposits that are already terminal are
// ignored.
func (supervisor *DepositSupervisor) RecordOutcome(depositId string, jobType constants.JobType, succeeded bool, errorMessage string) {
	store := supervisor.Context.Store
	status, err := store.GetStatus(depositId)
	ignore := err == nil && (status.IsEmpty() || status.IsTerminal())
	if err == nil && succeeded && !ignore {
		err = store.JobSucceeded(depositId, jobType)
	}

	// An advance that finds no job in flight must also find this
	// one in the completion log.
	supervisor.InFlight.ReleaseJob(depositId, jobType)

	switch {
	case err != nil:
		supervisor.fail(depositId, "", jobType, "Could not record job result", err.Error())
	case ignore:
		supervisor.Context.MessageLog.Infof("[%s] Ignoring late %s result for %s deposit",
			depositId, jobType, status.State())
	case !succeeded:
		supervisor.fail(depositId, status.State(), jobType, fmt.Sprintf("%s failed", jobType), errorMessage)
	default:
		supervisor.Context.MessageLog.Infof("[%s] %s succeeded", depositId, jobType)
		supervisor.notifyAdvance(depositId, status.State(), jobType)
	}
}

// RecordUnclaimedResult handles NSQ job results that arrived after
// the supervisor that dispatched them restarted. Validation results
// are dropped, because a validation batch is only recorded as a
// whole.
func (supervisor *DepositSupervisor) RecordUnclaimedResult(result *dispatch.JobResult) {
	jobType, err := constants.ParseJobType(result.JobType)
	if err != nil {
		supervisor.Context.MessageLog.Errorf("[%s] Unclaimed result has bad job type: %v",
			result.DepositId, err)
		return
	}
	if jobType.IsValidation() {
		supervisor.Context.MessageLog.Infof("[%s] Dropping unclaimed validation result %s",
			result.DepositId, jobType)
		return
	}
	supervisor.Context.MessageLog.Infof("[%s] Recording unclaimed %s result", result.DepositId, jobType)
	supervisor.RecordOutcome(result.DepositId, jobType, result.Succeeded, result.Error)
}

func (supervisor *DepositSupervisor) notifyAdvance(depositId, depositState string, jobType constants.JobType) {
	if err := supervisor.Notifier.Advance(depositId); err != nil {
		supervisor.fail(depositId, depositState, jobType, "Could not queue the next step", err.Error())
	}
}

func (supervisor *DepositSupervisor) complete(depositId string) {
	store := supervisor.Context.Store
	now := time.Now().UTC().Format(constants.TimestampFormat)
	if err := store.UpdateStatus(depositId, constants.FieldState, constants.StateComplete); err != nil {
		supervisor.Context.MessageLog.Errorf("[%s] Cannot mark deposit complete: %v", depositId, err)
	}
	if err := store.UpdateStatus(depositId, constants.FieldEndTime, now); err != nil {
		supervisor.Context.MessageLog.Warningf("[%s] Cannot set end time: %v", depositId, err)
	}
	if err := supervisor.Notifier.NotifyComplete(depositId); err != nil {
		supervisor.Context.MessageLog.Warningf("[%s] Cannot publish completion: %v", depositId, err)
	}
	supervisor.Context.Stats.DepositCompleted(depositId)
	supervisor.Context.MessageLog.Infof("[%s] Deposit is complete", depositId)
}

// fail marks the deposit FAILED and records why in its status, in the
// JSON log and on the deposit_failed topic. The deposit stays FAILED
// until an operator resumes it.
func (supervisor *DepositSupervisor) fail(depositId, depositState string, jobType constants.JobType, reason, detail string) {
	store := supervisor.Context.Store
	failure := models.NewDepositFailure(depositId, depositState, jobType.String(), reason, detail)
	supervisor.Context.MessageLog.Errorf("[%s] %s", depositId, failure.String())
	fields := [][2]string{
		{constants.FieldErrorMessage, reason},
		{constants.FieldErrorDetail, detail},
		{constants.FieldEndTime, failure.FailedAt.Format(constants.TimestampFormat)},
		{constants.FieldState, constants.StateFailed},
	}
	for _, field := range fields {
		if err := store.UpdateStatus(depositId, field[0], field[1]); err != nil {
			supervisor.Context.MessageLog.Errorf("[%s] Cannot set %s: %v", depositId, field[0], err)
		}
	}
	if failureJson, err := failure.ToJson(); err == nil {
		supervisor.Context.JsonLog.Println(failureJson)
	}
	if err := supervisor.Notifier.NotifyFailed(failure); err != nil {
		supervisor.Context.MessageLog.Warningf("[%s] Cannot publish failure: %v", depositId, err)
	}
	supervisor.Context.Stats.DepositFailed(depositId)
}

// PurgeExpired removes expired deposits from stores that don't expire
// them on their own. Other stores are left alone.
func (supervisor *DepositSupervisor) PurgeExpired() (int, error) {
	purger, ok := supervisor.Context.Store.(pipeline.Purger)
	if !ok {
		return 0, nil
	}
	count, err := purger.PurgeExpired()
	if err != nil {
		return count, err
	}
	supervisor.Context.Stats.ExpiredPurged(count)
	if count > 0 {
		supervisor.Context.MessageLog.Infof("Purged %d expired deposits", count)
	}
	return count, nil
}

// RunPurger calls PurgeExpired every interval until stop is closed.
func (supervisor *DepositSupervisor) RunPurger(interval time.Duration, stop <-chan struct{}) {
	if _, ok := supervisor.Context.Store.(pipeline.Purger); !ok || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := supervisor.PurgeExpired(); err != nil {
				supervisor.Context.MessageLog.Warningf("Cannot purge expired deposits: %v", err)
			}
		case <-stop:
			return
		}
	}
}

func (supervisor *DepositSupervisor) logJson(result *pipeline.CleanupResult) {
	if result == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		supervisor.Context.MessageLog.Errorf("[%s] Cannot marshal cleanup result: %v", result.DepositId, err)
		return
	}
	supervisor.Context.JsonLog.Println(string(data))
}
