package dispatch

import (
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/op/go-logging"
	"sync"
)

// JobRunner runs one job for one deposit and returns nil on success.
type JobRunner func(depositId string, jobType constants.JobType) error

type localJob struct {
	handle *Handle
	runner JobRunner
}

// LocalDispatcher runs registered job runners on a fixed pool of
// go routines in this process. It's used in development and tests,
// and for sites that run every stage on one host.
type LocalDispatcher struct {
	jobChannel chan localJob
	runners    map[constants.JobType]JobRunner
	logger     *logging.Logger
	mutex      sync.RWMutex
	closed     bool
	waitGroup  sync.WaitGroup
}

// NewLocalDispatcher starts workers go routines and returns the
// dispatcher. Call Close to stop them.
func NewLocalDispatcher(workers int, logger *logging.Logger) *LocalDispatcher {
	if workers < 1 {
		workers = 1
	}
	dispatcher := &LocalDispatcher{
		jobChannel: make(chan localJob, workers*20),
		runners:    make(map[constants.JobType]JobRunner),
		logger:     logger,
	}
	for i := 0; i < workers; i++ {
		dispatcher.waitGroup.Add(1)
		go dispatcher.work()
	}
	return dispatcher
}

// Register sets the runner for jobType, replacing any earlier one.
func (dispatcher *LocalDispatcher) Register(jobType constants.JobType, runner JobRunner) {
	dispatcher.mutex.Lock()
	dispatcher.runners[jobType] = runner
	dispatcher.mutex.Unlock()
}

// Dispatch queues jobType for depositId. It returns an error if
// no runner is registered for jobType.
func (dispatcher *LocalDispatcher) Dispatch(depositId string, jobType constants.JobType) (*Handle, error) {
	if !jobType.IsRecordable() {
		return nil, fmt.Errorf("Cannot dispatch job type %s", jobType)
	}
	dispatcher.mutex.RLock()
	defer dispatcher.mutex.RUnlock()
	if dispatcher.closed {
		return nil, fmt.Errorf("Dispatcher is closed")
	}
	runner, ok := dispatcher.runners[jobType]
	if !ok {
		return nil, fmt.Errorf("No runner registered for job type %s", jobType)
	}
	handle := NewHandle(depositId, jobType)
	dispatcher.jobChannel <- localJob{handle: handle, runner: runner}
	return handle, nil
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (dispatcher *LocalDispatcher) Close() {
	dispatcher.mutex.Lock()
	if dispatcher.closed {
		dispatcher.mutex.Unlock()
		return
	}
	dispatcher.closed = true
	close(dispatcher.jobChannel)
	dispatcher.mutex.Unlock()
	dispatcher.waitGroup.Wait()
}

func (dispatcher *LocalDispatcher) work() {
	defer dispatcher.waitGroup.Done()
	for job := range dispatcher.jobChannel {
		handle := job.handle
		err := dispatcher.run(job.runner, handle)
		if err != nil {
			dispatcher.logger.Warningf("[%s] %s failed: %v", handle.DepositId, handle.JobType, err)
			handle.Complete(false, err.Error())
		} else {
			dispatcher.logger.Infof("[%s] %s succeeded", handle.DepositId, handle.JobType)
			handle.Complete(true, "")
		}
	}
}

// run calls runner, turning a panic into an error so one bad job
// can't take down the pool.
func (dispatcher *LocalDispatcher) run(runner JobRunner, handle *Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Job panicked: %v", r)
		}
	}()
	return runner(handle.DepositId, handle.JobType)
}
