package testutil

import (
	"github.com/nsqio/go-nsq"
	"sync"
	"time"
)

// NSQTestDelegate is a struct used in unit tests to capture
// NSQ messages and actions. The interface we're mocking is
// the MessageDelegate interface defined here:
// https://github.com/nsqio/go-nsq/blob/master/delegates.go#L35
//
// The supervisor touches messages from a separate go routine, so
// the delegate records every operation under a lock.
type NSQTestDelegate struct {
	Message    *nsq.Message
	Delay      time.Duration
	Backoff    bool
	Operation  string
	operations []string
	mutex      sync.Mutex
}

// NewNSQTestDelegate returns a pointer to a new NSQTestDelegate.
func NewNSQTestDelegate() *NSQTestDelegate {
	return &NSQTestDelegate{}
}

func (delegate *NSQTestDelegate) record(message *nsq.Message, operation string) {
	delegate.Message = message
	delegate.Operation = operation
	delegate.operations = append(delegate.operations, operation)
}

// OnFinish receives the Finish() call from an NSQ message.
func (delegate *NSQTestDelegate) OnFinish(message *nsq.Message) {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	delegate.record(message, "finish")
}

// OnRequeue receives the Requeue() call from an NSQ message.
func (delegate *NSQTestDelegate) OnRequeue(message *nsq.Message, delay time.Duration, backoff bool) {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	delegate.Delay = delay
	delegate.Backoff = backoff
	delegate.record(message, "requeue")
}

// OnTouch receives the Touch() call from an NSQ message.
func (delegate *NSQTestDelegate) OnTouch(message *nsq.Message) {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	delegate.record(message, "touch")
}

// LastOperation returns the most recent operation, or an empty string.
func (delegate *NSQTestDelegate) LastOperation() string {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	return delegate.Operation
}

// Count returns the number of times operation was called.
func (delegate *NSQTestDelegate) Count(operation string) int {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	count := 0
	for _, op := range delegate.operations {
		if op == operation {
			count++
		}
	}
	return count
}
