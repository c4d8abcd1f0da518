package dispatch

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/nsqio/go-nsq"
	"github.com/op/go-logging"
	"sync"
	"time"
)

// Publisher publishes a message body to an NSQ topic.
// *nsq.Producer satisfies it.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// JobRequest asks a remote job runner to run one job. It is
// published to the job type's topic (see JobType.Topic). The runner
// publishes its JobResult to ReplyTopic.
type JobRequest struct {
	HandleId    string
	DepositId   string
	JobType     string
	ReplyTopic  string
	RequestedAt time.Time
}

// JobResult is what a remote job runner publishes to the request's
// ReplyTopic when it finishes.
type JobResult struct {
	HandleId   string
	DepositId  string
	JobType    string
	Succeeded  bool
	Error      string
	FinishedAt time.Time
}

// NSQDispatcher sends jobs to remote job runners over NSQ and
// matches their results to pending handles. Run its HandleMessage
// on a consumer of its reply topic.
//
// nsqd gives each message on a channel to one consumer only, so
// every supervisor needs a reply topic of its own. Otherwise results
// land on supervisors that never dispatched them.
type NSQDispatcher struct {
	// OnUnclaimed receives results that match no pending handle.
	// That happens when the supervisor restarted after dispatching
	// the job, or stopped waiting because the job timed out. If nil,
	// such results are logged and dropped.
	OnUnclaimed func(result *JobResult)

	publisher  Publisher
	replyTopic string
	pending    map[string]*Handle
	mutex      sync.Mutex
	logger     *logging.Logger
}

func NewNSQDispatcher(publisher Publisher, replyTopic string, logger *logging.Logger) *NSQDispatcher {
	if replyTopic == "" {
		replyTopic = constants.TopicJobResult
	}
	return &NSQDispatcher{
		publisher:  publisher,
		replyTopic: replyTopic,
		pending:    make(map[string]*Handle),
		logger:     logger,
	}
}

// ReplyTopic returns the topic job runners send results to.
func (dispatcher *NSQDispatcher) ReplyTopic() string {
	return dispatcher.replyTopic
}

// NewNSQProducer connects a producer to the nsqd at tcpAddress.
func NewNSQProducer(tcpAddress string) (*nsq.Producer, error) {
	producer, err := nsq.NewProducer(tcpAddress, nsq.NewConfig())
	if err != nil {
		return nil, err
	}
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("Cannot reach nsqd at %s: %v", tcpAddress, err)
	}
	return producer, nil
}

// Dispatch publishes a JobRequest for jobType and returns a handle
// that completes when the job's result comes back.
func (dispatcher *NSQDispatcher) Dispatch(depositId string, jobType constants.JobType) (*Handle, error) {
	if !jobType.IsRecordable() {
		return nil, fmt.Errorf("Cannot dispatch job type %s", jobType)
	}
	handle := NewHandle(depositId, jobType)
	handle.onAbandon = func() {
		if dispatcher.forget(handle.Id) != nil {
			dispatcher.logger.Warningf("[%s] Gave up waiting for %s result %s",
				depositId, jobType, handle.Id)
		}
	}
	request := &JobRequest{
		HandleId:    handle.Id,
		DepositId:   depositId,
		JobType:     jobType.String(),
		ReplyTopic:  dispatcher.replyTopic,
		RequestedAt: handle.DispatchedAt,
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	// Register before publishing, in case a fast runner replies
	// before Publish returns.
	dispatcher.mutex.Lock()
	dispatcher.pending[handle.Id] = handle
	dispatcher.mutex.Unlock()

	if err := dispatcher.publisher.Publish(jobType.Topic(), body); err != nil {
		dispatcher.forget(handle.Id)
		return nil, fmt.Errorf("Publishing %s for %s: %v", jobType, depositId, err)
	}
	dispatcher.logger.Debugf("[%s] Published %s as %s", depositId, jobType, handle.Id)
	return handle, nil
}

func (dispatcher *NSQDispatcher) forget(handleId string) *Handle {
	dispatcher.mutex.Lock()
	defer dispatcher.mutex.Unlock()
	handle := dispatcher.pending[handleId]
	delete(dispatcher.pending, handleId)
	return handle
}

// Pending returns the number of handles still waiting for results.
func (dispatcher *NSQDispatcher) Pending() int {
	dispatcher.mutex.Lock()
	defer dispatcher.mutex.Unlock()
	return len(dispatcher.pending)
}

// HandleMessage handles one message from the reply topic. Malformed
// results can never succeed, so they're logged and finished rather
// than requeued.
func (dispatcher *NSQDispatcher) HandleMessage(message *nsq.Message) error {
	result := &JobResult{}
	if err := json.Unmarshal(message.Body, result); err != nil {
		dispatcher.logger.Errorf("Could not parse job result '%s': %v", string(message.Body), err)
		return nil
	}
	if result.HandleId == "" || result.DepositId == "" {
		dispatcher.logger.Errorf("Job result is missing HandleId or DepositId: %s", string(message.Body))
		return nil
	}
	if handle := dispatcher.forget(result.HandleId); handle != nil {
		handle.Complete(result.Succeeded, result.Error)
		return nil
	}
	if dispatcher.OnUnclaimed != nil {
		dispatcher.OnUnclaimed(result)
	} else {
		dispatcher.logger.Warningf("[%s] Dropping late or unclaimed %s result %s",
			result.DepositId, result.JobType, result.HandleId)
	}
	return nil
}
