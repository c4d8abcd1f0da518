package workers

import (
	"fmt"
	"github.com/APTrust/deposit/models"
	"github.com/nsqio/go-nsq"
)

// NewNsqConfig translates a WorkerConfig into go-nsq settings.
func NewNsqConfig(workerConfig *models.WorkerConfig) (*nsq.Config, error) {
	nsqConfig := nsq.NewConfig()
	settings := map[string]interface{}{
		"max_in_flight":      workerConfig.MaxInFlight,
		"heartbeat_interval": workerConfig.HeartbeatInterval,
		"max_attempts":       workerConfig.MaxAttempts,
		"read_timeout":       workerConfig.ReadTimeout,
		"write_timeout":      workerConfig.WriteTimeout,
		"msg_timeout":        workerConfig.MessageTimeout,
	}
	for option, value := range settings {
		if s, isString := value.(string); isString && s == "" {
			continue
		}
		if err := nsqConfig.Set(option, value); err != nil {
			return nil, fmt.Errorf("NSQ option %s: %v", option, err)
		}
	}
	return nsqConfig, nil
}

// CreateNsqConsumer creates a consumer for workerConfig's topic and
// channel, and starts handler on workerConfig.Workers go routines.
// Call ConnectToNSQLookupd on the result to start receiving.
func CreateNsqConsumer(workerConfig *models.WorkerConfig, handler nsq.Handler) (*nsq.Consumer, error) {
	if workerConfig.NsqTopic == "" || workerConfig.NsqChannel == "" {
		return nil, fmt.Errorf("Worker config needs both NsqTopic and NsqChannel")
	}
	nsqConfig, err := NewNsqConfig(workerConfig)
	if err != nil {
		return nil, err
	}
	consumer, err := nsq.NewConsumer(workerConfig.NsqTopic, workerConfig.NsqChannel, nsqConfig)
	if err != nil {
		return nil, err
	}
	concurrency := workerConfig.Workers
	if concurrency < 1 {
		concurrency = 1
	}
	consumer.AddConcurrentHandlers(handler, concurrency)
	return consumer, nil
}
