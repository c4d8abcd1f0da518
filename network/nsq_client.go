package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"io/ioutil"
	"net/http"
	"time"
)

// NSQStats contains info about the status of NSQ and its topics
// and queues. This info comes from a GET call to the /stats endpoint.
type NSQStats struct {
	Version string          `json:"version"`
	Health  string          `json:"health"`
	Topics  []NSQTopicStats `json:"topics"`
}

// NSQTopicStats holds the parts of nsqd's topic stats we use.
type NSQTopicStats struct {
	TopicName    string `json:"topic_name"`
	Depth        int64  `json:"depth"`
	MessageCount uint64 `json:"message_count"`
}

type NSQClient struct {
	URL string

	// AdvanceTopic is where Advance publishes. It must match the
	// topic deposit_supervisor consumes.
	AdvanceTopic string

	httpClient *http.Client
}

// Returns a new NSQ client that will connect to the NSQ server
// and the specified url. The URL is typically available through
// Config.NsqdHttpAddress, and usually ends with :4151. This is
// the URL to which we post items we want to queue, and from
// which our workers read.
//
// Note that this client provides write access to queue, so we can
// add things. It does not provide read access. The workers do the
// reading.
//
// Param advanceTopic is usually Config.GetAdvanceTopic(). If empty,
// advance events go to deposit_advance.
func NewNSQClient(url, advanceTopic string) *NSQClient {
	if advanceTopic == "" {
		advanceTopic = constants.TopicAdvance
	}
	return &NSQClient{
		URL:          url,
		AdvanceTopic: advanceTopic,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Enqueue posts body to topic.
func (client *NSQClient) Enqueue(topic string, body []byte) error {
	url := fmt.Sprintf("%s/pub?topic=%s", client.URL, topic)
	resp, err := client.httpClient.Post(url, "text/plain", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("Nsqd returned an error when queuing data: %v", err)
	}
	if resp == nil {
		return fmt.Errorf("No response from nsqd at '%s'. Is it running?", url)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	respBody, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != 200 {
		bodyText := "[no response body]"
		if len(respBody) > 0 {
			bodyText = string(respBody)
		}
		return fmt.Errorf("nsqd returned status code %d when attempting to queue data. "+
			"Response body: %s", resp.StatusCode, bodyText)
	}
	return nil
}

// Advance asks the supervisor to compute the next step for depositId.
func (client *NSQClient) Advance(depositId string) error {
	return client.Enqueue(client.AdvanceTopic, []byte(depositId))
}

// NotifyComplete announces that depositId finished ingest.
func (client *NSQClient) NotifyComplete(depositId string) error {
	return client.Enqueue(constants.TopicComplete, []byte(depositId))
}

// NotifyFailed publishes failure as JSON to the failed topic.
func (client *NSQClient) NotifyFailed(failure *models.DepositFailure) error {
	data, err := json.Marshal(failure)
	if err != nil {
		return err
	}
	return client.Enqueue(constants.TopicFailed, data)
}

// GetStats returns basic stats from nsqd's /stats endpoint. nsqd
// returns a richer set of stats than this parses.
func (client *NSQClient) GetStats() (*NSQStats, error) {
	url := fmt.Sprintf("%s/stats?format=json", client.URL)
	resp, err := client.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("NSQ returned status code %d, body: %s",
			resp.StatusCode, body)
	}
	stats := &NSQStats{}
	err = json.Unmarshal(body, stats)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// TopicDepth returns the number of messages waiting in topic, or
// zero if nsqd doesn't know the topic.
func (stats *NSQStats) TopicDepth(topic string) int64 {
	for _, topicStats := range stats.Topics {
		if topicStats.TopicName == topic {
			return topicStats.Depth
		}
	}
	return 0
}
