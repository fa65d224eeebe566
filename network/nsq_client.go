package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// NSQClient posts messages to nsqd over its HTTP API. We use it two
// ways: to enqueue batch-sign jobs for the provenance worker, and to
// publish per-asset status events for whatever presentation layer is
// listening on the status topic.
//
// Note that this client provides write access to the queue so we can
// add things. It does not provide read access. The workers do the
// reading.
type NSQClient struct {
	URL string
}

// Formally define this so we can generate mocks for testing.
type NSQClientInterface interface {
	Enqueue(topic string, data []byte) error
	PublishStatus(topic string, event *StatusEvent) error
}

// StatusEvent is one observable status transition for one asset.
type StatusEvent struct {
	BatchID   string        `json:"batch_id"`
	AssetName string        `json:"asset_name"`
	Status    string        `json:"status"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// NewNSQClient returns a new NSQ client that will connect to nsqd at
// the specified URL. The URL is typically available through
// Config.NsqURL and usually ends with :4151.
func NewNSQClient(url string) *NSQClient {
	return &NSQClient{URL: url}
}

// Enqueue posts data to the named NSQ topic.
func (client *NSQClient) Enqueue(topic string, data []byte) error {
	return client.post(topic, data)
}

// PublishStatus posts a status event to the named topic. Status
// publication is advisory; callers typically log and ignore errors so
// a flaky nsqd cannot fail a signing pipeline.
func (client *NSQClient) PublishStatus(topic string, event *StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return client.post(topic, data)
}

func (client *NSQClient) post(topic string, data []byte) error {
	url := fmt.Sprintf("%s/pub?topic=%s", client.URL, topic)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("nsqd returned an error when queuing data: %v", err)
	}
	if resp == nil {
		return fmt.Errorf("no response from nsqd at '%s', is it running?", url)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != 200 {
		bodyText := "[no response body]"
		if len(body) > 0 {
			bodyText = string(body)
		}
		return fmt.Errorf("nsqd returned status code %d when attempting to queue data, "+
			"response body: %s", resp.StatusCode, bodyText)
	}
	return nil
}
