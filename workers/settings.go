package workers

import (
	"encoding/json"
	"time"
)

// Settings contains settings for the batch signing workers.
type Settings struct {
	// ChannelBufferSize is the size of the buffer for the batch
	// listener's process channel and the codec worker's request queue.
	ChannelBufferSize int

	// MaxConcurrentSigners is the number of go routines signing
	// assets at once within a batch. The default of 1 signs assets
	// strictly in the order they were submitted and bounds codec
	// memory to one asset at a time.
	MaxConcurrentSigners int

	// MaxAttempts is the maximum number of times the listener should
	// attempt a batch that failed with non-fatal errors. Failed
	// assets within a batch are never retried automatically.
	MaxAttempts int

	// NSQTopic is the NSQ topic the batch listener subscribes to for
	// signing jobs.
	NSQTopic string

	// NSQChannel is the NSQ channel the batch listener subscribes to.
	NSQChannel string

	// StatusTopic is the NSQ topic per-asset status events are
	// published to. Empty disables status publication.
	StatusTopic string

	// RequeueTimeout describes how long of a timeout to set on the
	// NSQ requeue after a batch fails with non-fatal errors.
	RequeueTimeout time.Duration
}

func (settings *Settings) ToJSON() string {
	data, _ := json.Marshal(settings)
	return string(data)
}
