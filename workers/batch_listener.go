package workers

import (
	ctx "context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/minio/minio-go/v7"
	"github.com/nsqio/go-nsq"
)

// BatchMessage is the body of a queued signing job: a batch of S3
// objects to download, sign, and persist.
type BatchMessage struct {
	BatchID  string   `json:"batch_id"`
	Provider string   `json:"provider"`
	Bucket   string   `json:"bucket"`
	Keys     []string `json:"keys"`

	// NSQMessage is the queue delivery this batch arrived in. Nil for
	// batches that did not come from NSQ.
	NSQMessage *nsq.Message `json:"-"`
}

// NSQRequeue requeues the underlying NSQ message with the specified
// delay.
func (m *BatchMessage) NSQRequeue(delay time.Duration) {
	if m.NSQMessage != nil {
		m.NSQMessage.Requeue(delay)
	}
}

// NSQFinish tells NSQ we're done with the underlying message.
func (m *BatchMessage) NSQFinish() {
	if m.NSQMessage != nil {
		m.NSQMessage.Finish()
	}
}

// BatchListener subscribes to the batch-sign topic and runs each
// queued batch through the BatchSigner. It downloads the batch's
// assets from S3, so the whole path from bucket to signed output runs
// inside one worker process.
type BatchListener struct {
	Context *common.Context
	Signer  *BatchSigner

	Settings *Settings

	// BatchesInProcess keeps track of batch ids the listener is
	// currently processing. We need to do this because NSQ does not
	// dedupe messages, so the worker must.
	BatchesInProcess *service.RingList

	// ProcessChannel is where queued batches wait for the signer.
	ProcessChannel chan *BatchMessage

	// NSQConsumer implements HandleMessage to receive messages from NSQ.
	NSQConsumer *nsq.Consumer
}

func NewBatchListener(context *common.Context, batchSigner *BatchSigner, settings *Settings) *BatchListener {
	listener := &BatchListener{
		Context:          context,
		Signer:           batchSigner,
		Settings:         settings,
		BatchesInProcess: service.NewRingList(settings.ChannelBufferSize),
		ProcessChannel:   make(chan *BatchMessage, settings.ChannelBufferSize),
	}
	go listener.ProcessBatches()
	return listener
}

// RegisterAsNsqConsumer registers this listener as an NSQ consumer on
// Settings.NSQTopic and Settings.NSQChannel. Note that as soon as you
// call this, the listener will start handling messages if any are
// available.
func (l *BatchListener) RegisterAsNsqConsumer() error {
	config := nsq.NewConfig()
	config.Set("heartbeat_interval", "10s")
	config.Set("max_in_flight", l.Settings.ChannelBufferSize)
	consumer, err := nsq.NewConsumer(l.Settings.NSQTopic, l.Settings.NSQChannel, config)
	if err != nil {
		return err
	}
	l.NSQConsumer = consumer
	l.NSQConsumer.AddHandler(l)
	err = l.NSQConsumer.ConnectToNSQLookupd(l.Context.Config.NsqLookupd)
	if err != nil {
		return err
	}
	l.Context.Logger.Info("Registered as NSQ consumer")
	return nil
}

// HandleMessage parses a queued batch and pushes it into the process
// channel. Duplicate deliveries of a batch already in process are
// acknowledged and dropped.
func (l *BatchListener) HandleMessage(message *nsq.Message) error {
	batch := &BatchMessage{}
	err := json.Unmarshal(message.Body, batch)
	if err != nil {
		l.Context.Logger.Errorf("Could not parse batch message: %v", err)
		// Malformed messages will never parse, so don't requeue.
		return nil
	}
	if batch.BatchID == "" {
		batch.BatchID = NewBatchID()
	}
	if l.BatchesInProcess.Contains(batch.BatchID) {
		l.Context.Logger.Infof("Skipping batch %s: already in process", batch.BatchID)
		return nil
	}
	l.BatchesInProcess.Add(batch.BatchID)
	// We respond to NSQ ourselves once the batch settles, so a batch
	// whose download fails can be requeued.
	message.DisableAutoResponse()
	batch.NSQMessage = message
	l.ProcessChannel <- batch
	return nil
}

// ProcessBatches runs queued batches one at a time. Concurrency within
// a batch belongs to the BatchSigner's pool; running batches serially
// keeps total codec memory bounded.
func (l *BatchListener) ProcessBatches() {
	for batch := range l.ProcessChannel {
		l.processBatch(batch)
		l.BatchesInProcess.Del(batch.BatchID)
	}
}

func (l *BatchListener) processBatch(batch *BatchMessage) {
	l.Context.Logger.Infof("Batch %s: downloading %d assets from %s",
		batch.BatchID, len(batch.Keys), batch.Bucket)
	assets, err := l.downloadAssets(batch)
	if err != nil {
		l.Context.Logger.Errorf("Batch %s: %v", batch.BatchID, err)
		l.requeueOrDrop(batch)
		return
	}
	_, err = l.Signer.RunBatch(batch.BatchID, assets)
	if err != nil {
		// Rejected batches (bad asset names) will never succeed, so
		// there's no point requeueing them.
		l.Context.Logger.Errorf("Batch %s was rejected: %v", batch.BatchID, err)
	}
	batch.NSQFinish()
}

// requeueOrDrop requeues a batch whose download failed, unless NSQ has
// already delivered it MaxAttempts times.
func (l *BatchListener) requeueOrDrop(batch *BatchMessage) {
	if batch.NSQMessage == nil {
		return
	}
	attempts := int(batch.NSQMessage.Attempts)
	if l.Settings.MaxAttempts > 0 && attempts >= l.Settings.MaxAttempts {
		l.Context.Logger.Errorf("Batch %s: giving up after %d attempts",
			batch.BatchID, attempts)
		batch.NSQFinish()
		return
	}
	l.Context.Logger.Warningf("Batch %s: requeueing (attempt %d of %d)",
		batch.BatchID, attempts, l.Settings.MaxAttempts)
	batch.NSQRequeue(l.Settings.RequeueTimeout)
}

func (l *BatchListener) downloadAssets(batch *BatchMessage) ([]*service.Asset, error) {
	client := l.Context.S3Clients[batch.Provider]
	if client == nil {
		return nil, fmt.Errorf("no S3 client for provider %q", batch.Provider)
	}
	assets := make([]*service.Asset, 0, len(batch.Keys))
	for _, key := range batch.Keys {
		data, err := l.downloadObject(client, batch.Bucket, key)
		if err != nil {
			return nil, fmt.Errorf("cannot download %s/%s: %v", batch.Bucket, key, err)
		}
		asset, err := service.NewAsset(key, "", data)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (l *BatchListener) downloadObject(client *minio.Client, bucket, key string) ([]byte, error) {
	obj, err := client.GetObject(ctx.Background(), bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
