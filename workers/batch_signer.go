// Package workers contains the batch orchestrator and the NSQ
// listener that feeds it. The orchestrator fans assets out to
// per-asset pipeline runs; the listener turns queued signing jobs
// into batches.
package workers

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mediaprov/provenance-services/codec"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/mediaprov/provenance-services/network"
	"github.com/mediaprov/provenance-services/pipeline"
	"github.com/mediaprov/provenance-services/signer"
	"github.com/mediaprov/provenance-services/trust"
	"github.com/op/go-logging"
)

// StatusListener receives per-asset status events as they occur.
type StatusListener func(event *network.StatusEvent)

// BatchSigner runs signing batches. Assets are processed in the order
// supplied, through a bounded pool of pipeline runs. Failures are
// isolated per asset: one malformed asset fails one result and the
// rest of the batch proceeds. There is nothing resembling a
// transaction here; a batch is just N independent pipelines sharing
// one trust context and one codec worker.
type BatchSigner struct {
	Logger      *logging.Logger
	CodecWorker *codec.Worker

	// ModuleID is the codec module handle used to sign every asset in
	// the batch.
	ModuleID string

	// Trust is the trust context from the batch's bootstrap. Read
	// only; shared by every asset pipeline.
	Trust *trust.Context

	// TsaURL is the timestamp authority endpoint. Empty disables
	// timestamping and assets skip the timestamping phase.
	TsaURL string

	// Callback, when set, replaces the local signer adapter built
	// from Trust. Tests use this to substitute recording or failing
	// adapters.
	Callback signer.SigningCallback

	// Sink receives signed assets. May be nil.
	Sink pipeline.OutputSink

	Settings *Settings

	// Listener, if set, receives every status transition as it occurs.
	Listener StatusListener

	// RedisClient, if set, persists each asset's result on every
	// transition so operators can watch batch progress.
	RedisClient *network.RedisClient

	// NSQClient, if set, publishes status events to
	// Settings.StatusTopic. Publication is advisory; failures are
	// logged and do not affect the batch.
	NSQClient network.NSQClientInterface
}

// NewBatchID returns an identifier for a new batch run.
func NewBatchID() string {
	return uuid.New().String()
}

// RunBatch signs every asset in the batch and returns one result per
// asset, in the order the assets were supplied. The whole batch is
// rejected up front if asset names are not unique, since names key
// the result store and the output sink. After that, nothing aborts
// the batch: each asset's result lands on Completed or Failed on its
// own merits.
func (bs *BatchSigner) RunBatch(batchID string, assets []*service.Asset) ([]*service.SigningResult, error) {
	if batchID == "" {
		batchID = NewBatchID()
	}
	if err := validateAssetNames(assets); err != nil {
		return nil, err
	}
	callback, err := bs.callback()
	if err != nil {
		return nil, err
	}

	results := make([]*service.SigningResult, len(assets))
	for i, asset := range assets {
		results[i] = service.NewSigningResult(batchID, asset.Name)
		bs.saveResult(results[i])
	}

	numSigners := 1
	if bs.Settings != nil && bs.Settings.MaxConcurrentSigners > 1 {
		numSigners = bs.Settings.MaxConcurrentSigners
	}
	bs.Logger.Infof("Batch %s: %d assets, %d concurrent signers",
		batchID, len(assets), numSigners)

	tasks := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < numSigners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				bs.signAsset(assets[idx], results[idx], callback)
			}
		}()
	}
	for i := range assets {
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	bs.Logger.Infof("Batch %s: finished, %d of %d succeeded",
		batchID, succeededCount(results), len(results))
	return results, nil
}

func (bs *BatchSigner) signAsset(asset *service.Asset, result *service.SigningResult, callback signer.SigningCallback) {
	assetSigner := &pipeline.AssetSigner{
		Base: pipeline.Base{
			Logger:      bs.Logger,
			CodecWorker: bs.CodecWorker,
			ModuleID:    bs.ModuleID,
			Asset:       asset,
			Result:      result,
			OnStatus:    bs.publishStatus,
		},
		Certificates: bs.Trust.Certificates,
		Algorithm:    bs.Trust.Algorithm,
		Callback:     callback,
		Sink:         bs.Sink,
	}
	count, errs := assetSigner.Run()
	if count == 0 {
		bs.Logger.Warningf("Batch %s: asset %s failed with %d error(s)",
			result.BatchID, asset.Name, len(errs))
	}
}

// publishStatus mirrors one status transition to the listener, the
// result store, and the status topic. It runs on whichever goroutine
// performed the transition, including the codec worker's during the
// timestamping phase.
func (bs *BatchSigner) publishStatus(result *service.SigningResult) {
	event := &network.StatusEvent{
		BatchID:   result.BatchID,
		AssetName: result.AssetName,
		Status:    result.CurrentStatus(),
		Elapsed:   result.RunTime(),
	}
	if bs.Listener != nil {
		bs.Listener(event)
	}
	bs.saveResult(result)
	if bs.NSQClient != nil && bs.Settings != nil && bs.Settings.StatusTopic != "" {
		err := bs.NSQClient.PublishStatus(bs.Settings.StatusTopic, event)
		if err != nil {
			bs.Logger.Warningf("Could not publish status for asset %s: %v",
				result.AssetName, err)
		}
	}
}

// saveResult saves a result to Redis and logs an error if any occurs.
// Will try three times, in case Redis is busy.
func (bs *BatchSigner) saveResult(result *service.SigningResult) {
	if bs.RedisClient == nil {
		return
	}
	jsonData, err := result.ToJSON()
	if err != nil {
		bs.Logger.Errorf("Cannot serialize result for asset %s: %v", result.AssetName, err)
		return
	}
	for i := 0; i < 3; i++ {
		err = bs.RedisClient.SigningResultSave(result.BatchID, result.AssetName, jsonData)
		if err == nil {
			return
		}
		time.Sleep(time.Duration(250) * time.Millisecond)
	}
	bs.Logger.Errorf("Error saving result for asset %s: %v", result.AssetName, err)
}

func (bs *BatchSigner) callback() (signer.SigningCallback, error) {
	if bs.Callback != nil {
		return bs.Callback, nil
	}
	return signer.NewLocalSigner(bs.Trust.Algorithm, bs.Trust.Key(), bs.TsaURL)
}

func validateAssetNames(assets []*service.Asset) error {
	seen := make(map[string]bool, len(assets))
	for _, asset := range assets {
		if asset.Name == "" {
			return fmt.Errorf("batch contains an asset with no name")
		}
		if seen[asset.Name] {
			return fmt.Errorf("duplicate asset name %q in batch", asset.Name)
		}
		seen[asset.Name] = true
	}
	return nil
}

func succeededCount(results []*service.SigningResult) int {
	count := 0
	for _, result := range results {
		if result.Succeeded() {
			count++
		}
	}
	return count
}
