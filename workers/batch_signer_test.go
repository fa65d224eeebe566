package workers_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mediaprov/provenance-services/codec"
	"github.com/mediaprov/provenance-services/codec/framed"
	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/mediaprov/provenance-services/network"
	"github.com/mediaprov/provenance-services/pipeline"
	"github.com/mediaprov/provenance-services/trust"
	"github.com/mediaprov/provenance-services/util/testutil"
	"github.com/mediaprov/provenance-services/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pemFetcher serves generated trust material to the bootstrap.
type pemFetcher struct {
	certPEM []byte
	keyPEM  []byte
}

func (f *pemFetcher) Fetch(source string) ([]byte, error) {
	if source == "certs" {
		return f.certPEM, nil
	}
	return f.keyPEM, nil
}

// failingSink fails saves for one asset name and delegates the rest.
type failingSink struct {
	inner    pipeline.OutputSink
	failName string
}

func (s *failingSink) Save(assetName, mimeType string, data []byte) (string, error) {
	if assetName == s.failName {
		return "", fmt.Errorf("%w: sink rejected %s", common.ErrIOFailure, assetName)
	}
	return s.inner.Save(assetName, mimeType, data)
}

// statusRecorder implements network.NSQClientInterface.
type statusRecorder struct {
	events []*network.StatusEvent
}

func (r *statusRecorder) Enqueue(topic string, data []byte) error { return nil }

func (r *statusRecorder) PublishStatus(topic string, event *network.StatusEvent) error {
	r.events = append(r.events, event)
	return nil
}

func newBatchSigner(t *testing.T, outputDir string) *workers.BatchSigner {
	worker := codec.NewWorker(framed.NewLoader(), testutil.Logger(), 10)
	t.Cleanup(worker.Stop)
	moduleID, err := worker.LoadModule(framed.DescriptorBytes())
	require.Nil(t, err)

	certPEM, keyPEM, _, err := testutil.TrustPEM(constants.AlgEs256)
	require.Nil(t, err)
	trustContext, err := trust.Bootstrap("certs", "key", constants.AlgEs256,
		&pemFetcher{certPEM: certPEM, keyPEM: keyPEM})
	require.Nil(t, err)

	return &workers.BatchSigner{
		Logger:      testutil.Logger(),
		CodecWorker: worker,
		ModuleID:    moduleID,
		Trust:       trustContext,
		Sink:        pipeline.NewFileSink(outputDir),
		Settings:    &workers.Settings{MaxConcurrentSigners: 1},
	}
}

func makeAssets(t *testing.T, names ...string) []*service.Asset {
	assets := make([]*service.Asset, len(names))
	for i, name := range names {
		asset, err := service.NewAsset(name, "image/jpeg", []byte("bytes of "+name))
		require.Nil(t, err)
		assets[i] = asset
	}
	return assets
}

func statusRank(status string) int {
	if status == constants.StatusFailed {
		return len(constants.StatusOrder)
	}
	for i, s := range constants.StatusOrder {
		if s == status {
			return i
		}
	}
	return -1
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	batchSigner := newBatchSigner(t, dir)
	assets := makeAssets(t, "a.jpg", "b.jpg", "c.jpg")

	results, err := batchSigner.RunBatch("batch-1", assets)
	require.Nil(t, err)
	require.Equal(t, 3, len(results))

	for i, result := range results {
		assert.Equal(t, assets[i].Name, result.AssetName)
		assert.Equal(t, "batch-1", result.BatchID)
		assert.True(t, result.Succeeded(), result.AssetName)
		assert.True(t, result.Finished())

		// The signed container landed in the sink and reads back.
		signedPath := filepath.Join(dir, result.AssetName)
		data, err := os.ReadFile(signedPath)
		require.Nil(t, err)
		store, err := batchSigner.CodecWorker.ReadManifest(batchSigner.ModuleID, data, "image/jpeg")
		require.Nil(t, err)
		assert.False(t, store.IsEmpty())
	}
}

func TestRunBatchRejectsBadNames(t *testing.T) {
	batchSigner := newBatchSigner(t, t.TempDir())

	_, err := batchSigner.RunBatch("batch-1", makeAssets(t, "a.jpg", "a.jpg"))
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "duplicate asset name")

	asset := makeAssets(t, "a.jpg")[0]
	asset.Name = ""
	_, err = batchSigner.RunBatch("batch-1", []*service.Asset{asset})
	assert.NotNil(t, err)
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	batchSigner := newBatchSigner(t, dir)
	batchSigner.Sink = &failingSink{
		inner:    pipeline.NewFileSink(dir),
		failName: "b.jpg",
	}
	assets := makeAssets(t, "a.jpg", "b.jpg", "c.jpg")

	results, err := batchSigner.RunBatch("batch-1", assets)
	require.Nil(t, err)
	require.Equal(t, 3, len(results))

	assert.True(t, results[0].Succeeded())
	assert.False(t, results[1].Succeeded())
	assert.Equal(t, constants.StatusFailed, results[1].CurrentStatus())
	assert.True(t, results[1].HasErrors())
	assert.True(t, results[2].Succeeded())
}

func TestRunBatchStatusOrder(t *testing.T) {
	batchSigner := newBatchSigner(t, t.TempDir())
	perAsset := make(map[string][]string)
	batchSigner.Listener = func(event *network.StatusEvent) {
		perAsset[event.AssetName] = append(perAsset[event.AssetName], event.Status)
	}

	_, err := batchSigner.RunBatch("batch-1", makeAssets(t, "a.jpg", "b.jpg"))
	require.Nil(t, err)

	// Every asset's observed statuses move strictly forward.
	require.Equal(t, 2, len(perAsset))
	for name, statuses := range perAsset {
		require.NotEmpty(t, statuses, name)
		for i := 1; i < len(statuses); i++ {
			assert.Greater(t, statusRank(statuses[i]), statusRank(statuses[i-1]),
				"%s went %s -> %s", name, statuses[i-1], statuses[i])
		}
		assert.Equal(t, constants.StatusCompleted, statuses[len(statuses)-1])
	}
}

func TestRunBatchPersistsResults(t *testing.T) {
	redisServer := testutil.NewRedisServer()
	defer redisServer.Close()

	batchSigner := newBatchSigner(t, t.TempDir())
	batchSigner.RedisClient = network.NewRedisClient(redisServer.Addr(), "", 0)

	_, err := batchSigner.RunBatch("batch-1", makeAssets(t, "a.jpg", "b.jpg"))
	require.Nil(t, err)

	names, err := batchSigner.RedisClient.BatchAssetNames("batch-1")
	require.Nil(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, names)

	jsonData, err := batchSigner.RedisClient.SigningResultGet("batch-1", "a.jpg")
	require.Nil(t, err)
	stored, err := service.SigningResultFromJSON(jsonData)
	require.Nil(t, err)
	assert.Equal(t, constants.StatusCompleted, stored.CurrentStatus())
}

func TestRunBatchPublishesStatus(t *testing.T) {
	batchSigner := newBatchSigner(t, t.TempDir())
	recorder := &statusRecorder{}
	batchSigner.NSQClient = recorder
	batchSigner.Settings.StatusTopic = constants.TopicStatus

	_, err := batchSigner.RunBatch("batch-1", makeAssets(t, "a.jpg"))
	require.Nil(t, err)

	require.NotEmpty(t, recorder.events)
	last := recorder.events[len(recorder.events)-1]
	assert.Equal(t, "a.jpg", last.AssetName)
	assert.Equal(t, constants.StatusCompleted, last.Status)
}

func TestRunBatchConcurrentSigners(t *testing.T) {
	dir := t.TempDir()
	batchSigner := newBatchSigner(t, dir)
	batchSigner.Settings.MaxConcurrentSigners = 3

	assets := makeAssets(t, "a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg", "f.jpg")
	results, err := batchSigner.RunBatch("batch-1", assets)
	require.Nil(t, err)
	require.Equal(t, 6, len(results))
	for i, result := range results {
		assert.Equal(t, assets[i].Name, result.AssetName)
		assert.True(t, result.Succeeded(), result.AssetName)
	}
}

func TestRunBatchGeneratesBatchID(t *testing.T) {
	batchSigner := newBatchSigner(t, t.TempDir())
	results, err := batchSigner.RunBatch("", makeAssets(t, "a.jpg"))
	require.Nil(t, err)
	assert.NotEmpty(t, results[0].BatchID)

	assert.NotEqual(t, workers.NewBatchID(), workers.NewBatchID())
}
