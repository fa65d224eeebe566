package network_test

import (
	"testing"

	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/mediaprov/provenance-services/network"
	"github.com/mediaprov/provenance-services/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *network.RedisClient {
	server := testutil.NewRedisServer()
	t.Cleanup(server.Close)
	return network.NewRedisClient(server.Addr(), "", 0)
}

func TestRedisPing(t *testing.T) {
	client := newTestClient(t)
	response, err := client.Ping()
	require.Nil(t, err)
	assert.Equal(t, "PONG", response)
}

func TestSigningResultSaveAndGet(t *testing.T) {
	client := newTestClient(t)

	result := service.NewSigningResult("batch-1", "photo.jpg")
	require.Nil(t, result.AdvanceTo(constants.StatusDownloading))
	jsonData, err := result.ToJSON()
	require.Nil(t, err)

	require.Nil(t, client.SigningResultSave("batch-1", "photo.jpg", jsonData))

	stored, err := client.SigningResultGet("batch-1", "photo.jpg")
	require.Nil(t, err)
	restored, err := service.SigningResultFromJSON(stored)
	require.Nil(t, err)
	assert.Equal(t, "photo.jpg", restored.AssetName)
	assert.Equal(t, constants.StatusDownloading, restored.CurrentStatus())

	// Results are keyed per batch.
	_, err = client.SigningResultGet("batch-2", "photo.jpg")
	assert.NotNil(t, err)
}

func TestSigningResultDelete(t *testing.T) {
	client := newTestClient(t)
	require.Nil(t, client.SigningResultSave("batch-1", "photo.jpg", "{}"))
	require.Nil(t, client.SigningResultDelete("batch-1", "photo.jpg"))
	_, err := client.SigningResultGet("batch-1", "photo.jpg")
	assert.NotNil(t, err)
}

func TestBatchAssetNames(t *testing.T) {
	client := newTestClient(t)
	require.Nil(t, client.SigningResultSave("batch-1", "a.jpg", "{}"))
	require.Nil(t, client.SigningResultSave("batch-1", "b.jpg", "{}"))
	require.Nil(t, client.SigningResultSave("batch-2", "c.jpg", "{}"))

	names, err := client.BatchAssetNames("batch-1")
	require.Nil(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, names)
}

func TestBatchDelete(t *testing.T) {
	client := newTestClient(t)
	require.Nil(t, client.SigningResultSave("batch-1", "a.jpg", "{}"))
	require.Nil(t, client.SigningResultSave("batch-1", "b.jpg", "{}"))

	require.Nil(t, client.BatchDelete("batch-1"))
	names, err := client.BatchAssetNames("batch-1")
	require.Nil(t, err)
	assert.Empty(t, names)
}
