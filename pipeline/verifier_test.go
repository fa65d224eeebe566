package pipeline_test

import (
	"errors"
	"testing"

	"github.com/mediaprov/provenance-services/codec/framed"
	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/mediaprov/provenance-services/pipeline"
	"github.com/mediaprov/provenance-services/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedAsset(t *testing.T) (*pipeline.Verifier, *service.Asset, []byte) {
	statuses := make([]string, 0)
	assetSigner := newAssetSigner(t, "", &statuses)
	count, errs := assetSigner.Run()
	require.Empty(t, errs)
	require.Equal(t, 1, count)

	signed, err := service.NewAsset("photo.jpg", "image/jpeg", assetSigner.SignedBytes)
	require.Nil(t, err)
	verifier := pipeline.NewVerifier(testutil.Logger(), assetSigner.CodecWorker,
		assetSigner.ModuleID, assetSigner.ModuleID)
	return verifier, signed, assetSigner.SignedBytes
}

func TestVerifierReadManifest(t *testing.T) {
	verifier, signed, _ := signedAsset(t)

	store, err := verifier.ReadManifest(signed)
	require.Nil(t, err)
	assert.False(t, store.IsEmpty())
	assert.NotEmpty(t, store.ActiveManifest)

	unsigned, err := service.NewAsset("plain.jpg", "image/jpeg", []byte("never signed"))
	require.Nil(t, err)
	_, err = verifier.ReadManifest(unsigned)
	assert.True(t, errors.Is(err, common.ErrNoManifestFound))
}

func TestVerifierReadDetachedManifest(t *testing.T) {
	verifier, _, signedBytes := signedAsset(t)
	manifest, err := framed.ExtractManifest(signedBytes)
	require.Nil(t, err)

	original, err := service.NewAsset("photo.jpg", "image/jpeg", framed.StripManifests(signedBytes))
	require.Nil(t, err)
	store, err := verifier.ReadDetachedManifest(manifest, original)
	require.Nil(t, err)
	assert.False(t, store.IsEmpty())

	tampered, err := service.NewAsset("photo.jpg", "image/jpeg", []byte("tampered bytes"))
	require.Nil(t, err)
	_, err = verifier.ReadDetachedManifest(manifest, tampered)
	assert.True(t, errors.Is(err, common.ErrAssetMismatch))
}

func TestVerifierScan(t *testing.T) {
	verifier, signed, _ := signedAsset(t)

	result, err := verifier.Scan(signed)
	require.Nil(t, err)
	assert.False(t, result.Found)

	marked, err := service.NewAsset("marked.bin", "application/octet-stream",
		[]byte("data "+framed.DefaultWatermark+" data"))
	require.Nil(t, err)
	result, err = verifier.Scan(marked)
	require.Nil(t, err)
	assert.True(t, result.Found)
	assert.EqualValues(t, 5, result.Offset)
}
