package framed_test

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mediaprov/provenance-services/codec"
	"github.com/mediaprov/provenance-services/codec/framed"
	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/mediaprov/provenance-services/signer"
	"github.com/mediaprov/provenance-services/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileModule(t *testing.T) codec.Module {
	module, err := framed.NewLoader().Compile(framed.DescriptorBytes())
	require.Nil(t, err)
	return module
}

func signingInfo(t *testing.T, tsaURL string) *service.SigningInfo {
	key, err := testutil.KeyForAlgorithm(constants.AlgEs256)
	require.Nil(t, err)
	localSigner, err := signer.NewLocalSigner(constants.AlgEs256, key, tsaURL)
	require.Nil(t, err)
	certDER, err := testutil.SelfSignedCertDER(key)
	require.Nil(t, err)
	info, err := service.NewSigningInfo(constants.AlgEs256, [][]byte{certDER}, localSigner, "photo.jpg")
	require.Nil(t, err)
	return info
}

func TestLoaderCompile(t *testing.T) {
	loader := framed.NewLoader()

	_, err := loader.Compile(framed.DescriptorBytes())
	assert.Nil(t, err)

	_, err = loader.Compile([]byte("{truncated"))
	assert.NotNil(t, err)

	_, err = loader.Compile([]byte(`{"format": "something-else", "version": 1}`))
	assert.NotNil(t, err)
}

func TestSignEmbedsManifest(t *testing.T) {
	module := compileModule(t)
	asset := []byte("raw image bytes")
	info := signingInfo(t, "")
	require.Nil(t, info.AddAssertion("stds.exif", json.RawMessage(`{"camera":"X100"}`)))
	info.SetThumbnail("image/jpeg", []byte{0xff, 0xd8})

	signed, err := module.Sign(asset, "image/jpeg", info)
	require.Nil(t, err)

	// The original bytes are a prefix of the signed container.
	assert.Equal(t, asset, signed[:len(asset)])
	assert.Equal(t, asset, framed.StripManifests(signed))

	frame, err := framed.ExtractManifest(signed)
	require.Nil(t, err)

	var block map[string]interface{}
	require.Nil(t, json.Unmarshal(frame, &block))
	assert.Equal(t, constants.ClaimGenerator, block["generator"])
	assert.Equal(t, constants.AlgEs256, block["algorithm"])
	assert.Equal(t, "image/jpeg", block["mime_type"])
	assert.NotEmpty(t, block["certificates"])
	assert.NotEmpty(t, block["claim_digest"])
	assert.NotEmpty(t, block["claim_signature"])
	assert.NotEmpty(t, block["asset_digest"])
	assert.NotEmpty(t, block["thumbnail"])
	// No TSA, no timestamp field.
	assert.Nil(t, block["timestamp"])
}

func TestSignWithTimestampAuthority(t *testing.T) {
	tsaServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/timestamp-query", r.Header.Get("Content-Type"))
		w.Write([]byte("der-timestamp-token"))
	}))
	defer tsaServer.Close()

	module := compileModule(t)
	signed, err := module.Sign([]byte("asset"), "image/jpeg", signingInfo(t, tsaServer.URL))
	require.Nil(t, err)

	frame, err := framed.ExtractManifest(signed)
	require.Nil(t, err)
	var block map[string]interface{}
	require.Nil(t, json.Unmarshal(frame, &block))
	token, err := base64.StdEncoding.DecodeString(block["timestamp"].(string))
	require.Nil(t, err)
	assert.Equal(t, []byte("der-timestamp-token"), token)
}

func TestSignSurvivesTimestampFailure(t *testing.T) {
	tsaServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer tsaServer.Close()

	module := compileModule(t)
	signed, err := module.Sign([]byte("asset"), "image/jpeg", signingInfo(t, tsaServer.URL))
	require.Nil(t, err)

	// The claim stands without a timestamp.
	frame, err := framed.ExtractManifest(signed)
	require.Nil(t, err)
	var block map[string]interface{}
	require.Nil(t, json.Unmarshal(frame, &block))
	assert.Nil(t, block["timestamp"])
	assert.NotEmpty(t, block["claim_signature"])
}

func TestReadManifestMultipleFrames(t *testing.T) {
	module := compileModule(t)
	asset := []byte("asset bytes")

	once, err := module.Sign(asset, "image/jpeg", signingInfo(t, ""))
	require.Nil(t, err)
	twice, err := module.Sign(once, "image/jpeg", signingInfo(t, ""))
	require.Nil(t, err)

	store, err := module.ReadManifest(twice, "image/jpeg")
	require.Nil(t, err)
	assert.Equal(t, 2, len(store.Manifests))
	assert.Contains(t, store.Manifests, store.ActiveManifest)

	// The active manifest is the most recent frame.
	lastFrame, err := framed.ExtractManifest(twice)
	require.Nil(t, err)
	assert.JSONEq(t, string(lastFrame), string(store.Manifests[store.ActiveManifest]))
}

func TestReadManifestFailureModes(t *testing.T) {
	module := compileModule(t)

	_, err := module.ReadManifest([]byte("no manifest here"), "image/jpeg")
	assert.True(t, errors.Is(err, common.ErrNoManifestFound))

	// A frame header claiming more bytes than exist is malformed.
	signed, err := module.Sign([]byte("asset"), "image/jpeg", signingInfo(t, ""))
	require.Nil(t, err)
	truncated := signed[:len(signed)-10]
	_, err = module.ReadManifest(truncated, "image/jpeg")
	assert.True(t, errors.Is(err, common.ErrMalformedManifest))

	// A well-framed payload that is not JSON is malformed too.
	garbage := append([]byte("asset"), 0xff, 'M', 'P', 'R', 'V')
	garbage = binary.BigEndian.AppendUint32(garbage, 7)
	garbage = append(garbage, []byte("not{json")[:7]...)
	_, err = module.ReadManifest(garbage, "image/jpeg")
	assert.True(t, errors.Is(err, common.ErrMalformedManifest))
}

func TestReadDetachedManifest(t *testing.T) {
	module := compileModule(t)
	asset := []byte("the exact signed bytes")

	signed, err := module.Sign(asset, "image/jpeg", signingInfo(t, ""))
	require.Nil(t, err)
	manifest, err := framed.ExtractManifest(signed)
	require.Nil(t, err)

	// Matching asset validates.
	store, err := module.ReadDetachedManifest(manifest, asset, "image/jpeg")
	require.Nil(t, err)
	assert.False(t, store.IsEmpty())

	// Different bytes are a mismatch.
	_, err = module.ReadDetachedManifest(manifest, []byte("tampered bytes"), "image/jpeg")
	assert.True(t, errors.Is(err, common.ErrAssetMismatch))

	// Empty and malformed manifests.
	_, err = module.ReadDetachedManifest(nil, asset, "image/jpeg")
	assert.True(t, errors.Is(err, common.ErrNoManifestFound))
	_, err = module.ReadDetachedManifest([]byte("{bad"), asset, "image/jpeg")
	assert.True(t, errors.Is(err, common.ErrMalformedManifest))
}

func TestScan(t *testing.T) {
	module := compileModule(t)

	found, offset, err := module.Scan([]byte("nothing to see"))
	require.Nil(t, err)
	assert.False(t, found)
	assert.EqualValues(t, 0, offset)

	found, offset, err = module.Scan([]byte("xx" + framed.DefaultWatermark + "yy"))
	require.Nil(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 2, offset)
}

func TestCompileCustomWatermark(t *testing.T) {
	module, err := framed.NewLoader().Compile([]byte(`{"format": "framed-manifest", "version": 1, "watermark": "ZZZZ"}`))
	require.Nil(t, err)

	found, _, err := module.Scan([]byte("has " + framed.DefaultWatermark + " only"))
	require.Nil(t, err)
	assert.False(t, found)

	found, offset, err := module.Scan([]byte("ZZZZ first"))
	require.Nil(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 0, offset)
}
