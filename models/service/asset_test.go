package service_test

import (
	"testing"

	"github.com/mediaprov/provenance-services/models/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAsset(t *testing.T) {
	data := []byte("some asset bytes")
	asset, err := service.NewAsset("clip.bin", "video/mp4", data)
	require.Nil(t, err)
	assert.Equal(t, "clip.bin", asset.Name)
	assert.Equal(t, "video/mp4", asset.MimeType)
	assert.Equal(t, int64(len(data)), asset.Size())
	assert.Equal(t, data, asset.Bytes())

	_, err = service.NewAsset("", "video/mp4", data)
	assert.NotNil(t, err)
}

func TestNewAssetSniffsMimeType(t *testing.T) {
	// JPEG magic bytes
	data := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	asset, err := service.NewAsset("photo.jpg", "", data)
	require.Nil(t, err)
	assert.Equal(t, "image/jpeg", asset.MimeType)
}

func TestAssetBytesAreIsolated(t *testing.T) {
	data := []byte("original")
	asset, err := service.NewAsset("a.bin", "application/octet-stream", data)
	require.Nil(t, err)

	// Mutating the source buffer after construction changes nothing.
	data[0] = 'X'
	assert.Equal(t, []byte("original"), asset.Bytes())

	// Mutating a returned buffer changes nothing either.
	buf := asset.Bytes()
	buf[0] = 'Y'
	assert.Equal(t, []byte("original"), asset.Bytes())
}
