package service

import (
	"fmt"
	"net/http"
)

// Asset is a media asset to be signed or verified: raw bytes plus a
// MIME type, identified by a name unique within a batch. The bytes are
// copied on construction and never modified afterward.
type Asset struct {
	Name     string
	MimeType string
	bytes    []byte
}

// NewAsset returns an Asset owning a private copy of data. If mimeType
// is empty, it is sniffed from the leading bytes.
func NewAsset(name, mimeType string, data []byte) (*Asset, error) {
	if name == "" {
		return nil, fmt.Errorf("asset name cannot be empty")
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	if mimeType == "" {
		mimeType = http.DetectContentType(owned)
	}
	return &Asset{
		Name:     name,
		MimeType: mimeType,
		bytes:    owned,
	}, nil
}

// Bytes returns a copy of the asset's bytes. Callers get their own
// buffer, so nothing they do can alter the asset.
func (a *Asset) Bytes() []byte {
	buf := make([]byte, len(a.bytes))
	copy(buf, a.bytes)
	return buf
}

// Size returns the size of the asset in bytes.
func (a *Asset) Size() int64 {
	return int64(len(a.bytes))
}
