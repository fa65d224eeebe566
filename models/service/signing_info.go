package service

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/signer"
)

// SigningInfo carries everything the codec needs to produce and embed
// a manifest for one asset: the algorithm, the certificate chain, an
// optional thumbnail, free-form assertions, and the bound signer
// callbacks. A SigningInfo is built fresh for each asset and never
// reused, because assertions (GPS, EXIF, authorship) are asset
// specific.
type SigningInfo struct {
	// Algorithm is one of constants.SigningAlgorithms.
	Algorithm string

	// Certificates is the DER-encoded certificate chain, in the order
	// supplied by the trust source. Opaque to this core; passed
	// through to the codec.
	Certificates [][]byte

	// Thumbnail is an optional downsized preview to embed in the
	// manifest, with its format ("image/jpeg" etc.).
	Thumbnail       []byte
	ThumbnailFormat string

	// Assertions maps assertion labels to JSON payloads. Labels are
	// unique; insertion order is irrelevant.
	Assertions map[string]json.RawMessage

	// Callback is the signer adapter the codec delegates digest,
	// sign, random, and timestamp calls to. The key handle lives
	// behind this interface and never appears here.
	Callback signer.SigningCallback

	// AssetName and CorrelationID tie nested signer-callback round
	// trips back to the specific in-flight sign call they belong to.
	AssetName     string
	CorrelationID string
}

// NewSigningInfo assembles a SigningInfo. This is a one-shot pure
// transform with no retry logic. It fails with MissingKey when no
// callback is supplied, since signing cannot proceed without a key,
// and with UnsupportedAlgorithm for algorithms outside the enumerated
// set.
func NewSigningInfo(algorithm string, certificates [][]byte, callback signer.SigningCallback, assetName string) (*SigningInfo, error) {
	if callback == nil {
		return nil, fmt.Errorf("%w: asset %s", common.ErrMissingKey, assetName)
	}
	if !constants.AlgorithmIsSupported(algorithm) {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedAlgorithm, algorithm)
	}
	return &SigningInfo{
		Algorithm:     algorithm,
		Certificates:  certificates,
		Assertions:    make(map[string]json.RawMessage),
		Callback:      callback,
		AssetName:     assetName,
		CorrelationID: uuid.New().String(),
	}, nil
}

// SetThumbnail attaches a preview image to embed in the manifest.
func (info *SigningInfo) SetThumbnail(format string, data []byte) {
	info.ThumbnailFormat = format
	info.Thumbnail = data
}

// AddAssertion attaches a labeled JSON assertion. Adding the same
// label twice replaces the earlier payload.
func (info *SigningInfo) AddAssertion(label string, payload json.RawMessage) error {
	if label == "" {
		return fmt.Errorf("assertion label cannot be empty")
	}
	if !json.Valid(payload) {
		return fmt.Errorf("assertion %q payload is not valid JSON", label)
	}
	info.Assertions[label] = payload
	return nil
}

// TimestampSupported returns true if the bound callback can reach a
// timestamp authority.
func (info *SigningInfo) TimestampSupported() bool {
	_, ok := signer.HasTimestamp(info.Callback)
	return ok
}

// ReserveSize estimates how many bytes a codec should reserve for the
// signature block: a fixed base plus the certificate chain.
func (info *SigningInfo) ReserveSize() int {
	size := constants.SignatureReserveBase
	for _, cert := range info.Certificates {
		size += len(cert)
	}
	return size
}
