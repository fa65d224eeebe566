// Package framed is the built-in reference codec module. It stores a
// provenance manifest as a length-prefixed JSON frame appended to the
// asset container. It exists so the services can run end to end
// without a vendored binary codec: the production WASM codec and this
// one satisfy the same codec.Module contract, and everything above the
// worker boundary is indifferent to which is loaded.
package framed

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/mediaprov/provenance-services/codec"
	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/mediaprov/provenance-services/signer"
)

// frameMagic separates the asset container from a manifest frame.
var frameMagic = []byte{0xff, 'M', 'P', 'R', 'V'}

// descriptor is the "module binary" this codec compiles: a small JSON
// document selecting format version and the watermark pattern the
// scanner looks for.
type descriptor struct {
	Format    string `json:"format"`
	Version   int    `json:"version"`
	Watermark string `json:"watermark,omitempty"`
}

// FormatName is the required value of the descriptor's format field.
const FormatName = "framed-manifest"

// DefaultWatermark is the byte pattern the scanner looks for when the
// module descriptor does not override it.
const DefaultWatermark = "MPWM"

// manifestBlock is the JSON frame embedded in a signed asset. The
// asset digest binds the frame to the exact bytes that were signed.
type manifestBlock struct {
	Generator       string                     `json:"generator"`
	Algorithm       string                     `json:"algorithm"`
	MimeType        string                     `json:"mime_type"`
	Certificates    []string                   `json:"certificates"`
	Assertions      map[string]json.RawMessage `json:"assertions,omitempty"`
	Thumbnail       string                     `json:"thumbnail,omitempty"`
	ThumbnailFormat string                     `json:"thumbnail_format,omitempty"`
	AssetDigest     string                     `json:"asset_digest"`
	ClaimDigest     string                     `json:"claim_digest"`
	ClaimSignature  string                     `json:"claim_signature"`
	Timestamp       string                     `json:"timestamp,omitempty"`
}

// Loader compiles framed-manifest module descriptors.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// Compile parses the descriptor bytes. Anything that is not a valid
// framed-manifest descriptor is a load failure.
func (l *Loader) Compile(moduleBytes []byte) (codec.Module, error) {
	var desc descriptor
	if err := json.Unmarshal(moduleBytes, &desc); err != nil {
		return nil, fmt.Errorf("module descriptor is not valid JSON: %v", err)
	}
	if desc.Format != FormatName {
		return nil, fmt.Errorf("module descriptor format is %q, want %q", desc.Format, FormatName)
	}
	watermark := desc.Watermark
	if watermark == "" {
		watermark = DefaultWatermark
	}
	return &module{watermark: []byte(watermark)}, nil
}

// DescriptorBytes returns a descriptor that Compile accepts, for
// configs that generate the module source instead of loading a file.
func DescriptorBytes() []byte {
	data, _ := json.Marshal(descriptor{Format: FormatName, Version: 1})
	return data
}

type module struct {
	watermark []byte
}

// Sign builds a manifest frame for the asset and appends it to the
// container. Every cryptographic operation is delegated through
// info.Callback: the claim digest and signature, the timestamp nonce,
// and the timestamp request.
func (m *module) Sign(asset []byte, mimeType string, info *service.SigningInfo) ([]byte, error) {
	if info == nil || info.Callback == nil {
		return nil, common.ErrMissingKey
	}
	assetDigest := sha256.Sum256(asset)
	block := &manifestBlock{
		Generator:    constants.ClaimGenerator,
		Algorithm:    info.Algorithm,
		MimeType:     mimeType,
		Certificates: encodeCerts(info.Certificates),
		Assertions:   info.Assertions,
		AssetDigest:  base64.StdEncoding.EncodeToString(assetDigest[:]),
	}
	if len(info.Thumbnail) > 0 {
		block.Thumbnail = base64.StdEncoding.EncodeToString(info.Thumbnail)
		block.ThumbnailFormat = info.ThumbnailFormat
	}

	claim, err := claimBytes(block)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot serialize claim: %v", common.ErrSigningFailure, err)
	}
	claimDigest, err := info.Callback.Digest(claim)
	if err != nil {
		return nil, fmt.Errorf("%w: digest callback: %v", common.ErrSigningFailure, err)
	}
	block.ClaimDigest = base64.StdEncoding.EncodeToString(claimDigest)
	signature, err := info.Callback.Sign(claim)
	if err != nil {
		return nil, fmt.Errorf("%w: sign callback: %v", common.ErrSigningFailure, err)
	}
	block.ClaimSignature = base64.StdEncoding.EncodeToString(signature)

	if ts, ok := signer.HasTimestamp(info.Callback); ok {
		token, tsErr := m.requestTimestamp(ts, info, signature)
		if tsErr != nil {
			// A missing timestamp does not invalidate the claim.
			// Record nothing and move on, as the production codec does.
			token = nil
		}
		if len(token) > 0 {
			block.Timestamp = base64.StdEncoding.EncodeToString(token)
		}
	}

	frame, err := json.Marshal(block)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot serialize manifest frame: %v", common.ErrSigningFailure, err)
	}
	signed := make([]byte, 0, len(asset)+len(frameMagic)+4+len(frame))
	signed = append(signed, asset...)
	signed = append(signed, frameMagic...)
	signed = binary.BigEndian.AppendUint32(signed, uint32(len(frame)))
	signed = append(signed, frame...)
	return signed, nil
}

func (m *module) requestTimestamp(ts signer.TimestampCallback, info *service.SigningInfo, message []byte) ([]byte, error) {
	nonce, err := info.Callback.Random(constants.TimestampNonceSize)
	if err != nil {
		return nil, err
	}
	request, err := signer.BuildTimestampRequest(info.Algorithm, message, nonce)
	if err != nil {
		return nil, err
	}
	return ts.Timestamp(request)
}

// ReadManifest extracts all manifest frames from the asset. The last
// frame is the active manifest.
func (m *module) ReadManifest(asset []byte, mimeType string) (*service.ManifestStore, error) {
	frames, err := extractFrames(asset)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, common.ErrNoManifestFound
	}
	store := &service.ManifestStore{
		Manifests: make(map[string]json.RawMessage, len(frames)),
	}
	for _, frame := range frames {
		var block manifestBlock
		if err := json.Unmarshal(frame, &block); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrMalformedManifest, err)
		}
		label := frameLabel(frame)
		store.Manifests[label] = json.RawMessage(frame)
		store.ActiveManifest = label
	}
	return store, nil
}

// ReadDetachedManifest parses a detached manifest frame and checks its
// binding against the asset bytes.
func (m *module) ReadDetachedManifest(manifest, asset []byte, mimeType string) (*service.ManifestStore, error) {
	if len(manifest) == 0 {
		return nil, common.ErrNoManifestFound
	}
	var block manifestBlock
	if err := json.Unmarshal(manifest, &block); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedManifest, err)
	}
	boundDigest, err := base64.StdEncoding.DecodeString(block.AssetDigest)
	if err != nil || len(boundDigest) == 0 {
		return nil, fmt.Errorf("%w: missing asset digest", common.ErrMalformedManifest)
	}
	assetDigest := sha256.Sum256(asset)
	if !bytes.Equal(boundDigest, assetDigest[:]) {
		return nil, fmt.Errorf("%w: asset digest does not match manifest binding",
			common.ErrAssetMismatch)
	}
	label := frameLabel(manifest)
	return &service.ManifestStore{
		ActiveManifest: label,
		Manifests: map[string]json.RawMessage{
			label: json.RawMessage(manifest),
		},
	}, nil
}

// Scan looks for the module's watermark pattern in the asset.
func (m *module) Scan(asset []byte) (bool, int64, error) {
	idx := bytes.Index(asset, m.watermark)
	if idx < 0 {
		return false, 0, nil
	}
	return true, int64(idx), nil
}

// ExtractManifest returns the active (last) manifest frame of a signed
// asset, suitable for use as a detached manifest. Returns
// NoManifestFound for an unsigned asset.
func ExtractManifest(signedAsset []byte) ([]byte, error) {
	frames, err := extractFrames(signedAsset)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, common.ErrNoManifestFound
	}
	return frames[len(frames)-1], nil
}

// StripManifests returns the asset bytes up to the first manifest
// frame, which are the bytes the first frame's binding digest covers.
func StripManifests(signedAsset []byte) []byte {
	idx := bytes.Index(signedAsset, frameMagic)
	if idx < 0 {
		return signedAsset
	}
	return signedAsset[:idx]
}

// claimBytes serializes the signed portion of the block: everything
// except the signature, digest, and timestamp fields, which are
// derived from it.
func claimBytes(block *manifestBlock) ([]byte, error) {
	claim := *block
	claim.ClaimDigest = ""
	claim.ClaimSignature = ""
	claim.Timestamp = ""
	return json.Marshal(&claim)
}

func frameLabel(frame []byte) string {
	digest := sha256.Sum256(frame)
	return "urn:claim:" + hex.EncodeToString(digest[:8])
}

func encodeCerts(certs [][]byte) []string {
	encoded := make([]string, len(certs))
	for i, cert := range certs {
		encoded[i] = base64.StdEncoding.EncodeToString(cert)
	}
	return encoded
}

func extractFrames(asset []byte) ([][]byte, error) {
	frames := make([][]byte, 0)
	rest := asset
	for {
		idx := bytes.Index(rest, frameMagic)
		if idx < 0 {
			break
		}
		rest = rest[idx+len(frameMagic):]
		if len(rest) < 4 {
			return nil, fmt.Errorf("%w: truncated frame header", common.ErrMalformedManifest)
		}
		frameLen := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint32(len(rest)) < frameLen {
			return nil, fmt.Errorf("%w: frame shorter than header length", common.ErrMalformedManifest)
		}
		frames = append(frames, rest[:frameLen])
		rest = rest[frameLen:]
	}
	return frames, nil
}
