package pipeline

import (
	"github.com/mediaprov/provenance-services/codec"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/op/go-logging"
)

// Verifier reads provenance manifests back out of assets through the
// codec worker. Verification never mutates asset bytes; the worker
// boundary copies everything both ways.
type Verifier struct {
	Logger      *logging.Logger
	CodecWorker *codec.Worker

	// ModuleID is the codec module handle for manifest reads.
	ModuleID string

	// ScannerModuleID is the module handle for watermark scans. May
	// equal ModuleID when one module provides both.
	ScannerModuleID string
}

func NewVerifier(logger *logging.Logger, worker *codec.Worker, moduleID, scannerModuleID string) *Verifier {
	return &Verifier{
		Logger:          logger,
		CodecWorker:     worker,
		ModuleID:        moduleID,
		ScannerModuleID: scannerModuleID,
	}
}

// ReadManifest extracts the manifest store embedded in the asset.
// Returns NoManifestFound for an unsigned asset and MalformedManifest
// for one whose manifest cannot be parsed.
func (v *Verifier) ReadManifest(asset *service.Asset) (*service.ManifestStore, error) {
	return v.CodecWorker.ReadManifest(v.ModuleID, asset.Bytes(), asset.MimeType)
}

// ReadDetachedManifest validates a detached manifest against the asset
// it claims to describe. In addition to the ReadManifest failure
// modes, a manifest bound to different bytes yields AssetMismatch.
func (v *Verifier) ReadDetachedManifest(manifest []byte, asset *service.Asset) (*service.ManifestStore, error) {
	return v.CodecWorker.ReadDetachedManifest(v.ModuleID, manifest, asset.Bytes(), asset.MimeType)
}

// Scan looks for a watermark in the asset. Scan reports found or not
// found and nothing else: scanner-internal failures surface as not
// found, logged inside the worker.
func (v *Verifier) Scan(asset *service.Asset) (codec.ScanResult, error) {
	return v.CodecWorker.Scan(v.ScannerModuleID, asset.Bytes())
}
