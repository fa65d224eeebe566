// Package codec defines the boundary to the heavyweight binary-format
// manifest codec and the watermark scanner, and hosts them in an
// isolated worker so that a codec crash or resource spike cannot take
// down the orchestrating process.
package codec

import (
	"github.com/mediaprov/provenance-services/models/service"
)

// ManifestCodec is the external manifest library: it constructs and
// embeds manifests into asset containers and extracts them back out.
// This core consumes it as an opaque collaborator.
type ManifestCodec interface {
	// Sign embeds a manifest described by info into the asset and
	// returns the signed asset bytes. All cryptographic operations go
	// through info.Callback; the codec holds no key material.
	Sign(asset []byte, mimeType string, info *service.SigningInfo) ([]byte, error)

	// ReadManifest extracts the manifest store embedded in the asset.
	// Returns NoManifestFound if the asset carries no manifest, or
	// MalformedManifest if one is present but unparsable.
	ReadManifest(asset []byte, mimeType string) (*service.ManifestStore, error)

	// ReadDetachedManifest validates a detached manifest against the
	// asset it claims to describe. Same failure modes as ReadManifest,
	// plus AssetMismatch when the binding does not match.
	ReadDetachedManifest(manifest, asset []byte, mimeType string) (*service.ManifestStore, error)
}

// Scanner is the external watermark/fingerprint scanner.
type Scanner interface {
	// Scan looks for a watermark in the asset and returns its offset
	// if found.
	Scan(asset []byte) (found bool, offset int64, err error)
}

// Module bundles the codec and scanner compiled from one module
// binary. A compiled module may be shared read-only across concurrent
// calls.
type Module interface {
	ManifestCodec
	Scanner
}

// ModuleLoader compiles raw module bytes into a usable Module.
// Compilation is idempotent: compiling the same bytes twice yields
// functionally equivalent modules with no state leakage between them.
type ModuleLoader interface {
	Compile(moduleBytes []byte) (Module, error)
}

// ScanResult is what Scan returns across the worker boundary. A scan
// never fails the caller: an internal scanner error is reported as
// Found=false, since absence-of-signal is the expected common case.
type ScanResult struct {
	Found  bool  `json:"found"`
	Offset int64 `json:"offset,omitempty"`
}
