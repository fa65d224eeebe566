package constants

import (
	"crypto"
	"fmt"
)

const (
	AlgEs256   = "es256"
	AlgEs384   = "es384"
	AlgEs512   = "es512"
	AlgPs256   = "ps256"
	AlgPs384   = "ps384"
	AlgPs512   = "ps512"
	AlgEd25519 = "ed25519"

	OpBatchSign      = "batch-sign"
	OpReadManifest   = "read-manifest"
	OpReadDetached   = "read-detached-manifest"
	OpScan           = "scan"
	OpSign           = "sign"
	OpLoadModule     = "load-module"
	OpTrustBootstrap = "trust-bootstrap"

	S3ClientAWS   = "AWS"
	S3ClientLocal = "Local"

	TopicBatchSign = "provenance_batch_sign"
	TopicStatus    = "provenance_status"

	// ClaimGenerator identifies this service in the claims it produces.
	ClaimGenerator = "media_provenance_services/1.0"

	// TimestampNonceSize is the number of random bytes used as the
	// nonce in an RFC 3161 timestamp request.
	TimestampNonceSize = 8

	// SignatureReserveBase is the base number of bytes a codec should
	// reserve for a signature, before adding certificate sizes.
	SignatureReserveBase = 8192
)

// SigningAlgorithms lists every algorithm the signer adapter supports.
var SigningAlgorithms = []string{
	AlgEs256,
	AlgEs384,
	AlgEs512,
	AlgPs256,
	AlgPs384,
	AlgPs512,
	AlgEd25519,
}

// digestForAlg maps each signing algorithm to the single digest
// algorithm used with it. This mapping is total over SigningAlgorithms.
var digestForAlg = map[string]crypto.Hash{
	AlgEs256:   crypto.SHA256,
	AlgPs256:   crypto.SHA256,
	AlgEs384:   crypto.SHA384,
	AlgPs384:   crypto.SHA384,
	AlgEs512:   crypto.SHA512,
	AlgPs512:   crypto.SHA512,
	AlgEd25519: crypto.SHA512,
}

// DigestAlgorithmFor returns the digest algorithm for the given signing
// algorithm. An algorithm outside of SigningAlgorithms is a
// configuration error, not a runtime fallback, so this returns an error
// rather than a default.
func DigestAlgorithmFor(alg string) (crypto.Hash, error) {
	hash, ok := digestForAlg[alg]
	if !ok {
		return 0, fmt.Errorf("no digest algorithm for signing algorithm %q", alg)
	}
	return hash, nil
}

// AlgorithmIsSupported returns true if alg is one of the algorithms in
// SigningAlgorithms.
func AlgorithmIsSupported(alg string) bool {
	_, ok := digestForAlg[alg]
	return ok
}
