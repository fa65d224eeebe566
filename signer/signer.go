// Package signer implements the signing-callback contract that the
// codec worker delegates cryptographic operations to. The codec never
// touches private key material; it calls back into one of these
// adapters for digests, signatures, random bytes, and timestamps.
package signer

// SigningCallback is the capability set a codec needs from a signer.
// Any implementer is substitutable: a local crypto provider, a
// hardware token, or a remote signing service.
type SigningCallback interface {
	// Digest hashes data with the digest algorithm that corresponds
	// to the adapter's signing algorithm.
	Digest(data []byte) ([]byte, error)

	// Sign signs data per the algorithm's native signing scheme.
	Sign(data []byte) ([]byte, error)

	// Random returns n cryptographically secure random bytes. It must
	// never block on external I/O.
	Random(n int) ([]byte, error)
}

// TimestampCallback is the optional fourth capability. Adapters that
// can reach a timestamp authority implement this in addition to
// SigningCallback.
type TimestampCallback interface {
	// Timestamp sends an RFC 3161 timestamp request and returns the
	// raw timestamp response.
	Timestamp(message []byte) ([]byte, error)
}

// HasTimestamp returns the callback's timestamp capability, if any.
// A callback that additionally reports TimestampSupported() false is
// treated as lacking the capability, so adapters with an optional
// timestamp authority can decline it at runtime.
func HasTimestamp(callback SigningCallback) (TimestampCallback, bool) {
	ts, ok := callback.(TimestampCallback)
	if !ok {
		return nil, false
	}
	if supporter, reports := callback.(interface{ TimestampSupported() bool }); reports && !supporter.TimestampSupported() {
		return nil, false
	}
	return ts, true
}
