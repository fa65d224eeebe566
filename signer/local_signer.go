package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/models/common"
)

// LocalSigner implements SigningCallback over Go's standard crypto
// providers. The key handle never leaves this struct and is never
// logged or serialized.
type LocalSigner struct {
	algorithm string
	key       crypto.Signer
	tsaURL    string
}

// NewLocalSigner returns a LocalSigner bound to one key and one
// algorithm. It fails with UnsupportedAlgorithm for algorithms outside
// the enumerated set and with MissingKey when key is nil. Param tsaURL
// may be empty, in which case the signer has no timestamp capability
// and Timestamp returns an error.
func NewLocalSigner(algorithm string, key crypto.Signer, tsaURL string) (*LocalSigner, error) {
	if !constants.AlgorithmIsSupported(algorithm) {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedAlgorithm, algorithm)
	}
	if key == nil {
		return nil, common.ErrMissingKey
	}
	return &LocalSigner{
		algorithm: algorithm,
		key:       key,
		tsaURL:    tsaURL,
	}, nil
}

// Algorithm returns the signing algorithm this signer is bound to.
func (s *LocalSigner) Algorithm() string {
	return s.algorithm
}

// Digest hashes data using the digest algorithm mapped to this
// signer's algorithm.
func (s *LocalSigner) Digest(data []byte) ([]byte, error) {
	hash, err := constants.DigestAlgorithmFor(s.algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedAlgorithm, s.algorithm)
	}
	hasher := hash.New()
	hasher.Write(data)
	return hasher.Sum(nil), nil
}

// Sign signs data per the algorithm's native scheme: ASN.1 ECDSA over
// the mapped digest for es256/es384/es512, RSA-PSS for ps256/ps384/
// ps512, and pure Ed25519 over the raw data for ed25519. A key that
// does not match the algorithm yields SigningFailure.
func (s *LocalSigner) Sign(data []byte) ([]byte, error) {
	switch s.algorithm {
	case constants.AlgEs256, constants.AlgEs384, constants.AlgEs512:
		return s.signECDSA(data)
	case constants.AlgPs256, constants.AlgPs384, constants.AlgPs512:
		return s.signRSAPSS(data)
	case constants.AlgEd25519:
		return s.signEd25519(data)
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedAlgorithm, s.algorithm)
}

// Random returns n cryptographically secure random bytes. It fails
// only on catastrophic entropy-source failure.
func (s *LocalSigner) Random(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("entropy source failure: %v", err)
	}
	return buf, nil
}

// Timestamp sends message, an RFC 3161 request body, to the configured
// timestamp authority. See timestamp.go for request construction.
func (s *LocalSigner) Timestamp(message []byte) ([]byte, error) {
	if s.tsaURL == "" {
		return nil, fmt.Errorf("no timestamp authority configured")
	}
	return postTimestampRequest(s.tsaURL, message)
}

// TimestampSupported returns true if this signer can reach a timestamp
// authority.
func (s *LocalSigner) TimestampSupported() bool {
	return s.tsaURL != ""
}

func (s *LocalSigner) signECDSA(data []byte) ([]byte, error) {
	key, ok := s.key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is not ECDSA", common.ErrSigningFailure)
	}
	if expected := curveFor(s.algorithm); key.Curve != expected {
		return nil, fmt.Errorf("%w: key curve %s does not match algorithm %s",
			common.ErrSigningFailure, key.Curve.Params().Name, s.algorithm)
	}
	digest, err := s.Digest(data)
	if err != nil {
		return nil, err
	}
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSigningFailure, err)
	}
	return sig, nil
}

func (s *LocalSigner) signRSAPSS(data []byte) ([]byte, error) {
	key, ok := s.key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is not RSA", common.ErrSigningFailure)
	}
	hash, err := constants.DigestAlgorithmFor(s.algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedAlgorithm, s.algorithm)
	}
	hasher := hash.New()
	hasher.Write(data)
	digest := hasher.Sum(nil)
	opts := &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       hash,
	}
	sig, err := rsa.SignPSS(rand.Reader, key, hash, digest, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSigningFailure, err)
	}
	return sig, nil
}

func (s *LocalSigner) signEd25519(data []byte) ([]byte, error) {
	key, ok := s.key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is not Ed25519", common.ErrSigningFailure)
	}
	return ed25519.Sign(key, data), nil
}

func curveFor(algorithm string) elliptic.Curve {
	switch algorithm {
	case constants.AlgEs256:
		return elliptic.P256()
	case constants.AlgEs384:
		return elliptic.P384()
	case constants.AlgEs512:
		return elliptic.P521()
	}
	return nil
}
