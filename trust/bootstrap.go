// Package trust builds the trust context for a batch run: the DER
// certificate chain and the private key handle, fetched from a
// configured PEM source. The context is created once per bootstrap,
// reused read-only across the batch, and rebuilt on demand.
package trust

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/pem"
	"fmt"

	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/models/common"
)

// Context holds the outputs of one trust bootstrap. Certificates are
// DER-encoded, in the order the trust source supplied them. The key is
// an opaque handle bound to exactly one algorithm; it is never
// serialized and never logged.
type Context struct {
	Certificates [][]byte
	Algorithm    string
	key          crypto.Signer
}

// Key returns the private key handle. The handle stays inside the
// signer adapter's process boundary; nothing here writes it anywhere.
func (tc *Context) Key() crypto.Signer {
	return tc.key
}

// Bootstrap fetches a PEM certificate bundle and a PEM private key
// from their sources and returns a Context bound to the configured
// algorithm. All failures wrap TrustBootstrapFailure, and any of them
// is batch-fatal: no asset can be signed without certs and a key.
func Bootstrap(certSource, keySource, algorithm string, fetcher Fetcher) (*Context, error) {
	if !constants.AlgorithmIsSupported(algorithm) {
		return nil, common.NewError(common.ErrTrustBootstrapFailure,
			fmt.Sprintf("unsupported signing algorithm %q", algorithm), nil, true)
	}
	certPEM, err := fetcher.Fetch(certSource)
	if err != nil {
		return nil, common.NewError(common.ErrTrustBootstrapFailure,
			fmt.Sprintf("cannot fetch certificate bundle from %s", certSource), err, true)
	}
	certs, err := ParseCertificatesPEM(certPEM)
	if err != nil {
		return nil, common.NewError(common.ErrTrustBootstrapFailure,
			fmt.Sprintf("cannot parse certificate bundle from %s", certSource), err, true)
	}
	keyPEM, err := fetcher.Fetch(keySource)
	if err != nil {
		return nil, common.NewError(common.ErrTrustBootstrapFailure,
			fmt.Sprintf("cannot fetch private key from %s", keySource), err, true)
	}
	key, err := ParseKeyPEM(keyPEM)
	if err != nil {
		return nil, common.NewError(common.ErrTrustBootstrapFailure,
			"cannot parse private key", err, true)
	}
	if err = validateKeyForAlgorithm(key, algorithm); err != nil {
		return nil, common.NewError(common.ErrTrustBootstrapFailure,
			err.Error(), nil, true)
	}
	return &Context{
		Certificates: certs,
		Algorithm:    algorithm,
		key:          key,
	}, nil
}

// ParseCertificatesPEM extracts every CERTIFICATE block from a PEM
// bundle and returns the DER bytes of each, in order. A bundle with no
// certificate blocks is an error.
func ParseCertificatesPEM(data []byte) ([][]byte, error) {
	certs := make([][]byte, 0)
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		certs = append(certs, block.Bytes)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no CERTIFICATE blocks in PEM data")
	}
	return certs, nil
}

// ParseKeyPEM parses a PEM private key in PKCS#8, SEC1 (EC), or
// PKCS#1 (RSA) form.
func ParseKeyPEM(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in key data")
	}
	return parseKeyDER(block.Bytes)
}

func parseKeyDER(der []byte) (crypto.Signer, error) {
	if key, err := parsePKCS8(der); err == nil {
		return key, nil
	}
	if key, err := parseEC(der); err == nil {
		return key, nil
	}
	if key, err := parsePKCS1(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("key is not PKCS#8, SEC1, or PKCS#1")
}

func validateKeyForAlgorithm(key crypto.Signer, algorithm string) error {
	switch algorithm {
	case constants.AlgEs256, constants.AlgEs384, constants.AlgEs512:
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return fmt.Errorf("algorithm %s requires an ECDSA key", algorithm)
		}
		if ecKey.Curve != curveForAlgorithm(algorithm) {
			return fmt.Errorf("algorithm %s requires curve %s, key uses %s",
				algorithm, curveForAlgorithm(algorithm).Params().Name,
				ecKey.Curve.Params().Name)
		}
	case constants.AlgPs256, constants.AlgPs384, constants.AlgPs512:
		if _, ok := key.(*rsa.PrivateKey); !ok {
			return fmt.Errorf("algorithm %s requires an RSA key", algorithm)
		}
	case constants.AlgEd25519:
		if _, ok := key.(ed25519.PrivateKey); !ok {
			return fmt.Errorf("algorithm %s requires an Ed25519 key", algorithm)
		}
	}
	return nil
}

func curveForAlgorithm(algorithm string) elliptic.Curve {
	switch algorithm {
	case constants.AlgEs256:
		return elliptic.P256()
	case constants.AlgEs384:
		return elliptic.P384()
	}
	return elliptic.P521()
}
