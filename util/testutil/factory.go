package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/mediaprov/provenance-services/constants"
)

// KeyForAlgorithm generates a throwaway private key matching the
// given signing algorithm.
func KeyForAlgorithm(algorithm string) (crypto.Signer, error) {
	switch algorithm {
	case constants.AlgEs256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case constants.AlgEs384:
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case constants.AlgEs512:
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case constants.AlgPs256, constants.AlgPs384, constants.AlgPs512:
		return rsa.GenerateKey(rand.Reader, 2048)
	case constants.AlgEd25519:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		return key, err
	}
	return nil, fmt.Errorf("no test key for algorithm %q", algorithm)
}

// SelfSignedCertDER creates a self-signed certificate for the key and
// returns its DER bytes.
func SelfSignedCertDER(key crypto.Signer) ([]byte, error) {
	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   "provenance-services test signer",
			Organization: []string{"Media Provenance Services"},
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	return x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
}

// CertPEM wraps DER certificate bytes in a PEM CERTIFICATE block.
func CertPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// KeyPEM encodes a private key as a PEM PKCS#8 block.
func KeyPEM(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// TrustPEM generates a key for the algorithm plus a single-cert PEM
// bundle, the inputs a trust bootstrap expects.
func TrustPEM(algorithm string) (certPEM, keyPEM []byte, key crypto.Signer, err error) {
	key, err = KeyForAlgorithm(algorithm)
	if err != nil {
		return nil, nil, nil, err
	}
	der, err := SelfSignedCertDER(key)
	if err != nil {
		return nil, nil, nil, err
	}
	keyPEM, err = KeyPEM(key)
	if err != nil {
		return nil, nil, nil, err
	}
	return CertPEM(der), keyPEM, key, nil
}
