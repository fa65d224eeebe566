package trust

import (
	"crypto"
	"crypto/ed25519"
	"crypto/x509"
	"fmt"
)

func parsePKCS8(der []byte) (crypto.Signer, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	signer, ok := parsed.(crypto.Signer)
	if !ok {
		// x509 returns ed25519 keys as the value type, which already
		// satisfies crypto.Signer, so this covers unexpected types only.
		if key, isEd := parsed.(ed25519.PrivateKey); isEd {
			return key, nil
		}
		return nil, fmt.Errorf("PKCS#8 key of type %T cannot sign", parsed)
	}
	return signer, nil
}

func parseEC(der []byte) (crypto.Signer, error) {
	return x509.ParseECPrivateKey(der)
}

func parsePKCS1(der []byte) (crypto.Signer, error) {
	return x509.ParsePKCS1PrivateKey(der)
}
