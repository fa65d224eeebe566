package signer

import (
	"bytes"
	"crypto"
	"encoding/asn1"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/models/common"
)

// RFC 3161 request/response media types.
const (
	timestampQueryType = "application/timestamp-query"
	timestampReplyType = "application/timestamp-reply"
)

var digestOIDs = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.SHA256: {2, 16, 840, 1, 101, 3, 4, 2, 1},
	crypto.SHA384: {2, 16, 840, 1, 101, 3, 4, 2, 2},
	crypto.SHA512: {2, 16, 840, 1, 101, 3, 4, 2, 3},
}

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type messageImprint struct {
	HashAlgorithm algorithmIdentifier
	HashedMessage []byte
}

type timeStampReq struct {
	Version        int
	MessageImprint messageImprint
	Nonce          *big.Int `asn1:"optional"`
	CertReq        bool     `asn1:"optional"`
}

// BuildTimestampRequest constructs a DER-encoded RFC 3161 TimeStampReq
// for the given message. The imprint is the digest of the message
// under the algorithm's mapped digest function; the nonce comes from
// the random source; certReq is always set so the TSA returns its
// certificate chain.
func BuildTimestampRequest(algorithm string, message []byte, random []byte) ([]byte, error) {
	hash, err := constants.DigestAlgorithmFor(algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedAlgorithm, algorithm)
	}
	oid, ok := digestOIDs[hash]
	if !ok {
		return nil, fmt.Errorf("%w: no OID for digest %v", common.ErrUnsupportedAlgorithm, hash)
	}
	if len(random) != constants.TimestampNonceSize {
		return nil, fmt.Errorf("timestamp nonce must be %d bytes, got %d",
			constants.TimestampNonceSize, len(random))
	}
	hasher := hash.New()
	hasher.Write(message)
	req := timeStampReq{
		Version: 1,
		MessageImprint: messageImprint{
			HashAlgorithm: algorithmIdentifier{
				Algorithm:  oid,
				Parameters: asn1.NullRawValue,
			},
			HashedMessage: hasher.Sum(nil),
		},
		Nonce:   new(big.Int).SetBytes(random),
		CertReq: true,
	}
	return asn1.Marshal(req)
}

// postTimestampRequest posts a DER TimeStampReq body to the TSA and
// returns the raw DER response.
func postTimestampRequest(tsaURL string, body []byte) ([]byte, error) {
	resp, err := http.Post(tsaURL, timestampQueryType, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("timestamp authority at %s: %v", tsaURL, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading timestamp response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timestamp authority returned status %d", resp.StatusCode)
	}
	return data, nil
}
