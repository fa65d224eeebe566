package testutil

import (
	"net/http/httptest"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

const AssetBucket = "assets"
const SignedBucket = "signed-assets"
const TrustBucket = "trust-material"

type S3Server struct {
	server *httptest.Server
	URL    string
}

// NewS3Server returns an in-memory S3 server preloaded with the
// buckets the signing pipeline reads from and writes to.
func NewS3Server() *S3Server {
	backend := s3mem.New()
	backend.CreateBucket(AssetBucket)
	backend.CreateBucket(SignedBucket)
	backend.CreateBucket(TrustBucket)
	faker := gofakes3.New(backend)
	server := httptest.NewServer(faker.Server())
	return &S3Server{
		server: server,
		URL:    server.URL,
	}
}

func (s *S3Server) Close() {
	s.server.Close()
}
