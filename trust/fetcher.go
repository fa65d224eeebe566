package trust

import (
	ctx "context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Fetcher retrieves raw bytes from a trust source. Formally defined so
// tests can supply canned PEM data without network access.
type Fetcher interface {
	Fetch(source string) ([]byte, error)
}

// SourceFetcher fetches trust material from a local file path, an
// http(s) URL, or an s3://bucket/key URI served by one of the
// configured S3 clients.
type SourceFetcher struct {
	S3Clients map[string]*minio.Client

	// S3Provider names which client in S3Clients serves s3:// URIs.
	S3Provider string
}

func NewSourceFetcher(s3Clients map[string]*minio.Client, s3Provider string) *SourceFetcher {
	return &SourceFetcher{
		S3Clients:  s3Clients,
		S3Provider: s3Provider,
	}
}

func (f *SourceFetcher) Fetch(source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return f.fetchHTTP(source)
	case strings.HasPrefix(source, "s3://"):
		return f.fetchS3(source)
	default:
		return os.ReadFile(source)
	}
}

func (f *SourceFetcher) fetchHTTP(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *SourceFetcher) fetchS3(uri string) ([]byte, error) {
	client := f.S3Clients[f.S3Provider]
	if client == nil {
		return nil, fmt.Errorf("no S3 client for provider %s", f.S3Provider)
	}
	trimmed := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("malformed s3 uri %q, want s3://bucket/key", uri)
	}
	obj, err := client.GetObject(ctx.Background(), parts[0], parts[1], minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
