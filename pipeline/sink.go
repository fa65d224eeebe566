package pipeline

import (
	"bytes"
	ctx "context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediaprov/provenance-services/models/common"
	"github.com/minio/minio-go/v7"
)

// OutputSink receives signed assets at the end of a pipeline run.
// Formally defined so tests can capture output without touching disk
// or S3.
type OutputSink interface {
	// Save persists the signed asset bytes under the asset's name and
	// returns the location it was written to. Failures wrap IOFailure
	// and count against the one asset being saved.
	Save(assetName, mimeType string, data []byte) (string, error)
}

// FileSink writes signed assets into a directory, one file per asset,
// overwriting any existing file of the same name.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

func (sink *FileSink) Save(assetName, mimeType string, data []byte) (string, error) {
	outputPath := filepath.Join(sink.Dir, assetName)
	err := os.MkdirAll(filepath.Dir(outputPath), 0755)
	if err != nil {
		return "", fmt.Errorf("%w: cannot create output dir for %s: %v",
			common.ErrIOFailure, assetName, err)
	}
	err = os.WriteFile(outputPath, data, 0644)
	if err != nil {
		return "", fmt.Errorf("%w: cannot write %s: %v",
			common.ErrIOFailure, outputPath, err)
	}
	return outputPath, nil
}

// S3Sink writes signed assets into an S3 bucket, keyed by asset name.
type S3Sink struct {
	Client *minio.Client
	Bucket string
}

func NewS3Sink(client *minio.Client, bucket string) *S3Sink {
	return &S3Sink{
		Client: client,
		Bucket: bucket,
	}
}

func (sink *S3Sink) Save(assetName, mimeType string, data []byte) (string, error) {
	_, err := sink.Client.PutObject(
		ctx.Background(),
		sink.Bucket,
		assetName,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return "", fmt.Errorf("%w: cannot upload %s to bucket %s: %v",
			common.ErrIOFailure, assetName, sink.Bucket, err)
	}
	return fmt.Sprintf("s3://%s/%s", sink.Bucket, assetName), nil
}
