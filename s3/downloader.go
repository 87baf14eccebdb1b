package s3

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"paper-filter/logger"
)

// Downloader handles S3 file downloads and decompression
type Downloader struct {
	s3Client s3iface.S3API
}

// NewDownloader creates a new S3 downloader instance
func NewDownloader() *Downloader {
	sess := session.Must(session.NewSession())
	return NewDownloaderWithClient(s3.New(sess))
}

// NewDownloaderWithClient creates a downloader with a custom S3 client (useful for testing)
func NewDownloaderWithClient(client s3iface.S3API) *Downloader {
	return &Downloader{s3Client: client}
}

// DownloadAndDecompress downloads an object and gunzips it when the key
// ends in .gz or .gzip.
func (d *Downloader) DownloadAndDecompress(ctx context.Context, bucket, key string) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	result, err := d.s3Client.GetObjectWithContext(ctx, input)
	if err != nil {
		return nil, objectError("failed to download S3 object", bucket, key, err)
	}
	defer result.Body.Close()

	var reader io.Reader = result.Body
	if IsCompressedKey(key) {
		gzipReader, err := gzip.NewReader(result.Body)
		if err != nil {
			return nil, objectError("failed to create gzip reader", bucket, key, err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, objectError("failed to read S3 object", bucket, key, err)
	}

	return data, nil
}

// IsCompressedKey reports whether key names a gzip object
func IsCompressedKey(key string) bool {
	return strings.HasSuffix(key, ".gz") || strings.HasSuffix(key, ".gzip")
}

func objectError(message, bucket, key string, err error) error {
	return logger.NewAppErrorWithMetadata(logger.ErrorTypeS3,
		fmt.Sprintf("%s %s/%s", message, bucket, key), err,
		map[string]interface{}{"bucket": bucket, "key": key})
}
