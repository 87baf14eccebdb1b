package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"paper-filter/csvio"
	"paper-filter/logger"
	"paper-filter/types"
)

// Uploader writes gzipped CSV tables to S3
type Uploader struct {
	s3Client s3iface.S3API
	bucket   string
	prefix   string
	now      func() time.Time
}

// UploadResult represents the result of an S3 upload operation
type UploadResult struct {
	S3Key          string    `json:"s3_key"`
	RecordCount    int       `json:"record_count"`
	CompressedSize int64     `json:"compressed_size"`
	OriginalSize   int64     `json:"original_size"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewUploader creates a new S3 uploader
func NewUploader(bucket, prefix, region string) (*Uploader, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeS3, "failed to create AWS session", err)
	}
	return NewUploaderWithClient(s3.New(sess), bucket, prefix), nil
}

// NewUploaderWithClient creates an uploader with a custom S3 client (useful for testing)
func NewUploaderWithClient(client s3iface.S3API, bucket, prefix string) *Uploader {
	return &Uploader{
		s3Client: client,
		bucket:   bucket,
		prefix:   prefix,
		now:      time.Now,
	}
}

// UploadTable encodes table as CSV, compresses it and uploads it under a
// timestamped key derived from name.
func (u *Uploader) UploadTable(ctx context.Context, name string, table types.Table) (*UploadResult, error) {
	timestamp := u.now().UTC()
	s3Key := u.generateS3Key(name, timestamp)

	csvData, err := csvio.Encode(table)
	if err != nil {
		return nil, err
	}

	compressedData, err := CompressData(csvData)
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeS3, "failed to compress table", err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(compressedData),
		ContentType: aws.String("application/gzip"),
		Metadata: map[string]*string{
			"record-count": aws.String(fmt.Sprintf("%d", table.Len())),
			"title-column": aws.String(table.TitleColumn),
			"written-at":   aws.String(timestamp.Format(time.RFC3339)),
		},
	}

	if _, err := u.s3Client.PutObjectWithContext(ctx, input); err != nil {
		return nil, objectError("failed to upload table", u.bucket, s3Key, err)
	}

	return &UploadResult{
		S3Key:          s3Key,
		RecordCount:    table.Len(),
		CompressedSize: int64(len(compressedData)),
		OriginalSize:   int64(len(csvData)),
		Timestamp:      timestamp,
	}, nil
}

// generateS3Key formats prefix/YYYY-MM-DD/name-YYYYMMDD-HHMMSS.csv.gz
func (u *Uploader) generateS3Key(name string, timestamp time.Time) string {
	dateStr := timestamp.Format("2006-01-02")
	timestampStr := timestamp.Format("20060102-150405")

	return fmt.Sprintf("%s/%s/%s-%s.csv.gz", u.prefix, dateStr, name, timestampStr)
}

// CompressData compresses data using gzip
func CompressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)

	if _, err := gzipWriter.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to gzip writer: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// DecompressData decompresses gzip data
func DecompressData(compressedData []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("failed to read from gzip reader: %w", err)
	}

	return buf.Bytes(), nil
}
