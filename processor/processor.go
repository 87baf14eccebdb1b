package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"paper-filter/deduplicator"
	"paper-filter/filter"
	"paper-filter/logger"
	"paper-filter/s3"
	"paper-filter/types"
)

// Processing statuses reported in ProcessResult
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusFailed         = "failed"
)

// OutputName is the base name of uploaded exports
const OutputName = "processed_papers"

// ObjectResult reports the outcome for one S3 object of the event
type ObjectResult struct {
	Bucket    string              `json:"bucket"`
	Key       string              `json:"key"`
	OutputKey string              `json:"output_key,omitempty"`
	Dedup     *deduplicator.Stats `json:"deduplication_stats,omitempty"`
	Filter    *filter.Stats       `json:"filter_stats,omitempty"`
	Skipped   bool                `json:"skipped,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ProcessResult represents the result of batch processing
type ProcessResult struct {
	TraceID        string         `json:"trace_id"`
	ProcessedCount int            `json:"processed_count"`
	Timestamp      time.Time      `json:"timestamp"`
	Status         string         `json:"status"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Objects        []ObjectResult `json:"objects"`
}

// Logger interface for structured logging
type Logger interface {
	WithTraceID(traceID string) *logger.Logger
	Info(message string, metadata ...map[string]interface{})
	InfoWithCount(message string, count int, metadata ...map[string]interface{})
	InfoWithDuration(message string, duration time.Duration, metadata ...map[string]interface{})
	Warn(message string, metadata ...map[string]interface{})
	Error(message string, err error, metadata ...map[string]interface{})
	Debug(message string, metadata ...map[string]interface{})
}

// S3Downloader interface for downloading and decompressing S3 files
type S3Downloader interface {
	DownloadAndDecompress(ctx context.Context, bucket, key string) ([]byte, error)
}

// TableLoader parses an exported CSV into a table
type TableLoader interface {
	Read(r io.Reader) (types.Table, error)
}

// Deduplicator interface for data deduplication
type Deduplicator interface {
	DeduplicateWithStats(table types.Table) (types.Table, deduplicator.Stats)
}

// TableUploader writes the processed table back to S3
type TableUploader interface {
	UploadTable(ctx context.Context, name string, table types.Table) (*s3.UploadResult, error)
}

// S3EventProcessor handles S3 event processing
type S3EventProcessor struct {
	downloader      S3Downloader
	loader          TableLoader
	deduplicator    Deduplicator
	uploader        TableUploader
	logger          Logger
	criteria        filter.Criteria
	processedPrefix string
	now             func() time.Time
}

// NewS3EventProcessor creates a new S3 event processor
func NewS3EventProcessor(downloader S3Downloader, loader TableLoader, deduplicator Deduplicator, uploader TableUploader, logger Logger) *S3EventProcessor {
	return &S3EventProcessor{
		downloader:   downloader,
		loader:       loader,
		deduplicator: deduplicator,
		uploader:     uploader,
		logger:       logger,
		now:          time.Now,
	}
}

// WithCriteria filters every deduplicated table before upload. Invalid
// criteria are rejected.
func (p *S3EventProcessor) WithCriteria(c filter.Criteria) (*S3EventProcessor, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p.criteria = c
	return p, nil
}

// WithProcessedPrefix skips objects already written under prefix, so the
// processor's own uploads do not retrigger it.
func (p *S3EventProcessor) WithProcessedPrefix(prefix string) *S3EventProcessor {
	p.processedPrefix = strings.Trim(prefix, "/")
	return p
}

// ProcessS3Event processes each object of an S3 event independently
func (p *S3EventProcessor) ProcessS3Event(ctx context.Context, s3Event events.S3Event) (*ProcessResult, error) {
	if len(s3Event.Records) == 0 {
		return nil, fmt.Errorf("no S3 records to process")
	}

	traceID := uuid.New().String()
	startTime := p.now()
	tracedLogger := p.logger.WithTraceID(traceID)
	tracedLogger.InfoWithCount("Starting batch processing", len(s3Event.Records), map[string]interface{}{
		"event": "processing_start",
	})

	result := &ProcessResult{
		TraceID:   traceID,
		Timestamp: startTime,
		Objects:   make([]ObjectResult, 0, len(s3Event.Records)),
	}

	var failed, succeeded int
	var lastError error
	for i, record := range s3Event.Records {
		name := OutputName
		if len(s3Event.Records) > 1 {
			name = fmt.Sprintf("%s-%d", OutputName, i+1)
		}

		object := p.processObject(ctx, tracedLogger, record.S3.Bucket.Name, record.S3.Object.Key, name)
		switch {
		case object.Skipped:
		case object.Error != "":
			failed++
			lastError = fmt.Errorf("%s/%s: %s", object.Bucket, object.Key, object.Error)
		default:
			succeeded++
			if object.Filter != nil {
				result.ProcessedCount += object.Filter.RemainingCount
			}
		}
		result.Objects = append(result.Objects, object)
	}

	switch {
	case failed == 0:
		result.Status = StatusSuccess
	case succeeded == 0:
		result.Status = StatusFailed
		result.ErrorMessage = lastError.Error()
	default:
		result.Status = StatusPartialSuccess
		result.ErrorMessage = fmt.Sprintf("%d of %d objects failed: %v", failed, failed+succeeded, lastError)
	}

	processingTime := p.now().Sub(startTime)
	tracedLogger.InfoWithDuration("Batch processing completed", processingTime, map[string]interface{}{
		"event":           "processing_complete",
		"status":          result.Status,
		"processed_count": result.ProcessedCount,
		"failed_objects":  failed,
	})

	return result, nil
}

func (p *S3EventProcessor) processObject(ctx context.Context, log *logger.Logger, bucket, key, name string) ObjectResult {
	object := ObjectResult{Bucket: bucket, Key: key}

	if p.processedPrefix != "" && strings.HasPrefix(key, p.processedPrefix+"/") {
		log.Debug("Skipping processed output", map[string]interface{}{"bucket": bucket, "key": key})
		object.Skipped = true
		return object
	}

	fail := func(errorType string, err error) ObjectResult {
		log.Error("Error occurred during processing", err, map[string]interface{}{
			"event":      "error",
			"error_type": errorType,
			"context": map[string]interface{}{
				"bucket": bucket,
				"key":    key,
			},
		})
		object.Error = err.Error()
		return object
	}

	log.Info("Processing S3 object", map[string]interface{}{
		"event":  "s3_processing",
		"bucket": bucket,
		"key":    key,
	})

	data, err := p.downloader.DownloadAndDecompress(ctx, bucket, key)
	if err != nil {
		return fail("s3_download", err)
	}

	table, err := p.loader.Read(bytes.NewReader(data))
	if err != nil {
		return fail("data_parsing", err)
	}
	log.InfoWithCount("Data parsing completed", table.Len(), map[string]interface{}{
		"event":        "data_parsing",
		"title_column": table.TitleColumn,
	})

	unique, dedupStats := p.deduplicator.DeduplicateWithStats(table)
	object.Dedup = &dedupStats
	log.Info("Deduplication completed", map[string]interface{}{
		"event":               "deduplication",
		"deduplication_stats": dedupStats,
	})

	filtered, filterStats, err := filter.Apply(unique, p.criteria, nil)
	if err != nil {
		return fail("filter", err)
	}
	object.Filter = &filterStats

	if filtered.Len() == 0 {
		log.Warn("No papers left to upload", map[string]interface{}{
			"event":        "warning",
			"warning_type": "no_papers_left",
			"context": map[string]interface{}{
				"original_count": dedupStats.OriginalCount,
			},
		})
	}

	upload, err := p.uploader.UploadTable(ctx, name, filtered)
	if err != nil {
		return fail("s3_upload", err)
	}
	object.OutputKey = upload.S3Key
	return object
}
