package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"paper-filter/config"
	"paper-filter/csvio"
	"paper-filter/deduplicator"
	"paper-filter/logger"
	"paper-filter/processor"
	"paper-filter/s3"
)

var (
	appLogger    *logger.Logger
	errorHandler *logger.ErrorHandler

	newEventProcessor = buildProcessor
)

func init() {
	appLogger = logger.New("paper-filter")
	errorHandler = logger.NewErrorHandler(appLogger)
}

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(handleS3Event)
		return
	}
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func handleS3Event(ctx context.Context, s3Event events.S3Event) (result *processor.ProcessResult, err error) {
	defer func() {
		if err != nil {
			result = nil
		}
	}()
	defer errorHandler.Recover(&err, "lambda handler")

	contextLogger := appLogger.WithContext(ctx)
	contextLogger.InfoWithCount("Processing S3 records", len(s3Event.Records))

	if len(s3Event.Records) == 0 {
		return nil, fmt.Errorf("no S3 records to process")
	}

	cfg, err := loadConfiguration(ctx, contextLogger)
	if err != nil {
		return nil, errorHandler.Handle(err, "configuration")
	}
	contextLogger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	eventProcessor, err := newEventProcessor(cfg, s3Event, contextLogger)
	if err != nil {
		return nil, errorHandler.Handle(err, "processor setup")
	}

	result, err = eventProcessor.ProcessS3Event(ctx, s3Event)
	if err != nil {
		contextLogger.Error("Error processing S3 event", err)
		return nil, err
	}

	resultJSON, _ := json.Marshal(result)
	contextLogger.Info("Processing completed", map[string]interface{}{
		"result": string(resultJSON),
	})
	return result, nil
}

// loadConfiguration reads CONFIG_BUCKET/CONFIG_KEY from S3 when both are
// set and falls back to the defaults otherwise.
func loadConfiguration(ctx context.Context, log *logger.Logger) (*config.Config, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = config.GetDefaultConfig().AWS.Region
	}
	manager, err := config.NewManager(region)
	if err != nil {
		return nil, err
	}

	bucket, key := os.Getenv("CONFIG_BUCKET"), os.Getenv("CONFIG_KEY")
	if bucket == "" || key == "" {
		log.Info("Using default configuration")
		return manager.LoadFromFile("")
	}

	cfg, err := manager.LoadFromS3(ctx, bucket, key)
	if err != nil {
		log.Warn("Failed to load config from S3, using default config", map[string]interface{}{
			"bucket": bucket,
			"key":    key,
			"error":  err.Error(),
		})
		return manager.LoadFromFile("")
	}
	return cfg, nil
}

// buildProcessor wires the S3 pipeline. Without an output bucket the
// results go back to the bucket that triggered the event.
func buildProcessor(cfg *config.Config, s3Event events.S3Event, log *logger.Logger) (*processor.S3EventProcessor, error) {
	outputBucket := cfg.AWS.S3.OutputBucket
	if outputBucket == "" {
		outputBucket = s3Event.Records[0].S3.Bucket.Name
	}

	uploader, err := s3.NewUploader(outputBucket, cfg.AWS.S3.ProcessedPrefix, cfg.AWS.Region)
	if err != nil {
		return nil, err
	}

	loader := csvio.NewLoaderWithLogger(log.Named("csvio"))
	loader.TitleColumn = cfg.Input.TitleColumn
	loader.AbstractColumn = cfg.Input.AbstractColumn

	dedup := deduplicator.NewDeduplicatorWithLogger(log.Named("deduplicator"), cfg.DedupOptions())

	eventProcessor, err := processor.NewS3EventProcessor(s3.NewDownloader(), loader, dedup, uploader, log).
		WithCriteria(cfg.Filter)
	if err != nil {
		return nil, err
	}
	if outputBucket == s3Event.Records[0].S3.Bucket.Name {
		eventProcessor.WithProcessedPrefix(cfg.AWS.S3.ProcessedPrefix)
	}
	return eventProcessor, nil
}
