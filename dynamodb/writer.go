package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"paper-filter/logger"
	"paper-filter/review"
	"paper-filter/types"
)

const (
	// MaxBatchSize is the maximum number of items per batch write request
	MaxBatchSize = 25
	maxRetries   = 3

	defaultRetryDelay = 50 * time.Millisecond
)

// DecisionItem is one review outcome as stored in the table. The table is
// keyed by session_id (partition) and paper_id (sort).
type DecisionItem struct {
	SessionID string            `dynamodbav:"session_id" json:"session_id"`
	PaperID   int               `dynamodbav:"paper_id" json:"paper_id"`
	Title     string            `dynamodbav:"title" json:"title"`
	Decision  string            `dynamodbav:"decision" json:"decision"`
	DecidedAt string            `dynamodbav:"decided_at" json:"decided_at"`
	Fields    map[string]string `dynamodbav:"fields,omitempty" json:"fields,omitempty"`
}

// UpsertStats contains statistics about batch upsert operations
type UpsertStats struct {
	TotalItems     int `json:"total_items"`
	SuccessItems   int `json:"success_items"`
	FailedItems    int `json:"failed_items"`
	BatchCount     int `json:"batch_count"`
	SuccessBatches int `json:"success_batches"`
	FailedBatches  int `json:"failed_batches"`
}

// Writer handles DynamoDB write operations for review decisions. It also
// serves as a review.DecisionStore.
type Writer struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
	logger    *logger.Logger
	now       func() time.Time

	// retryDelay is the wait before the first resubmission; it doubles on
	// each further attempt.
	retryDelay time.Duration
}

var _ review.DecisionStore = (*Writer)(nil)

// NewWriter creates a new DynamoDB writer instance
func NewWriter(tableName, region string) *Writer {
	sess := session.Must(session.NewSession(&aws.Config{Region: aws.String(region)}))
	return NewWriterWithClient(dynamodb.New(sess), tableName)
}

// NewWriterWithClient creates a new DynamoDB writer with custom client (for testing)
func NewWriterWithClient(client dynamodbiface.DynamoDBAPI, tableName string) *Writer {
	return &Writer{
		client:    client,
		tableName: tableName,
		logger:    logger.New("dynamodb-writer"),
		now:       time.Now,

		retryDelay: defaultRetryDelay,
	}
}

// NewDecisionItem builds the item for one decided record
func NewDecisionItem(sessionID string, record types.Record, decision review.Decision, decidedAt time.Time) DecisionItem {
	return DecisionItem{
		SessionID: sessionID,
		PaperID:   record.ID,
		Title:     record.Title,
		Decision:  string(decision),
		DecidedAt: decidedAt.UTC().Format(time.RFC3339),
		Fields:    record.Fields,
	}
}

// ItemsFromTables builds items for the kept and rejected records of a
// review session, kept first.
func ItemsFromTables(sessionID string, kept, rejected types.Table, decidedAt time.Time) []DecisionItem {
	items := make([]DecisionItem, 0, kept.Len()+rejected.Len())
	for _, record := range kept.Records {
		items = append(items, NewDecisionItem(sessionID, record, review.Keep, decidedAt))
	}
	for _, record := range rejected.Records {
		items = append(items, NewDecisionItem(sessionID, record, review.Reject, decidedAt))
	}
	return items
}

// BatchUpsert writes items in batches of MaxBatchSize and stops at the first failed batch
func (w *Writer) BatchUpsert(ctx context.Context, items []DecisionItem) error {
	if len(items) == 0 {
		w.logger.Info("No decisions to upsert")
		return nil
	}

	w.logger.InfoWithCount("Starting batch upsert", len(items), map[string]interface{}{
		"table_name": w.tableName,
	})

	for i := 0; i < len(items); i += MaxBatchSize {
		end := i + MaxBatchSize
		if end > len(items) {
			end = len(items)
		}

		if err := w.processBatch(ctx, items[i:end]); err != nil {
			return logger.NewAppErrorWithMetadata(logger.ErrorTypeDynamoDB,
				fmt.Sprintf("failed to process batch %d-%d", i, end-1), err,
				map[string]interface{}{"table_name": w.tableName})
		}
	}

	w.logger.InfoWithCount("Completed batch upsert", len(items))
	return nil
}

// BatchUpsertWithStats writes every batch and reports per-batch outcomes
// instead of stopping at the first failure.
func (w *Writer) BatchUpsertWithStats(ctx context.Context, items []DecisionItem) (*UpsertStats, error) {
	stats := &UpsertStats{
		TotalItems: len(items),
		BatchCount: (len(items) + MaxBatchSize - 1) / MaxBatchSize,
	}

	if len(items) == 0 {
		return stats, nil
	}

	for i := 0; i < len(items); i += MaxBatchSize {
		end := i + MaxBatchSize
		if end > len(items) {
			end = len(items)
		}

		batch := items[i:end]
		if err := w.processBatch(ctx, batch); err != nil {
			w.logger.Error("Batch failed", err, map[string]interface{}{
				"batch_number": i/MaxBatchSize + 1,
			})
			stats.FailedItems += len(batch)
			stats.FailedBatches++
		} else {
			stats.SuccessItems += len(batch)
			stats.SuccessBatches++
		}
	}

	w.logger.Info("Batch upsert completed", map[string]interface{}{
		"success_items": stats.SuccessItems,
		"failed_items":  stats.FailedItems,
	})
	return stats, nil
}

func (w *Writer) processBatch(ctx context.Context, items []DecisionItem) error {
	if len(items) > MaxBatchSize {
		return fmt.Errorf("batch size %d exceeds maximum %d", len(items), MaxBatchSize)
	}

	writeRequests := make([]*dynamodb.WriteRequest, 0, len(items))
	for _, item := range items {
		av, err := dynamodbattribute.MarshalMap(item)
		if err != nil {
			w.logger.Warn("Failed to marshal decision", map[string]interface{}{
				"paper_id": item.PaperID,
				"error":    err.Error(),
			})
			continue
		}
		writeRequests = append(writeRequests, &dynamodb.WriteRequest{
			PutRequest: &dynamodb.PutRequest{Item: av},
		})
	}

	if len(writeRequests) == 0 {
		return fmt.Errorf("no valid write requests generated from batch")
	}

	return w.executeBatchWriteWithRetry(ctx, writeRequests)
}

// executeBatchWriteWithRetry resubmits unprocessed items up to maxRetries
// times with exponential backoff between attempts.
func (w *Writer) executeBatchWriteWithRetry(ctx context.Context, writeRequests []*dynamodb.WriteRequest) error {
	currentRequests := writeRequests

	for attempt := 0; attempt < maxRetries && len(currentRequests) > 0; attempt++ {
		if attempt > 0 {
			delay := w.retryDelay << (attempt - 1)
			w.logger.Info("Retrying batch write", map[string]interface{}{
				"attempt":         attempt + 1,
				"max_retries":     maxRetries,
				"items_remaining": len(currentRequests),
				"delay_ms":        delay.Milliseconds(),
			})
			if err := waitForRetry(ctx, delay); err != nil {
				return fmt.Errorf("batch write retry abandoned with %d items left: %w", len(currentRequests), err)
			}
		}

		result, err := w.client.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]*dynamodb.WriteRequest{
				w.tableName: currentRequests,
			},
		})
		if err != nil {
			return fmt.Errorf("batch write failed on attempt %d: %w", attempt+1, err)
		}

		unprocessed := result.UnprocessedItems[w.tableName]
		if len(unprocessed) == 0 {
			return nil
		}
		currentRequests = unprocessed
		w.logger.Debug("Batch write partially succeeded", map[string]interface{}{
			"unprocessed_items": len(unprocessed),
		})
	}

	return fmt.Errorf("failed to process %d items after %d retries", len(currentRequests), maxRetries)
}

func waitForRetry(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SaveDecision puts a single decision, overwriting any earlier one
func (w *Writer) SaveDecision(ctx context.Context, sessionID string, record types.Record, decision review.Decision) error {
	av, err := dynamodbattribute.MarshalMap(NewDecisionItem(sessionID, record, decision, w.now()))
	if err != nil {
		return logger.NewAppError(logger.ErrorTypeDynamoDB, "failed to marshal decision", err)
	}
	_, err = w.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(w.tableName),
		Item:      av,
	})
	if err != nil {
		return logger.NewAppErrorWithMetadata(logger.ErrorTypeDynamoDB, "failed to save decision", err,
			map[string]interface{}{"session_id": sessionID, "paper_id": record.ID})
	}
	return nil
}

// LoadDecisions queries every decision stored for sessionID
func (w *Writer) LoadDecisions(ctx context.Context, sessionID string) (map[int]review.Decision, error) {
	items, err := w.queryItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	decisions := make(map[int]review.Decision, len(items))
	for _, item := range items {
		decisions[item.PaperID] = review.Decision(item.Decision)
	}
	return decisions, nil
}

// ClearDecisions deletes every decision stored for sessionID
func (w *Writer) ClearDecisions(ctx context.Context, sessionID string) error {
	items, err := w.queryItems(ctx, sessionID)
	if err != nil {
		return err
	}

	for i := 0; i < len(items); i += MaxBatchSize {
		end := i + MaxBatchSize
		if end > len(items) {
			end = len(items)
		}

		requests := make([]*dynamodb.WriteRequest, 0, end-i)
		for _, item := range items[i:end] {
			requests = append(requests, &dynamodb.WriteRequest{
				DeleteRequest: &dynamodb.DeleteRequest{Key: itemKey(item.SessionID, item.PaperID)},
			})
		}
		if err := w.executeBatchWriteWithRetry(ctx, requests); err != nil {
			return logger.NewAppError(logger.ErrorTypeDynamoDB, "failed to clear decisions", err)
		}
	}

	w.logger.InfoWithCount("Cleared stored decisions", len(items), map[string]interface{}{
		"session_id": sessionID,
	})
	return nil
}

func (w *Writer) queryItems(ctx context.Context, sessionID string) ([]DecisionItem, error) {
	var (
		items     []DecisionItem
		startKey  map[string]*dynamodb.AttributeValue
		pageCount int
	)
	for {
		result, err := w.client.QueryWithContext(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(w.tableName),
			KeyConditionExpression: aws.String("session_id = :sid"),
			ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
				":sid": {S: aws.String(sessionID)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, logger.NewAppErrorWithMetadata(logger.ErrorTypeDynamoDB, "failed to query decisions", err,
				map[string]interface{}{"session_id": sessionID, "page": pageCount})
		}

		var page []DecisionItem
		if err := dynamodbattribute.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, logger.NewAppError(logger.ErrorTypeDynamoDB, "failed to unmarshal decisions", err)
		}
		items = append(items, page...)
		pageCount++

		if len(result.LastEvaluatedKey) == 0 {
			return items, nil
		}
		startKey = result.LastEvaluatedKey
	}
}

func itemKey(sessionID string, paperID int) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"session_id": {S: aws.String(sessionID)},
		"paper_id":   {N: aws.String(strconv.Itoa(paperID))},
	}
}
