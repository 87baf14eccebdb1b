package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
)

func newBufferLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewWithWriter("test-service", &buf, level), &buf
}

func decodeEntry(t *testing.T, output string) LogEntry {
	t.Helper()
	var logEntry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &logEntry); err != nil {
		t.Fatalf("Failed to parse log output as JSON: %v", err)
	}
	return logEntry
}

func TestNew(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	logger := New("test-service")

	if logger.serviceName != "test-service" {
		t.Errorf("Expected service name 'test-service', got '%s'", logger.serviceName)
	}
	if logger.level != LevelInfo {
		t.Errorf("Expected default level INFO, got %s", logger.level)
	}
	if logger.traceID != "" || logger.sessionID != "" {
		t.Error("Expected empty trace and session IDs")
	}
}

func TestNew_LevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	logger := New("test-service")

	if logger.Level() != LevelDebug {
		t.Errorf("Expected level DEBUG, got %s", logger.Level())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestWithTraceID(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)
	traceID := "trace-123"

	tracedLogger := logger.WithTraceID(traceID)
	if tracedLogger == logger {
		t.Fatal("Expected new logger instance, got same instance")
	}

	tracedLogger.Info("traced")
	logEntry := decodeEntry(t, buf.String())
	if logEntry.TraceID != traceID {
		t.Errorf("Expected trace ID '%s', got '%s'", traceID, logEntry.TraceID)
	}
	if logger.traceID != "" {
		t.Error("Expected parent logger to stay untouched")
	}
}

func TestWithSessionID(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.WithSessionID("session-1").Info("decided")

	logEntry := decodeEntry(t, buf.String())
	if logEntry.SessionID != "session-1" {
		t.Errorf("Expected session ID 'session-1', got '%s'", logEntry.SessionID)
	}
}

func TestNamed_SharesOutput(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.Named("deduplicator").Info("child")

	logEntry := decodeEntry(t, buf.String())
	if logEntry.Service != "deduplicator" {
		t.Errorf("Expected service 'deduplicator', got '%s'", logEntry.Service)
	}
}

func TestInfo(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)
	message := "Test info message"

	logger.Info(message)

	logEntry := decodeEntry(t, buf.String())
	if logEntry.Level != LevelInfo {
		t.Errorf("Expected level INFO, got %s", logEntry.Level)
	}
	if logEntry.Message != message {
		t.Errorf("Expected message '%s', got '%s'", message, logEntry.Message)
	}
	if logEntry.Service != "test-service" {
		t.Errorf("Expected service 'test-service', got '%s'", logEntry.Service)
	}
	if logEntry.Timestamp == "" {
		t.Error("Expected timestamp to be set")
	}
}

func TestInfoWithCount(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.InfoWithCount("Loaded papers", 42)

	logEntry := decodeEntry(t, buf.String())
	if logEntry.DataCount == nil {
		t.Fatal("Expected data count to be set")
	}
	if *logEntry.DataCount != 42 {
		t.Errorf("Expected data count 42, got %d", *logEntry.DataCount)
	}
}

func TestInfoWithDuration(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.InfoWithDuration("Filter applied", 1500*time.Millisecond)

	logEntry := decodeEntry(t, buf.String())
	if logEntry.Duration == nil {
		t.Fatal("Expected duration to be set")
	}
	if *logEntry.Duration != 1500 {
		t.Errorf("Expected duration 1500ms, got %dms", *logEntry.Duration)
	}
}

func TestWarn(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.Warn("Test warning message")

	logEntry := decodeEntry(t, buf.String())
	if logEntry.Level != LevelWarn {
		t.Errorf("Expected level WARN, got %s", logEntry.Level)
	}
}

func TestError(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.Error("Test error message", errors.New("test error"))

	logEntry := decodeEntry(t, buf.String())
	if logEntry.Level != LevelError {
		t.Errorf("Expected level ERROR, got %s", logEntry.Level)
	}
	if logEntry.Error == nil {
		t.Fatal("Expected error details to be set")
	}
	if logEntry.Error.Message != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", logEntry.Error.Message)
	}
	if logEntry.Error.Type != "*errors.errorString" {
		t.Errorf("Expected error type '*errors.errorString', got '%s'", logEntry.Error.Type)
	}
}

func TestError_AppErrorDetails(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.Error("Filter rejected", InvalidCriteria("min words %d exceeds max words %d", 5, 2))

	logEntry := decodeEntry(t, buf.String())
	if logEntry.Error == nil {
		t.Fatal("Expected error details to be set")
	}
	if logEntry.Error.Type != string(ErrorTypeValidation) {
		t.Errorf("Expected error type %s, got '%s'", ErrorTypeValidation, logEntry.Error.Type)
	}
	if logEntry.Error.Code != CodeInvalidCriteria {
		t.Errorf("Expected code %s, got '%s'", CodeInvalidCriteria, logEntry.Error.Code)
	}
}

func TestErrorWithNilError(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.Error("Test error message without error", nil)

	logEntry := decodeEntry(t, buf.String())
	if logEntry.Error != nil {
		t.Error("Expected error details to be nil when no error provided")
	}
}

func TestDebug_RespectsLevel(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	logger.Debug("hidden")
	if strings.TrimSpace(buf.String()) != "" {
		t.Error("Expected no debug output at INFO level")
	}

	logger.SetLevel(LevelDebug)
	logger.Debug("shown")

	logEntry := decodeEntry(t, buf.String())
	if logEntry.Level != LevelDebug {
		t.Errorf("Expected level DEBUG, got %s", logEntry.Level)
	}
}

func TestWarnLevel_SuppressesInfo(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected exactly one line, got %d", len(lines))
	}
	if decodeEntry(t, lines[0]).Message != "shown" {
		t.Error("Expected only the warning to be written")
	}
}

func TestLogWithMetadata(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)
	metadata := map[string]interface{}{
		"key1": "value1",
		"key2": 42,
		"key3": true,
	}

	logger.Info("Test message with metadata", metadata)

	logEntry := decodeEntry(t, buf.String())
	if logEntry.Metadata == nil {
		t.Fatal("Expected metadata to be set")
	}
	if logEntry.Metadata["key1"] != "value1" {
		t.Errorf("Expected metadata key1 'value1', got '%v'", logEntry.Metadata["key1"])
	}
	if logEntry.Metadata["key2"] != float64(42) { // JSON unmarshals numbers as float64
		t.Errorf("Expected metadata key2 42, got '%v'", logEntry.Metadata["key2"])
	}
	if logEntry.Metadata["key3"] != true {
		t.Errorf("Expected metadata key3 true, got '%v'", logEntry.Metadata["key3"])
	}
}

func TestWithContext_RequestID(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	logger.WithContext(ctx).Info("request")

	logEntry := decodeEntry(t, buf.String())
	if logEntry.RequestID != "req-42" {
		t.Errorf("Expected request ID 'req-42', got '%s'", logEntry.RequestID)
	}
}

func TestGetRequestIDFromContext(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	if requestID := getRequestIDFromContext(nil); requestID != "" {
		t.Errorf("Expected empty request ID for nil context, got '%s'", requestID)
	}

	if requestID := getRequestIDFromContext(context.Background()); requestID != "" {
		t.Errorf("Expected empty request ID for background context, got '%s'", requestID)
	}

	lc := &lambdacontext.LambdaContext{AwsRequestID: "aws-req-1"}
	ctx := lambdacontext.NewContext(context.Background(), lc)
	if requestID := getRequestIDFromContext(ctx); requestID != "aws-req-1" {
		t.Errorf("Expected lambda request ID 'aws-req-1', got '%s'", requestID)
	}
}

func BenchmarkLogInfo(b *testing.B) {
	var buf bytes.Buffer
	logger := NewWithWriter("test-service", &buf, LevelInfo)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("Benchmark test message")
		buf.Reset()
	}
}
