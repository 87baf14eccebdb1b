package config

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"paper-filter/deduplicator"
	"paper-filter/filter"
	"paper-filter/logger"
	"paper-filter/review"
	"paper-filter/types"
)

type MockS3API struct {
	s3iface.S3API
	mock.Mock
}

func (m *MockS3API) GetObjectWithContext(ctx context.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func envOf(vars map[string]string) func(string) string {
	return func(name string) string { return vars[name] }
}

func testManager(vars map[string]string) *Manager {
	return &Manager{getenv: envOf(vars)}
}

const sampleYAML = `
aws:
  region: "eu-west-1"
  s3:
    output_bucket: "filtered-papers"
    processed_prefix: "curated"
  dynamodb:
    decisions_table: "Decisions"
input:
  title_column: "Document Title"
dedup:
  keep: "last"
  group_blank_titles: true
filter:
  include_keywords: ["eeg", "eye tracking"]
  mode: "all"
  exclude_keywords: ["survey"]
  min_words: 3
workspace:
  cumulative_filters: true
analysis:
  top_n: 15
  stem: true
  extra_stop_words: ["study"]
review:
  retain_policy: "preserve"
  store: "sqlite"
  sqlite_path: "/tmp/decisions.db"
logging:
  level: "DEBUG"
`

func TestParseConfig(t *testing.T) {
	config, err := testManager(nil).LoadFromBytes([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", config.AWS.Region)
	assert.Equal(t, "filtered-papers", config.AWS.S3.OutputBucket)
	assert.Equal(t, "curated", config.AWS.S3.ProcessedPrefix)
	assert.Equal(t, "Decisions", config.AWS.DynamoDB.DecisionsTable)
	assert.Equal(t, "Document Title", config.Input.TitleColumn)
	assert.Equal(t, []string{"eeg", "eye tracking"}, config.Filter.Include)
	assert.Equal(t, filter.MatchAll, config.Filter.Mode)
	require.NotNil(t, config.Filter.MinWords)
	assert.Equal(t, 3, *config.Filter.MinWords)
	assert.Nil(t, config.Filter.MaxWords)
	assert.True(t, config.Workspace.CumulativeFilters)
	assert.Equal(t, 15, config.Analysis.TopN)
	assert.Equal(t, StoreSQLite, config.Review.Store)
	assert.Equal(t, review.PreserveDecisions, config.RetainPolicy())
	assert.Equal(t, "DEBUG", config.Logging.Level)
}

func TestParseConfig_DefaultsFillGaps(t *testing.T) {
	config, err := testManager(nil).LoadFromBytes([]byte("dedup:\n  keep: last\n"))
	require.NoError(t, err)

	defaults := GetDefaultConfig()
	assert.Equal(t, "last", config.Dedup.Keep)
	assert.Equal(t, defaults.AWS, config.AWS)
	assert.Equal(t, defaults.Analysis, config.Analysis)
	assert.Equal(t, StoreMemory, config.Review.Store)
}

func TestParseConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":     "dedup: [",
		"keep":         "dedup:\n  keep: middle\n",
		"retain":       "review:\n  retain_policy: forever\n",
		"store":        "review:\n  store: redis\n",
		"sqlite path":  "review:\n  store: sqlite\n  sqlite_path: \"\"\n",
		"bounds":       "filter:\n  min_words: 5\n  max_words: 2\n",
		"negative top": "analysis:\n  top_n: -1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := testManager(nil).LoadFromBytes([]byte(data))
			assert.Error(t, err)
		})
	}

	_, err := testManager(nil).LoadFromBytes([]byte("filter:\n  min_words: 5\n  max_words: 2\n"))
	assert.True(t, logger.IsErrorCode(err, logger.CodeInvalidCriteria))
}

func TestEnvOverrides(t *testing.T) {
	manager := testManager(map[string]string{
		"AWS_REGION":                 "ap-south-1",
		"PAPER_FILTER_REGION":        "eu-central-1",
		"PAPER_FILTER_OUTPUT_BUCKET": "env-bucket",
		"PAPER_FILTER_STORE":         "dynamodb",
		"PAPER_FILTER_TOP_N":         "7",
		"LOG_LEVEL":                  "warn",
	})

	config, err := manager.LoadFromBytes([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "eu-central-1", config.AWS.Region)
	assert.Equal(t, "env-bucket", config.AWS.S3.OutputBucket)
	assert.Equal(t, StoreDynamoDB, config.Review.Store)
	assert.Equal(t, 7, config.Analysis.TopN)
	assert.Equal(t, "warn", config.Logging.Level)
}

func TestEnvOverrides_InvalidTopN(t *testing.T) {
	_, err := testManager(map[string]string{"PAPER_FILTER_TOP_N": "many"}).LoadFromBytes(nil)

	assert.True(t, logger.IsErrorType(err, logger.ErrorTypeConfig))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	config, err := testManager(nil).LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "filtered-papers", config.AWS.S3.OutputBucket)

	config, err = testManager(nil).LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)

	_, err = testManager(nil).LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, logger.IsErrorType(err, logger.ErrorTypeConfig))
}

func TestLoadFromS3(t *testing.T) {
	mockAPI := &MockS3API{}
	mockAPI.On("GetObjectWithContext", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Bucket == "config-bucket" && *input.Key == "paper-filter.yaml"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(sampleYAML))}, nil)

	manager := NewManagerWithClient(mockAPI)
	manager.getenv = envOf(nil)
	config, err := manager.LoadFromS3(context.Background(), "config-bucket", "paper-filter.yaml")

	require.NoError(t, err)
	assert.Equal(t, "Decisions", config.AWS.DynamoDB.DecisionsTable)
	mockAPI.AssertExpectations(t)
}

func TestLoadFromS3_Error(t *testing.T) {
	mockAPI := &MockS3API{}
	mockAPI.On("GetObjectWithContext", mock.Anything, mock.Anything).Return(nil, errors.New("no such key"))

	_, err := NewManagerWithClient(mockAPI).LoadFromS3(context.Background(), "b", "k")

	assert.True(t, logger.IsErrorType(err, logger.ErrorTypeS3))
	_, err = testManager(nil).LoadFromS3(context.Background(), "b", "k")
	assert.True(t, logger.IsErrorType(err, logger.ErrorTypeConfig))
}

func TestDedupOptions(t *testing.T) {
	config := GetDefaultConfig()
	config.Dedup.Keep = "last"
	config.Dedup.KeyColumns = []string{"DOI"}

	opts := config.DedupOptions()

	assert.Equal(t, deduplicator.KeepLast, opts.Keep)
	assert.Equal(t, deduplicator.NormalizeTitle("10.1/X"), opts.Key(types.Record{Title: "ignored", Fields: map[string]string{"DOI": "10.1/X"}}))
}

func TestAnalyzerOptions(t *testing.T) {
	config := GetDefaultConfig()
	config.Analysis.ExtraStopWords = []string{"Study"}

	opts := config.AnalyzerOptions()

	assert.True(t, opts.StopWords.Contains("study"))
	assert.True(t, opts.StopWords.Contains("the"))
	assert.Equal(t, 2, opts.MinLength)
}
