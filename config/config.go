package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"gopkg.in/yaml.v3"

	"paper-filter/analyzer"
	"paper-filter/deduplicator"
	"paper-filter/filter"
	"paper-filter/logger"
	"paper-filter/review"
)

// Store backends for review decisions
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// Config represents the complete paper-filter configuration
type Config struct {
	AWS       AWSConfig       `yaml:"aws"`
	Input     InputConfig     `yaml:"input"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Filter    filter.Criteria `yaml:"filter"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Review    ReviewConfig    `yaml:"review"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AWSConfig represents AWS service configuration
type AWSConfig struct {
	Region   string         `yaml:"region"`
	S3       S3Config       `yaml:"s3"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

// S3Config represents S3 configuration
type S3Config struct {
	OutputBucket    string `yaml:"output_bucket"`
	ProcessedPrefix string `yaml:"processed_prefix"`
	ConfigBucket    string `yaml:"config_bucket"`
}

// DynamoDBConfig represents DynamoDB configuration
type DynamoDBConfig struct {
	DecisionsTable string `yaml:"decisions_table"`
}

// InputConfig overrides column detection
type InputConfig struct {
	TitleColumn    string `yaml:"title_column"`
	AbstractColumn string `yaml:"abstract_column"`
}

// DedupConfig controls duplicate removal
type DedupConfig struct {
	Keep string `yaml:"keep"`
	// KeyColumns dedupes on these columns instead of the title.
	KeyColumns       []string `yaml:"key_columns"`
	GroupBlankTitles bool     `yaml:"group_blank_titles"`
}

// WorkspaceConfig controls how successive filters combine
type WorkspaceConfig struct {
	CumulativeFilters bool `yaml:"cumulative_filters"`
}

// AnalysisConfig controls word frequency analysis
type AnalysisConfig struct {
	TopN           int      `yaml:"top_n"`
	MinTokenLength int      `yaml:"min_token_length"`
	Stem           bool     `yaml:"stem"`
	ExtraStopWords []string `yaml:"extra_stop_words"`
}

// ReviewConfig controls the swipe review session
type ReviewConfig struct {
	RetainPolicy string `yaml:"retain_policy"`
	Store        string `yaml:"store"`
	SQLitePath   string `yaml:"sqlite_path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// GetDefaultConfig returns the configuration used when no file is given
func GetDefaultConfig() *Config {
	return &Config{
		AWS: AWSConfig{
			Region: "us-east-1",
			S3: S3Config{
				ProcessedPrefix: "processed",
			},
			DynamoDB: DynamoDBConfig{
				DecisionsTable: "ReviewDecisions",
			},
		},
		Dedup: DedupConfig{
			Keep: string(deduplicator.KeepFirst),
		},
		Filter: filter.Criteria{Mode: filter.MatchAny},
		Analysis: AnalysisConfig{
			TopN:           30,
			MinTokenLength: analyzer.DefaultMinLength,
		},
		Review: ReviewConfig{
			RetainPolicy: string(review.DiscardDecisions),
			Store:        StoreMemory,
			SQLitePath:   "paper-filter.db",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Manager handles configuration loading and management
type Manager struct {
	s3Client s3iface.S3API
	getenv   func(string) string
}

// NewManager creates a new configuration manager
func NewManager(region string) (*Manager, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeConfig, "failed to create AWS session", err)
	}
	return NewManagerWithClient(s3.New(sess)), nil
}

// NewManagerWithClient creates a manager with a custom S3 client (for testing).
// A nil client still loads files and bytes.
func NewManagerWithClient(client s3iface.S3API) *Manager {
	return &Manager{s3Client: client, getenv: os.Getenv}
}

// LoadFromS3 loads configuration from S3
func (m *Manager) LoadFromS3(ctx context.Context, bucket, key string) (*Config, error) {
	if m.s3Client == nil {
		return nil, logger.NewAppError(logger.ErrorTypeConfig, "no S3 client configured", nil)
	}

	result, err := m.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, logger.NewAppErrorWithMetadata(logger.ErrorTypeS3, "failed to get config from S3", err,
			map[string]interface{}{"bucket": bucket, "key": key})
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeS3, "failed to read config data", err)
	}

	return m.parseConfig(data)
}

// LoadFromFile loads configuration from a local YAML file. An empty path
// yields the defaults with environment overrides applied.
func (m *Manager) LoadFromFile(filePath string) (*Config, error) {
	if filePath == "" {
		return m.parseConfig(nil)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, logger.NewAppErrorWithMetadata(logger.ErrorTypeConfig, "failed to read config file", err,
			map[string]interface{}{"path": filePath})
	}
	return m.parseConfig(data)
}

// LoadFromBytes loads configuration from byte data
func (m *Manager) LoadFromBytes(data []byte) (*Config, error) {
	return m.parseConfig(data)
}

// parseConfig layers YAML over the defaults, then environment overrides,
// then validates.
func (m *Manager) parseConfig(data []byte) (*Config, error) {
	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, logger.NewAppError(logger.ErrorTypeConfig, "failed to parse YAML config", err)
	}

	getenv := m.getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := config.applyEnv(getenv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides fields from PAPER_FILTER_* variables and LOG_LEVEL
func (c *Config) applyEnv(getenv func(string) string) error {
	// later entries win, so PAPER_FILTER_REGION beats AWS_REGION
	overrides := []struct {
		name   string
		target *string
	}{
		{"AWS_REGION", &c.AWS.Region},
		{"PAPER_FILTER_REGION", &c.AWS.Region},
		{"PAPER_FILTER_OUTPUT_BUCKET", &c.AWS.S3.OutputBucket},
		{"PAPER_FILTER_PROCESSED_PREFIX", &c.AWS.S3.ProcessedPrefix},
		{"PAPER_FILTER_DECISIONS_TABLE", &c.AWS.DynamoDB.DecisionsTable},
		{"PAPER_FILTER_TITLE_COLUMN", &c.Input.TitleColumn},
		{"PAPER_FILTER_KEEP", &c.Dedup.Keep},
		{"PAPER_FILTER_RETAIN_POLICY", &c.Review.RetainPolicy},
		{"PAPER_FILTER_STORE", &c.Review.Store},
		{"PAPER_FILTER_SQLITE_PATH", &c.Review.SQLitePath},
		{"LOG_LEVEL", &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(getenv(o.name)); v != "" {
			*o.target = v
		}
	}

	if v := strings.TrimSpace(getenv("PAPER_FILTER_TOP_N")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return logger.NewAppError(logger.ErrorTypeConfig, fmt.Sprintf("invalid PAPER_FILTER_TOP_N %q", v), err)
		}
		c.Analysis.TopN = n
	}
	return nil
}

// Validate checks every enumerated setting and the default filter criteria
func (c *Config) Validate() error {
	if _, err := deduplicator.ParseKeep(c.Dedup.Keep); err != nil {
		return err
	}
	if _, err := review.ParseRetainPolicy(c.Review.RetainPolicy); err != nil {
		return err
	}
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	switch c.Review.Store {
	case StoreMemory, StoreDynamoDB:
	case StoreSQLite:
		if c.Review.SQLitePath == "" {
			return logger.NewAppError(logger.ErrorTypeConfig, "review.sqlite_path is required for the sqlite store", nil)
		}
	default:
		return logger.NewAppError(logger.ErrorTypeConfig, fmt.Sprintf("unknown review store %q", c.Review.Store), nil)
	}
	if c.Analysis.TopN < 0 {
		return logger.NewAppError(logger.ErrorTypeConfig, "analysis.top_n must not be negative", nil)
	}
	if c.Analysis.MinTokenLength < 0 {
		return logger.NewAppError(logger.ErrorTypeConfig, "analysis.min_token_length must not be negative", nil)
	}
	return nil
}

// DedupOptions converts the dedup section into deduplicator options
func (c *Config) DedupOptions() deduplicator.Options {
	keep, _ := deduplicator.ParseKeep(c.Dedup.Keep)
	opts := deduplicator.Options{
		Key:            deduplicator.TitleKey,
		Keep:           keep,
		GroupBlankKeys: c.Dedup.GroupBlankTitles,
	}
	if len(c.Dedup.KeyColumns) > 0 {
		opts.Key = deduplicator.ColumnKey(c.Dedup.KeyColumns...)
	}
	return opts
}

// AnalyzerOptions converts the analysis section into analyzer options
func (c *Config) AnalyzerOptions() analyzer.Options {
	stopWords := analyzer.DefaultStopWords()
	stopWords.Add(c.Analysis.ExtraStopWords...)
	return analyzer.Options{
		StopWords: stopWords,
		MinLength: c.Analysis.MinTokenLength,
		Stem:      c.Analysis.Stem,
	}
}

// RetainPolicy returns the parsed review retain policy
func (c *Config) RetainPolicy() review.RetainPolicy {
	policy, _ := review.ParseRetainPolicy(c.Review.RetainPolicy)
	return policy
}
