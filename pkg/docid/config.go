package docid

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dan-solli/docid/pkg/decision"
)

// Config holds the engine configuration.
type Config struct {
	// DBPath is the SQLite database path, or ":memory:".
	// Default: "docid.db"
	DBPath string

	// EmbeddingDim is the expected embedding dimensionality of submissions.
	// Default: 1536
	EmbeddingDim int

	// QuantPrecision is the number of decimal places kept per dimension
	// when quantizing embeddings. Default: 2
	QuantPrecision int

	// QuantDims is the number of leading dimensions kept in the similarity
	// vector. This is also the vector index dimensionality. Default: 64
	QuantDims int

	// KeyPhraseLimit bounds the extracted key phrases per document.
	// Default: 10
	KeyPhraseLimit int

	// Thresholds are the decision cascade cutoffs.
	Thresholds decision.Thresholds

	// CacheSize bounds the read-through record cache. Negative disables
	// caching. Default: 1024
	CacheSize int

	// IndexBackend selects the similarity index: "memory" or "qdrant".
	// Default: "memory"
	IndexBackend string

	// QdrantHost is the qdrant gRPC host. Default: "localhost"
	QdrantHost string

	// QdrantPort is the qdrant gRPC port. Default: 6334
	QdrantPort int

	// QdrantCollection is the qdrant collection name.
	// Default: "docid_fingerprints"
	QdrantCollection string

	// RetryMaxAttempts bounds retries of transient repository and index
	// failures. Default: 3
	RetryMaxAttempts int

	// RetryInitialInterval is the first backoff delay. Default: 200ms
	RetryInitialInterval time.Duration

	// RetryMaxInterval caps the backoff delay. Default: 2s
	RetryMaxInterval time.Duration

	// BulkBatchSize is the bulk dedup page size. Default: 100
	BulkBatchSize int

	// BulkConcurrency bounds parallel bulk dedup writes. Default: 4
	BulkConcurrency int

	// LogMode selects logger configuration: "dev" or "prod".
	// Default: "prod"
	LogMode string

	// TraceFile is the JSON-lines trace export path. Empty disables
	// export. Default: ""
	TraceFile string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		DBPath:               "docid.db",
		EmbeddingDim:         1536,
		QuantPrecision:       2,
		QuantDims:            64,
		KeyPhraseLimit:       10,
		Thresholds:           decision.DefaultThresholds(),
		CacheSize:            1024,
		IndexBackend:         "memory",
		QdrantHost:           "localhost",
		QdrantPort:           6334,
		QdrantCollection:     "docid_fingerprints",
		RetryMaxAttempts:     3,
		RetryInitialInterval: 200 * time.Millisecond,
		RetryMaxInterval:     2 * time.Second,
		BulkBatchSize:        100,
		BulkConcurrency:      4,
		LogMode:              "prod",
		TraceFile:            "",
	}
}

// withDefaults fills zero-valued fields so a partially specified Config is
// usable, matching the constructor behavior of the underlying packages.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.EmbeddingDim == 0 {
		c.EmbeddingDim = def.EmbeddingDim
	}
	if c.QuantPrecision == 0 {
		c.QuantPrecision = def.QuantPrecision
	}
	if c.QuantDims == 0 {
		c.QuantDims = def.QuantDims
	}
	if c.KeyPhraseLimit == 0 {
		c.KeyPhraseLimit = def.KeyPhraseLimit
	}
	if c.Thresholds == (decision.Thresholds{}) {
		c.Thresholds = def.Thresholds
	}
	if c.CacheSize == 0 {
		c.CacheSize = def.CacheSize
	}
	if c.IndexBackend == "" {
		c.IndexBackend = def.IndexBackend
	}
	if c.QdrantHost == "" {
		c.QdrantHost = def.QdrantHost
	}
	if c.QdrantPort == 0 {
		c.QdrantPort = def.QdrantPort
	}
	if c.QdrantCollection == "" {
		c.QdrantCollection = def.QdrantCollection
	}
	if c.RetryMaxAttempts == 0 {
		c.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if c.RetryInitialInterval == 0 {
		c.RetryInitialInterval = def.RetryInitialInterval
	}
	if c.RetryMaxInterval == 0 {
		c.RetryMaxInterval = def.RetryMaxInterval
	}
	if c.BulkBatchSize == 0 {
		c.BulkBatchSize = def.BulkBatchSize
	}
	if c.BulkConcurrency == 0 {
		c.BulkConcurrency = def.BulkConcurrency
	}
	if c.LogMode == "" {
		c.LogMode = def.LogMode
	}
	return c
}

// Validate checks that the configuration is in range and consistent.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path cannot be empty")
	}
	if c.EmbeddingDim < 1 || c.EmbeddingDim > 16384 {
		return fmt.Errorf("embedding dim must be between 1 and 16384 (got %d)", c.EmbeddingDim)
	}
	if c.QuantPrecision < 1 || c.QuantPrecision > 8 {
		return fmt.Errorf("quantization precision must be between 1 and 8 (got %d)", c.QuantPrecision)
	}
	if c.QuantDims < 1 || c.QuantDims > c.EmbeddingDim {
		return fmt.Errorf("quantization dims must be between 1 and embedding dim %d (got %d)",
			c.EmbeddingDim, c.QuantDims)
	}
	if c.KeyPhraseLimit < 1 || c.KeyPhraseLimit > 100 {
		return fmt.Errorf("key phrase limit must be between 1 and 100 (got %d)", c.KeyPhraseLimit)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	if c.IndexBackend != "memory" && c.IndexBackend != "qdrant" {
		return fmt.Errorf("index backend must be memory or qdrant (got %q)", c.IndexBackend)
	}
	if c.IndexBackend == "qdrant" {
		if c.QdrantHost == "" {
			return fmt.Errorf("qdrant host cannot be empty")
		}
		if c.QdrantPort < 1 || c.QdrantPort > 65535 {
			return fmt.Errorf("qdrant port must be between 1 and 65535 (got %d)", c.QdrantPort)
		}
		if c.QdrantCollection == "" {
			return fmt.Errorf("qdrant collection cannot be empty")
		}
	}
	if c.RetryMaxAttempts < 1 || c.RetryMaxAttempts > 10 {
		return fmt.Errorf("retry max attempts must be between 1 and 10 (got %d)", c.RetryMaxAttempts)
	}
	if c.RetryInitialInterval <= 0 {
		return fmt.Errorf("retry initial interval must be positive (got %v)", c.RetryInitialInterval)
	}
	if c.RetryMaxInterval < c.RetryInitialInterval {
		return fmt.Errorf("retry max interval (%v) must not be below the initial interval (%v)",
			c.RetryMaxInterval, c.RetryInitialInterval)
	}
	if c.BulkBatchSize < 1 || c.BulkBatchSize > 10000 {
		return fmt.Errorf("bulk batch size must be between 1 and 10000 (got %d)", c.BulkBatchSize)
	}
	if c.BulkConcurrency < 1 || c.BulkConcurrency > 64 {
		return fmt.Errorf("bulk concurrency must be between 1 and 64 (got %d)", c.BulkConcurrency)
	}
	switch c.LogMode {
	case "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("log mode must be dev or prod (got %q)", c.LogMode)
	}
	return nil
}

// ConfigFromEnv loads configuration from DOCID_* environment variables,
// using defaults for anything unset.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	parseEnvString("DOCID_DB_PATH", &cfg.DBPath)
	if err := parseEnvInt("DOCID_EMBEDDING_DIM", &cfg.EmbeddingDim); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DOCID_QUANT_PRECISION", &cfg.QuantPrecision); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DOCID_QUANT_DIMS", &cfg.QuantDims); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DOCID_KEY_PHRASE_LIMIT", &cfg.KeyPhraseLimit); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DOCID_STRUCTURAL_THRESHOLD", &cfg.Thresholds.Structural); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DOCID_DUPLICATE_THRESHOLD", &cfg.Thresholds.Duplicate); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DOCID_SIMILAR_THRESHOLD", &cfg.Thresholds.Similar); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DOCID_MAX_NEIGHBORS", &cfg.Thresholds.MaxNeighbors); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("DOCID_STRUCTURAL_PRECEDENCE", &cfg.Thresholds.StructuralPrecedence); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DOCID_CACHE_SIZE", &cfg.CacheSize); err != nil {
		return cfg, err
	}
	parseEnvString("DOCID_INDEX_BACKEND", &cfg.IndexBackend)
	parseEnvString("DOCID_QDRANT_HOST", &cfg.QdrantHost)
	if err := parseEnvInt("DOCID_QDRANT_PORT", &cfg.QdrantPort); err != nil {
		return cfg, err
	}
	parseEnvString("DOCID_QDRANT_COLLECTION", &cfg.QdrantCollection)
	if err := parseEnvInt("DOCID_RETRY_MAX_ATTEMPTS", &cfg.RetryMaxAttempts); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("DOCID_RETRY_INITIAL_INTERVAL_MS", &cfg.RetryInitialInterval, time.Millisecond); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("DOCID_RETRY_MAX_INTERVAL_MS", &cfg.RetryMaxInterval, time.Millisecond); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DOCID_BULK_BATCH_SIZE", &cfg.BulkBatchSize); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DOCID_BULK_CONCURRENCY", &cfg.BulkConcurrency); err != nil {
		return cfg, err
	}
	parseEnvString("DOCID_LOG_MODE", &cfg.LogMode)
	parseEnvString("DOCID_TRACE_FILE", &cfg.TraceFile)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// fileConfig mirrors Config for YAML loading. Pointer fields distinguish
// "absent, keep the default" from an explicit zero.
type fileConfig struct {
	DBPath                 *string  `yaml:"db_path"`
	EmbeddingDim           *int     `yaml:"embedding_dim"`
	QuantPrecision         *int     `yaml:"quant_precision"`
	QuantDims              *int     `yaml:"quant_dims"`
	KeyPhraseLimit         *int     `yaml:"key_phrase_limit"`
	StructuralThreshold    *float64 `yaml:"structural_threshold"`
	DuplicateThreshold     *float64 `yaml:"duplicate_threshold"`
	SimilarThreshold       *float64 `yaml:"similar_threshold"`
	MaxNeighbors           *int     `yaml:"max_neighbors"`
	StructuralPrecedence   *bool    `yaml:"structural_precedence"`
	CacheSize              *int     `yaml:"cache_size"`
	IndexBackend           *string  `yaml:"index_backend"`
	QdrantHost             *string  `yaml:"qdrant_host"`
	QdrantPort             *int     `yaml:"qdrant_port"`
	QdrantCollection       *string  `yaml:"qdrant_collection"`
	RetryMaxAttempts       *int     `yaml:"retry_max_attempts"`
	RetryInitialIntervalMS *int     `yaml:"retry_initial_interval_ms"`
	RetryMaxIntervalMS     *int     `yaml:"retry_max_interval_ms"`
	BulkBatchSize          *int     `yaml:"bulk_batch_size"`
	BulkConcurrency        *int     `yaml:"bulk_concurrency"`
	LogMode                *string  `yaml:"log_mode"`
	TraceFile              *string  `yaml:"trace_file"`
}

// LoadConfigFile reads a YAML configuration file over the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.DBPath, fc.DBPath)
	setInt(&cfg.EmbeddingDim, fc.EmbeddingDim)
	setInt(&cfg.QuantPrecision, fc.QuantPrecision)
	setInt(&cfg.QuantDims, fc.QuantDims)
	setInt(&cfg.KeyPhraseLimit, fc.KeyPhraseLimit)
	setFloat(&cfg.Thresholds.Structural, fc.StructuralThreshold)
	setFloat(&cfg.Thresholds.Duplicate, fc.DuplicateThreshold)
	setFloat(&cfg.Thresholds.Similar, fc.SimilarThreshold)
	setInt(&cfg.Thresholds.MaxNeighbors, fc.MaxNeighbors)
	if fc.StructuralPrecedence != nil {
		cfg.Thresholds.StructuralPrecedence = *fc.StructuralPrecedence
	}
	setInt(&cfg.CacheSize, fc.CacheSize)
	setString(&cfg.IndexBackend, fc.IndexBackend)
	setString(&cfg.QdrantHost, fc.QdrantHost)
	setInt(&cfg.QdrantPort, fc.QdrantPort)
	setString(&cfg.QdrantCollection, fc.QdrantCollection)
	setInt(&cfg.RetryMaxAttempts, fc.RetryMaxAttempts)
	if fc.RetryInitialIntervalMS != nil {
		cfg.RetryInitialInterval = time.Duration(*fc.RetryInitialIntervalMS) * time.Millisecond
	}
	if fc.RetryMaxIntervalMS != nil {
		cfg.RetryMaxInterval = time.Duration(*fc.RetryMaxIntervalMS) * time.Millisecond
	}
	setInt(&cfg.BulkBatchSize, fc.BulkBatchSize)
	setInt(&cfg.BulkConcurrency, fc.BulkConcurrency)
	setString(&cfg.LogMode, fc.LogMode)
	setString(&cfg.TraceFile, fc.TraceFile)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

func setString(dest *string, v *string) {
	if v != nil {
		*dest = *v
	}
}

func setInt(dest *int, v *int) {
	if v != nil {
		*dest = *v
	}
}

func setFloat(dest *float64, v *float64) {
	if v != nil {
		*dest = *v
	}
}

// parseEnvString overwrites dest when the variable is set and non-empty.
func parseEnvString(key string, dest *string) {
	if v := os.Getenv(key); v != "" {
		*dest = v
	}
}

// parseEnvFloat parses a float64 environment variable into dest.
// Empty or unset variables keep the existing value.
func parseEnvFloat(key string, dest *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt parses an int environment variable into dest.
// Empty or unset variables keep the existing value.
func parseEnvInt(key string, dest *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool environment variable into dest.
// Empty or unset variables keep the existing value.
func parseEnvBool(key string, dest *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses an integer environment variable into dest,
// scaled by unit.
func parseEnvDuration(key string, dest *time.Duration, unit time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * unit
	return nil
}
