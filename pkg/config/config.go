// Package config loads the TOML configuration shared by the railwatch binaries.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"railwatch/pkg/analyzer"
	"railwatch/pkg/feed"
	"railwatch/pkg/fuzzy"
	"railwatch/pkg/lexer"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	StorageMemDB    = "memdb"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"

	IndexAnalyses = "analyses"
	IndexLogs     = "logs"
)

type Config struct {
	LogLevel    string `toml:"logLevel"`
	HTTPAddr    string `toml:"httpAddr"`
	ServiceName string `toml:"serviceName"`
	Storage     string `toml:"storage"`
	// Workers is the size of the analysis worker pool used for feed batches.
	Workers int `toml:"workers"`

	Analyzer AnalyzerConfig `toml:"analyzer"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Feed     feed.Config    `toml:"feed"`
	Indexer  IndexerConfig  `toml:"indexer"`
	Upload   UploadConfig   `toml:"upload"`
}

type AnalyzerConfig struct {
	Policy      string `toml:"policy"`
	MaxDistance int    `toml:"maxDistance"`
	FoldAccents bool   `toml:"foldAccents"`
	// Blocklist is an optional JSON file replacing the built-in blocklist.
	Blocklist string `toml:"blocklist"`
}

type KafkaConfig struct {
	Brokers    []string `toml:"brokers"`
	LogTopic   string   `toml:"logTopic"`
	EventTopic string   `toml:"eventTopic"`
}

type IndexerConfig struct {
	Kind               string   `toml:"kind"`
	KafkaTopic         string   `toml:"kafkaTopic"`
	KafkaGroupID       string   `toml:"kafkaGroupID"`
	ElasticSearchIndex string   `toml:"elasticSearchIndex"`
	ElasticSearchNodes []string `toml:"elasticSearchNodes"`
	NumWorkers         int      `toml:"numWorkers"`
}

type UploadConfig struct {
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	Region string `toml:"region"`
}

// Default returns the configuration used for keys missing from the file.
func Default() Config {
	return Config{
		LogLevel:    "info",
		HTTPAddr:    ":8088",
		ServiceName: "railwatch",
		Storage:     StorageMemDB,
		Workers:     4,
		Analyzer: AnalyzerConfig{
			Policy:      fuzzy.PolicyLastWins.String(),
			MaxDistance: fuzzy.DefaultMaxDistance,
			FoldAccents: true,
		},
		Feed: feed.Config{
			RequestPeriod: 5,
			Timeout:       10,
		},
		Indexer: IndexerConfig{
			Kind:               IndexAnalyses,
			KafkaGroupID:       "railwatch-indexer",
			ElasticSearchIndex: "analyses",
			NumWorkers:         4,
		},
		Upload: UploadConfig{
			Prefix: "data",
		},
	}
}

// Load decodes the TOML file at path over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Warnf("[config] unknown keys in %s: %v", path, undecoded)
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := fuzzy.ParsePolicy(c.Analyzer.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Analyzer.MaxDistance < 0 {
		errs = append(errs, fmt.Errorf("analyzer.maxDistance must not be negative, got %d", c.Analyzer.MaxDistance))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	switch c.Storage {
	case StorageMemDB, StoragePostgres, StorageMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}
	switch c.Indexer.Kind {
	case IndexAnalyses, IndexLogs:
	default:
		errs = append(errs, fmt.Errorf("unknown indexer kind %q", c.Indexer.Kind))
	}
	if c.Indexer.NumWorkers < 1 {
		errs = append(errs, fmt.Errorf("indexer.numWorkers must be positive, got %d", c.Indexer.NumWorkers))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// AnalyzerOptions converts the analyzer section into analyzer options.
func (c *Config) AnalyzerOptions() (analyzer.Options, error) {
	policy, err := fuzzy.ParsePolicy(c.Analyzer.Policy)
	if err != nil {
		return analyzer.Options{}, err
	}
	return analyzer.Options{
		Policy:      policy,
		MaxDistance: c.Analyzer.MaxDistance,
		FoldAccents: c.Analyzer.FoldAccents,
	}, nil
}

// NewAnalyzer builds an analyzer over the default rule table and the
// configured blocklist.
func (c *Config) NewAnalyzer() (*analyzer.Analyzer, error) {
	table, err := lexer.DefaultTable()
	if err != nil {
		return nil, err
	}

	blocklist := fuzzy.DefaultBlocklist()
	if c.Analyzer.Blocklist != "" {
		blocklist, err = fuzzy.LoadBlocklistJSON(c.Analyzer.Blocklist)
		if err != nil {
			return nil, err
		}
	}

	opts, err := c.AnalyzerOptions()
	if err != nil {
		return nil, err
	}

	return analyzer.New(table, blocklist, opts), nil
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	}
	return log.InfoLevel, fmt.Errorf("unknown log level %q", name)
}
