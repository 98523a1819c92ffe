package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	log "github.com/sirupsen/logrus"

	"railwatch/pkg/fuzzy"
)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
logLevel = "debug"
storage = "postgres"

[analyzer]
policy = "closest"
foldAccents = false

[kafka]
brokers = ["localhost:9092"]
eventTopic = "analyses"

[feed]
sources = ["https://example.test/rss"]
requestPeriod = 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.Storage != StoragePostgres {
		t.Errorf("want overridden logLevel/storage, got %q/%q", cfg.LogLevel, cfg.Storage)
	}
	if cfg.HTTPAddr != ":8088" || cfg.Workers != 4 {
		t.Errorf("want defaults for missing keys, got addr %q workers %d", cfg.HTTPAddr, cfg.Workers)
	}
	if cfg.Analyzer.FoldAccents {
		t.Error("want foldAccents = false from file")
	}
	if cfg.Analyzer.MaxDistance != fuzzy.DefaultMaxDistance {
		t.Errorf("want default max distance, got %d", cfg.Analyzer.MaxDistance)
	}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"localhost:9092"}) {
		t.Errorf("want brokers from file, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Feed.RequestPeriod != 2 || cfg.Feed.Timeout != 10 {
		t.Errorf("want feed period 2 and default timeout 10, got %d and %d", cfg.Feed.RequestPeriod, cfg.Feed.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	opts, err := cfg.AnalyzerOptions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Policy != fuzzy.PolicyClosest || opts.FoldAccents {
		t.Errorf("want closest policy without folding, got %+v", opts)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("want error for missing file, got nil")
	}
	if _, err := Load(writeConfig(t, `logLevel = `)); err == nil {
		t.Error("want error for malformed file, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "verbose" }, wantErr: true},
		{name: "bad policy", modify: func(c *Config) { c.Analyzer.Policy = "first" }, wantErr: true},
		{name: "negative distance", modify: func(c *Config) { c.Analyzer.MaxDistance = -1 }, wantErr: true},
		{name: "no workers", modify: func(c *Config) { c.Workers = 0 }, wantErr: true},
		{name: "unknown storage", modify: func(c *Config) { c.Storage = "redis" }, wantErr: true},
		{name: "unknown indexer kind", modify: func(c *Config) { c.Indexer.Kind = "tweets" }, wantErr: true},
		{name: "mongo storage", modify: func(c *Config) { c.Storage = StorageMongo }},
		{name: "log indexer", modify: func(c *Config) { c.Indexer.Kind = IndexLogs }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("want error %v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("want ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    log.Level
		wantErr bool
	}{
		{"debug", log.DebugLevel, false},
		{"INFO", log.InfoLevel, false},
		{"warn", log.WarnLevel, false},
		{"error", log.ErrorLevel, false},
		{"trace", log.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q): want error %v, got %v", tt.name, tt.wantErr, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q): want %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestSampleConfigs(t *testing.T) {
	for _, path := range []string{"../../cmd/server/config.toml", "../../cmd/indexer/config.toml"} {
		cfg, err := Load(path)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", path, err)
			continue
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: invalid sample config: %v", path, err)
		}
	}
}

func TestConfig_NewAnalyzer(t *testing.T) {
	cfg := Default()
	an, err := cfg.NewAnalyzer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if an.Blocklist().Len() != fuzzy.DefaultBlocklist().Len() {
		t.Errorf("want default blocklist, got %d entries", an.Blocklist().Len())
	}

	path := filepath.Join(t.TempDir(), "blocklist.json")
	if err := os.WriteFile(path, []byte(`["atraso", "pane"]`), 0o600); err != nil {
		t.Fatalf("failed to write blocklist: %v", err)
	}
	cfg.Analyzer.Blocklist = path
	an, err = cfg.NewAnalyzer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := an.Blocklist().Entries(); !reflect.DeepEqual(got, []string{"atraso", "pane"}) {
		t.Errorf("want blocklist from file, got %v", got)
	}

	cfg.Analyzer.Blocklist = filepath.Join(t.TempDir(), "missing.json")
	if _, err := cfg.NewAnalyzer(); err == nil {
		t.Error("want error for missing blocklist file, got nil")
	}
}
