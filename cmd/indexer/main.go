package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"railwatch/pkg/config"
	"railwatch/pkg/indexer"
)

func main() {
	var (
		configPath string
		logLevel   string
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("[indexer] shutting down gracefully...")
		cancel()
	}()

	flag.StringVar(&configPath, "config", "cmd/indexer/config.toml", "Path to TOML config file.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[indexer] failed to load config file %s: %v", configPath, err)
	}

	// Override config with flags if set
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[indexer] %v", err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	ic := cfg.Indexer
	if len(cfg.Kafka.Brokers) == 0 || ic.KafkaTopic == "" {
		log.Fatal("[indexer] kafka brokers and indexer.kafkaTopic are required")
	}

	es, err := indexer.NewElastic(ic.ElasticSearchNodes)
	if err != nil {
		log.Fatalf("[indexer] error creating the client: %s", err)
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    ic.KafkaTopic,
		GroupID:  ic.KafkaGroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	defer r.Close()

	docID := indexer.AnalysisID
	if ic.Kind == config.IndexLogs {
		docID = indexer.RequestLogID
	}

	log.Infof("[indexer] consuming %s from %v", ic.KafkaTopic, cfg.Kafka.Brokers)
	indexer.New(es, ic.ElasticSearchIndex, ic.NumWorkers, docID).Run(ctx, r)
}
