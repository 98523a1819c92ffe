package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"railwatch/pkg/analyzer"
	"railwatch/pkg/api"
	"railwatch/pkg/config"
	"railwatch/pkg/feed"
	"railwatch/pkg/models"
	"railwatch/pkg/storage"
	"railwatch/pkg/storage/memdb"
	"railwatch/pkg/storage/mongo"
	"railwatch/pkg/storage/postgres"
)

func main() {
	var (
		configPath string
		dev        bool
		httpAddr   string
		logLevel   string
	)

	var (
		sigChan = make(chan os.Signal, 1)
		msgChan = make(chan feed.Msg)
		done    = make(chan struct{})
	)

	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	flag.StringVar(&configPath, "config", "cmd/server/config.toml", "Path to TOML config file.")
	flag.BoolVar(&dev, "dev", false, "Run the server in development mode with in-memory DB.")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[server] failed to load config file %s: %v", configPath, err)
	}

	// Override config with flags if set
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dev {
		cfg.Storage = config.StorageMemDB
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[server] %v", err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	if !strings.Contains(cfg.HTTPAddr, ":") {
		log.Warn("[server] use ':' before port number, e.g. ':8080'")
	}

	an, err := cfg.NewAnalyzer()
	if err != nil {
		log.Fatalf("[server] failed to build analyzer: %v", err)
	}

	sdb, closeDB := openStorage(cfg.Storage)
	defer closeDB()

	var logWriter, eventWriter api.MessageWriter
	if len(cfg.Kafka.Brokers) > 0 {
		if cfg.Kafka.LogTopic != "" {
			kw := newKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.LogTopic)
			defer kw.Close()
			logWriter = kw
		}
		if cfg.Kafka.EventTopic != "" {
			ew := newKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
			defer ew.Close()
			eventWriter = ew
		}
		log.Infof("[server] kafka brokers: %v", cfg.Kafka.Brokers)
	}

	api := api.New(cfg.ServiceName, an, sdb, logWriter, eventWriter)
	parser := feed.NewParser(cfg.Feed)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer func() {
			log.Info("[server] feed receiver stopped")
			wg.Done()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for msg := range msgChan {
			if msg.Err != nil {
				log.Warnf("[server] error while parsing %s: %v", msg.Source, msg.Err)
				continue
			}
			if err := storePosts(ctx, api, cfg.Workers, msg.Posts); err != nil {
				log.Warnf("[server] error while storing posts from %s: %v", msg.Source, err)
				continue
			}
			log.Infof("[server] DB updated with %d posts from %s", len(msg.Posts), msg.Source)
		}
	}()

	wg.Add(1)
	go func() {
		ticker := time.NewTicker(parser.Delay)

		defer func() {
			close(msgChan)
			ticker.Stop()
			log.Info("[server] feed parser stopped")
			wg.Done()
		}()

		if len(cfg.Feed.Sources) == 0 {
			log.Info("[server] no feed sources configured")
			<-done
			return
		}

		parser.Run(msgChan)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				parser.Run(msgChan)
			}
		}
	}()

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Infof("[server] listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] HTTP server error: %v", err)
		}
		log.Info("[server] stopped serving new connections")
	}()

	<-sigChan
	close(done)
	wg.Wait()

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("[server] HTTP shutdown error: %v", err)
	}
	log.Info("[server] server stopped")
}

// storePosts analyses a batch of posts, stores the analyses and publishes them.
func storePosts(ctx context.Context, srv *api.API, workers int, posts []models.Post) error {
	texts := make([]string, len(posts))
	for i, p := range posts {
		texts[i] = p.Text
	}

	reports, err := srv.Analyzer().AnalyzeBatch(ctx, texts, workers)
	if err != nil {
		return err
	}

	now := time.Now()
	analyses := make([]models.Analysis, len(posts))
	for i, p := range posts {
		analyses[i] = analyzer.NewAnalysis(p, reports[i], now)
	}
	analyses = storage.ValidAnalyses(analyses...)

	if err := srv.DB.AddAnalyses(ctx, analyses); err != nil {
		return err
	}
	for _, a := range analyses {
		srv.Publish(ctx, a)
	}

	return nil
}

func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
}

// openStorage connects to the configured storage and returns it with its
// close function. Connection failures are fatal.
func openStorage(kind string) (storage.Storage, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch kind {
	case config.StoragePostgres:
		conf := postgres.ConfigFromEnv("postgres", "railwatch")
		if !conf.IsValid() {
			log.Fatal(fmt.Errorf("invalid postgres config: %s", conf))
		}

		db, err := postgres.New(ctx, conf.ConString())
		if err != nil {
			log.Fatalf("[server] %v: %v", storage.ErrConnectDB, err)
		}
		if err := db.Ping(ctx); err != nil {
			log.Fatalf("[server] %v: %v", storage.ErrDBNotResponding, err)
		}
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("[server] failed to migrate postgres schema: %v", err)
		}
		log.Infof("[server] connected to postgres: %s", conf)
		return db, db.Close

	case config.StorageMongo:
		conf, err := mongo.ConfigFromEnv("railwatch")
		if err != nil {
			log.Fatalf("[server] invalid mongo config: %v", err)
		}

		db, err := mongo.New(ctx, conf)
		if err != nil {
			log.Fatalf("[server] %v: %v", storage.ErrConnectDB, err)
		}
		if err := db.Ping(ctx); err != nil {
			log.Fatalf("[server] %v: %v", storage.ErrDBNotResponding, err)
		}
		log.Infof("[server] connected to mongo: %s", conf)
		return db, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			db.Close(ctx)
		}
	}

	log.Info("[server] run server with in memory DB")
	return memdb.New(), func() {}
}
