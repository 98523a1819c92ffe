// Command railwatch runs the analysis over a CSV of tweets: it prints the
// problems found in every tweet and writes the words close to the blocklist to
// a single-column CSV, optionally uploading it to S3.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"railwatch/pkg/analyzer"
	"railwatch/pkg/config"
	"railwatch/pkg/dataset"
	"railwatch/pkg/fuzzy"
	"railwatch/pkg/objstore"
)

const flaggedHeader = "Bad_Word"

func main() {
	var (
		configPath string
		inPath     string
		column     string
		outPath    string
		upload     bool
		bucket     string
		exact      bool
		logLevel   string
	)

	flag.StringVar(&configPath, "config", "", "Optional path to TOML config file.")
	flag.StringVar(&inPath, "in", "tweets.csv", "CSV file with the tweets.")
	flag.StringVar(&column, "column", "text", "Name of the column holding the tweet text.")
	flag.StringVar(&outPath, "out", "filtro.csv", "CSV file receiving the flagged words.")
	flag.BoolVar(&upload, "upload", false, "Upload the flagged words to S3.")
	flag.StringVar(&bucket, "bucket", "", "S3 bucket, overrides upload.bucket from the config.")
	flag.BoolVar(&exact, "exact", false, "Match words as written, without lower-casing or trimming punctuation.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("[railwatch] failed to load config file %s: %v", configPath, err)
		}
		cfg = *loaded
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if bucket != "" {
		cfg.Upload.Bucket = bucket
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[railwatch] %v", err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	an, err := cfg.NewAnalyzer()
	if err != nil {
		log.Fatalf("[railwatch] failed to build analyzer: %v", err)
	}

	tweets, err := dataset.ReadColumnFile(inPath, column)
	if err != nil {
		log.Fatalf("[railwatch] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	reports, err := an.AnalyzeBatch(ctx, tweets, cfg.Workers)
	if err != nil {
		log.Fatalf("[railwatch] analysis interrupted: %v", err)
	}
	printReports(os.Stdout, tweets, reports)

	match := an.MatchWord
	if exact {
		match = an.MatchExact
	}
	flagged := flagWords(tweets, match)

	if err := dataset.WriteColumnFile(outPath, flaggedHeader, flagged); err != nil {
		log.Fatalf("[railwatch] %v", err)
	}
	log.Infof("[railwatch] %d flagged words written to %s", len(flagged), outPath)

	if !upload {
		return
	}

	client, err := objstore.NewS3Client(ctx, cfg.Upload.Region)
	if err != nil {
		log.Fatalf("[railwatch] %v", err)
	}
	var buf bytes.Buffer
	if err := dataset.WriteColumn(&buf, flaggedHeader, flagged); err != nil {
		log.Fatalf("[railwatch] %v", err)
	}

	u := objstore.Uploader{Bucket: cfg.Upload.Bucket, Prefix: cfg.Upload.Prefix, Client: client}
	name := strings.TrimSuffix(filepath.Base(outPath), filepath.Ext(outPath))
	key, err := u.Upload(ctx, name, buf.Bytes())
	if err != nil {
		log.Fatalf("[railwatch] %v", err)
	}
	log.Infof("[railwatch] uploaded s3://%s/%s", cfg.Upload.Bucket, key)
}

// printReports writes the problems found in every tweet, numbered from 1.
func printReports(w io.Writer, tweets []string, reports []analyzer.Report) {
	fmt.Fprintln(w, "CPTM TWEET ANALYSIS")
	fmt.Fprintln(w, "===================")

	for i, tweet := range tweets {
		fmt.Fprintf(w, "\nTweet %d: %q\n", i+1, tweet)

		problems := reports[i].Problems
		if len(problems) == 0 {
			fmt.Fprintln(w, "No problems found.")
			continue
		}
		fmt.Fprintln(w, "Problems found:")
		for _, tok := range problems {
			fmt.Fprintf(w, "- %s: %s\n", strings.ToUpper(tok.Category.String()), tok.Lexeme)
		}
	}
}

// flagWords splits every tweet on whitespace and returns, in order, the words
// that match the blocklist.
func flagWords(tweets []string, match func(string) fuzzy.MatchResult) []string {
	flagged := []string{}
	for _, tweet := range tweets {
		for _, word := range strings.Fields(tweet) {
			res := match(word)
			if !res.IsMatch {
				continue
			}
			log.Infof("[railwatch] %q matches %q (distance %d)", word, res.Entry, res.Distance)
			flagged = append(flagged, word)
		}
	}
	return flagged
}
