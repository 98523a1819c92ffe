// Package indexer ships JSON documents read from Kafka into a search index.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

var ErrNoDocumentID = errors.New("document has no ID")

const (
	indexTimeout = 10 * time.Second

	// DefaultRetryDelay is the pause after a failed read before trying again.
	DefaultRetryDelay = time.Second
)

// MessageReader is the subset of *kafka.Reader used by the indexer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// DocIndexer stores a JSON document under the given ID.
type DocIndexer interface {
	IndexDocument(ctx context.Context, index, id string, body []byte) error
}

// DocIDFunc extracts the document ID from a message value.
type DocIDFunc func(value []byte) (string, error)

// AnalysisID returns the "id" field of an analysis document.
func AnalysisID(value []byte) (string, error) {
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(value, &doc); err != nil {
		return "", err
	}
	if doc.ID == "" {
		return "", ErrNoDocumentID
	}
	return doc.ID, nil
}

// RequestLogID identifies a request log entry by service and request ID.
func RequestLogID(value []byte) (string, error) {
	var entry struct {
		RequestID string `json:"request_id"`
		Service   string `json:"service"`
	}
	if err := json.Unmarshal(value, &entry); err != nil {
		return "", err
	}
	if entry.RequestID == "" {
		return "", ErrNoDocumentID
	}
	return entry.Service + entry.RequestID, nil
}

type Indexer struct {
	Index      string
	NumWorkers int
	DocID      DocIDFunc
	RetryDelay time.Duration

	es DocIndexer
}

func New(es DocIndexer, index string, numWorkers int, docID DocIDFunc) *Indexer {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if docID == nil {
		docID = AnalysisID
	}
	return &Indexer{
		Index:      index,
		NumWorkers: numWorkers,
		DocID:      docID,
		RetryDelay: DefaultRetryDelay,
		es:         es,
	}
}

// Run reads messages until ctx is cancelled or the reader is closed and hands
// them to a pool of workers. Messages already handed out are indexed before Run
// returns. A failed read is retried after RetryDelay.
func (ix *Indexer) Run(ctx context.Context, r MessageReader) {
	jobs := make(chan kafka.Message, ix.NumWorkers*5)

	var wg sync.WaitGroup
	wg.Add(ix.NumWorkers)
	for workerID := 0; workerID < ix.NumWorkers; workerID++ {
		go func(id int) {
			defer wg.Done()
			ix.worker(ctx, jobs, id)
		}(workerID)
	}

	log.Infof("[indexer] indexing into %q with %d workers", ix.Index, ix.NumWorkers)

read:
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				break
			}
			log.Errorf("[indexer] failed to read message from Kafka, retrying in %v: %v", ix.RetryDelay, err)
			if !sleepCtx(ctx, ix.RetryDelay) {
				break
			}
			continue
		}
		log.Debugf("[indexer] received message at offset %d", msg.Offset)

		select {
		case jobs <- msg:
		case <-ctx.Done():
			break read
		}
	}

	close(jobs)
	wg.Wait()
	log.Info("[indexer] stopped")
}

// sleepCtx waits for d and reports false if ctx is done first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (ix *Indexer) worker(ctx context.Context, jobs <-chan kafka.Message, workerID int) {
	// in-flight documents are still written after shutdown starts
	ctx = context.WithoutCancel(ctx)

	for msg := range jobs {
		if err := ix.handle(ctx, msg); err != nil {
			log.Errorf("[indexer][workerID:%d] %v", workerID, err)
		}
	}
	log.Debugf("[indexer][workerID:%d] jobs channel closed, exiting worker", workerID)
}

func (ix *Indexer) handle(ctx context.Context, msg kafka.Message) error {
	id, err := ix.DocID(msg.Value)
	if err != nil {
		return fmt.Errorf("skipping message at offset %d: %w", msg.Offset, err)
	}

	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	if err := ix.es.IndexDocument(ctx, ix.Index, id, msg.Value); err != nil {
		return fmt.Errorf("failed to index document %s: %w", id, err)
	}
	log.Debugf("[indexer] document %s indexed", shorten(id))

	return nil
}

func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
