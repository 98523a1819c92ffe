package indexer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
)

// Elastic indexes documents with the official Elasticsearch client.
type Elastic struct {
	client *elasticsearch.Client
}

func NewElastic(nodes []string) (*Elastic, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: nodes})
	if err != nil {
		return nil, err
	}
	return &Elastic{client: es}, nil
}

func (e *Elastic) IndexDocument(ctx context.Context, index, id string, body []byte) error {
	es := e.client
	res, err := es.Index(
		index,
		bytes.NewReader(body),
		es.Index.WithDocumentID(id),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch: %s", res.String())
	}
	return nil
}
