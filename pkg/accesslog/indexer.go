package accesslog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

type Indexer struct {
	es    *elasticsearch.Client
	index string
}

func NewIndexer(nodes []string, index string) (*Indexer, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: nodes})
	if err != nil {
		return nil, err
	}

	return &Indexer{es: es, index: index}, nil
}

// Index stores one raw Kafka message value as a document.
func (ix *Indexer) Index(ctx context.Context, value []byte) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal(value, &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal log entry: %w", err)
	}
	if entry.RequestID == "" {
		return Entry{}, ErrMissingRequestID
	}

	res, err := ix.es.Index(
		ix.index,
		bytes.NewReader(value),
		ix.es.Index.WithDocumentID(entry.DocumentID()),
		ix.es.Index.WithContext(ctx),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return Entry{}, fmt.Errorf("failed to index document: %s", res.Status())
	}

	return entry, nil
}

// Worker indexes messages from jobs until the channel is closed or ctx is done.
func Worker(ctx context.Context, ix *Indexer, jobs <-chan kafka.Message, workerID int) {
	for {
		select {
		case <-ctx.Done():
			log.Infof("[logkeeper][workerID:%d] context cancelled, exiting worker", workerID)
			return

		case msg, ok := <-jobs:
			if !ok {
				log.Infof("[logkeeper][workerID:%d] jobs channel closed, exiting worker", workerID)
				return
			}

			entry, err := ix.Index(ctx, msg.Value)
			if err != nil {
				log.Errorf("[logkeeper][workerID:%d] %v", workerID, err)
				continue
			}
			log.Debugf("[logkeeper][workerID:%d][%s] log entry indexed", workerID, shorten(entry.RequestID))
		}
	}
}

func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
