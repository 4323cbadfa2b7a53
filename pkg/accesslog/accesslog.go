// Package accesslog ships HTTP access log entries through Kafka and indexes
// them into Elasticsearch.
package accesslog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrMissingRequestID = errors.New("log entry without request id")

type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Duration   float64   `json:"duration_sec"`
	Bytes      int       `json:"bytes"`
	Service    string    `json:"service"`
}

// DocumentID identifies the entry in the search index. Request IDs are only
// unique per service.
func (e Entry) DocumentID() string {
	return e.Service + ":" + e.RequestID
}

// Sink receives finished access log entries.
type Sink interface {
	Send(ctx context.Context, e Entry) error
}

type KafkaSink struct {
	w *kafka.Writer
}

func NewKafkaSink(addr, topic string, batchSize int) *KafkaSink {
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:      kafka.TCP(addr),
			Topic:     topic,
			BatchSize: batchSize,
		},
	}
}

func (s *KafkaSink) Addr() string {
	return s.w.Addr.String()
}

func (s *KafkaSink) Topic() string {
	return s.w.Topic
}

func (s *KafkaSink) Send(ctx context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return s.w.WriteMessages(ctx, kafka.Message{Key: []byte(e.RequestID), Value: b})
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}

// CreateTopic creates a single-partition topic on broker.
func CreateTopic(ctx context.Context, broker, topic string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
