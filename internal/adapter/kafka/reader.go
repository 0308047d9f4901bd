package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/batch-geocoder-service/internal/config"
	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// Reader consumes geocoding requests from a Kafka topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader        *kafkago.Reader
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewReader creates a Kafka consumer for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaSourceTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{reader: r, flushInterval: cfg.BatchFlushInterval, logger: logger}
}

// ExtractBatch blocks for the first request, then collects more until
// batchSize is reached or the flush interval passes. If a later fetch fails,
// the requests already fetched are returned along with the error.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.JobRequest, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	batch := make([]domain.JobRequest, 0, batchSize)
	batch = append(batch, r.toRequest(first))

	flushCtx, cancel := context.WithTimeout(ctx, r.flushInterval)
	defer cancel()
	for len(batch) < batchSize {
		msg, err := r.reader.FetchMessage(flushCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break
			}
			return batch, fmt.Errorf("fetch message: %w", err)
		}
		batch = append(batch, r.toRequest(msg))
	}
	return batch, nil
}

func (r *Reader) toRequest(msg kafkago.Message) domain.JobRequest {
	req := mapMessageToJobRequest(msg)
	req.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return req
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// requestEnvelope is the JSON value of a request message.
type requestEnvelope struct {
	RequestID  string         `json:"requestId"`
	DryRun     bool           `json:"dryRun"`
	Parameters map[string]any `json:"parameters"`
}

// mapMessageToJobRequest decodes a request message. A value that cannot be
// decoded still yields a request, carrying the decode error so the pipeline
// can report it against the request ID.
func mapMessageToJobRequest(msg kafkago.Message) domain.JobRequest {
	req := domain.JobRequest{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}

	var env requestEnvelope
	dec := json.NewDecoder(bytes.NewReader(msg.Value))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		req.DecodeErr = domain.ParamError("", "malformed request message", err)
	}

	req.RequestID = env.RequestID
	if req.RequestID == "" {
		req.RequestID = string(msg.Key)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	req.DryRun = env.DryRun
	req.Parameters = env.Parameters
	return req
}
