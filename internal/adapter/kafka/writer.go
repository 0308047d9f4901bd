package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/batch-geocoder-service/internal/config"
	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// Result message status header values.
const (
	StatusOK     = "ok"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// Writer produces result messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes every record of every result in a single
// WriteMessages call. Messages are keyed by request ID so one request's
// records stay ordered on one partition.
func (w *Writer) LoadBatch(ctx context.Context, results []domain.JobResult) error {
	var msgs []kafkago.Message
	for i := range results {
		m, err := serializeResult(results[i])
		if err != nil {
			return err
		}
		msgs = append(msgs, m...)
	}
	if len(msgs) == 0 {
		return nil
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

type recordEnvelope struct {
	RequestID     string         `json:"requestId"`
	Sequence      int            `json:"sequence"`
	Record        domain.Record  `json:"record"`
	Customization map[string]any `json:"customization,omitempty"`
}

type failureEnvelope struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error"`
	Kind      string `json:"kind"`
}

type emptyEnvelope struct {
	RequestID string `json:"requestId"`
	Records   int    `json:"records"`
}

// serializeResult turns one request's outcome into its result messages.
func serializeResult(res domain.JobResult) ([]kafkago.Message, error) {
	if res.Failed() {
		data, err := json.Marshal(failureEnvelope{
			RequestID: res.RequestID,
			Error:     res.Err.Error(),
			Kind:      domain.ErrorLabel(res.Err),
		})
		if err != nil {
			return nil, fmt.Errorf("serialize failure: %w", err)
		}
		return []kafkago.Message{newMessage(res.RequestID, -1, StatusFailed, data)}, nil
	}

	if len(res.Records) == 0 {
		data, err := json.Marshal(emptyEnvelope{RequestID: res.RequestID})
		if err != nil {
			return nil, fmt.Errorf("serialize empty result: %w", err)
		}
		return []kafkago.Message{newMessage(res.RequestID, -1, StatusEmpty, data)}, nil
	}

	msgs := make([]kafkago.Message, len(res.Records))
	for i := range res.Records {
		env := recordEnvelope{RequestID: res.RequestID, Sequence: i, Record: res.Records[i]}
		if i < len(res.Customizations) {
			env.Customization = res.Customizations[i]
		}
		data, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("serialize record %d: %w", i, err)
		}
		msgs[i] = newMessage(res.RequestID, i, StatusOK, data)
	}
	return msgs, nil
}

func newMessage(requestID string, sequence int, status string, value []byte) kafkago.Message {
	headers := []kafkago.Header{
		{Key: "request_id", Value: []byte(requestID)},
		{Key: "status", Value: []byte(status)},
	}
	if sequence >= 0 {
		headers = append(headers, kafkago.Header{Key: "sequence", Value: []byte(strconv.Itoa(sequence))})
	}
	return kafkago.Message{Key: []byte(requestID), Value: value, Headers: headers}
}
