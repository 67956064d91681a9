package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"relayfeed/internal/domain/entity"
)

// DispatchEventType is the event_type header of every published outcome.
const DispatchEventType = "dispatch.outcome"

// KafkaConfig contains configuration for the outcome event stream.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// DispatchEvent is the JSON value of an outcome message. The message key is EntryKey.
type DispatchEvent struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	EntryKey      string    `json:"entry_key"`
	Title         string    `json:"title"`
	MatchedTitle  string    `json:"matched_title,omitempty"`
	SourceLink    string    `json:"source_link"`
	Outcome       string    `json:"outcome"`
	ArtifactRef   string    `json:"artifact_ref,omitempty"`
	ShareableLink string    `json:"shareable_link,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// NewKafkaProducer creates a synchronous producer that waits for all in-sync replicas.
func NewKafkaProducer(cfg KafkaConfig) (sarama.SyncProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.ClientID = cfg.ClientID
	if saramaConfig.ClientID == "" {
		saramaConfig.ClientID = "relayfeed"
	}
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaNotifier publishes one DispatchEvent per completed dispatch.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaNotifier wraps producer. The notifier owns the producer and closes it in Close.
func NewKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

// NotifyDispatch publishes record as a DispatchEvent keyed by its entry key.
func (k *KafkaNotifier) NotifyDispatch(ctx context.Context, record *entity.DispatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := DispatchEvent{
		EventID:       uuid.NewString(),
		Type:          DispatchEventType,
		EntryKey:      record.EntryKey,
		Title:         record.Title,
		MatchedTitle:  record.MatchedTitle,
		SourceLink:    record.SourceLink,
		Outcome:       string(record.Outcome),
		ArtifactRef:   record.ArtifactRef,
		ShareableLink: record.ShareableLink,
		FailureReason: record.FailureReason,
		SubmittedAt:   record.SubmittedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal dispatch event: %w", err)
	}

	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(record.EntryKey),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(DispatchEventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish dispatch event: %w", err)
	}

	slog.Debug("dispatch event published",
		slog.String("topic", k.topic),
		slog.String("entry_key", record.EntryKey),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset))
	return nil
}

// Close flushes and closes the producer.
func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}
