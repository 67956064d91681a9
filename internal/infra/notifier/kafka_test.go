package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaNotifier_NotifyDispatch(t *testing.T) {
	// Arrange
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	record := successRecord()
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event DispatchEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.Type != DispatchEventType || event.EntryKey != record.EntryKey || event.Outcome != "success" {
			return fmt.Errorf("unexpected event %+v", event)
		}
		if event.EventID == "" || event.ShareableLink != record.ShareableLink {
			return fmt.Errorf("missing fields in %+v", event)
		}
		return nil
	})
	n := NewKafkaNotifier(producer, "relayfeed.dispatches")

	// Act
	err := n.NotifyDispatch(context.Background(), record)

	// Assert
	require.NoError(t, err)
	require.NoError(t, n.Close())
}

func TestKafkaNotifier_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	boom := errors.New("leader not available")
	producer.ExpectSendMessageAndFail(boom)
	n := NewKafkaNotifier(producer, "relayfeed.dispatches")

	err := n.NotifyDispatch(context.Background(), failedRecord())

	assert.ErrorIs(t, err, boom)
	require.NoError(t, n.Close())
}

func TestKafkaNotifier_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	n := NewKafkaNotifier(producer, "t")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.NotifyDispatch(ctx, successRecord()), context.Canceled)
	require.NoError(t, n.Close())
}

func TestNewKafkaProducer_NoBrokers(t *testing.T) {
	_, err := NewKafkaProducer(KafkaConfig{Topic: "t"})
	assert.Error(t, err)
}
