package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fanclub/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() *Order {
	return &Order{
		ID:         uuid.New(),
		UserID:     "u1",
		ClubID:     "club-1",
		Email:      "fan@club.test",
		OrderRef:   "FAN-20261019-ABCDEFGH",
		TotalCents: 4500,
		Status:     StatusConfirmed,
		CreatedAt:  time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC),
		Seats:      []SoldSeat{{EventID: "ev-1", SeatID: "A1"}},
	}
}

func TestPublishOrderConfirmed(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	order := sampleOrder()
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "orders" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "club-1" {
			return errors.New("wrong key " + string(key))
		}
		raw, _ := msg.Value.Encode()
		var event OrderEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return err
		}
		if event.Type != EventOrderConfirmed || event.OrderID != order.ID.String() || len(event.SeatIDs) != 1 {
			return errors.New("unexpected payload " + string(raw))
		}
		return nil
	})

	pub := NewKafkaOrderPublisherWithProducer(producer, "orders", logger.Discard())

	require.NoError(t, pub.PublishOrderConfirmed(context.Background(), order))
	require.NoError(t, pub.Close())
}

func TestPublishOrderConfirmedFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaOrderPublisherWithProducer(producer, "orders", logger.Discard())

	err := pub.PublishOrderConfirmed(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}
