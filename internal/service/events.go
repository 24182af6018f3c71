package service

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"

	"github.com/lapakgo/payment-reconciler/internal/models"
)

// KafkaStatePublisher emits order state changes to the order.state.changed
// topic, keyed by order id so per-order ordering is preserved downstream.
type KafkaStatePublisher struct {
	writer *kafka.Writer
}

func NewKafkaStatePublisher(writer *kafka.Writer) *KafkaStatePublisher {
	return &KafkaStatePublisher{writer: writer}
}

func (p *KafkaStatePublisher) PublishStateChange(ctx context.Context, ev models.StateChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OrderID.String()),
		Value: payload,
	})
}

// NatsNotifier hands buyer notifications to the delivery system over NATS.
// Delivery itself (push, email) is someone else's job.
type NatsNotifier struct {
	nc *nats.Conn
}

func NewNatsNotifier(nc *nats.Conn) *NatsNotifier {
	return &NatsNotifier{nc: nc}
}

func (n *NatsNotifier) Notify(_ context.Context, notification models.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return n.nc.Publish("notify.buyer."+notification.UserID.String(), payload)
}
