package notify

import (
	"context"
	"encoding/json"

	"ilpotaxi/internal/modules/support/domain/gateway"
	"ilpotaxi/internal/modules/support/infrastructure/mq"
)

// kafkaGateway publishes operator notifications to the notify topic, keyed
// by operator uuid so one operator's stream stays ordered.
type kafkaGateway struct {
	pub   mq.Publisher
	topic string
}

func NewKafkaGateway(pub mq.Publisher, topic string) gateway.OperatorGateway {
	return &kafkaGateway{pub: pub, topic: topic}
}

func (g *kafkaGateway) Deliver(ctx context.Context, n gateway.OperatorNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return g.pub.Publish(ctx, mq.Message{
		Topic: g.topic,
		Key:   []byte(n.OperatorUuid),
		Value: body,
		Headers: map[string]string{
			"type": n.Type,
		},
	})
}
