// internal/service/order/infrastructure/kafka_publisher.go
package infrastructure

import (
	"context"
	"encoding/json"

	"atlas/internal/pkg/mq"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/domain/port"

	"github.com/segmentio/kafka-go"
)

// KafkaEventPublisher 把订单事件发布到 Kafka，推送网关订阅该主题。
// 消息 Key 取 userID，同一用户的事件落在同一分区，推送端按序消费。
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

var _ port.OrderEventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: mq.NewKafkaWriter(brokers, topic)}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event *domain.OrderEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, p.writer, []byte(event.UserID), raw)
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
