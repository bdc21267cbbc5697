// internal/service/push/consumer.go
package push

import (
	"context"
	"encoding/json"
	"errors"

	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/mq"
	"atlas/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
)

// EventConsumer 消费订单事件主题，把事件路由到对应用户的连接。
type EventConsumer struct {
	reader *kafka.Reader
	hub    *Hub
}

func NewEventConsumer(brokers []string, topic, groupID string, hub *Hub) *EventConsumer {
	return &EventConsumer{
		reader: mq.NewKafkaReader(brokers, topic, groupID),
		hub:    hub,
	}
}

// Run 阻塞消费直到 ctx 取消。推送是尽力而为，解析失败或用户不在线都不重投。
func (c *EventConsumer) Run(ctx context.Context) {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Ctx(ctx).Error().Err(err).Msg("failed to fetch order event")
			continue
		}

		var event domain.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("payload", string(msg.Value)).Msg("malformed order event, dropping")
		} else if event.UserID != "" {
			c.hub.SendToUser(event.UserID, msg.Value)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to commit order event offset")
		}
	}
}
