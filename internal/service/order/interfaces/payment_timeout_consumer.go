// internal/service/order/interfaces/payment_timeout_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"

	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/mq"
	"atlas/internal/service/order/application"
	"atlas/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// PaymentTimeoutConsumer 消费支付超时检查消息。
// 延迟服务在预占 TTL 到期时把消息转投到检查主题，这里逐条处理：
// 订单仍未支付则触发取消 Saga。
type PaymentTimeoutConsumer struct {
	reader  *kafka.Reader
	service *application.Service
}

func NewPaymentTimeoutConsumer(brokers []string, topic, groupID string, service *application.Service) *PaymentTimeoutConsumer {
	return &PaymentTimeoutConsumer{
		reader:  mq.NewKafkaReader(brokers, topic, groupID),
		service: service,
	}
}

// Run 阻塞消费直到 ctx 取消。消息处理失败不提交位点，依赖重投递。
func (c *PaymentTimeoutConsumer) Run(ctx context.Context) {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Ctx(ctx).Error().Err(err).Msg("failed to fetch timeout check message")
			continue
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
		msgCtx, span := otel.Tracer(serviceName).Start(msgCtx, "order-service.ConsumePaymentTimeout")

		if err := c.handle(msgCtx, msg.Value); err != nil {
			span.RecordError(err)
			span.End()
			logger.Ctx(msgCtx).Error().Err(err).Msg("failed to handle timeout check, message will be redelivered")
			continue
		}
		span.End()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to commit timeout check offset")
		}
	}
}

func (c *PaymentTimeoutConsumer) handle(ctx context.Context, value []byte) error {
	var event domain.PaymentTimeoutCheckEvent
	if err := json.Unmarshal(value, &event); err != nil {
		// 消息体损坏，重投也不会变好，记录后吞掉
		logger.Ctx(ctx).Error().Err(err).Str("payload", string(value)).Msg("malformed timeout check event, dropping")
		return nil
	}
	return c.service.HandlePaymentTimeout(ctx, event)
}
