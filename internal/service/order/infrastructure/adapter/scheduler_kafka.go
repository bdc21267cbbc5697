// internal/service/order/infrastructure/adapter/scheduler_kafka.go
package adapter

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"atlas/internal/pkg/mq"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/domain/port"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

// KafkaDelayScheduler 把支付超时检查投递到延迟主题。
// 延迟服务按 delay-timestamp 头等到期后把消息转投 real-topic 头指定的真实主题，
// 订单服务的超时消费者在那里收到检查任务。
type KafkaDelayScheduler struct {
	writer       *kafka.Writer
	timeoutTopic string
}

var _ port.DelayScheduler = (*KafkaDelayScheduler)(nil)

func NewKafkaDelayScheduler(brokers []string, delayTopic, timeoutTopic string) *KafkaDelayScheduler {
	return &KafkaDelayScheduler{
		writer:       mq.NewKafkaWriter(brokers, delayTopic),
		timeoutTopic: timeoutTopic,
	}
}

func (s *KafkaDelayScheduler) SchedulePaymentTimeout(ctx context.Context, orderID, userID string, deadline time.Time) error {
	event := domain.PaymentTimeoutCheckEvent{
		TraceID:      trace.SpanContextFromContext(ctx).TraceID().String(),
		OrderID:      orderID,
		UserID:       userID,
		CreationTime: time.Now(),
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(orderID),
		Value: raw,
		Headers: []kafka.Header{
			{Key: "real-topic", Value: []byte(s.timeoutTopic)},
			{Key: "delay-timestamp", Value: []byte(strconv.FormatInt(deadline.UnixMilli(), 10))},
		},
	}
	mq.InjectTraceContext(ctx, &msg.Headers)
	return s.writer.WriteMessages(ctx, msg)
}

func (s *KafkaDelayScheduler) Close() error {
	return s.writer.Close()
}
