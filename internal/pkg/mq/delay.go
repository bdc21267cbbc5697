// internal/pkg/mq/delay.go
package mq

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"atlas/internal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const (
	// HeaderRealTopic 指定延迟消息到期后转投的真实主题
	HeaderRealTopic = "real-topic"
	// HeaderDelayTimestamp 指定投递时刻，Unix 毫秒
	HeaderDelayTimestamp = "delay-timestamp"
)

// DelayRelay 消费延迟主题，等到 delay-timestamp 指定的时刻后把消息转投到
// real-topic 指定的真实主题。延迟主题内消息按写入序到期（TTL 相同），
// 串行等待不会让后面的消息反超。
type DelayRelay struct {
	reader  *kafka.Reader
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewDelayRelay(brokers []string, delayTopic, groupID string) *DelayRelay {
	return &DelayRelay{
		reader:  NewKafkaReader(brokers, delayTopic, groupID),
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

// Run 阻塞运行直到 ctx 取消。
func (r *DelayRelay) Run(ctx context.Context) {
	defer r.Close()
	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Ctx(ctx).Error().Err(err).Msg("failed to fetch delayed message")
			continue
		}

		if err := r.relay(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				// 未提交位点，重启后重新等待剩余延迟
				return
			}
			logger.Ctx(ctx).Error().Err(err).Msg("failed to relay delayed message, will be redelivered")
			continue
		}

		if err := r.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to commit delayed message offset")
		}
	}
}

func (r *DelayRelay) relay(ctx context.Context, msg kafka.Message) error {
	var realTopic string
	var dueAt time.Time
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for _, h := range msg.Headers {
		switch h.Key {
		case HeaderRealTopic:
			realTopic = string(h.Value)
		case HeaderDelayTimestamp:
			millis, err := strconv.ParseInt(string(h.Value), 10, 64)
			if err == nil {
				dueAt = time.UnixMilli(millis)
			}
		default:
			headers = append(headers, h)
		}
	}
	if realTopic == "" {
		// 控制头缺失的消息无处可投，记录后吞掉
		logger.Ctx(ctx).Error().Str("payload", string(msg.Value)).Msg("delayed message without real-topic header, dropping")
		return nil
	}

	if wait := time.Until(dueAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.writerFor(realTopic).WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
}

func (r *DelayRelay) writerFor(topic string) *kafka.Writer {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.writers[topic]
	if !ok {
		w = NewKafkaWriter(r.brokers, topic)
		r.writers[topic] = w
	}
	return w
}

func (r *DelayRelay) Close() {
	r.reader.Close()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.writers {
		w.Close()
	}
}
