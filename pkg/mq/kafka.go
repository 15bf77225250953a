// Package mq 提供基于 kafka-go 的消息生产者
package mq

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/optionspricing/pkg/config"
	"github.com/wyfcoding/optionspricing/pkg/logger"
)

// Message 待发送的消息
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer 消息生产者接口
type Producer interface {
	Send(ctx context.Context, topic string, msgs ...Message) error
	Close() error
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者，按 key 哈希分区保证同一合约的事件有序
func NewProducer(cfg config.KafkaConfig) *KafkaProducer {
	acks := kafka.RequireOne
	if cfg.RequireAcks {
		acks = kafka.RequireAll
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Snappy,
		RequiredAcks:           acks,
		WriteTimeout:           time.Duration(cfg.WriteTimeout) * time.Second,
		BatchTimeout:           10 * time.Millisecond,
	}

	logger.Info(context.Background(), "kafka producer created", "brokers", cfg.Brokers)
	return &KafkaProducer{writer: writer}
}

// Send 同步发送一批消息
func (kp *KafkaProducer) Send(ctx context.Context, topic string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		out[i] = kafka.Message{
			Topic: topic,
			Key:   []byte(m.Key),
			Value: m.Value,
		}
		for k, v := range m.Headers {
			out[i].Headers = append(out[i].Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
	}

	if err := kp.writer.WriteMessages(ctx, out...); err != nil {
		logger.Error(ctx, "failed to send kafka messages", "topic", topic, "count", len(out), "error", err)
		return err
	}
	logger.Debug(ctx, "kafka messages sent", "topic", topic, "count", len(out))
	return nil
}

// Close 关闭生产者
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}
