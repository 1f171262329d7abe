// internal/pkg/mq/kafka.go
package mq

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// MessageWriter 是 *kafka.Writer 的最小子集，便于在测试中替换。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaHeaderCarrier 让 otel propagator 可以读写 kafka 消息头。
type KafkaHeaderCarrier []kafka.Header

func (c KafkaHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, h := range c {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectTraceContext 把当前 span 上下文写入消息头。
func InjectTraceContext(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := KafkaHeaderCarrier(headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	return carrier
}

// ExtractTraceContext 从消息头恢复 span 上下文。
func ExtractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := KafkaHeaderCarrier(headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier)
}

// ProduceMessage 发送一条带追踪上下文的消息。
func ProduceMessage(ctx context.Context, w MessageWriter, key, value []byte, extra ...kafka.Header) error {
	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Headers: InjectTraceContext(ctx, extra),
		Time:    time.Now(),
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "kafka write")
	}
	return nil
}

// NewKafkaWriter 创建一个按 key 哈希分区的 writer。brokers 为逗号分隔的地址。
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// NewKafkaReader 创建一个消费组 reader。
func NewKafkaReader(brokers, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(brokers, ","),
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
}

// MessageReader 是消费者依赖的最小接口，*kafka.Reader 实现了它。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
