// internal/service/order/infrastructure/kafka_consumer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"checkout/internal/pkg/logger"
	"checkout/internal/pkg/mq"
	"checkout/internal/service/order/domain"
	"checkout/internal/service/order/domain/port"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OutcomeConsumerAdapter 是一个驱动适配器，它监听订单结果主题并把事件交给下游（通常是 WebSocket Hub）。
type OutcomeConsumerAdapter struct {
	reader mq.MessageReader
	target port.Notifier
	tracer trace.Tracer
	wg     sync.WaitGroup
}

// NewOutcomeConsumerAdapter 创建一个新的Kafka消费者适配器。
func NewOutcomeConsumerAdapter(reader mq.MessageReader, target port.Notifier) *OutcomeConsumerAdapter {
	return &OutcomeConsumerAdapter{
		reader: reader,
		target: target,
		tracer: otel.Tracer("order-outcome-consumer"),
	}
}

// Start 开始监听Kafka主题，直到 ctx 结束。
func (a *OutcomeConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log := logger.Ctx(ctx)
		log.Info().Msg("order outcome consumer started")
		for {
			// 使用FetchMessage而不是ReadMessage，以便更好地控制提交
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					log.Info().Msg("order outcome consumer shutting down")
					return
				}
				log.Error().Err(err).Msg("could not read message, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			a.processMessage(ctx, msg)

			if err := a.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("failed to commit message")
			}
		}
	}()
}

// Stop 等待消费循环退出并关闭 reader。调用前应先取消 Start 的 ctx。
func (a *OutcomeConsumerAdapter) Stop() error {
	a.wg.Wait()
	return a.reader.Close()
}

func (a *OutcomeConsumerAdapter) processMessage(parentCtx context.Context, msg kafka.Message) {
	ctx := mq.ExtractTraceContext(parentCtx, msg.Headers)
	ctx, span := a.tracer.Start(ctx, "consume.order-outcome",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	var outcome domain.OrderOutcome
	if err := json.Unmarshal(msg.Value, &outcome); err != nil {
		// 格式错误的消息直接跳过，避免阻塞分区
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal order outcome, message skipped")
		return
	}
	span.SetAttributes(attribute.String("order.id", outcome.OrderID), attribute.String("event.type", outcome.EventType))

	if err := a.target.Publish(ctx, outcome); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", outcome.OrderID).Msg("failed to deliver order outcome")
	}
}
