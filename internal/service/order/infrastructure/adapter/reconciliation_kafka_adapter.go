// internal/service/order/infrastructure/adapter/reconciliation_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"time"

	"checkout/internal/pkg/mq"
	"checkout/internal/service/order/domain"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// ReconciliationTask 是一条需要人工对账的记录。
type ReconciliationTask struct {
	Order      *domain.Order `json:"order"`
	ErrorType  string        `json:"errorType"`
	Cause      string        `json:"cause"`
	ReportedAt time.Time     `json:"reportedAt"`
}

// ReconciliationKafkaAdapter 实现了 port.ReconciliationReporter 接口，按 orderId 分区。
type ReconciliationKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewReconciliationKafkaAdapter(writer mq.MessageWriter) *ReconciliationKafkaAdapter {
	return &ReconciliationKafkaAdapter{writer: writer}
}

func (a *ReconciliationKafkaAdapter) Report(ctx context.Context, order *domain.Order, cause error) error {
	task := ReconciliationTask{
		Order:      order,
		ErrorType:  domain.KindName(cause),
		Cause:      cause.Error(),
		ReportedAt: time.Now().UTC(),
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return errors.Wrap(err, "failed to marshal reconciliation task")
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(order.ID), taskBytes,
		kafka.Header{Key: HeaderEventType, Value: []byte(domain.EventOrderCompensationFailed)})
}
