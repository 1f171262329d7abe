// internal/service/payment/infrastructure/fault.go
package infrastructure

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"checkout/internal/service/payment/domain"
)

// RandomFault 在 [MinLatency, MaxLatency) 内均匀取延迟，并以 FailureRate 的概率拒绝。
type RandomFault struct {
	MinLatency  time.Duration
	MaxLatency  time.Duration
	FailureRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomFault(minLatency, maxLatency time.Duration, failureRate float64, seed uint64) *RandomFault {
	return &RandomFault{
		MinLatency:  minLatency,
		MaxLatency:  maxLatency,
		FailureRate: failureRate,
		rnd:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (f *RandomFault) Decide(_ context.Context, _ domain.AuthorizeRequest) (domain.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	latency := f.MinLatency
	if span := f.MaxLatency - f.MinLatency; span > 0 {
		latency += time.Duration(f.rnd.Int64N(int64(span)))
	}
	out := domain.Outcome{Latency: latency}
	if f.rnd.Float64() < f.FailureRate {
		out.Decline = true
		out.Reason = "Insufficient funds or card declined"
	}
	return out, nil
}

// FixedFault 总是返回同一个结果，用于确定性的测试。
type FixedFault struct {
	Outcome domain.Outcome
}

func (f FixedFault) Decide(context.Context, domain.AuthorizeRequest) (domain.Outcome, error) {
	return f.Outcome, nil
}

// ComposeFault 依次询问每个策略：延迟取最大值，任一策略拒绝即拒绝。
type ComposeFault []domain.FaultStrategy

func (c ComposeFault) Decide(ctx context.Context, req domain.AuthorizeRequest) (domain.Outcome, error) {
	var out domain.Outcome
	for _, s := range c {
		o, err := s.Decide(ctx, req)
		if err != nil {
			return domain.Outcome{}, err
		}
		if o.Latency > out.Latency {
			out.Latency = o.Latency
		}
		if o.Decline && !out.Decline {
			out.Decline = true
			out.Reason = o.Reason
		}
	}
	return out, nil
}
