// internal/service/order/domain/state.go
package domain

// Status 定义了订单在 saga 中的生命周期状态
type Status string

const (
	StatusPending            Status = "pending"             // 已创建，正在校验库存
	StatusReserving          Status = "reserving"           // 正在预占库存
	StatusPaying             Status = "paying"              // 库存已预占，正在授权支付
	StatusConfirmed          Status = "confirmed"           // 支付成功，订单不可逆
	StatusFailed             Status = "failed"              // 失败，已完成的步骤都已补偿
	StatusCompensating       Status = "compensating"        // 正在执行补偿
	StatusCompensatingFailed Status = "compensating-failed" // 补偿失败，需要人工对账
)

// 只允许沿 saga 路径前进，或进入失败/补偿状态。
var transitions = map[Status][]Status{
	StatusPending:      {StatusReserving, StatusFailed},
	StatusReserving:    {StatusPaying, StatusCompensating, StatusFailed},
	StatusPaying:       {StatusConfirmed, StatusCompensating},
	StatusCompensating: {StatusFailed, StatusCompensatingFailed},
}

// IsTerminal 终态的订单不再被修改。
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusCompensatingFailed
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus 校验外部传入的状态字符串。
func ParseStatus(s string) (Status, bool) {
	status := Status(s)
	switch status {
	case StatusPending, StatusReserving, StatusPaying, StatusConfirmed,
		StatusFailed, StatusCompensating, StatusCompensatingFailed:
		return status, true
	}
	return "", false
}
