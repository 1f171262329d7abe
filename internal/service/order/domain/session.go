// internal/service/order/domain/session.go
package domain

import "time"

// Session 是一次用户登录会话。
type Session struct {
	ID        string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Plan      string    `json:"plan,omitempty"`
	Region    string    `json:"region,omitempty"`
	LoginTime time.Time `json:"loginTime"`
}
