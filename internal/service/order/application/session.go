// internal/service/order/application/session.go
package application

import (
	"context"
	"time"

	"checkout/internal/service/order/domain"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CreateSession 记录一次用户登录。
func (s *OrderApplicationService) CreateSession(ctx context.Context, req SessionRequest) (domain.Session, error) {
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Plan:      req.Plan,
		Region:    req.Region,
		LoginTime: time.Now().UTC(),
	}
	if s.deps.Sessions != nil {
		if err := s.deps.Sessions.Put(ctx, session.ID, session); err != nil {
			return domain.Session{}, errors.Wrap(err, "save session")
		}
	}
	s.deps.Sink.SessionOpened()
	s.deps.Sink.Logger(ctx).Info().
		Str("session_id", session.ID).
		Str("user_id", session.UserID).
		Str("plan", session.Plan).
		Str("region", session.Region).
		Msg("user session created")
	return session, nil
}
