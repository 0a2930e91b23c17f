package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/akinalp/stagecall/models"
	"github.com/akinalp/stagecall/pkg"
	"github.com/akinalp/stagecall/pkg/ratelimit"
)

// NewJoinLimitedLiveCallService wraps next so that every operation which
// may create a meeting on a BBB server counts against the user's budget in
// limiter. Recordings are not limited.
func NewJoinLimitedLiveCallService(next LiveCallService, limiter *ratelimit.Limiter) LiveCallService {
	return &joinLimitedLiveCallService{next: next, limiter: limiter}
}

type joinLimitedLiveCallService struct {
	next    LiveCallService
	limiter *ratelimit.Limiter
}

func (s *joinLimitedLiveCallService) allow(user *models.User) error {
	if s.limiter.Allow(user.ID) {
		return nil
	}
	retry := s.limiter.RetryAfterSeconds(user.ID)
	log.Warn().Str("user_id", user.ID).Int("retry_after", retry).Msg("join rate limit exceeded")
	return fmt.Errorf("%w: retry in %ds", pkg.ErrRateLimited, retry)
}

func (s *joinLimitedLiveCallService) RoomURL(ctx context.Context, user *models.User, roomID string) (string, error) {
	if err := s.allow(user); err != nil {
		return "", err
	}
	return s.next.RoomURL(ctx, user, roomID)
}

func (s *joinLimitedLiveCallService) CallURL(ctx context.Context, user *models.User, callID string) (string, error) {
	if err := s.allow(user); err != nil {
		return "", err
	}
	return s.next.CallURL(ctx, user, callID)
}

func (s *joinLimitedLiveCallService) Recordings(ctx context.Context, user *models.User, roomID string) (*models.RecordingsResult, error) {
	return s.next.Recordings(ctx, user, roomID)
}

func (s *joinLimitedLiveCallService) StartDirectCall(ctx context.Context, user *models.User, req *models.CreateDirectCallRequest) (*models.DirectCall, error) {
	if err := s.allow(user); err != nil {
		return nil, err
	}
	return s.next.StartDirectCall(ctx, user, req)
}
