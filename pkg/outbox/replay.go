package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReplayStore 是重放需要的存储操作
type ReplayStore interface {
	Store
	GetEventByID(ctx context.Context, eventID int64) (*Event, error)
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
}

// ReplayService 提供重放 Outbox 事件的服务
type ReplayService struct {
	repo      ReplayStore
	publisher Publisher
	logger    *zap.Logger
}

// NewReplayService 创建新的 ReplayService
func NewReplayService(repo ReplayStore, publisher Publisher, logger *zap.Logger) *ReplayService {
	return &ReplayService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// ReplayEvent 重放指定的事件
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	event, err := s.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}

	if err := s.publisher.PublishRaw(withPayloadTrace(ctx, event.Payload), event.RoutingKey, event.Payload); err != nil {
		if markErr := s.repo.MarkAsFailed(ctx, eventID, event.RetryCount+1); markErr != nil {
			return fmt.Errorf("failed to publish and mark as failed: %w (mark error: %v)", err, markErr)
		}
		return fmt.Errorf("failed to publish: %w", err)
	}

	if err := s.repo.MarkAsSent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to mark as sent: %w", err)
	}
	return nil
}

// ReplayFailedEvents 重放所有失败的事件，返回成功数量
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	successCount := 0
	for _, event := range events {
		if err := s.ReplayEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Replay failed",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		successCount++
	}

	return successCount, nil
}
