package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kickspot/internal/model"
	"kickspot/internal/repository"
	"kickspot/pkg/logger"
)

// manualTypes can be sent by an admin directly. The rest come from domain events.
var manualTypes = map[model.Type]struct{}{
	model.TypePromotion:    {},
	model.TypeSystem:       {},
	model.TypeCartReminder: {},
	model.TypeWishlist:     {},
}

// Inbox is one page of a recipient's notifications plus the unread count, both
// taken at the page's LatestID watermark.
type Inbox struct {
	*model.PageResult
	UnreadCount int
}

// NotificationService serves a recipient's own notifications. Every mutation
// checks ownership first.
type NotificationService struct {
	store   repository.NotificationStore
	emitter *Emitter
	logger  *zap.Logger
}

func NewNotificationService(store repository.NotificationStore, emitter *Emitter, logger *zap.Logger) *NotificationService {
	return &NotificationService{store: store, emitter: emitter, logger: logger}
}

func (s *NotificationService) List(ctx context.Context, r model.Recipient, p model.Page) (*Inbox, error) {
	page, err := s.store.ListFor(ctx, r, p)
	if err != nil {
		return nil, err
	}
	return &Inbox{PageResult: page, UnreadCount: page.Unread}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, r model.Recipient) (int, error) {
	return s.store.UnreadCount(ctx, r)
}

func (s *NotificationService) MarkRead(ctx context.Context, r model.Recipient, id int64) error {
	if _, err := s.owned(ctx, r, id); err != nil {
		return err
	}
	return s.store.MarkRead(ctx, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, r model.Recipient) (int64, error) {
	return s.store.MarkAllRead(ctx, r)
}

func (s *NotificationService) Delete(ctx context.Context, r model.Recipient, id int64) error {
	if _, err := s.owned(ctx, r, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logger.WithTrace(ctx, s.logger).Info("Notification deleted",
		zap.Int64("notification_id", id),
		zap.String("recipient", r.String()),
	)
	return nil
}

// Send lets an admin address a promotion or system notice to any recipient.
func (s *NotificationService) Send(ctx context.Context, d model.Draft) (*model.Notification, error) {
	if _, ok := manualTypes[d.Type]; !ok {
		return nil, &model.ValidationError{Field: "type", Reason: fmt.Sprintf("%q cannot be sent manually", d.Type)}
	}
	return s.emitter.Emit(ctx, d)
}

func (s *NotificationService) owned(ctx context.Context, r model.Recipient, id int64) (*model.Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.BelongsTo(r) {
		return nil, model.ErrForbidden
	}
	return n, nil
}
