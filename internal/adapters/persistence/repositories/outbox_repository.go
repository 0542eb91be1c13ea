package repositories

import (
	"context"

	"loyaltyhub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// OutboxRepository defines outbox repository interface
type OutboxRepository interface {
	Enqueue(ctx context.Context, event *models.OutboxEvent) error
	ListPending(ctx context.Context, limit int) ([]*models.OutboxEvent, error)
	MarkSent(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint) error
	IncrementRetry(ctx context.Context, id uint) error
}

// outboxRepository implements OutboxRepository interface
type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

// Enqueue stores a pending event
func (r *outboxRepository) Enqueue(ctx context.Context, event *models.OutboxEvent) error {
	event.Status = models.OutboxStatusPending
	return r.db.WithContext(ctx).Create(event).Error
}

// ListPending lists pending events, oldest first
func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]*models.OutboxEvent, error) {
	var rows []*models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkSent marks an event as delivered
func (r *outboxRepository) MarkSent(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Update("status", models.OutboxStatusSent).Error
}

// MarkFailed marks an event as permanently failed
func (r *outboxRepository) MarkFailed(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Update("status", models.OutboxStatusFailed).Error
}

// IncrementRetry bumps the retry count after a delivery failure
func (r *outboxRepository) IncrementRetry(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
}
