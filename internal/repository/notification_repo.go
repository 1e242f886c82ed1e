package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pgrabow/notify-hub/internal/domain"
)

type NotificationRepository interface {
	Save(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string, recipient string) (bool, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

// Save upserts by primary key. Redelivered events carry fresh ids so today
// every save is an insert; the conflict clause is the seam for id-stable
// producers.
func (r *GormNotificationRepo) Save(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
	if err != nil {
		return storageErr("save notification", err)
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get notification", err)
	}
	return notificationModelToDomain(&model), nil
}

// ListByRecipient returns the recipient's notifications newest first. A
// limit below 1 returns the full history.
func (r *GormNotificationRepo) ListByRecipient(ctx context.Context, recipient string, limit int) ([]domain.Notification, error) {
	query := r.db.WithContext(ctx).
		Where("recipient = ?", recipient).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []NotificationModel
	if err := query.Find(&models).Error; err != nil {
		return nil, storageErr("list notifications", err)
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, nil
}

// MarkRead flips the read flag when the record exists, belongs to the
// recipient, and is still unread. The transition is monotone, so an
// already-read record needs no write at all. It reports whether a row
// changed; callers that need to tell a missing record from a foreign or
// already-read one refetch by id.
func (r *GormNotificationRepo) MarkRead(ctx context.Context, id string, recipient string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND recipient = ? AND read = ?", id, recipient, false).
		Update("read", true)
	if result.Error != nil {
		return false, storageErr("mark notification read", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}
