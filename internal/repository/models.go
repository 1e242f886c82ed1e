package repository

import (
	"time"

	"github.com/pgrabow/notify-hub/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID              string                `gorm:"type:uuid;primaryKey"`
	Recipient       string                `gorm:"type:varchar(255);not null"`
	Kind            string                `gorm:"type:varchar(64);not null"`
	Subject         string                `gorm:"type:text"`
	Body            string                `gorm:"type:text;not null"`
	DispatchStatus  domain.DispatchStatus `gorm:"type:varchar(10);not null"`
	Read            bool                  `gorm:"not null;default:false"`
	RelatedEntityID *string               `gorm:"type:varchar(255)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:              n.ID,
		Recipient:       n.Recipient,
		Kind:            n.Kind,
		Subject:         n.Subject,
		Body:            n.Body,
		DispatchStatus:  n.DispatchStatus,
		Read:            n.Read,
		RelatedEntityID: n.RelatedEntityID,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:              m.ID,
		Recipient:       m.Recipient,
		Kind:            m.Kind,
		Subject:         m.Subject,
		Body:            m.Body,
		DispatchStatus:  m.DispatchStatus,
		Read:            m.Read,
		RelatedEntityID: m.RelatedEntityID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
