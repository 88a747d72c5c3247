package services

import (
	"case_portal_go/models"
	"context"
	"time"

	"gorm.io/gorm"
)

type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// ListNotifications returns a user's notifications, newest first
func (s *NotificationService) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var notifications []models.Notification
	err := query.Order("created_at DESC").Find(&notifications).Error
	return notifications, err
}

// MarkAsRead marks one notification read. Other users' notifications report ErrNotFound.
func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID string) error {
	result := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now()).Error
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

func (s *NotificationService) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return s.DB.WithContext(ctx).Create(notification).Error
}
