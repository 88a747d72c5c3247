package services

import (
	"context"
	"testing"

	"case_portal_go/models"

	"github.com/stretchr/testify/assert"
)

func TestNotificationService(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := NewNotificationService(db)
	alice := createUser(t, db, "alice", false)
	bob := createUser(t, db, "bob", false)

	for _, title := range []string{"one", "two"} {
		assert.NoError(t, svc.CreateNotification(ctx, &models.Notification{UserID: alice.ID, Type: models.NotificationTypeSystem, Title: title}))
	}
	other := &models.Notification{UserID: bob.ID, Type: models.NotificationTypeSystem, Title: "bob's"}
	assert.NoError(t, svc.CreateNotification(ctx, other))

	count, err := svc.UnreadCount(ctx, alice.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.ErrorIs(t, svc.MarkAsRead(ctx, other.ID, alice.ID), ErrNotFound)

	list, _ := svc.ListNotifications(ctx, alice.ID, false, 0)
	assert.NoError(t, svc.MarkAsRead(ctx, list[0].ID, alice.ID))
	count, _ = svc.UnreadCount(ctx, alice.ID)
	assert.Equal(t, int64(1), count)

	assert.NoError(t, svc.MarkAllAsRead(ctx, alice.ID))
	count, _ = svc.UnreadCount(ctx, alice.ID)
	assert.Zero(t, count)

	unread, _ := svc.ListNotifications(ctx, bob.ID, true, 5)
	assert.Len(t, unread, 1)
}
