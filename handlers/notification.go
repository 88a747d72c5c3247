package handlers

import (
	"case_portal_go/middleware"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListNotificationsHandler returns the caller's notifications, newest first.
// ?unread=true limits to unread ones.
func (a *API) ListNotificationsHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	ctx := c.Request().Context()

	notifications, err := a.Notifications.ListNotifications(ctx, user.ID, parseBool(c.QueryParam("unread")), 50)
	if err != nil {
		return apiError(c, err)
	}
	unread, err := a.Notifications.UnreadCount(ctx, user.ID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"unread":        unread,
	})
}

func (a *API) MarkNotificationReadHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	if err := a.Notifications.MarkAsRead(c.Request().Context(), c.Param("id"), user.ID); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *API) MarkAllNotificationsReadHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	if err := a.Notifications.MarkAllAsRead(c.Request().Context(), user.ID); err != nil {
		return apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
