package handlers

import (
	"case_portal_go/middleware"
	"case_portal_go/models"
	"case_portal_go/services"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListHandlersHandler lists accounts that can be assigned cases
func (a *API) ListHandlersHandler(c echo.Context) error {
	users, err := a.Accounts.ListHandlers(c.Request().Context(), middleware.GetPrincipal(c))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, toUserViews(users))
}

// AddHandlerHandler creates a handler account
func (a *API) AddHandlerHandler(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	user, err := a.Accounts.AddHandler(c.Request().Context(), middleware.GetPrincipal(c), services.NewAccount{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return apiError(c, err)
	}

	services.LogAuditEvent(a.DB, middleware.GetAuditContext(c), models.AuditActionCreate, "User", user.ID, "Handler "+user.Username+" added")
	return c.JSON(http.StatusCreated, toUserView(user))
}

// RemoveHandlerHandler deletes a handler account
func (a *API) RemoveHandlerHandler(c echo.Context) error {
	id := c.Param("id")
	if err := a.Accounts.RemoveHandler(c.Request().Context(), middleware.GetPrincipal(c), id); err != nil {
		return apiError(c, err)
	}
	services.LogAuditEvent(a.DB, middleware.GetAuditContext(c), models.AuditActionDelete, "User", id, "Handler removed")
	return c.NoContent(http.StatusNoContent)
}

// ListUsersHandler lists citizen accounts
func (a *API) ListUsersHandler(c echo.Context) error {
	users, err := a.Accounts.ListUsers(c.Request().Context(), middleware.GetPrincipal(c))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, toUserViews(users))
}

// RemoveUserHandler deletes a citizen account
func (a *API) RemoveUserHandler(c echo.Context) error {
	id := c.Param("id")
	if err := a.Accounts.RemoveUser(c.Request().Context(), middleware.GetPrincipal(c), id); err != nil {
		return apiError(c, err)
	}
	services.LogAuditEvent(a.DB, middleware.GetAuditContext(c), models.AuditActionDelete, "User", id, "User removed")
	return c.NoContent(http.StatusNoContent)
}

// UserAuditHandler returns the account audit trail of one user, newest first
func (a *API) UserAuditHandler(c echo.Context) error {
	logs, err := services.GetResourceAuditHistory(a.DB.WithContext(c.Request().Context()), "User", c.Param("id"))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"audit_logs": logs})
}
