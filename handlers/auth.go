package handlers

import (
	"case_portal_go/middleware"
	"case_portal_go/models"
	"case_portal_go/services"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Username    string `json:"username" form:"username"`
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	Password2   string `json:"password2" form:"password2"`
	PhoneNumber string `json:"phone_number" form:"phone_number"`
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// RegisterHandler creates a citizen account and signs it in
func (a *API) RegisterHandler(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Password2 != "" && req.Password2 != req.Password {
		return echo.NewHTTPError(http.StatusBadRequest, "Passwords do not match")
	}

	ctx := c.Request().Context()
	user, err := a.Accounts.RegisterUser(ctx, services.NewAccount{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return apiError(c, err)
	}

	auditCtx := middleware.GetAuditContext(c)
	auditCtx.UserID = user.ID
	auditCtx.UserName = user.Username
	auditCtx.UserRole = "user"
	services.LogAuditEvent(a.DB, auditCtx, models.AuditActionCreate, "User", user.ID, "User registered")

	if err := a.startSession(c, user); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toUserView(user))
}

// LoginHandler checks credentials and sets the session cookie
func (a *API) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	user, err := services.Authenticate(a.DB, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			services.LogSecurityEvent(a.DB, "LOGIN_FAILED", "", fmt.Sprintf("username=%q ip=%s", req.Username, c.RealIP()))
		}
		return apiError(c, err)
	}

	if err := a.startSession(c, user); err != nil {
		return err
	}

	auditCtx := middleware.GetAuditContext(c)
	auditCtx.UserID = user.ID
	auditCtx.UserName = user.Username
	auditCtx.UserRole = toUserView(user).Role
	services.LogAuditEvent(a.DB, auditCtx, models.AuditActionLogin, "User", user.ID, "User logged in")

	return c.JSON(http.StatusOK, toUserView(user))
}

func (a *API) startSession(c echo.Context, user *models.User) error {
	session, err := services.CreateSession(a.DB, user.ID, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}
	middleware.SetSessionCookie(c, session.Token)
	return nil
}

// LogoutHandler ends the current session
func (a *API) LogoutHandler(c echo.Context) error {
	if user := middleware.GetCurrentUser(c); user != nil {
		services.LogAuditEvent(a.DB, middleware.GetAuditContext(c), models.AuditActionLogout, "User", user.ID, "User logged out")
	}

	if cookie, err := c.Cookie(middleware.SessionCookieName); err == nil {
		if err := services.DeleteSession(a.DB, cookie.Value); err != nil {
			c.Logger().Warnf("logout: %v", err)
		}
	}
	middleware.ClearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}
