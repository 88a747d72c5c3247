package middleware

import (
	"case_portal_go/config"
	"case_portal_go/db"
	"case_portal_go/models"
	"case_portal_go/services"
	"case_portal_go/services/policy"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "case_portal_session"
	// ContextKeyUser is the context key for the authenticated user
	ContextKeyUser = "user"
	// ContextKeyPrincipal is the context key for the resolved capabilities
	ContextKeyPrincipal = "principal"
	// ContextKeySession is the context key for the session
	ContextKeySession = "session"
)

// RequireAuth is middleware that requires a valid session cookie
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}

			session, err := services.ValidateSession(db.DB, cookie.Value)
			if err != nil {
				ClearSessionCookie(c)
				return echo.NewHTTPError(http.StatusUnauthorized, "Session expired")
			}

			if !session.User.IsActive {
				ClearSessionCookie(c)
				return echo.NewHTTPError(http.StatusUnauthorized, "Account is deactivated")
			}

			// Capabilities are resolved once per request from the stored groups
			c.Set(ContextKeyUser, &session.User)
			c.Set(ContextKeyPrincipal, policy.PrincipalFor(&session.User))
			c.Set(ContextKeySession, session)

			return next(c)
		}
	}
}

// RequireCapability rejects principals lacking any of the given capabilities
func RequireCapability(caps policy.Capabilities) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !GetPrincipal(c).Caps.Has(caps) {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}

// GetCurrentUser retrieves the current user from context
func GetCurrentUser(c echo.Context) *models.User {
	user, ok := c.Get(ContextKeyUser).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetPrincipal retrieves the current principal. Anonymous requests get the zero value.
func GetPrincipal(c echo.Context) policy.Principal {
	p, ok := c.Get(ContextKeyPrincipal).(policy.Principal)
	if !ok {
		return policy.Principal{}
	}
	return p
}

// GetCurrentSession retrieves the session backing this request
func GetCurrentSession(c echo.Context) *models.Session {
	session, ok := c.Get(ContextKeySession).(*models.Session)
	if !ok {
		return nil
	}
	return session
}

func isProduction(c echo.Context) bool {
	if cfg, ok := c.Get("config").(*config.Config); ok {
		return cfg.IsProduction()
	}
	return false
}

// SetSessionCookie writes the session token cookie
func SetSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(services.DefaultSessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   isProduction(c),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie clears the session cookie
func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isProduction(c),
		SameSite: http.SameSiteLaxMode,
	})
}
