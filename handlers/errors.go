package handlers

import (
	"case_portal_go/services"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// apiError translates service errors into HTTP responses
func apiError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, services.ErrInvalidTransition):
		// The message names the rejected target status
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrEmptyContent):
		return echo.NewHTTPError(http.StatusBadRequest, "Message must contain text or a file")
	case errors.Is(err, services.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid username or password")
	}
	c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}
