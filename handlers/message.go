package handlers

import (
	"case_portal_go/middleware"
	"case_portal_go/services"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListMessagesHandler returns the case thread oldest first
func (a *API) ListMessagesHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	messages, err := a.Cases.ListMessages(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return apiError(c, err)
	}
	found, err := a.Cases.GetCase(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return apiError(c, err)
	}

	views := make([]messageView, 0, len(messages))
	for i := range messages {
		views = append(views, a.toMessageView(&messages[i], found, p))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messages": views})
}

// PostMessageHandler appends a message. Text, a file, or both are accepted.
func (a *API) PostMessageHandler(c echo.Context) error {
	var file *services.Attachment
	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		att, closer, err := services.AttachmentFromMultipart(fh)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Could not read uploaded file")
		}
		defer closer.Close()
		file = att
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid form data")
	}

	p := middleware.GetPrincipal(c)
	msg, err := a.Cases.PostMessage(c.Request().Context(), c.Param("id"), p, c.FormValue("message"), file)
	if err != nil {
		return apiError(c, err)
	}
	found, err := a.Cases.GetCase(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, a.toMessageView(msg, found, p))
}
