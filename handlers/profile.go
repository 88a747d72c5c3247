package handlers

import (
	"case_portal_go/middleware"
	"case_portal_go/models"
	"case_portal_go/services"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type profileRequest struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
}

type passwordRequest struct {
	OldPassword  string `json:"old_password" form:"old_password"`
	NewPassword  string `json:"new_password" form:"new_password"`
	NewPassword2 string `json:"new_password2" form:"new_password2"`
}

type meResponse struct {
	userView
	ProfileImage        string `json:"profile_image,omitempty"`
	UnreadNotifications int64  `json:"unread_notifications"`
}

// MeHandler returns the signed-in account
func (a *API) MeHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	unread, err := a.Notifications.UnreadCount(c.Request().Context(), user.ID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, meResponse{
		userView:            toUserView(user),
		ProfileImage:        a.Cases.URLFor(user.ProfileImage),
		UnreadNotifications: unread,
	})
}

// UpdateProfileHandler edits username, email, phone and picture.
// Multipart bodies may carry a profile_image file.
func (a *API) UpdateProfileHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	var in services.ProfileUpdate

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid form data")
		}
		in.Username = formField(form.Value, "username")
		in.Email = formField(form.Value, "email")
		in.PhoneNumber = formField(form.Value, "phone_number")
		if files := form.File["profile_image"]; len(files) > 0 {
			image, closer, err := services.AttachmentFromMultipart(files[0])
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Could not read profile image")
			}
			defer closer.Close()
			in.Image = image
		}
	} else {
		var req profileRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
		}
		in.Username, in.Email, in.PhoneNumber = req.Username, req.Email, req.PhoneNumber
	}

	updated, err := a.Accounts.UpdateProfile(c.Request().Context(), user.ID, in)
	if err != nil {
		return apiError(c, err)
	}
	services.LogAuditEvent(a.DB, middleware.GetAuditContext(c), models.AuditActionUpdate, "User", user.ID, "Profile updated")
	return c.JSON(http.StatusOK, toUserView(updated))
}

func formField(values map[string][]string, key string) *string {
	v, ok := values[key]
	if !ok || len(v) == 0 {
		return nil
	}
	return &v[0]
}

// ChangePasswordHandler replaces the password and signs out other devices
func (a *API) ChangePasswordHandler(c echo.Context) error {
	user := middleware.GetCurrentUser(c)
	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.NewPassword2 != "" && req.NewPassword != req.NewPassword2 {
		return echo.NewHTTPError(http.StatusBadRequest, "Passwords do not match")
	}

	keep := ""
	if session := middleware.GetCurrentSession(c); session != nil {
		keep = session.Token
	}
	err := a.Accounts.ChangePassword(c.Request().Context(), user.ID, req.OldPassword, req.NewPassword, keep)
	if errors.Is(err, services.ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusBadRequest, "Current password is incorrect")
	}
	if err != nil {
		return apiError(c, err)
	}

	services.LogSecurityEvent(a.DB, "PASSWORD_CHANGED", user.ID, "Password changed, other sessions revoked")
	return c.JSON(http.StatusOK, map[string]string{"message": "Password updated"})
}
