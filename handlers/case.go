package handlers

import (
	"case_portal_go/middleware"
	"case_portal_go/services"
	"case_portal_go/services/policy"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type transitionRequest struct {
	Status string `json:"status" form:"status"`
}

type notesRequest struct {
	ProgressNotes string `json:"progress_notes" form:"progress_notes"`
}

type assignRequest struct {
	HandlerID string `json:"handler_id" form:"handler_id"`
}

type caseListResponse struct {
	Scope   policy.Scope      `json:"scope"`
	Bucket  services.Bucket   `json:"bucket"`
	Buckets []services.Bucket `json:"buckets"`
	Query   string            `json:"q,omitempty"`
	Cases   []caseView        `json:"cases"`
}

func optionalField(c echo.Context, name string) *string {
	v := strings.TrimSpace(c.FormValue(name))
	if v == "" {
		return nil
	}
	return &v
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

// CreateCaseHandler registers a case from a form. The evidence file is optional.
func (a *API) CreateCaseHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)

	fields := services.CaseFields{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Location:    optionalField(c, "location"),
		SuspectName: optionalField(c, "suspect_name"),
		Witnesses:   optionalField(c, "witnesses"),
	}
	if raw := optionalField(c, "incident_date"); raw != nil {
		day, err := time.Parse(time.DateOnly, *raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "incident_date must be YYYY-MM-DD")
		}
		fields.IncidentDate = &day
	}

	var evidence *services.Attachment
	fh, err := c.FormFile("uploaded_file")
	switch {
	case err == nil:
		att, closer, err := services.AttachmentFromMultipart(fh)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Could not read uploaded file")
		}
		defer closer.Close()
		evidence = att
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid form data")
	}

	created, err := a.Cases.RegisterCase(c.Request().Context(), fields, p, parseBool(c.FormValue("is_anonymous")), evidence)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, a.toCaseView(created, p))
}

// ListCasesHandler serves the directory views: ?scope=&bucket=&q=
func (a *API) ListCasesHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	f := services.DirectoryFilter{
		Scope:  policy.Scope(c.QueryParam("scope")),
		Bucket: services.Bucket(c.QueryParam("bucket")),
		Query:  c.QueryParam("q"),
	}.Normalize(p)

	cases, err := services.ListCases(c.Request().Context(), a.DB, p, f)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, caseListResponse{
		Scope:   f.Scope,
		Bucket:  f.Bucket,
		Buckets: services.BucketsFor(f.Scope),
		Query:   f.Query,
		Cases:   a.toCaseViews(cases, p),
	})
}

// CaseStatsHandler returns per-bucket counts and percentages for a scope
func (a *API) CaseStatsHandler(c echo.Context) error {
	stats, err := services.Stats(c.Request().Context(), a.DB, middleware.GetPrincipal(c), policy.Scope(c.QueryParam("scope")))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// GetCaseHandler returns one case with the transitions open to the caller
func (a *API) GetCaseHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	found, err := a.Cases.GetCase(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return apiError(c, err)
	}
	view := a.toCaseView(found, p)
	view.Transitions = transitionViews(a.Cases.AvailableTransitions(found, p))
	view.CanStartOperating = a.Cases.CanStartOperating(found, p)
	return c.JSON(http.StatusOK, view)
}

// StartOperatingHandler lets the assignee take up an Assigned case
func (a *API) StartOperatingHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	updated, err := a.Cases.StartOperating(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, a.toCaseView(updated, p))
}

// TransitionCaseHandler moves a case to the requested status
func (a *API) TransitionCaseHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Status) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}

	updated, err := a.Cases.Transition(c.Request().Context(), c.Param("id"), req.Status, p)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, a.toCaseView(updated, p))
}

// UpdateNotesHandler replaces the assignee's progress notes
func (a *API) UpdateNotesHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	var req notesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	updated, err := a.Cases.UpdateProgressNotes(c.Request().Context(), c.Param("id"), req.ProgressNotes, p)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, a.toCaseView(updated, p))
}

// CaseHistoryHandler returns the audit trail. ?order=recent puts newest first.
func (a *API) CaseHistoryHandler(c echo.Context) error {
	order := services.ParseHistoryOrder(c.QueryParam("order"))
	entries, err := a.Cases.GetHistory(c.Request().Context(), c.Param("id"), middleware.GetPrincipal(c), order)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": historyViews(entries)})
}

// GenerateReportHandler renders the PDF report and returns a download link
func (a *API) GenerateReportHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	ctx := c.Request().Context()

	updated, _, err := a.Cases.GenerateReport(ctx, c.Param("id"), p)
	if err != nil {
		return apiError(c, err)
	}
	link, err := a.Cases.ReportURL(ctx, updated)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"case":       a.toCaseView(updated, p),
		"report_url": link,
	})
}

// ApproveCaseHandler moves a pending case to Approved
func (a *API) ApproveCaseHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	updated, err := a.Cases.Approve(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, a.toCaseView(updated, p))
}

// AssignCaseHandler gives a case to a handler and reports how they were notified
func (a *API) AssignCaseHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.HandlerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "handler_id is required")
	}

	updated, delivery, err := a.Cases.Assign(c.Request().Context(), c.Param("id"), req.HandlerID, p)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"case":         a.toCaseView(updated, p),
		"notification": toDeliveryView(delivery),
	})
}

// ExportCasesHandler downloads the selected directory view as a workbook
func (a *API) ExportCasesHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	f := services.DirectoryFilter{
		Scope:  policy.Scope(c.QueryParam("scope")),
		Bucket: services.Bucket(c.QueryParam("bucket")),
		Query:  c.QueryParam("q"),
	}
	cases, err := services.ListCases(c.Request().Context(), a.DB, p, f)
	if err != nil {
		return apiError(c, err)
	}

	buf, err := services.ExportCasesXLSX(cases)
	if err != nil {
		return apiError(c, err)
	}
	filename := fmt.Sprintf("cases_%s.xlsx", time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// AdminOverviewHandler returns the dashboard: bucket stats, registrations per
// day (?days=, default 7) and account counts.
func (a *API) AdminOverviewHandler(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	ctx := c.Request().Context()

	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 90 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be between 1 and 90")
		}
		days = n
	}

	stats, err := services.Stats(ctx, a.DB, p, policy.ScopeAll)
	if err != nil {
		return apiError(c, err)
	}
	perDay, err := services.CasesPerDay(ctx, a.DB, days, time.Now())
	if err != nil {
		return apiError(c, err)
	}
	users, handlers, err := a.Accounts.Counts(ctx)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, services.AdminOverview{
		Stats:         stats,
		CasesPerDay:   perDay,
		UsersCount:    users,
		HandlersCount: handlers,
	})
}
