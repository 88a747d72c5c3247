package handlers

import (
	"case_portal_go/config"
	"case_portal_go/middleware"
	"case_portal_go/services"
	"case_portal_go/services/policy"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// API holds the services behind the HTTP surface
type API struct {
	DB            *gorm.DB
	Config        *config.Config
	Cases         *services.CaseService
	Accounts      *services.AccountService
	Notifications *services.NotificationService
	Metrics       *services.Metrics
}

// NewAPI wires the account and notification services around a case service
func NewAPI(cfg *config.Config, database *gorm.DB, cases *services.CaseService, files services.FileStore, metrics *services.Metrics) *API {
	return &API{
		DB:            database,
		Config:        cfg,
		Cases:         cases,
		Accounts:      services.NewAccountService(database, files),
		Notifications: services.NewNotificationService(database),
		Metrics:       metrics,
	}
}

// RegisterRoutes mounts every endpoint on e
func (a *API) RegisterRoutes(e *echo.Echo) {
	// Make config available to handlers and middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("config", a.Config)
			return next(c)
		}
	})

	// Public routes
	e.GET("/healthz", a.HealthHandler)
	if a.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	public := e.Group("/api")
	public.POST("/register", a.RegisterHandler, middleware.RegisterRateLimiter.Middleware())
	public.POST("/login", a.LoginHandler, middleware.LoginRateLimiter.Middleware())

	// Authenticated routes
	protected := e.Group("/api")
	protected.Use(middleware.RequireAuth())
	protected.Use(middleware.AuditContext())
	{
		protected.POST("/logout", a.LogoutHandler)
		protected.GET("/me", a.MeHandler)
		protected.PUT("/me", a.UpdateProfileHandler)
		protected.PUT("/me/password", a.ChangePasswordHandler)

		protected.POST("/cases", a.CreateCaseHandler)
		protected.GET("/cases", a.ListCasesHandler)
		protected.GET("/cases/stats", a.CaseStatsHandler)
		protected.GET("/cases/:id", a.GetCaseHandler)
		protected.POST("/cases/:id/transition", a.TransitionCaseHandler)
		protected.POST("/cases/:id/start", a.StartOperatingHandler)
		protected.PUT("/cases/:id/notes", a.UpdateNotesHandler)
		protected.GET("/cases/:id/history", a.CaseHistoryHandler)
		protected.GET("/cases/:id/messages", a.ListMessagesHandler)
		protected.POST("/cases/:id/messages", a.PostMessageHandler)
		protected.POST("/cases/:id/report", a.GenerateReportHandler)

		protected.GET("/notifications", a.ListNotificationsHandler)
		protected.POST("/notifications/read-all", a.MarkAllNotificationsReadHandler)
		protected.POST("/notifications/:id/read", a.MarkNotificationReadHandler)

		// Admin-only routes
		admin := protected.Group("")
		admin.Use(middleware.RequireCapability(policy.CapAdmin))
		{
			admin.POST("/cases/:id/approve", a.ApproveCaseHandler)
			admin.POST("/cases/:id/assign", a.AssignCaseHandler)
			admin.GET("/cases/export", a.ExportCasesHandler)
			admin.GET("/cases/per-day", a.AdminOverviewHandler)
			admin.GET("/handlers", a.ListHandlersHandler)
			admin.POST("/handlers", a.AddHandlerHandler)
			admin.DELETE("/handlers/:id", a.RemoveHandlerHandler)
			admin.GET("/users", a.ListUsersHandler)
			admin.DELETE("/users/:id", a.RemoveUserHandler)
			admin.GET("/users/:id/audit", a.UserAuditHandler)
		}
	}
}

// HealthHandler reports database reachability
func (a *API) HealthHandler(c echo.Context) error {
	sqlDB, err := a.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request().Context())
	}
	if err != nil {
		c.Logger().Errorf("health check failed: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
