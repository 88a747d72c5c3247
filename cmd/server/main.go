package main

import (
	"case_portal_go/config"
	"case_portal_go/db"
	"case_portal_go/handlers"
	"case_portal_go/middleware"
	"case_portal_go/models"
	"case_portal_go/services"
	"case_portal_go/services/jobs"
	"case_portal_go/services/lifecycle"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	if err := db.Initialize(db.Options{
		Path:        cfg.DBPath,
		TursoURL:    cfg.TursoDatabaseURL,
		TursoToken:  cfg.TursoAuthToken,
		Environment: cfg.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(
		&models.User{}, &models.Group{}, &models.Session{},
		&models.Case{}, &models.CaseHistory{}, &models.CaseMessage{},
		&models.Notification{}, &models.AuditLog{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var machineOpts []lifecycle.Option
	if cfg.FormalAssignment {
		machineOpts = append(machineOpts, lifecycle.WithFormalAssignment())
		log.Println("[LIFECYCLE] Formal assignment enabled")
	}

	files := services.NewFileStore(cfg)
	metrics := services.NewMetrics()
	cases := services.NewCaseService(db.DB, lifecycle.New(machineOpts...),
		services.WithFileStore(files),
		services.WithNotifier(services.NewNotifier(cfg, db.DB)),
		services.WithReportRenderer(services.NewChromeRenderer(cfg.ChromePath)),
		services.WithMetrics(metrics),
	)
	api := handlers.NewAPI(cfg, db.DB, cases, files, metrics)

	// Background jobs: expired sessions and stale rate-limit windows
	scheduler, err := jobs.StartScheduler(db.DB, jobs.Job{
		Name: "rate-limit-sweep",
		Spec: "*/5 * * * *",
		Run:  func() { middleware.SweepAll() },
	})
	if err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(echomiddleware.RequestLogger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit("20M"))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	// Locally stored uploads
	e.Static("/"+cfg.UploadDir, cfg.UploadDir)

	api.RegisterRoutes(e)

	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
