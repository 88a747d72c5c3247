package jobs

import (
	"fmt"
	"log"

	"case_portal_go/services"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SessionCleanupSpec runs the cleanup at minute 0 of every hour
const SessionCleanupSpec = "0 * * * *"

// Job is an extra periodic task supplied by the caller
type Job struct {
	Name string
	Spec string
	Run  func()
}

// StartScheduler registers the background jobs and starts the cron runner.
// Callers stop it on shutdown.
func StartScheduler(database *gorm.DB, extra ...Job) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(SessionCleanupSpec, func() { CleanupSessions(database) }); err != nil {
		return nil, err
	}
	for _, job := range extra {
		if _, err := c.AddFunc(job.Spec, job.Run); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", job.Name, err)
		}
	}

	c.Start()
	log.Println("[CRON] Scheduler started")
	return c, nil
}

// CleanupSessions removes expired sessions and logs how many went
func CleanupSessions(database *gorm.DB) {
	removed, err := services.CleanupExpiredSessions(database)
	if err != nil {
		log.Printf("[CRON] Session cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[CRON] Removed %d expired sessions", removed)
	}
}
