package services

import (
	"case_portal_go/models"
	"log"
	"strings"

	"gorm.io/gorm"
)

// HistoryOrder selects how case history is returned
type HistoryOrder int

const (
	OrderChronological HistoryOrder = iota
	OrderRecentFirst
)

// ParseHistoryOrder accepts "recent" or "desc" for newest first; anything else is chronological
func ParseHistoryOrder(s string) HistoryOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recent", "desc", "recent_first":
		return OrderRecentFirst
	}
	return OrderChronological
}

// AppendCaseHistory writes one audit entry. Pass the transaction that performs
// the mutation being recorded so both commit or neither does.
func AppendCaseHistory(tx *gorm.DB, caseID, action string, reference, performedBy *string) (*models.CaseHistory, error) {
	entry := &models.CaseHistory{
		CaseID:        caseID,
		Action:        action,
		Reference:     reference,
		PerformedByID: performedBy,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// GetCaseHistory returns a case's entries. Ties on timestamp fall back to insertion order.
func GetCaseHistory(db *gorm.DB, caseID string, order HistoryOrder) ([]models.CaseHistory, error) {
	orderBy := "timestamp ASC, rowid ASC"
	if order == OrderRecentFirst {
		orderBy = "timestamp DESC, rowid DESC"
	}

	var entries []models.CaseHistory
	err := db.Preload("PerformedBy").
		Where("case_id = ?", caseID).
		Order(orderBy).
		Find(&entries).Error
	return entries, err
}

// AuditContext contains contextual information for account-level audit logging
type AuditContext struct {
	UserID    string
	UserName  string
	UserRole  string
	IPAddress string
	UserAgent string
}

// LogAuditEvent creates an account audit log entry asynchronously
func LogAuditEvent(db *gorm.DB, ctx AuditContext, action models.AuditAction, resourceType, resourceID, description string) {
	// Run in goroutine to avoid blocking the request
	go func() {
		entry := models.AuditLog{
			UserID:       ptrIfNotEmpty(ctx.UserID),
			UserName:     ctx.UserName,
			UserRole:     ctx.UserRole,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Action:       action,
			Description:  description,
			IPAddress:    ctx.IPAddress,
			UserAgent:    ctx.UserAgent,
		}
		if err := db.Create(&entry).Error; err != nil {
			log.Printf("[AUDIT] Failed to create audit log: %v", err)
		}
	}()
}

// GetResourceAuditHistory retrieves the account audit trail for one resource
func GetResourceAuditHistory(db *gorm.DB, resourceType, resourceID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// LogSecurityEvent logs security-related events to the standard log and the audit table
func LogSecurityEvent(db *gorm.DB, eventType, userID, details string) {
	log.Printf("[SECURITY] %s | User: %s | Details: %s", eventType, userID, details)

	go func() {
		entry := models.AuditLog{
			UserID:       ptrIfNotEmpty(userID),
			Action:       models.AuditAction("SECURITY"),
			ResourceType: "SECURITY_EVENT",
			ResourceID:   eventType,
			Description:  details,
		}
		if err := db.Create(&entry).Error; err != nil {
			log.Printf("[AUDIT] Failed to create security audit log: %v", err)
		}
	}()
}

// ptrIfNotEmpty returns a pointer to the string if not empty, nil otherwise
func ptrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
