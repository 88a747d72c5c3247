package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction represents the type of account-level operation performed
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
	AuditActionLogin  AuditAction = "LOGIN"
	AuditActionLogout AuditAction = "LOGOUT"
)

// AuditLog records account and security events. Case activity lives in CaseHistory.
type AuditLog struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_audit_created_at" json:"created_at"`

	UserID   *string `gorm:"type:uuid;index:idx_audit_user" json:"user_id,omitempty"`
	UserName string  `json:"user_name"` // Denormalized for historical accuracy
	UserRole string  `json:"user_role"`

	ResourceType string      `gorm:"not null;index:idx_audit_resource" json:"resource_type"`
	ResourceID   string      `gorm:"not null;index:idx_audit_resource" json:"resource_id"`
	Action       AuditAction `gorm:"not null;index:idx_audit_action" json:"action"`
	Description  string      `gorm:"type:text" json:"description,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// BeforeUpdate prevents modification of audit logs (immutability)
func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrAppendOnly
}

// BeforeDelete prevents deletion of audit logs (immutability)
func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return ErrAppendOnly
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
