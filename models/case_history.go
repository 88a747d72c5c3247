package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAppendOnly is returned by hooks guarding append-only tables
var ErrAppendOnly = errors.New("record is append-only")

// CaseHistory is one immutable audit entry on a case
type CaseHistory struct {
	ID     string `gorm:"type:uuid;primarykey" json:"id"`
	CaseID string `gorm:"type:uuid;not null;index:idx_history_case_time" json:"case_id"`
	Action string `gorm:"size:255;not null" json:"action"`
	// Reference points at an uploaded file when the action is an upload
	Reference *string `json:"reference,omitempty"`

	// Nil when an anonymous citizen's action must not be attributed
	PerformedByID *string `gorm:"type:uuid" json:"performed_by_id,omitempty"`
	PerformedBy   *User   `gorm:"foreignKey:PerformedByID" json:"performed_by,omitempty"`

	Timestamp time.Time `gorm:"not null;index:idx_history_case_time" json:"timestamp"`
}

func (h *CaseHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now()
	}
	return nil
}

// BeforeUpdate prevents modification of history entries
func (h *CaseHistory) BeforeUpdate(tx *gorm.DB) error {
	return ErrAppendOnly
}

// BeforeDelete prevents deletion of history entries
func (h *CaseHistory) BeforeDelete(tx *gorm.DB) error {
	return ErrAppendOnly
}

func (CaseHistory) TableName() string {
	return "case_history"
}
