package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Case status values. Assigned is written by assignment and sits outside the
// formal transition table unless formal assignment is enabled.
const (
	CaseStatusPending        = "Pending"
	CaseStatusApproved       = "Approved"
	CaseStatusAssigned       = "Assigned"
	CaseStatusInProgress     = "In Progress"
	CaseStatusWaitingForInfo = "Waiting for Info"
	CaseStatusResolved       = "Resolved"
	CaseStatusClosed         = "Closed"
)

// Case represents a reported incident
type Case struct {
	ID        string    `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	Title         string     `gorm:"size:200;not null" json:"title"`
	Description   string     `gorm:"type:text;not null" json:"description"`
	Location      *string    `gorm:"size:200" json:"location,omitempty"`
	IncidentDate  *time.Time `json:"incident_date,omitempty"`
	SuspectName   *string    `gorm:"size:200" json:"suspect_name,omitempty"`
	Witnesses     *string    `gorm:"type:text" json:"witnesses,omitempty"`
	ProgressNotes *string    `gorm:"type:text" json:"progress_notes,omitempty"`
	IsAnonymous   bool       `gorm:"not null;default:false" json:"is_anonymous"`

	Status string `gorm:"not null;default:Pending;index" json:"status"`

	// Ownership is always recorded, even for anonymous cases
	CreatedByID  string  `gorm:"type:uuid;not null;index" json:"-"`
	CreatedBy    User    `gorm:"foreignKey:CreatedByID" json:"-"`
	AssignedToID *string `gorm:"type:uuid;index" json:"assigned_to_id,omitempty"`
	AssignedTo   *User   `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`

	// Storage keys
	UploadedFile *string `json:"uploaded_file,omitempty"`
	ReportFile   *string `json:"report_file,omitempty"`
}

// ErrInvalidCaseStatus is returned when a case would be stored with an undefined status
var ErrInvalidCaseStatus = errors.New("invalid case status")

// BeforeCreate hook to generate UUID and default status
func (c *Case) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = CaseStatusPending
	}
	if !IsValidCaseStatus(c.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidCaseStatus, c.Status)
	}
	return nil
}

// TableName specifies the table name for Case model
func (Case) TableName() string {
	return "cases"
}

// IsClosed checks if the case is closed
func (c *Case) IsClosed() bool {
	return c.Status == CaseStatusClosed
}

// IsAssignedTo reports whether userID is the current assignee
func (c *Case) IsAssignedTo(userID string) bool {
	return c.AssignedToID != nil && userID != "" && *c.AssignedToID == userID
}

// CreatorName returns the creator's username, hidden for anonymous cases
func (c *Case) CreatorName() string {
	if c.IsAnonymous {
		return "Anonymous"
	}
	return c.CreatedBy.Username
}

// AssigneeName returns the assignee's username or an empty string
func (c *Case) AssigneeName() string {
	if c.AssignedTo == nil {
		return ""
	}
	return c.AssignedTo.Username
}

// IsValidCaseStatus checks if the status is one the store may hold
func IsValidCaseStatus(status string) bool {
	switch status {
	case CaseStatusPending, CaseStatusApproved, CaseStatusAssigned, CaseStatusInProgress,
		CaseStatusWaitingForInfo, CaseStatusResolved, CaseStatusClosed:
		return true
	}
	return false
}
