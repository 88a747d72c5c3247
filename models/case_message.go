package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseMessage is one entry in a case's conversation thread
type CaseMessage struct {
	ID       string `gorm:"type:uuid;primarykey" json:"id"`
	CaseID   string `gorm:"type:uuid;not null;index:idx_message_case_time" json:"case_id"`
	SenderID string `gorm:"type:uuid;not null" json:"sender_id"`
	Sender   User   `gorm:"foreignKey:SenderID" json:"-"`

	Message  string  `gorm:"type:text" json:"message"`
	File     *string `json:"file,omitempty"` // storage key
	FileName *string `json:"file_name,omitempty"`

	Timestamp time.Time `gorm:"not null;index:idx_message_case_time" json:"timestamp"`
}

func (m *CaseMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return nil
}

func (m *CaseMessage) BeforeUpdate(tx *gorm.DB) error {
	return ErrAppendOnly
}

func (m *CaseMessage) BeforeDelete(tx *gorm.DB) error {
	return ErrAppendOnly
}

// HasFile reports whether the message carries an attachment
func (m *CaseMessage) HasFile() bool {
	return m.File != nil && *m.File != ""
}

func (CaseMessage) TableName() string {
	return "case_messages"
}
