package services

import (
	"context"
	"fmt"

	"case_portal_go/models"
	"case_portal_go/services/policy"

	"gorm.io/gorm"
)

// PostMessage appends to a case thread. A message needs text, a file, or both.
// An attached file also lands in the case history with its URL.
func (s *CaseService) PostMessage(ctx context.Context, caseID string, sender policy.Principal, text string, file *Attachment) (*models.CaseMessage, error) {
	c, err := s.loadCase(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	if !policy.CanMessage(sender, c) {
		s.metrics.rejected("message", ErrUnauthorized)
		return nil, ErrUnauthorized
	}

	clean := s.cleanText(text)
	if clean == "" && file == nil {
		s.metrics.rejected("message", ErrEmptyContent)
		return nil, ErrEmptyContent
	}

	msg := &models.CaseMessage{
		CaseID:    c.ID,
		SenderID:  sender.ID,
		Message:   clean,
		Timestamp: s.now(),
	}

	var stored *StoredObject
	if file != nil {
		stored, err = s.store(ctx, c.ID, keyKindChat, file)
		if err != nil {
			return nil, err
		}
		name := file.Name
		msg.File = &stored.Key
		msg.FileName = &name
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if stored == nil {
			return nil
		}
		_, err := AppendCaseHistory(tx, c.ID, fmt.Sprintf("A file uploaded: %s", *msg.FileName), &stored.URL, policy.AttributionFor(c, sender))
		return err
	})
	if err != nil {
		if stored != nil {
			s.discard(&stored.Key)
		}
		return nil, fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.messagePosted(stored != nil)
	if err := s.db.WithContext(ctx).Preload("Sender").First(msg, "id = ?", msg.ID).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns a thread oldest first
func (s *CaseService) ListMessages(ctx context.Context, caseID string, p policy.Principal) ([]models.CaseMessage, error) {
	c, err := s.loadCase(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewThread(p, c) {
		return nil, ErrUnauthorized
	}

	var messages []models.CaseMessage
	err = s.db.WithContext(ctx).Preload("Sender").
		Where("case_id = ?", c.ID).
		Order("timestamp ASC, rowid ASC").
		Find(&messages).Error
	return messages, err
}

// FileURL resolves a stored message attachment for download
func (s *CaseService) FileURL(msg *models.CaseMessage) string {
	if !msg.HasFile() {
		return ""
	}
	return s.URLFor(msg.File)
}
