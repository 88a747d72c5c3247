package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"case_portal_go/models"
	"case_portal_go/services/lifecycle"
	"case_portal_go/services/policy"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// CaseService applies every case mutation. Each accepted mutation and its
// history entry commit in one transaction; notifications run after commit.
type CaseService struct {
	db       *gorm.DB
	machine  *lifecycle.Machine
	files    FileStore
	notifier Notifier
	renderer ReportRenderer
	metrics  *Metrics
	sanitize *bluemonday.Policy
	now      func() time.Time
}

type CaseServiceOption func(*CaseService)

func WithFileStore(fs FileStore) CaseServiceOption {
	return func(s *CaseService) { s.files = fs }
}

func WithNotifier(n Notifier) CaseServiceOption {
	return func(s *CaseService) { s.notifier = n }
}

func WithReportRenderer(r ReportRenderer) CaseServiceOption {
	return func(s *CaseService) { s.renderer = r }
}

func WithMetrics(m *Metrics) CaseServiceOption {
	return func(s *CaseService) { s.metrics = m }
}

func NewCaseService(db *gorm.DB, machine *lifecycle.Machine, opts ...CaseServiceOption) *CaseService {
	if machine == nil {
		machine = lifecycle.New()
	}
	s := &CaseService{
		db:       db,
		machine:  machine,
		sanitize: bluemonday.StrictPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Machine exposes the transition table the service validates against
func (s *CaseService) Machine() *lifecycle.Machine {
	return s.machine
}

// CaseFields are the citizen-supplied parts of a case
type CaseFields struct {
	Title        string
	Description  string
	Location     *string
	IncidentDate *time.Time
	SuspectName  *string
	Witnesses    *string
}

func (f CaseFields) validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(f.Title) > 200 {
		return fmt.Errorf("%w: title exceeds 200 characters", ErrInvalidInput)
	}
	if strings.TrimSpace(f.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	return nil
}

func (s *CaseService) loadCase(ctx context.Context, db *gorm.DB, caseID string) (*models.Case, error) {
	var c models.Case
	err := db.WithContext(ctx).Preload("CreatedBy").Preload("AssignedTo").
		Where("id = ?", caseID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("case %s: %w", caseID, ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

// RegisterCase files a new case in Pending. The creator is always stored;
// anonymity only hides it from views and the audit attribution.
func (s *CaseService) RegisterCase(ctx context.Context, fields CaseFields, creator policy.Principal, anonymous bool, evidence *Attachment) (*models.Case, error) {
	if creator.ID == "" {
		return nil, ErrUnauthorized
	}
	if err := fields.validate(); err != nil {
		s.metrics.rejected("register", err)
		return nil, err
	}

	c := &models.Case{
		ID:           uuid.New().String(),
		Title:        strings.TrimSpace(fields.Title),
		Description:  fields.Description,
		Location:     fields.Location,
		IncidentDate: fields.IncidentDate,
		SuspectName:  fields.SuspectName,
		Witnesses:    fields.Witnesses,
		IsAnonymous:  anonymous,
		Status:       models.CaseStatusPending,
		CreatedByID:  creator.ID,
	}

	var reference *string
	if evidence != nil {
		stored, err := s.store(ctx, c.ID, keyKindEvidence, evidence)
		if err != nil {
			return nil, err
		}
		c.UploadedFile = &stored.Key
		reference = &stored.URL
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		_, err := AppendCaseHistory(tx, c.ID, "Case Registered", reference, policy.AttributionFor(c, creator))
		return err
	})
	if err != nil {
		s.discard(c.UploadedFile)
		return nil, fmt.Errorf("failed to register case: %w", err)
	}

	s.metrics.caseRegistered()
	return s.loadCase(ctx, s.db, c.ID)
}

// Approve moves a Pending case to Approved
func (s *CaseService) Approve(ctx context.Context, caseID string, actor policy.Principal) (*models.Case, error) {
	if !policy.CanApprove(actor) {
		s.metrics.rejected("approve", ErrUnauthorized)
		return nil, ErrUnauthorized
	}
	return s.Transition(ctx, caseID, models.CaseStatusApproved, actor)
}

// Transition fires the table row joining the case's status to target
func (s *CaseService) Transition(ctx context.Context, caseID, target string, actor policy.Principal) (*models.Case, error) {
	c, err := s.loadCase(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	t, err := s.machine.Check(c, target, actor)
	if err != nil {
		s.metrics.rejected(transitionOperation(target), err)
		return nil, err
	}
	if err := s.commitTransition(ctx, c, t, actor); err != nil {
		s.metrics.rejected(t.Name, err)
		return nil, err
	}
	s.metrics.transitionFired(t.Name)
	return s.loadCase(ctx, s.db, caseID)
}

func transitionOperation(target string) string {
	if target == models.CaseStatusApproved {
		return "approve"
	}
	return "transition"
}

// commitTransition writes the status only if it still equals the row's source.
// A concurrent writer that got there first leaves zero rows affected. Leading
// actions are recorded before the status entry.
func (s *CaseService) commitTransition(ctx context.Context, c *models.Case, t lifecycle.Transition, actor policy.Principal, leading ...string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Case{}).
			Where("id = ? AND status = ?", c.ID, t.Source).
			Updates(map[string]interface{}{"status": t.Target, "updated_at": s.now()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &lifecycle.TransitionError{From: t.Source, To: t.Target}
		}
		performedBy := policy.AttributionFor(c, actor)
		for _, action := range append(leading, lifecycle.Describe(t)) {
			if _, err := AppendCaseHistory(tx, c.ID, action, nil, performedBy); err != nil {
				return err
			}
		}
		return nil
	})
}

// StartOperating lets the assignee take up an Assigned case, moving it to In Progress
func (s *CaseService) StartOperating(ctx context.Context, caseID string, actor policy.Principal) (*models.Case, error) {
	c, err := s.loadCase(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	t, err := s.machine.CheckStartOperating(c, actor)
	if err != nil {
		s.metrics.rejected("start_operating", err)
		return nil, err
	}
	if err := s.commitTransition(ctx, c, t, actor, "Started Operating"); err != nil {
		s.metrics.rejected(t.Name, err)
		return nil, err
	}
	s.metrics.transitionFired(t.Name)
	return s.loadCase(ctx, s.db, caseID)
}

// Assign hands the case to a handler and sets status Assigned. The returned
// Delivery describes the post-commit notices; their failure never fails the call.
func (s *CaseService) Assign(ctx context.Context, caseID, handlerID string, actor policy.Principal) (*models.Case, Delivery, error) {
	if !policy.CanApprove(actor) {
		s.metrics.rejected("assign", ErrUnauthorized)
		return nil, Delivery{}, ErrUnauthorized
	}

	c, err := s.loadCase(ctx, s.db, caseID)
	if err != nil {
		return nil, Delivery{}, err
	}

	var handler models.User
	if err := s.db.WithContext(ctx).Preload("Groups").Where("id = ?", handlerID).First(&handler).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Delivery{}, fmt.Errorf("handler %s: %w", handlerID, ErrNotFound)
		}
		return nil, Delivery{}, err
	}
	if !policy.CanAssign(actor, policy.Resolve(&handler)) {
		s.metrics.rejected("assign", ErrUnauthorized)
		return nil, Delivery{}, ErrUnauthorized
	}
	if err := s.machine.CheckAssign(c, actor); err != nil {
		s.metrics.rejected("assign", err)
		return nil, Delivery{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Case{}).
			Where("id = ? AND status = ?", c.ID, c.Status).
			Updates(map[string]interface{}{
				"assigned_to_id": handler.ID,
				"status":         models.CaseStatusAssigned,
				"updated_at":     s.now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &lifecycle.TransitionError{From: c.Status, To: models.CaseStatusAssigned}
		}
		_, err := AppendCaseHistory(tx, c.ID, "Case assigned to "+handler.Username, nil, policy.AttributionFor(c, actor))
		return err
	})
	if err != nil {
		s.metrics.rejected("assign", err)
		return nil, Delivery{}, err
	}
	s.metrics.caseAssigned()

	updated, err := s.loadCase(ctx, s.db, caseID)
	if err != nil {
		return nil, Delivery{}, err
	}

	var delivery Delivery
	if s.notifier != nil {
		delivery, err = s.notifier.CaseAssigned(ctx, *updated, handler)
		if err != nil {
			log.Printf("[NOTIFY] Assignment notice for case %s incomplete: %v", caseID, err)
		}
	}
	return updated, delivery, nil
}

// UpdateProgressNotes replaces the assignee's working notes
func (s *CaseService) UpdateProgressNotes(ctx context.Context, caseID, notes string, actor policy.Principal) (*models.Case, error) {
	c, err := s.loadCase(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	if !policy.CanUpdateNotes(actor, c) {
		s.metrics.rejected("notes", ErrUnauthorized)
		return nil, ErrUnauthorized
	}

	clean := s.cleanText(notes)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Case{}).Where("id = ?", c.ID).
			Updates(map[string]interface{}{"progress_notes": clean, "updated_at": s.now()})
		if result.Error != nil {
			return result.Error
		}
		_, err := AppendCaseHistory(tx, c.ID, "Progress notes updated", nil, policy.AttributionFor(c, actor))
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.loadCase(ctx, s.db, caseID)
}

// GenerateReport renders the case and its history to PDF and stores it
func (s *CaseService) GenerateReport(ctx context.Context, caseID string, actor policy.Principal) (*models.Case, *StoredObject, error) {
	if s.renderer == nil || s.files == nil {
		return nil, nil, errors.New("report generation is not configured")
	}
	c, err := s.loadCase(ctx, s.db, caseID)
	if err != nil {
		return nil, nil, err
	}
	if !policy.CanGenerateReport(actor, c) {
		s.metrics.rejected("report", ErrUnauthorized)
		return nil, nil, ErrUnauthorized
	}

	history, err := GetCaseHistory(s.db.WithContext(ctx), c.ID, OrderChronological)
	if err != nil {
		return nil, nil, err
	}
	doc, err := BuildCaseReportHTML(CaseReport{
		Case:        *c,
		Creator:     c.CreatorName(),
		Assignee:    c.AssigneeName(),
		History:     history,
		GeneratedAt: s.now(),
		GeneratedBy: actor.Username,
	})
	if err != nil {
		return nil, nil, err
	}
	pdf, err := s.renderer.Render(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	stored, err := s.store(ctx, c.ID, keyKindReport, &Attachment{
		Name:        "report.pdf",
		ContentType: "application/pdf",
		Size:        int64(len(pdf)),
		Body:        bytes.NewReader(pdf),
	})
	if err != nil {
		return nil, nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Case{}).Where("id = ?", c.ID).
			Updates(map[string]interface{}{"report_file": stored.Key, "updated_at": s.now()})
		if result.Error != nil {
			return result.Error
		}
		_, err := AppendCaseHistory(tx, c.ID, "Report generated", &stored.URL, policy.AttributionFor(c, actor))
		return err
	})
	if err != nil {
		s.discard(&stored.Key)
		return nil, nil, err
	}

	updated, err := s.loadCase(ctx, s.db, caseID)
	if err != nil {
		return nil, nil, err
	}
	return updated, stored, nil
}

// GetCase returns a case the principal may view
func (s *CaseService) GetCase(ctx context.Context, caseID string, p policy.Principal) (*models.Case, error) {
	c, err := s.loadCase(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewCase(p, c) {
		return nil, ErrUnauthorized
	}
	return c, nil
}

// GetHistory returns the audit trail of a case the principal may view
func (s *CaseService) GetHistory(ctx context.Context, caseID string, p policy.Principal, order HistoryOrder) ([]models.CaseHistory, error) {
	if _, err := s.GetCase(ctx, caseID, p); err != nil {
		return nil, err
	}
	return GetCaseHistory(s.db.WithContext(ctx), caseID, order)
}

// AvailableTransitions lists what the principal can do next with the case
func (s *CaseService) AvailableTransitions(c *models.Case, p policy.Principal) []lifecycle.Transition {
	return s.machine.Available(c, p)
}

// CanStartOperating reports whether the principal may take up the case now
func (s *CaseService) CanStartOperating(c *models.Case, p policy.Principal) bool {
	return s.machine.CanStartOperating(c, p)
}

// URLFor resolves a storage key to its public location
func (s *CaseService) URLFor(key *string) string {
	if key == nil || *key == "" || s.files == nil {
		return ""
	}
	return s.files.URL(*key)
}

// ReportURL returns a short-lived link to the stored report
func (s *CaseService) ReportURL(ctx context.Context, c *models.Case) (string, error) {
	if c.ReportFile == nil || s.files == nil {
		return "", ErrNotFound
	}
	return s.files.SignedURL(ctx, *c.ReportFile, 15*time.Minute)
}

func (s *CaseService) store(ctx context.Context, caseID, kind string, a *Attachment) (*StoredObject, error) {
	if s.files == nil {
		return nil, errors.New("file storage is not configured")
	}
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.files.Put(ctx, storageKey(caseID, kind, a.Name), a.Body, contentType, a.Size)
}

// cleanText strips markup and keeps plain text. Output is escaped by clients, not here.
func (s *CaseService) cleanText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitize.Sanitize(in)))
}

// discard removes an uploaded file whose database write failed
func (s *CaseService) discard(key *string) {
	if key == nil || s.files == nil {
		return
	}
	if err := s.files.Remove(context.Background(), *key); err != nil {
		log.Printf("[STORAGE] Failed to remove orphaned file %s: %v", *key, err)
	}
}
