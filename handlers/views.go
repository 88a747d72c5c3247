package handlers

import (
	"case_portal_go/models"
	"case_portal_go/services"
	"case_portal_go/services/lifecycle"
	"case_portal_go/services/policy"
	"time"
)

// TimestampLayout is the wire format of message and history timestamps
const TimestampLayout = "2006-01-02 15:04:05"

type caseView struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Location          *string          `json:"location,omitempty"`
	IncidentDate      *string          `json:"incident_date,omitempty"`
	SuspectName       *string          `json:"suspect_name,omitempty"`
	Witnesses         *string          `json:"witnesses,omitempty"`
	ProgressNotes     *string          `json:"progress_notes,omitempty"`
	IsAnonymous       bool             `json:"is_anonymous"`
	Status            string           `json:"status"`
	ReportedBy        string           `json:"reported_by"`
	AssignedTo        string           `json:"assigned_to,omitempty"`
	EvidenceURL       string           `json:"evidence_url,omitempty"`
	HasReport         bool             `json:"has_report"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Transitions       []transitionView `json:"available_transitions,omitempty"`
	// CanStartOperating is set on the detail view only
	CanStartOperating bool             `json:"can_start_operating,omitempty"`
}

type transitionView struct {
	Name        string `json:"name"`
	Target      string `json:"target"`
	Description string `json:"description"`
}

// reportedBy hides anonymous creators from everyone but administrators
func reportedBy(c *models.Case, p policy.Principal) string {
	if c.IsAnonymous && !p.IsAdmin() {
		return "Anonymous"
	}
	return c.CreatedBy.Username
}

func (a *API) toCaseView(c *models.Case, p policy.Principal) caseView {
	v := caseView{
		ID:            c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Location:      c.Location,
		SuspectName:   c.SuspectName,
		Witnesses:     c.Witnesses,
		ProgressNotes: c.ProgressNotes,
		IsAnonymous:   c.IsAnonymous,
		Status:        c.Status,
		ReportedBy:    reportedBy(c, p),
		AssignedTo:    c.AssigneeName(),
		EvidenceURL:   a.Cases.URLFor(c.UploadedFile),
		HasReport:     c.ReportFile != nil,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.IncidentDate != nil {
		day := c.IncidentDate.Format(time.DateOnly)
		v.IncidentDate = &day
	}
	return v
}

func (a *API) toCaseViews(cases []models.Case, p policy.Principal) []caseView {
	views := make([]caseView, 0, len(cases))
	for i := range cases {
		views = append(views, a.toCaseView(&cases[i], p))
	}
	return views
}

func transitionViews(ts []lifecycle.Transition) []transitionView {
	views := make([]transitionView, 0, len(ts))
	for _, t := range ts {
		views = append(views, transitionView{Name: t.Name, Target: t.Target, Description: lifecycle.Describe(t)})
	}
	return views
}

type historyView struct {
	Action      string  `json:"action"`
	Reference   *string `json:"reference,omitempty"`
	PerformedBy *string `json:"performed_by"`
	Timestamp   string  `json:"timestamp"`
}

func historyViews(entries []models.CaseHistory) []historyView {
	views := make([]historyView, 0, len(entries))
	for _, h := range entries {
		v := historyView{Action: h.Action, Reference: h.Reference, Timestamp: h.Timestamp.Format(TimestampLayout)}
		if h.PerformedBy != nil {
			name := h.PerformedBy.Username
			v.PerformedBy = &name
		}
		views = append(views, v)
	}
	return views
}

type messageView struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	File      string `json:"file,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Timestamp string `json:"timestamp"`
}

// senderName masks the creator's messages on an anonymous case the same way reportedBy does
func senderName(m *models.CaseMessage, c *models.Case, p policy.Principal) string {
	if m.SenderID == c.CreatedByID {
		return reportedBy(c, p)
	}
	return m.Sender.Username
}

func (a *API) toMessageView(m *models.CaseMessage, c *models.Case, p policy.Principal) messageView {
	v := messageView{
		User:      senderName(m, c, p),
		Text:      m.Message,
		File:      a.Cases.FileURL(m),
		Timestamp: m.Timestamp.Format(TimestampLayout),
	}
	if m.FileName != nil {
		v.FileName = *m.FileName
	}
	return v
}

type userView struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	PhoneNumber *string    `json:"phone_number,omitempty"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toUserView(u *models.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Role:        policy.DisplayRole(policy.Resolve(u)),
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func toUserViews(users []models.User) []userView {
	views := make([]userView, 0, len(users))
	for i := range users {
		views = append(views, toUserView(&users[i]))
	}
	return views
}

// deliveryView is what the assigning administrator sees after a notification
type deliveryView struct {
	Channels []string `json:"channels"`
	Link     string   `json:"link,omitempty"`
}

func toDeliveryView(d services.Delivery) deliveryView {
	channels := d.Channels
	if channels == nil {
		channels = []string{}
	}
	return deliveryView{Channels: channels, Link: d.Link}
}
