package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"case_portal_go/config"
	"case_portal_go/models"

	"gorm.io/gorm"
)

// Notification channels
const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
	ChannelInApp    = "in_app"
)

// Delivery reports which channels ran for a notice
type Delivery struct {
	Channels []string `json:"channels"`
	// Link is a wa.me deep link the admin's client can open
	Link string `json:"link,omitempty"`
}

// Notifier is told about assignments after they commit
type Notifier interface {
	CaseAssigned(ctx context.Context, c models.Case, handler models.User) (Delivery, error)
}

// assignmentText is the message shown to the handler
func assignmentText(c models.Case, handler models.User) string {
	return fmt.Sprintf("Hello %s, a new case (%s) has been assigned to you. Please check the portal.", handler.Username, c.Title)
}

// WhatsAppLinkNotifier builds a click-to-chat link. Nothing is sent server-side.
type WhatsAppLinkNotifier struct{}

func (WhatsAppLinkNotifier) CaseAssigned(ctx context.Context, c models.Case, handler models.User) (Delivery, error) {
	link := WhatsAppLink(handler.PhoneNumber, assignmentText(c, handler))
	if link == "" {
		return Delivery{}, nil
	}
	return Delivery{Channels: []string{ChannelWhatsApp}, Link: link}, nil
}

// WhatsAppLink returns https://wa.me/<digits>?text=... or "" when no usable number is set
func WhatsAppLink(phone *string, text string) string {
	if phone == nil {
		return ""
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, *phone)
	if digits == "" {
		return ""
	}
	return "https://wa.me/" + digits + "?text=" + url.PathEscape(text)
}

// EmailNotifier mails the handler through Resend (or logs in test mode)
type EmailNotifier struct {
	cfg  *config.Config
	send func(*config.Config, *Email) error
}

func NewEmailNotifier(cfg *config.Config) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, send: SendEmail}
}

func (n *EmailNotifier) CaseAssigned(ctx context.Context, c models.Case, handler models.User) (Delivery, error) {
	if handler.Email == "" {
		return Delivery{}, nil
	}
	email, err := BuildCaseAssignedEmail(handler.Email, CaseAssignedEmailData{
		HandlerName: handler.Username,
		CaseTitle:   c.Title,
		CaseURL:     strings.TrimSuffix(n.cfg.AppURL, "/") + "/cases/" + c.ID,
	})
	if err != nil {
		return Delivery{}, err
	}
	if err := n.send(n.cfg, email); err != nil {
		return Delivery{}, err
	}
	return Delivery{Channels: []string{ChannelEmail}}, nil
}

// InAppNotifier stores a notification row for the handler
type InAppNotifier struct {
	notifications *NotificationService
}

func NewInAppNotifier(db *gorm.DB) *InAppNotifier {
	return &InAppNotifier{notifications: NewNotificationService(db)}
}

func (n *InAppNotifier) CaseAssigned(ctx context.Context, c models.Case, handler models.User) (Delivery, error) {
	caseID := c.ID
	err := n.notifications.CreateNotification(ctx, &models.Notification{
		UserID:  handler.ID,
		CaseID:  &caseID,
		Type:    models.NotificationTypeCaseAssigned,
		Title:   "New case assigned",
		Message: assignmentText(c, handler),
		LinkURL: "/cases/" + c.ID,
	})
	if err != nil {
		return Delivery{}, err
	}
	return Delivery{Channels: []string{ChannelInApp}}, nil
}

// MultiNotifier fans out to every notifier. One failing channel does not stop the rest.
type MultiNotifier []Notifier

func (m MultiNotifier) CaseAssigned(ctx context.Context, c models.Case, handler models.User) (Delivery, error) {
	var out Delivery
	var errs []error
	for _, n := range m {
		d, err := n.CaseAssigned(ctx, c, handler)
		if err != nil {
			log.Printf("[NOTIFY] %T failed for case %s: %v", n, c.ID, err)
			errs = append(errs, err)
			continue
		}
		out.Channels = append(out.Channels, d.Channels...)
		if out.Link == "" {
			out.Link = d.Link
		}
	}
	return out, errors.Join(errs...)
}

// NewNotifier assembles the configured channels
func NewNotifier(cfg *config.Config, db *gorm.DB) Notifier {
	m := MultiNotifier{NewInAppNotifier(db)}
	if cfg.WhatsAppNotify {
		m = append(m, WhatsAppLinkNotifier{})
	}
	if cfg.ResendAPIKey != "" || cfg.EmailTestMode {
		m = append(m, NewEmailNotifier(cfg))
	}
	return m
}
