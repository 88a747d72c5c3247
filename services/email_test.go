package services

import (
	"testing"

	"case_portal_go/config"

	"github.com/stretchr/testify/assert"
)

func TestBuildCaseAssignedEmail(t *testing.T) {
	email, err := BuildCaseAssignedEmail("h@example.com", CaseAssignedEmailData{
		HandlerName: "handler",
		CaseTitle:   "Flooded basement",
		CaseURL:     "http://localhost:8080/cases/c1",
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"h@example.com"}, email.To)
	assert.Equal(t, "New case assigned: Flooded basement", email.Subject)
	assert.Contains(t, email.HTMLBody, `href="http://localhost:8080/cases/c1"`)
	assert.Contains(t, email.TextBody, "Hello handler")
}

func TestSendEmail(t *testing.T) {
	email := &Email{To: []string{"a@example.com"}, Subject: "s", TextBody: "body"}

	t.Run("Test mode logs instead of sending", func(t *testing.T) {
		assert.NoError(t, SendEmail(&config.Config{EmailTestMode: true}, email))
	})

	t.Run("Missing API key", func(t *testing.T) {
		err := SendEmail(&config.Config{}, email)
		assert.ErrorContains(t, err, "RESEND_API_KEY")
	})

	t.Run("Empty body", func(t *testing.T) {
		err := SendEmail(&config.Config{ResendAPIKey: "re_test"}, &Email{To: []string{"a@example.com"}})
		assert.Error(t, err)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "ab", truncate("ab", 3))
}
