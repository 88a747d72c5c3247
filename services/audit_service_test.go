package services

import (
	"testing"
	"time"

	"case_portal_go/models"

	"github.com/stretchr/testify/assert"
)

func TestParseHistoryOrder(t *testing.T) {
	assert.Equal(t, OrderRecentFirst, ParseHistoryOrder("recent"))
	assert.Equal(t, OrderRecentFirst, ParseHistoryOrder(" DESC "))
	assert.Equal(t, OrderChronological, ParseHistoryOrder(""))
	assert.Equal(t, OrderChronological, ParseHistoryOrder("asc"))
}

func TestCaseHistoryOrdering(t *testing.T) {
	db := setupTestDB(t)
	same := time.Now()

	for _, action := range []string{"first", "second", "third"} {
		entry := &models.CaseHistory{CaseID: "case-1", Action: action, Timestamp: same}
		assert.NoError(t, db.Create(entry).Error)
	}
	_, err := AppendCaseHistory(db, "case-2", "other case", nil, nil)
	assert.NoError(t, err)

	asc, err := GetCaseHistory(db, "case-1", OrderChronological)
	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, actions(asc))

	desc, err := GetCaseHistory(db, "case-1", OrderRecentFirst)
	assert.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, actions(desc))
}

func actions(entries []models.CaseHistory) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func TestLogAuditEvent(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "auditor", true)

	ctx := AuditContext{UserID: user.ID, UserName: user.Username, UserRole: "admin", IPAddress: "10.0.0.1"}
	LogAuditEvent(db, ctx, models.AuditActionCreate, "User", "user-9", "Handler added")

	assert.Eventually(t, func() bool {
		logs, err := GetResourceAuditHistory(db, "User", "user-9")
		return err == nil && len(logs) == 1
	}, time.Second, 10*time.Millisecond)

	logs, _ := GetResourceAuditHistory(db, "User", "user-9")
	assert.Equal(t, user.ID, *logs[0].UserID)
	assert.Equal(t, "Handler added", logs[0].Description)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
}

func TestLogSecurityEvent(t *testing.T) {
	db := setupTestDB(t)

	LogSecurityEvent(db, "LOGIN_FAILED", "", "bad password for alice")

	assert.Eventually(t, func() bool {
		logs, err := GetResourceAuditHistory(db, "SECURITY_EVENT", "LOGIN_FAILED")
		return err == nil && len(logs) == 1 && logs[0].UserID == nil
	}, time.Second, 10*time.Millisecond)
}
