package lifecycle

import (
	"errors"
	"testing"

	"case_portal_go/models"
	"case_portal_go/services/policy"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

var (
	admin   = policy.Principal{ID: "admin-1", Username: "admin", Caps: policy.CapAdmin}
	handler = policy.Principal{ID: "handler-1", Username: "handler", Caps: policy.CapHandler}
	other   = policy.Principal{ID: "handler-2", Username: "other", Caps: policy.CapHandler}
	citizen = policy.Principal{ID: "user-1", Username: "citizen"}
)

func caseAt(status string) *models.Case {
	return &models.Case{ID: "case-1", Status: status, CreatedByID: citizen.ID, AssignedToID: strPtr(handler.ID)}
}

func TestLookupKeysOnSourceAndTarget(t *testing.T) {
	m := New()

	start, ok := m.Lookup(models.CaseStatusApproved, models.CaseStatusInProgress)
	assert.True(t, ok)
	assert.Equal(t, "start_progress", start.Name)

	resume, ok := m.Lookup(models.CaseStatusWaitingForInfo, models.CaseStatusInProgress)
	assert.True(t, ok)
	assert.Equal(t, "resume_progress", resume.Name)

	_, ok = m.Lookup(models.CaseStatusPending, models.CaseStatusInProgress)
	assert.False(t, ok)
}

func TestCheck(t *testing.T) {
	m := New()

	t.Run("Admin approves pending", func(t *testing.T) {
		tr, err := m.Check(caseAt(models.CaseStatusPending), models.CaseStatusApproved, admin)
		assert.NoError(t, err)
		assert.Equal(t, "approve", tr.Name)
	})

	t.Run("Handler cannot approve", func(t *testing.T) {
		_, err := m.Check(caseAt(models.CaseStatusPending), models.CaseStatusApproved, handler)
		assert.ErrorIs(t, err, policy.ErrUnauthorized)
	})

	t.Run("Admin cannot drive handler transitions", func(t *testing.T) {
		_, err := m.Check(caseAt(models.CaseStatusApproved), models.CaseStatusInProgress, admin)
		assert.ErrorIs(t, err, policy.ErrUnauthorized)
	})

	t.Run("Only the assignee", func(t *testing.T) {
		_, err := m.Check(caseAt(models.CaseStatusApproved), models.CaseStatusInProgress, other)
		assert.ErrorIs(t, err, policy.ErrUnauthorized)

		_, err = m.Check(caseAt(models.CaseStatusApproved), models.CaseStatusInProgress, handler)
		assert.NoError(t, err)
	})

	t.Run("Jumps are invalid", func(t *testing.T) {
		_, err := m.Check(caseAt(models.CaseStatusApproved), models.CaseStatusResolved, handler)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		var te *TransitionError
		assert.True(t, errors.As(err, &te))
		assert.Equal(t, models.CaseStatusResolved, te.To)
		assert.Contains(t, err.Error(), "Resolved")
	})

	t.Run("Closed is terminal", func(t *testing.T) {
		for _, target := range []string{
			models.CaseStatusPending, models.CaseStatusApproved, models.CaseStatusInProgress,
			models.CaseStatusWaitingForInfo, models.CaseStatusResolved, models.CaseStatusClosed,
		} {
			_, err := m.Check(caseAt(models.CaseStatusClosed), target, handler)
			assert.ErrorIs(t, err, ErrInvalidTransition, target)
		}
		assert.True(t, m.IsTerminal(models.CaseStatusClosed))
	})

	t.Run("Assigned has no exit in the legacy table", func(t *testing.T) {
		_, err := m.Check(caseAt(models.CaseStatusAssigned), models.CaseStatusInProgress, handler)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.True(t, m.IsTerminal(models.CaseStatusAssigned))
	})
}

func TestFullHandlerPath(t *testing.T) {
	m := New()
	c := caseAt(models.CaseStatusApproved)

	path := []string{
		models.CaseStatusInProgress,
		models.CaseStatusWaitingForInfo,
		models.CaseStatusInProgress,
		models.CaseStatusResolved,
		models.CaseStatusClosed,
	}
	for _, target := range path {
		tr, err := m.Check(c, target, handler)
		assert.NoError(t, err)
		c.Status = tr.Target
	}
	assert.Equal(t, models.CaseStatusClosed, c.Status)
}

func TestCheckAssign(t *testing.T) {
	t.Run("Legacy accepts any open status", func(t *testing.T) {
		m := New()
		assert.NoError(t, m.CheckAssign(caseAt(models.CaseStatusPending), admin))
		assert.NoError(t, m.CheckAssign(caseAt(models.CaseStatusInProgress), admin))
		assert.ErrorIs(t, m.CheckAssign(caseAt(models.CaseStatusApproved), handler), policy.ErrUnauthorized)
		assert.ErrorIs(t, m.CheckAssign(caseAt(models.CaseStatusClosed), admin), ErrInvalidTransition)
	})

	t.Run("Formal requires Approved or Assigned", func(t *testing.T) {
		m := New(WithFormalAssignment())
		assert.True(t, m.FormalAssignment())
		assert.NoError(t, m.CheckAssign(caseAt(models.CaseStatusApproved), admin))
		assert.NoError(t, m.CheckAssign(caseAt(models.CaseStatusAssigned), admin))
		assert.ErrorIs(t, m.CheckAssign(caseAt(models.CaseStatusPending), admin), ErrInvalidTransition)

		tr, err := m.Check(caseAt(models.CaseStatusAssigned), models.CaseStatusInProgress, handler)
		assert.NoError(t, err)
		assert.Equal(t, "start_progress", tr.Name)

		_, err = m.Check(caseAt(models.CaseStatusApproved), models.CaseStatusAssigned, admin)
		assert.ErrorIs(t, err, ErrInvalidTransition, "assignment is not reachable through Check")
	})
}

func TestCheckStartOperating(t *testing.T) {
	for name, m := range map[string]*Machine{"legacy": New(), "formal": New(WithFormalAssignment())} {
		t.Run(name, func(t *testing.T) {
			tr, err := m.CheckStartOperating(caseAt(models.CaseStatusAssigned), handler)
			assert.NoError(t, err)
			assert.Equal(t, "start_operating", tr.Name)
			assert.Equal(t, models.CaseStatusInProgress, tr.Target)
			assert.True(t, m.CanStartOperating(caseAt(models.CaseStatusAssigned), handler))

			_, err = m.CheckStartOperating(caseAt(models.CaseStatusAssigned), other)
			assert.ErrorIs(t, err, policy.ErrUnauthorized)
			_, err = m.CheckStartOperating(caseAt(models.CaseStatusAssigned), admin)
			assert.ErrorIs(t, err, policy.ErrUnauthorized)

			_, err = m.CheckStartOperating(caseAt(models.CaseStatusApproved), handler)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.False(t, m.CanStartOperating(caseAt(models.CaseStatusInProgress), handler))
		})
	}
}

func TestAvailable(t *testing.T) {
	m := New()

	got := m.Available(caseAt(models.CaseStatusInProgress), handler)
	var names []string
	for _, tr := range got {
		names = append(names, tr.Name)
	}
	assert.ElementsMatch(t, []string{"wait_for_info", "resolve"}, names)

	assert.Empty(t, m.Available(caseAt(models.CaseStatusInProgress), admin))
	assert.Len(t, m.Available(caseAt(models.CaseStatusPending), admin), 1)
}

func TestDescribe(t *testing.T) {
	m := New()
	tr, _ := m.Lookup(models.CaseStatusPending, models.CaseStatusApproved)
	assert.Equal(t, "Case Approved", Describe(tr))

	tr, _ = m.Lookup(models.CaseStatusInProgress, models.CaseStatusResolved)
	assert.Equal(t, "Status updated to 'Resolved'", Describe(tr))
}
