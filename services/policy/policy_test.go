package policy

import (
	"testing"

	"case_portal_go/models"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func TestResolve(t *testing.T) {
	t.Run("Superuser", func(t *testing.T) {
		caps := Resolve(&models.User{IsSuperuser: true, IsActive: true})
		assert.True(t, caps.Has(CapAdmin))
		assert.False(t, caps.Has(CapHandler))
		assert.Equal(t, "admin", DisplayRole(caps))
	})

	t.Run("Handler group", func(t *testing.T) {
		caps := Resolve(&models.User{IsActive: true, Groups: []models.Group{{Name: models.GroupHandler}}})
		assert.True(t, caps.Has(CapHandler))
		assert.Equal(t, "handler", DisplayRole(caps))
	})

	t.Run("Plain user", func(t *testing.T) {
		caps := Resolve(&models.User{IsActive: true, Groups: []models.Group{{Name: "reviewers"}}})
		assert.Equal(t, Capabilities(0), caps)
		assert.Equal(t, "user", DisplayRole(caps))
	})

	t.Run("Inactive users hold nothing", func(t *testing.T) {
		assert.Equal(t, Capabilities(0), Resolve(&models.User{IsSuperuser: true}))
		assert.Equal(t, Capabilities(0), Resolve(nil))
	})
}

func TestCasePredicates(t *testing.T) {
	admin := Principal{ID: "a", Caps: CapAdmin}
	handler := Principal{ID: "h", Caps: CapHandler}
	otherHandler := Principal{ID: "h2", Caps: CapHandler}
	creator := Principal{ID: "u"}
	stranger := Principal{ID: "s"}

	c := &models.Case{ID: "c1", CreatedByID: "u", AssignedToID: strPtr("h")}

	assert.True(t, CanApprove(admin))
	assert.False(t, CanApprove(handler))

	assert.True(t, CanAssign(admin, CapHandler))
	assert.False(t, CanAssign(admin, 0))
	assert.False(t, CanAssign(handler, CapHandler))

	assert.True(t, CanTransition(handler, c))
	assert.False(t, CanTransition(admin, c))
	assert.False(t, CanTransition(otherHandler, c))

	for _, p := range []Principal{admin, handler, creator} {
		assert.True(t, CanMessage(p, c), p.ID)
		assert.True(t, CanViewThread(p, c), p.ID)
	}
	assert.False(t, CanMessage(stranger, c))
	assert.False(t, CanMessage(otherHandler, c))

	assert.True(t, CanGenerateReport(admin, c))
	assert.True(t, CanGenerateReport(handler, c))
	assert.False(t, CanGenerateReport(creator, c))
}

func TestDirectoryScopes(t *testing.T) {
	admin := Principal{ID: "a", Caps: CapAdmin}
	handler := Principal{ID: "h", Caps: CapHandler}
	user := Principal{ID: "u"}
	c := &models.Case{CreatedByID: "u", AssignedToID: strPtr("h")}

	assert.True(t, CanViewDirectoryEntry(user, c, ScopeMine))
	assert.False(t, CanViewDirectoryEntry(handler, c, ScopeMine))
	assert.True(t, CanViewDirectoryEntry(handler, c, ScopeAssignedToMe))
	assert.True(t, CanViewDirectoryEntry(admin, c, ScopeAll))
	assert.False(t, CanViewDirectoryEntry(handler, c, ScopeAll))

	assert.True(t, CanBrowse(user, ScopeMine))
	assert.False(t, CanBrowse(user, ScopeAssignedToMe))
	assert.False(t, CanBrowse(handler, ScopeAll))

	assert.Equal(t, ScopeAll, DefaultScope(admin))
	assert.Equal(t, ScopeAssignedToMe, DefaultScope(handler))
	assert.Equal(t, ScopeMine, DefaultScope(user))
}

func TestAttributionFor(t *testing.T) {
	anon := &models.Case{IsAnonymous: true, CreatedByID: "u"}
	named := &models.Case{CreatedByID: "u"}

	assert.Nil(t, AttributionFor(anon, Principal{ID: "u"}))
	assert.Equal(t, "u", *AttributionFor(named, Principal{ID: "u"}))
	assert.Equal(t, "h", *AttributionFor(anon, Principal{ID: "h", Caps: CapHandler}))
	assert.Equal(t, "a", *AttributionFor(anon, Principal{ID: "a", Caps: CapAdmin}))
	assert.Nil(t, AttributionFor(named, Principal{}))
}
