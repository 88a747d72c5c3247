// Package policy decides who may read, transition, assign or message a case.
//
// Capabilities are resolved once per request from the superuser flag and the
// handler group. Nothing else (in particular no stored role string) grants
// access. Every predicate is pure; callers turn a false result into
// ErrUnauthorized before touching storage.
package policy

import (
	"errors"

	"case_portal_go/models"
)

// ErrUnauthorized is returned when an actor lacks the capability or ownership an action needs
var ErrUnauthorized = errors.New("unauthorized")

// Capabilities is a bit set of grants held by a principal
type Capabilities uint8

const (
	CapAdmin Capabilities = 1 << iota
	CapHandler
)

// Has reports whether every bit in want is present
func (c Capabilities) Has(want Capabilities) bool {
	return want != 0 && c&want == want
}

// Resolve derives capabilities from a user. Groups must be preloaded.
func Resolve(u *models.User) Capabilities {
	if u == nil || !u.IsActive {
		return 0
	}
	var caps Capabilities
	if u.IsSuperuser {
		caps |= CapAdmin
	}
	if u.InGroup(models.GroupHandler) {
		caps |= CapHandler
	}
	return caps
}

// DisplayRole is the label shown to clients. It carries no authority.
func DisplayRole(c Capabilities) string {
	switch {
	case c.Has(CapAdmin):
		return "admin"
	case c.Has(CapHandler):
		return "handler"
	default:
		return "user"
	}
}

// Principal is the authenticated actor attached to a request
type Principal struct {
	ID       string
	Username string
	Caps     Capabilities
}

// PrincipalFor builds a principal from a loaded user
func PrincipalFor(u *models.User) Principal {
	if u == nil {
		return Principal{}
	}
	return Principal{ID: u.ID, Username: u.Username, Caps: Resolve(u)}
}

func (p Principal) IsAdmin() bool   { return p.Caps.Has(CapAdmin) }
func (p Principal) IsHandler() bool { return p.Caps.Has(CapHandler) }
func (p Principal) Role() string    { return DisplayRole(p.Caps) }

// Scope selects which slice of the directory a principal is browsing
type Scope string

const (
	ScopeAll          Scope = "all"
	ScopeMine         Scope = "mine"
	ScopeAssignedToMe Scope = "assigned_to_me"
)

// DefaultScope is where a principal lands when no scope is requested
func DefaultScope(p Principal) Scope {
	switch {
	case p.IsAdmin():
		return ScopeAll
	case p.IsHandler():
		return ScopeAssignedToMe
	default:
		return ScopeMine
	}
}

func CanApprove(p Principal) bool {
	return p.IsAdmin()
}

// CanAssign requires an administrator actor and a handler target
func CanAssign(actor Principal, target Capabilities) bool {
	return actor.IsAdmin() && target.Has(CapHandler)
}

// CanTransition is assignee-only. Administrators get no bypass.
func CanTransition(p Principal, c *models.Case) bool {
	return c != nil && c.IsAssignedTo(p.ID)
}

func CanMessage(p Principal, c *models.Case) bool {
	if c == nil || p.ID == "" {
		return false
	}
	return c.CreatedByID == p.ID || c.IsAssignedTo(p.ID) || p.IsAdmin()
}

func CanViewThread(p Principal, c *models.Case) bool {
	return CanMessage(p, c)
}

// CanViewCase covers the detail page and its history
func CanViewCase(p Principal, c *models.Case) bool {
	return CanMessage(p, c)
}

// CanViewDirectoryEntry checks one case against the scope being browsed
func CanViewDirectoryEntry(p Principal, c *models.Case, scope Scope) bool {
	if c == nil || p.ID == "" {
		return false
	}
	switch scope {
	case ScopeMine:
		return c.CreatedByID == p.ID
	case ScopeAssignedToMe:
		return c.IsAssignedTo(p.ID)
	case ScopeAll:
		return p.IsAdmin()
	}
	return false
}

// CanBrowse reports whether the scope is open to the principal at all
func CanBrowse(p Principal, scope Scope) bool {
	switch scope {
	case ScopeMine:
		return p.ID != ""
	case ScopeAssignedToMe:
		return p.IsHandler()
	case ScopeAll:
		return p.IsAdmin()
	}
	return false
}

func CanUpdateNotes(p Principal, c *models.Case) bool {
	return CanTransition(p, c)
}

func CanGenerateReport(p Principal, c *models.Case) bool {
	return c != nil && (p.IsAdmin() || c.IsAssignedTo(p.ID))
}

func CanManageAccounts(p Principal) bool {
	return p.IsAdmin()
}

// AttributionFor returns the actor id to record in the audit log, or nil when
// an anonymous case's citizen acts without staff capability.
func AttributionFor(c *models.Case, p Principal) *string {
	if p.ID == "" {
		return nil
	}
	if c != nil && c.IsAnonymous && !p.IsAdmin() && !p.IsHandler() {
		return nil
	}
	id := p.ID
	return &id
}
