// Package lifecycle holds the case status transition table and its guards.
package lifecycle

import (
	"errors"
	"fmt"

	"case_portal_go/models"
	"case_portal_go/services/policy"
)

// ErrInvalidTransition is returned when no table row joins the current status to the target
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError names the offending source and target
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from '%s' to '%s'", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Guard names who may fire a transition
type Guard int

const (
	GuardAdmin Guard = iota
	GuardAssignee
)

func (g Guard) String() string {
	if g == GuardAdmin {
		return "admin"
	}
	return "assigned handler"
}

// Transition is one row of the table
type Transition struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Target string `json:"target"`
	Guard  Guard  `json:"-"`
}

type edge struct {
	from string
	to   string
}

var baseTable = []Transition{
	{Name: "approve", Source: models.CaseStatusPending, Target: models.CaseStatusApproved, Guard: GuardAdmin},
	{Name: "start_progress", Source: models.CaseStatusApproved, Target: models.CaseStatusInProgress, Guard: GuardAssignee},
	{Name: "wait_for_info", Source: models.CaseStatusInProgress, Target: models.CaseStatusWaitingForInfo, Guard: GuardAssignee},
	{Name: "resume_progress", Source: models.CaseStatusWaitingForInfo, Target: models.CaseStatusInProgress, Guard: GuardAssignee},
	{Name: "resolve", Source: models.CaseStatusInProgress, Target: models.CaseStatusResolved, Guard: GuardAssignee},
	{Name: "close", Source: models.CaseStatusResolved, Target: models.CaseStatusClosed, Guard: GuardAssignee},
}

// Rows added when assignment is part of the formal lifecycle
var assignmentTable = []Transition{
	{Name: "assign", Source: models.CaseStatusApproved, Target: models.CaseStatusAssigned, Guard: GuardAdmin},
	{Name: "reassign", Source: models.CaseStatusAssigned, Target: models.CaseStatusAssigned, Guard: GuardAdmin},
	{Name: "start_progress", Source: models.CaseStatusAssigned, Target: models.CaseStatusInProgress, Guard: GuardAssignee},
}

// startOperating is the assignee's way out of Assigned. It stays outside the
// table so a status request for In Progress from Assigned is still refused.
var startOperating = Transition{
	Name:   "start_operating",
	Source: models.CaseStatusAssigned,
	Target: models.CaseStatusInProgress,
	Guard:  GuardAssignee,
}

// Machine evaluates transitions. It never mutates a case.
type Machine struct {
	rows  []Transition
	index map[edge]Transition
	// formal reports whether assignment goes through the table
	formal bool
}

type Option func(*Machine)

// WithFormalAssignment adds Assigned as a first-class state between Approved and In Progress
func WithFormalAssignment() Option {
	return func(m *Machine) {
		m.formal = true
	}
}

// New builds the machine. Without options assignment stays outside the table.
func New(opts ...Option) *Machine {
	m := &Machine{index: make(map[edge]Transition)}
	for _, opt := range opts {
		opt(m)
	}
	m.add(baseTable...)
	if m.formal {
		m.add(assignmentTable...)
	}
	return m
}

func (m *Machine) add(rows ...Transition) {
	for _, t := range rows {
		m.rows = append(m.rows, t)
		m.index[edge{t.Source, t.Target}] = t
	}
}

// FormalAssignment reports whether assignment is validated against the table
func (m *Machine) FormalAssignment() bool {
	return m.formal
}

// Lookup finds the row for a (source, target) pair. Target alone is not a key:
// In Progress is reached both by start_progress and resume_progress.
func (m *Machine) Lookup(from, to string) (Transition, bool) {
	t, ok := m.index[edge{from, to}]
	return t, ok
}

// Check validates a transition request against the case's current status and the actor
func (m *Machine) Check(c *models.Case, target string, p policy.Principal) (Transition, error) {
	t, ok := m.Lookup(c.Status, target)
	if !ok || t.Name == "assign" || t.Name == "reassign" {
		return Transition{}, &TransitionError{From: c.Status, To: target}
	}
	if !allowed(t.Guard, c, p) {
		return Transition{}, policy.ErrUnauthorized
	}
	return t, nil
}

// CheckAssign validates an assignment. Closed cases are never reopened by it.
func (m *Machine) CheckAssign(c *models.Case, p policy.Principal) error {
	if !m.formal {
		if c.IsClosed() {
			return &TransitionError{From: c.Status, To: models.CaseStatusAssigned}
		}
		if !policy.CanApprove(p) {
			return policy.ErrUnauthorized
		}
		return nil
	}
	t, ok := m.Lookup(c.Status, models.CaseStatusAssigned)
	if !ok {
		return &TransitionError{From: c.Status, To: models.CaseStatusAssigned}
	}
	if !allowed(t.Guard, c, p) {
		return policy.ErrUnauthorized
	}
	return nil
}

// CheckStartOperating validates the assignee taking up an Assigned case
func (m *Machine) CheckStartOperating(c *models.Case, p policy.Principal) (Transition, error) {
	if c.Status != startOperating.Source {
		return Transition{}, &TransitionError{From: c.Status, To: startOperating.Target}
	}
	if !allowed(startOperating.Guard, c, p) {
		return Transition{}, policy.ErrUnauthorized
	}
	return startOperating, nil
}

// CanStartOperating reports whether CheckStartOperating would pass
func (m *Machine) CanStartOperating(c *models.Case, p policy.Principal) bool {
	_, err := m.CheckStartOperating(c, p)
	return err == nil
}

// Available lists the status transitions the principal may fire right now
func (m *Machine) Available(c *models.Case, p policy.Principal) []Transition {
	var out []Transition
	for _, t := range m.rows {
		if t.Source != c.Status || t.Name == "assign" || t.Name == "reassign" {
			continue
		}
		if allowed(t.Guard, c, p) {
			out = append(out, t)
		}
	}
	return out
}

// IsTerminal reports whether no row leaves the status
func (m *Machine) IsTerminal(status string) bool {
	for _, t := range m.rows {
		if t.Source == status {
			return false
		}
	}
	return true
}

// Describe renders the audit text for an accepted transition
func Describe(t Transition) string {
	if t.Name == "approve" {
		return "Case Approved"
	}
	return fmt.Sprintf("Status updated to '%s'", t.Target)
}

func allowed(g Guard, c *models.Case, p policy.Principal) bool {
	switch g {
	case GuardAdmin:
		return policy.CanApprove(p)
	case GuardAssignee:
		return policy.CanTransition(p, c)
	}
	return false
}
