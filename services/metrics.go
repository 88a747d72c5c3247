package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics counts case activity. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	registrations prometheus.Counter
	transitions   *prometheus.CounterVec
	assignments   prometheus.Counter
	messages      *prometheus.CounterVec
	rejections    *prometheus.CounterVec
}

// NewMetrics registers the case collectors plus the Go and process collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "case_portal_cases_registered_total",
			Help: "Cases registered.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_portal_transitions_total",
			Help: "Accepted lifecycle transitions by name.",
		}, []string{"transition"}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "case_portal_assignments_total",
			Help: "Cases assigned to handlers.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_portal_messages_total",
			Help: "Messages posted, split by whether a file was attached.",
		}, []string{"with_file"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_portal_rejections_total",
			Help: "Rejected case operations by reason.",
		}, []string{"operation", "reason"}),
	}
	m.Registry.MustRegister(
		m.registrations, m.transitions, m.assignments, m.messages, m.rejections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) caseRegistered() {
	if m != nil {
		m.registrations.Inc()
	}
}

func (m *Metrics) transitionFired(name string) {
	if m != nil {
		m.transitions.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) caseAssigned() {
	if m != nil {
		m.assignments.Inc()
	}
}

func (m *Metrics) messagePosted(withFile bool) {
	if m == nil {
		return
	}
	label := "false"
	if withFile {
		label = "true"
	}
	m.messages.WithLabelValues(label).Inc()
}

func (m *Metrics) rejected(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.rejections.WithLabelValues(operation, rejectionReason(err)).Inc()
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	}
	return "error"
}
