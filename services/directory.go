package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"case_portal_go/models"
	"case_portal_go/services/policy"

	"gorm.io/gorm"
)

// Bucket is a status grouping inside a directory scope
type Bucket string

const (
	BucketAll      Bucket = ""
	BucketPending  Bucket = "pending"
	BucketApproved Bucket = "approved"
	BucketAssigned Bucket = "assigned"
	BucketOngoing  Bucket = "ongoing"
	BucketClosed   Bucket = "closed"
)

type statusRule func(status string) bool

func statusIs(want string) statusRule {
	return func(s string) bool { return s == want }
}

func statusNotIn(excluded ...string) statusRule {
	return func(s string) bool {
		for _, e := range excluded {
			if s == e {
				return false
			}
		}
		return true
	}
}

type bucketDef struct {
	bucket Bucket
	match  statusRule
}

// Buckets per scope, in display order
var scopeBuckets = map[policy.Scope][]bucketDef{
	policy.ScopeAll: {
		{BucketPending, statusIs(models.CaseStatusPending)},
		{BucketApproved, statusIs(models.CaseStatusApproved)},
		{BucketAssigned, statusNotIn(models.CaseStatusPending, models.CaseStatusApproved, models.CaseStatusClosed)},
		{BucketClosed, statusIs(models.CaseStatusClosed)},
	},
	policy.ScopeAssignedToMe: {
		{BucketAssigned, statusIs(models.CaseStatusAssigned)},
		{BucketOngoing, statusNotIn(models.CaseStatusAssigned, models.CaseStatusPending, models.CaseStatusApproved, models.CaseStatusClosed)},
		{BucketClosed, statusIs(models.CaseStatusClosed)},
	},
	policy.ScopeMine: {
		{BucketPending, statusIs(models.CaseStatusPending)},
		{BucketOngoing, statusNotIn(models.CaseStatusPending, models.CaseStatusClosed)},
		{BucketClosed, statusIs(models.CaseStatusClosed)},
	},
}

// BucketsFor lists the buckets a scope offers
func BucketsFor(scope policy.Scope) []Bucket {
	defs := scopeBuckets[scope]
	out := make([]Bucket, len(defs))
	for i, d := range defs {
		out[i] = d.bucket
	}
	return out
}

func bucketRule(scope policy.Scope, b Bucket) (statusRule, bool) {
	if b == BucketAll {
		return func(string) bool { return true }, true
	}
	for _, d := range scopeBuckets[scope] {
		if d.bucket == b {
			return d.match, true
		}
	}
	return nil, false
}

// DirectoryFilter selects a directory view
type DirectoryFilter struct {
	Scope  policy.Scope
	Bucket Bucket
	Query  string
}

// Normalize fills in the principal's default scope
func (f DirectoryFilter) Normalize(p policy.Principal) DirectoryFilter {
	if f.Scope == "" {
		f.Scope = policy.DefaultScope(p)
	}
	f.Query = strings.TrimSpace(f.Query)
	return f
}

// Project filters and orders a case collection for one principal. It is pure:
// the same inputs always produce the same output. Cases must carry their
// CreatedBy and AssignedTo associations for the text query.
func Project(cases []models.Case, p policy.Principal, f DirectoryFilter) ([]models.Case, error) {
	f = f.Normalize(p)
	if !policy.CanBrowse(p, f.Scope) {
		return nil, ErrUnauthorized
	}
	match, ok := bucketRule(f.Scope, f.Bucket)
	if !ok {
		return nil, fmt.Errorf("%w: bucket %q not available in scope %q", ErrInvalidInput, f.Bucket, f.Scope)
	}
	query := strings.ToLower(f.Query)

	out := make([]models.Case, 0, len(cases))
	for i := range cases {
		c := &cases[i]
		if !policy.CanViewDirectoryEntry(p, c, f.Scope) || !match(c.Status) {
			continue
		}
		if query != "" && !matchesQuery(c, p, query) {
			continue
		}
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// matchesQuery is a case-insensitive substring match on title, creator or
// assignee. Anonymous creators are only searchable by administrators.
func matchesQuery(c *models.Case, p policy.Principal, query string) bool {
	creator := c.CreatedBy.Username
	if c.IsAnonymous && !p.IsAdmin() {
		creator = ""
	}
	return strings.Contains(strings.ToLower(c.Title), query) ||
		strings.Contains(strings.ToLower(creator), query) ||
		strings.Contains(strings.ToLower(c.AssigneeName()), query)
}

// loadScope fetches the cases a scope could show, with the associations Project needs
func loadScope(ctx context.Context, db *gorm.DB, p policy.Principal, scope policy.Scope) ([]models.Case, error) {
	q := db.WithContext(ctx).Preload("CreatedBy").Preload("AssignedTo")
	switch scope {
	case policy.ScopeMine:
		q = q.Where("created_by_id = ?", p.ID)
	case policy.ScopeAssignedToMe:
		q = q.Where("assigned_to_id = ?", p.ID)
	}
	var cases []models.Case
	if err := q.Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

// ListCases reads the current case collection and projects it. Nothing is cached.
func ListCases(ctx context.Context, db *gorm.DB, p policy.Principal, f DirectoryFilter) ([]models.Case, error) {
	f = f.Normalize(p)
	if !policy.CanBrowse(p, f.Scope) {
		return nil, ErrUnauthorized
	}
	cases, err := loadScope(ctx, db, p, f.Scope)
	if err != nil {
		return nil, err
	}
	return Project(cases, p, f)
}

// BucketCount is one row of a dashboard
type BucketCount struct {
	Bucket  Bucket `json:"bucket"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// DirectoryStats summarises a scope
type DirectoryStats struct {
	Scope   policy.Scope  `json:"scope"`
	Total   int           `json:"total"`
	Buckets []BucketCount `json:"buckets"`
}

// percentOf truncates like the dashboards always have
func percentOf(count, total int) int {
	if total == 0 {
		return 0
	}
	return count * 100 / total
}

// Stats counts the principal's cases per bucket of the scope
func Stats(ctx context.Context, db *gorm.DB, p policy.Principal, scope policy.Scope) (*DirectoryStats, error) {
	f := DirectoryFilter{Scope: scope}.Normalize(p)
	if !policy.CanBrowse(p, f.Scope) {
		return nil, ErrUnauthorized
	}
	cases, err := loadScope(ctx, db, p, f.Scope)
	if err != nil {
		return nil, err
	}
	visible, err := Project(cases, p, f)
	if err != nil {
		return nil, err
	}

	stats := &DirectoryStats{Scope: f.Scope, Total: len(visible)}
	for _, def := range scopeBuckets[f.Scope] {
		n := 0
		for i := range visible {
			if def.match(visible[i].Status) {
				n++
			}
		}
		stats.Buckets = append(stats.Buckets, BucketCount{Bucket: def.bucket, Count: n, Percent: percentOf(n, stats.Total)})
	}
	return stats, nil
}

// DayCount is one bar of the registrations histogram
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// CasesPerDay counts registrations for the last `days` calendar days ending
// with now's date, oldest first. Days without cases are reported as zero.
func CasesPerDay(ctx context.Context, db *gorm.DB, days int, now time.Time) ([]DayCount, error) {
	if days <= 0 {
		days = 7
	}
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -(days - 1))

	var created []time.Time
	if err := db.WithContext(ctx).Model(&models.Case{}).Pluck("created_at", &created).Error; err != nil {
		return nil, err
	}

	// Compare in Go: stored timestamps may carry a different offset than now
	counts := make(map[string]int, days)
	for _, t := range created {
		if t.Before(start) {
			continue
		}
		counts[t.In(loc).Format("2006-01-02")]++
	}

	out := make([]DayCount, 0, days)
	for d := 0; d < days; d++ {
		label := start.AddDate(0, 0, d).Format("2006-01-02")
		out = append(out, DayCount{Day: label, Count: counts[label]})
	}
	return out, nil
}
