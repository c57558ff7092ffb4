// Package ops implements every jobtracker operation. The CLI, MCP and HTTP
// surfaces are thin wrappers that decode input, call one function here and
// encode the output.
package ops

import (
	"strconv"
	"strings"
	"time"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	// maxChanges caps the per-item change log returned by batch runs.
	maxChanges = 50

	// maxNewEmails caps the new email summaries returned by a scan.
	maxNewEmails = 20

	day = 24 * time.Hour
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// page applies limit defaults and bounds.
func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

func paginate(limit, offset, returned, total int) Pagination {
	return Pagination{
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+returned < total,
		Total:   total,
	}
}

// account resolves the account an operation runs for.
func account(cfg *config.Config, requested string) string {
	if a := strings.TrimSpace(requested); a != "" {
		return a
	}
	if cfg != nil && cfg.Account != "" {
		return cfg.Account
	}
	return "default"
}

func requireID(kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest(kind + " id is required")
	}
	return id, nil
}

func parseStatus(s string) (tracker.Status, error) {
	st, err := tracker.ParseStatus(s)
	if err != nil {
		return "", errors.WithHint(err, "valid statuses: "+statusList())
	}
	return st, nil
}

func statusList() string {
	names := make([]string, len(tracker.Statuses))
	for i, s := range tracker.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// ParseTime reads a timestamp given as RFC3339 or YYYY-MM-DD (midnight UTC)
// and returns unix seconds. Empty input yields 0.
func ParseTime(field, s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Unix(), nil
	}
	return 0, errors.WithHint(
		errors.NewInvalidRequest(field+": invalid time "+strconv.Quote(s)),
		"use RFC3339 (2026-03-01T09:00:00Z) or a date (2026-03-01)")
}

// startOfDay is midnight of t in t's location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Change is one line of a batch run's change log.
type Change struct {
	Action        string         `json:"action"`
	EmailID       string         `json:"email_id,omitempty"`
	ApplicationID string         `json:"application_id,omitempty"`
	Company       string         `json:"company,omitempty"`
	Position      string         `json:"position,omitempty"`
	From          tracker.Status `json:"from,omitempty"`
	To            tracker.Status `json:"to,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

// Change actions
const (
	ChangeCreated    = "created"
	ChangeLinked     = "linked"
	ChangeMerged     = "merged"
	ChangeBlocked    = "blocked"
	ChangeReminder   = "reminder_created"
	ChangeRejected   = "rejected"
	ChangeSkipped    = "skipped"
	ChangeNeedReview = "needs_review"
)

// Summary is the common part of every batch run's output.
type Summary struct {
	RunID      string   `json:"run_id"`
	Account    string   `json:"account"`
	DryRun     bool     `json:"dry_run,omitempty"`
	Skipped    int      `json:"skipped"`
	Changes    []Change `json:"changes"`
	Truncated  bool     `json:"truncated,omitempty"`
	StartedAt  int64    `json:"started_at"`
	DurationMS int64    `json:"duration_ms"`
}

func newSummary(runID, acct string, start time.Time) Summary {
	return Summary{RunID: runID, Account: acct, Changes: []Change{}, StartedAt: start.Unix()}
}

func (s *Summary) record(c Change) {
	if len(s.Changes) >= maxChanges {
		s.Truncated = true
		return
	}
	s.Changes = append(s.Changes, c)
}

func (s *Summary) skip(c Change) {
	s.Skipped++
	c.Action = ChangeSkipped
	s.record(c)
}

func (s *Summary) finish(start time.Time) {
	s.DurationMS = time.Since(start).Milliseconds()
}
