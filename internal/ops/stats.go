package ops

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/lifecycle"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// funnelStages are the lifecycle stages reported in the interview funnel.
var funnelStages = []tracker.Status{
	tracker.StatusApplied,
	tracker.StatusPhoneScreen,
	tracker.StatusFirstInterview,
	tracker.StatusSecondInterview,
	tracker.StatusThirdInterview,
	tracker.StatusOfferReceived,
}

// StatusCount is one row of a breakdown.
type StatusCount struct {
	Status  tracker.Status `json:"status"`
	Label   string         `json:"label"`
	Count   int            `json:"count"`
	Percent float64        `json:"percent"`
}

// StatsInput contains parameters for the Stats operation.
type StatsInput struct {
	Account string
}

// StatsOutput is the dashboard summary of an account.
type StatsOutput struct {
	Account          string         `json:"account"`
	Total            int            `json:"total"`
	Active           int            `json:"active"`
	ByStatus         []StatusCount  `json:"by_status"`
	Rejections       int            `json:"rejections"`
	RejectionStages  []StatusCount  `json:"rejection_stages"`
	Funnel           []StatusCount  `json:"funnel"`
	ResponseRate     float64        `json:"response_rate"`
	Emails           map[string]int `json:"emails"`
	PendingReminders int            `json:"pending_reminders"`
	LastSyncAt       int64          `json:"last_sync_at,omitempty"`
}

// Stats computes status, rejection-stage and funnel breakdowns.
func Stats(ctx context.Context, database *sql.DB, cfg *config.Config, input StatsInput) (*StatsOutput, error) {
	acct := account(cfg, input.Account)
	byStatus, err := db.CountApplicationsByStatus(ctx, database, acct)
	if err != nil {
		return nil, err
	}
	stages, err := db.CountRejectionStages(ctx, database, acct)
	if err != nil {
		return nil, err
	}
	emails, err := db.CountEmailsByState(ctx, database, acct)
	if err != nil {
		return nil, err
	}
	pending, err := db.CountPendingReminders(ctx, database, acct)
	if err != nil {
		return nil, err
	}
	lastSync, err := db.LastSync(ctx, database, acct)
	if err != nil {
		return nil, err
	}

	out := &StatsOutput{
		Account:          acct,
		ByStatus:         []StatusCount{},
		RejectionStages:  []StatusCount{},
		Funnel:           []StatusCount{},
		Emails:           map[string]int{},
		PendingReminders: pending,
		LastSyncAt:       lastSync,
	}
	for _, s := range tracker.Statuses {
		out.Total += byStatus[s]
		if !s.Terminal() {
			out.Active += byStatus[s]
		}
	}
	for _, s := range tracker.Statuses {
		if n := byStatus[s]; n > 0 {
			out.ByStatus = append(out.ByStatus, StatusCount{Status: s, Label: s.Label(), Count: n, Percent: percent(n, out.Total)})
		}
	}

	out.Rejections = byStatus[tracker.StatusRejected]
	for _, s := range append(append([]tracker.Status{}, tracker.Statuses...), "") {
		if n := stages[s]; n > 0 {
			label := s.Label()
			if s == "" {
				label = "Unknown"
			}
			out.RejectionStages = append(out.RejectionStages, StatusCount{Status: s, Label: label, Count: n, Percent: percent(n, out.Rejections)})
		}
	}

	// reached[rank] counts applications whose furthest stage has that rank.
	reached := map[int]int{}
	responded := 0
	for s, n := range byStatus {
		switch s {
		case tracker.StatusRejected:
			continue
		case tracker.StatusWithdrawn:
			reached[lifecycle.Rank(tracker.StatusApplied)] += n
		default:
			reached[lifecycle.Rank(s)] += n
		}
		if movedOn(s) {
			responded += n
		}
	}
	for stage, n := range stages {
		if stage == "" {
			stage = tracker.StatusApplied
		}
		reached[lifecycle.Rank(stage)] += n
		if movedOn(stage) {
			responded += n
		}
	}
	for _, stage := range funnelStages {
		n := 0
		for rank, count := range reached {
			if rank >= lifecycle.Rank(stage) {
				n += count
			}
		}
		out.Funnel = append(out.Funnel, StatusCount{Status: stage, Label: stage.Label(), Count: n, Percent: percent(n, out.Total)})
	}
	out.ResponseRate = percent(responded, out.Total)

	for state, n := range emails {
		out.Emails[string(state)] = n
	}
	return out, nil
}

// movedOn reports a stage past the initial application, i.e. the company
// answered. no_response, withdrawn and rejected do not count.
func movedOn(s tracker.Status) bool {
	switch s {
	case tracker.StatusApplied, tracker.StatusNoResponse, tracker.StatusWithdrawn, tracker.StatusRejected, "":
		return false
	}
	return true
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

// ReportInput contains parameters for the Report operation.
type ReportInput struct {
	Account string
	Format  string // markdown (default) or html
	Recent  int    // recently updated applications listed; default 10
}

// ReportOutput contains the rendered report.
type ReportOutput struct {
	Format  string `json:"format"`
	Content string `json:"content"`
}

var reportMarkdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Report renders a job search summary as markdown, or as HTML via goldmark.
func Report(ctx context.Context, database *sql.DB, cfg *config.Config, input ReportInput) (*ReportOutput, error) {
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" || format == "md" {
		format = "markdown"
	}
	if format != "markdown" && format != "html" {
		return nil, errors.NewInvalidRequest("format must be markdown or html")
	}
	recent := input.Recent
	if recent <= 0 {
		recent = 10
	}

	stats, err := Stats(ctx, database, cfg, StatsInput{Account: input.Account})
	if err != nil {
		return nil, err
	}
	apps, _, err := db.ListApplications(ctx, database, db.ApplicationFilter{Account: stats.Account, Limit: min(recent, MaxListLimit)})
	if err != nil {
		return nil, err
	}
	due, err := ListDueReminders(ctx, database, cfg, ListDueInput{Account: stats.Account})
	if err != nil {
		return nil, err
	}

	md := renderReport(stats, apps, due.Items, time.Now())
	if format == "markdown" {
		return &ReportOutput{Format: format, Content: md}, nil
	}
	var buf bytes.Buffer
	if err := reportMarkdown.Convert([]byte(md), &buf); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &ReportOutput{Format: format, Content: buf.String()}, nil
}

func renderReport(stats *StatsOutput, apps []tracker.Application, due []db.DueReminder, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Job search report: %s\n\n", stats.Account)
	fmt.Fprintf(&b, "_Generated %s_\n\n", now.UTC().Format("2006-01-02 15:04 UTC"))

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- Applications: %d (%d active)\n", stats.Total, stats.Active)
	fmt.Fprintf(&b, "- Response rate: %.1f%%\n", stats.ResponseRate)
	fmt.Fprintf(&b, "- Pending reminders: %d\n", stats.PendingReminders)
	fmt.Fprintf(&b, "- Emails awaiting review: %d\n", stats.Emails[string(tracker.EmailUnprocessed)])
	if stats.LastSyncAt != 0 {
		fmt.Fprintf(&b, "- Last mailbox scan: %s\n", formatDate(stats.LastSyncAt))
	}
	b.WriteString("\n")

	writeTable := func(title string, rows []StatusCount) {
		if len(rows) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n| Stage | Count | Share |\n|---|---:|---:|\n", title)
		for _, r := range rows {
			fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", r.Label, r.Count, r.Percent)
		}
		b.WriteString("\n")
	}
	writeTable("Status breakdown", stats.ByStatus)
	writeTable("Rejections by stage", stats.RejectionStages)
	if stats.Total > 0 {
		writeTable("Interview funnel", stats.Funnel)
	}

	if len(due) > 0 {
		b.WriteString("## Due reminders\n\n")
		for _, r := range due {
			fmt.Fprintf(&b, "- %s: %s\n", formatDate(r.DueAt), escapeCell(r.Message))
		}
		b.WriteString("\n")
	}

	if len(apps) > 0 {
		b.WriteString("## Recent activity\n\n| Company | Position | Status | Updated |\n|---|---|---|---|\n")
		for _, a := range apps {
			status := a.Status.Label()
			if a.Status == tracker.StatusRejected && a.RejectionStage != "" {
				status += " (after " + a.RejectionStage.Label() + ")"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", escapeCell(a.Company), escapeCell(a.Position), status, formatDate(a.UpdatedAt))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatDate(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02")
}

// escapeCell keeps user text from breaking a markdown table row.
func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
