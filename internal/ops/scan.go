package ops

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/eladdeutch/jobtracker/internal/classify"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/mailbox"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

const maxSnippetRunes = 240

// ScanInput contains parameters for the Scan operation.
type ScanInput struct {
	Account    string
	DaysBack   int // default: cfg.ScanDaysBack
	MaxResults int // default: cfg.ScanMaxResults
}

// EmailSummary is the short form of a stored email.
type EmailSummary struct {
	ID           string         `json:"id"`
	Subject      string         `json:"subject"`
	Sender       string         `json:"sender"`
	ReceivedAt   int64          `json:"received_at"`
	Company      string         `json:"company,omitempty"`
	Position     string         `json:"position,omitempty"`
	StatusSignal tracker.Status `json:"status_signal,omitempty"`
	JobRelated   bool           `json:"job_related"`
	Confidence   float64        `json:"confidence"`
}

// ScanOutput contains the result of the Scan operation.
type ScanOutput struct {
	Summary
	Fetched          int            `json:"fetched"`
	New              int            `json:"new"`
	JobRelated       int            `json:"job_related"`
	Ambiguous        int            `json:"ambiguous"`
	AlreadyDismissed int            `json:"already_dismissed"`
	AlreadyProcessed int            `json:"already_processed"`
	AlreadyPending   int            `json:"already_pending"`
	NewEmails        []EmailSummary `json:"new_emails"`
	LastSyncAt       int64          `json:"last_sync_at"`
}

// Scan fetches recent messages, classifies each new one and stores it as an
// unprocessed email. Message ids already stored are skipped, so rescanning an
// overlapping window is idempotent.
func (p *Pipeline) Scan(ctx context.Context, input ScanInput) (*ScanOutput, error) {
	if p.Mailbox == nil {
		return nil, errors.WithHint(
			errors.NewInvalidRequest("no mailbox configured"),
			"configure gmail credentials or set mailbox_file")
	}
	days := input.DaysBack
	if days <= 0 {
		days = p.Cfg.ScanDaysBack
	}
	limit := input.MaxResults
	if limit <= 0 {
		limit = p.Cfg.ScanMaxResults
	}
	acct := account(p.Cfg, input.Account)

	var out *ScanOutput
	err := p.run(ctx, "scan", acct, func(runID string) error {
		start := time.Now()
		now := p.now()
		res := &ScanOutput{Summary: newSummary(runID, acct, start), NewEmails: []EmailSummary{}}

		req := mailbox.FetchRequest{MaxResults: limit}
		if days > 0 {
			req.After = now.Add(-time.Duration(days) * day)
		}
		msgs, err := p.Mailbox.Fetch(ctx, req)
		if err != nil {
			return err
		}
		res.Fetched = len(msgs)

		ids := make([]string, len(msgs))
		for i, m := range msgs {
			ids[i] = m.ID
		}
		known, err := db.EmailStates(ctx, p.DB, ids)
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			if err := cancelled(ctx, "scan"); err != nil {
				return err
			}
			if state, ok := known[msg.ID]; ok {
				p.countKnown(res, state)
				continue
			}
			rec := newEmailRecord(acct, msg, now.Unix())
			inserted, err := db.InsertEmail(ctx, p.DB, rec)
			if err != nil {
				if fatal(err) {
					return err
				}
				res.skip(Change{EmailID: msg.ID, Reason: reason(err)})
				continue
			}
			if !inserted {
				// Stored by an earlier message with the same id in this batch.
				res.AlreadyPending++
				p.Metrics.Scanned("skipped_pending", 1)
				continue
			}
			known[msg.ID] = rec.State
			res.New++
			p.Metrics.Scanned("new", 1)
			if rec.JobRelated {
				res.JobRelated++
			}
			if rec.Company == "" && rec.Position == "" && rec.JobRelated {
				res.Ambiguous++
			}
			if len(res.NewEmails) < maxNewEmails {
				res.NewEmails = append(res.NewEmails, summarizeEmail(*rec))
			}
		}

		if err := db.SetLastSync(ctx, p.DB, acct, now.Unix()); err != nil {
			return err
		}
		res.LastSyncAt = now.Unix()
		res.finish(start)
		p.log().Info("scan complete",
			zap.String("account", acct),
			zap.String("run_id", runID),
			zap.Int("fetched", res.Fetched),
			zap.Int("new", res.New),
			zap.Int("ambiguous", res.Ambiguous),
		)
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) countKnown(res *ScanOutput, state tracker.EmailState) {
	switch state {
	case tracker.EmailDismissed:
		res.AlreadyDismissed++
		p.Metrics.Scanned("skipped_dismissed", 1)
	case tracker.EmailLinked:
		res.AlreadyProcessed++
		p.Metrics.Scanned("skipped_processed", 1)
	default:
		res.AlreadyPending++
		p.Metrics.Scanned("skipped_pending", 1)
	}
}

// newEmailRecord extracts and scores msg.
func newEmailRecord(acct string, msg tracker.Message, now int64) *tracker.EmailRecord {
	c := classify.Extract(msg)
	return &tracker.EmailRecord{
		ID:             msg.ID,
		Account:        acct,
		Sender:         msg.Sender,
		Subject:        msg.Subject,
		Snippet:        snippet(msg.Body),
		ReceivedAt:     msg.ReceivedAt.Unix(),
		Company:        c.Company,
		Position:       c.Position,
		StatusSignal:   c.Status,
		RejectionStage: c.RejectionStage,
		JobRelated:     c.JobRelated,
		Confidence:     classify.ScoreCandidate(c),
		Evidence:       c.Evidence,
		State:          tracker.EmailUnprocessed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func summarizeEmail(e tracker.EmailRecord) EmailSummary {
	return EmailSummary{
		ID:           e.ID,
		Subject:      e.Subject,
		Sender:       e.Sender,
		ReceivedAt:   e.ReceivedAt,
		Company:      e.Company,
		Position:     e.Position,
		StatusSignal: e.StatusSignal,
		JobRelated:   e.JobRelated,
		Confidence:   e.Confidence,
	}
}

func snippet(body string) string {
	s := tracker.Clean(strings.ToValidUTF8(body, ""))
	if utf8.RuneCountInString(s) <= maxSnippetRunes {
		return s
	}
	return string([]rune(s)[:maxSnippetRunes])
}
