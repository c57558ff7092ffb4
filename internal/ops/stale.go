package ops

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/lifecycle"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// RejectStaleInput contains parameters for the AutoRejectStale operation.
type RejectStaleInput struct {
	Account   string
	StaleDays int // default: cfg.StaleDays
	DryRun    bool
}

// RejectStaleOutput contains the result of the AutoRejectStale operation.
type RejectStaleOutput struct {
	Summary
	StaleDays int `json:"stale_days"`
	Rejected  int `json:"rejected"`
}

// AutoRejectStale closes applications nobody has heard about for StaleDays.
// It is a policy action: the forward-progress guard is skipped but terminal
// applications are never touched. The rejection stage records the status the
// application had reached. An application with a pending reminder still in
// the future is awaiting a follow-up and is left alone.
func (p *Pipeline) AutoRejectStale(ctx context.Context, input RejectStaleInput) (*RejectStaleOutput, error) {
	days := input.StaleDays
	if days <= 0 {
		days = p.Cfg.StaleDays
	}
	acct := account(p.Cfg, input.Account)

	var out *RejectStaleOutput
	err := p.run(ctx, "reject_stale", acct, func(runID string) error {
		start := time.Now()
		now := p.now()
		cutoff := now.Add(-time.Duration(days) * day).Unix()
		res := &RejectStaleOutput{Summary: newSummary(runID, acct, start), StaleDays: days}
		res.DryRun = input.DryRun

		stale, err := db.ListStaleApplications(ctx, p.DB, acct, cutoff, now.Unix())
		if err != nil {
			return err
		}

		for _, app := range stale {
			if err := cancelled(ctx, "reject_stale"); err != nil {
				return err
			}
			base := Change{ApplicationID: app.ID, Company: app.Company, Position: app.Position}

			if input.DryRun {
				decided := lifecycle.Decide(app.Status, stalePolicy)
				if decided.Changed() {
					res.Rejected++
					c := base
					c.Action = ChangeRejected
					c.From, c.To = decided.From, decided.To
					c.Reason = "would reject: rejection stage " + string(decided.RejectionStage)
					res.record(c)
				}
				continue
			}

			var result lifecycle.Result
			err := p.inRecordTx(ctx, func(tx *sql.Tx) error {
				result = lifecycle.Result{}
				return rejectIfStale(ctx, tx, app.ID, cutoff, now.Unix(), &result)
			})
			if err != nil {
				if fatal(err) {
					return err
				}
				c := base
				c.Reason = reason(err)
				res.skip(c)
				continue
			}
			if result.Outcome == "" {
				continue
			}
			p.Metrics.Transition(string(lifecycle.SourcePolicy), string(result.Outcome))
			if !result.Changed() {
				continue
			}
			res.Rejected++
			c := base
			c.Action = ChangeRejected
			c.From, c.To = result.From, result.To
			c.Reason = "rejection stage " + string(result.RejectionStage)
			res.record(c)
		}

		res.finish(start)
		p.log().Info("auto-reject-stale complete",
			zap.String("run_id", runID),
			zap.Int("candidates", len(stale)),
			zap.Int("rejected", res.Rejected),
			zap.Bool("dry_run", input.DryRun),
		)
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var stalePolicy = lifecycle.Proposal{To: tracker.StatusRejected, Source: lifecycle.SourcePolicy}

// rejectIfStale re-checks staleness inside the record's transaction, then
// rejects the application and dismisses its overdue reminder. result stays
// zero when the application is no longer stale.
func rejectIfStale(ctx context.Context, tx *sql.Tx, id string, cutoff, now int64, result *lifecycle.Result) error {
	app, err := db.GetApplication(ctx, tx, id)
	if err != nil {
		return err
	}
	if app.Status.Terminal() || app.UpdatedAt >= cutoff {
		return nil
	}
	pending, err := db.PendingReminder(ctx, tx, id)
	if err != nil {
		return err
	}
	if pending != nil && pending.DueAt > now {
		return nil
	}

	*result = lifecycle.Apply(app, stalePolicy)
	if !result.Changed() {
		return nil
	}
	if pending != nil {
		if err := db.CloseReminder(ctx, tx, pending.ID, tracker.ReminderDismissed, now); err != nil {
			return err
		}
	}
	return db.UpdateApplication(ctx, tx, app, now)
}
