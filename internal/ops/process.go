package ops

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/lifecycle"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// AutoProcessInput contains parameters for the AutoProcess operation.
type AutoProcessInput struct {
	Account       string
	MinConfidence *float64 // default: cfg.MinConfidence
	Limit         int      // 0 processes every eligible email
}

// AutoProcessOutput contains the result of the AutoProcess operation.
type AutoProcessOutput struct {
	Summary
	Threshold   float64 `json:"threshold"`
	Processed   int     `json:"processed"`
	Created     int     `json:"created"`
	Updated     int     `json:"updated"`
	Linked      int     `json:"linked"`
	Merged      int     `json:"merged"`
	Blocked     int     `json:"blocked"`
	NeedsReview int     `json:"needs_review"`
	// Unprocessed is how many emails remain for manual review after the run.
	Unprocessed int `json:"unprocessed"`
}

// AutoProcess reconciles every unprocessed job-related email scoring at
// least the threshold, oldest first. Each email's create/link/merge decision
// and its state change commit together. Emails below the threshold stay
// unprocessed.
func (p *Pipeline) AutoProcess(ctx context.Context, input AutoProcessInput) (*AutoProcessOutput, error) {
	threshold := p.Cfg.MinConfidence
	if input.MinConfidence != nil {
		threshold = *input.MinConfidence
	}
	if threshold < 0 || threshold > 1 {
		return nil, errors.NewInvalidRequest("min_confidence must be within [0,1]")
	}
	acct := account(p.Cfg, input.Account)
	matcher := p.matcher()

	var out *AutoProcessOutput
	err := p.run(ctx, "auto_process", acct, func(runID string) error {
		start := time.Now()
		res := &AutoProcessOutput{Summary: newSummary(runID, acct, start), Threshold: threshold}
		log := p.log().With(zap.String("run_id", runID))

		emails, err := db.ListUnprocessedEmails(ctx, p.DB, acct, threshold, input.Limit)
		if err != nil {
			return err
		}

		for _, e := range emails {
			if err := cancelled(ctx, "auto_process"); err != nil {
				return err
			}
			base := Change{EmailID: e.ID, Company: e.Company, Position: e.Position}
			if tracker.CompanyKey(e.Company) == "" {
				res.NeedsReview++
				c := base
				c.Action = ChangeNeedReview
				c.Reason = "no company extracted"
				res.record(c)
				p.Metrics.Processed("needs_review")
				continue
			}

			var lr *linkResult
			err := p.inRecordTx(ctx, func(tx *sql.Tx) error {
				var err error
				lr, err = reconcileEmail(ctx, tx, matcher, e.ID, "", "", p.now().Unix())
				return err
			})
			if err != nil {
				if fatal(err) {
					return err
				}
				c := base
				c.Reason = reason(err)
				res.skip(c)
				p.Metrics.Processed("skipped")
				log.Warn("email skipped", zap.String("email_id", e.ID), zap.Error(err))
				continue
			}

			res.Processed++
			p.countLink(res, lr, base)
		}

		counts, err := db.CountEmailsByState(ctx, p.DB, acct)
		if err != nil {
			return err
		}
		res.Unprocessed = counts[tracker.EmailUnprocessed]
		res.finish(start)
		log.Info("auto-process complete",
			zap.Int("processed", res.Processed),
			zap.Int("created", res.Created),
			zap.Int("updated", res.Updated),
			zap.Int("linked", res.Linked),
			zap.Int("merged", res.Merged),
			zap.Int("skipped", res.Skipped),
		)
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) countLink(res *AutoProcessOutput, lr *linkResult, base Change) {
	c := base
	c.Action = lr.Action
	c.ApplicationID = lr.Application.ID
	c.Company = lr.Application.Company
	c.Position = lr.Application.Position
	c.Reason = lr.Decision.Reason

	switch lr.Action {
	case ChangeCreated:
		res.Created++
	case ChangeMerged:
		res.Merged++
		res.Linked++
	default:
		res.Linked++
	}
	if lr.StatusChanged {
		res.Updated++
	}
	if lr.Transition.Changed() {
		c.From, c.To = lr.Transition.From, lr.Transition.To
	}
	res.record(c)
	p.Metrics.Processed(lr.Action)

	if lr.Transition.Outcome != lifecycle.OutcomeUnchanged && lr.Transition.Outcome != "" {
		p.Metrics.Transition(string(lifecycle.SourceSignal), string(lr.Transition.Outcome))
	}
	if lr.Blocked() {
		res.Blocked++
		res.record(Change{
			Action:        ChangeBlocked,
			EmailID:       base.EmailID,
			ApplicationID: lr.Application.ID,
			From:          lr.Transition.From,
			Reason:        lr.Transition.Reason,
		})
	}
}
