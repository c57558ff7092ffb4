package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eladdeutch/jobtracker/internal/db"
)

// DedupeInput contains parameters for the Dedupe operation.
type DedupeInput struct {
	Account string
	DryRun  bool
}

// DedupeOutput contains the result of the Dedupe operation.
type DedupeOutput struct {
	Summary
	Groups int `json:"groups"`
	Merged int `json:"merged"`
}

// Dedupe finds every group of applications describing the same company and
// position and merges each group into its earliest created member, one
// transaction per group.
func (p *Pipeline) Dedupe(ctx context.Context, input DedupeInput) (*DedupeOutput, error) {
	acct := account(p.Cfg, input.Account)
	matcher := p.matcher()

	var out *DedupeOutput
	err := p.run(ctx, "dedupe", acct, func(runID string) error {
		start := time.Now()
		res := &DedupeOutput{Summary: newSummary(runID, acct, start)}
		res.DryRun = input.DryRun

		apps, err := db.AllApplications(ctx, p.DB, acct)
		if err != nil {
			return err
		}
		groups := matcher.FindDuplicates(apps)
		res.Groups = len(groups)

		for _, group := range groups {
			if err := cancelled(ctx, "dedupe"); err != nil {
				return err
			}
			survivor := group[0]
			losers := make([]string, 0, len(group)-1)
			for _, app := range group[1:] {
				losers = append(losers, app.ID)
			}
			base := Change{ApplicationID: survivor.ID, Company: survivor.Company, Position: survivor.Position}

			if input.DryRun {
				res.Merged += len(losers)
				c := base
				c.Action = ChangeMerged
				c.Reason = "would merge " + strings.Join(losers, ", ")
				res.record(c)
				continue
			}

			var merged *mergeResult
			err := p.inRecordTx(ctx, func(tx *sql.Tx) error {
				var err error
				merged, err = mergeInto(ctx, tx, survivor.ID, losers, p.now().Unix())
				return err
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
			res.Merged += len(merged.MergedIDs)
			c := base
			c.Action = ChangeMerged
			c.To = merged.Survivor.Status
			c.Reason = "merged " + strings.Join(merged.MergedIDs, ", ")
			res.record(c)
		}

		res.finish(start)
		p.log().Info("dedupe complete",
			zap.String("run_id", runID),
			zap.Int("groups", res.Groups),
			zap.Int("merged", res.Merged),
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
