package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/lifecycle"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// mergedNotesSeparator joins the notes of merged duplicates.
const mergedNotesSeparator = "\n\n--- Merged from duplicate ---\n"

type mergeResult struct {
	Survivor  *tracker.Application
	MergedIDs []string
	Moved     db.Reassigned
}

// mergeInto folds every loser into survivorID: fields are combined, owned
// emails, reminders and interviews are re-pointed, and the loser is deleted.
func mergeInto(ctx context.Context, q db.Querier, survivorID string, loserIDs []string, now int64) (*mergeResult, error) {
	survivor, err := db.GetApplication(ctx, q, survivorID)
	if err != nil {
		return nil, err
	}
	res := &mergeResult{Survivor: survivor, MergedIDs: []string{}}

	for _, id := range loserIDs {
		if id == survivorID {
			continue
		}
		loser, err := db.GetApplication(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if loser.Account != survivor.Account {
			return nil, errors.NewInvalidRequest("cannot merge applications of different accounts")
		}
		mergeFields(survivor, loser)

		moved, err := db.ReassignApplication(ctx, q, loser.ID, survivor.ID, now)
		if err != nil {
			return nil, err
		}
		res.Moved.Emails += moved.Emails
		res.Moved.Reminders += moved.Reminders
		res.Moved.Interviews += moved.Interviews
		res.Moved.RemindersDismissed += moved.RemindersDismissed

		if err := db.DeleteApplication(ctx, q, loser.ID, now); err != nil {
			return nil, err
		}
		res.MergedIDs = append(res.MergedIDs, loser.ID)
	}

	if err := db.UpdateApplication(ctx, q, survivor, now); err != nil {
		return nil, err
	}
	return res, nil
}

// mergeFields keeps dst's values, fills its gaps from src, concatenates
// notes and advances dst's status toward src's through the automated guard.
func mergeFields(dst, src *tracker.Application) {
	if dst.Position == "" && src.Position != "" {
		dst.Position = src.Position
		dst.PositionKey = src.PositionKey
	}
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&dst.JobDescription, src.JobDescription)
	fill(&dst.URL, src.URL)
	fill(&dst.SalaryRange, src.SalaryRange)
	fill(&dst.RecruiterContact, src.RecruiterContact)

	switch {
	case strings.TrimSpace(src.Notes) == "" || src.Notes == dst.Notes:
	case strings.TrimSpace(dst.Notes) == "":
		dst.Notes = src.Notes
	default:
		dst.Notes = dst.Notes + mergedNotesSeparator + src.Notes
	}

	if src.AppliedAt != 0 && (dst.AppliedAt == 0 || src.AppliedAt < dst.AppliedAt) {
		dst.AppliedAt = src.AppliedAt
	}

	if src.Status != dst.Status {
		lifecycle.Apply(dst, lifecycle.Proposal{
			To:             src.Status,
			Source:         lifecycle.SourceSignal,
			RejectionStage: src.RejectionStage,
		})
	}
}

// MergeInput contains parameters for the Merge operation.
type MergeInput struct {
	SourceID string // absorbed and deleted
	TargetID string // survives
}

// MergeOutput contains the result of the Merge operation.
type MergeOutput struct {
	Application *tracker.Application `json:"application"`
	MergedIDs   []string             `json:"merged_ids"`
	Moved       db.Reassigned        `json:"moved"`
}

// Merge folds the source application into the target in one transaction.
func Merge(ctx context.Context, database *sql.DB, input MergeInput) (*MergeOutput, error) {
	source, err := requireID("source application", input.SourceID)
	if err != nil {
		return nil, err
	}
	target, err := requireID("target application", input.TargetID)
	if err != nil {
		return nil, err
	}
	if source == target {
		return nil, errors.NewInvalidRequest("cannot merge an application into itself")
	}

	var res *mergeResult
	err = recordTx(ctx, database, nil, func(tx *sql.Tx) error {
		var err error
		res, err = mergeInto(ctx, tx, target, []string{source}, time.Now().Unix())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &MergeOutput{Application: res.Survivor, MergedIDs: res.MergedIDs, Moved: res.Moved}, nil
}
