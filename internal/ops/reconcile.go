package ops

import (
	"context"

	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/lifecycle"
	"github.com/eladdeutch/jobtracker/internal/reconcile"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// linkResult is what reconciling one email did to the application set.
type linkResult struct {
	Action      string // ChangeCreated, ChangeLinked or ChangeMerged
	Decision    reconcile.Decision
	Application *tracker.Application
	MergedIDs   []string
	Moved       db.Reassigned
	Transition  lifecycle.Result
	// StatusChanged is set when an existing application moved.
	StatusChanged bool
}

// Blocked reports that the email carried a status the guard refused.
func (r *linkResult) Blocked() bool {
	return r.Transition.Outcome == lifecycle.OutcomeBlocked
}

// reconcileEmail runs the create/link/merge decision for one unprocessed
// email inside q's transaction and marks the email linked. company and
// position override the extracted values when non-empty.
func reconcileEmail(ctx context.Context, q db.Querier, m *reconcile.Matcher, emailID, company, position string, now int64) (*linkResult, error) {
	email, err := db.GetEmail(ctx, q, emailID)
	if err != nil {
		return nil, err
	}
	if email.State != tracker.EmailUnprocessed {
		return nil, errors.NewConflict("email " + emailID + " is already " + string(email.State))
	}
	if company == "" {
		company = email.Company
	}
	if position == "" {
		position = email.Position
	}
	company, position = tracker.Clean(company), tracker.Clean(position)
	if tracker.CompanyKey(company) == "" {
		return nil, errors.WithHint(
			errors.NewInvalidRequest("email "+emailID+" has no company to reconcile on"),
			"pass a company explicitly")
	}

	existing, err := db.ListApplicationsByCompany(ctx, q, email.Account, tracker.CompanyKey(company))
	if err != nil {
		return nil, err
	}
	decision := m.Decide(company, position, existing)
	res := &linkResult{Decision: decision}

	switch decision.Action {
	case reconcile.ActionCreateNew:
		app, err := newApplication(email.Account, company, position, now)
		if err != nil {
			return nil, err
		}
		app.AppliedAt = email.ReceivedAt
		res.Transition = applySignal(app, email)
		if err := db.InsertApplication(ctx, q, app); err != nil {
			return nil, err
		}
		res.Action = ChangeCreated
		res.Application = app

	case reconcile.ActionLinkTo, reconcile.ActionMergeWith:
		var app *tracker.Application
		if decision.Action == reconcile.ActionMergeWith {
			merged, err := mergeInto(ctx, q, decision.ApplicationID, decision.MergeIDs, now)
			if err != nil {
				return nil, err
			}
			app = merged.Survivor
			res.MergedIDs = merged.MergedIDs
			res.Moved = merged.Moved
			res.Action = ChangeMerged
		} else {
			if app, err = db.GetApplication(ctx, q, decision.ApplicationID); err != nil {
				return nil, err
			}
			res.Action = ChangeLinked
		}
		if app.Position == "" && position != "" {
			app.Position = position
			app.PositionKey = tracker.PositionKey(position)
		}
		res.Transition = applySignal(app, email)
		res.StatusChanged = res.Transition.Changed()
		// Linking is activity even when nothing else changed.
		if err := db.UpdateApplication(ctx, q, app, now); err != nil {
			return nil, err
		}
		res.Application = app

	default:
		return nil, errors.NewInternal(errors.Newf("unknown reconcile action %q", decision.Action))
	}

	if err := db.SetEmailState(ctx, q, email.ID, tracker.EmailUnprocessed, tracker.EmailLinked, res.Application.ID, now); err != nil {
		return nil, err
	}
	return res, nil
}

// applySignal proposes the email's status signal through the automated guard.
func applySignal(app *tracker.Application, email *tracker.EmailRecord) lifecycle.Result {
	if email.StatusSignal == "" {
		return lifecycle.Result{From: app.Status, To: app.Status, Outcome: lifecycle.OutcomeUnchanged}
	}
	return lifecycle.Apply(app, lifecycle.Proposal{
		To:             email.StatusSignal,
		Source:         lifecycle.SourceSignal,
		RejectionStage: email.RejectionStage,
	})
}

func newApplication(acct, company, position string, now int64) (*tracker.Application, error) {
	id, err := tracker.NewID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &tracker.Application{
		ID:          id,
		Account:     acct,
		Company:     company,
		CompanyKey:  tracker.CompanyKey(company),
		Position:    position,
		PositionKey: tracker.PositionKey(position),
		Status:      tracker.StatusApplied,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
