package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/lifecycle"
	"github.com/eladdeutch/jobtracker/internal/reconcile"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// ListEmailsInput contains parameters for the ListEmails operation.
type ListEmailsInput struct {
	Account       string
	State         string // unprocessed, linked or dismissed
	ApplicationID string
	JobRelated    *bool
	Limit         int // default: 20, max: 100
	Offset        int
}

// ListEmailsOutput contains the result of the ListEmails operation.
type ListEmailsOutput struct {
	Items      []tracker.EmailRecord `json:"items"`
	Pagination Pagination            `json:"pagination"`
	Sort       string                `json:"sort"`
}

// ListEmails returns stored emails, newest message first.
func ListEmails(ctx context.Context, database *sql.DB, cfg *config.Config, input ListEmailsInput) (*ListEmailsOutput, error) {
	state := tracker.EmailState(input.State)
	if state != "" && !state.Valid() {
		return nil, errors.NewInvalidRequest("state must be one of unprocessed, linked, dismissed")
	}
	limit, offset := page(input.Limit, input.Offset)
	items, total, err := db.ListEmails(ctx, database, db.EmailFilter{
		Account:       account(cfg, input.Account),
		State:         state,
		ApplicationID: input.ApplicationID,
		JobRelated:    input.JobRelated,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, err
	}
	return &ListEmailsOutput{
		Items:      items,
		Pagination: paginate(limit, offset, len(items), total),
		Sort:       "received_at_desc",
	}, nil
}

// GetEmailInput addresses one email.
type GetEmailInput struct {
	ID string
}

// GetEmail returns a stored email with its extraction evidence.
func GetEmail(ctx context.Context, database *sql.DB, input GetEmailInput) (*tracker.EmailRecord, error) {
	id, err := requireID("email", input.ID)
	if err != nil {
		return nil, err
	}
	return db.GetEmail(ctx, database, id)
}

// LinkEmailInput contains parameters for the LinkEmail operation.
type LinkEmailInput struct {
	EmailID       string
	ApplicationID string
	// ApplyStatus proposes the email's status signal to the application
	// through the forward-progress guard.
	ApplyStatus bool
}

// LinkEmailOutput contains the result of the LinkEmail operation.
type LinkEmailOutput struct {
	Email       *tracker.EmailRecord `json:"email"`
	Application *tracker.Application `json:"application"`
	Transition  *lifecycle.Result    `json:"transition,omitempty"`
}

// LinkEmail attaches an email to an application by hand.
func LinkEmail(ctx context.Context, database *sql.DB, input LinkEmailInput) (*LinkEmailOutput, error) {
	emailID, err := requireID("email", input.EmailID)
	if err != nil {
		return nil, err
	}
	appID, err := requireID("application", input.ApplicationID)
	if err != nil {
		return nil, err
	}

	out := &LinkEmailOutput{}
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		email, err := db.GetEmail(ctx, tx, emailID)
		if err != nil {
			return err
		}
		app, err := db.GetApplication(ctx, tx, appID)
		if err != nil {
			return err
		}
		if email.Account != app.Account {
			return errors.NewInvalidRequest("email and application belong to different accounts")
		}
		if err := db.SetEmailState(ctx, tx, email.ID, email.State, tracker.EmailLinked, app.ID, now); err != nil {
			return err
		}
		out.Transition = nil
		if input.ApplyStatus && email.StatusSignal != "" {
			res := applySignal(app, email)
			out.Transition = &res
		}
		if err := db.UpdateApplication(ctx, tx, app, now); err != nil {
			return err
		}
		email.State, email.ApplicationID, email.UpdatedAt = tracker.EmailLinked, app.ID, now
		out.Email, out.Application = email, app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DismissEmailInput contains parameters for the DismissEmail operation.
type DismissEmailInput struct {
	EmailID string
}

// DismissEmail marks an email as not worth tracking. Rescans skip it, and a
// linked email is detached from its application.
func DismissEmail(ctx context.Context, database *sql.DB, input DismissEmailInput) (*tracker.EmailRecord, error) {
	id, err := requireID("email", input.EmailID)
	if err != nil {
		return nil, err
	}
	var email *tracker.EmailRecord
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		if email, err = db.GetEmail(ctx, tx, id); err != nil {
			return err
		}
		if email.State == tracker.EmailDismissed {
			return nil
		}
		now := time.Now().Unix()
		if err := db.SetEmailState(ctx, tx, id, email.State, tracker.EmailDismissed, "", now); err != nil {
			return err
		}
		email.State, email.ApplicationID, email.UpdatedAt = tracker.EmailDismissed, "", now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return email, nil
}

// CreateFromEmailInput contains parameters for the CreateFromEmail operation.
type CreateFromEmailInput struct {
	EmailID  string
	Company  string // overrides the extracted company
	Position string // overrides the extracted position
}

// CreateFromEmailOutput contains the result of the CreateFromEmail operation.
type CreateFromEmailOutput struct {
	Action      string               `json:"action"`
	Decision    reconcile.Decision   `json:"decision"`
	Application *tracker.Application `json:"application"`
	MergedIDs   []string             `json:"merged_ids,omitempty"`
	Transition  lifecycle.Result     `json:"transition"`
}

// CreateFromEmail reconciles one unprocessed email regardless of its
// confidence. It runs under the account's batch lock like auto-process.
func CreateFromEmail(ctx context.Context, database *sql.DB, cfg *config.Config, input CreateFromEmailInput) (*CreateFromEmailOutput, error) {
	id, err := requireID("email", input.EmailID)
	if err != nil {
		return nil, err
	}
	email, err := db.GetEmail(ctx, database, id)
	if err != nil {
		return nil, err
	}
	matcher := reconcile.NewMatcher(similarity(cfg))

	var lr *linkResult
	err = withAccountLock(ctx, database, cfg, email.Account, time.Now(), func(string) error {
		return recordTx(ctx, database, nil, func(tx *sql.Tx) error {
			var err error
			lr, err = reconcileEmail(ctx, tx, matcher, id, input.Company, input.Position, time.Now().Unix())
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreateFromEmailOutput{
		Action:      lr.Action,
		Decision:    lr.Decision,
		Application: lr.Application,
		MergedIDs:   lr.MergedIDs,
		Transition:  lr.Transition,
	}, nil
}
