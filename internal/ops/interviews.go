package ops

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/lifecycle"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// ScheduleInterviewInput contains parameters for the ScheduleInterview operation.
type ScheduleInterviewInput struct {
	ApplicationID string
	Kind          string // default: other
	ScheduledAt   int64  // unix seconds, required
	Location      string
	Interviewer   string
	Notes         string
}

// ScheduleInterviewOutput contains the result of the ScheduleInterview operation.
type ScheduleInterviewOutput struct {
	Interview   *tracker.Interview   `json:"interview"`
	Application *tracker.Application `json:"application"`
	Transition  lifecycle.Result     `json:"transition"`
}

// ScheduleInterview records an interview and proposes the lifecycle stage it
// implies through the forward-progress guard.
func ScheduleInterview(ctx context.Context, database *sql.DB, input ScheduleInterviewInput) (*ScheduleInterviewOutput, error) {
	appID, err := requireID("application", input.ApplicationID)
	if err != nil {
		return nil, err
	}
	kind, err := parseKind(input.Kind)
	if err != nil {
		return nil, err
	}
	if input.ScheduledAt <= 0 {
		return nil, errors.NewInvalidRequest("scheduled_at is required")
	}

	var out *ScheduleInterviewOutput
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		app, err := db.GetApplication(ctx, tx, appID)
		if err != nil {
			return err
		}
		id, err := tracker.NewID()
		if err != nil {
			return errors.NewInternal(err)
		}
		iv := &tracker.Interview{
			ID:            id,
			ApplicationID: app.ID,
			Kind:          kind,
			ScheduledAt:   input.ScheduledAt,
			Location:      strings.TrimSpace(input.Location),
			Interviewer:   strings.TrimSpace(input.Interviewer),
			Notes:         strings.TrimSpace(input.Notes),
			Outcome:       tracker.OutcomePending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := db.InsertInterview(ctx, tx, iv); err != nil {
			return err
		}
		res := lifecycle.Apply(app, lifecycle.Proposal{
			To:     lifecycle.StageForInterview(kind, app.Status),
			Source: lifecycle.SourceSignal,
		})
		if err := db.UpdateApplication(ctx, tx, app, now); err != nil {
			return err
		}
		out = &ScheduleInterviewOutput{Interview: iv, Application: app, Transition: res}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseKind(s string) (tracker.InterviewKind, error) {
	kind := tracker.InterviewKind(strings.ToLower(strings.TrimSpace(s)))
	if kind == "" {
		return tracker.InterviewOther, nil
	}
	if !kind.Valid() {
		return "", errors.NewInvalidRequest("kind must be one of phone_screen, technical, behavioral, onsite, final, other")
	}
	return kind, nil
}

// CompleteInterviewInput contains parameters for the CompleteInterview operation.
type CompleteInterviewInput struct {
	ID      string
	Outcome string // passed, failed or cancelled
	Notes   string // replaces the notes when non-empty
}

// CompleteInterview records how an interview went.
func CompleteInterview(ctx context.Context, database *sql.DB, input CompleteInterviewInput) (*tracker.Interview, error) {
	id, err := requireID("interview", input.ID)
	if err != nil {
		return nil, err
	}
	outcome := tracker.InterviewOutcome(strings.ToLower(strings.TrimSpace(input.Outcome)))
	if !outcome.Valid() || outcome == tracker.OutcomePending {
		return nil, errors.NewInvalidRequest("outcome must be one of passed, failed, cancelled")
	}
	if err := db.SetInterviewOutcome(ctx, database, id, outcome, strings.TrimSpace(input.Notes), time.Now().Unix()); err != nil {
		return nil, err
	}
	return db.GetInterview(ctx, database, id)
}

// GetInterviewInput contains parameters for the GetInterview operation.
type GetInterviewInput struct {
	ID string
}

// GetInterview returns one interview.
func GetInterview(ctx context.Context, database *sql.DB, input GetInterviewInput) (*tracker.Interview, error) {
	id, err := requireID("interview", input.ID)
	if err != nil {
		return nil, err
	}
	return db.GetInterview(ctx, database, id)
}

// ListInterviewsInput contains parameters for the ListInterviews operation.
type ListInterviewsInput struct {
	ApplicationID string
}

// ListInterviewsOutput contains the result of the ListInterviews operation.
type ListInterviewsOutput struct {
	ApplicationID string              `json:"application_id"`
	Items         []tracker.Interview `json:"items"`
}

// ListInterviews returns an application's interviews in schedule order.
func ListInterviews(ctx context.Context, database *sql.DB, input ListInterviewsInput) (*ListInterviewsOutput, error) {
	appID, err := requireID("application", input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if _, err := db.GetApplication(ctx, database, appID); err != nil {
		return nil, err
	}
	items, err := db.ListInterviewsByApplication(ctx, database, appID)
	if err != nil {
		return nil, err
	}
	return &ListInterviewsOutput{ApplicationID: appID, Items: items}, nil
}

// DefaultUpcomingLimit is how many upcoming interviews are listed by default.
const DefaultUpcomingLimit = 10

// UpcomingInterviewsInput contains parameters for the UpcomingInterviews operation.
type UpcomingInterviewsInput struct {
	Account string
	Limit   int // default: 10, max 100
	// From defaults to now.
	From int64
}

// UpcomingInterviewsOutput contains the result of the UpcomingInterviews operation.
type UpcomingInterviewsOutput struct {
	Items []db.UpcomingInterview `json:"items"`
	From  int64                  `json:"from"`
}

// UpcomingInterviews lists pending interviews that have not started yet,
// soonest first, across all of an account's applications.
func UpcomingInterviews(ctx context.Context, database *sql.DB, cfg *config.Config, input UpcomingInterviewsInput) (*UpcomingInterviewsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	limit = min(limit, MaxListLimit)
	from := input.From
	if from == 0 {
		from = time.Now().Unix()
	}
	items, err := db.ListUpcomingInterviews(ctx, database, account(cfg, input.Account), from, limit)
	if err != nil {
		return nil, err
	}
	return &UpcomingInterviewsOutput{Items: items, From: from}, nil
}

// UpdateInterviewInput contains parameters for the UpdateInterview
// operation. Nil fields are left unchanged.
type UpdateInterviewInput struct {
	ID          string
	Kind        *string
	ScheduledAt *int64
	Location    *string
	Interviewer *string
	Notes       *string
}

// UpdateInterviewOutput contains the result of the UpdateInterview operation.
type UpdateInterviewOutput struct {
	Interview *tracker.Interview `json:"interview"`
	// Transition is set when a new kind moved the application forward.
	Transition *lifecycle.Result `json:"transition,omitempty"`
}

// UpdateInterview edits an interview. Changing the kind of a pending
// interview proposes the stage the new kind implies; the application never
// moves backwards.
func UpdateInterview(ctx context.Context, database *sql.DB, input UpdateInterviewInput) (*UpdateInterviewOutput, error) {
	id, err := requireID("interview", input.ID)
	if err != nil {
		return nil, err
	}
	var kind tracker.InterviewKind
	if input.Kind != nil {
		if kind, err = parseKind(*input.Kind); err != nil {
			return nil, err
		}
	}
	if input.ScheduledAt != nil && *input.ScheduledAt <= 0 {
		return nil, errors.NewInvalidRequest("scheduled_at must be a valid time")
	}

	var out *UpdateInterviewOutput
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		iv, err := db.GetInterview(ctx, tx, id)
		if err != nil {
			return err
		}
		kindChanged := input.Kind != nil && kind != iv.Kind
		if input.Kind != nil {
			iv.Kind = kind
		}
		if input.ScheduledAt != nil {
			iv.ScheduledAt = *input.ScheduledAt
		}
		set := func(dst *string, src *string) {
			if src != nil {
				*dst = strings.TrimSpace(*src)
			}
		}
		set(&iv.Location, input.Location)
		set(&iv.Interviewer, input.Interviewer)
		set(&iv.Notes, input.Notes)
		if err := db.UpdateInterview(ctx, tx, iv, now); err != nil {
			return err
		}
		out = &UpdateInterviewOutput{Interview: iv}
		if !kindChanged || iv.Outcome != tracker.OutcomePending {
			return nil
		}

		app, err := db.GetApplication(ctx, tx, iv.ApplicationID)
		if err != nil {
			return err
		}
		res := lifecycle.Apply(app, lifecycle.Proposal{
			To:     lifecycle.StageForInterview(kind, app.Status),
			Source: lifecycle.SourceSignal,
		})
		if !res.Changed() {
			return nil
		}
		if err := db.UpdateApplication(ctx, tx, app, now); err != nil {
			return err
		}
		out.Transition = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelInterviewInput contains parameters for the CancelInterview operation.
type CancelInterviewInput struct {
	ID string
}

// CancelInterview marks a pending interview cancelled. The application's
// status is left alone.
func CancelInterview(ctx context.Context, database *sql.DB, input CancelInterviewInput) (*tracker.Interview, error) {
	id, err := requireID("interview", input.ID)
	if err != nil {
		return nil, err
	}
	var iv *tracker.Interview
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		if iv, err = db.GetInterview(ctx, tx, id); err != nil {
			return err
		}
		if iv.Outcome != tracker.OutcomePending {
			return errors.NewConflict("interview " + id + " is already " + string(iv.Outcome))
		}
		iv.Outcome = tracker.OutcomeCancelled
		return db.UpdateInterview(ctx, tx, iv, time.Now().Unix())
	})
	if err != nil {
		return nil, err
	}
	return iv, nil
}

// DeleteInterviewInput contains parameters for the DeleteInterview operation.
type DeleteInterviewInput struct {
	ID string
}

// DeleteInterviewOutput contains the result of the DeleteInterview operation.
type DeleteInterviewOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteInterview removes an interview. A stage the application already
// reached because of it is kept.
func DeleteInterview(ctx context.Context, database *sql.DB, input DeleteInterviewInput) (*DeleteInterviewOutput, error) {
	id, err := requireID("interview", input.ID)
	if err != nil {
		return nil, err
	}
	if err := db.DeleteInterview(ctx, database, id); err != nil {
		return nil, err
	}
	return &DeleteInterviewOutput{ID: id, Deleted: true}, nil
}
