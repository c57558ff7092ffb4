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
	"github.com/eladdeutch/jobtracker/internal/reconcile"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// CreateApplicationInput contains parameters for the CreateApplication operation.
type CreateApplicationInput struct {
	Account          string
	Company          string // required
	Position         string
	Status           string // default: applied
	AppliedAt        int64  // default: now
	Notes            string
	JobDescription   string
	URL              string
	SalaryRange      string
	RecruiterContact string
	// AllowDuplicate skips the check for an existing application with the
	// same company and position.
	AllowDuplicate bool
}

// CreateApplication adds an application by hand.
func CreateApplication(ctx context.Context, database *sql.DB, cfg *config.Config, input CreateApplicationInput) (*tracker.Application, error) {
	company := tracker.Clean(input.Company)
	if tracker.CompanyKey(company) == "" {
		return nil, errors.NewInvalidRequest("company is required")
	}
	status := tracker.StatusApplied
	if input.Status != "" {
		var err error
		if status, err = parseStatus(input.Status); err != nil {
			return nil, err
		}
	}

	now := time.Now().Unix()
	app, err := newApplication(account(cfg, input.Account), company, tracker.Clean(input.Position), now)
	if err != nil {
		return nil, err
	}
	app.AppliedAt = input.AppliedAt
	if app.AppliedAt == 0 {
		app.AppliedAt = now
	}
	app.Notes = strings.TrimSpace(input.Notes)
	app.JobDescription = strings.TrimSpace(input.JobDescription)
	app.URL = strings.TrimSpace(input.URL)
	app.SalaryRange = strings.TrimSpace(input.SalaryRange)
	app.RecruiterContact = strings.TrimSpace(input.RecruiterContact)
	if status != tracker.StatusApplied {
		lifecycle.Apply(app, lifecycle.Proposal{To: status, Source: lifecycle.SourceManual})
	}

	matcher := reconcile.NewMatcher(similarity(cfg))
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		if !input.AllowDuplicate {
			existing, err := db.ListApplicationsByCompany(ctx, tx, app.Account, app.CompanyKey)
			if err != nil {
				return err
			}
			for _, other := range existing {
				if matcher.Same(*app, other) {
					je := errors.NewConflict("an application for this company and position already exists")
					je.Details = map[string]any{"application_id": other.ID}
					return errors.WithHint(je, "update it, or pass allow_duplicate to track a separate application")
				}
			}
		}
		return db.InsertApplication(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func similarity(cfg *config.Config) float64 {
	if cfg == nil {
		return reconcile.DefaultPositionThreshold
	}
	return cfg.PositionSimilarity
}

// GetApplicationInput contains parameters for the GetApplication operation.
type GetApplicationInput struct {
	ID string
}

// ApplicationDetail is an application with everything it owns.
type ApplicationDetail struct {
	*tracker.Application
	Emails     []tracker.EmailRecord `json:"emails"`
	Reminders  []tracker.Reminder    `json:"reminders"`
	Interviews []tracker.Interview   `json:"interviews"`
}

// GetApplication returns an application with its emails, reminders and interviews.
func GetApplication(ctx context.Context, database *sql.DB, input GetApplicationInput) (*ApplicationDetail, error) {
	id, err := requireID("application", input.ID)
	if err != nil {
		return nil, err
	}
	app, err := db.GetApplication(ctx, database, id)
	if err != nil {
		return nil, err
	}
	emails, err := db.ListEmailsByApplication(ctx, database, id)
	if err != nil {
		return nil, err
	}
	reminders, err := db.ListRemindersByApplication(ctx, database, id)
	if err != nil {
		return nil, err
	}
	interviews, err := db.ListInterviewsByApplication(ctx, database, id)
	if err != nil {
		return nil, err
	}
	return &ApplicationDetail{Application: app, Emails: emails, Reminders: reminders, Interviews: interviews}, nil
}

// ListApplicationsInput contains parameters for the ListApplications operation.
type ListApplicationsInput struct {
	Account string
	Status  string // comma-separated statuses, or "active"
	Query   string // matches company or position
	Limit   int    // default: 20, max: 100
	Offset  int
}

// ListApplicationsOutput contains the result of the ListApplications operation.
type ListApplicationsOutput struct {
	Items      []tracker.Application `json:"items"`
	Pagination Pagination            `json:"pagination"`
	Sort       string                `json:"sort"`
}

// ListApplications returns applications, most recently updated first.
func ListApplications(ctx context.Context, database *sql.DB, cfg *config.Config, input ListApplicationsInput) (*ListApplicationsOutput, error) {
	statuses, err := parseStatusFilter(input.Status)
	if err != nil {
		return nil, err
	}
	limit, offset := page(input.Limit, input.Offset)

	items, total, err := db.ListApplications(ctx, database, db.ApplicationFilter{
		Account:  account(cfg, input.Account),
		Statuses: statuses,
		Query:    strings.TrimSpace(input.Query),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}
	return &ListApplicationsOutput{
		Items:      items,
		Pagination: paginate(limit, offset, len(items), total),
		Sort:       "updated_at_desc",
	}, nil
}

// parseStatusFilter expands "active" to every non-terminal status.
func parseStatusFilter(s string) ([]tracker.Status, error) {
	var out []tracker.Status
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.EqualFold(part, "active") {
			for _, st := range tracker.Statuses {
				if !st.Terminal() {
					out = append(out, st)
				}
			}
			continue
		}
		st, err := parseStatus(part)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// UpdateApplicationInput contains parameters for the UpdateApplication
// operation. Nil fields are left unchanged.
type UpdateApplicationInput struct {
	ID               string
	Company          *string
	Position         *string
	AppliedAt        *int64
	Notes            *string
	JobDescription   *string
	URL              *string
	SalaryRange      *string
	RecruiterContact *string
	// Version, when non-zero, must match the stored version.
	Version int64
}

// UpdateApplicationOutput contains the result of the UpdateApplication operation.
type UpdateApplicationOutput struct {
	Application *tracker.Application `json:"application"`
	// MergedIDs lists applications absorbed because the edit made them duplicates.
	MergedIDs []string `json:"merged_ids,omitempty"`
}

// UpdateApplication edits an application's fields. When a company or
// position change makes it describe the same job as other applications,
// they are merged into the earliest created one.
func UpdateApplication(ctx context.Context, database *sql.DB, cfg *config.Config, input UpdateApplicationInput) (*UpdateApplicationOutput, error) {
	id, err := requireID("application", input.ID)
	if err != nil {
		return nil, err
	}
	matcher := reconcile.NewMatcher(similarity(cfg))

	var out *UpdateApplicationOutput
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		app, err := db.GetApplication(ctx, tx, id)
		if err != nil {
			return err
		}
		if input.Version != 0 && input.Version != app.Version {
			return errors.NewConflict("application was modified since it was read; fetch it again")
		}

		identity := false
		if input.Company != nil {
			company := tracker.Clean(*input.Company)
			if tracker.CompanyKey(company) == "" {
				return errors.NewInvalidRequest("company must not be empty")
			}
			identity = identity || tracker.CompanyKey(company) != app.CompanyKey
			app.Company, app.CompanyKey = company, tracker.CompanyKey(company)
		}
		if input.Position != nil {
			position := tracker.Clean(*input.Position)
			identity = identity || tracker.PositionKey(position) != app.PositionKey
			app.Position, app.PositionKey = position, tracker.PositionKey(position)
		}
		if input.AppliedAt != nil {
			app.AppliedAt = *input.AppliedAt
		}
		set := func(dst *string, src *string) {
			if src != nil {
				*dst = strings.TrimSpace(*src)
			}
		}
		set(&app.Notes, input.Notes)
		set(&app.JobDescription, input.JobDescription)
		set(&app.URL, input.URL)
		set(&app.SalaryRange, input.SalaryRange)
		set(&app.RecruiterContact, input.RecruiterContact)

		if err := db.UpdateApplication(ctx, tx, app, now); err != nil {
			return err
		}
		out = &UpdateApplicationOutput{Application: app}
		if !identity {
			return nil
		}

		existing, err := db.ListApplicationsByCompany(ctx, tx, app.Account, app.CompanyKey)
		if err != nil {
			return err
		}
		group := []tracker.Application{*app}
		for _, other := range existing {
			if other.ID != app.ID && matcher.Same(*app, other) {
				group = append(group, other)
			}
		}
		if len(group) == 1 {
			return nil
		}
		survivor := group[0]
		for _, g := range group[1:] {
			if g.CreatedAt < survivor.CreatedAt || (g.CreatedAt == survivor.CreatedAt && g.ID < survivor.ID) {
				survivor = g
			}
		}
		var losers []string
		for _, g := range group {
			if g.ID != survivor.ID {
				losers = append(losers, g.ID)
			}
		}
		merged, err := mergeInto(ctx, tx, survivor.ID, losers, now)
		if err != nil {
			return err
		}
		out.Application = merged.Survivor
		out.MergedIDs = merged.MergedIDs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatusInput contains parameters for the SetStatus operation.
type SetStatusInput struct {
	ID             string
	Status         string
	RejectionStage string // only with status rejected; default: the status held before
}

// SetStatusOutput contains the result of the SetStatus operation.
type SetStatusOutput struct {
	Application *tracker.Application `json:"application"`
	Transition  lifecycle.Result     `json:"transition"`
}

// SetStatus is a manual status edit. It may move an application anywhere,
// including out of a terminal state.
func SetStatus(ctx context.Context, database *sql.DB, input SetStatusInput) (*SetStatusOutput, error) {
	id, err := requireID("application", input.ID)
	if err != nil {
		return nil, err
	}
	status, err := parseStatus(input.Status)
	if err != nil {
		return nil, err
	}
	var stage tracker.Status
	if input.RejectionStage != "" {
		if status != tracker.StatusRejected {
			return nil, errors.NewInvalidRequest("rejection_stage is only valid with status rejected")
		}
		if stage, err = parseStatus(input.RejectionStage); err != nil {
			return nil, err
		}
	}

	var out *SetStatusOutput
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		app, err := db.GetApplication(ctx, tx, id)
		if err != nil {
			return err
		}
		res := lifecycle.Apply(app, lifecycle.Proposal{To: status, Source: lifecycle.SourceManual, RejectionStage: stage})
		if res.Changed() {
			if err := db.UpdateApplication(ctx, tx, app, time.Now().Unix()); err != nil {
				return err
			}
		}
		out = &SetStatusOutput{Application: app, Transition: res}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteApplicationInput contains parameters for the DeleteApplication operation.
type DeleteApplicationInput struct {
	ID string
}

// DeleteApplicationOutput contains the result of the DeleteApplication operation.
type DeleteApplicationOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteApplication removes an application. Its emails return to the
// unprocessed queue; its reminders and interviews are deleted.
func DeleteApplication(ctx context.Context, database *sql.DB, input DeleteApplicationInput) (*DeleteApplicationOutput, error) {
	id, err := requireID("application", input.ID)
	if err != nil {
		return nil, err
	}
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		return db.DeleteApplication(ctx, tx, id, time.Now().Unix())
	})
	if err != nil {
		return nil, err
	}
	return &DeleteApplicationOutput{ID: id, Deleted: true}, nil
}
