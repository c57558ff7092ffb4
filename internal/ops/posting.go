package ops

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/jobpage"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// FetchPostingInput contains parameters for the FetchPosting operation.
type FetchPostingInput struct {
	// URL of the posting. Defaults to the application's URL.
	URL string
	// ApplicationID, when set, receives the fetched description.
	ApplicationID string
}

// FetchPostingOutput contains the result of the FetchPosting operation.
type FetchPostingOutput struct {
	Posting     *jobpage.Posting     `json:"posting"`
	Application *tracker.Application `json:"application,omitempty"`
}

func (p *Pipeline) pages() *jobpage.Fetcher {
	if p.Pages != nil {
		return p.Pages
	}
	return jobpage.NewFetcher(time.Duration(p.Cfg.FetchTimeoutSeconds) * time.Second)
}

// FetchPosting downloads a job posting and extracts its description. With an
// application id the description is stored on that application, and its URL
// is filled in when it had none.
func (p *Pipeline) FetchPosting(ctx context.Context, input FetchPostingInput) (*FetchPostingOutput, error) {
	target := input.URL
	var app *tracker.Application
	if input.ApplicationID != "" {
		var err error
		if app, err = db.GetApplication(ctx, p.DB, input.ApplicationID); err != nil {
			return nil, err
		}
		if target == "" {
			target = app.URL
		}
		if target == "" {
			return nil, errors.WithHint(errors.NewInvalidRequest("application has no url"), "pass the posting url")
		}
	}

	posting, err := p.pages().Fetch(ctx, target)
	if err != nil {
		p.log().Debug("job posting fetch failed", zap.String("url", target), zap.Error(err))
		return nil, err
	}
	out := &FetchPostingOutput{Posting: posting}
	if app == nil {
		return out, nil
	}

	err = db.WithTx(ctx, p.DB, func(tx *sql.Tx) error {
		cur, err := db.GetApplication(ctx, tx, app.ID)
		if err != nil {
			return err
		}
		cur.JobDescription = posting.Description
		if cur.URL == "" {
			cur.URL = posting.URL
		}
		if err := db.UpdateApplication(ctx, tx, cur, time.Now().Unix()); err != nil {
			return err
		}
		out.Application = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MaxBulkCreate caps the applications accepted by one CreateApplications call.
const MaxBulkCreate = 200

// BulkApplication is one bulk item as it arrives over JSON.
type BulkApplication struct {
	Company          string `json:"company"`
	Position         string `json:"position,omitempty"`
	Status           string `json:"status,omitempty"`
	AppliedAt        string `json:"applied_at,omitempty"`
	Notes            string `json:"notes,omitempty"`
	JobDescription   string `json:"job_description,omitempty"`
	URL              string `json:"url,omitempty"`
	SalaryRange      string `json:"salary_range,omitempty"`
	RecruiterContact string `json:"recruiter_contact,omitempty"`
	AllowDuplicate   bool   `json:"allow_duplicate,omitempty"`
}

// BulkInputs converts decoded bulk items for CreateApplications.
func BulkInputs(acct string, items []BulkApplication) ([]CreateApplicationInput, error) {
	out := make([]CreateApplicationInput, len(items))
	for i, b := range items {
		appliedAt, err := ParseTime("applied_at", b.AppliedAt)
		if err != nil {
			return nil, errors.WithHintf(err, "in application %d", i)
		}
		out[i] = CreateApplicationInput{
			Account:          acct,
			Company:          b.Company,
			Position:         b.Position,
			Status:           b.Status,
			AppliedAt:        appliedAt,
			Notes:            b.Notes,
			JobDescription:   b.JobDescription,
			URL:              b.URL,
			SalaryRange:      b.SalaryRange,
			RecruiterContact: b.RecruiterContact,
			AllowDuplicate:   b.AllowDuplicate,
		}
	}
	return out, nil
}

// BulkItemError reports why one bulk item was not created.
type BulkItemError struct {
	Index   int              `json:"index"`
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// CreateApplicationsOutput contains the result of the CreateApplications operation.
type CreateApplicationsOutput struct {
	Created      int                   `json:"created"`
	Failed       int                   `json:"failed"`
	Applications []tracker.Application `json:"applications"`
	Errors       []BulkItemError       `json:"errors,omitempty"`
}

// CreateApplications adds several applications by hand. Each item is created
// in its own transaction, so one invalid or duplicate item does not stop the
// rest.
func CreateApplications(ctx context.Context, database *sql.DB, cfg *config.Config, items []CreateApplicationInput) (*CreateApplicationsOutput, error) {
	if len(items) == 0 {
		return nil, errors.NewInvalidRequest("no applications given")
	}
	if len(items) > MaxBulkCreate {
		return nil, errors.NewInvalidRequest("too many applications in one call")
	}
	out := &CreateApplicationsOutput{Applications: []tracker.Application{}}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return out, errors.NewCancelled("bulk create")
		}
		app, err := CreateApplication(ctx, database, cfg, item)
		if err != nil {
			je, ok := errors.As(err)
			if !ok || je.Code == errors.ErrInternal {
				return out, err
			}
			out.Failed++
			out.Errors = append(out.Errors, BulkItemError{Index: i, Code: je.Code, Message: je.Message})
			continue
		}
		out.Created++
		out.Applications = append(out.Applications, *app)
	}
	return out, nil
}
