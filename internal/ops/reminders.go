package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// AutoRemindersInput contains parameters for the AutoCreateReminders operation.
type AutoRemindersInput struct {
	Account        string
	InactivityDays int // default: cfg.InactivityDays
}

// AutoRemindersOutput contains the result of the AutoCreateReminders operation.
type AutoRemindersOutput struct {
	Summary
	InactivityDays int `json:"inactivity_days"`
	Created        int `json:"created"`
}

// AutoCreateReminders creates one reminder dated today for every non-terminal
// application untouched for the inactivity window that has no pending
// reminder. An application never gets a second pending reminder.
func (p *Pipeline) AutoCreateReminders(ctx context.Context, input AutoRemindersInput) (*AutoRemindersOutput, error) {
	days := input.InactivityDays
	if days <= 0 {
		days = p.Cfg.InactivityDays
	}
	acct := account(p.Cfg, input.Account)

	var out *AutoRemindersOutput
	err := p.run(ctx, "auto_reminders", acct, func(runID string) error {
		start := time.Now()
		now := p.now()
		cutoff := now.Add(-time.Duration(days) * day).Unix()
		res := &AutoRemindersOutput{Summary: newSummary(runID, acct, start), InactivityDays: days}

		idle, err := db.ListIdleApplications(ctx, p.DB, acct, cutoff)
		if err != nil {
			return err
		}

		for _, app := range idle {
			if err := cancelled(ctx, "auto_reminders"); err != nil {
				return err
			}
			base := Change{ApplicationID: app.ID, Company: app.Company, Position: app.Position}

			var created *tracker.Reminder
			err := p.inRecordTx(ctx, func(tx *sql.Tx) error {
				created = nil
				current, err := db.GetApplication(ctx, tx, app.ID)
				if err != nil {
					return err
				}
				if current.Status.Terminal() || current.UpdatedAt >= cutoff {
					return nil
				}
				pending, err := db.PendingReminder(ctx, tx, app.ID)
				if err != nil || pending != nil {
					return err
				}
				r, err := newReminder(app.ID, startOfDay(now).Unix(), followUpMessage(current, now), now.Unix())
				if err != nil {
					return err
				}
				r.Auto = true
				if err := db.InsertReminder(ctx, tx, r); err != nil {
					return err
				}
				created = r
				return nil
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
			if created == nil {
				continue
			}
			res.Created++
			p.Metrics.ReminderCreated()
			c := base
			c.Action = ChangeReminder
			c.Reason = created.Message
			res.record(c)
		}

		res.finish(start)
		p.log().Info("auto-create-reminders complete",
			zap.String("run_id", runID),
			zap.Int("candidates", len(idle)),
			zap.Int("created", res.Created),
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

func followUpMessage(app *tracker.Application, now time.Time) string {
	idle := int(now.Sub(time.Unix(app.UpdatedAt, 0)) / day)
	what := app.Company
	if app.Position != "" {
		what = app.Position + " at " + app.Company
	}
	return fmt.Sprintf("Follow up on %s (%s, no activity for %d days)", what, app.Status.Label(), idle)
}

func newReminder(applicationID string, dueAt int64, message string, now int64) (*tracker.Reminder, error) {
	id, err := tracker.NewID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &tracker.Reminder{
		ID:            id,
		ApplicationID: applicationID,
		DueAt:         dueAt,
		Message:       message,
		State:         tracker.ReminderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CreateReminderInput contains parameters for the CreateReminder operation.
type CreateReminderInput struct {
	ApplicationID string
	DueAt         int64 // unix seconds; wins over DueInDays
	DueInDays     int
	Message       string
}

// CreateReminder adds a pending reminder to an application. An application
// that already has a pending reminder returns CONFLICT.
func CreateReminder(ctx context.Context, database *sql.DB, input CreateReminderInput) (*tracker.Reminder, error) {
	appID, err := requireID("application", input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if input.DueInDays < 0 {
		return nil, errors.NewInvalidRequest("due_in_days must not be negative")
	}
	now := time.Now()
	due := input.DueAt
	if due == 0 {
		due = startOfDay(now).Add(time.Duration(input.DueInDays) * day).Unix()
	}

	var r *tracker.Reminder
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		app, err := db.GetApplication(ctx, tx, appID)
		if err != nil {
			return err
		}
		msg := strings.TrimSpace(input.Message)
		if msg == "" {
			msg = followUpMessage(app, now)
		}
		if r, err = newReminder(app.ID, due, msg, now.Unix()); err != nil {
			return err
		}
		return db.InsertReminder(ctx, tx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ReminderInput addresses one reminder.
type ReminderInput struct {
	ID string
}

// CompleteReminder marks a pending reminder done.
func CompleteReminder(ctx context.Context, database *sql.DB, input ReminderInput) (*tracker.Reminder, error) {
	return closeReminder(ctx, database, input.ID, tracker.ReminderCompleted)
}

// DismissReminder drops a pending reminder without acting on it.
func DismissReminder(ctx context.Context, database *sql.DB, input ReminderInput) (*tracker.Reminder, error) {
	return closeReminder(ctx, database, input.ID, tracker.ReminderDismissed)
}

func closeReminder(ctx context.Context, database *sql.DB, id string, state tracker.ReminderState) (*tracker.Reminder, error) {
	id, err := requireID("reminder", id)
	if err != nil {
		return nil, err
	}
	if err := db.CloseReminder(ctx, database, id, state, time.Now().Unix()); err != nil {
		return nil, err
	}
	return db.GetReminder(ctx, database, id)
}

// SnoozeReminderInput contains parameters for the SnoozeReminder operation.
type SnoozeReminderInput struct {
	ID   string
	Days int // default: 1
}

// SnoozeReminder pushes a pending reminder's due date Days days past the
// later of its current due date and today.
func SnoozeReminder(ctx context.Context, database *sql.DB, input SnoozeReminderInput) (*tracker.Reminder, error) {
	id, err := requireID("reminder", input.ID)
	if err != nil {
		return nil, err
	}
	days := input.Days
	if days == 0 {
		days = 1
	}
	if days < 0 {
		return nil, errors.NewInvalidRequest("days must be positive")
	}
	r, err := db.GetReminder(ctx, database, id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	from := time.Unix(r.DueAt, 0)
	if today := startOfDay(now); from.Before(today) {
		from = today
	}
	if err := db.SnoozeReminder(ctx, database, id, from.Add(time.Duration(days)*day).Unix(), now.Unix()); err != nil {
		return nil, err
	}
	return db.GetReminder(ctx, database, id)
}

// ListDueInput contains parameters for the ListDueReminders operation.
type ListDueInput struct {
	Account string
	Until   int64 // default: end of today
}

// ListDueOutput contains the result of the ListDueReminders operation.
type ListDueOutput struct {
	Items []db.DueReminder `json:"items"`
	Until int64            `json:"until"`
}

// ListDueReminders returns pending reminders due by the end of today.
func ListDueReminders(ctx context.Context, database *sql.DB, cfg *config.Config, input ListDueInput) (*ListDueOutput, error) {
	until := input.Until
	if until == 0 {
		until = startOfDay(time.Now()).Add(day).Unix() - 1
	}
	items, err := db.ListDueReminders(ctx, database, account(cfg, input.Account), until)
	if err != nil {
		return nil, err
	}
	return &ListDueOutput{Items: items, Until: until}, nil
}
