package db

import (
	"context"
	"database/sql"

	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

const reminderColumns = `id, application_id, due_at, message, state, auto, created_at, updated_at, completed_at`

// InsertReminder stores a reminder. A second pending reminder for the same
// application violates idx_reminders_one_pending and returns CONFLICT.
func InsertReminder(ctx context.Context, q Querier, r *tracker.Reminder) error {
	if r.State == "" {
		r.State = tracker.ReminderPending
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.ApplicationID, r.DueAt, r.Message, string(r.State), r.Auto,
		r.CreatedAt, r.UpdatedAt, toNullInt64(r.CompletedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict("application " + r.ApplicationID + " already has a pending reminder")
		}
		return storeErr(err)
	}
	return nil
}

// GetReminder retrieves a reminder by ID.
func GetReminder(ctx context.Context, q Querier, id string) (*tracker.Reminder, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("reminder", id)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return r, nil
}

// PendingReminder returns the pending reminder of an application, or nil.
func PendingReminder(ctx context.Context, q Querier, applicationID string) (*tracker.Reminder, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE application_id = ? AND state = 'pending'
	`, applicationID)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return r, nil
}

// ListRemindersByApplication returns an application's reminders by due date.
func ListRemindersByApplication(ctx context.Context, q Querier, applicationID string) ([]tracker.Reminder, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE application_id = ?
		ORDER BY due_at ASC, id ASC
	`, applicationID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []tracker.Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// DueReminder is a pending reminder with its application's display fields.
type DueReminder struct {
	tracker.Reminder
	Company  string         `json:"company"`
	Position string         `json:"position,omitempty"`
	Status   tracker.Status `json:"status"`
}

// ListDueReminders returns pending reminders of account due at or before until.
func ListDueReminders(ctx context.Context, q Querier, account string, until int64) ([]DueReminder, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT r.id, r.application_id, r.due_at, r.message, r.state, r.auto,
			r.created_at, r.updated_at, r.completed_at,
			a.company, COALESCE(a.position, ''), a.status
		FROM reminders r
		JOIN applications a ON a.id = r.application_id
		WHERE a.account = ? AND r.state = 'pending' AND r.due_at <= ?
		ORDER BY r.due_at ASC, r.id ASC
	`, account, until)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []DueReminder{}
	for rows.Next() {
		var (
			d           DueReminder
			state       string
			status      string
			completedAt sql.NullInt64
		)
		if err := rows.Scan(
			&d.ID, &d.ApplicationID, &d.DueAt, &d.Message, &state, &d.Auto,
			&d.CreatedAt, &d.UpdatedAt, &completedAt,
			&d.Company, &d.Position, &status,
		); err != nil {
			return nil, storeErr(err)
		}
		d.State = tracker.ReminderState(state)
		d.CompletedAt = completedAt.Int64
		d.Status = tracker.Status(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// CloseReminder moves a pending reminder to completed or dismissed.
func CloseReminder(ctx context.Context, q Querier, id string, state tracker.ReminderState, now int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE reminders SET state = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND state = 'pending'
	`, string(state), now, now, id)
	if err != nil {
		return storeErr(err)
	}
	if rowsAffected(res) == 0 {
		r, err := GetReminder(ctx, q, id)
		if err != nil {
			return err
		}
		return errors.NewConflict("reminder " + id + " is already " + string(r.State))
	}
	return nil
}

// SnoozeReminder moves a pending reminder's due date.
func SnoozeReminder(ctx context.Context, q Querier, id string, dueAt, now int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE reminders SET due_at = ?, updated_at = ?
		WHERE id = ? AND state = 'pending'
	`, dueAt, now, id)
	if err != nil {
		return storeErr(err)
	}
	if rowsAffected(res) == 0 {
		r, err := GetReminder(ctx, q, id)
		if err != nil {
			return err
		}
		return errors.NewConflict("reminder " + id + " is already " + string(r.State))
	}
	return nil
}

func scanReminder(row scanner) (*tracker.Reminder, error) {
	var (
		r           tracker.Reminder
		state       string
		completedAt sql.NullInt64
	)
	if err := row.Scan(
		&r.ID, &r.ApplicationID, &r.DueAt, &r.Message, &state, &r.Auto,
		&r.CreatedAt, &r.UpdatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	r.State = tracker.ReminderState(state)
	r.CompletedAt = completedAt.Int64
	return &r, nil
}
