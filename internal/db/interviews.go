package db

import (
	"context"
	"database/sql"

	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

const interviewColumns = `id, application_id, kind, scheduled_at, location, interviewer, notes, outcome, created_at, updated_at`

// InsertInterview stores an interview.
func InsertInterview(ctx context.Context, q Querier, iv *tracker.Interview) error {
	if iv.Outcome == "" {
		iv.Outcome = tracker.OutcomePending
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO interviews (`+interviewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		iv.ID, iv.ApplicationID, string(iv.Kind), iv.ScheduledAt,
		toNullString(iv.Location), toNullString(iv.Interviewer), toNullString(iv.Notes),
		string(iv.Outcome), iv.CreatedAt, iv.UpdatedAt,
	)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// GetInterview retrieves an interview by ID.
func GetInterview(ctx context.Context, q Querier, id string) (*tracker.Interview, error) {
	row := q.QueryRowContext(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id)
	iv, err := scanInterview(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("interview", id)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return iv, nil
}

// ListInterviewsByApplication returns an application's interviews in schedule order.
func ListInterviewsByApplication(ctx context.Context, q Querier, applicationID string) ([]tracker.Interview, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+interviewColumns+` FROM interviews
		WHERE application_id = ?
		ORDER BY scheduled_at ASC, id ASC
	`, applicationID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []tracker.Interview{}
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, *iv)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// SetInterviewOutcome records an interview's result and optional notes.
func SetInterviewOutcome(ctx context.Context, q Querier, id string, outcome tracker.InterviewOutcome, notes string, now int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE interviews SET outcome = ?, notes = COALESCE(?, notes), updated_at = ?
		WHERE id = ?
	`, string(outcome), toNullString(notes), now, id)
	if err != nil {
		return storeErr(err)
	}
	if rowsAffected(res) == 0 {
		return errors.NewNotFound("interview", id)
	}
	return nil
}

// UpdateInterview writes an interview's editable fields.
func UpdateInterview(ctx context.Context, q Querier, iv *tracker.Interview, now int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE interviews SET kind = ?, scheduled_at = ?, location = ?, interviewer = ?,
			notes = ?, outcome = ?, updated_at = ?
		WHERE id = ?
	`,
		string(iv.Kind), iv.ScheduledAt, toNullString(iv.Location), toNullString(iv.Interviewer),
		toNullString(iv.Notes), string(iv.Outcome), now, iv.ID,
	)
	if err != nil {
		return storeErr(err)
	}
	if rowsAffected(res) == 0 {
		return errors.NewNotFound("interview", iv.ID)
	}
	iv.UpdatedAt = now
	return nil
}

// DeleteInterview removes an interview.
func DeleteInterview(ctx context.Context, q Querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM interviews WHERE id = ?`, id)
	if err != nil {
		return storeErr(err)
	}
	if rowsAffected(res) == 0 {
		return errors.NewNotFound("interview", id)
	}
	return nil
}

// UpcomingInterview is a pending interview with its application's summary.
type UpcomingInterview struct {
	tracker.Interview
	Company  string         `json:"company"`
	Position string         `json:"position,omitempty"`
	Status   tracker.Status `json:"status"`
}

// ListUpcomingInterviews returns account's pending interviews scheduled at or
// after from, soonest first.
func ListUpcomingInterviews(ctx context.Context, q Querier, account string, from int64, limit int) ([]UpcomingInterview, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT i.id, i.application_id, i.kind, i.scheduled_at, i.location, i.interviewer,
			i.notes, i.outcome, i.created_at, i.updated_at,
			a.company, COALESCE(a.position, ''), a.status
		FROM interviews i
		JOIN applications a ON a.id = i.application_id
		WHERE a.account = ? AND i.outcome = 'pending' AND i.scheduled_at >= ?
		ORDER BY i.scheduled_at ASC, i.id ASC
		LIMIT ?
	`, account, from, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []UpcomingInterview{}
	for rows.Next() {
		var (
			u                            UpcomingInterview
			kind, outcome, status        string
			location, interviewer, notes sql.NullString
		)
		if err := rows.Scan(
			&u.ID, &u.ApplicationID, &kind, &u.ScheduledAt,
			&location, &interviewer, &notes, &outcome, &u.CreatedAt, &u.UpdatedAt,
			&u.Company, &u.Position, &status,
		); err != nil {
			return nil, storeErr(err)
		}
		u.Kind = tracker.InterviewKind(kind)
		u.Outcome = tracker.InterviewOutcome(outcome)
		u.Location = location.String
		u.Interviewer = interviewer.String
		u.Notes = notes.String
		u.Status = tracker.Status(status)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func scanInterview(row scanner) (*tracker.Interview, error) {
	var (
		iv                           tracker.Interview
		kind, outcome                string
		location, interviewer, notes sql.NullString
	)
	if err := row.Scan(
		&iv.ID, &iv.ApplicationID, &kind, &iv.ScheduledAt,
		&location, &interviewer, &notes, &outcome, &iv.CreatedAt, &iv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	iv.Kind = tracker.InterviewKind(kind)
	iv.Outcome = tracker.InterviewOutcome(outcome)
	iv.Location = location.String
	iv.Interviewer = interviewer.String
	iv.Notes = notes.String
	return &iv, nil
}
