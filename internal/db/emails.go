package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

const emailColumns = `
	id, account, sender, subject, snippet, received_at, company, position,
	status_signal, rejection_stage, job_related, confidence, evidence_json,
	state, application_id, created_at, updated_at`

// InsertEmail stores a scanned message unless its id is already known.
// It reports whether a row was written, which makes rescans idempotent.
func InsertEmail(ctx context.Context, q Querier, e *tracker.EmailRecord) (bool, error) {
	var evidence sql.NullString
	if len(e.Evidence) > 0 {
		data, err := json.Marshal(e.Evidence)
		if err != nil {
			return false, errors.NewInternal(err)
		}
		evidence = sql.NullString{String: string(data), Valid: true}
	}
	if e.State == "" {
		e.State = tracker.EmailUnprocessed
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO emails (`+emailColumns+`
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID, e.Account, e.Sender, e.Subject, toNullString(e.Snippet), e.ReceivedAt,
		toNullString(e.Company), toNullString(e.Position),
		toNullString(string(e.StatusSignal)), toNullString(string(e.RejectionStage)),
		e.JobRelated, e.Confidence, evidence,
		string(e.State), toNullString(e.ApplicationID), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return false, storeErr(err)
	}
	return rowsAffected(res) == 1, nil
}

// GetEmail retrieves an email record by message id.
func GetEmail(ctx context.Context, q Querier, id string) (*tracker.EmailRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, id)
	e, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("email", id)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return e, nil
}

// EmailStates returns the processing state of every id already stored.
// Unknown ids are absent from the map.
func EmailStates(ctx context.Context, q Querier, ids []string) (map[string]tracker.EmailState, error) {
	states := make(map[string]tracker.EmailState, len(ids))
	if len(ids) == 0 {
		return states, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, `SELECT id, state FROM emails WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, state string
		if err := rows.Scan(&id, &state); err != nil {
			return nil, storeErr(err)
		}
		states[id] = tracker.EmailState(state)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return states, nil
}

// EmailFilter narrows ListEmails.
type EmailFilter struct {
	Account       string
	State         tracker.EmailState
	ApplicationID string
	JobRelated    *bool
	Limit         int
	Offset        int
}

// ListEmails returns a page of email records, newest first, and the total
// number of matches.
func ListEmails(ctx context.Context, q Querier, f EmailFilter) ([]tracker.EmailRecord, int, error) {
	where := []string{"account = ?"}
	args := []any{f.Account}
	if f.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(f.State))
	}
	if f.ApplicationID != "" {
		where = append(where, "application_id = ?")
		args = append(args, f.ApplicationID)
	}
	if f.JobRelated != nil {
		where = append(where, "job_related = ?")
		args = append(args, *f.JobRelated)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, storeErr(err)
	}

	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset)
	emails, err := queryEmails(ctx, q, `
		SELECT `+emailColumns+`
		FROM emails
		WHERE `+clause+`
		ORDER BY received_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return emails, total, nil
}

// ListUnprocessedEmails returns unprocessed job-related records of account
// scoring at least minConfidence, oldest message first so status signals
// replay in the order they were received.
func ListUnprocessedEmails(ctx context.Context, q Querier, account string, minConfidence float64, limit int) ([]tracker.EmailRecord, error) {
	query := `
		SELECT ` + emailColumns + `
		FROM emails
		WHERE account = ? AND state = 'unprocessed' AND job_related = 1 AND confidence >= ?
		ORDER BY received_at ASC, id ASC
	`
	args := []any{account, minConfidence}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return queryEmails(ctx, q, query, args...)
}

// ListEmailsByApplication returns the emails linked to an application, oldest first.
func ListEmailsByApplication(ctx context.Context, q Querier, applicationID string) ([]tracker.EmailRecord, error) {
	return queryEmails(ctx, q, `
		SELECT `+emailColumns+`
		FROM emails
		WHERE application_id = ?
		ORDER BY received_at ASC, id ASC
	`, applicationID)
}

// SetEmailState moves an email to state and sets its owning application
// (empty clears it). With from non-empty the update only applies while the
// record is still in that state; a record moved by someone else reports
// STORE_CONFLICT.
func SetEmailState(ctx context.Context, q Querier, id string, from, to tracker.EmailState, applicationID string, now int64) error {
	query := `UPDATE emails SET state = ?, application_id = ?, updated_at = ? WHERE id = ?`
	args := []any{string(to), toNullString(applicationID), now, id}
	if from != "" {
		query += " AND state = ?"
		args = append(args, string(from))
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return storeErr(err)
	}
	if rowsAffected(res) == 0 {
		if _, err := GetEmail(ctx, q, id); err != nil {
			return err
		}
		return errors.NewStoreConflict(errors.Newf("email %s is no longer %s", id, from))
	}
	return nil
}

// UnlinkEmails returns every email of an application to the unprocessed queue.
func UnlinkEmails(ctx context.Context, q Querier, applicationID string, now int64) (int, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE emails SET state = 'unprocessed', application_id = NULL, updated_at = ?
		WHERE application_id = ?
	`, now, applicationID)
	if err != nil {
		return 0, storeErr(err)
	}
	return rowsAffected(res), nil
}

func queryEmails(ctx context.Context, q Querier, query string, args ...any) ([]tracker.EmailRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	emails := []tracker.EmailRecord{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		emails = append(emails, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return emails, nil
}

func scanEmail(row scanner) (*tracker.EmailRecord, error) {
	var (
		e                              tracker.EmailRecord
		snippet, company, position     sql.NullString
		signal, stage, evidence, appID sql.NullString
		state                          string
	)
	err := row.Scan(
		&e.ID, &e.Account, &e.Sender, &e.Subject, &snippet, &e.ReceivedAt, &company, &position,
		&signal, &stage, &e.JobRelated, &e.Confidence, &evidence,
		&state, &appID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Snippet = snippet.String
	e.Company = company.String
	e.Position = position.String
	e.StatusSignal = tracker.Status(signal.String)
	e.RejectionStage = tracker.Status(stage.String)
	e.State = tracker.EmailState(state)
	e.ApplicationID = appID.String
	if evidence.Valid && evidence.String != "" {
		if err := json.Unmarshal([]byte(evidence.String), &e.Evidence); err != nil {
			return nil, err
		}
	}
	return &e, nil
}
