package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

const applicationColumns = `
	id, account, company, company_key, position, position_key, status, rejection_stage,
	applied_at, notes, job_description, url, salary_range, recruiter_contact,
	version, created_at, updated_at`

// InsertApplication stores a new application. Version starts at 1.
func InsertApplication(ctx context.Context, q Querier, app *tracker.Application) error {
	if app.Version == 0 {
		app.Version = 1
	}
	query := `
		INSERT INTO applications (` + applicationColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		app.ID, app.Account, app.Company, app.CompanyKey, toNullString(app.Position), app.PositionKey,
		string(app.Status), toNullString(string(app.RejectionStage)),
		toNullInt64(app.AppliedAt), toNullString(app.Notes), toNullString(app.JobDescription),
		toNullString(app.URL), toNullString(app.SalaryRange), toNullString(app.RecruiterContact),
		app.Version, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict("application already exists: " + app.ID)
		}
		return storeErr(err)
	}
	return nil
}

// GetApplication retrieves an application by ID.
func GetApplication(ctx context.Context, q Querier, id string) (*tracker.Application, error) {
	row := q.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("application", id)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return app, nil
}

// ListApplicationsByCompany returns every application of account whose
// normalized company matches companyKey, oldest first.
func ListApplicationsByCompany(ctx context.Context, q Querier, account, companyKey string) ([]tracker.Application, error) {
	return queryApplications(ctx, q, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE account = ? AND company_key = ?
		ORDER BY created_at ASC, id ASC
	`, account, companyKey)
}

// AllApplications returns every application of account, oldest first.
func AllApplications(ctx context.Context, q Querier, account string) ([]tracker.Application, error) {
	return queryApplications(ctx, q, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE account = ?
		ORDER BY created_at ASC, id ASC
	`, account)
}

// ApplicationFilter narrows ListApplications.
type ApplicationFilter struct {
	Account  string
	Statuses []tracker.Status
	// Query matches company or position, case-insensitively.
	Query  string
	Limit  int
	Offset int
}

// ListApplications returns a page of applications, most recently updated
// first, and the total number of matches.
func ListApplications(ctx context.Context, q Querier, f ApplicationFilter) ([]tracker.Application, int, error) {
	where := []string{"account = ?"}
	args := []any{f.Account}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.Query != "" {
		like := "%" + escapeLike(strings.ToLower(f.Query)) + "%"
		where = append(where, `(lower(company) LIKE ? ESCAPE '\' OR lower(COALESCE(position, '')) LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, storeErr(err)
	}

	pageArgs := append(append([]any{}, args...), f.Limit, f.Offset)
	apps, err := queryApplications(ctx, q, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE `+clause+`
		ORDER BY updated_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

// UpdateApplication writes every mutable field of app, guarded by its
// version. A concurrent writer that bumped the version first turns this
// into STORE_CONFLICT. On success app.Version and app.UpdatedAt are advanced.
func UpdateApplication(ctx context.Context, q Querier, app *tracker.Application, now int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE applications
		SET company = ?, company_key = ?, position = ?, position_key = ?,
			status = ?, rejection_stage = ?, applied_at = ?,
			notes = ?, job_description = ?, url = ?, salary_range = ?, recruiter_contact = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		app.Company, app.CompanyKey, toNullString(app.Position), app.PositionKey,
		string(app.Status), toNullString(string(app.RejectionStage)), toNullInt64(app.AppliedAt),
		toNullString(app.Notes), toNullString(app.JobDescription), toNullString(app.URL),
		toNullString(app.SalaryRange), toNullString(app.RecruiterContact),
		now, app.ID, app.Version,
	)
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 0 {
		if _, err := GetApplication(ctx, q, app.ID); err != nil {
			return err
		}
		return errors.NewStoreConflict(errors.Newf("application %s changed since version %d", app.ID, app.Version))
	}
	app.Version++
	app.UpdatedAt = now
	return nil
}

// DeleteApplication removes an application. Its emails go back to
// unprocessed; its reminders and interviews are deleted.
func DeleteApplication(ctx context.Context, q Querier, id string, now int64) error {
	if _, err := UnlinkEmails(ctx, q, id, now); err != nil {
		return err
	}
	for _, stmt := range []string{
		`DELETE FROM reminders WHERE application_id = ?`,
		`DELETE FROM interviews WHERE application_id = ?`,
	} {
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return storeErr(err)
		}
	}
	res, err := q.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 0 {
		return errors.NewNotFound("application", id)
	}
	return nil
}

// ListIdleApplications returns non-terminal applications of account last
// updated before cutoff that have no pending reminder.
func ListIdleApplications(ctx context.Context, q Querier, account string, cutoff int64) ([]tracker.Application, error) {
	terminal := terminalStatuses()
	args := append([]any{account, cutoff}, terminal...)
	return queryApplications(ctx, q, `
		SELECT `+applicationColumns+`
		FROM applications a
		WHERE a.account = ? AND a.updated_at < ?
		  AND a.status NOT IN (`+placeholders(len(terminal))+`)
		  AND NOT EXISTS (
			SELECT 1 FROM reminders r
			WHERE r.application_id = a.id AND r.state = 'pending'
		  )
		ORDER BY a.updated_at ASC, a.id ASC
	`, args...)
}

// ListStaleApplications returns non-terminal applications of account last
// updated before cutoff with no pending reminder still in the future. A
// follow-up the user scheduled is pending action, so the record is not stale.
func ListStaleApplications(ctx context.Context, q Querier, account string, cutoff, now int64) ([]tracker.Application, error) {
	terminal := terminalStatuses()
	args := append([]any{account, cutoff}, terminal...)
	args = append(args, now)
	return queryApplications(ctx, q, `
		SELECT `+applicationColumns+`
		FROM applications a
		WHERE a.account = ? AND a.updated_at < ?
		  AND a.status NOT IN (`+placeholders(len(terminal))+`)
		  AND NOT EXISTS (
			SELECT 1 FROM reminders r
			WHERE r.application_id = a.id AND r.state = 'pending' AND r.due_at > ?
		  )
		ORDER BY a.updated_at ASC, a.id ASC
	`, args...)
}

// Reassigned counts the references moved by ReassignApplication.
type Reassigned struct {
	Emails             int `json:"emails"`
	Reminders          int `json:"reminders"`
	Interviews         int `json:"interviews"`
	RemindersDismissed int `json:"reminders_dismissed"`
}

// ReassignApplication re-points every email, reminder and interview owned by
// from to to. When both hold a pending reminder, from's is dismissed first so
// the survivor keeps exactly one.
func ReassignApplication(ctx context.Context, q Querier, from, to string, now int64) (Reassigned, error) {
	var out Reassigned

	existing, err := PendingReminder(ctx, q, to)
	if err != nil {
		return out, err
	}
	if existing != nil {
		res, err := q.ExecContext(ctx, `
			UPDATE reminders SET state = 'dismissed', updated_at = ?, completed_at = ?
			WHERE application_id = ? AND state = 'pending'
		`, now, now, from)
		if err != nil {
			return out, storeErr(err)
		}
		out.RemindersDismissed = rowsAffected(res)
	}

	steps := []struct {
		query string
		count *int
	}{
		{`UPDATE emails SET application_id = ?, updated_at = ? WHERE application_id = ?`, &out.Emails},
		{`UPDATE reminders SET application_id = ?, updated_at = ? WHERE application_id = ?`, &out.Reminders},
		{`UPDATE interviews SET application_id = ?, updated_at = ? WHERE application_id = ?`, &out.Interviews},
	}
	for _, s := range steps {
		res, err := q.ExecContext(ctx, s.query, to, now, from)
		if err != nil {
			return out, storeErr(err)
		}
		*s.count = rowsAffected(res)
	}
	return out, nil
}

func queryApplications(ctx context.Context, q Querier, query string, args ...any) ([]tracker.Application, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	apps := []tracker.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return apps, nil
}

// scanner is the common subset of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (*tracker.Application, error) {
	var (
		app                                        tracker.Application
		status                                     string
		position, stage                            sql.NullString
		notes, description, url, salary, recruiter sql.NullString
		appliedAt                                  sql.NullInt64
	)
	err := row.Scan(
		&app.ID, &app.Account, &app.Company, &app.CompanyKey, &position, &app.PositionKey,
		&status, &stage, &appliedAt, &notes, &description, &url, &salary, &recruiter,
		&app.Version, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.Status = tracker.Status(status)
	app.Position = position.String
	app.RejectionStage = tracker.Status(stage.String)
	app.AppliedAt = appliedAt.Int64
	app.Notes = notes.String
	app.JobDescription = description.String
	app.URL = url.String
	app.SalaryRange = salary.String
	app.RecruiterContact = recruiter.String
	return &app, nil
}

func terminalStatuses() []any {
	var out []any
	for _, s := range tracker.Statuses {
		if s.Terminal() {
			out = append(out, string(s))
		}
	}
	return out
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

// escapeLike escapes LIKE wildcards so user search text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
