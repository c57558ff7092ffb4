package ops

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/mailbox"
	"github.com/eladdeutch/jobtracker/internal/metrics"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// testPipeline returns a pipeline over box whose clock reads *clock.
func testPipeline(t *testing.T, database *sql.DB, box mailbox.Mailbox, clock *time.Time) *Pipeline {
	t.Helper()
	p := NewPipeline(database, config.DefaultConfig(), box)
	p.Metrics = metrics.New()
	p.Now = func() time.Time { return *clock }
	return p
}

func message(id string, at time.Time, sender, subject, body string) tracker.Message {
	return tracker.Message{ID: id, Sender: sender, Subject: subject, Body: body, ReceivedAt: at}
}

func confirmation(id string, at time.Time) tracker.Message {
	return message(id, at, "no-reply@greenhouse.io", "Thank you for applying to Acme Corp — Backend Engineer", "")
}

func phoneScreen(id string, at time.Time) tracker.Message {
	return message(id, at,
		"Jane Smith <jane@acme.com>",
		"Your application for Backend Engineer at Acme Corp",
		"Hi! We'd like to schedule a phone call to discuss next steps.")
}

func onlyApplication(t *testing.T, database *sql.DB) tracker.Application {
	t.Helper()
	apps, err := db.AllApplications(context.Background(), database, "default")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	return apps[0]
}

func TestPipeline_ConfirmationCreatesApplication(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	now := base
	p := testPipeline(t, database, mailbox.Static{confirmation("m1", base.Add(-time.Hour))}, &now)

	scan, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	require.Equal(t, 1, scan.Fetched)
	require.Equal(t, 1, scan.New)
	require.Equal(t, 1, scan.JobRelated)
	require.Len(t, scan.NewEmails, 1)
	require.Equal(t, "Acme Corp", scan.NewEmails[0].Company)
	require.GreaterOrEqual(t, scan.NewEmails[0].Confidence, 0.7)

	proc, err := p.AutoProcess(ctx, AutoProcessInput{})
	require.NoError(t, err)
	require.Equal(t, 1, proc.Processed)
	require.Equal(t, 1, proc.Created)
	require.Equal(t, 0, proc.Unprocessed)

	app := onlyApplication(t, database)
	require.Equal(t, "Acme Corp", app.Company)
	require.Equal(t, "Backend Engineer", app.Position)
	require.Equal(t, tracker.StatusApplied, app.Status)
	require.Equal(t, base.Add(-time.Hour).Unix(), app.AppliedAt)

	email, err := db.GetEmail(ctx, database, "m1")
	require.NoError(t, err)
	require.Equal(t, tracker.EmailLinked, email.State)
	require.Equal(t, app.ID, email.ApplicationID)
}

func TestPipeline_PhoneScreenAdvancesExisting(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	now := base
	box := mailbox.Static{
		confirmation("m1", base.Add(-48*time.Hour)),
		phoneScreen("m2", base.Add(-time.Hour)),
	}
	p := testPipeline(t, database, box, &now)

	_, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	proc, err := p.AutoProcess(ctx, AutoProcessInput{})
	require.NoError(t, err)
	require.Equal(t, 2, proc.Processed)
	require.Equal(t, 1, proc.Created)
	require.Equal(t, 1, proc.Linked)
	require.Equal(t, 1, proc.Updated)

	app := onlyApplication(t, database)
	require.Equal(t, tracker.StatusPhoneScreen, app.Status)

	detail, err := GetApplication(ctx, database, GetApplicationInput{ID: app.ID})
	require.NoError(t, err)
	require.Len(t, detail.Emails, 2)
}

func TestPipeline_LateConfirmationDoesNotRegress(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	now := base
	box := mailbox.Static{
		confirmation("m1", base.Add(-72*time.Hour)),
		phoneScreen("m2", base.Add(-48*time.Hour)),
		confirmation("m3", base.Add(-time.Hour)),
	}
	p := testPipeline(t, database, box, &now)

	_, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	proc, err := p.AutoProcess(ctx, AutoProcessInput{})
	require.NoError(t, err)
	require.Equal(t, 3, proc.Processed)
	require.Equal(t, 1, proc.Blocked)

	app := onlyApplication(t, database)
	require.Equal(t, tracker.StatusPhoneScreen, app.Status)
}

func TestPipeline_StaleApplicationRejected(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	now := base
	p := testPipeline(t, database, mailbox.Static{confirmation("m1", base.Add(-time.Hour))}, &now)

	_, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	_, err = p.AutoProcess(ctx, AutoProcessInput{})
	require.NoError(t, err)

	// Not stale yet.
	now = base.Add(20 * day)
	out, err := p.AutoRejectStale(ctx, RejectStaleInput{})
	require.NoError(t, err)
	require.Equal(t, 0, out.Rejected)

	now = base.Add(45 * day)
	dry, err := p.AutoRejectStale(ctx, RejectStaleInput{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, dry.Rejected)
	require.Equal(t, tracker.StatusApplied, onlyApplication(t, database).Status)

	out, err = p.AutoRejectStale(ctx, RejectStaleInput{})
	require.NoError(t, err)
	require.Equal(t, 1, out.Rejected)
	require.Equal(t, 30, out.StaleDays)

	app := onlyApplication(t, database)
	require.Equal(t, tracker.StatusRejected, app.Status)
	require.Equal(t, tracker.StatusApplied, app.RejectionStage)

	// Terminal applications are never touched again.
	now = base.Add(90 * day)
	out, err = p.AutoRejectStale(ctx, RejectStaleInput{})
	require.NoError(t, err)
	require.Equal(t, 0, out.Rejected)
}

func TestPipeline_StaleSkipsScheduledFollowUp(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	now := base
	p := testPipeline(t, database, mailbox.Static{confirmation("m1", base.Add(-time.Hour))}, &now)

	_, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	_, err = p.AutoProcess(ctx, AutoProcessInput{})
	require.NoError(t, err)
	app := onlyApplication(t, database)

	r, err := newReminder(app.ID, base.Add(60*day).Unix(), "call back after the hiring freeze", base.Unix())
	require.NoError(t, err)
	require.NoError(t, db.InsertReminder(ctx, database, r))

	now = base.Add(45 * day)
	out, err := p.AutoRejectStale(ctx, RejectStaleInput{})
	require.NoError(t, err)
	require.Equal(t, 0, out.Rejected)
	require.Equal(t, tracker.StatusApplied, onlyApplication(t, database).Status)
}

func TestPipeline_RescanIsIdempotent(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	now := base
	box := mailbox.Static{
		confirmation("m1", base.Add(-2*time.Hour)),
		message("m2", base.Add(-time.Hour), "news@shop.com", "Big sale", "Everything must go."),
	}
	p := testPipeline(t, database, box, &now)

	first, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	require.Equal(t, 2, first.New)
	require.Equal(t, 1, first.JobRelated)

	second, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	require.Equal(t, 0, second.New)
	require.Equal(t, 2, second.AlreadyPending)

	_, err = p.AutoProcess(ctx, AutoProcessInput{})
	require.NoError(t, err)
	_, err = DismissEmail(ctx, database, DismissEmailInput{EmailID: "m2"})
	require.NoError(t, err)

	third, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	require.Equal(t, 0, third.New)
	require.Equal(t, 1, third.AlreadyProcessed)
	require.Equal(t, 1, third.AlreadyDismissed)
	require.Equal(t, base.Unix(), third.LastSyncAt)

	// The newsletter never became an application.
	onlyApplication(t, database)
}

func TestPipeline_LowConfidenceStaysUnprocessed(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	now := base
	box := mailbox.Static{
		message("m1", base.Add(-time.Hour), "someone@gmail.com", "Hello", "Thanks for applying! Your application was received."),
	}
	p := testPipeline(t, database, box, &now)

	scan, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	require.Equal(t, 1, scan.New)
	require.Less(t, scan.NewEmails[0].Confidence, 0.7)

	proc, err := p.AutoProcess(ctx, AutoProcessInput{})
	require.NoError(t, err)
	require.Equal(t, 0, proc.Processed)
	require.Equal(t, 1, proc.Unprocessed)

	email, err := db.GetEmail(ctx, database, "m1")
	require.NoError(t, err)
	require.Equal(t, tracker.EmailUnprocessed, email.State)
}

func TestPipeline_AutoProcessRejectsBadThreshold(t *testing.T) {
	now := base
	p := testPipeline(t, newTestDB(t), mailbox.Static{}, &now)
	bad := 1.5
	_, err := p.AutoProcess(context.Background(), AutoProcessInput{MinConfidence: &bad})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestPipeline_BatchLockHeld(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	now := base
	p := testPipeline(t, database, mailbox.Static{confirmation("m1", base.Add(-time.Hour))}, &now)

	require.NoError(t, db.AcquireBatchLock(ctx, database, "default", "other-run", base.Unix(), 600))

	_, err := p.Scan(ctx, ScanInput{})
	require.True(t, errors.Is(err, errors.ErrBatchInProgress), "got %v", err)
	hint := errors.FlattenHints(err)
	require.Contains(t, hint, "retry once the running batch finishes")
	require.Contains(t, hint, base.Add(600*time.Second).Format(time.RFC3339))
	_, err = p.AutoProcess(ctx, AutoProcessInput{})
	require.True(t, errors.Is(err, errors.ErrBatchInProgress), "got %v", err)

	// Other accounts are not blocked.
	_, err = p.Scan(ctx, ScanInput{Account: "other@example.com"})
	require.NoError(t, err)

	require.NoError(t, db.ReleaseBatchLock(ctx, database, "default", "other-run"))
	_, err = p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
}

func TestPipeline_ScanWithoutMailbox(t *testing.T) {
	now := base
	p := testPipeline(t, newTestDB(t), nil, &now)
	_, err := p.Scan(context.Background(), ScanInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestPipeline_ScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	now := base
	p := testPipeline(t, newTestDB(t), mailbox.Static{confirmation("m1", base.Add(-time.Hour))}, &now)

	_, err := p.Scan(ctx, ScanInput{})
	require.Error(t, err)
}

func TestPipeline_AutoRemindersOnePending(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	now := base
	p := testPipeline(t, database, mailbox.Static{confirmation("m1", base.Add(-time.Hour))}, &now)

	_, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	_, err = p.AutoProcess(ctx, AutoProcessInput{})
	require.NoError(t, err)

	now = base.Add(3 * day)
	out, err := p.AutoCreateReminders(ctx, AutoRemindersInput{})
	require.NoError(t, err)
	require.Equal(t, 0, out.Created)

	now = base.Add(10 * day)
	out, err = p.AutoCreateReminders(ctx, AutoRemindersInput{})
	require.NoError(t, err)
	require.Equal(t, 1, out.Created)
	require.Contains(t, out.Changes[0].Reason, "Backend Engineer at Acme Corp")

	out, err = p.AutoCreateReminders(ctx, AutoRemindersInput{})
	require.NoError(t, err)
	require.Equal(t, 0, out.Created)

	app := onlyApplication(t, database)
	reminders, err := db.ListRemindersByApplication(ctx, database, app.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	require.True(t, reminders[0].Auto)
	require.Equal(t, startOfDay(now).Unix(), reminders[0].DueAt)

	// A manual reminder on top of the pending one is a conflict.
	_, err = CreateReminder(ctx, database, CreateReminderInput{ApplicationID: app.ID, DueInDays: 2})
	require.True(t, errors.Is(err, errors.ErrConflict), "got %v", err)
}

func TestPipeline_DedupeMergesDuplicates(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	cfg := config.DefaultConfig()

	_, err := CreateApplication(ctx, database, cfg, CreateApplicationInput{Company: "Acme Corp", Position: "Backend Engineer"})
	require.NoError(t, err)
	_, err = CreateApplication(ctx, database, cfg, CreateApplicationInput{
		Company: "ACME Corp.", Position: "Backend Engineer", Status: "phone_screen", AllowDuplicate: true,
	})
	require.NoError(t, err)
	_, err = CreateApplication(ctx, database, cfg, CreateApplicationInput{Company: "Globex", Position: "Data Analyst"})
	require.NoError(t, err)

	now := base
	p := testPipeline(t, database, nil, &now)

	dry, err := p.Dedupe(ctx, DedupeInput{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, dry.Groups)
	require.Equal(t, 1, dry.Merged)
	all, err := db.AllApplications(ctx, database, "default")
	require.NoError(t, err)
	require.Len(t, all, 3)

	out, err := p.Dedupe(ctx, DedupeInput{})
	require.NoError(t, err)
	require.Equal(t, 1, out.Groups)
	require.Equal(t, 1, out.Merged)

	apps, err := db.AllApplications(ctx, database, "default")
	require.NoError(t, err)
	require.Len(t, apps, 2)
	for _, app := range apps {
		if app.CompanyKey == "acme" {
			require.Equal(t, tracker.StatusPhoneScreen, app.Status)
		}
	}
}

func TestPipeline_AutoProcessMergesDuplicates(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	cfg := config.DefaultConfig()

	first, err := CreateApplication(ctx, database, cfg, CreateApplicationInput{
		Company: "Acme Corp", Position: "Backend Engineer", Notes: "first",
	})
	require.NoError(t, err)
	second, err := CreateApplication(ctx, database, cfg, CreateApplicationInput{
		Company: "Acme Corp", Position: "Backend Engineer", Notes: "second", AllowDuplicate: true,
	})
	require.NoError(t, err)
	// Both rows can land in the same second; make the creation order explicit.
	_, err = database.ExecContext(ctx, `UPDATE applications SET created_at = created_at + 60 WHERE id = ?`, second.ID)
	require.NoError(t, err)

	for _, id := range []string{first.ID, second.ID} {
		_, err := CreateReminder(ctx, database, CreateReminderInput{ApplicationID: id, DueInDays: 3})
		require.NoError(t, err)
	}

	now := base
	p := testPipeline(t, database, mailbox.Static{phoneScreen("m1", base.Add(-time.Hour))}, &now)
	_, err = p.Scan(ctx, ScanInput{})
	require.NoError(t, err)

	proc, err := p.AutoProcess(ctx, AutoProcessInput{})
	require.NoError(t, err)
	require.Equal(t, 1, proc.Processed)
	require.Equal(t, 1, proc.Merged)
	require.Equal(t, 0, proc.Created)

	app := onlyApplication(t, database)
	require.Equal(t, first.ID, app.ID)
	require.Equal(t, tracker.StatusPhoneScreen, app.Status)
	require.Equal(t, "first"+mergedNotesSeparator+"second", app.Notes)

	detail, err := GetApplication(ctx, database, GetApplicationInput{ID: app.ID})
	require.NoError(t, err)
	require.Len(t, detail.Emails, 1)
	pending := 0
	for _, r := range detail.Reminders {
		if r.State == tracker.ReminderPending {
			pending++
		}
	}
	require.Equal(t, 1, pending)
}

func TestPipeline_StoreConflictRetriedThenSkipped(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)
	now := base
	p := testPipeline(t, database, mailbox.Static{confirmation("m1", base.Add(-time.Hour))}, &now)

	_, err := p.Scan(ctx, ScanInput{})
	require.NoError(t, err)

	// Every attempt to mark m1 processed fails as if another writer held the lock.
	_, err = database.ExecContext(ctx, `
		CREATE TRIGGER emails_locked BEFORE UPDATE ON emails
		WHEN OLD.id = 'm1'
		BEGIN SELECT RAISE(ABORT, 'database is locked'); END`)
	require.NoError(t, err)

	proc, err := p.AutoProcess(ctx, AutoProcessInput{})
	require.NoError(t, err)
	require.Equal(t, 1, proc.Skipped)
	require.Equal(t, 0, proc.Processed)
	require.Equal(t, 0, proc.Created)
	require.Len(t, proc.Changes, 1)
	require.Equal(t, ChangeSkipped, proc.Changes[0].Action)
	require.Contains(t, proc.Changes[0].Reason, string(errors.ErrStoreConflict))

	// One attempt plus one retry.
	require.Equal(t, 2.0, testutil.ToFloat64(p.Metrics.StoreConflicts))

	apps, err := db.AllApplications(ctx, database, "default")
	require.NoError(t, err)
	require.Empty(t, apps, "the failed record must roll back")
	email, err := db.GetEmail(ctx, database, "m1")
	require.NoError(t, err)
	require.Equal(t, tracker.EmailUnprocessed, email.State)
}

func TestRecordTx_RetriesStoreConflictOnce(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	calls := 0
	err := recordTx(ctx, database, nil, func(*sql.Tx) error {
		calls++
		if calls == 1 {
			return errors.NewStoreConflict(errors.New("busy"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	calls = 0
	err = recordTx(ctx, database, nil, func(*sql.Tx) error {
		calls++
		return errors.NewStoreConflict(errors.New("busy"))
	})
	require.True(t, errors.Is(err, errors.ErrStoreConflict))
	require.Equal(t, 2, calls)

	calls = 0
	err = recordTx(ctx, database, nil, func(*sql.Tx) error {
		calls++
		return errors.NewConflict("not retried")
	})
	require.True(t, errors.Is(err, errors.ErrConflict))
	require.Equal(t, 1, calls)
}
