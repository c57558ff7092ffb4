package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

func TestApplication_InsertGetUpdate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	app := newTestApplication("a1", "Acme Corp", "Backend Engineer", 100)
	app.Notes = "referral from Sam"
	mustInsertApplication(t, db, app)

	got, err := GetApplication(ctx, db, "a1")
	if err != nil {
		t.Fatalf("GetApplication() error = %v", err)
	}
	if got.Company != "Acme Corp" || got.CompanyKey != "acme" || got.Notes != "referral from Sam" {
		t.Errorf("GetApplication() = %+v", got)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}

	got.Status = tracker.StatusPhoneScreen
	if err := UpdateApplication(ctx, db, got, 200); err != nil {
		t.Fatalf("UpdateApplication() error = %v", err)
	}
	if got.Version != 2 || got.UpdatedAt != 200 {
		t.Errorf("after update Version=%d UpdatedAt=%d, want 2/200", got.Version, got.UpdatedAt)
	}

	reloaded, _ := GetApplication(ctx, db, "a1")
	if reloaded.Status != tracker.StatusPhoneScreen {
		t.Errorf("Status = %s, want phone_screen", reloaded.Status)
	}
}

func TestGetApplication_NotFound(t *testing.T) {
	_, err := GetApplication(context.Background(), openTestDB(t), "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestUpdateApplication_StaleVersion(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInsertApplication(t, db, newTestApplication("a1", "Acme", "SRE", 100))

	first, _ := GetApplication(ctx, db, "a1")
	second, _ := GetApplication(ctx, db, "a1")

	first.Notes = "first writer"
	if err := UpdateApplication(ctx, db, first, 200); err != nil {
		t.Fatalf("UpdateApplication(first) error = %v", err)
	}
	second.Notes = "second writer"
	err := UpdateApplication(ctx, db, second, 300)
	if !errors.Is(err, errors.ErrStoreConflict) {
		t.Fatalf("UpdateApplication(second) err = %v, want STORE_CONFLICT", err)
	}

	missing := newTestApplication("nope", "Acme", "SRE", 100)
	if err := UpdateApplication(ctx, db, missing, 300); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("UpdateApplication(missing) err = %v, want NOT_FOUND", err)
	}
}

func TestListApplications_FilterAndPage(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	mustInsertApplication(t, db, newTestApplication("a1", "Acme", "Backend Engineer", 100))
	mustInsertApplication(t, db, newTestApplication("a2", "Globex", "Data_Analyst", 200))
	rejected := newTestApplication("a3", "Initech", "Backend Engineer", 300)
	rejected.Status = tracker.StatusRejected
	mustInsertApplication(t, db, rejected)
	other := newTestApplication("b1", "Acme", "Backend Engineer", 400)
	other.Account = "someone-else"
	mustInsertApplication(t, db, other)

	apps, total, err := ListApplications(ctx, db, ApplicationFilter{Account: "me", Limit: 2})
	if err != nil {
		t.Fatalf("ListApplications() error = %v", err)
	}
	if total != 3 || len(apps) != 2 {
		t.Fatalf("total=%d len=%d, want 3/2", total, len(apps))
	}
	if apps[0].ID != "a3" || apps[1].ID != "a2" {
		t.Errorf("order = %s,%s want a3,a2", apps[0].ID, apps[1].ID)
	}

	apps, total, _ = ListApplications(ctx, db, ApplicationFilter{Account: "me", Query: "backend", Limit: 10})
	if total != 2 || len(apps) != 2 {
		t.Errorf("query backend: total=%d len=%d, want 2", total, len(apps))
	}

	apps, _, _ = ListApplications(ctx, db, ApplicationFilter{Account: "me", Statuses: []tracker.Status{tracker.StatusRejected}, Limit: 10})
	if len(apps) != 1 || apps[0].ID != "a3" {
		t.Errorf("status filter = %+v", apps)
	}

	// Underscore is literal, not a LIKE wildcard ("backend engineer" would match d_e).
	_, total, _ = ListApplications(ctx, db, ApplicationFilter{Account: "me", Query: "d_e", Limit: 10})
	if total != 0 {
		t.Errorf("query d_e total = %d, want 0", total)
	}
	_, total, _ = ListApplications(ctx, db, ApplicationFilter{Account: "me", Query: "a_a", Limit: 10})
	if total != 1 {
		t.Errorf("query a_a total = %d, want 1", total)
	}
}

func TestListApplicationsByCompany(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInsertApplication(t, db, newTestApplication("a2", "Acme Inc", "SRE", 200))
	mustInsertApplication(t, db, newTestApplication("a1", "ACME", "Designer", 100))
	mustInsertApplication(t, db, newTestApplication("g1", "Globex", "SRE", 50))

	apps, err := ListApplicationsByCompany(ctx, db, "me", "acme")
	if err != nil {
		t.Fatalf("ListApplicationsByCompany() error = %v", err)
	}
	if len(apps) != 2 || apps[0].ID != "a1" || apps[1].ID != "a2" {
		t.Errorf("apps = %+v, want a1,a2", apps)
	}
}

func TestEmail_InsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	e := &tracker.EmailRecord{
		ID: "msg-1", Account: "me", Sender: "no-reply@greenhouse.io", Subject: "Thanks",
		ReceivedAt: 100, Company: "Acme", Confidence: 0.8, JobRelated: true,
		Evidence:  []tracker.Evidence{{Rule: "sender_ats", Category: "sender", Weight: 0.15}},
		CreatedAt: 100, UpdatedAt: 100,
	}
	inserted, err := InsertEmail(ctx, db, e)
	if err != nil || !inserted {
		t.Fatalf("InsertEmail() = %v, %v; want true, nil", inserted, err)
	}
	dup := *e
	dup.Subject = "changed"
	inserted, err = InsertEmail(ctx, db, &dup)
	if err != nil || inserted {
		t.Fatalf("second InsertEmail() = %v, %v; want false, nil", inserted, err)
	}

	got, err := GetEmail(ctx, db, "msg-1")
	if err != nil {
		t.Fatalf("GetEmail() error = %v", err)
	}
	if got.Subject != "Thanks" || got.State != tracker.EmailUnprocessed || !got.JobRelated {
		t.Errorf("GetEmail() = %+v", got)
	}
	if len(got.Evidence) != 1 || got.Evidence[0].Rule != "sender_ats" {
		t.Errorf("Evidence = %+v", got.Evidence)
	}

	states, err := EmailStates(ctx, db, []string{"msg-1", "msg-2"})
	if err != nil {
		t.Fatalf("EmailStates() error = %v", err)
	}
	if len(states) != 1 || states["msg-1"] != tracker.EmailUnprocessed {
		t.Errorf("EmailStates() = %v", states)
	}
}

func TestListUnprocessedEmails_ThresholdAndOrder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, e := range []tracker.EmailRecord{
		{ID: "late", ReceivedAt: 300, Confidence: 0.9},
		{ID: "early", ReceivedAt: 100, Confidence: 0.7},
		{ID: "weak", ReceivedAt: 50, Confidence: 0.4},
		{ID: "done", ReceivedAt: 10, Confidence: 0.99, State: tracker.EmailDismissed},
		{ID: "newsletter", ReceivedAt: 20, Confidence: 0.95, JobRelated: false},
	} {
		e := e
		e.Account, e.Sender, e.Subject = "me", "x@y.com", "s"
		e.JobRelated = e.ID != "newsletter"
		if _, err := InsertEmail(ctx, db, &e); err != nil {
			t.Fatalf("InsertEmail(%s) error = %v", e.ID, err)
		}
	}

	emails, err := ListUnprocessedEmails(ctx, db, "me", 0.7, 0)
	if err != nil {
		t.Fatalf("ListUnprocessedEmails() error = %v", err)
	}
	if len(emails) != 2 || emails[0].ID != "early" || emails[1].ID != "late" {
		t.Errorf("emails = %+v, want early,late", emails)
	}
}

func TestSetEmailState_Guarded(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInsertApplication(t, db, newTestApplication("a1", "Acme", "SRE", 100))
	if _, err := InsertEmail(ctx, db, &tracker.EmailRecord{ID: "m1", Account: "me", Sender: "s", Subject: "s"}); err != nil {
		t.Fatal(err)
	}

	if err := SetEmailState(ctx, db, "m1", tracker.EmailUnprocessed, tracker.EmailLinked, "a1", 200); err != nil {
		t.Fatalf("SetEmailState() error = %v", err)
	}
	err := SetEmailState(ctx, db, "m1", tracker.EmailUnprocessed, tracker.EmailLinked, "a1", 300)
	if !errors.Is(err, errors.ErrStoreConflict) {
		t.Errorf("second SetEmailState() err = %v, want STORE_CONFLICT", err)
	}
	if err := SetEmailState(ctx, db, "nope", "", tracker.EmailDismissed, "", 300); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("SetEmailState(missing) err = %v, want NOT_FOUND", err)
	}

	linked, _ := ListEmailsByApplication(ctx, db, "a1")
	if len(linked) != 1 || linked[0].State != tracker.EmailLinked {
		t.Errorf("linked = %+v", linked)
	}
}

func TestReminder_OnePendingPerApplication(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInsertApplication(t, db, newTestApplication("a1", "Acme", "SRE", 100))

	r1 := &tracker.Reminder{ID: "r1", ApplicationID: "a1", DueAt: 500, Message: "follow up", CreatedAt: 100, UpdatedAt: 100}
	if err := InsertReminder(ctx, db, r1); err != nil {
		t.Fatalf("InsertReminder() error = %v", err)
	}
	r2 := &tracker.Reminder{ID: "r2", ApplicationID: "a1", DueAt: 600, Message: "again", CreatedAt: 100, UpdatedAt: 100}
	if err := InsertReminder(ctx, db, r2); !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("second pending InsertReminder() err = %v, want CONFLICT", err)
	}

	if err := CloseReminder(ctx, db, "r1", tracker.ReminderCompleted, 200); err != nil {
		t.Fatalf("CloseReminder() error = %v", err)
	}
	if err := CloseReminder(ctx, db, "r1", tracker.ReminderDismissed, 300); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("CloseReminder(closed) err = %v, want CONFLICT", err)
	}
	if err := InsertReminder(ctx, db, r2); err != nil {
		t.Fatalf("InsertReminder() after completion error = %v", err)
	}

	pending, err := PendingReminder(ctx, db, "a1")
	if err != nil || pending == nil || pending.ID != "r2" {
		t.Fatalf("PendingReminder() = %+v, %v", pending, err)
	}
	if err := SnoozeReminder(ctx, db, "r2", 900, 400); err != nil {
		t.Fatalf("SnoozeReminder() error = %v", err)
	}

	due, err := ListDueReminders(ctx, db, "me", 800)
	if err != nil {
		t.Fatalf("ListDueReminders() error = %v", err)
	}
	if len(due) != 0 {
		t.Errorf("due before snooze date = %+v", due)
	}
	due, _ = ListDueReminders(ctx, db, "me", 900)
	if len(due) != 1 || due[0].Company != "Acme" {
		t.Errorf("due = %+v", due)
	}
}

func TestIdleAndStaleApplications(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	mustInsertApplication(t, db, newTestApplication("old", "Acme", "SRE", 100))
	mustInsertApplication(t, db, newTestApplication("fresh", "Globex", "SRE", 900))
	closed := newTestApplication("closed", "Initech", "SRE", 100)
	closed.Status = tracker.StatusOfferDeclined
	mustInsertApplication(t, db, closed)
	mustInsertApplication(t, db, newTestApplication("nudged", "Hooli", "SRE", 100))
	if err := InsertReminder(ctx, db, &tracker.Reminder{ID: "r1", ApplicationID: "nudged", DueAt: 2000, Message: "m", CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	mustInsertApplication(t, db, newTestApplication("overdue", "Umbrella", "SRE", 100))
	if err := InsertReminder(ctx, db, &tracker.Reminder{ID: "r2", ApplicationID: "overdue", DueAt: 400, Message: "m", CreatedAt: 1, UpdatedAt: 1}); err != nil {
		t.Fatal(err)
	}

	idle, err := ListIdleApplications(ctx, db, "me", 500)
	if err != nil {
		t.Fatalf("ListIdleApplications() error = %v", err)
	}
	if ids(idle) != "old" {
		t.Errorf("idle = %s, want old", ids(idle))
	}

	stale, err := ListStaleApplications(ctx, db, "me", 500, 1000)
	if err != nil {
		t.Fatalf("ListStaleApplications() error = %v", err)
	}
	if ids(stale) != "old,overdue" {
		t.Errorf("stale = %s, want old,overdue", ids(stale))
	}
}

func TestReassignApplication(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInsertApplication(t, db, newTestApplication("keep", "Acme", "SRE", 100))
	mustInsertApplication(t, db, newTestApplication("lose", "Acme Inc", "SRE", 200))

	for _, id := range []string{"m1", "m2"} {
		if _, err := InsertEmail(ctx, db, &tracker.EmailRecord{ID: id, Account: "me", Sender: "s", Subject: "s", State: tracker.EmailLinked, ApplicationID: "lose"}); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range []*tracker.Reminder{
		{ID: "rk", ApplicationID: "keep", DueAt: 1, Message: "m"},
		{ID: "rl", ApplicationID: "lose", DueAt: 1, Message: "m"},
	} {
		if err := InsertReminder(ctx, db, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := InsertInterview(ctx, db, &tracker.Interview{ID: "i1", ApplicationID: "lose", Kind: tracker.InterviewTechnical, ScheduledAt: 5}); err != nil {
		t.Fatal(err)
	}

	var moved Reassigned
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		moved, err = ReassignApplication(ctx, tx, "lose", "keep", 300)
		return err
	})
	if err != nil {
		t.Fatalf("ReassignApplication() error = %v", err)
	}
	if moved.Emails != 2 || moved.Reminders != 1 || moved.Interviews != 1 || moved.RemindersDismissed != 1 {
		t.Errorf("moved = %+v", moved)
	}

	emails, _ := ListEmailsByApplication(ctx, db, "keep")
	reminders, _ := ListRemindersByApplication(ctx, db, "keep")
	interviews, _ := ListInterviewsByApplication(ctx, db, "keep")
	if len(emails) != 2 || len(reminders) != 2 || len(interviews) != 1 {
		t.Errorf("survivor owns %d emails, %d reminders, %d interviews", len(emails), len(reminders), len(interviews))
	}
	pending, _ := PendingReminder(ctx, db, "keep")
	if pending == nil || pending.ID != "rk" {
		t.Errorf("pending = %+v, want rk", pending)
	}
}

func TestDeleteApplication(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInsertApplication(t, db, newTestApplication("a1", "Acme", "SRE", 100))
	if _, err := InsertEmail(ctx, db, &tracker.EmailRecord{ID: "m1", Account: "me", Sender: "s", Subject: "s", State: tracker.EmailLinked, ApplicationID: "a1"}); err != nil {
		t.Fatal(err)
	}
	if err := InsertReminder(ctx, db, &tracker.Reminder{ID: "r1", ApplicationID: "a1", DueAt: 1, Message: "m"}); err != nil {
		t.Fatal(err)
	}

	if err := DeleteApplication(ctx, db, "a1", 500); err != nil {
		t.Fatalf("DeleteApplication() error = %v", err)
	}
	e, _ := GetEmail(ctx, db, "m1")
	if e.State != tracker.EmailUnprocessed || e.ApplicationID != "" {
		t.Errorf("email after delete = %+v", e)
	}
	if _, err := GetReminder(ctx, db, "r1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("reminder survived delete: %v", err)
	}
	if err := DeleteApplication(ctx, db, "a1", 600); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete err = %v, want NOT_FOUND", err)
	}
}

func TestInterview_Outcome(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInsertApplication(t, db, newTestApplication("a1", "Acme", "SRE", 100))
	iv := &tracker.Interview{ID: "i1", ApplicationID: "a1", Kind: tracker.InterviewOnsite, ScheduledAt: 1000, Location: "HQ"}
	if err := InsertInterview(ctx, db, iv); err != nil {
		t.Fatalf("InsertInterview() error = %v", err)
	}
	if err := SetInterviewOutcome(ctx, db, "i1", tracker.OutcomePassed, "", 1200); err != nil {
		t.Fatalf("SetInterviewOutcome() error = %v", err)
	}
	got, _ := GetInterview(ctx, db, "i1")
	if got.Outcome != tracker.OutcomePassed || got.Location != "HQ" {
		t.Errorf("interview = %+v", got)
	}
}

func TestInterview_UpdateDeleteUpcoming(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInsertApplication(t, db, newTestApplication("a1", "Acme", "SRE", 100))
	other := newTestApplication("b1", "Globex", "SRE", 100)
	other.Account = "someone-else"
	mustInsertApplication(t, db, other)
	for _, iv := range []*tracker.Interview{
		{ID: "past", ApplicationID: "a1", Kind: tracker.InterviewPhoneScreen, ScheduledAt: 500},
		{ID: "later", ApplicationID: "a1", Kind: tracker.InterviewOnsite, ScheduledAt: 3000},
		{ID: "soon", ApplicationID: "a1", Kind: tracker.InterviewTechnical, ScheduledAt: 2000},
		{ID: "done", ApplicationID: "a1", Kind: tracker.InterviewFinal, ScheduledAt: 2500, Outcome: tracker.OutcomeCancelled},
		{ID: "foreign", ApplicationID: "b1", Kind: tracker.InterviewOther, ScheduledAt: 2200},
	} {
		if err := InsertInterview(ctx, db, iv); err != nil {
			t.Fatalf("InsertInterview(%s) error = %v", iv.ID, err)
		}
	}

	up, err := ListUpcomingInterviews(ctx, db, "me", 1000, 10)
	if err != nil {
		t.Fatalf("ListUpcomingInterviews() error = %v", err)
	}
	if len(up) != 2 || up[0].ID != "soon" || up[1].ID != "later" {
		t.Fatalf("upcoming = %+v, want [soon later]", up)
	}
	if up[0].Company != "Acme" || up[0].Status != tracker.StatusApplied {
		t.Errorf("upcoming[0] summary = %q/%q", up[0].Company, up[0].Status)
	}
	if up, _ := ListUpcomingInterviews(ctx, db, "me", 1000, 1); len(up) != 1 {
		t.Errorf("limit 1 returned %d rows", len(up))
	}

	iv, _ := GetInterview(ctx, db, "soon")
	iv.ScheduledAt = 4000
	iv.Notes = "bring laptop"
	if err := UpdateInterview(ctx, db, iv, 1500); err != nil {
		t.Fatalf("UpdateInterview() error = %v", err)
	}
	got, _ := GetInterview(ctx, db, "soon")
	if got.ScheduledAt != 4000 || got.Notes != "bring laptop" || got.UpdatedAt != 1500 {
		t.Errorf("updated interview = %+v", got)
	}

	if err := DeleteInterview(ctx, db, "soon"); err != nil {
		t.Fatalf("DeleteInterview() error = %v", err)
	}
	if err := DeleteInterview(ctx, db, "soon"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete err = %v, want NOT_FOUND", err)
	}
	if err := UpdateInterview(ctx, db, got, 1600); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("update of deleted interview err = %v, want NOT_FOUND", err)
	}
}

func TestBatchLock(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := AcquireBatchLock(ctx, db, "me", "run-1", 100, 60); err != nil {
		t.Fatalf("AcquireBatchLock() error = %v", err)
	}
	err := AcquireBatchLock(ctx, db, "me", "run-2", 120, 60)
	if !errors.Is(err, errors.ErrBatchInProgress) {
		t.Fatalf("concurrent AcquireBatchLock() err = %v, want BATCH_IN_PROGRESS", err)
	}
	if jErr, _ := errors.As(err); jErr.Details["holder"] != "run-1" {
		t.Errorf("holder = %v, want run-1", jErr.Details["holder"])
	}

	// Other accounts are independent.
	if err := AcquireBatchLock(ctx, db, "other", "run-3", 120, 60); err != nil {
		t.Errorf("AcquireBatchLock(other) error = %v", err)
	}

	// An expired lock is taken over.
	if err := AcquireBatchLock(ctx, db, "me", "run-4", 200, 60); err != nil {
		t.Fatalf("AcquireBatchLock() after expiry error = %v", err)
	}

	// Releasing with a stale holder is a no-op.
	if err := ReleaseBatchLock(ctx, db, "me", "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := AcquireBatchLock(ctx, db, "me", "run-5", 210, 60); !errors.Is(err, errors.ErrBatchInProgress) {
		t.Errorf("lock released by stale holder: %v", err)
	}
	if err := ReleaseBatchLock(ctx, db, "me", "run-4"); err != nil {
		t.Fatal(err)
	}
	if err := AcquireBatchLock(ctx, db, "me", "run-5", 210, 60); err != nil {
		t.Errorf("AcquireBatchLock() after release error = %v", err)
	}
}

func TestLastSync(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	at, err := LastSync(ctx, db, "me")
	if err != nil || at != 0 {
		t.Fatalf("LastSync() = %d, %v; want 0, nil", at, err)
	}
	for _, v := range []int64{100, 200} {
		if err := SetLastSync(ctx, db, "me", v); err != nil {
			t.Fatalf("SetLastSync() error = %v", err)
		}
	}
	if at, _ := LastSync(ctx, db, "me"); at != 200 {
		t.Errorf("LastSync() = %d, want 200", at)
	}
}

func TestStatsCounts(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInsertApplication(t, db, newTestApplication("a1", "Acme", "SRE", 100))
	r1 := newTestApplication("a2", "Globex", "SRE", 100)
	r1.Status, r1.RejectionStage = tracker.StatusRejected, tracker.StatusPhoneScreen
	mustInsertApplication(t, db, r1)
	r2 := newTestApplication("a3", "Initech", "SRE", 100)
	r2.Status = tracker.StatusRejected
	mustInsertApplication(t, db, r2)

	byStatus, err := CountApplicationsByStatus(ctx, db, "me")
	if err != nil {
		t.Fatal(err)
	}
	if byStatus[tracker.StatusApplied] != 1 || byStatus[tracker.StatusRejected] != 2 {
		t.Errorf("byStatus = %v", byStatus)
	}
	stages, err := CountRejectionStages(ctx, db, "me")
	if err != nil {
		t.Fatal(err)
	}
	if stages[tracker.StatusPhoneScreen] != 1 || stages[""] != 1 {
		t.Errorf("stages = %v", stages)
	}
}

func ids(apps []tracker.Application) string {
	out := ""
	for i, a := range apps {
		if i > 0 {
			out += ","
		}
		out += a.ID
	}
	return out
}
