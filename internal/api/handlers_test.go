package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/mailbox"
	"github.com/eladdeutch/jobtracker/internal/metrics"
	"github.com/eladdeutch/jobtracker/internal/ops"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

func setupTest(t *testing.T, box mailbox.Mailbox) (*ops.Pipeline, http.Handler) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.BaseDir = tmpDir
	p := ops.NewPipeline(database, cfg, box)
	p.Metrics = metrics.New()
	return p, NewServer(p, "test", "127.0.0.1", 0).Handler
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body: %v\n%s", err, rec.Body.String())
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := decodeBody(t, rec)["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in %s", rec.Body.String())
	}
	return errObj["code"].(string)
}

// seedApplication creates an application and returns its ID.
func seedApplication(t *testing.T, p *ops.Pipeline, company, position string) string {
	t.Helper()
	app, err := ops.CreateApplication(context.Background(), p.DB, p.Cfg, ops.CreateApplicationInput{
		Company:  company,
		Position: position,
	})
	if err != nil {
		t.Fatalf("seed application %q: %v", company, err)
	}
	return app.ID
}

func TestIndex(t *testing.T) {
	_, h := setupTest(t, nil)

	rec := do(t, h, "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody(t, rec)["version"]; got != "test" {
		t.Errorf("version = %v, want test", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options header")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options header")
	}
}

func TestScanAndProcess(t *testing.T) {
	at := time.Now().Add(-24 * time.Hour)
	box := mailbox.Static{{
		ID:         "m1",
		Sender:     "no-reply@greenhouse.io",
		Subject:    "Thank you for applying to Acme Corp — Backend Engineer",
		ReceivedAt: at,
	}}
	p, h := setupTest(t, box)

	rec := do(t, h, "POST", "/api/scan", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("scan status = %d: %s", rec.Code, rec.Body.String())
	}
	if n := decodeBody(t, rec)["new"].(float64); n != 1 {
		t.Errorf("new = %v, want 1", n)
	}

	rec = do(t, h, "POST", "/api/auto-process", `{"min_confidence": 0.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("auto-process status = %d: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody(t, rec)
	if out["created"].(float64) != 1 || out["threshold"].(float64) != 0.5 {
		t.Errorf("auto-process = %v", out)
	}

	apps, err := db.AllApplications(context.Background(), p.DB, "default")
	if err != nil {
		t.Fatalf("AllApplications: %v", err)
	}
	if len(apps) != 1 || apps[0].Status != tracker.StatusApplied {
		t.Fatalf("applications = %+v", apps)
	}

	rec = do(t, h, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "jobtracker_") {
		t.Error("expected jobtracker metrics in exposition")
	}
}

func TestScan_NoMailbox(t *testing.T) {
	_, h := setupTest(t, nil)

	rec := do(t, h, "POST", "/api/scan", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := errorCode(t, rec); got != "INVALID_REQUEST" {
		t.Errorf("code = %s, want INVALID_REQUEST", got)
	}
	if hint := decodeBody(t, rec)["error"].(map[string]any)["hint"]; hint == nil {
		t.Error("expected a hint for a missing mailbox")
	}
}

func TestBatchEndpoints_BadBody(t *testing.T) {
	_, h := setupTest(t, nil)

	for _, path := range []string{
		"/api/auto-process",
		"/api/reminders/auto-create",
		"/api/applications/reject-stale",
		"/api/applications/dedupe",
	} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, h, "POST", path, `{"unknown_field": 1}`)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := errorCode(t, rec); got != "INVALID_REQUEST" {
				t.Errorf("code = %s, want INVALID_REQUEST", got)
			}
		})
	}
}

func TestBatchEndpoints_EmptyStore(t *testing.T) {
	_, h := setupTest(t, nil)

	for _, path := range []string{
		"/api/reminders/auto-create",
		"/api/applications/reject-stale?dry_run=true",
		"/api/applications/dedupe",
	} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, h, "POST", path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if _, ok := decodeBody(t, rec)["run_id"]; !ok {
				t.Error("expected run_id in batch summary")
			}
		})
	}
}

func TestApplications(t *testing.T) {
	p, h := setupTest(t, nil)
	id := seedApplication(t, p, "Acme Corp", "Backend Engineer")
	seedApplication(t, p, "Globex", "SRE")

	rec := do(t, h, "GET", "/api/applications?q=acme", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	items := decodeBody(t, rec)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}

	rec = do(t, h, "GET", "/api/applications/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["company"]; got != "Acme Corp" {
		t.Errorf("company = %v, want Acme Corp", got)
	}

	rec = do(t, h, "GET", "/api/applications/01ARZ3NDEKTSV4RRFFQ69G5FAV", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = do(t, h, "GET", "/api/applications?status=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEmailsAndReminders(t *testing.T) {
	p, h := setupTest(t, nil)
	id := seedApplication(t, p, "Initech", "Platform Engineer")
	if _, err := ops.CreateReminder(context.Background(), p.DB, ops.CreateReminderInput{
		ApplicationID: id,
		DueAt:         time.Now().Add(-time.Hour).Unix(),
	}); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	rec := do(t, h, "GET", "/api/reminders/due", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if items := decodeBody(t, rec)["items"].([]any); len(items) != 1 {
		t.Errorf("due reminders = %d, want 1", len(items))
	}

	rec = do(t, h, "GET", "/api/reminders/due?until=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = do(t, h, "GET", "/api/emails?state=unprocessed&job_related=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if items := decodeBody(t, rec)["items"].([]any); len(items) != 0 {
		t.Errorf("emails = %d, want 0", len(items))
	}
}

func TestStatsAndReport(t *testing.T) {
	p, h := setupTest(t, nil)
	seedApplication(t, p, "Acme Corp", "Backend Engineer")

	rec := do(t, h, "GET", "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if total := decodeBody(t, rec)["total"].(float64); total != 1 {
		t.Errorf("total = %v, want 1", total)
	}

	rec = do(t, h, "GET", "/api/report", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}

	rec = do(t, h, "GET", "/api/report?format=html", "")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Acme Corp") {
		t.Error("expected application in HTML report")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := setupTest(t, nil)

	rec := do(t, h, "GET", "/api/scan", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRenderError_InternalHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	renderError(rec, context.DeadlineExceeded)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	errObj := decodeBody(t, rec)["error"].(map[string]any)
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message = %v", errObj["message"])
	}
	if _, ok := errObj["details"]; ok {
		t.Error("internal errors must not carry details")
	}
}

func TestInterviews(t *testing.T) {
	p, h := setupTest(t, nil)
	id := seedApplication(t, p, "Acme Corp", "Backend Engineer")
	_, err := ops.ScheduleInterview(context.Background(), p.DB, ops.ScheduleInterviewInput{
		ApplicationID: id,
		Kind:          "technical",
		ScheduledAt:   time.Now().Add(24 * time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	rec := do(t, h, "GET", "/api/applications/"+id+"/interviews", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if items := decodeBody(t, rec)["items"].([]any); len(items) != 1 {
		t.Errorf("interviews = %d, want 1", len(items))
	}

	rec = do(t, h, "GET", "/api/interviews/upcoming?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	items := decodeBody(t, rec)["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["company"] != "Acme Corp" {
		t.Errorf("upcoming = %v", items)
	}

	rec = do(t, h, "GET", "/api/applications/01ARZ3NDEKTSV4RRFFQ69G5FAV/interviews", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRenderError_BatchInProgressSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	expires := time.Now().Add(90 * time.Second).Unix()
	renderError(rec, errors.WithHint(errors.NewBatchInProgress("me", "run-1", expires), "retry once the running batch finishes"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || secs < 1 || secs > 90 {
		t.Errorf("Retry-After = %q, want 1..90 seconds", rec.Header().Get("Retry-After"))
	}
	errObj := decodeBody(t, rec)["error"].(map[string]any)
	if !strings.Contains(errObj["hint"].(string), "retry") {
		t.Errorf("hint = %v", errObj["hint"])
	}

	rec = httptest.NewRecorder()
	renderError(rec, errors.NewConflict("other"))
	if rec.Header().Get("Retry-After") != "" {
		t.Error("Retry-After set on a plain conflict")
	}
}
