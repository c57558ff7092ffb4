package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/mailbox"
	"github.com/eladdeutch/jobtracker/internal/ops"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// setupTestPipeline creates a pipeline over a temporary database.
func setupTestPipeline(t *testing.T, box mailbox.Mailbox) *ops.Pipeline {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.BaseDir = tmpDir
	cfg.AllowUnsafePaths = true
	return ops.NewPipeline(database, cfg, box)
}

// runCLI runs the app with args and returns what it wrote.
func runCLI(t *testing.T, p *ops.Pipeline, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newCLIApp(p)
	app.Writer = &buf
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"jobtracker"}, args...))
	return buf.String(), err
}

// mustRun runs args and decodes the JSON output into a map.
func mustRun(t *testing.T, p *ops.Pipeline, args ...string) map[string]any {
	t.Helper()
	out, err := runCLI(t, p, args...)
	if err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("%v: output is not JSON: %v\n%s", args, err, out)
	}
	return result
}

// writeMailbox writes msgs as a JSONL mailbox file.
func writeMailbox(t *testing.T, msgs []tracker.Message) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inbox.jsonl")
	var buf bytes.Buffer
	buf.WriteString("# exported inbox\n")
	enc := json.NewEncoder(&buf)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func inboxMessages() []tracker.Message {
	at := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
	return []tracker.Message{
		{
			ID:         "m1",
			Sender:     "no-reply@greenhouse.io",
			Subject:    "Thank you for applying to Acme Corp — Backend Engineer",
			ReceivedAt: at,
		},
		{
			ID:         "m2",
			Sender:     "Jane Smith <jane@acme.com>",
			Subject:    "Your application for Backend Engineer at Acme Corp",
			Body:       "Hi! We'd like to schedule a phone call to discuss next steps.",
			ReceivedAt: at.Add(time.Hour),
		},
		{
			ID:         "m3",
			Sender:     "deals@shop.example",
			Subject:    "50% off this weekend only",
			ReceivedAt: at.Add(2 * time.Hour),
		},
	}
}

func TestCLIScanAndProcess(t *testing.T) {
	p := setupTestPipeline(t, mailbox.NewFile(writeMailbox(t, inboxMessages())))

	scan := mustRun(t, p, "scan")
	if scan["fetched"] != float64(3) {
		t.Errorf("fetched = %v, want 3", scan["fetched"])
	}
	if scan["job_related"] != float64(2) {
		t.Errorf("job_related = %v, want 2", scan["job_related"])
	}
	if scan["run_id"] == "" {
		t.Error("expected run_id")
	}

	processed := mustRun(t, p, "process")
	if processed["created"] != float64(1) {
		t.Errorf("created = %v, want 1", processed["created"])
	}

	list := mustRun(t, p, "apps", "--status", "active")
	items := list["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 application, got %d", len(items))
	}
	app := items[0].(map[string]any)
	if app["status"] != string(tracker.StatusPhoneScreen) {
		t.Errorf("status = %v, want phone_screen", app["status"])
	}

	rescan := mustRun(t, p, "scan")
	if rescan["new"] != float64(0) {
		t.Errorf("rescan new = %v, want 0", rescan["new"])
	}
}

func TestCLIScan_NoMailbox(t *testing.T) {
	p := setupTestPipeline(t, nil)

	_, err := runCLI(t, p, "scan")
	if err == nil {
		t.Fatal("expected error without a mailbox")
	}
	if !strings.HasPrefix(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("error = %q", err.Error())
	}
	if !strings.Contains(err.Error(), "hint:") {
		t.Errorf("expected a hint line, got %q", err.Error())
	}
}

func TestCLIAddShowUpdate(t *testing.T) {
	p := setupTestPipeline(t, nil)

	created := mustRun(t, p, "add", "--company", "Globex", "--position", "SRE", "--applied", "2026-03-01")
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("expected id in %v", created)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Unix()
	if created["applied_at"] != float64(want) {
		t.Errorf("applied_at = %v, want %d", created["applied_at"], want)
	}

	shown := mustRun(t, p, "show", id)
	if shown["company"] != "Globex" {
		t.Errorf("company = %v", shown["company"])
	}
	if emails, ok := shown["emails"].([]any); !ok || len(emails) != 0 {
		t.Errorf("emails = %v, want empty list", shown["emails"])
	}

	updated := mustRun(t, p, "update", id, "--notes", "referred by Sam")["application"].(map[string]any)
	if updated["notes"] != "referred by Sam" {
		t.Errorf("notes = %v", updated["notes"])
	}
	if updated["position"] != "SRE" {
		t.Errorf("position changed to %v", updated["position"])
	}

	_, err := runCLI(t, p, "add", "--company", "Globex", "--position", "SRE")
	if err == nil || !strings.HasPrefix(err.Error(), "[CONFLICT]") {
		t.Errorf("duplicate add error = %v", err)
	}
	dup := mustRun(t, p, "add", "--company", "Globex", "--position", "SRE", "--allow-duplicate")
	if dup["id"] == id {
		t.Error("allow-duplicate returned the existing application")
	}
}

func TestCLIStatusAndDelete(t *testing.T) {
	p := setupTestPipeline(t, nil)
	created := mustRun(t, p, "add", "--company", "Initech", "--position", "Analyst")
	id := created["id"].(string)

	result := mustRun(t, p, "status", id, "rejected")
	app := result["application"].(map[string]any)
	if app["status"] != "rejected" {
		t.Errorf("status = %v", app["status"])
	}
	if app["rejection_stage"] != "applied" {
		t.Errorf("rejection_stage = %v, want applied", app["rejection_stage"])
	}

	deleted := mustRun(t, p, "delete", id)
	if deleted["deleted"] != true {
		t.Errorf("deleted = %v", deleted["deleted"])
	}
	_, err := runCLI(t, p, "show", id)
	if err == nil || !strings.HasPrefix(err.Error(), "[NOT_FOUND]") {
		t.Errorf("show after delete error = %v", err)
	}
}

func TestCLIRemindersAndInterviews(t *testing.T) {
	p := setupTestPipeline(t, nil)
	created := mustRun(t, p, "add", "--company", "Hooli", "--position", "Engineer")
	id := created["id"].(string)

	reminder := mustRun(t, p, "reminder", "add", id, "--message", "follow up")
	reminderID := reminder["id"].(string)

	due := mustRun(t, p, "reminders")
	if items := due["items"].([]any); len(items) != 1 {
		t.Errorf("expected 1 due reminder, got %d", len(items))
	}

	_, err := runCLI(t, p, "reminder", "add", id)
	if err == nil || !strings.HasPrefix(err.Error(), "[CONFLICT]") {
		t.Errorf("second pending reminder error = %v", err)
	}

	done := mustRun(t, p, "reminder", "done", reminderID)
	if done["state"] != string(tracker.ReminderCompleted) {
		t.Errorf("reminder state = %v", done["state"])
	}

	at := time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339)
	scheduled := mustRun(t, p, "interview", "schedule", id, "--at", at, "--kind", "technical")
	app := scheduled["application"].(map[string]any)
	if app["status"] != string(tracker.StatusFirstInterview) {
		t.Errorf("status after technical interview = %v", app["status"])
	}
	ivID := scheduled["interview"].(map[string]any)["id"].(string)

	later := time.Now().Add(96 * time.Hour).UTC().Format(time.RFC3339)
	updated := mustRun(t, p, "interview", "update", ivID, "--at", later, "--location", "HQ")
	if iv := updated["interview"].(map[string]any); iv["location"] != "HQ" {
		t.Errorf("location after update = %v", iv["location"])
	}

	upcoming := mustRun(t, p, "interview", "upcoming")
	if items := upcoming["items"].([]any); len(items) != 1 || items[0].(map[string]any)["company"] != "Hooli" {
		t.Errorf("upcoming = %v", upcoming["items"])
	}

	cancelled := mustRun(t, p, "interview", "cancel", ivID)
	if cancelled["outcome"] != string(tracker.OutcomeCancelled) {
		t.Errorf("outcome after cancel = %v", cancelled["outcome"])
	}
	if items := mustRun(t, p, "interview", "upcoming")["items"].([]any); len(items) != 0 {
		t.Errorf("cancelled interview still upcoming: %v", items)
	}

	listed := mustRun(t, p, "interview", "list", id)
	if items := listed["items"].([]any); len(items) != 1 {
		t.Errorf("interview list = %v", items)
	}
	mustRun(t, p, "interview", "delete", ivID)
	_, err = runCLI(t, p, "interview", "show", ivID)
	if err == nil || !strings.HasPrefix(err.Error(), "[NOT_FOUND]") {
		t.Errorf("show after delete error = %v", err)
	}
}

func TestCLIAddBulk(t *testing.T) {
	p := setupTestPipeline(t, nil)
	path := filepath.Join(t.TempDir(), "apps.json")
	data := `[
		{"company": "Acme", "position": "SRE", "applied_at": "2026-02-01"},
		{"company": ""},
		{"company": "Globex", "position": "Engineer", "status": "phone_screen"}
	]`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, p, "add-bulk", path)
	if out["created"] != float64(2) || out["failed"] != float64(1) {
		t.Errorf("created/failed = %v/%v", out["created"], out["failed"])
	}
	if errs := out["errors"].([]any); errs[0].(map[string]any)["index"] != float64(1) {
		t.Errorf("errors = %v", errs)
	}

	if err := os.WriteFile(path, []byte(`{"company": "Acme"}`), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := runCLI(t, p, "add-bulk", path)
	if err == nil || !strings.HasPrefix(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("non-array input error = %v", err)
	}
}

func TestCLIFetchPostingNeedsURL(t *testing.T) {
	p := setupTestPipeline(t, nil)
	created := mustRun(t, p, "add", "--company", "Hooli")
	_, err := runCLI(t, p, "fetch-posting", created["id"].(string))
	if err == nil || !strings.HasPrefix(err.Error(), "[INVALID_REQUEST]") {
		t.Errorf("fetch without url error = %v", err)
	}
	if !strings.Contains(err.Error(), "pass the posting url") {
		t.Errorf("error does not carry the hint: %v", err)
	}
}

func TestCLIEmailsLinkAndTrack(t *testing.T) {
	p := setupTestPipeline(t, mailbox.Static(inboxMessages()))
	mustRun(t, p, "scan")

	emails := mustRun(t, p, "emails", "--state", "unprocessed")
	if items := emails["items"].([]any); len(items) != 2 {
		t.Fatalf("expected 2 unprocessed emails, got %d", len(items))
	}

	tracked := mustRun(t, p, "track", "m1")
	app := tracked["application"].(map[string]any)
	if app["company"] != "Acme Corp" {
		t.Errorf("company = %v", app["company"])
	}

	linked := mustRun(t, p, "link", "m2", app["id"].(string), "--apply-status")
	email := linked["email"].(map[string]any)
	if email["state"] != string(tracker.EmailLinked) {
		t.Errorf("email state = %v", email["state"])
	}

	dismissed := mustRun(t, p, "dismiss", "m2")
	if dismissed["state"] != string(tracker.EmailDismissed) {
		t.Errorf("email state = %v", dismissed["state"])
	}
	if dismissed["application_id"] != nil {
		t.Errorf("dismissed email still linked to %v", dismissed["application_id"])
	}
}

func TestCLIStatsReportExport(t *testing.T) {
	p := setupTestPipeline(t, nil)
	mustRun(t, p, "add", "--company", "Umbrella", "--position", "Chemist")

	stats := mustRun(t, p, "stats")
	if stats["total"] != float64(1) {
		t.Errorf("total = %v", stats["total"])
	}

	report, err := runCLI(t, p, "report")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.HasPrefix(report, "# Job search report") {
		t.Errorf("report does not start with a heading: %q", report[:min(len(report), 40)])
	}
	html, err := runCLI(t, p, "report", "--format", "html")
	if err != nil {
		t.Fatalf("html report failed: %v", err)
	}
	if !strings.Contains(html, "<h1>") {
		t.Errorf("html report missing <h1>")
	}

	path := filepath.Join(t.TempDir(), "apps.jsonl")
	exported := mustRun(t, p, "export", "--path", path)
	if exported["format"] != "jsonl" || exported["count"] != float64(1) {
		t.Errorf("export = %v", exported)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}

func TestCLIErrorHandling(t *testing.T) {
	p := setupTestPipeline(t, nil)

	tests := []struct {
		name   string
		args   []string
		prefix string
	}{
		{"show missing id", []string{"show"}, "[INVALID_REQUEST]"},
		{"show unknown id", []string{"show", "01HZZZZZZZZZZZZZZZZZZZZZZZ"}, "[NOT_FOUND]"},
		{"bad applied date", []string{"add", "--company", "X", "--applied", "yesterday"}, "[INVALID_REQUEST]"},
		{"bad status", []string{"apps", "--status", "hired"}, "[INVALID_REQUEST]"},
		{"bad threshold", []string{"process", "--min-confidence", "1.5"}, "[INVALID_REQUEST]"},
		{"bad report format", []string{"report", "--format", "pdf"}, "[INVALID_REQUEST]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, p, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Errorf("error = %q, want prefix %s", err.Error(), tt.prefix)
			}
		})
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"jobtracker"}, false},
		{"scan", []string{"jobtracker", "scan"}, true},
		{"reject-stale", []string{"jobtracker", "reject-stale", "--dry-run"}, true},
		{"reminder subcommand", []string{"jobtracker", "reminder", "add"}, true},
		{"serve", []string{"jobtracker", "serve"}, true},
		{"help flag", []string{"jobtracker", "--help"}, true},
		{"version flag", []string{"jobtracker", "-v"}, true},
		{"unknown", []string{"jobtracker", "frobnicate"}, false},
		{"flag only", []string{"jobtracker", "--account"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCLIMode(tt.args); got != tt.expected {
				t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.expected)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args     []string
		expected bool
	}{
		{[]string{"jobtracker"}, false},
		{[]string{"jobtracker", "--help"}, true},
		{[]string{"jobtracker", "-h"}, true},
		{[]string{"jobtracker", "help"}, true},
		{[]string{"jobtracker", "--version"}, true},
		{[]string{"jobtracker", "-v"}, true},
		{[]string{"jobtracker", "scan"}, false},
	}
	for _, tt := range tests {
		if got := isHelpOrVersion(tt.args); got != tt.expected {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, got, tt.expected)
		}
	}
}

func TestHelpWithoutPipeline(t *testing.T) {
	out, err := runCLI(t, nil, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, cmd := range []string{"scan", "process", "reject-stale", "serve"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing %q", cmd)
		}
	}
}

func TestBatchCommandHelpMentionsRetry(t *testing.T) {
	for _, cmd := range []string{"scan", "process", "remind", "reject-stale", "dedupe"} {
		out, err := runCLI(t, nil, cmd, "--help")
		if err != nil {
			t.Fatalf("%s --help failed: %v", cmd, err)
		}
		if !strings.Contains(out, "BATCH_IN_PROGRESS") || !strings.Contains(out, "retry") {
			t.Errorf("%s help does not explain retrying a locked run:\n%s", cmd, out)
		}
	}
}
