package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/ops"
)

// Handlers contains HTTP route handlers for the API.
type Handlers struct {
	p       *ops.Pipeline
	version string
}

// HandleIndex handles GET / with the service name and version.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{
		"name":    "jobtracker",
		"version": h.version,
		"account": h.p.Cfg.Account,
	})
}

// runOptions is the optional JSON body accepted by the batch endpoints.
type runOptions struct {
	Account        string   `json:"account"`
	DaysBack       int      `json:"days_back"`
	MaxResults     int      `json:"max_results"`
	MinConfidence  *float64 `json:"min_confidence"`
	Limit          int      `json:"limit"`
	InactivityDays int      `json:"inactivity_days"`
	StaleDays      int      `json:"stale_days"`
	DryRun         bool     `json:"dry_run"`
}

// HandleScan handles POST /api/scan.
func (h *Handlers) HandleScan(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeOptions(w, r)
	if err != nil {
		renderError(w, err)
		return
	}
	result, err := h.p.Scan(r.Context(), ops.ScanInput{
		Account:    opts.Account,
		DaysBack:   opts.DaysBack,
		MaxResults: opts.MaxResults,
	})
	respond(w, result, err)
}

// HandleAutoProcess handles POST /api/auto-process.
func (h *Handlers) HandleAutoProcess(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeOptions(w, r)
	if err != nil {
		renderError(w, err)
		return
	}
	result, err := h.p.AutoProcess(r.Context(), ops.AutoProcessInput{
		Account:       opts.Account,
		MinConfidence: opts.MinConfidence,
		Limit:         opts.Limit,
	})
	respond(w, result, err)
}

// HandleAutoReminders handles POST /api/reminders/auto-create.
func (h *Handlers) HandleAutoReminders(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeOptions(w, r)
	if err != nil {
		renderError(w, err)
		return
	}
	result, err := h.p.AutoCreateReminders(r.Context(), ops.AutoRemindersInput{
		Account:        opts.Account,
		InactivityDays: opts.InactivityDays,
	})
	respond(w, result, err)
}

// HandleRejectStale handles POST /api/applications/reject-stale.
func (h *Handlers) HandleRejectStale(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeOptions(w, r)
	if err != nil {
		renderError(w, err)
		return
	}
	result, err := h.p.AutoRejectStale(r.Context(), ops.RejectStaleInput{
		Account:   opts.Account,
		StaleDays: opts.StaleDays,
		DryRun:    opts.DryRun || parseBoolParam(r, "dry_run"),
	})
	respond(w, result, err)
}

// HandleDedupe handles POST /api/applications/dedupe.
func (h *Handlers) HandleDedupe(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeOptions(w, r)
	if err != nil {
		renderError(w, err)
		return
	}
	result, err := h.p.Dedupe(r.Context(), ops.DedupeInput{
		Account: opts.Account,
		DryRun:  opts.DryRun || parseBoolParam(r, "dry_run"),
	})
	respond(w, result, err)
}

// HandleListApplications handles GET /api/applications.
func (h *Handlers) HandleListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := ops.ListApplications(r.Context(), h.p.DB, h.p.Cfg, ops.ListApplicationsInput{
		Account: q.Get("account"),
		Status:  q.Get("status"),
		Query:   q.Get("q"),
		Limit:   parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:  parseIntParam(r, "offset", 0),
	})
	respond(w, result, err)
}

// HandleGetApplication handles GET /api/applications/{id}.
func (h *Handlers) HandleGetApplication(w http.ResponseWriter, r *http.Request) {
	result, err := ops.GetApplication(r.Context(), h.p.DB, ops.GetApplicationInput{ID: r.PathValue("id")})
	respond(w, result, err)
}

// HandleListInterviews handles GET /api/applications/{id}/interviews.
func (h *Handlers) HandleListInterviews(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListInterviews(r.Context(), h.p.DB, ops.ListInterviewsInput{ApplicationID: r.PathValue("id")})
	respond(w, result, err)
}

// HandleUpcomingInterviews handles GET /api/interviews/upcoming.
func (h *Handlers) HandleUpcomingInterviews(w http.ResponseWriter, r *http.Request) {
	result, err := ops.UpcomingInterviews(r.Context(), h.p.DB, h.p.Cfg, ops.UpcomingInterviewsInput{
		Account: r.URL.Query().Get("account"),
		Limit:   parseIntParam(r, "limit", ops.DefaultUpcomingLimit),
	})
	respond(w, result, err)
}

// HandleListEmails handles GET /api/emails.
func (h *Handlers) HandleListEmails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.ListEmailsInput{
		Account:       q.Get("account"),
		State:         q.Get("state"),
		ApplicationID: q.Get("application_id"),
		Limit:         parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:        parseIntParam(r, "offset", 0),
	}
	if s := q.Get("job_related"); s != "" {
		v := parseBoolParam(r, "job_related")
		input.JobRelated = &v
	}
	result, err := ops.ListEmails(r.Context(), h.p.DB, h.p.Cfg, input)
	respond(w, result, err)
}

// HandleDueReminders handles GET /api/reminders/due.
func (h *Handlers) HandleDueReminders(w http.ResponseWriter, r *http.Request) {
	until, err := ops.ParseTime("until", r.URL.Query().Get("until"))
	if err != nil {
		renderError(w, err)
		return
	}
	result, err := ops.ListDueReminders(r.Context(), h.p.DB, h.p.Cfg, ops.ListDueInput{
		Account: r.URL.Query().Get("account"),
		Until:   until,
	})
	respond(w, result, err)
}

// HandleStats handles GET /api/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Stats(r.Context(), h.p.DB, h.p.Cfg, ops.StatsInput{Account: r.URL.Query().Get("account")})
	respond(w, result, err)
}

// HandleReport handles GET /api/report. The report body is served as is,
// markdown by default or HTML with format=html.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := ops.Report(r.Context(), h.p.DB, h.p.Cfg, ops.ReportInput{
		Account: q.Get("account"),
		Format:  q.Get("format"),
		Recent:  parseIntParam(r, "recent", 0),
	})
	if err != nil {
		renderError(w, err)
		return
	}
	contentType := "text/markdown; charset=utf-8"
	if result.Format == "html" {
		contentType = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, result.Content)
}

// decodeOptions reads the optional JSON body of a batch endpoint. An empty
// body means defaults; the account query parameter fills in a missing account.
func decodeOptions(w http.ResponseWriter, r *http.Request) (runOptions, error) {
	var opts runOptions
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil && err != io.EOF {
		return opts, errors.NewInvalidRequest("invalid request body: " + err.Error())
	}
	if opts.Account == "" {
		opts.Account = r.URL.Query().Get("account")
	}
	return opts, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := strings.ToLower(r.URL.Query().Get(name))
	return s == "true" || s == "1"
}
