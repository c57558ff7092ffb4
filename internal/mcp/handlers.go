package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	p *ops.Pipeline
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(p *ops.Pipeline) *Handlers {
	return &Handlers{p: p}
}

// Request types for each tool

// ScanRequest represents the arguments for pipeline_scan.
type ScanRequest struct {
	Account    string `json:"account,omitempty"`
	DaysBack   int    `json:"days_back,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// AutoProcessRequest represents the arguments for pipeline_auto_process.
type AutoProcessRequest struct {
	Account       string   `json:"account,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// AutoRemindersRequest represents the arguments for pipeline_auto_reminders.
type AutoRemindersRequest struct {
	Account        string `json:"account,omitempty"`
	InactivityDays int    `json:"inactivity_days,omitempty"`
}

// RejectStaleRequest represents the arguments for pipeline_reject_stale.
type RejectStaleRequest struct {
	Account   string `json:"account,omitempty"`
	StaleDays int    `json:"stale_days,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// DedupeRequest represents the arguments for pipeline_dedupe.
type DedupeRequest struct {
	Account string `json:"account,omitempty"`
	DryRun  bool   `json:"dry_run,omitempty"`
}

// CreateApplicationRequest represents the arguments for application_create.
type CreateApplicationRequest struct {
	Account          string `json:"account,omitempty"`
	Company          string `json:"company"`
	Position         string `json:"position,omitempty"`
	Status           string `json:"status,omitempty"`
	AppliedAt        string `json:"applied_at,omitempty"`
	Notes            string `json:"notes,omitempty"`
	JobDescription   string `json:"job_description,omitempty"`
	URL              string `json:"url,omitempty"`
	SalaryRange      string `json:"salary_range,omitempty"`
	RecruiterContact string `json:"recruiter_contact,omitempty"`
	AllowDuplicate   bool   `json:"allow_duplicate,omitempty"`
}

// IDRequest represents the arguments of tools addressing one record by id.
type IDRequest struct {
	ID string `json:"id"`
}

// ListApplicationsRequest represents the arguments for application_list.
type ListApplicationsRequest struct {
	Account string `json:"account,omitempty"`
	Status  string `json:"status,omitempty"`
	Query   string `json:"query,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// UpdateApplicationRequest represents the arguments for application_update.
// Absent fields are left unchanged.
type UpdateApplicationRequest struct {
	ID               string  `json:"id"`
	Company          *string `json:"company,omitempty"`
	Position         *string `json:"position,omitempty"`
	AppliedAt        *string `json:"applied_at,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	JobDescription   *string `json:"job_description,omitempty"`
	URL              *string `json:"url,omitempty"`
	SalaryRange      *string `json:"salary_range,omitempty"`
	RecruiterContact *string `json:"recruiter_contact,omitempty"`
	Version          int64   `json:"version,omitempty"`
}

// SetStatusRequest represents the arguments for application_set_status.
type SetStatusRequest struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	RejectionStage string `json:"rejection_stage,omitempty"`
}

// MergeRequest represents the arguments for application_merge.
type MergeRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// ExportRequest represents the arguments for application_export.
type ExportRequest struct {
	Account string `json:"account,omitempty"`
	Path    string `json:"path,omitempty"`
	Format  string `json:"format,omitempty"`
}

// ListEmailsRequest represents the arguments for email_list.
type ListEmailsRequest struct {
	Account       string `json:"account,omitempty"`
	State         string `json:"state,omitempty"`
	ApplicationID string `json:"application_id,omitempty"`
	JobRelated    *bool  `json:"job_related,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

// LinkEmailRequest represents the arguments for email_link.
type LinkEmailRequest struct {
	EmailID       string `json:"email_id"`
	ApplicationID string `json:"application_id"`
	ApplyStatus   bool   `json:"apply_status,omitempty"`
}

// DismissEmailRequest represents the arguments for email_dismiss.
type DismissEmailRequest struct {
	EmailID string `json:"email_id"`
}

// CreateFromEmailRequest represents the arguments for email_create_application.
type CreateFromEmailRequest struct {
	EmailID  string `json:"email_id"`
	Company  string `json:"company,omitempty"`
	Position string `json:"position,omitempty"`
}

// CreateReminderRequest represents the arguments for reminder_create.
type CreateReminderRequest struct {
	ApplicationID string `json:"application_id"`
	DueAt         string `json:"due_at,omitempty"`
	DueInDays     int    `json:"due_in_days,omitempty"`
	Message       string `json:"message,omitempty"`
}

// ListDueRequest represents the arguments for reminder_list_due.
type ListDueRequest struct {
	Account string `json:"account,omitempty"`
	Until   string `json:"until,omitempty"`
}

// SnoozeReminderRequest represents the arguments for reminder_snooze.
type SnoozeReminderRequest struct {
	ID   string `json:"id"`
	Days int    `json:"days,omitempty"`
}

// ScheduleInterviewRequest represents the arguments for interview_schedule.
type ScheduleInterviewRequest struct {
	ApplicationID string `json:"application_id"`
	ScheduledAt   string `json:"scheduled_at"`
	Kind          string `json:"kind,omitempty"`
	Location      string `json:"location,omitempty"`
	Interviewer   string `json:"interviewer,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// CompleteInterviewRequest represents the arguments for interview_complete.
type CompleteInterviewRequest struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Notes   string `json:"notes,omitempty"`
}

// ApplicationIDRequest represents the arguments for interview_list.
type ApplicationIDRequest struct {
	ApplicationID string `json:"application_id"`
}

// UpcomingInterviewsRequest represents the arguments for interview_upcoming.
type UpcomingInterviewsRequest struct {
	Account string `json:"account,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// UpdateInterviewRequest represents the arguments for interview_update.
type UpdateInterviewRequest struct {
	ID          string  `json:"id"`
	ScheduledAt *string `json:"scheduled_at,omitempty"`
	Kind        *string `json:"kind,omitempty"`
	Location    *string `json:"location,omitempty"`
	Interviewer *string `json:"interviewer,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// BulkCreateRequest represents the arguments for application_bulk_create.
type BulkCreateRequest struct {
	Account      string                `json:"account,omitempty"`
	Applications []ops.BulkApplication `json:"applications"`
}

// FetchPostingRequest represents the arguments for application_fetch_posting.
type FetchPostingRequest struct {
	URL           string `json:"url,omitempty"`
	ApplicationID string `json:"application_id,omitempty"`
}

// AccountRequest represents the arguments for stats_summary.
type AccountRequest struct {
	Account string `json:"account,omitempty"`
}

// ReportRequest represents the arguments for stats_report.
type ReportRequest struct {
	Account string `json:"account,omitempty"`
	Format  string `json:"format,omitempty"`
	Recent  int    `json:"recent,omitempty"`
}

// Pipeline handlers

// HandleScan handles the pipeline_scan tool call.
func (h *Handlers) HandleScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScanRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(h.p.Scan(ctx, ops.ScanInput{
		Account:    input.Account,
		DaysBack:   input.DaysBack,
		MaxResults: input.MaxResults,
	}))
}

// HandleAutoProcess handles the pipeline_auto_process tool call.
func (h *Handlers) HandleAutoProcess(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AutoProcessRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(h.p.AutoProcess(ctx, ops.AutoProcessInput{
		Account:       input.Account,
		MinConfidence: input.MinConfidence,
		Limit:         input.Limit,
	}))
}

// HandleAutoReminders handles the pipeline_auto_reminders tool call.
func (h *Handlers) HandleAutoReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AutoRemindersRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(h.p.AutoCreateReminders(ctx, ops.AutoRemindersInput{
		Account:        input.Account,
		InactivityDays: input.InactivityDays,
	}))
}

// HandleRejectStale handles the pipeline_reject_stale tool call.
func (h *Handlers) HandleRejectStale(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RejectStaleRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(h.p.AutoRejectStale(ctx, ops.RejectStaleInput{
		Account:   input.Account,
		StaleDays: input.StaleDays,
		DryRun:    input.DryRun,
	}))
}

// HandleDedupe handles the pipeline_dedupe tool call.
func (h *Handlers) HandleDedupe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DedupeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(h.p.Dedupe(ctx, ops.DedupeInput{Account: input.Account, DryRun: input.DryRun}))
}

// Application handlers

// HandleCreateApplication handles the application_create tool call.
func (h *Handlers) HandleCreateApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateApplicationRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	appliedAt, err := ops.ParseTime("applied_at", input.AppliedAt)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.CreateApplication(ctx, h.p.DB, h.p.Cfg, ops.CreateApplicationInput{
		Account:          input.Account,
		Company:          input.Company,
		Position:         input.Position,
		Status:           input.Status,
		AppliedAt:        appliedAt,
		Notes:            input.Notes,
		JobDescription:   input.JobDescription,
		URL:              input.URL,
		SalaryRange:      input.SalaryRange,
		RecruiterContact: input.RecruiterContact,
		AllowDuplicate:   input.AllowDuplicate,
	}))
}

// HandleBulkCreateApplications handles the application_bulk_create tool call.
func (h *Handlers) HandleBulkCreateApplications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BulkCreateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	items, err := ops.BulkInputs(input.Account, input.Applications)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.CreateApplications(ctx, h.p.DB, h.p.Cfg, items))
}

// HandleFetchPosting handles the application_fetch_posting tool call.
func (h *Handlers) HandleFetchPosting(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchPostingRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(h.p.FetchPosting(ctx, ops.FetchPostingInput{
		URL:           input.URL,
		ApplicationID: input.ApplicationID,
	}))
}

// HandleGetApplication handles the application_get tool call.
func (h *Handlers) HandleGetApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.GetApplication(ctx, h.p.DB, ops.GetApplicationInput{ID: input.ID}))
}

// HandleListApplications handles the application_list tool call.
func (h *Handlers) HandleListApplications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListApplicationsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ListApplications(ctx, h.p.DB, h.p.Cfg, ops.ListApplicationsInput{
		Account: input.Account,
		Status:  input.Status,
		Query:   input.Query,
		Limit:   input.Limit,
		Offset:  input.Offset,
	}))
}

// HandleUpdateApplication handles the application_update tool call.
func (h *Handlers) HandleUpdateApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateApplicationRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	var appliedAt *int64
	if input.AppliedAt != nil {
		v, err := ops.ParseTime("applied_at", *input.AppliedAt)
		if err != nil {
			return errorResult(err), nil
		}
		appliedAt = &v
	}
	return respond(ops.UpdateApplication(ctx, h.p.DB, h.p.Cfg, ops.UpdateApplicationInput{
		ID:               input.ID,
		Company:          input.Company,
		Position:         input.Position,
		AppliedAt:        appliedAt,
		Notes:            input.Notes,
		JobDescription:   input.JobDescription,
		URL:              input.URL,
		SalaryRange:      input.SalaryRange,
		RecruiterContact: input.RecruiterContact,
		Version:          input.Version,
	}))
}

// HandleSetStatus handles the application_set_status tool call.
func (h *Handlers) HandleSetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetStatusRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.SetStatus(ctx, h.p.DB, ops.SetStatusInput{
		ID:             input.ID,
		Status:         input.Status,
		RejectionStage: input.RejectionStage,
	}))
}

// HandleMerge handles the application_merge tool call.
func (h *Handlers) HandleMerge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MergeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Merge(ctx, h.p.DB, ops.MergeInput{SourceID: input.SourceID, TargetID: input.TargetID}))
}

// HandleDeleteApplication handles the application_delete tool call.
func (h *Handlers) HandleDeleteApplication(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.DeleteApplication(ctx, h.p.DB, ops.DeleteApplicationInput{ID: input.ID}))
}

// HandleExport handles the application_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Export(ctx, h.p.DB, h.p.Cfg, ops.ExportInput{
		Account: input.Account,
		Path:    input.Path,
		Format:  input.Format,
	}))
}

// Email handlers

// HandleListEmails handles the email_list tool call.
func (h *Handlers) HandleListEmails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListEmailsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ListEmails(ctx, h.p.DB, h.p.Cfg, ops.ListEmailsInput{
		Account:       input.Account,
		State:         input.State,
		ApplicationID: input.ApplicationID,
		JobRelated:    input.JobRelated,
		Limit:         input.Limit,
		Offset:        input.Offset,
	}))
}

// HandleGetEmail handles the email_get tool call.
func (h *Handlers) HandleGetEmail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.GetEmail(ctx, h.p.DB, ops.GetEmailInput{ID: input.ID}))
}

// HandleLinkEmail handles the email_link tool call.
func (h *Handlers) HandleLinkEmail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LinkEmailRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.LinkEmail(ctx, h.p.DB, ops.LinkEmailInput{
		EmailID:       input.EmailID,
		ApplicationID: input.ApplicationID,
		ApplyStatus:   input.ApplyStatus,
	}))
}

// HandleDismissEmail handles the email_dismiss tool call.
func (h *Handlers) HandleDismissEmail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DismissEmailRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.DismissEmail(ctx, h.p.DB, ops.DismissEmailInput{EmailID: input.EmailID}))
}

// HandleCreateFromEmail handles the email_create_application tool call.
func (h *Handlers) HandleCreateFromEmail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateFromEmailRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.CreateFromEmail(ctx, h.p.DB, h.p.Cfg, ops.CreateFromEmailInput{
		EmailID:  input.EmailID,
		Company:  input.Company,
		Position: input.Position,
	}))
}

// Reminder handlers

// HandleCreateReminder handles the reminder_create tool call.
func (h *Handlers) HandleCreateReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateReminderRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	dueAt, err := ops.ParseTime("due_at", input.DueAt)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.CreateReminder(ctx, h.p.DB, ops.CreateReminderInput{
		ApplicationID: input.ApplicationID,
		DueAt:         dueAt,
		DueInDays:     input.DueInDays,
		Message:       input.Message,
	}))
}

// HandleListDueReminders handles the reminder_list_due tool call.
func (h *Handlers) HandleListDueReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListDueRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	until, err := ops.ParseTime("until", input.Until)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ListDueReminders(ctx, h.p.DB, h.p.Cfg, ops.ListDueInput{
		Account: input.Account,
		Until:   until,
	}))
}

// HandleCompleteReminder handles the reminder_complete tool call.
func (h *Handlers) HandleCompleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.CompleteReminder(ctx, h.p.DB, ops.ReminderInput{ID: input.ID}))
}

// HandleDismissReminder handles the reminder_dismiss tool call.
func (h *Handlers) HandleDismissReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.DismissReminder(ctx, h.p.DB, ops.ReminderInput{ID: input.ID}))
}

// HandleSnoozeReminder handles the reminder_snooze tool call.
func (h *Handlers) HandleSnoozeReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnoozeReminderRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.SnoozeReminder(ctx, h.p.DB, ops.SnoozeReminderInput{ID: input.ID, Days: input.Days}))
}

// Interview handlers

// HandleScheduleInterview handles the interview_schedule tool call.
func (h *Handlers) HandleScheduleInterview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScheduleInterviewRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	scheduledAt, err := ops.ParseTime("scheduled_at", input.ScheduledAt)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ScheduleInterview(ctx, h.p.DB, ops.ScheduleInterviewInput{
		ApplicationID: input.ApplicationID,
		Kind:          input.Kind,
		ScheduledAt:   scheduledAt,
		Location:      input.Location,
		Interviewer:   input.Interviewer,
		Notes:         input.Notes,
	}))
}

// HandleCompleteInterview handles the interview_complete tool call.
func (h *Handlers) HandleCompleteInterview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CompleteInterviewRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.CompleteInterview(ctx, h.p.DB, ops.CompleteInterviewInput{
		ID:      input.ID,
		Outcome: input.Outcome,
		Notes:   input.Notes,
	}))
}

// HandleListInterviews handles the interview_list tool call.
func (h *Handlers) HandleListInterviews(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApplicationIDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.ListInterviews(ctx, h.p.DB, ops.ListInterviewsInput{ApplicationID: input.ApplicationID}))
}

// HandleGetInterview handles the interview_get tool call.
func (h *Handlers) HandleGetInterview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.GetInterview(ctx, h.p.DB, ops.GetInterviewInput{ID: input.ID}))
}

// HandleUpcomingInterviews handles the interview_upcoming tool call.
func (h *Handlers) HandleUpcomingInterviews(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpcomingInterviewsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.UpcomingInterviews(ctx, h.p.DB, h.p.Cfg, ops.UpcomingInterviewsInput{
		Account: input.Account,
		Limit:   input.Limit,
	}))
}

// HandleUpdateInterview handles the interview_update tool call.
func (h *Handlers) HandleUpdateInterview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateInterviewRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	upd := ops.UpdateInterviewInput{
		ID:          input.ID,
		Kind:        input.Kind,
		Location:    input.Location,
		Interviewer: input.Interviewer,
		Notes:       input.Notes,
	}
	if input.ScheduledAt != nil {
		at, err := ops.ParseTime("scheduled_at", *input.ScheduledAt)
		if err != nil {
			return errorResult(err), nil
		}
		upd.ScheduledAt = &at
	}
	return respond(ops.UpdateInterview(ctx, h.p.DB, upd))
}

// HandleCancelInterview handles the interview_cancel tool call.
func (h *Handlers) HandleCancelInterview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.CancelInterview(ctx, h.p.DB, ops.CancelInterviewInput{ID: input.ID}))
}

// HandleDeleteInterview handles the interview_delete tool call.
func (h *Handlers) HandleDeleteInterview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.DeleteInterview(ctx, h.p.DB, ops.DeleteInterviewInput{ID: input.ID}))
}

// Stats handlers

// HandleStats handles the stats_summary tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AccountRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Stats(ctx, h.p.DB, h.p.Cfg, ops.StatsInput{Account: input.Account}))
}

// HandleReport handles the stats_report tool call.
func (h *Handlers) HandleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	return respond(ops.Report(ctx, h.p.DB, h.p.Cfg, ops.ReportInput{
		Account: input.Account,
		Format:  input.Format,
		Recent:  input.Recent,
	}))
}

// respond turns an ops result into a tool result. Operation errors are
// reported in the result, never as a protocol error.
func respond[T any](result T, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if je, ok := errors.As(err); ok {
		// Keep any context a caller wrapped around the error.
		msg := strings.TrimSuffix(err.Error(), je.Error()) + je.Message
		errorObj := map[string]any{
			"code":    je.Code,
			"message": msg,
			"status":  je.Status,
		}
		if hint := errors.FlattenHints(err); hint != "" {
			errorObj["hint"] = hint
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if je.Code != errors.ErrInternal && je.Details != nil {
			errorObj["details"] = je.Details
		}
		if je.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
