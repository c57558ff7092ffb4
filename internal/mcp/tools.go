package mcp

import "github.com/mark3labs/mcp-go/mcp"

const (
	accountDesc = "Account to operate on. Defaults to the configured account."
	timeDesc    = "RFC3339 timestamp or YYYY-MM-DD date."

	// batchNote is appended to every pipeline tool description.
	batchNote = " Runs hold a per-account lock and do not queue: an overlapping run fails with BATCH_IN_PROGRESS and should be retried after the running one finishes."
)

// Pipeline tools

var scanToolDef = mcp.NewTool("pipeline_scan",
	mcp.WithDescription("Fetch recent messages from the mailbox, classify them and store the job-related ones as unprocessed emails. Rescanning is idempotent."+batchNote),
	mcp.WithString("account", mcp.Description(accountDesc)),
	mcp.WithNumber("days_back", mcp.Description("How far back to look. Defaults to scan_days_back.")),
	mcp.WithNumber("max_results", mcp.Description("Maximum messages fetched. Defaults to scan_max_results.")),
)

var autoProcessToolDef = mcp.NewTool("pipeline_auto_process",
	mcp.WithDescription("Link unprocessed emails at or above the confidence threshold to applications, creating applications and advancing statuses. Status never moves backwards."+batchNote),
	mcp.WithString("account", mcp.Description(accountDesc)),
	mcp.WithNumber("min_confidence", mcp.Description("Threshold in [0,1]. Defaults to min_confidence.")),
	mcp.WithNumber("limit", mcp.Description("Maximum emails processed. 0 processes all.")),
)

var autoRemindersToolDef = mcp.NewTool("pipeline_auto_reminders",
	mcp.WithDescription("Create a follow-up reminder for every open application idle longer than the inactivity window that has no pending reminder."+batchNote),
	mcp.WithString("account", mcp.Description(accountDesc)),
	mcp.WithNumber("inactivity_days", mcp.Description("Idle days before a reminder. Defaults to inactivity_days.")),
)

var rejectStaleToolDef = mcp.NewTool("pipeline_reject_stale",
	mcp.WithDescription("Mark open applications untouched for longer than the stale window as rejected, keeping the stage they reached."+batchNote),
	mcp.WithString("account", mcp.Description(accountDesc)),
	mcp.WithNumber("stale_days", mcp.Description("Idle days before rejection. Defaults to stale_days.")),
	mcp.WithBoolean("dry_run", mcp.Description("Report what would change without writing.")),
)

var dedupeToolDef = mcp.NewTool("pipeline_dedupe",
	mcp.WithDescription("Merge applications that refer to the same job at the same company. Emails, reminders and interviews move to the survivor."+batchNote),
	mcp.WithString("account", mcp.Description(accountDesc)),
	mcp.WithBoolean("dry_run", mcp.Description("Report what would merge without writing.")),
)

// Application tools

var createApplicationToolDef = mcp.NewTool("application_create",
	mcp.WithDescription("Create an application manually. Fails with CONFLICT when one already exists for the same company and position."),
	mcp.WithString("company", mcp.Required(), mcp.Description("Company name.")),
	mcp.WithString("position", mcp.Description("Job title.")),
	mcp.WithString("status", mcp.Description("Initial status. Defaults to applied.")),
	mcp.WithString("applied_at", mcp.Description(timeDesc+" Defaults to now.")),
	mcp.WithString("notes", mcp.Description("Free-form notes.")),
	mcp.WithString("job_description", mcp.Description("Job description text.")),
	mcp.WithString("url", mcp.Description("Posting URL.")),
	mcp.WithString("salary_range", mcp.Description("Salary range.")),
	mcp.WithString("recruiter_contact", mcp.Description("Recruiter name or address.")),
	mcp.WithBoolean("allow_duplicate", mcp.Description("Create even when a matching application exists.")),
	mcp.WithString("account", mcp.Description(accountDesc)),
)

var bulkCreateApplicationsToolDef = mcp.NewTool("application_bulk_create",
	mcp.WithDescription("Create several applications at once. Each item takes the application_create fields; items that fail are reported by index and the rest are still created."),
	mcp.WithArray("applications", mcp.Required(),
		mcp.Description("Objects with company (required), position, status, applied_at, notes, job_description, url, salary_range, recruiter_contact, allow_duplicate."),
		mcp.Items(map[string]any{"type": "object"})),
	mcp.WithString("account", mcp.Description(accountDesc)),
)

var fetchPostingToolDef = mcp.NewTool("application_fetch_posting",
	mcp.WithDescription("Download a job posting page and extract its title, company and description. With application_id the description is saved on that application."),
	mcp.WithString("url", mcp.Description("Posting URL. Defaults to the application's url.")),
	mcp.WithString("application_id", mcp.Description("Application that receives the description.")),
)

var getApplicationToolDef = mcp.NewTool("application_get",
	mcp.WithDescription("Get an application with its linked emails, reminders and interviews."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Application ID.")),
)

var listApplicationsToolDef = mcp.NewTool("application_list",
	mcp.WithDescription("List applications, most recently updated first."),
	mcp.WithString("status", mcp.Description("Comma-separated statuses, or \"active\" for every non-terminal status.")),
	mcp.WithString("query", mcp.Description("Case-insensitive match on company or position.")),
	mcp.WithNumber("limit", mcp.Description("Page size. Default 20, max 100.")),
	mcp.WithNumber("offset", mcp.Description("Page offset.")),
	mcp.WithString("account", mcp.Description(accountDesc)),
)

var updateApplicationToolDef = mcp.NewTool("application_update",
	mcp.WithDescription("Update application fields. Changing company or position to match another application merges the two."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Application ID.")),
	mcp.WithString("company", mcp.Description("New company name.")),
	mcp.WithString("position", mcp.Description("New job title.")),
	mcp.WithString("applied_at", mcp.Description(timeDesc)),
	mcp.WithString("notes", mcp.Description("Replaces the notes.")),
	mcp.WithString("job_description", mcp.Description("Replaces the job description.")),
	mcp.WithString("url", mcp.Description("Replaces the posting URL.")),
	mcp.WithString("salary_range", mcp.Description("Replaces the salary range.")),
	mcp.WithString("recruiter_contact", mcp.Description("Replaces the recruiter contact.")),
	mcp.WithNumber("version", mcp.Description("Expected version. The update fails with STORE_CONFLICT if the record changed.")),
)

var setStatusToolDef = mcp.NewTool("application_set_status",
	mcp.WithDescription("Set an application's status by hand. Manual changes may move backwards; rejected records the stage reached."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Application ID.")),
	mcp.WithString("status", mcp.Required(), mcp.Description("New status.")),
	mcp.WithString("rejection_stage", mcp.Description("Stage at rejection. Only with status rejected; defaults to the current status.")),
)

var mergeApplicationToolDef = mcp.NewTool("application_merge",
	mcp.WithDescription("Merge source into target. Everything the source owns moves to the target and the source is deleted."),
	mcp.WithString("source_id", mcp.Required(), mcp.Description("Application absorbed and deleted.")),
	mcp.WithString("target_id", mcp.Required(), mcp.Description("Application that survives.")),
)

var deleteApplicationToolDef = mcp.NewTool("application_delete",
	mcp.WithDescription("Delete an application. Its emails return to the unprocessed queue; its reminders and interviews are deleted."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Application ID.")),
)

var exportToolDef = mcp.NewTool("application_export",
	mcp.WithDescription("Export every application to a JSONL or XLSX file."),
	mcp.WithString("path", mcp.Description("Output path ending in .jsonl or .xlsx. Defaults to the exports directory.")),
	mcp.WithString("format", mcp.Description("jsonl or xlsx. Inferred from path when omitted.")),
	mcp.WithString("account", mcp.Description(accountDesc)),
)

// Email tools

var listEmailsToolDef = mcp.NewTool("email_list",
	mcp.WithDescription("List stored emails, newest first."),
	mcp.WithString("state", mcp.Description("unprocessed, linked or dismissed.")),
	mcp.WithString("application_id", mcp.Description("Only emails linked to this application.")),
	mcp.WithBoolean("job_related", mcp.Description("Filter on the job-related flag.")),
	mcp.WithNumber("limit", mcp.Description("Page size. Default 20, max 100.")),
	mcp.WithNumber("offset", mcp.Description("Page offset.")),
	mcp.WithString("account", mcp.Description(accountDesc)),
)

var getEmailToolDef = mcp.NewTool("email_get",
	mcp.WithDescription("Get a stored email with its classification and evidence."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Email (mailbox message) ID.")),
)

var linkEmailToolDef = mcp.NewTool("email_link",
	mcp.WithDescription("Link an email to an application by hand."),
	mcp.WithString("email_id", mcp.Required(), mcp.Description("Email ID.")),
	mcp.WithString("application_id", mcp.Required(), mcp.Description("Application ID.")),
	mcp.WithBoolean("apply_status", mcp.Description("Also propose the email's status signal to the application.")),
)

var dismissEmailToolDef = mcp.NewTool("email_dismiss",
	mcp.WithDescription("Dismiss an unprocessed email so it is never auto-processed."),
	mcp.WithString("email_id", mcp.Required(), mcp.Description("Email ID.")),
)

var createFromEmailToolDef = mcp.NewTool("email_create_application",
	mcp.WithDescription("Create or find the application for an email and link it."),
	mcp.WithString("email_id", mcp.Required(), mcp.Description("Email ID.")),
	mcp.WithString("company", mcp.Description("Overrides the extracted company.")),
	mcp.WithString("position", mcp.Description("Overrides the extracted position.")),
)

// Reminder tools

var createReminderToolDef = mcp.NewTool("reminder_create",
	mcp.WithDescription("Create a reminder for an application. An application holds at most one pending reminder."),
	mcp.WithString("application_id", mcp.Required(), mcp.Description("Application ID.")),
	mcp.WithString("due_at", mcp.Description(timeDesc+" Wins over due_in_days.")),
	mcp.WithNumber("due_in_days", mcp.Description("Days from now.")),
	mcp.WithString("message", mcp.Description("Reminder text.")),
)

var listDueRemindersToolDef = mcp.NewTool("reminder_list_due",
	mcp.WithDescription("List pending reminders due on or before a time, oldest first."),
	mcp.WithString("until", mcp.Description(timeDesc+" Defaults to the end of today.")),
	mcp.WithString("account", mcp.Description(accountDesc)),
)

var completeReminderToolDef = mcp.NewTool("reminder_complete",
	mcp.WithDescription("Mark a pending reminder done."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID.")),
)

var dismissReminderToolDef = mcp.NewTool("reminder_dismiss",
	mcp.WithDescription("Dismiss a pending reminder."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID.")),
)

var snoozeReminderToolDef = mcp.NewTool("reminder_snooze",
	mcp.WithDescription("Push a pending reminder's due date back."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID.")),
	mcp.WithNumber("days", mcp.Description("Days to postpone. Default 1.")),
)

// Interview tools

var scheduleInterviewToolDef = mcp.NewTool("interview_schedule",
	mcp.WithDescription("Schedule an interview. The application advances to the matching stage when that is forward progress."),
	mcp.WithString("application_id", mcp.Required(), mcp.Description("Application ID.")),
	mcp.WithString("scheduled_at", mcp.Required(), mcp.Description(timeDesc)),
	mcp.WithString("kind", mcp.Description("phone_screen, technical, behavioral, onsite, final or other.")),
	mcp.WithString("location", mcp.Description("Place or meeting link.")),
	mcp.WithString("interviewer", mcp.Description("Interviewer name.")),
	mcp.WithString("notes", mcp.Description("Preparation notes.")),
)

var completeInterviewToolDef = mcp.NewTool("interview_complete",
	mcp.WithDescription("Record an interview outcome."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Interview ID.")),
	mcp.WithString("outcome", mcp.Required(), mcp.Description("passed, failed or cancelled.")),
	mcp.WithString("notes", mcp.Description("Replaces the notes when given.")),
)

var listInterviewsToolDef = mcp.NewTool("interview_list",
	mcp.WithDescription("List an application's interviews in schedule order."),
	mcp.WithString("application_id", mcp.Required(), mcp.Description("Application ID.")),
)

var getInterviewToolDef = mcp.NewTool("interview_get",
	mcp.WithDescription("Get one interview."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Interview ID.")),
)

var upcomingInterviewsToolDef = mcp.NewTool("interview_upcoming",
	mcp.WithDescription("Pending interviews that have not started yet across all applications, soonest first, with each application's company and status."),
	mcp.WithNumber("limit", mcp.Description("Maximum interviews. Default 10, max 100.")),
	mcp.WithString("account", mcp.Description(accountDesc)),
)

var updateInterviewToolDef = mcp.NewTool("interview_update",
	mcp.WithDescription("Reschedule or edit an interview. Omitted fields are unchanged. A later-round kind may move the application forward; it never moves back."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Interview ID.")),
	mcp.WithString("scheduled_at", mcp.Description(timeDesc)),
	mcp.WithString("kind", mcp.Description("phone_screen, technical, behavioral, onsite, final or other.")),
	mcp.WithString("location", mcp.Description("Place or meeting link.")),
	mcp.WithString("interviewer", mcp.Description("Interviewer name.")),
	mcp.WithString("notes", mcp.Description("Preparation or follow-up notes.")),
)

var cancelInterviewToolDef = mcp.NewTool("interview_cancel",
	mcp.WithDescription("Cancel a pending interview. Fails with CONFLICT when it already has an outcome."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Interview ID.")),
)

var deleteInterviewToolDef = mcp.NewTool("interview_delete",
	mcp.WithDescription("Delete an interview. The application keeps the stage it reached."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Interview ID.")),
)

// Stats tools

var statsToolDef = mcp.NewTool("stats_summary",
	mcp.WithDescription("Counts by status, rejection stage breakdown, response rate and stage funnel."),
	mcp.WithString("account", mcp.Description(accountDesc)),
)

var reportToolDef = mcp.NewTool("stats_report",
	mcp.WithDescription("Render a summary report with stats, recent applications and due reminders."),
	mcp.WithString("format", mcp.Description("markdown (default) or html.")),
	mcp.WithNumber("recent", mcp.Description("Recently updated applications listed. Default 10.")),
	mcp.WithString("account", mcp.Description(accountDesc)),
)
