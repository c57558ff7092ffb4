package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/eladdeutch/jobtracker/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"pipeline", "application", "email", "reminder", "interview", "stats"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"pipeline_scan": {
		def:     scanToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScan },
	},
	"pipeline_auto_process": {
		def:     autoProcessToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAutoProcess },
	},
	"pipeline_auto_reminders": {
		def:     autoRemindersToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAutoReminders },
	},
	"pipeline_reject_stale": {
		def:     rejectStaleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRejectStale },
	},
	"pipeline_dedupe": {
		def:     dedupeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDedupe },
	},
	"application_create": {
		def:     createApplicationToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateApplication },
	},
	"application_bulk_create": {
		def:     bulkCreateApplicationsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBulkCreateApplications },
	},
	"application_fetch_posting": {
		def:     fetchPostingToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetchPosting },
	},
	"application_get": {
		def:     getApplicationToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetApplication },
	},
	"application_list": {
		def:     listApplicationsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListApplications },
	},
	"application_update": {
		def:     updateApplicationToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdateApplication },
	},
	"application_set_status": {
		def:     setStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetStatus },
	},
	"application_merge": {
		def:     mergeApplicationToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMerge },
	},
	"application_delete": {
		def:     deleteApplicationToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeleteApplication },
	},
	"application_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"email_list": {
		def:     listEmailsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListEmails },
	},
	"email_get": {
		def:     getEmailToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetEmail },
	},
	"email_link": {
		def:     linkEmailToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLinkEmail },
	},
	"email_dismiss": {
		def:     dismissEmailToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDismissEmail },
	},
	"email_create_application": {
		def:     createFromEmailToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateFromEmail },
	},
	"reminder_create": {
		def:     createReminderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateReminder },
	},
	"reminder_list_due": {
		def:     listDueRemindersToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListDueReminders },
	},
	"reminder_complete": {
		def:     completeReminderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCompleteReminder },
	},
	"reminder_dismiss": {
		def:     dismissReminderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDismissReminder },
	},
	"reminder_snooze": {
		def:     snoozeReminderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnoozeReminder },
	},
	"interview_schedule": {
		def:     scheduleInterviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScheduleInterview },
	},
	"interview_complete": {
		def:     completeInterviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCompleteInterview },
	},
	"interview_list": {
		def:     listInterviewsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListInterviews },
	},
	"interview_get": {
		def:     getInterviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetInterview },
	},
	"interview_upcoming": {
		def:     upcomingInterviewsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpcomingInterviews },
	},
	"interview_update": {
		def:     updateInterviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdateInterview },
	},
	"interview_cancel": {
		def:     cancelInterviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCancelInterview },
	},
	"interview_delete": {
		def:     deleteInterviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeleteInterview },
	},
	"stats_summary": {
		def:     statsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStats },
	},
	"stats_report": {
		def:     reportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "pipeline_scan" → "pipeline").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	// Build set of types for O(1) lookup
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	// Collect tools belonging to disabled types
	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates an MCP server exposing the jobtracker tools over p.
// Tools listed in DisabledTools or belonging to DisabledTypes are not
// registered.
func NewServer(p *ops.Pipeline, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"jobtracker",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(p)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(p.Cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range p.Cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves the MCP tools over stdio until stdin closes.
func Run(p *ops.Pipeline, version string) error {
	return server.ServeStdio(NewServer(p, version))
}
