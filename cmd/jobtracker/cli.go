package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/eladdeutch/jobtracker/internal/api"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/ops"
)

// newCLIApp creates the CLI application with all commands. p may be nil
// when only help or version output is needed.
func newCLIApp(p *ops.Pipeline) *cli.App {
	app := &cli.App{
		Name:    "jobtracker",
		Usage:   "Track job applications from your inbox",
		Version: Version,
		Commands: []*cli.Command{
			scanCmd(p),
			processCmd(p),
			remindCmd(p),
			rejectStaleCmd(p),
			dedupeCmd(p),
			appsCmd(p),
			showCmd(p),
			addCmd(p),
			addBulkCmd(p),
			updateCmd(p),
			fetchPostingCmd(p),
			statusCmd(p),
			mergeCmd(p),
			deleteCmd(p),
			emailsCmd(p),
			linkCmd(p),
			dismissCmd(p),
			trackCmd(p),
			remindersCmd(p),
			reminderCmd(p),
			interviewCmd(p),
			statsCmd(p),
			reportCmd(p),
			exportCmd(p),
			serveCmd(p),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func accountFlag() cli.Flag {
	return &cli.StringFlag{Name: "account", Aliases: []string{"a"}, Usage: "Account (defaults to the configured account)"}
}

// Pipeline commands

const batchNote = "Batch runs hold a per-account lock and do not queue. While another run holds it the\n" +
	"command fails with BATCH_IN_PROGRESS; retry once that run finishes."

func scanCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:        "scan",
		Usage:       "Fetch and classify recent mailbox messages",
		Description: batchNote,
		Flags: []cli.Flag{
			accountFlag(),
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Days back to scan (default: scan_days_back)"},
			&cli.IntFlag{Name: "max", Usage: "Maximum messages to fetch (default: scan_max_results)"},
		},
		Action: func(c *cli.Context) error {
			return output(c)(p.Scan(c.Context, ops.ScanInput{
				Account:    c.String("account"),
				DaysBack:   c.Int("days"),
				MaxResults: c.Int("max"),
			}))
		},
	}
}

func processCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:        "process",
		Usage:       "Link unprocessed emails to applications and advance statuses",
		Description: batchNote,
		Flags: []cli.Flag{
			accountFlag(),
			&cli.Float64Flag{Name: "min-confidence", Usage: "Confidence threshold in [0,1] (default: min_confidence)"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum emails to process (0 = all)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.AutoProcessInput{Account: c.String("account"), Limit: c.Int("limit")}
			if c.IsSet("min-confidence") {
				v := c.Float64("min-confidence")
				input.MinConfidence = &v
			}
			return output(c)(p.AutoProcess(c.Context, input))
		},
	}
}

func remindCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:        "remind",
		Usage:       "Create follow-up reminders for idle applications",
		Description: batchNote,
		Flags: []cli.Flag{
			accountFlag(),
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Idle days before a reminder (default: inactivity_days)"},
		},
		Action: func(c *cli.Context) error {
			return output(c)(p.AutoCreateReminders(c.Context, ops.AutoRemindersInput{
				Account:        c.String("account"),
				InactivityDays: c.Int("days"),
			}))
		},
	}
}

func rejectStaleCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:        "reject-stale",
		Usage:       "Mark long-idle applications as rejected",
		Description: batchNote,
		Flags: []cli.Flag{
			accountFlag(),
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Idle days before rejection (default: stale_days)"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Report without writing"},
		},
		Action: func(c *cli.Context) error {
			return output(c)(p.AutoRejectStale(c.Context, ops.RejectStaleInput{
				Account:   c.String("account"),
				StaleDays: c.Int("days"),
				DryRun:    c.Bool("dry-run"),
			}))
		},
	}
}

func dedupeCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:        "dedupe",
		Usage:       "Merge duplicate applications",
		Description: batchNote,
		Flags: []cli.Flag{
			accountFlag(),
			&cli.BoolFlag{Name: "dry-run", Usage: "Report without writing"},
		},
		Action: func(c *cli.Context) error {
			return output(c)(p.Dedupe(c.Context, ops.DedupeInput{
				Account: c.String("account"),
				DryRun:  c.Bool("dry-run"),
			}))
		},
	}
}

// Application commands

func appsCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "apps",
		Usage: "List applications",
		Flags: []cli.Flag{
			accountFlag(),
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Comma-separated statuses, or \"active\""},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match company or position"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			return output(c)(ops.ListApplications(c.Context, p.DB, p.Cfg, ops.ListApplicationsInput{
				Account: c.String("account"),
				Status:  c.String("status"),
				Query:   c.String("query"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			}))
		},
	}
}

func showCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show an application with its emails, reminders and interviews",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			return output(c)(ops.GetApplication(c.Context, p.DB, ops.GetApplicationInput{ID: c.Args().First()}))
		},
	}
}

func addCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add an application manually",
		Flags: []cli.Flag{
			accountFlag(),
			&cli.StringFlag{Name: "company", Aliases: []string{"c"}, Required: true, Usage: "Company name"},
			&cli.StringFlag{Name: "position", Aliases: []string{"p"}, Usage: "Job title"},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Initial status (default: applied)"},
			&cli.StringFlag{Name: "applied", Usage: "Application date, YYYY-MM-DD or RFC3339 (default: now)"},
			&cli.StringFlag{Name: "notes", Usage: "Notes"},
			&cli.StringFlag{Name: "url", Usage: "Posting URL"},
			&cli.StringFlag{Name: "salary", Usage: "Salary range"},
			&cli.StringFlag{Name: "recruiter", Usage: "Recruiter contact"},
			&cli.BoolFlag{Name: "allow-duplicate", Usage: "Create even if a matching application exists"},
		},
		Action: func(c *cli.Context) error {
			appliedAt, err := ops.ParseTime("applied", c.String("applied"))
			if err != nil {
				return outputError(err)
			}
			return output(c)(ops.CreateApplication(c.Context, p.DB, p.Cfg, ops.CreateApplicationInput{
				Account:          c.String("account"),
				Company:          c.String("company"),
				Position:         c.String("position"),
				Status:           c.String("status"),
				AppliedAt:        appliedAt,
				Notes:            c.String("notes"),
				URL:              c.String("url"),
				SalaryRange:      c.String("salary"),
				RecruiterContact: c.String("recruiter"),
				AllowDuplicate:   c.Bool("allow-duplicate"),
			}))
		},
	}
}

func addBulkCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "add-bulk",
		Usage:     "Add applications from a JSON array",
		ArgsUsage: "<file|->",
		Description: "Each element takes the fields of add: company, position, status, applied_at,\n" +
			"notes, job_description, url, salary_range, recruiter_contact, allow_duplicate.\n" +
			"Items that fail are reported and the rest are still created.",
		Flags: []cli.Flag{accountFlag()},
		Action: func(c *cli.Context) error {
			var r io.Reader = c.App.Reader
			if path := c.Args().First(); path != "" && path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return outputError(errors.NewInvalidRequest("cannot read " + path + ": " + err.Error()))
				}
				defer f.Close()
				r = f
			}
			var items []ops.BulkApplication
			if err := json.NewDecoder(r).Decode(&items); err != nil {
				return outputError(errors.WithHint(
					errors.NewInvalidRequest("input is not a JSON array of applications: "+err.Error()),
					`e.g. [{"company": "Acme", "position": "SRE"}]`))
			}
			inputs, err := ops.BulkInputs(c.String("account"), items)
			if err != nil {
				return outputError(err)
			}
			return output(c)(ops.CreateApplications(c.Context, p.DB, p.Cfg, inputs))
		},
	}
}

func fetchPostingCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "fetch-posting",
		Usage:     "Download a job posting and extract its description",
		ArgsUsage: "[application-id]",
		Description: "With an application id the description is saved on that application and the\n" +
			"application's url is used unless --url is given.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Posting URL"},
		},
		Action: func(c *cli.Context) error {
			return output(c)(p.FetchPosting(c.Context, ops.FetchPostingInput{
				ApplicationID: c.Args().First(),
				URL:           c.String("url"),
			}))
		},
	}
}

func updateCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update application fields",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "company", Aliases: []string{"c"}, Usage: "Company name"},
			&cli.StringFlag{Name: "position", Aliases: []string{"p"}, Usage: "Job title"},
			&cli.StringFlag{Name: "applied", Usage: "Application date"},
			&cli.StringFlag{Name: "notes", Usage: "Notes"},
			&cli.StringFlag{Name: "description", Usage: "Job description"},
			&cli.StringFlag{Name: "url", Usage: "Posting URL"},
			&cli.StringFlag{Name: "salary", Usage: "Salary range"},
			&cli.StringFlag{Name: "recruiter", Usage: "Recruiter contact"},
			&cli.Int64Flag{Name: "version", Usage: "Expected version"},
		},
		Action: func(c *cli.Context) error {
			input := ops.UpdateApplicationInput{ID: c.Args().First(), Version: c.Int64("version")}
			for flag, dst := range map[string]**string{
				"company":     &input.Company,
				"position":    &input.Position,
				"notes":       &input.Notes,
				"description": &input.JobDescription,
				"url":         &input.URL,
				"salary":      &input.SalaryRange,
				"recruiter":   &input.RecruiterContact,
			} {
				if c.IsSet(flag) {
					v := c.String(flag)
					*dst = &v
				}
			}
			if c.IsSet("applied") {
				v, err := ops.ParseTime("applied", c.String("applied"))
				if err != nil {
					return outputError(err)
				}
				input.AppliedAt = &v
			}
			return output(c)(ops.UpdateApplication(c.Context, p.DB, p.Cfg, input))
		},
	}
}

func statusCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Set an application's status",
		ArgsUsage: "<id> <status>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "stage", Usage: "Rejection stage (only with rejected)"},
		},
		Action: func(c *cli.Context) error {
			return output(c)(ops.SetStatus(c.Context, p.DB, ops.SetStatusInput{
				ID:             c.Args().Get(0),
				Status:         c.Args().Get(1),
				RejectionStage: c.String("stage"),
			}))
		},
	}
}

func mergeCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Merge the source application into the target",
		ArgsUsage: "<source-id> <target-id>",
		Action: func(c *cli.Context) error {
			return output(c)(ops.Merge(c.Context, p.DB, ops.MergeInput{
				SourceID: c.Args().Get(0),
				TargetID: c.Args().Get(1),
			}))
		},
	}
}

func deleteCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an application",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			return output(c)(ops.DeleteApplication(c.Context, p.DB, ops.DeleteApplicationInput{ID: c.Args().First()}))
		},
	}
}

// Email commands

func emailsCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "emails",
		Usage: "List stored emails",
		Flags: []cli.Flag{
			accountFlag(),
			&cli.StringFlag{Name: "state", Aliases: []string{"s"}, Usage: "unprocessed, linked or dismissed"},
			&cli.StringFlag{Name: "app", Usage: "Only emails linked to this application"},
			&cli.BoolFlag{Name: "job-related", Usage: "Filter on the job-related flag"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListEmailsInput{
				Account:       c.String("account"),
				State:         c.String("state"),
				ApplicationID: c.String("app"),
				Limit:         c.Int("limit"),
				Offset:        c.Int("offset"),
			}
			if c.IsSet("job-related") {
				v := c.Bool("job-related")
				input.JobRelated = &v
			}
			return output(c)(ops.ListEmails(c.Context, p.DB, p.Cfg, input))
		},
	}
}

func linkCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "link",
		Usage:     "Link an email to an application",
		ArgsUsage: "<email-id> <application-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "apply-status", Usage: "Also apply the email's status signal"},
		},
		Action: func(c *cli.Context) error {
			return output(c)(ops.LinkEmail(c.Context, p.DB, ops.LinkEmailInput{
				EmailID:       c.Args().Get(0),
				ApplicationID: c.Args().Get(1),
				ApplyStatus:   c.Bool("apply-status"),
			}))
		},
	}
}

func dismissCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "dismiss",
		Usage:     "Dismiss an unprocessed email",
		ArgsUsage: "<email-id>",
		Action: func(c *cli.Context) error {
			return output(c)(ops.DismissEmail(c.Context, p.DB, ops.DismissEmailInput{EmailID: c.Args().First()}))
		},
	}
}

func trackCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:      "track",
		Usage:     "Create or find the application for an email and link it",
		ArgsUsage: "<email-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "company", Aliases: []string{"c"}, Usage: "Override the extracted company"},
			&cli.StringFlag{Name: "position", Aliases: []string{"p"}, Usage: "Override the extracted position"},
		},
		Action: func(c *cli.Context) error {
			return output(c)(ops.CreateFromEmail(c.Context, p.DB, p.Cfg, ops.CreateFromEmailInput{
				EmailID:  c.Args().First(),
				Company:  c.String("company"),
				Position: c.String("position"),
			}))
		},
	}
}

// Reminder and interview commands

func remindersCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "reminders",
		Usage: "List pending reminders that are due",
		Flags: []cli.Flag{
			accountFlag(),
			&cli.StringFlag{Name: "until", Usage: "Due on or before (default: end of today)"},
		},
		Action: func(c *cli.Context) error {
			until, err := ops.ParseTime("until", c.String("until"))
			if err != nil {
				return outputError(err)
			}
			return output(c)(ops.ListDueReminders(c.Context, p.DB, p.Cfg, ops.ListDueInput{
				Account: c.String("account"),
				Until:   until,
			}))
		},
	}
}

func reminderCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "reminder",
		Usage: "Create, complete, dismiss or snooze a reminder",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a reminder to an application",
				ArgsUsage: "<application-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "due", Usage: "Due date, YYYY-MM-DD or RFC3339"},
					&cli.IntFlag{Name: "in", Usage: "Due in N days"},
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Reminder text"},
				},
				Action: func(c *cli.Context) error {
					due, err := ops.ParseTime("due", c.String("due"))
					if err != nil {
						return outputError(err)
					}
					return output(c)(ops.CreateReminder(c.Context, p.DB, ops.CreateReminderInput{
						ApplicationID: c.Args().First(),
						DueAt:         due,
						DueInDays:     c.Int("in"),
						Message:       c.String("message"),
					}))
				},
			},
			{
				Name:      "done",
				Usage:     "Mark a reminder done",
				ArgsUsage: "<reminder-id>",
				Action: func(c *cli.Context) error {
					return output(c)(ops.CompleteReminder(c.Context, p.DB, ops.ReminderInput{ID: c.Args().First()}))
				},
			},
			{
				Name:      "dismiss",
				Usage:     "Dismiss a reminder",
				ArgsUsage: "<reminder-id>",
				Action: func(c *cli.Context) error {
					return output(c)(ops.DismissReminder(c.Context, p.DB, ops.ReminderInput{ID: c.Args().First()}))
				},
			},
			{
				Name:      "snooze",
				Usage:     "Postpone a reminder",
				ArgsUsage: "<reminder-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Value: 1, Usage: "Days to postpone"},
				},
				Action: func(c *cli.Context) error {
					return output(c)(ops.SnoozeReminder(c.Context, p.DB, ops.SnoozeReminderInput{
						ID:   c.Args().First(),
						Days: c.Int("days"),
					}))
				},
			},
		},
	}
}

func interviewCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "interview",
		Usage: "Schedule, list and record interviews",
		Subcommands: []*cli.Command{
			{
				Name:      "schedule",
				Usage:     "Schedule an interview",
				ArgsUsage: "<application-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "at", Required: true, Usage: "When, YYYY-MM-DD or RFC3339"},
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "phone_screen, technical, behavioral, onsite, final or other"},
					&cli.StringFlag{Name: "location", Usage: "Place or meeting link"},
					&cli.StringFlag{Name: "interviewer", Usage: "Interviewer name"},
					&cli.StringFlag{Name: "notes", Usage: "Notes"},
				},
				Action: func(c *cli.Context) error {
					at, err := ops.ParseTime("at", c.String("at"))
					if err != nil {
						return outputError(err)
					}
					return output(c)(ops.ScheduleInterview(c.Context, p.DB, ops.ScheduleInterviewInput{
						ApplicationID: c.Args().First(),
						Kind:          c.String("kind"),
						ScheduledAt:   at,
						Location:      c.String("location"),
						Interviewer:   c.String("interviewer"),
						Notes:         c.String("notes"),
					}))
				},
			},
			{
				Name:      "complete",
				Usage:     "Record an interview outcome",
				ArgsUsage: "<interview-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "outcome", Required: true, Usage: "passed, failed or cancelled"},
					&cli.StringFlag{Name: "notes", Usage: "Notes"},
				},
				Action: func(c *cli.Context) error {
					return output(c)(ops.CompleteInterview(c.Context, p.DB, ops.CompleteInterviewInput{
						ID:      c.Args().First(),
						Outcome: c.String("outcome"),
						Notes:   c.String("notes"),
					}))
				},
			},
			{
				Name:      "list",
				Usage:     "List an application's interviews",
				ArgsUsage: "<application-id>",
				Action: func(c *cli.Context) error {
					return output(c)(ops.ListInterviews(c.Context, p.DB, ops.ListInterviewsInput{ApplicationID: c.Args().First()}))
				},
			},
			{
				Name:      "show",
				Usage:     "Show one interview",
				ArgsUsage: "<interview-id>",
				Action: func(c *cli.Context) error {
					return output(c)(ops.GetInterview(c.Context, p.DB, ops.GetInterviewInput{ID: c.Args().First()}))
				},
			},
			{
				Name:  "upcoming",
				Usage: "List pending interviews that have not started yet",
				Flags: []cli.Flag{
					accountFlag(),
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: ops.DefaultUpcomingLimit, Usage: "Maximum interviews"},
				},
				Action: func(c *cli.Context) error {
					return output(c)(ops.UpcomingInterviews(c.Context, p.DB, p.Cfg, ops.UpcomingInterviewsInput{
						Account: c.String("account"),
						Limit:   c.Int("limit"),
					}))
				},
			},
			{
				Name:      "update",
				Usage:     "Reschedule or edit an interview",
				ArgsUsage: "<interview-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "at", Usage: "When, YYYY-MM-DD or RFC3339"},
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "phone_screen, technical, behavioral, onsite, final or other"},
					&cli.StringFlag{Name: "location", Usage: "Place or meeting link"},
					&cli.StringFlag{Name: "interviewer", Usage: "Interviewer name"},
					&cli.StringFlag{Name: "notes", Usage: "Notes"},
				},
				Action: func(c *cli.Context) error {
					input := ops.UpdateInterviewInput{ID: c.Args().First()}
					for flag, dst := range map[string]**string{
						"kind":        &input.Kind,
						"location":    &input.Location,
						"interviewer": &input.Interviewer,
						"notes":       &input.Notes,
					} {
						if c.IsSet(flag) {
							v := c.String(flag)
							*dst = &v
						}
					}
					if c.IsSet("at") {
						at, err := ops.ParseTime("at", c.String("at"))
						if err != nil {
							return outputError(err)
						}
						input.ScheduledAt = &at
					}
					return output(c)(ops.UpdateInterview(c.Context, p.DB, input))
				},
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a pending interview",
				ArgsUsage: "<interview-id>",
				Action: func(c *cli.Context) error {
					return output(c)(ops.CancelInterview(c.Context, p.DB, ops.CancelInterviewInput{ID: c.Args().First()}))
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an interview",
				ArgsUsage: "<interview-id>",
				Action: func(c *cli.Context) error {
					return output(c)(ops.DeleteInterview(c.Context, p.DB, ops.DeleteInterviewInput{ID: c.Args().First()}))
				},
			},
		},
	}
}

// Reporting commands

func statsCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show pipeline statistics",
		Flags: []cli.Flag{accountFlag()},
		Action: func(c *cli.Context) error {
			return output(c)(ops.Stats(c.Context, p.DB, p.Cfg, ops.StatsInput{Account: c.String("account")}))
		},
	}
}

func reportCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Print a summary report (markdown or html)",
		Flags: []cli.Flag{
			accountFlag(),
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "markdown", Usage: "markdown or html"},
			&cli.IntFlag{Name: "recent", Usage: "Recently updated applications listed"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.Report(c.Context, p.DB, p.Cfg, ops.ReportInput{
				Account: c.String("account"),
				Format:  c.String("format"),
				Recent:  c.Int("recent"),
			})
			if err != nil {
				return outputError(err)
			}
			_, err = io.WriteString(c.App.Writer, out.Content)
			return err
		},
	}
}

func exportCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export applications to JSONL or XLSX",
		Flags: []cli.Flag{
			accountFlag(),
			&cli.StringFlag{Name: "path", Usage: "Output file (.jsonl or .xlsx)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "jsonl or xlsx (inferred from path)"},
		},
		Action: func(c *cli.Context) error {
			return output(c)(ops.Export(c.Context, p.DB, p.Cfg, ops.ExportInput{
				Account: c.String("account"),
				Path:    c.String("path"),
				Format:  c.String("format"),
			}))
		},
	}
}

func serveCmd(p *ops.Pipeline) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API and /metrics over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default: http.bind)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (default: http.port)"},
		},
		Action: func(c *cli.Context) error {
			bind, port := p.Cfg.HTTP.Bind, p.Cfg.HTTP.Port
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			if c.IsSet("port") {
				port = c.Int("port")
			}
			return api.Run(api.NewServer(p, Version, bind, port), p.Log)
		},
	}
}

// Helper functions

// output returns a function that prints an operation's result as JSON, or
// its error. It lets actions pass an ops call's two results straight through.
func output(c *cli.Context) func(any, error) error {
	return func(v any, err error) error {
		if err != nil {
			return outputError(err)
		}
		return outputJSON(c.App.Writer, v)
	}
}

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	msg := err.Error()
	if je, ok := errors.As(err); ok {
		msg = fmt.Sprintf("[%s] %s", je.Code, je.Message)
	}
	if hint := errors.FlattenHints(err); hint != "" {
		msg += "\nhint: " + hint
	}
	return cli.Exit(msg, 1)
}
