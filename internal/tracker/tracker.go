// Package tracker defines the job-search domain records shared by the
// classification pipeline, the store and the trigger surfaces.
package tracker

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Application is one job application. It is the root entity; emails,
// reminders and interviews refer to it by ID.
type Application struct {
	ID               string `json:"id"`
	Account          string `json:"account"`
	Company          string `json:"company"`
	Position         string `json:"position"`
	CompanyKey       string `json:"company_key"`
	PositionKey      string `json:"position_key"`
	Status           Status `json:"status"`
	RejectionStage   Status `json:"rejection_stage,omitempty"` // set only while Status == rejected
	AppliedAt        int64  `json:"applied_at"`
	Notes            string `json:"notes,omitempty"`
	JobDescription   string `json:"job_description,omitempty"`
	URL              string `json:"url,omitempty"`
	SalaryRange      string `json:"salary_range,omitempty"`
	RecruiterContact string `json:"recruiter_contact,omitempty"`
	Version          int64  `json:"version"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
}

// EmailState is the processing state of a scanned message.
type EmailState string

const (
	EmailUnprocessed EmailState = "unprocessed"
	EmailLinked      EmailState = "linked"
	EmailDismissed   EmailState = "dismissed"
)

// Valid reports whether s is a known email state.
func (s EmailState) Valid() bool {
	switch s {
	case EmailUnprocessed, EmailLinked, EmailDismissed:
		return true
	}
	return false
}

// Evidence is one rule hit recorded by the extractor.
type Evidence struct {
	Rule     string  `json:"rule"`
	Category string  `json:"category"`
	Field    string  `json:"field,omitempty"`
	Value    string  `json:"value,omitempty"`
	Snippet  string  `json:"snippet,omitempty"`
	Weight   float64 `json:"weight"`
}

// EmailRecord is one scanned mailbox message. ID is the mailbox message id.
type EmailRecord struct {
	ID             string     `json:"id"`
	Account        string     `json:"account"`
	Sender         string     `json:"sender"`
	Subject        string     `json:"subject"`
	Snippet        string     `json:"snippet,omitempty"`
	ReceivedAt     int64      `json:"received_at"`
	Company        string     `json:"company,omitempty"`
	Position       string     `json:"position,omitempty"`
	StatusSignal   Status     `json:"status_signal,omitempty"`
	RejectionStage Status     `json:"rejection_stage,omitempty"`
	JobRelated     bool       `json:"job_related"`
	Confidence     float64    `json:"confidence"`
	Evidence       []Evidence `json:"evidence,omitempty"`
	State          EmailState `json:"state"`
	ApplicationID  string     `json:"application_id,omitempty"`
	CreatedAt      int64      `json:"created_at"`
	UpdatedAt      int64      `json:"updated_at"`
}

// ReminderState is the completion state of a Reminder.
type ReminderState string

const (
	ReminderPending   ReminderState = "pending"
	ReminderCompleted ReminderState = "completed"
	ReminderDismissed ReminderState = "dismissed"
)

// Reminder is a follow-up nudge tied to one Application.
type Reminder struct {
	ID            string        `json:"id"`
	ApplicationID string        `json:"application_id"`
	DueAt         int64         `json:"due_at"`
	Message       string        `json:"message"`
	State         ReminderState `json:"state"`
	Auto          bool          `json:"auto"`
	CreatedAt     int64         `json:"created_at"`
	UpdatedAt     int64         `json:"updated_at"`
	CompletedAt   int64         `json:"completed_at,omitempty"`
}

// InterviewKind is the type of an interview round.
type InterviewKind string

const (
	InterviewPhoneScreen InterviewKind = "phone_screen"
	InterviewTechnical   InterviewKind = "technical"
	InterviewBehavioral  InterviewKind = "behavioral"
	InterviewOnsite      InterviewKind = "onsite"
	InterviewFinal       InterviewKind = "final"
	InterviewOther       InterviewKind = "other"
)

// Valid reports whether k is a known interview kind.
func (k InterviewKind) Valid() bool {
	switch k {
	case InterviewPhoneScreen, InterviewTechnical, InterviewBehavioral,
		InterviewOnsite, InterviewFinal, InterviewOther:
		return true
	}
	return false
}

// InterviewOutcome is the recorded result of an interview.
type InterviewOutcome string

const (
	OutcomePending   InterviewOutcome = "pending"
	OutcomePassed    InterviewOutcome = "passed"
	OutcomeFailed    InterviewOutcome = "failed"
	OutcomeCancelled InterviewOutcome = "cancelled"
)

// Valid reports whether o is a known interview outcome.
func (o InterviewOutcome) Valid() bool {
	switch o {
	case OutcomePending, OutcomePassed, OutcomeFailed, OutcomeCancelled:
		return true
	}
	return false
}

// Interview is a scheduled round for one Application.
type Interview struct {
	ID            string           `json:"id"`
	ApplicationID string           `json:"application_id"`
	Kind          InterviewKind    `json:"kind"`
	ScheduledAt   int64            `json:"scheduled_at"`
	Location      string           `json:"location,omitempty"`
	Interviewer   string           `json:"interviewer,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	Outcome       InterviewOutcome `json:"outcome"`
	CreatedAt     int64            `json:"created_at"`
	UpdatedAt     int64            `json:"updated_at"`
}

// Message is one raw mailbox message.
type Message struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewID returns a new ULID string.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
