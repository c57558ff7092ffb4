// Package lifecycle is the application status state machine. Automated
// signals may only move an application forward or into an absorbing
// state; policy actions skip the forward-progress guard but never touch a
// terminal application; manual edits may set any status.
package lifecycle

import (
	"fmt"

	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// Source identifies who proposed a status change.
type Source string

const (
	SourceSignal Source = "signal" // detected from an email or interview
	SourcePolicy Source = "policy" // batch policy such as auto-reject-stale
	SourceManual Source = "manual" // explicit user edit
)

// Outcome is the result of evaluating a proposal.
type Outcome string

const (
	OutcomeAdvanced  Outcome = "advanced"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeBlocked   Outcome = "blocked"
)

// Proposal is a requested status change.
type Proposal struct {
	To     tracker.Status
	Source Source
	// RejectionStage overrides the recorded stage when To is rejected.
	RejectionStage tracker.Status
}

// Result describes what the engine decided.
type Result struct {
	From           tracker.Status `json:"from"`
	To             tracker.Status `json:"to"`
	Outcome        Outcome        `json:"outcome"`
	RejectionStage tracker.Status `json:"rejection_stage,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// Changed reports whether the status moved.
func (r Result) Changed() bool {
	return r.Outcome == OutcomeAdvanced
}

// absorbing are reachable by a signal from any non-terminal state.
var absorbing = []tracker.Status{
	tracker.StatusRejected,
	tracker.StatusWithdrawn,
	tracker.StatusNoResponse,
	tracker.StatusOfferAccepted,
	tracker.StatusOfferDeclined,
}

// forward lists, for each non-terminal state, the lifecycle stages a signal may advance to.
// Terminal states have no entry.
var forward = map[tracker.Status][]tracker.Status{
	tracker.StatusApplied: {
		tracker.StatusProfileViewed, tracker.StatusPhoneScreen, tracker.StatusFirstInterview,
		tracker.StatusSecondInterview, tracker.StatusThirdInterview, tracker.StatusOfferReceived,
	},
	tracker.StatusProfileViewed: {
		tracker.StatusPhoneScreen, tracker.StatusFirstInterview,
		tracker.StatusSecondInterview, tracker.StatusThirdInterview, tracker.StatusOfferReceived,
	},
	tracker.StatusPhoneScreen: {
		tracker.StatusFirstInterview, tracker.StatusSecondInterview,
		tracker.StatusThirdInterview, tracker.StatusOfferReceived,
	},
	tracker.StatusFirstInterview: {
		tracker.StatusSecondInterview, tracker.StatusThirdInterview, tracker.StatusOfferReceived,
	},
	tracker.StatusSecondInterview: {
		tracker.StatusThirdInterview, tracker.StatusOfferReceived,
	},
	tracker.StatusThirdInterview: {
		tracker.StatusOfferReceived,
	},
	tracker.StatusOfferReceived: {},
	// A reply after silence revives the application at whatever stage it signals.
	tracker.StatusNoResponse: {
		tracker.StatusPhoneScreen, tracker.StatusFirstInterview,
		tracker.StatusSecondInterview, tracker.StatusThirdInterview, tracker.StatusOfferReceived,
	},
}

// transitions is the signal transition table: from -> allowed targets.
var transitions = buildTable()

func buildTable() map[tracker.Status]map[tracker.Status]bool {
	table := make(map[tracker.Status]map[tracker.Status]bool, len(forward))
	for from, stages := range forward {
		allowed := make(map[tracker.Status]bool, len(stages)+len(absorbing))
		for _, to := range stages {
			allowed[to] = true
		}
		for _, to := range absorbing {
			if to != from {
				allowed[to] = true
			}
		}
		table[from] = allowed
	}
	return table
}

// order ranks the linear lifecycle. no_response shares the rank of profile_viewed.
var order = map[tracker.Status]int{
	tracker.StatusApplied:         1,
	tracker.StatusProfileViewed:   2,
	tracker.StatusNoResponse:      2,
	tracker.StatusPhoneScreen:     3,
	tracker.StatusFirstInterview:  4,
	tracker.StatusSecondInterview: 5,
	tracker.StatusThirdInterview:  6,
	tracker.StatusOfferReceived:   7,
	tracker.StatusOfferAccepted:   8,
	tracker.StatusOfferDeclined:   8,
}

// Rank returns the position of s on the lifecycle, or 0 for rejected and withdrawn.
func Rank(s tracker.Status) int {
	return order[s]
}

// Allowed reports whether an automated signal may move from -> to.
func Allowed(from, to tracker.Status) bool {
	return transitions[from][to]
}

// Decide evaluates p against the current status without side effects.
func Decide(from tracker.Status, p Proposal) Result {
	res := Result{From: from, To: from}

	if !p.To.Valid() {
		res.Outcome = OutcomeBlocked
		res.Reason = fmt.Sprintf("unknown status %q", p.To)
		return res
	}
	if p.To == from {
		res.Outcome = OutcomeUnchanged
		res.Reason = "already at status"
		return res
	}

	switch p.Source {
	case SourceManual:
	case SourcePolicy:
		if from.Terminal() {
			res.Outcome = OutcomeBlocked
			res.Reason = fmt.Sprintf("%s is terminal", from)
			return res
		}
	default:
		if from.Terminal() {
			res.Outcome = OutcomeBlocked
			res.Reason = fmt.Sprintf("%s is terminal", from)
			return res
		}
		if !Allowed(from, p.To) {
			res.Outcome = OutcomeBlocked
			res.Reason = fmt.Sprintf("%s would regress %s", p.To, from)
			return res
		}
	}

	res.To = p.To
	res.Outcome = OutcomeAdvanced
	if p.To == tracker.StatusRejected {
		res.RejectionStage = rejectionStage(from, p.RejectionStage)
	}
	return res
}

// rejectionStage is the explicit stage when given, otherwise the status held before rejection.
func rejectionStage(from, explicit tracker.Status) tracker.Status {
	if explicit.Valid() && explicit != tracker.StatusRejected {
		return explicit
	}
	return from
}

// Apply evaluates p and, when it advances, updates app's status and rejection stage.
// The rejection stage is cleared whenever the new status is not rejected.
func Apply(app *tracker.Application, p Proposal) Result {
	res := Decide(app.Status, p)
	if res.Changed() {
		app.Status = res.To
		app.RejectionStage = res.RejectionStage
	}
	return res
}

// StageForInterview returns the lifecycle stage reached by scheduling an interview
// of the given kind while the application is at current.
func StageForInterview(kind tracker.InterviewKind, current tracker.Status) tracker.Status {
	if kind == tracker.InterviewPhoneScreen {
		return tracker.StatusPhoneScreen
	}
	switch current {
	case tracker.StatusFirstInterview:
		return tracker.StatusSecondInterview
	case tracker.StatusSecondInterview, tracker.StatusThirdInterview:
		return tracker.StatusThirdInterview
	}
	if Rank(current) >= Rank(tracker.StatusOfferReceived) {
		return current
	}
	return tracker.StatusFirstInterview
}
