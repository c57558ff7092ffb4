package tracker

import (
	"strings"

	"github.com/eladdeutch/jobtracker/internal/errors"
)

// Status is the lifecycle state of an Application.
type Status string

const (
	StatusApplied         Status = "applied"
	StatusProfileViewed   Status = "profile_viewed"
	StatusPhoneScreen     Status = "phone_screen"
	StatusFirstInterview  Status = "first_interview"
	StatusSecondInterview Status = "second_interview"
	StatusThirdInterview  Status = "third_interview"
	StatusOfferReceived   Status = "offer_received"
	StatusOfferAccepted   Status = "offer_accepted"
	StatusOfferDeclined   Status = "offer_declined"
	StatusRejected        Status = "rejected"
	StatusWithdrawn       Status = "withdrawn"
	StatusNoResponse      Status = "no_response"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusApplied,
	StatusProfileViewed,
	StatusPhoneScreen,
	StatusFirstInterview,
	StatusSecondInterview,
	StatusThirdInterview,
	StatusOfferReceived,
	StatusOfferAccepted,
	StatusOfferDeclined,
	StatusRejected,
	StatusWithdrawn,
	StatusNoResponse,
}

var statusLabels = map[Status]string{
	StatusApplied:         "Applied",
	StatusProfileViewed:   "Profile Viewed",
	StatusPhoneScreen:     "Phone Screen",
	StatusFirstInterview:  "1st Interview",
	StatusSecondInterview: "2nd Interview",
	StatusThirdInterview:  "3rd Interview",
	StatusOfferReceived:   "Offer Received",
	StatusOfferAccepted:   "Offer Accepted",
	StatusOfferDeclined:   "Offer Declined",
	StatusRejected:        "Rejected",
	StatusWithdrawn:       "Withdrawn",
	StatusNoResponse:      "No Response",
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human-readable name.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Terminal reports whether no automated transition may leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusWithdrawn, StatusOfferAccepted, StatusOfferDeclined:
		return true
	}
	return false
}

// ParseStatus accepts a status name or its label ("Phone Screen", "phone-screen").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	st := Status(norm)
	if st.Valid() {
		return st, nil
	}
	for k, label := range statusLabels {
		if strings.EqualFold(label, strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", errors.NewInvalidRequest("unknown status: " + s)
}
