package tracker

import (
	"testing"

	"github.com/eladdeutch/jobtracker/internal/errors"
)

func TestCompanyKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Acme Corp", "acme"},
		{"ACME, Inc.", "acme"},
		{"  acme   corporation ", "acme"},
		{"Acme Co LLC", "acme"},
		{"Johnson & Johnson", "johnson and johnson"},
		{"Company", "company"},
		{"Stripe", "stripe"},
		{"Deutsche Bank AG", "deutsche bank"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CompanyKey(tt.input); got != tt.expected {
				t.Errorf("CompanyKey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPositionKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Backend Engineer", "backend engineer"},
		{"Sr. Backend Engineer", "senior backend engineer"},
		{"Back-End  Engineer (Remote)", "back end engineer remote"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := PositionKey(tt.input); got != tt.expected {
				t.Errorf("PositionKey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	if got := Clean("  Acme \t Corp  "); got != "Acme Corp" {
		t.Errorf("Clean() = %q, want %q", got, "Acme Corp")
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"applied", StatusApplied, false},
		{"Phone Screen", StatusPhoneScreen, false},
		{"phone-screen", StatusPhoneScreen, false},
		{"1st Interview", StatusFirstInterview, false},
		{" REJECTED ", StatusRejected, false},
		{"ghosted", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidRequest) {
					t.Fatalf("ParseStatus(%q) error = %v, want INVALID_REQUEST", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusRejected:      true,
		StatusWithdrawn:     true,
		StatusOfferAccepted: true,
		StatusOfferDeclined: true,
	}
	for _, s := range Statuses {
		if s.Terminal() != terminal[s] {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), terminal[s])
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	a, err := NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	b, err := NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if a == b {
		t.Errorf("NewID() returned duplicate %q", a)
	}
	if len(a) != 26 {
		t.Errorf("len(NewID()) = %d, want 26", len(a))
	}
}
