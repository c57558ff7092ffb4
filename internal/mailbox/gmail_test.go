package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/errors"
)

// fakeGmail serves the two Gmail endpoints the mailbox uses.
type fakeGmail struct {
	messages  map[string]string // id -> JSON body
	order     []string
	listQuery atomic.Value
	failGets  atomic.Int32 // number of 503s to return before succeeding
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	const prefix = "/gmail/v1/users/me/messages"
	switch {
	case r.URL.Path == prefix:
		f.listQuery.Store(r.URL.Query().Get("q"))
		var refs []string
		for _, id := range f.order {
			refs = append(refs, fmt.Sprintf(`{"id":%q,"threadId":%q}`, id, id))
		}
		fmt.Fprintf(w, `{"messages":[%s],"resultSizeEstimate":%d}`, strings.Join(refs, ","), len(refs))
	case strings.HasPrefix(r.URL.Path, prefix+"/"):
		if f.failGets.Load() > 0 {
			f.failGets.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"code":503,"message":"backend error"}}`)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, prefix+"/")
		body, ok := f.messages[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":404,"message":"not found"}}`)
			return
		}
		fmt.Fprint(w, body)
	default:
		http.NotFound(w, r)
	}
}

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func plainMessage(id string, at time.Time, from, subject, body string) string {
	return fmt.Sprintf(`{
  "id": %q,
  "internalDate": "%d",
  "snippet": "snippet",
  "payload": {
    "mimeType": "multipart/alternative",
    "headers": [{"name": "From", "value": %q}, {"name": "Subject", "value": %q}],
    "parts": [
      {"mimeType": "text/html", "body": {"data": %q}},
      {"mimeType": "text/plain", "body": {"data": %q}}
    ]
  }
}`, id, at.UnixMilli(), from, subject, b64("<p>html</p>"), b64(body))
}

func newTestGmail(t *testing.T, fake *fakeGmail) *Gmail {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	g, err := NewGmail(context.Background(),
		config.GmailConfig{User: "me", Query: "category:primary"},
		zap.NewNop(),
		WithHTTPClient(srv.Client()),
		WithClientOptions(option.WithEndpoint(srv.URL+"/")),
		WithRetry(RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
	)
	if err != nil {
		t.Fatalf("NewGmail() error = %v", err)
	}
	return g
}

func TestGmail_Fetch(t *testing.T) {
	fake := &fakeGmail{
		order: []string{"m2", "gone", "m1"},
		messages: map[string]string{
			"m1": plainMessage("m1", base, "Acme Recruiting <jobs@acme.com>", "Thank you for applying", "We received your application."),
			"m2": plainMessage("m2", base.Add(time.Hour), "Acme <jobs@acme.com>", "Interview invitation", "Let's schedule a call."),
		},
	}
	g := newTestGmail(t, fake)

	got, err := g.Fetch(context.Background(), FetchRequest{After: base.Add(-time.Hour), Before: base.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if want := []string{"m1", "m2"}; !equal(ids(got), want) {
		t.Fatalf("Fetch() = %v, want %v (oldest first, deleted message skipped)", ids(got), want)
	}
	if got[0].Sender != "Acme Recruiting <jobs@acme.com>" || got[0].Subject != "Thank you for applying" {
		t.Errorf("headers = %q / %q", got[0].Sender, got[0].Subject)
	}
	if got[0].Body != "We received your application." {
		t.Errorf("Body = %q, want text/plain part", got[0].Body)
	}
	if !got[0].ReceivedAt.Equal(base) {
		t.Errorf("ReceivedAt = %v, want %v", got[0].ReceivedAt, base)
	}

	q, _ := fake.listQuery.Load().(string)
	wantQ := fmt.Sprintf("after:%d before:%d category:primary", base.Add(-time.Hour).Unix(), base.Add(24*time.Hour).Unix())
	if q != wantQ {
		t.Errorf("list query = %q, want %q", q, wantQ)
	}
}

func TestGmail_RetriesTransientErrors(t *testing.T) {
	fake := &fakeGmail{
		order:    []string{"m1"},
		messages: map[string]string{"m1": plainMessage("m1", base, "a@b.com", "s", "body")},
	}
	fake.failGets.Store(2)
	g := newTestGmail(t, fake)

	got, err := g.Fetch(context.Background(), FetchRequest{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestGmail_ExhaustedRetriesAreUnavailable(t *testing.T) {
	fake := &fakeGmail{
		order:    []string{"m1"},
		messages: map[string]string{"m1": plainMessage("m1", base, "a@b.com", "s", "body")},
	}
	fake.failGets.Store(10)
	g := newTestGmail(t, fake)

	_, err := g.Fetch(context.Background(), FetchRequest{})
	if !errors.Is(err, errors.ErrCollaboratorUnavailable) {
		t.Fatalf("Fetch() error = %v, want COLLABORATOR_UNAVAILABLE", err)
	}
}

func TestNewGmail_RequiresCredentials(t *testing.T) {
	_, err := NewGmail(context.Background(), config.GmailConfig{}, nil)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("NewGmail() error = %v, want INVALID_REQUEST", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &googleapi.Error{Code: 429}, true},
		{"server error", &googleapi.Error{Code: 503}, true},
		{"wrapped server error", errors.Wrap(&googleapi.Error{Code: 500}, "get"), true},
		{"forbidden", &googleapi.Error{Code: 403}, false},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetry_MaxRetries(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		wantCalls  int
	}{
		{"zero disables retries", 0, 1},
		{"explicit count", 2, 3},
		{"negative selects default", -1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			cfg := RetryConfig{MaxRetries: tt.maxRetries, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
			_, err := retry(context.Background(), cfg, zap.NewNop(), func() (string, error) {
				calls++
				return "", &googleapi.Error{Code: 503}
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	in := `<html><style>p{color:red}</style><body><p>Dear&nbsp;Jane,</p><p>We&#39;d like   to <b>interview</b> you.</p></body></html>`
	got := stripHTML(in)
	if strings.Contains(got, "<") || strings.Contains(got, "color") {
		t.Errorf("stripHTML() left markup: %q", got)
	}
	if !strings.Contains(got, "We'd like to interview you.") {
		t.Errorf("stripHTML() = %q", got)
	}
}

func TestDecodeBody_Unpadded(t *testing.T) {
	raw := base64.RawURLEncoding.EncodeToString([]byte("hi?>"))
	got, err := decodeBody(raw)
	if err != nil || got != "hi?>" {
		t.Errorf("decodeBody() = %q, %v", got, err)
	}
}
