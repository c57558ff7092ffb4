package jobpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eladdeutch/jobtracker/internal/errors"
)

var longText = strings.Repeat("You will design and operate distributed storage systems. ", 12)

func page(body string) string {
	return `<!doctype html><html><head><title>Senior SRE | Careers at Initech</title>
<meta property="og:site_name" content="Initech Careers">
<script>var tracking = "` + strings.Repeat("x", 800) + `";</script></head>
<body><nav>` + strings.Repeat("Home About Jobs ", 60) + `</nav>` + body + `<footer>Copyright</footer></body></html>`
}

func TestParse_GenericDescription(t *testing.T) {
	doc := page(`<h1>Senior SRE - LinkedIn</h1>
<span class="company-name">Initech</span>
<div class="job-description"><p>About the role</p><p>` + longText + `</p><ul><li>Go</li><li>SQL</li></ul></div>`)

	p, err := Parse(strings.NewReader(doc), "jobs.initech.example")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Title != "Senior SRE" {
		t.Errorf("Title = %q, want suffix stripped", p.Title)
	}
	if p.Company != "Initech" {
		t.Errorf("Company = %q", p.Company)
	}
	if !strings.HasPrefix(p.Description, "About the role\n\n") {
		t.Errorf("Description does not keep paragraph breaks: %q", p.Description[:40])
	}
	if strings.Contains(p.Description, "tracking") || strings.Contains(p.Description, "Home About") {
		t.Error("Description includes script or navigation text")
	}
}

func TestParse_SiteSelectorWinsOverGeneric(t *testing.T) {
	doc := page(`<div class="content">` + strings.Repeat("Unrelated marketing copy. ", 40) + `</div>
<div id="jobDescriptionText">` + strings.Repeat("Own the on-call rotation. ", 10) + `</div>`)

	p, err := Parse(strings.NewReader(doc), "www.indeed.com")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !strings.HasPrefix(p.Description, "Own the on-call rotation.") {
		t.Errorf("Description = %q, want the site block", p.Description[:30])
	}
	if p.Company != "Initech Careers" {
		t.Errorf("Company = %q, want og:site_name fallback", p.Company)
	}
	if p.Title != "Senior SRE" {
		t.Errorf("Title = %q, want <title> with suffix stripped", p.Title)
	}
}

func TestParse_LargestBlockFallback(t *testing.T) {
	doc := page(`<section>` + strings.Repeat("short ", 20) + `</section>
<section>` + longText + longText + `</section>`)

	p, err := Parse(strings.NewReader(doc), "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(p.Description) < 2*len(strings.TrimSpace(longText)) {
		t.Errorf("Description has %d bytes, want the largest section", len(p.Description))
	}
}

func TestParse_NoDescription(t *testing.T) {
	_, err := Parse(strings.NewReader(page(`<p>Apply now</p>`)), "example.com")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if hint := errors.FlattenHints(err); !strings.Contains(hint, "paste it by hand") {
		t.Errorf("hint = %q", hint)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"jobs.example.com/42", "https://jobs.example.com/42", false},
		{" http://jobs.example.com ", "http://jobs.example.com", false},
		{"", "", true},
		{"https://", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFetch(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.UserAgent()
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(page(`<article>` + longText + `</article>`)))
		case "/moved":
			http.Redirect(w, r, "/ok", http.StatusFound)
		case "/blocked":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client()}
	ctx := context.Background()

	p, err := f.Fetch(ctx, srv.URL+"/moved")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.URL != srv.URL+"/moved" || p.Description == "" {
		t.Errorf("posting = %+v", p)
	}
	if !strings.Contains(agent, "jobtracker") {
		t.Errorf("User-Agent = %q", agent)
	}

	if _, err := f.Fetch(ctx, srv.URL+"/gone"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("404 err = %v, want NOT_FOUND", err)
	}
	_, err = f.Fetch(ctx, srv.URL+"/blocked")
	if !errors.Is(err, errors.ErrCollaboratorUnavailable) {
		t.Errorf("403 err = %v, want COLLABORATOR_UNAVAILABLE", err)
	}
	if !strings.Contains(errors.FlattenHints(err), "blocks automated access") {
		t.Errorf("403 hint = %q", errors.FlattenHints(err))
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := f.Fetch(cancelled, srv.URL+"/ok"); !errors.Is(err, errors.ErrCancelled) {
		t.Errorf("cancelled err = %v, want CANCELLED", err)
	}
}
