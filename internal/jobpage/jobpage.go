// Package jobpage fetches a job posting and pulls its description, title and
// company out of the page markup.
package jobpage

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/eladdeutch/jobtracker/internal/errors"
)

const (
	// DefaultTimeout bounds one fetch including redirects.
	DefaultTimeout = 15 * time.Second

	// MaxPageBytes caps how much of a response body is parsed.
	MaxPageBytes = 4 << 20

	maxRedirects = 5

	// Minimum description lengths, in runes, for a site-specific and a
	// generic match. The fallback takes the largest block within bounds.
	minSiteText     = 200
	minGenericText  = 500
	maxFallbackText = 50000

	userAgent = "Mozilla/5.0 (compatible; jobtracker/1.0; +https://github.com/eladdeutch/jobtracker)"
)

// Posting is what could be read from a job posting page.
type Posting struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Description string `json:"description"`
}

// Fetcher downloads job posting pages.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher returns a Fetcher whose requests time out after timeout; zero
// selects DefaultTimeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{Client: &http.Client{
		Timeout: timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.Newf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}}
}

// NormalizeURL adds https:// to a bare host and rejects anything that is
// not an http(s) URL with a host.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.NewInvalidRequest("url is required")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", errors.NewInvalidRequest("url is not a valid web address: " + raw)
	}
	return u.String(), nil
}

// Fetch downloads rawURL and extracts the posting.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Posting, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.NewInvalidRequest("url: " + err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	client := f.Client
	if client == nil {
		client = NewFetcher(0).Client
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("fetch job posting")
		}
		return nil, errors.WithHint(errors.NewCollaboratorUnavailable("job site", err),
			"check the address, or paste the description by hand")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, errors.WithHint(errors.NewNotFound("job posting", target),
			"the posting may have been taken down")
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, errors.WithHint(
			errors.NewCollaboratorUnavailable("job site", errors.Newf("access denied (HTTP %d)", resp.StatusCode)),
			"this site blocks automated access; paste the description by hand")
	case resp.StatusCode >= 300:
		return nil, errors.NewCollaboratorUnavailable("job site", errors.Newf("HTTP %d", resp.StatusCode))
	}

	p, err := Parse(io.LimitReader(resp.Body, MaxPageBytes), resp.Request.URL.Hostname())
	if err != nil {
		return nil, err
	}
	p.URL = target
	return p, nil
}

// Parse extracts a posting from page markup. host picks site-specific
// selectors and may be empty.
func Parse(r io.Reader, host string) (*Posting, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.NewInvalidRequest("page is not readable HTML: " + err.Error())
	}
	desc := description(doc, siteHost(host))
	if desc == "" {
		return nil, errors.WithHint(errors.NewNotFound("job description", host),
			"no description block was found on the page; paste it by hand")
	}
	return &Posting{Title: title(doc), Company: company(doc), Description: desc}, nil
}

func siteHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// selector matches an element by id or by a substring of an attribute.
type selector struct {
	attr  string
	value string
	exact bool
}

func (s selector) match(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key != s.attr {
			continue
		}
		if s.exact {
			return a.Val == s.value
		}
		return strings.Contains(a.Val, s.value)
	}
	return false
}

func id(v string) selector       { return selector{attr: "id", value: v, exact: true} }
func classHas(v string) selector { return selector{attr: "class", value: v} }

var siteSelectors = []struct {
	host      string
	selectors []selector
}{
	{"linkedin.com", []selector{classHas("description__text"), classHas("show-more-less-html__markup"), classHas("description")}},
	{"indeed.com", []selector{id("jobDescriptionText"), classHas("jobsearch-jobDescriptionText"), classHas("jobDescription")}},
	{"greenhouse.io", []selector{id("content"), classHas("content"), classHas("job-description")}},
	{"lever.co", []selector{classHas("content"), classHas("description"), classHas("posting-page")}},
	{"workday.com", []selector{{attr: "data-automation-id", value: "jobPostingDescription", exact: true}, classHas("job-description")}},
	{"glassdoor.com", []selector{classHas("desc"), classHas("JobDesc"), classHas("jobDescriptionContent")}},
	{"monster.com", []selector{id("JobDescription"), classHas("job-description")}},
	{"ziprecruiter.com", []selector{classHas("job_description"), classHas("description")}},
}

var genericSelectors = []selector{
	classHas("job-description"),
	classHas("jobDescription"),
	classHas("job_description"),
	{attr: "id", value: "job-description"},
	{attr: "id", value: "jobDescription"},
	classHas("description"),
	classHas("posting-description"),
	classHas("content"),
	classHas("job-details"),
	classHas("posting-content"),
}

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Nav: true, atom.Header: true, atom.Footer: true, atom.Aside: true,
}

func description(doc *html.Node, host string) string {
	for _, site := range siteSelectors {
		if !strings.HasSuffix(host, site.host) {
			continue
		}
		for _, sel := range site.selectors {
			if n := find(doc, sel.match); n != nil {
				if t := text(n); runeLen(t) > minSiteText {
					return t
				}
			}
		}
	}

	for _, sel := range genericSelectors {
		for _, n := range findAll(doc, sel.match) {
			if t := text(n); runeLen(t) > minGenericText {
				return t
			}
		}
	}
	for _, a := range []atom.Atom{atom.Article, atom.Main} {
		for _, n := range findAll(doc, isElement(a)) {
			if t := text(n); runeLen(t) > minGenericText {
				return t
			}
		}
	}
	return largestBlock(doc)
}

func largestBlock(doc *html.Node) string {
	best := ""
	for _, n := range findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div || n.DataAtom == atom.Section || n.DataAtom == atom.Article
	}) {
		t := text(n)
		if l := runeLen(t); l > minGenericText && l < maxFallbackText && l > runeLen(best) {
			best = t
		}
	}
	return best
}

var titleSuffix = regexp.MustCompile(`(?i)\s*[-|]\s*(LinkedIn|Indeed|Glassdoor|Careers).*$`)

func title(doc *html.Node) string {
	for _, match := range []func(*html.Node) bool{
		isElement(atom.H1),
		classHas("job-title").match,
		classHas("jobTitle").match,
		classHas("posting-title").match,
		isElement(atom.Title),
	} {
		if n := find(doc, match); n != nil {
			if t := text(n); t != "" && runeLen(t) < 200 {
				return strings.TrimSpace(titleSuffix.ReplaceAllString(t, ""))
			}
		}
	}
	return ""
}

func company(doc *html.Node) string {
	for _, sel := range []selector{
		classHas("company-name"),
		classHas("companyName"),
		classHas("employer"),
		classHas("organization"),
	} {
		if n := find(doc, sel.match); n != nil {
			if t := text(n); t != "" && runeLen(t) < 100 {
				return t
			}
		}
	}
	if n := find(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Meta && attr(n, "property") == "og:site_name"
	}); n != nil {
		return strings.TrimSpace(attr(n, "content"))
	}
	return ""
}

func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.DataAtom == a }
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// find returns the first element in document order matching fn.
func find(n *html.Node, fn func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode {
		if skipped[n.DataAtom] {
			return nil
		}
		if fn(n) {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := find(c, fn); m != nil {
			return m
		}
	}
	return nil
}

func findAll(n *html.Node, fn func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.DataAtom] {
				return
			}
			if fn(n) {
				out = append(out, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// blockElements end a line in extracted text.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Section: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.Tr: true,
}

var (
	spaceRun = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankRun = regexp.MustCompile(`\n\s*\n[\s\n]*`)
)

// text is n's visible text with whitespace collapsed. Paragraph breaks are
// kept as blank lines.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			b.WriteString("\n\n")
		}
	}
	walk(n)

	lines := strings.Split(spaceRun.ReplaceAllString(b.String(), " "), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(blankRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func runeLen(s string) int {
	return len([]rune(s))
}
