package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

const (
	pageSize     = 100
	maxBodyRunes = 20000
)

var (
	tagRegex   = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)
	spaceRegex = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankRegex = regexp.MustCompile(`\n\s*\n+`)
)

// Gmail reads messages through the Gmail REST API.
type Gmail struct {
	svc     *gmail.Service
	user    string
	query   string
	limiter *rate.Limiter
	retry   RetryConfig
	log     *zap.Logger
}

// GmailOption customizes NewGmail.
type GmailOption func(*gmailOptions)

type gmailOptions struct {
	client     *http.Client
	clientOpts []option.ClientOption
	retry      *RetryConfig
}

// WithHTTPClient replaces the OAuth2 client, e.g. for tests.
func WithHTTPClient(c *http.Client) GmailOption {
	return func(o *gmailOptions) { o.client = c }
}

// WithClientOptions appends raw API client options such as option.WithEndpoint.
func WithClientOptions(opts ...option.ClientOption) GmailOption {
	return func(o *gmailOptions) { o.clientOpts = append(o.clientOpts, opts...) }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg RetryConfig) GmailOption {
	return func(o *gmailOptions) { o.retry = &cfg }
}

// NewGmail builds a Gmail mailbox. Without WithHTTPClient the client
// authenticates with the configured refresh token.
func NewGmail(ctx context.Context, cfg config.GmailConfig, log *zap.Logger, opts ...GmailOption) (*Gmail, error) {
	var o gmailOptions
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := o.client
	if client == nil {
		if !cfg.Configured() {
			return nil, errors.WithHint(
				errors.NewInvalidRequest("gmail credentials are not configured"),
				"set gmail.client_id, gmail.client_secret and gmail.refresh_token")
		}
		client = oauthClient(ctx, cfg)
	}

	svc, err := gmail.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, o.clientOpts...)...)
	if err != nil {
		return nil, errors.NewCollaboratorUnavailable("mailbox", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	rc := RetryConfig{MaxRetries: cfg.MaxRetries}
	if o.retry != nil {
		rc = *o.retry
	}
	user := cfg.User
	if user == "" {
		user = "me"
	}

	return &Gmail{
		svc:     svc,
		user:    user,
		query:   cfg.Query,
		limiter: rate.NewLimiter(limit, 1),
		retry:   rc,
		log:     log,
	}, nil
}

func oauthClient(ctx context.Context, cfg config.GmailConfig) *http.Client {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoints.Google,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	return conf.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
}

// Fetch lists the newest req.MaxResults messages in the window and
// downloads each one. Messages deleted between list and get are skipped.
func (g *Gmail) Fetch(ctx context.Context, req FetchRequest) ([]tracker.Message, error) {
	ids, err := g.list(ctx, req)
	if err != nil {
		return nil, g.fail(ctx, err)
	}

	msgs := make([]tracker.Message, 0, len(ids))
	for _, id := range ids {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, g.fail(ctx, err)
		}
		m, err := retry(ctx, g.retry, g.log, func() (*gmail.Message, error) {
			return g.svc.Users.Messages.Get(g.user, id).Format("full").Context(ctx).Do()
		})
		if err != nil {
			if isNotFound(err) {
				g.log.Debug("message vanished before download", zap.String("message_id", id))
				continue
			}
			return nil, g.fail(ctx, err)
		}
		msg := parseMessage(m)
		if req.Contains(msg.ReceivedAt) {
			msgs = append(msgs, msg)
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].ReceivedAt.Before(msgs[j].ReceivedAt)
	})
	return msgs, nil
}

func (g *Gmail) list(ctx context.Context, req FetchRequest) ([]string, error) {
	q := searchQuery(req, g.query)
	var ids []string
	token := ""
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		size := int64(pageSize)
		if req.MaxResults > 0 && req.MaxResults-len(ids) < pageSize {
			size = int64(req.MaxResults - len(ids))
		}
		call := g.svc.Users.Messages.List(g.user).Q(q).MaxResults(size).Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}
		resp, err := retry(ctx, g.retry, g.log, func() (*gmail.ListMessagesResponse, error) {
			return call.Do()
		})
		if err != nil {
			return nil, err
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
			if req.MaxResults > 0 && len(ids) >= req.MaxResults {
				return ids, nil
			}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		token = resp.NextPageToken
	}
}

func (g *Gmail) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.NewCancelled("mailbox fetch")
	}
	return errors.NewCollaboratorUnavailable("mailbox", err)
}

// searchQuery renders the window as Gmail search operators, which take epoch seconds.
func searchQuery(req FetchRequest, extra string) string {
	var parts []string
	if !req.After.IsZero() {
		parts = append(parts, fmt.Sprintf("after:%d", req.After.Unix()))
	}
	if !req.Before.IsZero() {
		parts = append(parts, fmt.Sprintf("before:%d", req.Before.Unix()))
	}
	if extra = strings.TrimSpace(extra); extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, " ")
}

func parseMessage(m *gmail.Message) tracker.Message {
	msg := tracker.Message{
		ID:         m.Id,
		ReceivedAt: time.UnixMilli(m.InternalDate).UTC(),
	}
	if m.Payload == nil {
		msg.Body = m.Snippet
		return msg
	}
	for _, h := range m.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			msg.Sender = h.Value
		case "subject":
			msg.Subject = h.Value
		}
	}
	msg.Body = extractBody(m.Payload)
	if msg.Body == "" {
		msg.Body = html.UnescapeString(m.Snippet)
	}
	return msg
}

// extractBody prefers the first text/plain part and falls back to stripped HTML.
func extractBody(part *gmail.MessagePart) string {
	if text := findPart(part, "text/plain"); text != "" {
		return truncate(strings.TrimSpace(text))
	}
	if markup := findPart(part, "text/html"); markup != "" {
		return truncate(stripHTML(markup))
	}
	return ""
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(part.MimeType), mimeType) && part.Body != nil && part.Body.Data != "" {
		if data, err := decodeBody(part.Body.Data); err == nil {
			return data
		}
	}
	for _, p := range part.Parts {
		if s := findPart(p, mimeType); s != "" {
			return s
		}
	}
	return ""
}

// decodeBody accepts base64url with or without padding.
func decodeBody(data string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func stripHTML(s string) string {
	s = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n", "</div>", "\n").Replace(s)
	s = html.UnescapeString(tagRegex.ReplaceAllString(s, " "))
	s = spaceRegex.ReplaceAllString(s, " ")
	s = blankRegex.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxBodyRunes {
		return s
	}
	return string(r[:maxBodyRunes])
}
