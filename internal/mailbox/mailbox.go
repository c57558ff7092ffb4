// Package mailbox fetches raw messages from the user's inbox. The pipeline
// depends only on the Mailbox interface; Gmail and JSONL files implement it.
package mailbox

import (
	"context"
	"sort"
	"time"

	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// FetchRequest bounds one fetch. Zero times leave that side open;
// MaxResults of 0 means no limit.
type FetchRequest struct {
	After      time.Time
	Before     time.Time
	MaxResults int
}

// Contains reports whether t falls inside the request window.
func (r FetchRequest) Contains(t time.Time) bool {
	if !r.After.IsZero() && t.Before(r.After) {
		return false
	}
	if !r.Before.IsZero() && !t.Before(r.Before) {
		return false
	}
	return true
}

// Mailbox returns messages received inside a window, oldest first. Message
// IDs must be stable across calls so rescans can be deduplicated.
type Mailbox interface {
	Fetch(ctx context.Context, req FetchRequest) ([]tracker.Message, error)
}

// Static is an in-memory mailbox.
type Static []tracker.Message

// Fetch returns the newest req.MaxResults messages in the window, oldest first.
func (s Static) Fetch(ctx context.Context, req FetchRequest) ([]tracker.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []tracker.Message
	for _, m := range s {
		if req.Contains(m.ReceivedAt) {
			out = append(out, m)
		}
	}
	sortNewestFirst(out)
	if req.MaxResults > 0 && len(out) > req.MaxResults {
		out = out[:req.MaxResults]
	}
	reverse(out)
	return out, nil
}

func sortNewestFirst(msgs []tracker.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].ReceivedAt.Equal(msgs[j].ReceivedAt) {
			return msgs[i].ReceivedAt.After(msgs[j].ReceivedAt)
		}
		return msgs[i].ID > msgs[j].ID
	})
}

func reverse(msgs []tracker.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
