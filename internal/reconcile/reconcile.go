// Package reconcile decides whether a candidate belongs to an existing
// application, starts a new one, or exposes duplicates that must be merged.
package reconcile

import (
	"sort"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// DefaultPositionThreshold is the Jaro-Winkler similarity at or above which two
// position titles at the same company are treated as the same job.
const DefaultPositionThreshold = 0.88

// Action is the reconciliation outcome.
type Action string

const (
	ActionCreateNew Action = "create_new"
	ActionLinkTo    Action = "link_to"
	ActionMergeWith Action = "merge_with"
)

// Decision is what to do with one candidate.
type Decision struct {
	Action Action `json:"action"`
	// ApplicationID is the link target, or the surviving record for merge_with.
	ApplicationID string `json:"application_id,omitempty"`
	// MergeIDs are absorbed into ApplicationID, oldest first.
	MergeIDs []string `json:"merge_ids,omitempty"`
	// Confident is false when the matcher could not decide and fell back to create_new.
	Confident bool   `json:"confident"`
	Reason    string `json:"reason,omitempty"`
}

// Matcher compares candidates against applications.
type Matcher struct {
	threshold float64
}

// NewMatcher returns a Matcher; a non-positive threshold selects the default.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultPositionThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the position similarity cutoff.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// PositionSimilarity scores two titles in [0,1] on their normalized keys.
func PositionSimilarity(a, b string) float64 {
	ka, kb := tracker.PositionKey(a), tracker.PositionKey(b)
	if ka == kb {
		return 1
	}
	if ka == "" || kb == "" {
		return 0
	}
	return smetrics.JaroWinkler(strings.ReplaceAll(ka, " ", ""), strings.ReplaceAll(kb, " ", ""), 0.7, 4)
}

// SamePosition reports whether two titles name the same job. A missing title
// on either side matches, since it carries no evidence of a different role.
func (m *Matcher) SamePosition(a, b string) bool {
	if tracker.PositionKey(a) == "" || tracker.PositionKey(b) == "" {
		return true
	}
	return PositionSimilarity(a, b) >= m.threshold
}

// Same reports whether two applications describe the same company and position.
func (m *Matcher) Same(a, b tracker.Application) bool {
	return companyKey(a) != "" && companyKey(a) == companyKey(b) && m.SamePosition(a.Position, b.Position)
}

// Decide maps a candidate company/position onto existing applications.
//
//   - no match: create_new
//   - one match: link_to it
//   - several matches for a candidate with a position: those applications are
//     duplicates of each other, so merge_with the earliest created
//   - several matches for a candidate without a position: link_to the most
//     recently updated active application, since nothing proves they are duplicates
func (m *Matcher) Decide(company, position string, existing []tracker.Application) Decision {
	key := tracker.CompanyKey(company)
	if key == "" {
		return Decision{Action: ActionCreateNew, Confident: false, Reason: "no company to match on"}
	}

	var matches []tracker.Application
	for _, app := range existing {
		if companyKey(app) != key {
			continue
		}
		if m.SamePosition(position, app.Position) {
			matches = append(matches, app)
		}
	}

	switch {
	case len(matches) == 0:
		return Decision{Action: ActionCreateNew, Confident: true, Reason: "no existing application matches"}
	case len(matches) == 1:
		return Decision{Action: ActionLinkTo, ApplicationID: matches[0].ID, Confident: true, Reason: "single match"}
	}

	if tracker.PositionKey(position) == "" {
		target := mostRecentActive(matches)
		return Decision{
			Action:        ActionLinkTo,
			ApplicationID: target.ID,
			Confident:     false,
			Reason:        "company-only match; picked most recently updated application",
		}
	}

	sortOldestFirst(matches)
	survivor := matches[0]
	var losers []string
	for _, app := range matches[1:] {
		if m.SamePosition(survivor.Position, app.Position) {
			losers = append(losers, app.ID)
		}
	}
	if len(losers) == 0 {
		target := mostRecentActive(matches)
		return Decision{Action: ActionLinkTo, ApplicationID: target.ID, Confident: false, Reason: "matches disagree on position"}
	}
	return Decision{
		Action:        ActionMergeWith,
		ApplicationID: survivor.ID,
		MergeIDs:      losers,
		Confident:     true,
		Reason:        "duplicate applications for the same company and position",
	}
}

// FindDuplicates groups applications that describe the same job. Each group
// is ordered oldest first and has at least two members.
func (m *Matcher) FindDuplicates(apps []tracker.Application) [][]tracker.Application {
	byCompany := make(map[string][]tracker.Application)
	var keys []string
	for _, app := range apps {
		k := companyKey(app)
		if k == "" {
			continue
		}
		if _, ok := byCompany[k]; !ok {
			keys = append(keys, k)
		}
		byCompany[k] = append(byCompany[k], app)
	}
	sort.Strings(keys)

	var groups [][]tracker.Application
	for _, k := range keys {
		members := byCompany[k]
		sortOldestFirst(members)
		used := make([]bool, len(members))
		for i := range members {
			if used[i] {
				continue
			}
			group := []tracker.Application{members[i]}
			for j := i + 1; j < len(members); j++ {
				if used[j] {
					continue
				}
				// A titled application only absorbs titled ones; untitled records
				// are ambiguous between several roles at the same company.
				if tracker.PositionKey(members[i].Position) == "" || tracker.PositionKey(members[j].Position) == "" {
					if tracker.PositionKey(members[i].Position) != tracker.PositionKey(members[j].Position) {
						continue
					}
				}
				if m.SamePosition(members[i].Position, members[j].Position) {
					group = append(group, members[j])
					used[j] = true
				}
			}
			if len(group) > 1 {
				groups = append(groups, group)
			}
		}
	}
	return groups
}

func companyKey(app tracker.Application) string {
	if app.CompanyKey != "" {
		return app.CompanyKey
	}
	return tracker.CompanyKey(app.Company)
}

func sortOldestFirst(apps []tracker.Application) {
	sort.SliceStable(apps, func(i, j int) bool {
		if apps[i].CreatedAt != apps[j].CreatedAt {
			return apps[i].CreatedAt < apps[j].CreatedAt
		}
		return apps[i].ID < apps[j].ID
	})
}

// mostRecentActive prefers non-terminal applications, then the latest update.
func mostRecentActive(apps []tracker.Application) tracker.Application {
	best := apps[0]
	for _, app := range apps[1:] {
		if best.Status.Terminal() && !app.Status.Terminal() {
			best = app
			continue
		}
		if best.Status.Terminal() == app.Status.Terminal() && app.UpdatedAt > best.UpdatedAt {
			best = app
		}
	}
	return best
}
