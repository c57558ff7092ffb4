// Package classify turns a raw mailbox message into a candidate
// application record and scores how much the extraction can be trusted.
// Everything here is a pure function of the message content.
package classify

import (
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/eladdeutch/jobtracker/internal/lifecycle"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

const maxSnippetRunes = 80

// Candidate is the structured, possibly partial, extraction from one message.
type Candidate struct {
	Company        string             `json:"company,omitempty"`
	Position       string             `json:"position,omitempty"`
	Status         tracker.Status     `json:"status_signal,omitempty"`
	RejectionStage tracker.Status     `json:"rejection_stage,omitempty"`
	JobRelated     bool               `json:"job_related"`
	Evidence       []tracker.Evidence `json:"evidence"`
}

// Ambiguous reports that neither company nor position could be extracted.
func (c Candidate) Ambiguous() bool {
	return c.Company == "" && c.Position == ""
}

// Extractor applies an ordered rule table.
type Extractor struct {
	rules []Rule
}

// NewExtractor returns an Extractor over rules, evaluated in order.
func NewExtractor(rules []Rule) *Extractor {
	return &Extractor{rules: rules}
}

var defaultExtractor = NewExtractor(DefaultRules)

// Extract runs the default rule table over msg.
func Extract(msg tracker.Message) Candidate {
	return defaultExtractor.Extract(msg)
}

// parts holds the message views rules match against.
type parts map[Part]string

func splitMessage(msg tracker.Message) parts {
	name, address := parseSender(msg.Sender)
	domain := ""
	if at := strings.LastIndex(address, "@"); at >= 0 {
		domain = address[at+1:]
	}
	subject := tracker.Clean(msg.Subject)
	return parts{
		PartSubject:       subject,
		PartBody:          msg.Body,
		PartText:          subject + "\n" + msg.Body,
		PartSenderName:    name,
		PartSenderAddress: address,
		PartSenderDomain:  domain,
	}
}

// parseSender splits "Name <addr>" into its display name and lowercase address.
func parseSender(sender string) (string, string) {
	if addr, err := mail.ParseAddress(sender); err == nil {
		return tracker.Clean(addr.Name), strings.ToLower(addr.Address)
	}
	s := strings.TrimSpace(sender)
	if lt := strings.LastIndex(s, "<"); lt >= 0 && strings.HasSuffix(s, ">") {
		return tracker.Clean(strings.Trim(s[:lt], `" `)), strings.ToLower(s[lt+1 : len(s)-1])
	}
	if strings.Contains(s, "@") {
		return "", strings.ToLower(s)
	}
	return tracker.Clean(s), ""
}

// Extract evaluates every rule against msg. Each field takes its value from the
// first rule that yields one; all hits are kept as evidence.
func (e *Extractor) Extract(msg tracker.Message) Candidate {
	p := splitMessage(msg)
	var c Candidate
	c.Evidence = []tracker.Evidence{}

	statusWeights := map[tracker.Status]float64{}
	stageHits := map[tracker.Status]int{}
	keywords := 0

	for _, r := range e.rules {
		text := p[r.Part]
		if text == "" {
			continue
		}
		if r.Unless != nil && r.Unless.MatchString(text) {
			continue
		}
		if hasCaptureGroups(r) {
			c.addCaptures(r, text)
			continue
		}
		m := r.Pattern.FindStringIndex(text)
		if m == nil {
			continue
		}
		snippet := truncate(tracker.Clean(text[m[0]:m[1]]), maxSnippetRunes)

		ev := tracker.Evidence{Rule: r.Name, Category: string(r.Category), Snippet: snippet, Weight: r.Weight}
		switch r.Category {
		case CategoryStatus:
			ev.Field = "status"
			ev.Value = string(r.Status)
			statusWeights[r.Status] += r.Weight
		case CategoryStage:
			ev.Field = "rejection_stage"
			ev.Value = string(r.Status)
			stageHits[r.Status]++
		case CategoryKeyword:
			keywords++
		}
		c.Evidence = append(c.Evidence, ev)
	}

	c.Status = pickStatus(statusWeights)
	if c.Status == tracker.StatusRejected {
		c.RejectionStage = pickStage(stageHits)
	}
	c.JobRelated = isJobRelated(p, keywords, c.Status != "")
	return c
}

// addCaptures records company and position evidence from r. Each field
// takes the first match whose capture survives cleaning, so a rejected
// word earlier in the text never hides a later valid one.
func (c *Candidate) addCaptures(r Rule, text string) {
	var company, position, companySnip, positionSnip string
	for _, m := range r.Pattern.FindAllStringSubmatchIndex(text, -1) {
		co, pos := captures(r, text, m)
		if co != "" && company == "" {
			company, companySnip = co, truncate(tracker.Clean(text[m[0]:m[1]]), maxSnippetRunes)
		}
		if pos != "" && position == "" {
			position, positionSnip = pos, truncate(tracker.Clean(text[m[0]:m[1]]), maxSnippetRunes)
		}
		if company != "" && position != "" {
			break
		}
	}
	if company != "" {
		c.Evidence = append(c.Evidence, tracker.Evidence{
			Rule: r.Name, Category: string(CategoryCompany), Field: "company",
			Value: company, Snippet: companySnip, Weight: r.Weight,
		})
		if c.Company == "" {
			c.Company = company
		}
	}
	if position != "" {
		c.Evidence = append(c.Evidence, tracker.Evidence{
			Rule: r.Name, Category: string(CategoryPosition), Field: "position",
			Value: position, Snippet: positionSnip, Weight: positionWeight(r),
		})
		if c.Position == "" {
			c.Position = position
		}
	}
}

// positionWeight is the weight a combined company+position rule lends the position field.
func positionWeight(r Rule) float64 {
	if r.Category == CategoryPosition {
		return r.Weight
	}
	// Combined subject rules: position evidence is slightly weaker than company.
	return r.Weight - 0.05
}

func hasCaptureGroups(r Rule) bool {
	for _, name := range r.Pattern.SubexpNames() {
		if name == "company" || name == "position" {
			return true
		}
	}
	return false
}

// captures returns the cleaned company and position groups of a match.
func captures(r Rule, text string, m []int) (string, string) {
	var company, position string
	for i, name := range r.Pattern.SubexpNames() {
		if name == "" || m[2*i] < 0 {
			continue
		}
		val := text[m[2*i]:m[2*i+1]]
		switch name {
		case "company":
			if r.Part == PartSenderDomain {
				val = titleFromDomain(val)
			}
			company = cleanCompany(val)
		case "position":
			position = cleanPosition(val)
		}
	}
	return company, position
}

// statusPriority breaks ties between equally weighted status signals; earlier wins.
var statusPriority = []tracker.Status{
	tracker.StatusRejected,
	tracker.StatusWithdrawn,
	tracker.StatusOfferAccepted,
	tracker.StatusOfferDeclined,
	tracker.StatusOfferReceived,
	tracker.StatusThirdInterview,
	tracker.StatusSecondInterview,
	tracker.StatusFirstInterview,
	tracker.StatusPhoneScreen,
	tracker.StatusProfileViewed,
	tracker.StatusNoResponse,
	tracker.StatusApplied,
}

func pickStatus(weights map[tracker.Status]float64) tracker.Status {
	var best tracker.Status
	bestWeight := 0.0
	for _, s := range statusPriority {
		if w := weights[s]; w > bestWeight+1e-9 {
			best, bestWeight = s, w
		}
	}
	return best
}

// pickStage returns the most cited rejection stage; ties go to the later stage.
func pickStage(hits map[tracker.Status]int) tracker.Status {
	stages := make([]tracker.Status, 0, len(hits))
	for s := range hits {
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool {
		if hits[stages[i]] != hits[stages[j]] {
			return hits[stages[i]] > hits[stages[j]]
		}
		return lifecycle.Rank(stages[i]) > lifecycle.Rank(stages[j])
	})
	if len(stages) == 0 {
		return ""
	}
	return stages[0]
}

// isJobRelated mirrors how a person skims an inbox: ATS mail always counts,
// job boards and no-reply senders only when they mention the application,
// and anything else needs corroborating keywords.
func isJobRelated(p parts, keywords int, hasStatus bool) bool {
	if atsDomainRegex.MatchString(p[PartSenderDomain]) {
		return true
	}
	address := p[PartSenderAddress]
	for _, marker := range jobBoardMarkers {
		if strings.Contains(address, marker) {
			text := strings.ToLower(p[PartText])
			return strings.Contains(text, "application") ||
				strings.Contains(text, "interview") ||
				strings.Contains(text, "position")
		}
	}
	return keywords >= 2 || (hasStatus && keywords >= 1)
}

func cleanCompany(s string) string {
	s = strings.Trim(tracker.Clean(s), ` .,;:!?"'-`)
	if strings.HasPrefix(strings.ToLower(s), "the ") {
		s = s[4:]
	}
	if utf8.RuneCountInString(s) < 2 || ignoredCompanies[strings.ToLower(s)] {
		return ""
	}
	return s
}

func cleanPosition(s string) string {
	s = strings.Trim(tracker.Clean(s), ` .,;:!?"'-`)
	lower := strings.ToLower(s)
	for _, suffix := range []string{" position", " role", " opening"} {
		if strings.HasSuffix(lower, suffix) {
			s = strings.TrimSpace(s[:len(s)-len(suffix)])
			break
		}
	}
	n := utf8.RuneCountInString(s)
	if n < 3 || n > 100 {
		return ""
	}
	return s
}

// titleFromDomain turns "acme-labs" into "Acme Labs".
func titleFromDomain(label string) string {
	words := strings.FieldsFunc(label, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
