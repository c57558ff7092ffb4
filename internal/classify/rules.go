package classify

import (
	"regexp"
	"strings"

	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// Part selects which portion of a message a rule matches against.
type Part string

const (
	PartSubject       Part = "subject"
	PartBody          Part = "body"
	PartText          Part = "text" // subject and body
	PartSenderName    Part = "sender_name"
	PartSenderAddress Part = "sender_address"
	PartSenderDomain  Part = "sender_domain"
)

// Category groups rules for scoring. Each category contributes at most its cap.
type Category string

const (
	CategoryCompany   Category = "company"
	CategoryPosition  Category = "position"
	CategoryStatus    Category = "status"
	CategorySender    Category = "sender"
	CategoryKeyword   Category = "keyword"
	CategoryStructure Category = "structure"
	CategoryStage     Category = "stage" // rejection stage hints, unscored
)

// Rule is one declarative pattern. Named groups "company" and "position"
// fill those fields; Status marks the rule as a status (or, for
// CategoryStage, rejection stage) signal.
type Rule struct {
	Name     string
	Part     Part
	Pattern  *regexp.Regexp
	Category Category
	Status   tracker.Status
	Weight   float64
	// Unless vetoes the rule when it matches the same part.
	Unless *regexp.Regexp
}

func rule(name string, part Part, pattern string, cat Category, weight float64) Rule {
	return Rule{Name: name, Part: part, Pattern: regexp.MustCompile(pattern), Category: cat, Weight: weight}
}

func unless(r Rule, veto *regexp.Regexp) Rule {
	r.Unless = veto
	return r
}

func statusRule(name string, to tracker.Status, pattern string, weight float64) Rule {
	r := rule(name, PartText, `(?i)`+pattern, CategoryStatus, weight)
	r.Status = to
	return r
}

func stageRule(name string, stage tracker.Status, pattern string) Rule {
	r := rule(name, PartText, `(?i)`+pattern, CategoryStage, 0)
	r.Status = stage
	return r
}

// atsDomains are applicant tracking systems that send mail on an employer's behalf.
const atsDomainList = `greenhouse(?:-mail)?\.io|lever\.co|ashbyhq\.com|myworkday(?:jobs)?\.com|smartrecruiters\.com|icims\.com|jobvite\.com|bamboohr\.com|workable(?:mail)?\.com|breezy\.hr|taleo\.net|comeet\.co|recruitee\.com|teamtailor\.com`

const atsDomains = `(?:` + atsDomainList + `)`

var atsDomainRegex = regexp.MustCompile(`(?i)(?:^|\.)` + atsDomains + `$`)

// jobBoardMarkers identify aggregators and automated senders whose mail is only
// job-related when it talks about an application, interview or position.
var jobBoardMarkers = []string{
	"linkedin.com", "indeed.com", "glassdoor.com", "ziprecruiter.com",
	"monster.com", "careerbuilder.com", "dice.com",
	"noreply", "no-reply", "mailer-daemon",
}

// nonEmployerDomains are sender domains that never name the employer:
// applicant tracking systems, job boards and free mail providers.
var nonEmployerDomains = regexp.MustCompile(`(?i)(?:^|\.)(?:` + atsDomainList +
	`|linkedin\.com|indeed\.com|glassdoor\.com|ziprecruiter\.com|monster\.com|careerbuilder\.com|dice\.com` +
	`|(?:gmail|googlemail|yahoo|outlook|hotmail|live|aol|icloud|me|mail|email|proton|protonmail|gmx)\.[a-z.]+)$`)

// DefaultRules is the ordered rule table. Field values come from the first
// matching rule; every matching rule is recorded as evidence.
var DefaultRules = buildDefaultRules()

func buildDefaultRules() []Rule {
	rules := []Rule{
		// Subject lines with both fields.
		rule("subject_company_dash_position", PartSubject,
			`(?i)(?:applying|application|applied|interest)\s+(?:to|at|with|in)\s+(?:the\s+)?(?P<company>[^—–|:]+?)\s+[—–|-]+\s+(?P<position>.+?)\s*$`,
			CategoryCompany, 0.30),
		rule("subject_position_at_company", PartSubject,
			`(?i)(?:application|applying|applied|interview|candidacy)\s+(?:for|to)\s+(?:the\s+)?(?:position\s+of\s+)?(?P<position>.+?)\s+(?:position\s+|role\s+)?at\s+(?P<company>[^—–|!,.]+?)\s*(?:[—–|!,.].*)?$`,
			CategoryCompany, 0.30),
		rule("subject_position_dash_company", PartSubject,
			`^(?P<position>[A-Z][A-Za-z/&+ -]{2,80}?(?:Engineer|Developer|Manager|Designer|Analyst|Scientist|Architect|Lead))\s+[—–|-]+\s+(?P<company>[A-Z][A-Za-z0-9&. ]{1,60}?)\s*$`,
			CategoryCompany, 0.25),

		// Position phrases in running text.
		rule("text_position_phrase", PartText,
			`(?i:position|role|job|opening|opportunity)\s+(?i:of|for|as)?\s*(?:the\s+)?["']?(?P<position>[A-Z][A-Za-z/ -]{1,60}?(?:Engineer|Developer|Manager|Designer|Analyst|Director|Lead|Architect|Scientist|Specialist|Coordinator|Associate|Intern))\b`,
			CategoryPosition, 0.20),
		rule("text_title", PartText,
			`\b(?P<position>(?:(?:Senior|Sr\.?|Junior|Jr\.?|Staff|Principal|Lead)\s+)?(?:Software|Backend|Back[- ]End|Frontend|Front[- ]End|Full[- ]?Stack|Data|ML|Machine Learning|AI|DevOps|Cloud|Platform|Product|Project|Program|QA|Test|Security|Network|Systems?|IT|Web|Mobile|iOS|Android|UX|UI|Site Reliability)(?:\s+[A-Z][a-z]+)?\s+(?:Engineer|Developer|Manager|Designer|Analyst|Architect|Scientist|Specialist|Lead))\b`,
			CategoryPosition, 0.15),

		// Company phrases in running text and sender identity.
		rule("text_company_at", PartText,
			`(?i:team|career|careers|position|role|opportunity|job|interest)\s+(?i:at|with)\s+(?P<company>[A-Z][A-Za-z0-9&]*(?:\s+[A-Z][A-Za-z0-9&]*){0,3})`,
			CategoryCompany, 0.20),
		rule("sender_name_team", PartSenderName,
			`^(?P<company>[A-Z][A-Za-z0-9& .]{1,60}?)\s+(?i:recruiting|recruitment|careers|talent(?:\s+acquisition)?|hiring(?:\s+team)?|hr|jobs|people)$`,
			CategoryCompany, 0.15),
		rule("sender_name_from", PartSenderName,
			`(?i:from|at|@)\s+(?P<company>[A-Z][A-Za-z0-9& ]{1,60}?)\s*$`,
			CategoryCompany, 0.15),
		rule("sender_workday_tenant", PartSenderDomain,
			`(?i)^(?P<company>[a-z0-9-]+)\.myworkday(?:jobs)?\.com$`,
			CategoryCompany, 0.15),
		unless(rule("sender_domain", PartSenderDomain,
			`(?i)^(?:[a-z0-9-]+\.)*?(?P<company>[a-z0-9-]{2,})\.[a-z]{2,}(?:\.[a-z]{2})?$`,
			CategoryCompany, 0.10), nonEmployerDomains),

		// Sender trust.
		rule("sender_ats", PartSenderDomain, `(?i)(?:^|\.)`+atsDomains+`$`, CategorySender, 0.15),
		rule("sender_recruiting_mailbox", PartSenderAddress,
			`(?i)^(?:careers?|jobs|recruiting|recruitment|talent|hr|hiring|people)[._-]?[a-z]*@`, CategorySender, 0.10),

		// Structural markers.
		rule("application_id", PartText,
			`(?i)\b(?:application|requisition|req|job|reference|candidate)\s*(?:id|#|no\.?|number)\s*[:#]?\s*[A-Z0-9][A-Z0-9-]{2,}`,
			CategoryStructure, 0.10),
		rule("ats_link", PartBody, `(?i)https?://[^\s]*`+atsDomains+`/`, CategoryStructure, 0.05),
	}

	rules = append(rules, statusRules()...)
	rules = append(rules, stageRules()...)
	rules = append(rules, keywordRules(jobKeywords)...)
	return rules
}

func statusRules() []Rule {
	return []Rule{
		statusRule("rejected_regret", tracker.StatusRejected, `regret\s+to\s+inform`, 0.20),
		statusRule("rejected_unfortunately", tracker.StatusRejected, `\bunfortunately\b`, 0.20),
		statusRule("rejected_not_moving_forward", tracker.StatusRejected, `not\s+(?:be\s+)?(?:mov(?:ing|ed)|going)\s+forward`, 0.20),
		statusRule("rejected_not_proceed", tracker.StatusRejected, `(?:decided\s+)?not\s+to\s+(?:proceed|continue)\s+with`, 0.20),
		statusRule("rejected_other_candidates", tracker.StatusRejected, `(?:pursue|move\s+forward\s+with|selected)\s+(?:other|another)\s+candidates?`, 0.20),
		statusRule("rejected_filled", tracker.StatusRejected, `(?:position|role)\s+has\s+(?:already\s+)?been\s+filled`, 0.20),
		statusRule("rejected_not_selected", tracker.StatusRejected, `\bnot\s+(?:been\s+)?selected\b`, 0.20),
		statusRule("rejected_unsuccessful", tracker.StatusRejected, `application\s+(?:was|has\s+been)\s+(?:unsuccessful|rejected|declined)`, 0.20),
		statusRule("rejected_unable_to_offer", tracker.StatusRejected, `(?:unable|not\s+be\s+able)\s+to\s+offer\s+you`, 0.20),
		statusRule("rejected_different_direction", tracker.StatusRejected, `go(?:ing)?\s+(?:in\s+)?a\s+different\s+direction`, 0.20),

		statusRule("withdrawn", tracker.StatusWithdrawn, `(?:you\s+have|you've|has\s+been|was)\s+withdrawn|withdr[ae]w\s+your\s+(?:application|candidacy)`, 0.20),

		statusRule("offer_accepted", tracker.StatusOfferAccepted, `(?:accepted|accepting)\s+(?:our|the)\s+offer|welcome\s+(?:aboard|to\s+the\s+team)`, 0.20),
		statusRule("offer_declined", tracker.StatusOfferDeclined, `(?:declined|declining)\s+(?:our|the)\s+offer`, 0.20),
		statusRule("offer_extend", tracker.StatusOfferReceived, `pleased\s+to\s+(?:offer|extend)`, 0.20),
		statusRule("offer_letter", tracker.StatusOfferReceived, `offer\s+(?:letter|of\s+employment)|\bjob\s+offer\b|would\s+like\s+to\s+offer\s+you`, 0.20),
		statusRule("offer_congratulations", tracker.StatusOfferReceived, `congratulations[^.]{0,80}\boffer\b`, 0.20),

		statusRule("third_interview", tracker.StatusThirdInterview, `(?:third|3rd|final)\s+(?:round|interview)`, 0.20),
		statusRule("second_interview", tracker.StatusSecondInterview, `(?:second|2nd)\s+(?:round|interview)|(?:onsite|on-site|virtual\s+onsite)\s+(?:interview|round|loop)?`, 0.20),
		statusRule("first_interview_technical", tracker.StatusFirstInterview, `(?:technical|coding)\s+(?:interview|round|screen)|(?:first|1st)\s+(?:round|interview)`, 0.20),
		statusRule("first_interview_invite", tracker.StatusFirstInterview, `invite\s+you\s+(?:to|for)\s+(?:a|an)?\s*interview|interview\s+(?:is\s+)?(?:scheduled|confirmed)`, 0.15),
		statusRule("interview_schedule", tracker.StatusFirstInterview, `schedule\s+(?:a|an|your)?\s*(?:video|virtual|in-person)?\s*(?:interview|call|time)`, 0.10),

		statusRule("phone_screen", tracker.StatusPhoneScreen, `phone\s+(?:screen|call|interview)|(?:initial|intro(?:ductory)?|recruiter)\s+(?:screen|call|chat|conversation)`, 0.20),
		statusRule("phone_screen_minutes", tracker.StatusPhoneScreen, `\b(?:15|20|30)\s*[-–]?\s*min(?:ute)?s?\s+(?:call|chat|conversation)`, 0.20),

		statusRule("profile_viewed", tracker.StatusProfileViewed, `viewed\s+your\s+(?:profile|application)|your\s+application\s+(?:was|has\s+been)\s+viewed`, 0.20),

		statusRule("applied_thanks", tracker.StatusApplied, `thank(?:s|\s+you)\s+for\s+(?:your\s+)?(?:applying|application|interest)`, 0.20),
		statusRule("applied_received", tracker.StatusApplied, `application\s+(?:has\s+been\s+|was\s+)?(?:received|submitted)|successfully\s+(?:applied|submitted)`, 0.20),
	}
}

func stageRules() []Rule {
	return []Rule{
		stageRule("stage_application_review", tracker.StatusApplied, `after\s+(?:careful(?:ly)?\s+)?(?:reviewing|review\s+of)\s+your\s+(?:application|resume|cv)|reviewed\s+your\s+(?:application|resume|background)`),
		stageRule("stage_phone_screen", tracker.StatusPhoneScreen, `(?:after|following)\s+(?:your|the|our)\s+(?:phone|initial|recruiter)\s+(?:screen|call|interview|conversation)`),
		stageRule("stage_technical", tracker.StatusFirstInterview, `(?:after|following)\s+(?:your|the)\s+(?:technical|coding)\s+(?:interview|assessment|screen|challenge)|take[\s-]?home\s+(?:assignment|test|project)`),
		stageRule("stage_onsite", tracker.StatusSecondInterview, `(?:after|following)\s+(?:your|the)\s+(?:onsite|on-site|in-person|virtual\s+onsite)|team\s+interviews?`),
		stageRule("stage_final", tracker.StatusThirdInterview, `(?:after|following)\s+(?:your|the)\s+final\s+(?:interview|round)|(?:executive|leadership|hiring\s+manager)\s+interview`),
	}
}

// jobKeywords are corroborating phrases; each occurrence adds a small weight.
var jobKeywords = []string{
	"application received", "thank you for applying", "thanks for applying", "application status",
	"application submitted", "successfully applied", "your application", "application for",
	"interview invitation", "phone screen", "phone interview", "video interview", "interview scheduled",
	"schedule an interview", "schedule a call", "technical interview", "coding interview",
	"onsite interview", "final round", "next round", "assessment", "take-home", "coding challenge",
	"moving forward", "next steps", "your candidacy", "under review", "shortlisted",
	"we regret to inform", "not moving forward", "other candidates", "position has been filled",
	"offer letter", "job offer", "offer of employment", "pleased to offer",
	"position at", "role at", "opportunity at", "position of", "role of", "opening at", "vacancy",
	"hiring manager", "recruiter", "recruiting", "talent acquisition", "talent team", "people team",
	"human resources", "careers",
	"your resume", "your background", "your experience", "your qualifications",
	"software engineer", "backend engineer", "frontend engineer", "full stack", "engineering manager",
	"join our team", "discuss the role", "discuss the position", "discuss the opportunity",
}

func keywordRules(keywords []string) []Rule {
	rules := make([]Rule, 0, len(keywords))
	for _, kw := range keywords {
		pattern := `(?i)\b` + strings.ReplaceAll(regexp.QuoteMeta(kw), ` `, `\s+`) + `\b`
		rules = append(rules, rule("kw:"+kw, PartText, pattern, CategoryKeyword, 0.03))
	}
	return rules
}

// ignoredCompanies are captured words that never name an employer.
var ignoredCompanies = map[string]bool{
	"the": true, "team": true, "company": true, "position": true, "role": true, "job": true,
	"opportunity": true, "application": true, "interview": true, "regarding": true, "update": true,
	"status": true, "your": true, "our": true, "this": true, "that": true, "us": true, "you": true,
	"careers": true, "jobs": true, "hiring": true, "recruiting": true, "notifications": true,
	"mail": true, "email": true, "info": true, "noreply": true, "no-reply": true,
}
