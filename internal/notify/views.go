package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"beacon/internal/models"
)

const dateLayout = "January 2, 2006"

// Payload is the data every email template renders from. Unused fields stay nil.
type Payload struct {
	Opportunity   *OpportunityView
	Opportunities []OpportunityView
	Question      *QuestionView
	Vendor        *VendorView
	BaseURL       string
}

type OpportunityView struct {
	ID              int64
	Title           string
	Description     template.HTML
	URL             string
	AdminURL        string
	PlannedPublish  string
	SubmissionStart string
	SubmissionEnd   string
	Categories      []string
	Instructions    template.HTML
	CreatedBy       string
	Contact         string
}

type QuestionView struct {
	ID       int64
	Question template.HTML
	Answer   template.HTML
	AskedBy  string
	AskedAt  string
}

type VendorView struct {
	Email        string
	BusinessName string
	Categories   []string
}

// Views turns entities into template data. User-supplied text passes through
// a UGC sanitizer before it is marked safe.
type Views struct {
	baseURL string
	loc     *time.Location
	policy  *bluemonday.Policy
}

func NewViews(baseURL string, loc *time.Location) *Views {
	if loc == nil {
		loc = time.UTC
	}
	return &Views{
		baseURL: strings.TrimRight(baseURL, "/"),
		loc:     loc,
		policy:  bluemonday.UGCPolicy(),
	}
}

func (v *Views) BaseURL() string { return v.baseURL }

func (v *Views) sanitize(s string) template.HTML {
	return template.HTML(v.policy.Sanitize(s))
}

// paragraphs sanitizes plain text and keeps its line breaks.
func (v *Views) paragraphs(s string) template.HTML {
	clean := v.policy.Sanitize(s)
	return template.HTML(strings.ReplaceAll(clean, "\n", "<br>"))
}

func (v *Views) date(t time.Time) string {
	return t.In(v.loc).Format(dateLayout)
}

func (v *Views) Opportunity(o *models.Opportunity, categories []models.Category) OpportunityView {
	view := OpportunityView{
		ID:              o.ID,
		Title:           o.Title,
		Description:     v.sanitize(o.Description),
		URL:             fmt.Sprintf("%s/opportunities/%d", v.baseURL, o.ID),
		AdminURL:        fmt.Sprintf("%s/admin/opportunities/%d", v.baseURL, o.ID),
		PlannedPublish:  v.date(o.PlannedPublish),
		SubmissionStart: v.date(o.SubmissionStart),
		SubmissionEnd:   v.date(o.SubmissionEnd),
	}
	for _, c := range categories {
		view.Categories = append(view.Categories, c.FriendlyName())
	}
	if b, ok := models.LookupSubmissionKind(o.SubmissionKind); ok {
		view.Instructions = v.sanitize(b.Instructions(o, v.baseURL))
	}
	if o.CreatedBy != nil {
		view.CreatedBy = o.CreatedBy.DisplayName()
	}
	if o.Contact != nil {
		view.Contact = o.Contact.DisplayName()
	}
	return view
}

func (v *Views) Question(q *models.Question) QuestionView {
	view := QuestionView{
		ID:       q.ID,
		Question: v.paragraphs(q.QuestionText),
		Answer:   v.paragraphs(q.AnswerText),
		AskedAt:  v.date(q.AskedAt),
	}
	if q.AskedBy != nil {
		view.AskedBy = q.AskedBy.BusinessName
		if view.AskedBy == "" {
			view.AskedBy = q.AskedBy.Email
		}
	}
	return view
}

func (v *Views) Vendor(vendor *models.Vendor, categories []models.Category) VendorView {
	view := VendorView{Email: vendor.Email, BusinessName: vendor.BusinessName}
	for _, c := range categories {
		view.Categories = append(view.Categories, c.FriendlyName())
	}
	return view
}
