package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[Kind]string{
	KindNewOpportunity:           "A new opportunity from Beacon!",
	KindPostSubmitted:            "Your post has been sent for approval",
	KindNeedsReview:              "A new Beacon post needs review",
	KindApproved:                 "Your opportunity post was approved!",
	KindQuestionAsked:            "New question on Beacon",
	KindQuestionAnswered:         "New answer to a question on Beacon",
	KindVendorWelcome:            "Thank you for signing up!",
	KindVendorSignedUp:           "A new vendor has signed up on Beacon",
	KindSubscriptionConfirmation: "Subscription confirmation from Beacon",
	KindDigest:                   "Your biweekly Beacon opportunity summary",
}

// Rendered is a template expanded for one notification.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Templates holds one parsed template per Kind.
type Templates struct {
	byKind map[Kind]*template.Template
}

// LoadTemplates parses the embedded layout and every kind template.
func LoadTemplates() (*Templates, error) {
	t := &Templates{byKind: make(map[Kind]*template.Template, len(subjects))}
	for kind := range subjects {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		t.byKind[kind] = tmpl
	}
	return t, nil
}

// MustLoadTemplates panics when the embedded templates are broken.
func MustLoadTemplates() *Templates {
	t, err := LoadTemplates()
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Templates) Render(kind Kind, data Payload) (*Rendered, error) {
	tmpl, ok := t.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no template for notification kind %q", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}
	body := buf.String()
	text, err := PlainText(body)
	if err != nil {
		return nil, err
	}
	return &Rendered{Subject: subjects[kind], HTML: body, Text: text}, nil
}

// PlainText derives a text body from rendered HTML. Links keep their target
// in parentheses.
func PlainText(htmlBody string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("parse html body: %w", err)
	}
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		label := strings.TrimSpace(s.Text())
		if !ok || href == "" || href == label {
			return
		}
		s.ReplaceWithHtml(html.EscapeString(fmt.Sprintf("%s (%s)", label, href)))
	})
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, li, h2, h3, blockquote, ul").AppendHtml("\n")

	var lines []string
	blank := false
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		lines = append(lines, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
