package models

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/validation"
)

// SubmissionKind says how vendors respond to an opportunity. The set is closed.
type SubmissionKind string

const (
	SubmissionEmail        SubmissionKind = "email"
	SubmissionExternalForm SubmissionKind = "external-form"
	SubmissionNone         SubmissionKind = "none"
)

// SubmissionBehavior is the per-kind behavior table entry.
type SubmissionBehavior struct {
	Kind               SubmissionKind
	Label              string
	HelpText           string
	Schema             validation.Schema
	HasSubmissionsPage bool

	instructions func(o *Opportunity, baseURL string) string
	navURL       func(o *Opportunity) string
}

// Instructions renders the HTML telling a vendor how to respond.
func (b SubmissionBehavior) Instructions(o *Opportunity, baseURL string) string {
	return b.instructions(o, strings.TrimRight(baseURL, "/"))
}

// NavURL is the staff link to collected submissions, or "".
func (b SubmissionBehavior) NavURL(o *Opportunity) string {
	if b.navURL == nil {
		return ""
	}
	return b.navURL(o)
}

var submissionKinds = map[SubmissionKind]SubmissionBehavior{}

func registerSubmissionKind(b SubmissionBehavior) {
	if _, dup := submissionKinds[b.Kind]; dup {
		panic(fmt.Sprintf("submission kind %q registered twice", b.Kind))
	}
	submissionKinds[b.Kind] = b
}

func init() {
	registerSubmissionKind(SubmissionBehavior{
		Kind:     SubmissionNone,
		Label:    "Refer to the opportunity documents",
		HelpText: "Vendors respond as described in the attached documents.",
		Schema: validation.Schema{
			"type":                 "object",
			"additionalProperties": false,
		},
		instructions: func(_ *Opportunity, _ string) string {
			return "<p>Please refer to the opportunity document for more information.</p>"
		},
	})

	registerSubmissionKind(SubmissionBehavior{
		Kind:     SubmissionEmail,
		Label:    "Submit responses via email address",
		HelpText: "Please put the submission email address below.",
		Schema: validation.Schema{
			"type": "object",
			"properties": map[string]interface{}{
				"email": map[string]interface{}{"type": "string", "format": "email"},
			},
			"required":             []interface{}{"email"},
			"additionalProperties": false,
		},
		instructions: func(o *Opportunity, _ string) string {
			addr := template.HTMLEscapeString(o.SubmissionData["email"])
			return fmt.Sprintf(
				`<p>To submit a proposal for this opportunity, please email <a href="mailto:%s">%s</a>.</p>`,
				addr, addr,
			)
		},
	})

	registerSubmissionKind(SubmissionBehavior{
		Kind:               SubmissionExternalForm,
		Label:              "Submit responses via an online form",
		HelpText:           "Create the response form and paste its public and admin links below.",
		HasSubmissionsPage: true,
		Schema: validation.Schema{
			"type": "object",
			"properties": map[string]interface{}{
				"form_url":      map[string]interface{}{"type": "string", "format": "uri"},
				"responses_url": map[string]interface{}{"type": "string", "format": "uri"},
			},
			"required":             []interface{}{"form_url"},
			"additionalProperties": false,
		},
		instructions: func(o *Opportunity, baseURL string) string {
			return fmt.Sprintf(
				`<p>To submit a proposal for this opportunity, please visit the <a href="%s/opportunities/%d/propose">submissions page</a>.</p>`,
				template.HTMLEscapeString(baseURL), o.ID,
			)
		},
		navURL: func(o *Opportunity) string {
			return o.SubmissionData["responses_url"]
		},
	})
}

// LookupSubmissionKind returns the behavior for kind.
func LookupSubmissionKind(kind SubmissionKind) (SubmissionBehavior, bool) {
	b, ok := submissionKinds[kind]
	return b, ok
}

// SubmissionKinds lists every registered kind ordered by name.
func SubmissionKinds() []SubmissionBehavior {
	out := make([]SubmissionBehavior, 0, len(submissionKinds))
	for _, b := range submissionKinds {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func (k SubmissionKind) Valid() bool {
	_, ok := submissionKinds[k]
	return ok
}

// ValidateSubmissionData checks data against the kind's schema.
func ValidateSubmissionData(kind SubmissionKind, data map[string]string) ([]apperrors.FieldError, error) {
	b, ok := submissionKinds[kind]
	if !ok {
		return []apperrors.FieldError{{
			Field:   "submissionKind",
			Rule:    "enum",
			Message: fmt.Sprintf("unknown submission kind %q", kind),
		}}, nil
	}
	doc := make(map[string]interface{}, len(data))
	for k, v := range data {
		doc[k] = v
	}
	return validation.Validate(b.Schema, doc, "submissionData")
}
