package opportunity

import (
	"strings"
	"time"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/models"
)

// Input carries the caller-editable fields of an opportunity. Lifecycle
// flags are not part of it; PublishNotificationSent is accepted so decoded
// payloads round-trip and is otherwise ignored.
type Input struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	DepartmentID *int64 `json:"departmentId,omitempty"`

	PlannedPublish  time.Time  `json:"plannedPublish"`
	SubmissionStart time.Time  `json:"submissionStart"`
	SubmissionEnd   time.Time  `json:"submissionEnd"`
	QAEnabled       bool       `json:"qaEnabled"`
	QAStart         *time.Time `json:"qaStart,omitempty"`
	QAEnd           *time.Time `json:"qaEnd,omitempty"`

	// ContactID 0 keeps the current contact, or makes the acting user the
	// contact of a new opportunity.
	ContactID   int64   `json:"contactId"`
	CategoryIDs []int64 `json:"categoryIds"`

	// VendorDocumentsNeeded lists RequiredBidDocument ids bidders must supply.
	VendorDocumentsNeeded []int64 `json:"vendorDocumentsNeeded,omitempty"`

	SubmissionKind models.SubmissionKind `json:"submissionKind"`
	SubmissionData map[string]string     `json:"submissionData,omitempty"`

	PublishNotificationSent *bool `json:"publishNotificationSent,omitempty"`
}

// FromOpportunity returns the editable fields of o, for read-modify-update callers.
func FromOpportunity(o *models.Opportunity) Input {
	c := o.Clone()
	return Input{
		Title:           c.Title,
		Description:     c.Description,
		DepartmentID:    c.DepartmentID,
		PlannedPublish:  c.PlannedPublish,
		SubmissionStart: c.SubmissionStart,
		SubmissionEnd:   c.SubmissionEnd,
		QAEnabled:       c.QAEnabled,
		QAStart:         c.QAStart,
		QAEnd:           c.QAEnd,
		ContactID:       c.ContactID,
		CategoryIDs:     c.CategoryIDs,
		SubmissionKind:  c.SubmissionKind,
		SubmissionData:  c.SubmissionData,

		VendorDocumentsNeeded: c.VendorDocumentsNeeded,
	}
}

func required(field string) apperrors.FieldError {
	return apperrors.FieldError{Field: field, Rule: "required", Message: "is required"}
}

func order(field, after string) apperrors.FieldError {
	return apperrors.FieldError{Field: field, Rule: "order", Message: "must not be before " + after}
}

// Validate returns every field problem at once. strict adds the ordering
// rules for the submission and Q&A pairs.
func (in Input) Validate(strict bool) ([]apperrors.FieldError, error) {
	var fields []apperrors.FieldError
	if strings.TrimSpace(in.Title) == "" {
		fields = append(fields, required("title"))
	}
	if in.PlannedPublish.IsZero() {
		fields = append(fields, required("plannedPublish"))
	}
	if in.SubmissionStart.IsZero() {
		fields = append(fields, required("submissionStart"))
	}
	if in.SubmissionEnd.IsZero() {
		fields = append(fields, required("submissionEnd"))
	}
	if in.QAEnabled {
		if in.QAStart == nil {
			fields = append(fields, required("qaStart"))
		}
		if in.QAEnd == nil {
			fields = append(fields, required("qaEnd"))
		}
	}

	if strict {
		if !in.SubmissionStart.IsZero() && !in.SubmissionEnd.IsZero() && in.SubmissionEnd.Before(in.SubmissionStart) {
			fields = append(fields, order("submissionEnd", "submissionStart"))
		}
		if in.QAEnabled && in.QAStart != nil && in.QAEnd != nil && in.QAEnd.Before(*in.QAStart) {
			fields = append(fields, order("qaEnd", "qaStart"))
		}
	}

	kind := in.SubmissionKind
	if kind == "" {
		kind = models.SubmissionNone
	}
	kindFields, err := models.ValidateSubmissionData(kind, in.SubmissionData)
	if err != nil {
		return nil, err
	}
	fields = append(fields, kindFields...)
	return fields, nil
}

// apply copies the editable fields onto o. Lifecycle flags are untouched.
func (in Input) apply(o *models.Opportunity, actor *models.User) {
	o.Title = strings.TrimSpace(in.Title)
	o.Description = in.Description
	o.DepartmentID = in.DepartmentID
	o.PlannedPublish = in.PlannedPublish
	o.SubmissionStart = in.SubmissionStart
	o.SubmissionEnd = in.SubmissionEnd
	o.QAEnabled = in.QAEnabled
	if in.QAEnabled {
		o.QAStart, o.QAEnd = in.QAStart, in.QAEnd
	} else {
		o.QAStart, o.QAEnd = nil, nil
	}
	if in.ContactID != 0 {
		o.ContactID = in.ContactID
	} else if o.ContactID == 0 {
		o.ContactID = actor.ID
	}
	o.CategoryIDs = models.UniqueIDs(in.CategoryIDs)
	o.VendorDocumentsNeeded = models.UniqueIDs(in.VendorDocumentsNeeded)
	o.SubmissionKind = in.SubmissionKind
	if o.SubmissionKind == "" {
		o.SubmissionKind = models.SubmissionNone
	}
	o.SubmissionData = nil
	if len(in.SubmissionData) > 0 {
		o.SubmissionData = make(map[string]string, len(in.SubmissionData))
		for k, v := range in.SubmissionData {
			o.SubmissionData[k] = v
		}
	}
}
