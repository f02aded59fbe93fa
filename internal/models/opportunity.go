package models

import (
	"sort"
	"time"
)

// Opportunity is a procurement listing with publish, submission and Q&A
// windows. Derived presentation state lives in the opportunity package and is
// never stored here.
type Opportunity struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	DepartmentID *int64 `json:"departmentId,omitempty"`

	PlannedPublish  time.Time  `json:"plannedPublish"`
	SubmissionStart time.Time  `json:"submissionStart"`
	SubmissionEnd   time.Time  `json:"submissionEnd"`
	QAEnabled       bool       `json:"qaEnabled"`
	QAStart         *time.Time `json:"qaStart,omitempty"`
	QAEnd           *time.Time `json:"qaEnd,omitempty"`

	IsPublic                bool       `json:"isPublic"`
	IsArchived              bool       `json:"isArchived"`
	PublishedAt             *time.Time `json:"publishedAt,omitempty"`
	PublishNotificationSent bool       `json:"publishNotificationSent"`

	CreatedByID int64  `json:"createdById"`
	ContactID   int64  `json:"contactId"`
	UpdatedByID *int64 `json:"updatedById,omitempty"`

	// Loaded references. The store fills these on Get.
	CreatedBy *User `json:"createdBy,omitempty"`
	Contact   *User `json:"contact,omitempty"`

	CategoryIDs []int64 `json:"categoryIds"`
	// VendorDocumentsNeeded holds RequiredBidDocument ids.
	VendorDocumentsNeeded []int64 `json:"vendorDocumentsNeeded,omitempty"`

	SubmissionKind SubmissionKind    `json:"submissionKind"`
	SubmissionData map[string]string `json:"submissionData,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (o *Opportunity) Clone() *Opportunity {
	if o == nil {
		return nil
	}
	c := *o
	c.CategoryIDs = append([]int64(nil), o.CategoryIDs...)
	if o.VendorDocumentsNeeded != nil {
		c.VendorDocumentsNeeded = append([]int64(nil), o.VendorDocumentsNeeded...)
	}
	if o.SubmissionData != nil {
		c.SubmissionData = make(map[string]string, len(o.SubmissionData))
		for k, v := range o.SubmissionData {
			c.SubmissionData[k] = v
		}
	}
	c.QAStart = cloneTime(o.QAStart)
	c.QAEnd = cloneTime(o.QAEnd)
	c.PublishedAt = cloneTime(o.PublishedAt)
	if o.DepartmentID != nil {
		d := *o.DepartmentID
		c.DepartmentID = &d
	}
	if o.UpdatedByID != nil {
		u := *o.UpdatedByID
		c.UpdatedByID = &u
	}
	return &c
}

// OwnerEmails returns the creator and contact addresses that are known.
func (o *Opportunity) OwnerEmails() []string {
	var out []string
	if o.CreatedBy != nil && o.CreatedBy.Email != "" {
		out = append(out, o.CreatedBy.Email)
	}
	if o.Contact != nil && o.Contact.Email != "" {
		out = append(out, o.Contact.Email)
	}
	return out
}

// OpportunityDocument is a file attached to an opportunity. Name is the
// display title given at upload.
type OpportunityDocument struct {
	ID            int64     `json:"id"`
	OpportunityID int64     `json:"opportunityId"`
	Name          string    `json:"name"`
	Href          string    `json:"href"`
	CreatedAt     time.Time `json:"createdAt"`
}

// HasVendorDocuments reports whether bidders must supply any documents.
func (o *Opportunity) HasVendorDocuments() bool {
	return len(o.VendorDocumentsNeeded) > 0
}

// RequiredBidDocument is something a vendor provides when bidding, such as
// an insurance certificate or a bid bond. FormHref links to a sample form.
type RequiredBidDocument struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	FormHref    string `json:"formHref,omitempty"`
}

// DocumentUpload is a file already placed in storage by the caller, waiting
// to be attached.
type DocumentUpload struct {
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Href     string `json:"href"`
}

// Category is one entry of the commodity taxonomy vendors subscribe to.
type Category struct {
	ID          int64  `json:"id"`
	NIGPCode    string `json:"nigpCode,omitempty"`
	Name        string `json:"name"`
	Subcategory string `json:"subcategory,omitempty"`
}

func (c Category) FriendlyName() string {
	if c.Subcategory == "" {
		return c.Name
	}
	return c.Name + " - " + c.Subcategory
}

type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AppStatus holds process-wide bookkeeping such as the last digest run.
type AppStatus struct {
	LastDigestAt *time.Time `json:"lastDigestAt,omitempty"`
}

// UniqueIDs returns ids sorted with duplicates removed. Category and
// subscription sets are kept in this form.
func UniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// Intersects reports whether two id sets share a member.
func Intersects(a, b []int64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[int64]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; ok {
			return true
		}
	}
	return false
}

// ContainsID reports whether id is in ids.
func ContainsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
