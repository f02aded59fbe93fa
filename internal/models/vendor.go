package models

import (
	"strconv"
	"strings"
	"time"
)

// Vendor is an external business identified by email.
type Vendor struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	BusinessName string `json:"businessName"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	FaxNumber    string `json:"faxNumber,omitempty"`

	MinorityOwned      bool `json:"minorityOwned"`
	VeteranOwned       bool `json:"veteranOwned"`
	WomanOwned         bool `json:"womanOwned"`
	DisadvantagedOwned bool `json:"disadvantagedOwned"`

	CategoryIDs            []int64 `json:"categoryIds"`
	OpportunityIDs         []int64 `json:"opportunityIds"`
	SubscribedToNewsletter bool    `json:"subscribedToNewsletter"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (v *Vendor) Clone() *Vendor {
	if v == nil {
		return nil
	}
	c := *v
	c.CategoryIDs = append([]int64(nil), v.CategoryIDs...)
	c.OpportunityIDs = append([]int64(nil), v.OpportunityIDs...)
	return &c
}

// VendorExportHeader is the column order of ExportRow.
var VendorExportHeader = []string{
	"first_name", "last_name", "business_name", "email", "phone_number",
	"minority_owned", "woman_owned", "veteran_owned", "disadvantaged_owned",
	"categories", "opportunities",
}

// ExportRow flattens the vendor for the signup download.
func (v *Vendor) ExportRow() []string {
	return []string{
		v.FirstName,
		v.LastName,
		v.BusinessName,
		v.Email,
		v.PhoneNumber,
		strconv.FormatBool(v.MinorityOwned),
		strconv.FormatBool(v.WomanOwned),
		strconv.FormatBool(v.VeteranOwned),
		strconv.FormatBool(v.DisadvantagedOwned),
		joinIDs(v.CategoryIDs),
		joinIDs(v.OpportunityIDs),
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
