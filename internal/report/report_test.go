package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/clock"
	"beacon/internal/models"
	"beacon/internal/notify"
	"beacon/internal/opportunity"
)

func TestWriteVendorTSV(t *testing.T) {
	vendors := []*models.Vendor{
		{
			FirstName:      "Ada",
			LastName:       "Lovelace",
			BusinessName:   "Acme",
			Email:          "ada@acme.example",
			WomanOwned:     true,
			CategoryIDs:    []int64{2, 1, 9},
			OpportunityIDs: []int64{7},
		},
		{BusinessName: "Solo", Email: "solo@example.com"},
	}
	names := Names{
		Categories:    map[int64]string{1: "Snow Removal", 2: "Paint"},
		Opportunities: map[int64]string{7: "Road salt"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteVendorTSV(&buf, vendors, names))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	header := strings.Split(lines[0], "\t")
	require.Len(t, header, len(models.VendorExportHeader))
	for i, h := range models.VendorExportHeader {
		assert.True(t, strings.EqualFold(h, header[i]), "column %d: %q", i, header[i])
	}

	first := strings.Split(lines[1], "\t")
	require.Len(t, first, len(models.VendorExportHeader))
	assert.Equal(t, "Acme", first[2])
	assert.Equal(t, "true", first[6])
	assert.Equal(t, "9; Paint; Snow Removal", first[9], "unknown ids fall back to the id")
	assert.Equal(t, "Road salt", first[10])

	second := strings.Split(lines[2], "\t")
	assert.Equal(t, "solo@example.com", second[3])
}

func TestOpportunities(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	state := opportunity.NewState(clock.NewWindow(time.UTC))
	opps := []*models.Opportunity{
		{
			ID:              4,
			Title:           "Road salt",
			IsPublic:        true,
			PlannedPublish:  now.AddDate(0, 0, -1),
			SubmissionStart: now.AddDate(0, 0, -1),
			SubmissionEnd:   now.AddDate(0, 0, 5),
		},
		{
			ID:              5,
			Title:           "Bridge paint",
			PlannedPublish:  now.AddDate(0, 0, 3),
			SubmissionStart: now.AddDate(0, 0, 3),
			SubmissionEnd:   now.AddDate(0, 0, 9),
		},
	}

	var buf bytes.Buffer
	Opportunities(&buf, "Pending", opps, state, now)
	out := buf.String()

	assert.Contains(t, out, "Road salt")
	assert.Contains(t, out, string(opportunity.PhaseOpen))
	assert.Contains(t, out, string(opportunity.PhaseDraft))
	assert.Contains(t, out, "2026-03-15 15:00")
	assert.Contains(t, strings.ToLower(out), "2 total")
}

func TestDispatch(t *testing.T) {
	var buf bytes.Buffer
	Dispatch(&buf, "Digest", notify.Result{
		Attempted: 3, Sent: 2, Failed: 1,
		Failures: []error{errors.New("b@example.com: mailbox full")},
	})
	assert.Contains(t, buf.String(), "mailbox full")
}

func TestQuestions(t *testing.T) {
	asked := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	Questions(&buf, "Questions", []*models.Question{
		{ID: 1, QuestionText: "Is a site visit required?", AskedAt: asked, AskedBy: &models.Vendor{Email: "v@example.com"}, AnswerText: "No."},
		{ID: 2, QuestionText: "Can we bid jointly?", AskedAt: asked},
	}, time.UTC)

	out := buf.String()
	assert.Contains(t, out, "v@example.com")
	assert.Contains(t, out, "Is a site visit required?")
	assert.Contains(t, out, "2024-03-01")
}

func TestBidDocuments(t *testing.T) {
	var buf bytes.Buffer
	BidDocuments(&buf, "Bid documents", []models.RequiredBidDocument{
		{ID: 1, DisplayName: "Bid bond", Description: "Five percent of the bid"},
		{ID: 2, DisplayName: "Insurance certificate", Description: "Liability coverage", FormHref: "https://example.gov/ins.pdf"},
	})

	out := buf.String()
	assert.Contains(t, out, "Bid bond")
	assert.Contains(t, out, "https://example.gov/ins.pdf")
}

func TestGroup(t *testing.T) {
	assert.Equal(t, "", group(nil, nil))
	assert.Equal(t, "A; B", group([]int64{2, 1, 3}, map[int64]string{1: "B", 2: "A", 3: "A"}))
}
