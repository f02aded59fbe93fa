// Package report renders listings and exports for the admin command line.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"beacon/internal/models"
	"beacon/internal/notify"
	"beacon/internal/opportunity"
)

const dateLayout = "2006-01-02"

// Opportunities writes one row per opportunity with its phase at now.
// Dates are shown in the display timezone of state.
func Opportunities(w io.Writer, title string, opps []*models.Opportunity, state opportunity.State, now time.Time) {
	loc := state.Window().Location()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"ID", "Title", "Phase", "Publish", "Opens", "Closes", "Notified"})
	for _, o := range opps {
		t.AppendRow(table.Row{
			o.ID,
			text.Trim(o.Title, 48),
			state.Phase(o, now),
			o.PlannedPublish.In(loc).Format(dateLayout),
			o.SubmissionStart.In(loc).Format(dateLayout),
			o.SubmissionEnd.In(loc).Format("2006-01-02 15:04"),
			yesNo(o.PublishNotificationSent),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d total", len(opps))})
	t.Render()
}

// Dispatch summarizes one notification run.
func Dispatch(w io.Writer, title string, res notify.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Attempted", "Sent", "Failed", "Skipped"})
	t.AppendRow(table.Row{res.Attempted, res.Sent, res.Failed, res.Skipped})
	if len(res.Failures) > 0 {
		t.AppendSeparator()
	}
	for _, err := range res.Failures {
		t.AppendRow(table.Row{"failed", err.Error()})
	}
	t.Render()
}

// Questions writes one row per question. Unanswered questions show an
// empty answer.
func Questions(w io.Writer, title string, qs []*models.Question, loc *time.Location) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"ID", "Asked", "Asked by", "Question", "Answer", "Edited"})
	for _, q := range qs {
		askedBy := ""
		if q.AskedBy != nil {
			askedBy = q.AskedBy.Email
		}
		t.AppendRow(table.Row{
			q.ID,
			q.AskedAt.In(loc).Format(dateLayout),
			askedBy,
			text.Trim(q.QuestionText, 60),
			text.Trim(q.AnswerText, 60),
			yesNo(q.Edited),
		})
	}
	t.Render()
}

// BidDocuments lists what bidders must supply with their bid.
func BidDocuments(w io.Writer, title string, docs []models.RequiredBidDocument) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"ID", "Document", "Description", "Form"})
	for _, d := range docs {
		t.AppendRow(table.Row{d.ID, d.DisplayName, text.Trim(d.Description, 60), d.FormHref})
	}
	t.Render()
}

// Names resolves the id sets of an export row. Missing ids are written as
// the id itself.
type Names struct {
	Categories    map[int64]string
	Opportunities map[int64]string
}

// WriteVendorTSV writes the tab-separated vendor export: a header line then
// one line per vendor. Category and opportunity groups are deduplicated,
// sorted and joined with "; ".
func WriteVendorTSV(w io.Writer, vendors []*models.Vendor, names Names) error {
	t := table.NewWriter()
	header := make(table.Row, len(models.VendorExportHeader))
	for i, h := range models.VendorExportHeader {
		header[i] = h
	}
	t.AppendHeader(header)

	for _, v := range vendors {
		row := v.ExportRow()
		row[9] = group(v.CategoryIDs, names.Categories)
		row[10] = group(v.OpportunityIDs, names.Opportunities)
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		t.AppendRow(r)
	}

	out := t.RenderTSV()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err := io.WriteString(w, out)
	return err
}

func group(ids []int64, names map[int64]string) string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := names[id]
		if !ok {
			name = strconv.FormatInt(id, 10)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return strings.Join(out, "; ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
