package opportunity

import (
	"time"

	"beacon/internal/clock"
	"beacon/internal/models"
)

// Phase is the presentation state shown to users.
type Phase string

const (
	PhaseArchived Phase = "archived"
	// PhaseDraft is any opportunity not yet approved for public display.
	PhaseDraft Phase = "pending-approval"
	// PhaseScheduled is approved but before its planned publish day.
	PhaseScheduled Phase = "scheduled"
	PhaseUpcoming  Phase = "upcoming"
	PhaseOpen      Phase = "open"
	PhaseClosed    Phase = "closed"
)

// State evaluates the derived predicates of opportunities. Nothing it
// computes is stored; every call reads the entity fresh against now.
type State struct {
	window clock.Window
}

func NewState(window clock.Window) State {
	return State{window: window}
}

func (s State) Window() clock.Window { return s.window }

// IsPublished: planned publish day reached and approved.
func (s State) IsPublished(o *models.Opportunity, now time.Time) bool {
	return o.IsPublic && s.window.Reached(now, o.PlannedPublish)
}

// IsSubmissionClosed compares the exact instant; the end is a cutoff.
func (s State) IsSubmissionClosed(o *models.Opportunity, now time.Time) bool {
	return o.IsPublic && s.window.IsPast(now, o.SubmissionEnd)
}

func (s State) IsSubmissionOpen(o *models.Opportunity, now time.Time) bool {
	return o.IsPublic &&
		s.window.Reached(now, o.SubmissionStart) &&
		s.window.Reached(now, o.PlannedPublish) &&
		!s.IsSubmissionClosed(o, now)
}

// IsUpcoming: published, submissions not yet open and not closed.
func (s State) IsUpcoming(o *models.Opportunity, now time.Time) bool {
	return o.IsPublic &&
		s.window.Reached(now, o.PlannedPublish) &&
		!s.IsSubmissionOpen(o, now) &&
		!s.IsSubmissionClosed(o, now)
}

// AcceptingQuestions is false when either Q&A bound is unset.
func (s State) AcceptingQuestions(o *models.Opportunity, now time.Time) bool {
	if !o.QAEnabled || o.QAStart == nil || o.QAEnd == nil {
		return false
	}
	return s.window.IsActive(now, *o.QAStart, *o.QAEnd)
}

func (s State) QAClosed(o *models.Opportunity, now time.Time) bool {
	if !o.QAEnabled || o.QAEnd == nil {
		return false
	}
	return s.window.IsPast(now, *o.QAEnd)
}

func HasDocuments(docs []models.OpportunityDocument) bool {
	return len(docs) > 0
}

// Phase folds the predicates into one presentation state. Closed dominates
// open and upcoming.
func (s State) Phase(o *models.Opportunity, now time.Time) Phase {
	switch {
	case o.IsArchived:
		return PhaseArchived
	case !o.IsPublic:
		return PhaseDraft
	case !s.IsPublished(o, now):
		return PhaseScheduled
	case s.IsSubmissionClosed(o, now):
		return PhaseClosed
	case s.IsSubmissionOpen(o, now):
		return PhaseOpen
	default:
		return PhaseUpcoming
	}
}

// Snapshot is every predicate evaluated at one instant.
type Snapshot struct {
	Phase              Phase `json:"phase"`
	Published          bool  `json:"published"`
	Upcoming           bool  `json:"upcoming"`
	SubmissionOpen     bool  `json:"submissionOpen"`
	SubmissionClosed   bool  `json:"submissionClosed"`
	AcceptingQuestions bool  `json:"acceptingQuestions"`
	QAClosed           bool  `json:"qaClosed"`
	HasDocuments       bool  `json:"hasDocuments"`
}

func (s State) Snapshot(o *models.Opportunity, docs []models.OpportunityDocument, now time.Time) Snapshot {
	return Snapshot{
		Phase:              s.Phase(o, now),
		Published:          s.IsPublished(o, now),
		Upcoming:           s.IsUpcoming(o, now),
		SubmissionOpen:     s.IsSubmissionOpen(o, now),
		SubmissionClosed:   s.IsSubmissionClosed(o, now),
		AcceptingQuestions: s.AcceptingQuestions(o, now),
		QAClosed:           s.QAClosed(o, now),
		HasDocuments:       HasDocuments(docs),
	}
}
