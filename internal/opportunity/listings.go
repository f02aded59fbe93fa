package opportunity

import (
	"context"
	"errors"
	"sort"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/models"
	"beacon/internal/store"
)

// Pending lists drafts awaiting approval that can still take submissions.
func (c *Controller) Pending(ctx context.Context, actor *models.User) ([]*models.Opportunity, error) {
	if actor.IsAnonymous() {
		return nil, apperrors.NewUnauthorizedError("list pending opportunities")
	}
	now := c.clock.Now()
	today := c.state.Window().Today(now).Midnight(c.state.Window().Location())
	return c.store.Opportunities().Query(ctx, store.OpportunityFilter{
		IsPublic:          store.Bool(false),
		IsArchived:        store.Bool(false),
		SubmissionEndFrom: store.Time(today),
	})
}

// Approved lists approved opportunities scheduled to publish after today.
func (c *Controller) Approved(ctx context.Context, actor *models.User) ([]*models.Opportunity, error) {
	if actor.IsAnonymous() {
		return nil, apperrors.NewUnauthorizedError("list approved opportunities")
	}
	now := c.clock.Now()
	loc := c.state.Window().Location()
	today := c.state.Window().Today(now)
	return c.store.Opportunities().Query(ctx, store.OpportunityFilter{
		IsPublic:           store.Bool(true),
		IsArchived:         store.Bool(false),
		PlannedPublishFrom: store.Time(today.AddDays(1).Midnight(loc)),
		SubmissionEndFrom:  store.Time(today.Midnight(loc)),
	})
}

// Expired lists public opportunities whose submission window has closed.
func (c *Controller) Expired(ctx context.Context, actor *models.User) ([]*models.Opportunity, error) {
	if actor.IsAnonymous() {
		return nil, apperrors.NewUnauthorizedError("list expired opportunities")
	}
	now := c.clock.Now()
	opps, err := c.store.Opportunities().Query(ctx, store.OpportunityFilter{
		IsPublic:            store.Bool(true),
		IsArchived:          store.Bool(false),
		SubmissionEndBefore: store.Time(now),
	})
	if err != nil {
		return nil, err
	}
	return filter(opps, func(o *models.Opportunity) bool { return c.state.IsSubmissionClosed(o, now) }), nil
}

// Listing is the public browse view.
type Listing struct {
	Open     []*models.Opportunity
	Upcoming []*models.Opportunity
}

// Browse returns published opportunities that are open or upcoming. Open ones
// are ordered by deadline, upcoming ones by submission start.
func (c *Controller) Browse(ctx context.Context) (Listing, error) {
	now := c.clock.Now()
	loc := c.state.Window().Location()
	opps, err := c.store.Opportunities().Query(ctx, store.OpportunityFilter{
		IsPublic:             store.Bool(true),
		IsArchived:           store.Bool(false),
		PlannedPublishBefore: store.Time(c.state.Window().Today(now).AddDays(1).Midnight(loc)),
		SubmissionEndFrom:    store.Time(now),
	})
	if err != nil {
		return Listing{}, err
	}

	var out Listing
	for _, o := range opps {
		switch {
		case c.state.IsSubmissionOpen(o, now):
			out.Open = append(out.Open, o)
		case c.state.IsUpcoming(o, now):
			out.Upcoming = append(out.Upcoming, o)
		}
	}
	sort.SliceStable(out.Open, func(i, j int) bool {
		return out.Open[i].SubmissionEnd.Before(out.Open[j].SubmissionEnd)
	})
	sort.SliceStable(out.Upcoming, func(i, j int) bool {
		return out.Upcoming[i].SubmissionStart.Before(out.Upcoming[j].SubmissionStart)
	})
	return out, nil
}

func filter(opps []*models.Opportunity, keep func(*models.Opportunity) bool) []*models.Opportunity {
	out := opps[:0]
	for _, o := range opps {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
