package opportunity

import (
	"context"
	"time"

	"beacon/internal/common/metrics"
	"beacon/internal/events"
	"beacon/internal/models"
	"beacon/internal/notify"
	"beacon/internal/store"
)

// notifyPublished mails the new-opportunity blast once. It runs inside the
// caller's transaction: the row is locked, dispatch is attempted and the
// latch is saved before commit. It reports whether the blast went out.
func (c *Controller) notifyPublished(ctx context.Context, tx store.Repos, id int64) (bool, error) {
	o, err := tx.Opportunities().GetForUpdate(ctx, id)
	if err != nil {
		return false, err
	}
	now := c.clock.Now()
	if o.IsArchived || o.PublishNotificationSent || !c.state.IsPublished(o, now) {
		return false, nil
	}

	recipients, err := c.resolver.ForNewOpportunity(ctx, tx, o)
	if err != nil {
		return false, err
	}
	data, err := c.payload(ctx, tx, o)
	if err != nil {
		return false, err
	}

	res, err := c.sender.Dispatch(ctx, notify.Notification{
		Kind:       notify.KindNewOpportunity,
		Recipients: recipients,
		Data:       data,
		Multi:      true,
		DedupKey:   notify.NewOpportunityKey(o.ID),
	})
	if err != nil {
		return false, err
	}

	publishedAt := now.UTC()
	o.PublishNotificationSent = true
	o.PublishedAt = &publishedAt
	if err := tx.Opportunities().Save(ctx, o); err != nil {
		return false, err
	}

	metrics.LifecycleTransitions.WithLabelValues("notified").Inc()
	c.logger.Info("New opportunity notification sent", map[string]interface{}{
		"opportunityId": o.ID,
		"title":         o.Title,
		"recipients":    len(recipients),
		"sent":          res.Sent,
		"failed":        res.Failed,
		"skipped":       res.Skipped,
	})
	return true, nil
}

func (c *Controller) payload(ctx context.Context, repos store.Repos, o *models.Opportunity) (notify.Payload, error) {
	cats, err := repos.Categories().ByIDs(ctx, o.CategoryIDs)
	if err != nil {
		return notify.Payload{}, err
	}
	view := c.views.Opportunity(o, cats)
	return notify.Payload{Opportunity: &view, BaseURL: c.views.BaseURL()}, nil
}

// send dispatches a notification that is not part of a transition's outcome.
// Failures are logged.
func (c *Controller) send(ctx context.Context, n notify.Notification) {
	res, err := c.sender.Dispatch(ctx, n)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		c.logger.Warn("Notification not fully delivered", map[string]interface{}{
			"kind":  n.Kind,
			"error": err.Error(),
		})
	}
}

// requestApproval confirms the submission to its author and asks reviewers
// to approve it.
func (c *Controller) requestApproval(ctx context.Context, o *models.Opportunity, author *models.User) {
	data, err := c.payload(ctx, c.store, o)
	if err != nil {
		c.logger.Warn("Failed to build approval request", map[string]interface{}{"opportunityId": o.ID, "error": err.Error()})
		return
	}
	c.send(ctx, notify.Notification{
		Kind:       notify.KindPostSubmitted,
		Recipients: []string{author.Email},
		Data:       data,
		Multi:      true,
	})

	reviewers, err := c.resolver.ForApprovalRequest(ctx, c.store)
	if err != nil {
		c.logger.Warn("Failed to resolve reviewers", map[string]interface{}{"opportunityId": o.ID, "error": err.Error()})
		return
	}
	c.send(ctx, notify.Notification{
		Kind:       notify.KindNeedsReview,
		Recipients: reviewers,
		Data:       data,
		Multi:      true,
	})
}

// sendApproved tells the creator their post was approved.
func (c *Controller) sendApproved(ctx context.Context, o *models.Opportunity) {
	if o.CreatedBy == nil {
		return
	}
	data, err := c.payload(ctx, c.store, o)
	if err != nil {
		c.logger.Warn("Failed to build approval notice", map[string]interface{}{"opportunityId": o.ID, "error": err.Error()})
		return
	}
	c.send(ctx, notify.Notification{
		Kind:       notify.KindApproved,
		Recipients: []string{o.CreatedBy.Email},
		Data:       data,
		Multi:      true,
	})
}

// SendDueNotifications runs the publish-notification step for every approved
// opportunity whose planned publish day has arrived and whose blast has not
// gone out. Each opportunity commits on its own; one failure does not stop
// the rest. It returns how many were notified.
func (c *Controller) SendDueNotifications(ctx context.Context) (int, error) {
	ctx, span := c.tracer.Start(ctx, "opportunity.SendDueNotifications")
	var err error
	defer func() { endSpan(span, err) }()

	now := c.clock.Now()
	loc := c.state.Window().Location()
	tomorrow := c.state.Window().Today(now).AddDays(1).Midnight(loc)

	due, err := c.store.Opportunities().Query(ctx, store.OpportunityFilter{
		IsPublic:             store.Bool(true),
		IsArchived:           store.Bool(false),
		NotificationSent:     store.Bool(false),
		PlannedPublishBefore: store.Time(tomorrow),
	})
	if err != nil {
		return 0, err
	}

	var failures []error
	count := 0
	for _, o := range due {
		var notified bool
		txErr := c.store.InTx(ctx, func(ctx context.Context, tx store.Repos) error {
			var err error
			notified, err = c.notifyPublished(ctx, tx, o.ID)
			return err
		})
		if txErr != nil {
			failures = append(failures, txErr)
			c.logger.Error("Due notification failed", map[string]interface{}{
				"opportunityId": o.ID,
				"error":         txErr.Error(),
			})
			continue
		}
		if !notified {
			continue
		}
		count++
		c.emit(ctx, events.New(events.OpportunityNotified, o.ID, nil, now))
		if fresh, err := c.store.Opportunities().Get(ctx, o.ID); err == nil {
			c.syncIndex(ctx, fresh)
		}
	}

	c.logger.Info("Due notifications processed", map[string]interface{}{
		"candidates": len(due),
		"notified":   count,
		"failed":     len(failures),
	})
	err = joinErrors(failures)
	return count, err
}

// DigestResult reports one newsletter run.
type DigestResult struct {
	Opportunities int
	notify.Result
}

// SendDigest mails newsletter subscribers the opportunities published since
// the previous digest that still accept submissions. Nothing is sent, and the
// digest time is not advanced, when there is nothing new.
func (c *Controller) SendDigest(ctx context.Context) (DigestResult, error) {
	ctx, span := c.tracer.Start(ctx, "opportunity.SendDigest")
	defer span.End()

	now := c.clock.Now()
	loc := c.state.Window().Location()
	status, err := c.store.Status().Get(ctx)
	if err != nil {
		return DigestResult{}, err
	}

	filter := store.OpportunityFilter{
		IsPublic:          store.Bool(true),
		IsArchived:        store.Bool(false),
		SubmissionEndFrom: store.Time(c.state.Window().Today(now).Midnight(loc)),
	}
	if status.LastDigestAt != nil {
		filter.PublishedAfter = store.Time(*status.LastDigestAt)
	} else {
		filter.PublishedAfter = store.Time(time.Time{})
	}
	opps, err := c.store.Opportunities().Query(ctx, filter)
	if err != nil {
		return DigestResult{}, err
	}
	if len(opps) == 0 {
		c.logger.Info("No new opportunities for digest", nil)
		return DigestResult{}, nil
	}

	recipients, err := c.store.Vendors().NewsletterEmails(ctx)
	if err != nil {
		return DigestResult{}, err
	}
	data := notify.Payload{BaseURL: c.views.BaseURL()}
	for _, o := range opps {
		cats, err := c.store.Categories().ByIDs(ctx, o.CategoryIDs)
		if err != nil {
			return DigestResult{}, err
		}
		data.Opportunities = append(data.Opportunities, c.views.Opportunity(o, cats))
	}

	res, err := c.sender.Dispatch(ctx, notify.Notification{
		Kind:       notify.KindDigest,
		Recipients: recipients,
		Data:       data,
		Multi:      true,
	})
	if err != nil {
		return DigestResult{}, err
	}
	if err := c.store.Status().SetLastDigest(ctx, now.UTC()); err != nil {
		return DigestResult{}, err
	}

	c.emit(ctx, events.New(events.DigestSent, 0, nil, now).With("opportunities", len(opps)))
	c.logger.Info("Digest sent", map[string]interface{}{
		"opportunities": len(opps),
		"recipients":    len(recipients),
		"sent":          res.Sent,
		"failed":        res.Failed,
	})
	return DigestResult{Opportunities: len(opps), Result: res}, nil
}
