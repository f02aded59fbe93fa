// Package opportunity owns the opportunity lifecycle: the derived
// presentation predicates, the edit and view gates, and the create, update,
// publish and archive transitions with their notification side effects.
package opportunity

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"beacon/internal/clock"
	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/common/metrics"
	"beacon/internal/events"
	"beacon/internal/models"
	"beacon/internal/notify"
	"beacon/internal/store"
)

// Sender dispatches one logical notification.
type Sender interface {
	Dispatch(ctx context.Context, n notify.Notification) (notify.Result, error)
}

// SearchIndex mirrors published opportunities into the public search index.
type SearchIndex interface {
	Index(ctx context.Context, o *models.Opportunity, categories []models.Category) error
	Remove(ctx context.Context, id int64) error
}

type Dependencies struct {
	Store    store.Store
	Resolver *notify.Resolver
	Sender   Sender
	Views    *notify.Views
	Clock    clock.Clock
	Window   clock.Window
	Logger   logger.Logger

	// Optional.
	Events events.Publisher
	Index  SearchIndex
	Tracer trace.Tracer
}

type Policy struct {
	ApproverRoles   []string
	StrictDateOrder bool
}

// Controller runs lifecycle transitions. Every mutating call takes the acting
// user explicitly and checks its gate before touching the entity.
type Controller struct {
	store    store.Store
	resolver *notify.Resolver
	sender   Sender
	views    *notify.Views
	clock    clock.Clock
	state    State
	access   *Access
	policy   Policy
	events   events.Publisher
	index    SearchIndex
	tracer   trace.Tracer
	logger   logger.Logger
}

func NewController(deps Dependencies, policy Policy) *Controller {
	if deps.Clock == nil {
		deps.Clock = clock.NewReal()
	}
	if deps.Resolver == nil {
		deps.Resolver = notify.NewResolver()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("beacon/opportunity")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	state := NewState(deps.Window)
	return &Controller{
		store:    deps.Store,
		resolver: deps.Resolver,
		sender:   deps.Sender,
		views:    deps.Views,
		clock:    deps.Clock,
		state:    state,
		access:   NewAccess(policy.ApproverRoles, state, deps.Clock),
		policy:   policy,
		events:   deps.Events,
		index:    deps.Index,
		tracer:   deps.Tracer,
		logger:   deps.Logger.WithFields(map[string]interface{}{"component": "lifecycle"}),
	}
}

func (c *Controller) State() State    { return c.state }
func (c *Controller) Access() *Access { return c.access }

func (c *Controller) CanEdit(u *models.User, o *models.Opportunity) bool {
	return c.access.CanEdit(u, o)
}

func (c *Controller) CanView(u *models.User, o *models.Opportunity) bool {
	return c.access.CanView(u, o)
}

// ==========================
// Reads
// ==========================

// Get loads an opportunity the actor may view.
func (c *Controller) Get(ctx context.Context, id int64, actor *models.User) (*models.Opportunity, error) {
	o, err := c.store.Opportunities().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.access.CanView(actor, o) {
		return nil, apperrors.NewUnauthorizedError("view opportunity")
	}
	return o, nil
}

func (c *Controller) Documents(ctx context.Context, id int64, actor *models.User) ([]models.OpportunityDocument, error) {
	if _, err := c.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	return c.store.Opportunities().Documents(ctx, id)
}

// HasVendorDocuments reports whether bidders must supply documents for o.
func (c *Controller) HasVendorDocuments(o *models.Opportunity) bool {
	return o.HasVendorDocuments()
}

// VendorDocuments resolves the documents bidders must supply for o. Ids no
// longer in the catalog are skipped.
func (c *Controller) VendorDocuments(ctx context.Context, o *models.Opportunity) ([]models.RequiredBidDocument, error) {
	if !o.HasVendorDocuments() {
		return nil, nil
	}
	return c.store.BidDocuments().ByIDs(ctx, o.VendorDocumentsNeeded)
}

// Snapshot evaluates every predicate of a viewable opportunity at the current time.
func (c *Controller) Snapshot(ctx context.Context, id int64, actor *models.User) (Snapshot, error) {
	o, err := c.Get(ctx, id, actor)
	if err != nil {
		return Snapshot{}, err
	}
	docs, err := c.store.Opportunities().Documents(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return c.state.Snapshot(o, docs, c.clock.Now()), nil
}

// ==========================
// Transitions
// ==========================

// Create stores a new opportunity. An approver may publish it immediately;
// anyone else gets a draft, a confirmation and a review request to approvers.
func (c *Controller) Create(ctx context.Context, in Input, actor *models.User, uploads []models.DocumentUpload, publish bool) (o *models.Opportunity, err error) {
	ctx, span := c.tracer.Start(ctx, "opportunity.Create", trace.WithAttributes(attribute.Bool("publish", publish)))
	defer func() { endSpan(span, err) }()

	if actor.IsAnonymous() {
		return nil, apperrors.NewUnauthorizedError("create opportunity")
	}
	approver := c.access.IsApprover(actor)
	if publish && !approver {
		return nil, apperrors.NewUnauthorizedError("publish opportunity")
	}
	if err := c.validate(in); err != nil {
		return nil, err
	}

	now := c.clock.Now()
	var id int64
	var notified bool
	err = c.store.InTx(ctx, func(ctx context.Context, tx store.Repos) error {
		if err := c.checkReferences(ctx, tx, in); err != nil {
			return err
		}
		created := &models.Opportunity{CreatedByID: actor.ID}
		in.apply(created, actor)
		if err := tx.Opportunities().Create(ctx, created); err != nil {
			return err
		}
		id = created.ID

		if _, err := attachDocuments(ctx, tx, id, uploads, now); err != nil {
			return err
		}
		if publishStep(created, publish) {
			if err := tx.Opportunities().Save(ctx, created); err != nil {
				return err
			}
		}
		var err error
		notified, err = c.notifyPublished(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	o, err = c.store.Opportunities().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("opportunity.id", id))
	c.transition("created", o)
	c.emit(ctx, events.New(events.OpportunityCreated, id, actor, now).With("isPublic", o.IsPublic))
	if notified {
		c.emit(ctx, events.New(events.OpportunityNotified, id, actor, now))
	}
	if !approver && !publish {
		c.requestApproval(ctx, o, actor)
	}
	c.syncIndex(ctx, o)
	return o, nil
}

// Update applies in to an existing opportunity and re-runs the publish step.
func (c *Controller) Update(ctx context.Context, id int64, in Input, actor *models.User, uploads []models.DocumentUpload, publish bool) (o *models.Opportunity, err error) {
	ctx, span := c.tracer.Start(ctx, "opportunity.Update", trace.WithAttributes(
		attribute.Int64("opportunity.id", id),
		attribute.Bool("publish", publish),
	))
	defer func() { endSpan(span, err) }()

	if actor.IsAnonymous() {
		return nil, apperrors.NewUnauthorizedError("edit opportunity")
	}

	now := c.clock.Now()
	var notified bool
	err = c.store.InTx(ctx, func(ctx context.Context, tx store.Repos) error {
		current, err := tx.Opportunities().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !c.access.CanEdit(actor, current) {
			return apperrors.NewUnauthorizedError("edit opportunity")
		}
		if publish && !c.access.IsApprover(actor) {
			return apperrors.NewUnauthorizedError("publish opportunity")
		}
		if publish && current.IsArchived {
			return errArchivedPublish()
		}
		if err := c.validate(in); err != nil {
			return err
		}
		if err := c.checkReferences(ctx, tx, in); err != nil {
			return err
		}

		in.apply(current, actor)
		actorID := actor.ID
		current.UpdatedByID = &actorID

		if _, err := attachDocuments(ctx, tx, id, uploads, now); err != nil {
			return err
		}
		publishStep(current, publish)
		if err := tx.Opportunities().Save(ctx, current); err != nil {
			return err
		}
		notified, err = c.notifyPublished(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	o, err = c.store.Opportunities().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.transition("updated", o)
	c.emit(ctx, events.New(events.OpportunityUpdated, id, actor, now))
	if notified {
		c.emit(ctx, events.New(events.OpportunityNotified, id, actor, now))
	}
	c.syncIndex(ctx, o)
	return o, nil
}

// Publish approves the opportunity for public display and runs the
// publish-notification step. Repeated calls are safe.
func (c *Controller) Publish(ctx context.Context, id int64, actor *models.User) (o *models.Opportunity, err error) {
	ctx, span := c.tracer.Start(ctx, "opportunity.Publish", trace.WithAttributes(attribute.Int64("opportunity.id", id)))
	defer func() { endSpan(span, err) }()

	if !c.access.IsApprover(actor) {
		return nil, apperrors.NewUnauthorizedError("publish opportunity")
	}

	now := c.clock.Now()
	var approved, notified bool
	err = c.store.InTx(ctx, func(ctx context.Context, tx store.Repos) error {
		current, err := tx.Opportunities().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsArchived {
			return errArchivedPublish()
		}
		if publishStep(current, true) {
			approved = true
			actorID := actor.ID
			current.UpdatedByID = &actorID
			if err := tx.Opportunities().Save(ctx, current); err != nil {
				return err
			}
		}
		notified, err = c.notifyPublished(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	o, err = c.store.Opportunities().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if approved {
		c.transition("approved", o)
		c.emit(ctx, events.New(events.OpportunityApproved, id, actor, now))
		c.sendApproved(ctx, o)
	}
	if notified {
		c.emit(ctx, events.New(events.OpportunityNotified, id, actor, now))
	}
	c.syncIndex(ctx, o)
	return o, nil
}

// Archive retires the opportunity. Archived opportunities never return.
func (c *Controller) Archive(ctx context.Context, id int64, actor *models.User) (o *models.Opportunity, err error) {
	ctx, span := c.tracer.Start(ctx, "opportunity.Archive", trace.WithAttributes(attribute.Int64("opportunity.id", id)))
	defer func() { endSpan(span, err) }()

	if !c.access.IsApprover(actor) {
		return nil, apperrors.NewUnauthorizedError("archive opportunity")
	}

	var archived bool
	err = c.store.InTx(ctx, func(ctx context.Context, tx store.Repos) error {
		current, err := tx.Opportunities().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsArchived {
			return nil
		}
		current.IsArchived = true
		actorID := actor.ID
		current.UpdatedByID = &actorID
		archived = true
		return tx.Opportunities().Save(ctx, current)
	})
	if err != nil {
		return nil, err
	}

	o, err = c.store.Opportunities().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if archived {
		c.transition("archived", o)
		c.emit(ctx, events.New(events.OpportunityArchived, id, actor, c.clock.Now()))
	}
	c.syncIndex(ctx, o)
	return o, nil
}

// RemoveDocument detaches one document from an editable opportunity.
func (c *Controller) RemoveDocument(ctx context.Context, opportunityID, documentID int64, actor *models.User) error {
	return c.store.InTx(ctx, func(ctx context.Context, tx store.Repos) error {
		o, err := tx.Opportunities().GetForUpdate(ctx, opportunityID)
		if err != nil {
			return err
		}
		if !c.access.CanEdit(actor, o) {
			return apperrors.NewUnauthorizedError("edit opportunity")
		}
		if err := tx.Opportunities().RemoveDocument(ctx, opportunityID, documentID); err != nil {
			return err
		}
		c.logger.Info("Document removed", map[string]interface{}{
			"opportunityId": opportunityID,
			"documentId":    documentID,
		})
		return nil
	})
}

func errArchivedPublish() error {
	return apperrors.NewValidationError(apperrors.FieldError{
		Field:   "isArchived",
		Rule:    "archived",
		Message: "archived opportunities cannot be published",
	})
}

// publishStep moves a draft to public when requested. It never un-publishes.
func publishStep(o *models.Opportunity, requested bool) bool {
	if o.IsPublic || !requested {
		return false
	}
	o.IsPublic = true
	return true
}

func (c *Controller) validate(in Input) error {
	fields, err := in.Validate(c.policy.StrictDateOrder)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields...)
	}
	return nil
}

// checkReferences rejects unknown contacts, categories and bid documents.
func (c *Controller) checkReferences(ctx context.Context, tx store.Repos, in Input) error {
	var fields []apperrors.FieldError
	if in.ContactID != 0 {
		if _, err := tx.Users().Get(ctx, in.ContactID); err != nil {
			if !apperrors.IsNotFound(err) {
				return err
			}
			fields = append(fields, apperrors.FieldError{Field: "contactId", Rule: "exists", Message: "unknown user"})
		}
	}
	ids := models.UniqueIDs(in.CategoryIDs)
	if len(ids) > 0 {
		cats, err := tx.Categories().ByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(cats) != len(ids) {
			fields = append(fields, apperrors.FieldError{Field: "categoryIds", Rule: "exists", Message: "unknown category"})
		}
	}
	if docIDs := models.UniqueIDs(in.VendorDocumentsNeeded); len(docIDs) > 0 {
		docs, err := tx.BidDocuments().ByIDs(ctx, docIDs)
		if err != nil {
			return err
		}
		if len(docs) != len(docIDs) {
			fields = append(fields, apperrors.FieldError{Field: "vendorDocumentsNeeded", Rule: "exists", Message: "unknown bid document"})
		}
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields...)
	}
	return nil
}

func (c *Controller) transition(name string, o *models.Opportunity) {
	metrics.LifecycleTransitions.WithLabelValues(name).Inc()
	c.logger.Info("Opportunity "+name, map[string]interface{}{
		"opportunityId":   o.ID,
		"title":           o.Title,
		"plannedPublish":  o.PlannedPublish.Format(time.RFC3339),
		"submissionStart": o.SubmissionStart.Format(time.RFC3339),
		"submissionEnd":   o.SubmissionEnd.Format(time.RFC3339),
	})
}

func (c *Controller) emit(ctx context.Context, e events.Event) {
	if err := c.events.Publish(ctx, e); err != nil {
		c.logger.Warn("Failed to publish event", map[string]interface{}{
			"eventType": e.Type,
			"subjectId": e.SubjectID,
			"error":     err.Error(),
		})
	}
}

// syncIndex keeps the search index equal to the set of published,
// unarchived opportunities.
func (c *Controller) syncIndex(ctx context.Context, o *models.Opportunity) {
	if c.index == nil {
		return
	}
	var err error
	if o.IsArchived || !c.state.IsPublished(o, c.clock.Now()) {
		err = c.index.Remove(ctx, o.ID)
	} else {
		var cats []models.Category
		cats, err = c.store.Categories().ByIDs(ctx, o.CategoryIDs)
		if err == nil {
			err = c.index.Index(ctx, o, cats)
		}
	}
	if err != nil {
		c.logger.Warn("Search index sync failed", map[string]interface{}{
			"opportunityId": o.ID,
			"error":         err.Error(),
		})
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
