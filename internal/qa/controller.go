// Package qa runs the vendor question and staff answer workflow on an
// opportunity. A question notifies staff when asked and notifies the
// audience once when first answered; later edits are silent.
package qa

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"beacon/internal/clock"
	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/events"
	"beacon/internal/models"
	"beacon/internal/notify"
	"beacon/internal/opportunity"
	"beacon/internal/store"
	"beacon/internal/vendor"
)

type Sender interface {
	Dispatch(ctx context.Context, n notify.Notification) (notify.Result, error)
}

type Dependencies struct {
	Store    store.Store
	Access   *opportunity.Access
	State    opportunity.State
	Resolver *notify.Resolver
	Sender   Sender
	Views    *notify.Views
	Clock    clock.Clock
	Logger   logger.Logger

	Events events.Publisher
	Tracer trace.Tracer
}

type Controller struct {
	store    store.Store
	access   *opportunity.Access
	state    opportunity.State
	resolver *notify.Resolver
	sender   Sender
	views    *notify.Views
	clock    clock.Clock
	events   events.Publisher
	tracer   trace.Tracer
	logger   logger.Logger
}

func NewController(deps Dependencies) *Controller {
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
		deps.Tracer = otel.Tracer("beacon/qa")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	return &Controller{
		store:    deps.Store,
		access:   deps.Access,
		state:    deps.State,
		resolver: deps.Resolver,
		sender:   deps.Sender,
		views:    deps.Views,
		clock:    deps.Clock,
		events:   deps.Events,
		tracer:   deps.Tracer,
		logger:   deps.Logger.WithFields(map[string]interface{}{"component": "qa"}),
	}
}

// CanManage reports whether u may answer, edit, delete or list every
// question of o: approvers, the creator and the contact, whether or not the
// opportunity is public.
func (c *Controller) CanManage(u *models.User, o *models.Opportunity) bool {
	if u.IsAnonymous() {
		return false
	}
	return c.access.IsApprover(u) || u.ID == o.CreatedByID || u.ID == o.ContactID
}

// AskInput is a question submitted from the public detail page.
type AskInput struct {
	Email        string `json:"email"`
	BusinessName string `json:"businessName,omitempty"`
	Question     string `json:"question"`
}

// Ask records a vendor question on a published opportunity that is accepting
// questions. The asking vendor is found or created by email first.
func (c *Controller) Ask(ctx context.Context, opportunityID int64, in AskInput) (*models.Question, error) {
	ctx, span := c.tracer.Start(ctx, "qa.Ask", trace.WithAttributes(attribute.Int64("opportunity.id", opportunityID)))
	defer span.End()

	fields := vendor.CheckEmail("email", in.Email)
	if strings.TrimSpace(in.Question) == "" {
		fields = append(fields, apperrors.FieldError{Field: "question", Rule: "required", Message: "is required"})
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError(fields...)
	}

	now := c.clock.Now()
	var id int64
	err := c.store.InTx(ctx, func(ctx context.Context, tx store.Repos) error {
		o, err := tx.Opportunities().Get(ctx, opportunityID)
		if err != nil {
			return err
		}
		if !c.access.CanView(models.Anonymous, o) {
			return apperrors.NewUnauthorizedError("ask a question")
		}
		if o.IsArchived || !c.state.AcceptingQuestions(o, now) {
			return apperrors.NewValidationError(apperrors.FieldError{
				Field:   "question",
				Rule:    "accepting_questions",
				Message: "this opportunity is not accepting questions",
			})
		}

		v, _, err := vendor.Resolve(ctx, tx, in.Email, in.BusinessName, now.UTC())
		if err != nil {
			return err
		}
		vendorID := v.ID
		q := &models.Question{
			OpportunityID: o.ID,
			QuestionText:  strings.TrimSpace(in.Question),
			AskedByID:     &vendorID,
			AskedAt:       now.UTC(),
		}
		if err := tx.Questions().Create(ctx, q); err != nil {
			return err
		}
		id = q.ID
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	q, o, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Question asked", map[string]interface{}{
		"opportunityId": o.ID,
		"questionId":    q.ID,
		"askedBy":       q.AskerEmail(),
	})
	c.emit(ctx, events.New(events.QuestionAsked, q.ID, nil, now).With("opportunityId", o.ID))
	c.send(ctx, notify.KindQuestionAsked, c.resolver.ForQuestionAsked(o), o, q)
	return q, nil
}

// Answer sets the answer text. The first answer notifies creator, contact and
// asker, minus the answerer. Changing an existing answer marks the question
// edited and notifies nobody; resubmitting the same text changes nothing.
func (c *Controller) Answer(ctx context.Context, questionID int64, text string, actor *models.User) (*models.Question, error) {
	return c.answer(ctx, questionID, text, actor, false)
}

// Edit changes an existing answer. It fails when the question has none.
func (c *Controller) Edit(ctx context.Context, questionID int64, text string, actor *models.User) (*models.Question, error) {
	return c.answer(ctx, questionID, text, actor, true)
}

func (c *Controller) answer(ctx context.Context, questionID int64, text string, actor *models.User, editOnly bool) (*models.Question, error) {
	ctx, span := c.tracer.Start(ctx, "qa.Answer", trace.WithAttributes(
		attribute.Int64("question.id", questionID),
		attribute.Bool("edit", editOnly),
	))
	defer span.End()

	if actor.IsAnonymous() {
		return nil, apperrors.NewUnauthorizedError("answer questions")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError(apperrors.FieldError{Field: "answerText", Rule: "required", Message: "is required"})
	}

	now := c.clock.Now().UTC()
	var first bool
	err := c.store.InTx(ctx, func(ctx context.Context, tx store.Repos) error {
		// Concurrent answers queue on the question row and see each other's
		// writes, so only one of them is the first answer.
		q, err := tx.Questions().GetForUpdate(ctx, questionID)
		if err != nil {
			return err
		}
		o, err := tx.Opportunities().GetForUpdate(ctx, q.OpportunityID)
		if err != nil {
			return err
		}
		if !c.CanManage(actor, o) {
			return apperrors.NewUnauthorizedError("answer questions")
		}

		switch {
		case !q.IsAnswered() && editOnly:
			return apperrors.NewValidationError(apperrors.FieldError{
				Field:   "answerText",
				Rule:    "answered",
				Message: "question has not been answered",
			})
		case !q.IsAnswered():
			actorID := actor.ID
			q.AnswerText = text
			q.AnsweredByID = &actorID
			q.AnsweredAt = &now
			first = true
		case q.AnswerText == text:
			return nil
		default:
			q.AnswerText = text
			q.Edited = true
			q.EditedAt = &now
		}
		return tx.Questions().Save(ctx, q)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	q, o, err := c.load(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !first {
		c.logger.Info("Answer edited", map[string]interface{}{"questionId": q.ID, "opportunityId": o.ID})
		return q, nil
	}

	c.logger.Info("Question answered", map[string]interface{}{
		"questionId":    q.ID,
		"opportunityId": o.ID,
		"answeredBy":    actor.Email,
	})
	c.emit(ctx, events.New(events.QuestionAnswered, q.ID, actor, now).With("opportunityId", o.ID))
	c.send(ctx, notify.KindQuestionAnswered, c.resolver.ForQuestionAnswered(o, q, actor), o, q)
	return q, nil
}

// Delete removes a question. Nobody is notified.
func (c *Controller) Delete(ctx context.Context, questionID int64, actor *models.User) error {
	if actor.IsAnonymous() {
		return apperrors.NewUnauthorizedError("delete questions")
	}
	err := c.store.InTx(ctx, func(ctx context.Context, tx store.Repos) error {
		q, err := tx.Questions().Get(ctx, questionID)
		if err != nil {
			return err
		}
		o, err := tx.Opportunities().Get(ctx, q.OpportunityID)
		if err != nil {
			return err
		}
		if !c.CanManage(actor, o) {
			return apperrors.NewUnauthorizedError("delete questions")
		}
		return tx.Questions().Delete(ctx, questionID)
	})
	if err != nil {
		return err
	}
	c.logger.Info("Question deleted", map[string]interface{}{"questionId": questionID, "deletedBy": actor.ID})
	return nil
}

// Questions lists every question of the opportunity for staff.
func (c *Controller) Questions(ctx context.Context, opportunityID int64, actor *models.User) ([]*models.Question, error) {
	o, err := c.store.Opportunities().Get(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	if !c.CanManage(actor, o) {
		return nil, apperrors.NewUnauthorizedError("list questions")
	}
	return c.store.Questions().ListByOpportunity(ctx, opportunityID, false)
}

// AnsweredQuestions lists the answered questions shown on the detail page.
func (c *Controller) AnsweredQuestions(ctx context.Context, opportunityID int64, actor *models.User) ([]*models.Question, error) {
	o, err := c.store.Opportunities().Get(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	if !c.access.CanView(actor, o) {
		return nil, apperrors.NewUnauthorizedError("view opportunity")
	}
	return c.store.Questions().ListByOpportunity(ctx, opportunityID, true)
}

func (c *Controller) load(ctx context.Context, questionID int64) (*models.Question, *models.Opportunity, error) {
	q, err := c.store.Questions().Get(ctx, questionID)
	if err != nil {
		return nil, nil, err
	}
	o, err := c.store.Opportunities().Get(ctx, q.OpportunityID)
	if err != nil {
		return nil, nil, err
	}
	return q, o, nil
}

func (c *Controller) send(ctx context.Context, kind notify.Kind, recipients []string, o *models.Opportunity, q *models.Question) {
	ov := c.views.Opportunity(o, nil)
	qv := c.views.Question(q)
	res, err := c.sender.Dispatch(ctx, notify.Notification{
		Kind:       kind,
		Recipients: recipients,
		Data:       notify.Payload{Opportunity: &ov, Question: &qv, BaseURL: c.views.BaseURL()},
		Multi:      true,
	})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		c.logger.Warn("Question notification not fully delivered", map[string]interface{}{
			"kind":       kind,
			"questionId": q.ID,
			"error":      err.Error(),
		})
	}
}

func (c *Controller) emit(ctx context.Context, e events.Event) {
	if err := c.events.Publish(ctx, e); err != nil {
		c.logger.Warn("Failed to publish event", map[string]interface{}{"eventType": e.Type, "error": err.Error()})
	}
}
