// Package events publishes lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/models"
)

type Type string

const (
	OpportunityCreated  Type = "opportunity.created"
	OpportunityUpdated  Type = "opportunity.updated"
	OpportunityApproved Type = "opportunity.approved"
	OpportunityNotified Type = "opportunity.notified"
	OpportunityArchived Type = "opportunity.archived"
	QuestionAsked       Type = "question.asked"
	QuestionAnswered    Type = "question.answered"
	VendorSignedUp      Type = "vendor.signed_up"
	VendorSubscribed    Type = "vendor.subscribed"
	DigestSent          Type = "digest.sent"
)

// Event is one fact about an entity. Subject identifies the entity by id.
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	SubjectID  int64                  `json:"subjectId,omitempty"`
	ActorID    int64                  `json:"actorId,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

func New(t Type, subjectID int64, actor *models.User, at time.Time) Event {
	e := Event{
		ID:         uuid.NewString(),
		Type:       t,
		SubjectID:  subjectID,
		OccurredAt: at.UTC(),
	}
	if !actor.IsAnonymous() {
		e.ActorID = actor.ID
	}
	return e
}

// With sets a data field and returns the event.
func (e Event) With(key string, value interface{}) Event {
	data := make(map[string]interface{}, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// SNSService is the subset of the SNS client the publisher uses.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher sends each event as a JSON message to one topic with the
// event type as a message attribute for subscription filters.
type SNSPublisher struct {
	client   SNSService
	topicARN string
	logger   logger.Logger
}

func NewSNSPublisher(client SNSService, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "events"}),
	}
}

func (p *SNSPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(string(e.Type))},
		},
	})
	if err != nil {
		return apperrors.NewExternalServiceError("sns", err)
	}
	p.logger.Debug("event published", map[string]interface{}{
		"eventId": e.ID, "type": e.Type, "snsMessageId": aws.ToString(out.MessageId),
	})
	return nil
}
