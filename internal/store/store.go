// Package store defines the persistence contract beacon components depend on.
// Implementations live in store/postgres and store/memstore.
package store

import (
	"context"
	"time"

	"beacon/internal/models"
)

// OpportunityFilter selects opportunities. Nil fields do not constrain.
// Time bounds are instants; callers convert calendar days first.
type OpportunityFilter struct {
	IsPublic         *bool
	IsArchived       *bool
	NotificationSent *bool

	PlannedPublishFrom   *time.Time // planned_publish >= value
	PlannedPublishBefore *time.Time // planned_publish < value
	SubmissionEndFrom    *time.Time // submission_end >= value
	SubmissionEndBefore  *time.Time // submission_end < value
	PublishedAfter       *time.Time // published_at > value
}

// Match applies the filter in memory.
func (f OpportunityFilter) Match(o *models.Opportunity) bool {
	if f.IsPublic != nil && o.IsPublic != *f.IsPublic {
		return false
	}
	if f.IsArchived != nil && o.IsArchived != *f.IsArchived {
		return false
	}
	if f.NotificationSent != nil && o.PublishNotificationSent != *f.NotificationSent {
		return false
	}
	if f.PlannedPublishFrom != nil && o.PlannedPublish.Before(*f.PlannedPublishFrom) {
		return false
	}
	if f.PlannedPublishBefore != nil && !o.PlannedPublish.Before(*f.PlannedPublishBefore) {
		return false
	}
	if f.SubmissionEndFrom != nil && o.SubmissionEnd.Before(*f.SubmissionEndFrom) {
		return false
	}
	if f.SubmissionEndBefore != nil && !o.SubmissionEnd.Before(*f.SubmissionEndBefore) {
		return false
	}
	if f.PublishedAfter != nil && (o.PublishedAt == nil || !o.PublishedAt.After(*f.PublishedAfter)) {
		return false
	}
	return true
}

// Opportunities persists opportunities and their documents. Get and
// GetForUpdate return an errors.ErrNotFound-matching error for unknown ids.
type Opportunities interface {
	Get(ctx context.Context, id int64) (*models.Opportunity, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*models.Opportunity, error)
	Create(ctx context.Context, o *models.Opportunity) error
	Save(ctx context.Context, o *models.Opportunity) error
	Query(ctx context.Context, f OpportunityFilter) ([]*models.Opportunity, error)

	Documents(ctx context.Context, opportunityID int64) ([]models.OpportunityDocument, error)
	AddDocument(ctx context.Context, d *models.OpportunityDocument) error
	RemoveDocument(ctx context.Context, opportunityID, documentID int64) error
}

// Vendors persists vendors. Emails are stored normalized.
type Vendors interface {
	Get(ctx context.Context, id int64) (*models.Vendor, error)
	GetByEmail(ctx context.Context, email string) (*models.Vendor, error)
	Create(ctx context.Context, v *models.Vendor) error
	Save(ctx context.Context, v *models.Vendor) error
	All(ctx context.Context) ([]*models.Vendor, error)

	// EmailsByCategories returns vendors subscribed to any of categoryIDs.
	EmailsByCategories(ctx context.Context, categoryIDs []int64) ([]string, error)
	// EmailsByOpportunity returns vendors subscribed directly to the opportunity.
	EmailsByOpportunity(ctx context.Context, opportunityID int64) ([]string, error)
	NewsletterEmails(ctx context.Context) ([]string, error)
}

type Users interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	// EmailsByRoles returns users holding any of roles.
	EmailsByRoles(ctx context.Context, roles []string) ([]string, error)
}

type Questions interface {
	Get(ctx context.Context, id int64) (*models.Question, error)
	// GetForUpdate reads the question and holds its row lock until the
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*models.Question, error)
	Create(ctx context.Context, q *models.Question) error
	Save(ctx context.Context, q *models.Question) error
	Delete(ctx context.Context, id int64) error
	ListByOpportunity(ctx context.Context, opportunityID int64, answeredOnly bool) ([]*models.Question, error)
}

type Categories interface {
	ByIDs(ctx context.Context, ids []int64) ([]models.Category, error)
}

// BidDocuments reads the catalog of documents bidders can be asked for.
type BidDocuments interface {
	All(ctx context.Context) ([]models.RequiredBidDocument, error)
	// ByIDs skips unknown ids and returns the rest ordered by id.
	ByIDs(ctx context.Context, ids []int64) ([]models.RequiredBidDocument, error)
}

type AppStatus interface {
	Get(ctx context.Context) (models.AppStatus, error)
	SetLastDigest(ctx context.Context, at time.Time) error
}

// Repos groups every repository bound to one connection or transaction.
type Repos interface {
	Opportunities() Opportunities
	Vendors() Vendors
	Users() Users
	Questions() Questions
	Categories() Categories
	BidDocuments() BidDocuments
	Status() AppStatus
}

// Store is the root persistence handle. InTx commits when fn returns nil and
// rolls back otherwise; concurrent transactions touching the same
// opportunity through GetForUpdate are serialized.
type Store interface {
	Repos
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
}

// Bool and Time build filter pointers.
func Bool(b bool) *bool           { return &b }
func Time(t time.Time) *time.Time { return &t }
