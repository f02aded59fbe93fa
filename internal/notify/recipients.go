package notify

import (
	"context"
	"sort"

	"beacon/internal/common/validation"
	"beacon/internal/models"
	"beacon/internal/store"
)

// DefaultReviewRoles receive "needs review" notices when none are configured.
var DefaultReviewRoles = []string{models.RoleConductor, models.RoleAdmin, models.RoleSuperAdmin}

// emailSet collects normalized addresses. Empty values are dropped.
type emailSet map[string]struct{}

func (s emailSet) add(emails ...string) {
	for _, e := range emails {
		if e = validation.NormalizeEmail(e); e != "" {
			s[e] = struct{}{}
		}
	}
}

func (s emailSet) remove(email string) {
	delete(s, validation.NormalizeEmail(email))
}

func (s emailSet) sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Resolver computes the audience of each notification kind. Every result is
// a deduplicated, sorted set of normalized addresses.
type Resolver struct {
	reviewRoles              []string
	includeDirectSubscribers bool
}

type ResolverOption func(*Resolver)

// WithReviewRoles replaces the roles that receive approval requests.
func WithReviewRoles(roles []string) ResolverOption {
	return func(r *Resolver) {
		if len(roles) > 0 {
			r.reviewRoles = append([]string(nil), roles...)
		}
	}
}

// WithDirectSubscribers adds vendors subscribed to the opportunity itself to
// the new-opportunity audience.
func WithDirectSubscribers(enabled bool) ResolverOption {
	return func(r *Resolver) { r.includeDirectSubscribers = enabled }
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{reviewRoles: DefaultReviewRoles}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ForNewOpportunity returns vendors subscribed to any of the opportunity's
// categories.
func (r *Resolver) ForNewOpportunity(ctx context.Context, repos store.Repos, o *models.Opportunity) ([]string, error) {
	set := emailSet{}
	if len(o.CategoryIDs) > 0 {
		emails, err := repos.Vendors().EmailsByCategories(ctx, o.CategoryIDs)
		if err != nil {
			return nil, err
		}
		set.add(emails...)
	}
	if r.includeDirectSubscribers {
		emails, err := repos.Vendors().EmailsByOpportunity(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		set.add(emails...)
	}
	return set.sorted(), nil
}

// ForApprovalRequest returns staff holding any review role.
func (r *Resolver) ForApprovalRequest(ctx context.Context, repos store.Repos) ([]string, error) {
	emails, err := repos.Users().EmailsByRoles(ctx, r.reviewRoles)
	if err != nil {
		return nil, err
	}
	set := emailSet{}
	set.add(emails...)
	return set.sorted(), nil
}

// ForQuestionAsked returns the opportunity's creator and contact.
func (r *Resolver) ForQuestionAsked(o *models.Opportunity) []string {
	set := emailSet{}
	set.add(o.OwnerEmails()...)
	return set.sorted()
}

// ForQuestionAnswered returns creator, contact and asker, minus the answerer.
func (r *Resolver) ForQuestionAnswered(o *models.Opportunity, q *models.Question, answeredBy *models.User) []string {
	set := emailSet{}
	set.add(o.OwnerEmails()...)
	set.add(q.AskerEmail())
	if answeredBy != nil {
		set.remove(answeredBy.Email)
	}
	return set.sorted()
}
