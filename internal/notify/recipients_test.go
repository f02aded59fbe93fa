package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/models"
	"beacon/internal/store/memstore"
)

func seedVendors(t *testing.T, s *memstore.Store) {
	ctx := context.Background()
	for _, v := range []*models.Vendor{
		{Email: "one@example.com", CategoryIDs: []int64{1}},
		{Email: "Both@Example.com", CategoryIDs: []int64{1, 2}},
		{Email: "other@example.com", CategoryIDs: []int64{3}},
		{Email: "direct@example.com", OpportunityIDs: []int64{42}},
	} {
		require.NoError(t, s.Vendors().Create(ctx, v))
	}
}

func TestResolver_ForNewOpportunity(t *testing.T) {
	s := memstore.New()
	seedVendors(t, s)
	o := &models.Opportunity{ID: 42, CategoryIDs: []int64{1, 2}}

	got, err := NewResolver().ForNewOpportunity(context.Background(), s, o)
	require.NoError(t, err)
	assert.Equal(t, []string{"both@example.com", "one@example.com"}, got)

	got, err = NewResolver(WithDirectSubscribers(true)).ForNewOpportunity(context.Background(), s, o)
	require.NoError(t, err)
	assert.Equal(t, []string{"both@example.com", "direct@example.com", "one@example.com"}, got)
}

func TestResolver_ForNewOpportunityNoCategories(t *testing.T) {
	s := memstore.New()
	seedVendors(t, s)

	got, err := NewResolver().ForNewOpportunity(context.Background(), s, &models.Opportunity{ID: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolver_ForApprovalRequest(t *testing.T) {
	s := memstore.New()
	s.AddUser(models.User{Email: "cond@example.gov", Roles: []string{models.RoleConductor}})
	s.AddUser(models.User{Email: "admin@example.gov", Roles: []string{models.RoleAdmin, models.RoleSuperAdmin}})
	s.AddUser(models.User{Email: "staff@example.gov", Roles: []string{models.RoleStaff}})

	got, err := NewResolver().ForApprovalRequest(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@example.gov", "cond@example.gov"}, got)

	got, err = NewResolver(WithReviewRoles([]string{models.RoleStaff})).ForApprovalRequest(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"staff@example.gov"}, got)
}

func TestResolver_QuestionAudiences(t *testing.T) {
	creator := &models.User{ID: 1, Email: "creator@example.gov"}
	contact := &models.User{ID: 2, Email: "contact@example.gov"}
	o := &models.Opportunity{CreatedBy: creator, Contact: contact}
	q := &models.Question{AskedBy: &models.Vendor{Email: "asker@example.com"}}
	r := NewResolver()

	assert.Equal(t, []string{"contact@example.gov", "creator@example.gov"}, r.ForQuestionAsked(o))
	assert.Equal(t, []string{"creator@example.gov"}, r.ForQuestionAsked(&models.Opportunity{CreatedBy: creator, Contact: creator}))

	tests := []struct {
		name     string
		answerer *models.User
		want     []string
	}{
		{"creator answers", creator, []string{"asker@example.com", "contact@example.gov"}},
		{"contact answers", contact, []string{"asker@example.com", "creator@example.gov"}},
		{"admin answers", &models.User{Email: "admin@example.gov"}, []string{"asker@example.com", "contact@example.gov", "creator@example.gov"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ForQuestionAnswered(o, q, tt.answerer))
		})
	}

	assert.Equal(t, []string{"contact@example.gov"}, r.ForQuestionAnswered(o, &models.Question{}, creator))
}
