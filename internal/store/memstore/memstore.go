// Package memstore is an in-process store.Store. Transactions are serialized
// and roll back by restoring a snapshot.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/validation"
	"beacon/internal/models"
	"beacon/internal/store"
)

type data struct {
	nextID        int64
	opportunities map[int64]*models.Opportunity
	documents     map[int64][]models.OpportunityDocument
	vendors       map[int64]*models.Vendor
	users         map[int64]*models.User
	questions     map[int64]*models.Question
	categories    map[int64]models.Category
	bidDocuments  map[int64]models.RequiredBidDocument
	status        models.AppStatus
}

func newData() *data {
	return &data{
		opportunities: map[int64]*models.Opportunity{},
		documents:     map[int64][]models.OpportunityDocument{},
		vendors:       map[int64]*models.Vendor{},
		users:         map[int64]*models.User{},
		questions:     map[int64]*models.Question{},
		categories:    map[int64]models.Category{},
		bidDocuments:  map[int64]models.RequiredBidDocument{},
	}
}

func (d *data) clone() *data {
	c := newData()
	c.nextID = d.nextID
	for id, o := range d.opportunities {
		c.opportunities[id] = o.Clone()
	}
	for id, docs := range d.documents {
		c.documents[id] = append([]models.OpportunityDocument(nil), docs...)
	}
	for id, v := range d.vendors {
		c.vendors[id] = v.Clone()
	}
	for id, u := range d.users {
		cu := *u
		c.users[id] = &cu
	}
	for id, q := range d.questions {
		cq := *q
		c.questions[id] = &cq
	}
	for id, cat := range d.categories {
		c.categories[id] = cat
	}
	for id, doc := range d.bidDocuments {
		c.bidDocuments[id] = doc
	}
	c.status = d.status
	return c
}

func (d *data) id() int64 {
	d.nextID++
	return d.nextID
}

// Store implements store.Store in memory.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	d    *data
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{d: newData(), now: time.Now}
}

// AddUser seeds a staff user and returns it with its id set.
func (s *Store) AddUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.d.id()
	} else if u.ID > s.d.nextID {
		s.d.nextID = u.ID
	}
	u.Email = validation.NormalizeEmail(u.Email)
	s.d.users[u.ID] = &u
	cu := u
	return &cu
}

// AddCategory seeds a category.
func (s *Store) AddCategory(c models.Category) models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.d.id()
	} else if c.ID > s.d.nextID {
		s.d.nextID = c.ID
	}
	s.d.categories[c.ID] = c
	return c
}

// AddBidDocument seeds a required bid document.
func (s *Store) AddBidDocument(doc models.RequiredBidDocument) models.RequiredBidDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == 0 {
		doc.ID = s.d.id()
	} else if doc.ID > s.d.nextID {
		s.d.nextID = doc.ID
	}
	s.d.bidDocuments[doc.ID] = doc
	return doc
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Opportunities() store.Opportunities { return opportunityRepo{s} }
func (s *Store) Vendors() store.Vendors             { return vendorRepo{s} }
func (s *Store) Users() store.Users                 { return userRepo{s} }
func (s *Store) Questions() store.Questions         { return questionRepo{s} }
func (s *Store) Categories() store.Categories       { return categoryRepo{s} }
func (s *Store) BidDocuments() store.BidDocuments   { return bidDocumentRepo{s} }
func (s *Store) Status() store.AppStatus            { return statusRepo{s} }

// ==========================
// Opportunities
// ==========================

type opportunityRepo struct{ s *Store }

func (r opportunityRepo) load(id int64) (*models.Opportunity, error) {
	o, ok := r.s.d.opportunities[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("opportunity", id)
	}
	c := o.Clone()
	if u, ok := r.s.d.users[c.CreatedByID]; ok {
		cu := *u
		c.CreatedBy = &cu
	}
	if u, ok := r.s.d.users[c.ContactID]; ok {
		cu := *u
		c.Contact = &cu
	}
	return c, nil
}

func (r opportunityRepo) Get(_ context.Context, id int64) (*models.Opportunity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.load(id)
}

func (r opportunityRepo) GetForUpdate(ctx context.Context, id int64) (*models.Opportunity, error) {
	return r.Get(ctx, id)
}

func (r opportunityRepo) Create(_ context.Context, o *models.Opportunity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.ID = r.s.d.id()
	now := r.s.now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	o.CategoryIDs = models.UniqueIDs(o.CategoryIDs)
	o.VendorDocumentsNeeded = models.UniqueIDs(o.VendorDocumentsNeeded)
	r.s.d.opportunities[o.ID] = o.Clone()
	return nil
}

func (r opportunityRepo) Save(_ context.Context, o *models.Opportunity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.opportunities[o.ID]; !ok {
		return apperrors.NewNotFoundError("opportunity", o.ID)
	}
	o.UpdatedAt = r.s.now().UTC()
	o.CategoryIDs = models.UniqueIDs(o.CategoryIDs)
	o.VendorDocumentsNeeded = models.UniqueIDs(o.VendorDocumentsNeeded)
	r.s.d.opportunities[o.ID] = o.Clone()
	return nil
}

func (r opportunityRepo) Query(_ context.Context, f store.OpportunityFilter) ([]*models.Opportunity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Opportunity
	for id, o := range r.s.d.opportunities {
		if !f.Match(o) {
			continue
		}
		c, _ := r.load(id)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r opportunityRepo) Documents(_ context.Context, opportunityID int64) ([]models.OpportunityDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]models.OpportunityDocument(nil), r.s.d.documents[opportunityID]...), nil
}

func (r opportunityRepo) AddDocument(_ context.Context, d *models.OpportunityDocument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.opportunities[d.OpportunityID]; !ok {
		return apperrors.NewNotFoundError("opportunity", d.OpportunityID)
	}
	d.ID = r.s.d.id()
	d.CreatedAt = r.s.now().UTC()
	r.s.d.documents[d.OpportunityID] = append(r.s.d.documents[d.OpportunityID], *d)
	return nil
}

func (r opportunityRepo) RemoveDocument(_ context.Context, opportunityID, documentID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	docs := r.s.d.documents[opportunityID]
	for i, d := range docs {
		if d.ID == documentID {
			r.s.d.documents[opportunityID] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return apperrors.NewNotFoundError("document", documentID)
}

// ==========================
// Vendors
// ==========================

type vendorRepo struct{ s *Store }

func (r vendorRepo) Get(_ context.Context, id int64) (*models.Vendor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.d.vendors[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("vendor", id)
	}
	return v.Clone(), nil
}

func (r vendorRepo) GetByEmail(_ context.Context, email string) (*models.Vendor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = validation.NormalizeEmail(email)
	for _, v := range r.s.d.vendors {
		if v.Email == email {
			return v.Clone(), nil
		}
	}
	return nil, apperrors.NewNotFoundError("vendor", email)
}

func (r vendorRepo) Create(_ context.Context, v *models.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v.Email = validation.NormalizeEmail(v.Email)
	for _, existing := range r.s.d.vendors {
		if existing.Email == v.Email {
			return apperrors.NewValidationError(apperrors.FieldError{
				Field: "email", Rule: "unique", Message: "a vendor with this email already exists",
			})
		}
	}
	v.ID = r.s.d.id()
	now := r.s.now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	v.CategoryIDs = models.UniqueIDs(v.CategoryIDs)
	v.OpportunityIDs = models.UniqueIDs(v.OpportunityIDs)
	r.s.d.vendors[v.ID] = v.Clone()
	return nil
}

func (r vendorRepo) Save(_ context.Context, v *models.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.vendors[v.ID]; !ok {
		return apperrors.NewNotFoundError("vendor", v.ID)
	}
	v.UpdatedAt = r.s.now().UTC()
	v.CategoryIDs = models.UniqueIDs(v.CategoryIDs)
	v.OpportunityIDs = models.UniqueIDs(v.OpportunityIDs)
	r.s.d.vendors[v.ID] = v.Clone()
	return nil
}

func (r vendorRepo) All(_ context.Context) ([]*models.Vendor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Vendor, 0, len(r.s.d.vendors))
	for _, v := range r.s.d.vendors {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r vendorRepo) emails(match func(v *models.Vendor) bool) []string {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, v := range r.s.d.vendors {
		if match(v) {
			out = append(out, v.Email)
		}
	}
	sort.Strings(out)
	return out
}

func (r vendorRepo) EmailsByCategories(_ context.Context, categoryIDs []int64) ([]string, error) {
	return r.emails(func(v *models.Vendor) bool {
		return models.Intersects(v.CategoryIDs, categoryIDs)
	}), nil
}

func (r vendorRepo) EmailsByOpportunity(_ context.Context, opportunityID int64) ([]string, error) {
	return r.emails(func(v *models.Vendor) bool {
		return models.ContainsID(v.OpportunityIDs, opportunityID)
	}), nil
}

func (r vendorRepo) NewsletterEmails(_ context.Context) ([]string, error) {
	return r.emails(func(v *models.Vendor) bool {
		return v.SubscribedToNewsletter
	}), nil
}

// ==========================
// Users
// ==========================

type userRepo struct{ s *Store }

func (r userRepo) Get(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user", id)
	}
	cu := *u
	return &cu, nil
}

func (r userRepo) EmailsByRoles(_ context.Context, roles []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, u := range r.s.d.users {
		if u.HasAnyRole(roles...) {
			out = append(out, u.Email)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ==========================
// Questions
// ==========================

type questionRepo struct{ s *Store }

func (r questionRepo) load(q *models.Question) *models.Question {
	c := *q
	if c.AskedByID != nil {
		if v, ok := r.s.d.vendors[*c.AskedByID]; ok {
			c.AskedBy = v.Clone()
		}
	}
	return &c
}

func (r questionRepo) Get(_ context.Context, id int64) (*models.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.d.questions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("question", id)
	}
	return r.load(q), nil
}

// GetForUpdate is Get; InTx already serializes transactions.
func (r questionRepo) GetForUpdate(ctx context.Context, id int64) (*models.Question, error) {
	return r.Get(ctx, id)
}

func (r questionRepo) Create(_ context.Context, q *models.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.opportunities[q.OpportunityID]; !ok {
		return apperrors.NewNotFoundError("opportunity", q.OpportunityID)
	}
	q.ID = r.s.d.id()
	if q.AskedAt.IsZero() {
		q.AskedAt = r.s.now().UTC()
	}
	c := *q
	c.AskedBy = nil
	r.s.d.questions[q.ID] = &c
	return nil
}

func (r questionRepo) Save(_ context.Context, q *models.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.questions[q.ID]; !ok {
		return apperrors.NewNotFoundError("question", q.ID)
	}
	c := *q
	c.AskedBy = nil
	r.s.d.questions[q.ID] = &c
	return nil
}

func (r questionRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.questions[id]; !ok {
		return apperrors.NewNotFoundError("question", id)
	}
	delete(r.s.d.questions, id)
	return nil
}

func (r questionRepo) ListByOpportunity(_ context.Context, opportunityID int64, answeredOnly bool) ([]*models.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Question
	for _, q := range r.s.d.questions {
		if q.OpportunityID != opportunityID {
			continue
		}
		if answeredOnly && q.AnswerText == "" {
			continue
		}
		out = append(out, r.load(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ==========================
// Categories, bid documents and status
// ==========================

type categoryRepo struct{ s *Store }

func (r categoryRepo) ByIDs(_ context.Context, ids []int64) ([]models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Category
	for _, id := range models.UniqueIDs(ids) {
		if c, ok := r.s.d.categories[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type bidDocumentRepo struct{ s *Store }

func (r bidDocumentRepo) All(_ context.Context) ([]models.RequiredBidDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.RequiredBidDocument, 0, len(r.s.d.bidDocuments))
	for _, doc := range r.s.d.bidDocuments {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r bidDocumentRepo) ByIDs(_ context.Context, ids []int64) ([]models.RequiredBidDocument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.RequiredBidDocument
	for _, id := range models.UniqueIDs(ids) {
		if doc, ok := r.s.d.bidDocuments[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

type statusRepo struct{ s *Store }

func (r statusRepo) Get(_ context.Context) (models.AppStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.d.status, nil
}

func (r statusRepo) SetLastDigest(_ context.Context, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := at.UTC()
	r.s.d.status.LastDigestAt = &t
	return nil
}
