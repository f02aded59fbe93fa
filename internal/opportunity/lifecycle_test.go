package opportunity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/clock"
	apperrors "beacon/internal/common/errors"
	"beacon/internal/common/logger"
	"beacon/internal/events"
	"beacon/internal/models"
	"beacon/internal/notify"
	"beacon/internal/store"
	"beacon/internal/store/memstore"
)

// ==========================
// Mock Implementations
// ==========================

type MockSender struct {
	mu           sync.Mutex
	DispatchFunc func(ctx context.Context, n notify.Notification) (notify.Result, error)
	Calls        []notify.Notification
}

func (m *MockSender) Dispatch(ctx context.Context, n notify.Notification) (notify.Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, n)
	m.mu.Unlock()
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, n)
	}
	return notify.Result{Attempted: len(n.Recipients), Sent: len(n.Recipients)}, nil
}

func (m *MockSender) OfKind(kind notify.Kind) []notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.Notification
	for _, n := range m.Calls {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type MockIndex struct {
	Indexed []int64
	Removed []int64
}

func (m *MockIndex) Index(_ context.Context, o *models.Opportunity, _ []models.Category) error {
	m.Indexed = append(m.Indexed, o.ID)
	return nil
}

func (m *MockIndex) Remove(_ context.Context, id int64) error {
	m.Removed = append(m.Removed, id)
	return nil
}

type MockPublisher struct {
	Events []events.Event
}

func (m *MockPublisher) Publish(_ context.Context, e events.Event) error {
	m.Events = append(m.Events, e)
	return nil
}

func (m *MockPublisher) Types() []events.Type {
	out := make([]events.Type, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Type
	}
	return out
}

// ==========================
// Fixture
// ==========================

type fixture struct {
	ctx       context.Context
	now       time.Time
	store     *memstore.Store
	sender    *MockSender
	index     *MockIndex
	publisher *MockPublisher
	ctrl      *Controller

	creator   *models.User
	contact   *models.User
	stranger  *models.User
	conductor *models.User
	approver  *models.User

	roads models.Category
	snow  models.Category
	paint models.Category
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	f := &fixture{
		ctx:       context.Background(),
		now:       stateNow,
		store:     memstore.New(),
		sender:    &MockSender{},
		index:     &MockIndex{},
		publisher: &MockPublisher{},
	}
	f.creator = f.store.AddUser(models.User{Email: "creator@example.gov", Roles: []string{models.RoleStaff}})
	f.contact = f.store.AddUser(models.User{Email: "contact@example.gov", Roles: []string{models.RoleStaff}})
	f.stranger = f.store.AddUser(models.User{Email: "stranger@example.gov", Roles: []string{models.RoleStaff}})
	f.conductor = f.store.AddUser(models.User{Email: "conductor@example.gov", Roles: []string{models.RoleConductor}})
	f.approver = f.store.AddUser(models.User{Email: "omb@example.gov", Roles: []string{models.RoleAdmin}})

	f.roads = f.store.AddCategory(models.Category{Name: "Roads"})
	f.snow = f.store.AddCategory(models.Category{Name: "Roads", Subcategory: "Snow removal"})
	f.paint = f.store.AddCategory(models.Category{Name: "Paint"})

	f.ctrl = NewController(Dependencies{
		Store:    f.store,
		Resolver: notify.NewResolver(),
		Sender:   f.sender,
		Views:    notify.NewViews("https://beacon.example.gov", time.UTC),
		Clock:    clock.NewFunc(func() time.Time { return f.now }),
		Window:   clock.NewWindow(time.UTC),
		Logger:   logger.NewTestLogger(t),
		Events:   f.publisher,
		Index:    f.index,
	}, policy)
	return f
}

func (f *fixture) input() Input {
	return Input{
		Title:           "Snow removal services",
		Description:     "<p>Plow city lots</p>",
		PlannedPublish:  day(-1),
		SubmissionStart: day(0),
		SubmissionEnd:   day(2),
		ContactID:       f.contact.ID,
		CategoryIDs:     []int64{f.snow.ID, f.roads.ID, f.snow.ID},
		SubmissionKind:  models.SubmissionEmail,
		SubmissionData:  map[string]string{"email": "bids@example.gov"},
	}
}

func (f *fixture) addVendor(t *testing.T, email string, categories ...int64) *models.Vendor {
	t.Helper()
	v := &models.Vendor{Email: email, BusinessName: email, CategoryIDs: categories}
	require.NoError(t, f.store.Vendors().Create(f.ctx, v))
	return v
}

func (f *fixture) draft(t *testing.T) *models.Opportunity {
	t.Helper()
	o, err := f.ctrl.Create(f.ctx, f.input(), f.creator, nil, false)
	require.NoError(t, err)
	f.sender.Calls = nil
	return o
}

func recipients(ns []notify.Notification) []string {
	var out []string
	for _, n := range ns {
		out = append(out, n.Recipients...)
	}
	return out
}

// ==========================
// Create
// ==========================

func TestCreate_DraftRequestsApproval(t *testing.T) {
	f := newFixture(t, Policy{})
	f.addVendor(t, "plow@vendor.com", f.snow.ID)

	o, err := f.ctrl.Create(f.ctx, f.input(), f.creator, nil, false)
	require.NoError(t, err)

	assert.False(t, o.IsPublic)
	assert.False(t, o.PublishNotificationSent)
	assert.Nil(t, o.PublishedAt)
	assert.Equal(t, []int64{f.roads.ID, f.snow.ID}, o.CategoryIDs)
	assert.Equal(t, f.creator.ID, o.CreatedByID)
	assert.Equal(t, f.contact.ID, o.ContactID)

	assert.Equal(t, []string{"creator@example.gov"}, recipients(f.sender.OfKind(notify.KindPostSubmitted)))
	assert.Equal(t, []string{"conductor@example.gov", "omb@example.gov"}, recipients(f.sender.OfKind(notify.KindNeedsReview)))
	assert.Empty(t, f.sender.OfKind(notify.KindNewOpportunity))
	assert.Equal(t, []events.Type{events.OpportunityCreated}, f.publisher.Types())
	assert.Equal(t, []int64{o.ID}, f.index.Removed)
}

func TestCreate_ApproverPublishesImmediately(t *testing.T) {
	f := newFixture(t, Policy{})
	f.addVendor(t, "plow@vendor.com", f.snow.ID)
	f.addVendor(t, "painter@vendor.com", f.paint.ID)

	o, err := f.ctrl.Create(f.ctx, f.input(), f.approver, nil, true)
	require.NoError(t, err)

	assert.True(t, o.IsPublic)
	assert.True(t, o.PublishNotificationSent)
	require.NotNil(t, o.PublishedAt)
	assert.True(t, f.now.Equal(*o.PublishedAt))

	blasts := f.sender.OfKind(notify.KindNewOpportunity)
	require.Len(t, blasts, 1)
	assert.True(t, blasts[0].Multi)
	assert.Equal(t, notify.NewOpportunityKey(o.ID), blasts[0].DedupKey)
	assert.Equal(t, []string{"plow@vendor.com"}, blasts[0].Recipients)
	assert.Empty(t, f.sender.OfKind(notify.KindNeedsReview))
	assert.Empty(t, f.sender.OfKind(notify.KindPostSubmitted))
	assert.Equal(t, []int64{o.ID}, f.index.Indexed)
}

func TestCreate_ApproverWithoutPublishSendsNothing(t *testing.T) {
	f := newFixture(t, Policy{})
	o, err := f.ctrl.Create(f.ctx, f.input(), f.approver, nil, false)
	require.NoError(t, err)
	assert.False(t, o.IsPublic)
	assert.Empty(t, f.sender.Calls)
}

func TestCreate_Gates(t *testing.T) {
	f := newFixture(t, Policy{})

	_, err := f.ctrl.Create(f.ctx, f.input(), models.Anonymous, nil, false)
	assert.True(t, apperrors.IsUnauthorized(err))

	_, err = f.ctrl.Create(f.ctx, f.input(), f.creator, nil, true)
	assert.True(t, apperrors.IsUnauthorized(err))

	all, err := f.store.Opportunities().Query(f.ctx, store.OpportunityFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		modify func(f *fixture, in *Input)
		fields []string
	}{
		{
			name: "missing title and dates",
			modify: func(_ *fixture, in *Input) {
				in.Title = " "
				in.PlannedPublish = time.Time{}
				in.SubmissionEnd = time.Time{}
			},
			fields: []string{"title", "plannedPublish", "submissionEnd"},
		},
		{
			name:   "qa bounds required together",
			modify: func(_ *fixture, in *Input) { in.QAEnabled = true; qa := day(0); in.QAStart = &qa },
			fields: []string{"qaEnd"},
		},
		{
			name:   "submission data checked against kind",
			modify: func(_ *fixture, in *Input) { in.SubmissionData = nil },
			fields: []string{"submissionData.email"},
		},
		{
			name:   "unknown contact",
			modify: func(_ *fixture, in *Input) { in.ContactID = 999 },
			fields: []string{"contactId"},
		},
		{
			name:   "unknown category",
			modify: func(_ *fixture, in *Input) { in.CategoryIDs = []int64{999} },
			fields: []string{"categoryIds"},
		},
		{
			name:   "inverted submission window allowed by default",
			modify: func(_ *fixture, in *Input) { in.SubmissionEnd = day(-3) },
		},
		{
			name:   "inverted submission window rejected when strict",
			policy: Policy{StrictDateOrder: true},
			modify: func(_ *fixture, in *Input) { in.SubmissionEnd = day(-3) },
			fields: []string{"submissionEnd"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.policy)
			in := f.input()
			tt.modify(f, &in)

			_, err := f.ctrl.Create(f.ctx, in, f.creator, nil, false)
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			std := apperrors.AsStandard(err)
			require.NotNil(t, std)
			var got []string
			for _, fe := range std.Fields {
				got = append(got, fe.Field)
			}
			assert.Equal(t, tt.fields, got)

			all, err := f.store.Opportunities().Query(f.ctx, store.OpportunityFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
			assert.Empty(t, f.sender.Calls)
		})
	}
}

func TestCreate_DocumentsInOneBatchAreNotComparedWithEachOther(t *testing.T) {
	f := newFixture(t, Policy{})
	o, err := f.ctrl.Create(f.ctx, f.input(), f.creator, []models.DocumentUpload{
		{Title: "rfp.pdf", Filename: "a.pdf", Href: "https://files.example.gov/1/a.pdf"},
		{Title: "Addendum", Filename: "rfp.pdf", Href: "https://files.example.gov/1/rfp.pdf"},
		{Title: "Map", Filename: "same.pdf", Href: "https://files.example.gov/1/same.pdf"},
		{Title: "Map copy", Filename: "same.pdf", Href: "https://files.example.gov/1/same-2.pdf"},
	}, false)
	require.NoError(t, err)

	docs, err := f.ctrl.Documents(f.ctx, o.ID, f.creator)
	require.NoError(t, err)
	var names []string
	for _, d := range docs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"rfp.pdf", "Addendum", "Map", "Map copy"}, names)

	// A later upload named like an attached document is skipped.
	_, err = f.ctrl.Update(f.ctx, o.ID, f.input(), f.creator, []models.DocumentUpload{
		{Title: "Addendum 2", Filename: "Addendum", Href: "https://files.example.gov/1/addendum.pdf"},
	}, false)
	require.NoError(t, err)
	docs, err = f.ctrl.Documents(f.ctx, o.ID, f.creator)
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}

func TestCreate_Documents(t *testing.T) {
	f := newFixture(t, Policy{})
	o, err := f.ctrl.Create(f.ctx, f.input(), f.creator, []models.DocumentUpload{
		{Title: "Specs", Filename: "specs.pdf", Href: "https://files.example.gov/1/specs.pdf"},
		{Title: "", Filename: "blank.pdf", Href: "https://files.example.gov/1/blank.pdf"},
	}, false)
	require.NoError(t, err)

	_, err = f.ctrl.Update(f.ctx, o.ID, f.input(), f.creator, []models.DocumentUpload{
		{Title: "Specs again", Filename: "Specs", Href: "https://files.example.gov/1/Specs"},
		{Title: "Map", Filename: "map.png", Href: "https://files.example.gov/1/map.png"},
	}, false)
	require.NoError(t, err)

	docs, err := f.ctrl.Documents(f.ctx, o.ID, f.creator)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Specs", docs[0].Name)
	assert.Equal(t, "Map", docs[1].Name)

	snap, err := f.ctrl.Snapshot(f.ctx, o.ID, f.creator)
	require.NoError(t, err)
	assert.True(t, snap.HasDocuments)
	assert.Equal(t, PhaseDraft, snap.Phase)

	require.NoError(t, f.ctrl.RemoveDocument(f.ctx, o.ID, docs[1].ID, f.contact))
	err = f.ctrl.RemoveDocument(f.ctx, o.ID, docs[0].ID, f.stranger)
	assert.True(t, apperrors.IsUnauthorized(err))

	docs, err = f.ctrl.Documents(f.ctx, o.ID, f.creator)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestVendorDocuments(t *testing.T) {
	f := newFixture(t, Policy{})
	bond := f.store.AddBidDocument(models.RequiredBidDocument{DisplayName: "Bid bond", Description: "Five percent of the bid"})
	insurance := f.store.AddBidDocument(models.RequiredBidDocument{
		DisplayName: "Insurance certificate",
		Description: "Proof of liability coverage",
		FormHref:    "https://files.example.gov/forms/insurance.pdf",
	})

	tests := []struct {
		name    string
		needed  []int64
		wantErr bool
		want    []string
	}{
		{name: "none required"},
		{name: "duplicates collapse", needed: []int64{insurance.ID, bond.ID, insurance.ID}, want: []string{"Bid bond", "Insurance certificate"}},
		{name: "unknown id rejected", needed: []int64{bond.ID, 4242}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input()
			in.VendorDocumentsNeeded = tt.needed
			o, err := f.ctrl.Create(f.ctx, in, f.creator, nil, false)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.want) > 0, f.ctrl.HasVendorDocuments(o))

			docs, err := f.ctrl.VendorDocuments(f.ctx, o)
			require.NoError(t, err)
			var names []string
			for _, d := range docs {
				names = append(names, d.DisplayName)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestVendorDocuments_SkipsUnknownIDs(t *testing.T) {
	f := newFixture(t, Policy{})
	bond := f.store.AddBidDocument(models.RequiredBidDocument{DisplayName: "Bid bond", Description: "Five percent of the bid"})

	in := f.input()
	in.VendorDocumentsNeeded = []int64{bond.ID}
	o, err := f.ctrl.Create(f.ctx, in, f.creator, nil, false)
	require.NoError(t, err)

	// Ids kept on the opportunity survive edits that do not touch them.
	updated, err := f.ctrl.Update(f.ctx, o.ID, FromOpportunity(o), f.creator, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{bond.ID}, updated.VendorDocumentsNeeded)

	stale := updated.Clone()
	stale.VendorDocumentsNeeded = append(stale.VendorDocumentsNeeded, 4242)
	docs, err := f.ctrl.VendorDocuments(f.ctx, stale)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Bid bond", docs[0].DisplayName)
}

// ==========================
// Publish
// ==========================

func TestPublish_TwiceNotifiesOnce(t *testing.T) {
	f := newFixture(t, Policy{})
	f.addVendor(t, "plow@vendor.com", f.snow.ID)
	f.addVendor(t, "roads@vendor.com", f.roads.ID, f.snow.ID)
	o := f.draft(t)

	first, err := f.ctrl.Publish(f.ctx, o.ID, f.approver)
	require.NoError(t, err)
	second, err := f.ctrl.Publish(f.ctx, o.ID, f.approver)
	require.NoError(t, err)

	assert.True(t, first.PublishNotificationSent)
	assert.True(t, second.PublishNotificationSent)
	assert.Equal(t, first.PublishedAt, second.PublishedAt)

	blasts := f.sender.OfKind(notify.KindNewOpportunity)
	require.Len(t, blasts, 1)
	assert.Equal(t, []string{"plow@vendor.com", "roads@vendor.com"}, blasts[0].Recipients)

	approved := f.sender.OfKind(notify.KindApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, []string{"creator@example.gov"}, approved[0].Recipients)

	assert.Equal(t, []events.Type{
		events.OpportunityCreated,
		events.OpportunityApproved,
		events.OpportunityNotified,
	}, f.publisher.Types())
}

func TestPublish_Gates(t *testing.T) {
	f := newFixture(t, Policy{})
	o := f.draft(t)

	_, err := f.ctrl.Publish(f.ctx, o.ID, f.creator)
	assert.True(t, apperrors.IsUnauthorized(err))

	_, err = f.ctrl.Publish(f.ctx, 4242, f.approver)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.ctrl.Archive(f.ctx, o.ID, f.approver)
	require.NoError(t, err)
	_, err = f.ctrl.Publish(f.ctx, o.ID, f.approver)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, f.sender.OfKind(notify.KindNewOpportunity))
}

func TestPublish_FutureDayWaitsForSweep(t *testing.T) {
	f := newFixture(t, Policy{})
	f.addVendor(t, "plow@vendor.com", f.snow.ID)
	in := f.input()
	in.PlannedPublish = day(1)
	in.SubmissionStart = day(1)
	in.SubmissionEnd = day(5)
	o, err := f.ctrl.Create(f.ctx, in, f.creator, nil, false)
	require.NoError(t, err)

	o, err = f.ctrl.Publish(f.ctx, o.ID, f.approver)
	require.NoError(t, err)
	assert.True(t, o.IsPublic)
	assert.False(t, o.PublishNotificationSent)
	assert.Empty(t, f.sender.OfKind(notify.KindNewOpportunity))

	count, err := f.ctrl.SendDueNotifications(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	f.now = f.now.Add(24 * time.Hour)
	count, err = f.ctrl.SendDueNotifications(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = f.ctrl.SendDueNotifications(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	blasts := f.sender.OfKind(notify.KindNewOpportunity)
	require.Len(t, blasts, 1)
	assert.Equal(t, []string{"plow@vendor.com"}, blasts[0].Recipients)

	got, err := f.ctrl.Get(f.ctx, o.ID, models.Anonymous)
	require.NoError(t, err)
	assert.True(t, got.PublishNotificationSent)
	assert.Contains(t, f.index.Indexed, o.ID)
}

func TestPublish_DeliveryFailureStillLatches(t *testing.T) {
	f := newFixture(t, Policy{})
	f.addVendor(t, "bounce@vendor.com", f.snow.ID)
	f.sender.DispatchFunc = func(_ context.Context, n notify.Notification) (notify.Result, error) {
		if n.Kind != notify.KindNewOpportunity {
			return notify.Result{}, nil
		}
		return notify.Result{
			Attempted: 1,
			Failed:    1,
			Failures:  []error{apperrors.NewDispatchFailedError("bounce@vendor.com", errors.New("mailbox unavailable"))},
		}, nil
	}
	o := f.draft(t)

	o, err := f.ctrl.Publish(f.ctx, o.ID, f.approver)
	require.NoError(t, err)
	assert.True(t, o.PublishNotificationSent)
}

func TestPublish_RenderFailureRollsBack(t *testing.T) {
	f := newFixture(t, Policy{})
	o := f.draft(t)
	f.sender.DispatchFunc = func(_ context.Context, n notify.Notification) (notify.Result, error) {
		if n.Kind == notify.KindNewOpportunity {
			return notify.Result{}, errors.New("template: new_opportunity: missing")
		}
		return notify.Result{}, nil
	}

	_, err := f.ctrl.Publish(f.ctx, o.ID, f.approver)
	require.Error(t, err)

	got, err := f.store.Opportunities().Get(f.ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublic)
	assert.False(t, got.PublishNotificationSent)
	assert.Empty(t, f.sender.OfKind(notify.KindApproved))
}

func TestPublish_FanOutThroughDispatcher(t *testing.T) {
	f := newFixture(t, Policy{})
	var mu sync.Mutex
	var sent []*models.Message
	mailer := notify.MailerFunc(func(_ context.Context, msg *models.Message) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, msg)
		return nil
	})
	f.ctrl.sender = notify.NewDispatcher(mailer, notify.MustLoadTemplates(), notify.DispatcherConfig{
		From: "beacon@example.gov",
	}, logger.NewTestLogger(t))

	f.addVendor(t, "one@vendor.com", f.snow.ID)
	f.addVendor(t, "Two@Vendor.com", f.snow.ID, f.roads.ID)
	f.addVendor(t, "painter@vendor.com", f.paint.ID)

	_, err := f.ctrl.Create(f.ctx, f.input(), f.approver, nil, true)
	require.NoError(t, err)

	var to []string
	for _, m := range sent {
		if m.Kind != string(notify.KindNewOpportunity) {
			continue
		}
		require.Len(t, m.To, 1)
		to = append(to, m.To[0])
		assert.Contains(t, m.HTMLBody, "Snow removal services")
	}
	assert.Equal(t, []string{"one@vendor.com", "two@vendor.com"}, to)
}

// ==========================
// Update
// ==========================

func TestUpdate_EditGate(t *testing.T) {
	tests := []struct {
		name    string
		public  bool
		actor   func(f *fixture) *models.User
		allowed bool
	}{
		{"creator on draft", false, func(f *fixture) *models.User { return f.creator }, true},
		{"contact on draft", false, func(f *fixture) *models.User { return f.contact }, true},
		{"stranger on draft", false, func(f *fixture) *models.User { return f.stranger }, false},
		{"anonymous on draft", false, func(_ *fixture) *models.User { return models.Anonymous }, false},
		{"approver on draft", false, func(f *fixture) *models.User { return f.approver }, true},
		{"creator on public", true, func(f *fixture) *models.User { return f.creator }, false},
		{"contact on public", true, func(f *fixture) *models.User { return f.contact }, false},
		{"approver on public", true, func(f *fixture) *models.User { return f.approver }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Policy{})
			o := f.draft(t)
			if tt.public {
				var err error
				o, err = f.ctrl.Publish(f.ctx, o.ID, f.approver)
				require.NoError(t, err)
			}
			actor := tt.actor(f)
			assert.Equal(t, tt.allowed, f.ctrl.CanEdit(actor, o))

			in := f.input()
			in.Title = "Renamed"
			updated, err := f.ctrl.Update(f.ctx, o.ID, in, actor, nil, false)
			if !tt.allowed {
				assert.True(t, apperrors.IsUnauthorized(err))
				got, _ := f.store.Opportunities().Get(f.ctx, o.ID)
				assert.Equal(t, "Snow removal services", got.Title)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Renamed", updated.Title)
			require.NotNil(t, updated.UpdatedByID)
			assert.Equal(t, actor.ID, *updated.UpdatedByID)
		})
	}
}

func TestUpdate_IgnoresNotificationFlag(t *testing.T) {
	f := newFixture(t, Policy{})
	o := f.draft(t)
	_, err := f.ctrl.Publish(f.ctx, o.ID, f.approver)
	require.NoError(t, err)

	in := f.input()
	reset := false
	in.PublishNotificationSent = &reset
	updated, err := f.ctrl.Update(f.ctx, o.ID, in, f.approver, nil, false)
	require.NoError(t, err)

	assert.True(t, updated.PublishNotificationSent)
	assert.True(t, updated.IsPublic)
	assert.Len(t, f.sender.OfKind(notify.KindNewOpportunity), 1)
}

func TestUpdate_PublishRequest(t *testing.T) {
	f := newFixture(t, Policy{})
	f.addVendor(t, "plow@vendor.com", f.snow.ID)
	o := f.draft(t)

	_, err := f.ctrl.Update(f.ctx, o.ID, f.input(), f.creator, nil, true)
	assert.True(t, apperrors.IsUnauthorized(err))

	updated, err := f.ctrl.Update(f.ctx, o.ID, f.input(), f.approver, nil, true)
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
	assert.True(t, updated.PublishNotificationSent)

	// publish=false never takes an opportunity back to draft.
	updated, err = f.ctrl.Update(f.ctx, o.ID, f.input(), f.approver, nil, false)
	require.NoError(t, err)
	assert.True(t, updated.IsPublic)
	assert.Len(t, f.sender.OfKind(notify.KindNewOpportunity), 1)
}

func TestUpdate_ArchivedDraftCannotBePublished(t *testing.T) {
	f := newFixture(t, Policy{})
	f.addVendor(t, "plow@vendor.com", f.snow.ID)
	o := f.draft(t)
	_, err := f.ctrl.Archive(f.ctx, o.ID, f.approver)
	require.NoError(t, err)

	_, err = f.ctrl.Update(f.ctx, o.ID, f.input(), f.approver, nil, true)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	got, err := f.store.Opportunities().Get(f.ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublic)
	assert.True(t, got.IsArchived)
	assert.False(t, got.PublishNotificationSent)
	assert.Empty(t, f.sender.OfKind(notify.KindNewOpportunity))

	// Plain edits to an archived draft still go through.
	in := f.input()
	in.Title = "Snow removal, archived"
	updated, err := f.ctrl.Update(f.ctx, o.ID, in, f.approver, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Snow removal, archived", updated.Title)
	assert.False(t, updated.IsPublic)
}

func TestUpdate_ValidationLeavesEntityUntouched(t *testing.T) {
	f := newFixture(t, Policy{})
	o := f.draft(t)

	in := f.input()
	in.Title = "Renamed"
	in.SubmissionStart = time.Time{}
	_, err := f.ctrl.Update(f.ctx, o.ID, in, f.creator, nil, false)
	assert.True(t, apperrors.IsValidation(err))

	got, err := f.store.Opportunities().Get(f.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Snow removal services", got.Title)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t, Policy{})
	_, err := f.ctrl.Update(f.ctx, 4242, f.input(), f.approver, nil, false)
	assert.True(t, apperrors.IsNotFound(err))
}

// ==========================
// Archive and views
// ==========================

func TestArchive(t *testing.T) {
	f := newFixture(t, Policy{})
	o := f.draft(t)
	_, err := f.ctrl.Publish(f.ctx, o.ID, f.approver)
	require.NoError(t, err)

	_, err = f.ctrl.Archive(f.ctx, o.ID, f.creator)
	assert.True(t, apperrors.IsUnauthorized(err))

	archived, err := f.ctrl.Archive(f.ctx, o.ID, f.approver)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)
	assert.True(t, archived.PublishNotificationSent)
	assert.Contains(t, f.index.Removed, o.ID)

	again, err := f.ctrl.Archive(f.ctx, o.ID, f.approver)
	require.NoError(t, err)
	assert.True(t, again.IsArchived)

	var archivedEvents int
	for _, typ := range f.publisher.Types() {
		if typ == events.OpportunityArchived {
			archivedEvents++
		}
	}
	assert.Equal(t, 1, archivedEvents)

	listing, err := f.ctrl.Browse(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, listing.Open)
}

func TestCanView(t *testing.T) {
	f := newFixture(t, Policy{})
	o := f.draft(t)

	_, err := f.ctrl.Get(f.ctx, o.ID, models.Anonymous)
	assert.True(t, apperrors.IsUnauthorized(err))
	_, err = f.ctrl.Snapshot(f.ctx, o.ID, models.Anonymous)
	assert.True(t, apperrors.IsUnauthorized(err))

	got, err := f.ctrl.Get(f.ctx, o.ID, f.stranger)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.ctrl.Publish(f.ctx, o.ID, f.approver)
	require.NoError(t, err)
	snap, err := f.ctrl.Snapshot(f.ctx, o.ID, models.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, PhaseOpen, snap.Phase)

	_, err = f.ctrl.Get(f.ctx, 4242, models.Anonymous)
	assert.True(t, apperrors.IsNotFound(err))
}

// ==========================
// Listings and digest
// ==========================

func TestListings(t *testing.T) {
	f := newFixture(t, Policy{})

	create := func(title string, planned, start, end time.Time, publish bool) *models.Opportunity {
		in := f.input()
		in.Title = title
		in.PlannedPublish, in.SubmissionStart, in.SubmissionEnd = planned, start, end
		o, err := f.ctrl.Create(f.ctx, in, f.approver, nil, publish)
		require.NoError(t, err)
		return o
	}

	pending := create("pending", day(1), day(2), day(5), false)
	create("pending but over", day(-9), day(-8), day(-1), false)
	scheduled := create("scheduled", day(2), day(3), day(6), true)
	open := create("open", day(-2), day(-1), day(3), true)
	upcoming := create("upcoming", day(-2), day(2), day(4), true)
	expired := create("expired", day(-9), day(-8), f.now.Add(-time.Hour), true)
	gone := create("archived", day(-2), day(-1), day(3), true)
	_, err := f.ctrl.Archive(f.ctx, gone.ID, f.approver)
	require.NoError(t, err)

	ids := func(opps []*models.Opportunity) []int64 {
		var out []int64
		for _, o := range opps {
			out = append(out, o.ID)
		}
		return out
	}

	got, err := f.ctrl.Pending(f.ctx, f.approver)
	require.NoError(t, err)
	assert.Equal(t, []int64{pending.ID}, ids(got))

	got, err = f.ctrl.Approved(f.ctx, f.approver)
	require.NoError(t, err)
	assert.Equal(t, []int64{scheduled.ID}, ids(got))

	got, err = f.ctrl.Expired(f.ctx, f.approver)
	require.NoError(t, err)
	assert.Equal(t, []int64{expired.ID}, ids(got))

	listing, err := f.ctrl.Browse(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{open.ID}, ids(listing.Open))
	assert.Equal(t, []int64{upcoming.ID}, ids(listing.Upcoming))

	_, err = f.ctrl.Pending(f.ctx, models.Anonymous)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestSendDigest(t *testing.T) {
	f := newFixture(t, Policy{})
	news := &models.Vendor{Email: "reader@vendor.com", SubscribedToNewsletter: true}
	require.NoError(t, f.store.Vendors().Create(f.ctx, news))
	f.addVendor(t, "quiet@vendor.com")

	res, err := f.ctrl.SendDigest(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Opportunities)
	assert.Empty(t, f.sender.OfKind(notify.KindDigest))

	_, err = f.ctrl.Create(f.ctx, f.input(), f.approver, nil, true)
	require.NoError(t, err)
	in := f.input()
	in.Title = "Road paint"
	_, err = f.ctrl.Create(f.ctx, in, f.approver, nil, true)
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	res, err = f.ctrl.SendDigest(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Opportunities)

	digests := f.sender.OfKind(notify.KindDigest)
	require.Len(t, digests, 1)
	assert.True(t, digests[0].Multi)
	assert.Equal(t, []string{"reader@vendor.com"}, digests[0].Recipients)
	assert.Len(t, digests[0].Data.Opportunities, 2)

	status, err := f.store.Status().Get(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, status.LastDigestAt)
	assert.True(t, f.now.Equal(*status.LastDigestAt))

	res, err = f.ctrl.SendDigest(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Opportunities)
	assert.Len(t, f.sender.OfKind(notify.KindDigest), 1)
}
