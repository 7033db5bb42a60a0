package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/realestate-gobackend/internal/auth"
	"github.com/markjakearzadon/realestate-gobackend/internal/mail"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
	"github.com/markjakearzadon/realestate-gobackend/internal/payments"
	"github.com/markjakearzadon/realestate-gobackend/internal/services"
	"github.com/markjakearzadon/realestate-gobackend/internal/subscription"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[primitive.ObjectID]*models.User{}}
}

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.Favourites = append([]primitive.ObjectID{}, u.Favourites...)
	return &cp
}

func (f *fakeUsers) put(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	f.users[u.ID] = copyUser(u)
	return u
}

func (f *fakeUsers) get(id primitive.ObjectID) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return copyUser(u)
	}
	return nil
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return services.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now()
	f.users[u.ID] = copyUser(u)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if u := f.get(id); u != nil {
		return u, nil
	}
	return nil, services.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, services.ErrNotFound
}

func (f *fakeUsers) FindByStripeRefs(_ context.Context, customerID, subscriptionID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if (customerID != "" && u.StripeCustomerID == customerID) || (subscriptionID != "" && u.StripeSubscriptionID == subscriptionID) {
			return copyUser(u), nil
		}
	}
	return nil, services.ErrNotFound
}

func (f *fakeUsers) ListByRole(_ context.Context, roles ...string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for _, u := range f.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, *copyUser(u))
			}
		}
	}
	return out, nil
}

func (f *fakeUsers) mutate(id primitive.ObjectID, fn func(u *models.User)) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	fn(u)
	return copyUser(u), nil
}

func (f *fakeUsers) Update(_ context.Context, id primitive.ObjectID, p models.UserPatch) (*models.User, error) {
	return f.mutate(id, func(u *models.User) {
		if p.Name != nil {
			u.Name = *p.Name
		}
		if p.Email != nil {
			u.Email = *p.Email
		}
		if p.HPassword != nil {
			u.HPassword = *p.HPassword
		}
		if p.Role != nil {
			u.Role = *p.Role
		}
		if p.IsApproved != nil {
			u.IsApproved = *p.IsApproved
		}
		if p.ProfileImage != nil {
			u.ProfileImage = *p.ProfileImage
		}
	})
}

func (f *fakeUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return services.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUsers) AddFavourite(_ context.Context, id, propertyID primitive.ObjectID) (*models.User, error) {
	return f.mutate(id, func(u *models.User) {
		if !u.HasFavourite(propertyID) {
			u.Favourites = append(u.Favourites, propertyID)
		}
	})
}

func (f *fakeUsers) RemoveFavourite(_ context.Context, id, propertyID primitive.ObjectID) (*models.User, error) {
	return f.mutate(id, func(u *models.User) {
		kept := u.Favourites[:0]
		for _, fav := range u.Favourites {
			if fav != propertyID {
				kept = append(kept, fav)
			}
		}
		u.Favourites = kept
	})
}

func (f *fakeUsers) UpdateSubscription(_ context.Context, id primitive.ObjectID, up models.SubscriptionUpdate) (*models.User, error) {
	return f.mutate(id, func(u *models.User) {
		u.HasSubscription = up.Active
		if up.Expiry != nil {
			u.SubscriptionExpiry = up.Expiry
		}
		if up.CustomerID != "" {
			u.StripeCustomerID = up.CustomerID
		}
		if up.SubscriptionID != "" {
			u.StripeSubscriptionID = up.SubscriptionID
		}
	})
}

func (f *fakeUsers) SetStripeCustomer(_ context.Context, id primitive.ObjectID, customerID string) error {
	_, err := f.mutate(id, func(u *models.User) { u.StripeCustomerID = customerID })
	return err
}

func (f *fakeUsers) PublicAgents(context.Context) ([]models.AgentCard, error) {
	return []models.AgentCard{}, nil
}

func (f *fakeUsers) Dashboard(context.Context) (models.DashboardStats, error) {
	return models.DashboardStats{}, nil
}

// fakeProperties evaluates the subset of PropertyQuery the handlers use.
type fakeProperties struct {
	mu    sync.Mutex
	props map[primitive.ObjectID]*models.Property
	users *fakeUsers
}

func newFakeProperties(users *fakeUsers) *fakeProperties {
	return &fakeProperties{props: map[primitive.ObjectID]*models.Property{}, users: users}
}

func (f *fakeProperties) put(p *models.Property) *models.Property {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	f.props[p.ID] = &cp
	return p
}

func (f *fakeProperties) get(id primitive.ObjectID) *models.Property {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.props[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (f *fakeProperties) listing(p models.Property) models.PropertyListing {
	l := models.PropertyListing{Property: p}
	if a := f.users.get(p.Agent); a != nil {
		l.AgentRef = &models.AgentSummary{
			ID: a.ID, Name: a.Name, Email: a.Email,
			HasSubscription: a.HasSubscription, SubscriptionExpiry: a.SubscriptionExpiry,
		}
	}
	l.Flatten()
	return l
}

func (f *fakeProperties) Create(_ context.Context, p *models.Property) error {
	p.ID = primitive.NewObjectID()
	f.put(p)
	return nil
}

func (f *fakeProperties) GetByID(_ context.Context, id primitive.ObjectID) (*models.Property, error) {
	if p := f.get(id); p != nil {
		return p, nil
	}
	return nil, services.ErrNotFound
}

func (f *fakeProperties) Listing(_ context.Context, id primitive.ObjectID, activeOnly bool) (*models.PropertyListing, error) {
	p := f.get(id)
	if p == nil || (activeOnly && !p.IsActive) {
		return nil, services.ErrNotFound
	}
	l := f.listing(*p)
	return &l, nil
}

func (f *fakeProperties) Save(_ context.Context, p *models.Property) error {
	if f.get(p.ID) == nil {
		return services.ErrNotFound
	}
	f.put(p)
	return nil
}

func (f *fakeProperties) set(id primitive.ObjectID, fn func(p *models.Property)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.props[id]
	if !ok {
		return services.ErrNotFound
	}
	fn(p)
	return nil
}

func (f *fakeProperties) SetActive(_ context.Context, id primitive.ObjectID, active bool) error {
	return f.set(id, func(p *models.Property) { p.IsActive = active })
}

func (f *fakeProperties) SetFeatured(_ context.Context, id primitive.ObjectID, featured bool) error {
	return f.set(id, func(p *models.Property) { p.IsFeatured = featured })
}

func (f *fakeProperties) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.props[id]; !ok {
		return services.ErrNotFound
	}
	delete(f.props, id)
	return nil
}

func matches(p *models.Property, q models.PropertyQuery) bool {
	if q.ActiveOnly && !p.IsActive {
		return false
	}
	if q.Agent != nil && p.Agent != *q.Agent {
		return false
	}
	if len(q.Statuses) > 0 {
		ok := false
		for _, s := range q.Statuses {
			ok = ok || s == p.Status
		}
		if !ok {
			return false
		}
	}
	if q.PropertyType != "" && p.PropertyType != q.PropertyType {
		return false
	}
	if q.City != "" && !strings.Contains(strings.ToLower(p.Location.City), strings.ToLower(q.City)) {
		return false
	}
	if len(q.IDs) > 0 {
		ok := false
		for _, id := range q.IDs {
			ok = ok || id == p.ID
		}
		if !ok {
			return false
		}
	}
	return true
}

func (f *fakeProperties) filter(q models.PropertyQuery) []models.Property {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Property
	for _, p := range f.props {
		if matches(p, q) {
			out = append(out, *p)
		}
	}
	return out
}

func (f *fakeProperties) List(_ context.Context, q models.PropertyQuery) ([]models.PropertyListing, error) {
	out := []models.PropertyListing{}
	for _, p := range f.filter(q) {
		out = append(out, f.listing(p))
	}
	return out, nil
}

func (f *fakeProperties) Count(_ context.Context, q models.PropertyQuery) (int64, error) {
	return int64(len(f.filter(q))), nil
}

func (f *fakeProperties) Featured(_ context.Context, now time.Time, limit int64) ([]models.PropertyListing, error) {
	out := []models.PropertyListing{}
	for _, p := range f.filter(models.PropertyQuery{ActiveOnly: true, Statuses: models.PublicStatuses}) {
		if !p.IsFeatured || !subscription.UserActive(f.users.get(p.Agent), now) {
			continue
		}
		out = append(out, f.listing(p))
	}
	return out, nil
}

func (f *fakeProperties) TypeCounts(context.Context, string) ([]models.TypeCount, error) {
	return []models.TypeCount{}, nil
}

func (f *fakeProperties) CityCounts(context.Context, string) ([]models.CityCount, error) {
	return []models.CityCount{}, nil
}

func (f *fakeProperties) AgentStats(_ context.Context, agent primitive.ObjectID) (models.PropertyStats, error) {
	return models.PropertyStats{Total: int64(len(f.filter(models.PropertyQuery{Agent: &agent})))}, nil
}

type fakeTours struct {
	mu    sync.Mutex
	tours map[primitive.ObjectID]*models.Tour
}

func newFakeTours() *fakeTours { return &fakeTours{tours: map[primitive.ObjectID]*models.Tour{}} }

func (f *fakeTours) Create(_ context.Context, t *models.Tour) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = primitive.NewObjectID()
	if t.Status == "" {
		t.Status = models.TourPending
	}
	t.IsActive = true
	cp := *t
	f.tours[t.ID] = &cp
	return nil
}

func (f *fakeTours) GetByID(_ context.Context, id primitive.ObjectID) (*models.Tour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tours[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTours) Listing(ctx context.Context, id primitive.ObjectID) (*models.TourListing, error) {
	t, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.TourListing{Tour: *t}, nil
}

func (f *fakeTours) List(_ context.Context, q models.TourQuery) ([]models.TourListing, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.TourListing{}
	for _, t := range f.tours {
		if (q.Agent != nil && t.Agent != *q.Agent) || (q.Status != "" && t.Status != q.Status) ||
			(q.Name != "" && t.Name != q.Name) || (q.Email != "" && t.Email != q.Email) {
			continue
		}
		out = append(out, models.TourListing{Tour: *t})
	}
	return out, int64(len(out)), nil
}

func (f *fakeTours) UpdateStatus(_ context.Context, id primitive.ObjectID, status string) (*models.Tour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tours[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	t.Status = status
	cp := *t
	return &cp, nil
}

func (f *fakeTours) AgentStats(context.Context, primitive.ObjectID, time.Time, time.Time) (models.TourStats, error) {
	return models.TourStats{}, nil
}

type fakeMessages struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (f *fakeMessages) Create(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = primitive.NewObjectID()
	m.IsActive = true
	f.msgs = append(f.msgs, *m)
	return nil
}

func (f *fakeMessages) ByTour(_ context.Context, tourID primitive.ObjectID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Message{}
	for _, m := range f.msgs {
		if m.Tour == tourID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) Counts(_ context.Context, tourID primitive.ObjectID) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total, unread int64
	for _, m := range f.msgs {
		if m.Tour != tourID {
			continue
		}
		total++
		if m.Sender == models.SenderUser && !m.IsRead {
			unread++
		}
	}
	return total, unread, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, tourID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.msgs {
		if m := &f.msgs[i]; m.Tour == tourID && m.Sender == models.SenderUser && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

type fakeReviews struct {
	mu      sync.Mutex
	reviews []models.Review
}

func (f *fakeReviews) Create(_ context.Context, r *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = primitive.NewObjectID()
	r.IsActive = true
	f.reviews = append(f.reviews, *r)
	return nil
}

func (f *fakeReviews) by(match func(r models.Review) bool) []models.ReviewListing {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ReviewListing{}
	for _, r := range f.reviews {
		if match(r) {
			out = append(out, models.ReviewListing{Review: r})
		}
	}
	return out
}

func (f *fakeReviews) ByProperty(_ context.Context, id primitive.ObjectID) ([]models.ReviewListing, error) {
	return f.by(func(r models.Review) bool { return r.Property == id }), nil
}

func (f *fakeReviews) ByAgent(_ context.Context, id primitive.ObjectID) ([]models.ReviewListing, error) {
	return f.by(func(r models.Review) bool { return r.Agent == id }), nil
}

type fakeImages struct {
	mu      sync.Mutex
	n       int
	removed []string
}

func (f *fakeImages) Save(files []*multipart.FileHeader) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(files))
	for range files {
		f.n++
		names = append(names, fmt.Sprintf("img-%d.jpg", f.n))
	}
	return names, nil
}

func (f *fakeImages) Remove(names ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		if n != "" {
			f.removed = append(f.removed, n)
		}
	}
	return nil
}

func (f *fakeImages) Handler() http.Handler { return http.NotFoundHandler() }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (n *fakeNotifier) Go(msg mail.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *fakeNotifier) Send(_ context.Context, msg mail.Message) error {
	n.Go(msg)
	return nil
}

type fakeRefresh struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (f *fakeRefresh) Save(_ context.Context, token, userID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = userID
	return nil
}

func (f *fakeRefresh) Consume(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return "", auth.ErrRefreshNotFound
	}
	delete(f.tokens, token)
	return id, nil
}

func (f *fakeRefresh) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	return nil
}

type fakeGateway struct {
	customers int
	last      payments.CheckoutRequest
}

func (g *fakeGateway) CreateCustomer(_ context.Context, agent *models.User) (string, error) {
	g.customers++
	return "cus_" + agent.ID.Hex(), nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (string, error) {
	g.last = req
	return "https://checkout.stripe.test/" + req.AgentID, nil
}
