// Package memstore keeps users, listings and bookings in memory behind the
// same interfaces the Postgres repositories implement. Tests use it in place
// of a database.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-lodge-escrow/internal/bookings"
	"github.com/ariefcatur/go-lodge-escrow/internal/listings"
	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	"github.com/google/uuid"
)

type DB struct {
	mu       sync.Mutex
	users    map[string]users.User
	listings map[string]listings.Listing
	bookings map[string]bookings.Booking
}

func New() *DB {
	return &DB{
		users:    map[string]users.User{},
		listings: map[string]listings.Listing{},
		bookings: map[string]bookings.Booking{},
	}
}

func (db *DB) Users() *Users       { return &Users{db} }
func (db *DB) Listings() *Listings { return &Listings{db} }
func (db *DB) Bookings() *Bookings { return &Bookings{db} }

// ---- users ----

type Users struct{ db *DB }

func (s *Users) Create(_ context.Context, u *users.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, x := range s.db.users {
		if strings.EqualFold(x.Email, u.Email) {
			return users.ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.db.users[u.ID] = *u
	return nil
}

func (s *Users) GetByID(_ context.Context, id string) (users.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (s *Users) GetByEmail(_ context.Context, email string) (users.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

func (s *Users) Update(_ context.Context, u users.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[u.ID]; !ok {
		return users.ErrNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	s.db.users[u.ID] = u
	return nil
}

func (s *Users) SetRecipientCode(_ context.Context, id, code string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return users.ErrNotFound
	}
	u.RecipientCode = code
	s.db.users[id] = u
	return nil
}

// ---- listings ----

type Listings struct{ db *DB }

func (s *Listings) Create(_ context.Context, l *listings.Listing) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	s.db.listings[l.ID] = *l
	return nil
}

func (s *Listings) Get(_ context.Context, id string) (listings.Listing, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.listings[id]
	if !ok {
		return listings.Listing{}, listings.ErrNotFound
	}
	return l, nil
}

func (s *Listings) List(_ context.Context, f listings.Filters) ([]listings.Listing, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []listings.Listing{}
	q := strings.ToLower(f.Search)
	for _, l := range s.db.listings {
		switch {
		case l.Status != listings.StatusActive,
			f.Area != "" && l.Area != f.Area,
			f.MinPrice > 0 && l.PricePerYear < f.MinPrice,
			f.MaxPrice > 0 && l.PricePerYear > f.MaxPrice,
			f.MaxDistance > 0 && l.DistanceFromUNN > f.MaxDistance,
			q != "" && !strings.Contains(strings.ToLower(l.LodgeName+" "+l.LodgeAddress+" "+l.Description), q):
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Listings) ListByLandlord(_ context.Context, landlordID string) ([]listings.Listing, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []listings.Listing{}
	for _, l := range s.db.listings {
		if l.LandlordID == landlordID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Listings) Update(_ context.Context, id string, fn func(*listings.Listing) error) (listings.Listing, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.listings[id]
	if !ok {
		return listings.Listing{}, listings.ErrNotFound
	}
	if err := fn(&l); err != nil {
		return listings.Listing{}, err
	}
	l.UpdatedAt = time.Now().UTC()
	s.db.listings[id] = l
	return l, nil
}

func (s *Listings) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.listings[id]; !ok {
		return listings.ErrNotFound
	}
	for _, b := range s.db.bookings {
		if b.ListingID == id {
			return listings.ErrHasBookings
		}
	}
	delete(s.db.listings, id)
	return nil
}

// ---- bookings ----

type Bookings struct{ db *DB }

// detail fills the denormalized relations the way the SQL join does. Caller holds mu.
func (s *Bookings) detail(b bookings.Booking) bookings.Booking {
	if l, ok := s.db.listings[b.ListingID]; ok {
		b.Listing = &bookings.ListingSummary{ID: l.ID, LodgeName: l.LodgeName, LodgeAddress: l.LodgeAddress, Area: l.Area, PricePerYear: l.PricePerYear}
	}
	if u, ok := s.db.users[b.StudentID]; ok {
		b.Student = &bookings.Party{ID: u.ID, FullName: u.FullName, Email: u.Email, PhoneNumber: u.PhoneNumber}
	}
	if u, ok := s.db.users[b.LandlordID]; ok {
		b.Landlord = &bookings.Party{ID: u.ID, FullName: u.FullName, Email: u.Email, PhoneNumber: u.PhoneNumber, WhatsappNumber: u.WhatsappNumber}
	}
	return b
}

func (s *Bookings) CreatePaid(_ context.Context, nb bookings.NewBooking) (bookings.Booking, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, b := range s.db.bookings {
		if b.PaystackReference == nb.PaystackReference {
			return s.detail(b), true, nil
		}
	}
	l, ok := s.db.listings[nb.ListingID]
	if !ok || !l.Bookable() {
		return bookings.Booking{}, false, bookings.ErrListingUnavailable
	}
	if l.PricePerYear != nb.Amount {
		return bookings.Booking{}, false, bookings.ErrPaymentMismatch
	}
	l.AvailableSlots--
	s.db.listings[l.ID] = l

	paidAt := nb.PaidAt
	b := bookings.Booking{
		ID:                uuid.NewString(),
		BookingRef:        bookings.NewBookingRef(nb.PaidAt),
		StudentID:         nb.StudentID,
		LandlordID:        l.LandlordID,
		ListingID:         l.ID,
		Amount:            nb.Amount,
		PaymentStatus:     bookings.PaymentPaid,
		InspectionStatus:  bookings.InspectionPending,
		PaystackReference: nb.PaystackReference,
		PaymentDate:       &paidAt,
		CreatedAt:         time.Now().UTC(),
	}
	b.UpdatedAt = b.CreatedAt
	s.db.bookings[b.ID] = b
	return s.detail(b), false, nil
}

func (s *Bookings) Get(_ context.Context, id string) (bookings.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return bookings.Booking{}, bookings.ErrNotFound
	}
	return s.detail(b), nil
}

func (s *Bookings) GetByReference(_ context.Context, reference string) (bookings.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, b := range s.db.bookings {
		if b.PaystackReference == reference {
			return s.detail(b), nil
		}
	}
	return bookings.Booking{}, bookings.ErrNotFound
}

func (s *Bookings) filter(keep func(bookings.Booking) bool) []bookings.Booking {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []bookings.Booking{}
	for _, b := range s.db.bookings {
		if keep(b) {
			out = append(out, s.detail(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Bookings) ListByStudent(_ context.Context, studentID string) ([]bookings.Booking, error) {
	return s.filter(func(b bookings.Booking) bool { return b.StudentID == studentID }), nil
}

func (s *Bookings) ListByLandlord(_ context.Context, landlordID string) ([]bookings.Booking, error) {
	return s.filter(func(b bookings.Booking) bool { return b.LandlordID == landlordID }), nil
}

func (s *Bookings) ListAwaitingInspection(_ context.Context, paidBefore time.Time, limit int) ([]bookings.Booking, error) {
	out := s.filter(func(b bookings.Booking) bool {
		return b.PaymentStatus == bookings.PaymentPaid && b.InspectionStatus == bookings.InspectionPending &&
			b.PaymentDate != nil && b.PaymentDate.Before(paidBefore)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Bookings) Transition(_ context.Context, id string, fn func(*bookings.Booking) error) (bookings.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return bookings.Booking{}, bookings.ErrNotFound
	}
	if err := fn(&b); err != nil {
		return bookings.Booking{}, err
	}
	if err := bookings.CheckInvariants(b); err != nil {
		return bookings.Booking{}, err
	}
	b.UpdatedAt = time.Now().UTC()
	s.db.bookings[id] = b
	return s.detail(b), nil
}
