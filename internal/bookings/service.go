package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	kafkax "github.com/ariefcatur/go-lodge-escrow/internal/kafka"
	"github.com/ariefcatur/go-lodge-escrow/internal/paystack"
	"github.com/ariefcatur/go-lodge-escrow/internal/redisx"
	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Gateway confirms a charge with the payment provider.
type Gateway interface {
	VerifyTransaction(ctx context.Context, reference string) (paystack.Transaction, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (users.User, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service is the only writer of booking state. Clients request transitions;
// the service decides and records them.
type Service struct {
	Store          Store
	Gateway        Gateway
	Users          UserLookup
	PaidEvents     Publisher // booking.paid
	DecisionEvents Publisher // booking.inspection.decided
	Redis          redis.Cmdable
	ServiceName    string
	Now            func() time.Time
}

type PurchaseRequest struct {
	ListingID         string `json:"listingId"`
	LandlordID        string `json:"landlordId"`
	Amount            int64  `json:"amount"`
	PaystackReference string `json:"paystackReference"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Purchase verifies the charge behind req.PaystackReference and records the
// booking in one step. Replaying a reference returns the booking it created.
func (s *Service) Purchase(ctx context.Context, studentID string, req PurchaseRequest) (Booking, bool, error) {
	if req.PaystackReference == "" {
		return Booking{}, false, fmt.Errorf("%w: paystackReference is required", ErrPaymentMismatch)
	}

	if b, err := s.Store.GetByReference(ctx, req.PaystackReference); err == nil {
		if b.StudentID != studentID {
			return Booking{}, false, ErrForbidden
		}
		return b, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Booking{}, false, err
	}

	tx, err := s.Gateway.VerifyTransaction(ctx, req.PaystackReference)
	if err != nil {
		return Booking{}, false, fmt.Errorf("verify payment: %w", err)
	}
	if !tx.Succeeded() {
		return Booking{}, false, fmt.Errorf("%w: gateway status %q", ErrPaymentNotSettled, tx.Status)
	}

	listingID := req.ListingID
	if meta := tx.MetadataString("listingId"); meta != "" {
		if listingID != "" && listingID != meta {
			return Booking{}, false, fmt.Errorf("%w: charge was for listing %s", ErrPaymentMismatch, meta)
		}
		listingID = meta
	}
	if meta := tx.MetadataString("studentId"); meta != "" && meta != studentID {
		return Booking{}, false, fmt.Errorf("%w: charge belongs to another student", ErrPaymentMismatch)
	}
	if listingID == "" {
		return Booking{}, false, fmt.Errorf("%w: listingId is required", ErrPaymentMismatch)
	}
	if tx.Amount%100 != 0 {
		return Booking{}, false, fmt.Errorf("%w: fractional amount %d kobo", ErrPaymentMismatch, tx.Amount)
	}
	amount := tx.Amount / 100
	if req.Amount != 0 && req.Amount != amount {
		return Booking{}, false, fmt.Errorf("%w: charged %d, expected %d", ErrPaymentMismatch, amount, req.Amount)
	}

	paidAt := s.now()
	if t, err := time.Parse(time.RFC3339, tx.PaidAt); err == nil {
		paidAt = t.UTC()
	}

	b, existed, err := s.Store.CreatePaid(ctx, NewBooking{
		StudentID:         studentID,
		ListingID:         listingID,
		Amount:            amount,
		PaystackReference: req.PaystackReference,
		PaidAt:            paidAt,
	})
	if err != nil {
		if errors.Is(err, ErrListingUnavailable) || errors.Is(err, ErrPaymentMismatch) {
			// Money has moved but there is nothing to book; support resolves these by reference.
			log.Printf("UNRECONCILED payment ref=%s student=%s listing=%s: %v", req.PaystackReference, studentID, listingID, err)
		}
		return Booking{}, false, err
	}
	if existed {
		return b, true, nil
	}

	s.cacheStatus(ctx, b)
	s.publish(ctx, s.PaidEvents, EventBookingPaid, b.ID, BookingPaidPayload{
		BookingID:         b.ID,
		BookingRef:        b.BookingRef,
		StudentID:         b.StudentID,
		LandlordID:        b.LandlordID,
		ListingID:         b.ListingID,
		Amount:            b.Amount,
		PaystackReference: b.PaystackReference,
	})
	return b, false, nil
}

func (s *Service) ApproveInspection(ctx context.Context, studentID, bookingID string) (Booking, error) {
	return s.Decide(ctx, studentID, bookingID, InspectionApproved)
}

func (s *Service) RejectInspection(ctx context.Context, studentID, bookingID string) (Booking, error) {
	return s.Decide(ctx, studentID, bookingID, InspectionRejected)
}

// Decide applies the owning student's inspection decision. A rejection needs a
// refund destination, so it is refused until the student's bank details are complete.
func (s *Service) Decide(ctx context.Context, studentID, bookingID string, d InspectionStatus) (Booking, error) {
	if _, ok := settles[d]; !ok {
		return Booking{}, fmt.Errorf("%w: %q", ErrInvalidDecision, d)
	}
	cur, err := s.Store.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if cur.StudentID != studentID {
		return Booking{}, ErrForbidden
	}
	if d == InspectionRejected {
		u, err := s.Users.GetByID(ctx, studentID)
		if err != nil {
			return Booking{}, err
		}
		if !u.HasBankDetails() {
			return Booking{}, ErrBankDetailsRequired
		}
	}

	now := s.now()
	b, err := s.Store.Transition(ctx, bookingID, func(b *Booking) error {
		if b.StudentID != studentID {
			return ErrForbidden
		}
		return ApplyDecision(b, d, now)
	})
	if err != nil {
		return Booking{}, err
	}
	s.decided(ctx, b, false)
	return b, nil
}

// AutoRelease approves every booking still awaiting inspection after window.
func (s *Service) AutoRelease(ctx context.Context, window time.Duration, batch int) (int, error) {
	now := s.now()
	due, err := s.Store.ListAwaitingInspection(ctx, now.Add(-window), batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range due {
		b, err := s.Store.Transition(ctx, d.ID, func(b *Booking) error {
			return ApplyDecision(b, InspectionApproved, now)
		})
		if errors.Is(err, ErrInvalidTransition) {
			continue // student decided in the meantime
		}
		if err != nil {
			return n, fmt.Errorf("auto-release %s: %w", d.ID, err)
		}
		s.decided(ctx, b, true)
		n++
	}
	return n, nil
}

func (s *Service) decided(ctx context.Context, b Booking, auto bool) {
	s.cacheStatus(ctx, b)
	s.publish(ctx, s.DecisionEvents, EventInspectionDecided, b.ID, InspectionDecidedPayload{
		BookingID:     b.ID,
		BookingRef:    b.BookingRef,
		StudentID:     b.StudentID,
		LandlordID:    b.LandlordID,
		Amount:        b.Amount,
		Decision:      b.InspectionStatus,
		PaymentStatus: b.PaymentStatus,
		Auto:          auto,
	})
}

// Get returns a booking visible to its student or its landlord.
func (s *Service) Get(ctx context.Context, viewerID, id string) (Booking, error) {
	b, err := s.Store.Get(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if viewerID != b.StudentID && viewerID != b.LandlordID {
		return Booking{}, ErrForbidden
	}
	return b, nil
}

func (s *Service) ListForStudent(ctx context.Context, studentID string) ([]Booking, error) {
	return s.Store.ListByStudent(ctx, studentID)
}

func (s *Service) ListForLandlord(ctx context.Context, landlordID string) ([]Booking, error) {
	return s.Store.ListByLandlord(ctx, landlordID)
}

type StatusView struct {
	BookingRef       string           `json:"bookingRef"`
	PaymentStatus    PaymentStatus    `json:"paymentStatus"`
	InspectionStatus InspectionStatus `json:"inspectionStatus"`
}

// Status is the cheap polling path: Redis first, database on a miss.
func (s *Service) Status(ctx context.Context, viewerID, id string) (StatusView, error) {
	key := fmt.Sprintf(redisx.KeyBookingStatus, id)
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, key).Result(); err == nil {
			var cached struct {
				StatusView
				StudentID  string `json:"studentId"`
				LandlordID string `json:"landlordId"`
			}
			if json.Unmarshal([]byte(raw), &cached) == nil {
				if viewerID != cached.StudentID && viewerID != cached.LandlordID {
					return StatusView{}, ErrForbidden
				}
				return cached.StatusView, nil
			}
		}
	}
	b, err := s.Get(ctx, viewerID, id)
	if err != nil {
		return StatusView{}, err
	}
	s.cacheStatus(ctx, b)
	return StatusView{BookingRef: b.BookingRef, PaymentStatus: b.PaymentStatus, InspectionStatus: b.InspectionStatus}, nil
}

func (s *Service) cacheStatus(ctx context.Context, b Booking) {
	if s.Redis == nil {
		return
	}
	v, _ := json.Marshal(map[string]any{
		"bookingRef":       b.BookingRef,
		"paymentStatus":    b.PaymentStatus,
		"inspectionStatus": b.InspectionStatus,
		"studentId":        b.StudentID,
		"landlordId":       b.LandlordID,
	})
	_ = s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyBookingStatus, b.ID), v, redisx.TTLStatusCache).Err()
}

func (s *Service) publish(ctx context.Context, p Publisher, eventType, bookingID string, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.ServiceName,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: bookingID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(bookingID), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType)...)
}
