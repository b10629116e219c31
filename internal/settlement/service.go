package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-lodge-escrow/internal/bookings"
	kafkax "github.com/ariefcatur/go-lodge-escrow/internal/kafka"
	"github.com/ariefcatur/go-lodge-escrow/internal/paystack"
	"github.com/ariefcatur/go-lodge-escrow/internal/redisx"
	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Gateway interface {
	CreateRecipient(ctx context.Context, name, accountNumber, bankCode string) (paystack.Recipient, error)
	InitiateTransfer(ctx context.Context, in paystack.TransferRequest) (paystack.Transfer, error)
}

type BookingLookup interface {
	Get(ctx context.Context, id string) (bookings.Booking, error)
}

type Service struct {
	Store       Store
	Gateway     Gateway
	Users       users.Store
	Bookings    BookingLookup
	Redis       redis.Cmdable
	Events      bookings.Publisher // booking.payout
	ServiceName string
}

// HandleInspectionDecided is installed as the consumer handler.
func (s *Service) HandleInspectionDecided(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.HeaderValue(m, "x-event-type"); t != "" && t != bookings.EventInspectionDecided {
		return nil
	}

	// 1) decode envelope
	var env bookings.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return kafkax.Permanent(err)
	}
	if env.EventType != bookings.EventInspectionDecided {
		return nil
	}

	// 2) dedup via Redis on event_id
	dkey := fmt.Sprintf(redisx.KeyDedup, "settlement", env.EventID)
	if s.Redis != nil {
		if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
			return nil
		}
	}

	// 3) decode payload and re-read the booking; the database decides what is owed
	p, err := kafkax.UnwrapPayload[bookings.InspectionDecidedPayload](env.Payload)
	if err != nil {
		return kafkax.Permanent(err)
	}
	b, err := s.Bookings.Get(ctx, p.BookingID)
	if errors.Is(err, bookings.ErrNotFound) {
		return kafkax.Permanent(fmt.Errorf("load booking %s: %w", p.BookingID, err))
	}
	if err != nil {
		return fmt.Errorf("load booking %s: %w", p.BookingID, err)
	}

	// 4) pay; missing bank details are recorded, not retried
	if _, err := s.Pay(ctx, b, env.TraceID); err != nil && !errors.Is(err, ErrNoPayoutAccount) {
		return err
	}
	if s.Redis != nil {
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return nil
}

// Pay sends whatever b's settled status owes. Calling it again for a sent
// payout returns that payout without a second transfer.
func (s *Service) Pay(ctx context.Context, b bookings.Booking, trace string) (Payout, error) {
	var (
		kind  string
		payee string
	)
	switch b.PaymentStatus {
	case bookings.PaymentReleased:
		kind, payee = KindRelease, b.LandlordID
	case bookings.PaymentRefunded:
		kind, payee = KindRefund, b.StudentID
	default:
		return Payout{}, fmt.Errorf("%w: payment is %s", ErrNotSettled, b.PaymentStatus)
	}

	u, err := s.Users.GetByID(ctx, payee)
	if err != nil {
		return Payout{}, err
	}

	p, claimed, err := s.Store.Claim(ctx, Payout{
		BookingID: b.ID,
		Kind:      kind,
		Recipient: u.RecipientCode,
		Amount:    b.Amount,
		Reference: Reference(kind, b.ID),
	})
	if err != nil {
		return Payout{}, err
	}
	if !claimed {
		return p, nil
	}

	code, err := s.ensureRecipient(ctx, u)
	if err != nil {
		s.fail(ctx, p, trace, err)
		return p, err
	}

	tr, err := s.Gateway.InitiateTransfer(ctx, paystack.TransferRequest{
		Amount:    paystack.ToKobo(b.Amount),
		Recipient: code,
		Reason:    reason(kind, b.BookingRef),
		Reference: p.Reference,
	})
	if err != nil {
		s.fail(ctx, p, trace, err)
		return p, fmt.Errorf("transfer %s: %w", p.Reference, err)
	}

	p.Recipient, p.TransferCode, p.Status = code, tr.TransferCode, StatusSent
	if err := s.Store.Finish(ctx, p.ID, tr.TransferCode, StatusSent); err != nil {
		// money is moving; the gateway reference is enough to reconcile
		log.Printf("UNRECORDED payout ref=%s transfer=%s: %v", p.Reference, tr.TransferCode, err)
	}
	s.publish(ctx, bookings.EventPayoutInitiated, trace, p, "")
	return p, nil
}

// RetryPayout lets the payee of a settled booking re-send what it owes: the
// landlord for a release, the student for a refund. It is the way out of a
// payout that failed, e.g. because bank details were incomplete.
func (s *Service) RetryPayout(ctx context.Context, userID, bookingID string) (Payout, error) {
	b, err := s.Bookings.Get(ctx, bookingID)
	if err != nil {
		return Payout{}, err
	}
	var payee string
	switch b.PaymentStatus {
	case bookings.PaymentReleased:
		payee = b.LandlordID
	case bookings.PaymentRefunded:
		payee = b.StudentID
	}
	if userID != b.LandlordID && userID != b.StudentID {
		return Payout{}, bookings.ErrForbidden
	}
	if payee == "" {
		return Payout{}, fmt.Errorf("%w: payment is %s", ErrNotSettled, b.PaymentStatus)
	}
	if payee != userID {
		return Payout{}, bookings.ErrForbidden
	}
	return s.Pay(ctx, b, "")
}

func (s *Service) ensureRecipient(ctx context.Context, u users.User) (string, error) {
	if u.RecipientCode != "" {
		return u.RecipientCode, nil
	}
	if !u.HasBankDetails() || u.BankCode == "" {
		return "", fmt.Errorf("%w: user %s", ErrNoPayoutAccount, u.ID)
	}
	r, err := s.Gateway.CreateRecipient(ctx, u.AccountName, u.AccountNumber, u.BankCode)
	if err != nil {
		return "", fmt.Errorf("create recipient: %w", err)
	}
	if err := s.Users.SetRecipientCode(ctx, u.ID, r.RecipientCode); err != nil {
		log.Printf("save recipient code user=%s: %v", u.ID, err)
	}
	return r.RecipientCode, nil
}

func (s *Service) fail(ctx context.Context, p Payout, trace string, cause error) {
	log.Printf("payout %s failed: %v", p.Reference, cause)
	if err := s.Store.Finish(ctx, p.ID, "", StatusFailed); err != nil {
		log.Printf("mark payout %s failed: %v", p.Reference, err)
	}
	s.publish(ctx, bookings.EventPayoutFailed, trace, p, cause.Error())
}

func reason(kind, bookingRef string) string {
	if kind == KindRefund {
		return "Refund for booking " + bookingRef
	}
	return "Payout for booking " + bookingRef
}

func (s *Service) publish(ctx context.Context, eventType, trace string, p Payout, why string) {
	if s.Events == nil {
		return
	}
	ev := bookings.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: p.BookingID,
		Payload: kafkax.MustMarshal(bookings.PayoutPayload{
			BookingID:    p.BookingID,
			Kind:         p.Kind,
			Reference:    p.Reference,
			TransferCode: p.TransferCode,
			Amount:       p.Amount,
			Reason:       why,
		}),
	}
	s.Events.Publish(bookings.PartitionKey(p.BookingID), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType)...)
}
