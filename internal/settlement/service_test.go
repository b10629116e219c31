package settlement_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-lodge-escrow/internal/bookings"
	kafkax "github.com/ariefcatur/go-lodge-escrow/internal/kafka"
	"github.com/ariefcatur/go-lodge-escrow/internal/listings"
	"github.com/ariefcatur/go-lodge-escrow/internal/memstore"
	"github.com/ariefcatur/go-lodge-escrow/internal/paystack"
	"github.com/ariefcatur/go-lodge-escrow/internal/settlement"
	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	kafkago "github.com/segmentio/kafka-go"
)

type memPayouts struct {
	mu   sync.Mutex
	rows map[string]settlement.Payout // booking_id/kind
}

func (m *memPayouts) Claim(_ context.Context, p settlement.Payout) (settlement.Payout, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.BookingID + "/" + p.Kind
	if cur, ok := m.rows[key]; ok && cur.Status != settlement.StatusFailed {
		return cur, false, nil
	}
	p.ID = key
	p.Status = settlement.StatusPending
	m.rows[key] = p
	return p, true, nil
}

func (m *memPayouts) Finish(_ context.Context, id, code, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return settlement.ErrNotFound
	}
	p.TransferCode, p.Status = code, status
	m.rows[id] = p
	return nil
}

func (m *memPayouts) GetByReference(_ context.Context, ref string) (settlement.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.Reference == ref {
			return p, nil
		}
	}
	return settlement.Payout{}, settlement.ErrNotFound
}

type fakeGateway struct {
	transfers  []paystack.TransferRequest
	recipients int
	fail       error
}

func (g *fakeGateway) CreateRecipient(_ context.Context, name, _, _ string) (paystack.Recipient, error) {
	g.recipients++
	return paystack.Recipient{RecipientCode: "RCP_" + name, Name: name}, nil
}

func (g *fakeGateway) InitiateTransfer(_ context.Context, in paystack.TransferRequest) (paystack.Transfer, error) {
	if g.fail != nil {
		return paystack.Transfer{}, g.fail
	}
	g.transfers = append(g.transfers, in)
	return paystack.Transfer{TransferCode: "TRF_" + in.Reference, Reference: in.Reference, Status: "pending", Amount: in.Amount}, nil
}

type recorder struct{ events []bookings.Envelope }

func (r *recorder) Publish(_, value []byte, _ ...kafkago.Header) {
	var ev bookings.Envelope
	_ = json.Unmarshal(value, &ev)
	r.events = append(r.events, ev)
}

type fixture struct {
	db      *memstore.DB
	svc     *settlement.Service
	gw      *fakeGateway
	payouts *memPayouts
	events  *recorder
}

var bank = users.User{BankName: "Access Bank", BankCode: "044", AccountNumber: "0123456789"}

func newFixture(t *testing.T, landlordBank bool) fixture {
	t.Helper()
	ctx := context.Background()
	db := memstore.New()

	student := bank
	student.ID, student.Role, student.FullName, student.Email, student.AccountName = "stu-1", users.RoleStudent, "Ada Obi", "ada@unn.edu.ng", "ADA OBI"
	landlord := users.User{ID: "ll-1", Role: users.RoleLandlord, FullName: "Emeka Eze", Email: "emeka@example.com"}
	if landlordBank {
		landlord.BankName, landlord.BankCode, landlord.AccountNumber, landlord.AccountName = bank.BankName, bank.BankCode, "9876543210", "EMEKA EZE"
	}
	for _, u := range []users.User{student, landlord} {
		u := u
		if err := db.Users().Create(ctx, &u); err != nil {
			t.Fatal(err)
		}
	}
	l := listings.Listing{ID: "lst-1", LandlordID: "ll-1", LodgeName: "Green Villa", Area: "Hilltop",
		PricePerYear: 150000, AvailableSlots: 5, Status: listings.StatusActive}
	if err := db.Listings().Create(ctx, &l); err != nil {
		t.Fatal(err)
	}

	f := fixture{db: db, gw: &fakeGateway{}, payouts: &memPayouts{rows: map[string]settlement.Payout{}}, events: &recorder{}}
	f.svc = &settlement.Service{
		Store:       f.payouts,
		Gateway:     f.gw,
		Users:       db.Users(),
		Bookings:    db.Bookings(),
		Events:      f.events,
		ServiceName: "lodge-settlement",
	}
	return f
}

func (f fixture) decided(t *testing.T, ref string, d bookings.InspectionStatus) bookings.Booking {
	t.Helper()
	ctx := context.Background()
	b, _, err := f.db.Bookings().CreatePaid(ctx, bookings.NewBooking{
		StudentID: "stu-1", ListingID: "lst-1", Amount: 150000, PaystackReference: ref, PaidAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err = f.db.Bookings().Transition(ctx, b.ID, func(b *bookings.Booking) error {
		return bookings.ApplyDecision(b, d, time.Now().UTC())
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func message(t *testing.T, eventID string, b bookings.Booking) kafkago.Message {
	t.Helper()
	ev := bookings.Envelope{
		EventID:      eventID,
		EventType:    bookings.EventInspectionDecided,
		EventVersion: 1,
		Payload: kafkax.MustMarshal(bookings.InspectionDecidedPayload{
			BookingID: b.ID, Decision: b.InspectionStatus, PaymentStatus: b.PaymentStatus, Amount: b.Amount,
		}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(ev), Headers: kafkax.EventHeaders(bookings.EventInspectionDecided)}
}

func TestApprovedPaysLandlord(t *testing.T) {
	f := newFixture(t, true)
	b := f.decided(t, "ref-1", bookings.InspectionApproved)

	if err := f.svc.HandleInspectionDecided(context.Background(), message(t, "ev-1", b)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.gw.transfers) != 1 {
		t.Fatalf("transfers = %d", len(f.gw.transfers))
	}
	tr := f.gw.transfers[0]
	if tr.Amount != 15000000 || tr.Reference != "release-"+b.ID || tr.Recipient != "RCP_EMEKA EZE" {
		t.Errorf("unexpected transfer %+v", tr)
	}
	ll, _ := f.db.Users().GetByID(context.Background(), "ll-1")
	if ll.RecipientCode != "RCP_EMEKA EZE" {
		t.Errorf("recipient code not stored: %q", ll.RecipientCode)
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != bookings.EventPayoutInitiated {
		t.Errorf("events = %+v", f.events.events)
	}
}

func TestRejectedRefundsStudent(t *testing.T) {
	f := newFixture(t, true)
	b := f.decided(t, "ref-1", bookings.InspectionRejected)

	p, err := f.svc.Pay(context.Background(), b, "")
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if p.Kind != settlement.KindRefund || p.Status != settlement.StatusSent {
		t.Errorf("payout %+v", p)
	}
	if f.gw.transfers[0].Recipient != "RCP_ADA OBI" {
		t.Errorf("refund went to %q", f.gw.transfers[0].Recipient)
	}
}

func TestPayIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	b := f.decided(t, "ref-1", bookings.InspectionApproved)
	ctx := context.Background()

	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-1", b)); err != nil {
		t.Fatal(err)
	}
	// redelivery under a new event id still finds the sent payout
	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-2", b)); err != nil {
		t.Fatal(err)
	}
	if len(f.gw.transfers) != 1 {
		t.Errorf("transfers = %d, want 1", len(f.gw.transfers))
	}
	if f.gw.recipients != 1 {
		t.Errorf("recipients created = %d, want 1", f.gw.recipients)
	}
}

func TestMissingBankDetailsRecordsFailure(t *testing.T) {
	f := newFixture(t, false)
	b := f.decided(t, "ref-1", bookings.InspectionApproved)
	ctx := context.Background()

	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-1", b)); err != nil {
		t.Fatalf("a payee without bank details must not block the partition: %v", err)
	}
	p, err := f.payouts.GetByReference(ctx, settlement.Reference(settlement.KindRelease, b.ID))
	if err != nil || p.Status != settlement.StatusFailed {
		t.Fatalf("payout %+v, %v", p, err)
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != bookings.EventPayoutFailed {
		t.Errorf("events = %+v", f.events.events)
	}

	// landlord adds bank details and retries
	ll, _ := f.db.Users().GetByID(ctx, "ll-1")
	ll.BankName, ll.BankCode, ll.AccountNumber, ll.AccountName = "Access Bank", "044", "9876543210", "EMEKA EZE"
	_ = f.db.Users().Update(ctx, ll)

	p, err = f.svc.RetryPayout(ctx, "ll-1", b.ID)
	if err != nil || p.Status != settlement.StatusSent {
		t.Fatalf("retry: %+v, %v", p, err)
	}
}

func TestFailedRefundCanBeRetried(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	// bank name and number are enough to reject, but a transfer needs the code
	stu, _ := f.db.Users().GetByID(ctx, "stu-1")
	stu.BankCode = ""
	_ = f.db.Users().Update(ctx, stu)
	b := f.decided(t, "ref-1", bookings.InspectionRejected)

	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-1", b)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	p, _ := f.payouts.GetByReference(ctx, settlement.Reference(settlement.KindRefund, b.ID))
	if p.Status != settlement.StatusFailed || len(f.gw.transfers) != 0 {
		t.Fatalf("refund should have failed: %+v", p)
	}

	if _, err := f.svc.RetryPayout(ctx, "ll-1", b.ID); !errors.Is(err, bookings.ErrForbidden) {
		t.Errorf("landlord retrying a refund: %v", err)
	}

	stu.BankCode = "044"
	_ = f.db.Users().Update(ctx, stu)
	p, err := f.svc.RetryPayout(ctx, "stu-1", b.ID)
	if err != nil || p.Status != settlement.StatusSent || p.Kind != settlement.KindRefund {
		t.Fatalf("retry: %+v, %v", p, err)
	}
	if len(f.gw.transfers) != 1 || f.gw.transfers[0].Recipient != "RCP_ADA OBI" {
		t.Errorf("transfers = %+v", f.gw.transfers)
	}

	// a second retry finds the sent payout
	if _, err := f.svc.RetryPayout(ctx, "stu-1", b.ID); err != nil || len(f.gw.transfers) != 1 {
		t.Errorf("second retry: %v, transfers = %d", err, len(f.gw.transfers))
	}
}

func TestRetryPayout_Guards(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	released := f.decided(t, "ref-1", bookings.InspectionApproved)
	refunded := f.decided(t, "ref-2", bookings.InspectionRejected)
	pending, _, _ := f.db.Bookings().CreatePaid(ctx, bookings.NewBooking{
		StudentID: "stu-1", ListingID: "lst-1", Amount: 150000, PaystackReference: "ref-3", PaidAt: time.Now(),
	})

	if _, err := f.svc.RetryPayout(ctx, "someone-else", released.ID); !errors.Is(err, bookings.ErrForbidden) {
		t.Errorf("stranger: %v", err)
	}
	if _, err := f.svc.RetryPayout(ctx, "stu-1", released.ID); !errors.Is(err, bookings.ErrForbidden) {
		t.Errorf("student retrying a release: %v", err)
	}
	if _, err := f.svc.RetryPayout(ctx, "ll-1", refunded.ID); !errors.Is(err, bookings.ErrForbidden) {
		t.Errorf("landlord retrying a refund: %v", err)
	}
	if _, err := f.svc.RetryPayout(ctx, "ll-1", pending.ID); !errors.Is(err, settlement.ErrNotSettled) {
		t.Errorf("pending booking: %v", err)
	}
}

func TestRedeliveryAfterGatewayFailurePaysOnce(t *testing.T) {
	f := newFixture(t, true)
	b := f.decided(t, "ref-1", bookings.InspectionApproved)
	ctx := context.Background()

	f.gw.fail = &paystack.APIError{Status: 400, Message: "Your balance is not enough to fulfil this request"}
	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-1", b)); err == nil {
		t.Fatal("expected error so the message is not committed")
	}
	f.gw.fail = nil
	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-1", b)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(f.gw.transfers) != 1 {
		t.Errorf("transfers = %d", len(f.gw.transfers))
	}
}

func TestDuplicateEventIsSkipped(t *testing.T) {
	f := newFixture(t, true)
	f.svc.Redis = memstore.NewRedis()
	b := f.decided(t, "ref-1", bookings.InspectionApproved)
	ctx := context.Background()

	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-1", b)); err != nil {
		t.Fatal(err)
	}
	// same event id; the booking it names is never loaded
	ghost := b
	ghost.ID = "missing"
	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-1", ghost)); err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if len(f.gw.transfers) != 1 {
		t.Errorf("transfers = %d", len(f.gw.transfers))
	}
}

func TestFailedEventIsNotMarkedSeen(t *testing.T) {
	f := newFixture(t, true)
	rdb := memstore.NewRedis()
	f.svc.Redis = rdb
	b := f.decided(t, "ref-1", bookings.InspectionApproved)
	ctx := context.Background()

	f.gw.fail = errors.New("connection reset")
	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-1", b)); err == nil {
		t.Fatal("expected error")
	}
	if len(rdb.Stored()) != 0 {
		t.Fatalf("dedup key written for a failed event: %v", rdb.Stored())
	}
	f.gw.fail = nil
	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-1", b)); err != nil || len(f.gw.transfers) != 1 {
		t.Errorf("redelivery: %v, transfers = %d", err, len(f.gw.transfers))
	}
}

func TestUndeliverableEventsArePermanent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	err := f.svc.HandleInspectionDecided(ctx, kafkago.Message{Value: []byte("{not json")})
	if !kafkax.IsPermanent(err) {
		t.Errorf("garbage: %v", err)
	}
	ghost := bookings.Booking{ID: "missing", InspectionStatus: bookings.InspectionApproved}
	if err := f.svc.HandleInspectionDecided(ctx, message(t, "ev-9", ghost)); !kafkax.IsPermanent(err) {
		t.Errorf("unknown booking: %v", err)
	}
}

func TestPendingBookingOwesNothing(t *testing.T) {
	f := newFixture(t, true)
	b, _, _ := f.db.Bookings().CreatePaid(context.Background(), bookings.NewBooking{
		StudentID: "stu-1", ListingID: "lst-1", Amount: 150000, PaystackReference: "ref-1", PaidAt: time.Now(),
	})
	if _, err := f.svc.Pay(context.Background(), b, ""); !errors.Is(err, settlement.ErrNotSettled) {
		t.Errorf("err = %v", err)
	}
}

type countingReleaser struct {
	calls   int
	results []int
}

func (c *countingReleaser) AutoRelease(context.Context, time.Duration, int) (int, error) {
	n := c.results[c.calls]
	c.calls++
	return n, nil
}

func TestSweepDrainsInBatches(t *testing.T) {
	r := &countingReleaser{results: []int{2, 2, 1}}
	s := &settlement.Sweeper{Bookings: r, Window: time.Hour, Batch: 2}

	if n := s.Sweep(context.Background()); n != 5 {
		t.Errorf("released %d, want 5", n)
	}
	if r.calls != 3 {
		t.Errorf("calls = %d", r.calls)
	}
}

func TestSweeperDisabled(t *testing.T) {
	r := &countingReleaser{}
	s := &settlement.Sweeper{Bookings: r}
	s.Run(context.Background()) // returns immediately with no window
	if r.calls != 0 {
		t.Errorf("calls = %d", r.calls)
	}
}
