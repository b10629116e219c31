package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	// CreatePaid records a settled charge and takes one slot from the listing.
	// existed is true when the paystack reference was already recorded.
	CreatePaid(ctx context.Context, nb NewBooking) (b Booking, existed bool, err error)
	Get(ctx context.Context, id string) (Booking, error)
	GetByReference(ctx context.Context, reference string) (Booking, error)
	ListByStudent(ctx context.Context, studentID string) ([]Booking, error)
	ListByLandlord(ctx context.Context, landlordID string) ([]Booking, error)
	// Transition locks the booking, lets fn mutate it and saves the result.
	Transition(ctx context.Context, id string, fn func(*Booking) error) (Booking, error)
	ListAwaitingInspection(ctx context.Context, paidBefore time.Time, limit int) ([]Booking, error)
}

type Repo struct{ DB *pgxpool.Pool }

const maxRefAttempts = 5

var newRef = NewBookingRef

const bookingColumns = `b.id, b.booking_ref, b.student_id, b.landlord_id, b.listing_id, b.amount,
	b.payment_status, b.inspection_status, b.paystack_reference,
	b.payment_date, b.inspection_date, b.release_date, b.created_at, b.updated_at`

const detailColumns = bookingColumns + `,
	l.lodge_name, l.lodge_address, l.area, l.price_per_year,
	s.full_name, s.email, s.phone_number,
	ll.full_name, ll.email, ll.phone_number, ll.whatsapp_number`

const detailFrom = ` FROM bookings b
	JOIN listings l ON l.id = b.listing_id
	JOIN users s ON s.id = b.student_id
	JOIN users ll ON ll.id = b.landlord_id`

func bookingDest(b *Booking) []any {
	return []any{&b.ID, &b.BookingRef, &b.StudentID, &b.LandlordID, &b.ListingID, &b.Amount,
		&b.PaymentStatus, &b.InspectionStatus, &b.PaystackReference,
		&b.PaymentDate, &b.InspectionDate, &b.ReleaseDate, &b.CreatedAt, &b.UpdatedAt}
}

func scanDetail(row pgx.Row) (Booking, error) {
	var b Booking
	l := &ListingSummary{}
	st := &Party{}
	ll := &Party{}
	dest := append(bookingDest(&b),
		&l.LodgeName, &l.LodgeAddress, &l.Area, &l.PricePerYear,
		&st.FullName, &st.Email, &st.PhoneNumber,
		&ll.FullName, &ll.Email, &ll.PhoneNumber, &ll.WhatsappNumber)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	l.ID, st.ID, ll.ID = b.ListingID, b.StudentID, b.LandlordID
	b.Listing, b.Student, b.Landlord = l, st, ll
	return b, nil
}

func (r *Repo) list(ctx context.Context, tail string, args ...any) ([]Booking, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+detailColumns+detailFrom+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Booking{}
	for rows.Next() {
		b, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Booking, error) {
	return scanDetail(r.DB.QueryRow(ctx, `SELECT `+detailColumns+detailFrom+` WHERE b.id=$1`, id))
}

func (r *Repo) GetByReference(ctx context.Context, reference string) (Booking, error) {
	return scanDetail(r.DB.QueryRow(ctx, `SELECT `+detailColumns+detailFrom+` WHERE b.paystack_reference=$1`, reference))
}

func (r *Repo) ListByStudent(ctx context.Context, studentID string) ([]Booking, error) {
	return r.list(ctx, ` WHERE b.student_id=$1 ORDER BY b.created_at DESC`, studentID)
}

func (r *Repo) ListByLandlord(ctx context.Context, landlordID string) ([]Booking, error) {
	return r.list(ctx, ` WHERE b.landlord_id=$1 ORDER BY b.created_at DESC`, landlordID)
}

func (r *Repo) ListAwaitingInspection(ctx context.Context, paidBefore time.Time, limit int) ([]Booking, error) {
	return r.list(ctx, ` WHERE b.payment_status='Paid' AND b.inspection_status='Pending' AND b.payment_date < $1
		ORDER BY b.payment_date LIMIT $2`, paidBefore, limit)
}

// CreatePaid: lock listing (FOR UPDATE) -> check slot + price -> decrement -> insert booking.
// A duplicate paystack reference, even from a concurrent request, resolves to the existing booking.
func (r *Repo) CreatePaid(ctx context.Context, nb NewBooking) (Booking, bool, error) {
	if b, err := r.GetByReference(ctx, nb.PaystackReference); err == nil {
		return b, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Booking{}, false, err
	}

	id, err := r.insertPaid(ctx, nb)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "bookings_paystack_reference_key" {
		b, gerr := r.GetByReference(ctx, nb.PaystackReference)
		return b, true, gerr
	}
	if err != nil {
		return Booking{}, false, err
	}
	b, err := r.Get(ctx, id)
	return b, false, err
}

func (r *Repo) insertPaid(ctx context.Context, nb NewBooking) (string, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		landlordID string
		price      int64
		slots      int
		status     string
	)
	err = tx.QueryRow(ctx, `SELECT landlord_id, price_per_year, available_slots, status
		FROM listings WHERE id=$1 FOR UPDATE`, nb.ListingID).Scan(&landlordID, &price, &slots, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: listing %s not found", ErrListingUnavailable, nb.ListingID)
	}
	if err != nil {
		return "", err
	}
	if status != "active" || slots <= 0 {
		return "", ErrListingUnavailable
	}
	if nb.Amount != price {
		return "", fmt.Errorf("%w: paid %d, listing costs %d", ErrPaymentMismatch, nb.Amount, price)
	}

	if _, err := tx.Exec(ctx, `UPDATE listings SET available_slots = available_slots - 1, updated_at = now()
		WHERE id=$1`, nb.ListingID); err != nil {
		return "", err
	}

	id := uuid.NewString()
	inserted := false
	for attempt := 0; attempt < maxRefAttempts && !inserted; attempt++ {
		ct, err := tx.Exec(ctx, `
			INSERT INTO bookings(id, booking_ref, student_id, landlord_id, listing_id, amount,
				payment_status, inspection_status, paystack_reference, payment_date)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (booking_ref) DO NOTHING`,
			id, newRef(nb.PaidAt), nb.StudentID, landlordID, nb.ListingID, nb.Amount,
			PaymentPaid, InspectionPending, nb.PaystackReference, nb.PaidAt)
		if err != nil {
			return "", err
		}
		inserted = ct.RowsAffected() == 1
	}
	if !inserted {
		return "", errors.New("could not allocate a booking reference")
	}
	return id, tx.Commit(ctx)
}

func (r *Repo) Transition(ctx context.Context, id string, fn func(*Booking) error) (Booking, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var b Booking
	err = tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id=$1 FOR UPDATE`, id).Scan(bookingDest(&b)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, err
	}
	if err := fn(&b); err != nil {
		return Booking{}, err
	}
	if err := CheckInvariants(b); err != nil {
		return Booking{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE bookings SET payment_status=$2, inspection_status=$3,
			inspection_date=$4, release_date=$5, updated_at=now()
		WHERE id=$1`,
		b.ID, b.PaymentStatus, b.InspectionStatus, b.InspectionDate, b.ReleaseDate); err != nil {
		return Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Booking{}, err
	}
	return r.Get(ctx, id)
}
