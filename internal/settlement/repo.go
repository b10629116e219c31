package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	// Claim records p as pending. claimed is false when a pending or sent payout
	// already exists for the booking and kind; that payout is returned instead.
	Claim(ctx context.Context, p Payout) (out Payout, claimed bool, err error)
	Finish(ctx context.Context, id, transferCode, status string) error
	GetByReference(ctx context.Context, reference string) (Payout, error)
}

type Repo struct{ DB *pgxpool.Pool }

const payoutColumns = `id, booking_id, kind, recipient, amount, reference, transfer_code, status, created_at`

func scanPayout(row pgx.Row) (Payout, error) {
	var p Payout
	err := row.Scan(&p.ID, &p.BookingID, &p.Kind, &p.Recipient, &p.Amount, &p.Reference,
		&p.TransferCode, &p.Status, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payout{}, ErrNotFound
	}
	return p, err
}

// Claim: insert pending -> on conflict take over a failed row -> otherwise return the existing one.
func (r *Repo) Claim(ctx context.Context, p Payout) (Payout, bool, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	out, err := scanPayout(r.DB.QueryRow(ctx, `
		INSERT INTO payouts(id, booking_id, kind, recipient, amount, reference, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')
		ON CONFLICT (booking_id, kind) DO NOTHING
		RETURNING `+payoutColumns,
		p.ID, p.BookingID, p.Kind, p.Recipient, p.Amount, p.Reference))
	if err == nil {
		return out, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Payout{}, false, err
	}

	out, err = scanPayout(r.DB.QueryRow(ctx, `
		UPDATE payouts SET status='pending', recipient=$3
		WHERE booking_id=$1 AND kind=$2 AND status='failed'
		RETURNING `+payoutColumns, p.BookingID, p.Kind, p.Recipient))
	if err == nil {
		return out, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Payout{}, false, err
	}

	out, err = scanPayout(r.DB.QueryRow(ctx, `SELECT `+payoutColumns+`
		FROM payouts WHERE booking_id=$1 AND kind=$2`, p.BookingID, p.Kind))
	return out, false, err
}

func (r *Repo) Finish(ctx context.Context, id, transferCode, status string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE payouts SET transfer_code=$2, status=$3 WHERE id=$1`, id, transferCode, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetByReference(ctx context.Context, reference string) (Payout, error) {
	return scanPayout(r.DB.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE reference=$1`, reference))
}
