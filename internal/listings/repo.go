package listings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	Create(ctx context.Context, l *Listing) error
	Get(ctx context.Context, id string) (Listing, error)
	List(ctx context.Context, f Filters) ([]Listing, error)
	ListByLandlord(ctx context.Context, landlordID string) ([]Listing, error)
	// Update locks the listing, lets fn mutate it and saves the result.
	Update(ctx context.Context, id string, fn func(*Listing) error) (Listing, error)
	Delete(ctx context.Context, id string) error
}

type Repo struct{ DB *pgxpool.Pool }

const listingColumns = `id, landlord_id, lodge_name, lodge_address, area, price_per_year, available_slots,
	distance_from_unn, description, photos, video, status, created_at, updated_at`

func scanListing(row pgx.Row) (Listing, error) {
	var l Listing
	err := row.Scan(&l.ID, &l.LandlordID, &l.LodgeName, &l.LodgeAddress, &l.Area, &l.PricePerYear, &l.AvailableSlots,
		&l.DistanceFromUNN, &l.Description, &l.Photos, &l.Video, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Listing{}, ErrNotFound
	}
	return l, err
}

func collect(rows pgx.Rows) ([]Listing, error) {
	defer rows.Close()
	out := []Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, l *Listing) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO listings(id, landlord_id, lodge_name, lodge_address, area, price_per_year, available_slots,
			distance_from_unn, description, photos, video, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		l.ID, l.LandlordID, l.LodgeName, l.LodgeAddress, l.Area, l.PricePerYear, l.AvailableSlots,
		l.DistanceFromUNN, l.Description, l.Photos, l.Video, l.Status,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
}

func (r *Repo) Get(ctx context.Context, id string) (Listing, error) {
	return scanListing(r.DB.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id=$1`, id))
}

// List returns active listings matching f, newest first.
func (r *Repo) List(ctx context.Context, f Filters) ([]Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = 'active'`
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.Area != "" {
		add("area = $%d", f.Area)
	}
	if f.MinPrice > 0 {
		add("price_per_year >= $%d", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("price_per_year <= $%d", f.MaxPrice)
	}
	if f.MaxDistance > 0 {
		add("distance_from_unn <= $%d", f.MaxDistance)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += fmt.Sprintf(" AND (lodge_name ILIKE $%d OR lodge_address ILIKE $%d OR description ILIKE $%d)",
			len(args), len(args), len(args))
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *Repo) ListByLandlord(ctx context.Context, landlordID string) ([]Listing, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+listingColumns+` FROM listings WHERE landlord_id=$1 ORDER BY created_at DESC`, landlordID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Update runs fn on the row under FOR UPDATE, so slot decrements made by
// concurrent purchases are never overwritten with a stale count.
func (r *Repo) Update(ctx context.Context, id string, fn func(*Listing) error) (Listing, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Listing{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	l, err := scanListing(tx.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Listing{}, err
	}
	if err := fn(&l); err != nil {
		return Listing{}, err
	}
	l, err = scanListing(tx.QueryRow(ctx, `
		UPDATE listings SET
			lodge_name=$2, lodge_address=$3, area=$4, price_per_year=$5, available_slots=$6,
			distance_from_unn=$7, description=$8, photos=$9, video=$10, status=$11, updated_at=now()
		WHERE id=$1
		RETURNING `+listingColumns,
		l.ID, l.LodgeName, l.LodgeAddress, l.Area, l.PricePerYear, l.AvailableSlots,
		l.DistanceFromUNN, l.Description, l.Photos, l.Video, l.Status))
	if err != nil {
		return Listing{}, err
	}
	return l, tx.Commit(ctx)
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM listings WHERE id=$1`, id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrHasBookings
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
