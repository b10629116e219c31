package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, u User) error
	SetRecipientCode(ctx context.Context, id, code string) error
}

type Repo struct{ DB *pgxpool.Pool }

const userColumns = `id, role, full_name, email, password_hash, phone_number, profile_photo, is_verified,
	registration_number, department, level,
	residential_address, state, lga, identification_type, identification_number, whatsapp_number,
	bank_name, bank_code, account_number, account_name, recipient_code,
	created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Role, &u.FullName, &u.Email, &u.PasswordHash, &u.PhoneNumber, &u.ProfilePhoto, &u.IsVerified,
		&u.RegistrationNumber, &u.Department, &u.Level,
		&u.ResidentialAddress, &u.State, &u.LGA, &u.IdentificationType, &u.IdentificationNumber, &u.WhatsappNumber,
		&u.BankName, &u.BankCode, &u.AccountNumber, &u.AccountName, &u.RecipientCode,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) Create(ctx context.Context, u *User) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO users(id, role, full_name, email, password_hash, phone_number, profile_photo,
			registration_number, department, level,
			residential_address, state, lga, identification_type, identification_number, whatsapp_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at`,
		u.ID, u.Role, u.FullName, u.Email, u.PasswordHash, u.PhoneNumber, u.ProfilePhoto,
		u.RegistrationNumber, u.Department, u.Level,
		u.ResidentialAddress, u.State, u.LGA, u.IdentificationType, u.IdentificationNumber, u.WhatsappNumber,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func (r *Repo) GetByID(ctx context.Context, id string) (User, error) {
	return scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1)`, email))
}

// Update writes the mutable profile fields; role, email and password stay as they are.
func (r *Repo) Update(ctx context.Context, u User) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE users SET
			full_name=$2, phone_number=$3, profile_photo=$4,
			registration_number=$5, department=$6, level=$7,
			residential_address=$8, state=$9, lga=$10, whatsapp_number=$11,
			bank_name=$12, bank_code=$13, account_number=$14, account_name=$15, recipient_code=$16,
			updated_at=now()
		WHERE id=$1`,
		u.ID, u.FullName, u.PhoneNumber, u.ProfilePhoto,
		u.RegistrationNumber, u.Department, u.Level,
		u.ResidentialAddress, u.State, u.LGA, u.WhatsappNumber,
		u.BankName, u.BankCode, u.AccountNumber, u.AccountName, u.RecipientCode)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetRecipientCode(ctx context.Context, id, code string) error {
	_, err := r.DB.Exec(ctx, `UPDATE users SET recipient_code=$2, updated_at=now() WHERE id=$1`, id, code)
	return err
}
