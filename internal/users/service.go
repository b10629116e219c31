package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ariefcatur/go-lodge-escrow/internal/paystack"
	"github.com/google/uuid"
)

// AccountResolver resolves a NUBAN account to its holder name.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (paystack.ResolvedAccount, error)
}

type Service struct {
	Store    Store
	Tokens   *TokenIssuer
	Accounts AccountResolver
}

type Registration struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`

	RegistrationNumber string `json:"registrationNumber"`
	Department         string `json:"department"`
	Level              string `json:"level"`

	ResidentialAddress   string `json:"residentialAddress"`
	State                string `json:"state"`
	LGA                  string `json:"lga"`
	IdentificationType   string `json:"identificationType"`
	IdentificationNumber string `json:"identificationNumber"`
	WhatsappNumber       string `json:"whatsappNumber"`
}

// ProfileUpdate carries only the fields the caller wants to change.
type ProfileUpdate struct {
	FullName     *string `json:"fullName"`
	PhoneNumber  *string `json:"phoneNumber"`
	ProfilePhoto *string `json:"profilePhoto"`

	Department *string `json:"department"`
	Level      *string `json:"level"`

	ResidentialAddress *string `json:"residentialAddress"`
	State              *string `json:"state"`
	LGA                *string `json:"lga"`
	WhatsappNumber     *string `json:"whatsappNumber"`

	BankName      *string `json:"bankName"`
	BankCode      *string `json:"bankCode"`
	AccountNumber *string `json:"accountNumber"`
	AccountName   *string `json:"accountName"`
}

func invalid(msg string) error { return fmt.Errorf("%w: %s", ErrInvalid, msg) }

func (r Registration) validateCommon() error {
	if strings.TrimSpace(r.FullName) == "" {
		return invalid("fullName is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return invalid("a valid email is required")
	}
	if len(r.Password) < 6 {
		return invalid("password must be at least 6 characters")
	}
	if strings.TrimSpace(r.PhoneNumber) == "" {
		return invalid("phoneNumber is required")
	}
	return nil
}

func (s *Service) RegisterStudent(ctx context.Context, r Registration) (User, string, error) {
	if err := r.validateCommon(); err != nil {
		return User{}, "", err
	}
	if r.RegistrationNumber == "" || r.Department == "" || r.Level == "" {
		return User{}, "", invalid("registrationNumber, department and level are required")
	}
	u := User{
		Role:               RoleStudent,
		RegistrationNumber: r.RegistrationNumber,
		Department:         r.Department,
		Level:              r.Level,
	}
	return s.register(ctx, r, u)
}

func (s *Service) RegisterLandlord(ctx context.Context, r Registration) (User, string, error) {
	if err := r.validateCommon(); err != nil {
		return User{}, "", err
	}
	if r.ResidentialAddress == "" || r.State == "" || r.LGA == "" || r.WhatsappNumber == "" {
		return User{}, "", invalid("residentialAddress, state, lga and whatsappNumber are required")
	}
	if !knownIDType(r.IdentificationType) || r.IdentificationNumber == "" {
		return User{}, "", invalid("a valid identificationType and identificationNumber are required")
	}
	u := User{
		Role:                 RoleLandlord,
		ResidentialAddress:   r.ResidentialAddress,
		State:                r.State,
		LGA:                  r.LGA,
		IdentificationType:   r.IdentificationType,
		IdentificationNumber: r.IdentificationNumber,
		WhatsappNumber:       r.WhatsappNumber,
	}
	return s.register(ctx, r, u)
}

func knownIDType(t string) bool {
	for _, k := range IDTypes {
		if k == t {
			return true
		}
	}
	return false
}

func (s *Service) register(ctx context.Context, r Registration, u User) (User, string, error) {
	hash, err := HashPassword(r.Password)
	if err != nil {
		return User{}, "", err
	}
	u.ID = uuid.NewString()
	u.FullName = strings.TrimSpace(r.FullName)
	u.Email = strings.ToLower(strings.TrimSpace(r.Email))
	u.PhoneNumber = r.PhoneNumber
	u.PasswordHash = hash

	if err := s.Store.Create(ctx, &u); err != nil {
		return User{}, "", err
	}
	tok, err := s.Tokens.Issue(u)
	if err != nil {
		return User{}, "", err
	}
	return u, tok, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	u, err := s.Store.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, "", ErrInvalidCredentials
		}
		return User{}, "", err
	}
	if !CheckPassword(password, u.PasswordHash) {
		return User{}, "", ErrInvalidCredentials
	}
	tok, err := s.Tokens.Issue(u)
	if err != nil {
		return User{}, "", err
	}
	return u, tok, nil
}

func (s *Service) Profile(ctx context.Context, id string) (User, error) {
	return s.Store.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (User, error) {
	u, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&u.FullName, p.FullName)
	set(&u.PhoneNumber, p.PhoneNumber)
	set(&u.ProfilePhoto, p.ProfilePhoto)
	if u.Role == RoleStudent {
		set(&u.Department, p.Department)
		set(&u.Level, p.Level)
	} else {
		set(&u.ResidentialAddress, p.ResidentialAddress)
		set(&u.State, p.State)
		set(&u.LGA, p.LGA)
		set(&u.WhatsappNumber, p.WhatsappNumber)
	}
	if u.FullName == "" {
		return User{}, invalid("fullName cannot be empty")
	}

	if p.BankName != nil || p.BankCode != nil || p.AccountNumber != nil || p.AccountName != nil {
		if err := s.applyBankDetails(ctx, &u, p); err != nil {
			return User{}, err
		}
	}

	if err := s.Store.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// applyBankDetails validates the new payout destination. When a bank code is
// known the holder name comes from the gateway, not from the client.
func (s *Service) applyBankDetails(ctx context.Context, u *User, p ProfileUpdate) error {
	next := *u
	if p.BankName != nil {
		next.BankName = strings.TrimSpace(*p.BankName)
	}
	if p.BankCode != nil {
		next.BankCode = strings.TrimSpace(*p.BankCode)
	}
	if p.AccountNumber != nil {
		next.AccountNumber = strings.TrimSpace(*p.AccountNumber)
	}
	if p.AccountName != nil {
		next.AccountName = strings.TrimSpace(*p.AccountName)
	}
	if next.BankName == "" {
		return invalid("bankName is required")
	}
	if err := paystack.ValidateAccountNumber(next.AccountNumber); err != nil {
		return invalid(err.Error())
	}
	if next.BankCode != "" && s.Accounts != nil {
		acct, err := s.Accounts.ResolveAccount(ctx, next.AccountNumber, next.BankCode)
		if err != nil {
			return fmt.Errorf("verify bank account: %w", err)
		}
		next.AccountName = acct.AccountName
	}
	if next.AccountName == "" {
		return invalid("accountName is required")
	}
	if next.BankCode != u.BankCode || next.AccountNumber != u.AccountNumber {
		next.RecipientCode = ""
	}
	*u = next
	return nil
}
