package users

import (
	"errors"
	"time"
)

type Role string

const (
	RoleStudent  Role = "student"
	RoleLandlord Role = "landlord"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalid            = errors.New("invalid input")
)

// User is either a student or a landlord; role-specific fields are empty for
// the other role.
type User struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PhoneNumber  string    `json:"phoneNumber"`
	ProfilePhoto string    `json:"profilePhoto,omitempty"`
	IsVerified   bool      `json:"isVerified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// student
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	Department         string `json:"department,omitempty"`
	Level              string `json:"level,omitempty"`

	// landlord
	ResidentialAddress   string `json:"residentialAddress,omitempty"`
	State                string `json:"state,omitempty"`
	LGA                  string `json:"lga,omitempty"`
	IdentificationType   string `json:"identificationType,omitempty"`
	IdentificationNumber string `json:"identificationNumber,omitempty"`
	WhatsappNumber       string `json:"whatsappNumber,omitempty"`

	// payout destination: refunds for students, releases for landlords
	BankName      string `json:"bankName,omitempty"`
	BankCode      string `json:"bankCode,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	AccountName   string `json:"accountName,omitempty"`
	RecipientCode string `json:"-"`
}

// HasBankDetails reports whether a refund or release can be paid out to u.
func (u User) HasBankDetails() bool {
	return u.BankName != "" && u.AccountNumber != "" && u.AccountName != ""
}

var IDTypes = []string{"National ID", "Voter's Card", "Driver's License"}
