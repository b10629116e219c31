// Package payments fronts the payment gateway for clients: charge
// initialization and verification, bank lookups and transfer recipients.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-lodge-escrow/internal/bookings"
	"github.com/ariefcatur/go-lodge-escrow/internal/listings"
	"github.com/ariefcatur/go-lodge-escrow/internal/paystack"
	"github.com/ariefcatur/go-lodge-escrow/internal/redisx"
	"github.com/ariefcatur/go-lodge-escrow/internal/users"
	"github.com/google/uuid"
	"github.com/karlseguin/ccache/v3"
	"github.com/redis/go-redis/v9"
)

const banksKey = "banks:ng"

var banksTTL = time.Hour

type Gateway interface {
	InitializeTransaction(ctx context.Context, in paystack.InitializeRequest) (paystack.Authorization, error)
	VerifyTransaction(ctx context.Context, reference string) (paystack.Transaction, error)
	ListBanks(ctx context.Context) ([]paystack.Bank, string)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (paystack.ResolvedAccount, error)
	CreateRecipient(ctx context.Context, name, accountNumber, bankCode string) (paystack.Recipient, error)
	InitiateTransfer(ctx context.Context, in paystack.TransferRequest) (paystack.Transfer, error)
	VerifyTransfer(ctx context.Context, reference string) (paystack.Transfer, error)
}

type ListingLookup interface {
	Get(ctx context.Context, id string) (listings.Listing, error)
}

type Service struct {
	Gateway     Gateway
	Listings    ListingLookup
	Users       users.Store
	Redis       redis.Cmdable
	CallbackURL string

	banks *ccache.Cache[[]paystack.Bank]
}

func NewService(gw Gateway, ls ListingLookup, us users.Store, rdb redis.Cmdable, callbackURL string) *Service {
	return &Service{
		Gateway:     gw,
		Listings:    ls,
		Users:       us,
		Redis:       rdb,
		CallbackURL: callbackURL,
		banks:       ccache.New(ccache.Configure[[]paystack.Bank]().MaxSize(16)),
	}
}

type InitRequest struct {
	Email      string `json:"email"`
	Amount     int64  `json:"amount"`
	ListingID  string `json:"listingId"`
	LandlordID string `json:"landlordId"`
}

type InitResult struct {
	Success          bool   `json:"success"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
	Amount           int64  `json:"amount"` // Naira; the popup charges Amount*100 kobo
}

// Initialize opens a charge for one slot of a listing. The amount is the
// listing's price; a client-supplied amount is only checked against it. While a
// charge for the same (student, listing) is still open the same handle is returned.
func (s *Service) Initialize(ctx context.Context, student users.User, req InitRequest) (InitResult, error) {
	l, err := s.Listings.Get(ctx, req.ListingID)
	if err != nil {
		return InitResult{}, err
	}
	if !l.Bookable() {
		return InitResult{}, bookings.ErrListingUnavailable
	}
	if req.Amount != 0 && req.Amount != l.PricePerYear {
		return InitResult{}, fmt.Errorf("%w: listing costs %d", bookings.ErrPaymentMismatch, l.PricePerYear)
	}
	if req.LandlordID != "" && req.LandlordID != l.LandlordID {
		return InitResult{}, fmt.Errorf("%w: listing has another landlord", bookings.ErrPaymentMismatch)
	}

	idemKey := fmt.Sprintf(redisx.KeyIdemPaymentInit, student.ID, l.ID)
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, idemKey).Result(); err == nil {
			var cached InitResult
			if json.Unmarshal([]byte(raw), &cached) == nil && cached.Amount == l.PricePerYear {
				return cached, nil
			}
		}
	}

	email := student.Email
	if email == "" {
		email = req.Email
	}
	auth, err := s.Gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      paystack.ToKobo(l.PricePerYear),
		Reference:   "LDG-" + uuid.NewString(),
		CallbackURL: s.CallbackURL,
		Metadata: map[string]any{
			"listingId":  l.ID,
			"landlordId": l.LandlordID,
			"studentId":  student.ID,
		},
	})
	if err != nil {
		return InitResult{}, fmt.Errorf("initialize payment: %w", err)
	}
	res := InitResult{
		Success:          true,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		Reference:        auth.Reference,
		Amount:           l.PricePerYear,
	}
	if s.Redis != nil {
		b, _ := json.Marshal(res)
		_ = s.Redis.Set(ctx, idemKey, b, redisx.TTLPaymentInit).Err()
	}
	return res, nil
}

// Settled clears the open-charge handle once a booking exists for it.
func (s *Service) Settled(ctx context.Context, studentID, listingID string) {
	if s.Redis == nil {
		return
	}
	_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyIdemPaymentInit, studentID, listingID)).Err()
}

// Verify looks up a charge for one of its parties. Charges opened elsewhere
// carry no parties and are hidden.
func (s *Service) Verify(ctx context.Context, callerID, reference string) (paystack.Transaction, error) {
	tx, err := s.Gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return paystack.Transaction{}, err
	}
	if callerID == "" || (tx.MetadataString("studentId") != callerID && tx.MetadataString("landlordId") != callerID) {
		return paystack.Transaction{}, bookings.ErrForbidden
	}
	return tx, nil
}

// Banks serves the bank list from process memory for an hour at a time.
func (s *Service) Banks(ctx context.Context) ([]paystack.Bank, string) {
	if item := s.banks.Get(banksKey); item != nil && !item.Expired() {
		return item.Value(), "cache"
	}
	banks, src := s.Gateway.ListBanks(ctx)
	if src != "fallback" {
		s.banks.Set(banksKey, banks, banksTTL)
	}
	return banks, src
}

func (s *Service) VerifyAccount(ctx context.Context, accountNumber, bankCode string) (paystack.ResolvedAccount, error) {
	if err := paystack.ValidateAccountNumber(accountNumber); err != nil {
		return paystack.ResolvedAccount{}, err
	}
	if bankCode == "" {
		return paystack.ResolvedAccount{}, errors.New("bank code is required")
	}
	return s.Gateway.ResolveAccount(ctx, accountNumber, bankCode)
}

type RecipientRequest struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

// CreateRecipient registers u's payout account with the gateway and remembers the code.
func (s *Service) CreateRecipient(ctx context.Context, u users.User, req RecipientRequest) (paystack.Recipient, error) {
	name := req.Name
	if name == "" {
		name = u.FullName
	}
	r, err := s.Gateway.CreateRecipient(ctx, name, req.AccountNumber, req.BankCode)
	if err != nil {
		return paystack.Recipient{}, err
	}
	if err := s.Users.SetRecipientCode(ctx, u.ID, r.RecipientCode); err != nil {
		log.Printf("save recipient code user=%s: %v", u.ID, err)
	}
	return r, nil
}

func (s *Service) VerifyTransfer(ctx context.Context, reference string) (paystack.Transfer, error) {
	return s.Gateway.VerifyTransfer(ctx, reference)
}
