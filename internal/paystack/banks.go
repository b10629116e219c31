package paystack

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"sort"
)

var ErrInvalidAccountNumber = errors.New("account number must be exactly 10 digits")

var accountNumberRe = regexp.MustCompile(`^\d{10}$`)

// ValidateAccountNumber accepts NUBAN account numbers only.
func ValidateAccountNumber(s string) error {
	if !accountNumberRe.MatchString(s) {
		return ErrInvalidAccountNumber
	}
	return nil
}

type Bank struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Code        string  `json:"code"`
	Longcode    string  `json:"longcode"`
	Gateway     *string `json:"gateway"`
	PayWithBank bool    `json:"pay_with_bank"`
	Active      bool    `json:"active"`
	Country     string  `json:"country"`
	Currency    string  `json:"currency"`
	Type        string  `json:"type"`
}

type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankID        int64  `json:"bank_id"`
}

// ListBanks returns active Nigerian banks sorted by name. The second return
// value names the source ("paystack" or "fallback"); it never fails, a missing
// key or a gateway error yields the built-in list.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, string) {
	var banks []Bank
	if err := c.do(ctx, http.MethodGet, "/bank?country=nigeria", nil, &banks); err != nil {
		if !errors.Is(err, ErrNoSecretKey) {
			log.Printf("paystack list banks: %v; using fallback", err)
		}
		return FallbackBanks(), "fallback"
	}
	out := banks[:0]
	for _, b := range banks {
		if b.Active {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return FallbackBanks(), "fallback"
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, "paystack"
}

// ResolveAccount looks up the holder name of a NUBAN account. Without a secret
// key it returns a placeholder name so local development can complete profiles.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (ResolvedAccount, error) {
	if err := ValidateAccountNumber(accountNumber); err != nil {
		return ResolvedAccount{}, err
	}
	if bankCode == "" {
		return ResolvedAccount{}, errors.New("bank code is required")
	}
	if c.SecretKey == "" {
		return ResolvedAccount{AccountNumber: accountNumber, AccountName: "TEST ACCOUNT NAME"}, nil
	}
	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)
	var out ResolvedAccount
	err := c.do(ctx, http.MethodGet, "/bank/resolve?"+q.Encode(), nil, &out)
	return out, err
}
