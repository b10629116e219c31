package paystack

import (
	"context"
	"net/http"
	"net/url"
)

type RecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

type Recipient struct {
	RecipientCode string `json:"recipient_code"`
	Name          string `json:"name"`
	Active        bool   `json:"active"`
}

type TransferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"` // kobo
	Recipient string `json:"recipient"`
	Reason    string `json:"reason,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type Transfer struct {
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
}

func (c *Client) CreateRecipient(ctx context.Context, name, accountNumber, bankCode string) (Recipient, error) {
	if err := ValidateAccountNumber(accountNumber); err != nil {
		return Recipient{}, err
	}
	var out Recipient
	err := c.do(ctx, http.MethodPost, "/transferrecipient", RecipientRequest{
		Type:          "nuban",
		Name:          name,
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		Currency:      "NGN",
	}, &out)
	return out, err
}

func (c *Client) InitiateTransfer(ctx context.Context, in TransferRequest) (Transfer, error) {
	if in.Source == "" {
		in.Source = "balance"
	}
	var out Transfer
	err := c.do(ctx, http.MethodPost, "/transfer", in, &out)
	return out, err
}

func (c *Client) VerifyTransfer(ctx context.Context, reference string) (Transfer, error) {
	var out Transfer
	err := c.do(ctx, http.MethodGet, "/transfer/verify/"+url.PathEscape(reference), nil, &out)
	return out, err
}
