package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

type InitializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"` // kobo
	Reference   string         `json:"reference,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type Customer struct {
	Email        string `json:"email"`
	CustomerCode string `json:"customer_code"`
}

type Transaction struct {
	ID              int64           `json:"id"`
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"` // kobo
	Currency        string          `json:"currency"`
	PaidAt          string          `json:"paid_at"`
	GatewayResponse string          `json:"gateway_response"`
	Customer        Customer        `json:"customer"`
	Metadata        json.RawMessage `json:"metadata"`
}

// Succeeded reports whether the charge settled.
func (t Transaction) Succeeded() bool { return t.Status == "success" }

// MetadataString reads a string field from the transaction metadata. Paystack
// returns metadata as an object, an empty string or null depending on how the
// transaction was created.
func (t Transaction) MetadataString(key string) string {
	var m map[string]any
	if err := json.Unmarshal(t.Metadata, &m); err != nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func (c *Client) InitializeTransaction(ctx context.Context, in InitializeRequest) (Authorization, error) {
	var out Authorization
	err := c.do(ctx, http.MethodPost, "/transaction/initialize", in, &out)
	return out, err
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (Transaction, error) {
	var out Transaction
	err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &out)
	return out, err
}
