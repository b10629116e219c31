// Package paystack is a thin client for the parts of the Paystack REST API the
// booking service needs: transactions, banks and transfers.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.paystack.co"

// ErrNoSecretKey is returned by calls that cannot be faked without credentials.
var ErrNoSecretKey = errors.New("paystack secret key not configured")

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %d %s", e.Status, e.Message)
}

type Client struct {
	BaseURL   string
	SecretKey string
	HTTP      *http.Client
}

func New(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
		HTTP:      &http.Client{Timeout: 15 * time.Second},
	}
}

// envelope is the shape of every Paystack response body.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.SecretKey == "" {
		return ErrNoSecretKey
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("paystack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "unreadable response"}
	}
	if resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode paystack data: %w", err)
	}
	return nil
}

// ToKobo converts whole Naira to the minor unit Paystack charges in.
func ToKobo(naira int64) int64 { return naira * 100 }
