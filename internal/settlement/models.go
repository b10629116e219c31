// Package settlement moves escrowed money once an inspection is decided:
// releases go to the landlord, refunds go back to the student.
package settlement

import (
	"errors"
	"time"
)

const (
	KindRelease = "release"
	KindRefund  = "refund"

	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

var (
	ErrNotSettled      = errors.New("booking has no decided payout")
	ErrNoPayoutAccount = errors.New("payee has no complete bank details")
	ErrNotFound        = errors.New("payout not found")
)

// Payout is one transfer attempt per (booking, kind). A failed payout may be retried
// under the same reference.
type Payout struct {
	ID           string    `json:"id"`
	BookingID    string    `json:"bookingId"`
	Kind         string    `json:"kind"`
	Recipient    string    `json:"recipient"`
	Amount       int64     `json:"amount"`
	Reference    string    `json:"reference"`
	TransferCode string    `json:"transferCode,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Reference is stable per booking and kind, so the gateway sees a retry as the same transfer.
func Reference(kind, bookingID string) string { return kind + "-" + bookingID }
