package bookings

import (
	"encoding/json"
	"time"
)

const (
	EventBookingPaid       = "BookingPaid"
	EventInspectionDecided = "InspectionDecided"
	EventPayoutInitiated   = "PayoutInitiated"
	EventPayoutFailed      = "PayoutFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // booking id
	Payload       json.RawMessage `json:"payload"`
}

type BookingPaidPayload struct {
	BookingID         string `json:"booking_id"`
	BookingRef        string `json:"booking_ref"`
	StudentID         string `json:"student_id"`
	LandlordID        string `json:"landlord_id"`
	ListingID         string `json:"listing_id"`
	Amount            int64  `json:"amount"`
	PaystackReference string `json:"paystack_reference"`
}

type InspectionDecidedPayload struct {
	BookingID     string           `json:"booking_id"`
	BookingRef    string           `json:"booking_ref"`
	StudentID     string           `json:"student_id"`
	LandlordID    string           `json:"landlord_id"`
	Amount        int64            `json:"amount"`
	Decision      InspectionStatus `json:"decision"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	Auto          bool             `json:"auto,omitempty"` // inspection window elapsed
}

type PayoutPayload struct {
	BookingID    string `json:"booking_id"`
	Kind         string `json:"kind"` // release | refund
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code,omitempty"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason,omitempty"`
}
