package bookings

import (
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("booking not found")
	ErrForbidden           = errors.New("booking belongs to another user")
	ErrInvalidDecision     = errors.New("inspection decision must be Approved or Rejected")
	ErrInvalidTransition   = errors.New("booking cannot make that transition")
	ErrBankDetailsRequired = errors.New("add your bank details before requesting a refund")
	ErrListingUnavailable  = errors.New("listing is closed or fully booked")
	ErrPaymentNotSettled   = errors.New("payment has not been completed")
	ErrPaymentMismatch     = errors.New("payment does not match this listing")
)

// Booking is one student's paid reservation of one listing. Funds stay in
// escrow until the student's inspection decision releases or refunds them.
type Booking struct {
	ID                string           `json:"purchase_id"`
	BookingRef        string           `json:"bookingRef"`
	StudentID         string           `json:"studentId"`
	LandlordID        string           `json:"landlordId"`
	ListingID         string           `json:"listingId"`
	Amount            int64            `json:"amount"` // Naira
	PaymentStatus     PaymentStatus    `json:"paymentStatus"`
	InspectionStatus  InspectionStatus `json:"inspectionStatus"`
	PaystackReference string           `json:"paystackReference"`
	PaymentDate       *time.Time       `json:"paymentDate,omitempty"`
	InspectionDate    *time.Time       `json:"inspectionDate,omitempty"`
	ReleaseDate       *time.Time       `json:"releaseDate,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`

	Listing  *ListingSummary `json:"listing,omitempty"`
	Student  *Party          `json:"student,omitempty"`
	Landlord *Party          `json:"landlord,omitempty"`
}

type ListingSummary struct {
	ID           string `json:"id"`
	LodgeName    string `json:"lodgeName"`
	LodgeAddress string `json:"lodgeAddress"`
	Area         string `json:"area"`
	PricePerYear int64  `json:"pricePerYear"`
}

type Party struct {
	ID             string `json:"id"`
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phoneNumber"`
	WhatsappNumber string `json:"whatsappNumber,omitempty"`
}

// NewBooking is a settled charge waiting to be recorded.
type NewBooking struct {
	StudentID         string
	ListingID         string
	Amount            int64
	PaystackReference string
	PaidAt            time.Time
}
