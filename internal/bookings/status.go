package bookings

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentReleased PaymentStatus = "Released"
	PaymentRefunded PaymentStatus = "Refunded"
)

type InspectionStatus string

const (
	InspectionPending  InspectionStatus = "Pending"
	InspectionApproved InspectionStatus = "Approved"
	InspectionRejected InspectionStatus = "Rejected"
)

// Paid branches to Released or Refunded; both are terminal.
var validNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:  {PaymentPaid: true},
	PaymentPaid:     {PaymentReleased: true, PaymentRefunded: true},
	PaymentReleased: {},
	PaymentRefunded: {},
}

func CanTransition(from, to PaymentStatus) bool {
	return validNext[from][to]
}

func (s PaymentStatus) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// settles maps an inspection decision to the payment state it forces.
var settles = map[InspectionStatus]PaymentStatus{
	InspectionApproved: PaymentReleased,
	InspectionRejected: PaymentRefunded,
}

// ApplyDecision moves b out of escrow according to the student's inspection
// decision. b is left untouched on error.
func ApplyDecision(b *Booking, d InspectionStatus, now time.Time) error {
	target, ok := settles[d]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDecision, d)
	}
	if b.InspectionStatus != InspectionPending || !CanTransition(b.PaymentStatus, target) {
		return fmt.Errorf("%w: %s/%s -> %s", ErrInvalidTransition, b.PaymentStatus, b.InspectionStatus, d)
	}
	b.PaymentStatus = target
	b.InspectionStatus = d
	b.InspectionDate = &now
	if target == PaymentReleased {
		b.ReleaseDate = &now
	}
	return nil
}

// CheckInvariants reports a booking whose two statuses disagree.
func CheckInvariants(b Booking) error {
	if _, ok := validNext[b.PaymentStatus]; !ok {
		return fmt.Errorf("unknown payment status %q", b.PaymentStatus)
	}
	switch b.InspectionStatus {
	case InspectionPending:
		if b.PaymentStatus.Terminal() {
			return fmt.Errorf("payment %s without an inspection decision", b.PaymentStatus)
		}
	case InspectionApproved, InspectionRejected:
		if want := settles[b.InspectionStatus]; b.PaymentStatus != want {
			return fmt.Errorf("inspection %s requires payment %s, got %s", b.InspectionStatus, want, b.PaymentStatus)
		}
	default:
		return fmt.Errorf("unknown inspection status %q", b.InspectionStatus)
	}
	return nil
}
