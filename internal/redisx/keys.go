package redisx

import "time"

const (
	// Payment init per (student, listing): idem:payment:init:{student_id}:{listing_id} -> authorization JSON
	KeyIdemPaymentInit = "idem:payment:init:%s:%s"

	// Booking status cache: booking_status:{booking_id} -> {"paymentStatus": "...", ...}
	KeyBookingStatus = "booking_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLPaymentInit = 30 * time.Minute
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
