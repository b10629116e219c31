package bookings

const (
	TopicBookingPaid       = "booking.paid"
	TopicInspectionDecided = "booking.inspection.decided"
	TopicPayout            = "booking.payout"
)

// Partition key = booking id so every event of one booking stays ordered.
func PartitionKey(bookingID string) []byte { return []byte(bookingID) }
