package bookings

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"
)

var bookingRefRe = regexp.MustCompile(`^CN-\d{4}-\d{4}$`)

// NewBookingRef formats the human-facing reference CN-<year>-<4 digits>.
func NewBookingRef(now time.Time) string {
	return fmt.Sprintf("CN-%04d-%04d", now.Year(), rand.IntN(10000))
}

func ValidBookingRef(s string) bool {
	return bookingRefRe.MatchString(s)
}
