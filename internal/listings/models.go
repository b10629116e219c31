package listings

import (
	"errors"
	"time"
)

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

var (
	ErrNotFound    = errors.New("listing not found")
	ErrForbidden   = errors.New("listing belongs to another landlord")
	ErrInvalid     = errors.New("invalid listing")
	ErrHasBookings = errors.New("listing has bookings; close it instead")
)

// Areas around the UNN campus a lodge can be listed under.
var Areas = []string{
	"Odenigwe",
	"Hilltop",
	"Green House",
	"Abuja Building Area",
	"Faculty of Arts Area",
	"Onuiyi",
	"Zik's Flats Area",
}

type Listing struct {
	ID              string    `json:"id"`
	LandlordID      string    `json:"landlordId"`
	LodgeName       string    `json:"lodgeName"`
	LodgeAddress    string    `json:"lodgeAddress"`
	Area            string    `json:"area"`
	PricePerYear    int64     `json:"pricePerYear"`
	AvailableSlots  int       `json:"availableSlots"`
	DistanceFromUNN float64   `json:"distanceFromUNN"`
	Description     string    `json:"description"`
	Photos          []string  `json:"photos"`
	Video           string    `json:"video,omitempty"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Bookable reports whether a student can pay for a slot right now.
func (l Listing) Bookable() bool {
	return l.Status == StatusActive && l.AvailableSlots > 0
}

type Filters struct {
	Area        string
	MinPrice    int64
	MaxPrice    int64
	MaxDistance float64
	Search      string
	Limit       int
	Offset      int
}

type Input struct {
	LodgeName       string   `json:"lodgeName"`
	LodgeAddress    string   `json:"lodgeAddress"`
	Area            string   `json:"area"`
	PricePerYear    int64    `json:"pricePerYear"`
	AvailableSlots  int      `json:"availableSlots"`
	DistanceFromUNN float64  `json:"distanceFromUNN"`
	Description     string   `json:"description"`
	Photos          []string `json:"photos"`
	Video           string   `json:"video"`
}

// Patch is a partial update; nil fields are left alone.
type Patch struct {
	LodgeName       *string   `json:"lodgeName"`
	LodgeAddress    *string   `json:"lodgeAddress"`
	Area            *string   `json:"area"`
	PricePerYear    *int64    `json:"pricePerYear"`
	AvailableSlots  *int      `json:"availableSlots"`
	DistanceFromUNN *float64  `json:"distanceFromUNN"`
	Description     *string   `json:"description"`
	Photos          *[]string `json:"photos"`
	Video           *string   `json:"video"`
	Status          *Status   `json:"status"`
}
