package listings

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	Store Store
}

func invalid(msg string) error { return fmt.Errorf("%w: %s", ErrInvalid, msg) }

func knownArea(a string) bool {
	for _, x := range Areas {
		if x == a {
			return true
		}
	}
	return false
}

func validate(l Listing) error {
	switch {
	case strings.TrimSpace(l.LodgeName) == "":
		return invalid("lodgeName is required")
	case strings.TrimSpace(l.LodgeAddress) == "":
		return invalid("lodgeAddress is required")
	case !knownArea(l.Area):
		return invalid("unknown area " + l.Area)
	case l.PricePerYear <= 0:
		return invalid("pricePerYear must be positive")
	case l.AvailableSlots < 0:
		return invalid("availableSlots cannot be negative")
	case l.DistanceFromUNN < 0:
		return invalid("distanceFromUNN cannot be negative")
	case l.Status != StatusActive && l.Status != StatusClosed:
		return invalid("status must be active or closed")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, landlordID string, in Input) (Listing, error) {
	l := Listing{
		ID:              uuid.NewString(),
		LandlordID:      landlordID,
		LodgeName:       strings.TrimSpace(in.LodgeName),
		LodgeAddress:    strings.TrimSpace(in.LodgeAddress),
		Area:            in.Area,
		PricePerYear:    in.PricePerYear,
		AvailableSlots:  in.AvailableSlots,
		DistanceFromUNN: in.DistanceFromUNN,
		Description:     in.Description,
		Photos:          in.Photos,
		Video:           in.Video,
		Status:          StatusActive,
	}
	if l.Photos == nil {
		l.Photos = []string{}
	}
	if err := validate(l); err != nil {
		return Listing{}, err
	}
	if err := s.Store.Create(ctx, &l); err != nil {
		return Listing{}, err
	}
	return l, nil
}

func (s *Service) Get(ctx context.Context, id string) (Listing, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filters) ([]Listing, error) {
	return s.Store.List(ctx, f)
}

func (s *Service) ListMine(ctx context.Context, landlordID string) ([]Listing, error) {
	return s.Store.ListByLandlord(ctx, landlordID)
}

func (s *Service) owned(ctx context.Context, landlordID, id string) (Listing, error) {
	l, err := s.Store.Get(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	if l.LandlordID != landlordID {
		return Listing{}, ErrForbidden
	}
	return l, nil
}

func (p Patch) apply(l *Listing) {
	if p.LodgeName != nil {
		l.LodgeName = strings.TrimSpace(*p.LodgeName)
	}
	if p.LodgeAddress != nil {
		l.LodgeAddress = strings.TrimSpace(*p.LodgeAddress)
	}
	if p.Area != nil {
		l.Area = *p.Area
	}
	if p.PricePerYear != nil {
		l.PricePerYear = *p.PricePerYear
	}
	if p.AvailableSlots != nil {
		l.AvailableSlots = *p.AvailableSlots
	}
	if p.DistanceFromUNN != nil {
		l.DistanceFromUNN = *p.DistanceFromUNN
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Photos != nil {
		l.Photos = *p.Photos
	}
	if p.Video != nil {
		l.Video = *p.Video
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
}

// Update patches the owner's listing on the current row; fields the patch
// leaves nil keep whatever the row holds at write time.
func (s *Service) Update(ctx context.Context, landlordID, id string, p Patch) (Listing, error) {
	return s.Store.Update(ctx, id, func(l *Listing) error {
		if l.LandlordID != landlordID {
			return ErrForbidden
		}
		p.apply(l)
		return validate(*l)
	})
}

// SetStatus opens or closes sales on a listing.
func (s *Service) SetStatus(ctx context.Context, landlordID, id string, st Status) (Listing, error) {
	return s.Update(ctx, landlordID, id, Patch{Status: &st})
}

func (s *Service) Delete(ctx context.Context, landlordID, id string) error {
	if _, err := s.owned(ctx, landlordID, id); err != nil {
		return err
	}
	return s.Store.Delete(ctx, id)
}
