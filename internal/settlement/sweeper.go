package settlement

import (
	"context"
	"log"
	"time"
)

type AutoReleaser interface {
	AutoRelease(ctx context.Context, window time.Duration, batch int) (int, error)
}

// Sweeper approves bookings nobody inspected within Window. It does nothing when
// Window is zero.
type Sweeper struct {
	Bookings AutoReleaser
	Window   time.Duration
	Interval time.Duration
	Batch    int
}

func (s *Sweeper) Run(ctx context.Context) {
	if s.Window <= 0 {
		return
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Sweep releases due bookings batch by batch until none are left.
func (s *Sweeper) Sweep(ctx context.Context) int {
	batch := s.Batch
	if batch <= 0 {
		batch = 100
	}
	total := 0
	for ctx.Err() == nil {
		n, err := s.Bookings.AutoRelease(ctx, s.Window, batch)
		total += n
		if err != nil {
			log.Printf("auto-release: %v", err)
			break
		}
		if n < batch {
			break
		}
	}
	if total > 0 {
		log.Printf("auto-released %d bookings (window=%s)", total, s.Window)
	}
	return total
}
