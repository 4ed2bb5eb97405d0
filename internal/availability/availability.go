// Package availability decides whether a facility window is free.
//
// A proposed window conflicts with an existing booking only when that booking
// is confirmed or active and the two intervals overlap under half-open
// semantics. Back-to-back windows never conflict.
package availability

import (
	"context"
	"time"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/schedule"
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Conflicts returns the bookings that block [start, end). excludeID skips a
// booking by id or code, for edit-in-place checks.
func Conflicts(existing []model.Booking, start, end time.Time, excludeID string) []model.Booking {
	var out []model.Booking
	for _, b := range existing {
		if excludeID != "" && (b.ID == excludeID || b.Code == excludeID) {
			continue
		}
		if !b.Status.Occupies() {
			continue
		}
		if Overlaps(b.StartTime, b.EndTime, start, end) {
			out = append(out, b)
		}
	}
	return out
}

// OpenSlots keeps the calendar windows that no existing booking blocks. A
// positive duration keeps only windows of exactly that many minutes.
func OpenSlots(windows []schedule.Window, existing []model.Booking, duration int) []model.OpenSlot {
	out := []model.OpenSlot{}
	for _, w := range windows {
		if duration > 0 && w.Minutes() != duration {
			continue
		}
		if len(Conflicts(existing, w.Start, w.End, "")) > 0 {
			continue
		}
		out = append(out, model.OpenSlot{StartTime: w.Start, EndTime: w.End, DurationMin: w.Minutes()})
	}
	return out
}

// Store lists the bookings of a facility that occupy any part of [from, to).
type Store interface {
	ListOccupying(ctx context.Context, facilityID string, from, to time.Time) ([]model.Booking, error)
}

// Checker answers availability queries against persisted bookings.
type Checker struct {
	store Store
}

// NewChecker constructs a Checker.
func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

// Check reports whether [start, end) is free at the facility. It never writes.
func (c *Checker) Check(ctx context.Context, facilityID string, start, end time.Time, excludeID string) (model.AvailabilityResult, error) {
	existing, err := c.store.ListOccupying(ctx, facilityID, start, end)
	if err != nil {
		return model.AvailabilityResult{}, err
	}
	conflicts := Conflicts(existing, start, end, excludeID)
	if conflicts == nil {
		conflicts = []model.Booking{}
	}
	return model.AvailabilityResult{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// Day lists the free calendar windows of a facility on date. Bookings are
// fetched across the span of the windows, which may run past midnight.
func (c *Checker) Day(ctx context.Context, f *model.Facility, date time.Time, duration int) ([]model.OpenSlot, error) {
	windows := schedule.Resolve(f.WeeklySlots, date)
	if len(windows) == 0 {
		return []model.OpenSlot{}, nil
	}
	from, to := windows[0].Start, windows[0].End
	for _, w := range windows[1:] {
		if w.Start.Before(from) {
			from = w.Start
		}
		if w.End.After(to) {
			to = w.End
		}
	}
	existing, err := c.store.ListOccupying(ctx, f.ID, from, to)
	if err != nil {
		return nil, err
	}
	return OpenSlots(windows, existing, duration), nil
}
