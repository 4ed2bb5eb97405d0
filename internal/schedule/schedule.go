// Package schedule resolves a facility's weekly template into the concrete
// windows that are nominally open on a date. It performs no I/O.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Minutes is the length of the window.
func (w Window) Minutes() int {
	return int(w.End.Sub(w.Start).Minutes())
}

// WeekdayKey is the template key for the date's weekday, e.g. "monday".
func WeekdayKey(date time.Time) string {
	return strings.ToLower(date.Weekday().String())
}

// ParseClock converts "HH:MM" to minutes after midnight.
func ParseClock(input string) (int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(input))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (expected HH:MM)", input)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// At returns the instant minutes after midnight of date, in date's location.
func At(date time.Time, minutes int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, date.Location()).Add(time.Duration(minutes) * time.Minute)
}

// Resolve returns the open windows on date. A missing weekday means closed.
// Malformed entries are skipped; use Validate when accepting a template.
func Resolve(week model.WeeklySlots, date time.Time) []Window {
	day, ok := week[WeekdayKey(date)]
	if !ok {
		return nil
	}
	switch day.Mode {
	case model.ModePattern:
		return resolvePattern(day.Blocks, date)
	default:
		return resolveExplicit(day.Slots, date)
	}
}

func resolveExplicit(slots []model.Slot, date time.Time) []Window {
	var out []Window
	for _, s := range slots {
		start, err := ParseClock(s.Start)
		if err != nil || s.DurationMin <= 0 {
			continue
		}
		out = append(out, Window{
			Start: At(date, start),
			End:   At(date, start+s.DurationMin),
		})
	}
	return out
}

// resolvePattern applies date-pinned blocks when any match the date and the
// recurring blocks otherwise.
func resolvePattern(blocks []model.Block, date time.Time) []Window {
	var pinned, recurring []model.Block
	key := date.Format(DateLayout)
	for _, b := range blocks {
		if b.Date != "" {
			if b.Date == key {
				pinned = append(pinned, b)
			}
			continue
		}
		if matchesRecurrence(b, date) {
			recurring = append(recurring, b)
		}
	}
	active := recurring
	if len(pinned) > 0 {
		active = pinned
	}

	var out []Window
	for _, b := range active {
		out = append(out, flatten(b, date)...)
	}
	return out
}

func matchesRecurrence(b model.Block, date time.Time) bool {
	if b.Day != "" {
		d, err := strconv.Atoi(strings.TrimSpace(b.Day))
		if err != nil || d != date.Day() {
			return false
		}
	}
	if b.Month != "" {
		m, ok := parseMonth(b.Month)
		if !ok || m != date.Month() {
			return false
		}
	}
	return true
}

// flatten splits [from, to) into consecutive windows of the block duration.
// from == to marks a closure and yields nothing.
func flatten(b model.Block, date time.Time) []Window {
	from, err := ParseClock(b.From)
	if err != nil {
		return nil
	}
	to, err := ParseClock(b.To)
	if err != nil || to <= from {
		return nil
	}
	step := b.DurationMin
	if step <= 0 {
		step = to - from
	}
	var out []Window
	for start := from; start+step <= to; start += step {
		out = append(out, Window{Start: At(date, start), End: At(date, start+step)})
	}
	return out
}

func parseMonth(s string) (time.Month, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, false
		}
		return time.Month(n), true
	}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return m, true
		}
	}
	return 0, false
}

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// Validate reports the first malformed entry in a weekly template.
func Validate(week model.WeeklySlots) error {
	for name, day := range week {
		if !weekdays[name] {
			return fmt.Errorf("weekly_slots: unknown weekday %q", name)
		}
		switch day.Mode {
		case model.ModeExplicit, "":
			for i, s := range day.Slots {
				if _, err := ParseClock(s.Start); err != nil {
					return fmt.Errorf("weekly_slots.%s.slots[%d]: %w", name, i, err)
				}
				if s.DurationMin <= 0 {
					return fmt.Errorf("weekly_slots.%s.slots[%d]: duration_min must be positive", name, i)
				}
			}
		case model.ModePattern:
			for i, b := range day.Blocks {
				if err := validateBlock(b); err != nil {
					return fmt.Errorf("weekly_slots.%s.blocks[%d]: %w", name, i, err)
				}
			}
		default:
			return fmt.Errorf("weekly_slots.%s: unknown mode %q", name, day.Mode)
		}
	}
	return nil
}

func validateBlock(b model.Block) error {
	if b.Date != "" {
		if _, err := time.Parse(DateLayout, b.Date); err != nil {
			return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", b.Date)
		}
	}
	if b.Day != "" {
		d, err := strconv.Atoi(strings.TrimSpace(b.Day))
		if err != nil || d < 1 || d > 31 {
			return fmt.Errorf("invalid day %q", b.Day)
		}
	}
	if b.Month != "" {
		if _, ok := parseMonth(b.Month); !ok {
			return fmt.Errorf("invalid month %q", b.Month)
		}
	}
	from, err := ParseClock(b.From)
	if err != nil {
		return err
	}
	to, err := ParseClock(b.To)
	if err != nil {
		return err
	}
	if to < from {
		return fmt.Errorf("to %s is before from %s", b.To, b.From)
	}
	if b.DurationMin < 0 {
		return fmt.Errorf("duration_min must not be negative")
	}
	return nil
}
