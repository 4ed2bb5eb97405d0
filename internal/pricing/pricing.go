// Package pricing computes booking charges, cancellation refunds and late fees.
// Every function here is pure.
package pricing

import (
	"math"
	"time"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

const (
	// GracePeriod is how early before start a booking may be checked in.
	GracePeriod = 15 * time.Minute

	// LateFeeBlock is the overdue unit charged at LateFeeRate.
	LateFeeBlock = 15 * time.Minute

	// LateFeeRate is charged per started LateFeeBlock after the scheduled end.
	LateFeeRate = 5.0
)

// Total is the sport's base price plus the cost of all rented equipment.
func Total(basePrice float64, equipment []model.Equipment) float64 {
	total := basePrice
	for _, e := range equipment {
		total += e.Cost * float64(e.Quantity)
	}
	return round2(total)
}

// RefundPercent returns the share of the total refunded when a booking is
// cancelled hoursUntilStart before it begins.
func RefundPercent(hoursUntilStart float64) int {
	switch {
	case hoursUntilStart >= 24:
		return 100
	case hoursUntilStart >= 2:
		return 50
	default:
		return 0
	}
}

// Refund returns the refund amount and percentage for cancelling at now.
func Refund(total float64, start, now time.Time) (float64, int) {
	pct := RefundPercent(start.Sub(now).Hours())
	return round2(total * float64(pct) / 100), pct
}

// OverdueMinutes is how long after end the checkout happened, never negative.
func OverdueMinutes(end, checkOut time.Time) float64 {
	return math.Max(0, checkOut.Sub(end).Minutes())
}

// LateFee charges LateFeeRate per started 15-minute block past end.
func LateFee(end, checkOut time.Time) float64 {
	overdue := OverdueMinutes(end, checkOut)
	if overdue == 0 {
		return 0
	}
	blocks := math.Ceil(overdue / LateFeeBlock.Minutes())
	return blocks * LateFeeRate
}

// ActualDuration is the played time in whole minutes, rounded to nearest.
func ActualDuration(checkIn, checkOut time.Time) int {
	return int(math.Round(checkOut.Sub(checkIn).Minutes()))
}

// CheckInWindow returns the interval during which check-in is accepted.
func CheckInWindow(start, end time.Time) (time.Time, time.Time) {
	return start.Add(-GracePeriod), end
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
