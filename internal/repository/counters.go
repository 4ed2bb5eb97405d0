package repository

import (
	"context"
	"fmt"
)

// incrementCounters bumps the facility total and the sport row in place,
// creating the sport row with 1 when it does not exist yet.
func incrementCounters(ctx context.Context, q querier, facilityID, sport string) error {
	if _, err := q.Exec(ctx,
		`UPDATE facilities SET total_bookings = total_bookings + 1 WHERE id = $1`,
		facilityID,
	); err != nil {
		return fmt.Errorf("increment total_bookings: %w", err)
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO facility_sport_bookings (facility_id, sport, booking_count)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (facility_id, sport)
		 DO UPDATE SET booking_count = facility_sport_bookings.booking_count + 1`,
		facilityID, sport,
	); err != nil {
		return fmt.Errorf("increment sport bookings: %w", err)
	}
	return nil
}

// decrementCounters lowers both counters, never below zero.
func decrementCounters(ctx context.Context, q querier, facilityID, sport string) error {
	if _, err := q.Exec(ctx,
		`UPDATE facilities SET total_bookings = GREATEST(total_bookings - 1, 0) WHERE id = $1`,
		facilityID,
	); err != nil {
		return fmt.Errorf("decrement total_bookings: %w", err)
	}
	if _, err := q.Exec(ctx,
		`UPDATE facility_sport_bookings
		 SET booking_count = GREATEST(booking_count - 1, 0)
		 WHERE facility_id = $1 AND sport = $2`,
		facilityID, sport,
	); err != nil {
		return fmt.Errorf("decrement sport bookings: %w", err)
	}
	return nil
}
