// Package lifecycle holds the booking state machine as an explicit transition
// table. Any (state, action) pair not listed is rejected.
package lifecycle

import (
	"sort"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// Action is something that moves a booking between states.
type Action string

const (
	Confirm      Action = "confirm"
	CheckIn      Action = "check_in"
	AutoCheckIn  Action = "auto_check_in"
	CheckOut     Action = "check_out"
	AutoCheckOut Action = "auto_check_out"
	Cancel       Action = "cancel"
)

type edge struct {
	from   model.BookingStatus
	action Action
}

var transitions = map[edge]model.BookingStatus{
	{model.StatusPending, Confirm}:       model.StatusConfirmed,
	{model.StatusConfirmed, CheckIn}:     model.StatusActive,
	{model.StatusConfirmed, AutoCheckIn}: model.StatusActive,
	{model.StatusActive, CheckOut}:       model.StatusCompleted,
	{model.StatusActive, AutoCheckOut}:   model.StatusCompleted,
	{model.StatusPending, Cancel}:        model.StatusCancelled,
	{model.StatusConfirmed, Cancel}:      model.StatusCancelled,
}

// Next returns the state reached by applying action in state from.
func Next(from model.BookingStatus, action Action) (model.BookingStatus, error) {
	to, ok := transitions[edge{from, action}]
	if !ok {
		return "", apperr.InvalidState("cannot %s a %s booking", verb(action), from)
	}
	return to, nil
}

// Allowed reports whether action is permitted from state.
func Allowed(from model.BookingStatus, action Action) bool {
	_, ok := transitions[edge{from, action}]
	return ok
}

// Sources lists the states from which action is permitted, sorted.
func Sources(action Action) []model.BookingStatus {
	var out []model.BookingStatus
	for e := range transitions {
		if e.action == action {
			out = append(out, e.from)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Target returns the single state action leads to.
func Target(action Action) model.BookingStatus {
	for e, to := range transitions {
		if e.action == action {
			return to
		}
	}
	return ""
}

func verb(a Action) string {
	switch a {
	case CheckIn, AutoCheckIn:
		return "check in"
	case CheckOut, AutoCheckOut:
		return "check out"
	}
	return string(a)
}
