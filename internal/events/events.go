// Package events publishes booking state changes for external subscribers
// and consumes payment outcomes from the broker.
package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Event names published after successful state transitions.
const (
	NewBooking     = "new_booking"
	BookingUpdated = "booking_updated"
	BookingDeleted = "booking_deleted"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type    string `json:"type"`
	Time    int64  `json:"time"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// New stamps an event at t.
func New(name, message string, data any, t time.Time) Event {
	return Event{Type: name, Time: t.UnixMilli(), Message: message, Data: data}
}

// Emitter delivers events. Callers log failures and never roll back on them.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// LogEmitter writes events to the log. It is used when no broker is configured.
type LogEmitter struct {
	log zerolog.Logger
}

// NewLogEmitter constructs a LogEmitter.
func NewLogEmitter(log zerolog.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (l *LogEmitter) Emit(_ context.Context, e Event) error {
	l.log.Info().Str("event", e.Type).Int64("time", e.Time).Msg(e.Message)
	return nil
}
