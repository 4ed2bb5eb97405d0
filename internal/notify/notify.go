// Package notify sends booking notifications. Delivery is fire-and-forget:
// a failed send is logged and never blocks or fails the booking flow.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Message is one email or SMS.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers a message synchronously.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, m Message) error {
	n.log.Info().Str("to", m.To).Str("subject", m.Subject).Msg(m.Body)
	return nil
}

// Dispatcher sends through a Notifier on background goroutines.
type Dispatcher struct {
	n       Notifier
	log     zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher; each send gets timeout to finish.
func NewDispatcher(n Notifier, log zerolog.Logger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{n: n, log: log, timeout: timeout}
}

// Send queues m and returns immediately.
func (d *Dispatcher) Send(m Message) {
	if m.To == "" {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.n.Notify(ctx, m); err != nil {
			d.log.Warn().Err(err).Str("to", m.To).Str("subject", m.Subject).Msg("notification failed")
		}
	}()
}

// Wait blocks until queued sends finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// HumanTimeRange renders a booking window for message bodies.
func HumanTimeRange(start, end time.Time) string {
	return fmt.Sprintf("%s - %s", start.Format("2006-01-02 15:04"), end.Format("15:04"))
}
