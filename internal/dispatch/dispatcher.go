// Package dispatch fans a fired reminder out to its side-effect channels.
package dispatch

import (
	"context"
	"fmt"

	"forkcast/internal/meals"
	"forkcast/internal/metrics"

	"github.com/rs/zerolog"
)

// Sink is one side-effect channel of a reminder.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev meals.ReminderEvent) error
}

// Dispatcher delivers reminders to every sink. A failing sink never stops
// the others and never reports an error to the caller.
type Dispatcher struct {
	sinks   []Sink
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a dispatcher delivering to sinks in the given order.
func New(m *metrics.Metrics, logger *zerolog.Logger, sinks ...Sink) *Dispatcher {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Dispatcher{
		sinks:   sinks,
		metrics: m,
		logger:  logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch delivers ev to all sinks.
func (d *Dispatcher) Dispatch(ctx context.Context, ev meals.ReminderEvent) {
	d.logger.Info().
		Str("event_id", ev.ID).
		Str("meal_type", string(ev.MealType)).
		Str("scheduled_time", ev.ScheduledTime).
		Int("minutes_before", ev.MinutesBefore).
		Msg("meal reminder triggered")

	for _, sink := range d.sinks {
		if err := d.deliver(ctx, sink, ev); err != nil {
			d.metrics.IncDispatchFailure(sink.Name())
			d.logger.Warn().Err(err).
				Str("channel", sink.Name()).
				Str("meal_type", string(ev.MealType)).
				Msg("reminder side effect failed")
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, ev meals.ReminderEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sink.Deliver(ctx, ev)
}
