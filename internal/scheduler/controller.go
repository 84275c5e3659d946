package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"forkcast/internal/meals"

	"github.com/google/uuid"
)

// Controller exposes manual operations for operators and integration tests.
type Controller struct {
	s      *Scheduler
	pickFn func(n int) int
}

func NewController(s *Scheduler) *Controller {
	return &Controller{s: s, pickFn: rand.Intn}
}

// TriggerTest dispatches a reminder for a random meal at the current virtual
// time. The ledger is not consulted or changed.
func (c *Controller) TriggerTest(ctx context.Context) meals.ReminderEvent {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	settings := c.s.settings.Load(ctx)
	now := c.s.clock.Now()
	ev := meals.ReminderEvent{
		ID:            uuid.NewString(),
		MealType:      meals.All[c.pickFn(len(meals.All))],
		ScheduledTime: c.s.clock.FormatHM(now),
		MinutesBefore: 0,
		SoundEnabled:  settings.SoundEnabled,
		FiredAt:       now,
	}
	c.s.logger.Info().Str("meal_type", string(ev.MealType)).Msg("test reminder triggered")
	c.s.dispatcher.Dispatch(ctx, ev)
	return ev
}

// ScheduleQuick moves breakfast to one virtual minute from now with no
// offset, forgets whether breakfast already fired today and saves the
// settings. It returns the new breakfast time.
func (c *Controller) ScheduleQuick(ctx context.Context) (string, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	now := c.s.clock.Now()
	at := c.s.clock.FormatHM(now.Add(time.Minute))

	settings := c.s.settings.Load(ctx)
	settings.SetMeal(meals.Breakfast, meals.MealConfig{Time: at, OffsetMinutes: 0})

	l, _, err := c.s.ledgers.Load(ctx, c.s.clock.DateKey(now))
	if err != nil {
		return "", fmt.Errorf("load ledger: %w", err)
	}
	if err := l.Forget(ctx, meals.Breakfast); err != nil {
		return "", err
	}
	if err := c.s.settings.Save(ctx, settings); err != nil {
		return "", err
	}

	c.s.logger.Info().Str("breakfast", at).Msg("quick reminder scheduled")
	return at, nil
}

// Settings returns the effective settings.
func (c *Controller) Settings(ctx context.Context) meals.Settings {
	return c.s.settings.Load(ctx)
}

// VirtualTime returns the current instant in the virtual zone.
func (c *Controller) VirtualTime() time.Time {
	return c.s.clock.Now()
}

// Reload re-reads settings and clears today's ledger.
func (c *Controller) Reload(ctx context.Context) (meals.Settings, error) {
	return c.s.Reload(ctx)
}

// CheckNow runs a poll immediately.
func (c *Controller) CheckNow(ctx context.Context) []meals.ReminderEvent {
	return c.s.Poll(ctx)
}
