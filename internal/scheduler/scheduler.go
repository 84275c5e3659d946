// Package scheduler decides when meal reminders fire.
//
// Every poll reloads settings, checks each meal's trigger window against the
// virtual clock and fires at most once per meal per virtual day. The ledger
// entry is persisted before the reminder is handed to the dispatcher.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"forkcast/internal/ledger"
	"forkcast/internal/meals"
	"forkcast/internal/metrics"
	"forkcast/internal/vclock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrWindowTooNarrow is returned when a poll could step over a whole window.
	ErrWindowTooNarrow = errors.New("reminder window must be longer than the poll interval")

	// ErrWindowNotWholeMinutes is returned for a window the minute-based
	// trigger test cannot represent.
	ErrWindowNotWholeMinutes = errors.New("reminder window must be a whole number of minutes")
)

// Config holds scheduler timing.
type Config struct {
	// PollInterval is how often the trigger windows are evaluated.
	// Default: 30 seconds.
	PollInterval time.Duration

	// Window is how long a meal's trigger window stays open.
	// Default: 3 minutes. Must be whole minutes and exceed PollInterval.
	Window time.Duration

	// MidnightReset enables the proactive ledger reset at virtual midnight.
	// The per-poll day check resets a stale ledger regardless.
	MidnightReset bool
}

// DefaultConfig returns the default timing.
func DefaultConfig() Config {
	return Config{
		PollInterval:  30 * time.Second,
		Window:        3 * time.Minute,
		MidnightReset: true,
	}
}

// SettingsStore provides the effective settings.
type SettingsStore interface {
	Load(ctx context.Context) meals.Settings
	Save(ctx context.Context, settings meals.Settings) error
}

// LedgerStore provides today's trigger ledger.
type LedgerStore interface {
	Load(ctx context.Context, today string) (*ledger.Ledger, bool, error)
}

// Dispatcher performs the side effects of a fired reminder.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev meals.ReminderEvent)
}

// Scheduler owns the poll loop and the midnight loop.
type Scheduler struct {
	cfg        Config
	clock      *vclock.Clock
	settings   SettingsStore
	ledgers    LedgerStore
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	// mu serializes polls, resets and harness operations.
	mu sync.Mutex

	lifeMu  sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler. Zero durations in cfg take their defaults.
func New(
	cfg Config,
	clock *vclock.Clock,
	settings SettingsStore,
	ledgers LedgerStore,
	dispatcher Dispatcher,
	m *metrics.Metrics,
	logger *zerolog.Logger,
) (*Scheduler, error) {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Window%time.Minute != 0 {
		return nil, fmt.Errorf("%w: window %s", ErrWindowNotWholeMinutes, cfg.Window)
	}
	if cfg.Window < time.Minute || cfg.PollInterval >= cfg.Window {
		return nil, fmt.Errorf("%w: poll %s, window %s", ErrWindowTooNarrow, cfg.PollInterval, cfg.Window)
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &Scheduler{
		cfg:        cfg,
		clock:      clock,
		settings:   settings,
		ledgers:    ledgers,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start runs one poll immediately and then keeps polling until Stop or until
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.pollLoop(ctx)

	if s.cfg.MidnightReset {
		s.wg.Add(1)
		go s.midnightLoop(ctx)
	}

	s.logger.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Dur("window", s.cfg.Window).
		Str("zone", s.clock.Location().String()).
		Msg("meal reminder scheduler started")
}

// Stop cancels both loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.lifeMu.Lock()
	if !s.running {
		s.lifeMu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.lifeMu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("meal reminder scheduler stopped")
}

// IsRunning returns whether the loops are active.
func (s *Scheduler) IsRunning() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.running
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	// Run immediately on start
	s.Poll(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

func (s *Scheduler) midnightLoop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.clock.UntilNextMidnight())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.resetAtMidnight(ctx)
			timer.Reset(s.clock.UntilNextMidnight())
		}
	}
}

// Poll evaluates every meal's window once and returns the reminders fired.
func (s *Scheduler) Poll(ctx context.Context) []meals.ReminderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poll(ctx)
}

func (s *Scheduler) poll(ctx context.Context) []meals.ReminderEvent {
	start := time.Now()
	defer func() {
		s.metrics.IncPoll(time.Since(start).Seconds())
	}()

	settings := s.settings.Load(ctx)
	if !settings.RemindersEnabled {
		s.logger.Debug().Msg("reminders disabled, skipping poll")
		return nil
	}

	now := s.clock.Now()
	nowMinutes := s.clock.MinutesSinceMidnight(now)
	today := s.clock.DateKey(now)

	l, reset, err := s.ledgers.Load(ctx, today)
	if l == nil {
		s.logger.Error().Err(err).Str("day", today).Msg("ledger unavailable, skipping poll")
		return nil
	}
	if reset {
		s.metrics.IncLedgerReset("stale")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("day", today).Msg("failed to persist ledger reset")
	}

	windowMinutes := int(s.cfg.Window / time.Minute)

	s.logger.Debug().
		Str("virtual_time", s.clock.FormatHM(now)).
		Str("day", today).
		Msg("checking meal reminders")

	var fired []meals.ReminderEvent
	for _, m := range meals.All {
		mc := settings.Meal(m)
		if mc.Time == "" {
			continue
		}

		mealMinutes, err := meals.ParseHM(mc.Time)
		if err != nil {
			s.logger.Warn().Err(err).Str("meal_type", string(m)).Str("time", mc.Time).Msg("skipping meal with malformed time")
			continue
		}

		target := mealMinutes - mc.OffsetMinutes
		inWindow := target <= nowMinutes && nowMinutes < target+windowMinutes
		alreadyFired := l.Has(m)

		s.logger.Debug().
			Str("meal_type", string(m)).
			Str("meal_time", mc.Time).
			Int("offset_minutes", mc.OffsetMinutes).
			Str("target", meals.FormatHM(target)).
			Bool("in_window", inWindow).
			Bool("already_fired", alreadyFired).
			Msg("meal window")

		if !inWindow || alreadyFired {
			continue
		}

		if err := l.MarkFired(ctx, m); err != nil {
			s.logger.Error().Err(err).Str("meal_type", string(m)).Msg("could not record reminder, will retry next poll")
			continue
		}

		ev := meals.ReminderEvent{
			ID:            uuid.NewString(),
			MealType:      m,
			ScheduledTime: mc.Time,
			MinutesBefore: mc.OffsetMinutes,
			SoundEnabled:  settings.SoundEnabled,
			FiredAt:       now,
		}
		s.metrics.IncFired(string(m))
		s.dispatcher.Dispatch(ctx, ev)
		fired = append(fired, ev)
	}

	return fired
}

func (s *Scheduler) resetAtMidnight(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.DateKey(s.clock.Now())
	if err := s.clearLedger(ctx, today); err != nil {
		s.logger.Error().Err(err).Str("day", today).Msg("midnight ledger reset failed")
		return
	}
	s.metrics.IncLedgerReset("midnight")
	s.logger.Info().Str("day", today).Msg("ledger reset at midnight")
}

// Reload re-reads settings and clears today's ledger, so a meal whose
// window is still open fires again on the next poll.
func (s *Scheduler) Reload(ctx context.Context) (meals.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.settings.Load(ctx)
	today := s.clock.DateKey(s.clock.Now())
	if err := s.clearLedger(ctx, today); err != nil {
		return settings, err
	}
	s.metrics.IncLedgerReset("reload")
	s.logger.Info().Str("day", today).Msg("settings reloaded and ledger cleared")
	return settings, nil
}

func (s *Scheduler) clearLedger(ctx context.Context, today string) error {
	l, _, err := s.ledgers.Load(ctx, today)
	if err != nil {
		return err
	}
	return l.ResetForNewDay(ctx, today)
}
