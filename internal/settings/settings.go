// Package settings loads and persists meal reminder settings.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"forkcast/internal/meals"
	"forkcast/internal/storage"

	"github.com/rs/zerolog"
)

// Store reads settings through the persistence collaborator on every Load so
// out-of-band edits are seen on the next read. The last good read is kept only
// to answer while storage is unreachable.
type Store struct {
	kv     storage.Store
	key    string
	logger zerolog.Logger

	mu       sync.Mutex
	lastGood *meals.Settings
}

func NewStore(kv storage.Store, keys storage.Keys, logger *zerolog.Logger) *Store {
	return &Store{
		kv:     kv,
		key:    keys.Settings(),
		logger: logger.With().Str("component", "settings").Logger(),
	}
}

// Load returns the effective settings. Missing or malformed data yields
// defaults. A failed read yields the last settings read successfully, or
// defaults if there are none. It never fails.
func (s *Store) Load(ctx context.Context) meals.Settings {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if last, found := s.last(); found {
			s.logger.Error().Err(err).Msg("failed to read settings, using last known settings")
			return last
		}
		s.logger.Error().Err(err).Msg("failed to read settings, using defaults")
		return meals.DefaultSettings()
	}
	if !ok {
		s.logger.Debug().Msg("no saved settings, using defaults")
		return s.remember(meals.DefaultSettings())
	}

	settings, err := Decode([]byte(raw), meals.DefaultSettings())
	if err != nil {
		s.logger.Error().Err(err).Msg("malformed settings, using defaults")
		return s.remember(meals.DefaultSettings())
	}
	return s.remember(settings)
}

func (s *Store) last() (meals.Settings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastGood == nil {
		return meals.Settings{}, false
	}
	return *s.lastGood, true
}

func (s *Store) remember(settings meals.Settings) meals.Settings {
	s.mu.Lock()
	s.lastGood = &settings
	s.mu.Unlock()
	return settings
}

// Save persists the full settings object.
func (s *Store) Save(ctx context.Context, settings meals.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Update merges a partial settings document over the current settings and saves
// the result.
func (s *Store) Update(ctx context.Context, patch []byte) (meals.Settings, error) {
	merged, err := Decode(patch, s.Load(ctx))
	if err != nil {
		return meals.Settings{}, err
	}
	if err := s.Save(ctx, merged); err != nil {
		return meals.Settings{}, err
	}
	return merged, nil
}

type rawMeal struct {
	Time          *string `json:"time"`
	OffsetMinutes *int    `json:"offset_minutes"`
}

type rawSettings struct {
	RemindersEnabled *bool    `json:"reminders_enabled"`
	Breakfast        *rawMeal `json:"breakfast"`
	Lunch            *rawMeal `json:"lunch"`
	Dinner           *rawMeal `json:"dinner"`
	Snack            *rawMeal `json:"snack"`
	SoundEnabled     *bool    `json:"sound_enabled"`
}

func (r *rawSettings) meal(m meals.MealType) *rawMeal {
	switch m {
	case meals.Breakfast:
		return r.Breakfast
	case meals.Lunch:
		return r.Lunch
	case meals.Dinner:
		return r.Dinner
	case meals.Snack:
		return r.Snack
	default:
		return nil
	}
}

// Decode parses a settings document and backfills every absent or null field
// from base. A negative offset counts as absent. An explicit empty time is kept.
func Decode(data []byte, base meals.Settings) (meals.Settings, error) {
	var raw rawSettings
	if err := json.Unmarshal(data, &raw); err != nil {
		return meals.Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	out := base
	if raw.RemindersEnabled != nil {
		out.RemindersEnabled = *raw.RemindersEnabled
	}
	if raw.SoundEnabled != nil {
		out.SoundEnabled = *raw.SoundEnabled
	}
	for _, m := range meals.All {
		rm := raw.meal(m)
		if rm == nil {
			continue
		}
		cfg := base.Meal(m)
		if rm.Time != nil {
			cfg.Time = *rm.Time
		}
		if rm.OffsetMinutes != nil && *rm.OffsetMinutes >= 0 {
			cfg.OffsetMinutes = *rm.OffsetMinutes
		}
		out.SetMeal(m, cfg)
	}
	return out, nil
}
