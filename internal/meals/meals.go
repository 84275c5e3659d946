package meals

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MealType identifies one of the configurable meals.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snack     MealType = "snack"
)

// All lists meal types in evaluation order.
var All = []MealType{Breakfast, Lunch, Dinner, Snack}

// Valid reports whether m is a known meal type.
func (m MealType) Valid() bool {
	switch m {
	case Breakfast, Lunch, Dinner, Snack:
		return true
	default:
		return false
	}
}

// Name returns the display name ("Breakfast"), or "Meal" for unknown types.
func (m MealType) Name() string {
	switch m {
	case Breakfast:
		return "Breakfast"
	case Lunch:
		return "Lunch"
	case Dinner:
		return "Dinner"
	case Snack:
		return "Snack"
	default:
		return "Meal"
	}
}

// Icon returns the emoji shown next to reminders for this meal.
func (m MealType) Icon() string {
	switch m {
	case Breakfast:
		return "🌅"
	case Lunch:
		return "☀️"
	case Dinner:
		return "🌙"
	case Snack:
		return "🍎"
	default:
		return "🍽️"
	}
}

// MealConfig is the reminder configuration of a single meal.
// An empty Time disables the reminder for that meal.
type MealConfig struct {
	Time          string `json:"time"`
	OffsetMinutes int    `json:"offset_minutes"`
}

// Settings is the per-user reminder configuration.
type Settings struct {
	RemindersEnabled bool       `json:"reminders_enabled"`
	Breakfast        MealConfig `json:"breakfast"`
	Lunch            MealConfig `json:"lunch"`
	Dinner           MealConfig `json:"dinner"`
	Snack            MealConfig `json:"snack"`
	SoundEnabled     bool       `json:"sound_enabled"`
}

// DefaultSettings returns the settings used when nothing valid is persisted.
func DefaultSettings() Settings {
	return Settings{
		RemindersEnabled: true,
		Breakfast:        MealConfig{Time: "08:00"},
		Lunch:            MealConfig{Time: "12:00"},
		Dinner:           MealConfig{Time: "18:00"},
		Snack:            MealConfig{Time: "15:00"},
		SoundEnabled:     true,
	}
}

// Meal returns the config for m.
func (s *Settings) Meal(m MealType) MealConfig {
	switch m {
	case Breakfast:
		return s.Breakfast
	case Lunch:
		return s.Lunch
	case Dinner:
		return s.Dinner
	case Snack:
		return s.Snack
	default:
		return MealConfig{}
	}
}

// SetMeal replaces the config for m. Unknown types are ignored.
func (s *Settings) SetMeal(m MealType, cfg MealConfig) {
	switch m {
	case Breakfast:
		s.Breakfast = cfg
	case Lunch:
		s.Lunch = cfg
	case Dinner:
		s.Dinner = cfg
	case Snack:
		s.Snack = cfg
	}
}

// ErrInvalidTime is returned for meal times that are not HH:MM.
var ErrInvalidTime = errors.New("invalid meal time")

// ParseHM parses "HH:MM" into minutes since midnight.
func ParseHM(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return h*60 + m, nil
}

// FormatHM renders minutes since midnight as HH:MM. Values outside a day
// are wrapped, so -10 renders as 23:50.
func FormatHM(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ReminderEvent is the payload handed to the dispatcher when a reminder fires.
type ReminderEvent struct {
	ID            string    `json:"id"`
	MealType      MealType  `json:"meal_type"`
	ScheduledTime string    `json:"scheduled_time"` // HH:MM of the meal itself
	MinutesBefore int       `json:"minutes_before"`
	SoundEnabled  bool      `json:"sound_enabled"`
	FiredAt       time.Time `json:"fired_at"`
}

// Title returns the notification title, e.g. "🌅 Breakfast Reminder".
func (e ReminderEvent) Title() string {
	return fmt.Sprintf("%s %s Reminder", e.MealType.Icon(), e.MealType.Name())
}

// Message returns the notification body.
func (e ReminderEvent) Message() string {
	return fmt.Sprintf("It's almost time for %s! Your meal is scheduled for %s.",
		strings.ToLower(e.MealType.Name()), e.ScheduledTime)
}

// Tag groups notifications of the same meal.
func (e ReminderEvent) Tag() string {
	return "meal-" + string(e.MealType)
}
