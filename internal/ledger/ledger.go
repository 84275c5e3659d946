// Package ledger records which meal reminders already fired on the current
// virtual day.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"forkcast/internal/meals"
	"forkcast/internal/storage"

	"github.com/rs/zerolog"
)

// record is the persisted shape.
type record struct {
	Day   string           `json:"day"`
	Fired []meals.MealType `json:"fired"`
}

// Store loads ledgers through the persistence collaborator.
type Store struct {
	kv     storage.Store
	key    string
	logger zerolog.Logger
}

func NewStore(kv storage.Store, keys storage.Keys, logger *zerolog.Logger) *Store {
	return &Store{
		kv:     kv,
		key:    keys.Ledger(),
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// Ledger is the set of meals fired on Day. Every mutation is written through
// before the mutating call returns.
type Ledger struct {
	store *Store
	day   string
	fired map[meals.MealType]struct{}
}

// Load returns the ledger for today. An absent, malformed or stale record is
// replaced by an empty ledger for today, which is persisted at once; reset
// reports whether that happened over an existing record. If that write fails
// the in-memory ledger is still returned along with the error.
//
// A failed read returns a nil ledger and nothing is written, so a transient
// storage error never erases the fired set.
func (s *Store) Load(ctx context.Context, today string) (l *Ledger, reset bool, err error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, false, fmt.Errorf("read ledger: %w", err)
	}

	if ok {
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Error().Err(err).Msg("malformed ledger, starting fresh")
		} else if rec.Day == today {
			return s.fromRecord(rec), false, nil
		} else {
			s.logger.Info().Str("stored_day", rec.Day).Str("today", today).Msg("ledger is stale, resetting")
		}
	}

	l = s.empty(today)
	if err := l.persist(ctx); err != nil {
		return l, ok, err
	}
	return l, ok, nil
}

func (s *Store) empty(day string) *Ledger {
	return &Ledger{store: s, day: day, fired: make(map[meals.MealType]struct{})}
}

func (s *Store) fromRecord(rec record) *Ledger {
	l := s.empty(rec.Day)
	for _, m := range rec.Fired {
		if m.Valid() {
			l.fired[m] = struct{}{}
		}
	}
	return l
}

// Day returns the DateKey the ledger belongs to.
func (l *Ledger) Day() string {
	return l.day
}

// Has reports whether m already fired on Day.
func (l *Ledger) Has(m meals.MealType) bool {
	_, ok := l.fired[m]
	return ok
}

// Fired returns the fired meals in a stable order.
func (l *Ledger) Fired() []meals.MealType {
	out := make([]meals.MealType, 0, len(l.fired))
	for m := range l.fired {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarkFired records m and persists before returning. On persistence failure
// the insert is rolled back so the caller does not dispatch.
func (l *Ledger) MarkFired(ctx context.Context, m meals.MealType) error {
	if l.Has(m) {
		return nil
	}
	l.fired[m] = struct{}{}
	if err := l.persist(ctx); err != nil {
		delete(l.fired, m)
		return err
	}
	return nil
}

// Forget removes m from the ledger and persists.
func (l *Ledger) Forget(ctx context.Context, m meals.MealType) error {
	if !l.Has(m) {
		return nil
	}
	delete(l.fired, m)
	return l.persist(ctx)
}

// ResetForNewDay clears the ledger and rebinds it to today.
func (l *Ledger) ResetForNewDay(ctx context.Context, today string) error {
	l.day = today
	l.fired = make(map[meals.MealType]struct{})
	return l.persist(ctx)
}

func (l *Ledger) persist(ctx context.Context) error {
	data, err := json.Marshal(record{Day: l.day, Fired: l.Fired()})
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := l.store.kv.Set(ctx, l.store.key, string(data)); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}
