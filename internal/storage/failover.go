package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStore serves from primary and keeps fallback as a full replica of
// every key it has seen, so a primary outage never exposes an empty or stale
// record. Writes go to both sides. Values read from the primary are copied to
// the fallback when they change. While the primary is down, writes land on the
// fallback only and are replayed to the primary before it serves again. A
// primary marked down is retried after recoveryInterval.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   *zerolog.Logger

	isDown atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
	// pending holds keys written to the fallback alone during an outage.
	pending map[string]struct{}
	// mirrored is the last value known to be on the fallback, per key.
	mirrored map[string]string
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		pending:  make(map[string]struct{}),
		mirrored: make(map[string]string),
	}
}

// usePrimary reports whether the next call should try the primary.
func (f *FailoverStore) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Since(f.lastCheck) >= recoveryInterval
}

func (f *FailoverStore) markDown(op string, err error) {
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Str("op", op).Msg("primary store failed, switching to fallback")
	}
}

func (f *FailoverStore) markUp() {
	if f.isDown.Swap(false) {
		f.logger.Info().Msg("primary store recovered")
	}
}

// replay copies keys written during an outage back to the primary.
func (f *FailoverStore) replay(ctx context.Context) error {
	f.mu.Lock()
	keys := make([]string, 0, len(f.pending))
	for k := range f.pending {
		keys = append(keys, k)
	}
	f.mu.Unlock()

	for _, k := range keys {
		v, ok, err := f.fallback.Get(ctx, k)
		if err != nil {
			return fmt.Errorf("read %s from fallback: %w", k, err)
		}
		if ok {
			if err := f.primary.Set(ctx, k, v); err != nil {
				return err
			}
		}
		f.mu.Lock()
		delete(f.pending, k)
		f.mu.Unlock()
	}
	if len(keys) > 0 {
		f.logger.Info().Int("keys", len(keys)).Msg("replayed fallback writes to primary")
	}
	return nil
}

// mirror copies value to the fallback unless it already holds it.
func (f *FailoverStore) mirror(ctx context.Context, key, value string) {
	f.mu.Lock()
	cur, ok := f.mirrored[key]
	f.mu.Unlock()
	if ok && cur == value {
		return
	}
	if err := f.fallback.Set(ctx, key, value); err != nil {
		f.logger.Warn().Err(err).Str("key", key).Msg("failed to mirror value to fallback")
		return
	}
	f.mu.Lock()
	f.mirrored[key] = value
	f.mu.Unlock()
}

func (f *FailoverStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.usePrimary() {
		v, ok, err := f.getPrimary(ctx, key)
		if err == nil {
			f.markUp()
			if ok {
				f.mirror(ctx, key, v)
			}
			return v, ok, nil
		}
		f.markDown("get", err)
	}
	return f.fallback.Get(ctx, key)
}

func (f *FailoverStore) getPrimary(ctx context.Context, key string) (string, bool, error) {
	if err := f.replay(ctx); err != nil {
		return "", false, err
	}
	return f.primary.Get(ctx, key)
}

func (f *FailoverStore) Set(ctx context.Context, key, value string) error {
	if f.usePrimary() {
		err := f.replay(ctx)
		if err == nil {
			err = f.primary.Set(ctx, key, value)
		}
		if err == nil {
			f.markUp()
			f.mirror(ctx, key, value)
			return nil
		}
		f.markDown("set", err)
	}

	if err := f.fallback.Set(ctx, key, value); err != nil {
		return err
	}
	f.mu.Lock()
	f.pending[key] = struct{}{}
	f.mirrored[key] = value
	f.mu.Unlock()
	return nil
}

// Ping succeeds while at least one side is reachable.
func (f *FailoverStore) Ping(ctx context.Context) error {
	perr := f.primary.Ping(ctx)
	if perr == nil {
		return nil
	}
	if ferr := f.fallback.Ping(ctx); ferr != nil {
		return errors.Join(perr, ferr)
	}
	return nil
}

func (f *FailoverStore) Close() error {
	return errors.Join(f.primary.Close(), f.fallback.Close())
}
