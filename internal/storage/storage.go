// Package storage provides the key-value persistence used for settings,
// the trigger ledger and the notification permission.
package storage

import (
	"context"
	"fmt"
)

// Store is a durable string key-value store.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Keys for the records owned by one reminder session.
type Keys struct {
	namespace string
}

// NewKeys scopes keys to namespace (usually one per user).
func NewKeys(namespace string) Keys {
	if namespace == "" {
		namespace = "default"
	}
	return Keys{namespace: namespace}
}

func (k Keys) key(name string) string {
	return fmt.Sprintf("reminders:%s:%s", k.namespace, name)
}

// Settings is the key holding meal reminder settings.
func (k Keys) Settings() string { return k.key("settings") }

// Ledger is the key holding the per-day trigger ledger.
func (k Keys) Ledger() string { return k.key("ledger") }

// Permission is the key holding the notification permission state.
func (k Keys) Permission() string { return k.key("notification_permission") }
