package notify

import (
	"context"
	"fmt"

	"forkcast/internal/storage"
)

// Permission mirrors the browser notification permission states.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// PermissionStore persists the notification permission.
type PermissionStore struct {
	kv  storage.Store
	key string
}

func NewPermissionStore(kv storage.Store, keys storage.Keys) *PermissionStore {
	return &PermissionStore{kv: kv, key: keys.Permission()}
}

// Get returns the stored permission. Unknown or absent values read as default.
func (p *PermissionStore) Get(ctx context.Context) (Permission, error) {
	v, ok, err := p.kv.Get(ctx, p.key)
	if err != nil {
		return PermissionDefault, fmt.Errorf("read permission: %w", err)
	}
	if !ok {
		return PermissionDefault, nil
	}
	switch perm := Permission(v); perm {
	case PermissionGranted, PermissionDenied:
		return perm, nil
	default:
		return PermissionDefault, nil
	}
}

func (p *PermissionStore) Set(ctx context.Context, perm Permission) error {
	if err := p.kv.Set(ctx, p.key, string(perm)); err != nil {
		return fmt.Errorf("write permission: %w", err)
	}
	return nil
}
